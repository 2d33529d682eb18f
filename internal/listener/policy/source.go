package policy

import (
	"context"
	"time"

	"github.com/drawbridge-proxy/drawbridge/pkg/event"
)

// Input is a single piece of data about a connection attempt, with the time
// at which the value was considered current.
type Input interface {
	ID() string           // e.g., "reputation_score"
	Value() any           // The actual data point
	Timestamp() time.Time // When the value was considered current
}

// Schema provides metadata about an Input or input structure.
type Schema struct {
	ID          string
	Description string
}

// Source fetches or calculates a specific Input for the connection under
// decision.
type Source interface {
	Describe() Schema
	// Collect fetches the input value. Implementations handle caching and
	// staleness. Must return ErrSourceStale or ErrSourceUnavailable for
	// critical failures.
	Collect(ctx context.Context, conn event.InboundConnection, intent event.HandshakeIntent) (Input, error)
}

// BasicInput is a concrete implementation of the Input interface
type BasicInput struct {
	InputID    string
	InputValue any
	InputTime  time.Time
}

func (i BasicInput) ID() string           { return i.InputID }
func (i BasicInput) Value() any           { return i.InputValue }
func (i BasicInput) Timestamp() time.Time { return i.InputTime }

// NewInput creates a new Input with the given ID, value, and timestamp
func NewInput(id string, value any, timestamp time.Time) Input {
	return BasicInput{
		InputID:    id,
		InputValue: value,
		InputTime:  timestamp,
	}
}
