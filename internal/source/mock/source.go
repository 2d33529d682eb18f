package mock

import (
	"context"
	"time"

	"github.com/drawbridge-proxy/drawbridge/internal/listener/policy"
	"github.com/drawbridge-proxy/drawbridge/pkg/event"
)

// Source implements policy.Source with controllable mock values.
type Source struct {
	InputID     string
	Value       any
	Timestamp   time.Time
	Err         error
	Description string
}

var _ policy.Source = (*Source)(nil)

// NewSource creates a new mock source with the given ID and value.
func NewSource(id string, value any, description string) *Source {
	return &Source{
		InputID:     id,
		Value:       value,
		Timestamp:   time.Now(),
		Description: description,
	}
}

// WithError configures the source to return the specified error.
func (s *Source) WithError(err error) *Source {
	s.Err = err
	return s
}

// WithTimestamp sets a specific timestamp for the input.
func (s *Source) WithTimestamp(t time.Time) *Source {
	s.Timestamp = t
	return s
}

// Describe implements policy.Source.
func (s *Source) Describe() policy.Schema {
	return policy.Schema{
		ID:          s.InputID,
		Description: s.Description,
	}
}

// Collect implements policy.Source.
func (s *Source) Collect(ctx context.Context, _ event.InboundConnection, _ event.HandshakeIntent) (policy.Input, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	return policy.NewInput(s.InputID, s.Value, s.Timestamp), nil
}
