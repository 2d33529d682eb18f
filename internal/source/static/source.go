// Package static provides the configuration-based input source
package static

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drawbridge-proxy/drawbridge/internal/config"
	"github.com/drawbridge-proxy/drawbridge/internal/listener/policy"
	"github.com/drawbridge-proxy/drawbridge/internal/metrics"
	"github.com/drawbridge-proxy/drawbridge/pkg/event"
)

// Source implements policy.Source for configuration-based inputs.
type Source struct {
	inputID     string
	description string
	config      *config.AppConfig
	valueFunc   func(*config.AppConfig) any
}

var _ policy.Source = (*Source)(nil)

// NewMaxReputationScoreSource creates a source for the max_reputation_score
// input.
func NewMaxReputationScoreSource(cfg *config.AppConfig) *Source {
	return &Source{
		inputID:     "max_reputation_score",
		description: "Reputation score at or above which connections are denied",
		config:      cfg,
		valueFunc: func(cfg *config.AppConfig) any {
			return cfg.Policy.MaxReputationScore
		},
	}
}

// NewSource creates a configuration-based input source with a custom value
// function.
func NewSource(inputID, description string, cfg *config.AppConfig, valueFunc func(*config.AppConfig) any) *Source {
	return &Source{
		inputID:     inputID,
		description: description,
		config:      cfg,
		valueFunc:   valueFunc,
	}
}

// Describe implements policy.Source.
func (s *Source) Describe() policy.Schema {
	return policy.Schema{
		ID:          s.inputID,
		Description: s.description,
	}
}

// Collect implements policy.Source.
func (s *Source) Collect(ctx context.Context, _ event.InboundConnection, _ event.HandshakeIntent) (policy.Input, error) {
	timer := prometheus.NewTimer(metrics.SourceCollectLatency.WithLabelValues(s.inputID))
	defer timer.ObserveDuration()

	// Configuration inputs are always fresh (current time)
	// and we don't need to make external calls
	value := s.valueFunc(s.config)
	return policy.NewInput(s.inputID, value, time.Now()), nil
}
