package static

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/drawbridge-proxy/drawbridge/internal/config"
	"github.com/drawbridge-proxy/drawbridge/pkg/event"
)

func TestMaxReputationScoreSource(t *testing.T) {
	cfg := &config.AppConfig{
		Policy: &config.Policy{
			MaxReputationScore: 80,
		},
	}

	source := NewMaxReputationScoreSource(cfg)

	schema := source.Describe()
	assert.Equal(t, "max_reputation_score", schema.ID)
	assert.NotEmpty(t, schema.Description)

	input, err := source.Collect(context.Background(), nil, event.IntentLogin)
	assert.NoError(t, err)
	assert.Equal(t, "max_reputation_score", input.ID())
	assert.Equal(t, 80, input.Value())
	assert.WithinDuration(t, time.Now(), input.Timestamp(), time.Second)

	// A reloaded config is visible through the same source.
	cfg.Policy.MaxReputationScore = 95
	input, err = source.Collect(context.Background(), nil, event.IntentLogin)
	assert.NoError(t, err)
	assert.Equal(t, 95, input.Value())
}

func TestCustomConfigSource(t *testing.T) {
	cfg := &config.AppConfig{
		Server: &config.Server{ListenAddr: ":25565"},
	}

	source := NewSource("listen_addr", "Address the transport listens on", cfg, func(cfg *config.AppConfig) any {
		return cfg.Server.ListenAddr
	})

	input, err := source.Collect(context.Background(), nil, event.IntentStatus)
	assert.NoError(t, err)
	assert.Equal(t, ":25565", input.Value())
}
