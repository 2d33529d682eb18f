package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/drawbridge-proxy/drawbridge/internal/config"
)

// ErrConfigLoad marks configuration that could not be loaded or evaluated.
var ErrConfigLoad = errors.New("config: configuration could not be loaded")

// DefaultPath is where the proxy looks for its Pkl module when no --config
// flag is given.
const DefaultPath = "config/local.pkl"

// Evaluate loads the default configuration module.
func Evaluate(ctx context.Context) (*config.AppConfig, error) {
	cfg, err := config.LoadFromPath(ctx, DefaultPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
