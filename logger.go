package pubhost

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a zap logger at level ("debug", "info", "warn", "error").
// Development mode writes human-readable console output.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}
