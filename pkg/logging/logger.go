// Package logging builds the process logger and scrubs secrets from
// anything that ends up in logs or connection-event details.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the root zap logger for the given environment.
// "local" gets human-readable console output; everything else gets
// production JSON with sampling.
func NewLogger(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
