//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"

	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/logger"
)

// Connect loads settings and dials serverAddress, or the configured address
// when it is empty. It returns the address actually used.
func Connect(ctx context.Context, configPath, serverAddress string) (*Client, string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}

	if serverAddress == "" {
		serverAddress = cfg.ServerAddress
	}

	options := []Option{WithCallTimeout(cfg.Timeout)}

	// The actor is informational, failing to detect it is not fatal.
	actor, err := DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Unable to detect actor", "error", err)
	} else {
		options = append(options, WithActor(actor))
	}

	client, err := Dial(ctx, serverAddress, options...)
	if err != nil {
		return nil, "", err
	}

	return client, serverAddress, nil
}
