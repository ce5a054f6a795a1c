package agent

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultKeepAliveInterval matches how long the hosted agent stays warm.
const DefaultKeepAliveInterval = 20 * time.Minute

// Pinger is anything with a health check.
type Pinger interface {
	Health(ctx context.Context) error
}

// KeepAlive pings p immediately and then every interval until ctx ends.
// Ping failures are logged and never stop the loop.
func KeepAlive(ctx context.Context, p Pinger, interval time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("keepalive")
	if interval <= 0 {
		interval = DefaultKeepAliveInterval
	}

	ping := func() {
		pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := p.Health(pingCtx); err != nil {
			logger.Warn("agent ping failed", zap.Error(err))
			return
		}
		logger.Debug("agent ping ok")
	}

	ping()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ping()
		}
	}
}
