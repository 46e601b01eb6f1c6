package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/njchilds90/gonewton/internal/config"
)

// Open builds the backend named in cfg.
func Open(cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(logger), nil
	case "sqlite":
		return NewSQLite(cfg.DatabasePath, logger)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// Janitor evicts sessions idle for longer than TTL, checking every Interval.
type Janitor struct {
	Store    Store
	TTL      time.Duration
	Interval time.Duration
	Logger   *zap.Logger
	now      func() time.Time
}

// Run sweeps until ctx is cancelled. It always returns nil on cancellation so
// it can sit in an errgroup next to the HTTP server.
func (j *Janitor) Run(ctx context.Context) error {
	logger := j.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := j.now
	if now == nil {
		now = time.Now
	}
	if j.TTL <= 0 || j.Interval <= 0 {
		logger.Info("session eviction disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := j.Store.Sweep(ctx, now().Add(-j.TTL))
			if err != nil {
				logger.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("evicted idle sessions", zap.Int("count", n), zap.Duration("ttl", j.TTL))
			}
		}
	}
}
