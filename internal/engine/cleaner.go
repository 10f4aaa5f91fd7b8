/*
File: internal/engine/cleaner.go
Description: The recurring cleanup tick. An explicit task owned by the
process lifecycle, cancelled through its context, so nothing keeps firing
after shutdown.
*/
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Cleaner periodically runs the engine's sweep.
type Cleaner struct {
	engine   *Engine
	interval time.Duration
	logger   zerolog.Logger
}

// NewCleaner creates a cleaner ticking at interval.
func NewCleaner(engine *Engine, interval time.Duration, logger zerolog.Logger) *Cleaner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Cleaner{engine: engine, interval: interval, logger: logger}
}

// Run blocks, sweeping once per interval, until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	c.logger.Info().Dur("interval", c.interval).Msg("Cleaner started.")
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Cleaner stopped.")
			return
		case <-ticker.C:
			res := c.engine.Sweep()
			if res.ExpiredTokens > 0 || res.RetiredSessions > 0 || res.ChannelEntries > 0 {
				c.logger.Info().
					Int("expiredTokens", res.ExpiredTokens).
					Int("retiredSessions", res.RetiredSessions).
					Int("channelEntries", res.ChannelEntries).
					Msg("Sweep removed expired state.")
			}
		}
	}
}
