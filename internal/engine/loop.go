package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mirage/internal/strategy"
)

// Loop runs cycles forever with a jittered sleep between them,
// until ctx is cancelled. The sleep is checked at one-second
// granularity so shutdown never waits out a full interval.
func (e *Engine) Loop(ctx context.Context, hint strategy.Strategy) error {
	for {
		if err := e.RunCycle(ctx, hint); err != nil {
			return err
		}

		d := e.nextInterval()
		e.log.Info("sleeping until next cycle", zap.Duration("interval", d))
		if err := e.sleep(ctx, d); err != nil {
			return err
		}
	}
}

func (e *Engine) nextInterval() time.Duration {
	lo, hi := e.cfg.SleepBounds()
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(e.rng.Int63n(int64(hi-lo)))
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	deadline := e.now().Add(d)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !e.now().Before(deadline) {
				return nil
			}
		}
	}
}
