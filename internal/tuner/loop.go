package tuner

import (
	"context"
	"errors"
	"time"
)

// RunLoop drives s with one analysis cycle per tick. Each cycle completes
// before the next tick is taken, so cycles never overlap and ticks that pile
// up while a cycle runs are dropped by the sender (as time.Ticker does).
//
// It returns nil once the session stops listening or ticks is closed, the
// context error when ctx ends, and the cycle error if reading audio fails.
func RunLoop(ctx context.Context, s *Session, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			if _, err := s.Cycle(); err != nil {
				if errors.Is(err, ErrNotListening) {
					return nil
				}
				return err
			}
		}
	}
}

// Run is RunLoop paced by a ticker firing every interval
func Run(ctx context.Context, s *Session, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	return RunLoop(ctx, s, ticker.C)
}
