package session

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rustyeddy/trainer/market"
	"github.com/rustyeddy/trainer/risk"
)

// Feed error backoff when there is no tick interval to pace the loop.
const (
	minFeedBackoff = 10 * time.Millisecond
	maxFeedBackoff = time.Second
)

// Run ticks the session from src once per interval until ctx is done or src
// returns io.EOF. An interval of zero or less ticks as fast as src delivers.
// Source errors and rejected prices are logged and the tick is skipped.
// Without an interval, consecutive source errors back off exponentially.
// onSnapshot, when set, sees every tick that was applied.
func (s *Session) Run(ctx context.Context, src market.PriceSource, interval time.Duration, onSnapshot func(Snapshot)) error {
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}

	var backoff time.Duration
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		price, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.WithError(err).Warn("price feed")
			if tick == nil {
				backoff = min(max(2*backoff, minFeedBackoff), maxFeedBackoff)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoff):
				}
			}
			continue
		}
		backoff = 0

		snap, err := s.Tick(price)
		if err != nil {
			s.log.WithError(err).Warn("tick")
			if risk.IsViolation(err) {
				continue
			}
		}
		if onSnapshot != nil {
			onSnapshot(snap)
		}
	}
}
