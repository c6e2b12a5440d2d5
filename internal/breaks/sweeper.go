package breaks

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically closes breaks that ran past their expected end.
type Sweeper struct {
	tracker  *Tracker
	interval time.Duration
	log      zerolog.Logger
}

// NewSweeper creates a Sweeper. A non-positive interval means one minute.
func NewSweeper(t *Tracker, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{tracker: t, interval: interval, log: log}
}

// Run sweeps immediately and then once per interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("Starting break sweeper...")

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Break sweeper shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// SweepOnce runs a single expiry pass and returns the number of closed breaks.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	n, err := s.tracker.ExpireDue(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Break sweep failed")
		return n
	}
	if n > 0 {
		s.log.Info().Int("closed", n).Msg("Expired breaks closed")
	} else {
		s.log.Debug().Msg("Break sweep finished: nothing due")
	}
	return n
}
