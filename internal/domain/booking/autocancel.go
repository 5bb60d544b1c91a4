package booking

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// AutoCancelSweeper periodically force-cancels same-day appointments left
// unresolved past closing time. It runs for the process lifetime and stops
// when its context is cancelled.
type AutoCancelSweeper struct {
	svc      *Service
	log      zerolog.Logger
	interval time.Duration
	backoff  time.Duration
}

func NewAutoCancelSweeper(svc *Service, log zerolog.Logger) *AutoCancelSweeper {
	return &AutoCancelSweeper{
		svc:      svc,
		log:      log.With().Str("sweeper", "auto_cancel").Logger(),
		interval: 5 * time.Minute,
		backoff:  time.Minute,
	}
}

// WithInterval overrides the tick interval.
func (w *AutoCancelSweeper) WithInterval(d time.Duration) *AutoCancelSweeper {
	w.interval = d
	return w
}

// WithBackoff overrides the retry delay used after a failed sweep.
func (w *AutoCancelSweeper) WithBackoff(d time.Duration) *AutoCancelSweeper {
	w.backoff = d
	return w
}

// Run loops until ctx is cancelled. A failed sweep retries after the backoff
// delay instead of waiting a full interval.
func (w *AutoCancelSweeper) Run(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("auto-cancel sweeper started")

	delay := w.nextDelay(w.RunOnce(ctx))
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("auto-cancel sweeper stopped")
			return
		case <-timer.C:
			timer.Reset(w.nextDelay(w.RunOnce(ctx)))
		}
	}
}

func (w *AutoCancelSweeper) nextDelay(err error) time.Duration {
	if err != nil {
		return w.backoff
	}
	return w.interval
}

// RunOnce performs a single sweep pass.
func (w *AutoCancelSweeper) RunOnce(ctx context.Context) error {
	cancelled, err := w.svc.SweepCancelDue(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("sweep failed")
		return err
	}
	if cancelled > 0 {
		w.log.Info().Int("cancelled", cancelled).Msg("swept unresolved appointments")
	}
	return nil
}
