package booking

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ReminderSweeper sends the day's reminders when a tick lands inside the
// dispatch window at the configured hour. The window is as wide as the tick
// interval so exactly one tick falls inside it. A window missed while the
// process is down is not caught up later.
type ReminderSweeper struct {
	svc      *Service
	log      zerolog.Logger
	interval time.Duration
	hour     int
	now      func() time.Time
}

func NewReminderSweeper(svc *Service, log zerolog.Logger) *ReminderSweeper {
	return &ReminderSweeper{
		svc:      svc,
		log:      log.With().Str("sweeper", "reminder").Logger(),
		interval: time.Minute,
		hour:     5,
		now:      time.Now,
	}
}

// WithInterval overrides the tick interval.
func (w *ReminderSweeper) WithInterval(d time.Duration) *ReminderSweeper {
	w.interval = d
	return w
}

// WithHour overrides the dispatch hour.
func (w *ReminderSweeper) WithHour(hour int) *ReminderSweeper {
	w.hour = hour
	return w
}

// WithClock overrides the time source.
func (w *ReminderSweeper) WithClock(now func() time.Time) *ReminderSweeper {
	w.now = now
	return w
}

// Run loops until ctx is cancelled.
func (w *ReminderSweeper) Run(ctx context.Context) {
	w.log.Info().Int("hour", w.hour).Msg("reminder sweeper started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("reminder sweeper stopped")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("reminder dispatch failed")
			}
		}
	}
}

// RunOnce dispatches reminders when now is inside the dispatch window,
// otherwise it is a no-op.
func (w *ReminderSweeper) RunOnce(ctx context.Context) error {
	now := w.now()
	open := time.Date(now.Year(), now.Month(), now.Day(), w.hour, 0, 0, 0, now.Location())
	since := now.Sub(open)
	if since < 0 || since >= w.interval {
		return nil
	}
	sent, err := w.svc.SendReminders(ctx)
	if err != nil {
		return err
	}
	w.log.Info().Int("sent", sent).Msg("dispatched reminders")
	return nil
}
