// Package scheduler runs the background sweeps: cancelling no-show
// reservations once the grace period runs out, and sending reminders
// shortly before a reservation starts.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/Spok95/bpark/internal/domain/lot"
	"github.com/Spok95/bpark/internal/domain/orders"
	"github.com/Spok95/bpark/internal/domain/subscribers"
	"github.com/Spok95/bpark/internal/infra/metrics"
	"github.com/Spok95/bpark/internal/notify"
)

// ReminderWindow is how far ahead the reminder sweep looks.
const ReminderWindow = 16 * time.Minute

type OrderSweeper interface {
	ExpireOverdue(ctx context.Context, cutoff time.Time) ([]orders.Contact, error)
	DueForReminder(ctx context.Context, from, to time.Time) ([]orders.Contact, error)
	MarkReminderSent(ctx context.Context, confirmationCode string) error
}

type PenaltyStore interface {
	IncrementLateAndFreeze(ctx context.Context, code string) (*subscribers.Subscriber, error)
}

type Scheduler struct {
	log      *slog.Logger
	orders   OrderSweeper
	subs     PenaltyStore
	notifier notify.Notifier
	interval time.Duration
	now      func() time.Time
}

func New(log *slog.Logger, ord OrderSweeper, subs PenaltyStore, notifier notify.Notifier) *Scheduler {
	return &Scheduler{
		log: log, orders: ord, subs: subs, notifier: notifier,
		interval: time.Minute, now: time.Now,
	}
}

// Run executes both sweeps once per interval until the context is
// cancelled. Sweeps run on this goroutine, so ticks never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("sweep panicked", "panic", r)
		}
	}()
	s.expirySweep(ctx)
	s.reminderSweep(ctx)
}

// expirySweep cancels every reservation whose grace period has run out.
// Penalties and notifications happen after the cancellation transaction
// commits; a failed penalty is logged but never undoes the sweep.
func (s *Scheduler) expirySweep(ctx context.Context) {
	start := s.now()
	defer func() {
		metrics.SweepDuration.WithLabelValues("expiry").Observe(time.Since(start).Seconds())
	}()

	cancelled, err := s.orders.ExpireOverdue(ctx, start.Add(-lot.GracePeriod))
	if err != nil {
		s.log.Error("expiry sweep failed", "err", err)
		return
	}
	for _, o := range cancelled {
		metrics.ReservationsCancelled.Inc()
		s.log.Info("reservation cancelled", "code", o.ConfirmationCode, "subscriber", o.SubscriberCode)
		s.notifier.ReservationCancelled(o.Email, o.Name, o.ConfirmationCode, o.ScheduledAt)

		updated, err := s.subs.IncrementLateAndFreeze(ctx, o.SubscriberCode)
		if err != nil {
			s.log.Error("no-show penalty failed", "err", err, "subscriber", o.SubscriberCode)
			continue
		}
		if updated.Frozen {
			s.notifier.AccountFrozen(updated.Email, updated.Name, updated.LateCount)
		}
	}
}

func (s *Scheduler) reminderSweep(ctx context.Context) {
	start := s.now()
	defer func() {
		metrics.SweepDuration.WithLabelValues("reminder").Observe(time.Since(start).Seconds())
	}()

	due, err := s.orders.DueForReminder(ctx, start, start.Add(ReminderWindow))
	if err != nil {
		s.log.Error("reminder sweep failed", "err", err)
		return
	}
	for _, o := range due {
		s.notifier.Reminder(o.Email, o.Name, o.ConfirmationCode, o.ScheduledAt)
		if err := s.orders.MarkReminderSent(ctx, o.ConfirmationCode); err != nil {
			s.log.Error("reminder mark failed", "err", err, "code", o.ConfirmationCode)
			continue
		}
		metrics.RemindersSent.Inc()
	}
}
