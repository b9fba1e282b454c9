package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/bpark/internal/domain/sessions"
)

var ErrNotFound = errors.New("orders: not found")

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) GetByCodeAndSubscriber(ctx context.Context, confirmationCode, subscriberCode string) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT confirmation_code, subscriber_code, scheduled_at, slot, reminder_sent
		FROM scheduled_orders WHERE confirmation_code = $1 AND subscriber_code = $2
	`, confirmationCode, subscriberCode)

	var o Order
	if err := row.Scan(&o.ConfirmationCode, &o.SubscriberCode, &o.ScheduledAt, &o.Slot, &o.ReminderSent); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *Repo) CountOutstanding(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scheduled_orders`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SlotsOverlapping returns slots of reservations whose fixed-duration
// window overlaps [from, to).
func (r *Repo) SlotsOverlapping(ctx context.Context, from, to time.Time, duration time.Duration) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot FROM scheduled_orders
		WHERE $1 < scheduled_at + $3::interval AND $2 > scheduled_at
	`, from, to, duration.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

func (r *Repo) SlotsForDate(ctx context.Context, date string) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot FROM scheduled_orders WHERE scheduled_at::date = $1::date
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

// NextForSlot returns the scheduled time of the earliest reservation on
// the slot after the given moment, or nil when there is none.
func (r *Repo) NextForSlot(ctx context.Context, slot int, after time.Time) (*time.Time, error) {
	var next *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MIN(scheduled_at) FROM scheduled_orders WHERE slot = $1 AND scheduled_at > $2
	`, slot, after).Scan(&next)
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (r *Repo) Insert(ctx context.Context, o Order) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduled_orders (confirmation_code, subscriber_code, scheduled_at, slot, reminder_sent)
		VALUES ($1,$2,$3,$4,FALSE)
	`, o.ConfirmationCode, o.SubscriberCode, o.ScheduledAt, o.Slot)
	return err
}

// Claim converts a reservation into an active session atomically:
// the order row is deleted and the session row inserted in one
// transaction, so a failure leaves both tables untouched.
func (r *Repo) Claim(ctx context.Context, confirmationCode string, s sessions.Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM scheduled_orders WHERE confirmation_code = $1`, confirmationCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO active_sessions (slot, confirmation_code, subscriber_code, started_at, ends_at)
		VALUES ($1,$2,$3,$4,$5)
	`, s.Slot, s.ConfirmationCode, s.SubscriberCode, s.StartedAt, s.EndsAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ExpireOverdue cancels every reservation scheduled before the cutoff.
// Deletions and cancellation log entries ride in a single transaction:
// either the whole batch is cancelled or none of it. The cancelled
// orders are returned with subscriber contact data so the caller can
// apply penalties and send notifications afterwards.
func (r *Repo) ExpireOverdue(ctx context.Context, cutoff time.Time) ([]Contact, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.confirmation_code, o.subscriber_code, o.scheduled_at, o.slot, o.reminder_sent, s.name, s.email
		FROM scheduled_orders o JOIN subscribers s ON o.subscriber_code = s.code
		WHERE o.scheduled_at < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	overdue, err := scanContacts(rows)
	if err != nil {
		return nil, err
	}
	if len(overdue) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, o := range overdue {
		if _, err := tx.Exec(ctx, `DELETE FROM scheduled_orders WHERE confirmation_code = $1`, o.ConfirmationCode); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO activity_log (subscriber_code, activity_type, details)
			VALUES ($1, 'RESERVATION_CANCELLED', $2)
		`, o.SubscriberCode, fmt.Sprintf("Cancelled due to no-show for code %s", o.ConfirmationCode)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return overdue, nil
}

// DueForReminder returns reservations starting inside (from, to] whose
// reminder has not been sent yet.
func (r *Repo) DueForReminder(ctx context.Context, from, to time.Time) ([]Contact, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.confirmation_code, o.subscriber_code, o.scheduled_at, o.slot, o.reminder_sent, s.name, s.email
		FROM scheduled_orders o JOIN subscribers s ON o.subscriber_code = s.code
		WHERE o.reminder_sent = FALSE AND o.scheduled_at > $1 AND o.scheduled_at <= $2
	`, from, to)
	if err != nil {
		return nil, err
	}
	return scanContacts(rows)
}

func (r *Repo) MarkReminderSent(ctx context.Context, confirmationCode string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE scheduled_orders SET reminder_sent = TRUE WHERE confirmation_code = $1
	`, confirmationCode)
	return err
}

func (r *Repo) ListAll(ctx context.Context) ([]Contact, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.confirmation_code, o.subscriber_code, o.scheduled_at, o.slot, o.reminder_sent, s.name, s.email
		FROM scheduled_orders o JOIN subscribers s ON o.subscriber_code = s.code
		ORDER BY o.scheduled_at ASC
	`)
	if err != nil {
		return nil, err
	}
	return scanContacts(rows)
}

func scanContacts(rows pgx.Rows) ([]Contact, error) {
	defer rows.Close()
	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ConfirmationCode, &c.SubscriberCode, &c.ScheduledAt, &c.Slot, &c.ReminderSent, &c.Name, &c.Email); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanSlots(rows pgx.Rows) ([]int, error) {
	var out []int
	for rows.Next() {
		var slot int
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}
