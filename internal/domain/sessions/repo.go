package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("sessions: not found")

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) scanOne(row pgx.Row) (*Session, error) {
	var s Session
	if err := row.Scan(&s.Slot, &s.ConfirmationCode, &s.SubscriberCode, &s.StartedAt, &s.EndsAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) GetBySubscriber(ctx context.Context, subscriberCode string) (*Session, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT slot, confirmation_code, subscriber_code, started_at, ends_at
		FROM active_sessions WHERE subscriber_code = $1
	`, subscriberCode))
}

func (r *Repo) GetByConfirmationCode(ctx context.Context, code string) (*Session, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT slot, confirmation_code, subscriber_code, started_at, ends_at
		FROM active_sessions WHERE confirmation_code = $1
	`, code))
}

func (r *Repo) OccupiedSlots(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT slot FROM active_sessions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

// SlotsOverlapping returns the slots of sessions whose interval overlaps
// [from, to).
func (r *Repo) SlotsOverlapping(ctx context.Context, from, to time.Time) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot FROM active_sessions WHERE $1 < ends_at AND $2 > started_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

func (r *Repo) IsSlotOccupied(ctx context.Context, slot int) (bool, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM active_sessions WHERE slot = $1`, slot).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) Insert(ctx context.Context, s Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO active_sessions (slot, confirmation_code, subscriber_code, started_at, ends_at)
		VALUES ($1,$2,$3,$4,$5)
	`, s.Slot, s.ConfirmationCode, s.SubscriberCode, s.StartedAt, s.EndsAt)
	return err
}

func (r *Repo) ExtendBySubscriber(ctx context.Context, subscriberCode string, hours int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE active_sessions SET ends_at = ends_at + make_interval(hours => $2)
		WHERE subscriber_code = $1
	`, subscriberCode, hours)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteByConfirmationCode(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM active_sessions WHERE confirmation_code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) List(ctx context.Context) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot, confirmation_code, subscriber_code, started_at, ends_at
		FROM active_sessions ORDER BY slot
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.Slot, &s.ConfirmationCode, &s.SubscriberCode, &s.StartedAt, &s.EndsAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ParkingHoursPerSubscriber sums session spans per subscriber for the
// given month, busiest first.
func (r *Repo) ParkingHoursPerSubscriber(ctx context.Context, year, month int) ([]SubscriberHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.subscriber_code, s.name,
		       COALESCE(SUM(EXTRACT(EPOCH FROM (a.ends_at - a.started_at)) / 3600), 0)::int AS total_hours
		FROM active_sessions a JOIN subscribers s ON a.subscriber_code = s.code
		WHERE EXTRACT(YEAR FROM a.started_at) = $1 AND EXTRACT(MONTH FROM a.started_at) = $2
		GROUP BY a.subscriber_code, s.name
		ORDER BY total_hours DESC
	`, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubscriberHours
	for rows.Next() {
		var h SubscriberHours
		if err := rows.Scan(&h.SubscriberCode, &h.Name, &h.TotalHours); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// OccupancyPerSlot sums session spans per slot for the given month.
func (r *Repo) OccupancyPerSlot(ctx context.Context, year, month int) ([]SlotHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot,
		       COALESCE(SUM(EXTRACT(EPOCH FROM (ends_at - started_at)) / 3600), 0)::int AS total_hours
		FROM active_sessions
		WHERE EXTRACT(YEAR FROM started_at) = $1 AND EXTRACT(MONTH FROM started_at) = $2
		GROUP BY slot
		ORDER BY total_hours DESC
	`, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SlotHours
	for rows.Next() {
		var h SlotHours
		if err := rows.Scan(&h.Slot, &h.TotalHours); err != nil {
			return nil, err
		}
		out = append(out, h)
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
