package subscribers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("subscribers: not found")

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) GetByCode(ctx context.Context, code string) (*Subscriber, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT code, name, phone, email, national_id, late_count, frozen, created_at
		FROM subscribers WHERE code = $1
	`, code)

	var s Subscriber
	if err := row.Scan(&s.Code, &s.Name, &s.Phone, &s.Email, &s.NationalID, &s.LateCount, &s.Frozen, &s.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) Insert(ctx context.Context, s Subscriber) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscribers (code, name, phone, email, national_id)
		VALUES ($1,$2,$3,$4,$5)
	`, s.Code, s.Name, s.Phone, s.Email, s.NationalID)
	return err
}

func (r *Repo) UpdateInfo(ctx context.Context, code, name, phone, email string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscribers SET name=$2, phone=$3, email=$4 WHERE code=$1
	`, code, name, phone, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SetFrozen(ctx context.Context, code string, frozen bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE subscribers SET frozen=$2 WHERE code=$1`, code, frozen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementLateAndFreeze applies the lateness penalty in one transaction:
// bump late_count, freeze the account once it reaches the threshold, and
// record the freeze in the activity log. Returns the subscriber as it is
// after the penalty.
func (r *Repo) IncrementLateAndFreeze(ctx context.Context, code string) (*Subscriber, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE subscribers SET late_count = late_count + 1 WHERE code = $1
		RETURNING code, name, phone, email, national_id, late_count, frozen, created_at
	`, code)
	var s Subscriber
	if err := row.Scan(&s.Code, &s.Name, &s.Phone, &s.Email, &s.NationalID, &s.LateCount, &s.Frozen, &s.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if s.LateCount >= FreezeThreshold && !s.Frozen {
		if _, err := tx.Exec(ctx, `UPDATE subscribers SET frozen = TRUE WHERE code = $1`, code); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO activity_log (subscriber_code, activity_type, details)
			VALUES ($1, 'ACCOUNT_FROZEN', $2)
		`, code, fmt.Sprintf("Account frozen due to reaching %d late incidents.", s.LateCount)); err != nil {
			return nil, err
		}
		s.Frozen = true
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) List(ctx context.Context) ([]Subscriber, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT code, name, phone, email, national_id, late_count, frozen, created_at
		FROM subscribers ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var s Subscriber
		if err := rows.Scan(&s.Code, &s.Name, &s.Phone, &s.Email, &s.NationalID, &s.LateCount, &s.Frozen, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
