package activity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Log(ctx context.Context, subscriberCode, activityType, details string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO activity_log (subscriber_code, activity_type, details)
		VALUES ($1,$2,$3)
	`, subscriberCode, activityType, details)
	return err
}

func (r *Repo) HistoryFor(ctx context.Context, subscriberCode string) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT subscriber_code, activity_type, details, at
		FROM activity_log WHERE subscriber_code = $1
		ORDER BY at DESC
	`, subscriberCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.SubscriberCode, &e.Type, &e.Details, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) ListAll(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.subscriber_code, COALESCE(s.name, ''), a.activity_type, a.details, a.at
		FROM activity_log a LEFT JOIN subscribers s ON a.subscriber_code = s.code
		ORDER BY a.at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.SubscriberCode, &e.Name, &e.Type, &e.Details, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DailyCounts aggregates entries of one activity type per day for the
// given month. Serves the monthly parking report (PARK_CAR) and the
// daily lateness report (LATE_CAR_RETRIEVAL).
func (r *Repo) DailyCounts(ctx context.Context, activityType string, year, month int) ([]DailyCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(at::date, 'YYYY-MM-DD') AS day, COUNT(*)::int
		FROM activity_log
		WHERE activity_type = $1
		  AND EXTRACT(YEAR FROM at) = $2 AND EXTRACT(MONTH FROM at) = $3
		GROUP BY at::date
		ORDER BY day ASC
	`, activityType, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDaily(rows)
}

func scanDaily(rows pgx.Rows) ([]DailyCount, error) {
	var out []DailyCount
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
