package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/outbound"
	"progression/pkg/platform/sentinel"
	txcontext "progression/pkg/platform/tx"
)

// Postgres keeps the outbox in the outbox table. Stage joins the caller's
// transaction when the context carries one.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Stage(ctx context.Context, entries []outbound.Entry) error {
	query := `
		INSERT INTO outbox (id, subject, aggregate_type, aggregate_id, aggregate_version, event_type, payload, status, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (id) DO NOTHING
	`
	exec := txcontext.Exec(ctx, s.db)
	for _, e := range entries {
		_, err := exec.ExecContext(ctx, query,
			e.ID, e.Subject, string(e.Key.Kind), e.Key.ID, e.AggregateVersion,
			string(e.Type), []byte(e.Payload), string(outbound.StatusStaged), e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
	}
	return nil
}

func (s *Postgres) Release(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE outbox SET status = 'PENDING' WHERE id = ANY($1) AND status = 'STAGED'`
	if _, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("release outbox entries: %w", err)
	}
	return nil
}

func (s *Postgres) ReleaseStaged(ctx context.Context, cutoff time.Time) (int, error) {
	query := `UPDATE outbox SET status = 'PENDING' WHERE status = 'STAGED' AND created_at < $1`
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("release staged entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count released entries: %w", err)
	}
	return int(n), nil
}

const selectEntry = `SELECT o.id, o.event_type, o.aggregate_type, o.aggregate_id, o.aggregate_version, o.subject,
	o.payload, o.status, o.attempts, COALESCE(o.last_error, ''), o.next_attempt_at, o.created_at, o.published_at
	FROM outbox o`

// Due holds back an entry while an earlier entry of its aggregate is staged or
// backing off.
func (s *Postgres) Due(ctx context.Context, now time.Time, limit int) ([]outbound.Entry, error) {
	query := selectEntry + `
		WHERE o.status = 'PENDING' AND o.next_attempt_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM outbox p
			WHERE p.aggregate_type = o.aggregate_type
			  AND p.aggregate_id = o.aggregate_id
			  AND p.seq < o.seq
			  AND (p.status = 'STAGED' OR (p.status = 'PENDING' AND p.next_attempt_at > $1))
		  )
		ORDER BY o.seq`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

func (s *Postgres) MarkPublished(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE outbox SET status = 'PUBLISHED', attempts = attempts + 1, last_error = NULL, published_at = $2 WHERE id = $1`
	return s.exec(ctx, "mark published", query, id, at)
}

func (s *Postgres) MarkRetry(ctx context.Context, id string, attempts int, lastErr string, next time.Time) error {
	query := `UPDATE outbox SET attempts = $2, last_error = $3, next_attempt_at = $4 WHERE id = $1`
	return s.exec(ctx, "mark retry", query, id, attempts, lastErr, next)
}

func (s *Postgres) MarkDead(ctx context.Context, id string, attempts int, lastErr string) error {
	query := `UPDATE outbox SET status = 'DEAD', attempts = $2, last_error = $3 WHERE id = $1`
	return s.exec(ctx, "mark dead", query, id, attempts, lastErr)
}

func (s *Postgres) List(ctx context.Context, status outbound.Status, limit int) ([]outbound.Entry, error) {
	query := selectEntry + ` WHERE ($1 = '' OR o.status = $1) ORDER BY o.seq`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

func (s *Postgres) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) query(ctx context.Context, query string, args ...any) ([]outbound.Entry, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select outbox entries: %w", err)
	}
	defer rows.Close()

	var out []outbound.Entry
	for rows.Next() {
		var (
			e                   outbound.Entry
			evtType, kind, stat string
			payload             []byte
			publishedAt         sql.NullTime
		)
		if err := rows.Scan(&e.ID, &evtType, &kind, &e.Key.ID, &e.AggregateVersion, &e.Subject,
			&payload, &stat, &e.Attempts, &e.LastError, &e.NextAttemptAt, &e.CreatedAt, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.Type = events.OutboundType(evtType)
		e.Key.Kind = aggregate.Kind(kind)
		e.Status = outbound.Status(stat)
		e.Payload = payload
		e.NextAttemptAt = e.NextAttemptAt.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		if publishedAt.Valid {
			t := publishedAt.Time.UTC()
			e.PublishedAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
