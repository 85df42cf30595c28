package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/parking"
	id "progression/pkg/domain"
	txcontext "progression/pkg/platform/tx"
)

// Postgres stores records in the dead_letters table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Save(ctx context.Context, r parking.Record) error {
	envelope, err := json.Marshal(r.Envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	correlation, err := json.Marshal(nonNilCorrelation(r.Correlation))
	if err != nil {
		return fmt.Errorf("encode correlation: %w", err)
	}
	var waitingKind, waitingID sql.NullString
	if r.WaitingFor != nil {
		waitingKind = sql.NullString{String: string(r.WaitingFor.Kind), Valid: true}
		waitingID = sql.NullString{String: r.WaitingFor.ID, Valid: true}
	}
	query := `
		INSERT INTO dead_letters (event_id, kind, event_type, waiting_kind, waiting_id, reason, envelope, correlation, attempts, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9)
		ON CONFLICT (event_id, kind) DO UPDATE
		SET reason = EXCLUDED.reason,
		    waiting_kind = EXCLUDED.waiting_kind,
		    waiting_id = EXCLUDED.waiting_id,
		    correlation = EXCLUDED.correlation,
		    attempts = dead_letters.attempts + 1,
		    recorded_at = EXCLUDED.recorded_at
	`
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		r.EventID.String(), string(r.Kind), string(r.EventType), waitingKind, waitingID,
		r.Reason, envelope, correlation, r.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert dead letter: %w", err)
	}
	return nil
}

const selectRecord = `SELECT event_id, kind, event_type, waiting_kind, waiting_id, reason, envelope, correlation, attempts, recorded_at FROM dead_letters`

func (s *Postgres) List(ctx context.Context, f parking.Filter) ([]parking.Record, error) {
	query := selectRecord + ` WHERE ($1 = '' OR kind = $1) ORDER BY recorded_at, event_id`
	args := []any{string(f.Kind)}
	if f.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, f.Limit)
	}
	return s.query(ctx, query, args...)
}

func (s *Postgres) Waiting(ctx context.Context, key aggregate.Key) ([]parking.Record, error) {
	query := selectRecord + ` WHERE kind = 'PARKED' AND waiting_kind = $1 AND waiting_id = $2 ORDER BY recorded_at, event_id`
	return s.query(ctx, query, string(key.Kind), key.ID)
}

func (s *Postgres) Remove(ctx context.Context, eventID id.EventID, kind parking.Kind) error {
	query := `DELETE FROM dead_letters WHERE event_id = $1 AND kind = $2`
	if _, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, eventID.String(), string(kind)); err != nil {
		return fmt.Errorf("delete dead letter: %w", err)
	}
	return nil
}

func (s *Postgres) query(ctx context.Context, query string, args ...any) ([]parking.Record, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select dead letters: %w", err)
	}
	defer rows.Close()

	var out []parking.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (parking.Record, error) {
	var (
		r                      parking.Record
		eventID, kind, evtType string
		waitingKind, waitingID sql.NullString
		envelope, correlation  []byte
	)
	if err := rows.Scan(&eventID, &kind, &evtType, &waitingKind, &waitingID, &r.Reason, &envelope, &correlation, &r.Attempts, &r.RecordedAt); err != nil {
		return parking.Record{}, fmt.Errorf("scan dead letter: %w", err)
	}
	parsed, err := id.ParseEventID(eventID)
	if err != nil {
		return parking.Record{}, fmt.Errorf("stored event id: %w", err)
	}
	r.EventID = parsed
	r.Kind = parking.Kind(kind)
	r.EventType = events.Type(evtType)
	if waitingKind.Valid && waitingID.Valid {
		r.WaitingFor = &aggregate.Key{Kind: aggregate.Kind(waitingKind.String), ID: waitingID.String}
	}
	if err := json.Unmarshal(envelope, &r.Envelope); err != nil {
		return parking.Record{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := json.Unmarshal(correlation, &r.Correlation); err != nil {
		return parking.Record{}, fmt.Errorf("decode correlation: %w", err)
	}
	r.RecordedAt = r.RecordedAt.UTC()
	return r, nil
}

func nonNilCorrelation(c map[string][]string) map[string][]string {
	if c == nil {
		return map[string][]string{}
	}
	return c
}
