package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"progression/internal/aggregate"
	"progression/pkg/platform/sentinel"
	txcontext "progression/pkg/platform/tx"
)

// PostgresStore persists snapshots in the aggregates table. Version checks are
// done in the write statement itself so concurrent committers cannot both win.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, key aggregate.Key) (aggregate.Snapshot, error) {
	query := `SELECT version, data FROM aggregates WHERE kind = $1 AND id = $2`
	snap := aggregate.Snapshot{Key: key}
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, string(key.Kind), key.ID).Scan(&snap.Version, &snap.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return aggregate.Snapshot{}, sentinel.ErrNotFound
	}
	if err != nil {
		return aggregate.Snapshot{}, fmt.Errorf("select aggregate: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) Commit(ctx context.Context, key aggregate.Key, expected int64, data []byte) (int64, error) {
	exec := txcontext.Exec(ctx, s.db)
	if expected == 0 {
		query := `
			INSERT INTO aggregates (kind, id, version, data, updated_at)
			VALUES ($1, $2, 1, $3, NOW())
			ON CONFLICT (kind, id) DO NOTHING
		`
		res, err := exec.ExecContext(ctx, query, string(key.Kind), key.ID, data)
		if err != nil {
			return 0, fmt.Errorf("insert aggregate: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, aggregate.ErrVersionConflict
		}
		return 1, nil
	}

	query := `
		UPDATE aggregates
		SET version = version + 1, data = $4, updated_at = NOW()
		WHERE kind = $1 AND id = $2 AND version = $3
	`
	res, err := exec.ExecContext(ctx, query, string(key.Kind), key.ID, expected, data)
	if err != nil {
		return 0, fmt.Errorf("update aggregate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return 0, aggregate.ErrVersionConflict
	}
	return expected + 1, nil
}

func (s *PostgresStore) List(ctx context.Context, kind aggregate.Kind) ([]aggregate.Snapshot, error) {
	query := `SELECT id, version, data FROM aggregates WHERE kind = $1 ORDER BY id`
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}
	defer rows.Close()

	var out []aggregate.Snapshot
	for rows.Next() {
		snap := aggregate.Snapshot{Key: aggregate.Key{Kind: kind}}
		if err := rows.Scan(&snap.Key.ID, &snap.Version, &snap.Data); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
