package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"progression/internal/progression/models"
	rm "progression/internal/projection/models"
	id "progression/pkg/domain"
	txcontext "progression/pkg/platform/tx"
)

// PostgresSearch keeps the search index in case_search, one row per
// defendant, with tokens in a GIN indexed text array. case_search_versions
// records the indexed version per case so a case left without defendants
// still guards against stale writes.
type PostgresSearch struct {
	db *sql.DB
	tx txcontext.Runner
}

func NewPostgresSearch(db *sql.DB) *PostgresSearch {
	return &PostgresSearch{db: db, tx: txcontext.SQLRunner{DB: db}}
}

func (s *PostgresSearch) Replace(ctx context.Context, caseID string, version int64, entries []rm.SearchEntry) (bool, error) {
	written := false
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exec := txcontext.Exec(ctx, s.db)
		res, err := exec.ExecContext(ctx, `
			INSERT INTO case_search_versions (case_id, version) VALUES ($1, $2)
			ON CONFLICT (case_id) DO UPDATE SET version = EXCLUDED.version
			WHERE case_search_versions.version < EXCLUDED.version
		`, caseID, version)
		if err != nil {
			return fmt.Errorf("claim search version: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		if _, err := exec.ExecContext(ctx, `DELETE FROM case_search WHERE case_id = $1`, caseID); err != nil {
			return fmt.Errorf("clear search entries: %w", err)
		}
		for _, e := range entries {
			var dob sql.NullTime
			if e.DateOfBirth != nil {
				dob = sql.NullTime{Time: *e.DateOfBirth, Valid: true}
			}
			_, err := exec.ExecContext(ctx, `
				INSERT INTO case_search (case_id, defendant_id, version, urn, first_name, last_name, date_of_birth, case_status, tokens)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, caseID, e.DefendantID.String(), version, e.URN, e.FirstName, e.LastName, dob, string(e.CaseStatus), pq.Array(e.Tokens))
			if err != nil {
				return fmt.Errorf("insert search entry: %w", err)
			}
		}
		written = true
		return nil
	})
	return written, err
}

func (s *PostgresSearch) Search(ctx context.Context, q rm.SearchQuery) ([]rm.SearchEntry, error) {
	if q.Empty() {
		return nil, nil
	}
	var dob sql.NullTime
	if q.DateOfBirth != nil {
		dob = sql.NullTime{Time: *q.DateOfBirth, Valid: true}
	}
	query := `
		SELECT case_id, defendant_id, version, urn, first_name, last_name, date_of_birth, case_status, tokens
		FROM case_search
		WHERE tokens @> $1
		  AND ($2::date IS NULL OR date_of_birth = $2::date)
		ORDER BY last_name, first_name, urn, defendant_id
		LIMIT $3
	`
	terms := q.Terms
	if terms == nil {
		terms = []string{}
	}
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, pq.Array(terms), dob, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("search cases: %w", err)
	}
	defer rows.Close()

	var out []rm.SearchEntry
	for rows.Next() {
		var (
			e                   rm.SearchEntry
			caseID, defendantID string
			status              string
			dateOfBirth         sql.NullTime
		)
		if err := rows.Scan(&caseID, &defendantID, &e.Version, &e.URN, &e.FirstName, &e.LastName, &dateOfBirth, &status, pq.Array(&e.Tokens)); err != nil {
			return nil, fmt.Errorf("scan search entry: %w", err)
		}
		if e.CaseID, err = id.ParseCaseID(caseID); err != nil {
			return nil, fmt.Errorf("stored case id: %w", err)
		}
		if e.DefendantID, err = id.ParseDefendantID(defendantID); err != nil {
			return nil, fmt.Errorf("stored defendant id: %w", err)
		}
		if dateOfBirth.Valid {
			d := time.Date(dateOfBirth.Time.Year(), dateOfBirth.Time.Month(), dateOfBirth.Time.Day(), 0, 0, 0, 0, time.UTC)
			e.DateOfBirth = &d
		}
		e.CaseStatus = models.CaseStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
