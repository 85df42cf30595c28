// Package projection maintains the read models the query API serves. Every
// document carries the version of the aggregate it was built from and a write
// only lands when that version is newer than the stored one, so a stale
// redelivery can never overwrite newer state.
package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"progression/internal/aggregate"
	"progression/internal/progression/models"
	rm "progression/internal/projection/models"
)

// Store holds read-model documents.
type Store interface {
	// Upsert writes doc when its version is newer than the stored one and
	// reports whether it did.
	Upsert(ctx context.Context, doc rm.Document) (bool, error)
	Get(ctx context.Context, model rm.Model, id string) (rm.Document, error)
}

// SearchIndex holds the case search entries.
type SearchIndex interface {
	// Replace swaps every entry of a case when version is newer than the
	// indexed one.
	Replace(ctx context.Context, caseID string, version int64, entries []rm.SearchEntry) (bool, error)
	Search(ctx context.Context, q rm.SearchQuery) ([]rm.SearchEntry, error)
}

// Writer turns committed aggregate changes into read models.
type Writer struct {
	store       Store
	search      SearchIndex
	logger      *slog.Logger
	concurrency int
}

type Option func(*Writer)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) { w.logger = logger }
}

// WithConcurrency bounds how many aggregates are projected in parallel.
func WithConcurrency(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

func NewWriter(store Store, search SearchIndex, opts ...Option) *Writer {
	w := &Writer{
		store:       store,
		search:      search,
		logger:      slog.Default(),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Apply projects the snapshots of one commit. Documents of the same aggregate
// are written in a fixed order; different aggregates are written in parallel.
func (w *Writer) Apply(ctx context.Context, snaps []aggregate.Snapshot) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, snap := range snaps {
		g.Go(func() error {
			return w.project(gctx, snap)
		})
	}
	return g.Wait()
}

func (w *Writer) project(ctx context.Context, snap aggregate.Snapshot) error {
	docs, err := Build(snap)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		written, err := w.store.Upsert(ctx, doc)
		if err != nil {
			return fmt.Errorf("upsert %s %s: %w", doc.Model, doc.ID, err)
		}
		if !written {
			w.logger.DebugContext(ctx, "stale projection skipped", "model", doc.Model, "id", doc.ID, "version", doc.Version)
		}
	}
	if snap.Key.Kind != aggregate.KindCase {
		return nil
	}
	var c models.ProsecutionCase
	if err := json.Unmarshal(snap.Data, &c); err != nil {
		return fmt.Errorf("decode case %s: %w", snap.Key.ID, err)
	}
	if _, err := w.search.Replace(ctx, snap.Key.ID, snap.Version, SearchEntries(&c, snap.Version)); err != nil {
		return fmt.Errorf("index case %s: %w", snap.Key.ID, err)
	}
	return nil
}

// Rebuild projects every stored aggregate. It is used to warm in-memory read
// models from a durable aggregate store.
func (w *Writer) Rebuild(ctx context.Context, source aggregate.Store) (int, error) {
	total := 0
	for _, kind := range []aggregate.Kind{aggregate.KindCase, aggregate.KindHearing, aggregate.KindApplication} {
		snaps, err := source.List(ctx, kind)
		if err != nil {
			return total, fmt.Errorf("list %s: %w", kind, err)
		}
		if err := w.Apply(ctx, snaps); err != nil {
			return total, err
		}
		total += len(snaps)
	}
	w.logger.InfoContext(ctx, "projections rebuilt", "aggregates", total)
	return total, nil
}
