//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"progression/internal/aggregate"
	"progression/internal/aggregate/store"
	"progression/pkg/platform/sentinel"
	txcontext "progression/pkg/platform/tx"
	"progression/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "aggregates")
	s.Require().NoError(err)
}

func caseKey(id string) aggregate.Key {
	return aggregate.Key{Kind: aggregate.KindCase, ID: id}
}

func (s *PostgresStoreSuite) TestVersioning() {
	ctx := context.Background()

	s.Run("create and update", func() {
		v, err := s.store.Commit(ctx, caseKey("a"), 0, []byte(`{"urn":"A"}`))
		s.Require().NoError(err)
		s.Equal(int64(1), v)

		v, err = s.store.Commit(ctx, caseKey("a"), 1, []byte(`{"urn":"B"}`))
		s.Require().NoError(err)
		s.Equal(int64(2), v)

		snap, err := s.store.Load(ctx, caseKey("a"))
		s.Require().NoError(err)
		s.JSONEq(`{"urn":"B"}`, string(snap.Data))
	})

	s.Run("stale writes conflict", func() {
		_, err := s.store.Commit(ctx, caseKey("a"), 1, []byte(`{}`))
		s.ErrorIs(err, aggregate.ErrVersionConflict)

		_, err = s.store.Commit(ctx, caseKey("a"), 0, []byte(`{}`))
		s.ErrorIs(err, aggregate.ErrVersionConflict)
	})

	s.Run("missing aggregate", func() {
		_, err := s.store.Load(ctx, caseKey("nope"))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestConcurrentWritersOnlyOneWins() {
	ctx := context.Background()
	_, err := s.store.Commit(ctx, caseKey("race"), 0, []byte(`{}`))
	s.Require().NoError(err)

	const writers = 20
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.Commit(ctx, caseKey("race"), 1, []byte(`{"w":1}`)); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	snap, err := s.store.Load(ctx, caseKey("race"))
	s.Require().NoError(err)
	s.Equal(int64(2), snap.Version)
}

func (s *PostgresStoreSuite) TestRollbackDiscardsEveryWrite() {
	ctx := context.Background()
	runner := txcontext.SQLRunner{DB: s.postgres.DB}

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Commit(ctx, caseKey("tx-1"), 0, []byte(`{}`)); err != nil {
			return err
		}
		_, err := s.store.Commit(ctx, caseKey("tx-2"), 4, []byte(`{}`))
		return err
	})
	s.Require().ErrorIs(err, aggregate.ErrVersionConflict)

	_, err = s.store.Load(ctx, caseKey("tx-1"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
