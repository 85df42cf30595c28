//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"progression/internal/outbound"
	"progression/internal/outbound/store"
	txcontext "progression/pkg/platform/tx"
	"progression/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "outbox"))
}

func (s *PostgresStoreSuite) TestLifecycle() {
	first, second, other := entry("a", 1), entry("a", 2), entry("b", 1)
	staged := []outbound.Entry{first, second, other}
	s.Require().NoError(s.store.Stage(s.ctx, staged))

	due, err := s.store.Due(s.ctx, now, 10)
	s.Require().NoError(err)
	s.Empty(due, "staged entries are not due")

	s.Require().NoError(s.store.Release(s.ctx, ids(staged)))
	due, err = s.store.Due(s.ctx, now, 10)
	s.Require().NoError(err)
	s.Equal(ids(staged), ids(due))
	s.JSONEq(`{"ok":true}`, string(due[0].Payload))
	s.Equal(first.Key, due[0].Key)

	s.Require().NoError(s.store.MarkRetry(s.ctx, first.ID, 1, "boom", now.Add(time.Minute)))
	due, err = s.store.Due(s.ctx, now, 10)
	s.Require().NoError(err)
	s.Equal([]string{other.ID}, ids(due), "aggregate a waits behind its backing-off entry")

	s.Require().NoError(s.store.MarkPublished(s.ctx, other.ID, now))
	s.Require().NoError(s.store.MarkDead(s.ctx, first.ID, 10, "boom"))
	due, err = s.store.Due(s.ctx, now, 10)
	s.Require().NoError(err)
	s.Equal([]string{second.ID}, ids(due))

	published, err := s.store.List(s.ctx, outbound.StatusPublished, 0)
	s.Require().NoError(err)
	s.Require().Len(published, 1)
	s.Require().NotNil(published[0].PublishedAt)
	s.Equal(1, published[0].Attempts)
}

func (s *PostgresStoreSuite) TestStageIsIdempotent() {
	e := entry("a", 1)
	s.Require().NoError(s.store.Stage(s.ctx, []outbound.Entry{e}))
	s.Require().NoError(s.store.Release(s.ctx, []string{e.ID}))
	s.Require().NoError(s.store.MarkPublished(s.ctx, e.ID, now))

	s.Require().NoError(s.store.Stage(s.ctx, []outbound.Entry{e}))
	all, err := s.store.List(s.ctx, "", 0)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(outbound.StatusPublished, all[0].Status)
}

func (s *PostgresStoreSuite) TestStageRollsBackWithTransaction() {
	runner := txcontext.SQLRunner{DB: s.postgres.DB}
	err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
		if err := s.store.Stage(ctx, []outbound.Entry{entry("a", 1)}); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Require().ErrorIs(err, context.Canceled)

	all, err := s.store.List(s.ctx, "", 0)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *PostgresStoreSuite) TestReleaseStaged() {
	old := entry("a", 1)
	old.CreatedAt = now.Add(-time.Hour)
	s.Require().NoError(s.store.Stage(s.ctx, []outbound.Entry{old, entry("b", 1)}))

	n, err := s.store.ReleaseStaged(s.ctx, now.Add(-time.Minute))
	s.Require().NoError(err)
	s.Equal(1, n)
}
