package aggregate_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"progression/internal/aggregate"
	"progression/internal/aggregate/store"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
	"progression/pkg/platform/sentinel"
)

type WorkspaceSuite struct {
	suite.Suite
	store *store.InMemoryStore
	ctx   context.Context
}

func TestWorkspaceSuite(t *testing.T) {
	suite.Run(t, new(WorkspaceSuite))
}

func (s *WorkspaceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.ctx = context.Background()
}

func (s *WorkspaceSuite) seedCase() *models.ProsecutionCase {
	c := &models.ProsecutionCase{ID: id.CaseID(uuid.New()), URN: "TFL0001", Status: models.CaseStatusActive}
	ws := aggregate.NewWorkspace(s.store)
	s.Require().NoError(ws.CreateCase(s.ctx, c))
	_, err := ws.Commit(s.ctx)
	s.Require().NoError(err)
	return c
}

func (s *WorkspaceSuite) TestLoad() {
	s.Run("missing aggregate is reported with its key", func() {
		ws := aggregate.NewWorkspace(s.store)
		caseID := id.CaseID(uuid.New())
		_, err := ws.Case(s.ctx, caseID)
		s.Require().Error(err)
		s.ErrorIs(err, sentinel.ErrNotFound)

		key, ok := aggregate.AsMissing(err)
		s.True(ok)
		s.Equal(aggregate.CaseKey(caseID), key)
	})

	s.Run("repeated loads return the same pointer", func() {
		c := s.seedCase()
		ws := aggregate.NewWorkspace(s.store)
		first, err := ws.Case(s.ctx, c.ID)
		s.Require().NoError(err)
		second, err := ws.Case(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Same(first, second)
	})

	s.Run("creating over an existing aggregate fails", func() {
		c := s.seedCase()
		ws := aggregate.NewWorkspace(s.store)
		err := ws.CreateCase(s.ctx, &models.ProsecutionCase{ID: c.ID})
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *WorkspaceSuite) TestCommit() {
	s.Run("unchanged aggregates are not written", func() {
		c := s.seedCase()
		ws := aggregate.NewWorkspace(s.store)
		_, err := ws.Case(s.ctx, c.ID)
		s.Require().NoError(err)

		changes, err := ws.Commit(s.ctx)
		s.Require().NoError(err)
		s.Empty(changes)
	})

	s.Run("changed aggregate is written at the next version", func() {
		c := s.seedCase()
		ws := aggregate.NewWorkspace(s.store)
		loaded, err := ws.Case(s.ctx, c.ID)
		s.Require().NoError(err)
		loaded.Status = models.CaseStatusInactive

		changes, err := ws.Commit(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(changes, 1)
		s.Equal(int64(2), changes[0].Version)

		snaps := ws.Snapshots()
		s.Require().Len(snaps, 1)
		s.Equal(int64(2), snaps[0].Version)
	})

	s.Run("stale workspace loses with a version conflict", func() {
		c := s.seedCase()
		stale := aggregate.NewWorkspace(s.store)
		staleCase, err := stale.Case(s.ctx, c.ID)
		s.Require().NoError(err)

		fresh := aggregate.NewWorkspace(s.store)
		freshCase, err := fresh.Case(s.ctx, c.ID)
		s.Require().NoError(err)
		freshCase.URN = "TFL0002"
		_, err = fresh.Commit(s.ctx)
		s.Require().NoError(err)

		staleCase.URN = "TFL0003"
		_, err = stale.Commit(s.ctx)
		s.ErrorIs(err, aggregate.ErrVersionConflict)
	})

	s.Run("empty groups created in the workspace are not stored", func() {
		ws := aggregate.NewWorkspace(s.store)
		_, err := ws.MatchGroup(s.ctx, id.MasterDefendantID(uuid.New()))
		s.Require().NoError(err)
		_, err = ws.LinkGroup(s.ctx, id.LinkGroupID(uuid.New()))
		s.Require().NoError(err)

		changes, err := ws.Commit(s.ctx)
		s.Require().NoError(err)
		s.Empty(changes)
	})

	s.Run("commits follow ascending key order", func() {
		ws := aggregate.NewWorkspace(s.store)
		for i := 0; i < 5; i++ {
			s.Require().NoError(ws.CreateCase(s.ctx, &models.ProsecutionCase{ID: id.CaseID(uuid.New())}))
		}
		changes, err := ws.Commit(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(changes, 5)
		for i := 1; i < len(changes); i++ {
			s.True(changes[i-1].Key.Less(changes[i].Key))
		}
	})
}

func (s *WorkspaceSuite) TestMutate() {
	s.Run("retries from a fresh load after losing a race", func() {
		c := s.seedCase()
		calls := 0
		err := aggregate.Mutate(s.ctx, s.store, 3, func(ctx context.Context, ws *aggregate.Workspace) error {
			calls++
			loaded, err := ws.Case(ctx, c.ID)
			if err != nil {
				return err
			}
			if calls == 1 {
				other := aggregate.NewWorkspace(s.store)
				racer, err := other.Case(ctx, c.ID)
				s.Require().NoError(err)
				racer.URN = "RACER"
				_, err = other.Commit(ctx)
				s.Require().NoError(err)
			}
			loaded.Status = models.CaseStatusInactive
			_, err = ws.Commit(ctx)
			return err
		})
		s.Require().NoError(err)
		s.Equal(2, calls)

		ws := aggregate.NewWorkspace(s.store)
		final, err := ws.Case(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal("RACER", final.URN)
		s.Equal(models.CaseStatusInactive, final.Status)
	})

	s.Run("gives up after the attempts", func() {
		calls := 0
		err := aggregate.Mutate(s.ctx, s.store, 2, func(context.Context, *aggregate.Workspace) error {
			calls++
			return aggregate.ErrVersionConflict
		})
		s.ErrorIs(err, aggregate.ErrVersionConflict)
		s.Equal(2, calls)
	})
}
