//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"progression/internal/projection"
	"progression/internal/projection/store"
	"progression/pkg/testutil"
	"progression/pkg/testutil/containers"
)

type PostgresSearchSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	search   *store.PostgresSearch
}

func TestPostgresSearchSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSearchSuite))
}

func (s *PostgresSearchSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.search = store.NewPostgresSearch(s.postgres.DB)
}

func (s *PostgresSearchSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "case_search", "case_search_versions"))
}

func (s *PostgresSearchSuite) TestReplaceAndSearch() {
	ctx := context.Background()
	c := testutil.NewCase("TFL3000001", testutil.NewDefendant("Okafor"), testutil.NewDefendant("Nguyen"))

	written, err := s.search.Replace(ctx, c.ID.String(), 2, projection.SearchEntries(c, 2))
	s.Require().NoError(err)
	s.True(written)

	s.Run("matches by name and date of birth", func() {
		hits, err := s.search.Search(ctx, projection.ParseQuery("okafor 12/04/1985", 10))
		s.Require().NoError(err)
		s.Require().Len(hits, 1)
		s.Equal(c.Defendants[0].ID, hits[0].DefendantID)
		s.True(time.Date(1985, 4, 12, 0, 0, 0, 0, time.UTC).Equal(*hits[0].DateOfBirth))
	})

	s.Run("matches every defendant by urn", func() {
		hits, err := s.search.Search(ctx, projection.ParseQuery("tfl3000001", 10))
		s.Require().NoError(err)
		s.Len(hits, 2)
		s.Equal("Nguyen", hits[0].LastName)
	})

	s.Run("stale replace is skipped", func() {
		written, err := s.search.Replace(ctx, c.ID.String(), 1, nil)
		s.Require().NoError(err)
		s.False(written)

		hits, err := s.search.Search(ctx, projection.ParseQuery("tfl3000001", 10))
		s.Require().NoError(err)
		s.Len(hits, 2)
	})

	s.Run("newer replace drops removed defendants", func() {
		c.Defendants = c.Defendants[:1]
		written, err := s.search.Replace(ctx, c.ID.String(), 3, projection.SearchEntries(c, 3))
		s.Require().NoError(err)
		s.True(written)

		hits, err := s.search.Search(ctx, projection.ParseQuery("nguyen", 10))
		s.Require().NoError(err)
		s.Empty(hits)
	})
}
