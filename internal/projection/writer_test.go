package projection_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"progression/internal/aggregate"
	aggstore "progression/internal/aggregate/store"
	"progression/internal/progression/models"
	"progression/internal/projection"
	rm "progression/internal/projection/models"
	"progression/internal/projection/store"
	id "progression/pkg/domain"
	"progression/pkg/platform/sentinel"
	"progression/pkg/testutil"
)

type WriterSuite struct {
	suite.Suite
	docs   *store.InMemory
	search *store.InMemorySearch
	writer *projection.Writer
	ctx    context.Context
}

func TestWriterSuite(t *testing.T) {
	suite.Run(t, new(WriterSuite))
}

func (s *WriterSuite) SetupTest() {
	s.docs = store.NewInMemory()
	s.search = store.NewInMemorySearch()
	s.writer = projection.NewWriter(s.docs, s.search,
		projection.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		projection.WithConcurrency(2),
	)
	s.ctx = context.Background()
}

func (s *WriterSuite) caseSnapshot(c *models.ProsecutionCase, version int64) aggregate.Snapshot {
	data, err := json.Marshal(c)
	s.Require().NoError(err)
	return aggregate.Snapshot{Key: aggregate.CaseKey(c.ID), Version: version, Data: data}
}

func (s *WriterSuite) caag(c *models.ProsecutionCase) rm.CaseAtAGlance {
	doc, err := s.docs.Get(s.ctx, rm.ModelCaseAtAGlance, c.ID.String())
	s.Require().NoError(err)
	var out rm.CaseAtAGlance
	s.Require().NoError(json.Unmarshal(doc.Body, &out))
	return out
}

func (s *WriterSuite) TestApply() {
	c := testutil.NewCase("TFL2000001", testutil.NewDefendant("Smith"))

	s.Run("writes every model of the commit", func() {
		s.Require().NoError(s.writer.Apply(s.ctx, []aggregate.Snapshot{s.caseSnapshot(c, 1)}))

		for _, model := range []rm.Model{rm.ModelCase, rm.ModelCaseAtAGlance} {
			doc, err := s.docs.Get(s.ctx, model, c.ID.String())
			s.Require().NoError(err)
			s.Equal(int64(1), doc.Version)
		}
		hits, err := s.search.Search(s.ctx, projection.ParseQuery("smith", 0))
		s.Require().NoError(err)
		s.Len(hits, 1)
	})

	s.Run("newer versions replace", func() {
		c.Defendants[0].PersonDetails.LastName = "Smyth"
		s.Require().NoError(s.writer.Apply(s.ctx, []aggregate.Snapshot{s.caseSnapshot(c, 2)}))

		s.Equal("Smyth", s.caag(c).Defendants[0].LastName)
		hits, err := s.search.Search(s.ctx, projection.ParseQuery("smith", 0))
		s.Require().NoError(err)
		s.Empty(hits)
	})

	s.Run("stale redelivery does not overwrite", func() {
		stale := *c
		stale.Defendants = []models.Defendant{c.Defendants[0]}
		stale.Defendants[0].PersonDetails.LastName = "Smith"
		s.Require().NoError(s.writer.Apply(s.ctx, []aggregate.Snapshot{s.caseSnapshot(&stale, 1)}))

		s.Equal("Smyth", s.caag(c).Defendants[0].LastName)
		hits, err := s.search.Search(s.ctx, projection.ParseQuery("smyth", 0))
		s.Require().NoError(err)
		s.Len(hits, 1)
	})

	s.Run("group aggregates are ignored", func() {
		group := &models.LinkGroup{}
		data, err := json.Marshal(group)
		s.Require().NoError(err)
		snap := aggregate.Snapshot{Key: aggregate.Key{Kind: aggregate.KindLinkGroup, ID: "g"}, Version: 1, Data: data}

		s.NoError(s.writer.Apply(s.ctx, []aggregate.Snapshot{snap}))
	})
}

func (s *WriterSuite) TestApply_HearingAndApplication() {
	c := testutil.NewCase("TFL2000002", testutil.NewDefendant("Jones", testutil.NewOffence("A")))
	h := &models.Hearing{ID: testHearingID(), Status: models.HearingInitialised, ProsecutionCases: []models.HearingCase{testutil.Listing(c)}}
	a := &models.CourtApplication{ID: testApplicationID(), Status: models.ApplicationDraft}
	aggs := aggstore.NewInMemory()
	testutil.Seed(s.T(), aggs, h, a)

	snaps := append(s.list(aggs, aggregate.KindHearing), s.list(aggs, aggregate.KindApplication)...)
	s.Require().NoError(s.writer.Apply(s.ctx, snaps))

	for _, ref := range []struct {
		model rm.Model
		id    string
	}{
		{rm.ModelHearing, h.ID.String()},
		{rm.ModelHearingAtAGlance, h.ID.String()},
		{rm.ModelApplication, a.ID.String()},
	} {
		_, err := s.docs.Get(s.ctx, ref.model, ref.id)
		s.NoError(err, ref.model)
	}
	_, err := s.docs.Get(s.ctx, rm.ModelCase, c.ID.String())
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *WriterSuite) TestRebuild() {
	aggs := aggstore.NewInMemory()
	c1 := testutil.NewCase("TFL2000003", testutil.NewDefendant("Green"))
	c2 := testutil.NewCase("TFL2000004", testutil.NewDefendant("Green"))
	testutil.Seed(s.T(), aggs, c1, c2, &models.Hearing{ID: testHearingID(), Status: models.HearingSentForListing})

	n, err := s.writer.Rebuild(s.ctx, aggs)
	s.Require().NoError(err)
	s.Equal(3, n)

	hits, err := s.search.Search(s.ctx, projection.ParseQuery("green", 0))
	s.Require().NoError(err)
	s.Len(hits, 2)
}

func (s *WriterSuite) list(aggs aggregate.Store, kind aggregate.Kind) []aggregate.Snapshot {
	snaps, err := aggs.List(s.ctx, kind)
	s.Require().NoError(err)
	return snaps
}

func testHearingID() id.HearingID { return id.HearingID(uuid.New()) }

func testApplicationID() id.ApplicationID { return id.ApplicationID(uuid.New()) }
