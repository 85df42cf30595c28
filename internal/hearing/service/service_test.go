package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"progression/internal/aggregate"
	"progression/internal/aggregate/store"
	"progression/internal/events"
	"progression/internal/hearing/service"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
	dErrors "progression/pkg/domain-errors"
	"progression/pkg/platform/sentinel"
	"progression/pkg/testutil"
)

type HearingServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemoryStore
	handlers map[events.Type]events.Handler

	kase     *models.ProsecutionCase
	hearing  id.HearingID
	court    events.CourtCentreData
	sittings []events.HearingDayData
}

func TestHearingServiceSuite(t *testing.T) {
	suite.Run(t, new(HearingServiceSuite))
}

func (s *HearingServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.handlers = service.New().Handlers()

	s.kase = testutil.NewCase("TFL4359536",
		testutil.NewDefendant("Taylor", testutil.NewOffence("TH68001"), testutil.NewOffence("TH68010")),
	)
	testutil.Seed(s.T(), s.store, s.kase)

	s.hearing = id.HearingID(uuid.New())
	s.court = events.CourtCentreData{ID: uuid.New(), Name: "Lavender Hill Magistrates' Court"}
	s.sittings = []events.HearingDayData{{SittingDay: testutil.FixedNow.AddDate(0, 0, 7), ListedDurationMinutes: 30}}
}

// apply runs one handler in its own workspace and commits on success.
func (s *HearingServiceSuite) apply(evt events.Event) ([]events.Intent, error) {
	ws := aggregate.NewWorkspace(s.store)
	intents, err := s.handlers[evt.EventType()](s.ctx, ws, evt)
	if err != nil {
		return nil, err
	}
	_, err = ws.Commit(s.ctx)
	return intents, err
}

func (s *HearingServiceSuite) mustApply(evt events.Event) []events.Intent {
	intents, err := s.apply(evt)
	s.Require().NoError(err)
	return intents
}

func listing(c *models.ProsecutionCase, offences ...id.OffenceID) events.HearingCaseData {
	out := events.HearingCaseData{ID: c.ID}
	for _, d := range c.Defendants {
		ref := events.HearingDefendantData{ID: d.ID}
		for _, o := range d.Offences {
			if len(offences) == 0 || containsOffence(offences, o.ID) {
				ref.Offences = append(ref.Offences, events.HearingOffenceData{ID: o.ID})
			}
		}
		if len(ref.Offences) > 0 {
			out.Defendants = append(out.Defendants, ref)
		}
	}
	return out
}

func containsOffence(list []id.OffenceID, o id.OffenceID) bool {
	for _, x := range list {
		if x == o {
			return true
		}
	}
	return false
}

func (s *HearingServiceSuite) offence(i int) id.OffenceID {
	return s.kase.Defendants[0].Offences[i].ID
}

func (s *HearingServiceSuite) confirm(hearingID id.HearingID, cases ...events.HearingCaseData) *events.HearingConfirmed {
	return &events.HearingConfirmed{
		HearingID:        hearingID,
		Type:             models.HearingType{Description: "First hearing"},
		CourtCentre:      s.court,
		HearingDays:      s.sittings,
		ProsecutionCases: cases,
	}
}

func (s *HearingServiceSuite) resulted(offences ...events.ResultedOffence) *events.HearingResulted {
	return &events.HearingResulted{
		HearingID:  s.hearing,
		SharedTime: testutil.FixedNow,
		ProsecutionCases: []events.ResultedCase{{
			CaseID: s.kase.ID,
			Defendants: []events.ResultedDefendant{{
				DefendantID: s.kase.Defendants[0].ID,
				Offences:    offences,
			}},
		}},
	}
}

func (s *HearingServiceSuite) TestConfirm() {
	s.Run("new hearing is created and mirrored on the case", func() {
		s.mustApply(s.confirm(s.hearing, listing(s.kase, s.offence(0))))

		h := testutil.LoadHearing(s.T(), s.store, s.hearing)
		s.Equal(models.HearingInitialised, h.Status)
		s.Require().Len(h.ProsecutionCases, 1)
		s.Equal([]id.OffenceID{s.offence(0)}, h.ProsecutionCases[0].Defendants[0].OffenceIDs)

		c := testutil.LoadCase(s.T(), s.store, s.kase.ID)
		summary, ok := c.HearingSummary(s.hearing)
		s.Require().True(ok)
		s.Equal(models.HearingInitialised, summary.ListingStatus)
		s.Equal(s.court.ID, summary.CourtCentre.ID)
	})

	s.Run("confirming again with more offences extends the hearing", func() {
		s.mustApply(s.confirm(s.hearing, listing(s.kase)))

		h := testutil.LoadHearing(s.T(), s.store, s.hearing)
		s.ElementsMatch([]id.OffenceID{s.offence(0), s.offence(1)}, h.ProsecutionCases[0].Defendants[0].OffenceIDs)
	})

	s.Run("redelivered confirmation changes nothing", func() {
		before := testutil.LoadHearing(s.T(), s.store, s.hearing)
		s.mustApply(s.confirm(s.hearing, listing(s.kase)))
		s.Equal(before, testutil.LoadHearing(s.T(), s.store, s.hearing))
	})

	s.Run("unknown case is reported as missing", func() {
		other := testutil.NewCase("TFL0000001", testutil.NewDefendant("Jones", testutil.NewOffence("CD71040")))
		_, err := s.apply(s.confirm(id.HearingID(uuid.New()), listing(other)))
		s.ErrorIs(err, sentinel.ErrNotFound)
		key, ok := aggregate.AsMissing(err)
		s.True(ok)
		s.Equal(aggregate.CaseKey(other.ID), key)
	})

	s.Run("offence that is not on the case violates an invariant", func() {
		bogus := listing(s.kase)
		bogus.Defendants[0].Offences = append(bogus.Defendants[0].Offences, events.HearingOffenceData{ID: id.OffenceID(uuid.New())})
		_, err := s.apply(s.confirm(id.HearingID(uuid.New()), bogus))
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *HearingServiceSuite) TestListingLifecycle() {
	s.mustApply(s.confirm(s.hearing, listing(s.kase)))

	s.Run("send for listing is idempotent", func() {
		s.mustApply(&events.HearingSentForListing{HearingID: s.hearing})
		s.mustApply(&events.HearingSentForListing{HearingID: s.hearing})

		c := testutil.LoadCase(s.T(), s.store, s.kase.ID)
		summary, _ := c.HearingSummary(s.hearing)
		s.Equal(models.HearingSentForListing, summary.ListingStatus)
	})

	s.Run("court room change is mirrored", func() {
		room := uuid.New()
		s.mustApply(&events.HearingCourtRoomChanged{HearingID: s.hearing, CourtCentre: events.CourtCentreData{ID: s.court.ID, RoomID: &room, RoomName: "Courtroom 2"}})

		c := testutil.LoadCase(s.T(), s.store, s.kase.ID)
		summary, _ := c.HearingSummary(s.hearing)
		s.Equal("Courtroom 2", summary.CourtCentre.RoomName)
	})

	s.Run("days correction replaces the sitting days", func() {
		day := testutil.FixedNow.AddDate(0, 0, 14)
		s.mustApply(&events.HearingDaysCorrected{HearingID: s.hearing, HearingDays: []events.HearingDayData{{SittingDay: day, ListedDurationMinutes: 60}}})

		h := testutil.LoadHearing(s.T(), s.store, s.hearing)
		s.Require().Len(h.HearingDays, 1)
		s.True(day.Equal(h.HearingDays[0].SittingDay))
	})
}

func (s *HearingServiceSuite) TestResult() {
	s.mustApply(s.confirm(s.hearing, listing(s.kase)))

	guilty := events.ResultedOffence{
		OffenceID:       s.offence(0),
		JudicialResults: []events.JudicialResultData{{ID: uuid.New(), Label: "Fine", Concluding: true}},
		Plea:            &events.PleaData{Value: "GUILTY"},
	}
	adjourned := events.ResultedOffence{
		OffenceID:       s.offence(1),
		JudicialResults: []events.JudicialResultData{{ID: uuid.New(), Label: "Adjourned sine die", Unscheduled: true}},
	}

	var intents []events.Intent
	s.Run("result marks the hearing and folds outcomes into the case", func() {
		intents = s.mustApply(s.resulted(guilty, adjourned))

		h := testutil.LoadHearing(s.T(), s.store, s.hearing)
		s.Equal(models.HearingResulted, h.Status)
		s.Require().NotNil(h.ResultedAt)

		c := testutil.LoadCase(s.T(), s.store, s.kase.ID)
		_, o, _ := c.Offence(s.offence(0))
		s.True(o.ProceedingsConcluded)
		s.Equal("GUILTY", o.Plea.Value)
		s.Len(o.JudicialResults, 1)

		s.Require().Len(intents, 1)
		s.Equal(events.OutHearingResultedCaseUpdated, intents[0].Type)
		s.Equal(aggregate.CaseKey(s.kase.ID), intents[0].Key)
		s.Equal(s.hearing.String(), intents[0].Subject)
	})

	s.Run("unscheduled offence moves to a spawned hearing", func() {
		spawnedID := service.UnscheduledHearingID(s.hearing)
		spawned := testutil.LoadHearing(s.T(), s.store, spawnedID)
		s.Equal(models.HearingInitialised, spawned.Status)
		s.Require().NotNil(spawned.SeedingHearingID)
		s.Equal(s.hearing, *spawned.SeedingHearingID)
		s.Equal([]id.OffenceID{s.offence(1)}, spawned.ProsecutionCases[0].Defendants[0].OffenceIDs)

		c := testutil.LoadCase(s.T(), s.store, s.kase.ID)
		_, ok := c.HearingSummary(spawnedID)
		s.True(ok)
	})

	s.Run("redelivered result appends nothing", func() {
		s.mustApply(s.resulted(guilty, adjourned))

		c := testutil.LoadCase(s.T(), s.store, s.kase.ID)
		_, o, _ := c.Offence(s.offence(0))
		s.Len(o.JudicialResults, 1)
		spawned := testutil.LoadHearing(s.T(), s.store, service.UnscheduledHearingID(s.hearing))
		s.Len(spawned.ProsecutionCases, 1)
	})

	s.Run("resulted hearing no longer takes new cases", func() {
		_, err := s.apply(&events.CasesAddedToHearing{HearingID: s.hearing, ProsecutionCases: []events.HearingCaseData{listing(s.kase)}})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("resulted hearing can be reopened under a new id", func() {
		reopened := id.HearingID(uuid.New())
		s.mustApply(&events.HearingReopened{HearingID: s.hearing, NewHearingID: reopened})
		s.mustApply(&events.HearingReopened{HearingID: s.hearing, NewHearingID: reopened})

		h := testutil.LoadHearing(s.T(), s.store, reopened)
		s.Equal(models.HearingInitialised, h.Status)
		s.Require().NotNil(h.ReopenedFromHearingID)
		s.Equal(s.hearing, *h.ReopenedFromHearingID)
		s.Equal(models.HearingResulted, testutil.LoadHearing(s.T(), s.store, s.hearing).Status)
	})
}

func (s *HearingServiceSuite) TestReopenRequiresResult() {
	s.mustApply(s.confirm(s.hearing, listing(s.kase)))
	_, err := s.apply(&events.HearingReopened{HearingID: s.hearing, NewHearingID: id.HearingID(uuid.New())})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *HearingServiceSuite) TestDelete() {
	s.mustApply(s.confirm(s.hearing, listing(s.kase)))

	s.Run("delete removes the case-side summary", func() {
		s.mustApply(&events.HearingDeleted{HearingID: s.hearing, Variant: models.DeletionUnallocated})

		h := testutil.LoadHearing(s.T(), s.store, s.hearing)
		s.Equal(models.HearingDeleted, h.Status)
		s.Equal(models.DeletionUnallocated, h.DeletionVariant)
		c := testutil.LoadCase(s.T(), s.store, s.kase.ID)
		_, ok := c.HearingSummary(s.hearing)
		s.False(ok)
	})

	s.Run("deleting twice is a no-op", func() {
		_, err := s.apply(&events.HearingDeleted{HearingID: s.hearing})
		s.NoError(err)
		s.Equal(models.DeletionUnallocated, testutil.LoadHearing(s.T(), s.store, s.hearing).DeletionVariant)
	})

	s.Run("deleted hearing cannot be resulted or corrected", func() {
		_, err := s.apply(s.resulted())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		_, err = s.apply(&events.HearingDaysCorrected{HearingID: s.hearing, HearingDays: s.sittings})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *HearingServiceSuite) TestRemoveOffences() {
	second := testutil.NewCase("TFL4359537", testutil.NewDefendant("Evans", testutil.NewOffence("MT10001")))
	testutil.Seed(s.T(), s.store, second)
	s.mustApply(s.confirm(s.hearing, listing(s.kase), listing(second)))

	s.Run("partial removal keeps the defendant", func() {
		intents := s.mustApply(&events.OffencesRemovedFromHearing{HearingID: s.hearing, OffenceIDs: []id.OffenceID{s.offence(1)}})
		s.Require().Len(intents, 1)
		s.Equal(events.OutDefendantOffencesChanged, intents[0].Type)

		h := testutil.LoadHearing(s.T(), s.store, s.hearing)
		hc, ok := h.Case(s.kase.ID)
		s.Require().True(ok)
		s.Equal([]id.OffenceID{s.offence(0)}, hc.Defendants[0].OffenceIDs)
	})

	s.Run("removing a case's last offence drops the case", func() {
		s.mustApply(&events.OffencesRemovedFromHearing{HearingID: s.hearing, OffenceIDs: []id.OffenceID{second.Defendants[0].Offences[0].ID}})

		h := testutil.LoadHearing(s.T(), s.store, s.hearing)
		s.Equal([]id.CaseID{s.kase.ID}, h.CaseIDs())

		c := testutil.LoadCase(s.T(), s.store, second.ID)
		_, ok := c.HearingSummary(s.hearing)
		s.False(ok)
	})
}

func (s *HearingServiceSuite) TestCounsel() {
	s.mustApply(s.confirm(s.hearing, listing(s.kase)))
	counsel := events.CounselData{ID: uuid.New(), FirstName: "Priya", LastName: "Shah", Status: "QC", DefendantIDs: []id.DefendantID{s.kase.Defendants[0].ID}}

	s.mustApply(&events.DefenceCounselAdded{HearingID: s.hearing, Counsel: counsel})
	s.mustApply(&events.DefenceCounselAdded{HearingID: s.hearing, Counsel: counsel})
	s.Len(testutil.LoadHearing(s.T(), s.store, s.hearing).DefenceCounsels, 1)

	counsel.Status = "KC"
	s.mustApply(&events.DefenceCounselUpdated{HearingID: s.hearing, Counsel: counsel})
	h := testutil.LoadHearing(s.T(), s.store, s.hearing)
	s.Require().Len(h.DefenceCounsels, 1)
	s.Equal("KC", h.DefenceCounsels[0].Status)

	s.mustApply(&events.DefenceCounselRemoved{HearingID: s.hearing, CounselID: counsel.ID})
	s.Empty(testutil.LoadHearing(s.T(), s.store, s.hearing).DefenceCounsels)
}

func (s *HearingServiceSuite) TestPleaAndVerdict() {
	pleaDate := testutil.FixedNow.Add(-24 * time.Hour)
	s.mustApply(&events.OffencePleaUpdated{
		HearingID: s.hearing,
		CaseID:    s.kase.ID,
		OffenceID: s.offence(0),
		Plea:      events.PleaData{Value: "NOT_GUILTY", Date: events.NewDate(pleaDate)},
	})
	s.mustApply(&events.OffenceVerdictUpdated{
		HearingID: s.hearing,
		CaseID:    s.kase.ID,
		OffenceID: s.offence(0),
		Verdict:   events.VerdictData{Value: "FOUND_NOT_GUILTY"},
	})

	c := testutil.LoadCase(s.T(), s.store, s.kase.ID)
	_, o, _ := c.Offence(s.offence(0))
	s.Equal("NOT_GUILTY", o.Plea.Value)
	s.Equal("FOUND_NOT_GUILTY", o.Verdict.Value)

	_, err := s.apply(&events.OffencePleaUpdated{CaseID: s.kase.ID, OffenceID: id.OffenceID(uuid.New()), Plea: events.PleaData{Value: "GUILTY"}})
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
