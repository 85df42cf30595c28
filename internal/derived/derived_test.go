package derived

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

type DerivedSuite struct {
	suite.Suite
	now time.Time
}

func TestDerivedSuite(t *testing.T) {
	suite.Run(t, new(DerivedSuite))
}

func (s *DerivedSuite) SetupTest() {
	s.now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func newCase(offences ...models.Offence) *models.ProsecutionCase {
	return &models.ProsecutionCase{
		ID:     id.CaseID(uuid.New()),
		URN:    "TFL4359536",
		Status: models.CaseStatusActive,
		Defendants: []models.Defendant{{
			ID:            id.DefendantID(uuid.New()),
			PersonDetails: models.PersonDetails{FirstName: "Harry", LastName: "Kane", DateOfBirth: date(1980, 1, 1)},
			Offences:      offences,
		}},
	}
}

func listIn(c *models.ProsecutionCase, status models.HearingStatus, offences ...id.OffenceID) id.HearingID {
	hearingID := id.HearingID(uuid.New())
	c.Hearings = append(c.Hearings, models.HearingSummary{
		ID:            hearingID,
		ListingStatus: status,
		Defendants: []models.HearingDefendantOffences{{
			DefendantID: c.Defendants[0].ID,
			OffenceIDs:  offences,
		}},
	})
	return hearingID
}

func (s *DerivedSuite) TestListingNumbers() {
	s.Run("counts distinct non-deleted hearings on top of the base", func() {
		offenceID := id.OffenceID(uuid.New())
		c := newCase(models.Offence{ID: offenceID, BaseListingNumber: 1})
		listIn(c, models.HearingInitialised, offenceID)
		listIn(c, models.HearingResulted, offenceID, offenceID)
		listIn(c, models.HearingDeleted, offenceID)

		Recompute(c, s.now, DefaultYouthAge)

		s.Equal(3, c.Defendants[0].Offences[0].ListingNumber)
	})

	s.Run("removing a hearing returns the number to its previous value", func() {
		offenceID := id.OffenceID(uuid.New())
		c := newCase(models.Offence{ID: offenceID})
		hearingID := listIn(c, models.HearingInitialised, offenceID)
		Recompute(c, s.now, DefaultYouthAge)
		s.Equal(1, c.Defendants[0].Offences[0].ListingNumber)

		s.True(c.RemoveHearing(hearingID))
		Recompute(c, s.now, DefaultYouthAge)
		s.Equal(0, c.Defendants[0].Offences[0].ListingNumber)

		s.False(c.RemoveHearing(hearingID))
		Recompute(c, s.now, DefaultYouthAge)
		s.Equal(0, c.Defendants[0].Offences[0].ListingNumber)
	})
}

func (s *DerivedSuite) TestYouth() {
	s.Run("youth defendant gets one youth restriction per offence", func() {
		offenceID := id.OffenceID(uuid.New())
		c := newCase(models.Offence{ID: offenceID})
		c.Defendants[0].PersonDetails.DateOfBirth = date(2010, 3, 1)

		Recompute(c, s.now, DefaultYouthAge)
		Recompute(c, s.now.AddDate(0, 0, 1), DefaultYouthAge)

		s.True(c.Defendants[0].IsYouth)
		restrictions := c.Defendants[0].Offences[0].ReportingRestrictions
		s.Require().Len(restrictions, 1)
		s.Equal(YouthRestrictionLabel, restrictions[0].Label)
		s.Equal(models.RestrictionYouth, restrictions[0].Source)
	})

	s.Run("youth restriction is appended after existing manual ones", func() {
		offenceID := id.OffenceID(uuid.New())
		manual := models.ReportingRestriction{ID: uuid.New(), Label: "Order under s.45", Source: models.RestrictionManual}
		c := newCase(models.Offence{ID: offenceID, ReportingRestrictions: []models.ReportingRestriction{manual}})
		c.Defendants[0].PersonDetails.DateOfBirth = date(2010, 3, 1)

		Recompute(c, s.now, DefaultYouthAge)

		restrictions := c.Defendants[0].Offences[0].ReportingRestrictions
		s.Require().Len(restrictions, 2)
		s.Equal(manual.ID, restrictions[0].ID)
		s.Equal(models.RestrictionYouth, restrictions[1].Source)
	})

	s.Run("turning adult keeps the restriction", func() {
		offenceID := id.OffenceID(uuid.New())
		c := newCase(models.Offence{ID: offenceID})
		c.Defendants[0].PersonDetails.DateOfBirth = date(2006, 6, 20)

		Recompute(c, s.now, DefaultYouthAge)
		s.True(c.Defendants[0].IsYouth)

		Recompute(c, s.now.AddDate(0, 0, 10), DefaultYouthAge)
		s.False(c.Defendants[0].IsYouth)
		s.Len(c.Defendants[0].Offences[0].ReportingRestrictions, 1)
	})

	s.Run("explicitly removed youth restriction is not derived again", func() {
		offenceID := id.OffenceID(uuid.New())
		c := newCase(models.Offence{ID: offenceID})
		c.Defendants[0].PersonDetails.DateOfBirth = date(2010, 3, 1)
		Recompute(c, s.now, DefaultYouthAge)

		o := &c.Defendants[0].Offences[0]
		s.True(o.RemoveRestriction(YouthRestriction(offenceID, s.now).ID))
		Recompute(c, s.now, DefaultYouthAge)

		s.Empty(c.Defendants[0].Offences[0].ReportingRestrictions)
	})

	s.Run("age counts completed years", func() {
		s.Equal(17, Age(*date(2006, 6, 16), s.now))
		s.Equal(18, Age(*date(2006, 6, 15), s.now))
		s.False(IsYouth(nil, s.now, DefaultYouthAge))
	})
}

func (s *DerivedSuite) TestLegalAidStatus() {
	withCodes := func(codes ...string) *models.Defendant {
		d := &models.Defendant{}
		for _, code := range codes {
			o := models.Offence{ID: id.OffenceID(uuid.New())}
			if code != "" {
				o.LAAReference = &models.LAAReference{StatusCode: code}
			}
			d.Offences = append(d.Offences, o)
		}
		return d
	}

	s.Equal(LegalAidNone, LegalAidStatus(withCodes("")))
	s.Equal(LegalAidGranted, LegalAidStatus(withCodes("RE", "GR")))
	s.Equal(LegalAidRefused, LegalAidStatus(withCodes("RE", "RE")))
	s.Equal(LegalAidWithdrawn, LegalAidStatus(withCodes("RE", "WD")))
	s.Equal(LegalAidPending, LegalAidStatus(withCodes("AP")))
}

func (s *DerivedSuite) TestConclusion() {
	s.Run("case goes inactive only when every defendant is concluded", func() {
		c := newCase(
			models.Offence{ID: id.OffenceID(uuid.New()), ProceedingsConcluded: true},
			models.Offence{ID: id.OffenceID(uuid.New())},
		)
		Recompute(c, s.now, DefaultYouthAge)
		s.False(c.Defendants[0].ProceedingsConcluded)
		s.Equal(models.CaseStatusActive, c.Status)

		c.Defendants[0].Offences[1].ProceedingsConcluded = true
		Recompute(c, s.now, DefaultYouthAge)
		s.True(c.Defendants[0].ProceedingsConcluded)
		s.Equal(models.CaseStatusInactive, c.Status)
	})

	s.Run("merged case stays inactive", func() {
		c := newCase(models.Offence{ID: id.OffenceID(uuid.New())})
		into := id.CaseID(uuid.New())
		c.MergedIntoCaseID = &into
		Recompute(c, s.now, DefaultYouthAge)
		s.Equal(models.CaseStatusInactive, c.Status)
	})
}

func (s *DerivedSuite) TestCustodyDays() {
	s.Run("counts from the bail custody start", func() {
		c := newCase(models.Offence{ID: id.OffenceID(uuid.New()), CustodyTimeLimit: &models.CustodyTimeLimit{TimeLimit: *date(2024, 9, 1)}})
		c.Defendants[0].BailStatus = &models.BailStatus{Code: "C", CustodyStartDate: date(2024, 6, 1)}

		ApplyReadTime(c, s.now)
		s.Equal(14, c.Defendants[0].Offences[0].CustodyTimeLimit.DaysSpent)

		ApplyReadTime(c, s.now.AddDate(0, 0, 1))
		s.Equal(15, c.Defendants[0].Offences[0].CustodyTimeLimit.DaysSpent)
	})

	s.Run("extension anchor replaces the bail start", func() {
		ctl := &models.CustodyTimeLimit{TimeLimit: *date(2024, 12, 1), AnchorDate: date(2024, 6, 10), IsCtlExtended: true}
		c := newCase(models.Offence{ID: id.OffenceID(uuid.New()), CustodyTimeLimit: ctl})
		c.Defendants[0].BailStatus = &models.BailStatus{Code: "C", CustodyStartDate: date(2024, 1, 1)}

		ApplyReadTime(c, s.now)
		s.Equal(5, ctl.DaysSpent)
	})

	s.Run("never negative and zero without an anchor", func() {
		s.Equal(0, DaysSpent(date(2024, 7, 1), s.now))
		s.Equal(0, DaysSpent(nil, s.now))
	})
}
