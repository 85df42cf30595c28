package projection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"progression/internal/aggregate"
	"progression/internal/progression/models"
	rm "progression/internal/projection/models"
	id "progression/pkg/domain"
	"progression/pkg/testutil"
)

func snapshot(t *testing.T, key aggregate.Key, version int64, v any) aggregate.Snapshot {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return aggregate.Snapshot{Key: key, Version: version, Data: data}
}

func TestBuild_Case(t *testing.T) {
	c := testutil.NewCase("TFL1000001", testutil.NewDefendant("Smith", testutil.NewOffence("TH68001")))

	docs, err := Build(snapshot(t, aggregate.CaseKey(c.ID), 3, c))
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, rm.ModelCase, docs[0].Model)
	assert.Equal(t, rm.ModelCaseAtAGlance, docs[1].Model)
	for _, d := range docs {
		assert.Equal(t, c.ID.String(), d.ID)
		assert.Equal(t, int64(3), d.Version)
	}

	var caag rm.CaseAtAGlance
	require.NoError(t, json.Unmarshal(docs[1].Body, &caag))
	assert.Equal(t, "TFL1000001", caag.URN)
	require.Len(t, caag.Defendants, 1)
	assert.Equal(t, "Smith", caag.Defendants[0].LastName)
}

func TestBuild_GroupsHaveNoReadModels(t *testing.T) {
	group := &models.MatchGroup{MasterDefendantID: id.MasterDefendantID(uuid.New())}

	docs, err := Build(snapshot(t, aggregate.MasterDefendantKey(group.MasterDefendantID), 1, group))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestBuild_CorruptSnapshot(t *testing.T) {
	_, err := Build(aggregate.Snapshot{Key: aggregate.HearingKey(id.HearingID(uuid.New())), Version: 1, Data: []byte("{")})
	assert.Error(t, err)
}

func TestCaseAtAGlance(t *testing.T) {
	custodyStart := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	second := testutil.NewOffence("B")
	second.OrderIndex = 2
	first := testutil.NewOffence("A")
	first.OrderIndex = 1
	first.CustodyTimeLimit = &models.CustodyTimeLimit{TimeLimit: custodyStart.AddDate(0, 0, 56), DaysSpent: 12}
	first.Plea = &models.Plea{Value: "GUILTY"}
	first.ReportingRestrictions = []models.ReportingRestriction{{ID: uuid.New(), Label: "Section 45"}}

	d := testutil.NewDefendant("Jones", second, first)
	d.BailStatus = &models.BailStatus{Code: "C", Description: "Remanded in custody", CustodyStartDate: &custodyStart}
	d.AssociatedDefenceOrganisation = &models.DefenceOrganisation{Name: "Smith & Co"}
	c := testutil.NewCase("TFL1000002", d)

	later := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	unscheduled := models.HearingSummary{ID: id.HearingID(uuid.New()), ListingStatus: models.HearingSentForListing}
	c.Hearings = []models.HearingSummary{
		{ID: id.HearingID(uuid.New()), HearingDays: []models.HearingDay{{SittingDay: later}}},
		unscheduled,
		{ID: id.HearingID(uuid.New()), HearingDays: []models.HearingDay{{SittingDay: later}, {SittingDay: earlier}},
			Defendants: []models.HearingDefendantOffences{{DefendantID: d.ID}}},
	}

	caag := CaseAtAGlance(c)

	t.Run("hearings ordered by first sitting day, unscheduled last", func(t *testing.T) {
		require.Len(t, caag.HearingsAtAGlance, 3)
		assert.True(t, earlier.Equal(*caag.HearingsAtAGlance[0].FirstSitting))
		assert.Equal(t, []id.DefendantID{d.ID}, caag.HearingsAtAGlance[0].DefendantIDs)
		assert.Equal(t, unscheduled.ID, caag.HearingsAtAGlance[2].ID)
		assert.Nil(t, caag.HearingsAtAGlance[2].FirstSitting)
	})

	t.Run("offences ordered and summarised", func(t *testing.T) {
		offences := caag.Defendants[0].Offences
		require.Len(t, offences, 2)
		assert.Equal(t, first.ID, offences[0].ID)
		assert.Equal(t, "GUILTY", offences[0].Plea)
		assert.Equal(t, []string{"Section 45"}, offences[0].ReportingRestrictions)
	})

	t.Run("custody days are left for read time", func(t *testing.T) {
		ctl := caag.Defendants[0].Offences[0]
		require.NotNil(t, ctl.CustodyTimeLimit)
		assert.Zero(t, ctl.CustodyTimeLimit.DaysSpent)
		require.NotNil(t, ctl.CustodyAnchor)
		assert.True(t, custodyStart.Equal(*ctl.CustodyAnchor))
		assert.Equal(t, 12, first.CustodyTimeLimit.DaysSpent, "source case is not modified")
	})

	t.Run("defendant summary", func(t *testing.T) {
		summary := caag.Defendants[0]
		assert.Equal(t, "Remanded in custody", summary.BailStatus)
		assert.Equal(t, "Smith & Co", summary.DefenceOrganisation)
	})
}

func TestHearingAtAGlance(t *testing.T) {
	c := testutil.NewCase("TFL1000003", testutil.NewDefendant("Brown", testutil.NewOffence("A")))
	day2 := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	day1 := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	h := &models.Hearing{
		ID:               id.HearingID(uuid.New()),
		Status:           models.HearingInitialised,
		Type:             models.HearingType{Description: "Trial"},
		HearingDays:      []models.HearingDay{{SittingDay: day2}, {SittingDay: day1}},
		ProsecutionCases: []models.HearingCase{testutil.Listing(c)},
		DefenceCounsels: []models.DefenceCounsel{
			{ID: uuid.New(), Title: "Ms", FirstName: "Ada", LastName: "Lovelace"},
			{ID: uuid.New(), FirstName: "Alan", LastName: "Turing"},
		},
	}

	haag := HearingAtAGlance(h)

	assert.Equal(t, "Trial", haag.Type)
	assert.True(t, day1.Equal(haag.HearingDays[0].SittingDay))
	assert.True(t, day2.Equal(h.HearingDays[0].SittingDay), "source hearing is not reordered")
	assert.Equal(t, []string{"Ms Ada Lovelace", "Alan Turing"}, haag.DefenceCounsels)
	require.Len(t, haag.ProsecutionCases, 1)
	assert.Equal(t, c.ID, haag.ProsecutionCases[0].CaseID)
	assert.Equal(t, c.Defendants[0].ID, haag.ProsecutionCases[0].Defendants[0].DefendantID)
}

func TestSearchEntries(t *testing.T) {
	d1 := testutil.NewDefendant("Smith-Jones")
	d1.PersonDetails.FirstName = "Mary Ann"
	d2 := testutil.NewDefendant("Green")
	c := testutil.NewCase("TFL1000004", d1, d2)

	entries := SearchEntries(c, 7)

	require.Len(t, entries, 2)
	assert.Equal(t, int64(7), entries[0].Version)
	assert.ElementsMatch(t, []string{"tfl1000004", "mary", "ann", "smith-jones", "smith", "jones"}, entries[0].Tokens)
	assert.Equal(t, models.CaseStatusActive, entries[1].CaseStatus)
}
