package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"progression/internal/aggregate"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

// FixedNow is the clock most domain tests run at.
var FixedNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

// NewOffence builds an open offence with a fresh id.
func NewOffence(code string) models.Offence {
	return models.Offence{
		ID:    id.OffenceID(uuid.New()),
		Code:  code,
		Title: "Offence " + code,
	}
}

// NewDefendant builds an adult defendant who is their own master defendant.
func NewDefendant(lastName string, offences ...models.Offence) models.Defendant {
	defendantID := id.DefendantID(uuid.New())
	dob := time.Date(1985, 4, 12, 0, 0, 0, 0, time.UTC)
	return models.Defendant{
		ID:                defendantID,
		MasterDefendantID: id.MasterDefendantID(defendantID),
		PersonDetails:     models.PersonDetails{FirstName: "Alex", LastName: lastName, DateOfBirth: &dob},
		Offences:          offences,
	}
}

// NewCase builds an active case.
func NewCase(urn string, defendants ...models.Defendant) *models.ProsecutionCase {
	return &models.ProsecutionCase{
		ID:                   id.CaseID(uuid.New()),
		URN:                  urn,
		Status:               models.CaseStatusActive,
		ProsecutingAuthority: models.ProsecutingAuthority{ID: "auth-1", Code: "TFL"},
		InitiationDate:       FixedNow.AddDate(0, -1, 0),
		Defendants:           defendants,
	}
}

// Listing references every offence of every defendant of c.
func Listing(c *models.ProsecutionCase) models.HearingCase {
	hc := models.HearingCase{CaseID: c.ID}
	for _, d := range c.Defendants {
		ref := models.HearingDefendantOffences{DefendantID: d.ID}
		for _, o := range d.Offences {
			ref.OffenceIDs = append(ref.OffenceIDs, o.ID)
		}
		hc.Defendants = append(hc.Defendants, ref)
	}
	return hc
}

// Seed creates each aggregate in store. Supported values are cases, hearings,
// applications and groups.
func Seed(t *testing.T, store aggregate.Store, values ...any) {
	t.Helper()
	ctx := context.Background()
	ws := aggregate.NewWorkspace(store)
	for _, v := range values {
		var err error
		switch agg := v.(type) {
		case *models.ProsecutionCase:
			err = ws.CreateCase(ctx, agg)
		case *models.Hearing:
			err = ws.CreateHearing(ctx, agg)
		case *models.CourtApplication:
			err = ws.CreateApplication(ctx, agg)
		case *models.MatchGroup:
			err = aggregate.Put(ctx, ws, aggregate.MasterDefendantKey(agg.MasterDefendantID), agg)
		case *models.LinkGroup:
			err = aggregate.Put(ctx, ws, aggregate.LinkGroupKey(agg.ID), agg)
		default:
			t.Fatalf("cannot seed %T", v)
		}
		require.NoError(t, err)
	}
	_, err := ws.Commit(ctx)
	require.NoError(t, err)
}

// Load reads the committed state of one aggregate.
func Load[T any](t *testing.T, store aggregate.Store, key aggregate.Key) *T {
	t.Helper()
	v, err := aggregate.Get[T](context.Background(), aggregate.NewWorkspace(store), key)
	require.NoError(t, err)
	return v
}

// LoadCase is Load for cases.
func LoadCase(t *testing.T, store aggregate.Store, caseID id.CaseID) *models.ProsecutionCase {
	t.Helper()
	return Load[models.ProsecutionCase](t, store, aggregate.CaseKey(caseID))
}

// LoadHearing is Load for hearings.
func LoadHearing(t *testing.T, store aggregate.Store, hearingID id.HearingID) *models.Hearing {
	t.Helper()
	return Load[models.Hearing](t, store, aggregate.HearingKey(hearingID))
}
