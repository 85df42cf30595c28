package outbound

import (
	"time"

	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

// ProsecutionCaseCreated carries the full case as committed.
type ProsecutionCaseCreated struct {
	ProsecutionCase models.ProsecutionCase `json:"prosecutionCase"`
}

type CasesReferredToCourt struct {
	CaseID     id.CaseID           `json:"prosecutionCaseId"`
	URN        string              `json:"caseUrn"`
	Defendants []ReferredDefendant `json:"defendants"`
}

type ReferredDefendant struct {
	DefendantID       id.DefendantID       `json:"defendantId"`
	MasterDefendantID id.MasterDefendantID `json:"masterDefendantId"`
	OffenceIDs        []id.OffenceID       `json:"offenceIds"`
}

// HearingResultedCaseUpdated reports a case after a hearing result, with the
// judicial results narrowed to that hearing.
type HearingResultedCaseUpdated struct {
	HearingID  id.HearingID        `json:"hearingId"`
	CaseID     id.CaseID           `json:"prosecutionCaseId"`
	CaseStatus models.CaseStatus   `json:"caseStatus"`
	Defendants []ResultedDefendant `json:"defendants"`
}

type ResultedDefendant struct {
	DefendantID          id.DefendantID    `json:"defendantId"`
	ProceedingsConcluded bool              `json:"proceedingsConcluded"`
	Offences             []ResultedOffence `json:"offences"`
}

type ResultedOffence struct {
	OffenceID            id.OffenceID            `json:"offenceId"`
	JudicialResults      []models.JudicialResult `json:"judicialResults"`
	Plea                 *models.Plea            `json:"plea,omitempty"`
	Verdict              *models.Verdict         `json:"verdict,omitempty"`
	ProceedingsConcluded bool                    `json:"proceedingsConcluded"`
}

type DefendantOffencesChanged struct {
	CaseID      id.CaseID        `json:"prosecutionCaseId"`
	DefendantID id.DefendantID   `json:"defendantId"`
	Offences    []OffenceListing `json:"offences"`
}

type OffenceListing struct {
	OffenceID     id.OffenceID `json:"offenceId"`
	Code          string       `json:"offenceCode"`
	Title         string       `json:"offenceTitle"`
	OrderIndex    int          `json:"orderIndex"`
	ListingNumber int          `json:"listingNumber"`
}

type DefendantLegalAidStatusUpdated struct {
	CaseID              id.CaseID                   `json:"prosecutionCaseId"`
	DefendantID         id.DefendantID              `json:"defendantId"`
	LegalAidStatus      string                      `json:"legalAidStatus"`
	DefenceOrganisation *models.DefenceOrganisation `json:"defenceOrganisation,omitempty"`
	Offences            []OffenceLegalAid           `json:"offences"`
}

type OffenceLegalAid struct {
	OffenceID    id.OffenceID         `json:"offenceId"`
	LAAReference *models.LAAReference `json:"laaApplnReference,omitempty"`
}

type CustodyTimeLimitExtended struct {
	CaseID        id.CaseID      `json:"prosecutionCaseId"`
	DefendantID   id.DefendantID `json:"defendantId"`
	OffenceID     id.OffenceID   `json:"offenceId"`
	TimeLimit     time.Time      `json:"timeLimit"`
	IsCtlExtended bool           `json:"isCtlExtended"`
}

type CourtApplicationCreated struct {
	CourtApplication models.CourtApplication `json:"courtApplication"`
}

type BoxworkAssignmentChanged struct {
	ApplicationID id.ApplicationID     `json:"applicationId"`
	AssignedUser  *models.AssignedUser `json:"assignedUser"`
}
