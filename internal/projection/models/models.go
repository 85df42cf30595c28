package models

import (
	"encoding/json"
	"time"

	progression "progression/internal/progression/models"
	id "progression/pkg/domain"
)

// Model names a read model.
type Model string

const (
	ModelCase             Model = "case"
	ModelCaseAtAGlance    Model = "case-at-a-glance"
	ModelHearing          Model = "hearing"
	ModelHearingAtAGlance Model = "hearing-at-a-glance"
	ModelApplication      Model = "application"
)

// Document is one stored read model. Version is the version of the aggregate
// the body was built from.
type Document struct {
	Model   Model           `json:"model"`
	ID      string          `json:"id"`
	Version int64           `json:"version"`
	Body    json.RawMessage `json:"body"`
}

// CaseAtAGlance summarises a case for the case overview screen.
type CaseAtAGlance struct {
	CaseID               id.CaseID                        `json:"prosecutionCaseId"`
	URN                  string                           `json:"caseUrn"`
	Status               progression.CaseStatus           `json:"caseStatus"`
	ProsecutingAuthority progression.ProsecutingAuthority `json:"prosecutingAuthority"`
	InitiationDate       time.Time                        `json:"initiationDate"`
	Defendants           []DefendantAtAGlance             `json:"defendants"`
	HearingsAtAGlance    []HearingOverview                `json:"hearingsAtAGlance"`
	LinkedCases          []progression.CaseRef            `json:"linkedCases,omitempty"`
	RelatedCases         []progression.RelatedCase        `json:"relatedCases,omitempty"`
	RelatedReferences    []progression.RelatedReference   `json:"relatedReferenceList,omitempty"`
	LinkedApplicationIDs []id.ApplicationID               `json:"linkedApplicationIds,omitempty"`
	MergedIntoCaseID     *id.CaseID                       `json:"mergedIntoCaseId,omitempty"`
}

type DefendantAtAGlance struct {
	ID                   id.DefendantID       `json:"id"`
	MasterDefendantID    id.MasterDefendantID `json:"masterDefendantId"`
	FirstName            string               `json:"firstName"`
	LastName             string               `json:"lastName"`
	DateOfBirth          *time.Time           `json:"dateOfBirth,omitempty"`
	IsYouth              bool                 `json:"isYouth"`
	BailStatus           string               `json:"bailStatus,omitempty"`
	LegalAidStatus       string               `json:"legalAidStatus,omitempty"`
	DefenceOrganisation  string               `json:"defenceOrganisation,omitempty"`
	ProceedingsConcluded bool                 `json:"proceedingsConcluded"`
	Offences             []OffenceAtAGlance   `json:"offences"`
}

type OffenceAtAGlance struct {
	ID                    id.OffenceID                  `json:"id"`
	Code                  string                        `json:"offenceCode"`
	Title                 string                        `json:"offenceTitle"`
	OrderIndex            int                           `json:"orderIndex"`
	ListingNumber         int                           `json:"listingNumber"`
	CustodyTimeLimit      *progression.CustodyTimeLimit `json:"custodyTimeLimit,omitempty"`
	CustodyAnchor         *time.Time                    `json:"custodyAnchorDate,omitempty"`
	Plea                  string                        `json:"plea,omitempty"`
	Verdict               string                        `json:"verdict,omitempty"`
	ReportingRestrictions []string                      `json:"reportingRestrictions,omitempty"`
	ProceedingsConcluded  bool                          `json:"proceedingsConcluded"`
}

// HearingOverview is one entry of the case's hearings at a glance.
type HearingOverview struct {
	ID            id.HearingID              `json:"id"`
	Type          string                    `json:"type"`
	ListingStatus progression.HearingStatus `json:"hearingListingStatus"`
	CourtCentre   progression.CourtCentre   `json:"courtCentre"`
	FirstSitting  *time.Time                `json:"firstSittingDay,omitempty"`
	DefendantIDs  []id.DefendantID          `json:"defendantIds"`
}

// HearingAtAGlance summarises a hearing. Case references carry ids only; the
// query side enriches them with case details.
type HearingAtAGlance struct {
	HearingID           id.HearingID                `json:"hearingId"`
	Type                string                      `json:"type"`
	Status              progression.HearingStatus   `json:"hearingListingStatus"`
	JurisdictionType    string                      `json:"jurisdictionType,omitempty"`
	CourtCentre         progression.CourtCentre     `json:"courtCentre"`
	HearingDays         []progression.HearingDay    `json:"hearingDays"`
	ProsecutionCases    []HearingCaseAtAGlance      `json:"prosecutionCases"`
	DefenceCounsels     []string                    `json:"defenceCounsels,omitempty"`
	CourtApplicationIDs []id.ApplicationID          `json:"courtApplicationIds,omitempty"`
	ResultedAt          *time.Time                  `json:"resultedAt,omitempty"`
	DeletionVariant     progression.DeletionVariant `json:"deletionVariant,omitempty"`
}

type HearingCaseAtAGlance struct {
	CaseID     id.CaseID                 `json:"prosecutionCaseId"`
	URN        string                    `json:"caseUrn,omitempty"`
	Defendants []HearingDefendantSummary `json:"defendants"`
}

type HearingDefendantSummary struct {
	DefendantID id.DefendantID `json:"defendantId"`
	Name        string         `json:"name,omitempty"`
	OffenceIDs  []id.OffenceID `json:"offenceIds"`
}

// SearchEntry is one defendant row of the case search index.
type SearchEntry struct {
	CaseID      id.CaseID              `json:"prosecutionCaseId"`
	DefendantID id.DefendantID         `json:"defendantId"`
	Version     int64                  `json:"-"`
	URN         string                 `json:"caseUrn"`
	FirstName   string                 `json:"firstName"`
	LastName    string                 `json:"lastName"`
	DateOfBirth *time.Time             `json:"dateOfBirth,omitempty"`
	CaseStatus  progression.CaseStatus `json:"caseStatus"`
	Tokens      []string               `json:"-"`
}

// SearchQuery is a parsed free-text search. Every term must match a token.
type SearchQuery struct {
	Terms       []string
	DateOfBirth *time.Time
	Limit       int
}

// Empty reports whether the query has nothing to match on.
func (q SearchQuery) Empty() bool {
	return len(q.Terms) == 0 && q.DateOfBirth == nil
}

// CounselLabel is how a counsel is listed at a glance.
func CounselLabel(c progression.DefenceCounsel) string {
	if c.Title != "" {
		return c.Title + " " + c.FirstName + " " + c.LastName
	}
	return c.FirstName + " " + c.LastName
}
