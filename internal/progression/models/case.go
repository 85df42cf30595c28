package models

import (
	"slices"
	"time"

	"github.com/google/uuid"

	id "progression/pkg/domain"
)

type CaseStatus string

const (
	CaseStatusActive   CaseStatus = "ACTIVE"
	CaseStatusInactive CaseStatus = "INACTIVE"
)

// ProsecutionCase is the case aggregate root. Cases are never removed; they
// become INACTIVE once every defendant is concluded or the case is merged away.
type ProsecutionCase struct {
	ID                   id.CaseID            `json:"id"`
	URN                  string               `json:"urn"`
	Status               CaseStatus           `json:"caseStatus"`
	ProsecutingAuthority ProsecutingAuthority `json:"prosecutingAuthority"`
	InitiationDate       time.Time            `json:"initiationDate"`
	Defendants           []Defendant          `json:"defendants"`
	LinkedApplicationIDs []id.ApplicationID   `json:"linkedApplicationIds,omitempty"`
	RelatedReferences    []RelatedReference   `json:"relatedReferenceList,omitempty"`
	LinkGroupID          *id.LinkGroupID      `json:"linkGroupId,omitempty"`
	LinkedCases          []CaseRef            `json:"linkedCases,omitempty"`
	RelatedCases         []RelatedCase        `json:"relatedCases,omitempty"`
	Hearings             []HearingSummary     `json:"hearings,omitempty"`
	MergedIntoCaseID     *id.CaseID           `json:"mergedIntoCaseId,omitempty"`
}

type ProsecutingAuthority struct {
	ID   string `json:"prosecutionAuthorityId"`
	Code string `json:"prosecutionAuthorityCode"`
	Name string `json:"name,omitempty"`
}

type ReferenceRelation string

const (
	RelationMergedFrom ReferenceRelation = "MERGED_FROM"
	RelationMergedInto ReferenceRelation = "MERGED_INTO"
	RelationSplitFrom  ReferenceRelation = "SPLIT_FROM"
	RelationSplitTo    ReferenceRelation = "SPLIT_TO"
)

// RelatedReference records a merge or split between two cases.
type RelatedReference struct {
	CaseID   id.CaseID         `json:"prosecutionCaseId"`
	URN      string            `json:"reference"`
	Relation ReferenceRelation `json:"relation"`
}

// CaseRef points at another case. Status is only filled on read copies.
type CaseRef struct {
	CaseID id.CaseID  `json:"prosecutionCaseId"`
	URN    string     `json:"caseUrn"`
	Status CaseStatus `json:"caseStatus,omitempty"`
}

// RelatedCase is another case sharing a master defendant with this one.
type RelatedCase struct {
	CaseID            id.CaseID            `json:"prosecutionCaseId"`
	URN               string               `json:"caseUrn"`
	MasterDefendantID id.MasterDefendantID `json:"masterDefendantId"`
	DefendantIDs      []id.DefendantID     `json:"defendantIds"`
	Status            CaseStatus           `json:"caseStatus,omitempty"`
}

// HearingSummary is the case-side record of a hearing the case is listed in.
type HearingSummary struct {
	ID            id.HearingID               `json:"id"`
	ListingStatus HearingStatus              `json:"hearingListingStatus"`
	Type          HearingType                `json:"type"`
	CourtCentre   CourtCentre                `json:"courtCentre"`
	HearingDays   []HearingDay               `json:"hearingDays,omitempty"`
	Defendants    []HearingDefendantOffences `json:"defendants"`
}

type HearingDefendantOffences struct {
	DefendantID id.DefendantID `json:"defendantId"`
	OffenceIDs  []id.OffenceID `json:"offenceIds"`
}

// Defendant is owned by exactly one case at a time.
type Defendant struct {
	ID                            id.DefendantID        `json:"id"`
	MasterDefendantID             id.MasterDefendantID  `json:"masterDefendantId"`
	PersonDetails                 PersonDetails         `json:"personDefendant"`
	BailStatus                    *BailStatus           `json:"bailStatus,omitempty"`
	CustodyEstablishment          *CustodyEstablishment `json:"custodyEstablishment,omitempty"`
	Offences                      []Offence             `json:"offences"`
	AssociatedDefenceOrganisation *DefenceOrganisation  `json:"associatedDefenceOrganisation,omitempty"`
	LegalAidStatus                string                `json:"legalAidStatus,omitempty"`
	IsYouth                       bool                  `json:"isYouth"`
	ProceedingsConcluded          bool                  `json:"proceedingsConcluded"`
}

type PersonDetails struct {
	Title       string     `json:"title,omitempty"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
}

type BailStatus struct {
	Code             string     `json:"code"`
	Description      string     `json:"description,omitempty"`
	CustodyStartDate *time.Time `json:"custodyStartDate,omitempty"`
}

type CustodyEstablishment struct {
	Name string `json:"name"`
	Type string `json:"custody,omitempty"`
}

type DefenceOrganisation struct {
	OrganisationID    uuid.UUID `json:"organisationId"`
	Name              string    `json:"organisationName"`
	LaaContractNumber string    `json:"laaContractNumber,omitempty"`
	AssociatedBy      string    `json:"associatedBy,omitempty"`
	StartDate         time.Time `json:"startDate"`
}

// Offence belongs to exactly one defendant.
type Offence struct {
	ID                    id.OffenceID           `json:"id"`
	Code                  string                 `json:"offenceCode"`
	Title                 string                 `json:"offenceTitle"`
	Wording               string                 `json:"wording,omitempty"`
	StartDate             *time.Time             `json:"startDate,omitempty"`
	OrderIndex            int                    `json:"orderIndex"`
	CustodyTimeLimit      *CustodyTimeLimit      `json:"custodyTimeLimit,omitempty"`
	BaseListingNumber     int                    `json:"baseListingNumber"`
	ListingNumber         int                    `json:"listingNumber"`
	ReportingRestrictions []ReportingRestriction `json:"reportingRestrictions,omitempty"`
	RemovedRestrictions   []uuid.UUID            `json:"removedRestrictionIds,omitempty"`
	JudicialResults       []JudicialResult       `json:"judicialResults,omitempty"`
	Plea                  *Plea                  `json:"plea,omitempty"`
	Verdict               *Verdict               `json:"verdict,omitempty"`
	LAAReference          *LAAReference          `json:"laaApplnReference,omitempty"`
	ProceedingsConcluded  bool                   `json:"proceedingsConcluded"`
}

// CustodyTimeLimit keeps the anchor that days spent counts from. DaysSpent is
// filled at read time and is never persisted with a meaningful value.
type CustodyTimeLimit struct {
	TimeLimit     time.Time  `json:"timeLimit"`
	AnchorDate    *time.Time `json:"anchorDate,omitempty"`
	DaysSpent     int        `json:"daysSpent"`
	IsCtlExtended bool       `json:"isCtlExtended"`
}

type RestrictionSource string

const (
	RestrictionManual RestrictionSource = "MANUAL"
	RestrictionYouth  RestrictionSource = "YOUTH"
)

type ReportingRestriction struct {
	ID          uuid.UUID         `json:"id"`
	Label       string            `json:"label"`
	OrderedDate time.Time         `json:"orderedDate"`
	Source      RestrictionSource `json:"source"`
}

type JudicialResult struct {
	ID          uuid.UUID    `json:"judicialResultId"`
	HearingID   id.HearingID `json:"orderedHearingId"`
	Label       string       `json:"label"`
	OrderedDate time.Time    `json:"orderedDate"`
	Unscheduled bool         `json:"isUnscheduled"`
	Concluding  bool         `json:"isConcluding"`
}

type Plea struct {
	Value string    `json:"pleaValue"`
	Date  time.Time `json:"pleaDate"`
}

type Verdict struct {
	Value string    `json:"verdictType"`
	Date  time.Time `json:"verdictDate"`
}

type LAAReference struct {
	ApplicationReference string    `json:"applicationReference"`
	StatusCode           string    `json:"statusCode"`
	StatusDescription    string    `json:"statusDescription,omitempty"`
	StatusDate           time.Time `json:"statusDate"`
	LaaContractNumber    string    `json:"laaContractNumber,omitempty"`
}

// Defendant returns the defendant with the given id.
func (c *ProsecutionCase) Defendant(defendantID id.DefendantID) (*Defendant, bool) {
	for i := range c.Defendants {
		if c.Defendants[i].ID == defendantID {
			return &c.Defendants[i], true
		}
	}
	return nil, false
}

// Offence finds an offence and its owning defendant.
func (c *ProsecutionCase) Offence(offenceID id.OffenceID) (*Defendant, *Offence, bool) {
	for i := range c.Defendants {
		d := &c.Defendants[i]
		if o, ok := d.Offence(offenceID); ok {
			return d, o, true
		}
	}
	return nil, nil, false
}

// HearingSummary returns the case-side summary for a hearing.
func (c *ProsecutionCase) HearingSummary(hearingID id.HearingID) (*HearingSummary, bool) {
	for i := range c.Hearings {
		if c.Hearings[i].ID == hearingID {
			return &c.Hearings[i], true
		}
	}
	return nil, false
}

// RemoveHearing drops the summary for hearingID and reports whether it existed.
func (c *ProsecutionCase) RemoveHearing(hearingID id.HearingID) bool {
	for i := range c.Hearings {
		if c.Hearings[i].ID == hearingID {
			c.Hearings = append(c.Hearings[:i], c.Hearings[i+1:]...)
			return true
		}
	}
	return false
}

// ActiveHearingsFor lists hearings still in progress that include the defendant.
func (c *ProsecutionCase) ActiveHearingsFor(defendantID id.DefendantID) []id.HearingID {
	var out []id.HearingID
	for _, h := range c.Hearings {
		if !h.ListingStatus.Active() {
			continue
		}
		for _, d := range h.Defendants {
			if d.DefendantID == defendantID {
				out = append(out, h.ID)
				break
			}
		}
	}
	return out
}

// SetBailStatus replaces the bail status but keeps the earliest custody start
// seen, so days in custody only move back through a time limit extension.
func (d *Defendant) SetBailStatus(next *BailStatus) {
	if next == nil {
		return
	}
	updated := *next
	if d.BailStatus != nil && d.BailStatus.CustodyStartDate != nil {
		earliest := d.BailStatus.CustodyStartDate
		if updated.CustodyStartDate == nil || earliest.Before(*updated.CustodyStartDate) {
			start := *earliest
			updated.CustodyStartDate = &start
		}
	}
	d.BailStatus = &updated
}

func (d *Defendant) Offence(offenceID id.OffenceID) (*Offence, bool) {
	for i := range d.Offences {
		if d.Offences[i].ID == offenceID {
			return &d.Offences[i], true
		}
	}
	return nil, false
}

// HasRestriction reports whether a restriction with the id is already present.
func (o *Offence) HasRestriction(restrictionID uuid.UUID) bool {
	for _, r := range o.ReportingRestrictions {
		if r.ID == restrictionID {
			return true
		}
	}
	return false
}

// AddRestriction appends r unless a restriction with the same id exists or
// was explicitly removed.
func (o *Offence) AddRestriction(r ReportingRestriction) bool {
	if o.HasRestriction(r.ID) || slices.Contains(o.RemovedRestrictions, r.ID) {
		return false
	}
	o.ReportingRestrictions = append(o.ReportingRestrictions, r)
	return true
}

// RemoveRestriction drops the restriction and remembers the removal so derived
// restrictions are not added back.
func (o *Offence) RemoveRestriction(restrictionID uuid.UUID) bool {
	for i, r := range o.ReportingRestrictions {
		if r.ID == restrictionID {
			o.ReportingRestrictions = append(o.ReportingRestrictions[:i], o.ReportingRestrictions[i+1:]...)
			o.RemovedRestrictions = append(o.RemovedRestrictions, restrictionID)
			return true
		}
	}
	return false
}

// AddJudicialResult appends r unless a result with the same id exists.
func (o *Offence) AddJudicialResult(r JudicialResult) bool {
	for _, existing := range o.JudicialResults {
		if existing.ID == r.ID {
			return false
		}
	}
	o.JudicialResults = append(o.JudicialResults, r)
	return true
}
