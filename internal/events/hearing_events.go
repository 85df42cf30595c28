package events

import (
	"time"

	"github.com/google/uuid"

	"progression/internal/aggregate"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

const (
	TypeHearingConfirmed           Type = "hearing-confirmed"
	TypeHearingSentForListing      Type = "hearing-sent-for-listing"
	TypeHearingResulted            Type = "hearing-resulted"
	TypeHearingResultedCaseUpdated Type = "hearing-resulted-case-updated"
	TypeHearingReopened            Type = "hearing-reopened"
	TypeHearingDeleted             Type = "hearing-deleted"
	TypeHearingDaysCorrected       Type = "hearing-days-corrected"
	TypeHearingCourtRoomChanged    Type = "hearing-court-room-changed"
	TypeCasesAddedToHearing        Type = "cases-added-to-hearing"
	TypeOffencesRemovedFromHearing Type = "offences-removed-from-unallocated-hearing"
	TypeDefenceCounselAdded        Type = "defence-counsel-added"
	TypeDefenceCounselUpdated      Type = "defence-counsel-updated"
	TypeDefenceCounselRemoved      Type = "defence-counsel-removed"
	TypeOffencePleaUpdated         Type = "offence-plea-updated"
	TypeOffenceVerdictUpdated      Type = "offence-verdict-updated"
)

func init() {
	register(TypeHearingConfirmed, func() Event { return &HearingConfirmed{} })
	register(TypeHearingSentForListing, func() Event { return &HearingSentForListing{} })
	register(TypeHearingResulted, func() Event { return &HearingResulted{} })
	register(TypeHearingResultedCaseUpdated, func() Event { return &HearingResultedCaseUpdated{} })
	register(TypeHearingReopened, func() Event { return &HearingReopened{} })
	register(TypeHearingDeleted, func() Event { return &HearingDeleted{} })
	register(TypeHearingDaysCorrected, func() Event { return &HearingDaysCorrected{} })
	register(TypeHearingCourtRoomChanged, func() Event { return &HearingCourtRoomChanged{} })
	register(TypeCasesAddedToHearing, func() Event { return &CasesAddedToHearing{} })
	register(TypeOffencesRemovedFromHearing, func() Event { return &OffencesRemovedFromHearing{} })
	register(TypeDefenceCounselAdded, func() Event { return &DefenceCounselAdded{} })
	register(TypeDefenceCounselUpdated, func() Event { return &DefenceCounselUpdated{} })
	register(TypeDefenceCounselRemoved, func() Event { return &DefenceCounselRemoved{} })
	register(TypeOffencePleaUpdated, func() Event { return &OffencePleaUpdated{} })
	register(TypeOffenceVerdictUpdated, func() Event { return &OffenceVerdictUpdated{} })
}

func hearingCorrelation(hearingID id.HearingID, cases ...HearingCaseData) Correlation {
	c := Correlation{HearingIDs: []id.HearingID{hearingID}}
	if !hearingID.IsNil() {
		c.Primary = aggregate.HearingKey(hearingID)
	}
	for _, hc := range cases {
		c.CaseIDs = append(c.CaseIDs, hc.ID)
		for _, d := range hc.Defendants {
			c.DefendantIDs = append(c.DefendantIDs, d.ID)
		}
	}
	return c
}

// HearingConfirmed lists cases, defendants and offences into a hearing. With
// ExtendedFromHearingID set it extends an existing hearing instead.
type HearingConfirmed struct {
	HearingID             id.HearingID       `json:"hearingId"`
	ExtendedFromHearingID *id.HearingID      `json:"extendedFromHearingId,omitempty"`
	Type                  models.HearingType `json:"type"`
	JurisdictionType      string             `json:"jurisdictionType,omitempty"`
	CourtCentre           CourtCentreData    `json:"courtCentre"`
	HearingDays           []HearingDayData   `json:"hearingDays"`
	ProsecutionCases      []HearingCaseData  `json:"prosecutionCases"`
	CourtApplicationIDs   []id.ApplicationID `json:"courtApplicationIds,omitempty"`
}

func (e *HearingConfirmed) EventType() Type { return TypeHearingConfirmed }

func (e *HearingConfirmed) Validate() error {
	v := newValidator()
	v.check(e.CourtCentre.ID != uuid.Nil, "courtCentre.id is required")
	v.check(len(e.ProsecutionCases) > 0 || len(e.CourtApplicationIDs) > 0, "prosecutionCases or courtApplicationIds is required")
	for _, c := range e.ProsecutionCases {
		c.validate(v, "prosecutionCases")
	}
	for _, d := range e.HearingDays {
		d.validate(v, "hearingDays")
	}
	return v.err()
}

func (e *HearingConfirmed) Correlate() Correlation {
	c := hearingCorrelation(e.HearingID, e.ProsecutionCases...)
	c.ApplicationIDs = append(c.ApplicationIDs, e.CourtApplicationIDs...)
	return c
}

type HearingSentForListing struct {
	HearingID id.HearingID `json:"hearingId"`
}

func (e *HearingSentForListing) EventType() Type { return TypeHearingSentForListing }

func (e *HearingSentForListing) Validate() error { return nil }

func (e *HearingSentForListing) Correlate() Correlation { return hearingCorrelation(e.HearingID) }

// ResultedCase carries results for the defendants of one case.
type ResultedCase struct {
	CaseID     id.CaseID           `json:"prosecutionCaseId"`
	Defendants []ResultedDefendant `json:"defendants"`
}

type ResultedDefendant struct {
	DefendantID          id.DefendantID               `json:"defendantId"`
	BailStatus           *BailStatusData              `json:"bailStatus,omitempty"`
	CustodyEstablishment *models.CustodyEstablishment `json:"custodyEstablishment,omitempty"`
	Offences             []ResultedOffence            `json:"offences"`
}

type ResultedOffence struct {
	OffenceID             id.OffenceID         `json:"offenceId"`
	JudicialResults       []JudicialResultData `json:"judicialResults,omitempty"`
	ReportingRestrictions []RestrictionData    `json:"reportingRestrictions,omitempty"`
	Plea                  *PleaData            `json:"plea,omitempty"`
	Verdict               *VerdictData         `json:"verdict,omitempty"`
	ProceedingsConcluded  bool                 `json:"proceedingsConcluded"`
}

// Concluded reports whether the offence's proceedings end with this result.
func (o ResultedOffence) Concluded() bool {
	if o.ProceedingsConcluded {
		return true
	}
	for _, r := range o.JudicialResults {
		if r.Concluding {
			return true
		}
	}
	return false
}

// Unscheduled reports whether a result asks for a future unscheduled listing.
func (o ResultedOffence) Unscheduled() bool {
	for _, r := range o.JudicialResults {
		if r.Unscheduled {
			return true
		}
	}
	return false
}

func (c ResultedCase) validate(v *validator, path string) {
	v.check(!c.CaseID.IsNil(), path+".prosecutionCaseId is required")
	for _, d := range c.Defendants {
		v.check(!d.DefendantID.IsNil(), path+".defendants.defendantId is required")
		for _, o := range d.Offences {
			v.check(!o.OffenceID.IsNil(), path+".defendants.offences.offenceId is required")
			for _, r := range o.JudicialResults {
				v.check(r.ID != uuid.Nil, path+".defendants.offences.judicialResults.judicialResultId is required")
			}
			for _, r := range o.ReportingRestrictions {
				v.check(r.ID != uuid.Nil, path+".defendants.offences.reportingRestrictions.id is required")
			}
		}
	}
}

// HearingResulted shares the outcome of a hearing.
type HearingResulted struct {
	HearingID        id.HearingID   `json:"hearingId"`
	SharedTime       time.Time      `json:"sharedTime"`
	ProsecutionCases []ResultedCase `json:"prosecutionCases"`
}

func (e *HearingResulted) EventType() Type { return TypeHearingResulted }

func (e *HearingResulted) Validate() error {
	v := newValidator()
	v.check(!e.SharedTime.IsZero(), "sharedTime is required")
	for _, c := range e.ProsecutionCases {
		c.validate(v, "prosecutionCases")
	}
	return v.err()
}

func (e *HearingResulted) Correlate() Correlation {
	c := hearingCorrelation(e.HearingID)
	for _, rc := range e.ProsecutionCases {
		c.CaseIDs = append(c.CaseIDs, rc.CaseID)
		for _, d := range rc.Defendants {
			c.DefendantIDs = append(c.DefendantIDs, d.DefendantID)
		}
	}
	return c
}

// HearingResultedCaseUpdated applies the case part of a result to one case.
type HearingResultedCaseUpdated struct {
	HearingID       id.HearingID `json:"hearingId"`
	SharedTime      time.Time    `json:"sharedTime"`
	ProsecutionCase ResultedCase `json:"prosecutionCase"`
}

func (e *HearingResultedCaseUpdated) EventType() Type { return TypeHearingResultedCaseUpdated }

func (e *HearingResultedCaseUpdated) Validate() error {
	v := newValidator()
	v.check(!e.HearingID.IsNil(), "hearingId is required")
	v.check(!e.SharedTime.IsZero(), "sharedTime is required")
	e.ProsecutionCase.validate(v, "prosecutionCase")
	return v.err()
}

func (e *HearingResultedCaseUpdated) Correlate() Correlation {
	c := caseCorrelation(e.ProsecutionCase.CaseID)
	c.HearingIDs = []id.HearingID{e.HearingID}
	for _, d := range e.ProsecutionCase.Defendants {
		c.DefendantIDs = append(c.DefendantIDs, d.DefendantID)
	}
	return c
}

// HearingReopened lists a resulted hearing again as a new hearing.
type HearingReopened struct {
	HearingID    id.HearingID     `json:"hearingId"`
	NewHearingID id.HearingID     `json:"newHearingId"`
	HearingDays  []HearingDayData `json:"hearingDays,omitempty"`
}

func (e *HearingReopened) EventType() Type { return TypeHearingReopened }

func (e *HearingReopened) Validate() error {
	v := newValidator()
	v.check(!e.NewHearingID.IsNil(), "newHearingId is required")
	v.check(e.NewHearingID != e.HearingID, "newHearingId must differ from hearingId")
	for _, d := range e.HearingDays {
		d.validate(v, "hearingDays")
	}
	return v.err()
}

func (e *HearingReopened) Correlate() Correlation {
	c := hearingCorrelation(e.HearingID)
	c.HearingIDs = append(c.HearingIDs, e.NewHearingID)
	return c
}

// HearingDeleted covers the allocated, unallocated and generic delete variants.
type HearingDeleted struct {
	HearingID id.HearingID           `json:"hearingId"`
	Variant   models.DeletionVariant `json:"variant"`
}

func (e *HearingDeleted) EventType() Type { return TypeHearingDeleted }

func (e *HearingDeleted) Validate() error {
	v := newValidator()
	switch e.Variant {
	case "", models.DeletionAllocated, models.DeletionUnallocated, models.DeletionGeneric:
	default:
		v.check(false, "variant must be ALLOCATED, UNALLOCATED or GENERIC")
	}
	return v.err()
}

func (e *HearingDeleted) Correlate() Correlation { return hearingCorrelation(e.HearingID) }

type HearingDaysCorrected struct {
	HearingID   id.HearingID     `json:"hearingId"`
	HearingDays []HearingDayData `json:"hearingDays"`
}

func (e *HearingDaysCorrected) EventType() Type { return TypeHearingDaysCorrected }

func (e *HearingDaysCorrected) Validate() error {
	v := newValidator()
	v.check(len(e.HearingDays) > 0, "hearingDays must not be empty")
	for _, d := range e.HearingDays {
		d.validate(v, "hearingDays")
	}
	return v.err()
}

func (e *HearingDaysCorrected) Correlate() Correlation { return hearingCorrelation(e.HearingID) }

type HearingCourtRoomChanged struct {
	HearingID   id.HearingID    `json:"hearingId"`
	CourtCentre CourtCentreData `json:"courtCentre"`
}

func (e *HearingCourtRoomChanged) EventType() Type { return TypeHearingCourtRoomChanged }

func (e *HearingCourtRoomChanged) Validate() error {
	v := newValidator()
	v.check(e.CourtCentre.ID != uuid.Nil, "courtCentre.id is required")
	return v.err()
}

func (e *HearingCourtRoomChanged) Correlate() Correlation { return hearingCorrelation(e.HearingID) }

type CasesAddedToHearing struct {
	HearingID        id.HearingID      `json:"hearingId"`
	ProsecutionCases []HearingCaseData `json:"prosecutionCases"`
}

func (e *CasesAddedToHearing) EventType() Type { return TypeCasesAddedToHearing }

func (e *CasesAddedToHearing) Validate() error {
	v := newValidator()
	v.check(len(e.ProsecutionCases) > 0, "prosecutionCases must not be empty")
	for _, c := range e.ProsecutionCases {
		c.validate(v, "prosecutionCases")
	}
	return v.err()
}

func (e *CasesAddedToHearing) Correlate() Correlation {
	return hearingCorrelation(e.HearingID, e.ProsecutionCases...)
}

// OffencesRemovedFromHearing takes offences off a hearing that is not yet allocated.
type OffencesRemovedFromHearing struct {
	HearingID  id.HearingID   `json:"hearingId"`
	OffenceIDs []id.OffenceID `json:"offenceIds"`
}

func (e *OffencesRemovedFromHearing) EventType() Type { return TypeOffencesRemovedFromHearing }

func (e *OffencesRemovedFromHearing) Validate() error {
	v := newValidator()
	v.check(len(e.OffenceIDs) > 0, "offenceIds must not be empty")
	return v.err()
}

func (e *OffencesRemovedFromHearing) Correlate() Correlation { return hearingCorrelation(e.HearingID) }

type DefenceCounselAdded struct {
	HearingID id.HearingID `json:"hearingId"`
	Counsel   CounselData  `json:"defenceCounsel"`
}

func (e *DefenceCounselAdded) EventType() Type { return TypeDefenceCounselAdded }

func (e *DefenceCounselAdded) Validate() error {
	v := newValidator()
	e.Counsel.validate(v, "defenceCounsel")
	return v.err()
}

func (e *DefenceCounselAdded) Correlate() Correlation { return hearingCorrelation(e.HearingID) }

type DefenceCounselUpdated struct {
	HearingID id.HearingID `json:"hearingId"`
	Counsel   CounselData  `json:"defenceCounsel"`
}

func (e *DefenceCounselUpdated) EventType() Type { return TypeDefenceCounselUpdated }

func (e *DefenceCounselUpdated) Validate() error {
	v := newValidator()
	e.Counsel.validate(v, "defenceCounsel")
	return v.err()
}

func (e *DefenceCounselUpdated) Correlate() Correlation { return hearingCorrelation(e.HearingID) }

type DefenceCounselRemoved struct {
	HearingID id.HearingID `json:"hearingId"`
	CounselID uuid.UUID    `json:"defenceCounselId"`
}

func (e *DefenceCounselRemoved) EventType() Type { return TypeDefenceCounselRemoved }

func (e *DefenceCounselRemoved) Validate() error {
	v := newValidator()
	v.check(e.CounselID != uuid.Nil, "defenceCounselId is required")
	return v.err()
}

func (e *DefenceCounselRemoved) Correlate() Correlation { return hearingCorrelation(e.HearingID) }

// OffencePleaUpdated overwrites the plea on one offence.
type OffencePleaUpdated struct {
	HearingID id.HearingID `json:"hearingId"`
	CaseID    id.CaseID    `json:"prosecutionCaseId"`
	OffenceID id.OffenceID `json:"offenceId"`
	Plea      PleaData     `json:"plea"`
}

func (e *OffencePleaUpdated) EventType() Type { return TypeOffencePleaUpdated }

func (e *OffencePleaUpdated) Validate() error {
	v := newValidator()
	v.check(!e.OffenceID.IsNil(), "offenceId is required")
	v.check(e.Plea.Value != "", "plea.pleaValue is required")
	return v.err()
}

func (e *OffencePleaUpdated) Correlate() Correlation {
	c := caseCorrelation(e.CaseID)
	c.HearingIDs = []id.HearingID{e.HearingID}
	return c
}

// OffenceVerdictUpdated overwrites the verdict on one offence.
type OffenceVerdictUpdated struct {
	HearingID id.HearingID `json:"hearingId"`
	CaseID    id.CaseID    `json:"prosecutionCaseId"`
	OffenceID id.OffenceID `json:"offenceId"`
	Verdict   VerdictData  `json:"verdict"`
}

func (e *OffenceVerdictUpdated) EventType() Type { return TypeOffenceVerdictUpdated }

func (e *OffenceVerdictUpdated) Validate() error {
	v := newValidator()
	v.check(!e.OffenceID.IsNil(), "offenceId is required")
	v.check(e.Verdict.Value != "", "verdict.verdictType is required")
	return v.err()
}

func (e *OffenceVerdictUpdated) Correlate() Correlation {
	c := caseCorrelation(e.CaseID)
	c.HearingIDs = []id.HearingID{e.HearingID}
	return c
}
