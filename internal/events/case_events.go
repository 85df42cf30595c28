package events

import (
	"strings"

	"github.com/google/uuid"

	"progression/internal/aggregate"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

const (
	TypeCaseInitiated                 Type = "case-initiated"
	TypeCasesReferredToCourt          Type = "cases-referred-to-court"
	TypeDefendantDetailsUpdated       Type = "defendant-details-updated"
	TypeDefendantOffencesUpdated      Type = "defendant-offences-updated"
	TypeCustodyTimeLimitExtended      Type = "custody-time-limit-extended"
	TypeReportingRestrictionRemoved   Type = "reporting-restriction-removed"
	TypeDefenceOrganisationAssociated Type = "defence-organisation-associated"
	TypeDefenceOrganisationRemoved    Type = "defence-organisation-disassociated"
	TypeRepresentationOrderReceived   Type = "representation-order-received"
)

func init() {
	register(TypeCaseInitiated, func() Event { return &CaseInitiated{} })
	register(TypeCasesReferredToCourt, func() Event { return &CasesReferredToCourt{} })
	register(TypeDefendantDetailsUpdated, func() Event { return &DefendantDetailsUpdated{} })
	register(TypeDefendantOffencesUpdated, func() Event { return &DefendantOffencesUpdated{} })
	register(TypeCustodyTimeLimitExtended, func() Event { return &CustodyTimeLimitExtended{} })
	register(TypeReportingRestrictionRemoved, func() Event { return &ReportingRestrictionRemoved{} })
	register(TypeDefenceOrganisationAssociated, func() Event { return &DefenceOrganisationAssociated{} })
	register(TypeDefenceOrganisationRemoved, func() Event { return &DefenceOrganisationDisassociated{} })
	register(TypeRepresentationOrderReceived, func() Event { return &RepresentationOrderReceived{} })
}

func caseCorrelation(caseID id.CaseID, defendants ...id.DefendantID) Correlation {
	c := Correlation{CaseIDs: []id.CaseID{caseID}}
	if !caseID.IsNil() {
		c.Primary = aggregate.CaseKey(caseID)
	}
	for _, d := range defendants {
		if !d.IsNil() {
			c.DefendantIDs = append(c.DefendantIDs, d)
		}
	}
	return c
}

// CaseInitiated creates a prosecution case from an initial charge or summons.
type CaseInitiated struct {
	ProsecutionCase CaseData `json:"prosecutionCase"`
}

func (e *CaseInitiated) EventType() Type { return TypeCaseInitiated }

func (e *CaseInitiated) Validate() error {
	v := newValidator()
	e.ProsecutionCase.validate(v, "prosecutionCase")
	return v.err()
}

func (e *CaseInitiated) Correlate() Correlation {
	c := caseCorrelation(e.ProsecutionCase.ID)
	for _, d := range e.ProsecutionCase.Defendants {
		c.DefendantIDs = append(c.DefendantIDs, d.ID)
	}
	return c
}

// CasesReferredToCourt carries the cases sent from charge to court.
type CasesReferredToCourt struct {
	ReferralReasonID *uuid.UUID `json:"referralReasonId,omitempty"`
	ProsecutionCases []CaseData `json:"prosecutionCases"`
}

func (e *CasesReferredToCourt) EventType() Type { return TypeCasesReferredToCourt }

func (e *CasesReferredToCourt) Validate() error {
	v := newValidator()
	v.check(len(e.ProsecutionCases) > 0, "prosecutionCases must not be empty")
	for _, c := range e.ProsecutionCases {
		c.validate(v, "prosecutionCases")
	}
	return v.err()
}

func (e *CasesReferredToCourt) Correlate() Correlation {
	var c Correlation
	for i, pc := range e.ProsecutionCases {
		if i == 0 && !pc.ID.IsNil() {
			c.Primary = aggregate.CaseKey(pc.ID)
		}
		c.CaseIDs = append(c.CaseIDs, pc.ID)
		for _, d := range pc.Defendants {
			c.DefendantIDs = append(c.DefendantIDs, d.ID)
		}
	}
	return c
}

// DefendantDetailsUpdated overwrites personal details, bail status and custody.
type DefendantDetailsUpdated struct {
	CaseID               id.CaseID                    `json:"prosecutionCaseId"`
	DefendantID          id.DefendantID               `json:"defendantId"`
	PersonDetails        PersonData                   `json:"personDefendant"`
	BailStatus           *BailStatusData              `json:"bailStatus,omitempty"`
	CustodyEstablishment *models.CustodyEstablishment `json:"custodyEstablishment,omitempty"`
}

func (e *DefendantDetailsUpdated) EventType() Type { return TypeDefendantDetailsUpdated }

func (e *DefendantDetailsUpdated) Validate() error {
	v := newValidator()
	v.check(!e.DefendantID.IsNil(), "defendantId is required")
	v.check(strings.TrimSpace(e.PersonDetails.LastName) != "", "personDefendant.lastName is required")
	return v.err()
}

func (e *DefendantDetailsUpdated) Correlate() Correlation {
	return caseCorrelation(e.CaseID, e.DefendantID)
}

// DefendantOffencesUpdated adds, amends and deletes offences on one defendant.
type DefendantOffencesUpdated struct {
	CaseID            id.CaseID      `json:"prosecutionCaseId"`
	DefendantID       id.DefendantID `json:"defendantId"`
	AddedOffences     []OffenceData  `json:"addedOffences,omitempty"`
	UpdatedOffences   []OffenceData  `json:"updatedOffences,omitempty"`
	DeletedOffenceIDs []id.OffenceID `json:"deletedOffences,omitempty"`
}

func (e *DefendantOffencesUpdated) EventType() Type { return TypeDefendantOffencesUpdated }

func (e *DefendantOffencesUpdated) Validate() error {
	v := newValidator()
	v.check(!e.DefendantID.IsNil(), "defendantId is required")
	v.check(len(e.AddedOffences)+len(e.UpdatedOffences)+len(e.DeletedOffenceIDs) > 0, "at least one offence change is required")
	for _, o := range e.AddedOffences {
		o.validate(v, "addedOffences")
	}
	for _, o := range e.UpdatedOffences {
		o.validate(v, "updatedOffences")
	}
	return v.err()
}

func (e *DefendantOffencesUpdated) Correlate() Correlation {
	return caseCorrelation(e.CaseID, e.DefendantID)
}

// CustodyTimeLimitExtended raises an offence's custody time limit.
type CustodyTimeLimitExtended struct {
	CaseID            id.CaseID     `json:"prosecutionCaseId"`
	OffenceID         id.OffenceID  `json:"offenceId"`
	HearingID         *id.HearingID `json:"hearingId,omitempty"`
	ExtendedTimeLimit Date          `json:"extendedTimeLimit"`
	ExtendedOn        Date          `json:"extendedOn"`
}

func (e *CustodyTimeLimitExtended) EventType() Type { return TypeCustodyTimeLimitExtended }

func (e *CustodyTimeLimitExtended) Validate() error {
	v := newValidator()
	v.check(!e.OffenceID.IsNil(), "offenceId is required")
	v.check(!e.ExtendedTimeLimit.IsZero(), "extendedTimeLimit is required")
	v.check(!e.ExtendedOn.IsZero(), "extendedOn is required")
	return v.err()
}

func (e *CustodyTimeLimitExtended) Correlate() Correlation {
	c := caseCorrelation(e.CaseID)
	if e.HearingID != nil {
		c.HearingIDs = append(c.HearingIDs, *e.HearingID)
	}
	return c
}

// ReportingRestrictionRemoved is the only way a restriction leaves an offence.
type ReportingRestrictionRemoved struct {
	CaseID        id.CaseID    `json:"prosecutionCaseId"`
	OffenceID     id.OffenceID `json:"offenceId"`
	RestrictionID uuid.UUID    `json:"reportingRestrictionId"`
}

func (e *ReportingRestrictionRemoved) EventType() Type { return TypeReportingRestrictionRemoved }

func (e *ReportingRestrictionRemoved) Validate() error {
	v := newValidator()
	v.check(!e.OffenceID.IsNil(), "offenceId is required")
	v.check(e.RestrictionID != uuid.Nil, "reportingRestrictionId is required")
	return v.err()
}

func (e *ReportingRestrictionRemoved) Correlate() Correlation {
	return caseCorrelation(e.CaseID)
}

// DefenceOrganisationAssociated records the firm acting for a defendant.
type DefenceOrganisationAssociated struct {
	CaseID       id.CaseID        `json:"prosecutionCaseId"`
	DefendantID  id.DefendantID   `json:"defendantId"`
	Organisation OrganisationData `json:"organisation"`
	AssociatedBy string           `json:"associatedBy,omitempty"`
	StartDate    Date             `json:"startDate"`
}

func (e *DefenceOrganisationAssociated) EventType() Type { return TypeDefenceOrganisationAssociated }

func (e *DefenceOrganisationAssociated) Validate() error {
	v := newValidator()
	v.check(!e.DefendantID.IsNil(), "defendantId is required")
	v.check(e.Organisation.ID != uuid.Nil, "organisation.organisationId is required")
	v.check(!e.StartDate.IsZero(), "startDate is required")
	return v.err()
}

func (e *DefenceOrganisationAssociated) Correlate() Correlation {
	return caseCorrelation(e.CaseID, e.DefendantID)
}

// DefenceOrganisationDisassociated ends an association.
type DefenceOrganisationDisassociated struct {
	CaseID         id.CaseID      `json:"prosecutionCaseId"`
	DefendantID    id.DefendantID `json:"defendantId"`
	OrganisationID uuid.UUID      `json:"organisationId"`
}

func (e *DefenceOrganisationDisassociated) EventType() Type { return TypeDefenceOrganisationRemoved }

func (e *DefenceOrganisationDisassociated) Validate() error {
	v := newValidator()
	v.check(!e.DefendantID.IsNil(), "defendantId is required")
	v.check(e.OrganisationID != uuid.Nil, "organisationId is required")
	return v.err()
}

func (e *DefenceOrganisationDisassociated) Correlate() Correlation {
	return caseCorrelation(e.CaseID, e.DefendantID)
}

// RepresentationOrderReceived is the legal aid decision for one offence.
type RepresentationOrderReceived struct {
	CaseID               id.CaseID         `json:"prosecutionCaseId"`
	DefendantID          id.DefendantID    `json:"defendantId"`
	OffenceID            id.OffenceID      `json:"offenceId"`
	ApplicationReference string            `json:"applicationReference"`
	StatusCode           string            `json:"statusCode"`
	StatusDescription    string            `json:"statusDescription,omitempty"`
	StatusDate           Date              `json:"statusDate"`
	LaaContractNumber    string            `json:"laaContractNumber,omitempty"`
	DefenceOrganisation  *OrganisationData `json:"defenceOrganisation,omitempty"`
}

func (e *RepresentationOrderReceived) EventType() Type { return TypeRepresentationOrderReceived }

func (e *RepresentationOrderReceived) Validate() error {
	v := newValidator()
	v.check(!e.DefendantID.IsNil(), "defendantId is required")
	v.check(!e.OffenceID.IsNil(), "offenceId is required")
	v.check(strings.TrimSpace(e.StatusCode) != "", "statusCode is required")
	v.check(strings.TrimSpace(e.ApplicationReference) != "", "applicationReference is required")
	return v.err()
}

func (e *RepresentationOrderReceived) Correlate() Correlation {
	return caseCorrelation(e.CaseID, e.DefendantID)
}
