package events

import (
	"strings"

	"progression/internal/aggregate"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

const (
	TypeCourtApplicationInitiated Type = "court-application-initiated"
	TypeApplicationFeeEdited      Type = "application-fee-edited"
	TypeBoxworkAssignmentChanged  Type = "boxwork-assignment-changed"
)

func init() {
	register(TypeCourtApplicationInitiated, func() Event { return &CourtApplicationInitiated{} })
	register(TypeApplicationFeeEdited, func() Event { return &ApplicationFeeEdited{} })
	register(TypeBoxworkAssignmentChanged, func() Event { return &BoxworkAssignmentChanged{} })
}

func applicationCorrelation(applicationID id.ApplicationID) Correlation {
	c := Correlation{ApplicationIDs: []id.ApplicationID{applicationID}}
	if !applicationID.IsNil() {
		c.Primary = aggregate.ApplicationKey(applicationID)
	}
	return c
}

type ApplicationData struct {
	ID                   id.ApplicationID           `json:"id"`
	Type                 models.ApplicationType     `json:"type"`
	ApplicationReference string                     `json:"applicationReference,omitempty"`
	Applicant            models.Party               `json:"applicant"`
	Subject              *models.Party              `json:"subject,omitempty"`
	Respondents          []models.Party             `json:"respondents,omitempty"`
	LinkedCaseID         *id.CaseID                 `json:"linkedCaseId,omitempty"`
	ParentApplicationID  *id.ApplicationID          `json:"parentApplicationId,omitempty"`
	Payment              *models.ApplicationPayment `json:"courtApplicationPayment,omitempty"`
}

type CourtApplicationInitiated struct {
	Application ApplicationData `json:"courtApplication"`
}

func (e *CourtApplicationInitiated) EventType() Type { return TypeCourtApplicationInitiated }

func (e *CourtApplicationInitiated) Validate() error {
	v := newValidator()
	a := e.Application
	v.check(!a.ID.IsNil(), "courtApplication.id is required")
	v.check(strings.TrimSpace(a.Type.Code) != "", "courtApplication.type.code is required")
	v.check(strings.TrimSpace(a.Applicant.Name) != "", "courtApplication.applicant.name is required")
	if a.ParentApplicationID != nil {
		v.check(*a.ParentApplicationID != a.ID, "courtApplication.parentApplicationId must differ from id")
	}
	return v.err()
}

func (e *CourtApplicationInitiated) Correlate() Correlation {
	c := applicationCorrelation(e.Application.ID)
	if e.Application.LinkedCaseID != nil {
		c.CaseIDs = append(c.CaseIDs, *e.Application.LinkedCaseID)
	}
	if e.Application.ParentApplicationID != nil {
		c.ApplicationIDs = append(c.ApplicationIDs, *e.Application.ParentApplicationID)
	}
	return c
}

type ApplicationFeeEdited struct {
	ApplicationID id.ApplicationID          `json:"applicationId"`
	Payment       models.ApplicationPayment `json:"courtApplicationPayment"`
}

func (e *ApplicationFeeEdited) EventType() Type { return TypeApplicationFeeEdited }

func (e *ApplicationFeeEdited) Validate() error {
	v := newValidator()
	v.check(strings.TrimSpace(e.Payment.FeeStatus) != "", "courtApplicationPayment.feeStatus is required")
	v.check(e.Payment.AmountPence >= 0, "courtApplicationPayment.amountPence must not be negative")
	return v.err()
}

func (e *ApplicationFeeEdited) Correlate() Correlation { return applicationCorrelation(e.ApplicationID) }

// BoxworkAssignmentChanged assigns an application to a legal adviser. A nil
// user clears the assignment.
type BoxworkAssignmentChanged struct {
	ApplicationID id.ApplicationID     `json:"applicationId"`
	AssignedUser  *models.AssignedUser `json:"assignedUser"`
}

func (e *BoxworkAssignmentChanged) EventType() Type { return TypeBoxworkAssignmentChanged }

func (e *BoxworkAssignmentChanged) Validate() error {
	v := newValidator()
	if e.AssignedUser != nil {
		v.check(strings.TrimSpace(e.AssignedUser.UserID) != "", "assignedUser.userId is required")
	}
	return v.err()
}

func (e *BoxworkAssignmentChanged) Correlate() Correlation {
	return applicationCorrelation(e.ApplicationID)
}
