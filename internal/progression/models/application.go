package models

import (
	id "progression/pkg/domain"
)

type ApplicationStatus string

const (
	ApplicationDraft       ApplicationStatus = "DRAFT"
	ApplicationUnallocated ApplicationStatus = "UN_ALLOCATED"
	ApplicationListed      ApplicationStatus = "LISTED"
	ApplicationFinalised   ApplicationStatus = "FINALISED"
)

// CourtApplication is the application aggregate root.
type CourtApplication struct {
	ID                   id.ApplicationID    `json:"id"`
	Type                 ApplicationType     `json:"type"`
	Status               ApplicationStatus   `json:"applicationStatus"`
	ApplicationReference string              `json:"applicationReference,omitempty"`
	Applicant            Party               `json:"applicant"`
	Subject              *Party              `json:"subject,omitempty"`
	Respondents          []Party             `json:"respondents,omitempty"`
	LinkedCaseID         *id.CaseID          `json:"linkedCaseId,omitempty"`
	ParentApplicationID  *id.ApplicationID   `json:"parentApplicationId,omitempty"`
	ChildApplicationIDs  []id.ApplicationID  `json:"childApplicationIds,omitempty"`
	HearingIDs           []id.HearingID      `json:"hearingIds,omitempty"`
	Payment              *ApplicationPayment `json:"courtApplicationPayment,omitempty"`
	AssignedUser         *AssignedUser       `json:"assignedUser,omitempty"`
}

type ApplicationType struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

type Party struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	DefendantID *id.DefendantID `json:"defendantId,omitempty"`
}

type ApplicationPayment struct {
	FeeStatus        string `json:"feeStatus"`
	PaymentReference string `json:"paymentReference,omitempty"`
	AmountPence      int64  `json:"amountPence"`
}

type AssignedUser struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// AddHearing records the hearing and reports whether it was new.
func (a *CourtApplication) AddHearing(hearingID id.HearingID) bool {
	for _, h := range a.HearingIDs {
		if h == hearingID {
			return false
		}
	}
	a.HearingIDs = append(a.HearingIDs, hearingID)
	return true
}
