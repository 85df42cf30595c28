package events

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

// Payload building blocks shared by several variants.

type CaseData struct {
	ID                   id.CaseID                   `json:"id"`
	URN                  string                      `json:"urn"`
	ProsecutingAuthority models.ProsecutingAuthority `json:"prosecutingAuthority"`
	InitiationDate       Date                        `json:"initiationDate"`
	Defendants           []DefendantData             `json:"defendants"`
}

type DefendantData struct {
	ID                   id.DefendantID               `json:"id"`
	MasterDefendantID    *id.MasterDefendantID        `json:"masterDefendantId,omitempty"`
	PersonDetails        PersonData                   `json:"personDefendant"`
	BailStatus           *BailStatusData              `json:"bailStatus,omitempty"`
	CustodyEstablishment *models.CustodyEstablishment `json:"custodyEstablishment,omitempty"`
	Offences             []OffenceData                `json:"offences"`
}

type PersonData struct {
	Title       string `json:"title,omitempty"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth Date   `json:"dateOfBirth"`
}

type BailStatusData struct {
	Code             string `json:"code"`
	Description      string `json:"description,omitempty"`
	CustodyStartDate Date   `json:"custodyStartDate"`
}

type OffenceData struct {
	ID               id.OffenceID `json:"id"`
	Code             string       `json:"offenceCode"`
	Title            string       `json:"offenceTitle"`
	Wording          string       `json:"wording,omitempty"`
	StartDate        Date         `json:"startDate"`
	OrderIndex       int          `json:"orderIndex"`
	ListingNumber    int          `json:"listingNumber"`
	CustodyTimeLimit Date         `json:"custodyTimeLimit"`
}

type CourtCentreData struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name,omitempty"`
	RoomID   *uuid.UUID `json:"roomId,omitempty"`
	RoomName string     `json:"roomName,omitempty"`
}

type HearingDayData struct {
	SittingDay            time.Time `json:"sittingDay"`
	ListedDurationMinutes int       `json:"listedDurationMinutes"`
	ListingSequence       int       `json:"listingSequence"`
}

type HearingCaseData struct {
	ID         id.CaseID              `json:"id"`
	Defendants []HearingDefendantData `json:"defendants"`
}

type HearingDefendantData struct {
	ID       id.DefendantID       `json:"id"`
	Offences []HearingOffenceData `json:"offences"`
}

type HearingOffenceData struct {
	ID id.OffenceID `json:"id"`
}

type CounselData struct {
	ID             uuid.UUID        `json:"id"`
	Title          string           `json:"title,omitempty"`
	FirstName      string           `json:"firstName"`
	LastName       string           `json:"lastName"`
	Status         string           `json:"status,omitempty"`
	DefendantIDs   []id.DefendantID `json:"defendants"`
	AttendanceDays []Date           `json:"attendanceDays,omitempty"`
}

type PleaData struct {
	Value string `json:"pleaValue"`
	Date  Date   `json:"pleaDate"`
}

type VerdictData struct {
	Value string `json:"verdictType"`
	Date  Date   `json:"verdictDate"`
}

type RestrictionData struct {
	ID          uuid.UUID `json:"id"`
	Label       string    `json:"label"`
	OrderedDate Date      `json:"orderedDate"`
}

type JudicialResultData struct {
	ID          uuid.UUID `json:"judicialResultId"`
	Label       string    `json:"label"`
	OrderedDate Date      `json:"orderedDate"`
	Unscheduled bool      `json:"isUnscheduled"`
	Concluding  bool      `json:"isConcluding"`
}

type OrganisationData struct {
	ID                uuid.UUID `json:"organisationId"`
	Name              string    `json:"organisationName"`
	LaaContractNumber string    `json:"laaContractNumber,omitempty"`
}

// -----------------------------------------------------------------------------
// Shape checks
// -----------------------------------------------------------------------------

func (c CaseData) validate(v *validator, path string) {
	v.check(!c.ID.IsNil(), path+".id is required")
	v.check(strings.TrimSpace(c.URN) != "", path+".urn is required")
	v.check(len(c.Defendants) > 0, path+".defendants must not be empty")
	for _, d := range c.Defendants {
		d.validate(v, path+".defendants")
	}
}

func (d DefendantData) validate(v *validator, path string) {
	v.check(!d.ID.IsNil(), path+".id is required")
	v.check(strings.TrimSpace(d.PersonDetails.LastName) != "", path+".personDefendant.lastName is required")
	v.check(len(d.Offences) > 0, path+".offences must not be empty")
	for _, o := range d.Offences {
		o.validate(v, path+".offences")
	}
}

func (o OffenceData) validate(v *validator, path string) {
	v.check(!o.ID.IsNil(), path+".id is required")
	v.check(strings.TrimSpace(o.Code) != "", path+".offenceCode is required")
	v.check(o.ListingNumber >= 0, path+".listingNumber must not be negative")
}

func (h HearingCaseData) validate(v *validator, path string) {
	v.check(!h.ID.IsNil(), path+".id is required")
	v.check(len(h.Defendants) > 0, path+".defendants must not be empty")
	for _, d := range h.Defendants {
		v.check(!d.ID.IsNil(), path+".defendants.id is required")
		v.check(len(d.Offences) > 0, path+".defendants.offences must not be empty")
		for _, o := range d.Offences {
			v.check(!o.ID.IsNil(), path+".defendants.offences.id is required")
		}
	}
}

func (d HearingDayData) validate(v *validator, path string) {
	v.check(!d.SittingDay.IsZero(), path+".sittingDay is required")
	v.check(d.ListedDurationMinutes >= 0, path+".listedDurationMinutes must not be negative")
}

func (c CounselData) validate(v *validator, path string) {
	v.check(c.ID != uuid.Nil, path+".id is required")
	v.check(strings.TrimSpace(c.LastName) != "", path+".lastName is required")
}

// -----------------------------------------------------------------------------
// Conversions to aggregate types
// -----------------------------------------------------------------------------

// Model builds a new defendant. The master defendant id defaults to the
// defendant's own id.
func (d DefendantData) Model() models.Defendant {
	master := id.MasterDefendantID(d.ID)
	if d.MasterDefendantID != nil && !d.MasterDefendantID.IsNil() {
		master = *d.MasterDefendantID
	}
	out := models.Defendant{
		ID:                   d.ID,
		MasterDefendantID:    master,
		PersonDetails:        d.PersonDetails.Model(),
		BailStatus:           d.BailStatus.Model(),
		CustodyEstablishment: d.CustodyEstablishment,
		LegalAidStatus:       "",
	}
	for _, o := range d.Offences {
		out.Offences = append(out.Offences, o.Model())
	}
	return out
}

func (p PersonData) Model() models.PersonDetails {
	return models.PersonDetails{
		Title:       p.Title,
		FirstName:   strings.TrimSpace(p.FirstName),
		LastName:    strings.TrimSpace(p.LastName),
		DateOfBirth: p.DateOfBirth.Ptr(),
	}
}

func (b *BailStatusData) Model() *models.BailStatus {
	if b == nil {
		return nil
	}
	return &models.BailStatus{
		Code:             b.Code,
		Description:      b.Description,
		CustodyStartDate: b.CustodyStartDate.Ptr(),
	}
}

func (o OffenceData) Model() models.Offence {
	out := models.Offence{
		ID:                o.ID,
		Code:              o.Code,
		Title:             o.Title,
		Wording:           o.Wording,
		StartDate:         o.StartDate.Ptr(),
		OrderIndex:        o.OrderIndex,
		BaseListingNumber: o.ListingNumber,
		ListingNumber:     o.ListingNumber,
	}
	if !o.CustodyTimeLimit.IsZero() {
		out.CustodyTimeLimit = &models.CustodyTimeLimit{TimeLimit: o.CustodyTimeLimit.Time}
	}
	return out
}

func (c CourtCentreData) Model() models.CourtCentre {
	return models.CourtCentre{ID: c.ID, Name: c.Name, RoomID: c.RoomID, RoomName: c.RoomName}
}

func HearingDays(in []HearingDayData) []models.HearingDay {
	out := make([]models.HearingDay, 0, len(in))
	for _, d := range in {
		out = append(out, models.HearingDay{
			SittingDay:            d.SittingDay.UTC(),
			ListedDurationMinutes: d.ListedDurationMinutes,
			Sequence:              d.ListingSequence,
		})
	}
	return out
}

func (h HearingCaseData) Model() models.HearingCase {
	out := models.HearingCase{CaseID: h.ID}
	for _, d := range h.Defendants {
		ref := models.HearingDefendantOffences{DefendantID: d.ID}
		for _, o := range d.Offences {
			ref.OffenceIDs = append(ref.OffenceIDs, o.ID)
		}
		out.MergeDefendants([]models.HearingDefendantOffences{ref})
	}
	return out
}

func (c CounselData) Model() models.DefenceCounsel {
	out := models.DefenceCounsel{
		ID:           c.ID,
		Title:        c.Title,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Status:       c.Status,
		DefendantIDs: append([]id.DefendantID(nil), c.DefendantIDs...),
	}
	for _, d := range c.AttendanceDays {
		out.AttendanceDays = append(out.AttendanceDays, d.Time)
	}
	return out
}
