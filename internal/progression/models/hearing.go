package models

import (
	"slices"
	"time"

	"github.com/google/uuid"

	id "progression/pkg/domain"
)

type HearingStatus string

const (
	HearingInitialised    HearingStatus = "HEARING_INITIALISED"
	HearingSentForListing HearingStatus = "SENT_FOR_LISTING"
	HearingResulted       HearingStatus = "RESULTED"
	HearingDeleted        HearingStatus = "DELETED"
)

// Active reports whether the hearing has not yet been resulted or deleted.
func (s HearingStatus) Active() bool {
	return s == HearingInitialised || s == HearingSentForListing
}

type DeletionVariant string

const (
	DeletionAllocated   DeletionVariant = "ALLOCATED"
	DeletionUnallocated DeletionVariant = "UNALLOCATED"
	DeletionGeneric     DeletionVariant = "GENERIC"
)

// Hearing is the hearing aggregate root. Prosecution cases are held as id
// references; the case aggregate owns the defendant and offence content.
type Hearing struct {
	ID                    id.HearingID       `json:"id"`
	Status                HearingStatus      `json:"hearingListingStatus"`
	Type                  HearingType        `json:"type"`
	JurisdictionType      string             `json:"jurisdictionType,omitempty"`
	CourtCentre           CourtCentre        `json:"courtCentre"`
	HearingDays           []HearingDay       `json:"hearingDays"`
	ProsecutionCases      []HearingCase      `json:"prosecutionCases"`
	CourtApplicationIDs   []id.ApplicationID `json:"courtApplicationIds,omitempty"`
	DefenceCounsels       []DefenceCounsel   `json:"defenceCounsels,omitempty"`
	ExtendedFromHearingID *id.HearingID      `json:"extendedFromHearingId,omitempty"`
	SeedingHearingID      *id.HearingID      `json:"seedingHearingId,omitempty"`
	ReopenedFromHearingID *id.HearingID      `json:"reopenedFromHearingId,omitempty"`
	DeletionVariant       DeletionVariant    `json:"deletionVariant,omitempty"`
	ResultedAt            *time.Time         `json:"resultedAt,omitempty"`
}

type HearingType struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description"`
}

type CourtCentre struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name,omitempty"`
	RoomID   *uuid.UUID `json:"roomId,omitempty"`
	RoomName string     `json:"roomName,omitempty"`
}

type HearingDay struct {
	SittingDay            time.Time `json:"sittingDay"`
	ListedDurationMinutes int       `json:"listedDurationMinutes"`
	Sequence              int       `json:"listingSequence"`
}

type HearingCase struct {
	CaseID     id.CaseID                  `json:"id"`
	Defendants []HearingDefendantOffences `json:"defendants"`
}

type DefenceCounsel struct {
	ID             uuid.UUID        `json:"id"`
	Title          string           `json:"title,omitempty"`
	FirstName      string           `json:"firstName"`
	LastName       string           `json:"lastName"`
	Status         string           `json:"status,omitempty"`
	DefendantIDs   []id.DefendantID `json:"defendants"`
	AttendanceDays []time.Time      `json:"attendanceDays,omitempty"`
}

// Case returns the hearing's reference to a case.
func (h *Hearing) Case(caseID id.CaseID) (*HearingCase, bool) {
	for i := range h.ProsecutionCases {
		if h.ProsecutionCases[i].CaseID == caseID {
			return &h.ProsecutionCases[i], true
		}
	}
	return nil, false
}

// CaseIDs lists the referenced cases in hearing order.
func (h *Hearing) CaseIDs() []id.CaseID {
	out := make([]id.CaseID, 0, len(h.ProsecutionCases))
	for _, c := range h.ProsecutionCases {
		out = append(out, c.CaseID)
	}
	return out
}

func (h *Hearing) Counsel(counselID uuid.UUID) (*DefenceCounsel, int) {
	for i := range h.DefenceCounsels {
		if h.DefenceCounsels[i].ID == counselID {
			return &h.DefenceCounsels[i], i
		}
	}
	return nil, -1
}

// Defendant returns the offence reference list for a defendant in a case.
func (hc *HearingCase) Defendant(defendantID id.DefendantID) (*HearingDefendantOffences, bool) {
	for i := range hc.Defendants {
		if hc.Defendants[i].DefendantID == defendantID {
			return &hc.Defendants[i], true
		}
	}
	return nil, false
}

// MergeDefendants adds defendants and offences not already referenced and
// reports whether anything changed.
func (hc *HearingCase) MergeDefendants(in []HearingDefendantOffences) bool {
	var changed bool
	hc.Defendants, changed = MergeDefendantOffences(hc.Defendants, in)
	return changed
}

// MergeDefendantOffences adds to dst the defendants and offences of in that it
// does not already reference.
func MergeDefendantOffences(dst, in []HearingDefendantOffences) ([]HearingDefendantOffences, bool) {
	changed := false
	for _, d := range in {
		i := slices.IndexFunc(dst, func(x HearingDefendantOffences) bool { return x.DefendantID == d.DefendantID })
		if i < 0 {
			dst = append(dst, HearingDefendantOffences{
				DefendantID: d.DefendantID,
				OffenceIDs:  append([]id.OffenceID(nil), d.OffenceIDs...),
			})
			changed = true
			continue
		}
		for _, o := range d.OffenceIDs {
			if !containsOffence(dst[i].OffenceIDs, o) {
				dst[i].OffenceIDs = append(dst[i].OffenceIDs, o)
				changed = true
			}
		}
	}
	return dst, changed
}

// RemoveOffences drops the offences and prunes defendants left without any.
func (hc *HearingCase) RemoveOffences(offenceIDs []id.OffenceID) bool {
	changed := false
	kept := hc.Defendants[:0]
	for _, d := range hc.Defendants {
		remaining := d.OffenceIDs[:0]
		for _, o := range d.OffenceIDs {
			if containsOffence(offenceIDs, o) {
				changed = true
				continue
			}
			remaining = append(remaining, o)
		}
		d.OffenceIDs = remaining
		if len(d.OffenceIDs) > 0 {
			kept = append(kept, d)
		}
	}
	hc.Defendants = kept
	return changed
}

// PruneEmptyCases removes case references without defendants.
func (h *Hearing) PruneEmptyCases() {
	kept := h.ProsecutionCases[:0]
	for _, c := range h.ProsecutionCases {
		if len(c.Defendants) > 0 {
			kept = append(kept, c)
		}
	}
	h.ProsecutionCases = kept
}

func containsOffence(list []id.OffenceID, o id.OffenceID) bool {
	for _, x := range list {
		if x == o {
			return true
		}
	}
	return false
}
