// Package derived recomputes fields that depend on the whole current state of
// a case rather than on the event that changed it.
//
// Everything here is pure: no I/O, no clock reads. Callers pass "now".
package derived

import (
	"time"

	"github.com/google/uuid"

	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

// DefaultYouthAge is the age below which a defendant is treated as a youth.
const DefaultYouthAge = 18

// YouthRestrictionLabel is the wording of the automatic youth restriction.
const YouthRestrictionLabel = "Section 49 of the Children and Young Persons Act 1933 applies"

// Legal aid statuses shown on the defendant.
const (
	LegalAidGranted   = "Granted"
	LegalAidRefused   = "Refused"
	LegalAidWithdrawn = "Withdrawn"
	LegalAidPending   = "Pending"
	LegalAidNone      = "No Legal Aid"
)

var youthNamespace = uuid.MustParse("6f1c2a44-4e0b-5d8e-9a51-3f0c7d2b9e10")

// Recompute refreshes every stored derived field on the case. It is run after
// each mutation; DaysSpent is left to ApplyReadTime.
func Recompute(c *models.ProsecutionCase, now time.Time, youthAge int) {
	if youthAge <= 0 {
		youthAge = DefaultYouthAge
	}
	counts := ListingCounts(c)
	for i := range c.Defendants {
		d := &c.Defendants[i]
		d.IsYouth = IsYouth(d.PersonDetails.DateOfBirth, now, youthAge)
		for j := range d.Offences {
			o := &d.Offences[j]
			o.ListingNumber = o.BaseListingNumber + counts[o.ID]
			if d.IsYouth {
				o.AddRestriction(YouthRestriction(o.ID, now))
			}
		}
		d.LegalAidStatus = LegalAidStatus(d)
		d.ProceedingsConcluded = DefendantConcluded(d)
	}
	c.Status = CaseStatus(c)
}

// ListingCounts counts, per offence, the distinct non-deleted hearings the
// case is listed in that reference the offence.
func ListingCounts(c *models.ProsecutionCase) map[id.OffenceID]int {
	counts := make(map[id.OffenceID]int)
	for _, h := range c.Hearings {
		if h.ListingStatus == models.HearingDeleted {
			continue
		}
		seen := make(map[id.OffenceID]bool)
		for _, d := range h.Defendants {
			for _, o := range d.OffenceIDs {
				if !seen[o] {
					seen[o] = true
					counts[o]++
				}
			}
		}
	}
	return counts
}

// Age returns completed years between dob and now.
func Age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// IsYouth reports whether a defendant born on dob is under youthAge at now.
// An unknown date of birth is never a youth.
func IsYouth(dob *time.Time, now time.Time, youthAge int) bool {
	if dob == nil || dob.IsZero() {
		return false
	}
	return Age(*dob, now) < youthAge
}

// YouthRestriction builds the automatic restriction for an offence. The id is
// derived from the offence so re-deriving never appends a second copy.
func YouthRestriction(offenceID id.OffenceID, now time.Time) models.ReportingRestriction {
	return models.ReportingRestriction{
		ID:          uuid.NewSHA1(youthNamespace, []byte("youth:"+offenceID.String())),
		Label:       YouthRestrictionLabel,
		OrderedDate: truncateDay(now),
		Source:      models.RestrictionYouth,
	}
}

// LegalAidStatus folds the offence-level LAA status codes into one status.
func LegalAidStatus(d *models.Defendant) string {
	var codes []string
	for _, o := range d.Offences {
		if o.LAAReference != nil && o.LAAReference.StatusCode != "" {
			codes = append(codes, o.LAAReference.StatusCode)
		}
	}
	if len(codes) == 0 {
		return LegalAidNone
	}
	refused := 0
	for _, code := range codes {
		switch code {
		case "GR":
			return LegalAidGranted
		case "RE":
			refused++
		}
	}
	if refused == len(codes) {
		return LegalAidRefused
	}
	for _, code := range codes {
		if code == "WD" {
			return LegalAidWithdrawn
		}
	}
	return LegalAidPending
}

// DefendantConcluded is true once every offence is concluded.
func DefendantConcluded(d *models.Defendant) bool {
	if len(d.Offences) == 0 {
		return false
	}
	for _, o := range d.Offences {
		if !o.ProceedingsConcluded {
			return false
		}
	}
	return true
}

// CaseStatus is INACTIVE when the case was merged away, has no defendants
// left, or every defendant is concluded.
func CaseStatus(c *models.ProsecutionCase) models.CaseStatus {
	if c.MergedIntoCaseID != nil || len(c.Defendants) == 0 {
		return models.CaseStatusInactive
	}
	for i := range c.Defendants {
		if !c.Defendants[i].ProceedingsConcluded {
			return models.CaseStatusActive
		}
	}
	return models.CaseStatusInactive
}

// AnchorDate is where custody days are counted from: the extension anchor when
// one was set, otherwise the bail status custody start.
func AnchorDate(d *models.Defendant, o *models.Offence) *time.Time {
	if o.CustodyTimeLimit != nil && o.CustodyTimeLimit.AnchorDate != nil {
		return o.CustodyTimeLimit.AnchorDate
	}
	if d.BailStatus != nil {
		return d.BailStatus.CustodyStartDate
	}
	return nil
}

// DaysSpent counts whole days from anchor to now, never negative.
func DaysSpent(anchor *time.Time, now time.Time) int {
	if anchor == nil || anchor.IsZero() {
		return 0
	}
	days := int(truncateDay(now).Sub(truncateDay(*anchor)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// ApplyReadTime fills DaysSpent on every custody time limit as of now. It is
// applied to read copies only.
func ApplyReadTime(c *models.ProsecutionCase, now time.Time) {
	for i := range c.Defendants {
		d := &c.Defendants[i]
		for j := range d.Offences {
			o := &d.Offences[j]
			if o.CustodyTimeLimit == nil {
				continue
			}
			o.CustodyTimeLimit.DaysSpent = DaysSpent(AnchorDate(d, o), now)
		}
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
