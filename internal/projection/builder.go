package projection

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"progression/internal/aggregate"
	"progression/internal/derived"
	"progression/internal/progression/models"
	rm "progression/internal/projection/models"
	pstrings "progression/pkg/platform/strings"
)

// Build turns one committed aggregate into its read models, in the order they
// are written. Group aggregates have no read models of their own.
func Build(snap aggregate.Snapshot) ([]rm.Document, error) {
	switch snap.Key.Kind {
	case aggregate.KindCase:
		var c models.ProsecutionCase
		if err := json.Unmarshal(snap.Data, &c); err != nil {
			return nil, fmt.Errorf("decode case %s: %w", snap.Key.ID, err)
		}
		caag, err := json.Marshal(CaseAtAGlance(&c))
		if err != nil {
			return nil, fmt.Errorf("encode case at a glance: %w", err)
		}
		return []rm.Document{
			{Model: rm.ModelCase, ID: snap.Key.ID, Version: snap.Version, Body: snap.Data},
			{Model: rm.ModelCaseAtAGlance, ID: snap.Key.ID, Version: snap.Version, Body: caag},
		}, nil
	case aggregate.KindHearing:
		var h models.Hearing
		if err := json.Unmarshal(snap.Data, &h); err != nil {
			return nil, fmt.Errorf("decode hearing %s: %w", snap.Key.ID, err)
		}
		haag, err := json.Marshal(HearingAtAGlance(&h))
		if err != nil {
			return nil, fmt.Errorf("encode hearing at a glance: %w", err)
		}
		return []rm.Document{
			{Model: rm.ModelHearing, ID: snap.Key.ID, Version: snap.Version, Body: snap.Data},
			{Model: rm.ModelHearingAtAGlance, ID: snap.Key.ID, Version: snap.Version, Body: haag},
		}, nil
	case aggregate.KindApplication:
		return []rm.Document{
			{Model: rm.ModelApplication, ID: snap.Key.ID, Version: snap.Version, Body: snap.Data},
		}, nil
	default:
		return nil, nil
	}
}

// CaseAtAGlance builds the case overview.
func CaseAtAGlance(c *models.ProsecutionCase) rm.CaseAtAGlance {
	out := rm.CaseAtAGlance{
		CaseID:               c.ID,
		URN:                  c.URN,
		Status:               c.Status,
		ProsecutingAuthority: c.ProsecutingAuthority,
		InitiationDate:       c.InitiationDate,
		Defendants:           make([]rm.DefendantAtAGlance, 0, len(c.Defendants)),
		HearingsAtAGlance:    make([]rm.HearingOverview, 0, len(c.Hearings)),
		LinkedCases:          c.LinkedCases,
		RelatedCases:         c.RelatedCases,
		RelatedReferences:    c.RelatedReferences,
		LinkedApplicationIDs: c.LinkedApplicationIDs,
		MergedIntoCaseID:     c.MergedIntoCaseID,
	}
	for i := range c.Defendants {
		out.Defendants = append(out.Defendants, defendantAtAGlance(&c.Defendants[i]))
	}
	for _, h := range c.Hearings {
		overview := rm.HearingOverview{
			ID:            h.ID,
			Type:          h.Type.Description,
			ListingStatus: h.ListingStatus,
			CourtCentre:   h.CourtCentre,
		}
		if first := firstSitting(h.HearingDays); first != nil {
			overview.FirstSitting = &first.SittingDay
		}
		for _, d := range h.Defendants {
			overview.DefendantIDs = append(overview.DefendantIDs, d.DefendantID)
		}
		out.HearingsAtAGlance = append(out.HearingsAtAGlance, overview)
	}
	sort.SliceStable(out.HearingsAtAGlance, func(i, j int) bool {
		a, b := out.HearingsAtAGlance[i].FirstSitting, out.HearingsAtAGlance[j].FirstSitting
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return out
}

func defendantAtAGlance(d *models.Defendant) rm.DefendantAtAGlance {
	out := rm.DefendantAtAGlance{
		ID:                   d.ID,
		MasterDefendantID:    d.MasterDefendantID,
		FirstName:            d.PersonDetails.FirstName,
		LastName:             d.PersonDetails.LastName,
		DateOfBirth:          d.PersonDetails.DateOfBirth,
		IsYouth:              d.IsYouth,
		LegalAidStatus:       d.LegalAidStatus,
		ProceedingsConcluded: d.ProceedingsConcluded,
		Offences:             make([]rm.OffenceAtAGlance, 0, len(d.Offences)),
	}
	if d.BailStatus != nil {
		out.BailStatus = d.BailStatus.Description
		if out.BailStatus == "" {
			out.BailStatus = d.BailStatus.Code
		}
	}
	if d.AssociatedDefenceOrganisation != nil {
		out.DefenceOrganisation = d.AssociatedDefenceOrganisation.Name
	}
	for i := range d.Offences {
		o := &d.Offences[i]
		entry := rm.OffenceAtAGlance{
			ID:                   o.ID,
			Code:                 o.Code,
			Title:                o.Title,
			OrderIndex:           o.OrderIndex,
			ListingNumber:        o.ListingNumber,
			ProceedingsConcluded: o.ProceedingsConcluded,
		}
		if o.CustodyTimeLimit != nil {
			ctl := *o.CustodyTimeLimit
			ctl.DaysSpent = 0
			entry.CustodyTimeLimit = &ctl
			entry.CustodyAnchor = derived.AnchorDate(d, o)
		}
		if o.Plea != nil {
			entry.Plea = o.Plea.Value
		}
		if o.Verdict != nil {
			entry.Verdict = o.Verdict.Value
		}
		for _, r := range o.ReportingRestrictions {
			entry.ReportingRestrictions = append(entry.ReportingRestrictions, r.Label)
		}
		out.Offences = append(out.Offences, entry)
	}
	sort.SliceStable(out.Offences, func(i, j int) bool {
		return out.Offences[i].OrderIndex < out.Offences[j].OrderIndex
	})
	return out
}

// HearingAtAGlance builds the hearing overview. Deleted hearings keep their
// last shape so the deletion is visible.
func HearingAtAGlance(h *models.Hearing) rm.HearingAtAGlance {
	out := rm.HearingAtAGlance{
		HearingID:           h.ID,
		Type:                h.Type.Description,
		Status:              h.Status,
		JurisdictionType:    h.JurisdictionType,
		CourtCentre:         h.CourtCentre,
		HearingDays:         append([]models.HearingDay(nil), h.HearingDays...),
		ProsecutionCases:    make([]rm.HearingCaseAtAGlance, 0, len(h.ProsecutionCases)),
		CourtApplicationIDs: h.CourtApplicationIDs,
		ResultedAt:          h.ResultedAt,
		DeletionVariant:     h.DeletionVariant,
	}
	sort.SliceStable(out.HearingDays, func(i, j int) bool {
		return out.HearingDays[i].SittingDay.Before(out.HearingDays[j].SittingDay)
	})
	for _, hc := range h.ProsecutionCases {
		entry := rm.HearingCaseAtAGlance{CaseID: hc.CaseID}
		for _, d := range hc.Defendants {
			entry.Defendants = append(entry.Defendants, rm.HearingDefendantSummary{
				DefendantID: d.DefendantID,
				OffenceIDs:  d.OffenceIDs,
			})
		}
		out.ProsecutionCases = append(out.ProsecutionCases, entry)
	}
	for _, c := range h.DefenceCounsels {
		out.DefenceCounsels = append(out.DefenceCounsels, rm.CounselLabel(c))
	}
	return out
}

// SearchEntries indexes every defendant of a case.
func SearchEntries(c *models.ProsecutionCase, version int64) []rm.SearchEntry {
	out := make([]rm.SearchEntry, 0, len(c.Defendants))
	for _, d := range c.Defendants {
		p := d.PersonDetails
		out = append(out, rm.SearchEntry{
			CaseID:      c.ID,
			DefendantID: d.ID,
			Version:     version,
			URN:         c.URN,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			DateOfBirth: p.DateOfBirth,
			CaseStatus:  c.Status,
			Tokens:      Tokens(c.URN, p.FirstName, p.LastName),
		})
	}
	return out
}

// Tokens splits values into lowercase search tokens. Hyphenated and multi-part
// names are indexed whole and by part.
func Tokens(values ...string) []string {
	var raw []string
	for _, v := range values {
		for _, word := range strings.Fields(v) {
			raw = append(raw, word)
			if strings.Contains(word, "-") {
				raw = append(raw, strings.Split(word, "-")...)
			}
		}
	}
	return pstrings.DedupeAndTrimLower(raw)
}

func firstSitting(days []models.HearingDay) *models.HearingDay {
	var first *models.HearingDay
	for i := range days {
		if first == nil || days[i].SittingDay.Before(first.SittingDay) {
			first = &days[i]
		}
	}
	return first
}
