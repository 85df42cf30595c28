package outbound

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

// ErrSubjectMissing is returned when the intent names a defendant, offence or
// hearing the committed aggregate no longer holds.
var ErrSubjectMissing = errors.New("outbound subject not in aggregate")

// Build renders an intent against the committed snapshot of its aggregate.
// The payload depends only on the snapshot and the intent, never on the
// inbound event, so rebuilding it always yields the same bytes.
func Build(in events.Intent, snap aggregate.Snapshot) (Entry, error) {
	if in.Key != snap.Key {
		return Entry{}, fmt.Errorf("intent for %s built from %s", in.Key, snap.Key)
	}
	payload, err := buildPayload(in, snap)
	if err != nil {
		return Entry{}, fmt.Errorf("build %s: %w", in.Type, err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encode %s: %w", in.Type, err)
	}
	return Entry{
		ID:               EntryID(in.Type, in.Key, snap.Version, in.Subject),
		Type:             in.Type,
		Key:              in.Key,
		AggregateVersion: snap.Version,
		Subject:          in.Subject,
		Payload:          body,
		Status:           StatusStaged,
	}, nil
}

func buildPayload(in events.Intent, snap aggregate.Snapshot) (any, error) {
	switch in.Type {
	case events.OutCourtApplicationCreated, events.OutBoxworkAssignmentChanged:
		var app models.CourtApplication
		if err := json.Unmarshal(snap.Data, &app); err != nil {
			return nil, fmt.Errorf("decode application: %w", err)
		}
		if in.Type == events.OutCourtApplicationCreated {
			return CourtApplicationCreated{CourtApplication: app}, nil
		}
		return BoxworkAssignmentChanged{ApplicationID: app.ID, AssignedUser: app.AssignedUser}, nil
	}

	var c models.ProsecutionCase
	if err := json.Unmarshal(snap.Data, &c); err != nil {
		return nil, fmt.Errorf("decode case: %w", err)
	}
	switch in.Type {
	case events.OutProsecutionCaseCreated:
		return ProsecutionCaseCreated{ProsecutionCase: c}, nil
	case events.OutCasesReferredToCourt:
		return casesReferred(&c), nil
	case events.OutHearingResultedCaseUpdated:
		return hearingResulted(&c, in.Subject)
	case events.OutDefendantOffencesChanged:
		return offencesChanged(&c, in.Subject)
	case events.OutDefendantLegalAidStatusUpdated:
		return legalAidUpdated(&c, in.Subject)
	case events.OutCustodyTimeLimitExtended:
		return ctlExtended(&c, in.Subject)
	default:
		return nil, fmt.Errorf("no builder for %s", in.Type)
	}
}

func casesReferred(c *models.ProsecutionCase) CasesReferredToCourt {
	out := CasesReferredToCourt{CaseID: c.ID, URN: c.URN, Defendants: make([]ReferredDefendant, 0, len(c.Defendants))}
	for _, d := range c.Defendants {
		ref := ReferredDefendant{DefendantID: d.ID, MasterDefendantID: d.MasterDefendantID, OffenceIDs: make([]id.OffenceID, 0, len(d.Offences))}
		for _, o := range d.Offences {
			ref.OffenceIDs = append(ref.OffenceIDs, o.ID)
		}
		out.Defendants = append(out.Defendants, ref)
	}
	return out
}

// hearingResulted includes the offences the hearing dealt with: those it
// lists and those carrying a result it ordered.
func hearingResulted(c *models.ProsecutionCase, subject string) (HearingResultedCaseUpdated, error) {
	hearingID, err := id.ParseHearingID(subject)
	if err != nil {
		return HearingResultedCaseUpdated{}, fmt.Errorf("%w: hearing %q", ErrSubjectMissing, subject)
	}
	listed := map[id.OffenceID]bool{}
	if summary, ok := c.HearingSummary(hearingID); ok {
		for _, d := range summary.Defendants {
			for _, o := range d.OffenceIDs {
				listed[o] = true
			}
		}
	}

	out := HearingResultedCaseUpdated{HearingID: hearingID, CaseID: c.ID, CaseStatus: c.Status, Defendants: []ResultedDefendant{}}
	for _, d := range c.Defendants {
		rd := ResultedDefendant{DefendantID: d.ID, ProceedingsConcluded: d.ProceedingsConcluded}
		for _, o := range d.Offences {
			results := make([]models.JudicialResult, 0, len(o.JudicialResults))
			for _, r := range o.JudicialResults {
				if r.HearingID == hearingID {
					results = append(results, r)
				}
			}
			if len(results) == 0 && !listed[o.ID] {
				continue
			}
			rd.Offences = append(rd.Offences, ResultedOffence{
				OffenceID:            o.ID,
				JudicialResults:      results,
				Plea:                 o.Plea,
				Verdict:              o.Verdict,
				ProceedingsConcluded: o.ProceedingsConcluded,
			})
		}
		if len(rd.Offences) > 0 {
			out.Defendants = append(out.Defendants, rd)
		}
	}
	return out, nil
}

func offencesChanged(c *models.ProsecutionCase, subject string) (DefendantOffencesChanged, error) {
	d, err := subjectDefendant(c, subject)
	if err != nil {
		return DefendantOffencesChanged{}, err
	}
	out := DefendantOffencesChanged{CaseID: c.ID, DefendantID: d.ID, Offences: make([]OffenceListing, 0, len(d.Offences))}
	for _, o := range d.Offences {
		out.Offences = append(out.Offences, OffenceListing{
			OffenceID:     o.ID,
			Code:          o.Code,
			Title:         o.Title,
			OrderIndex:    o.OrderIndex,
			ListingNumber: o.ListingNumber,
		})
	}
	slices.SortStableFunc(out.Offences, func(a, b OffenceListing) int { return a.OrderIndex - b.OrderIndex })
	return out, nil
}

func legalAidUpdated(c *models.ProsecutionCase, subject string) (DefendantLegalAidStatusUpdated, error) {
	d, err := subjectDefendant(c, subject)
	if err != nil {
		return DefendantLegalAidStatusUpdated{}, err
	}
	out := DefendantLegalAidStatusUpdated{
		CaseID:              c.ID,
		DefendantID:         d.ID,
		LegalAidStatus:      d.LegalAidStatus,
		DefenceOrganisation: d.AssociatedDefenceOrganisation,
		Offences:            make([]OffenceLegalAid, 0, len(d.Offences)),
	}
	for _, o := range d.Offences {
		out.Offences = append(out.Offences, OffenceLegalAid{OffenceID: o.ID, LAAReference: o.LAAReference})
	}
	return out, nil
}

func ctlExtended(c *models.ProsecutionCase, subject string) (CustodyTimeLimitExtended, error) {
	offenceID, err := id.ParseOffenceID(subject)
	if err != nil {
		return CustodyTimeLimitExtended{}, fmt.Errorf("%w: offence %q", ErrSubjectMissing, subject)
	}
	d, o, ok := c.Offence(offenceID)
	if !ok || o.CustodyTimeLimit == nil {
		return CustodyTimeLimitExtended{}, fmt.Errorf("%w: offence %s", ErrSubjectMissing, subject)
	}
	return CustodyTimeLimitExtended{
		CaseID:        c.ID,
		DefendantID:   d.ID,
		OffenceID:     o.ID,
		TimeLimit:     o.CustodyTimeLimit.TimeLimit,
		IsCtlExtended: o.CustodyTimeLimit.IsCtlExtended,
	}, nil
}

func subjectDefendant(c *models.ProsecutionCase, subject string) (*models.Defendant, error) {
	defendantID, err := id.ParseDefendantID(subject)
	if err != nil {
		return nil, fmt.Errorf("%w: defendant %q", ErrSubjectMissing, subject)
	}
	d, ok := c.Defendant(defendantID)
	if !ok {
		return nil, fmt.Errorf("%w: defendant %s", ErrSubjectMissing, subject)
	}
	return d, nil
}
