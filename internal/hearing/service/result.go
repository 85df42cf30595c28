package service

import (
	"context"
	"time"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

// result applies a hearing outcome: the hearing becomes RESULTED, each
// resulted case takes its judicial results, and unresolved offences flagged
// unscheduled move to a spawned hearing.
func (s *Service) result(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.HearingResulted)
	h, err := ws.Hearing(ctx, e.HearingID)
	if err != nil {
		return nil, err
	}
	if h.Status == models.HearingDeleted {
		return nil, conflict("hearing %s is deleted and cannot be resulted", h.ID)
	}
	h.Status = models.HearingResulted
	sharedAt := e.SharedTime.UTC()
	h.ResultedAt = &sharedAt

	var intents []events.Intent
	var unscheduled []models.HearingCase
	for _, rc := range e.ProsecutionCases {
		c, err := ws.Case(ctx, rc.CaseID)
		if err != nil {
			return nil, err
		}
		if err := applyCaseResult(c, h.ID, rc, sharedAt); err != nil {
			return nil, err
		}
		intents = append(intents, resultIntent(c.ID, h.ID))
		if pending := unscheduledOffences(c, rc); len(pending.Defendants) > 0 {
			unscheduled = append(unscheduled, pending)
		}
	}

	if err := syncSummaries(ctx, ws, h); err != nil {
		return nil, err
	}
	for _, appID := range h.CourtApplicationIDs {
		app, err := ws.Application(ctx, appID)
		if err != nil {
			return nil, err
		}
		app.Status = models.ApplicationFinalised
	}
	if len(unscheduled) > 0 {
		if err := s.spawnUnscheduled(ctx, ws, h, unscheduled); err != nil {
			return nil, err
		}
	}
	return intents, nil
}

// resultCaseUpdate applies the case part of a result without touching the
// hearing's status.
func (s *Service) resultCaseUpdate(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.HearingResultedCaseUpdated)
	c, err := ws.Case(ctx, e.ProsecutionCase.CaseID)
	if err != nil {
		return nil, err
	}
	if err := applyCaseResult(c, e.HearingID, e.ProsecutionCase, e.SharedTime.UTC()); err != nil {
		return nil, err
	}
	return []events.Intent{resultIntent(c.ID, e.HearingID)}, nil
}

func resultIntent(caseID id.CaseID, hearingID id.HearingID) events.Intent {
	return events.Intent{
		Type:    events.OutHearingResultedCaseUpdated,
		Key:     aggregate.CaseKey(caseID),
		Subject: hearingID.String(),
	}
}

// applyCaseResult folds resulted defendants and offences into the case.
// Results and restrictions are keyed by id so redelivery appends nothing.
func applyCaseResult(c *models.ProsecutionCase, hearingID id.HearingID, rc events.ResultedCase, sharedAt time.Time) error {
	for _, rd := range rc.Defendants {
		d, ok := c.Defendant(rd.DefendantID)
		if !ok {
			return invariant("defendant %s is not on case %s", rd.DefendantID, c.ID)
		}
		if rd.BailStatus != nil {
			d.SetBailStatus(rd.BailStatus.Model())
		}
		if rd.CustodyEstablishment != nil {
			ce := *rd.CustodyEstablishment
			d.CustodyEstablishment = &ce
		}
		for _, ro := range rd.Offences {
			o, ok := d.Offence(ro.OffenceID)
			if !ok {
				return invariant("offence %s is not on defendant %s", ro.OffenceID, d.ID)
			}
			applyOffenceResult(o, hearingID, ro, sharedAt)
		}
	}
	return nil
}

func applyOffenceResult(o *models.Offence, hearingID id.HearingID, ro events.ResultedOffence, sharedAt time.Time) {
	for _, jr := range ro.JudicialResults {
		ordered := jr.OrderedDate.Time
		if ordered.IsZero() {
			ordered = sharedAt
		}
		o.AddJudicialResult(models.JudicialResult{
			ID:          jr.ID,
			HearingID:   hearingID,
			Label:       jr.Label,
			OrderedDate: ordered,
			Unscheduled: jr.Unscheduled,
			Concluding:  jr.Concluding,
		})
	}
	for _, rr := range ro.ReportingRestrictions {
		o.AddRestriction(models.ReportingRestriction{
			ID:          rr.ID,
			Label:       rr.Label,
			OrderedDate: rr.OrderedDate.Time,
			Source:      models.RestrictionManual,
		})
	}
	if ro.Plea != nil {
		o.Plea = &models.Plea{Value: ro.Plea.Value, Date: ro.Plea.Date.Time}
	}
	if ro.Verdict != nil {
		o.Verdict = &models.Verdict{Value: ro.Verdict.Value, Date: ro.Verdict.Date.Time}
	}
	if ro.Concluded() {
		o.ProceedingsConcluded = true
	}
}

// unscheduledOffences collects offences the result asks to list again later
// and that are still open.
func unscheduledOffences(c *models.ProsecutionCase, rc events.ResultedCase) models.HearingCase {
	out := models.HearingCase{CaseID: c.ID}
	for _, rd := range rc.Defendants {
		ref := models.HearingDefendantOffences{DefendantID: rd.DefendantID}
		for _, ro := range rd.Offences {
			if !ro.Unscheduled() {
				continue
			}
			if _, o, ok := c.Offence(ro.OffenceID); ok && !o.ProceedingsConcluded {
				ref.OffenceIDs = append(ref.OffenceIDs, ro.OffenceID)
			}
		}
		if len(ref.OffenceIDs) > 0 {
			out.Defendants = append(out.Defendants, ref)
		}
	}
	return out
}

// spawnUnscheduled creates, or extends on redelivery, the unscheduled listing
// hearing seeded by h.
func (s *Service) spawnUnscheduled(ctx context.Context, ws *aggregate.Workspace, h *models.Hearing, cases []models.HearingCase) error {
	newID := UnscheduledHearingID(h.ID)
	spawned, ok, err := ws.FindHearing(ctx, newID)
	if err != nil {
		return err
	}
	if ok {
		if spawned.Status.Active() {
			mergeCases(spawned, cases)
		}
	} else {
		seed := h.ID
		spawned = &models.Hearing{
			ID:               newID,
			Status:           models.HearingInitialised,
			Type:             models.HearingType{Description: "Unscheduled listing"},
			JurisdictionType: h.JurisdictionType,
			CourtCentre:      h.CourtCentre,
			HearingDays:      []models.HearingDay{},
			ProsecutionCases: copyCases(cases),
			SeedingHearingID: &seed,
		}
		if err := ws.CreateHearing(ctx, spawned); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "unscheduled hearing spawned", "hearing_id", newID, "seeding_hearing_id", h.ID)
	}
	return syncSummaries(ctx, ws, spawned)
}
