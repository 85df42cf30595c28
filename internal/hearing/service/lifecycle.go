package service

import (
	"context"
	"slices"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

// confirm creates a hearing, or merges an extension into an existing one.
func (s *Service) confirm(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.HearingConfirmed)

	incoming := make([]models.HearingCase, 0, len(e.ProsecutionCases))
	for _, pc := range e.ProsecutionCases {
		incoming = append(incoming, pc.Model())
	}
	if err := checkReferences(ctx, ws, incoming); err != nil {
		return nil, err
	}

	h, exists, err := ws.FindHearing(ctx, e.HearingID)
	if err != nil {
		return nil, err
	}
	if exists {
		if !h.Status.Active() {
			return nil, conflict("hearing %s cannot be confirmed in status %s", h.ID, h.Status)
		}
		if e.ExtendedFromHearingID != nil && !e.ExtendedFromHearingID.IsNil() {
			h.ExtendedFromHearingID = e.ExtendedFromHearingID
		}
		mergeCases(h, incoming)
		for _, appID := range e.CourtApplicationIDs {
			if !slices.Contains(h.CourtApplicationIDs, appID) {
				h.CourtApplicationIDs = append(h.CourtApplicationIDs, appID)
			}
		}
	} else {
		h = &models.Hearing{
			ID:                    e.HearingID,
			Status:                models.HearingInitialised,
			Type:                  e.Type,
			JurisdictionType:      e.JurisdictionType,
			CourtCentre:           e.CourtCentre.Model(),
			HearingDays:           events.HearingDays(e.HearingDays),
			ProsecutionCases:      incoming,
			CourtApplicationIDs:   append([]id.ApplicationID(nil), e.CourtApplicationIDs...),
			ExtendedFromHearingID: e.ExtendedFromHearingID,
		}
		if err := ws.CreateHearing(ctx, h); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "hearing confirmed", "hearing_id", h.ID, "cases", len(h.ProsecutionCases))
	}

	if err := syncSummaries(ctx, ws, h); err != nil {
		return nil, err
	}
	if err := listApplications(ctx, ws, h); err != nil {
		return nil, err
	}
	return nil, nil
}

func mergeCases(h *models.Hearing, incoming []models.HearingCase) {
	for _, in := range incoming {
		if existing, ok := h.Case(in.CaseID); ok {
			existing.MergeDefendants(in.Defendants)
			continue
		}
		h.ProsecutionCases = append(h.ProsecutionCases, models.HearingCase{
			CaseID:     in.CaseID,
			Defendants: copyDefendants(in.Defendants),
		})
	}
}

// listApplications marks every application heard in h as listed.
func listApplications(ctx context.Context, ws *aggregate.Workspace, h *models.Hearing) error {
	for _, appID := range h.CourtApplicationIDs {
		app, err := ws.Application(ctx, appID)
		if err != nil {
			return err
		}
		app.AddHearing(h.ID)
		if app.Status == models.ApplicationDraft || app.Status == models.ApplicationUnallocated {
			app.Status = models.ApplicationListed
		}
	}
	return nil
}

func (s *Service) sendForListing(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.HearingSentForListing)
	h, err := ws.Hearing(ctx, e.HearingID)
	if err != nil {
		return nil, err
	}
	switch h.Status {
	case models.HearingSentForListing:
		return nil, nil
	case models.HearingInitialised:
		h.Status = models.HearingSentForListing
	default:
		return nil, conflict("hearing %s cannot be sent for listing in status %s", h.ID, h.Status)
	}
	return nil, syncSummaries(ctx, ws, h)
}

// delete marks the hearing DELETED and removes its case-side summaries, which
// takes it out of listing numbers. Deleting twice changes nothing.
func (s *Service) delete(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.HearingDeleted)
	h, err := ws.Hearing(ctx, e.HearingID)
	if err != nil {
		return nil, err
	}
	if h.Status == models.HearingDeleted {
		return nil, nil
	}
	h.Status = models.HearingDeleted
	h.DeletionVariant = e.Variant
	if h.DeletionVariant == "" {
		h.DeletionVariant = models.DeletionGeneric
	}
	for _, caseID := range h.CaseIDs() {
		c, err := ws.Case(ctx, caseID)
		if err != nil {
			return nil, err
		}
		c.RemoveHearing(h.ID)
	}
	for _, appID := range h.CourtApplicationIDs {
		app, ok, err := ws.FindApplication(ctx, appID)
		if err != nil {
			return nil, err
		}
		if ok {
			app.HearingIDs = slices.DeleteFunc(app.HearingIDs, func(x id.HearingID) bool { return x == h.ID })
		}
	}
	s.logger.InfoContext(ctx, "hearing deleted", "hearing_id", h.ID, "variant", h.DeletionVariant)
	return nil, nil
}

// reopen lists a resulted hearing again under a new id. The resulted hearing
// itself is left untouched.
func (s *Service) reopen(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.HearingReopened)
	source, err := ws.Hearing(ctx, e.HearingID)
	if err != nil {
		return nil, err
	}
	if existing, ok, err := ws.FindHearing(ctx, e.NewHearingID); err != nil {
		return nil, err
	} else if ok {
		if existing.ReopenedFromHearingID != nil && *existing.ReopenedFromHearingID == source.ID {
			return nil, nil
		}
		return nil, conflict("hearing %s already exists", e.NewHearingID)
	}
	if source.Status != models.HearingResulted {
		return nil, conflict("hearing %s cannot be reopened in status %s", source.ID, source.Status)
	}

	days := events.HearingDays(e.HearingDays)
	if len(days) == 0 {
		days = append(days, source.HearingDays...)
	}
	reopenedFrom := source.ID
	h := &models.Hearing{
		ID:                    e.NewHearingID,
		Status:                models.HearingInitialised,
		Type:                  source.Type,
		JurisdictionType:      source.JurisdictionType,
		CourtCentre:           source.CourtCentre,
		HearingDays:           days,
		ProsecutionCases:      copyCases(source.ProsecutionCases),
		ReopenedFromHearingID: &reopenedFrom,
	}
	if err := ws.CreateHearing(ctx, h); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "hearing reopened", "hearing_id", source.ID, "new_hearing_id", h.ID)
	return nil, syncSummaries(ctx, ws, h)
}
