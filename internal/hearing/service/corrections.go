package service

import (
	"context"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

func (s *Service) correctDays(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.HearingDaysCorrected)
	h, err := ws.Hearing(ctx, e.HearingID)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(h); err != nil {
		return nil, err
	}
	h.HearingDays = events.HearingDays(e.HearingDays)
	return nil, syncSummaries(ctx, ws, h)
}

func (s *Service) changeCourtRoom(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.HearingCourtRoomChanged)
	h, err := ws.Hearing(ctx, e.HearingID)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(h); err != nil {
		return nil, err
	}
	h.CourtCentre = e.CourtCentre.Model()
	return nil, syncSummaries(ctx, ws, h)
}

func (s *Service) addCases(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.CasesAddedToHearing)
	h, err := ws.Hearing(ctx, e.HearingID)
	if err != nil {
		return nil, err
	}
	if err := requireActive(h); err != nil {
		return nil, err
	}
	incoming := make([]models.HearingCase, 0, len(e.ProsecutionCases))
	for _, pc := range e.ProsecutionCases {
		incoming = append(incoming, pc.Model())
	}
	if err := checkReferences(ctx, ws, incoming); err != nil {
		return nil, err
	}
	mergeCases(h, incoming)
	if err := syncSummaries(ctx, ws, h); err != nil {
		return nil, err
	}

	var intents []events.Intent
	for _, in := range incoming {
		intents = append(intents, offenceChangedIntents(in.CaseID, in.Defendants)...)
	}
	return intents, nil
}

// removeOffences takes offences off a hearing that has not been resulted.
// Defendants and cases left without offences drop out of the hearing.
func (s *Service) removeOffences(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.OffencesRemovedFromHearing)
	h, err := ws.Hearing(ctx, e.HearingID)
	if err != nil {
		return nil, err
	}
	if err := requireActive(h); err != nil {
		return nil, err
	}

	before := h.CaseIDs()
	var intents []events.Intent
	for i := range h.ProsecutionCases {
		hc := &h.ProsecutionCases[i]
		affected := copyDefendants(hc.Defendants)
		if hc.RemoveOffences(e.OffenceIDs) {
			intents = append(intents, offenceChangedIntents(hc.CaseID, affected)...)
		}
	}
	h.PruneEmptyCases()
	return intents, syncSummaries(ctx, ws, h, before...)
}

// upsertCounsel adds or overwrites a defence counsel by id.
func (s *Service) upsertCounsel(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	var hearingID id.HearingID
	var data events.CounselData
	switch e := evt.(type) {
	case *events.DefenceCounselAdded:
		hearingID, data = e.HearingID, e.Counsel
	case *events.DefenceCounselUpdated:
		hearingID, data = e.HearingID, e.Counsel
	}
	h, err := ws.Hearing(ctx, hearingID)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(h); err != nil {
		return nil, err
	}
	counsel := data.Model()
	if existing, _ := h.Counsel(counsel.ID); existing != nil {
		*existing = counsel
		return nil, nil
	}
	h.DefenceCounsels = append(h.DefenceCounsels, counsel)
	return nil, nil
}

func (s *Service) removeCounsel(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.DefenceCounselRemoved)
	h, err := ws.Hearing(ctx, e.HearingID)
	if err != nil {
		return nil, err
	}
	if err := requireEditable(h); err != nil {
		return nil, err
	}
	if _, i := h.Counsel(e.CounselID); i >= 0 {
		h.DefenceCounsels = append(h.DefenceCounsels[:i], h.DefenceCounsels[i+1:]...)
	}
	return nil, nil
}

func (s *Service) updatePlea(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.OffencePleaUpdated)
	c, err := ws.Case(ctx, e.CaseID)
	if err != nil {
		return nil, err
	}
	_, o, ok := c.Offence(e.OffenceID)
	if !ok {
		return nil, invariant("offence %s is not on case %s", e.OffenceID, c.ID)
	}
	o.Plea = &models.Plea{Value: e.Plea.Value, Date: e.Plea.Date.Time}
	return nil, nil
}

func (s *Service) updateVerdict(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.OffenceVerdictUpdated)
	c, err := ws.Case(ctx, e.CaseID)
	if err != nil {
		return nil, err
	}
	_, o, ok := c.Offence(e.OffenceID)
	if !ok {
		return nil, invariant("offence %s is not on case %s", e.OffenceID, c.ID)
	}
	o.Verdict = &models.Verdict{Value: e.Verdict.Value, Date: e.Verdict.Date.Time}
	return nil, nil
}
