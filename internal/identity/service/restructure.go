package service

import (
	"context"
	"slices"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

// merge moves every defendant of one case into another. The emptied case
// stays, INACTIVE, pointing at the case it was merged into.
func (s *Service) merge(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.CaseMerged)
	into, err := ws.Case(ctx, e.IntoCaseID)
	if err != nil {
		return nil, err
	}
	from, err := ws.Case(ctx, e.FromCaseID)
	if err != nil {
		return nil, err
	}
	if from.MergedIntoCaseID != nil {
		if *from.MergedIntoCaseID == into.ID {
			return nil, nil
		}
		return nil, conflict("case %s is already merged into %s", from.ID, *from.MergedIntoCaseID)
	}
	if into.MergedIntoCaseID != nil {
		return nil, conflict("case %s was merged away and cannot receive defendants", into.ID)
	}
	for _, d := range from.Defendants {
		if active := from.ActiveHearingsFor(d.ID); len(active) > 0 {
			return nil, conflict("defendant %s is in active hearing %s", d.ID, active[0])
		}
		if _, ok := into.Defendant(d.ID); ok {
			return nil, invariant("defendant %s is already on case %s", d.ID, into.ID)
		}
	}

	moved := from.Defendants
	from.Defendants = nil
	into.Defendants = append(into.Defendants, moved...)
	intoID := into.ID
	from.MergedIntoCaseID = &intoID
	addReference(into, models.RelatedReference{CaseID: from.ID, URN: from.URN, Relation: models.RelationMergedFrom})
	addReference(from, models.RelatedReference{CaseID: into.ID, URN: into.URN, Relation: models.RelationMergedInto})
	if err := moveHearingRefs(ctx, ws, from, into, moved); err != nil {
		return nil, err
	}

	affected, err := relocateMembers(ctx, ws, into.ID, moved)
	if err != nil {
		return nil, err
	}
	if err := refreshRelated(ctx, ws, append(affected, into.ID, from.ID)...); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "case merged", "case_id", into.ID, "merged_case_id", from.ID, "defendants", len(moved))
	intents := make([]events.Intent, 0, len(moved))
	for _, d := range moved {
		intents = append(intents, events.Intent{
			Type:    events.OutDefendantOffencesChanged,
			Key:     aggregate.CaseKey(into.ID),
			Subject: d.ID.String(),
		})
	}
	return intents, nil
}

// split moves defendants into new cases. A case left without defendants
// becomes INACTIVE.
func (s *Service) split(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.CaseSplit)
	source, err := ws.Case(ctx, e.CaseID)
	if err != nil {
		return nil, err
	}

	var intents []events.Intent
	var affected []id.CaseID
	for _, part := range e.Parts {
		existing, exists, err := ws.FindCase(ctx, part.NewCaseID)
		if err != nil {
			return nil, err
		}
		if exists {
			if !splitFrom(existing, source.ID) {
				return nil, conflict("case %s already exists", part.NewCaseID)
			}
			continue
		}

		var moved []models.Defendant
		for _, defendantID := range part.DefendantIDs {
			d, ok := source.Defendant(defendantID)
			if !ok {
				return nil, invariant("defendant %s is not on case %s", defendantID, source.ID)
			}
			if active := source.ActiveHearingsFor(d.ID); len(active) > 0 {
				return nil, conflict("defendant %s is in active hearing %s", d.ID, active[0])
			}
			moved = append(moved, *d)
		}
		for _, d := range moved {
			removeDefendant(source, d.ID)
		}

		created := &models.ProsecutionCase{
			ID:                   part.NewCaseID,
			URN:                  part.URN,
			Status:               models.CaseStatusActive,
			ProsecutingAuthority: source.ProsecutingAuthority,
			InitiationDate:       source.InitiationDate,
			Defendants:           moved,
			RelatedReferences: []models.RelatedReference{
				{CaseID: source.ID, URN: source.URN, Relation: models.RelationSplitFrom},
			},
		}
		if err := ws.CreateCase(ctx, created); err != nil {
			return nil, err
		}
		addReference(source, models.RelatedReference{CaseID: created.ID, URN: created.URN, Relation: models.RelationSplitTo})
		if err := moveHearingRefs(ctx, ws, source, created, moved); err != nil {
			return nil, err
		}

		relocated, err := relocateMembers(ctx, ws, created.ID, moved)
		if err != nil {
			return nil, err
		}
		affected = append(affected, relocated...)
		affected = append(affected, created.ID)
		intents = append(intents, events.Intent{Type: events.OutProsecutionCaseCreated, Key: aggregate.CaseKey(created.ID)})
		s.logger.InfoContext(ctx, "case split", "case_id", source.ID, "new_case_id", created.ID, "defendants", len(moved))
	}

	return intents, refreshRelated(ctx, ws, append(affected, source.ID)...)
}

func splitFrom(c *models.ProsecutionCase, sourceID id.CaseID) bool {
	for _, ref := range c.RelatedReferences {
		if ref.CaseID == sourceID && ref.Relation == models.RelationSplitFrom {
			return true
		}
	}
	return false
}

func removeDefendant(c *models.ProsecutionCase, defendantID id.DefendantID) {
	for i := range c.Defendants {
		if c.Defendants[i].ID == defendantID {
			c.Defendants = append(c.Defendants[:i], c.Defendants[i+1:]...)
			return
		}
	}
}

// moveHearingRefs hands the hearing references of moved defendants from one
// case to another, on the case summaries and on the hearings themselves, so
// their offences keep counting every hearing they were listed in.
func moveHearingRefs(ctx context.Context, ws *aggregate.Workspace, from, to *models.ProsecutionCase, moved []models.Defendant) error {
	ids := make(map[id.DefendantID]bool, len(moved))
	for _, d := range moved {
		ids[d.ID] = true
	}

	var kept []models.HearingSummary
	for _, summary := range from.Hearings {
		taken, rest := partitionRefs(summary.Defendants, ids)
		if len(taken) == 0 {
			kept = append(kept, summary)
			continue
		}
		if len(rest) > 0 {
			remaining := summary
			remaining.Defendants = rest
			kept = append(kept, remaining)
		}
		if existing, ok := to.HearingSummary(summary.ID); ok {
			existing.Defendants, _ = models.MergeDefendantOffences(existing.Defendants, taken)
		} else {
			carried := summary
			carried.HearingDays = slices.Clone(summary.HearingDays)
			carried.Defendants = taken
			to.Hearings = append(to.Hearings, carried)
		}

		h, found, err := ws.FindHearing(ctx, summary.ID)
		if err != nil {
			return err
		}
		if found {
			repointHearing(h, from.ID, to.ID, ids)
		}
	}
	from.Hearings = kept
	return nil
}

func repointHearing(h *models.Hearing, fromID, toID id.CaseID, ids map[id.DefendantID]bool) {
	ref, ok := h.Case(fromID)
	if !ok {
		return
	}
	taken, rest := partitionRefs(ref.Defendants, ids)
	if len(taken) == 0 {
		return
	}
	ref.Defendants = rest
	if target, ok := h.Case(toID); ok {
		target.MergeDefendants(taken)
	} else {
		h.ProsecutionCases = append(h.ProsecutionCases, models.HearingCase{CaseID: toID, Defendants: taken})
	}
	h.PruneEmptyCases()
}

func partitionRefs(refs []models.HearingDefendantOffences, ids map[id.DefendantID]bool) (taken, rest []models.HearingDefendantOffences) {
	for _, r := range refs {
		if ids[r.DefendantID] {
			taken = append(taken, r)
		} else {
			rest = append(rest, r)
		}
	}
	return taken, rest
}

// relocateMembers points the match group entries of moved defendants at their
// new case and returns every case sharing those groups.
func relocateMembers(ctx context.Context, ws *aggregate.Workspace, caseID id.CaseID, moved []models.Defendant) ([]id.CaseID, error) {
	var affected []id.CaseID
	for _, d := range moved {
		group, err := ws.MatchGroup(ctx, d.MasterDefendantID)
		if err != nil {
			return nil, err
		}
		if !group.Has(d.ID) {
			continue
		}
		affected = append(affected, memberCases(group)...)
		group.Add(models.MatchMember{CaseID: caseID, DefendantID: d.ID})
	}
	return affected, nil
}
