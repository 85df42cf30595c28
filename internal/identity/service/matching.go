package service

import (
	"context"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

// match gives every listed defendant the same master defendant id. A
// defendant already matched with others under a different master is a
// conflict; nothing changes in that case.
func (s *Service) match(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.DefendantsMatched)
	master := e.MasterDefendantID
	if master.IsNil() {
		master = id.MasterDefendantID(e.Defendants[0].DefendantID)
	}
	group, err := ws.MatchGroup(ctx, master)
	if err != nil {
		return nil, err
	}

	affected := memberCases(group)
	for _, md := range e.Defendants {
		c, err := ws.Case(ctx, md.CaseID)
		if err != nil {
			return nil, err
		}
		d, ok := c.Defendant(md.DefendantID)
		if !ok {
			return nil, invariant("defendant %s is not on case %s", md.DefendantID, c.ID)
		}
		if d.MasterDefendantID != master {
			previous, err := ws.MatchGroup(ctx, d.MasterDefendantID)
			if err != nil {
				return nil, err
			}
			if previous.Has(d.ID) && len(previous.Members) > 1 {
				return nil, conflict("defendant %s is already matched to master defendant %s", d.ID, d.MasterDefendantID)
			}
			previous.Remove(d.ID)
			d.MasterDefendantID = master
		}
		group.Add(models.MatchMember{CaseID: c.ID, DefendantID: d.ID})
		affected = append(affected, c.ID)
	}

	s.logger.InfoContext(ctx, "defendants matched", "master_defendant_id", master, "members", len(group.Members))
	return nil, refreshRelated(ctx, ws, affected...)
}

// unmatch takes a defendant out of its group and gives it back its own id as
// master. A group left with one member is dissolved so no relation survives
// in either direction.
func (s *Service) unmatch(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.DefendantUnmatched)
	c, err := ws.Case(ctx, e.CaseID)
	if err != nil {
		return nil, err
	}
	d, ok := c.Defendant(e.DefendantID)
	if !ok {
		return nil, invariant("defendant %s is not on case %s", e.DefendantID, c.ID)
	}
	master := d.MasterDefendantID
	group, err := ws.MatchGroup(ctx, master)
	if err != nil {
		return nil, err
	}
	affected := append(memberCases(group), c.ID)

	group.Remove(d.ID)
	d.MasterDefendantID = id.MasterDefendantID(d.ID)
	if len(group.Members) < 2 {
		for _, m := range group.Members {
			other, err := ws.Case(ctx, m.CaseID)
			if err != nil {
				return nil, err
			}
			if od, ok := other.Defendant(m.DefendantID); ok {
				od.MasterDefendantID = id.MasterDefendantID(od.ID)
			}
		}
		group.Members = nil
	}

	s.logger.InfoContext(ctx, "defendant unmatched", "defendant_id", d.ID, "master_defendant_id", master)
	return nil, refreshRelated(ctx, ws, affected...)
}
