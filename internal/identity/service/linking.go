package service

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
)

var linkGroupNamespace = uuid.MustParse("9b2e7c10-3d4f-5a6b-8c7d-0e1f2a3b4c5d")

// link puts the cases in one link group. Cases already in another group bring
// that whole group along.
func (s *Service) link(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.CasesLinked)
	cases := make([]*models.ProsecutionCase, 0, len(e.CaseIDs))
	for _, caseID := range e.CaseIDs {
		c, err := ws.Case(ctx, caseID)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	targetID := linkTarget(e, cases)
	target, err := ws.LinkGroup(ctx, targetID)
	if err != nil {
		return nil, err
	}
	for _, c := range cases {
		if c.LinkGroupID != nil && *c.LinkGroupID != targetID {
			if err := absorb(ctx, ws, target, *c.LinkGroupID); err != nil {
				return nil, err
			}
		}
		target.Add(c.ID)
	}
	for _, caseID := range target.CaseIDs {
		c, err := ws.Case(ctx, caseID)
		if err != nil {
			return nil, err
		}
		gid := targetID
		c.LinkGroupID = &gid
	}

	s.logger.InfoContext(ctx, "cases linked", "link_group_id", targetID, "cases", len(target.CaseIDs))
	return nil, refreshLinked(ctx, ws, target.CaseIDs)
}

// linkTarget picks the group the cases end up in: the named group, else the
// group one of the cases already belongs to, else a group derived from the ids.
func linkTarget(e *events.CasesLinked, cases []*models.ProsecutionCase) id.LinkGroupID {
	if e.LinkGroupID != nil && !e.LinkGroupID.IsNil() {
		return *e.LinkGroupID
	}
	for _, c := range cases {
		if c.LinkGroupID != nil {
			return *c.LinkGroupID
		}
	}
	ids := make([]string, 0, len(cases))
	for _, c := range cases {
		ids = append(ids, c.ID.String())
	}
	sort.Strings(ids)
	return id.LinkGroupID(uuid.NewSHA1(linkGroupNamespace, []byte(strings.Join(ids, ","))))
}

func absorb(ctx context.Context, ws *aggregate.Workspace, target *models.LinkGroup, otherID id.LinkGroupID) error {
	other, err := ws.LinkGroup(ctx, otherID)
	if err != nil {
		return err
	}
	for _, caseID := range other.CaseIDs {
		target.Add(caseID)
	}
	other.CaseIDs = nil
	return nil
}

// unlink takes cases out of a group. A group left with fewer than two cases
// is dissolved and its remaining case unlinked too.
func (s *Service) unlink(ctx context.Context, ws *aggregate.Workspace, evt events.Event) ([]events.Intent, error) {
	e := evt.(*events.CasesUnlinked)
	group, err := ws.LinkGroup(ctx, e.LinkGroupID)
	if err != nil {
		return nil, err
	}

	var released []id.CaseID
	for _, caseID := range e.CaseIDs {
		if group.Remove(caseID) {
			released = append(released, caseID)
		}
	}
	if len(released) == 0 {
		return nil, nil
	}
	if len(group.CaseIDs) < 2 {
		released = append(released, group.CaseIDs...)
		group.CaseIDs = nil
	}
	for _, caseID := range released {
		c, err := ws.Case(ctx, caseID)
		if err != nil {
			return nil, err
		}
		c.LinkGroupID = nil
		c.LinkedCases = nil
	}

	s.logger.InfoContext(ctx, "cases unlinked", "link_group_id", e.LinkGroupID, "released", len(released))
	return nil, refreshLinked(ctx, ws, group.CaseIDs)
}

// refreshLinked writes the other group members onto each case.
func refreshLinked(ctx context.Context, ws *aggregate.Workspace, members []id.CaseID) error {
	loaded := make([]*models.ProsecutionCase, 0, len(members))
	for _, caseID := range members {
		c, err := ws.Case(ctx, caseID)
		if err != nil {
			return err
		}
		loaded = append(loaded, c)
	}
	for _, c := range loaded {
		var refs []models.CaseRef
		for _, other := range loaded {
			if other.ID != c.ID {
				refs = append(refs, models.CaseRef{CaseID: other.ID, URN: other.URN})
			}
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].CaseID.String() < refs[j].CaseID.String() })
		c.LinkedCases = refs
	}
	return nil
}
