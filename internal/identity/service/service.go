// Package service resolves defendant identity across cases and maintains the
// relationships between cases: master defendant matching, case links, merges
// and splits.
//
// Relationships live in their own aggregates (match groups keyed by master
// defendant id, link groups keyed by group id) and are copied onto each member
// case after every change, so "which cases are related to X" is answered from
// the case alone.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
	dErrors "progression/pkg/domain-errors"
)

// Service applies identity events.
type Service struct {
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(opts ...Option) *Service {
	s := &Service{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handlers returns the inbound event types this service owns.
func (s *Service) Handlers() map[events.Type]events.Handler {
	return map[events.Type]events.Handler{
		events.TypeDefendantsMatched:  s.match,
		events.TypeDefendantUnmatched: s.unmatch,
		events.TypeCasesLinked:        s.link,
		events.TypeCasesUnlinked:      s.unlink,
		events.TypeCaseMerged:         s.merge,
		events.TypeCaseSplit:          s.split,
	}
}

func conflict(format string, args ...any) error {
	return dErrors.New(dErrors.CodeConflict, fmt.Sprintf(format, args...))
}

func invariant(format string, args ...any) error {
	return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf(format, args...))
}

// RelatedCases lists the other cases holding a defendant with the same master
// defendant id as one of c's defendants. Single-member groups relate nothing.
func RelatedCases(ctx context.Context, ws *aggregate.Workspace, c *models.ProsecutionCase) ([]models.RelatedCase, error) {
	type relKey struct {
		caseID id.CaseID
		master id.MasterDefendantID
	}
	related := map[relKey]*models.RelatedCase{}
	for _, d := range c.Defendants {
		g, ok, err := aggregate.Find[models.MatchGroup](ctx, ws, aggregate.MasterDefendantKey(d.MasterDefendantID))
		if err != nil {
			return nil, err
		}
		if !ok || len(g.Members) < 2 || !g.Has(d.ID) {
			continue
		}
		for _, m := range g.Members {
			if m.CaseID == c.ID {
				continue
			}
			k := relKey{caseID: m.CaseID, master: d.MasterDefendantID}
			rc, ok := related[k]
			if !ok {
				other, err := ws.Case(ctx, m.CaseID)
				if err != nil {
					return nil, err
				}
				rc = &models.RelatedCase{CaseID: m.CaseID, URN: other.URN, MasterDefendantID: d.MasterDefendantID}
				related[k] = rc
			}
			rc.DefendantIDs = append(rc.DefendantIDs, m.DefendantID)
		}
	}

	out := make([]models.RelatedCase, 0, len(related))
	for _, rc := range related {
		sort.Slice(rc.DefendantIDs, func(i, j int) bool { return rc.DefendantIDs[i].String() < rc.DefendantIDs[j].String() })
		out = append(out, *rc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CaseID != out[j].CaseID {
			return out[i].CaseID.String() < out[j].CaseID.String()
		}
		return out[i].MasterDefendantID.String() < out[j].MasterDefendantID.String()
	})
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// refreshRelated recomputes RelatedCases on every listed case.
func refreshRelated(ctx context.Context, ws *aggregate.Workspace, caseIDs ...id.CaseID) error {
	seen := map[id.CaseID]bool{}
	for _, caseID := range caseIDs {
		if seen[caseID] {
			continue
		}
		seen[caseID] = true
		c, err := ws.Case(ctx, caseID)
		if err != nil {
			return err
		}
		related, err := RelatedCases(ctx, ws, c)
		if err != nil {
			return err
		}
		c.RelatedCases = related
	}
	return nil
}

func memberCases(g *models.MatchGroup) []id.CaseID {
	out := make([]id.CaseID, 0, len(g.Members))
	for _, m := range g.Members {
		out = append(out, m.CaseID)
	}
	return out
}

func addReference(c *models.ProsecutionCase, ref models.RelatedReference) {
	for _, existing := range c.RelatedReferences {
		if existing.CaseID == ref.CaseID && existing.Relation == ref.Relation {
			return
		}
	}
	c.RelatedReferences = append(c.RelatedReferences, ref)
}
