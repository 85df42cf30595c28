// Package service answers read queries from the projections. Values that
// depend on the time of reading, or on other cases, are filled in per request
// and never stored.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"progression/internal/derived"
	"progression/internal/parking"
	"progression/internal/progression/models"
	"progression/internal/projection"
	rm "progression/internal/projection/models"
	id "progression/pkg/domain"
	dErrors "progression/pkg/domain-errors"
	"progression/pkg/platform/sentinel"
	"progression/pkg/requestcontext"
)

const maxSearchLimit = 200

type Service struct {
	docs   projection.Store
	search projection.SearchIndex
	parked parking.Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(docs projection.Store, search projection.SearchIndex, parked parking.Store, opts ...Option) *Service {
	s := &Service{docs: docs, search: search, parked: parked, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Case returns the full case with custody days counted up to now.
func (s *Service) Case(ctx context.Context, caseID id.CaseID) (*models.ProsecutionCase, error) {
	var c models.ProsecutionCase
	if err := s.load(ctx, rm.ModelCase, caseID.String(), &c); err != nil {
		return nil, err
	}
	derived.ApplyReadTime(&c, requestcontext.Now(ctx))
	s.enrichRefs(ctx, c.LinkedCases, c.RelatedCases)
	return &c, nil
}

// CaseAtAGlance returns the case overview with custody days counted up to now
// and the status of linked and related cases.
func (s *Service) CaseAtAGlance(ctx context.Context, caseID id.CaseID) (*rm.CaseAtAGlance, error) {
	var caag rm.CaseAtAGlance
	if err := s.load(ctx, rm.ModelCaseAtAGlance, caseID.String(), &caag); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	for i := range caag.Defendants {
		offences := caag.Defendants[i].Offences
		for j := range offences {
			o := &offences[j]
			if o.CustodyTimeLimit == nil {
				continue
			}
			ctl := *o.CustodyTimeLimit
			ctl.DaysSpent = derived.DaysSpent(o.CustodyAnchor, now)
			o.CustodyTimeLimit = &ctl
		}
	}
	s.enrichRefs(ctx, caag.LinkedCases, caag.RelatedCases)
	return &caag, nil
}

// enrichRefs fills the URN and status of referenced cases from their current
// projections. A reference whose case cannot be read keeps what it had.
func (s *Service) enrichRefs(ctx context.Context, linked []models.CaseRef, related []models.RelatedCase) {
	cache := map[id.CaseID]*models.ProsecutionCase{}
	lookup := func(caseID id.CaseID) *models.ProsecutionCase {
		if c, ok := cache[caseID]; ok {
			return c
		}
		var c models.ProsecutionCase
		if err := s.load(ctx, rm.ModelCase, caseID.String(), &c); err != nil {
			s.logger.DebugContext(ctx, "referenced case not readable", "case_id", caseID, "error", err)
			cache[caseID] = nil
			return nil
		}
		cache[caseID] = &c
		return &c
	}
	for i := range linked {
		if c := lookup(linked[i].CaseID); c != nil {
			linked[i].URN = c.URN
			linked[i].Status = c.Status
		}
	}
	for i := range related {
		if c := lookup(related[i].CaseID); c != nil {
			related[i].URN = c.URN
			related[i].Status = c.Status
		}
	}
}

func (s *Service) Hearing(ctx context.Context, hearingID id.HearingID) (*models.Hearing, error) {
	var h models.Hearing
	if err := s.load(ctx, rm.ModelHearing, hearingID.String(), &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// HearingAtAGlance returns the hearing overview with case URNs and defendant
// names taken from the current case projections.
func (s *Service) HearingAtAGlance(ctx context.Context, hearingID id.HearingID) (*rm.HearingAtAGlance, error) {
	var haag rm.HearingAtAGlance
	if err := s.load(ctx, rm.ModelHearingAtAGlance, hearingID.String(), &haag); err != nil {
		return nil, err
	}
	for i := range haag.ProsecutionCases {
		hc := &haag.ProsecutionCases[i]
		var c models.ProsecutionCase
		if err := s.load(ctx, rm.ModelCase, hc.CaseID.String(), &c); err != nil {
			s.logger.DebugContext(ctx, "listed case not readable", "case_id", hc.CaseID, "error", err)
			continue
		}
		hc.URN = c.URN
		for j := range hc.Defendants {
			if d, ok := c.Defendant(hc.Defendants[j].DefendantID); ok {
				hc.Defendants[j].Name = strings.TrimSpace(d.PersonDetails.FirstName + " " + d.PersonDetails.LastName)
			}
		}
	}
	return &haag, nil
}

func (s *Service) Application(ctx context.Context, applicationID id.ApplicationID) (*models.CourtApplication, error) {
	var app models.CourtApplication
	if err := s.load(ctx, rm.ModelApplication, applicationID.String(), &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// SearchCases matches defendants by name, URN and date of birth.
func (s *Service) SearchCases(ctx context.Context, text string, limit int) ([]rm.SearchEntry, error) {
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	q := projection.ParseQuery(text, limit)
	if q.Empty() {
		return nil, dErrors.New(dErrors.CodeValidation, "q must contain a name, URN or date of birth")
	}
	entries, err := s.search.Search(ctx, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "search cases")
	}
	return entries, nil
}

// DeadLetters lists records of one kind, or of every kind when kind is empty.
func (s *Service) DeadLetters(ctx context.Context, kind parking.Kind, limit int) ([]parking.Record, error) {
	if kind != "" && !kind.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown kind %q", kind))
	}
	recs, err := s.parked.List(ctx, parking.Filter{Kind: kind, Limit: limit})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list dead letters")
	}
	return recs, nil
}

func (s *Service) load(ctx context.Context, model rm.Model, docID string, into any) error {
	doc, err := s.docs.Get(ctx, model, docID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("%s %s not found", model, docID))
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load "+string(model))
	}
	if err := json.Unmarshal(doc.Body, into); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "decode "+string(model))
	}
	return nil
}
