// Package service runs the hearing lifecycle: confirmation and extension,
// listing, resulting, re-opening, deletion and in-place corrections.
//
// Handlers mutate aggregates through an aggregate.Workspace. The hearing owns
// its case, defendant and offence references; every change is mirrored into
// the case-side hearing summary so derived listing numbers follow.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/progression/models"
	id "progression/pkg/domain"
	dErrors "progression/pkg/domain-errors"
)

// unscheduledNamespace seeds ids of hearings spawned for unscheduled listing.
var unscheduledNamespace = uuid.MustParse("0c3f8f5e-7a0d-5b8e-8f4e-1d2c3b4a5e6f")

// Service applies hearing events.
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
		events.TypeHearingConfirmed:           s.confirm,
		events.TypeHearingSentForListing:      s.sendForListing,
		events.TypeHearingResulted:            s.result,
		events.TypeHearingResultedCaseUpdated: s.resultCaseUpdate,
		events.TypeHearingReopened:            s.reopen,
		events.TypeHearingDeleted:             s.delete,
		events.TypeHearingDaysCorrected:       s.correctDays,
		events.TypeHearingCourtRoomChanged:    s.changeCourtRoom,
		events.TypeCasesAddedToHearing:        s.addCases,
		events.TypeOffencesRemovedFromHearing: s.removeOffences,
		events.TypeDefenceCounselAdded:        s.upsertCounsel,
		events.TypeDefenceCounselUpdated:      s.upsertCounsel,
		events.TypeDefenceCounselRemoved:      s.removeCounsel,
		events.TypeOffencePleaUpdated:         s.updatePlea,
		events.TypeOffenceVerdictUpdated:      s.updateVerdict,
	}
}

// UnscheduledHearingID is the id of the hearing spawned when hearingID is
// resulted with unscheduled offences. Replays always reach the same hearing.
func UnscheduledHearingID(hearingID id.HearingID) id.HearingID {
	return id.HearingID(uuid.NewSHA1(unscheduledNamespace, []byte(hearingID.String()+"unscheduled")))
}

func conflict(format string, args ...any) error {
	return dErrors.New(dErrors.CodeConflict, fmt.Sprintf(format, args...))
}

func invariant(format string, args ...any) error {
	return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf(format, args...))
}

// requireEditable rejects changes to a hearing that is gone.
func requireEditable(h *models.Hearing) error {
	if h.Status == models.HearingDeleted {
		return conflict("hearing %s is deleted", h.ID)
	}
	return nil
}

// requireActive rejects changes that only apply before a hearing is resulted.
func requireActive(h *models.Hearing) error {
	if !h.Status.Active() {
		return conflict("hearing %s is %s", h.ID, h.Status)
	}
	return nil
}

// syncSummaries mirrors the hearing into the summary of every case it
// references and drops the summary from cases it no longer references.
func syncSummaries(ctx context.Context, ws *aggregate.Workspace, h *models.Hearing, formerCases ...id.CaseID) error {
	for _, hc := range h.ProsecutionCases {
		c, err := ws.Case(ctx, hc.CaseID)
		if err != nil {
			return err
		}
		putSummary(c, h, hc)
	}
	for _, caseID := range formerCases {
		if _, ok := h.Case(caseID); ok {
			continue
		}
		c, err := ws.Case(ctx, caseID)
		if err != nil {
			return err
		}
		c.RemoveHearing(h.ID)
	}
	return nil
}

// checkReferences enforces that newly listed defendants and offences belong to
// the case they are listed under.
func checkReferences(ctx context.Context, ws *aggregate.Workspace, cases []models.HearingCase) error {
	for _, hc := range cases {
		c, err := ws.Case(ctx, hc.CaseID)
		if err != nil {
			return err
		}
		if err := checkCase(c, hc); err != nil {
			return err
		}
	}
	return nil
}

func checkCase(c *models.ProsecutionCase, hc models.HearingCase) error {
	for _, ref := range hc.Defendants {
		d, ok := c.Defendant(ref.DefendantID)
		if !ok {
			return invariant("defendant %s is not on case %s", ref.DefendantID, c.ID)
		}
		for _, offenceID := range ref.OffenceIDs {
			if _, ok := d.Offence(offenceID); !ok {
				return invariant("offence %s is not on defendant %s", offenceID, d.ID)
			}
		}
	}
	return nil
}

func putSummary(c *models.ProsecutionCase, h *models.Hearing, hc models.HearingCase) {
	summary := models.HearingSummary{
		ID:            h.ID,
		ListingStatus: h.Status,
		Type:          h.Type,
		CourtCentre:   h.CourtCentre,
		HearingDays:   append([]models.HearingDay(nil), h.HearingDays...),
		Defendants:    copyDefendants(hc.Defendants),
	}
	if existing, ok := c.HearingSummary(h.ID); ok {
		*existing = summary
		return
	}
	c.Hearings = append(c.Hearings, summary)
}

func copyDefendants(in []models.HearingDefendantOffences) []models.HearingDefendantOffences {
	out := make([]models.HearingDefendantOffences, 0, len(in))
	for _, d := range in {
		out = append(out, models.HearingDefendantOffences{
			DefendantID: d.DefendantID,
			OffenceIDs:  append([]id.OffenceID(nil), d.OffenceIDs...),
		})
	}
	return out
}

func copyCases(in []models.HearingCase) []models.HearingCase {
	out := make([]models.HearingCase, 0, len(in))
	for _, c := range in {
		out = append(out, models.HearingCase{CaseID: c.CaseID, Defendants: copyDefendants(c.Defendants)})
	}
	return out
}

func offenceChangedIntents(caseID id.CaseID, defendants []models.HearingDefendantOffences) []events.Intent {
	out := make([]events.Intent, 0, len(defendants))
	for _, d := range defendants {
		out = append(out, events.Intent{
			Type:    events.OutDefendantOffencesChanged,
			Key:     aggregate.CaseKey(caseID),
			Subject: d.DefendantID.String(),
		})
	}
	return out
}
