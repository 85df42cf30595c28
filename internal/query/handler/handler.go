package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"progression/internal/parking"
	"progression/internal/progression/models"
	rm "progression/internal/projection/models"
	id "progression/pkg/domain"
	dErrors "progression/pkg/domain-errors"
	"progression/pkg/platform/httputil"
	"progression/pkg/requestcontext"
)

const defaultLimit = 50

// Service answers read queries.
type Service interface {
	Case(ctx context.Context, caseID id.CaseID) (*models.ProsecutionCase, error)
	CaseAtAGlance(ctx context.Context, caseID id.CaseID) (*rm.CaseAtAGlance, error)
	Hearing(ctx context.Context, hearingID id.HearingID) (*models.Hearing, error)
	HearingAtAGlance(ctx context.Context, hearingID id.HearingID) (*rm.HearingAtAGlance, error)
	Application(ctx context.Context, applicationID id.ApplicationID) (*models.CourtApplication, error)
	SearchCases(ctx context.Context, text string, limit int) ([]rm.SearchEntry, error)
	DeadLetters(ctx context.Context, kind parking.Kind, limit int) ([]parking.Record, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

// SearchResponse wraps search hits.
type SearchResponse struct {
	Results []rm.SearchEntry `json:"searchResults"`
	Total   int              `json:"totalResults"`
}

// DeadLettersResponse wraps dead-letter records.
type DeadLettersResponse struct {
	Records []parking.Record `json:"records"`
	Total   int              `json:"total"`
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/prosecution-cases/{caseId}", h.handleCase)
	r.Get("/prosecution-cases/{caseId}/at-a-glance", h.handleCaseAtAGlance)
	r.Get("/hearings/{hearingId}", h.handleHearing)
	r.Get("/hearings/{hearingId}/at-a-glance", h.handleHearingAtAGlance)
	r.Get("/court-applications/{applicationId}", h.handleApplication)
	r.Get("/search/cases", h.handleSearch)
	r.Get("/operations/dead-letters", h.handleDeadLetters)
}

func (h *Handler) handleCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.service.Case(r.Context(), caseID)
	h.respond(w, r, "case", res, err)
}

func (h *Handler) handleCaseAtAGlance(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.service.CaseAtAGlance(r.Context(), caseID)
	h.respond(w, r, "case at a glance", res, err)
}

func (h *Handler) handleHearing(w http.ResponseWriter, r *http.Request) {
	hearingID, err := id.ParseHearingID(chi.URLParam(r, "hearingId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.service.Hearing(r.Context(), hearingID)
	h.respond(w, r, "hearing", res, err)
}

func (h *Handler) handleHearingAtAGlance(w http.ResponseWriter, r *http.Request) {
	hearingID, err := id.ParseHearingID(chi.URLParam(r, "hearingId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.service.HearingAtAGlance(r.Context(), hearingID)
	h.respond(w, r, "hearing at a glance", res, err)
}

func (h *Handler) handleApplication(w http.ResponseWriter, r *http.Request) {
	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "applicationId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.service.Application(r.Context(), applicationID)
	h.respond(w, r, "application", res, err)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	hits, err := h.service.SearchCases(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.respond(w, r, "search", nil, err)
		return
	}
	if hits == nil {
		hits = []rm.SearchEntry{}
	}
	httputil.WriteJSON(w, http.StatusOK, SearchResponse{Results: hits, Total: len(hits)})
}

func (h *Handler) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recs, err := h.service.DeadLetters(r.Context(), parking.Kind(r.URL.Query().Get("kind")), limit)
	if err != nil {
		h.respond(w, r, "dead letters", nil, err)
		return
	}
	if recs == nil {
		recs = []parking.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, DeadLettersResponse{Records: recs, Total: len(recs)})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, what string, res any, err error) {
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(r.Context(), "query failed", "query", what, "error", err,
				"request_id", requestcontext.RequestID(r.Context()))
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
	}
	return limit, nil
}
