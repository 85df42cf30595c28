// Package handler exposes the command API. Every command becomes an inbound
// envelope that is submitted for asynchronous processing; the response carries
// the envelope id as the command id.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"progression/internal/engine"
	"progression/internal/events"
	id "progression/pkg/domain"
	dErrors "progression/pkg/domain-errors"
	"progression/pkg/platform/httputil"
	"progression/pkg/requestcontext"
)

const maxBodyBytes = 1 << 20

// Submitter accepts envelopes for processing.
type Submitter interface {
	Submit(ctx context.Context, env events.Envelope) error
}

// Replayer replays parked events.
type Replayer interface {
	ReplayParked(ctx context.Context, f engine.ReplayFilter) (engine.ReplayReport, error)
}

type Handler struct {
	submitter Submitter
	replayer  Replayer
	logger    *slog.Logger
	source    string
}

// CommandAccepted is the 202 response body.
type CommandAccepted struct {
	CommandID string      `json:"commandId"`
	Type      events.Type `json:"type,omitempty"`
}

func New(submitter Submitter, replayer Replayer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{submitter: submitter, replayer: replayer, logger: logger, source: "progression-command"}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/referrals", h.handleReferral)

	r.Put("/hearings/{hearingId}/hearing-days", h.handleHearingDays)
	r.Post("/hearings/{hearingId}/defence-counsels", h.handleAddCounsel)
	r.Put("/hearings/{hearingId}/defence-counsels/{counselId}", h.handleUpdateCounsel)
	r.Delete("/hearings/{hearingId}/defence-counsels/{counselId}", h.handleRemoveCounsel)

	r.Put("/court-applications/{applicationId}/boxwork-assignment", h.handleBoxwork)
	r.Put("/court-applications/{applicationId}/fee", h.handleFee)

	r.Post("/case-links", h.handleLink)
	r.Post("/case-links/{groupId}/unlink", h.handleUnlink)
	r.Post("/prosecution-cases/{caseId}/merge", h.handleMerge)
	r.Post("/prosecution-cases/{caseId}/split", h.handleSplit)
	r.Post("/defendant-matches", h.handleMatch)
	r.Post("/defendant-matches/unmatch", h.handleUnmatch)

	r.Post("/operations/parked/replay", h.handleReplay)
}

func (h *Handler) handleReferral(w http.ResponseWriter, r *http.Request) {
	var evt events.CasesReferredToCourt
	if !h.decode(w, r, &evt) {
		return
	}
	h.submit(w, r, &evt)
}

func (h *Handler) handleHearingDays(w http.ResponseWriter, r *http.Request) {
	hearingID, err := id.ParseHearingID(chi.URLParam(r, "hearingId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var evt events.HearingDaysCorrected
	if !h.decode(w, r, &evt) {
		return
	}
	evt.HearingID = hearingID
	h.submit(w, r, &evt)
}

func (h *Handler) handleAddCounsel(w http.ResponseWriter, r *http.Request) {
	hearingID, err := id.ParseHearingID(chi.URLParam(r, "hearingId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var counsel events.CounselData
	if !h.decode(w, r, &counsel) {
		return
	}
	if counsel.ID == uuid.Nil {
		counsel.ID = uuid.New()
	}
	h.submit(w, r, &events.DefenceCounselAdded{HearingID: hearingID, Counsel: counsel})
}

func (h *Handler) handleUpdateCounsel(w http.ResponseWriter, r *http.Request) {
	hearingID, counselID, ok := h.counselPath(w, r)
	if !ok {
		return
	}
	var counsel events.CounselData
	if !h.decode(w, r, &counsel) {
		return
	}
	counsel.ID = counselID
	h.submit(w, r, &events.DefenceCounselUpdated{HearingID: hearingID, Counsel: counsel})
}

func (h *Handler) handleRemoveCounsel(w http.ResponseWriter, r *http.Request) {
	hearingID, counselID, ok := h.counselPath(w, r)
	if !ok {
		return
	}
	h.submit(w, r, &events.DefenceCounselRemoved{HearingID: hearingID, CounselID: counselID})
}

func (h *Handler) counselPath(w http.ResponseWriter, r *http.Request) (id.HearingID, uuid.UUID, bool) {
	hearingID, err := id.ParseHearingID(chi.URLParam(r, "hearingId"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.HearingID{}, uuid.Nil, false
	}
	counselID, err := uuid.Parse(chi.URLParam(r, "counselId"))
	if err != nil || counselID == uuid.Nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid defence counsel id"))
		return id.HearingID{}, uuid.Nil, false
	}
	return hearingID, counselID, true
}

func (h *Handler) handleBoxwork(w http.ResponseWriter, r *http.Request) {
	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "applicationId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var evt events.BoxworkAssignmentChanged
	if !h.decode(w, r, &evt) {
		return
	}
	evt.ApplicationID = applicationID
	h.submit(w, r, &evt)
}

func (h *Handler) handleFee(w http.ResponseWriter, r *http.Request) {
	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "applicationId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var evt events.ApplicationFeeEdited
	if !h.decode(w, r, &evt) {
		return
	}
	evt.ApplicationID = applicationID
	h.submit(w, r, &evt)
}

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	var evt events.CasesLinked
	if !h.decode(w, r, &evt) {
		return
	}
	h.submit(w, r, &evt)
}

func (h *Handler) handleUnlink(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParseLinkGroupID(chi.URLParam(r, "groupId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var evt events.CasesUnlinked
	if !h.decode(w, r, &evt) {
		return
	}
	evt.LinkGroupID = groupID
	h.submit(w, r, &evt)
}

func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var evt events.CaseMerged
	if !h.decode(w, r, &evt) {
		return
	}
	evt.IntoCaseID = caseID
	h.submit(w, r, &evt)
}

func (h *Handler) handleSplit(w http.ResponseWriter, r *http.Request) {
	caseID, err := id.ParseCaseID(chi.URLParam(r, "caseId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var evt events.CaseSplit
	if !h.decode(w, r, &evt) {
		return
	}
	evt.CaseID = caseID
	h.submit(w, r, &evt)
}

func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	var evt events.DefendantsMatched
	if !h.decode(w, r, &evt) {
		return
	}
	h.submit(w, r, &evt)
}

func (h *Handler) handleUnmatch(w http.ResponseWriter, r *http.Request) {
	var evt events.DefendantUnmatched
	if !h.decode(w, r, &evt) {
		return
	}
	h.submit(w, r, &evt)
}

// ReplayRequest selects parked events to replay. No event ids means all.
type ReplayRequest struct {
	EventIDs []id.EventID `json:"eventIds,omitempty"`
	Limit    int          `json:"limit,omitempty"`
}

func (req *ReplayRequest) Validate() error {
	if req.Limit < 0 {
		return dErrors.New(dErrors.CodeValidation, "limit must not be negative")
	}
	for _, eid := range req.EventIDs {
		if eid.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "eventIds must not contain the nil id")
		}
	}
	return nil
}

// handleReplay starts a replay pass in the background.
func (h *Handler) handleReplay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ReplayRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	commandID := uuid.NewString()
	bg := context.WithoutCancel(ctx)
	go func() {
		report, err := h.replayer.ReplayParked(bg, engine.ReplayFilter{EventIDs: req.EventIDs, Limit: req.Limit})
		if err != nil {
			h.logger.ErrorContext(bg, "parked replay failed", "command_id", commandID, "error", err)
			return
		}
		h.logger.InfoContext(bg, "parked replay finished", "command_id", commandID,
			"replayed", report.Replayed, "resolved", report.Resolved, "still_parked", report.StillParked)
	}()
	httputil.WriteJSON(w, http.StatusAccepted, CommandAccepted{CommandID: commandID})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode command body",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return false
	}
	return true
}

// submit validates the command and hands it over as an envelope.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, evt events.Event) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if err := evt.Validate(); err != nil {
		h.logger.WarnContext(ctx, "command validation failed", "type", evt.EventType(), "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	commandID := id.EventID(uuid.New())
	env, err := events.NewEnvelope(commandID, evt, requestcontext.Now(ctx), h.source)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build envelope", "type", evt.EventType(), "error", err, "request_id", requestID)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build command"))
		return
	}
	if err := h.submitter.Submit(ctx, env); err != nil {
		h.logger.ErrorContext(ctx, "failed to submit command", "type", evt.EventType(), "error", err, "request_id", requestID)
		if dErrors.CodeOf(err) == dErrors.CodeUnavailable {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to submit command"))
		return
	}
	h.logger.InfoContext(ctx, "command accepted", "command_id", commandID, "type", evt.EventType(), "request_id", requestID)
	httputil.WriteJSON(w, http.StatusAccepted, CommandAccepted{CommandID: commandID.String(), Type: evt.EventType()})
}
