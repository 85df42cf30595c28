package handler_test

//go:generate mockgen -source=handler.go -destination=mocks/command-mocks.go -package=mocks Submitter Replayer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"progression/internal/command/handler"
	"progression/internal/command/handler/mocks"
	"progression/internal/engine"
	"progression/internal/events"
	id "progression/pkg/domain"
	"progression/pkg/testutil"
)

type CommandHandlerSuite struct {
	suite.Suite
	submitter *mocks.MockSubmitter
	replayer  *mocks.MockReplayer
	router    chi.Router
}

func TestCommandHandlerSuite(t *testing.T) {
	suite.Run(t, new(CommandHandlerSuite))
}

func (s *CommandHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.submitter = mocks.NewMockSubmitter(ctrl)
	s.replayer = mocks.NewMockReplayer(ctrl)
	s.router = chi.NewRouter()
	handler.New(s.submitter, s.replayer, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

// expectSubmit captures the submitted envelope and decodes it.
func (s *CommandHandlerSuite) expectSubmit() *events.Event {
	var got events.Event
	s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, env events.Envelope) error {
			evt, err := events.Decode(env)
			s.Require().NoError(err)
			got = evt
			return nil
		})
	return &got
}

func (s *CommandHandlerSuite) do(req *http.Request) map[string]any {
	rr := testutil.DoRequest(s.router, req)
	s.Equal(http.StatusAccepted, rr.Code, rr.Body.String())
	body := *testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.NotEmpty(body["commandId"])
	return body
}

func (s *CommandHandlerSuite) TestHearingCommands() {
	hearingID := id.HearingID(uuid.New())
	defendantID := id.DefendantID(uuid.New())

	s.Run("hearing days correction takes the hearing from the path", func() {
		got := s.expectSubmit()
		body := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/hearings/"+hearingID.String()+"/hearing-days", map[string]any{
			"hearingDays": []map[string]any{{"sittingDay": "2024-07-01T10:00:00Z", "listedDurationMinutes": 20}},
		}))
		s.Equal(string(events.TypeHearingDaysCorrected), body["type"])
		evt := (*got).(*events.HearingDaysCorrected)
		s.Equal(hearingID, evt.HearingID)
		s.Len(evt.HearingDays, 1)
	})

	s.Run("added counsel without an id is given one", func() {
		got := s.expectSubmit()
		s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/hearings/"+hearingID.String()+"/defence-counsels", map[string]any{
			"firstName": "Priya", "lastName": "Shah", "defendants": []string{defendantID.String()},
		}))
		evt := (*got).(*events.DefenceCounselAdded)
		s.Equal(hearingID, evt.HearingID)
		s.NotEqual(uuid.Nil, evt.Counsel.ID)
	})

	s.Run("counsel removal needs no body", func() {
		counselID := uuid.New()
		got := s.expectSubmit()
		s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/hearings/"+hearingID.String()+"/defence-counsels/"+counselID.String()))
		evt := (*got).(*events.DefenceCounselRemoved)
		s.Equal(counselID, evt.CounselID)
	})

	s.Run("invalid hearing id is rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPut, "/hearings/not-a-uuid/hearing-days", map[string]any{}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("invalid command is rejected before submission", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPut, "/hearings/"+hearingID.String()+"/hearing-days", map[string]any{
			"hearingDays": []any{},
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed body is rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/hearings/"+hearingID.String()+"/defence-counsels", "{"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *CommandHandlerSuite) TestCaseCommands() {
	caseID := id.CaseID(uuid.New())
	otherID := id.CaseID(uuid.New())

	s.Run("merge takes the surviving case from the path", func() {
		got := s.expectSubmit()
		s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/prosecution-cases/"+caseID.String()+"/merge", map[string]any{
			"mergedProsecutionCaseId": otherID.String(),
		}))
		evt := (*got).(*events.CaseMerged)
		s.Equal(caseID, evt.IntoCaseID)
		s.Equal(otherID, evt.FromCaseID)
	})

	s.Run("merging a case into itself is rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/prosecution-cases/"+caseID.String()+"/merge", map[string]any{
			"mergedProsecutionCaseId": caseID.String(),
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("defendant match", func() {
		got := s.expectSubmit()
		s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/defendant-matches", map[string]any{
			"masterDefendantId": uuid.NewString(),
			"defendants": []map[string]string{
				{"prosecutionCaseId": caseID.String(), "defendantId": uuid.NewString()},
				{"prosecutionCaseId": otherID.String(), "defendantId": uuid.NewString()},
			},
		}))
		s.Len((*got).(*events.DefendantsMatched).Defendants, 2)
	})

	s.Run("case link", func() {
		got := s.expectSubmit()
		s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/case-links", map[string]any{
			"prosecutionCaseIds": []string{caseID.String(), otherID.String()},
		}))
		s.Equal([]id.CaseID{caseID, otherID}, (*got).(*events.CasesLinked).CaseIDs)
	})
}

func (s *CommandHandlerSuite) TestSubmissionFailure() {
	s.Run("full queue maps to 503", func() {
		s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(engine.ErrQueueFull)
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/defendant-matches/unmatch", map[string]any{
			"prosecutionCaseId": uuid.NewString(), "defendantId": uuid.NewString(),
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "unavailable")
	})

	s.Run("other failures are internal", func() {
		s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/defendant-matches/unmatch", map[string]any{
			"prosecutionCaseId": uuid.NewString(), "defendantId": uuid.NewString(),
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
	})
}

func (s *CommandHandlerSuite) TestReplay() {
	eventID := id.EventID(uuid.New())
	done := make(chan engine.ReplayFilter, 1)
	s.replayer.EXPECT().ReplayParked(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, f engine.ReplayFilter) (engine.ReplayReport, error) {
			done <- f
			return engine.ReplayReport{Replayed: 1, Resolved: 1}, nil
		})

	s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/operations/parked/replay", map[string]any{
		"eventIds": []string{eventID.String()},
	}))
	select {
	case f := <-done:
		s.Equal([]id.EventID{eventID}, f.EventIDs)
	case <-time.After(2 * time.Second):
		s.Fail("replay did not start")
	}
}
