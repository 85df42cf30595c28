package gate_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"progression/internal/events"
	"progression/internal/gate"
	"progression/internal/gate/store"
	id "progression/pkg/domain"
	dErrors "progression/pkg/domain-errors"
	"progression/pkg/requestcontext"
)

type GateSuite struct {
	suite.Suite
	store *store.InMemory
	gate  *gate.Gate
	now   time.Time
	ctx   context.Context
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.gate = gate.New(s.store, gate.WithDedupeWindow(time.Hour), gate.WithHashRetention(24*time.Hour))
	s.now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *GateSuite) envelope(evt events.Event, occurredAt time.Time) events.Envelope {
	env, err := events.NewEnvelope(id.EventID(uuid.New()), evt, occurredAt, "listing")
	s.Require().NoError(err)
	return env
}

func (s *GateSuite) listed() events.Event {
	return &events.HearingSentForListing{HearingID: id.HearingID(uuid.New())}
}

func (s *GateSuite) TestIngest() {
	s.Run("first delivery is accepted with its correlation", func() {
		evt := s.listed()
		res, err := s.gate.Ingest(s.ctx, s.envelope(evt, s.now))
		s.Require().NoError(err)
		s.Equal(gate.Accept, res.Outcome)
		s.Equal(evt.Correlate().Primary, res.Correlation.Primary)
	})

	s.Run("redelivery after acknowledge is a duplicate", func() {
		env := s.envelope(s.listed(), s.now)
		res, err := s.gate.Ingest(s.ctx, env)
		s.Require().NoError(err)
		s.Require().NoError(s.gate.Acknowledge(s.ctx, env, res.Correlation))

		again, err := s.gate.Ingest(s.ctx, env)
		s.Require().NoError(err)
		s.Equal(gate.Duplicate, again.Outcome)
	})

	s.Run("unacknowledged event is accepted again", func() {
		env := s.envelope(s.listed(), s.now)
		_, err := s.gate.Ingest(s.ctx, env)
		s.Require().NoError(err)
		res, err := s.gate.Ingest(s.ctx, env)
		s.Require().NoError(err)
		s.Equal(gate.Accept, res.Outcome)
	})

	s.Run("old event with a new id is deduplicated by content", func() {
		evt := s.listed()
		first := s.envelope(evt, s.now.Add(-2*time.Hour))
		res, err := s.gate.Ingest(s.ctx, first)
		s.Require().NoError(err)
		s.Require().NoError(s.gate.Acknowledge(s.ctx, first, res.Correlation))

		replayed := s.envelope(evt, s.now.Add(-2*time.Hour))
		again, err := s.gate.Ingest(s.ctx, replayed)
		s.Require().NoError(err)
		s.Equal(gate.Duplicate, again.Outcome)
	})

	s.Run("recent event with same content and new id is accepted", func() {
		evt := s.listed()
		first := s.envelope(evt, s.now)
		res, err := s.gate.Ingest(s.ctx, first)
		s.Require().NoError(err)
		s.Require().NoError(s.gate.Acknowledge(s.ctx, first, res.Correlation))

		again, err := s.gate.Ingest(s.ctx, s.envelope(evt, s.now))
		s.Require().NoError(err)
		s.Equal(gate.Accept, again.Outcome)
	})

	s.Run("id marker holds within the window", func() {
		env := s.envelope(s.listed(), s.now)
		res, err := s.gate.Ingest(s.ctx, env)
		s.Require().NoError(err)
		s.Require().NoError(s.gate.Acknowledge(s.ctx, env, res.Correlation))

		later := requestcontext.WithTime(context.Background(), s.now.Add(30*time.Minute))
		again, err := s.gate.Ingest(later, env)
		s.Require().NoError(err)
		s.Equal(gate.Duplicate, again.Outcome)
	})
}

func (s *GateSuite) TestRejections() {
	s.Run("unknown type is unroutable", func() {
		env := events.Envelope{
			ID:      id.EventID(uuid.New()),
			Type:    "listing-court-closed",
			Payload: json.RawMessage(`{"hearingId":"x"}`),
		}
		res, err := s.gate.Ingest(s.ctx, env)
		s.Require().NoError(err)
		s.Equal(gate.Unroutable, res.Outcome)
	})

	s.Run("missing aggregate id is unroutable", func() {
		res, err := s.gate.Ingest(s.ctx, s.envelope(&events.HearingSentForListing{}, s.now))
		s.Require().NoError(err)
		s.Equal(gate.Unroutable, res.Outcome)
		s.Equal("missing correlation key", res.Reason)
	})

	s.Run("malformed payload is a validation error", func() {
		env := s.envelope(&events.HearingDaysCorrected{HearingID: id.HearingID(uuid.New())}, s.now)
		_, err := s.gate.Ingest(s.ctx, env)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("envelope without id is a validation error", func() {
		env := s.envelope(s.listed(), s.now)
		env.ID = id.EventID{}
		_, err := s.gate.Ingest(s.ctx, env)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *GateSuite) TestContentHash() {
	evt := s.listed()
	a := s.envelope(evt, s.now)
	b := s.envelope(evt, s.now.Add(time.Minute))
	s.Equal(gate.ContentHash(a), gate.ContentHash(b))

	c := s.envelope(s.listed(), s.now)
	s.NotEqual(gate.ContentHash(a), gate.ContentHash(c))
}
