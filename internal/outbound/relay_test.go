package outbound_test

//go:generate mockgen -source=relay.go -destination=mocks/sink-mocks.go -package=mocks Sink
//go:generate mockgen -source=sink_kafka.go -destination=mocks/producer-mocks.go -package=mocks Producer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"progression/internal/aggregate"
	"progression/internal/events"
	"progression/internal/outbound"
	"progression/internal/outbound/mocks"
	"progression/internal/outbound/store"
	"progression/pkg/platform/circuit"
)

var errSinkDown = errors.New("broker unavailable")

type RelaySuite struct {
	suite.Suite
	ctrl  *gomock.Controller
	sink  *mocks.MockSink
	store *store.InMemory
	now   time.Time
	ctx   context.Context
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.sink = mocks.NewMockSink(s.ctrl)
	s.store = store.NewInMemory()
	s.now = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	s.ctx = context.Background()
}

func (s *RelaySuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RelaySuite) relay(opts ...outbound.RelayOption) *outbound.Relay {
	base := []outbound.RelayOption{
		outbound.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		outbound.WithClock(func() time.Time { return s.now }),
		outbound.WithBreaker(circuit.New("test", circuit.WithFailureThreshold(100))),
	}
	return outbound.NewRelay(s.store, s.sink, append(base, opts...)...)
}

func (s *RelaySuite) entry(aggregateID string, version int64) outbound.Entry {
	key := aggregate.Key{Kind: aggregate.KindCase, ID: aggregateID}
	return outbound.Entry{
		ID:               outbound.EntryID(events.OutDefendantOffencesChanged, key, version, ""),
		Type:             events.OutDefendantOffencesChanged,
		Key:              key,
		AggregateVersion: version,
		Payload:          []byte(`{}`),
		Status:           outbound.StatusStaged,
		CreatedAt:        s.now,
	}
}

func (s *RelaySuite) stageReleased(entries ...outbound.Entry) {
	s.Require().NoError(s.store.Stage(s.ctx, entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	s.Require().NoError(s.store.Release(s.ctx, ids))
}

func (s *RelaySuite) status(id string) outbound.Entry {
	all, err := s.store.List(s.ctx, "", 0)
	s.Require().NoError(err)
	for _, e := range all {
		if e.ID == id {
			return e
		}
	}
	s.FailNow("entry not found", id)
	return outbound.Entry{}
}

func (s *RelaySuite) TestDrain() {
	s.Run("publishes released entries in staging order", func() {
		s.SetupTest()
		first, second := s.entry("case-1", 1), s.entry("case-1", 2)
		s.stageReleased(first, second)

		gomock.InOrder(
			s.sink.EXPECT().Publish(gomock.Any(), gomock.Cond(func(m outbound.Message) bool { return m.Version == 1 })).Return(nil),
			s.sink.EXPECT().Publish(gomock.Any(), gomock.Cond(func(m outbound.Message) bool { return m.Version == 2 })).Return(nil),
		)

		n, err := s.relay().Drain(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, n)
		s.Equal(outbound.StatusPublished, s.status(first.ID).Status)
		s.Equal(outbound.StatusPublished, s.status(second.ID).Status)
	})

	s.Run("staged entries wait for release", func() {
		s.SetupTest()
		s.Require().NoError(s.store.Stage(s.ctx, []outbound.Entry{s.entry("case-1", 1)}))

		n, err := s.relay().Drain(s.ctx)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("staging the same entry twice publishes it once", func() {
		s.SetupTest()
		e := s.entry("case-1", 1)
		s.stageReleased(e)
		s.sink.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(1)

		r := s.relay()
		_, err := r.Drain(s.ctx)
		s.Require().NoError(err)

		s.stageReleased(e)
		n, err := r.Drain(s.ctx)
		s.Require().NoError(err)
		s.Zero(n)
	})
}

func (s *RelaySuite) TestFailures() {
	s.Run("failed entry backs off and holds back its aggregate", func() {
		s.SetupTest()
		failing, queued, other := s.entry("case-1", 1), s.entry("case-1", 2), s.entry("case-2", 1)
		s.stageReleased(failing, queued, other)

		s.sink.EXPECT().Publish(gomock.Any(), gomock.Cond(func(m outbound.Message) bool { return m.ID == failing.ID })).Return(errSinkDown)
		s.sink.EXPECT().Publish(gomock.Any(), gomock.Cond(func(m outbound.Message) bool { return m.ID == other.ID })).Return(nil)

		n, err := s.relay(outbound.WithBackoff(time.Second, time.Minute)).Drain(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, n)

		got := s.status(failing.ID)
		s.Equal(outbound.StatusPending, got.Status)
		s.Equal(1, got.Attempts)
		s.Equal(errSinkDown.Error(), got.LastError)
		s.True(got.NextAttemptAt.Equal(s.now.Add(time.Second)))
		s.Equal(outbound.StatusPending, s.status(queued.ID).Status)
	})

	s.Run("backoff doubles per attempt", func() {
		s.SetupTest()
		e := s.entry("case-1", 1)
		e.Attempts = 2
		s.stageReleased(e)
		s.sink.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errSinkDown)

		_, err := s.relay(outbound.WithBackoff(time.Second, time.Minute)).Drain(s.ctx)
		s.Require().NoError(err)

		got := s.status(e.ID)
		s.Equal(3, got.Attempts)
		s.True(got.NextAttemptAt.Equal(s.now.Add(4*time.Second)), "next attempt at %s", got.NextAttemptAt)
	})

	s.Run("retries once the backoff has elapsed", func() {
		s.SetupTest()
		e := s.entry("case-1", 1)
		s.stageReleased(e)
		gomock.InOrder(
			s.sink.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errSinkDown),
			s.sink.EXPECT().Publish(gomock.Any(), gomock.Cond(func(m outbound.Message) bool { return m.Attempts == 2 })).Return(nil),
		)
		r := s.relay(outbound.WithBackoff(time.Second, time.Minute))

		_, err := r.Drain(s.ctx)
		s.Require().NoError(err)
		n, err := r.Drain(s.ctx)
		s.Require().NoError(err)
		s.Zero(n)

		s.now = s.now.Add(time.Second)
		n, err = r.Drain(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, n)
		s.Equal(outbound.StatusPublished, s.status(e.ID).Status)
	})

	s.Run("exhausted entry is dead-lettered", func() {
		s.SetupTest()
		e := s.entry("case-1", 1)
		s.stageReleased(e)
		s.sink.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errSinkDown)
		s.sink.EXPECT().DeadLetter(gomock.Any(), gomock.Any(), errSinkDown.Error()).Return(nil)

		_, err := s.relay(outbound.WithMaxAttempts(1)).Drain(s.ctx)
		s.Require().NoError(err)

		got := s.status(e.ID)
		s.Equal(outbound.StatusDead, got.Status)
		s.Equal(1, got.Attempts)
	})

	s.Run("open breaker stops the pass", func() {
		s.SetupTest()
		s.stageReleased(s.entry("case-1", 1), s.entry("case-2", 1))
		s.sink.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errSinkDown).Times(1)

		breaker := circuit.New("test", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour),
			circuit.WithClock(func() time.Time { return s.now }))
		n, err := s.relay(outbound.WithBreaker(breaker)).Drain(s.ctx)
		s.Require().NoError(err)
		s.Zero(n)
	})
}

func (s *RelaySuite) TestSweep() {
	s.Run("releases orphaned staged entries", func() {
		s.SetupTest()
		orphan := s.entry("case-1", 1)
		orphan.CreatedAt = s.now.Add(-2 * time.Minute)
		fresh := s.entry("case-2", 1)
		s.Require().NoError(s.store.Stage(s.ctx, []outbound.Entry{orphan, fresh}))

		s.sink.EXPECT().Publish(gomock.Any(), gomock.Cond(func(m outbound.Message) bool { return m.ID == orphan.ID })).Return(nil)

		err := s.relay(outbound.WithStagedGrace(time.Minute)).Sweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(outbound.StatusPublished, s.status(orphan.ID).Status)
		s.Equal(outbound.StatusStaged, s.status(fresh.ID).Status)
	})
}
