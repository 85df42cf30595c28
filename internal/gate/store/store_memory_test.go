package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"progression/pkg/requestcontext"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *InMemoryStoreSuite) TestSeenAndMark() {
	s.Run("unknown key is not seen", func() {
		seen, err := s.store.Seen(s.at(0), "gate:evt:a")
		s.NoError(err)
		s.False(seen)
	})

	s.Run("marked key is seen until it expires", func() {
		s.Require().NoError(s.store.Mark(s.at(0), "gate:evt:b", time.Minute))

		seen, err := s.store.Seen(s.at(59*time.Second), "gate:evt:b")
		s.NoError(err)
		s.True(seen)

		seen, err = s.store.Seen(s.at(time.Minute), "gate:evt:b")
		s.NoError(err)
		s.False(seen)
	})
}

func (s *InMemoryStoreSuite) TestPrune() {
	s.Require().NoError(s.store.Mark(s.at(0), "short", time.Minute))
	s.Require().NoError(s.store.Mark(s.at(0), "long", time.Hour))

	s.Equal(1, s.store.Prune(s.at(2*time.Minute)))

	seen, err := s.store.Seen(s.at(2*time.Minute), "long")
	s.NoError(err)
	s.True(seen)
}
