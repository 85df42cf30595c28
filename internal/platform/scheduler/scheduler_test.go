package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	s := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	t.Run("rejects invalid spec", func(t *testing.T) {
		err := s.Register("broken", "not a spec", func(context.Context) error { return nil })
		require.Error(t, err)
	})

	t.Run("empty spec disables job", func(t *testing.T) {
		require.NoError(t, s.Register("disabled", "", func(context.Context) error { return nil }))
		assert.Empty(t, s.cron.Entries())
	})

	t.Run("valid spec registers entry", func(t *testing.T) {
		require.NoError(t, s.Register("replay", "@every 1m", func(context.Context) error { return nil }))
		assert.Len(t, s.cron.Entries(), 1)
	})
}

func TestRun_InvokesJobWithDeadline(t *testing.T) {
	s := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	var calls atomic.Int32
	var hadDeadline atomic.Bool

	s.run("outbox-sweep", func(ctx context.Context) error {
		calls.Add(1)
		_, ok := ctx.Deadline()
		hadDeadline.Store(ok)
		return errors.New("logged, not returned")
	})

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, hadDeadline.Load())
}
