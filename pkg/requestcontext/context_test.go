package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	t.Run("uses injected time", func(t *testing.T) {
		fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		ctx := WithTime(context.Background(), fixed)
		assert.Equal(t, fixed, Now(ctx))
	})

	t.Run("falls back to wall clock", func(t *testing.T) {
		before := time.Now()
		got := Now(context.Background())
		assert.False(t, got.Before(before))
	})
}

func TestIdentifiers(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithEventID(ctx, "evt-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "evt-1", EventID(ctx))
	assert.Empty(t, RequestID(context.Background()))
}
