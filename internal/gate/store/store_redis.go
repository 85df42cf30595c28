package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var seenDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "progression_gate_seen_duration_ms",
	Help:    "Latency of processed-event lookups in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

// Redis keeps processed-event markers as keys with a TTL, shared by every
// engine instance.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Seen(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	defer func() {
		seenDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark sets the key only if absent so an existing marker keeps its original
// expiry.
func (s *Redis) Mark(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.SetNX(ctx, key, "1", ttl).Err()
}
