// Package consumer runs a franz-go group consumer. Partitions of a fetch are
// handled in parallel, records within a partition in order, and offsets are
// committed only after every record of the fetch was handled.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. An error means the message could not be
// accounted for and must be retried.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Config selects what to consume.
type Config struct {
	Brokers []string
	Group   string
	Topics  []string
}

type Consumer struct {
	client     *kgo.Client
	handler    Handler
	logger     *slog.Logger
	maxBackoff time.Duration
}

type Option func(*Consumer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) { c.logger = logger }
}

// WithMaxRetryBackoff caps the wait between retries of a failing message.
func WithMaxRetryBackoff(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.maxBackoff = d
		}
	}
}

func New(cfg Config, handler Handler, opts ...Option) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	c := &Consumer{
		client:     client,
		handler:    handler,
		logger:     slog.Default(),
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run consumes until ctx is cancelled. A fetch in progress is finished before
// Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	c.logger.InfoContext(ctx, "kafka consumer started")
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			c.logger.Info("kafka consumer stopped")
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})

		handleCtx := context.WithoutCancel(ctx)
		var (
			wg        sync.WaitGroup
			abandoned atomic.Bool
		)
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if len(p.Records) == 0 {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				for _, rec := range p.Records {
					if !c.handle(handleCtx, ctx, rec) {
						abandoned.Store(true)
						return
					}
				}
			}()
		})
		wg.Wait()

		if abandoned.Load() {
			c.logger.Info("kafka consumer stopped with unhandled records")
			return nil
		}
		if err := c.client.CommitUncommittedOffsets(handleCtx); err != nil {
			c.logger.ErrorContext(ctx, "kafka offset commit failed", "error", err)
		}
	}
}

// handle retries a failing message with backoff until it succeeds or the
// consumer is stopping. A message abandoned at shutdown is not committed and
// will be redelivered.
func (c *Consumer) handle(ctx, stop context.Context, rec *kgo.Record) bool {
	msg := toMessage(rec)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = c.maxBackoff
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		err := c.handler.Handle(ctx, msg)
		if err != nil && stop.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, stop), func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "kafka message handling failed, retrying",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "wait", wait, "error", err)
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.ErrorContext(ctx, "kafka message abandoned", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
		return false
	}
	return true
}

func toMessage(rec *kgo.Record) *Message {
	headers := make(map[string]string, len(rec.Headers))
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Headers:   headers,
		Timestamp: rec.Timestamp,
	}
}
