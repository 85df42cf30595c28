package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"progression/internal/events"
)

// Producer writes one record.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// CommandPublisher submits envelopes by writing them to the command topic,
// where the engine consumes them like any other inbound event.
type CommandPublisher struct {
	producer Producer
	topic    string
}

func NewCommandPublisher(producer Producer, topic string) *CommandPublisher {
	return &CommandPublisher{producer: producer, topic: topic}
}

// Submit keys the record by the event's primary aggregate so events of one
// aggregate stay on one partition.
func (p *CommandPublisher) Submit(ctx context.Context, env events.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	key := env.ID.String()
	if evt, err := events.Decode(env); err == nil {
		if primary := evt.Correlate().Primary; !primary.IsZero() {
			key = primary.String()
		}
	}
	headers := map[string]string{
		"event-id":   env.ID.String(),
		"event-type": string(env.Type),
	}
	return p.producer.Produce(ctx, p.topic, []byte(key), value, headers)
}
