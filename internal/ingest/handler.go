package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"progression/internal/engine"
	"progression/internal/events"
	"progression/internal/platform/kafka/consumer"
	id "progression/pkg/domain"
)

// Dispatcher processes one envelope and waits for the outcome.
type Dispatcher interface {
	Do(ctx context.Context, env events.Envelope) (engine.Result, error)
}

// recordNamespace derives ids for records whose envelope cannot be read.
var recordNamespace = uuid.MustParse("1d7e4f0a-9b3c-5e62-8a41-c2f5d6e7a890")

// EnvelopeHandler feeds envelope records to the engine. It returns an error
// only when the engine could not account for the event, so the consumer
// retries and does not commit the offset.
type EnvelopeHandler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewEnvelopeHandler(dispatcher Dispatcher, logger *slog.Logger) *EnvelopeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnvelopeHandler{dispatcher: dispatcher, logger: logger}
}

func (h *EnvelopeHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	env := Envelope(msg)
	res, err := h.dispatcher.Do(ctx, env)
	if err != nil {
		return fmt.Errorf("process %s from %s@%d: %w", env.Type, msg.Topic, msg.Offset, err)
	}
	h.logger.DebugContext(ctx, "inbound event handled",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"event_id", res.EventID,
		"disposition", res.Disposition,
	)
	return nil
}

// Envelope reads the envelope carried by msg. A record that is not an envelope
// still yields one, with an id derived from the record position and the raw
// value as a JSON string payload, so the engine rejects it as malformed.
func Envelope(msg *consumer.Message) events.Envelope {
	var env events.Envelope
	if err := json.Unmarshal(msg.Value, &env); err == nil {
		if env.Type == "" {
			env.Type = events.Type(msg.Headers["event-type"])
		}
		return env
	}
	payload, _ := json.Marshal(string(msg.Value))
	return events.Envelope{
		ID:         id.EventID(uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)))),
		Type:       events.Type(msg.Headers["event-type"]),
		OccurredAt: msg.Timestamp.UTC(),
		Source:     msg.Topic,
		Payload:    payload,
	}
}
