package outbound

import (
	"context"
	"strconv"
)

// Producer writes one record and waits for the broker acknowledgement.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaSink publishes each outbound type to its own topic, keyed by aggregate
// id so one aggregate's events share a partition.
type KafkaSink struct {
	producer        Producer
	topicPrefix     string
	deadLetterTopic string
}

func NewKafkaSink(producer Producer, topicPrefix, deadLetterTopic string) *KafkaSink {
	return &KafkaSink{producer: producer, topicPrefix: topicPrefix, deadLetterTopic: deadLetterTopic}
}

// Topic names the topic msg is published to.
func (s *KafkaSink) Topic(msg Message) string {
	return s.topicPrefix + string(msg.Type)
}

func (s *KafkaSink) Publish(ctx context.Context, msg Message) error {
	return s.producer.Produce(ctx, s.Topic(msg), []byte(msg.Key), msg.Payload, headers(msg))
}

func (s *KafkaSink) DeadLetter(ctx context.Context, msg Message, reason string) error {
	h := headers(msg)
	h["dead-letter-reason"] = reason
	h["original-topic"] = s.Topic(msg)
	return s.producer.Produce(ctx, s.deadLetterTopic, []byte(msg.Key), msg.Payload, h)
}

func headers(msg Message) map[string]string {
	return map[string]string{
		"event-id":          msg.ID,
		"event-type":        string(msg.Type),
		"aggregate-version": strconv.FormatInt(msg.Version, 10),
		"attempt":           strconv.Itoa(msg.Attempts),
	}
}
