package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"proofdeck/internal/platform/kafka/producer"
)

// KafkaStore publishes audit events to a Kafka topic. It satisfies Store so
// the Publisher can fan events out to Kafka instead of (or ahead of) local
// persistence. ListByActor is not supported on this sink; consumers read the
// topic directly.
type KafkaStore struct {
	producer *producer.Producer
	topic    string
}

// NewKafkaStore creates a Kafka-backed audit sink over an existing producer.
func NewKafkaStore(p *producer.Producer, topic string) (*KafkaStore, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka topic not configured")
	}
	return &KafkaStore{producer: p, topic: topic}, nil
}

// Append publishes the event and waits for the delivery report. Events are
// keyed by actor so one party's trail stays ordered within a partition.
func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	if err := s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.Actor),
		Value: value,
	}); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByActor is unsupported on the Kafka sink.
func (s *KafkaStore) ListByActor(context.Context, string) ([]Event, error) {
	return nil, fmt.Errorf("kafka audit sink does not support reads")
}

// Close flushes buffered records and releases the producer.
func (s *KafkaStore) Close() {
	s.producer.Close()
}
