package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"credex/internal/platform/kafka/producer"
)

// Producer is the publish side of the kafka client.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaStore publishes each event as a JSON record keyed by subject, so all
// events for one notification land on the same partition.
type KafkaStore struct {
	producer Producer
	topic    string
}

func NewKafkaStore(p Producer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: value,
		Headers: map[string]string{
			"event_type": string(event.Action),
		},
	})
}

// MultiStore appends to every store in order and stops at the first error.
type MultiStore []Store

func (m MultiStore) Append(ctx context.Context, event Event) error {
	for _, s := range m {
		if err := s.Append(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
