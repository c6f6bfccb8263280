package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher writes payout lifecycle events to a Kafka topic, keyed by the
// payout ID so events for one payout stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (p *Publisher) Publish(entityID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(
		context.Background(),
		kafka.Message{
			Key:   []byte(entityID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(eventType)},
			},
		},
	)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
