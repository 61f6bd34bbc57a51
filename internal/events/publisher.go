// Package events publishes persisted chat messages to Kafka for downstream
// consumers (notification workers, analytics). Publication is best-effort:
// the message is already durable in the store by the time it gets here.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"chatrelay/internal/models"
)

type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

// MessageCreated implements the relay's event sink.
func (p *Publisher) MessageCreated(ctx context.Context, msg *models.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("failed to encode message event", "messageId", msg.ID, "error", err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.SenderID),
		Value: payload,
	})
	if err != nil {
		p.logger.Error("failed to publish message event", "messageId", msg.ID, "error", err)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
