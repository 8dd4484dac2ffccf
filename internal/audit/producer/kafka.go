// Package producer publishes audit events to Kafka for downstream consumers (cmd/worker ships them to Loki).
package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"session-gate/internal/audit/domain"
)

const writeTimeout = 5 * time.Second

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements audit.Publisher using segmentio/kafka-go.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher that writes audit events to topic.
// Returns nil when brokers or topic is empty; a nil publisher is a no-op. Call Close when shutting down.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

// Publish serializes event as JSON and writes it keyed by action so one action stays on one partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.AuditLog) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.Action),
		Value: payload,
	})
	if err != nil {
		p.logger.Warn("audit: kafka publish failed", zap.String("action", event.Action), zap.Error(err))
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call on a nil publisher.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
