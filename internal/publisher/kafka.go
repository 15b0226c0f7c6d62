package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"feedrelay/internal/config"
	"feedrelay/internal/domain"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaPublisher пишет события в топик Kafka в JSON, ключ сообщения - id источника.
type kafkaPublisher struct {
	id     string
	topic  string
	writer messageWriter
	log    *slog.Logger
}

func newKafkaPublisher(_ context.Context, cfg config.PublisherConfig, log *slog.Logger) (Publisher, error) {
	if cfg.Kafka == nil || len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
		return nil, fmt.Errorf("publisher %q missing kafka brokers or topic", cfg.ID)
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisherWithWriter(cfg.ID, cfg.Kafka.Topic, writer, log), nil
}

func newKafkaPublisherWithWriter(id, topic string, writer messageWriter, log *slog.Logger) *kafkaPublisher {
	return &kafkaPublisher{
		id:     id,
		topic:  topic,
		writer: writer,
		log:    log.With(slog.String("component", "publisher.kafka"), slog.String("publisher", id)),
	}
}

func (p *kafkaPublisher) Name() string { return p.id }

func (p *kafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.SourceID),
		Value: value,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "kind", Value: []byte(event.Kind)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to topic %s: %w", p.topic, err)
	}
	p.log.Debug("Event written", slog.String("event", event.ID), slog.String("topic", p.topic))
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
