package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"feedrelay/internal/config"
	"feedrelay/internal/domain"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type gcpPubSubSender struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	log    *slog.Logger
}

func newGCPPubSubSender(ctx context.Context, cfg *config.GCPConfig, log *slog.Logger) (queueSender, error) {
	if cfg == nil || cfg.ProjectID == "" || cfg.Topic == "" {
		return nil, fmt.Errorf("gcp pubsub configuration is missing")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &gcpPubSubSender{client: client, topic: client.Topic(cfg.Topic), log: log}, nil
}

func (s *gcpPubSubSender) Send(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msgID, err := s.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: eventAttributes(event),
	}).Get(ctx)
	if err != nil {
		return fmt.Errorf("send message to pubsub: %w", err)
	}
	s.log.Debug("Pub/Sub message published", slog.String("event", event.ID), slog.String("message_id", msgID))
	return nil
}

func (s *gcpPubSubSender) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
