package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"feedrelay/internal/config"
	"feedrelay/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// queueSender скрывает различия облачных очередей.
type queueSender interface {
	Send(ctx context.Context, event domain.Event) error
	Close() error
}

// queuePublisher отправляет события в облачную очередь выбранного провайдера.
type queuePublisher struct {
	id       string
	provider string
	sender   queueSender
}

func newQueuePublisher(ctx context.Context, cfg config.PublisherConfig, log *slog.Logger) (Publisher, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("publisher %q missing queue configuration", cfg.ID)
	}
	log = log.With(slog.String("component", "publisher.queue"), slog.String("publisher", cfg.ID))

	var (
		sender queueSender
		err    error
	)
	switch cfg.Queue.Provider {
	case config.QueueProviderAWSSQS:
		sender, err = newAWSSQSSender(ctx, cfg.Queue.SQS, log)
	case config.QueueProviderAWSSNS:
		sender, err = newAWSSNSSender(ctx, cfg.Queue.SNS, log)
	case config.QueueProviderGCP:
		sender, err = newGCPPubSubSender(ctx, cfg.Queue.GCP, log)
	default:
		err = fmt.Errorf("queue provider %q is not supported", cfg.Queue.Provider)
	}
	if err != nil {
		return nil, err
	}
	return &queuePublisher{id: cfg.ID, provider: cfg.Queue.Provider, sender: sender}, nil
}

func (p *queuePublisher) Name() string { return p.id }

func (p *queuePublisher) Publish(ctx context.Context, event domain.Event) error {
	if err := p.sender.Send(ctx, event); err != nil {
		return fmt.Errorf("queue provider %s send failed: %w", p.provider, err)
	}
	return nil
}

func (p *queuePublisher) Close() error {
	return p.sender.Close()
}

// loadAWSConfig собирает конфигурацию SDK со статическими ключами,
// без ключей используется стандартная цепочка провайдеров.
func loadAWSConfig(ctx context.Context, region, keyID, secret string) (aws.Config, error) {
	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(region)}
	if keyID != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(keyID, secret, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func eventAttributes(event domain.Event) map[string]string {
	return map[string]string{
		"source_id": event.SourceID,
		"event_id":  event.ID,
		"kind":      string(event.Kind),
	}
}
