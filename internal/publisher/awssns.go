package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"feedrelay/internal/config"
	"feedrelay/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type snsClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type awsSNSSender struct {
	topicARN string
	client   snsClient
	log      *slog.Logger
}

func newAWSSNSSender(ctx context.Context, cfg *config.SNSConfig, log *slog.Logger) (queueSender, error) {
	if cfg == nil || cfg.TopicARN == "" {
		return nil, fmt.Errorf("sns topic configuration is missing")
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.Region, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, err
	}
	return &awsSNSSender{topicARN: cfg.TopicARN, client: sns.NewFromConfig(awsCfg), log: log}, nil
}

func (s *awsSNSSender) Send(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	attrs := make(map[string]types.MessageAttributeValue)
	for k, v := range eventAttributes(event) {
		attrs[k] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	// Тема письма в SNS ограничена 100 символами.
	subject := event.Title
	if r := []rune(subject); len(r) > 100 {
		subject = string(r[:100])
	}
	resp, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Message:           aws.String(string(payload)),
		Subject:           aws.String(subject),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("publish to sns: %w", err)
	}
	s.log.Debug("SNS message published", slog.String("event", event.ID), slog.String("message_id", aws.ToString(resp.MessageId)))
	return nil
}

func (s *awsSNSSender) Close() error { return nil }
