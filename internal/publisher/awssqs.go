package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"feedrelay/internal/config"
	"feedrelay/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type sqsClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type awsSQSSender struct {
	queueURL string
	client   sqsClient
	log      *slog.Logger
}

func newAWSSQSSender(ctx context.Context, cfg *config.SQSConfig, log *slog.Logger) (queueSender, error) {
	if cfg == nil || cfg.QueueURL == "" {
		return nil, fmt.Errorf("sqs queue configuration is missing")
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.Region, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, err
	}
	return &awsSQSSender{queueURL: cfg.QueueURL, client: sqs.NewFromConfig(awsCfg), log: log}, nil
}

func (s *awsSQSSender) Send(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	attrs := make(map[string]types.MessageAttributeValue)
	for k, v := range eventAttributes(event) {
		attrs[k] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	resp, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(s.queueURL),
		MessageBody:       aws.String(string(payload)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("send message to sqs: %w", err)
	}
	s.log.Debug("SQS message sent", slog.String("event", event.ID), slog.String("message_id", aws.ToString(resp.MessageId)))
	return nil
}

func (s *awsSQSSender) Close() error { return nil }
