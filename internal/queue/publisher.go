package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"vigil/internal/types"
)

// SQSSender abstracts SendMessage for testability. *sqs.Client implements it.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher sends TriggerMessages to the trigger queue.
type Publisher struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewPublisher creates a Publisher for queueURL.
func NewPublisher(client SQSSender, queueURL string, clock types.Clock, logger *slog.Logger) *Publisher {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, queueURL: queueURL, clock: clock, logger: logger}
}

// Publish stamps msg with an id and send time when missing and enqueues it.
// The source and reason are also carried as message attributes so queue
// consumers can filter without decoding the body.
func (p *Publisher) Publish(ctx context.Context, msg TriggerMessage) (string, error) {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = p.clock.Now()
	}
	if msg.Reason == "" {
		msg.Reason = "source_changed"
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("queue: failed to marshal TriggerMessage: %w", err)
	}

	attrs := map[string]sqsTypes.MessageAttributeValue{
		"reason": {DataType: aws.String("String"), StringValue: aws.String(msg.Reason)},
	}
	if msg.Source != "" {
		attrs["source"] = sqsTypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(string(msg.Source))}
	}

	if _, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	}); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamUnavailable, "failed to publish trigger", err).
			WithDetails(map[string]any{"queue_url": p.queueURL})
	}

	p.logger.InfoContext(ctx, "trigger message sent",
		"queue_url", p.queueURL,
		"message_id", msg.MessageID,
		"user_id", msg.UserID,
		"source", string(msg.Source),
		"reason", msg.Reason,
	)
	return msg.MessageID, nil
}
