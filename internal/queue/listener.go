package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"vigil/internal/notifications/core"
	"vigil/internal/types"
)

const (
	// receiveWaitSeconds is the SQS long-poll duration.
	receiveWaitSeconds = 20
	receiveBatchSize   = 10
)

// ReceiveBackoff spaces out ReceiveMessage retries after SQS errors.
var ReceiveBackoff = core.RetryPolicy{
	MaxAttempts:   0,
	BaseDelay:     time.Second,
	MaxDelay:      time.Minute,
	BackoffFactor: 2.0,
}

// SQSReceiver abstracts the consumer side of SQS. *sqs.Client implements it.
type SQSReceiver interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Triggerer requests a reconciliation. *scheduler.Engine implements it.
type Triggerer interface {
	Trigger(userID, reason string) error
}

// Listener consumes the trigger queue and forwards every message to the
// engine. Messages that cannot be decoded are deleted so they do not loop.
type Listener struct {
	client   SQSReceiver
	queueURL string
	target   Triggerer
	backoff  core.RetryPolicy
	logger   *slog.Logger
}

// NewListener creates a Listener for queueURL.
func NewListener(client SQSReceiver, queueURL string, target Triggerer, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		client:   client,
		queueURL: queueURL,
		target:   target,
		backoff:  ReceiveBackoff,
		logger:   logger.With("component", "trigger_listener"),
	}
}

// Run polls until ctx is cancelled or the engine stops.
func (l *Listener) Run(ctx context.Context) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		out, err := l.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(l.queueURL),
			MaxNumberOfMessages:   receiveBatchSize,
			WaitTimeSeconds:       receiveWaitSeconds,
			MessageAttributeNames: []string{"All"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay := core.CalculateNextRetry(l.backoff, failures)
			failures++
			l.logger.WarnContext(ctx, "receive failed", "error", err, "attempt", failures, "retry_in", delay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		failures = 0

		for _, m := range out.Messages {
			if err := l.handle(ctx, aws.ToString(m.Body)); err != nil {
				if errors.Is(err, errStopped) {
					l.logger.InfoContext(ctx, "engine stopped, listener exiting")
					return nil
				}
				// Leave the message for redelivery.
				continue
			}
			if _, err := l.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(l.queueURL),
				ReceiptHandle: m.ReceiptHandle,
			}); err != nil {
				l.logger.WarnContext(ctx, "delete failed", "message_id", aws.ToString(m.MessageId), "error", err)
			}
		}
	}
}

var errStopped = errors.New("queue: engine stopped")

// handle returns nil when the message should be deleted.
func (l *Listener) handle(ctx context.Context, body string) error {
	msg, err := decodeTrigger(body)
	if err != nil {
		l.logger.WarnContext(ctx, "discarding trigger message", "error", err)
		return nil
	}
	if err := l.target.Trigger(msg.UserID, msg.Reason); err != nil {
		if types.IsCode(err, types.ErrCodeConflictEngineStopped) {
			return errStopped
		}
		return fmt.Errorf("queue: trigger: %w", err)
	}
	l.logger.DebugContext(ctx, "trigger forwarded",
		"message_id", msg.MessageID,
		"user_id", msg.UserID,
		"source", string(msg.Source),
		"reason", msg.Reason,
	)
	return nil
}
