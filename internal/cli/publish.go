package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/spf13/cobra"

	"vigil/internal/queue"
	"vigil/internal/types"
)

// PublishOptions holds flags for the publish command.
type PublishOptions struct {
	*RootOptions
	QueueURL string
	Region   string
	Endpoint string
	UserID   string
	Source   string
	Reason   string
}

// newSQSSender builds the SQS client; tests replace it.
var newSQSSender = sqsSender

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PublishOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Send a trigger message to the trigger queue",
		Long: `Publish a TriggerMessage to the SQS trigger queue, the way a parish
backend announces that its events changed. Every vigild consuming the queue
schedules a refresh.

Examples:
  vigilctl publish --queue-url $SQS_TRIGGERS --source broadcast
  vigilctl publish --queue-url http://localhost:4566/000000000000/triggers \
    --endpoint http://localhost:4566 --user u-42 --source appointment`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.QueueURL, "queue-url", envOr("SQS_TRIGGERS", ""), "trigger queue URL")
	cmd.Flags().StringVar(&opts.Region, "region", envOr("AWS_REGION", "us-east-1"), "AWS region")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", envOr("AWS_ENDPOINT_URL", ""), "override the SQS endpoint")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "user whose data changed (empty means every user)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "source that changed (broadcast|appointment|personal)")
	cmd.Flags().StringVar(&opts.Reason, "reason", "source_changed", "reason recorded with the trigger")

	return cmd
}

func runPublish(cmd *cobra.Command, opts *PublishOptions) error {
	if opts.QueueURL == "" {
		return WrapExitError(ExitCommandError, "--queue-url (or SQS_TRIGGERS) is required", nil)
	}
	source := types.SourceType(opts.Source)
	if source != "" && !source.Valid() {
		return WrapExitError(ExitCommandError, fmt.Sprintf("unknown source %q", opts.Source), nil)
	}

	ctx, cancel := opts.context(cmd)
	defer cancel()

	sender, err := newSQSSender(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "configuring SQS client", err)
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	pub := queue.NewPublisher(sender, opts.QueueURL, types.RealClock{}, logger)

	id, err := pub.Publish(ctx, queue.TriggerMessage{
		UserID: opts.UserID,
		Source: source,
		Reason: opts.Reason,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "publishing trigger", err)
	}
	return opts.printer(cmd).emit(map[string]string{"message_id": id}, func(w io.Writer) {
		fmt.Fprintf(w, "published %s\n", id)
	})
}

func sqsSender(ctx context.Context, o *PublishOptions) (queue.SQSSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(o.Region))
	if err != nil {
		return nil, err
	}
	return sqs.NewFromConfig(awsCfg, func(so *sqs.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}
	}), nil
}
