package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"vigil/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchNotificationMetrics implements NotificationMetrics.
var _ NotificationMetrics = (*CloudWatchNotificationMetrics)(nil)

// CloudWatchNotificationMetrics implements NotificationMetrics by emitting
// metrics to AWS CloudWatch.
//
// Metrics emitted:
//   - ReconcileRun: Dims {Result} -- once per reconciliation
//   - ReconcileDuration: No dims -- wall time of a run
//   - RemindersScheduled / DigestsScheduled: No dims -- count per run
//   - CandidatesSkipped: Dims {Reason} -- count per reason per run
//   - SourceFetchFailure: Dims {Source} -- on every failed adapter fetch
type CloudWatchNotificationMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchNotificationMetrics creates a new CloudWatchNotificationMetrics
// that publishes to namespace, or the default namespace when empty.
func NewCloudWatchNotificationMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchNotificationMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchNotificationMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordRun emits a ReconcileRun metric with the Result dimension.
func (m *CloudWatchNotificationMetrics) RecordRun(ctx context.Context, result MetricResult) {
	m.put(ctx, types.MetricReconcileRun, 1, cwtypes.StandardUnitCount,
		dim(types.DimResult, string(result)))
}

// RecordDuration emits the run duration in milliseconds.
func (m *CloudWatchNotificationMetrics) RecordDuration(ctx context.Context, d time.Duration) {
	m.put(ctx, types.MetricReconcileDuration, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds)
}

// RecordScheduled emits the number of notifications of kind scheduled by a run.
func (m *CloudWatchNotificationMetrics) RecordScheduled(ctx context.Context, kind types.NotificationKind, count int) {
	name := types.MetricRemindersScheduled
	if kind == types.KindDigest {
		name = types.MetricDigestsScheduled
	}
	m.put(ctx, name, float64(count), cwtypes.StandardUnitCount)
}

// RecordSkipped emits how many candidates a run skipped for reason.
func (m *CloudWatchNotificationMetrics) RecordSkipped(ctx context.Context, reason SkipReason, count int) {
	m.put(ctx, types.MetricCandidatesSkipped, float64(count), cwtypes.StandardUnitCount,
		dim(types.DimReason, string(reason)))
}

// RecordSourceFailure emits a SourceFetchFailure metric with the Source dimension.
func (m *CloudWatchNotificationMetrics) RecordSourceFailure(ctx context.Context, source types.SourceType) {
	m.put(ctx, types.MetricSourceFetchFailure, 1, cwtypes.StandardUnitCount,
		dim(types.DimSource, string(source)))
}

// RecordRequest emits control API request count and latency. It satisfies the
// HTTP chassis' MetricsCollector.
func (m *CloudWatchNotificationMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	ctx := context.Background()
	dims := []cwtypes.Dimension{
		dim(types.DimMethod, method),
		dim(types.DimEndpoint, endpoint),
		dim(types.DimStatus, status),
	}
	m.put(ctx, types.MetricAPIRequestCount, 1, cwtypes.StandardUnitCount, dims...)
	m.put(ctx, types.MetricAPILatency, float64(duration.Milliseconds()), cwtypes.StandardUnitMilliseconds, dims[:2]...)
}

func (m *CloudWatchNotificationMetrics) put(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit, dims ...cwtypes.Dimension) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       unit,
				Dimensions: dims,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", name,
			"value", value,
		)
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// NoopMetrics discards every metric. Used when metrics are disabled.
type NoopMetrics struct{}

var _ NotificationMetrics = NoopMetrics{}

func (NoopMetrics) RecordRun(context.Context, MetricResult)                      {}
func (NoopMetrics) RecordDuration(context.Context, time.Duration)                {}
func (NoopMetrics) RecordScheduled(context.Context, types.NotificationKind, int) {}
func (NoopMetrics) RecordSkipped(context.Context, SkipReason, int)               {}
func (NoopMetrics) RecordSourceFailure(context.Context, types.SourceType)        {}
