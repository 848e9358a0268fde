package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"vigil/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCloudWatchNotificationMetrics_RecordRun(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchNotificationMetrics(cw, "", &mockLogger{})

	metrics.RecordRun(context.Background(), MetricSuccess)

	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(cw.calls))
	}

	input := cw.calls[0]
	if *input.Namespace != types.MetricNamespace {
		t.Errorf("expected namespace %q, got %q", types.MetricNamespace, *input.Namespace)
	}

	datum := input.MetricData[0]
	if *datum.MetricName != types.MetricReconcileRun {
		t.Errorf("expected metric name %q, got %q", types.MetricReconcileRun, *datum.MetricName)
	}
	if *datum.Value != 1.0 {
		t.Errorf("expected value 1.0, got %f", *datum.Value)
	}
	if datum.Unit != cwtypes.StandardUnitCount {
		t.Errorf("expected unit Count, got %s", datum.Unit)
	}
	assertDimension(t, datum.Dimensions, types.DimResult, string(MetricSuccess))
}

func TestCloudWatchNotificationMetrics_CustomNamespace(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchNotificationMetrics(cw, "Vigil/Dev", &mockLogger{})

	metrics.RecordRun(context.Background(), MetricPartial)

	if got := *cw.calls[0].Namespace; got != "Vigil/Dev" {
		t.Errorf("expected namespace Vigil/Dev, got %q", got)
	}
}

func TestCloudWatchNotificationMetrics_RecordDuration(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchNotificationMetrics(cw, "", &mockLogger{})

	metrics.RecordDuration(context.Background(), 250*time.Millisecond)

	datum := cw.calls[0].MetricData[0]
	if *datum.Value != 250.0 {
		t.Errorf("expected duration 250.0ms, got %f", *datum.Value)
	}
	if datum.Unit != cwtypes.StandardUnitMilliseconds {
		t.Errorf("expected unit Milliseconds, got %s", datum.Unit)
	}
}

func TestCloudWatchNotificationMetrics_RecordScheduled(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchNotificationMetrics(cw, "", &mockLogger{})

	metrics.RecordScheduled(context.Background(), types.KindReminder, 4)
	metrics.RecordScheduled(context.Background(), types.KindDigest, 2)

	if len(cw.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(cw.calls))
	}
	if n := *cw.calls[0].MetricData[0].MetricName; n != types.MetricRemindersScheduled {
		t.Errorf("expected %s, got %s", types.MetricRemindersScheduled, n)
	}
	if v := *cw.calls[0].MetricData[0].Value; v != 4 {
		t.Errorf("expected 4, got %f", v)
	}
	if n := *cw.calls[1].MetricData[0].MetricName; n != types.MetricDigestsScheduled {
		t.Errorf("expected %s, got %s", types.MetricDigestsScheduled, n)
	}
}

func TestCloudWatchNotificationMetrics_RecordSkippedAndSourceFailure(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchNotificationMetrics(cw, "", &mockLogger{})

	metrics.RecordSkipped(context.Background(), SkipNotOptedIn, 3)
	metrics.RecordSourceFailure(context.Background(), types.SourceBroadcast)

	assertDimension(t, cw.calls[0].MetricData[0].Dimensions, types.DimReason, string(SkipNotOptedIn))
	assertDimension(t, cw.calls[1].MetricData[0].Dimensions, types.DimSource, string(types.SourceBroadcast))
}

func TestCloudWatchNotificationMetrics_RecordRequest(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchNotificationMetrics(cw, "", &mockLogger{})

	metrics.RecordRequest("PUT", "/v1/visibility/{id}/mute", "200", 12*time.Millisecond)

	if len(cw.calls) != 2 {
		t.Fatalf("expected count and latency calls, got %d", len(cw.calls))
	}
	count, latency := cw.calls[0].MetricData[0], cw.calls[1].MetricData[0]
	if *count.MetricName != types.MetricAPIRequestCount || *latency.MetricName != types.MetricAPILatency {
		t.Errorf("unexpected metric names %q, %q", *count.MetricName, *latency.MetricName)
	}
	assertDimension(t, count.Dimensions, types.DimStatus, "200")
	assertDimension(t, latency.Dimensions, types.DimEndpoint, "/v1/visibility/{id}/mute")
	if *latency.Value != 12 {
		t.Errorf("expected 12ms latency, got %f", *latency.Value)
	}
}

func TestCloudWatchNotificationMetrics_CloudWatchError(t *testing.T) {
	// CloudWatch errors should be logged but not returned (fire-and-forget).
	cw := &mockCloudWatchClient{returnErr: fmt.Errorf("cloudwatch unavailable")}
	logger := &mockLogger{}
	metrics := NewCloudWatchNotificationMetrics(cw, "", logger)

	metrics.RecordRun(context.Background(), MetricFailed)

	if len(cw.calls) != 1 {
		t.Errorf("expected 1 call attempt, got %d", len(cw.calls))
	}
	if logger.errors != 1 {
		t.Errorf("expected the failure to be logged once, got %d", logger.errors)
	}
}

// assertDimension verifies a specific dimension exists with the expected value.
func assertDimension(t *testing.T, dims []cwtypes.Dimension, name, expectedValue string) {
	t.Helper()
	for _, d := range dims {
		if *d.Name == name {
			if *d.Value != expectedValue {
				t.Errorf("dimension %q: expected value %q, got %q", name, expectedValue, *d.Value)
			}
			return
		}
	}
	t.Errorf("dimension %q not found in %v", name, dims)
}
