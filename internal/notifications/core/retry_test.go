package core

import (
	"testing"
	"time"
)

func TestCalculateNextRetry_CancelPolicy(t *testing.T) {
	// CancelRetryPolicy: BaseDelay=50ms, BackoffFactor=2.0, MaxDelay=500ms
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 50 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 500 * time.Millisecond}, // 800ms, capped
	}

	for _, tt := range tests {
		d := CalculateNextRetry(CancelRetryPolicy, tt.attempt)
		if d != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, d)
		}
	}
}

func TestCalculateNextRetry_NegativeAttempt(t *testing.T) {
	d := CalculateNextRetry(CancelRetryPolicy, -1)
	if d != CancelRetryPolicy.BaseDelay {
		t.Errorf("expected base delay for negative attempt, got %v", d)
	}
}

func TestCalculateNextRetry_Overflow(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Hour, MaxDelay: 2 * time.Hour, BackoffFactor: 1e12}
	if d := CalculateNextRetry(p, 10); d != p.MaxDelay {
		t.Errorf("expected overflow to clamp to MaxDelay, got %v", d)
	}
}
