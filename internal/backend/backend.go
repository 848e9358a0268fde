// Package backend provides Notification Backends: the facilities that hold
// scheduled notifications and fire them at their trigger time.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vigil/internal/notifications/core"
	"vigil/internal/types"
)

var (
	_ core.Backend           = (*Memory)(nil)
	_ core.OutstandingLister = (*Memory)(nil)
	_ core.Backend           = (*Redis)(nil)
	_ core.OutstandingLister = (*Redis)(nil)
)

// Delivery is a notification whose trigger time has come.
type Delivery struct {
	Handle    string                    `json:"handle"`
	TriggerAt time.Time                 `json:"trigger_at"`
	Content   types.NotificationContent `json:"content"`
}

// Sink receives deliveries from the in-process backend.
type Sink interface {
	Deliver(ctx context.Context, d Delivery)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, d Delivery)

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, d Delivery) { f(ctx, d) }

func rejected(msg string, err error, trigger time.Time) error {
	return types.NewAppErrorWithDetails(types.ErrCodeSchedulingRejected, msg, err,
		map[string]any{"trigger_at": trigger.Format(time.RFC3339)})
}

func validateRequest(content types.NotificationContent, trigger, now time.Time) error {
	if trigger.IsZero() {
		return rejected("trigger time is required", nil, trigger)
	}
	if !trigger.After(now) {
		return rejected(fmt.Sprintf("trigger %s is not in the future", trigger.Format(time.RFC3339)), nil, trigger)
	}
	if content.Title == "" && content.Body == "" {
		return rejected("notification has no title or body", nil, trigger)
	}
	return nil
}

func newHandle() string { return uuid.NewString() }
