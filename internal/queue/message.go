// Package queue carries source-mutation notices over SQS. Services that own
// the event sources (bookings, the parish calendar, the personal planner)
// publish a TriggerMessage whenever a user's data changes; the daemon's
// Listener turns each one into a debounced engine refresh.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"vigil/internal/types"
)

// TriggerMessage announces that a user's event data changed.
type TriggerMessage struct {
	MessageID string           `json:"message_id"`
	UserID    string           `json:"user_id,omitempty"`
	Source    types.SourceType `json:"source,omitempty"`
	Reason    string           `json:"reason"`
	SentAt    time.Time        `json:"sent_at"`
}

// decodeTrigger parses and checks a message body. An empty UserID is allowed
// and means "the device's session user".
func decodeTrigger(body string) (TriggerMessage, error) {
	var msg TriggerMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return TriggerMessage{}, fmt.Errorf("queue: malformed trigger message: %w", err)
	}
	if msg.Source != "" && !msg.Source.Valid() {
		return TriggerMessage{}, fmt.Errorf("queue: unknown source %q", msg.Source)
	}
	if msg.Reason == "" {
		msg.Reason = "source_changed"
	}
	return msg, nil
}
