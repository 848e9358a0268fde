package types

// SourceType identifies which Event Source Adapter produced a candidate.
type SourceType string

const (
	SourceBroadcast   SourceType = "broadcast"
	SourceAppointment SourceType = "appointment"
	SourcePersonal    SourceType = "personal"
)

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceBroadcast, SourceAppointment, SourcePersonal:
		return true
	}
	return false
}

// NotificationKind distinguishes per-event reminders from daily digests.
type NotificationKind string

const (
	KindReminder NotificationKind = "reminder"
	KindDigest   NotificationKind = "digest"
)

// Visibility is the per-candidate override state. A candidate has exactly one
// state; the last explicit user action wins.
type Visibility string

const (
	// VisibilityDefault applies the source type's default: appointment and
	// personal items are visible, broadcast items are hidden.
	VisibilityDefault Visibility = "default"

	// VisibilityMuted hides the candidate from reminders and digests,
	// whatever its source type.
	VisibilityMuted Visibility = "muted"

	// VisibilityAllowed opts a broadcast candidate in to reminders. It has no
	// extra effect on appointment or personal items.
	VisibilityAllowed Visibility = "allowed"
)

// NavigationTarget is the host UI destination carried in a notification's
// routing payload.
type NavigationTarget string

const (
	NavCalendar NavigationTarget = "calendar"
	NavEvents   NavigationTarget = "events"
)

// NotificationCategory for reminders; the host registers "view" and "dismiss"
// actions under it.
const CategoryEventReminder = "event-reminder"
