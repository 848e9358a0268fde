package core

import (
	"fmt"

	"vigil/internal/types"
)

// Fallback titles used when the user's parish name is unknown.
const (
	DefaultReminderTitle = "Upcoming Parish Event"
	DefaultDigestTitle   = "Today's Parish Events"
)

// ContentBuilder renders notification content. The display name is resolved
// once per run by the caller and passed in.
type ContentBuilder struct{}

// NewContentBuilder creates a ContentBuilder.
func NewContentBuilder() *ContentBuilder {
	return &ContentBuilder{}
}

// Reminder builds the content of a per-event reminder.
func (b *ContentBuilder) Reminder(displayName string, c types.CandidateEvent, prefs types.NotificationPreferences) types.NotificationContent {
	title := displayName
	if title == "" {
		title = DefaultReminderTitle
	}
	return types.NotificationContent{
		Title:    title,
		Body:     fmt.Sprintf("%s starts in %s", c.Title, FormatLead(prefs.ReminderLeadMinutes)),
		Category: types.CategoryEventReminder,
		Sound:    prefs.SoundEnabled,
		Vibrate:  prefs.VibrationEnabled,
		Payload: types.RoutingPayload{
			CandidateID:      c.ID,
			Kind:             types.KindReminder,
			NavigationTarget: NavigationFor(c.SourceType),
		},
	}
}

// Digest builds the content of a daily digest whose body has already been
// composed from the day's candidates.
func (b *ContentBuilder) Digest(displayName, digestID, body string, prefs types.NotificationPreferences) types.NotificationContent {
	title := displayName
	if title == "" {
		title = DefaultDigestTitle
	}
	return types.NotificationContent{
		Title:   title,
		Body:    body,
		Sound:   prefs.SoundEnabled,
		Vibrate: prefs.VibrationEnabled,
		Payload: types.RoutingPayload{
			CandidateID:      digestID,
			Kind:             types.KindDigest,
			NavigationTarget: types.NavCalendar,
		},
	}
}

// NavigationFor returns the screen a tapped reminder opens. RSVP'd bulletin
// items live on the events screen; everything else on the calendar.
func NavigationFor(src types.SourceType) types.NavigationTarget {
	if src == types.SourcePersonal {
		return types.NavEvents
	}
	return types.NavCalendar
}

// FormatLead renders a lead time in minutes as "N minute(s)", "H hour(s)" or
// "H hour(s) and M minute(s)".
func FormatLead(minutes int) string {
	if minutes < 60 {
		return plural(minutes, "minute")
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return plural(h, "hour")
	}
	return plural(h, "hour") + " and " + plural(m, "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
