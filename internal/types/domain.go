package types

import (
	"fmt"
	"time"
)

// Default preference values applied on first run and when a stored record
// predates a field.
const (
	DefaultReminderLeadMinutes = 30
	DefaultDailyDigestTime     = "08:00"
)

// NotificationPreferences holds the device-local reminder settings. There is
// exactly one per device; it is created with defaults on first read and only
// ever overwritten.
type NotificationPreferences struct {
	Enabled             bool   `json:"enabled" db:"enabled"`
	ReminderLeadMinutes int    `json:"reminder_lead_minutes" db:"reminder_lead_minutes" validate:"gt=0,lte=10080"`
	DailyDigestEnabled  bool   `json:"daily_digest_enabled" db:"daily_digest_enabled"`
	DailyDigestTime     string `json:"daily_digest_time" db:"daily_digest_time" validate:"timeofday"`
	SoundEnabled        bool   `json:"sound_enabled" db:"sound_enabled"`
	VibrationEnabled    bool   `json:"vibration_enabled" db:"vibration_enabled"`
}

// DefaultPreferences returns the preferences a fresh install starts with.
func DefaultPreferences() NotificationPreferences {
	return NotificationPreferences{
		Enabled:             true,
		ReminderLeadMinutes: DefaultReminderLeadMinutes,
		DailyDigestEnabled:  true,
		DailyDigestTime:     DefaultDailyDigestTime,
		SoundEnabled:        true,
		VibrationEnabled:    true,
	}
}

// Lead returns the reminder lead time as a duration.
func (p NotificationPreferences) Lead() time.Duration {
	return time.Duration(p.ReminderLeadMinutes) * time.Minute
}

// PreferencesPatch is a partial update. Nil fields are left unchanged.
type PreferencesPatch struct {
	Enabled             *bool   `json:"enabled,omitempty"`
	ReminderLeadMinutes *int    `json:"reminder_lead_minutes,omitempty" validate:"omitempty,gt=0,lte=10080"`
	DailyDigestEnabled  *bool   `json:"daily_digest_enabled,omitempty"`
	DailyDigestTime     *string `json:"daily_digest_time,omitempty" validate:"omitempty,timeofday"`
	SoundEnabled        *bool   `json:"sound_enabled,omitempty"`
	VibrationEnabled    *bool   `json:"vibration_enabled,omitempty"`
}

// Apply returns a copy of p with the non-nil fields of patch written over it.
func (p NotificationPreferences) Apply(patch PreferencesPatch) NotificationPreferences {
	out := p
	if patch.Enabled != nil {
		out.Enabled = *patch.Enabled
	}
	if patch.ReminderLeadMinutes != nil {
		out.ReminderLeadMinutes = *patch.ReminderLeadMinutes
	}
	if patch.DailyDigestEnabled != nil {
		out.DailyDigestEnabled = *patch.DailyDigestEnabled
	}
	if patch.DailyDigestTime != nil {
		out.DailyDigestTime = *patch.DailyDigestTime
	}
	if patch.SoundEnabled != nil {
		out.SoundEnabled = *patch.SoundEnabled
	}
	if patch.VibrationEnabled != nil {
		out.VibrationEnabled = *patch.VibrationEnabled
	}
	return out
}

// IsEmpty reports whether the patch changes nothing.
func (p PreferencesPatch) IsEmpty() bool {
	return p.Enabled == nil && p.ReminderLeadMinutes == nil && p.DailyDigestEnabled == nil &&
		p.DailyDigestTime == nil && p.SoundEnabled == nil && p.VibrationEnabled == nil
}

// StartInstant is either a precise instant or a calendar date with no time of
// day (an all-day item). For all-day values Time is local midnight of the date
// in the location it was parsed in.
type StartInstant struct {
	Time   time.Time `json:"time"`
	AllDay bool      `json:"all_day"`
}

// At returns a timed StartInstant.
func At(t time.Time) StartInstant {
	return StartInstant{Time: t}
}

// OnDate returns an all-day StartInstant for the given date in loc.
func OnDate(year int, month time.Month, day int, loc *time.Location) StartInstant {
	return StartInstant{Time: time.Date(year, month, day, 0, 0, 0, 0, loc), AllDay: true}
}

// Day returns the local calendar day the instant falls on, at midnight in loc.
func (s StartInstant) Day(loc *time.Location) time.Time {
	if s.AllDay {
		// All-day dates are wall-clock dates; do not shift them across zones.
		return time.Date(s.Time.Year(), s.Time.Month(), s.Time.Day(), 0, 0, 0, 0, loc)
	}
	return StartOfDay(s.Time, loc)
}

// CandidateEvent is a normalized, ephemeral "thing the user might be reminded
// about". It is rebuilt on every reconciliation and never persisted.
type CandidateEvent struct {
	ID          string       `json:"id"`
	SourceType  SourceType   `json:"source_type"`
	Title       string       `json:"title"`
	Start       StartInstant `json:"start"`
	End         *time.Time   `json:"end,omitempty"`
	Location    string       `json:"location,omitempty"`
	Description string       `json:"description,omitempty"`
}

// CandidateID joins a source prefix and a source-local id into a globally
// unique candidate id, e.g. "appointment:42".
func CandidateID(src SourceType, localID string) string {
	return fmt.Sprintf("%s:%s", src, localID)
}

// ScheduledNotificationRecord is one entry of the Ledger: a notification the
// engine currently owns at the Notification Backend.
type ScheduledNotificationRecord struct {
	Handle      string           `json:"handle" db:"handle"`
	CandidateID string           `json:"candidate_id" db:"candidate_id"`
	Kind        NotificationKind `json:"kind" db:"kind"`
	ScheduledAt time.Time        `json:"scheduled_at" db:"scheduled_at"`
	SubjectAt   time.Time        `json:"subject_at" db:"subject_at"`
	Title       string           `json:"title" db:"title"`
	Body        string           `json:"body" db:"body"`
}

// Key returns the logical identity of the record.
func (r ScheduledNotificationRecord) Key() LedgerKey {
	return LedgerKey{CandidateID: r.CandidateID, Kind: r.Kind}
}

// LedgerKey is the (candidate, kind) identity the Ledger must hold at most once.
type LedgerKey struct {
	CandidateID string
	Kind        NotificationKind
}

// VisibilityOverride is a stored per-candidate visibility decision.
type VisibilityOverride struct {
	CandidateID string     `json:"candidate_id" db:"candidate_id"`
	State       Visibility `json:"state" db:"state"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// VisibilityOverrides is the in-memory view of the Visibility Ledger used by
// the Eligibility Policy. Absent ids are VisibilityDefault.
type VisibilityOverrides map[string]Visibility

// State returns the visibility of id.
func (v VisibilityOverrides) State(id string) Visibility {
	if s, ok := v[id]; ok {
		return s
	}
	return VisibilityDefault
}

// IsMuted reports whether id is hidden from every notification.
func (v VisibilityOverrides) IsMuted(id string) bool {
	return v.State(id) == VisibilityMuted
}

// IsAllowed reports whether id has been explicitly opted in.
func (v VisibilityOverrides) IsAllowed(id string) bool {
	return v.State(id) == VisibilityAllowed
}

// NotificationContent is what gets handed to the Notification Backend.
type NotificationContent struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Category string         `json:"category,omitempty"`
	Sound    bool           `json:"sound"`
	Vibrate  bool           `json:"vibrate"`
	Payload  RoutingPayload `json:"payload"`
}

// RoutingPayload tells the host UI where to go when the user taps a
// notification.
type RoutingPayload struct {
	CandidateID      string           `json:"candidate_id"`
	Kind             NotificationKind `json:"kind"`
	NavigationTarget NavigationTarget `json:"navigation_target"`
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DayKey formats a day as YYYY-MM-DD.
func DayKey(day time.Time) string {
	return day.Format(time.DateOnly)
}
