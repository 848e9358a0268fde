package types

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validation constraint constants.
const (
	MaxReminderLeadMinutes = 7 * 24 * 60
	MaxCandidateIDLength   = 256
)

// ParseTimeOfDay parses a strict "HH:MM" 24-hour wall-clock time.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("expected format HH:MM, got %q", s)
	}
	n, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("expected format HH:MM, got %q", s)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range [0,23]", hour)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range [0,59]", minute)
	}
	return hour, minute, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator returns the shared validator with the domain tags registered.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
			_, _, err := ParseTimeOfDay(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// ValidatePreferences checks a full preferences record.
func ValidatePreferences(p NotificationPreferences) error {
	return validationError(ErrCodeValidationPreferences, structValidator().Struct(p))
}

// ValidatePreferencesPatch checks only the fields a patch sets.
func ValidatePreferencesPatch(p PreferencesPatch) error {
	return validationError(ErrCodeValidationPreferences, structValidator().Struct(p))
}

// ValidateCandidateID checks that id is a non-empty "source:local" identifier.
// Digest ids ("digest:YYYY-MM-DD") are accepted so overrides can be queried
// uniformly, but only reminder sources are meaningful to mute.
func ValidateCandidateID(id string) error {
	if id == "" || len(id) > MaxCandidateIDLength {
		return NewAppError(ErrCodeValidationCandidateID, "candidate id must be 1-256 characters", nil)
	}
	prefix, local, ok := strings.Cut(id, ":")
	if !ok || local == "" {
		return NewAppError(ErrCodeValidationCandidateID, fmt.Sprintf("candidate id %q must be of the form source:id", id), nil)
	}
	if !SourceType(prefix).Valid() && prefix != string(KindDigest) {
		return NewAppError(ErrCodeValidationCandidateID, fmt.Sprintf("unknown candidate source %q", prefix), nil)
	}
	return nil
}

// ValidateAllowlistID checks that id is a broadcast candidate. Only broadcast
// events are opt-in; appointment and personal items are always eligible and
// can only be muted.
func ValidateAllowlistID(id string) error {
	if err := ValidateCandidateID(id); err != nil {
		return err
	}
	if !strings.HasPrefix(id, string(SourceBroadcast)+":") {
		return NewAppErrorWithDetails(ErrCodeValidationCandidateID,
			fmt.Sprintf("candidate %q is not a broadcast event; only broadcast events can be allowed", id), nil,
			map[string]any{"candidate_id": id})
	}
	return nil
}

func validationError(code ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewAppError(code, err.Error(), err)
	}
	fields := make(map[string]any, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return NewAppErrorWithDetails(code, strings.Join(msgs, "; "), err, map[string]any{"fields": fields})
}
