package types

import (
	"context"
	"time"
)

// Validator is implemented by entities to self-validate.
type Validator interface {
	Validate() error
}

// Validate implements Validator.
func (p NotificationPreferences) Validate() error {
	return ValidatePreferences(p)
}

// SessionProvider reports the signed-in user, if any.
type SessionProvider interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// StaticSession is a SessionProvider with a fixed user. An empty UserID means
// no one is signed in.
type StaticSession struct {
	UserID string
}

// CurrentUserID implements SessionProvider.
func (s StaticSession) CurrentUserID(context.Context) (string, bool) {
	return s.UserID, s.UserID != ""
}

// DisplayNameResolver returns the name shown as a notification title, or ""
// when none is configured for the user.
type DisplayNameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used throughout the platform.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}
