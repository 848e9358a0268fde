package sources

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"vigil/internal/db"
	"vigil/internal/external"
	"vigil/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockParishes struct{ mock.Mock }

func (m *mockParishes) ForUser(ctx context.Context, userID string) (*db.Parish, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*db.Parish)
	return p, args.Error(1)
}

type mockCalendar struct{ mock.Mock }

func (m *mockCalendar) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]external.CalendarEvent, error) {
	args := m.Called(ctx, calendarID, timeMin, timeMax)
	ev, _ := args.Get(0).([]external.CalendarEvent)
	return ev, args.Error(1)
}

type mockAppointments struct{ mock.Mock }

func (m *mockAppointments) ListConfirmed(ctx context.Context, userID, fromDate, toDate string) ([]db.Appointment, error) {
	args := m.Called(ctx, userID, fromDate, toDate)
	a, _ := args.Get(0).([]db.Appointment)
	return a, args.Error(1)
}

type mockPersonal struct{ mock.Mock }

func (m *mockPersonal) ListForDay(ctx context.Context, userID, date string) ([]db.PersonalEvent, error) {
	args := m.Called(ctx, userID, date)
	e, _ := args.Get(0).([]db.PersonalEvent)
	return e, args.Error(1)
}

// stubAdapter returns canned results, optionally after a delay.
type stubAdapter struct {
	src   types.SourceType
	out   []types.CandidateEvent
	err   error
	delay time.Duration
	panic bool
	// deaf adapters sleep through ctx cancellation.
	deaf bool
}

func (s *stubAdapter) Source() types.SourceType { return s.src }

func (s *stubAdapter) Fetch(ctx context.Context, _ FetchRequest) ([]types.CandidateEvent, error) {
	if s.panic {
		panic("boom")
	}
	if s.deaf {
		time.Sleep(s.delay)
		return s.out, s.err
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.out, s.err
}
