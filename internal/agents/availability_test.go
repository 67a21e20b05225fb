package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeSchedules struct {
	slots    map[int][]WeeklyScheduleSlot
	windows  []UnavailabilityWindow
	slotsErr error
}

func (f *fakeSchedules) ListWeeklySlots(ctx context.Context, agentID uuid.UUID, dayOfWeek int) ([]WeeklyScheduleSlot, error) {
	if f.slotsErr != nil {
		return nil, f.slotsErr
	}
	return f.slots[dayOfWeek], nil
}

func (f *fakeSchedules) ListUnavailabilityAt(ctx context.Context, agentID uuid.UUID, instant time.Time) ([]UnavailabilityWindow, error) {
	var hits []UnavailabilityWindow
	for _, w := range f.windows {
		if w.Contains(instant) {
			hits = append(hits, w)
		}
	}
	return hits, nil
}

type fakeExternal struct {
	configured bool
	busy       bool
	err        error
}

func (f *fakeExternal) IsConfigured() bool { return f.configured }

func (f *fakeExternal) HasEventsBetween(ctx context.Context, calendarID string, start, end time.Time) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.busy, nil
}

func weekdaySlots() map[int][]WeeklyScheduleSlot {
	slots := map[int][]WeeklyScheduleSlot{}
	for day := 1; day <= 5; day++ {
		slots[day] = []WeeklyScheduleSlot{{DayOfWeek: day, StartTime: "09:00", EndTime: "18:00", Available: true}}
	}
	return slots
}

func TestOracleAcceptsSlotInsideTemplate(t *testing.T) {
	oracle := NewOracle(&fakeSchedules{slots: weekdaySlots()}, nil, time.UTC, nil)
	agent := &Agent{ID: uuid.New()}

	// 2026-03-02 is a Monday.
	ok, err := oracle.IsAvailable(context.Background(), agent, "2026-03-02", "14:00")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOracleRejectsOutsideTemplate(t *testing.T) {
	oracle := NewOracle(&fakeSchedules{slots: weekdaySlots()}, nil, time.UTC, nil)
	agent := &Agent{ID: uuid.New()}

	ok, err := oracle.IsAvailable(context.Background(), agent, "2026-03-02", "20:00")
	require.NoError(t, err)
	require.False(t, ok)

	// Sunday has no template slots.
	ok, err = oracle.IsAvailable(context.Background(), agent, "2026-03-01", "14:00")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOracleRejectsBlackoutWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	schedules := &fakeSchedules{
		slots: weekdaySlots(),
		windows: []UnavailabilityWindow{
			{AgentID: uuid.New(), StartDatetime: start, EndDatetime: start.Add(3 * time.Hour)},
		},
	}
	oracle := NewOracle(schedules, nil, time.UTC, nil)
	agent := &Agent{ID: uuid.New()}

	ok, err := oracle.IsAvailable(context.Background(), agent, "2026-03-02", "14:00")
	require.NoError(t, err)
	require.False(t, ok)

	// The window end is exclusive.
	ok, err = oracle.IsAvailable(context.Background(), agent, "2026-03-02", "15:00")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOracleConsultsExternalCalendar(t *testing.T) {
	external := &fakeExternal{configured: true, busy: true}
	oracle := NewOracle(&fakeSchedules{slots: weekdaySlots()}, external, time.UTC, nil)
	agent := &Agent{ID: uuid.New(), CalendarID: "alice@cal"}

	ok, err := oracle.IsAvailable(context.Background(), agent, "2026-03-02", "14:00")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOracleFailsOpenOnExternalError(t *testing.T) {
	external := &fakeExternal{configured: true, err: errors.New("503 backend error")}
	oracle := NewOracle(&fakeSchedules{slots: weekdaySlots()}, external, time.UTC, nil)
	agent := &Agent{ID: uuid.New(), CalendarID: "alice@cal"}

	ok, err := oracle.IsAvailable(context.Background(), agent, "2026-03-02", "14:00")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOracleSkipsExternalWithoutCalendarID(t *testing.T) {
	external := &fakeExternal{configured: true, busy: true}
	oracle := NewOracle(&fakeSchedules{slots: weekdaySlots()}, external, time.UTC, nil)
	agent := &Agent{ID: uuid.New()}

	ok, err := oracle.IsAvailable(context.Background(), agent, "2026-03-02", "14:00")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestOracleRejectsMalformedSlot(t *testing.T) {
	oracle := NewOracle(&fakeSchedules{slots: weekdaySlots()}, nil, time.UTC, nil)
	agent := &Agent{ID: uuid.New()}

	_, err := oracle.IsAvailable(context.Background(), agent, "02/03/2026", "14:00")
	require.Error(t, err)
}
