package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chatrdv/platform/pkg/logging"
)

// scheduleSource reads an agent's weekly template and blackout windows.
type scheduleSource interface {
	ListWeeklySlots(ctx context.Context, agentID uuid.UUID, dayOfWeek int) ([]WeeklyScheduleSlot, error)
	ListUnavailabilityAt(ctx context.Context, agentID uuid.UUID, instant time.Time) ([]UnavailabilityWindow, error)
}

// ExternalBusy probes live external-calendar state for an agent.
type ExternalBusy interface {
	IsConfigured() bool
	HasEventsBetween(ctx context.Context, calendarID string, start, end time.Time) (bool, error)
}

// Oracle composes the weekly template, ad-hoc blackout windows and live
// external-calendar state into a single availability answer.
type Oracle struct {
	schedules scheduleSource
	external  ExternalBusy
	location  *time.Location
	logger    *logging.Logger
}

// NewOracle creates an availability oracle. external may be nil when no
// calendar integration is configured.
func NewOracle(schedules scheduleSource, external ExternalBusy, location *time.Location, logger *logging.Logger) *Oracle {
	if schedules == nil {
		panic("agents: schedule source required")
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Oracle{
		schedules: schedules,
		external:  external,
		location:  location,
		logger:    logger,
	}
}

// IsAvailable checks the three layers in order and short-circuits on the
// first failure. date is ISO YYYY-MM-DD; timeOfDay is 24h HH:MM.
func (o *Oracle) IsAvailable(ctx context.Context, agent *Agent, date, timeOfDay string) (bool, error) {
	instant, err := time.ParseInLocation("2006-01-02 15:04", date+" "+timeOfDay, o.location)
	if err != nil {
		return false, fmt.Errorf("agents: parse requested slot: %w", err)
	}

	within, err := o.withinWeeklyTemplate(ctx, agent.ID, int(instant.Weekday()), timeOfDay)
	if err != nil {
		return false, err
	}
	if !within {
		return false, nil
	}

	windows, err := o.schedules.ListUnavailabilityAt(ctx, agent.ID, instant)
	if err != nil {
		return false, err
	}
	if len(windows) > 0 {
		return false, nil
	}

	if agent.CalendarID != "" && o.external != nil && o.external.IsConfigured() {
		busy, err := o.external.HasEventsBetween(ctx, agent.CalendarID, instant, instant.Add(time.Hour))
		if err != nil {
			// Fail open: an external outage must not stall distribution.
			o.logger.Warn("external calendar check failed, treating agent as available",
				"agent_id", agent.ID, "error", err)
			return true, nil
		}
		if busy {
			return false, nil
		}
	}
	return true, nil
}

// withinWeeklyTemplate reports whether the time of day falls inside at least
// one available slot for the weekday. Zero-padded HH:MM compares lexically.
func (o *Oracle) withinWeeklyTemplate(ctx context.Context, agentID uuid.UUID, dayOfWeek int, timeOfDay string) (bool, error) {
	slots, err := o.schedules.ListWeeklySlots(ctx, agentID, dayOfWeek)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		if slot.StartTime <= timeOfDay && timeOfDay < slot.EndTime {
			return true, nil
		}
	}
	return false, nil
}
