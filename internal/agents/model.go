package agents

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DistributionMode is a tenant-level policy choosing how an appointment is
// assigned to an agent.
type DistributionMode string

const (
	ModeRoundRobin    DistributionMode = "round_robin"
	ModeAvailability  DistributionMode = "availability"
	ModeSpecialty     DistributionMode = "specialty"
	ModeVisitorChoice DistributionMode = "visitor_choice"
)

// Valid reports whether m is a known distribution mode.
func (m DistributionMode) Valid() bool {
	switch m {
	case ModeRoundRobin, ModeAvailability, ModeSpecialty, ModeVisitorChoice:
		return true
	}
	return false
}

// Agent is a human operator of a tenant. Agents are soft-deactivated and a
// historical appointment keeps a nullable reference to them.
type Agent struct {
	ID                uuid.UUID `json:"id"`
	TenantID          string    `json:"tenant_id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone,omitempty"`
	CalendarID        string    `json:"calendar_id,omitempty"`
	Specialties       []string  `json:"specialties"`
	Color             string    `json:"color,omitempty"`
	Active            bool      `json:"active"`
	SortOrder         int       `json:"sort_order"`
	AppointmentsCount int       `json:"appointments_count"`
}

// HasSpecialty performs a case-insensitive membership check.
func (a *Agent) HasSpecialty(specialty string) bool {
	for _, s := range a.Specialties {
		if strings.EqualFold(s, specialty) {
			return true
		}
	}
	return false
}

// WeeklyScheduleSlot is one working-hour window of an agent's weekly
// template. Multiple slots per day model split shifts.
type WeeklyScheduleSlot struct {
	ID        int64     `json:"id"`
	AgentID   uuid.UUID `json:"agent_id"`
	DayOfWeek int       `json:"day_of_week"` // 0 = Sunday .. 6 = Saturday
	StartTime string    `json:"start_time"`  // HH:MM
	EndTime   string    `json:"end_time"`    // HH:MM
	Available bool      `json:"available"`
}

// UnavailabilityWindow is an ad-hoc blackout that always wins over an
// available weekly slot.
type UnavailabilityWindow struct {
	ID            int64     `json:"id"`
	AgentID       uuid.UUID `json:"agent_id"`
	StartDatetime time.Time `json:"start_datetime"`
	EndDatetime   time.Time `json:"end_datetime"`
	Reason        string    `json:"reason,omitempty"`
}

// Contains reports whether the window covers the instant.
func (w *UnavailabilityWindow) Contains(t time.Time) bool {
	return !t.Before(w.StartDatetime) && t.Before(w.EndDatetime)
}

// DistributionConfig is the per-tenant distribution policy singleton.
// LastAssignedAgentID is the round-robin cursor: state, not configuration,
// updated atomically with each selection.
type DistributionConfig struct {
	TenantID               string           `json:"tenant_id"`
	Mode                   DistributionMode `json:"distribution_mode"`
	AllowVisitorChoice     bool             `json:"allow_visitor_choice"`
	ShowAgentPhotos        bool             `json:"show_agent_photos"`
	ShowAgentBios          bool             `json:"show_agent_bios"`
	LastAssignedAgentID    *uuid.UUID       `json:"last_assigned_agent_id,omitempty"`
	AvailableSpecialties   []string         `json:"available_specialties"`
	BookingDurationDefault int              `json:"booking_duration_default"`
	BookingBufferMinutes   int              `json:"booking_buffer_minutes"`
	MaxDaysAdvance         int              `json:"max_days_advance"`
}
