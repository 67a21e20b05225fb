package booking

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment. The creation path goes
// straight to confirmed; everything after that is administrator-driven.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// ErrInvalidTransition is returned for a status change outside the state machine.
var ErrInvalidTransition = errors.New("booking: invalid status transition")

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// CanTransition reports whether an administrative change from s to next is
// allowed. Reactivating a cancelled appointment is the only backward move.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled || next == StatusCompleted || next == StatusNoShow
	case StatusCancelled:
		return next == StatusConfirmed
	default:
		return false
	}
}

// Appointment is the durable record of intent-to-meet. Calendar sync and
// notifications are best-effort attempts layered on top and must never
// block or roll back this row.
type Appointment struct {
	ID                 uuid.UUID  `json:"id"`
	TenantID           string     `json:"tenant_id"`
	AgentID            *uuid.UUID `json:"agent_id,omitempty"`
	VisitorName        string     `json:"visitor_name"`
	VisitorEmail       string     `json:"visitor_email,omitempty"`
	VisitorPhone       string     `json:"visitor_phone,omitempty"`
	Service            string     `json:"service,omitempty"`
	SpecialtyRequested string     `json:"specialty_requested,omitempty"`
	Date               string     `json:"date"` // ISO YYYY-MM-DD
	Time               string     `json:"time"` // 24h HH:MM
	DurationMinutes    int        `json:"duration_minutes"`
	ExternalEventID    string     `json:"external_event_id,omitempty"`
	DistributionMethod string     `json:"distribution_method,omitempty"`
	Status             Status     `json:"status"`
	SessionID          string     `json:"session_id,omitempty"`
	AgentNotifiedAt    *time.Time `json:"agent_notified_at,omitempty"`
	VisitorNotifiedAt  *time.Time `json:"visitor_notified_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// StartsAt combines the appointment date and time in the given location.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, loc)
}
