package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatrdv/platform/internal/agents"
	"github.com/chatrdv/platform/internal/booking"
	"github.com/chatrdv/platform/internal/tenancy"
	"github.com/chatrdv/platform/pkg/logging"
)

// AppointmentAdmin is the slice of the booking ledger the back office uses.
// *booking.Ledger satisfies it.
type AppointmentAdmin interface {
	ListForTenant(ctx context.Context, tenantID string, limit int) ([]booking.Appointment, error)
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*booking.Appointment, error)
	Transition(ctx context.Context, tenantID string, id uuid.UUID, next booking.Status) error
}

// AgentAdmin manages the tenant's agent roster. *agents.Repository satisfies it.
type AgentAdmin interface {
	ListActive(ctx context.Context, tenantID string) ([]agents.Agent, error)
	Create(ctx context.Context, agent *agents.Agent) error
	Deactivate(ctx context.Context, tenantID string, id uuid.UUID) error
	ReplaceWeeklySchedule(ctx context.Context, agentID uuid.UUID, slots []agents.WeeklyScheduleSlot) error
	AddUnavailability(ctx context.Context, w *agents.UnavailabilityWindow) error
}

// SettingsAdmin reads and replaces tenant chatbot configuration.
// *tenancy.SettingsStore satisfies it.
type SettingsAdmin interface {
	Get(ctx context.Context, tenantID string) (*tenancy.Settings, error)
	Set(ctx context.Context, settings *tenancy.Settings) error
}

// AdminHandler serves the tenant back office: appointments, agents,
// schedules and chatbot settings.
type AdminHandler struct {
	ledger   AppointmentAdmin
	agents   AgentAdmin
	settings SettingsAdmin
	logger   *logging.Logger
}

func NewAdminHandler(ledger AppointmentAdmin, agentRepo AgentAdmin, settings SettingsAdmin, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{ledger: ledger, agents: agentRepo, settings: settings, logger: logger}
}

func tenantFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusBadRequest)
	}
	return tenantID, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// ListAppointments returns the tenant's appointments, newest first.
func (h *AdminHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	appts, err := h.ledger.ListForTenant(r.Context(), tenantID, limit)
	if err != nil {
		h.logger.Error("list appointments failed", "tenant_id", tenantID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if appts == nil {
		appts = []booking.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// GetAppointment loads one appointment.
func (h *AdminHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "appointmentID")
	if !ok {
		return
	}

	appt, err := h.ledger.GetByID(r.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, booking.ErrAppointmentNotFound) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// UpdateAppointmentStatus applies a status change through the state machine.
func (h *AdminHandler) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "appointmentID")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	err := h.ledger.Transition(r.Context(), tenantID, id, booking.Status(strings.TrimSpace(req.Status)))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
	case errors.Is(err, booking.ErrAppointmentNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("status transition failed", "tenant_id", tenantID, "appointment_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// ListAgents returns the tenant's active agents.
func (h *AdminHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	list, err := h.agents.ListActive(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("list agents failed", "tenant_id", tenantID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []agents.Agent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": list})
}

// CreateAgent registers an agent and seeds the default weekly schedule.
func (h *AdminHandler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	var agent agents.Agent
	if err := json.NewDecoder(r.Body).Decode(&agent); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(agent.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	agent.TenantID = tenantID
	agent.Active = true

	if err := h.agents.Create(r.Context(), &agent); err != nil {
		h.logger.Error("create agent failed", "tenant_id", tenantID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

// DeactivateAgent soft-deletes an agent.
func (h *AdminHandler) DeactivateAgent(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "agentID")
	if !ok {
		return
	}

	if err := h.agents.Deactivate(r.Context(), tenantID, id); err != nil {
		if errors.Is(err, agents.ErrAgentNotFound) {
			http.Error(w, "agent not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceSchedule swaps an agent's whole weekly template.
func (h *AdminHandler) ReplaceSchedule(w http.ResponseWriter, r *http.Request) {
	if _, ok := tenantFrom(w, r); !ok {
		return
	}
	id, ok := pathUUID(w, r, "agentID")
	if !ok {
		return
	}

	var req struct {
		Slots []agents.WeeklyScheduleSlot `json:"slots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := h.agents.ReplaceWeeklySchedule(r.Context(), id, req.Slots); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"slots": len(req.Slots)})
}

// AddUnavailability records a blackout window for an agent.
func (h *AdminHandler) AddUnavailability(w http.ResponseWriter, r *http.Request) {
	if _, ok := tenantFrom(w, r); !ok {
		return
	}
	id, ok := pathUUID(w, r, "agentID")
	if !ok {
		return
	}

	var window agents.UnavailabilityWindow
	if err := json.NewDecoder(r.Body).Decode(&window); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if !window.EndDatetime.After(window.StartDatetime) {
		http.Error(w, "end must be after start", http.StatusBadRequest)
		return
	}
	window.AgentID = id

	if err := h.agents.AddUnavailability(r.Context(), &window); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, window)
}

// GetSettings returns the tenant's chatbot configuration.
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(w, r)
	if !ok {
		return
	}
	settings, err := h.settings.Get(r.Context(), tenantID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings replaces the tenant's chatbot configuration.
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFrom(w, r)
	if !ok {
		return
	}

	var settings tenancy.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	settings.TenantID = tenantID

	if err := h.settings.Set(r.Context(), &settings); err != nil {
		h.logger.Error("settings update failed", "tenant_id", tenantID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
