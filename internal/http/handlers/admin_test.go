package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatrdv/platform/internal/agents"
	"github.com/chatrdv/platform/internal/booking"
	"github.com/chatrdv/platform/internal/tenancy"
)

type fakeLedgerAdmin struct {
	appts         []booking.Appointment
	transitionErr error
	gotStatus     booking.Status
}

func (f *fakeLedgerAdmin) ListForTenant(ctx context.Context, tenantID string, limit int) ([]booking.Appointment, error) {
	return f.appts, nil
}

func (f *fakeLedgerAdmin) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*booking.Appointment, error) {
	for i := range f.appts {
		if f.appts[i].ID == id {
			return &f.appts[i], nil
		}
	}
	return nil, booking.ErrAppointmentNotFound
}

func (f *fakeLedgerAdmin) Transition(ctx context.Context, tenantID string, id uuid.UUID, next booking.Status) error {
	f.gotStatus = next
	return f.transitionErr
}

type fakeAgentAdmin struct {
	created *agents.Agent
	window  *agents.UnavailabilityWindow
}

func (f *fakeAgentAdmin) ListActive(ctx context.Context, tenantID string) ([]agents.Agent, error) {
	return nil, nil
}

func (f *fakeAgentAdmin) Create(ctx context.Context, agent *agents.Agent) error {
	agent.ID = uuid.New()
	f.created = agent
	return nil
}

func (f *fakeAgentAdmin) Deactivate(ctx context.Context, tenantID string, id uuid.UUID) error {
	return agents.ErrAgentNotFound
}

func (f *fakeAgentAdmin) ReplaceWeeklySchedule(ctx context.Context, agentID uuid.UUID, slots []agents.WeeklyScheduleSlot) error {
	return nil
}

func (f *fakeAgentAdmin) AddUnavailability(ctx context.Context, w *agents.UnavailabilityWindow) error {
	f.window = w
	return nil
}

type fakeSettingsAdmin struct {
	saved *tenancy.Settings
}

func (f *fakeSettingsAdmin) Get(ctx context.Context, tenantID string) (*tenancy.Settings, error) {
	return tenancy.DefaultSettings(tenantID), nil
}

func (f *fakeSettingsAdmin) Set(ctx context.Context, settings *tenancy.Settings) error {
	f.saved = settings
	return nil
}

func adminRig(ledger *fakeLedgerAdmin, repo *fakeAgentAdmin, settings *fakeSettingsAdmin) (*AdminHandler, chi.Router) {
	h := NewAdminHandler(ledger, repo, settings, nil)
	r := chi.NewRouter()
	r.Get("/admin/appointments/{appointmentID}", h.GetAppointment)
	r.Patch("/admin/appointments/{appointmentID}/status", h.UpdateAppointmentStatus)
	r.Post("/admin/agents", h.CreateAgent)
	r.Delete("/admin/agents/{agentID}", h.DeactivateAgent)
	r.Put("/admin/settings", h.UpdateSettings)
	return h, r
}

func TestUpdateAppointmentStatusConflict(t *testing.T) {
	ledger := &fakeLedgerAdmin{transitionErr: booking.ErrInvalidTransition}
	_, r := adminRig(ledger, &fakeAgentAdmin{}, &fakeSettingsAdmin{})

	id := uuid.New()
	body := strings.NewReader(`{"status":"confirmed"}`)
	req := withTenant(httptest.NewRequest(http.MethodPatch, "/admin/appointments/"+id.String()+"/status", body), "t1")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if ledger.gotStatus != booking.StatusConfirmed {
		t.Fatalf("transition called with %q", ledger.gotStatus)
	}
}

func TestGetAppointmentNotFound(t *testing.T) {
	_, r := adminRig(&fakeLedgerAdmin{}, &fakeAgentAdmin{}, &fakeSettingsAdmin{})

	req := withTenant(httptest.NewRequest(http.MethodGet, "/admin/appointments/"+uuid.NewString(), nil), "t1")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCreateAgentForcesTenantScope(t *testing.T) {
	repo := &fakeAgentAdmin{}
	_, r := adminRig(&fakeLedgerAdmin{}, repo, &fakeSettingsAdmin{})

	body := strings.NewReader(`{"name":"Alice Martin","tenant_id":"someone-else","active":false}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/admin/agents", body), "t1")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if repo.created.TenantID != "t1" || !repo.created.Active {
		t.Fatalf("agent not scoped to caller: %+v", repo.created)
	}
}

func TestCreateAgentRequiresName(t *testing.T) {
	_, r := adminRig(&fakeLedgerAdmin{}, &fakeAgentAdmin{}, &fakeSettingsAdmin{})

	req := withTenant(httptest.NewRequest(http.MethodPost, "/admin/agents", strings.NewReader(`{"email":"a@b.fr"}`)), "t1")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeactivateUnknownAgent(t *testing.T) {
	_, r := adminRig(&fakeLedgerAdmin{}, &fakeAgentAdmin{}, &fakeSettingsAdmin{})

	req := withTenant(httptest.NewRequest(http.MethodDelete, "/admin/agents/"+uuid.NewString(), nil), "t1")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateSettingsPinsTenantID(t *testing.T) {
	settings := &fakeSettingsAdmin{}
	_, r := adminRig(&fakeLedgerAdmin{}, &fakeAgentAdmin{}, settings)

	body := strings.NewReader(`{"tenant_id":"spoofed","name":"Agence Lumière","booking_enabled":true}`)
	req := withTenant(httptest.NewRequest(http.MethodPut, "/admin/settings", body), "t1")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if settings.saved.TenantID != "t1" {
		t.Fatalf("tenant id not pinned: %q", settings.saved.TenantID)
	}

	var resp tenancy.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TenantID != "t1" {
		t.Fatalf("response tenant id = %q", resp.TenantID)
	}
}
