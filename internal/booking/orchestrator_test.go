package booking

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/chatrdv/platform/internal/agents"
	"github.com/chatrdv/platform/internal/ai"
	"github.com/chatrdv/platform/internal/calendar"
	"github.com/chatrdv/platform/internal/conversation"
	"github.com/chatrdv/platform/internal/notify"
	"github.com/chatrdv/platform/internal/tenancy"
)

type scriptedChain struct {
	reply  string
	err    error
	gotReq ai.Request
}

func (s *scriptedChain) Complete(ctx context.Context, req ai.Request) (ai.Response, error) {
	s.gotReq = req
	if s.err != nil {
		return ai.Response{}, s.err
	}
	return ai.Response{Text: s.reply, Provider: "openai"}, nil
}

type fixedRoster struct {
	active []agents.Agent
	err    error
}

func (f fixedRoster) ListActive(ctx context.Context, tenantID string) ([]agents.Agent, error) {
	return f.active, f.err
}

type memoryTurns struct {
	turns     []conversation.Turn
	appendErr error
}

func (m *memoryTurns) Append(ctx context.Context, turn *conversation.Turn) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	turn.ID = int64(len(m.turns) + 1)
	m.turns = append(m.turns, *turn)
	return nil
}

func (m *memoryTurns) List(ctx context.Context, tenantID, sessionID string) ([]conversation.Turn, error) {
	return m.turns, nil
}

type staticSettings struct{ settings *tenancy.Settings }

func (s staticSettings) Get(ctx context.Context, tenantID string) (*tenancy.Settings, error) {
	return s.settings, nil
}

type fixedSelector struct {
	selection agents.Selection
	err       error
	gotReq    agents.SelectionRequest
}

func (f *fixedSelector) SelectAgent(ctx context.Context, req agents.SelectionRequest) (agents.Selection, error) {
	f.gotReq = req
	return f.selection, f.err
}

type memoryLedger struct {
	inserted  []*Appointment
	insertErr error
	notified  map[string]time.Time
}

func (m *memoryLedger) Insert(ctx context.Context, appt *Appointment) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	appt.ID = uuid.New()
	if appt.Status == "" {
		appt.Status = StatusConfirmed
	}
	m.inserted = append(m.inserted, appt)
	return nil
}

func (m *memoryLedger) MarkNotified(ctx context.Context, tenantID string, id uuid.UUID, channel string, at time.Time) error {
	if m.notified == nil {
		m.notified = map[string]time.Time{}
	}
	m.notified[channel] = at
	return nil
}

type fakeCalendar struct {
	configured bool
	eventID    string
	err        error
	gotReq     calendar.EventRequest
}

func (f *fakeCalendar) IsConfigured() bool { return f.configured }

func (f *fakeCalendar) CreateEvent(ctx context.Context, calendarID string, req calendar.EventRequest) (string, error) {
	f.gotReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.eventID, nil
}

type fakeNotifier struct {
	result notify.DispatchResult
	notice notify.BookingNotice
	called bool
}

func (f *fakeNotifier) SendBookingConfirmations(ctx context.Context, notice notify.BookingNotice) notify.DispatchResult {
	f.called = true
	f.notice = notice
	return f.result
}

const bookingReply = `Parfait, je confirme votre rendez-vous !
[BOOKING_REQUEST]{"name":"Marie Dupont","email":"marie@example.fr","phone":"06 12 34 56 78","service":"vente appartement","date":"01/03/2026","time":"14h00","duration":60}[/BOOKING_REQUEST]
À très bientôt !`

func testSettings() *tenancy.Settings {
	return &tenancy.Settings{
		TenantID:          "t1",
		Name:              "Agence Lumière",
		BookingEnabled:    true,
		NotificationEmail: "contact@lumiere.fr",
		Timezone:          "UTC",
	}
}

type testRig struct {
	chain    *scriptedChain
	turns    *memoryTurns
	selector *fixedSelector
	ledger   *memoryLedger
	cal      *fakeCalendar
	notifier *fakeNotifier
	orch     *Orchestrator
}

func newTestRig(t *testing.T, reply string, settings *tenancy.Settings) *testRig {
	t.Helper()
	agentID := uuid.New()
	rig := &testRig{
		chain: &scriptedChain{reply: reply},
		turns: &memoryTurns{},
		selector: &fixedSelector{selection: agents.Selection{
			Agent: &agents.Agent{
				ID: agentID, Name: "Alice Martin", Email: "alice@lumiere.fr",
				CalendarID: "alice@cal",
			},
			Method: agents.MethodRoundRobin,
		}},
		ledger:   &memoryLedger{},
		cal:      &fakeCalendar{configured: true, eventID: "evt_1"},
		notifier: &fakeNotifier{result: notify.DispatchResult{AgentSent: true, VisitorSent: true}},
	}
	rig.orch = NewOrchestrator(OrchestratorConfig{
		Chain:    rig.chain,
		Turns:    rig.turns,
		Settings: staticSettings{settings: settings},
		Selector: rig.selector,
		Ledger:   rig.ledger,
		Calendar: rig.cal,
		Notifier: rig.notifier,
	})
	return rig
}

func TestHandleMessageCompletesBooking(t *testing.T) {
	rig := newTestRig(t, bookingReply, testSettings())

	out, err := rig.orch.HandleMessage(context.Background(), ChatInput{
		TenantID: "t1", SessionID: "s1", Message: "Je voudrais un RDV le 1er mars à 14h",
	})
	require.NoError(t, err)

	require.NotContains(t, out.Reply, "[BOOKING_REQUEST]")
	require.Contains(t, out.Reply, "je confirme votre rendez-vous")
	require.Equal(t, "openai", out.Provider)

	require.NotNil(t, out.Booking)
	require.Equal(t, "2026-03-01", out.Booking.Date)
	require.Equal(t, "14:00", out.Booking.Time)
	require.Equal(t, StatusConfirmed, out.Booking.Status)
	require.Equal(t, "vente", out.Booking.SpecialtyRequested)
	require.Equal(t, "evt_1", out.Booking.ExternalEventID)
	require.NotNil(t, out.Booking.AgentID)

	// Confirmations went out and were stamped on the row.
	require.True(t, rig.notifier.called)
	require.Equal(t, "alice@lumiere.fr", rig.notifier.notice.AgentEmail)
	require.NotNil(t, out.Booking.AgentNotifiedAt)
	require.NotNil(t, out.Booking.VisitorNotifiedAt)

	// User and assistant turns were recorded, the latter without the marker.
	require.Len(t, rig.turns.turns, 2)
	require.NotContains(t, rig.turns.turns[1].Content, "[BOOKING_REQUEST]")
}

func TestHandleMessageInvalidMarker(t *testing.T) {
	reply := `Voici votre créneau.
[BOOKING_REQUEST]{"name":"Marie","email":"marie@example.fr","phone":"06","service":"visite","date":"01/03/2026","time":"25h99"}[/BOOKING_REQUEST]`
	rig := newTestRig(t, reply, testSettings())

	out, err := rig.orch.HandleMessage(context.Background(), ChatInput{
		TenantID: "t1", SessionID: "s1", Message: "rdv svp",
	})
	require.NoError(t, err)

	require.Nil(t, out.Booking)
	require.Empty(t, rig.ledger.inserted)
	require.NotEmpty(t, out.ValidationErrors)
	require.NotContains(t, out.Reply, "[BOOKING_REQUEST]")

	found := false
	for _, e := range out.ValidationErrors {
		if strings.Contains(e, "time") || strings.Contains(e, "heure") {
			found = true
		}
	}
	require.True(t, found, "expected a time validation error, got %v", out.ValidationErrors)
}

func TestHandleMessageAllProvidersDown(t *testing.T) {
	rig := newTestRig(t, "", testSettings())
	rig.chain.err = ai.ErrAllProvidersDown

	_, err := rig.orch.HandleMessage(context.Background(), ChatInput{
		TenantID: "t1", SessionID: "s1", Message: "bonjour",
	})
	require.ErrorIs(t, err, ai.ErrAllProvidersDown)
	require.Empty(t, rig.ledger.inserted)
}

func TestHandleMessageCalendarUnreachable(t *testing.T) {
	rig := newTestRig(t, bookingReply, testSettings())
	rig.cal.err = errors.New("503 backend error")

	out, err := rig.orch.HandleMessage(context.Background(), ChatInput{
		TenantID: "t1", SessionID: "s1", Message: "rdv svp",
	})
	require.NoError(t, err)

	require.NotNil(t, out.Booking)
	require.Equal(t, StatusConfirmed, out.Booking.Status)
	require.Empty(t, out.Booking.ExternalEventID)
}

func TestHandleMessageInsertFailureIsFatalForBooking(t *testing.T) {
	rig := newTestRig(t, bookingReply, testSettings())
	rig.ledger.insertErr = errors.New("connection refused")

	out, err := rig.orch.HandleMessage(context.Background(), ChatInput{
		TenantID: "t1", SessionID: "s1", Message: "rdv svp",
	})
	require.NoError(t, err)

	require.Nil(t, out.Booking)
	require.NotEmpty(t, out.BookingError)
	require.False(t, rig.notifier.called, "no confirmations without a durable appointment")
}

func TestHandleMessageBookingDisabled(t *testing.T) {
	settings := testSettings()
	settings.BookingEnabled = false
	rig := newTestRig(t, bookingReply, settings)

	out, err := rig.orch.HandleMessage(context.Background(), ChatInput{
		TenantID: "t1", SessionID: "s1", Message: "rdv svp",
	})
	require.NoError(t, err)
	require.Nil(t, out.Booking)
	require.Empty(t, rig.ledger.inserted)
}

func TestHandleMessagePlainReply(t *testing.T) {
	rig := newTestRig(t, "Nos bureaux sont ouverts de 9h à 18h.", testSettings())

	out, err := rig.orch.HandleMessage(context.Background(), ChatInput{
		TenantID: "t1", SessionID: "s1", Message: "quels sont vos horaires ?",
	})
	require.NoError(t, err)
	require.Nil(t, out.Booking)
	require.Empty(t, out.ValidationErrors)
	require.Equal(t, "Nos bureaux sont ouverts de 9h à 18h.", out.Reply)
}

func TestHandleMessageSelectorFailureLeavesUnassigned(t *testing.T) {
	rig := newTestRig(t, bookingReply, testSettings())
	rig.selector.err = errors.New("db down")
	rig.selector.selection = agents.Selection{}

	out, err := rig.orch.HandleMessage(context.Background(), ChatInput{
		TenantID: "t1", SessionID: "s1", Message: "rdv svp",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Booking)
	require.Nil(t, out.Booking.AgentID)
	require.Equal(t, agents.MethodUnassigned, out.Booking.DistributionMethod)
}

func TestHandleMessagePassesSpecialtyToSelector(t *testing.T) {
	rig := newTestRig(t, bookingReply, testSettings())

	_, err := rig.orch.HandleMessage(context.Background(), ChatInput{
		TenantID: "t1", SessionID: "s1", Message: "rdv svp",
	})
	require.NoError(t, err)
	require.Equal(t, "vente", rig.selector.gotReq.Specialty)
	require.Equal(t, "2026-03-01", rig.selector.gotReq.Date)
	require.Equal(t, "14:00", rig.selector.gotReq.Time)
}

func TestHandleMessageDefaultsDurationWhenMarkerOmitsIt(t *testing.T) {
	reply := `C'est noté !
[BOOKING_REQUEST]{"name":"Marie Dupont","date":"01/03/2026","time":"14h00"}[/BOOKING_REQUEST]`
	rig := newTestRig(t, reply, testSettings())

	out, err := rig.orch.HandleMessage(context.Background(), ChatInput{
		TenantID: "t1", SessionID: "s1", Message: "rdv le 1er mars à 14h",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Booking)
	require.Equal(t, 60, out.Booking.DurationMinutes)
	require.Len(t, rig.ledger.inserted, 1)
	require.Equal(t, 60, rig.ledger.inserted[0].DurationMinutes)
	require.Equal(t, 60, rig.cal.gotReq.DurationMinutes)
	require.Equal(t, 60, rig.notifier.notice.DurationMinutes)
}

func TestHandleMessageListsRosterForMultiAgentTenants(t *testing.T) {
	settings := testSettings()
	settings.MultiAgentEnabled = true
	rig := newTestRig(t, "Bonjour !", settings)
	rig.orch.roster = fixedRoster{active: []agents.Agent{
		{Name: "Alice Martin"},
		{Name: "Bruno Petit"},
	}}

	_, err := rig.orch.HandleMessage(context.Background(), ChatInput{
		TenantID: "t1", SessionID: "s1", Message: "bonjour",
	})
	require.NoError(t, err)
	require.NotEmpty(t, rig.chain.gotReq.Messages)
	system := rig.chain.gotReq.Messages[0]
	require.Equal(t, ai.RoleSystem, system.Role)
	require.Contains(t, system.Content, "Alice Martin, Bruno Petit")
}

func TestHandleMessageRosterFailureDegradesToAnonymousPrompt(t *testing.T) {
	settings := testSettings()
	settings.MultiAgentEnabled = true
	rig := newTestRig(t, "Bonjour !", settings)
	rig.orch.roster = fixedRoster{err: errors.New("db down")}

	_, err := rig.orch.HandleMessage(context.Background(), ChatInput{
		TenantID: "t1", SessionID: "s1", Message: "bonjour",
	})
	require.NoError(t, err)
	require.NotEmpty(t, rig.chain.gotReq.Messages)
	require.NotContains(t, rig.chain.gotReq.Messages[0].Content, "conseiller en particulier")
}
