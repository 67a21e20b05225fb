package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/chatrdv/platform/internal/agents"
	"github.com/chatrdv/platform/internal/ai"
	"github.com/chatrdv/platform/internal/calendar"
	"github.com/chatrdv/platform/internal/conversation"
	"github.com/chatrdv/platform/internal/notify"
	"github.com/chatrdv/platform/internal/observability/metrics"
	"github.com/chatrdv/platform/internal/tenancy"
	"github.com/chatrdv/platform/pkg/logging"
)

// completer is the AI side of a chat turn. *ai.Chain satisfies it.
type completer interface {
	Complete(ctx context.Context, req ai.Request) (ai.Response, error)
}

// turnStore persists and replays session history.
type turnStore interface {
	Append(ctx context.Context, turn *conversation.Turn) error
	List(ctx context.Context, tenantID, sessionID string) ([]conversation.Turn, error)
}

// settingsSource loads per-tenant chatbot configuration.
type settingsSource interface {
	Get(ctx context.Context, tenantID string) (*tenancy.Settings, error)
}

// agentSelector runs the distribution policy. *agents.Distributor satisfies it.
type agentSelector interface {
	SelectAgent(ctx context.Context, req agents.SelectionRequest) (agents.Selection, error)
}

// agentLister exposes the active roster for visitor-choice prompts.
// *agents.Repository satisfies it.
type agentLister interface {
	ListActive(ctx context.Context, tenantID string) ([]agents.Agent, error)
}

// eventCreator writes the appointment into an external calendar.
type eventCreator interface {
	IsConfigured() bool
	CreateEvent(ctx context.Context, calendarID string, req calendar.EventRequest) (string, error)
}

// confirmationSender fans out the booking emails.
type confirmationSender interface {
	SendBookingConfirmations(ctx context.Context, notice notify.BookingNotice) notify.DispatchResult
}

// appointmentWriter is the slice of the ledger the pipeline needs.
type appointmentWriter interface {
	Insert(ctx context.Context, appt *Appointment) error
	MarkNotified(ctx context.Context, tenantID string, id uuid.UUID, channel string, at time.Time) error
}

// ChatInput is one visitor message within a session.
type ChatInput struct {
	TenantID      string
	SessionID     string
	Message       string
	VisitorChoice *uuid.UUID // explicit agent pick, when the widget offers one
}

// ChatOutput is the reply plus whatever the booking pipeline produced.
// Booking is non-nil only when an appointment was durably recorded.
type ChatOutput struct {
	Reply            string       `json:"reply"`
	Provider         string       `json:"provider,omitempty"`
	Booking          *Appointment `json:"booking,omitempty"`
	ValidationErrors []string     `json:"validation_errors,omitempty"`
	BookingError     string       `json:"booking_error,omitempty"`
}

// Orchestrator drives a full chat turn: history, AI completion, marker
// extraction and the booking side effects. Only appointment persistence is
// allowed to fail a detected booking; calendar sync and notifications are
// best effort.
type Orchestrator struct {
	chain      completer
	turns      turnStore
	builder    *conversation.ContextBuilder
	settings   settingsSource
	selector   agentSelector
	roster     agentLister
	ledger     appointmentWriter
	calendar   eventCreator
	notifier   confirmationSender
	metrics    *metrics.BookingMetrics
	chat       *metrics.ChatMetrics
	logger     *logging.Logger
	location   *time.Location
	durDefault int
	maxTokens  int32
	temp       float32
	now        func() time.Time
}

// OrchestratorConfig wires the pipeline. Calendar, notifier and metrics may
// be nil; the corresponding side effect is skipped.
type OrchestratorConfig struct {
	Chain       completer
	Turns       turnStore
	Builder     *conversation.ContextBuilder
	Settings    settingsSource
	Selector    agentSelector
	Roster      agentLister
	Ledger      appointmentWriter
	Calendar    eventCreator
	Notifier    confirmationSender
	Metrics     *metrics.BookingMetrics
	ChatMetrics *metrics.ChatMetrics
	Logger      *logging.Logger
	Location    *time.Location
	// DefaultDuration is applied when the marker carries no duration.
	// Zero means 60 minutes.
	DefaultDuration int
	MaxTokens       int32
	Temperature     float32
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Chain == nil || cfg.Turns == nil || cfg.Settings == nil || cfg.Ledger == nil {
		panic("booking: chain, turns, settings and ledger are required")
	}
	if cfg.Builder == nil {
		cfg.Builder = conversation.NewContextBuilder(0, 0, 0, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 60
	}
	return &Orchestrator{
		chain:      cfg.Chain,
		turns:      cfg.Turns,
		builder:    cfg.Builder,
		settings:   cfg.Settings,
		selector:   cfg.Selector,
		roster:     cfg.Roster,
		ledger:     cfg.Ledger,
		calendar:   cfg.Calendar,
		notifier:   cfg.Notifier,
		metrics:    cfg.Metrics,
		chat:       cfg.ChatMetrics,
		logger:     cfg.Logger,
		location:   cfg.Location,
		durDefault: cfg.DefaultDuration,
		maxTokens:  cfg.MaxTokens,
		temp:       cfg.Temperature,
		now:        time.Now,
	}
}

// HandleMessage runs one chat turn end to end.
func (o *Orchestrator) HandleMessage(ctx context.Context, in ChatInput) (*ChatOutput, error) {
	tracer := otel.Tracer("chatrdv.internal.booking")
	ctx, span := tracer.Start(ctx, "orchestrator.handle_message")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", in.TenantID),
		attribute.String("session_id", in.SessionID),
	)

	if in.Message == "" {
		return nil, fmt.Errorf("booking: empty message")
	}

	log := o.logger.WithTenant(in.TenantID)

	start := o.now()
	defer func() {
		o.chat.ObserveTurnLatency(in.TenantID, time.Since(start).Seconds())
	}()

	settings, err := o.settings.Get(ctx, in.TenantID)
	if err != nil {
		return nil, fmt.Errorf("booking: load tenant settings: %w", err)
	}

	if err := o.turns.Append(ctx, &conversation.Turn{
		TenantID:  in.TenantID,
		SessionID: in.SessionID,
		Role:      ai.RoleUser,
		Content:   in.Message,
	}); err != nil {
		return nil, fmt.Errorf("booking: record user turn: %w", err)
	}

	history, err := o.turns.List(ctx, in.TenantID, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("booking: load session history: %w", err)
	}

	systemPrompt := conversation.BuildSystemPrompt(conversation.PromptConfig{
		SystemPrompt:   settings.SystemPrompt,
		BookingEnabled: settings.BookingEnabled,
		AgentNames:     o.rosterNames(ctx, settings),
	})
	messages := o.builder.Prepare(systemPrompt, history)

	resp, err := o.chain.Complete(ctx, ai.Request{
		Messages:    messages,
		MaxTokens:   o.maxTokens,
		Temperature: o.temp,
	})
	if err != nil {
		return nil, err
	}

	reply := StripMarker(resp.Text)
	if err := o.turns.Append(ctx, &conversation.Turn{
		TenantID:     in.TenantID,
		SessionID:    in.SessionID,
		Role:         ai.RoleAssistant,
		Content:      reply,
		ProviderUsed: resp.Provider,
		TokensUsed:   resp.Usage.TotalTokens,
	}); err != nil {
		// The visitor already has an answer, losing one history row is
		// recoverable on the next turn.
		log.Warn("record assistant turn failed", "session_id", in.SessionID, "error", err)
	}

	out := &ChatOutput{Reply: reply, Provider: resp.Provider}

	extract := ExtractMarker(resp.Text)
	if !extract.Found {
		return out, nil
	}
	if !extract.Valid {
		log.Info("booking marker rejected", "session_id", in.SessionID, "errors", extract.Errors)
		out.ValidationErrors = extract.Errors
		return out, nil
	}
	if !settings.BookingEnabled {
		log.Warn("booking marker received while booking disabled")
		return out, nil
	}

	o.completeBooking(ctx, in, settings, extract.Data, out)
	return out, nil
}

// rosterNames lists active agent names for multi-agent tenants so the
// model can acknowledge a visitor's preference. Failures degrade to an
// anonymous prompt.
func (o *Orchestrator) rosterNames(ctx context.Context, settings *tenancy.Settings) []string {
	if o.roster == nil || !settings.MultiAgentEnabled || !settings.BookingEnabled {
		return nil
	}
	active, err := o.roster.ListActive(ctx, settings.TenantID)
	if err != nil {
		o.logger.Warn("list active agents for prompt failed",
			"tenant_id", settings.TenantID, "error", err)
		return nil
	}
	names := make([]string, 0, len(active))
	for _, a := range active {
		names = append(names, a.Name)
	}
	return names
}

func (o *Orchestrator) completeBooking(ctx context.Context, in ChatInput, settings *tenancy.Settings, data *MarkerData, out *ChatOutput) {
	specialty := ClassifySpecialty(data.Service)

	// The model rarely volunteers a duration; the row, the calendar event
	// and the confirmation emails must still agree on one.
	duration := data.DurationMinutes
	if duration <= 0 {
		duration = o.durDefault
	}

	selection := agents.Selection{Method: agents.MethodUnassigned}
	if o.selector != nil {
		sel, err := o.selector.SelectAgent(ctx, agents.SelectionRequest{
			TenantID:        in.TenantID,
			Specialty:       specialty,
			Date:            data.Date,
			Time:            data.Time,
			VisitorChoiceID: in.VisitorChoice,
		})
		if err != nil {
			o.logger.Warn("agent selection failed, booking proceeds unassigned",
				"tenant_id", in.TenantID, "error", err)
		} else {
			selection = sel
		}
	}

	appt := &Appointment{
		TenantID:           in.TenantID,
		VisitorName:        data.Name,
		VisitorEmail:       data.Email,
		VisitorPhone:       data.Phone,
		Service:            data.Service,
		SpecialtyRequested: specialty,
		Date:               data.Date,
		Time:               data.Time,
		DurationMinutes:    duration,
		DistributionMethod: selection.Method,
		SessionID:          in.SessionID,
	}
	if selection.Agent != nil {
		id := selection.Agent.ID
		appt.AgentID = &id
	}

	appt.ExternalEventID = o.syncCalendar(ctx, settings, selection.Agent, appt)

	if err := o.ledger.Insert(ctx, appt); err != nil {
		o.logger.Error("appointment insert failed",
			"tenant_id", in.TenantID, "session_id", in.SessionID, "error", err)
		out.BookingError = "l'enregistrement du rendez-vous a échoué"
		return
	}
	o.metrics.ObserveBooking(in.TenantID, appt.DistributionMethod)
	out.Booking = appt

	o.sendConfirmations(ctx, settings, selection.Agent, appt)
}

// syncCalendar creates the external event ahead of the insert so the row can
// carry the event id. Any failure leaves the id empty.
func (o *Orchestrator) syncCalendar(ctx context.Context, settings *tenancy.Settings, agent *agents.Agent, appt *Appointment) string {
	if o.calendar == nil || !o.calendar.IsConfigured() {
		return ""
	}
	calendarID := settings.CalendarID
	if agent != nil && agent.CalendarID != "" {
		calendarID = agent.CalendarID
	}
	if calendarID == "" {
		return ""
	}

	start, err := appt.StartsAt(o.location)
	if err != nil {
		o.logger.Warn("appointment slot does not parse, skipping calendar sync",
			"tenant_id", appt.TenantID, "date", appt.Date, "time", appt.Time, "error", err)
		return ""
	}

	summary := fmt.Sprintf("RDV - %s", appt.VisitorName)
	if appt.Service != "" {
		summary = fmt.Sprintf("RDV %s - %s", appt.Service, appt.VisitorName)
	}
	description := fmt.Sprintf("Contact : %s", appt.VisitorEmail)
	if appt.VisitorPhone != "" {
		description += " / " + appt.VisitorPhone
	}

	eventID, err := o.calendar.CreateEvent(ctx, calendarID, calendar.EventRequest{
		Summary:         summary,
		Description:     description,
		Start:           start,
		DurationMinutes: appt.DurationMinutes,
		AttendeeEmail:   appt.VisitorEmail,
		Timezone:        settings.Timezone,
	})
	if err != nil {
		o.logger.Warn("calendar sync failed, appointment proceeds without event",
			"tenant_id", appt.TenantID, "error", err)
		o.metrics.ObserveCalendarSync(false)
		return ""
	}
	o.metrics.ObserveCalendarSync(true)
	return eventID
}

func (o *Orchestrator) sendConfirmations(ctx context.Context, settings *tenancy.Settings, agent *agents.Agent, appt *Appointment) {
	if o.notifier == nil {
		return
	}

	notice := notify.BookingNotice{
		TenantName:      settings.Name,
		FallbackEmail:   settings.NotificationEmail,
		VisitorName:     appt.VisitorName,
		VisitorEmail:    appt.VisitorEmail,
		VisitorPhone:    appt.VisitorPhone,
		Service:         appt.Service,
		Date:            appt.Date,
		Time:            appt.Time,
		DurationMinutes: appt.DurationMinutes,
	}
	if agent != nil {
		notice.AgentName = agent.Name
		notice.AgentEmail = agent.Email
	}

	result := o.notifier.SendBookingConfirmations(ctx, notice)
	o.metrics.ObserveNotification("agent", result.AgentSent)
	o.metrics.ObserveNotification("visitor", result.VisitorSent)

	now := o.now()
	if result.AgentSent {
		if err := o.ledger.MarkNotified(ctx, appt.TenantID, appt.ID, "agent", now); err != nil {
			o.logger.Warn("mark agent notified failed", "appointment_id", appt.ID, "error", err)
		} else {
			appt.AgentNotifiedAt = &now
		}
	}
	if result.VisitorSent {
		if err := o.ledger.MarkNotified(ctx, appt.TenantID, appt.ID, "visitor", now); err != nil {
			o.logger.Warn("mark visitor notified failed", "appointment_id", appt.ID, "error", err)
		} else {
			appt.VisitorNotifiedAt = &now
		}
	}
}
