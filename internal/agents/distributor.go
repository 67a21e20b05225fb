package agents

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/chatrdv/platform/pkg/logging"
)

// Store is the persistence surface the distributor needs. *Repository
// satisfies it.
type Store interface {
	ListActive(ctx context.Context, tenantID string) ([]Agent, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Agent, error)
	GetDistributionConfig(ctx context.Context, tenantID string) (*DistributionConfig, error)
	AdvanceCursor(ctx context.Context, tenantID string, candidates []Agent) (*Agent, error)
	SetCursor(ctx context.Context, tenantID string, agentID uuid.UUID) error
}

// AvailabilityChecker answers whether an agent can take a slot.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, agent *Agent, date, timeOfDay string) (bool, error)
}

// Selection is the outcome of a distribution decision. Agent is nil only
// when the tenant has no active agents at all.
type Selection struct {
	Agent  *Agent
	Method string
}

// Distribution methods recorded on appointments.
const (
	MethodRoundRobin    = "round_robin"
	MethodAvailability  = "availability"
	MethodSpecialty     = "specialty"
	MethodVisitorChoice = "visitor_choice"
	MethodFallback      = "fallback"
	MethodUnassigned    = "unassigned"
)

// SelectionRequest carries everything a single assignment decision needs.
type SelectionRequest struct {
	TenantID        string
	Specialty       string
	Date            string
	Time            string
	VisitorChoiceID *uuid.UUID
}

// Distributor assigns appointments to agents according to the tenant's
// configured policy, degrading toward round-robin and finally a plain
// first-agent fallback rather than failing the booking.
type Distributor struct {
	store        Store
	availability AvailabilityChecker
	logger       *logging.Logger
}

func NewDistributor(store Store, availability AvailabilityChecker, logger *logging.Logger) *Distributor {
	if store == nil {
		panic("agents: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Distributor{store: store, availability: availability, logger: logger}
}

// SelectAgent runs the policy cascade for one booking.
func (d *Distributor) SelectAgent(ctx context.Context, req SelectionRequest) (Selection, error) {
	tracer := otel.Tracer("chatrdv.internal.agents")
	ctx, span := tracer.Start(ctx, "distributor.select_agent")
	defer span.End()
	span.SetAttributes(attribute.String("tenant_id", req.TenantID))

	active, err := d.store.ListActive(ctx, req.TenantID)
	if err != nil {
		d.logger.Error("list active agents failed", "tenant_id", req.TenantID, "error", err)
		return Selection{Method: MethodUnassigned}, err
	}
	if len(active) == 0 {
		return Selection{Method: MethodUnassigned}, nil
	}

	cfg, err := d.store.GetDistributionConfig(ctx, req.TenantID)
	if err != nil {
		d.logger.Warn("distribution config unavailable, using fallback",
			"tenant_id", req.TenantID, "error", err)
		return Selection{Agent: &active[0], Method: MethodFallback}, nil
	}

	if req.VisitorChoiceID != nil && (cfg.Mode == ModeVisitorChoice || cfg.AllowVisitorChoice) {
		if sel, ok := d.visitorChoice(ctx, req, active); ok {
			return sel, nil
		}
	}

	switch cfg.Mode {
	case ModeAvailability:
		return d.byAvailability(ctx, req, active), nil
	case ModeSpecialty:
		return d.bySpecialty(ctx, req, active), nil
	default:
		return d.roundRobin(ctx, req.TenantID, active, MethodRoundRobin), nil
	}
}

// visitorChoice honors an explicit agent pick when the chosen agent is
// active for the tenant. A stale or foreign ID falls through to the policy.
func (d *Distributor) visitorChoice(ctx context.Context, req SelectionRequest, active []Agent) (Selection, bool) {
	for i := range active {
		if active[i].ID == *req.VisitorChoiceID {
			if err := d.store.SetCursor(ctx, req.TenantID, active[i].ID); err != nil {
				d.logger.Warn("cursor update failed after visitor choice",
					"tenant_id", req.TenantID, "error", err)
			}
			return Selection{Agent: &active[i], Method: MethodVisitorChoice}, true
		}
	}
	d.logger.Info("visitor chose an unknown or inactive agent, applying tenant policy",
		"tenant_id", req.TenantID, "agent_id", *req.VisitorChoiceID)
	return Selection{}, false
}

// byAvailability picks the first calendar-connected agent, in sort order,
// whose schedule is open for the requested slot. When nobody qualifies it
// degrades to round-robin over the full active set.
func (d *Distributor) byAvailability(ctx context.Context, req SelectionRequest, active []Agent) Selection {
	if d.availability == nil || req.Date == "" || req.Time == "" {
		return d.roundRobin(ctx, req.TenantID, active, MethodRoundRobin)
	}
	for i := range active {
		if active[i].CalendarID == "" {
			continue
		}
		ok, err := d.availability.IsAvailable(ctx, &active[i], req.Date, req.Time)
		if err != nil {
			d.logger.Warn("availability check failed, skipping agent",
				"tenant_id", req.TenantID, "agent_id", active[i].ID, "error", err)
			continue
		}
		if ok {
			if err := d.store.SetCursor(ctx, req.TenantID, active[i].ID); err != nil {
				d.logger.Warn("cursor update failed after availability pick",
					"tenant_id", req.TenantID, "error", err)
			}
			return Selection{Agent: &active[i], Method: MethodAvailability}
		}
	}
	return d.roundRobin(ctx, req.TenantID, active, MethodRoundRobin)
}

// bySpecialty round-robins over the agents holding the requested specialty,
// sharing the tenant cursor. No specialty match widens to the full set.
func (d *Distributor) bySpecialty(ctx context.Context, req SelectionRequest, active []Agent) Selection {
	if req.Specialty == "" {
		return d.roundRobin(ctx, req.TenantID, active, MethodRoundRobin)
	}
	var matching []Agent
	for _, a := range active {
		if a.HasSpecialty(req.Specialty) {
			matching = append(matching, a)
		}
	}
	if len(matching) == 0 {
		return d.roundRobin(ctx, req.TenantID, active, MethodRoundRobin)
	}
	return d.roundRobin(ctx, req.TenantID, matching, MethodSpecialty)
}

// roundRobin advances the tenant cursor over candidates. Any persistence
// failure degrades to the first candidate with the fallback method.
func (d *Distributor) roundRobin(ctx context.Context, tenantID string, candidates []Agent, method string) Selection {
	next, err := d.store.AdvanceCursor(ctx, tenantID, candidates)
	if err != nil || next == nil {
		if err != nil {
			d.logger.Warn("round-robin cursor advance failed, using fallback",
				"tenant_id", tenantID, "error", err)
		}
		return Selection{Agent: &candidates[0], Method: MethodFallback}
	}
	return Selection{Agent: next, Method: method}
}
