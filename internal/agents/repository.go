package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
)

var agentsTracer = otel.Tracer("chatrdv.internal.agents")

var (
	// ErrAgentNotFound is returned when an agent does not exist.
	ErrAgentNotFound = errors.New("agents: agent not found")
	// ErrConfigNotFound is returned when a tenant has no distribution config row.
	ErrConfigNotFound = errors.New("agents: distribution config not found")
)

// defaultWeeklyTemplate is seeded at agent creation: Monday through Friday,
// nine to six. Fully replaced on edit, never patched.
var defaultWeeklyTemplate = []WeeklyScheduleSlot{
	{DayOfWeek: 1, StartTime: "09:00", EndTime: "18:00", Available: true},
	{DayOfWeek: 2, StartTime: "09:00", EndTime: "18:00", Available: true},
	{DayOfWeek: 3, StartTime: "09:00", EndTime: "18:00", Available: true},
	{DayOfWeek: 4, StartTime: "09:00", EndTime: "18:00", Available: true},
	{DayOfWeek: 5, StartTime: "09:00", EndTime: "18:00", Available: true},
}

type agentQuerier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores agents, their schedules and the per-tenant
// distribution config in Postgres.
type Repository struct {
	pool agentQuerier
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("agents: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithQuerier(q agentQuerier) *Repository {
	if q == nil {
		panic("agents: querier required")
	}
	return &Repository{pool: q}
}

const agentColumns = `id, tenant_id, name, email, phone, calendar_id, specialties, color, active, sort_order, appointments_count`

// ListActive returns a tenant's active agents ordered by sort_order then id.
func (r *Repository) ListActive(ctx context.Context, tenantID string) ([]Agent, error) {
	ctx, span := agentsTracer.Start(ctx, "agents.list_active")
	defer span.End()

	query := `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE tenant_id = $1 AND active
		ORDER BY sort_order, id
	`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("agents: list active: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("agents: scan agent: %w", err)
		}
		agents = append(agents, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agents: iterate agents: %w", err)
	}
	return agents, nil
}

// GetByID loads a single agent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`
	a, err := scanAgent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("agents: load agent: %w", err)
	}
	return a, nil
}

// Create inserts an agent together with the default weekly template in one
// transaction.
func (r *Repository) Create(ctx context.Context, agent *Agent) error {
	ctx, span := agentsTracer.Start(ctx, "agents.create")
	defer span.End()

	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agents: begin create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO agents (id, tenant_id, name, email, phone, calendar_id, specialties, color, active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		agent.ID, agent.TenantID, agent.Name, agent.Email, agent.Phone,
		agent.CalendarID, agent.Specialties, agent.Color, agent.Active, agent.SortOrder,
	); err != nil {
		return fmt.Errorf("agents: insert agent: %w", err)
	}

	for _, slot := range defaultWeeklyTemplate {
		if _, err := tx.Exec(ctx, `
			INSERT INTO weekly_schedule_slots (agent_id, day_of_week, start_time, end_time, available)
			VALUES ($1, $2, $3, $4, $5)
		`, agent.ID, slot.DayOfWeek, slot.StartTime, slot.EndTime, slot.Available); err != nil {
			return fmt.Errorf("agents: seed weekly template: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agents: commit create: %w", err)
	}
	return nil
}

// Deactivate soft-deletes an agent.
func (r *Repository) Deactivate(ctx context.Context, tenantID string, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `UPDATE agents SET active = FALSE WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("agents: deactivate: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// ReplaceWeeklySchedule swaps an agent's whole weekly template in one
// transaction. Delete-all plus reinsert avoids overlap-merge bugs.
func (r *Repository) ReplaceWeeklySchedule(ctx context.Context, agentID uuid.UUID, slots []WeeklyScheduleSlot) error {
	ctx, span := agentsTracer.Start(ctx, "agents.replace_schedule")
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agents: begin schedule replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM weekly_schedule_slots WHERE agent_id = $1`, agentID); err != nil {
		return fmt.Errorf("agents: clear schedule: %w", err)
	}
	for _, slot := range slots {
		if slot.DayOfWeek < 0 || slot.DayOfWeek > 6 {
			return fmt.Errorf("agents: day_of_week out of range: %d", slot.DayOfWeek)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO weekly_schedule_slots (agent_id, day_of_week, start_time, end_time, available)
			VALUES ($1, $2, $3, $4, $5)
		`, agentID, slot.DayOfWeek, slot.StartTime, slot.EndTime, slot.Available); err != nil {
			return fmt.Errorf("agents: insert slot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agents: commit schedule replace: %w", err)
	}
	return nil
}

// ListWeeklySlots returns an agent's template slots for one weekday.
func (r *Repository) ListWeeklySlots(ctx context.Context, agentID uuid.UUID, dayOfWeek int) ([]WeeklyScheduleSlot, error) {
	query := `
		SELECT id, agent_id, day_of_week, start_time, end_time, available
		FROM weekly_schedule_slots
		WHERE agent_id = $1 AND day_of_week = $2
		ORDER BY start_time
	`
	rows, err := r.pool.Query(ctx, query, agentID, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("agents: list slots: %w", err)
	}
	defer rows.Close()

	var slots []WeeklyScheduleSlot
	for rows.Next() {
		var s WeeklyScheduleSlot
		if err := rows.Scan(&s.ID, &s.AgentID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.Available); err != nil {
			return nil, fmt.Errorf("agents: scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agents: iterate slots: %w", err)
	}
	return slots, nil
}

// AddUnavailability records an ad-hoc blackout window.
func (r *Repository) AddUnavailability(ctx context.Context, w *UnavailabilityWindow) error {
	if err := r.pool.QueryRow(ctx, `
		INSERT INTO unavailability_windows (agent_id, start_datetime, end_datetime, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, w.AgentID, w.StartDatetime, w.EndDatetime, w.Reason).Scan(&w.ID); err != nil {
		return fmt.Errorf("agents: add unavailability: %w", err)
	}
	return nil
}

// ListUnavailabilityAt returns blackout windows covering the instant.
func (r *Repository) ListUnavailabilityAt(ctx context.Context, agentID uuid.UUID, instant time.Time) ([]UnavailabilityWindow, error) {
	query := `
		SELECT id, agent_id, start_datetime, end_datetime, reason
		FROM unavailability_windows
		WHERE agent_id = $1 AND start_datetime <= $2 AND end_datetime > $2
	`
	rows, err := r.pool.Query(ctx, query, agentID, instant)
	if err != nil {
		return nil, fmt.Errorf("agents: list unavailability: %w", err)
	}
	defer rows.Close()

	var windows []UnavailabilityWindow
	for rows.Next() {
		var w UnavailabilityWindow
		if err := rows.Scan(&w.ID, &w.AgentID, &w.StartDatetime, &w.EndDatetime, &w.Reason); err != nil {
			return nil, fmt.Errorf("agents: scan window: %w", err)
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agents: iterate windows: %w", err)
	}
	return windows, nil
}

// GetDistributionConfig loads the tenant's distribution policy singleton.
func (r *Repository) GetDistributionConfig(ctx context.Context, tenantID string) (*DistributionConfig, error) {
	query := `
		SELECT tenant_id, distribution_mode, allow_visitor_choice, show_agent_photos,
		       show_agent_bios, last_assigned_agent_id, available_specialties,
		       booking_duration_default, booking_buffer_minutes, max_days_advance
		FROM distribution_configs
		WHERE tenant_id = $1
	`
	var cfg DistributionConfig
	var mode string
	if err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&cfg.TenantID,
		&mode,
		&cfg.AllowVisitorChoice,
		&cfg.ShowAgentPhotos,
		&cfg.ShowAgentBios,
		&cfg.LastAssignedAgentID,
		&cfg.AvailableSpecialties,
		&cfg.BookingDurationDefault,
		&cfg.BookingBufferMinutes,
		&cfg.MaxDaysAdvance,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("agents: load distribution config: %w", err)
	}
	cfg.Mode = DistributionMode(mode)
	return &cfg, nil
}

// AdvanceCursor picks the candidate following the round-robin cursor and
// persists the new cursor in the same transaction. The config row is locked
// so two concurrent bookings cannot both assign the same "next" agent.
func (r *Repository) AdvanceCursor(ctx context.Context, tenantID string, candidates []Agent) (*Agent, error) {
	ctx, span := agentsTracer.Start(ctx, "agents.advance_cursor")
	defer span.End()

	if len(candidates) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("agents: begin cursor advance: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cursor *uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT last_assigned_agent_id FROM distribution_configs WHERE tenant_id = $1 FOR UPDATE`,
		tenantID,
	).Scan(&cursor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("agents: lock cursor: %w", err)
	}

	next := NextAfterCursor(candidates, cursor)
	if _, err := tx.Exec(ctx,
		`UPDATE distribution_configs SET last_assigned_agent_id = $1 WHERE tenant_id = $2`,
		next.ID, tenantID,
	); err != nil {
		return nil, fmt.Errorf("agents: persist cursor: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("agents: commit cursor advance: %w", err)
	}
	return next, nil
}

// SetCursor records the agent that just received an assignment so later
// round-robin selections rotate past it.
func (r *Repository) SetCursor(ctx context.Context, tenantID string, agentID uuid.UUID) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE distribution_configs SET last_assigned_agent_id = $1 WHERE tenant_id = $2`,
		agentID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("agents: set cursor: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrConfigNotFound
	}
	return nil
}

// NextAfterCursor returns the candidate immediately after the cursor agent,
// wrapping to the first when the cursor is last or unknown. Candidates must
// already be in sort order.
func NextAfterCursor(candidates []Agent, cursor *uuid.UUID) *Agent {
	if len(candidates) == 0 {
		return nil
	}
	if cursor == nil {
		return &candidates[0]
	}
	for i := range candidates {
		if candidates[i].ID == *cursor {
			next := candidates[(i+1)%len(candidates)]
			return &next
		}
	}
	return &candidates[0]
}

func scanAgent(row pgx.Row) (*Agent, error) {
	var a Agent
	if err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.Name,
		&a.Email,
		&a.Phone,
		&a.CalendarID,
		&a.Specialties,
		&a.Color,
		&a.Active,
		&a.SortOrder,
		&a.AppointmentsCount,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
