package booking

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

var ledgerTracer = otel.Tracer("chatrdv.internal.booking")

// ErrAppointmentNotFound is returned when an appointment does not exist for the tenant.
var ErrAppointmentNotFound = errors.New("booking: appointment not found")

type ledgerQuerier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger is the transactional persistence step of a booking: the single
// source of truth regardless of calendar sync or notification outcomes.
type Ledger struct {
	pool ledgerQuerier
}

// NewLedger initializes a ledger backed by pgxpool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &Ledger{pool: pool}
}

func newLedgerWithQuerier(q ledgerQuerier) *Ledger {
	if q == nil {
		panic("booking: querier required")
	}
	return &Ledger{pool: q}
}

// Insert writes the appointment row. This is the durability boundary of the
// pipeline: a failure here must fail the whole booking attempt.
func (l *Ledger) Insert(ctx context.Context, appt *Appointment) error {
	ctx, span := ledgerTracer.Start(ctx, "booking.ledger.insert")
	defer span.End()

	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	if appt.Status == "" {
		appt.Status = StatusConfirmed
	}

	query := `
		INSERT INTO appointments (
			id, tenant_id, agent_id, visitor_name, visitor_email, visitor_phone,
			service, specialty_requested, date, time, duration_minutes,
			external_event_id, distribution_method, status, session_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at
	`
	if err := l.pool.QueryRow(ctx, query,
		appt.ID,
		appt.TenantID,
		appt.AgentID,
		appt.VisitorName,
		appt.VisitorEmail,
		appt.VisitorPhone,
		appt.Service,
		appt.SpecialtyRequested,
		appt.Date,
		appt.Time,
		appt.DurationMinutes,
		appt.ExternalEventID,
		appt.DistributionMethod,
		string(appt.Status),
		appt.SessionID,
	).Scan(&appt.CreatedAt); err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: insert appointment: %w", err)
	}
	return nil
}

// MarkNotified stamps the delivery time for one notification channel so
// partial delivery stays observable. channel is "agent" or "visitor".
func (l *Ledger) MarkNotified(ctx context.Context, tenantID string, id uuid.UUID, channel string, at time.Time) error {
	var column string
	switch channel {
	case "agent":
		column = "agent_notified_at"
	case "visitor":
		column = "visitor_notified_at"
	default:
		return fmt.Errorf("booking: unknown notification channel %q", channel)
	}

	query := fmt.Sprintf(`UPDATE appointments SET %s = $1 WHERE id = $2 AND tenant_id = $3`, column)
	ct, err := l.pool.Exec(ctx, query, at, id, tenantID)
	if err != nil {
		return fmt.Errorf("booking: mark %s notified: %w", channel, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Transition applies an administrative status change under a row lock,
// enforcing the appointment state machine.
func (l *Ledger) Transition(ctx context.Context, tenantID string, id uuid.UUID, next Status) error {
	ctx, span := ledgerTracer.Start(ctx, "booking.ledger.transition")
	defer span.End()

	if !next.Valid() {
		return fmt.Errorf("booking: unknown status %q", next)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("booking: begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current Status
	err = tx.QueryRow(ctx,
		`SELECT status FROM appointments WHERE id = $1 AND tenant_id = $2 FOR UPDATE`,
		id, tenantID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("booking: load status: %w", err)
	}

	if !current.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE appointments SET status = $1 WHERE id = $2 AND tenant_id = $3`,
		string(next), id, tenantID,
	); err != nil {
		return fmt.Errorf("booking: update status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("booking: commit transition: %w", err)
	}
	return nil
}

// GetByID loads an appointment scoped to the tenant.
func (l *Ledger) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Appointment, error) {
	query := `
		SELECT id, tenant_id, agent_id, visitor_name, visitor_email, visitor_phone,
		       service, specialty_requested, date, time, duration_minutes,
		       external_event_id, distribution_method, status, session_id,
		       agent_notified_at, visitor_notified_at, created_at
		FROM appointments
		WHERE id = $1 AND tenant_id = $2
	`
	appt, err := scanAppointment(l.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("booking: load appointment: %w", err)
	}
	return appt, nil
}

// ListForTenant returns a tenant's appointments, newest first.
func (l *Ledger) ListForTenant(ctx context.Context, tenantID string, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, tenant_id, agent_id, visitor_name, visitor_email, visitor_phone,
		       service, specialty_requested, date, time, duration_minutes,
		       external_event_id, distribution_method, status, session_id,
		       agent_notified_at, visitor_notified_at, created_at
		FROM appointments
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := l.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("booking: list appointments: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan appointment: %w", err)
		}
		appts = append(appts, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate appointments: %w", err)
	}
	return appts, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var appt Appointment
	var status string
	if err := row.Scan(
		&appt.ID,
		&appt.TenantID,
		&appt.AgentID,
		&appt.VisitorName,
		&appt.VisitorEmail,
		&appt.VisitorPhone,
		&appt.Service,
		&appt.SpecialtyRequested,
		&appt.Date,
		&appt.Time,
		&appt.DurationMinutes,
		&appt.ExternalEventID,
		&appt.DistributionMethod,
		&status,
		&appt.SessionID,
		&appt.AgentNotifiedAt,
		&appt.VisitorNotifiedAt,
		&appt.CreatedAt,
	); err != nil {
		return nil, err
	}
	appt.Status = Status(status)
	return &appt, nil
}
