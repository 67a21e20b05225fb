package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
)

var turnTracer = otel.Tracer("chatrdv.internal.conversation")

// Turn is a single message of a chat session. Turns are append-only:
// they are never mutated, only appended and bulk-deleted on session clear.
type Turn struct {
	ID           int64     `json:"id"`
	TenantID     string    `json:"tenant_id"`
	SessionID    string    `json:"session_id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	ProviderUsed string    `json:"provider_used,omitempty"`
	TokensUsed   int32     `json:"tokens_used"`
	CreatedAt    time.Time `json:"created_at"`
}

type turnQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TurnStore persists conversation turns in Postgres.
type TurnStore struct {
	pool turnQuerier
}

// NewTurnStore initializes a store backed by pgxpool.
func NewTurnStore(pool *pgxpool.Pool) *TurnStore {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &TurnStore{pool: pool}
}

func newTurnStoreWithQuerier(q turnQuerier) *TurnStore {
	if q == nil {
		panic("conversation: querier required")
	}
	return &TurnStore{pool: q}
}

// Append inserts a turn at the end of the session history.
func (s *TurnStore) Append(ctx context.Context, turn *Turn) error {
	ctx, span := turnTracer.Start(ctx, "conversation.append_turn")
	defer span.End()

	query := `
		INSERT INTO conversation_turns (tenant_id, session_id, role, content, provider_used, tokens_used)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	if err := s.pool.QueryRow(ctx, query,
		turn.TenantID,
		turn.SessionID,
		turn.Role,
		turn.Content,
		turn.ProviderUsed,
		turn.TokensUsed,
	).Scan(&turn.ID, &turn.CreatedAt); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: append turn: %w", err)
	}
	return nil
}

// List returns the full session history in append order.
func (s *TurnStore) List(ctx context.Context, tenantID, sessionID string) ([]Turn, error) {
	ctx, span := turnTracer.Start(ctx, "conversation.list_turns")
	defer span.End()

	query := `
		SELECT id, tenant_id, session_id, role, content, provider_used, tokens_used, created_at
		FROM conversation_turns
		WHERE tenant_id = $1 AND session_id = $2
		ORDER BY created_at, id
	`
	rows, err := s.pool.Query(ctx, query, tenantID, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: list turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.TenantID, &t.SessionID, &t.Role, &t.Content, &t.ProviderUsed, &t.TokensUsed, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: iterate turns: %w", err)
	}
	return turns, nil
}

// Clear bulk-deletes a session's history.
func (s *TurnStore) Clear(ctx context.Context, tenantID, sessionID string) (int64, error) {
	ctx, span := turnTracer.Start(ctx, "conversation.clear_session")
	defer span.End()

	ct, err := s.pool.Exec(ctx, `DELETE FROM conversation_turns WHERE tenant_id = $1 AND session_id = $2`, tenantID, sessionID)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("conversation: clear session: %w", err)
	}
	return ct.RowsAffected(), nil
}
