package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *Repository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, newRepositoryWithQuerier(mock)
}

func TestListActive(t *testing.T) {
	mock, repo := newMockRepo(t)

	a1 := uuid.New()
	a2 := uuid.New()
	rows := pgxmock.NewRows([]string{
		"id", "tenant_id", "name", "email", "phone", "calendar_id",
		"specialties", "color", "active", "sort_order", "appointments_count",
	}).
		AddRow(a1, "t1", "Alice", "alice@ex.fr", "", "alice@cal", []string{"vente"}, "#3B82F6", true, 0, 12).
		AddRow(a2, "t1", "Bruno", "bruno@ex.fr", "", "", []string(nil), "#10B981", true, 1, 7)

	mock.ExpectQuery(`SELECT .+ FROM agents\s+WHERE tenant_id = \$1 AND active`).
		WithArgs("t1").
		WillReturnRows(rows)

	agents, err := repo.ListActive(context.Background(), "t1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	if agents[0].ID != a1 || agents[1].ID != a2 {
		t.Fatal("agents returned out of order")
	}
	if !agents[0].HasSpecialty("vente") {
		t.Fatal("specialties not scanned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	mock.ExpectQuery(`SELECT .+ FROM agents WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeactivateUnknownAgent(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	mock.ExpectExec(`UPDATE agents SET active = FALSE`).
		WithArgs(id, "t1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Deactivate(context.Background(), "t1", id)
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAdvanceCursorLocksAndRotates(t *testing.T) {
	mock, repo := newMockRepo(t)

	candidates := makeAgents("Alice", "Bruno", "Chloé")
	cursor := candidates[0].ID

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT last_assigned_agent_id FROM distribution_configs WHERE tenant_id = \$1 FOR UPDATE`).
		WithArgs("t1").
		WillReturnRows(pgxmock.NewRows([]string{"last_assigned_agent_id"}).AddRow(&cursor))
	mock.ExpectExec(`UPDATE distribution_configs SET last_assigned_agent_id = \$1`).
		WithArgs(candidates[1].ID, "t1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	next, err := repo.AdvanceCursor(context.Background(), "t1", candidates)
	if err != nil {
		t.Fatalf("AdvanceCursor: %v", err)
	}
	if next.ID != candidates[1].ID {
		t.Fatalf("expected cursor to advance to %s, got %s", candidates[1].Name, next.Name)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAdvanceCursorMissingConfig(t *testing.T) {
	mock, repo := newMockRepo(t)

	candidates := makeAgents("Alice")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT last_assigned_agent_id FROM distribution_configs`).
		WithArgs("t1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.AdvanceCursor(context.Background(), "t1", candidates)
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetDistributionConfigNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`SELECT tenant_id, distribution_mode`).
		WithArgs("t1").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetDistributionConfig(context.Background(), "t1")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
