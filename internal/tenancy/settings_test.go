package tenancy

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *SettingsStore {
	t.Helper()
	srv := miniredis.RunT(t)
	return NewSettingsStore(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
}

func TestGetReturnsDefaultsForUnknownTenant(t *testing.T) {
	store := newTestStore(t)

	settings, err := store.Get(context.Background(), "t-new")
	if err != nil {
		t.Fatal(err)
	}
	if settings.TenantID != "t-new" {
		t.Fatalf("unexpected tenant id %q", settings.TenantID)
	}
	if !settings.BookingEnabled {
		t.Fatal("booking should default to enabled")
	}
	if settings.WelcomeMessage == "" {
		t.Fatal("defaults must include a welcome message")
	}
}

func TestSetThenGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := &Settings{
		TenantID:          "t1",
		Name:              "Agence Lumière",
		SystemPrompt:      "Tu es l'assistant de l'agence Lumière.",
		BookingEnabled:    true,
		MultiAgentEnabled: true,
		CalendarID:        "agence@cal",
		NotificationEmail: "contact@lumiere.fr",
		Timezone:          "Europe/Paris",
	}
	if err := store.Set(ctx, in); err != nil {
		t.Fatal(err)
	}

	out, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if out.Name != in.Name || out.SystemPrompt != in.SystemPrompt || !out.MultiAgentEnabled {
		t.Fatalf("settings did not round-trip: %+v", out)
	}
}

func TestSetRejectsMissingTenantID(t *testing.T) {
	store := newTestStore(t)
	if err := store.Set(context.Background(), &Settings{}); err == nil {
		t.Fatal("expected error for settings without tenant id")
	}
}

func TestTenantContext(t *testing.T) {
	ctx := WithTenantID(context.Background(), "t1")
	id, ok := TenantIDFromContext(ctx)
	if !ok || id != "t1" {
		t.Fatalf("expected tenant id in context, got %q, %v", id, ok)
	}
	if _, ok := TenantIDFromContext(context.Background()); ok {
		t.Fatal("empty context must not carry a tenant id")
	}
}
