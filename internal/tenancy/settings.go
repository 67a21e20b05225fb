// Package tenancy carries tenant identity and per-tenant chatbot settings.
package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Settings is the per-tenant chatbot and booking configuration.
type Settings struct {
	TenantID          string `json:"tenant_id"`
	Name              string `json:"name,omitempty"`
	SystemPrompt      string `json:"system_prompt,omitempty"`
	WelcomeMessage    string `json:"welcome_message,omitempty"`
	BookingEnabled    bool   `json:"booking_enabled"`
	MultiAgentEnabled bool   `json:"multi_agent_enabled"`
	CalendarID        string `json:"calendar_id,omitempty"`
	NotificationEmail string `json:"notification_email,omitempty"`
	Timezone          string `json:"timezone,omitempty"`
}

// DefaultSettings returns the configuration a brand-new tenant starts with.
func DefaultSettings(tenantID string) *Settings {
	return &Settings{
		TenantID:       tenantID,
		WelcomeMessage: "Bonjour ! Comment puis-je vous aider aujourd'hui ?",
		BookingEnabled: true,
		Timezone:       "Europe/Paris",
	}
}

// SettingsStore persists tenant settings in Redis as one JSON blob per
// tenant. A missing key yields the defaults, never an error.
type SettingsStore struct {
	redis *redis.Client
}

func NewSettingsStore(redisClient *redis.Client) *SettingsStore {
	if redisClient == nil {
		panic("tenancy: redis client required")
	}
	return &SettingsStore{redis: redisClient}
}

func (s *SettingsStore) key(tenantID string) string {
	return fmt.Sprintf("tenant:settings:%s", tenantID)
}

// Get retrieves tenant settings, returning defaults if not found.
func (s *SettingsStore) Get(ctx context.Context, tenantID string) (*Settings, error) {
	data, err := s.redis.Get(ctx, s.key(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultSettings(tenantID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("tenancy: get settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("tenancy: unmarshal settings: %w", err)
	}
	return &settings, nil
}

// Set saves tenant settings.
func (s *SettingsStore) Set(ctx context.Context, settings *Settings) error {
	if settings.TenantID == "" {
		return fmt.Errorf("tenancy: settings missing tenant id")
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("tenancy: marshal settings: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(settings.TenantID), data, 0).Err(); err != nil {
		return fmt.Errorf("tenancy: set settings: %w", err)
	}
	return nil
}
