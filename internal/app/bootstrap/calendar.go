package bootstrap

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/chatrdv/platform/internal/calendar"
	appconfig "github.com/chatrdv/platform/internal/config"
	"github.com/chatrdv/platform/pkg/logging"
)

// BuildCalendarClient wires the Google Calendar client when a service
// account is configured, or returns nil so booking proceeds without
// external sync. Token cache backends are tried in order: Redis, file,
// in-process memory.
func BuildCalendarClient(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (*calendar.Client, error) {
	if cfg == nil || cfg.CalendarServiceAccountEmail == "" || cfg.CalendarPrivateKeyPath == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	var cache calendar.TokenCache
	switch {
	case redisClient != nil:
		cache = calendar.NewRedisTokenCache(redisClient)
	case cfg.CalendarTokenCacheFile != "":
		cache = calendar.NewFileTokenCache(cfg.CalendarTokenCacheFile)
	default:
		cache = calendar.NewMemoryTokenCache()
	}

	tokens, err := calendar.NewTokenSource(cfg.CalendarServiceAccountEmail, cfg.CalendarPrivateKeyPath, cfg.CalendarTokenEndpoint, cache)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: calendar token source: %w", err)
	}
	return calendar.NewClient(tokens, logger), nil
}
