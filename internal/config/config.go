package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// AI provider chain, tried in order. Empty or placeholder keys are skipped.
	OpenAIAPIKey        string
	OpenAIModel         string
	DeepSeekAPIKey      string
	DeepSeekBaseURL     string
	DeepSeekModel       string
	GeminiAPIKey        string
	GeminiModel         string
	BedrockModelID      string
	ProviderTimeout     time.Duration
	ProviderMaxTokens   int
	ProviderTemperature float64

	// Conversation context window
	HistoryMessageThreshold int
	HistoryKeepOpening      int
	HistoryKeepRecent       int
	HistoryTokenCap         int

	// Google Calendar service account
	CalendarServiceAccountEmail string
	CalendarPrivateKeyPath      string
	CalendarTokenEndpoint       string
	CalendarTokenCacheFile      string

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// AWS (SES fallback sender, Bedrock provider)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	SESFromEmail        string

	// Booking defaults
	BookingDurationDefault int
	BookingBufferMinutes   int
	BookingMaxDaysAdvance  int

	// HTTP surface
	AdminJWTSecret     string
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		DeepSeekAPIKey:      getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekBaseURL:     getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		DeepSeekModel:       getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		ProviderTimeout:     getEnvAsDuration("PROVIDER_TIMEOUT", 30*time.Second),
		ProviderMaxTokens:   getEnvAsInt("PROVIDER_MAX_TOKENS", 1024),
		ProviderTemperature: getEnvAsFloat("PROVIDER_TEMPERATURE", 0.7),

		HistoryMessageThreshold: getEnvAsInt("HISTORY_MESSAGE_THRESHOLD", 20),
		HistoryKeepOpening:      getEnvAsInt("HISTORY_KEEP_OPENING", 6),
		HistoryKeepRecent:       getEnvAsInt("HISTORY_KEEP_RECENT", 10),
		HistoryTokenCap:         getEnvAsInt("HISTORY_TOKEN_CAP", 3000),

		CalendarServiceAccountEmail: getEnv("CALENDAR_SERVICE_ACCOUNT_EMAIL", ""),
		CalendarPrivateKeyPath:      getEnv("CALENDAR_PRIVATE_KEY_PATH", ""),
		CalendarTokenEndpoint:       getEnv("CALENDAR_TOKEN_ENDPOINT", "https://oauth2.googleapis.com/token"),
		CalendarTokenCacheFile:      getEnv("CALENDAR_TOKEN_CACHE_FILE", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "ChatRDV"),

		AWSRegion:           getEnv("AWS_REGION", "eu-west-3"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),

		BookingDurationDefault: getEnvAsInt("BOOKING_DURATION_DEFAULT", 60),
		BookingBufferMinutes:   getEnvAsInt("BOOKING_BUFFER_MINUTES", 0),
		BookingMaxDaysAdvance:  getEnvAsInt("BOOKING_MAX_DAYS_ADVANCE", 60),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),
	}
}

// HasSMTPStyleSender reports whether any outbound email transport is configured.
func (c *Config) HasSMTPStyleSender() bool {
	return c.SendGridAPIKey != "" || c.SESFromEmail != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsSlice splits a comma separated environment variable into a slice.
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
