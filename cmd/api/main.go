package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chatrdv/platform/cmd/mainconfig"
	"github.com/chatrdv/platform/internal/agents"
	"github.com/chatrdv/platform/internal/api/router"
	"github.com/chatrdv/platform/internal/app/bootstrap"
	"github.com/chatrdv/platform/internal/booking"
	appconfig "github.com/chatrdv/platform/internal/config"
	"github.com/chatrdv/platform/internal/conversation"
	"github.com/chatrdv/platform/internal/http/handlers"
	"github.com/chatrdv/platform/internal/notify"
	"github.com/chatrdv/platform/internal/observability/metrics"
	"github.com/chatrdv/platform/internal/tenancy"
	"github.com/chatrdv/platform/pkg/logging"
)

func main() {
	// Local development convenience; the file is absent in deployed envs.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chatrdv API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, false)
	if redisClient == nil {
		logger.Error("REDIS_ADDR is required")
		os.Exit(1)
	}
	defer redisClient.Close()

	location, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		logger.Warn("failed to load timezone, using UTC", "error", err)
		location = time.UTC
	}

	// Metrics
	chatMetrics := metrics.NewChatMetrics(nil)
	bookingMetrics := metrics.NewBookingMetrics(nil)

	// Shared AWS SDK config (Bedrock provider, SES sender)
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// AI fallback chain
	chain, err := bootstrap.BuildProviderChain(ctx, cfg, awsCfg, chatMetrics, logger)
	if err != nil {
		logger.Error("failed to build provider chain", "error", err)
		os.Exit(1)
	}

	// Stores and repositories
	turnStore := conversation.NewTurnStore(pool)
	contextBuilder := conversation.NewContextBuilder(
		cfg.HistoryMessageThreshold,
		cfg.HistoryKeepOpening,
		cfg.HistoryKeepRecent,
		cfg.HistoryTokenCap,
	)
	settingsStore := tenancy.NewSettingsStore(redisClient)
	agentRepo := agents.NewRepository(pool)
	ledger := booking.NewLedger(pool)

	// Google Calendar integration (optional)
	calendarClient, err := bootstrap.BuildCalendarClient(cfg, redisClient, logger)
	if err != nil {
		logger.Error("failed to build calendar client", "error", err)
		os.Exit(1)
	}
	if calendarClient.IsConfigured() {
		logger.Info("calendar sync enabled", "service_account", cfg.CalendarServiceAccountEmail)
	}

	// Agent distribution
	oracle := agents.NewOracle(agentRepo, calendarClient, location, logger)
	distributor := agents.NewDistributor(agentRepo, oracle, logger)

	// Email notifications
	sender := bootstrap.BuildEmailSender(awsCfg, cfg, logger)
	dispatcher := notify.NewDispatcher(sender, logger)

	// Booking pipeline
	orchestrator := booking.NewOrchestrator(booking.OrchestratorConfig{
		Chain:           chain,
		Turns:           turnStore,
		Builder:         contextBuilder,
		Settings:        settingsStore,
		Selector:        distributor,
		Roster:          agentRepo,
		Ledger:          ledger,
		Calendar:        calendarClient,
		Notifier:        dispatcher,
		Metrics:         bookingMetrics,
		ChatMetrics:     chatMetrics,
		Logger:          logger,
		Location:        location,
		DefaultDuration: cfg.BookingDurationDefault,
		MaxTokens:       int32(cfg.ProviderMaxTokens),
		Temperature:     float32(cfg.ProviderTemperature),
	})

	// Initialize handlers
	chatHandler := handlers.NewChatHandler(orchestrator, turnStore, settingsStore, logger)
	adminHandler := handlers.NewAdminHandler(ledger, agentRepo, settingsStore, logger)

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		ChatHandler:        chatHandler,
		AdminHandler:       adminHandler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
