package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-scheduling-agent/cmd/mainconfig"
	"github.com/wolfman30/dental-scheduling-agent/internal/api/router"
	"github.com/wolfman30/dental-scheduling-agent/internal/app/bootstrap"
	"github.com/wolfman30/dental-scheduling-agent/internal/appointments"
	"github.com/wolfman30/dental-scheduling-agent/internal/availability"
	"github.com/wolfman30/dental-scheduling-agent/internal/bookings"
	appconfig "github.com/wolfman30/dental-scheduling-agent/internal/config"
	"github.com/wolfman30/dental-scheduling-agent/internal/conversation"
	httpmiddleware "github.com/wolfman30/dental-scheduling-agent/internal/http/middleware"
	"github.com/wolfman30/dental-scheduling-agent/internal/observability/metrics"
	"github.com/wolfman30/dental-scheduling-agent/internal/webchat"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental scheduling API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.ScheduleStore,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	loadAWS := mainconfig.LazyAWSConfig(cfg)

	store, closeStore, err := bootstrap.BuildScheduleStore(ctx, cfg, loadAWS, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, loadAWS, logger)
	if err != nil {
		return err
	}
	defer closeLLM()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	metricsHandler, schedulingMetrics := setupSchedulingMetrics()
	handler := buildHandler(ctx, cfg, deps{
		store:          store,
		llm:            llm,
		history:        bootstrap.BuildHistoryStore(redisClient, logger),
		locker:         bootstrap.BuildWriteLocker(redisClient, cfg, logger),
		notifier:       bootstrap.BuildNotifier(ctx, cfg, loadAWS, logger),
		archiver:       bootstrap.BuildArchiver(ctx, cfg, loadAWS, logger),
		metrics:        schedulingMetrics,
		healthChecks:   healthChecks(redisClient),
		metricsHandler: metricsHandler,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Turns wait on the LLM; leave room for LLM_TIMEOUT plus the booking write.
		WriteTimeout: cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type deps struct {
	store          appointments.Store
	llm            conversation.LLMClient
	history        conversation.HistoryStore
	locker         bookings.Locker
	notifier       bookings.Notifier
	archiver       conversation.Archiver
	metrics        *metrics.SchedulingMetrics
	healthChecks   map[string]router.HealthCheck
	metricsHandler http.Handler
}

func buildHandler(ctx context.Context, cfg *appconfig.Config, d deps, logger *logging.Logger) http.Handler {
	engine := availability.NewEngine(d.store, availability.Options{
		Open:  time.Duration(cfg.OpenHour) * time.Hour,
		Close: time.Duration(cfg.CloseHour) * time.Hour,
	}, logger).WithRecorder(d.metrics)

	bookingOpts := []bookings.Option{bookings.WithRecorder(d.metrics)}
	if d.locker != nil {
		bookingOpts = append(bookingOpts, bookings.WithLocker(d.locker))
	}
	if d.notifier != nil {
		bookingOpts = append(bookingOpts, bookings.WithNotifier(d.notifier))
	}
	booker := bookings.NewService(d.store, engine, logger, bookingOpts...)

	orchestrator := conversation.NewOrchestrator(conversation.OrchestratorConfig{
		LLM:     d.llm,
		History: d.history,
		Booker:  booker,
		Slots:   engine,
		Prompt: conversation.PromptConfig{
			ClinicName:    cfg.ClinicName,
			AssistantName: cfg.AssistantName,
			OpenHour:      cfg.OpenHour,
			CloseHour:     cfg.CloseHour,
		},
		LLMTimeout: cfg.LLMTimeout,
		Recorder:   d.metrics,
		Archiver:   d.archiver,
		Logger:     logger,
	})

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	return router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(orchestrator, logger),
		AvailabilityHandler: availability.NewHandler(engine, logger),
		AppointmentsHandler: appointments.NewHandler(d.store, logger),
		WebchatHandler:      webchat.NewHandler(orchestrator, nil, logger),
		MetricsHandler:      d.metricsHandler,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimiter:         limiter,
		HealthChecks:        d.healthChecks,
	})
}

func setupSchedulingMetrics() (http.Handler, *metrics.SchedulingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewSchedulingMetrics(reg)
}

func healthChecks(redisClient *redis.Client) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}
