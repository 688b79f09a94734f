package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clinicflow/encounter-api/internal/config"
	"github.com/clinicflow/encounter-api/internal/email"
	"github.com/clinicflow/encounter-api/internal/repository/postgres"
	alertService "github.com/clinicflow/encounter-api/internal/service/alert"
	eventService "github.com/clinicflow/encounter-api/internal/service/event"
	escalation "github.com/clinicflow/encounter-api/internal/worker"
	"github.com/clinicflow/encounter-api/pkg/logger"
	"github.com/clinicflow/encounter-api/pkg/messaging/redis"
	"github.com/clinicflow/encounter-api/pkg/metrics"
	"github.com/clinicflow/encounter-api/pkg/worker"
)

func setupHealthCheck(logger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			logger.ZL.Error().Err(err).Msg("health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	lg := &logger.Logger{ZL: log.Logger}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		lg.ZL.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		lg.ZL.Fatal().Err(err).Msg("failed to create Redis broker")
	}
	defer broker.Close()

	m := metrics.New("encounter_worker")

	outboxRepo := postgres.NewOutboxRepository(db)
	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
			Channel:       cfg.Outbox.Channel,
		},
		lg,
		m,
	)

	alertRepo := postgres.NewAlertRepository(db)
	eventSvc := eventService.NewService(outboxRepo)
	alertSvc := alertService.NewService(alertRepo, eventSvc, m)
	emailSvc := email.NewService(cfg.Email)
	escalator := escalation.NewEscalationWorker(
		alertSvc,
		emailSvc,
		cfg.Email.EscalationTo,
		cfg.Alerts.EscalateAfter,
		cfg.Alerts.EscalateInterval,
	)

	setupHealthCheck(lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		lg.ZL.Info().Msg("shutting down...")
		cancel()
	}()

	go escalator.Start(ctx)
	processor.Start(ctx)
}
