package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/clinicflow/encounter-api/internal/config"
	"github.com/clinicflow/encounter-api/internal/handler"
	alertHandler "github.com/clinicflow/encounter-api/internal/handler/alert"
	encounterHandler "github.com/clinicflow/encounter-api/internal/handler/encounter"
	healthHandler "github.com/clinicflow/encounter-api/internal/handler/health"
	notesHandler "github.com/clinicflow/encounter-api/internal/handler/notes"
	resourceHandler "github.com/clinicflow/encounter-api/internal/handler/resource"
	"github.com/clinicflow/encounter-api/internal/middleware"
	"github.com/clinicflow/encounter-api/internal/repository/postgres"
	"github.com/clinicflow/encounter-api/internal/router"
	alertService "github.com/clinicflow/encounter-api/internal/service/alert"
	allocatorService "github.com/clinicflow/encounter-api/internal/service/allocator"
	encounterService "github.com/clinicflow/encounter-api/internal/service/encounter"
	eventService "github.com/clinicflow/encounter-api/internal/service/event"
	notesService "github.com/clinicflow/encounter-api/internal/service/notes"
	routingService "github.com/clinicflow/encounter-api/internal/service/routing"
	"github.com/clinicflow/encounter-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Initialize repositories
	encounterRepo := postgres.NewEncounterRepository(db)
	resourceRepo := postgres.NewResourceRepository(db)
	sectionRepo := postgres.NewSectionRepository(db)
	alertRepo := postgres.NewAlertRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.New("encounter_api")

	// Initialize services
	eventSvc := eventService.NewService(outboxRepo)
	allocatorSvc := allocatorService.NewService(encounterRepo, resourceRepo, m)
	encounterSvc := encounterService.NewService(encounterRepo, allocatorSvc, eventSvc, m)
	routingSvc := routingService.NewService(encounterRepo, eventSvc, m)
	coordinator := notesService.NewCoordinator(sectionRepo, m)
	debouncer := notesService.NewDebouncer(coordinator, cfg.AutoSave.QuiescenceWindow, m)
	alertSvc := alertService.NewService(alertRepo, eventSvc, m)

	// Initialize handlers
	h := handler.NewHandler()
	encounterH := encounterHandler.NewHandler(encounterSvc, allocatorSvc, routingSvc)
	notesH := notesHandler.NewHandler(coordinator, debouncer)
	alertH := alertHandler.NewHandler(alertSvc, cfg.Alerts.PollIntervalHint)
	resourceH := resourceHandler.NewHandler(allocatorSvc)
	healthH := healthHandler.NewHandler(db)

	// Setup router
	r := router.NewRouter(
		encounterH,
		notesH,
		alertH,
		resourceH,
		healthH,
		h,
		router.Config{
			RateLimit:     rate.Limit(100),
			RateBurst:     200,
			CORSConfig:    middleware.DefaultCORSConfig(),
			Timeout:       time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			MetricsPrefix: "encounter_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Persist any pending drafts before the process exits.
	debouncer.Stop(ctx)

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
