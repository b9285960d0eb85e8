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

	"github.com/fisioflow/scheduler-api/config"
	appointmentHandler "github.com/fisioflow/scheduler-api/internal/handler/appointment"
	calendarHandler "github.com/fisioflow/scheduler-api/internal/handler/calendar"
	healthHandler "github.com/fisioflow/scheduler-api/internal/handler/health"
	"github.com/fisioflow/scheduler-api/internal/middleware"
	"github.com/fisioflow/scheduler-api/internal/repository/postgres"
	"github.com/fisioflow/scheduler-api/internal/router"
	auditService "github.com/fisioflow/scheduler-api/internal/service/audit"
	calendarService "github.com/fisioflow/scheduler-api/internal/service/calendar"
	schedulingService "github.com/fisioflow/scheduler-api/internal/service/scheduling"
	"github.com/fisioflow/scheduler-api/pkg/auth"
	"github.com/fisioflow/scheduler-api/pkg/metrics"
	"github.com/fisioflow/scheduler-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := validator.RegisterCustom(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validations")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	appointmentRepo := postgres.NewAppointmentRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	m := metrics.New("scheduler_api")

	auditSvc := auditService.NewService(auditRepo)
	schedulingSvc := schedulingService.NewService(appointmentRepo, auditSvc, m)
	calendarSvc := calendarService.NewService(appointmentRepo, m)

	authMiddleware := middleware.NewAuthMiddleware(auth.NewVerifier(cfg.JWT.Secret))

	r := router.NewRouter(
		authMiddleware,
		healthHandler.NewHandler(db),
		appointmentHandler.NewHandler(schedulingSvc),
		calendarHandler.NewHandler(calendarSvc),
		router.Config{
			RateLimit:     rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:     cfg.RateLimit.Burst,
			CORSConfig:    middleware.DefaultCORSConfig(),
			MetricsPrefix: "scheduler_api",
			CacheTTL:      cfg.Cache.CalendarTTL,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
