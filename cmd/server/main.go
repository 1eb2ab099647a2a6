// Package main is the entry point for the groverq training service.
// It trains Grover-amplified Q-learning agents on tabular environments,
// stores every run in SQLite and serves results over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/groverq/internal/config"
	"github.com/aristath/groverq/internal/database"
	"github.com/aristath/groverq/internal/events"
	"github.com/aristath/groverq/internal/metrics"
	"github.com/aristath/groverq/internal/reliability"
	"github.com/aristath/groverq/internal/runs"
	"github.com/aristath/groverq/internal/scheduler"
	"github.com/aristath/groverq/internal/server"
	"github.com/aristath/groverq/pkg/logger"
)

// main wires the service in dependency order:
// 1. Loads configuration from environment variables (.env supported)
// 2. Initializes logging
// 3. Opens and migrates the runs database
// 4. Creates the event bus and metrics collector
// 5. Starts the runs service (optionally archiving finished runs to R2/S3)
// 6. Registers scheduled jobs and starts the scheduler
// 7. Starts the HTTP server
// 8. Waits for a shutdown signal and stops everything in reverse order
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting groverq")

	// Runs database
	// Run records and their episodes must survive crashes, so the durable profile is used.
	runsDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileDurable,
		Name:    "runs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open runs database")
	}
	defer runsDB.Close()

	if err := runsDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate runs database")
	}

	eventManager := events.NewManager(events.NewBus(), log)
	collector := metrics.NewCollector("groverq", log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Archiving is optional. Without it finished runs only live in runs.db.
	var archiver *reliability.RunArchiver
	if cfg.Archive.Enabled {
		client, err := reliability.NewR2Client(ctx, reliability.R2Config{
			Endpoint:  cfg.Archive.Endpoint,
			Bucket:    cfg.Archive.Bucket,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Region:    cfg.Archive.Region,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create archive client")
		}
		archiver = reliability.NewRunArchiver(client, log)
		log.Info().Str("bucket", client.Bucket()).Msg("Run archiving enabled")
	}

	opts := []runs.Option{runs.WithMetrics(collector)}
	if archiver != nil {
		opts = append(opts, runs.WithArchiver(archiver))
	}
	service := runs.NewService(
		runs.NewRepository(runsDB.Conn(), log),
		eventManager,
		runs.ServiceConfig{
			Retries:      cfg.Backend.Retries,
			RetryBackoff: cfg.Backend.RetryBackoff,
		},
		log,
		opts...,
	)
	if err := service.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start runs service")
	}

	defaults := runs.Request{
		Hyperparameters: cfg.Hyperparameters(),
		Environment:     cfg.EnvironmentSpec(),
		Seed:            cfg.Backend.Seed,
		Trigger:         runs.TriggerAPI,
	}

	sched := scheduler.New(log)
	registerJobs(sched, cfg, service, defaults, runsDB, archiver, log)
	sched.Start()

	if cfg.Training.OnStart {
		startup := scheduler.NewTrainingJob(service, defaults, runs.TriggerStartup, log)
		if err := sched.RunNow(startup); err != nil {
			log.Error().Err(err).Msg("Failed to submit startup run")
		}
	}

	srv := server.New(server.Config{
		Log:      log,
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
		Runs:     service,
		RunsDB:   runsDB,
		Events:   eventManager,
		Metrics:  collector,
		Archiver: archiver,
		Defaults: defaults,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the scheduler before the service so no run is submitted to a stopped queue.
	sched.Stop()
	log.Info().Msg("Scheduler stopped")

	// The running run is cancelled and recorded as failed.
	cancel()
	service.Stop()
	log.Info().Msg("Runs service stopped")

	log.Info().Msg("Server stopped")
}

// registerJobs adds the recurring jobs. Bad cron expressions are logged and
// the job is skipped so the API still comes up.
func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	service *runs.Service,
	defaults runs.Request,
	runsDB *database.DB,
	archiver *reliability.RunArchiver,
	log zerolog.Logger,
) {
	add := func(schedule string, job scheduler.Job) {
		if err := sched.AddJob(schedule, job); err != nil {
			log.Error().Err(err).Str("job", job.Name()).Str("schedule", schedule).Msg("Failed to register job")
		}
	}

	if cfg.Training.Schedule != "" {
		add(cfg.Training.Schedule, scheduler.NewTrainingJob(service, defaults, runs.TriggerSchedule, log))
	}

	add(cfg.Training.MaintenanceSchedule, scheduler.NewDatabaseMaintenanceJob(map[string]*database.DB{
		"runs": runsDB,
	}, log))

	if archiver != nil && cfg.Archive.RetentionDays > 0 {
		add(cfg.Archive.RotationSchedule, reliability.NewArchiveRotationJob(archiver, cfg.Archive.RetentionDays, cfg.Archive.Keep, log))
	}
}
