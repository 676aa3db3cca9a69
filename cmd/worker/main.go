package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mediflow/scheduler-api/internal/config"
	"github.com/mediflow/scheduler-api/internal/notification"
	"github.com/mediflow/scheduler-api/internal/repository/postgres"
	internalworker "github.com/mediflow/scheduler-api/internal/worker"
	"github.com/mediflow/scheduler-api/pkg/clock"
	"github.com/mediflow/scheduler-api/pkg/logger"
	"github.com/mediflow/scheduler-api/pkg/metrics"
	"github.com/mediflow/scheduler-api/pkg/worker"
)

func setupHealthCheck(logger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			logger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("Failed to load config")
	}

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger := &logger.Logger{ZL: log.Logger}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		logger.ZL.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	baseRepo := postgres.NewBaseRepository(db)
	reminderRepo := postgres.NewReminderRepository(baseRepo)
	slotRepo := postgres.NewSlotRepository(db)
	patientRepo := postgres.NewPatientRepository(db)

	transport := notification.NewEmailTransport(cfg.SMTP, patientRepo)

	clk := clock.New()

	dispatcher := worker.NewReminderDispatcher(
		reminderRepo,
		transport,
		worker.ReminderDispatcherConfig{
			BatchSize:    cfg.Worker.BatchSize,
			PollInterval: cfg.Worker.PollInterval(),
			MaxRetries:   cfg.Worker.MaxRetries,
			SendRate:     rate.Limit(cfg.Worker.SendRatePerSecond),
		},
		clk,
		logger,
		metrics.NewMetrics("scheduler", "reminder_dispatcher"),
	)

	cleanup := internalworker.NewSlotCleanupWorker(
		slotRepo,
		cfg.Worker.SlotRetentionDays,
		cfg.Worker.CleanupInterval(),
		clk,
		logger,
	)

	setupHealthCheck(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.ZL.Info().Msg("Shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	wg.Wait()
}
