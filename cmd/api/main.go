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

	"github.com/mediflow/scheduler-api/internal/config"
	"github.com/mediflow/scheduler-api/internal/handler"
	appointmentHandler "github.com/mediflow/scheduler-api/internal/handler/appointment"
	doctorHandler "github.com/mediflow/scheduler-api/internal/handler/doctor"
	medicationHandler "github.com/mediflow/scheduler-api/internal/handler/medication"
	patientHandler "github.com/mediflow/scheduler-api/internal/handler/patient"
	prescriptionHandler "github.com/mediflow/scheduler-api/internal/handler/prescription"
	reminderHandler "github.com/mediflow/scheduler-api/internal/handler/reminder"
	slotHandler "github.com/mediflow/scheduler-api/internal/handler/slot"
	"github.com/mediflow/scheduler-api/internal/middleware"
	"github.com/mediflow/scheduler-api/internal/repository/postgres"
	"github.com/mediflow/scheduler-api/internal/router"
	appointmentService "github.com/mediflow/scheduler-api/internal/service/appointment"
	doctorService "github.com/mediflow/scheduler-api/internal/service/doctor"
	medicationService "github.com/mediflow/scheduler-api/internal/service/medication"
	patientService "github.com/mediflow/scheduler-api/internal/service/patient"
	prescriptionService "github.com/mediflow/scheduler-api/internal/service/prescription"
	reminderService "github.com/mediflow/scheduler-api/internal/service/reminder"
	slotService "github.com/mediflow/scheduler-api/internal/service/slot"
	"github.com/mediflow/scheduler-api/pkg/clock"
	redisbroker "github.com/mediflow/scheduler-api/pkg/messaging/redis"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	clk := clock.New()

	// Repositories
	base := postgres.NewBaseRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	slotRepo := postgres.NewSlotRepository(db)
	reminderRepo := postgres.NewReminderRepository(base)
	patientRepo := postgres.NewPatientRepository(db)
	doctorRepo := postgres.NewDoctorRepository(db)
	prescriptionRepo := postgres.NewPrescriptionRepository(db)
	medicationRepo := postgres.NewMedicationRepository(db)

	// Message broker for appointment lifecycle events
	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	// Services
	reminderSvc := reminderService.NewService(reminderRepo, clk)
	slotSvc := slotService.NewService(slotRepo, doctorRepo, clk, cfg.Availability)
	appointmentSvc := appointmentService.NewService(appointmentRepo, slotRepo, reminderSvc, broker, clk)
	patientSvc := patientService.NewService(patientRepo)
	doctorSvc := doctorService.NewService(doctorRepo)
	prescriptionSvc := prescriptionService.NewService(prescriptionRepo, medicationRepo)
	medicationSvc := medicationService.NewService(medicationRepo)

	// Router
	r := router.NewRouter(
		router.Config{CORS: middleware.DefaultCORSConfig()},
		&log.Logger,
		handler.NewHealthHandler(db),
		appointmentHandler.NewHandler(appointmentSvc),
		slotHandler.NewHandler(slotSvc),
		reminderHandler.NewHandler(reminderSvc),
		patientHandler.NewHandler(patientSvc),
		doctorHandler.NewHandler(doctorSvc),
		prescriptionHandler.NewHandler(prescriptionSvc),
		medicationHandler.NewHandler(medicationSvc),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
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
