package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/mediflow/scheduler-api/internal/notification"
	"github.com/mediflow/scheduler-api/internal/repository"
	"github.com/mediflow/scheduler-api/pkg/clock"
	"github.com/mediflow/scheduler-api/pkg/logger"
	"github.com/mediflow/scheduler-api/pkg/metrics"
)

type ReminderDispatcherConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxRetries   int
	// SendRate caps transport calls per second across a cycle.
	SendRate rate.Limit
}

// ReminderDispatcher is the one long-lived background process: it polls due
// reminders, pushes them through the transport and records the outcome.
// Delivery failures never propagate; they are absorbed into retry_count and
// error_message on the reminder row.
type ReminderDispatcher struct {
	repo      repository.ReminderRepository
	transport notification.Transport
	config    ReminderDispatcherConfig
	clock     clock.Clock
	logger    *logger.Logger
	metrics   *metrics.Metrics
	limiter   *rate.Limiter
}

func NewReminderDispatcher(
	repo repository.ReminderRepository,
	transport notification.Transport,
	config ReminderDispatcherConfig,
	clk clock.Clock,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *ReminderDispatcher {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		panic("MaxRetries must be greater than 0")
	}
	if config.SendRate <= 0 {
		config.SendRate = rate.Inf
	}

	return &ReminderDispatcher{
		repo:      repo,
		transport: transport,
		config:    config,
		clock:     clk,
		logger:    logger,
		metrics:   metrics,
		limiter:   rate.NewLimiter(config.SendRate, 1),
	}
}

func (d *ReminderDispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.logger.Info("Starting reminder dispatcher")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Shutting down reminder dispatcher")
			return
		case <-ticker.C:
			if err := d.DispatchDue(ctx); err != nil {
				d.logger.Error(err, "Failed to dispatch reminders")
			}
		}
	}
}

// DispatchDue runs one dispatch cycle.
func (d *ReminderDispatcher) DispatchDue(ctx context.Context) error {
	timer := prometheus.NewTimer(d.metrics.DispatchLatency)
	defer timer.ObserveDuration()

	due, err := d.repo.GetDue(ctx, d.clock.Now(), d.config.BatchSize, d.config.MaxRetries)
	if err != nil {
		d.metrics.DatabaseOperations.WithLabelValues("get_due_reminders", "error").Inc()
		return fmt.Errorf("failed to get due reminders: %w", err)
	}
	d.metrics.DatabaseOperations.WithLabelValues("get_due_reminders", "success").Inc()
	d.metrics.DueBacklog.Set(float64(len(due)))

	for _, reminder := range due {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := d.transport.Send(ctx, reminder.PatientID, reminder.Title, reminder.Body); err != nil {
			d.metrics.RemindersFailed.Inc()
			d.metrics.DispatchRetries.WithLabelValues(string(reminder.ReminderType)).Inc()

			if _, updateErr := d.repo.MarkFailure(ctx, reminder.ID, err.Error(), d.config.MaxRetries); updateErr != nil {
				d.logger.Error(updateErr, "Failed to record reminder failure",
					"reminder_id", reminder.ID.String())
			}
			d.logger.Warn("Reminder send failed",
				"reminder_id", reminder.ID.String(),
				"retry_count", reminder.RetryCount+1,
				"error", err.Error())
			continue
		}

		rows, err := d.repo.MarkSent(ctx, reminder.ID, d.clock.Now())
		if err != nil {
			d.logger.Error(err, "Failed to mark reminder sent",
				"reminder_id", reminder.ID.String())
			continue
		}
		if rows == 0 {
			// The appointment was cancelled while we were sending; the
			// cancelled status stands.
			d.logger.Debug("Reminder cancelled mid-dispatch",
				"reminder_id", reminder.ID.String())
			continue
		}

		d.metrics.RemindersDispatched.Inc()
	}

	return nil
}
