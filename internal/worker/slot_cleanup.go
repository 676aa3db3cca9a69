package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/mediflow/scheduler-api/internal/repository"
	"github.com/mediflow/scheduler-api/pkg/clock"
	"github.com/mediflow/scheduler-api/pkg/logger"
)

// SlotCleanupWorker is the retention sweep: it bulk-deletes availability
// slots that ended before the retention window.
type SlotCleanupWorker struct {
	repo            repository.SlotRepository
	retentionDays   int
	cleanupInterval time.Duration
	clock           clock.Clock
	logger          *logger.Logger
}

func NewSlotCleanupWorker(repo repository.SlotRepository, retentionDays int, cleanupInterval time.Duration, clk clock.Clock, logger *logger.Logger) *SlotCleanupWorker {
	return &SlotCleanupWorker{
		repo:            repo,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		clock:           clk,
		logger:          logger,
	}
}

func (w *SlotCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.cleanup(ctx); err != nil {
				w.logger.Error(err, "Failed to clean up old slots")
			}
		}
	}
}

func (w *SlotCleanupWorker) cleanup(ctx context.Context) error {
	cutoff := w.clock.Now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup slots: %w", err)
	}

	w.logger.Info("Cleaned up old slots", "removed", rows, "cutoff", cutoff.Format(time.RFC3339))
	return nil
}
