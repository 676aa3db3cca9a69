package worker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
	"github.com/mediflow/scheduler-api/internal/model"
	"github.com/mediflow/scheduler-api/internal/repository/memory"
	"github.com/mediflow/scheduler-api/pkg/clock"
	"github.com/mediflow/scheduler-api/pkg/logger"
)

func TestCleanupRemovesOnlyExpiredSlots(t *testing.T) {
	repo := memory.NewSlotRepository()
	clk := &clock.Fixed{Time: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	doctorID := uuid.New()
	expired := &model.AvailabilitySlot{
		DoctorID:  doctorID,
		StartTime: clk.Time.AddDate(0, 0, -45),
		EndTime:   clk.Time.AddDate(0, 0, -45).Add(30 * time.Minute),
	}
	kept := &model.AvailabilitySlot{
		DoctorID:  doctorID,
		StartTime: clk.Time.AddDate(0, 0, -10),
		EndTime:   clk.Time.AddDate(0, 0, -10).Add(30 * time.Minute),
	}
	_, err := repo.CreateBatch(ctx, []*model.AvailabilitySlot{expired, kept})
	require.NoError(t, err)

	w := NewSlotCleanupWorker(repo, 30, time.Hour, clk, &logger.Logger{ZL: zerolog.Nop()})
	require.NoError(t, w.cleanup(ctx))

	_, err = repo.Get(ctx, expired.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = repo.Get(ctx, kept.ID)
	assert.NoError(t, err)
}
