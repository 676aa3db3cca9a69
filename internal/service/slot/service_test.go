package slot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediflow/scheduler-api/internal/config"
	"github.com/mediflow/scheduler-api/internal/model"
	"github.com/mediflow/scheduler-api/internal/repository/memory"
	"github.com/mediflow/scheduler-api/pkg/clock"
	apperrors "github.com/mediflow/scheduler-api/pkg/errors"
)

func newTestService(t *testing.T) (*Service, *memory.SlotRepository, *clock.Fixed, uuid.UUID) {
	t.Helper()

	slotRepo := memory.NewSlotRepository()
	doctorRepo := memory.NewDoctorRepository()

	doctor := &model.Doctor{
		FirstName: "Alice",
		LastName:  "Nguyen",
		Email:     "alice.nguyen@example.com",
		Specialty: "general",
	}
	require.NoError(t, doctorRepo.Create(context.Background(), doctor))

	clk := &clock.Fixed{Time: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	svc := NewService(slotRepo, doctorRepo, clk, config.AvailabilityConfig{
		DayStartHour:        9,
		DayEndHour:          17,
		SlotDurationMinutes: 30,
	})
	return svc, slotRepo, clk, doctor.ID
}

func TestGenerateSlots(t *testing.T) {
	svc, _, _, doctorID := newTestService(t)
	ctx := context.Background()

	created, err := svc.GenerateSlots(ctx, doctorID, 1)
	require.NoError(t, err)
	// 9:00-17:00 in 30 minute steps.
	assert.Equal(t, int64(16), created)

	slots, err := svc.FindAvailable(ctx, &model.SlotFilters{DoctorID: doctorID})
	require.NoError(t, err)
	require.Len(t, slots, 16)
	assert.Equal(t, 9, slots[0].StartTime.Hour())
	assert.Equal(t, 30*time.Minute, slots[0].EndTime.Sub(slots[0].StartTime))
}

func TestGenerateSlotsIdempotent(t *testing.T) {
	svc, _, _, doctorID := newTestService(t)
	ctx := context.Background()

	first, err := svc.GenerateSlots(ctx, doctorID, 2)
	require.NoError(t, err)
	require.NotZero(t, first)

	again, err := svc.GenerateSlots(ctx, doctorID, 2)
	require.NoError(t, err)
	assert.Zero(t, again)

	slots, err := svc.FindAvailable(ctx, &model.SlotFilters{DoctorID: doctorID})
	require.NoError(t, err)
	assert.Len(t, slots, int(first))
}

func TestGenerateSlotsSkipsPastTimes(t *testing.T) {
	svc, _, clk, doctorID := newTestService(t)
	ctx := context.Background()

	// Midday: the morning half of today is already gone.
	clk.Time = time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)

	created, err := svc.GenerateSlots(ctx, doctorID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), created)

	slots, err := svc.FindAvailable(ctx, &model.SlotFilters{DoctorID: doctorID})
	require.NoError(t, err)
	for _, s := range slots {
		assert.True(t, s.StartTime.After(clk.Time))
	}
}

func TestGenerateSlotsUnknownDoctor(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.GenerateSlots(context.Background(), uuid.New(), 1)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestBookSlot(t *testing.T) {
	svc, _, _, doctorID := newTestService(t)
	ctx := context.Background()

	_, err := svc.GenerateSlots(ctx, doctorID, 1)
	require.NoError(t, err)

	slots, err := svc.FindAvailable(ctx, nil)
	require.NoError(t, err)
	target := slots[0]

	booked, err := svc.BookSlot(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, booked.IsBooked)

	_, err = svc.BookSlot(ctx, target.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrAlreadyBooked))

	_, err = svc.BookSlot(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestBookSlotConcurrent(t *testing.T) {
	svc, _, _, doctorID := newTestService(t)
	ctx := context.Background()

	_, err := svc.GenerateSlots(ctx, doctorID, 1)
	require.NoError(t, err)

	slots, err := svc.FindAvailable(ctx, nil)
	require.NoError(t, err)
	target := slots[0]

	const callers = 20

	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.BookSlot(ctx, target.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, apperrors.IsCode(err, apperrors.ErrAlreadyBooked))
		rejected++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, rejected)
}

func TestReleaseSlot(t *testing.T) {
	svc, _, _, doctorID := newTestService(t)
	ctx := context.Background()

	_, err := svc.GenerateSlots(ctx, doctorID, 1)
	require.NoError(t, err)

	slots, err := svc.FindAvailable(ctx, nil)
	require.NoError(t, err)
	target := slots[0]

	// Releasing a free slot is a conflict.
	_, err = svc.ReleaseSlot(ctx, target.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotBooked))

	_, err = svc.BookSlot(ctx, target.ID)
	require.NoError(t, err)

	released, err := svc.ReleaseSlot(ctx, target.ID)
	require.NoError(t, err)
	assert.False(t, released.IsBooked)
}

func TestFindAvailableDefaultsToFuture(t *testing.T) {
	svc, repo, clk, doctorID := newTestService(t)
	ctx := context.Background()

	now := clk.Time
	past := &model.AvailabilitySlot{
		DoctorID:  doctorID,
		StartTime: now.Add(-2 * time.Hour),
		EndTime:   now.Add(-90 * time.Minute),
	}
	future := &model.AvailabilitySlot{
		DoctorID:  doctorID,
		StartTime: now.Add(2 * time.Hour),
		EndTime:   now.Add(150 * time.Minute),
	}
	_, err := repo.CreateBatch(ctx, []*model.AvailabilitySlot{past, future})
	require.NoError(t, err)

	slots, err := svc.FindAvailable(ctx, nil)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, future.ID, slots[0].ID)
}

func TestClearOldSlots(t *testing.T) {
	svc, repo, clk, doctorID := newTestService(t)
	ctx := context.Background()

	now := clk.Time
	old := &model.AvailabilitySlot{
		DoctorID:  doctorID,
		StartTime: now.AddDate(0, 0, -40),
		EndTime:   now.AddDate(0, 0, -40).Add(30 * time.Minute),
	}
	recent := &model.AvailabilitySlot{
		DoctorID:  doctorID,
		StartTime: now.Add(time.Hour),
		EndTime:   now.Add(90 * time.Minute),
	}
	_, err := repo.CreateBatch(ctx, []*model.AvailabilitySlot{old, recent})
	require.NoError(t, err)

	removed, err := svc.ClearOldSlots(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.Get(ctx, recent.ID)
	require.NoError(t, err)
}
