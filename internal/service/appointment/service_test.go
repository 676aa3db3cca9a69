package appointment

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediflow/scheduler-api/internal/model"
	"github.com/mediflow/scheduler-api/internal/repository/memory"
	"github.com/mediflow/scheduler-api/internal/service/reminder"
	"github.com/mediflow/scheduler-api/pkg/clock"
	apperrors "github.com/mediflow/scheduler-api/pkg/errors"
)

type fixture struct {
	svc          *Service
	repo         *memory.AppointmentRepository
	slotRepo     *memory.SlotRepository
	reminderRepo *memory.ReminderRepository
	clock        *clock.Fixed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := memory.NewAppointmentRepository()
	slotRepo := memory.NewSlotRepository()
	reminderRepo := memory.NewReminderRepository()
	clk := &clock.Fixed{Time: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}

	reminderSvc := reminder.NewService(reminderRepo, clk)
	return &fixture{
		svc:          NewService(repo, slotRepo, reminderSvc, nil, clk),
		repo:         repo,
		slotRepo:     slotRepo,
		reminderRepo: reminderRepo,
		clock:        clk,
	}
}

func (f *fixture) newAppointment(offset time.Duration) *model.Appointment {
	return &model.Appointment{
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		ScheduledAt:     f.clock.Time.Add(offset),
		DurationMinutes: 30,
		Type:            model.AppointmentTypeRegular,
		Reason:          "checkup",
	}
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt := f.newAppointment(48 * time.Hour)
	require.NoError(t, f.svc.CreateAppointment(ctx, apt))
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.NotEqual(t, uuid.Nil, apt.ID)

	reminders, err := f.reminderRepo.ListForAppointment(ctx, apt.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 2)
	assert.Equal(t, model.ReminderType24HourBefore, reminders[0].ReminderType)
	assert.Equal(t, apt.ScheduledAt.Add(-24*time.Hour), reminders[0].ScheduledFor)
	assert.Equal(t, model.ReminderType1HourBefore, reminders[1].ReminderType)
	assert.Equal(t, apt.ScheduledAt.Add(-time.Hour), reminders[1].ScheduledFor)
}

func TestCreateAppointmentPastTime(t *testing.T) {
	f := newFixture(t)

	apt := f.newAppointment(-time.Hour)
	err := f.svc.CreateAppointment(context.Background(), apt)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPastDateTime))
}

func TestCreateAppointmentInvalidDuration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt := f.newAppointment(48 * time.Hour)
	apt.DurationMinutes = 10
	err := f.svc.CreateAppointment(ctx, apt)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))

	apt = f.newAppointment(48 * time.Hour)
	apt.DurationMinutes = 300
	err = f.svc.CreateAppointment(ctx, apt)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))
}

func TestCreateAppointmentConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.newAppointment(48 * time.Hour)
	require.NoError(t, f.svc.CreateAppointment(ctx, first))

	// Overlapping range for the same doctor.
	second := f.newAppointment(48*time.Hour + 15*time.Minute)
	second.DoctorID = first.DoctorID
	err := f.svc.CreateAppointment(ctx, second)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrSchedulingConflict))

	// Back-to-back is fine: ranges are half-open.
	third := f.newAppointment(48*time.Hour + 30*time.Minute)
	third.DoctorID = first.DoctorID
	require.NoError(t, f.svc.CreateAppointment(ctx, third))

	// Same range, different doctor is fine too.
	fourth := f.newAppointment(48 * time.Hour)
	require.NoError(t, f.svc.CreateAppointment(ctx, fourth))
}

func TestConfirmAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt := f.newAppointment(48 * time.Hour)
	require.NoError(t, f.svc.CreateAppointment(ctx, apt))
	require.NoError(t, f.svc.ConfirmAppointment(ctx, apt.ID))

	got, err := f.svc.GetAppointment(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, got.Status)

	// Confirming again is an invalid transition.
	err = f.svc.ConfirmAppointment(ctx, apt.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))

	// Confirmation queues an immediate status-change notification.
	reminders, err := f.reminderRepo.ListForAppointment(ctx, apt.ID)
	require.NoError(t, err)
	assert.Len(t, reminders, 3)
}

func TestConfirmAppointmentNotFound(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ConfirmAppointment(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestRescheduleAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt := f.newAppointment(48 * time.Hour)
	require.NoError(t, f.svc.CreateAppointment(ctx, apt))

	newTime := f.clock.Time.Add(96 * time.Hour)
	updated, err := f.svc.RescheduleAppointment(ctx, apt.ID, newTime, 0)
	require.NoError(t, err)
	assert.Equal(t, newTime, updated.ScheduledAt)
	assert.Equal(t, apt.DurationMinutes, updated.DurationMinutes)

	// Reminders follow the new time in place: still two rows, new due times.
	reminders, err := f.reminderRepo.ListForAppointment(ctx, apt.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 2)
	assert.Equal(t, newTime.Add(-24*time.Hour), reminders[0].ScheduledFor)
	assert.Equal(t, newTime.Add(-time.Hour), reminders[1].ScheduledFor)
}

func TestRescheduleAppointmentGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt := f.newAppointment(48 * time.Hour)
	require.NoError(t, f.svc.CreateAppointment(ctx, apt))

	// Into the past.
	_, err := f.svc.RescheduleAppointment(ctx, apt.ID, f.clock.Time.Add(-time.Hour), 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrPastDateTime))

	// Onto another appointment of the same doctor.
	other := f.newAppointment(96 * time.Hour)
	other.DoctorID = apt.DoctorID
	require.NoError(t, f.svc.CreateAppointment(ctx, other))

	_, err = f.svc.RescheduleAppointment(ctx, apt.ID, other.ScheduledAt, 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrSchedulingConflict))

	// Only scheduled appointments can move.
	require.NoError(t, f.svc.ConfirmAppointment(ctx, apt.ID))
	_, err = f.svc.RescheduleAppointment(ctx, apt.ID, f.clock.Time.Add(200*time.Hour), 0)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestCancelAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt := f.newAppointment(48 * time.Hour)
	require.NoError(t, f.svc.CreateAppointment(ctx, apt))
	require.NoError(t, f.svc.CancelAppointment(ctx, apt.ID, "patient request"))

	got, err := f.svc.GetAppointment(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, "patient request", *got.CancelReason)

	// Every pending reminder is cancelled with it.
	reminders, err := f.reminderRepo.ListForAppointment(ctx, apt.ID)
	require.NoError(t, err)
	require.Len(t, reminders, 2)
	for _, r := range reminders {
		assert.Equal(t, model.ReminderStatusCancelled, r.Status)
	}

	// And the dispatch loop sees nothing to send for it.
	due, err := f.reminderRepo.GetDue(ctx, apt.ScheduledAt, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, due)

	// Cancelled is terminal.
	err = f.svc.CancelAppointment(ctx, apt.ID, "again")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestCompleteAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt := f.newAppointment(48 * time.Hour)
	require.NoError(t, f.svc.CreateAppointment(ctx, apt))
	require.NoError(t, f.svc.ConfirmAppointment(ctx, apt.ID))

	diagnosis := "seasonal allergies"
	notes := "prescribed antihistamine"
	require.NoError(t, f.svc.CompleteAppointment(ctx, apt.ID, &diagnosis, &notes))

	got, err := f.svc.GetAppointment(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, got.Status)
	require.NotNil(t, got.Diagnosis)
	assert.Equal(t, diagnosis, *got.Diagnosis)

	// Completed is terminal.
	err = f.svc.CancelAppointment(ctx, apt.ID, "too late")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
}

func TestBookSlotAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doctorID := uuid.New()
	slot := &model.AvailabilitySlot{
		DoctorID:  doctorID,
		StartTime: f.clock.Time.Add(48 * time.Hour),
		EndTime:   f.clock.Time.Add(48*time.Hour + 30*time.Minute),
	}
	_, err := f.slotRepo.CreateBatch(ctx, []*model.AvailabilitySlot{slot})
	require.NoError(t, err)

	req := &model.BookSlotRequest{
		SlotID:    slot.ID,
		PatientID: uuid.New(),
		Reason:    "first visit",
	}
	apt, err := f.svc.BookSlotAppointment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, doctorID, apt.DoctorID)
	assert.Equal(t, slot.StartTime, apt.ScheduledAt)
	assert.Equal(t, 30, apt.DurationMinutes)
	assert.Equal(t, model.AppointmentTypeRegular, apt.Type)
	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)

	booked, err := f.slotRepo.Get(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, booked.IsBooked)

	// The slot is committed: booking it again conflicts.
	_, err = f.svc.BookSlotAppointment(ctx, &model.BookSlotRequest{SlotID: slot.ID, PatientID: uuid.New()})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrAlreadyBooked))
}

func TestBookSlotAppointmentCompensatesOnConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doctorID := uuid.New()

	// Direct booking already holds the time range.
	existing := f.newAppointment(48 * time.Hour)
	existing.DoctorID = doctorID
	require.NoError(t, f.svc.CreateAppointment(ctx, existing))

	slot := &model.AvailabilitySlot{
		DoctorID:  doctorID,
		StartTime: existing.ScheduledAt,
		EndTime:   existing.EndTime(),
	}
	_, err := f.slotRepo.CreateBatch(ctx, []*model.AvailabilitySlot{slot})
	require.NoError(t, err)

	_, err = f.svc.BookSlotAppointment(ctx, &model.BookSlotRequest{SlotID: slot.ID, PatientID: uuid.New()})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrSchedulingConflict))

	// The reservation was rolled back, the slot is free again.
	got, err := f.slotRepo.Get(ctx, slot.ID)
	require.NoError(t, err)
	assert.False(t, got.IsBooked)
}

// TestNoOverlapInvariant drives a random booking sequence and checks that no
// two live appointments of one doctor ever overlap, whichever entry point
// created them.
func TestNoOverlapInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doctorID := uuid.New()
	rng := rand.New(rand.NewSource(1))

	day := f.clock.Time.Add(24 * time.Hour).Truncate(24 * time.Hour)
	for i := 0; i < 200; i++ {
		start := day.Add(time.Duration(rng.Intn(32)) * 15 * time.Minute)
		duration := (rng.Intn(8) + 1) * 15

		if rng.Intn(2) == 0 {
			apt := &model.Appointment{
				PatientID:       uuid.New(),
				DoctorID:        doctorID,
				ScheduledAt:     start,
				DurationMinutes: duration,
				Type:            model.AppointmentTypeRegular,
			}
			_ = f.svc.CreateAppointment(ctx, apt)
			continue
		}

		slot := &model.AvailabilitySlot{
			DoctorID:  doctorID,
			StartTime: start,
			EndTime:   start.Add(time.Duration(duration) * time.Minute),
		}
		if n, err := f.slotRepo.CreateBatch(ctx, []*model.AvailabilitySlot{slot}); err != nil || n == 0 {
			continue
		}
		_, _ = f.svc.BookSlotAppointment(ctx, &model.BookSlotRequest{SlotID: slot.ID, PatientID: uuid.New()})
	}

	appointments, err := f.svc.ListAppointments(ctx, &model.AppointmentFilters{DoctorID: doctorID})
	require.NoError(t, err)
	require.NotEmpty(t, appointments)

	for i, a := range appointments {
		for _, b := range appointments[i+1:] {
			if a.Status.IsTerminal() || b.Status.IsTerminal() {
				continue
			}
			overlap := a.ScheduledAt.Before(b.EndTime()) && a.EndTime().After(b.ScheduledAt)
			assert.False(t, overlap, "appointments %s and %s overlap", a.ID, b.ID)
		}
	}
}

func TestBookSlotAppointmentUnknownSlot(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BookSlotAppointment(context.Background(), &model.BookSlotRequest{
		SlotID:    uuid.New(),
		PatientID: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}
