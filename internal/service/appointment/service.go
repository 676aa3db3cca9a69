package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mediflow/scheduler-api/internal/model"
	"github.com/mediflow/scheduler-api/internal/repository"
	"github.com/mediflow/scheduler-api/internal/service/reminder"
	"github.com/mediflow/scheduler-api/pkg/clock"
	apperrors "github.com/mediflow/scheduler-api/pkg/errors"
	"github.com/mediflow/scheduler-api/pkg/messaging"
)

// Business rules for booking windows
const (
	MinAppointmentDuration = 15 * time.Minute
	MaxAppointmentDuration = 4 * time.Hour

	eventsChannel = "appointments"
)

// Service is the appointment state machine. Every status write in the system
// goes through one of its transition methods; each transition is a single
// conditional update whose affected-row count decides the outcome.
type Service struct {
	repo        repository.AppointmentRepository
	slotRepo    repository.SlotRepository
	reminderSvc *reminder.Service
	broker      messaging.Broker
	clock       clock.Clock
}

func NewService(repo repository.AppointmentRepository, slotRepo repository.SlotRepository, reminderSvc *reminder.Service, broker messaging.Broker, clk clock.Clock) *Service {
	return &Service{
		repo:        repo,
		slotRepo:    slotRepo,
		reminderSvc: reminderSvc,
		broker:      broker,
		clock:       clk,
	}
}

// CreateAppointment books a new appointment in the scheduled state after
// checking the time is in the future and the doctor's calendar is free.
func (s *Service) CreateAppointment(ctx context.Context, apt *model.Appointment) error {
	if err := s.validateAppointment(apt); err != nil {
		return err
	}

	hasConflict, err := s.repo.CheckConflicts(ctx, apt.DoctorID, apt.ScheduledAt, apt.EndTime(), nil)
	if err != nil {
		return fmt.Errorf("failed to check conflicts: %w", err)
	}
	if hasConflict {
		return apperrors.NewSchedulingConflict("doctor already has an appointment in this time range")
	}

	apt.Status = model.AppointmentStatusScheduled
	if err := s.repo.Create(ctx, apt); err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	if err := s.reminderSvc.ScheduleAll(ctx, apt); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}

	s.publishEvent(ctx, "appointment_created", apt)
	return nil
}

// BookSlotAppointment is the slot-based booking surface. It reserves the
// slot atomically, then runs the same create path (and the same conflict
// check) as direct booking; a failed create releases the slot again so the
// two entry points cannot double-commit one time range.
func (s *Service) BookSlotAppointment(ctx context.Context, req *model.BookSlotRequest) (*model.Appointment, error) {
	rows, err := s.slotRepo.Book(ctx, req.SlotID)
	if err != nil {
		return nil, fmt.Errorf("failed to book slot: %w", err)
	}
	if rows == 0 {
		if _, err := s.slotRepo.Get(ctx, req.SlotID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, apperrors.NewNotFound("slot", err)
			}
			return nil, fmt.Errorf("failed to get slot: %w", err)
		}
		return nil, apperrors.NewAlreadyBooked(req.SlotID.String())
	}

	slot, err := s.slotRepo.Get(ctx, req.SlotID)
	if err != nil {
		s.compensateSlot(ctx, req.SlotID)
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}

	aptType := model.AppointmentType(req.Type)
	if aptType == "" {
		aptType = model.AppointmentTypeRegular
	}

	apt := &model.Appointment{
		PatientID:       req.PatientID,
		DoctorID:        slot.DoctorID,
		ScheduledAt:     slot.StartTime,
		DurationMinutes: int(slot.EndTime.Sub(slot.StartTime) / time.Minute),
		Type:            aptType,
		Reason:          req.Reason,
	}

	if err := s.CreateAppointment(ctx, apt); err != nil {
		s.compensateSlot(ctx, req.SlotID)
		return nil, err
	}
	return apt, nil
}

// ConfirmAppointment moves scheduled → confirmed.
func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) error {
	rows, err := s.repo.UpdateStatus(ctx, id,
		[]model.AppointmentStatus{model.AppointmentStatusScheduled},
		model.AppointmentStatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to confirm appointment: %w", err)
	}
	if rows == 0 {
		return s.transitionFailure(ctx, id, model.AppointmentStatusConfirmed)
	}

	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get appointment: %w", err)
	}
	if err := s.reminderSvc.ScheduleStatusChange(ctx, apt, model.AppointmentStatusConfirmed); err != nil {
		return err
	}

	s.publishEvent(ctx, "appointment_confirmed", apt)
	return nil
}

// RescheduleAppointment moves a scheduled appointment to a new future,
// conflict-free time and re-derives its reminders. The old pending reminders
// are superseded in place by the upsert, not duplicated.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, scheduledAt time.Time, durationMinutes int) (*model.Appointment, error) {
	apt, err := s.getAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.Status != model.AppointmentStatusScheduled {
		return nil, apperrors.NewInvalidTransition(string(apt.Status), string(model.AppointmentStatusScheduled))
	}

	if durationMinutes == 0 {
		durationMinutes = apt.DurationMinutes
	}
	if !scheduledAt.After(s.clock.Now()) {
		return nil, apperrors.NewPastDateTime("appointment cannot be rescheduled into the past")
	}

	end := scheduledAt.Add(time.Duration(durationMinutes) * time.Minute)
	hasConflict, err := s.repo.CheckConflicts(ctx, apt.DoctorID, scheduledAt, end, &id)
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}
	if hasConflict {
		return nil, apperrors.NewSchedulingConflict("doctor already has an appointment in this time range")
	}

	rows, err := s.repo.Reschedule(ctx, id, scheduledAt, durationMinutes)
	if err != nil {
		return nil, fmt.Errorf("failed to reschedule appointment: %w", err)
	}
	if rows == 0 {
		// Status changed between the read and the conditional update.
		return nil, s.transitionFailure(ctx, id, model.AppointmentStatusScheduled)
	}

	apt.ScheduledAt = scheduledAt
	apt.DurationMinutes = durationMinutes
	if err := s.reminderSvc.ScheduleAll(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to reschedule reminders: %w", err)
	}

	s.publishEvent(ctx, "appointment_rescheduled", apt)
	return apt, nil
}

// CancelAppointment moves scheduled/confirmed → cancelled and cancels all of
// the appointment's pending reminders. Cancellation is a status, not a
// deletion.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) error {
	rows, err := s.repo.Cancel(ctx, id, reason)
	if err != nil {
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}
	if rows == 0 {
		return s.transitionFailure(ctx, id, model.AppointmentStatusCancelled)
	}

	if err := s.reminderSvc.CancelAll(ctx, id); err != nil {
		return err
	}

	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get appointment: %w", err)
	}
	s.publishEvent(ctx, "appointment_cancelled", apt)
	return nil
}

// CompleteAppointment moves scheduled/confirmed → completed and stores the
// optional clinical outcome.
func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID, diagnosis, notes *string) error {
	rows, err := s.repo.Complete(ctx, id, diagnosis, notes)
	if err != nil {
		return fmt.Errorf("failed to complete appointment: %w", err)
	}
	if rows == 0 {
		return s.transitionFailure(ctx, id, model.AppointmentStatusCompleted)
	}

	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get appointment: %w", err)
	}
	s.publishEvent(ctx, "appointment_completed", apt)
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.getAppointment(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) getAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return apt, nil
}

// transitionFailure turns a zero-row conditional update into the right error:
// the appointment either does not exist or sits in a state the transition
// does not allow.
func (s *Service) transitionFailure(ctx context.Context, id uuid.UUID, to model.AppointmentStatus) error {
	apt, err := s.getAppointment(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.NewInvalidTransition(string(apt.Status), string(to))
}

func (s *Service) validateAppointment(apt *model.Appointment) error {
	if apt.PatientID == uuid.Nil {
		return apperrors.NewBadRequest("patient ID is required", nil)
	}
	if apt.DoctorID == uuid.Nil {
		return apperrors.NewBadRequest("doctor ID is required", nil)
	}

	duration := time.Duration(apt.DurationMinutes) * time.Minute
	if duration < MinAppointmentDuration || duration > MaxAppointmentDuration {
		return apperrors.NewBadRequest(
			fmt.Sprintf("invalid appointment duration: must be between %v and %v", MinAppointmentDuration, MaxAppointmentDuration), nil)
	}

	if !apt.ScheduledAt.After(s.clock.Now()) {
		return apperrors.NewPastDateTime("appointment cannot be scheduled in the past")
	}
	return nil
}

func (s *Service) compensateSlot(ctx context.Context, slotID uuid.UUID) {
	// Best effort; a leaked booked slot is visible and releasable by hand.
	_, _ = s.slotRepo.Release(ctx, slotID)
}

func (s *Service) publishEvent(ctx context.Context, eventType string, apt *model.Appointment) {
	if s.broker == nil {
		return
	}
	// Events are advisory; a broker outage must not fail the booking.
	_ = s.broker.Publish(ctx, eventsChannel, messaging.Message{
		Type:    eventType,
		Payload: apt,
	})
}
