package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mediflow/scheduler-api/internal/model"
	"github.com/mediflow/scheduler-api/internal/repository"
	"github.com/mediflow/scheduler-api/pkg/clock"
)

const (
	Lead24Hour = 24 * time.Hour
	Lead1Hour  = 1 * time.Hour

	timeFormat = "Mon, 02 Jan 2006 at 15:04"
)

type Service struct {
	repo  repository.ReminderRepository
	clock clock.Clock
}

func NewService(repo repository.ReminderRepository, clk clock.Clock) *Service {
	return &Service{
		repo:  repo,
		clock: clk,
	}
}

// ScheduleAll derives the 24h-before and 1h-before reminders from the
// appointment's scheduled time and upserts each one keyed by
// (appointment_id, reminder_type). Due times already in the past are
// skipped; calling it again after a reschedule rewrites the live rows
// instead of adding new ones.
func (s *Service) ScheduleAll(ctx context.Context, apt *model.Appointment) error {
	now := s.clock.Now()

	candidates := []struct {
		reminderType model.ReminderType
		dueAt        time.Time
	}{
		{model.ReminderType24HourBefore, apt.ScheduledAt.Add(-Lead24Hour)},
		{model.ReminderType1HourBefore, apt.ScheduledAt.Add(-Lead1Hour)},
	}

	for _, c := range candidates {
		if !c.dueAt.After(now) {
			continue
		}

		reminder := &model.NotificationLog{
			AppointmentID: apt.ID,
			PatientID:     apt.PatientID,
			ReminderType:  c.reminderType,
			Title:         "Upcoming appointment reminder",
			Body:          fmt.Sprintf("You have an appointment on %s.", apt.ScheduledAt.Format(timeFormat)),
			ScheduledFor:  c.dueAt,
		}
		if err := s.repo.Upsert(ctx, reminder); err != nil {
			return fmt.Errorf("failed to schedule %s reminder: %w", c.reminderType, err)
		}
	}
	return nil
}

// ScheduleStatusChange queues an immediate notification about a status
// change, reusing the same upsert identity so repeated changes collapse
// into one live row.
func (s *Service) ScheduleStatusChange(ctx context.Context, apt *model.Appointment, status model.AppointmentStatus) error {
	reminder := &model.NotificationLog{
		AppointmentID: apt.ID,
		PatientID:     apt.PatientID,
		ReminderType:  model.ReminderTypeStatusChange,
		Title:         "Appointment update",
		Body:          fmt.Sprintf("Your appointment on %s is now %s.", apt.ScheduledAt.Format(timeFormat), status),
		ScheduledFor:  s.clock.Now(),
	}
	if err := s.repo.Upsert(ctx, reminder); err != nil {
		return fmt.Errorf("failed to schedule status change notification: %w", err)
	}
	return nil
}

// CancelAll marks every pending reminder for the appointment cancelled.
func (s *Service) CancelAll(ctx context.Context, appointmentID uuid.UUID) error {
	if _, err := s.repo.CancelForAppointment(ctx, appointmentID); err != nil {
		return fmt.Errorf("failed to cancel reminders: %w", err)
	}
	return nil
}

func (s *Service) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.NotificationLog, error) {
	reminders, err := s.repo.ListForAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.NotificationLog, error) {
	reminders, err := s.repo.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}
