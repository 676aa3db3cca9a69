package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mediflow/scheduler-api/internal/model"
)

// All repository interfaces in one file.
//
// Mutations that guard an invariant (slot booking, status transitions,
// reminder state changes) are conditional updates and report the number of
// rows they touched; callers decide what zero rows means.
type (
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)

		// UpdateStatus sets status to `to` only while the current status is
		// one of `from`.
		UpdateStatus(ctx context.Context, id uuid.UUID, from []model.AppointmentStatus, to model.AppointmentStatus) (int64, error)
		// Reschedule moves the appointment only while it is still scheduled.
		Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time, durationMinutes int) (int64, error)
		// Cancel records the reason and flips the status from scheduled or
		// confirmed to cancelled.
		Cancel(ctx context.Context, id uuid.UUID, reason string) (int64, error)
		// Complete flips the status from scheduled or confirmed to completed
		// and stores the clinical outcome.
		Complete(ctx context.Context, id uuid.UUID, diagnosis, notes *string) (int64, error)

		// CheckConflicts reports whether a scheduled or confirmed appointment
		// for the doctor overlaps the half-open range [start, end).
		CheckConflicts(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
		GetDoctorAppointments(ctx context.Context, doctorID uuid.UUID, startDate, endDate time.Time) ([]*model.Appointment, error)
	}

	SlotRepository interface {
		// CreateBatch inserts slots, silently skipping any (doctor, start)
		// pair that already exists. Returns the number inserted.
		CreateBatch(ctx context.Context, slots []*model.AvailabilitySlot) (int64, error)
		Get(ctx context.Context, id uuid.UUID) (*model.AvailabilitySlot, error)
		// Book sets is_booked only if the slot is currently free.
		Book(ctx context.Context, id uuid.UUID) (int64, error)
		// Release clears is_booked only if the slot is currently booked.
		Release(ctx context.Context, id uuid.UUID) (int64, error)
		FindAvailable(ctx context.Context, filters *model.SlotFilters) ([]*model.AvailabilitySlot, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	ReminderRepository interface {
		// Upsert inserts the reminder or, when a non-cancelled row already
		// exists for (appointment_id, reminder_type), rewrites its schedule
		// and resets it to pending.
		Upsert(ctx context.Context, reminder *model.NotificationLog) error
		Get(ctx context.Context, id uuid.UUID) (*model.NotificationLog, error)
		ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.NotificationLog, error)
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.NotificationLog, error)
		// CancelForAppointment marks every pending reminder for the
		// appointment cancelled and returns how many it touched.
		CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) (int64, error)

		// GetDue returns up to limit pending reminders whose scheduled_for has
		// passed and whose retry budget is not exhausted, oldest first.
		GetDue(ctx context.Context, now time.Time, limit int, maxRetries int) ([]*model.NotificationLog, error)
		// MarkSent transitions pending → sent; zero rows means the reminder
		// was cancelled (or already handled) in the meantime.
		MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (int64, error)
		// MarkFailure increments retry_count, records the error and moves the
		// reminder to failed once the retry budget is spent.
		MarkFailure(ctx context.Context, id uuid.UUID, errMsg string, maxRetries int) (int64, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Patient, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Doctor, error)
	}

	PrescriptionRepository interface {
		Create(ctx context.Context, prescription *model.Prescription) error
		Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		Delete(ctx context.Context, id uuid.UUID) error
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error)
	}

	MedicationRepository interface {
		Create(ctx context.Context, medication *model.Medication) error
		Get(ctx context.Context, id uuid.UUID) (*model.Medication, error)
		Update(ctx context.Context, medication *model.Medication) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Medication, error)
	}
)
