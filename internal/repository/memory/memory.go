// Package memory holds in-memory repository implementations used by the
// service tests. They reproduce the conditional-update semantics of the
// postgres layer: guarded mutations report affected rows, and zero rows
// means the precondition did not hold at update time.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediflow/scheduler-api/internal/model"
	"github.com/mediflow/scheduler-api/internal/repository"
)

type AppointmentRepository struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (r *AppointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if apt.ID == uuid.Nil {
		apt.ID = uuid.New()
	}
	apt.CreatedAt = time.Now()
	apt.UpdatedAt = time.Now()

	stored := *apt
	r.appointments[apt.ID] = &stored
	return nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apt, ok := r.appointments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *apt
	return &copied, nil
}

func (r *AppointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Appointment
	for _, apt := range r.appointments {
		if filters != nil {
			if filters.DoctorID != uuid.Nil && apt.DoctorID != filters.DoctorID {
				continue
			}
			if filters.PatientID != uuid.Nil && apt.PatientID != filters.PatientID {
				continue
			}
			if filters.Status != "" && apt.Status != filters.Status {
				continue
			}
			if !filters.StartDate.IsZero() && apt.ScheduledAt.Before(filters.StartDate) {
				continue
			}
			if !filters.EndDate.IsZero() && apt.ScheduledAt.After(filters.EndDate) {
				continue
			}
		}
		copied := *apt
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []model.AppointmentStatus, to model.AppointmentStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apt, ok := r.appointments[id]
	if !ok || !statusIn(apt.Status, from) {
		return 0, nil
	}
	apt.Status = to
	apt.UpdatedAt = time.Now()
	return 1, nil
}

func (r *AppointmentRepository) Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time, durationMinutes int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apt, ok := r.appointments[id]
	if !ok || apt.Status != model.AppointmentStatusScheduled {
		return 0, nil
	}
	apt.ScheduledAt = scheduledAt
	apt.DurationMinutes = durationMinutes
	apt.UpdatedAt = time.Now()
	return 1, nil
}

func (r *AppointmentRepository) Cancel(ctx context.Context, id uuid.UUID, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apt, ok := r.appointments[id]
	if !ok || apt.Status.IsTerminal() {
		return 0, nil
	}
	apt.Status = model.AppointmentStatusCancelled
	apt.CancelReason = &reason
	apt.UpdatedAt = time.Now()
	return 1, nil
}

func (r *AppointmentRepository) Complete(ctx context.Context, id uuid.UUID, diagnosis, notes *string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apt, ok := r.appointments[id]
	if !ok || apt.Status.IsTerminal() {
		return 0, nil
	}
	apt.Status = model.AppointmentStatusCompleted
	apt.Diagnosis = diagnosis
	apt.Notes = notes
	apt.UpdatedAt = time.Now()
	return 1, nil
}

func (r *AppointmentRepository) CheckConflicts(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, apt := range r.appointments {
		if apt.DoctorID != doctorID {
			continue
		}
		if apt.Status != model.AppointmentStatusScheduled && apt.Status != model.AppointmentStatusConfirmed {
			continue
		}
		if excludeID != nil && apt.ID == *excludeID {
			continue
		}
		if apt.ScheduledAt.Before(end) && apt.EndTime().After(start) {
			return true, nil
		}
	}
	return false, nil
}

func (r *AppointmentRepository) GetDoctorAppointments(ctx context.Context, doctorID uuid.UUID, startDate, endDate time.Time) ([]*model.Appointment, error) {
	return r.List(ctx, &model.AppointmentFilters{DoctorID: doctorID, StartDate: startDate, EndDate: endDate})
}

func statusIn(status model.AppointmentStatus, set []model.AppointmentStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

type SlotRepository struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*model.AvailabilitySlot
}

func NewSlotRepository() *SlotRepository {
	return &SlotRepository{slots: make(map[uuid.UUID]*model.AvailabilitySlot)}
}

func (r *SlotRepository) CreateBatch(ctx context.Context, slots []*model.AvailabilitySlot) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var inserted int64
	for _, slot := range slots {
		if r.hasPair(slot.DoctorID, slot.StartTime) {
			continue
		}
		slot.ID = uuid.New()
		slot.CreatedAt = time.Now()
		slot.UpdatedAt = time.Now()

		stored := *slot
		r.slots[slot.ID] = &stored
		inserted++
	}
	return inserted, nil
}

func (r *SlotRepository) hasPair(doctorID uuid.UUID, start time.Time) bool {
	for _, s := range r.slots {
		if s.DoctorID == doctorID && s.StartTime.Equal(start) {
			return true
		}
	}
	return false
}

func (r *SlotRepository) Get(ctx context.Context, id uuid.UUID) (*model.AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *slot
	return &copied, nil
}

func (r *SlotRepository) Book(ctx context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok || slot.IsBooked {
		return 0, nil
	}
	slot.IsBooked = true
	slot.UpdatedAt = time.Now()
	return 1, nil
}

func (r *SlotRepository) Release(ctx context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok || !slot.IsBooked {
		return 0, nil
	}
	slot.IsBooked = false
	slot.UpdatedAt = time.Now()
	return 1, nil
}

func (r *SlotRepository) FindAvailable(ctx context.Context, filters *model.SlotFilters) ([]*model.AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.AvailabilitySlot
	for _, slot := range r.slots {
		if slot.IsBooked {
			continue
		}
		if filters != nil {
			if filters.DoctorID != uuid.Nil && slot.DoctorID != filters.DoctorID {
				continue
			}
			if !filters.StartTime.IsZero() && slot.StartTime.Before(filters.StartTime) {
				continue
			}
			if !filters.EndTime.IsZero() && slot.EndTime.After(filters.EndTime) {
				continue
			}
		}
		copied := *slot
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *SlotRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, slot := range r.slots {
		if slot.EndTime.Before(cutoff) {
			delete(r.slots, id)
			removed++
		}
	}
	return removed, nil
}

type ReminderRepository struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]*model.NotificationLog
}

func NewReminderRepository() *ReminderRepository {
	return &ReminderRepository{reminders: make(map[uuid.UUID]*model.NotificationLog)}
}

func (r *ReminderRepository) Upsert(ctx context.Context, reminder *model.NotificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// One live row per (appointment_id, reminder_type); cancelled rows do
	// not count against the identity.
	for _, existing := range r.reminders {
		if existing.AppointmentID == reminder.AppointmentID &&
			existing.ReminderType == reminder.ReminderType &&
			existing.Status != model.ReminderStatusCancelled {
			existing.ScheduledFor = reminder.ScheduledFor
			existing.Title = reminder.Title
			existing.Body = reminder.Body
			existing.Status = model.ReminderStatusPending
			existing.RetryCount = 0
			existing.ErrorMessage = nil
			existing.SentAt = nil
			existing.UpdatedAt = time.Now()

			*reminder = *existing
			return nil
		}
	}

	reminder.ID = uuid.New()
	reminder.Status = model.ReminderStatusPending
	reminder.RetryCount = 0
	reminder.CreatedAt = time.Now()
	reminder.UpdatedAt = time.Now()

	stored := *reminder
	r.reminders[reminder.ID] = &stored
	return nil
}

func (r *ReminderRepository) Get(ctx context.Context, id uuid.UUID) (*model.NotificationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.reminders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *reminder
	return &copied, nil
}

func (r *ReminderRepository) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.NotificationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.NotificationLog
	for _, reminder := range r.reminders {
		if reminder.AppointmentID == appointmentID {
			copied := *reminder
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (r *ReminderRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.NotificationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.NotificationLog
	for _, reminder := range r.reminders {
		if reminder.PatientID == patientID {
			copied := *reminder
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (r *ReminderRepository) CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var touched int64
	for _, reminder := range r.reminders {
		if reminder.AppointmentID == appointmentID && reminder.Status == model.ReminderStatusPending {
			reminder.Status = model.ReminderStatusCancelled
			reminder.UpdatedAt = time.Now()
			touched++
		}
	}
	return touched, nil
}

func (r *ReminderRepository) GetDue(ctx context.Context, now time.Time, limit int, maxRetries int) ([]*model.NotificationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.NotificationLog
	for _, reminder := range r.reminders {
		if reminder.Status != model.ReminderStatusPending {
			continue
		}
		if reminder.ScheduledFor.After(now) {
			continue
		}
		if reminder.RetryCount >= maxRetries {
			continue
		}
		copied := *reminder
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ReminderRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.reminders[id]
	if !ok || reminder.Status != model.ReminderStatusPending {
		return 0, nil
	}
	reminder.Status = model.ReminderStatusSent
	reminder.SentAt = &sentAt
	reminder.UpdatedAt = time.Now()
	return 1, nil
}

func (r *ReminderRepository) MarkFailure(ctx context.Context, id uuid.UUID, errMsg string, maxRetries int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reminder, ok := r.reminders[id]
	if !ok || reminder.Status != model.ReminderStatusPending {
		return 0, nil
	}
	reminder.RetryCount++
	reminder.ErrorMessage = &errMsg
	if reminder.RetryCount >= maxRetries {
		reminder.Status = model.ReminderStatusFailed
	}
	reminder.UpdatedAt = time.Now()
	return 1, nil
}

type DoctorRepository struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*model.Doctor
}

func NewDoctorRepository() *DoctorRepository {
	return &DoctorRepository{doctors: make(map[uuid.UUID]*model.Doctor)}
}

func (r *DoctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = time.Now()

	stored := *doctor
	r.doctors[doctor.ID] = &stored
	return nil
}

func (r *DoctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doctor, ok := r.doctors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *doctor
	return &copied, nil
}

func (r *DoctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.doctors[doctor.ID]; !ok {
		return sql.ErrNoRows
	}
	doctor.UpdatedAt = time.Now()
	stored := *doctor
	r.doctors[doctor.ID] = &stored
	return nil
}

func (r *DoctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.doctors[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.doctors, id)
	return nil
}

func (r *DoctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Doctor
	for _, doctor := range r.doctors {
		copied := *doctor
		out = append(out, &copied)
	}
	return out, nil
}

type PatientRepository struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*model.Patient
}

func NewPatientRepository() *PatientRepository {
	return &PatientRepository{patients: make(map[uuid.UUID]*model.Patient)}
}

func (r *PatientRepository) Create(ctx context.Context, patient *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = time.Now()

	stored := *patient
	r.patients[patient.ID] = &stored
	return nil
}

func (r *PatientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	patient, ok := r.patients[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *patient
	return &copied, nil
}

func (r *PatientRepository) Update(ctx context.Context, patient *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[patient.ID]; !ok {
		return sql.ErrNoRows
	}
	patient.UpdatedAt = time.Now()
	stored := *patient
	r.patients[patient.ID] = &stored
	return nil
}

func (r *PatientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.patients, id)
	return nil
}

func (r *PatientRepository) List(ctx context.Context) ([]*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Patient
	for _, patient := range r.patients {
		copied := *patient
		out = append(out, &copied)
	}
	return out, nil
}

var (
	_ repository.AppointmentRepository = (*AppointmentRepository)(nil)
	_ repository.SlotRepository        = (*SlotRepository)(nil)
	_ repository.ReminderRepository    = (*ReminderRepository)(nil)
	_ repository.DoctorRepository      = (*DoctorRepository)(nil)
	_ repository.PatientRepository     = (*PatientRepository)(nil)
)
