package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mediflow/scheduler-api/internal/model"
)

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, scheduled_at, duration_minutes,
			status, type, reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	appointment.ID = uuid.New()
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.DoctorID,
		appointment.ScheduledAt,
		appointment.DurationMinutes,
		appointment.Status,
		appointment.Type,
		appointment.Reason,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, scheduled_at, duration_minutes,
			   status, type, reason, diagnosis, notes, cancel_reason,
			   created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, scheduled_at, duration_minutes,
			   status, type, reason, diagnosis, notes, cancel_reason,
			   created_at, updated_at
		FROM appointments
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.DoctorID != uuid.Nil {
			query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
			args = append(args, filters.DoctorID)
			argCount++
		}
		if filters.PatientID != uuid.Nil {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, filters.PatientID)
			argCount++
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if !filters.StartDate.IsZero() {
			query += fmt.Sprintf(" AND scheduled_at >= $%d", argCount)
			args = append(args, filters.StartDate)
			argCount++
		}
		if !filters.EndDate.IsZero() {
			query += fmt.Sprintf(" AND scheduled_at < $%d", argCount)
			args = append(args, filters.EndDate)
			argCount++
		}
	}

	query += " ORDER BY scheduled_at ASC"

	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []model.AppointmentStatus, to model.AppointmentStatus) (int64, error) {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = ANY($4)
	`
	result, err := r.db.ExecContext(ctx, query, to, time.Now(), id, pq.Array(statusStrings(from)))
	if err != nil {
		return 0, fmt.Errorf("failed to update appointment status: %w", err)
	}
	return result.RowsAffected()
}

func (r *appointmentRepository) Reschedule(ctx context.Context, id uuid.UUID, scheduledAt time.Time, durationMinutes int) (int64, error) {
	query := `
		UPDATE appointments
		SET scheduled_at = $1, duration_minutes = $2, updated_at = $3
		WHERE id = $4 AND status = 'scheduled'
	`
	result, err := r.db.ExecContext(ctx, query, scheduledAt, durationMinutes, time.Now(), id)
	if err != nil {
		return 0, fmt.Errorf("failed to reschedule appointment: %w", err)
	}
	return result.RowsAffected()
}

func (r *appointmentRepository) Cancel(ctx context.Context, id uuid.UUID, reason string) (int64, error) {
	query := `
		UPDATE appointments
		SET status = 'cancelled', cancel_reason = $1, updated_at = $2
		WHERE id = $3 AND status IN ('scheduled', 'confirmed')
	`
	result, err := r.db.ExecContext(ctx, query, reason, time.Now(), id)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel appointment: %w", err)
	}
	return result.RowsAffected()
}

func (r *appointmentRepository) Complete(ctx context.Context, id uuid.UUID, diagnosis, notes *string) (int64, error) {
	query := `
		UPDATE appointments
		SET status = 'completed', diagnosis = $1, notes = $2, updated_at = $3
		WHERE id = $4 AND status IN ('scheduled', 'confirmed')
	`
	result, err := r.db.ExecContext(ctx, query, diagnosis, notes, time.Now(), id)
	if err != nil {
		return 0, fmt.Errorf("failed to complete appointment: %w", err)
	}
	return result.RowsAffected()
}

func (r *appointmentRepository) CheckConflicts(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			AND status IN ('scheduled', 'confirmed')
			AND scheduled_at < $3
			AND scheduled_at + make_interval(mins => duration_minutes) > $2
	`
	args := []interface{}{doctorID, start, end}

	if excludeID != nil {
		query += " AND id != $4"
		args = append(args, *excludeID)
	}

	query += ")"

	var hasConflict bool
	err := r.db.GetContext(ctx, &hasConflict, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return hasConflict, nil
}

func (r *appointmentRepository) GetDoctorAppointments(ctx context.Context, doctorID uuid.UUID, startDate, endDate time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, scheduled_at, duration_minutes,
			   status, type, reason, diagnosis, notes, cancel_reason,
			   created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1
		AND scheduled_at >= $2
		AND scheduled_at < $3
		AND status IN ('scheduled', 'confirmed')
		ORDER BY scheduled_at ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, doctorID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor appointments: %w", err)
	}
	return appointments, nil
}

func statusStrings(statuses []model.AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
