package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mediflow/scheduler-api/internal/model"
)

func (r *reminderRepository) Upsert(ctx context.Context, reminder *model.NotificationLog) error {
	// Backed by a partial unique index on (appointment_id, reminder_type)
	// WHERE status != 'cancelled'. Rescheduling rewrites the live row in
	// place instead of stacking a second one.
	query := `
		INSERT INTO notification_logs (
			id, appointment_id, patient_id, reminder_type, title, body,
			scheduled_for, status, retry_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', 0, $8, $9)
		ON CONFLICT (appointment_id, reminder_type) WHERE status != 'cancelled'
		DO UPDATE SET
			scheduled_for = EXCLUDED.scheduled_for,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			status = 'pending',
			retry_count = 0,
			error_message = NULL,
			sent_at = NULL,
			updated_at = EXCLUDED.updated_at
	`
	reminder.ID = uuid.New()
	reminder.Status = model.ReminderStatusPending
	reminder.RetryCount = 0
	reminder.CreatedAt = time.Now()
	reminder.UpdatedAt = time.Now()

	_, err := r.GetDB().ExecContext(ctx, query,
		reminder.ID,
		reminder.AppointmentID,
		reminder.PatientID,
		reminder.ReminderType,
		reminder.Title,
		reminder.Body,
		reminder.ScheduledFor,
		reminder.CreatedAt,
		reminder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reminder: %w", err)
	}
	return nil
}

func (r *reminderRepository) Get(ctx context.Context, id uuid.UUID) (*model.NotificationLog, error) {
	query := `
		SELECT id, appointment_id, patient_id, reminder_type, title, body,
			   scheduled_for, status, retry_count, error_message, sent_at,
			   created_at, updated_at
		FROM notification_logs
		WHERE id = $1
	`
	var reminder model.NotificationLog
	err := r.GetDB().GetContext(ctx, &reminder, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return &reminder, nil
}

func (r *reminderRepository) ListForAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*model.NotificationLog, error) {
	query := `
		SELECT id, appointment_id, patient_id, reminder_type, title, body,
			   scheduled_for, status, retry_count, error_message, sent_at,
			   created_at, updated_at
		FROM notification_logs
		WHERE appointment_id = $1
		ORDER BY scheduled_for ASC
	`
	var reminders []*model.NotificationLog
	err := r.GetDB().SelectContext(ctx, &reminders, query, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

func (r *reminderRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.NotificationLog, error) {
	query := `
		SELECT id, appointment_id, patient_id, reminder_type, title, body,
			   scheduled_for, status, retry_count, error_message, sent_at,
			   created_at, updated_at
		FROM notification_logs
		WHERE patient_id = $1
		ORDER BY scheduled_for ASC
	`
	var reminders []*model.NotificationLog
	err := r.GetDB().SelectContext(ctx, &reminders, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

func (r *reminderRepository) CancelForAppointment(ctx context.Context, appointmentID uuid.UUID) (int64, error) {
	query := `
		UPDATE notification_logs
		SET status = 'cancelled', updated_at = $1
		WHERE appointment_id = $2 AND status = 'pending'
	`
	result, err := r.GetDB().ExecContext(ctx, query, time.Now(), appointmentID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel reminders: %w", err)
	}
	return result.RowsAffected()
}

func (r *reminderRepository) GetDue(ctx context.Context, now time.Time, limit int, maxRetries int) ([]*model.NotificationLog, error) {
	query := `
		SELECT id, appointment_id, patient_id, reminder_type, title, body,
			   scheduled_for, status, retry_count, error_message, sent_at,
			   created_at, updated_at
		FROM notification_logs
		WHERE status = 'pending'
		AND scheduled_for <= $1
		AND retry_count < $2
		ORDER BY scheduled_for ASC
		LIMIT $3
	`
	var reminders []*model.NotificationLog
	err := r.GetDB().SelectContext(ctx, &reminders, query, now, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due reminders: %w", err)
	}
	return reminders, nil
}

func (r *reminderRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (int64, error) {
	// Guarded by status = 'pending' so a concurrent cancellation wins the
	// race: this update then touches zero rows and the send is not recorded
	// over the cancelled state.
	query := `
		UPDATE notification_logs
		SET status = 'sent', sent_at = $1, updated_at = $2
		WHERE id = $3 AND status = 'pending'
	`
	result, err := r.GetDB().ExecContext(ctx, query, sentAt, time.Now(), id)
	if err != nil {
		return 0, fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return result.RowsAffected()
}

func (r *reminderRepository) MarkFailure(ctx context.Context, id uuid.UUID, errMsg string, maxRetries int) (int64, error) {
	query := `
		UPDATE notification_logs
		SET retry_count = retry_count + 1,
			error_message = $1,
			status = CASE WHEN retry_count + 1 >= $2 THEN 'failed' ELSE 'pending' END,
			updated_at = $3
		WHERE id = $4 AND status = 'pending'
	`
	result, err := r.GetDB().ExecContext(ctx, query, errMsg, maxRetries, time.Now(), id)
	if err != nil {
		return 0, fmt.Errorf("failed to record reminder failure: %w", err)
	}
	return result.RowsAffected()
}
