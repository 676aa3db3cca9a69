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

func (r *prescriptionRepository) Create(ctx context.Context, prescription *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (
			id, patient_id, doctor_id, appointment_id, medication_id,
			dosage, frequency, instructions, start_date, end_date,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	prescription.ID = uuid.New()
	prescription.CreatedAt = time.Now()
	prescription.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		prescription.ID,
		prescription.PatientID,
		prescription.DoctorID,
		prescription.AppointmentID,
		prescription.MedicationID,
		prescription.Dosage,
		prescription.Frequency,
		prescription.Instructions,
		prescription.StartDate,
		prescription.EndDate,
		prescription.CreatedAt,
		prescription.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}
	return nil
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	query := `
		SELECT id, patient_id, doctor_id, appointment_id, medication_id,
			   dosage, frequency, instructions, start_date, end_date,
			   created_at, updated_at
		FROM prescriptions
		WHERE id = $1
	`
	var prescription model.Prescription
	err := r.db.GetContext(ctx, &prescription, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	return &prescription, nil
}

func (r *prescriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM prescriptions WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete prescription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *prescriptionRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	query := `
		SELECT id, patient_id, doctor_id, appointment_id, medication_id,
			   dosage, frequency, instructions, start_date, end_date,
			   created_at, updated_at
		FROM prescriptions
		WHERE patient_id = $1
		ORDER BY start_date DESC
	`
	var prescriptions []*model.Prescription
	err := r.db.SelectContext(ctx, &prescriptions, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}
