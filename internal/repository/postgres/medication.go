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

func (r *medicationRepository) Create(ctx context.Context, medication *model.Medication) error {
	query := `
		INSERT INTO medications (
			id, name, generic_name, manufacturer, form, strength,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	medication.ID = uuid.New()
	medication.CreatedAt = time.Now()
	medication.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		medication.ID,
		medication.Name,
		medication.GenericName,
		medication.Manufacturer,
		medication.Form,
		medication.Strength,
		medication.CreatedAt,
		medication.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medication: %w", err)
	}
	return nil
}

func (r *medicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	query := `
		SELECT id, name, generic_name, manufacturer, form, strength,
			   created_at, updated_at
		FROM medications
		WHERE id = $1
	`
	var medication model.Medication
	err := r.db.GetContext(ctx, &medication, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}
	return &medication, nil
}

func (r *medicationRepository) Update(ctx context.Context, medication *model.Medication) error {
	query := `
		UPDATE medications
		SET name = $1, generic_name = $2, manufacturer = $3, form = $4,
			strength = $5, updated_at = $6
		WHERE id = $7
	`
	medication.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		medication.Name,
		medication.GenericName,
		medication.Manufacturer,
		medication.Form,
		medication.Strength,
		medication.UpdatedAt,
		medication.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update medication: %w", err)
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

func (r *medicationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM medications WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete medication: %w", err)
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

func (r *medicationRepository) List(ctx context.Context) ([]*model.Medication, error) {
	query := `
		SELECT id, name, generic_name, manufacturer, form, strength,
			   created_at, updated_at
		FROM medications
		ORDER BY name
	`
	var medications []*model.Medication
	err := r.db.SelectContext(ctx, &medications, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return medications, nil
}
