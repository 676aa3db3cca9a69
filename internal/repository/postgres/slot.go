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

func (r *slotRepository) CreateBatch(ctx context.Context, slots []*model.AvailabilitySlot) (int64, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	// ON CONFLICT keeps re-generation idempotent: a (doctor, start) pair that
	// already exists is left untouched, booked or not.
	query := `
		INSERT INTO availability_slots (
			id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
		) VALUES (:id, :doctor_id, :start_time, :end_time, :is_booked, :created_at, :updated_at)
		ON CONFLICT (doctor_id, start_time) DO NOTHING
	`

	var inserted int64
	for _, slot := range slots {
		slot.ID = uuid.New()
		slot.CreatedAt = time.Now()
		slot.UpdatedAt = time.Now()

		result, err := r.db.NamedExecContext(ctx, query, slot)
		if err != nil {
			return inserted, fmt.Errorf("failed to create slot: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += rows
	}
	return inserted, nil
}

func (r *slotRepository) Get(ctx context.Context, id uuid.UUID) (*model.AvailabilitySlot, error) {
	query := `
		SELECT id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
		FROM availability_slots
		WHERE id = $1
	`
	var slot model.AvailabilitySlot
	err := r.db.GetContext(ctx, &slot, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return &slot, nil
}

func (r *slotRepository) Book(ctx context.Context, id uuid.UUID) (int64, error) {
	// Conditional update keyed on the current state; two concurrent callers
	// for the same slot yield exactly one affected row between them.
	query := `
		UPDATE availability_slots
		SET is_booked = TRUE, updated_at = $1
		WHERE id = $2 AND is_booked = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return 0, fmt.Errorf("failed to book slot: %w", err)
	}
	return result.RowsAffected()
}

func (r *slotRepository) Release(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `
		UPDATE availability_slots
		SET is_booked = FALSE, updated_at = $1
		WHERE id = $2 AND is_booked = TRUE
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return 0, fmt.Errorf("failed to release slot: %w", err)
	}
	return result.RowsAffected()
}

func (r *slotRepository) FindAvailable(ctx context.Context, filters *model.SlotFilters) ([]*model.AvailabilitySlot, error) {
	query := `
		SELECT id, doctor_id, start_time, end_time, is_booked, created_at, updated_at
		FROM availability_slots
		WHERE is_booked = FALSE
	`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.DoctorID != uuid.Nil {
			query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
			args = append(args, filters.DoctorID)
			argCount++
		}
		if !filters.StartTime.IsZero() {
			query += fmt.Sprintf(" AND start_time >= $%d", argCount)
			args = append(args, filters.StartTime)
			argCount++
		}
		if !filters.EndTime.IsZero() {
			query += fmt.Sprintf(" AND end_time <= $%d", argCount)
			args = append(args, filters.EndTime)
			argCount++
		}
	}

	query += " ORDER BY start_time ASC"

	var slots []*model.AvailabilitySlot
	err := r.db.SelectContext(ctx, &slots, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find available slots: %w", err)
	}
	return slots, nil
}

func (r *slotRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM availability_slots
		WHERE end_time < $1
	`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old slots: %w", err)
	}
	return result.RowsAffected()
}
