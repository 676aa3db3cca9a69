package medication

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mediflow/scheduler-api/internal/model"
	"github.com/mediflow/scheduler-api/internal/repository"
	apperrors "github.com/mediflow/scheduler-api/pkg/errors"
)

type Service struct {
	repo repository.MedicationRepository
}

func NewService(repo repository.MedicationRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateMedication(ctx context.Context, medication *model.Medication) error {
	if err := s.repo.Create(ctx, medication); err != nil {
		return fmt.Errorf("failed to create medication: %w", err)
	}
	return nil
}

func (s *Service) GetMedication(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	medication, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("medication", err)
		}
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}
	return medication, nil
}

func (s *Service) UpdateMedication(ctx context.Context, medication *model.Medication) error {
	if err := s.repo.Update(ctx, medication); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("medication", err)
		}
		return fmt.Errorf("failed to update medication: %w", err)
	}
	return nil
}

func (s *Service) DeleteMedication(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("medication", err)
		}
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	return nil
}

func (s *Service) ListMedications(ctx context.Context) ([]*model.Medication, error) {
	medications, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return medications, nil
}
