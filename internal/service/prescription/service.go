package prescription

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
	repo           repository.PrescriptionRepository
	medicationRepo repository.MedicationRepository
}

func NewService(repo repository.PrescriptionRepository, medicationRepo repository.MedicationRepository) *Service {
	return &Service{
		repo:           repo,
		medicationRepo: medicationRepo,
	}
}

func (s *Service) CreatePrescription(ctx context.Context, prescription *model.Prescription) error {
	if _, err := s.medicationRepo.Get(ctx, prescription.MedicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("medication", err)
		}
		return fmt.Errorf("failed to get medication: %w", err)
	}

	if err := s.repo.Create(ctx, prescription); err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}
	return nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	prescription, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("prescription", err)
		}
		return nil, fmt.Errorf("failed to get prescription: %w", err)
	}
	return prescription, nil
}

func (s *Service) DeletePrescription(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("prescription", err)
		}
		return fmt.Errorf("failed to delete prescription: %w", err)
	}
	return nil
}

func (s *Service) ListPatientPrescriptions(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	prescriptions, err := s.repo.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}
