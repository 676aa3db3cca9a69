package slot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/mediflow/scheduler-api/internal/config"
	"github.com/mediflow/scheduler-api/internal/model"
	"github.com/mediflow/scheduler-api/internal/repository"
	"github.com/mediflow/scheduler-api/pkg/clock"
	apperrors "github.com/mediflow/scheduler-api/pkg/errors"
)

const (
	doctorCacheTTL     = 5 * time.Minute
	doctorCacheCleanup = 15 * time.Minute
)

type Service struct {
	repo       repository.SlotRepository
	doctorRepo repository.DoctorRepository
	doctors    *cache.Cache
	clock      clock.Clock
	template   config.AvailabilityConfig
}

func NewService(repo repository.SlotRepository, doctorRepo repository.DoctorRepository, clk clock.Clock, template config.AvailabilityConfig) *Service {
	return &Service{
		repo:       repo,
		doctorRepo: doctorRepo,
		doctors:    cache.New(doctorCacheTTL, doctorCacheCleanup),
		clock:      clk,
		template:   template,
	}
}

// BookSlot atomically marks the slot booked. Exactly one of N concurrent
// callers succeeds; the rest get AlreadyBooked.
func (s *Service) BookSlot(ctx context.Context, slotID uuid.UUID) (*model.AvailabilitySlot, error) {
	rows, err := s.repo.Book(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to book slot: %w", err)
	}
	if rows == 0 {
		// Zero rows means the precondition failed; look at the slot to tell
		// a missing slot from one that is already taken.
		if _, err := s.repo.Get(ctx, slotID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, apperrors.NewNotFound("slot", err)
			}
			return nil, fmt.Errorf("failed to get slot: %w", err)
		}
		return nil, apperrors.NewAlreadyBooked(slotID.String())
	}

	slot, err := s.repo.Get(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

// ReleaseSlot is the inverse of BookSlot.
func (s *Service) ReleaseSlot(ctx context.Context, slotID uuid.UUID) (*model.AvailabilitySlot, error) {
	rows, err := s.repo.Release(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to release slot: %w", err)
	}
	if rows == 0 {
		if _, err := s.repo.Get(ctx, slotID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, apperrors.NewNotFound("slot", err)
			}
			return nil, fmt.Errorf("failed to get slot: %w", err)
		}
		return nil, apperrors.NewNotBooked(slotID.String())
	}

	slot, err := s.repo.Get(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return slot, nil
}

// FindAvailable lists free slots. Without an explicit range it restricts the
// result to strictly-future slots.
func (s *Service) FindAvailable(ctx context.Context, filters *model.SlotFilters) ([]*model.AvailabilitySlot, error) {
	if filters == nil {
		filters = &model.SlotFilters{}
	}
	if filters.StartTime.IsZero() && filters.EndTime.IsZero() {
		filters.StartTime = s.clock.Now()
	}

	slots, err := s.repo.FindAvailable(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to find available slots: %w", err)
	}
	return slots, nil
}

// GenerateSlots emits fixed-duration slots from the working-hours template
// for the doctor over the next days, skipping times already in the past.
// Re-generation is idempotent: existing (doctor, start) pairs are untouched.
func (s *Service) GenerateSlots(ctx context.Context, doctorID uuid.UUID, days int) (int64, error) {
	if _, err := s.getDoctor(ctx, doctorID); err != nil {
		return 0, err
	}

	now := s.clock.Now()
	duration := time.Duration(s.template.SlotDurationMinutes) * time.Minute

	var slots []*model.AvailabilitySlot
	for day := 0; day < days; day++ {
		date := now.AddDate(0, 0, day)
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), s.template.DayStartHour, 0, 0, 0, date.Location())
		dayEnd := time.Date(date.Year(), date.Month(), date.Day(), s.template.DayEndHour, 0, 0, 0, date.Location())

		for start := dayStart; start.Add(duration).Before(dayEnd) || start.Add(duration).Equal(dayEnd); start = start.Add(duration) {
			if !start.After(now) {
				continue
			}
			slots = append(slots, &model.AvailabilitySlot{
				DoctorID:  doctorID,
				StartTime: start,
				EndTime:   start.Add(duration),
			})
		}
	}

	inserted, err := s.repo.CreateBatch(ctx, slots)
	if err != nil {
		return inserted, fmt.Errorf("failed to generate slots: %w", err)
	}
	return inserted, nil
}

// ClearOldSlots bulk-deletes slots wholly before the cutoff and returns the
// count removed.
func (s *Service) ClearOldSlots(ctx context.Context, cutoff time.Time) (int64, error) {
	removed, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear old slots: %w", err)
	}
	return removed, nil
}

func (s *Service) getDoctor(ctx context.Context, doctorID uuid.UUID) (*model.Doctor, error) {
	if cached, found := s.doctors.Get(doctorID.String()); found {
		return cached.(*model.Doctor), nil
	}

	doctor, err := s.doctorRepo.Get(ctx, doctorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("doctor", err)
		}
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}

	s.doctors.Set(doctorID.String(), doctor, cache.DefaultExpiration)
	return doctor, nil
}
