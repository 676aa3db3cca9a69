package model

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilitySlot is a fixed-duration bookable interval owned by one doctor.
// IsBooked is flipped only through conditional updates, never derived by
// scanning appointments.
type AvailabilitySlot struct {
	Base
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	IsBooked  bool      `db:"is_booked" json:"is_booked"`
}

type SlotFilters struct {
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
}

type GenerateSlotsRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" binding:"required"`
	Days     int       `json:"days" binding:"required,min=1,max=90"`
}
