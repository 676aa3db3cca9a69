package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

type AppointmentType string

const (
	AppointmentTypeRegular   AppointmentType = "regular"
	AppointmentTypeFollowup  AppointmentType = "followup"
	AppointmentTypeEmergency AppointmentType = "emergency"
)

type Appointment struct {
	Base
	PatientID       uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	ScheduledAt     time.Time         `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	Status          AppointmentStatus `db:"status" json:"status"`
	Type            AppointmentType   `db:"type" json:"type"`
	Reason          string            `db:"reason" json:"reason,omitempty"`
	Diagnosis       *string           `db:"diagnosis" json:"diagnosis,omitempty"`
	Notes           *string           `db:"notes" json:"notes,omitempty"`
	CancelReason    *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
}

// EndTime returns the exclusive end of the appointment's time range.
func (a *Appointment) EndTime() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

type CreateAppointmentRequest struct {
	PatientID       uuid.UUID `json:"patient_id" binding:"required"`
	DoctorID        uuid.UUID `json:"doctor_id" binding:"required"`
	ScheduledAt     time.Time `json:"scheduled_at" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=15,max=240"`
	Type            string    `json:"type" binding:"required,oneof=regular followup emergency"`
	Reason          string    `json:"reason" binding:"max=1000"`
}

type RescheduleAppointmentRequest struct {
	ScheduledAt     time.Time `json:"scheduled_at" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"omitempty,min=15,max=240"`
}

type CompleteAppointmentRequest struct {
	Diagnosis string `json:"diagnosis" binding:"max=2000"`
	Notes     string `json:"notes" binding:"max=4000"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

type BookSlotRequest struct {
	SlotID    uuid.UUID `json:"slot_id" binding:"required"`
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
	Type      string    `json:"type" binding:"omitempty,oneof=regular followup emergency"`
	Reason    string    `json:"reason" binding:"max=1000"`
}

type AppointmentFilters struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	StartDate time.Time
	EndDate   time.Time
}
