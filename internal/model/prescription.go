package model

import (
	"time"

	"github.com/google/uuid"
)

type Prescription struct {
	Base
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	MedicationID  uuid.UUID  `db:"medication_id" json:"medication_id"`
	Dosage        string     `db:"dosage" json:"dosage"`
	Frequency     string     `db:"frequency" json:"frequency"`
	Instructions  string     `db:"instructions" json:"instructions,omitempty"`
	StartDate     time.Time  `db:"start_date" json:"start_date"`
	EndDate       *time.Time `db:"end_date" json:"end_date,omitempty"`
}

type CreatePrescriptionRequest struct {
	PatientID     uuid.UUID  `json:"patient_id" binding:"required"`
	DoctorID      uuid.UUID  `json:"doctor_id" binding:"required"`
	AppointmentID *uuid.UUID `json:"appointment_id"`
	MedicationID  uuid.UUID  `json:"medication_id" binding:"required"`
	Dosage        string     `json:"dosage" binding:"required,max=200"`
	Frequency     string     `json:"frequency" binding:"required,max=200"`
	Instructions  string     `json:"instructions" binding:"max=2000"`
	StartDate     time.Time  `json:"start_date" binding:"required"`
	EndDate       *time.Time `json:"end_date"`
}
