package model

import (
	"time"

	"github.com/google/uuid"
)

type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "pending"
	ReminderStatusSent      ReminderStatus = "sent"
	ReminderStatusFailed    ReminderStatus = "failed"
	ReminderStatusCancelled ReminderStatus = "cancelled"
)

type ReminderType string

const (
	ReminderType24HourBefore ReminderType = "24h_before"
	ReminderType1HourBefore  ReminderType = "1h_before"
	ReminderTypeStatusChange ReminderType = "status_change"
)

// NotificationLog is a scheduled reminder tied to one appointment and one
// reminder type. At most one non-cancelled row exists per
// (appointment_id, reminder_type); scheduling is an upsert. Rows are
// cancelled, never deleted.
type NotificationLog struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	AppointmentID uuid.UUID      `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID      `db:"patient_id" json:"patient_id"`
	ReminderType  ReminderType   `db:"reminder_type" json:"reminder_type"`
	Title         string         `db:"title" json:"title"`
	Body          string         `db:"body" json:"body"`
	ScheduledFor  time.Time      `db:"scheduled_for" json:"scheduled_for"`
	Status        ReminderStatus `db:"status" json:"status"`
	RetryCount    int            `db:"retry_count" json:"retry_count"`
	ErrorMessage  *string        `db:"error_message" json:"error_message,omitempty"`
	SentAt        *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}
