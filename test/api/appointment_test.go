package api_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentLifecycle(t *testing.T) {
	patientID := createTestPatient(t)
	scheduledAt := time.Now().Add(48 * time.Hour).Truncate(time.Minute)

	createResp := makeRequest("POST", "/appointments", map[string]interface{}{
		"patient_id":       patientID,
		"doctor_id":        doctorID,
		"scheduled_at":     scheduledAt.Format(time.RFC3339),
		"duration_minutes": 30,
		"type":             "regular",
		"reason":           "annual checkup",
	})
	require.True(t, createResp.IsSuccess(), "create appointment: %s", createResp.Message)
	aptID := createResp.GetString("id")
	require.NotEmpty(t, aptID)
	assert.Equal(t, "scheduled", createResp.GetString("status"))

	// Scheduling creates the two lead-time reminders.
	remResp := makeRequest("GET", fmt.Sprintf("/reminders/appointment/%s", aptID), nil)
	require.True(t, remResp.IsSuccess())
	var reminders []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(remResp.RawData), &reminders))
	assert.Len(t, reminders, 2)

	// An overlapping appointment for the same doctor is rejected.
	conflictResp := makeRequest("POST", "/appointments", map[string]interface{}{
		"patient_id":       patientID,
		"doctor_id":        doctorID,
		"scheduled_at":     scheduledAt.Add(15 * time.Minute).Format(time.RFC3339),
		"duration_minutes": 30,
		"type":             "regular",
	})
	assert.False(t, conflictResp.IsSuccess())
	assert.Equal(t, 409, conflictResp.StatusCode)

	confirmResp := makeRequest("POST", fmt.Sprintf("/appointments/%s/confirm", aptID), nil)
	require.True(t, confirmResp.IsSuccess())

	getResp := makeRequest("GET", fmt.Sprintf("/appointments/%s", aptID), nil)
	require.True(t, getResp.IsSuccess())
	assert.Equal(t, "confirmed", getResp.Data["status"])

	// Reschedule is only allowed while still scheduled.
	reschedResp := makeRequest("POST", fmt.Sprintf("/appointments/%s/reschedule", aptID), map[string]interface{}{
		"scheduled_at": scheduledAt.Add(72 * time.Hour).Format(time.RFC3339),
	})
	assert.False(t, reschedResp.IsSuccess())
	assert.Equal(t, 409, reschedResp.StatusCode)

	cancelResp := makeRequest("POST", fmt.Sprintf("/appointments/%s/cancel", aptID), map[string]interface{}{
		"reason": "patient request",
	})
	require.True(t, cancelResp.IsSuccess())

	// All pending reminders go with the appointment.
	remResp = makeRequest("GET", fmt.Sprintf("/reminders/appointment/%s", aptID), nil)
	require.True(t, remResp.IsSuccess())
	reminders = nil
	require.NoError(t, json.Unmarshal([]byte(remResp.RawData), &reminders))
	for _, r := range reminders {
		assert.Equal(t, "cancelled", r["status"])
	}

	// Cancelled is terminal.
	completeResp := makeRequest("POST", fmt.Sprintf("/appointments/%s/complete", aptID), map[string]interface{}{})
	assert.False(t, completeResp.IsSuccess())
	assert.Equal(t, 409, completeResp.StatusCode)
}

func TestAppointmentPastDateRejected(t *testing.T) {
	patientID := createTestPatient(t)

	resp := makeRequest("POST", "/appointments", map[string]interface{}{
		"patient_id":       patientID,
		"doctor_id":        doctorID,
		"scheduled_at":     time.Now().Add(-time.Hour).Format(time.RFC3339),
		"duration_minutes": 30,
		"type":             "regular",
	})
	assert.False(t, resp.IsSuccess())
	assert.Equal(t, 400, resp.StatusCode)
}
