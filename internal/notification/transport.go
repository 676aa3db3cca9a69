package notification

import (
	"context"

	"github.com/google/uuid"
)

// Transport delivers a reminder to a patient. The dispatch loop only sees
// this interface; delivery details (SMS, push, email) live behind it.
type Transport interface {
	Send(ctx context.Context, patientID uuid.UUID, title, body string) error
}
