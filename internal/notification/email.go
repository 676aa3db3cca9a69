package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/mediflow/scheduler-api/internal/config"
	"github.com/mediflow/scheduler-api/internal/repository"
)

type emailTransport struct {
	patients repository.PatientRepository
	dialer   *gomail.Dialer
	from     string
}

// NewEmailTransport returns a Transport that delivers reminders over SMTP,
// resolving the recipient address from the patient record.
func NewEmailTransport(cfg config.SMTPConfig, patients repository.PatientRepository) Transport {
	return &emailTransport{
		patients: patients,
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.From,
	}
}

func (t *emailTransport) Send(ctx context.Context, patientID uuid.UUID, title, body string) error {
	patient, err := t.patients.Get(ctx, patientID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", patient.Email)
	m.SetHeader("Subject", title)
	m.SetBody("text/plain", body)

	if err := t.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
