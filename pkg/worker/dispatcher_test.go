package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediflow/scheduler-api/internal/model"
	"github.com/mediflow/scheduler-api/internal/notification"
	"github.com/mediflow/scheduler-api/internal/repository/memory"
	"github.com/mediflow/scheduler-api/pkg/clock"
	"github.com/mediflow/scheduler-api/pkg/logger"
	"github.com/mediflow/scheduler-api/pkg/metrics"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []uuid.UUID
	err  error
}

func (t *fakeTransport) Send(ctx context.Context, patientID uuid.UUID, title, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, patientID)
	return nil
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func newTestDispatcher(repo *memory.ReminderRepository, transport notification.Transport, clk clock.Clock) *ReminderDispatcher {
	return NewReminderDispatcher(
		repo,
		transport,
		ReminderDispatcherConfig{
			BatchSize:    50,
			PollInterval: time.Minute,
			MaxRetries:   3,
		},
		clk,
		&logger.Logger{ZL: zerolog.Nop()},
		metrics.New("test"),
	)
}

func seedReminder(t *testing.T, repo *memory.ReminderRepository, dueAt time.Time) *model.NotificationLog {
	t.Helper()

	reminder := &model.NotificationLog{
		AppointmentID: uuid.New(),
		PatientID:     uuid.New(),
		ReminderType:  model.ReminderType24HourBefore,
		Title:         "Upcoming appointment reminder",
		Body:          "You have an appointment.",
		ScheduledFor:  dueAt,
	}
	require.NoError(t, repo.Upsert(context.Background(), reminder))
	return reminder
}

func TestDispatchDueSendsAndMarksSent(t *testing.T) {
	repo := memory.NewReminderRepository()
	transport := &fakeTransport{}
	clk := &clock.Fixed{Time: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	d := newTestDispatcher(repo, transport, clk)
	ctx := context.Background()

	due := seedReminder(t, repo, clk.Time.Add(-time.Minute))
	notYet := seedReminder(t, repo, clk.Time.Add(time.Hour))

	require.NoError(t, d.DispatchDue(ctx))
	assert.Equal(t, 1, transport.sentCount())

	got, err := repo.Get(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.Equal(t, clk.Time, *got.SentAt)

	got, err = repo.Get(ctx, notYet.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusPending, got.Status)

	// A sent reminder never comes back.
	require.NoError(t, d.DispatchDue(ctx))
	assert.Equal(t, 1, transport.sentCount())
}

func TestDispatchDueRecordsFailure(t *testing.T) {
	repo := memory.NewReminderRepository()
	transport := &fakeTransport{err: errors.New("smtp: connection refused")}
	clk := &clock.Fixed{Time: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	d := newTestDispatcher(repo, transport, clk)
	ctx := context.Background()

	reminder := seedReminder(t, repo, clk.Time.Add(-time.Minute))

	require.NoError(t, d.DispatchDue(ctx))

	got, err := repo.Get(ctx, reminder.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "smtp: connection refused", *got.ErrorMessage)
}

func TestDispatchDueExhaustsRetryBudget(t *testing.T) {
	repo := memory.NewReminderRepository()
	transport := &fakeTransport{err: errors.New("smtp: connection refused")}
	clk := &clock.Fixed{Time: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
	d := newTestDispatcher(repo, transport, clk)
	ctx := context.Background()

	reminder := seedReminder(t, repo, clk.Time.Add(-time.Minute))

	for i := 0; i < 3; i++ {
		require.NoError(t, d.DispatchDue(ctx))
	}

	got, err := repo.Get(ctx, reminder.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)

	// Failed reminders are out of the loop for good: the transport recovers
	// but nothing is picked up.
	transport.err = nil
	require.NoError(t, d.DispatchDue(ctx))
	assert.Equal(t, 0, transport.sentCount())
}

func TestDispatchDueHonorsBatchSize(t *testing.T) {
	repo := memory.NewReminderRepository()
	transport := &fakeTransport{}
	clk := &clock.Fixed{Time: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}

	d := NewReminderDispatcher(
		repo,
		transport,
		ReminderDispatcherConfig{
			BatchSize:    2,
			PollInterval: time.Minute,
			MaxRetries:   3,
		},
		clk,
		&logger.Logger{ZL: zerolog.Nop()},
		metrics.New("test"),
	)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		reminder := &model.NotificationLog{
			AppointmentID: uuid.New(),
			PatientID:     uuid.New(),
			ReminderType:  model.ReminderType1HourBefore,
			Title:         "Upcoming appointment reminder",
			Body:          "You have an appointment.",
			ScheduledFor:  clk.Time.Add(-time.Duration(i+1) * time.Minute),
		}
		require.NoError(t, repo.Upsert(ctx, reminder))
	}

	require.NoError(t, d.DispatchDue(ctx))
	assert.Equal(t, 2, transport.sentCount())

	require.NoError(t, d.DispatchDue(ctx))
	require.NoError(t, d.DispatchDue(ctx))
	assert.Equal(t, 5, transport.sentCount())
}

func TestDispatchDueSkipsCancelledMidFlight(t *testing.T) {
	repo := memory.NewReminderRepository()
	clk := &clock.Fixed{Time: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}

	reminder := seedReminder(t, repo, clk.Time.Add(-time.Minute))

	// Transport that cancels the reminder while the send is in progress.
	transport := &cancellingTransport{repo: repo, appointmentID: reminder.AppointmentID}
	d := newTestDispatcher(repo, transport, clk)

	require.NoError(t, d.DispatchDue(context.Background()))

	got, err := repo.Get(context.Background(), reminder.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderStatusCancelled, got.Status)
	assert.Nil(t, got.SentAt)
}

type cancellingTransport struct {
	repo          *memory.ReminderRepository
	appointmentID uuid.UUID
}

func (t *cancellingTransport) Send(ctx context.Context, patientID uuid.UUID, title, body string) error {
	_, err := t.repo.CancelForAppointment(ctx, t.appointmentID)
	return err
}

func TestStartStopsOnContextCancel(t *testing.T) {
	repo := memory.NewReminderRepository()
	transport := &fakeTransport{}
	clk := clock.New()

	d := NewReminderDispatcher(
		repo,
		transport,
		ReminderDispatcherConfig{
			BatchSize:    50,
			PollInterval: 10 * time.Millisecond,
			MaxRetries:   3,
		},
		clk,
		&logger.Logger{ZL: zerolog.Nop()},
		metrics.New("test"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on context cancellation")
	}
}

func TestNewReminderDispatcherValidatesConfig(t *testing.T) {
	repo := memory.NewReminderRepository()
	transport := &fakeTransport{}

	assert.Panics(t, func() {
		NewReminderDispatcher(repo, transport, ReminderDispatcherConfig{
			PollInterval: time.Minute,
			MaxRetries:   3,
		}, clock.New(), &logger.Logger{ZL: zerolog.Nop()}, metrics.New("test"))
	})
}
