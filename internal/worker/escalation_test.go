package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/repository/memory"
	"github.com/clinicflow/encounter-api/internal/service/alert"
	"github.com/clinicflow/encounter-api/internal/service/event"
)

type fakeEmail struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakeEmail) SendCustom(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return context.DeadlineExceeded
	}
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeEmail) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newAlertService() *alert.Service {
	return alert.NewService(memory.NewAlertRepository(), event.NewService(memory.NewOutboxRepository()), nil)
}

func sendUrgent(t *testing.T, svc *alert.Service) *model.Alert {
	t.Helper()
	a, err := svc.Send(context.Background(), &model.SendAlertRequest{
		EncounterID: uuid.New(),
		FromUserID:  uuid.New(),
		ToUserID:    uuid.New(),
		Type:        model.AlertTypeUrgent,
		Message:     "bp dropping",
	})
	require.NoError(t, err)
	return a
}

func TestEscalateEmailsOnce(t *testing.T) {
	svc := newAlertService()
	emails := &fakeEmail{}
	w := NewEscalationWorker(svc, emails, "duty-desk@clinic.example", time.Millisecond, time.Minute)
	ctx := context.Background()

	sendUrgent(t, svc)
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, w.escalate(ctx))
	assert.Equal(t, 1, emails.count())

	// A second pass finds nothing left to escalate.
	require.NoError(t, w.escalate(ctx))
	assert.Equal(t, 1, emails.count())
}

func TestEscalateSkipsRecentAlerts(t *testing.T) {
	svc := newAlertService()
	emails := &fakeEmail{}
	w := NewEscalationWorker(svc, emails, "duty-desk@clinic.example", time.Hour, time.Minute)

	sendUrgent(t, svc)

	require.NoError(t, w.escalate(context.Background()))
	assert.Equal(t, 0, emails.count())
}

func TestEscalateRetriesAfterEmailFailure(t *testing.T) {
	svc := newAlertService()
	emails := &fakeEmail{fail: true}
	w := NewEscalationWorker(svc, emails, "duty-desk@clinic.example", time.Millisecond, time.Minute)
	ctx := context.Background()

	sendUrgent(t, svc)
	time.Sleep(5 * time.Millisecond)

	// The failed send must not mark the alert escalated.
	require.NoError(t, w.escalate(ctx))
	assert.Equal(t, 0, emails.count())

	emails.mu.Lock()
	emails.fail = false
	emails.mu.Unlock()

	require.NoError(t, w.escalate(ctx))
	assert.Equal(t, 1, emails.count())
}
