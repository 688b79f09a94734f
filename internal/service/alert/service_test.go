package alert_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/repository/memory"
	"github.com/clinicflow/encounter-api/internal/service/alert"
	"github.com/clinicflow/encounter-api/internal/service/event"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
)

type fixture struct {
	svc    *alert.Service
	outbox *memory.OutboxRepository
}

func newFixture() *fixture {
	outbox := memory.NewOutboxRepository()
	return &fixture{
		svc:    alert.NewService(memory.NewAlertRepository(), event.NewService(outbox), nil),
		outbox: outbox,
	}
}

func (f *fixture) send(t *testing.T, from, to uuid.UUID, alertType model.AlertType, msg string) *model.Alert {
	t.Helper()
	a, err := f.svc.Send(context.Background(), &model.SendAlertRequest{
		EncounterID: uuid.New(),
		FromUserID:  from,
		ToUserID:    to,
		Type:        alertType,
		Message:     msg,
	})
	require.NoError(t, err)
	return a
}

func TestSendAndPoll(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	nurse := uuid.New()
	doctor := uuid.New()

	sent := f.send(t, nurse, doctor, model.AlertTypePatientReady, "patient ready in room 3")
	assert.False(t, sent.IsRead)

	unread, err := f.svc.List(ctx, doctor, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, sent.ID, unread[0].ID)
	assert.Equal(t, "patient ready in room 3", unread[0].Message)

	// The sender's own queue stays empty.
	mine, err := f.svc.List(ctx, nurse, false)
	require.NoError(t, err)
	assert.Empty(t, mine)

	events := f.outbox.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAlertCreated, events[0].EventType)
}

func TestMarkRead(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	nurse := uuid.New()
	doctor := uuid.New()

	sent := f.send(t, nurse, doctor, model.AlertTypeResultsReady, "lab results back")

	require.NoError(t, f.svc.MarkRead(ctx, sent.ID, doctor))

	unread, err := f.svc.List(ctx, doctor, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := f.svc.List(ctx, doctor, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsRead)
	assert.NotNil(t, all[0].ReadAt)
}

func TestMarkReadByWrongUser(t *testing.T) {
	f := newFixture()
	nurse := uuid.New()
	doctor := uuid.New()

	sent := f.send(t, nurse, doctor, model.AlertTypeAssistance, "need a hand")

	err := f.svc.MarkRead(context.Background(), sent.ID, nurse)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMarkReadTwice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	doctor := uuid.New()

	sent := f.send(t, uuid.New(), doctor, model.AlertTypeAssistance, "need a hand")

	require.NoError(t, f.svc.MarkRead(ctx, sent.ID, doctor))
	err := f.svc.MarkRead(ctx, sent.ID, doctor)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDuplicateSendsAreDistinct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	nurse := uuid.New()
	doctor := uuid.New()

	first := f.send(t, nurse, doctor, model.AlertTypeUrgent, "bp dropping")
	second := f.send(t, nurse, doctor, model.AlertTypeUrgent, "bp dropping")
	assert.NotEqual(t, first.ID, second.ID)

	unread, err := f.svc.List(ctx, doctor, true)
	require.NoError(t, err)
	assert.Len(t, unread, 2)
}

func TestUnreadUrgentEscalation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	doctor := uuid.New()

	urgent := f.send(t, uuid.New(), doctor, model.AlertTypeUrgent, "bp dropping")
	f.send(t, uuid.New(), doctor, model.AlertTypeAssistance, "routine")

	cutoff := time.Now().Add(time.Second)
	stale, err := f.svc.UnreadUrgentOlderThan(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, urgent.ID, stale[0].ID)

	require.NoError(t, f.svc.MarkEscalated(ctx, urgent.ID))

	// An escalated alert is not picked up again.
	stale, err = f.svc.UnreadUrgentOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestReadUrgentIsNotEscalated(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	doctor := uuid.New()

	urgent := f.send(t, uuid.New(), doctor, model.AlertTypeUrgent, "bp dropping")
	require.NoError(t, f.svc.MarkRead(ctx, urgent.ID, doctor))

	stale, err := f.svc.UnreadUrgentOlderThan(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, stale)
}
