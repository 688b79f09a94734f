package routing_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/repository/memory"
	"github.com/clinicflow/encounter-api/internal/service/event"
	"github.com/clinicflow/encounter-api/internal/service/routing"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
)

type fixture struct {
	svc        *routing.Service
	encounters *memory.EncounterRepository
	outbox     *memory.OutboxRepository
}

func newFixture() *fixture {
	encounters := memory.NewEncounterRepository()
	outbox := memory.NewOutboxRepository()
	return &fixture{
		svc:        routing.NewService(encounters, event.NewService(outbox), nil),
		encounters: encounters,
		outbox:     outbox,
	}
}

func (f *fixture) withDoctor(t *testing.T) *model.Encounter {
	t.Helper()
	enc := &model.Encounter{PatientID: uuid.New(), Status: model.EncounterStatusWithDoctor}
	require.NoError(t, f.encounters.Create(context.Background(), enc))
	return enc
}

func TestRouteTo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.withDoctor(t)

	enc, err := f.svc.RouteTo(ctx, enc.ID, model.DepartmentLab, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, model.EncounterStatusAtLab, enc.Status)
	require.NotNil(t, enc.CurrentDepartment)
	assert.Equal(t, model.DepartmentLab, *enc.CurrentDepartment)
	assert.NotNil(t, enc.LabOrderedAt)

	events := f.outbox.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventEncounterRouted, events[0].EventType)
}

func TestRouteSameDepartmentIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.withDoctor(t)
	actor := uuid.New()

	enc, err := f.svc.RouteTo(ctx, enc.ID, model.DepartmentLab, actor)
	require.NoError(t, err)
	version := enc.Version

	enc, err = f.svc.RouteTo(ctx, enc.ID, model.DepartmentLab, actor)
	require.NoError(t, err)
	assert.Equal(t, version, enc.Version)
	assert.Len(t, f.outbox.Events(), 1)
}

func TestRouteWhileRoutedConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.withDoctor(t)

	_, err := f.svc.RouteTo(ctx, enc.ID, model.DepartmentLab, uuid.New())
	require.NoError(t, err)

	_, err = f.svc.RouteTo(ctx, enc.ID, model.DepartmentImaging, uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	got, err := f.encounters.Get(ctx, enc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentDepartment)
	assert.Equal(t, model.DepartmentLab, *got.CurrentDepartment)
}

func TestRouteFromWrongStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := &model.Encounter{PatientID: uuid.New(), Status: model.EncounterStatusCheckedIn}
	require.NoError(t, f.encounters.Create(ctx, enc))

	_, err := f.svc.RouteTo(ctx, enc.ID, model.DepartmentLab, uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestRouteUnknownDepartment(t *testing.T) {
	f := newFixture()
	enc := f.withDoctor(t)

	_, err := f.svc.RouteTo(context.Background(), enc.ID, model.Department("cafeteria"), uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.Code(err))
}

func TestReturnFromDepartment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.withDoctor(t)

	_, err := f.svc.RouteTo(ctx, enc.ID, model.DepartmentPharmacy, uuid.New())
	require.NoError(t, err)

	enc, err = f.svc.ReturnFromDepartment(ctx, enc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EncounterStatusWithNurse, enc.Status)
	assert.Nil(t, enc.CurrentDepartment)
	assert.NotNil(t, enc.NurseReturnedAt)
	assert.NotNil(t, enc.PharmacyOrderedAt)

	events := f.outbox.Events()
	require.Len(t, events, 2)
	assert.Equal(t, model.EventEncounterReturned, events[1].EventType)
}

func TestReturnWithoutDepartmentIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.withDoctor(t)

	got, err := f.svc.ReturnFromDepartment(ctx, enc.ID)
	require.NoError(t, err)
	assert.Equal(t, enc.Version, got.Version)
	assert.Equal(t, model.EncounterStatusWithDoctor, got.Status)
	assert.Empty(t, f.outbox.Events())
}

func TestRouteClosedEncounterConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := &model.Encounter{PatientID: uuid.New(), Status: model.EncounterStatusCompleted}
	require.NoError(t, f.encounters.Create(ctx, enc))

	_, err := f.svc.RouteTo(ctx, enc.ID, model.DepartmentLab, uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}
