package allocator_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/repository/memory"
	"github.com/clinicflow/encounter-api/internal/service/allocator"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
)

type fixture struct {
	svc        *allocator.Service
	encounters *memory.EncounterRepository
	resources  *memory.ResourceRepository
}

func newFixture() *fixture {
	encounters := memory.NewEncounterRepository()
	resources := memory.NewResourceRepository()
	return &fixture{
		svc:        allocator.NewService(encounters, resources, nil),
		encounters: encounters,
		resources:  resources,
	}
}

func (f *fixture) newEncounter(t *testing.T) *model.Encounter {
	t.Helper()
	enc := &model.Encounter{PatientID: uuid.New(), Status: model.EncounterStatusCheckedIn}
	require.NoError(t, f.encounters.Create(context.Background(), enc))
	return enc
}

func (f *fixture) seed(t *testing.T, identifier string, kind model.ResourceKind) *model.Resource {
	t.Helper()
	res, err := f.svc.SeedResource(context.Background(), &model.CreateResourceRequest{
		Identifier: identifier,
		Kind:       kind,
	})
	require.NoError(t, err)
	assert.True(t, res.IsAvailable)
	return res
}

func (f *fixture) available(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	res, err := f.resources.Get(context.Background(), id)
	require.NoError(t, err)
	return res.IsAvailable
}

func TestAcquireRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.newEncounter(t)
	room := f.seed(t, "room-1", model.ResourceKindRoom)

	enc, err := f.svc.Acquire(ctx, enc.ID, room.ID, model.ResourceKindRoom)
	require.NoError(t, err)
	require.NotNil(t, enc.RoomID)
	assert.Equal(t, room.ID, *enc.RoomID)
	assert.NotNil(t, enc.RoomAssignedAt)
	assert.False(t, f.available(t, room.ID))
}

func TestAcquireHeldRoomConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first := f.newEncounter(t)
	second := f.newEncounter(t)
	room := f.seed(t, "room-1", model.ResourceKindRoom)

	_, err := f.svc.Acquire(ctx, first.ID, room.ID, model.ResourceKindRoom)
	require.NoError(t, err)

	_, err = f.svc.Acquire(ctx, second.ID, room.ID, model.ResourceKindRoom)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	// The loser walked away with nothing bound.
	got, err := f.encounters.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RoomID)
}

func TestAcquireIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.newEncounter(t)
	room := f.seed(t, "room-1", model.ResourceKindRoom)

	enc, err := f.svc.Acquire(ctx, enc.ID, room.ID, model.ResourceKindRoom)
	require.NoError(t, err)
	version := enc.Version

	enc, err = f.svc.Acquire(ctx, enc.ID, room.ID, model.ResourceKindRoom)
	require.NoError(t, err)
	assert.Equal(t, version, enc.Version)
}

func TestAcquireSecondRoomConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.newEncounter(t)
	roomA := f.seed(t, "room-1", model.ResourceKindRoom)
	roomB := f.seed(t, "room-2", model.ResourceKindRoom)

	_, err := f.svc.Acquire(ctx, enc.ID, roomA.ID, model.ResourceKindRoom)
	require.NoError(t, err)

	_, err = f.svc.Acquire(ctx, enc.ID, roomB.ID, model.ResourceKindRoom)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.True(t, f.available(t, roomB.ID))
}

func TestAcquireKindMismatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.newEncounter(t)
	bed := f.seed(t, "bed-1", model.ResourceKindBed)

	_, err := f.svc.Acquire(ctx, enc.ID, bed.ID, model.ResourceKindRoom)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.Code(err))
}

func TestRoomAndBedAreIndependent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.newEncounter(t)
	room := f.seed(t, "room-1", model.ResourceKindRoom)
	bed := f.seed(t, "bed-1", model.ResourceKindBed)

	_, err := f.svc.Acquire(ctx, enc.ID, room.ID, model.ResourceKindRoom)
	require.NoError(t, err)
	enc, err = f.svc.Acquire(ctx, enc.ID, bed.ID, model.ResourceKindBed)
	require.NoError(t, err)

	require.NotNil(t, enc.RoomID)
	require.NotNil(t, enc.BedID)
	assert.Equal(t, room.ID, *enc.RoomID)
	assert.Equal(t, bed.ID, *enc.BedID)
}

func TestReassign(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.newEncounter(t)
	old := f.seed(t, "room-1", model.ResourceKindRoom)
	next := f.seed(t, "room-2", model.ResourceKindRoom)

	_, err := f.svc.Acquire(ctx, enc.ID, old.ID, model.ResourceKindRoom)
	require.NoError(t, err)

	enc, err = f.svc.Reassign(ctx, enc.ID, next.ID, model.ResourceKindRoom)
	require.NoError(t, err)
	require.NotNil(t, enc.RoomID)
	assert.Equal(t, next.ID, *enc.RoomID)
	assert.True(t, f.available(t, old.ID))
	assert.False(t, f.available(t, next.ID))
}

func TestReassignToUnavailableRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.newEncounter(t)
	other := f.newEncounter(t)
	mine := f.seed(t, "room-1", model.ResourceKindRoom)
	taken := f.seed(t, "room-2", model.ResourceKindRoom)

	_, err := f.svc.Acquire(ctx, enc.ID, mine.ID, model.ResourceKindRoom)
	require.NoError(t, err)
	_, err = f.svc.Acquire(ctx, other.ID, taken.ID, model.ResourceKindRoom)
	require.NoError(t, err)

	_, err = f.svc.Reassign(ctx, enc.ID, taken.ID, model.ResourceKindRoom)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	// The held room was not dropped on the failed swap.
	got, err := f.encounters.Get(ctx, enc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RoomID)
	assert.Equal(t, mine.ID, *got.RoomID)
	assert.False(t, f.available(t, mine.ID))
}

func TestReassignWithoutHolding(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.newEncounter(t)
	room := f.seed(t, "room-1", model.ResourceKindRoom)

	_, err := f.svc.Reassign(ctx, enc.ID, room.ID, model.ResourceKindRoom)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestReleaseIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.newEncounter(t)
	room := f.seed(t, "room-1", model.ResourceKindRoom)

	_, err := f.svc.Acquire(ctx, enc.ID, room.ID, model.ResourceKindRoom)
	require.NoError(t, err)

	enc, err = f.svc.Release(ctx, enc.ID, model.ResourceKindRoom)
	require.NoError(t, err)
	assert.Nil(t, enc.RoomID)
	assert.True(t, f.available(t, room.ID))

	// A duplicate release call changes nothing.
	enc, err = f.svc.Release(ctx, enc.ID, model.ResourceKindRoom)
	require.NoError(t, err)
	assert.Nil(t, enc.RoomID)
}

func TestAcquireOnClosedEncounter(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	room := f.seed(t, "room-1", model.ResourceKindRoom)

	enc := &model.Encounter{PatientID: uuid.New(), Status: model.EncounterStatusCancelled}
	require.NoError(t, f.encounters.Create(ctx, enc))

	_, err := f.svc.Acquire(ctx, enc.ID, room.ID, model.ResourceKindRoom)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestListResources(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	enc := f.newEncounter(t)
	roomA := f.seed(t, "room-1", model.ResourceKindRoom)
	f.seed(t, "room-2", model.ResourceKindRoom)
	f.seed(t, "bed-1", model.ResourceKindBed)

	_, err := f.svc.Acquire(ctx, enc.ID, roomA.ID, model.ResourceKindRoom)
	require.NoError(t, err)

	all, err := f.svc.ListResources(ctx, model.ResourceKindRoom, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	free, err := f.svc.ListResources(ctx, model.ResourceKindRoom, true)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, "room-2", free[0].Identifier)
}
