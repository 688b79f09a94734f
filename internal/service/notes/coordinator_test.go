package notes_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/encounter-api/internal/repository/memory"
	"github.com/clinicflow/encounter-api/internal/service/notes"
)

func newCoordinator() (*notes.Coordinator, *memory.SectionRepository) {
	repo := memory.NewSectionRepository()
	return notes.NewCoordinator(repo, nil), repo
}

func TestSaveSectionRoundTrip(t *testing.T) {
	coord, _ := newCoordinator()
	ctx := context.Background()
	encID := uuid.New()
	actor := uuid.New()

	result, err := coord.SaveSection(ctx, encID, "hpi", "fever", 1, actor)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, int64(1), result.StoredVersion)

	views, err := coord.GetSections(ctx, encID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "hpi", views[0].SectionID)
	assert.Equal(t, "fever", views[0].Content)
	assert.True(t, views[0].Completed)
}

func TestStaleSaveIsDiscarded(t *testing.T) {
	coord, repo := newCoordinator()
	ctx := context.Background()
	encID := uuid.New()
	actor := uuid.New()

	result, err := coord.SaveSection(ctx, encID, "hpi", "newer", 2, actor)
	require.NoError(t, err)
	require.True(t, result.Accepted)

	// A delayed delivery of an older edit must not clobber the newer write.
	result, err = coord.SaveSection(ctx, encID, "hpi", "older", 1, actor)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, int64(2), result.StoredVersion)

	stored, err := repo.Get(ctx, encID, "hpi")
	require.NoError(t, err)
	assert.Equal(t, "newer", stored.Content)
	assert.Equal(t, int64(2), stored.LastEditVersion)
}

func TestEqualVersionIsDiscarded(t *testing.T) {
	coord, repo := newCoordinator()
	ctx := context.Background()
	encID := uuid.New()
	actor := uuid.New()

	_, err := coord.SaveSection(ctx, encID, "exam", "first", 3, actor)
	require.NoError(t, err)

	result, err := coord.SaveSection(ctx, encID, "exam", "replay", 3, actor)
	require.NoError(t, err)
	assert.False(t, result.Accepted)

	stored, err := repo.Get(ctx, encID, "exam")
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Content)
}

func TestSectionsAreIndependent(t *testing.T) {
	coord, _ := newCoordinator()
	ctx := context.Background()
	encID := uuid.New()
	actor := uuid.New()

	_, err := coord.SaveSection(ctx, encID, "hpi", "fever", 5, actor)
	require.NoError(t, err)

	// A low version on another section is not stale; versions are per section.
	result, err := coord.SaveSection(ctx, encID, "plan", "rest", 1, actor)
	require.NoError(t, err)
	assert.True(t, result.Accepted)

	views, err := coord.GetSections(ctx, encID)
	require.NoError(t, err)
	assert.Len(t, views, 2)
}

func TestCompletedIsDerivedFromContent(t *testing.T) {
	coord, _ := newCoordinator()
	ctx := context.Background()
	encID := uuid.New()
	actor := uuid.New()

	_, err := coord.SaveSection(ctx, encID, "ros", "   \n\t", 1, actor)
	require.NoError(t, err)
	_, err = coord.SaveSection(ctx, encID, "plan", "rest and fluids", 1, actor)
	require.NoError(t, err)

	views, err := coord.GetSections(ctx, encID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := map[string]bool{}
	for _, v := range views {
		byID[v.SectionID] = v.Completed
	}
	assert.True(t, byID["plan"])
	assert.False(t, byID["ros"])
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	coord, repo := newCoordinator()
	deb := notes.NewDebouncer(coord, 30*time.Millisecond, nil)
	encID := uuid.New()
	actor := uuid.New()

	deb.Schedule(encID, "hpi", "f", 1, actor)
	deb.Schedule(encID, "hpi", "fe", 2, actor)
	deb.Schedule(encID, "hpi", "fever", 3, actor)

	require.Eventually(t, func() bool {
		stored, err := repo.Get(context.Background(), encID, "hpi")
		return err == nil && stored.LastEditVersion == 3
	}, time.Second, 10*time.Millisecond)

	stored, err := repo.Get(context.Background(), encID, "hpi")
	require.NoError(t, err)
	assert.Equal(t, "fever", stored.Content)
}

func TestDebouncerFlush(t *testing.T) {
	coord, repo := newCoordinator()
	deb := notes.NewDebouncer(coord, time.Hour, nil)
	ctx := context.Background()
	encID := uuid.New()
	otherEnc := uuid.New()
	actor := uuid.New()

	deb.Schedule(encID, "hpi", "fever", 1, actor)
	deb.Schedule(encID, "plan", "rest", 1, actor)
	deb.Schedule(otherEnc, "hpi", "cough", 1, actor)

	flushed := deb.Flush(ctx, encID)
	assert.Equal(t, 2, flushed)

	stored, err := repo.Get(ctx, encID, "hpi")
	require.NoError(t, err)
	assert.Equal(t, "fever", stored.Content)

	// Drafts of other encounters stay pending.
	_, err = repo.Get(ctx, otherEnc, "hpi")
	require.Error(t, err)

	assert.Equal(t, 0, deb.Flush(ctx, encID))
}

func TestDebouncerKeepsNewerPendingDraft(t *testing.T) {
	coord, repo := newCoordinator()
	deb := notes.NewDebouncer(coord, 30*time.Millisecond, nil)
	encID := uuid.New()
	actor := uuid.New()

	// Slow network: the older edit arrives after the newer one.
	deb.Schedule(encID, "hpi", "newer edit", 2, actor)
	deb.Schedule(encID, "hpi", "older edit", 1, actor)

	require.Eventually(t, func() bool {
		_, err := repo.Get(context.Background(), encID, "hpi")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	stored, err := repo.Get(context.Background(), encID, "hpi")
	require.NoError(t, err)
	assert.Equal(t, "newer edit", stored.Content)
	assert.Equal(t, int64(2), stored.LastEditVersion)
}

func TestDebouncerDropsEqualVersionDraft(t *testing.T) {
	coord, repo := newCoordinator()
	deb := notes.NewDebouncer(coord, 30*time.Millisecond, nil)
	ctx := context.Background()
	encID := uuid.New()
	actor := uuid.New()

	deb.Schedule(encID, "plan", "first delivery", 1, actor)
	deb.Schedule(encID, "plan", "replayed delivery", 1, actor)

	require.Eventually(t, func() bool {
		_, err := repo.Get(ctx, encID, "plan")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	stored, err := repo.Get(ctx, encID, "plan")
	require.NoError(t, err)
	assert.Equal(t, "first delivery", stored.Content)
}

func TestDebouncerLateFireLosesToNewerWrite(t *testing.T) {
	coord, repo := newCoordinator()
	deb := notes.NewDebouncer(coord, 30*time.Millisecond, nil)
	ctx := context.Background()
	encID := uuid.New()
	actor := uuid.New()

	deb.Schedule(encID, "hpi", "stale draft", 1, actor)

	// A direct save with a newer version lands before the timer fires.
	result, err := coord.SaveSection(ctx, encID, "hpi", "committed", 2, actor)
	require.NoError(t, err)
	require.True(t, result.Accepted)

	time.Sleep(100 * time.Millisecond)

	stored, err := repo.Get(ctx, encID, "hpi")
	require.NoError(t, err)
	assert.Equal(t, "committed", stored.Content)
	assert.Equal(t, int64(2), stored.LastEditVersion)
}

func TestDebouncerStopFlushesEverything(t *testing.T) {
	coord, repo := newCoordinator()
	deb := notes.NewDebouncer(coord, time.Hour, nil)
	ctx := context.Background()
	encA := uuid.New()
	encB := uuid.New()
	actor := uuid.New()

	deb.Schedule(encA, "hpi", "fever", 1, actor)
	deb.Schedule(encB, "plan", "rest", 1, actor)

	deb.Stop(ctx)

	_, err := repo.Get(ctx, encA, "hpi")
	require.NoError(t, err)
	_, err = repo.Get(ctx, encB, "plan")
	require.NoError(t, err)
}
