package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/repository"
	"github.com/clinicflow/encounter-api/pkg/metrics"
)

// Coordinator persists per-section note content under concurrent, possibly
// out-of-order delivery. It never locks: conflicts resolve by edit version,
// and losing a stale write is the accepted trade-off. Between two actors on
// the same section the last accepted write wins; no merge is attempted.
type Coordinator struct {
	repo     repository.SectionRepository
	versions *gocache.Cache
	metrics  *metrics.Metrics
}

func NewCoordinator(repo repository.SectionRepository, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		repo:     repo,
		versions: gocache.New(30*time.Minute, 10*time.Minute),
		metrics:  m,
	}
}

// SaveSection applies one coalesced save. The conditional upsert in the
// repository is the ordering authority; the version cache only short-circuits
// saves that are already known stale.
func (c *Coordinator) SaveSection(ctx context.Context, encounterID uuid.UUID, sectionID string, content string, editVersion int64, actorID uuid.UUID) (*model.SaveResult, error) {
	key := sectionKey(encounterID, sectionID)

	if cached, found := c.versions.Get(key); found {
		if stored := cached.(int64); editVersion <= stored {
			if c.metrics != nil {
				c.metrics.SectionSavesDiscarded.Inc()
			}
			return &model.SaveResult{Accepted: false, StoredVersion: stored}, nil
		}
	}

	section := &model.ClinicalSection{
		EncounterID:     encounterID,
		SectionID:       sectionID,
		Content:         content,
		LastEditVersion: editVersion,
		UpdatedBy:       actorID,
	}

	accepted, err := c.repo.UpsertIfNewer(ctx, section)
	if err != nil {
		return nil, fmt.Errorf("failed to save section: %w", err)
	}

	if accepted {
		c.versions.Set(key, editVersion, gocache.DefaultExpiration)
		if c.metrics != nil {
			c.metrics.SectionSavesAccepted.Inc()
		}
		return &model.SaveResult{Accepted: true, StoredVersion: editVersion}, nil
	}

	if c.metrics != nil {
		c.metrics.SectionSavesDiscarded.Inc()
	}

	stored := editVersion
	if current, err := c.repo.Get(ctx, encounterID, sectionID); err == nil {
		stored = current.LastEditVersion
		c.versions.Set(key, stored, gocache.DefaultExpiration)
	}
	return &model.SaveResult{Accepted: false, StoredVersion: stored}, nil
}

// GetSections returns every section of the encounter with the derived
// completed flag.
func (c *Coordinator) GetSections(ctx context.Context, encounterID uuid.UUID) ([]model.SectionView, error) {
	sections, err := c.repo.GetAll(ctx, encounterID)
	if err != nil {
		return nil, err
	}

	views := make([]model.SectionView, 0, len(sections))
	for _, s := range sections {
		views = append(views, s.View())
	}
	return views, nil
}

func sectionKey(encounterID uuid.UUID, sectionID string) string {
	return encounterID.String() + "/" + sectionID
}
