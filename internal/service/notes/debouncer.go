package notes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clinicflow/encounter-api/pkg/metrics"
)

type draft struct {
	encounterID uuid.UUID
	sectionID   string
	content     string
	editVersion int64
	actorID     uuid.UUID
	timer       *time.Timer
}

// Debouncer coalesces keystroke bursts on a section into one save after a
// quiescence window. Each pending draft carries its edit version, and the
// fired save still goes through the coordinator's version comparison, so a
// timer that outlives a newer accepted write changes nothing when it fires.
type Debouncer struct {
	coordinator *Coordinator
	window      time.Duration
	metrics     *metrics.Metrics

	mu      sync.Mutex
	pending map[string]*draft
}

func NewDebouncer(coordinator *Coordinator, window time.Duration, m *metrics.Metrics) *Debouncer {
	if window <= 0 {
		window = 1500 * time.Millisecond
	}
	return &Debouncer{
		coordinator: coordinator,
		window:      window,
		metrics:     m,
		pending:     make(map[string]*draft),
	}
}

// Schedule replaces the pending draft for the section and restarts the
// quiescence window. A draft older than the one already pending is dropped;
// out-of-order delivery must not displace a newer edit.
func (d *Debouncer) Schedule(encounterID uuid.UUID, sectionID string, content string, editVersion int64, actorID uuid.UUID) {
	key := sectionKey(encounterID, sectionID)

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.pending[key]; ok {
		if existing.editVersion >= editVersion {
			if d.metrics != nil {
				d.metrics.SectionSavesDiscarded.Inc()
			}
			return
		}
		existing.timer.Stop()
	} else if d.metrics != nil {
		d.metrics.PendingDrafts.Inc()
	}

	dr := &draft{
		encounterID: encounterID,
		sectionID:   sectionID,
		content:     content,
		editVersion: editVersion,
		actorID:     actorID,
	}
	dr.timer = time.AfterFunc(d.window, func() {
		d.fire(key)
	})
	d.pending[key] = dr
}

// Flush forces every pending draft for the encounter through immediately.
// Called when the editor navigates away, so an edit-then-navigate never
// silently loses the last burst.
func (d *Debouncer) Flush(ctx context.Context, encounterID uuid.UUID) int {
	d.mu.Lock()
	var drafts []*draft
	for key, dr := range d.pending {
		if dr.encounterID != encounterID {
			continue
		}
		dr.timer.Stop()
		delete(d.pending, key)
		drafts = append(drafts, dr)
	}
	if d.metrics != nil {
		d.metrics.PendingDrafts.Sub(float64(len(drafts)))
	}
	d.mu.Unlock()

	for _, dr := range drafts {
		d.save(ctx, dr)
	}
	return len(drafts)
}

// Stop flushes everything still pending; used at shutdown.
func (d *Debouncer) Stop(ctx context.Context) {
	d.mu.Lock()
	var drafts []*draft
	for key, dr := range d.pending {
		dr.timer.Stop()
		delete(d.pending, key)
		drafts = append(drafts, dr)
	}
	if d.metrics != nil {
		d.metrics.PendingDrafts.Sub(float64(len(drafts)))
	}
	d.mu.Unlock()

	for _, dr := range drafts {
		d.save(ctx, dr)
	}
}

func (d *Debouncer) fire(key string) {
	d.mu.Lock()
	dr, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
		if d.metrics != nil {
			d.metrics.PendingDrafts.Dec()
		}
	}
	d.mu.Unlock()

	if !ok {
		// Flushed or replaced before the timer fired.
		return
	}
	d.save(context.Background(), dr)
}

func (d *Debouncer) save(ctx context.Context, dr *draft) {
	result, err := d.coordinator.SaveSection(ctx, dr.encounterID, dr.sectionID, dr.content, dr.editVersion, dr.actorID)
	if err != nil {
		log.Error().Err(err).
			Str("encounter_id", dr.encounterID.String()).
			Str("section_id", dr.sectionID).
			Msg("debounced save failed")
		return
	}
	if !result.Accepted {
		log.Debug().
			Str("encounter_id", dr.encounterID.String()).
			Str("section_id", dr.sectionID).
			Int64("edit_version", dr.editVersion).
			Int64("stored_version", result.StoredVersion).
			Msg("debounced save discarded as stale")
	}
}
