// Package memory holds map-backed repository implementations used by the
// service tests. They mirror the postgres semantics that the services depend
// on: Create initializes the row, UpdateTx enforces the version guard, and
// UpsertIfNewer only accepts strictly newer edit versions.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/repository"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
)

type EncounterRepository struct {
	mu         sync.Mutex
	encounters map[uuid.UUID]*model.Encounter
}

func NewEncounterRepository() *EncounterRepository {
	return &EncounterRepository{encounters: make(map[uuid.UUID]*model.Encounter)}
}

var _ repository.EncounterRepository = (*EncounterRepository)(nil)

func (r *EncounterRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

func (r *EncounterRepository) Create(ctx context.Context, enc *model.Encounter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	enc.ID = uuid.New()
	enc.Version = 1
	enc.CreatedAt = now
	enc.UpdatedAt = now
	enc.CheckedInAt = &now

	copied := *enc
	r.encounters[enc.ID] = &copied
	return nil
}

func (r *EncounterRepository) Get(ctx context.Context, id uuid.UUID) (*model.Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	enc, ok := r.encounters[id]
	if !ok {
		return nil, apperrors.NotFound("encounter", nil)
	}
	copied := *enc
	return &copied, nil
}

func (r *EncounterRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Encounter, error) {
	return r.Get(ctx, id)
}

func (r *EncounterRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, enc *model.Encounter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.encounters[enc.ID]
	if !ok {
		return apperrors.NotFound("encounter", nil)
	}
	if stored.Version != enc.Version {
		return apperrors.NewStaleState("encounter")
	}

	enc.Version++
	enc.UpdatedAt = time.Now()
	copied := *enc
	r.encounters[enc.ID] = &copied
	return nil
}

func (r *EncounterRepository) List(ctx context.Context, filters *model.EncounterFilters) ([]*model.Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Encounter
	for _, enc := range r.encounters {
		if filters != nil {
			if filters.Status != "" && enc.Status != filters.Status {
				continue
			}
			if filters.PatientID != nil && enc.PatientID != *filters.PatientID {
				continue
			}
			if filters.AssignedNurseID != nil &&
				(enc.AssignedNurseID == nil || *enc.AssignedNurseID != *filters.AssignedNurseID) {
				continue
			}
			if filters.AssignedDoctorID != nil &&
				(enc.AssignedDoctorID == nil || *enc.AssignedDoctorID != *filters.AssignedDoctorID) {
				continue
			}
		}
		copied := *enc
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type ResourceRepository struct {
	mu        sync.Mutex
	resources map[uuid.UUID]*model.Resource
}

func NewResourceRepository() *ResourceRepository {
	return &ResourceRepository{resources: make(map[uuid.UUID]*model.Resource)}
}

var _ repository.ResourceRepository = (*ResourceRepository)(nil)

func (r *ResourceRepository) Create(ctx context.Context, res *model.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	res.ID = uuid.New()
	res.IsAvailable = true
	res.CreatedAt = now
	res.UpdatedAt = now

	copied := *res
	r.resources[res.ID] = &copied
	return nil
}

func (r *ResourceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.resources[id]
	if !ok {
		return nil, apperrors.NotFound("resource", nil)
	}
	copied := *res
	return &copied, nil
}

func (r *ResourceRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Resource, error) {
	return r.Get(ctx, id)
}

func (r *ResourceRepository) SetAvailabilityTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.resources[id]
	if !ok {
		return apperrors.NotFound("resource", nil)
	}
	res.IsAvailable = available
	res.UpdatedAt = time.Now()
	return nil
}

func (r *ResourceRepository) List(ctx context.Context, kind model.ResourceKind, availableOnly bool) ([]*model.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Resource
	for _, res := range r.resources {
		if res.Kind != kind {
			continue
		}
		if availableOnly && !res.IsAvailable {
			continue
		}
		copied := *res
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

type sectionKey struct {
	encounterID uuid.UUID
	sectionID   string
}

type SectionRepository struct {
	mu       sync.Mutex
	sections map[sectionKey]*model.ClinicalSection
}

func NewSectionRepository() *SectionRepository {
	return &SectionRepository{sections: make(map[sectionKey]*model.ClinicalSection)}
}

var _ repository.SectionRepository = (*SectionRepository)(nil)

func (r *SectionRepository) UpsertIfNewer(ctx context.Context, section *model.ClinicalSection) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sectionKey{section.EncounterID, section.SectionID}
	section.UpdatedAt = time.Now()

	if stored, ok := r.sections[key]; ok && stored.LastEditVersion >= section.LastEditVersion {
		return false, nil
	}
	copied := *section
	r.sections[key] = &copied
	return true, nil
}

func (r *SectionRepository) Get(ctx context.Context, encounterID uuid.UUID, sectionID string) (*model.ClinicalSection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	section, ok := r.sections[sectionKey{encounterID, sectionID}]
	if !ok {
		return nil, apperrors.NotFound("section", nil)
	}
	copied := *section
	return &copied, nil
}

func (r *SectionRepository) GetAll(ctx context.Context, encounterID uuid.UUID) ([]*model.ClinicalSection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.ClinicalSection
	for key, section := range r.sections {
		if key.encounterID != encounterID {
			continue
		}
		copied := *section
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SectionID < out[j].SectionID })
	return out, nil
}

type AlertRepository struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*model.Alert
}

func NewAlertRepository() *AlertRepository {
	return &AlertRepository{alerts: make(map[uuid.UUID]*model.Alert)}
}

var _ repository.AlertRepository = (*AlertRepository)(nil)

func (r *AlertRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

func (r *AlertRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, alert *model.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert.ID = uuid.New()
	alert.IsRead = false
	alert.CreatedAt = time.Now()

	copied := *alert
	r.alerts[alert.ID] = &copied
	return nil
}

func (r *AlertRepository) Get(ctx context.Context, id uuid.UUID) (*model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok {
		return nil, apperrors.NotFound("alert", nil)
	}
	copied := *alert
	return &copied, nil
}

func (r *AlertRepository) MarkRead(ctx context.Context, id uuid.UUID, byUserID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok || alert.ToUserID != byUserID || alert.IsRead {
		return apperrors.NotFound("alert", nil)
	}
	now := time.Now()
	alert.IsRead = true
	alert.ReadAt = &now
	return nil
}

func (r *AlertRepository) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Alert
	for _, alert := range r.alerts {
		if alert.ToUserID != userID {
			continue
		}
		if unreadOnly && alert.IsRead {
			continue
		}
		copied := *alert
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *AlertRepository) ListUnreadOlderThan(ctx context.Context, alertType model.AlertType, cutoff time.Time) ([]*model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Alert
	for _, alert := range r.alerts {
		if alert.Type != alertType || alert.IsRead || alert.EscalatedAt != nil {
			continue
		}
		if !alert.CreatedAt.Before(cutoff) {
			continue
		}
		copied := *alert
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *AlertRepository) MarkEscalated(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok {
		return apperrors.NotFound("alert", nil)
	}
	if alert.EscalatedAt == nil {
		now := time.Now()
		alert.EscalatedAt = &now
	}
	return nil
}

type OutboxRepository struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)

func (r *OutboxRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()

	copied := *event
	r.events = append(r.events, &copied)
	return nil
}

func (r *OutboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.OutboxEvent
	for _, event := range r.events {
		if event.Status != model.OutboxStatusPending {
			continue
		}
		copied := *event
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string, retryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, event := range r.events {
		if event.ID != id {
			continue
		}
		event.Status = status
		event.ErrorMessage = errMsg
		event.RetryAt = retryAt
		if status == model.OutboxStatusPending {
			event.RetryCount++
		}
		return nil
	}
	return apperrors.NotFound("outbox event", nil)
}

// Events returns a snapshot of everything appended, newest last.
func (r *OutboxRepository) Events() []*model.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.OutboxEvent, 0, len(r.events))
	for _, event := range r.events {
		copied := *event
		out = append(out, &copied)
	}
	return out
}
