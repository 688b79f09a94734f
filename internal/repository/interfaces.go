package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicflow/encounter-api/internal/model"
)

// TxRunner executes a function inside a single database transaction. Every
// multi-row invariant in the engine (status + resource, release + acquire)
// goes through one of these.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

// All repository interfaces in one file
type (
	// EncounterRepository owns the encounter row. Methods suffixed Tx expect
	// the caller to hold the transaction; GetForUpdateTx takes the row lock
	// that serializes concurrent transitions.
	EncounterRepository interface {
		TxRunner
		Create(ctx context.Context, encounter *model.Encounter) error
		Get(ctx context.Context, id uuid.UUID) (*model.Encounter, error)
		GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Encounter, error)
		UpdateTx(ctx context.Context, tx *sqlx.Tx, encounter *model.Encounter) error
		List(ctx context.Context, filters *model.EncounterFilters) ([]*model.Encounter, error)
	}

	// ResourceRepository owns room/bed rows. Availability flips only happen
	// under the row lock taken by GetForUpdateTx.
	ResourceRepository interface {
		Create(ctx context.Context, resource *model.Resource) error
		Get(ctx context.Context, id uuid.UUID) (*model.Resource, error)
		GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Resource, error)
		SetAvailabilityTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, available bool) error
		List(ctx context.Context, kind model.ResourceKind, availableOnly bool) ([]*model.Resource, error)
	}

	SectionRepository interface {
		// UpsertIfNewer accepts the write only when the incoming edit version
		// exceeds the stored one; reports whether any row changed.
		UpsertIfNewer(ctx context.Context, section *model.ClinicalSection) (bool, error)
		Get(ctx context.Context, encounterID uuid.UUID, sectionID string) (*model.ClinicalSection, error)
		GetAll(ctx context.Context, encounterID uuid.UUID) ([]*model.ClinicalSection, error)
	}

	AlertRepository interface {
		TxRunner
		CreateTx(ctx context.Context, tx *sqlx.Tx, alert *model.Alert) error
		Get(ctx context.Context, id uuid.UUID) (*model.Alert, error)
		MarkRead(ctx context.Context, id uuid.UUID, byUserID uuid.UUID) error
		List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*model.Alert, error)
		ListUnreadOlderThan(ctx context.Context, alertType model.AlertType, cutoff time.Time) ([]*model.Alert, error)
		MarkEscalated(ctx context.Context, id uuid.UUID) error
	}

	OutboxRepository interface {
		CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string, retryAt *time.Time) error
	}
)
