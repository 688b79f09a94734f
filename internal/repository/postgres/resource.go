package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicflow/encounter-api/internal/model"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
)

func (r *resourceRepository) Create(ctx context.Context, resource *model.Resource) error {
	query := `
		INSERT INTO resources (
			id, identifier, kind, is_available, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	resource.ID = uuid.New()
	resource.IsAvailable = true
	resource.CreatedAt = time.Now()
	resource.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		resource.ID,
		resource.Identifier,
		resource.Kind,
		resource.IsAvailable,
		resource.CreatedAt,
		resource.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	return nil
}

func (r *resourceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	query := `
		SELECT id, identifier, kind, is_available, created_at, updated_at
		FROM resources
		WHERE id = $1
	`
	var resource model.Resource
	err := r.db.GetContext(ctx, &resource, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("resource", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return &resource, nil
}

// GetForUpdateTx locks the resource row so two simultaneous acquires of the
// same room cannot both see it available.
func (r *resourceRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Resource, error) {
	query := `
		SELECT id, identifier, kind, is_available, created_at, updated_at
		FROM resources
		WHERE id = $1
		FOR UPDATE
	`
	var resource model.Resource
	err := tx.GetContext(ctx, &resource, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("resource", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock resource: %w", err)
	}
	return &resource, nil
}

func (r *resourceRepository) SetAvailabilityTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, available bool) error {
	query := `
		UPDATE resources
		SET is_available = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := tx.ExecContext(ctx, query, available, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set resource availability: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("resource", nil)
	}

	return nil
}

func (r *resourceRepository) List(ctx context.Context, kind model.ResourceKind, availableOnly bool) ([]*model.Resource, error) {
	query := `
		SELECT id, identifier, kind, is_available, created_at, updated_at
		FROM resources
		WHERE kind = $1
	`
	if availableOnly {
		query += " AND is_available = true"
	}
	query += " ORDER BY identifier ASC"

	var resources []*model.Resource
	err := r.db.SelectContext(ctx, &resources, query, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, nil
}
