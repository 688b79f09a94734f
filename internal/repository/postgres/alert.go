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

func (r *alertRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, alert *model.Alert) error {
	query := `
		INSERT INTO alerts (
			id, encounter_id, from_user_id, to_user_id, type, message,
			is_read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	alert.ID = uuid.New()
	alert.IsRead = false
	alert.CreatedAt = time.Now()

	_, err := tx.ExecContext(ctx, query,
		alert.ID,
		alert.EncounterID,
		alert.FromUserID,
		alert.ToUserID,
		alert.Type,
		alert.Message,
		alert.IsRead,
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *alertRepository) Get(ctx context.Context, id uuid.UUID) (*model.Alert, error) {
	query := `
		SELECT id, encounter_id, from_user_id, to_user_id, type, message,
			   is_read, created_at, read_at, escalated_at
		FROM alerts
		WHERE id = $1
	`
	var alert model.Alert
	err := r.db.GetContext(ctx, &alert, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("alert", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &alert, nil
}

// MarkRead flips is_read once; only the recipient may mark their alert.
func (r *alertRepository) MarkRead(ctx context.Context, id uuid.UUID, byUserID uuid.UUID) error {
	query := `
		UPDATE alerts
		SET is_read = true, read_at = $1
		WHERE id = $2 AND to_user_id = $3 AND is_read = false
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id, byUserID)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("alert", nil)
	}

	return nil
}

func (r *alertRepository) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*model.Alert, error) {
	query := `
		SELECT id, encounter_id, from_user_id, to_user_id, type, message,
			   is_read, created_at, read_at, escalated_at
		FROM alerts
		WHERE to_user_id = $1
	`
	if unreadOnly {
		query += " AND is_read = false"
	}
	query += " ORDER BY created_at DESC"

	var alerts []*model.Alert
	err := r.db.SelectContext(ctx, &alerts, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (r *alertRepository) ListUnreadOlderThan(ctx context.Context, alertType model.AlertType, cutoff time.Time) ([]*model.Alert, error) {
	query := `
		SELECT id, encounter_id, from_user_id, to_user_id, type, message,
			   is_read, created_at, read_at, escalated_at
		FROM alerts
		WHERE type = $1 AND is_read = false AND escalated_at IS NULL AND created_at < $2
		ORDER BY created_at ASC
	`
	var alerts []*model.Alert
	err := r.db.SelectContext(ctx, &alerts, query, alertType, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale alerts: %w", err)
	}
	return alerts, nil
}

func (r *alertRepository) MarkEscalated(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE alerts
		SET escalated_at = $1
		WHERE id = $2 AND escalated_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to mark alert escalated: %w", err)
	}
	return nil
}
