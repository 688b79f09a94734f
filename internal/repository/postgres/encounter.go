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

const encounterColumns = `
	id, patient_id, status, version, room_id, bed_id, current_department,
	assigned_nurse_id, assigned_doctor_id,
	checked_in_at, room_assigned_at, vitals_completed_at, nurse_started_at,
	doctor_waiting_at, doctor_started_at, lab_ordered_at, imaging_ordered_at,
	pharmacy_ordered_at, nurse_returned_at, ready_for_checkout_at,
	completed_at, cancelled_at, created_at, updated_at
`

func (r *encounterRepository) Create(ctx context.Context, encounter *model.Encounter) error {
	query := `
		INSERT INTO encounters (
			id, patient_id, status, version, checked_in_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	encounter.ID = uuid.New()
	encounter.Version = 1
	now := time.Now()
	encounter.CheckedInAt = &now
	encounter.CreatedAt = now
	encounter.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		encounter.ID,
		encounter.PatientID,
		encounter.Status,
		encounter.Version,
		encounter.CheckedInAt,
		encounter.CreatedAt,
		encounter.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create encounter: %w", err)
	}
	return nil
}

func (r *encounterRepository) Get(ctx context.Context, id uuid.UUID) (*model.Encounter, error) {
	query := `SELECT ` + encounterColumns + ` FROM encounters WHERE id = $1`

	var encounter model.Encounter
	err := r.db.GetContext(ctx, &encounter, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("encounter", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get encounter: %w", err)
	}
	return &encounter, nil
}

// GetForUpdateTx takes the row lock that serializes concurrent transitions on
// the same encounter for the lifetime of the transaction.
func (r *encounterRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Encounter, error) {
	query := `SELECT ` + encounterColumns + ` FROM encounters WHERE id = $1 FOR UPDATE`

	var encounter model.Encounter
	err := tx.GetContext(ctx, &encounter, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("encounter", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock encounter: %w", err)
	}
	return &encounter, nil
}

// UpdateTx writes the full encounter row guarded by the version the caller
// read. Zero rows affected means another writer committed first.
func (r *encounterRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, encounter *model.Encounter) error {
	query := `
		UPDATE encounters SET
			status = $1, version = version + 1, room_id = $2, bed_id = $3,
			current_department = $4, assigned_nurse_id = $5, assigned_doctor_id = $6,
			room_assigned_at = $7, vitals_completed_at = $8, nurse_started_at = $9,
			doctor_waiting_at = $10, doctor_started_at = $11, lab_ordered_at = $12,
			imaging_ordered_at = $13, pharmacy_ordered_at = $14, nurse_returned_at = $15,
			ready_for_checkout_at = $16, completed_at = $17, cancelled_at = $18,
			updated_at = $19
		WHERE id = $20 AND version = $21
	`
	encounter.UpdatedAt = time.Now()

	result, err := tx.ExecContext(ctx, query,
		encounter.Status,
		encounter.RoomID,
		encounter.BedID,
		encounter.CurrentDepartment,
		encounter.AssignedNurseID,
		encounter.AssignedDoctorID,
		encounter.RoomAssignedAt,
		encounter.VitalsCompletedAt,
		encounter.NurseStartedAt,
		encounter.DoctorWaitingAt,
		encounter.DoctorStartedAt,
		encounter.LabOrderedAt,
		encounter.ImagingOrderedAt,
		encounter.PharmacyOrderedAt,
		encounter.NurseReturnedAt,
		encounter.ReadyForCheckoutAt,
		encounter.CompletedAt,
		encounter.CancelledAt,
		encounter.UpdatedAt,
		encounter.ID,
		encounter.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update encounter: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewStaleState("encounter")
	}

	encounter.Version++
	return nil
}

func (r *encounterRepository) List(ctx context.Context, filters *model.EncounterFilters) ([]*model.Encounter, error) {
	query := `SELECT ` + encounterColumns + ` FROM encounters WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filters.Status)
			argCount++
		}
		if filters.AssignedNurseID != nil {
			query += fmt.Sprintf(" AND assigned_nurse_id = $%d", argCount)
			args = append(args, *filters.AssignedNurseID)
			argCount++
		}
		if filters.AssignedDoctorID != nil {
			query += fmt.Sprintf(" AND assigned_doctor_id = $%d", argCount)
			args = append(args, *filters.AssignedDoctorID)
			argCount++
		}
		if filters.PatientID != nil {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, *filters.PatientID)
			argCount++
		}
	}

	query += " ORDER BY checked_in_at ASC"

	var encounters []*model.Encounter
	err := r.db.SelectContext(ctx, &encounters, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list encounters: %w", err)
	}
	return encounters, nil
}
