package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/encounter-api/internal/model"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
)

// UpsertIfNewer is the ordering authority for section saves: the write lands
// only when the incoming edit version exceeds the stored one, so a delayed
// delivery of an older edit can never clobber a newer write.
func (r *sectionRepository) UpsertIfNewer(ctx context.Context, section *model.ClinicalSection) (bool, error) {
	query := `
		INSERT INTO clinical_sections (
			encounter_id, section_id, content, last_edit_version, updated_at, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (encounter_id, section_id) DO UPDATE SET
			content = EXCLUDED.content,
			last_edit_version = EXCLUDED.last_edit_version,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
		WHERE clinical_sections.last_edit_version < EXCLUDED.last_edit_version
	`
	section.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		section.EncounterID,
		section.SectionID,
		section.Content,
		section.LastEditVersion,
		section.UpdatedAt,
		section.UpdatedBy,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert section: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *sectionRepository) Get(ctx context.Context, encounterID uuid.UUID, sectionID string) (*model.ClinicalSection, error) {
	query := `
		SELECT encounter_id, section_id, content, last_edit_version, updated_at, updated_by
		FROM clinical_sections
		WHERE encounter_id = $1 AND section_id = $2
	`
	var section model.ClinicalSection
	err := r.db.GetContext(ctx, &section, query, encounterID, sectionID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("section", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}
	return &section, nil
}

func (r *sectionRepository) GetAll(ctx context.Context, encounterID uuid.UUID) ([]*model.ClinicalSection, error) {
	query := `
		SELECT encounter_id, section_id, content, last_edit_version, updated_at, updated_by
		FROM clinical_sections
		WHERE encounter_id = $1
		ORDER BY section_id ASC
	`
	var sections []*model.ClinicalSection
	err := r.db.SelectContext(ctx, &sections, query, encounterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	return sections, nil
}
