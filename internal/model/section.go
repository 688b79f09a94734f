package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClinicalSection is one named subdivision of the encounter's clinical note,
// keyed by (encounter_id, section_id). Writes carrying an edit version at or
// below the stored one are discarded.
type ClinicalSection struct {
	EncounterID     uuid.UUID `db:"encounter_id" json:"encounter_id"`
	SectionID       string    `db:"section_id" json:"section_id"`
	Content         string    `db:"content" json:"content"`
	LastEditVersion int64     `db:"last_edit_version" json:"last_edit_version"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
	UpdatedBy       uuid.UUID `db:"updated_by" json:"updated_by"`
}

// Completed is derived, never set directly.
func (s *ClinicalSection) Completed() bool {
	return strings.TrimSpace(s.Content) != ""
}

// SectionView is the wire shape of a section with the derived completed flag.
type SectionView struct {
	ClinicalSection
	Completed bool `json:"completed"`
}

func (s *ClinicalSection) View() SectionView {
	return SectionView{ClinicalSection: *s, Completed: s.Completed()}
}

type SaveSectionRequest struct {
	Content     string    `json:"content"`
	EditVersion int64     `json:"edit_version" validate:"required,gt=0"`
	ActorID     uuid.UUID `json:"actor_id" validate:"required"`
}

// SaveResult tells the caller whether its write changed state. A discarded
// save is not an error; the delivered edit was older than the stored one.
type SaveResult struct {
	Accepted      bool  `json:"accepted"`
	StoredVersion int64 `json:"stored_version"`
}
