package model

import (
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertTypePatientReady AlertType = "patient_ready"
	AlertTypeResultsReady AlertType = "results_ready"
	AlertTypeAssistance   AlertType = "assistance"
	AlertTypeUrgent       AlertType = "urgent"
)

// Alert is a directional notification between staff attending the same
// encounter. Delivery is pull-based; recipients poll on an interval.
type Alert struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	EncounterID uuid.UUID  `db:"encounter_id" json:"encounter_id"`
	FromUserID  uuid.UUID  `db:"from_user_id" json:"from_user_id"`
	ToUserID    uuid.UUID  `db:"to_user_id" json:"to_user_id"`
	Type        AlertType  `db:"type" json:"type"`
	Message     string     `db:"message" json:"message"`
	IsRead      bool       `db:"is_read" json:"is_read"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
	EscalatedAt *time.Time `db:"escalated_at" json:"escalated_at,omitempty"`
}

type SendAlertRequest struct {
	EncounterID uuid.UUID `json:"encounter_id" validate:"required"`
	FromUserID  uuid.UUID `json:"from_user_id" validate:"required"`
	ToUserID    uuid.UUID `json:"to_user_id" validate:"required"`
	Type        AlertType `json:"type" validate:"required,oneof=patient_ready results_ready assistance urgent"`
	Message     string    `json:"message" validate:"required,max=1000"`
}
