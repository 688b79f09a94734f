package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/clinicflow/encounter-api/internal/repository"
)

type encounterRepository struct {
	BaseRepository
}

type resourceRepository struct {
	BaseRepository
}

type sectionRepository struct {
	BaseRepository
}

type alertRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

func NewEncounterRepository(db *sqlx.DB) repository.EncounterRepository {
	return &encounterRepository{NewBaseRepository(db)}
}

func NewResourceRepository(db *sqlx.DB) repository.ResourceRepository {
	return &resourceRepository{NewBaseRepository(db)}
}

func NewSectionRepository(db *sqlx.DB) repository.SectionRepository {
	return &sectionRepository{NewBaseRepository(db)}
}

func NewAlertRepository(db *sqlx.DB) repository.AlertRepository {
	return &alertRepository{NewBaseRepository(db)}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}
