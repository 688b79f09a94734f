package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/repository"
	"github.com/clinicflow/encounter-api/internal/service/encounter"
	"github.com/clinicflow/encounter-api/internal/service/event"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
	"github.com/clinicflow/encounter-api/pkg/metrics"
)

// Service routes an encounter to at most one department at a time. The
// decision is always evaluated against the row-locked current_department
// column; client-cached routing state is never trusted.
type Service struct {
	repo    repository.EncounterRepository
	events  *event.Service
	metrics *metrics.Metrics
}

func NewService(repo repository.EncounterRepository, events *event.Service, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		events:  events,
		metrics: m,
	}
}

// RouteTo hands the encounter to a department. Routing to the department the
// encounter is already at is an idempotent no-op; any other department while
// one is active is a conflict.
func (s *Service) RouteTo(ctx context.Context, encounterID uuid.UUID, dept model.Department, actorID uuid.UUID) (*model.Encounter, error) {
	target := dept.StatusFor()
	if target == "" {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown department %q", dept), nil)
	}

	var out *model.Encounter
	err := s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		enc, err := s.repo.GetForUpdateTx(ctx, tx, encounterID)
		if err != nil {
			return err
		}
		if enc.Status.IsTerminal() {
			return apperrors.Conflict("encounter is closed", nil)
		}

		if enc.CurrentDepartment != nil {
			if *enc.CurrentDepartment == dept {
				out = enc
				return nil
			}
			if s.metrics != nil {
				s.metrics.RoutingConflicts.Inc()
			}
			return apperrors.Conflict(
				fmt.Sprintf("encounter is already at %s", *enc.CurrentDepartment), nil)
		}

		if !encounter.CanTransition(enc.Status, target) {
			return apperrors.Conflict(
				fmt.Sprintf("cannot route to %s from %s", dept, enc.Status), nil)
		}

		enc.CurrentDepartment = &dept
		enc.Status = target
		stampOrder(enc, dept)

		if err := s.repo.UpdateTx(ctx, tx, enc); err != nil {
			return err
		}

		if err := s.events.EmitTx(ctx, tx, model.EventEncounterRouted, map[string]interface{}{
			"encounter_id": enc.ID,
			"department":   dept,
			"actor_id":     actorID,
		}); err != nil {
			return err
		}

		out = enc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReturnFromDepartment completes the department sub-task: clears the active
// department and reverts status to WithNurse. Returning when no department is
// active is an idempotent no-op.
func (s *Service) ReturnFromDepartment(ctx context.Context, encounterID uuid.UUID) (*model.Encounter, error) {
	var out *model.Encounter
	err := s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		enc, err := s.repo.GetForUpdateTx(ctx, tx, encounterID)
		if err != nil {
			return err
		}
		if enc.Status.IsTerminal() {
			return apperrors.Conflict("encounter is closed", nil)
		}

		if enc.CurrentDepartment == nil {
			out = enc
			return nil
		}

		dept := *enc.CurrentDepartment
		enc.CurrentDepartment = nil
		enc.Status = model.EncounterStatusWithNurse
		stampReturn(enc)

		if err := s.repo.UpdateTx(ctx, tx, enc); err != nil {
			return err
		}

		if err := s.events.EmitTx(ctx, tx, model.EventEncounterReturned, map[string]interface{}{
			"encounter_id": enc.ID,
			"department":   dept,
		}); err != nil {
			return err
		}

		out = enc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func stampOrder(enc *model.Encounter, dept model.Department) {
	now := time.Now()
	switch dept {
	case model.DepartmentLab:
		if enc.LabOrderedAt == nil {
			enc.LabOrderedAt = &now
		}
	case model.DepartmentImaging:
		if enc.ImagingOrderedAt == nil {
			enc.ImagingOrderedAt = &now
		}
	case model.DepartmentPharmacy:
		if enc.PharmacyOrderedAt == nil {
			enc.PharmacyOrderedAt = &now
		}
	}
}

func stampReturn(enc *model.Encounter) {
	now := time.Now()
	if enc.NurseReturnedAt == nil {
		enc.NurseReturnedAt = &now
	}
	if enc.NurseStartedAt == nil {
		enc.NurseStartedAt = &now
	}
}
