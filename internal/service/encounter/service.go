package encounter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/repository"
	"github.com/clinicflow/encounter-api/internal/service/allocator"
	"github.com/clinicflow/encounter-api/internal/service/event"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
	"github.com/clinicflow/encounter-api/pkg/metrics"
)

// transitions is the reachability table. Cancelled is additionally reachable
// from every non-terminal state.
var transitions = map[model.EncounterStatus][]model.EncounterStatus{
	model.EncounterStatusCheckedIn:        {model.EncounterStatusInRoom},
	model.EncounterStatusInRoom:           {model.EncounterStatusVitalsComplete},
	model.EncounterStatusVitalsComplete:   {model.EncounterStatusWithNurse},
	model.EncounterStatusWithNurse:        {model.EncounterStatusWaitingForDoctor, model.EncounterStatusReadyForCheckout},
	model.EncounterStatusWaitingForDoctor: {model.EncounterStatusWithDoctor},
	model.EncounterStatusWithDoctor: {
		model.EncounterStatusAtLab,
		model.EncounterStatusAtImaging,
		model.EncounterStatusAtPharmacy,
		model.EncounterStatusReadyForCheckout,
	},
	model.EncounterStatusAtLab:            {model.EncounterStatusWithNurse},
	model.EncounterStatusAtImaging:        {model.EncounterStatusWithNurse},
	model.EncounterStatusAtPharmacy:       {model.EncounterStatusWithNurse},
	model.EncounterStatusReadyForCheckout: {model.EncounterStatusCompleted},
}

// CanTransition reports whether target is reachable from current.
func CanTransition(current, target model.EncounterStatus) bool {
	if current.IsTerminal() {
		return false
	}
	if target == model.EncounterStatusCancelled {
		return true
	}
	for _, next := range transitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

type Service struct {
	repo      repository.EncounterRepository
	allocator *allocator.Service
	events    *event.Service
	metrics   *metrics.Metrics
}

func NewService(repo repository.EncounterRepository, alloc *allocator.Service, events *event.Service, m *metrics.Metrics) *Service {
	return &Service{
		repo:      repo,
		allocator: alloc,
		events:    events,
		metrics:   m,
	}
}

// CheckIn creates the encounter in its initial state.
func (s *Service) CheckIn(ctx context.Context, req *model.CheckInRequest) (*model.Encounter, error) {
	enc := &model.Encounter{
		PatientID: req.PatientID,
		Status:    model.EncounterStatusCheckedIn,
	}
	if err := s.repo.Create(ctx, enc); err != nil {
		return nil, fmt.Errorf("failed to check in: %w", err)
	}

	// Check-in has no prior row to guard; emit the event best-effort.
	err := s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.events.EmitTx(ctx, tx, model.EventEncounterCheckedIn, enc)
	})
	if err != nil {
		log.Warn().Err(err).Str("encounter_id", enc.ID.String()).Msg("failed to emit check-in event")
	}

	return enc, nil
}

// Transition advances the encounter to target under a row lock. The first
// committed writer wins; a concurrent writer observes StaleState. Re-entering
// the current state is a no-op that stamps nothing.
func (s *Service) Transition(ctx context.Context, encounterID uuid.UUID, target model.EncounterStatus, actorID uuid.UUID) (*model.Encounter, error) {
	var out *model.Encounter
	err := s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		enc, err := s.repo.GetForUpdateTx(ctx, tx, encounterID)
		if err != nil {
			return err
		}

		if enc.Status == target {
			out = enc
			return nil
		}

		if !CanTransition(enc.Status, target) {
			if s.metrics != nil {
				s.metrics.TransitionConflicts.WithLabelValues("illegal").Inc()
			}
			return apperrors.Conflict(
				fmt.Sprintf("cannot transition from %s to %s", enc.Status, target), nil)
		}

		// Closing the visit releases any held room/bed in the same transaction.
		if target.IsTerminal() {
			if err := s.allocator.ReleaseAllTx(ctx, tx, enc); err != nil {
				return err
			}
			enc.CurrentDepartment = nil
		}

		from := enc.Status
		enc.Status = target
		syncDepartment(enc, from, target)
		stampPhase(enc, target)

		if err := s.repo.UpdateTx(ctx, tx, enc); err != nil {
			if apperrors.IsStaleState(err) && s.metrics != nil {
				s.metrics.TransitionConflicts.WithLabelValues("stale").Inc()
			}
			return err
		}

		if err := s.events.EmitTx(ctx, tx, model.EventEncounterTransitioned, map[string]interface{}{
			"encounter_id": enc.ID,
			"from":         from,
			"to":           target,
			"actor_id":     actorID,
		}); err != nil {
			return err
		}

		if s.metrics != nil {
			s.metrics.TransitionsTotal.WithLabelValues(string(target)).Inc()
		}
		out = enc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Encounter, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.EncounterFilters) ([]*model.Encounter, error) {
	return s.repo.List(ctx, filters)
}

// AssignStaff sets the attending nurse and/or doctor.
func (s *Service) AssignStaff(ctx context.Context, encounterID uuid.UUID, req *model.AssignStaffRequest) (*model.Encounter, error) {
	var out *model.Encounter
	err := s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		enc, err := s.repo.GetForUpdateTx(ctx, tx, encounterID)
		if err != nil {
			return err
		}
		if enc.Status.IsTerminal() {
			return apperrors.Conflict("encounter is closed", nil)
		}

		if req.NurseID != nil {
			enc.AssignedNurseID = req.NurseID
		}
		if req.DoctorID != nil {
			enc.AssignedDoctorID = req.DoctorID
		}
		if err := s.repo.UpdateTx(ctx, tx, enc); err != nil {
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

// syncDepartment keeps current_department consistent with the At* status
// markers when transitions are driven through the state machine directly.
func syncDepartment(enc *model.Encounter, from, target model.EncounterStatus) {
	switch target {
	case model.EncounterStatusAtLab:
		dept := model.DepartmentLab
		enc.CurrentDepartment = &dept
	case model.EncounterStatusAtImaging:
		dept := model.DepartmentImaging
		enc.CurrentDepartment = &dept
	case model.EncounterStatusAtPharmacy:
		dept := model.DepartmentPharmacy
		enc.CurrentDepartment = &dept
	case model.EncounterStatusWithNurse:
		if from == model.EncounterStatusAtLab || from == model.EncounterStatusAtImaging || from == model.EncounterStatusAtPharmacy {
			enc.CurrentDepartment = nil
			if enc.NurseReturnedAt == nil {
				now := time.Now()
				enc.NurseReturnedAt = &now
			}
		}
	}
}

// stampPhase records the phase timestamp for the state being entered, exactly
// once; a timestamp already set is left untouched.
func stampPhase(enc *model.Encounter, target model.EncounterStatus) {
	now := time.Now()
	stamp := func(field **time.Time) {
		if *field == nil {
			*field = &now
		}
	}

	switch target {
	case model.EncounterStatusInRoom:
		stamp(&enc.RoomAssignedAt)
	case model.EncounterStatusVitalsComplete:
		stamp(&enc.VitalsCompletedAt)
	case model.EncounterStatusWithNurse:
		stamp(&enc.NurseStartedAt)
	case model.EncounterStatusWaitingForDoctor:
		stamp(&enc.DoctorWaitingAt)
	case model.EncounterStatusWithDoctor:
		stamp(&enc.DoctorStartedAt)
	case model.EncounterStatusAtLab:
		stamp(&enc.LabOrderedAt)
	case model.EncounterStatusAtImaging:
		stamp(&enc.ImagingOrderedAt)
	case model.EncounterStatusAtPharmacy:
		stamp(&enc.PharmacyOrderedAt)
	case model.EncounterStatusReadyForCheckout:
		stamp(&enc.ReadyForCheckoutAt)
	case model.EncounterStatusCompleted:
		stamp(&enc.CompletedAt)
	case model.EncounterStatusCancelled:
		stamp(&enc.CancelledAt)
	}
}
