package allocator

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/repository"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
	"github.com/clinicflow/encounter-api/pkg/metrics"
)

// Service owns every flip of a room/bed availability flag. All paths lock the
// encounter row first, then the resource row(s), so the invariant
// "is_available iff no active encounter references the id" holds at commit.
type Service struct {
	encounters repository.EncounterRepository
	resources  repository.ResourceRepository
	metrics    *metrics.Metrics
}

func NewService(encounters repository.EncounterRepository, resources repository.ResourceRepository, m *metrics.Metrics) *Service {
	return &Service{
		encounters: encounters,
		resources:  resources,
		metrics:    m,
	}
}

// Acquire binds an available resource to the encounter. Acquiring the
// resource the encounter already holds is a no-op; acquiring a second
// resource of the same kind is a conflict (use Reassign).
func (s *Service) Acquire(ctx context.Context, encounterID, resourceID uuid.UUID, kind model.ResourceKind) (*model.Encounter, error) {
	var out *model.Encounter
	err := s.encounters.WithTx(ctx, func(tx *sqlx.Tx) error {
		enc, err := s.encounters.GetForUpdateTx(ctx, tx, encounterID)
		if err != nil {
			return err
		}
		if enc.Status.IsTerminal() {
			return apperrors.Conflict("encounter is closed", nil)
		}

		held := heldResource(enc, kind)
		if held != nil && *held == resourceID {
			out = enc
			return nil
		}
		if held != nil {
			return apperrors.Conflict(fmt.Sprintf("encounter already holds a %s", kind), nil)
		}

		res, err := s.resources.GetForUpdateTx(ctx, tx, resourceID)
		if err != nil {
			return err
		}
		if res.Kind != kind {
			return apperrors.BadRequest(fmt.Sprintf("resource %s is not a %s", res.Identifier, kind), nil)
		}
		if !res.IsAvailable {
			if s.metrics != nil {
				s.metrics.ResourceConflicts.Inc()
			}
			return apperrors.Conflict(fmt.Sprintf("%s %s is unavailable", kind, res.Identifier), nil)
		}

		if err := s.resources.SetAvailabilityTx(ctx, tx, resourceID, false); err != nil {
			return err
		}
		bindResource(enc, kind, &resourceID)
		if err := s.encounters.UpdateTx(ctx, tx, enc); err != nil {
			return err
		}

		if s.metrics != nil {
			s.metrics.ResourceAcquisitions.WithLabelValues(string(kind)).Inc()
		}
		out = enc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reassign swaps the held resource for a new one in a single transaction; at
// no point does the encounter hold zero or two resources of the kind.
func (s *Service) Reassign(ctx context.Context, encounterID, newResourceID uuid.UUID, kind model.ResourceKind) (*model.Encounter, error) {
	var out *model.Encounter
	err := s.encounters.WithTx(ctx, func(tx *sqlx.Tx) error {
		enc, err := s.encounters.GetForUpdateTx(ctx, tx, encounterID)
		if err != nil {
			return err
		}
		if enc.Status.IsTerminal() {
			return apperrors.Conflict("encounter is closed", nil)
		}

		held := heldResource(enc, kind)
		if held == nil {
			return apperrors.Conflict(fmt.Sprintf("encounter holds no %s to reassign", kind), nil)
		}
		if *held == newResourceID {
			out = enc
			return nil
		}

		// Lock resource rows in id order so crossing reassigns cannot deadlock.
		ids := []uuid.UUID{*held, newResourceID}
		if bytes.Compare(ids[1][:], ids[0][:]) < 0 {
			ids[0], ids[1] = ids[1], ids[0]
		}
		var newRes *model.Resource
		for _, id := range ids {
			res, err := s.resources.GetForUpdateTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if id == newResourceID {
				newRes = res
			}
		}

		if newRes.Kind != kind {
			return apperrors.BadRequest(fmt.Sprintf("resource %s is not a %s", newRes.Identifier, kind), nil)
		}
		if !newRes.IsAvailable {
			if s.metrics != nil {
				s.metrics.ResourceConflicts.Inc()
			}
			return apperrors.Conflict(fmt.Sprintf("%s %s is unavailable", kind, newRes.Identifier), nil)
		}

		if err := s.resources.SetAvailabilityTx(ctx, tx, *held, true); err != nil {
			return err
		}
		if err := s.resources.SetAvailabilityTx(ctx, tx, newResourceID, false); err != nil {
			return err
		}
		bindResource(enc, kind, &newResourceID)
		if err := s.encounters.UpdateTx(ctx, tx, enc); err != nil {
			return err
		}

		if s.metrics != nil {
			s.metrics.ResourceAcquisitions.WithLabelValues(string(kind)).Inc()
		}
		out = enc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Release frees the held resource of the kind. A release when nothing is held
// is a no-op, which protects against duplicate or late release calls after a
// reassignment.
func (s *Service) Release(ctx context.Context, encounterID uuid.UUID, kind model.ResourceKind) (*model.Encounter, error) {
	var out *model.Encounter
	err := s.encounters.WithTx(ctx, func(tx *sqlx.Tx) error {
		enc, err := s.encounters.GetForUpdateTx(ctx, tx, encounterID)
		if err != nil {
			return err
		}

		held := heldResource(enc, kind)
		if held == nil {
			out = enc
			return nil
		}

		if _, err := s.resources.GetForUpdateTx(ctx, tx, *held); err != nil {
			return err
		}
		if err := s.resources.SetAvailabilityTx(ctx, tx, *held, true); err != nil {
			return err
		}
		bindResource(enc, kind, nil)
		if err := s.encounters.UpdateTx(ctx, tx, enc); err != nil {
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

// ReleaseAllTx frees any held room and bed inside the caller's transaction.
// The caller already holds the encounter row lock and commits the encounter
// update itself.
func (s *Service) ReleaseAllTx(ctx context.Context, tx *sqlx.Tx, enc *model.Encounter) error {
	for _, kind := range []model.ResourceKind{model.ResourceKindRoom, model.ResourceKindBed} {
		held := heldResource(enc, kind)
		if held == nil {
			continue
		}
		if _, err := s.resources.GetForUpdateTx(ctx, tx, *held); err != nil {
			return err
		}
		if err := s.resources.SetAvailabilityTx(ctx, tx, *held, true); err != nil {
			return err
		}
		bindResource(enc, kind, nil)
	}
	return nil
}

// SeedResource registers a room or bed at setup time.
func (s *Service) SeedResource(ctx context.Context, req *model.CreateResourceRequest) (*model.Resource, error) {
	resource := &model.Resource{
		Identifier: req.Identifier,
		Kind:       req.Kind,
	}
	if err := s.resources.Create(ctx, resource); err != nil {
		return nil, fmt.Errorf("failed to seed resource: %w", err)
	}
	return resource, nil
}

func (s *Service) ListResources(ctx context.Context, kind model.ResourceKind, availableOnly bool) ([]*model.Resource, error) {
	return s.resources.List(ctx, kind, availableOnly)
}

func heldResource(enc *model.Encounter, kind model.ResourceKind) *uuid.UUID {
	if kind == model.ResourceKindBed {
		return enc.BedID
	}
	return enc.RoomID
}

func bindResource(enc *model.Encounter, kind model.ResourceKind, id *uuid.UUID) {
	if kind == model.ResourceKindBed {
		enc.BedID = id
		return
	}
	enc.RoomID = id
	if id != nil && enc.RoomAssignedAt == nil {
		now := time.Now()
		enc.RoomAssignedAt = &now
	}
}
