package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/repository"
	"github.com/clinicflow/encounter-api/internal/service/event"
	"github.com/clinicflow/encounter-api/pkg/metrics"
)

// Service is the alert bus between staff attending the same encounter.
// Delivery is pull-based: recipients poll List on an interval, so visibility
// is eventual and at-least-once. Two logically equivalent sends produce two
// rows; deduplication is the sender's responsibility.
type Service struct {
	repo    repository.AlertRepository
	events  *event.Service
	metrics *metrics.Metrics
}

func NewService(repo repository.AlertRepository, events *event.Service, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		events:  events,
		metrics: m,
	}
}

func (s *Service) Send(ctx context.Context, req *model.SendAlertRequest) (*model.Alert, error) {
	alert := &model.Alert{
		EncounterID: req.EncounterID,
		FromUserID:  req.FromUserID,
		ToUserID:    req.ToUserID,
		Type:        req.Type,
		Message:     req.Message,
	}

	err := s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.CreateTx(ctx, tx, alert); err != nil {
			return err
		}
		return s.events.EmitTx(ctx, tx, model.EventAlertCreated, alert)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send alert: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AlertsSent.Inc()
	}
	return alert, nil
}

func (s *Service) MarkRead(ctx context.Context, alertID, byUserID uuid.UUID) error {
	return s.repo.MarkRead(ctx, alertID, byUserID)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*model.Alert, error) {
	return s.repo.List(ctx, userID, unreadOnly)
}

// UnreadUrgentOlderThan returns urgent alerts that have sat unread past the
// cutoff and have not yet been escalated.
func (s *Service) UnreadUrgentOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Alert, error) {
	return s.repo.ListUnreadOlderThan(ctx, model.AlertTypeUrgent, cutoff)
}

func (s *Service) MarkEscalated(ctx context.Context, alertID uuid.UUID) error {
	if err := s.repo.MarkEscalated(ctx, alertID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.AlertsEscalated.Inc()
	}
	return nil
}
