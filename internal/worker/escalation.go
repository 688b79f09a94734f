package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicflow/encounter-api/internal/email"
	"github.com/clinicflow/encounter-api/internal/service/alert"
)

// EscalationWorker periodically emails the duty desk about urgent alerts that
// have sat unread past the configured age. The escalated_at stamp keeps an
// alert out of later passes, but the email is sent before the stamp commits,
// so delivery is at-least-once: a crash between the two can repeat an email
// on the next pass.
type EscalationWorker struct {
	alerts        *alert.Service
	emailSvc      email.Service
	recipient     string
	escalateAfter time.Duration
	interval      time.Duration
}

func NewEscalationWorker(alerts *alert.Service, emailSvc email.Service, recipient string, escalateAfter, interval time.Duration) *EscalationWorker {
	return &EscalationWorker{
		alerts:        alerts,
		emailSvc:      emailSvc,
		recipient:     recipient,
		escalateAfter: escalateAfter,
		interval:      interval,
	}
}

func (w *EscalationWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.escalate(ctx); err != nil {
				log.Error().Err(err).Msg("alert escalation pass failed")
			}
		}
	}
}

func (w *EscalationWorker) escalate(ctx context.Context) error {
	cutoff := time.Now().Add(-w.escalateAfter)
	alerts, err := w.alerts.UnreadUrgentOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, a := range alerts {
		subject := fmt.Sprintf("Unread urgent alert for encounter %s", a.EncounterID)
		body := fmt.Sprintf(
			"Alert %s sent at %s to staff %s is still unread:\n\n%s\n",
			a.ID, a.CreatedAt.Format(time.RFC3339), a.ToUserID, a.Message,
		)
		if err := w.emailSvc.SendCustom(ctx, w.recipient, subject, body); err != nil {
			log.Error().Err(err).Str("alert_id", a.ID.String()).Msg("failed to email escalation")
			continue
		}
		if err := w.alerts.MarkEscalated(ctx, a.ID); err != nil {
			log.Error().Err(err).Str("alert_id", a.ID.String()).Msg("failed to mark alert escalated")
		}
	}
	return nil
}
