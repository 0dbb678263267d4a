// Package eventhandler contains domain event handlers. They run after
// the transactional write commits and carry the side effects the
// lifecycle keeps out of its failure path, guardian notification above
// all.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
	"github.com/schoolhub/discipline-core/internal/domain/incident"
	"github.com/schoolhub/discipline-core/internal/domain/notification"
	"github.com/schoolhub/discipline-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON INCIDENT REPORTED HANDLER
// Notifies the guardians of the student when an incident is filed.
// Strictly best effort: every failure is logged and swallowed so that a
// broken notification channel can never surface as a filing error.
// ══════════════════════════════════════════════════════════════════════════════

// OnIncidentReportedHandler handles the IncidentReported event.
type OnIncidentReportedHandler struct {
	guardians  actor.GuardianDirectory
	dispatcher notification.Dispatcher
	logger     *slog.Logger

	// dispatchTimeout bounds each delivery attempt.
	dispatchTimeout time.Duration
}

// NewOnIncidentReportedHandler creates a new OnIncidentReportedHandler.
func NewOnIncidentReportedHandler(
	guardians actor.GuardianDirectory,
	dispatcher notification.Dispatcher,
	logger *slog.Logger,
	dispatchTimeout time.Duration,
) *OnIncidentReportedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatchTimeout <= 0 {
		dispatchTimeout = 10 * time.Second
	}

	return &OnIncidentReportedHandler{
		guardians:       guardians,
		dispatcher:      dispatcher,
		logger:          logger.With("handler", "on_incident_reported"),
		dispatchTimeout: dispatchTimeout,
	}
}

// Handle processes the incident reported event. Implements
// shared.EventHandler. It always returns nil: notification failures are
// logged, never propagated.
func (h *OnIncidentReportedHandler) Handle(event shared.Event) error {
	reported, ok := event.(shared.IncidentReportedEvent)
	if !ok {
		h.logger.Warn("received non-IncidentReportedEvent",
			"event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.dispatchTimeout)
	defer cancel()

	guardians, err := h.guardians.GuardiansOf(ctx, reported.StudentID)
	if err != nil {
		h.logger.Error("failed to load guardians",
			"incident_id", reported.IncidentID,
			"student_id", reported.StudentID,
			"error", err)
		return nil
	}
	if len(guardians) == 0 {
		h.logger.Debug("no guardians opted into portal notifications",
			"incident_id", reported.IncidentID,
			"student_id", reported.StudentID)
		return nil
	}

	for _, guardian := range guardians {
		notice := notification.BuildIncidentReportedNotice(
			uuid.NewString(), guardian,
			reported.IncidentID, reported.StudentID,
			reported.Title, incident.Severity(reported.Severity),
		)

		result := h.dispatcher.Dispatch(ctx, guardian, notice)
		if !result.Delivered {
			h.logger.Error("guardian notification failed",
				"incident_id", reported.IncidentID,
				"guardian_id", guardian.ID,
				"error", result.Error)
			continue
		}

		h.logger.Info("guardian notified",
			"incident_id", reported.IncidentID,
			"guardian_id", guardian.ID,
			"notice_id", notice.ID)
	}

	return nil
}
