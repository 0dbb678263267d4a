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
// ON STATUS CHANGED HANDLER
// Notifies guardians when an incident involving their student reaches a
// closed status. Intermediate shuffling (pending, under_review,
// escalated) stays internal to staff.
// ══════════════════════════════════════════════════════════════════════════════

// OnStatusChangedHandler handles the IncidentStatusChanged event.
type OnStatusChangedHandler struct {
	guardians  actor.GuardianDirectory
	dispatcher notification.Dispatcher
	logger     *slog.Logger

	dispatchTimeout time.Duration
}

// NewOnStatusChangedHandler creates a new OnStatusChangedHandler.
func NewOnStatusChangedHandler(
	guardians actor.GuardianDirectory,
	dispatcher notification.Dispatcher,
	logger *slog.Logger,
	dispatchTimeout time.Duration,
) *OnStatusChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatchTimeout <= 0 {
		dispatchTimeout = 10 * time.Second
	}

	return &OnStatusChangedHandler{
		guardians:       guardians,
		dispatcher:      dispatcher,
		logger:          logger.With("handler", "on_status_changed"),
		dispatchTimeout: dispatchTimeout,
	}
}

// Handle processes the status changed event. Implements
// shared.EventHandler. Always returns nil.
func (h *OnStatusChangedHandler) Handle(event shared.Event) error {
	changed, ok := event.(shared.IncidentStatusChangedEvent)
	if !ok {
		h.logger.Warn("received non-IncidentStatusChangedEvent",
			"event_type", event.EventType())
		return nil
	}

	newStatus := incident.Status(changed.NewStatus)
	if !newStatus.IsClosed() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.dispatchTimeout)
	defer cancel()

	guardians, err := h.guardians.GuardiansOf(ctx, changed.StudentID)
	if err != nil {
		h.logger.Error("failed to load guardians",
			"incident_id", changed.IncidentID,
			"student_id", changed.StudentID,
			"error", err)
		return nil
	}

	for _, guardian := range guardians {
		notice := notification.BuildStatusChangedNotice(
			uuid.NewString(), guardian,
			changed.IncidentID, changed.StudentID, newStatus,
		)

		result := h.dispatcher.Dispatch(ctx, guardian, notice)
		if !result.Delivered {
			h.logger.Error("guardian notification failed",
				"incident_id", changed.IncidentID,
				"guardian_id", guardian.ID,
				"error", result.Error)
		}
	}

	return nil
}
