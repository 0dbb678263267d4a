package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
	"github.com/schoolhub/discipline-core/internal/domain/escalation"
	"github.com/schoolhub/discipline-core/internal/domain/incident"
	"github.com/schoolhub/discipline-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STATUS COMMAND
// The core of the lifecycle engine: validates the transition against the
// state machine, authorizes the actor, enforces status-specific
// preconditions, applies assignment rules, and persists the mutation
// together with its audit row in one transaction.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStatusCommand contains the data for a status change request.
type UpdateStatusCommand struct {
	// IncidentID identifies the incident to mutate.
	IncidentID string

	// ActorID is the actor requesting the change.
	ActorID string

	// TargetStatus is the requested status.
	TargetStatus incident.Status

	// AssignedTo, when non-nil, requests an assignment change. A nil
	// pointer means "leave assignment to the engine"; a pointer to an
	// empty string clears the assignment.
	AssignedTo *string

	// ActionTaken documents the resolution; required (here or already
	// stored) when transitioning to resolved.
	ActionTaken string

	// Comment is free text recorded in the audit trail.
	Comment string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UpdateStatusCommand) Validate() error {
	if c.IncidentID == "" {
		return errors.New("update_status: incident_id is required")
	}
	if c.ActorID == "" {
		return errors.New("update_status: actor_id is required")
	}
	if !c.TargetStatus.IsValid() {
		return fmt.Errorf("update_status: unknown target status: %s", c.TargetStatus)
	}
	return nil
}

// requestsReassignment reports whether the caller asked for an
// assignment different from the incident's current one.
func (c UpdateStatusCommand) requestsReassignment(inc *incident.Incident) bool {
	return c.AssignedTo != nil && *c.AssignedTo != inc.AssignedTo
}

// UpdateStatusResult contains the result of a status change request.
type UpdateStatusResult struct {
	// Incident is the incident after the change.
	Incident *incident.Incident

	// OldStatus and NewStatus bracket the transition. Equal on a no-op
	// or a pure reassignment.
	OldStatus incident.Status
	NewStatus incident.Status

	// NoOp is true when the request matched the current state exactly
	// and nothing was written.
	NoOp bool

	// Reassigned is true when the owner changed.
	Reassigned bool

	// Events contains domain events published after commit.
	Events []shared.Event

	// UpdatedAt is when the change was persisted.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStatusHandler handles the UpdateStatusCommand.
type UpdateStatusHandler struct {
	uowFactory incident.UnitOfWorkFactory
	actors     actor.Directory
	resolver   *escalation.Resolver
	publisher  shared.EventPublisher
	logger     *slog.Logger
}

// NewUpdateStatusHandler creates a new UpdateStatusHandler.
func NewUpdateStatusHandler(
	uowFactory incident.UnitOfWorkFactory,
	actors actor.Directory,
	resolver *escalation.Resolver,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *UpdateStatusHandler {
	return &UpdateStatusHandler{
		uowFactory: uowFactory,
		actors:     actors,
		resolver:   resolver,
		publisher:  publisher,
		logger:     logger,
	}
}

// Handle executes the update status command.
func (h *UpdateStatusHandler) Handle(ctx context.Context, cmd UpdateStatusCommand) (*UpdateStatusResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_status: validation failed: %w", err)
	}

	act, err := h.actors.FindByID(ctx, cmd.ActorID)
	if err != nil {
		return nil, fmt.Errorf("update_status: load actor: %w", err)
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("update_status: begin transaction: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	// Row lock for the duration of the transaction; the version guard in
	// Update catches writers that raced us before the lock.
	inc, err := uow.Incidents().FindByIDForUpdate(ctx, cmd.IncidentID)
	if err != nil {
		return nil, fmt.Errorf("update_status: load incident: %w", err)
	}

	if cmd.TargetStatus == inc.Status {
		return h.handleSameStatus(ctx, uow, inc, act, cmd)
	}
	return h.handleTransition(ctx, uow, inc, act, cmd)
}

// handleSameStatus covers requests whose target equals the current
// status: a no-op, or a pure reassignment when an assignee change is
// also requested. Reassignment goes through the same authorization gate
// as a transition; it writes no audit row but does publish an event.
func (h *UpdateStatusHandler) handleSameStatus(
	ctx context.Context,
	uow incident.UnitOfWork,
	inc *incident.Incident,
	act *actor.Actor,
	cmd UpdateStatusCommand,
) (*UpdateStatusResult, error) {
	if !cmd.requestsReassignment(inc) {
		return &UpdateStatusResult{
			Incident:  inc,
			OldStatus: inc.Status,
			NewStatus: inc.Status,
			NoOp:      true,
			UpdatedAt: inc.UpdatedAt,
		}, nil
	}

	decision := actor.CanAct(act.Roles, inc.IsAssignedTo(act.ID), cmd.TargetStatus)
	if !decision.Allowed {
		return nil, fmt.Errorf("update_status: reassign incident %s: %w", inc.ID, incident.ErrUnauthorizedTransition)
	}

	oldAssignee := inc.AssignedTo
	inc.Reassign(*cmd.AssignedTo)

	if err := uow.Incidents().Update(ctx, inc); err != nil {
		return nil, fmt.Errorf("update_status: persist reassignment: %w", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("update_status: commit: %w", err)
	}

	event := shared.NewIncidentReassignedEvent(inc.ID, oldAssignee, inc.AssignedTo, act.ID)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.publish(event)

	return &UpdateStatusResult{
		Incident:   inc,
		OldStatus:  inc.Status,
		NewStatus:  inc.Status,
		Reassigned: true,
		Events:     []shared.Event{event},
		UpdatedAt:  inc.UpdatedAt,
	}, nil
}

// handleTransition covers a genuine status change.
func (h *UpdateStatusHandler) handleTransition(
	ctx context.Context,
	uow incident.UnitOfWork,
	inc *incident.Incident,
	act *actor.Actor,
	cmd UpdateStatusCommand,
) (*UpdateStatusResult, error) {
	target := cmd.TargetStatus

	if !inc.CanTransitionTo(target) {
		return nil, fmt.Errorf("update_status: %s to %s: %w", inc.Status, target, incident.ErrInvalidTransition)
	}

	decision := actor.CanAct(act.Roles, inc.IsAssignedTo(act.ID), target)
	if !decision.Allowed {
		return nil, fmt.Errorf("update_status: actor %s to status %s: %w", act.ID, target, incident.ErrUnauthorizedTransition)
	}

	if target == incident.StatusResolved {
		if strings.TrimSpace(cmd.ActionTaken) == "" && !inc.HasActionTaken() {
			return nil, fmt.Errorf("update_status: incident %s: %w", inc.ID, incident.ErrMissingActionTaken)
		}
		// Strict rule: checked by identity, not by role, so it binds
		// admins and the assignee alike.
		if inc.IsReportedBy(act.ID) {
			return nil, fmt.Errorf("update_status: incident %s: %w", inc.ID, incident.ErrSelfResolutionForbidden)
		}
	}

	if strings.TrimSpace(cmd.ActionTaken) != "" {
		inc.RecordAction(cmd.ActionTaken)
	}

	oldStatus := inc.Status
	oldAssignee := inc.AssignedTo
	if err := h.applyAssignment(ctx, inc, target, cmd); err != nil {
		return nil, err
	}

	if err := inc.Transition(target, act.ID); err != nil {
		return nil, fmt.Errorf("update_status: %w", err)
	}

	comment := strings.TrimSpace(cmd.Comment)
	if comment == "" {
		comment = fmt.Sprintf("Status changed from %s to %s", oldStatus, target)
	}
	auditRow, err := incident.NewStatusLog(uuid.NewString(), inc.ID, oldStatus, target, act.ID, comment)
	if err != nil {
		return nil, fmt.Errorf("update_status: %w", err)
	}

	if err := uow.Incidents().Update(ctx, inc); err != nil {
		return nil, fmt.Errorf("update_status: persist incident: %w", err)
	}
	if err := uow.StatusLogs().Append(ctx, auditRow); err != nil {
		return nil, fmt.Errorf("update_status: append audit log: %w", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("update_status: commit: %w", err)
	}

	events := h.buildEvents(inc, oldStatus, oldAssignee, act.ID, comment, cmd.CorrelationID)
	for _, event := range events {
		h.publish(event)
	}

	return &UpdateStatusResult{
		Incident:   inc,
		OldStatus:  oldStatus,
		NewStatus:  target,
		Reassigned: inc.AssignedTo != oldAssignee,
		Events:     events,
		UpdatedAt:  inc.UpdatedAt,
	}, nil
}

// applyAssignment applies the assignment rules for a transition. Into
// escalated: explicit assignee wins, otherwise the resolver is consulted
// with the fixed fallback severity so escalations route to the most
// senior configured role; no match leaves the owner unchanged. Into any
// other status: an explicit differing assignee is a plain reassignment.
func (h *UpdateStatusHandler) applyAssignment(
	ctx context.Context,
	inc *incident.Incident,
	target incident.Status,
	cmd UpdateStatusCommand,
) error {
	if target == incident.StatusEscalated {
		if cmd.AssignedTo != nil && *cmd.AssignedTo != "" {
			inc.Reassign(*cmd.AssignedTo)
			return nil
		}
		assignee, err := h.resolver.ResolveAssignee(ctx, escalation.FallbackSeverity)
		if err != nil {
			return fmt.Errorf("update_status: resolve escalation assignee: %w", err)
		}
		if assignee != nil {
			inc.Reassign(assignee.ID)
		}
		return nil
	}

	if cmd.requestsReassignment(inc) {
		inc.Reassign(*cmd.AssignedTo)
	}
	return nil
}

// buildEvents assembles the post-commit event set for a transition.
func (h *UpdateStatusHandler) buildEvents(
	inc *incident.Incident,
	oldStatus incident.Status,
	oldAssignee, actorID, comment, correlationID string,
) []shared.Event {
	events := make([]shared.Event, 0, 3)

	statusEvent := shared.NewIncidentStatusChangedEvent(
		inc.ID, inc.StudentID, oldStatus.String(), inc.Status.String(), actorID, comment,
	)
	if correlationID != "" {
		statusEvent.BaseEvent = statusEvent.BaseEvent.WithCorrelationID(correlationID)
	}
	events = append(events, statusEvent)

	if inc.Status == incident.StatusEscalated {
		escalatedEvent := shared.NewIncidentEscalatedEvent(
			inc.ID, inc.StudentID, inc.Severity.String(), inc.AssignedTo, actorID,
		)
		if correlationID != "" {
			escalatedEvent.BaseEvent = escalatedEvent.BaseEvent.WithCorrelationID(correlationID)
		}
		events = append(events, escalatedEvent)
	}

	if inc.AssignedTo != oldAssignee {
		reassignedEvent := shared.NewIncidentReassignedEvent(inc.ID, oldAssignee, inc.AssignedTo, actorID)
		if correlationID != "" {
			reassignedEvent.BaseEvent = reassignedEvent.BaseEvent.WithCorrelationID(correlationID)
		}
		events = append(events, reassignedEvent)
	}

	return events
}

func (h *UpdateStatusHandler) publish(event shared.Event) {
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Error("failed to publish event",
			slog.String("event_type", string(event.EventType())),
			slog.String("aggregate_id", event.AggregateID()),
			slog.Any("error", err))
	}
}
