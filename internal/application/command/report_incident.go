// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/schoolhub/discipline-core/internal/domain/escalation"
	"github.com/schoolhub/discipline-core/internal/domain/incident"
	"github.com/schoolhub/discipline-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT INCIDENT COMMAND
// Files a new disciplinary incident: resolves an initial owner from the
// escalation rules, persists the incident with its creation audit row in
// one transaction, and emits IncidentReported after commit.
// ══════════════════════════════════════════════════════════════════════════════

// creationComment is written into the audit trail for every new incident.
const creationComment = "Incident reported"

// ReportIncidentCommand contains the data to file an incident.
type ReportIncidentCommand struct {
	// StudentID is the student the incident concerns.
	StudentID string

	// ReporterID is the actor filing the report.
	ReporterID string

	// Severity classifies the incident (defaults to low if empty).
	Severity incident.Severity

	// Title is a short summary of what happened.
	Title string

	// Description is the full free-text account.
	Description string

	// OccurredAt is when the event happened (defaults to now if zero).
	OccurredAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ReportIncidentCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("report_incident: student_id is required")
	}
	if c.ReporterID == "" {
		return errors.New("report_incident: reporter_id is required")
	}
	if c.Title == "" {
		return errors.New("report_incident: title is required")
	}
	if c.Severity != "" && !c.Severity.IsValid() {
		return fmt.Errorf("report_incident: unknown severity: %s", c.Severity)
	}
	return nil
}

// ReportIncidentResult contains the result of filing an incident.
type ReportIncidentResult struct {
	// Incident is the persisted incident.
	Incident *incident.Incident

	// AssignedTo is the resolved initial owner, empty when no rule or
	// no actor matched.
	AssignedTo string

	// Events contains domain events published after commit.
	Events []shared.Event

	// ReportedAt is when the incident was persisted.
	ReportedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ReportIncidentHandler handles the ReportIncidentCommand.
type ReportIncidentHandler struct {
	uowFactory incident.UnitOfWorkFactory
	resolver   *escalation.Resolver
	publisher  shared.EventPublisher
	logger     *slog.Logger
}

// NewReportIncidentHandler creates a new ReportIncidentHandler.
func NewReportIncidentHandler(
	uowFactory incident.UnitOfWorkFactory,
	resolver *escalation.Resolver,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *ReportIncidentHandler {
	return &ReportIncidentHandler{
		uowFactory: uowFactory,
		resolver:   resolver,
		publisher:  publisher,
		logger:     logger,
	}
}

// Handle executes the report incident command.
func (h *ReportIncidentHandler) Handle(ctx context.Context, cmd ReportIncidentCommand) (*ReportIncidentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("report_incident: validation failed: %w", err)
	}

	inc, err := incident.NewIncident(incident.NewIncidentParams{
		ID:          uuid.NewString(),
		StudentID:   cmd.StudentID,
		ReporterID:  cmd.ReporterID,
		Severity:    cmd.Severity,
		Title:       cmd.Title,
		Description: cmd.Description,
		OccurredAt:  cmd.OccurredAt,
	})
	if err != nil {
		return nil, fmt.Errorf("report_incident: %w", err)
	}

	// Initial assignment uses the incident's own severity.
	assignee, err := h.resolver.ResolveAssignee(ctx, inc.Severity)
	if err != nil {
		return nil, fmt.Errorf("report_incident: resolve assignee: %w", err)
	}
	if assignee != nil {
		inc.Reassign(assignee.ID)
	}

	creationLog, err := incident.NewStatusLog(
		uuid.NewString(), inc.ID, "", incident.StatusPending, cmd.ReporterID, creationComment,
	)
	if err != nil {
		return nil, fmt.Errorf("report_incident: %w", err)
	}

	// Incident and its creation audit row commit or roll back together.
	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("report_incident: begin transaction: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	if err := uow.Incidents().Create(ctx, inc); err != nil {
		return nil, fmt.Errorf("report_incident: persist incident: %w", err)
	}
	if err := uow.StatusLogs().Append(ctx, creationLog); err != nil {
		return nil, fmt.Errorf("report_incident: append audit log: %w", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("report_incident: commit: %w", err)
	}

	event := shared.NewIncidentReportedEvent(
		inc.ID, inc.StudentID, inc.ReporterID, inc.AssignedTo, inc.Severity.String(), inc.Title,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}

	// Post-commit: notification and other listeners pick this up; their
	// failures never undo the filed incident.
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Error("failed to publish incident reported event",
			slog.String("incident_id", inc.ID),
			slog.Any("error", err))
	}

	return &ReportIncidentResult{
		Incident:   inc,
		AssignedTo: inc.AssignedTo,
		Events:     []shared.Event{event},
		ReportedAt: inc.CreatedAt,
	}, nil
}
