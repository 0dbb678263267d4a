// Package incident contains the disciplinary incident domain model: the
// incident entity, its severity classification, and the status state
// machine that governs the lifecycle. No external dependencies here.
package incident

import (
	"errors"
	"strings"
	"time"

	"github.com/schoolhub/discipline-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEVERITY
// ══════════════════════════════════════════════════════════════════════════════

// Severity classifies how serious an incident is. It drives the default
// escalation rule lookup and is fixed at creation time.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// DefaultSeverity is applied when a report omits the severity.
const DefaultSeverity = SeverityLow

// IsValid checks that the severity is one of the defined levels.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// Status is the workflow state of an incident.
type Status string

const (
	// StatusPending - newly reported, nobody has acted on it yet.
	StatusPending Status = "pending"
	// StatusUnderReview - an owner is actively investigating.
	StatusUnderReview Status = "under_review"
	// StatusEscalated - handed to a senior role per the escalation rules.
	StatusEscalated Status = "escalated"
	// StatusResolved - closed with a documented action taken.
	StatusResolved Status = "resolved"
	// StatusDismissed - closed without action.
	StatusDismissed Status = "dismissed"
)

// IsValid checks that the status is one of the defined workflow states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusEscalated, StatusResolved, StatusDismissed:
		return true
	default:
		return false
	}
}

// IsClosed returns true for the two terminal-ish states. Neither is hard
// terminal: both can be reopened into under_review.
func (s Status) IsClosed() bool {
	return s == StatusResolved || s == StatusDismissed
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// transitions is the directed edge set of the status machine. Absence of
// an edge means the transition is rejected.
var transitions = map[Status][]Status{
	StatusPending:     {StatusUnderReview, StatusEscalated, StatusResolved, StatusDismissed},
	StatusUnderReview: {StatusResolved, StatusEscalated, StatusDismissed, StatusPending},
	StatusEscalated:   {StatusResolved, StatusDismissed, StatusUnderReview},
	StatusResolved:    {StatusUnderReview},
	StatusDismissed:   {StatusUnderReview},
}

// CanTransition reports whether the machine allows moving from one status
// to another. A same-status "transition" is not an edge; callers treat it
// as a no-op before consulting the table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns the statuses reachable from the given status.
func AllowedTargets(from Status) []Status {
	targets := make([]Status, len(transitions[from]))
	copy(targets, transitions[from])
	return targets
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidTransition - target status is not reachable from the current one.
	ErrInvalidTransition = shared.NewDomainError("incident", "UpdateStatus", shared.ErrStateTransition, "status transition not allowed")

	// ErrUnauthorizedTransition - the actor may not perform this transition.
	ErrUnauthorizedTransition = shared.NewDomainError("incident", "UpdateStatus", shared.ErrUnauthorized, "actor not authorized for target status")

	// ErrMissingActionTaken - resolving without resolution notes.
	ErrMissingActionTaken = shared.NewDomainError("incident", "Resolve", shared.ErrEmptyValue, "action_taken is required to resolve")

	// ErrSelfResolutionForbidden - the reporter may not resolve their own incident.
	ErrSelfResolutionForbidden = shared.NewDomainError("incident", "Resolve", shared.ErrForbidden, "reporter cannot resolve own incident")

	// ErrIncidentNotFound - the referenced incident does not exist.
	ErrIncidentNotFound = shared.NewDomainError("incident", "Find", shared.ErrNotFound, "incident not found")

	// ErrStaleIncident - a concurrent update won; the caller saw stale state.
	ErrStaleIncident = shared.NewDomainError("incident", "Update", shared.ErrConcurrentModification, "incident was modified concurrently")

	// ErrInvalidSeverity - severity is not one of the defined levels.
	ErrInvalidSeverity = errors.New("invalid incident severity")

	// ErrInvalidStatus - status is not one of the defined workflow states.
	ErrInvalidStatus = errors.New("invalid incident status")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: INCIDENT
// ══════════════════════════════════════════════════════════════════════════════

// Incident is a recorded disciplinary event tied to one student.
type Incident struct {
	// ID is the unique identifier, assigned at creation, immutable.
	ID string

	// StudentID references the subject of the report. Immutable.
	StudentID string

	// ReporterID is the actor who filed the incident. Immutable.
	ReporterID string

	// AssignedTo is the current owner. Empty when nobody owns the case.
	AssignedTo string

	// Severity is fixed at creation; the engine never changes it.
	Severity Severity

	// Status is governed by the state machine above.
	Status Status

	// Title and Description are free text set at creation.
	Title       string
	Description string

	// ActionTaken documents the resolution. Required before a transition
	// into resolved can succeed.
	ActionTaken string

	// OccurredAt is the real-world date of the event, caller supplied.
	OccurredAt time.Time

	// ClosedBy/ClosedAt are stamped when the incident first becomes
	// resolved or dismissed. They are never cleared on reopen, so a
	// reopened case keeps the record of its first closure.
	ClosedBy string
	ClosedAt time.Time

	// Version is the optimistic-concurrency counter. Every committed
	// write increments it; a write against a stale version is rejected.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewIncidentParams contains the parameters for filing a new incident.
type NewIncidentParams struct {
	ID          string
	StudentID   string
	ReporterID  string
	Severity    Severity
	Title       string
	Description string
	OccurredAt  time.Time
}

// NewIncident creates a new incident in the pending status with all
// fields validated. An empty severity defaults to low.
func NewIncident(params NewIncidentParams) (*Incident, error) {
	if params.ID == "" {
		return nil, errors.New("incident id is required")
	}
	if params.StudentID == "" {
		return nil, errors.New("incident student id is required")
	}
	if params.ReporterID == "" {
		return nil, errors.New("incident reporter id is required")
	}

	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, errors.New("incident title is required")
	}

	severity := params.Severity
	if severity == "" {
		severity = DefaultSeverity
	}
	if !severity.IsValid() {
		return nil, ErrInvalidSeverity
	}

	occurredAt := params.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	now := time.Now().UTC()

	return &Incident{
		ID:          params.ID,
		StudentID:   params.StudentID,
		ReporterID:  params.ReporterID,
		Severity:    severity,
		Status:      StatusPending,
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		OccurredAt:  occurredAt,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// IsAssigned returns true when the incident has a current owner.
func (i *Incident) IsAssigned() bool {
	return i.AssignedTo != ""
}

// IsAssignedTo returns true when the given actor owns the incident.
func (i *Incident) IsAssignedTo(actorID string) bool {
	return i.AssignedTo != "" && i.AssignedTo == actorID
}

// IsReportedBy returns true when the given actor filed the incident.
func (i *Incident) IsReportedBy(actorID string) bool {
	return i.ReporterID == actorID
}

// HasActionTaken returns true when resolution notes are stored.
func (i *Incident) HasActionTaken() bool {
	return strings.TrimSpace(i.ActionTaken) != ""
}

// WasEverClosed returns true when the incident has been resolved or
// dismissed at least once in its history.
func (i *Incident) WasEverClosed() bool {
	return i.ClosedBy != "" || !i.ClosedAt.IsZero()
}

// CanTransitionTo reports whether the state machine allows moving to the
// target status from the current one.
func (i *Incident) CanTransitionTo(target Status) bool {
	return CanTransition(i.Status, target)
}

// Transition moves the incident to the target status. It enforces only
// the state machine; authorization and status preconditions are checked
// by the lifecycle engine before calling this.
func (i *Incident) Transition(target Status, actorID string) error {
	if !target.IsValid() {
		return ErrInvalidStatus
	}
	if !i.CanTransitionTo(target) {
		return ErrInvalidTransition
	}

	i.Status = target
	i.UpdatedAt = time.Now().UTC()

	// First closure stamps the closing actor; reopening never clears it.
	if target.IsClosed() && !i.WasEverClosed() {
		i.ClosedBy = actorID
		i.ClosedAt = i.UpdatedAt
	}

	return nil
}

// Reassign changes the current owner. An empty id clears the assignment.
func (i *Incident) Reassign(assigneeID string) {
	i.AssignedTo = assigneeID
	i.UpdatedAt = time.Now().UTC()
}

// RecordAction stores resolution notes.
func (i *Incident) RecordAction(actionTaken string) {
	i.ActionTaken = strings.TrimSpace(actionTaken)
	i.UpdatedAt = time.Now().UTC()
}

// Clone creates a deep copy of the incident.
func (i *Incident) Clone() *Incident {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}
