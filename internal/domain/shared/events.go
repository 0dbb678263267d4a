// Package shared contains common domain types, errors, and events used
// across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the incident lifecycle and is published after the owning
// transaction has committed.
const (
	// Incident events
	EventIncidentReported      EventType = "incident.reported"
	EventIncidentStatusChanged EventType = "incident.status_changed"
	EventIncidentReassigned    EventType = "incident.reassigned"
	EventIncidentEscalated     EventType = "incident.escalated"
	EventIncidentClosed        EventType = "incident.closed"
	EventIncidentReopened      EventType = "incident.reopened"

	// Notification events
	EventNotificationSent   EventType = "notification.sent"
	EventNotificationFailed EventType = "notification.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Incident Events
// ═══════════════════════════════════════════════════════════════════════════

// IncidentReportedEvent is emitted when a new incident is filed.
type IncidentReportedEvent struct {
	BaseEvent
	IncidentID string `json:"incident_id"`
	StudentID  string `json:"student_id"`
	ReporterID string `json:"reporter_id"`
	AssignedTo string `json:"assigned_to,omitempty"`
	Severity   string `json:"severity"`
	Title      string `json:"title"`
}

// Payload implements Event interface.
func (e IncidentReportedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"incident_id": e.IncidentID,
		"student_id":  e.StudentID,
		"reporter_id": e.ReporterID,
		"assigned_to": e.AssignedTo,
		"severity":    e.Severity,
		"title":       e.Title,
	}
}

// NewIncidentReportedEvent creates a new IncidentReportedEvent.
func NewIncidentReportedEvent(incidentID, studentID, reporterID, assignedTo, severity, title string) IncidentReportedEvent {
	return IncidentReportedEvent{
		BaseEvent:  NewBaseEvent(EventIncidentReported, incidentID),
		IncidentID: incidentID,
		StudentID:  studentID,
		ReporterID: reporterID,
		AssignedTo: assignedTo,
		Severity:   severity,
		Title:      title,
	}
}

// IncidentStatusChangedEvent is emitted for every committed status transition.
type IncidentStatusChangedEvent struct {
	BaseEvent
	IncidentID string `json:"incident_id"`
	StudentID  string `json:"student_id"`
	OldStatus  string `json:"old_status"`
	NewStatus  string `json:"new_status"`
	ChangedBy  string `json:"changed_by"`
	Comment    string `json:"comment,omitempty"`
}

// Payload implements Event interface.
func (e IncidentStatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"incident_id": e.IncidentID,
		"student_id":  e.StudentID,
		"old_status":  e.OldStatus,
		"new_status":  e.NewStatus,
		"changed_by":  e.ChangedBy,
		"comment":     e.Comment,
	}
}

// NewIncidentStatusChangedEvent creates a new IncidentStatusChangedEvent.
func NewIncidentStatusChangedEvent(incidentID, studentID, oldStatus, newStatus, changedBy, comment string) IncidentStatusChangedEvent {
	return IncidentStatusChangedEvent{
		BaseEvent:  NewBaseEvent(EventIncidentStatusChanged, incidentID),
		IncidentID: incidentID,
		StudentID:  studentID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		ChangedBy:  changedBy,
		Comment:    comment,
	}
}

// IncidentReassignedEvent is emitted when ownership changes without a
// status transition.
type IncidentReassignedEvent struct {
	BaseEvent
	IncidentID   string `json:"incident_id"`
	OldAssignee  string `json:"old_assignee,omitempty"`
	NewAssignee  string `json:"new_assignee"`
	ReassignedBy string `json:"reassigned_by"`
}

// Payload implements Event interface.
func (e IncidentReassignedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"incident_id":   e.IncidentID,
		"old_assignee":  e.OldAssignee,
		"new_assignee":  e.NewAssignee,
		"reassigned_by": e.ReassignedBy,
	}
}

// NewIncidentReassignedEvent creates a new IncidentReassignedEvent.
func NewIncidentReassignedEvent(incidentID, oldAssignee, newAssignee, reassignedBy string) IncidentReassignedEvent {
	return IncidentReassignedEvent{
		BaseEvent:    NewBaseEvent(EventIncidentReassigned, incidentID),
		IncidentID:   incidentID,
		OldAssignee:  oldAssignee,
		NewAssignee:  newAssignee,
		ReassignedBy: reassignedBy,
	}
}

// IncidentEscalatedEvent is emitted when an incident enters the escalated
// status.
type IncidentEscalatedEvent struct {
	BaseEvent
	IncidentID  string `json:"incident_id"`
	StudentID   string `json:"student_id"`
	Severity    string `json:"severity"`
	AssignedTo  string `json:"assigned_to,omitempty"`
	EscalatedBy string `json:"escalated_by"`
}

// Payload implements Event interface.
func (e IncidentEscalatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"incident_id":  e.IncidentID,
		"student_id":   e.StudentID,
		"severity":     e.Severity,
		"assigned_to":  e.AssignedTo,
		"escalated_by": e.EscalatedBy,
	}
}

// NewIncidentEscalatedEvent creates a new IncidentEscalatedEvent.
func NewIncidentEscalatedEvent(incidentID, studentID, severity, assignedTo, escalatedBy string) IncidentEscalatedEvent {
	return IncidentEscalatedEvent{
		BaseEvent:   NewBaseEvent(EventIncidentEscalated, incidentID),
		IncidentID:  incidentID,
		StudentID:   studentID,
		Severity:    severity,
		AssignedTo:  assignedTo,
		EscalatedBy: escalatedBy,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
