package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/schoolhub/discipline-core/internal/domain/incident"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST INCIDENTS QUERY
// Filtered incident listing for dashboards and caseload views.
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListIncidentsQuery contains the listing filters. Zero values mean "no
// constraint".
type ListIncidentsQuery struct {
	StudentID  string
	AssignedTo string
	ReporterID string
	Status     incident.Status
	Severity   incident.Severity

	Limit  int
	Offset int
}

// Validate validates and normalizes the query parameters.
func (q *ListIncidentsQuery) Validate() error {
	if q.Status != "" && !q.Status.IsValid() {
		return fmt.Errorf("list_incidents: unknown status: %s", q.Status)
	}
	if q.Severity != "" && !q.Severity.IsValid() {
		return fmt.Errorf("list_incidents: unknown severity: %s", q.Severity)
	}
	if q.Offset < 0 {
		return errors.New("list_incidents: offset must not be negative")
	}
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	return nil
}

// ListIncidentsResult contains the matching incidents, newest first.
type ListIncidentsResult struct {
	Incidents []*IncidentDTO `json:"incidents"`
	Count     int            `json:"count"`
}

// ListIncidentsHandler handles the ListIncidentsQuery.
type ListIncidentsHandler struct {
	incidents incident.Repository
}

// NewListIncidentsHandler creates a new ListIncidentsHandler.
func NewListIncidentsHandler(incidents incident.Repository) *ListIncidentsHandler {
	return &ListIncidentsHandler{incidents: incidents}
}

// Handle executes the query.
func (h *ListIncidentsHandler) Handle(ctx context.Context, q ListIncidentsQuery) (*ListIncidentsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	incidents, err := h.incidents.List(ctx, incident.ListFilter{
		StudentID:  q.StudentID,
		AssignedTo: q.AssignedTo,
		ReporterID: q.ReporterID,
		Status:     q.Status,
		Severity:   q.Severity,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list_incidents: %w", err)
	}

	dtos := make([]*IncidentDTO, 0, len(incidents))
	for _, inc := range incidents {
		dtos = append(dtos, toIncidentDTO(inc))
	}

	return &ListIncidentsResult{Incidents: dtos, Count: len(dtos)}, nil
}
