// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schoolhub/discipline-core/internal/domain/incident"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET INCIDENT QUERY
// Loads a single incident, optionally with its full audit trail and a
// consistency check that replays the trail against the stored status.
// ══════════════════════════════════════════════════════════════════════════════

// GetIncidentQuery contains the parameters for loading an incident.
type GetIncidentQuery struct {
	// IncidentID identifies the incident.
	IncidentID string

	// IncludeTrail loads the audit trail alongside the incident.
	IncludeTrail bool

	// VerifyTrail replays the audit trail and reports whether it folds
	// to the stored status. Implies IncludeTrail.
	VerifyTrail bool
}

// Validate validates the query parameters.
func (q *GetIncidentQuery) Validate() error {
	if q.IncidentID == "" {
		return errors.New("get_incident: incident_id is required")
	}
	if q.VerifyTrail {
		q.IncludeTrail = true
	}
	return nil
}

// IncidentDTO is the read model of an incident.
type IncidentDTO struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"student_id"`
	ReporterID  string     `json:"reporter_id"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ActionTaken string     `json:"action_taken,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
	ClosedBy    string     `json:"closed_by,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// StatusLogDTO is the read model of one audit trail row.
type StatusLogDTO struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	OldStatus  string    `json:"old_status,omitempty"`
	NewStatus  string    `json:"new_status"`
	ChangedBy  string    `json:"changed_by"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// GetIncidentResult contains the loaded incident and optional trail.
type GetIncidentResult struct {
	Incident *IncidentDTO `json:"incident"`

	// Trail is the audit trail, oldest first, when requested.
	Trail []*StatusLogDTO `json:"trail,omitempty"`

	// TrailConsistent reports whether the replayed trail matches the
	// stored status. Only set when VerifyTrail was requested.
	TrailConsistent *bool `json:"trail_consistent,omitempty"`
}

// GetIncidentHandler handles the GetIncidentQuery.
type GetIncidentHandler struct {
	incidents  incident.Repository
	statusLogs incident.StatusLogRepository
}

// NewGetIncidentHandler creates a new GetIncidentHandler.
func NewGetIncidentHandler(incidents incident.Repository, statusLogs incident.StatusLogRepository) *GetIncidentHandler {
	return &GetIncidentHandler{incidents: incidents, statusLogs: statusLogs}
}

// Handle executes the query.
func (h *GetIncidentHandler) Handle(ctx context.Context, q GetIncidentQuery) (*GetIncidentResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	inc, err := h.incidents.FindByID(ctx, q.IncidentID)
	if err != nil {
		return nil, fmt.Errorf("get_incident: %w", err)
	}

	result := &GetIncidentResult{Incident: toIncidentDTO(inc)}

	if q.IncludeTrail {
		trail, err := h.statusLogs.TrailFor(ctx, q.IncidentID)
		if err != nil {
			return nil, fmt.Errorf("get_incident: load trail: %w", err)
		}
		result.Trail = make([]*StatusLogDTO, 0, len(trail))
		for _, entry := range trail {
			result.Trail = append(result.Trail, toStatusLogDTO(entry))
		}

		if q.VerifyTrail {
			replayed, replayErr := incident.ReplayStatus(trail)
			consistent := replayErr == nil && replayed == inc.Status
			result.TrailConsistent = &consistent
		}
	}

	return result, nil
}

func toIncidentDTO(inc *incident.Incident) *IncidentDTO {
	dto := &IncidentDTO{
		ID:          inc.ID,
		StudentID:   inc.StudentID,
		ReporterID:  inc.ReporterID,
		AssignedTo:  inc.AssignedTo,
		Severity:    inc.Severity.String(),
		Status:      inc.Status.String(),
		Title:       inc.Title,
		Description: inc.Description,
		ActionTaken: inc.ActionTaken,
		OccurredAt:  inc.OccurredAt,
		ClosedBy:    inc.ClosedBy,
		Version:     inc.Version,
		CreatedAt:   inc.CreatedAt,
		UpdatedAt:   inc.UpdatedAt,
	}
	if !inc.ClosedAt.IsZero() {
		closedAt := inc.ClosedAt
		dto.ClosedAt = &closedAt
	}
	return dto
}

func toStatusLogDTO(entry *incident.StatusLog) *StatusLogDTO {
	return &StatusLogDTO{
		ID:         entry.ID,
		IncidentID: entry.IncidentID,
		OldStatus:  entry.OldStatus.String(),
		NewStatus:  entry.NewStatus.String(),
		ChangedBy:  entry.ChangedBy,
		Comment:    entry.Comment,
		CreatedAt:  entry.CreatedAt,
	}
}
