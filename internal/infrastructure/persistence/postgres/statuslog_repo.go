package postgres

import (
	"context"
	"fmt"

	"github.com/schoolhub/discipline-core/internal/domain/incident"
)

// StatusLogRepository implements incident.StatusLogRepository on
// PostgreSQL. Inserts only; the table carries a trigger that rejects
// updates and deletes.
type StatusLogRepository struct {
	q Querier
}

// NewStatusLogRepository creates a repository on the given querier.
func NewStatusLogRepository(q Querier) *StatusLogRepository {
	return &StatusLogRepository{q: q}
}

// Append persists one audit row.
func (r *StatusLogRepository) Append(ctx context.Context, entry *incident.StatusLog) error {
	query := `
		INSERT INTO incident_status_logs (id, incident_id, old_status, new_status, changed_by, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var oldStatus *string
	if entry.OldStatus != "" {
		s := entry.OldStatus.String()
		oldStatus = &s
	}

	_, err := r.q.Exec(ctx, query,
		entry.ID, entry.IncidentID, oldStatus, entry.NewStatus.String(),
		entry.ChangedBy, entry.Comment, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append status log: %w", err)
	}
	return nil
}

// TrailFor returns the audit trail of an incident, oldest first.
func (r *StatusLogRepository) TrailFor(ctx context.Context, incidentID string) ([]*incident.StatusLog, error) {
	query := `
		SELECT id, incident_id, old_status, new_status, changed_by, comment, created_at
		FROM incident_status_logs
		WHERE incident_id = $1
		ORDER BY created_at ASC`

	rows, err := r.q.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load status logs: %w", err)
	}
	defer rows.Close()

	var trail []*incident.StatusLog
	for rows.Next() {
		var (
			entry     incident.StatusLog
			oldStatus *string
			newStatus string
		)
		if err := rows.Scan(&entry.ID, &entry.IncidentID, &oldStatus, &newStatus,
			&entry.ChangedBy, &entry.Comment, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan status log: %w", err)
		}
		if oldStatus != nil {
			entry.OldStatus = incident.Status(*oldStatus)
		}
		entry.NewStatus = incident.Status(newStatus)
		trail = append(trail, &entry)
	}
	return trail, rows.Err()
}
