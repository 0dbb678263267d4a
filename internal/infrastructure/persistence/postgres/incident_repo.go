package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/schoolhub/discipline-core/internal/domain/incident"
)

// IncidentRepository implements incident.Repository on PostgreSQL.
// It runs against any Querier, so the same repository serves both
// pool-backed reads and transactional writes inside a unit of work.
type IncidentRepository struct {
	q Querier
}

// NewIncidentRepository creates a repository on the given querier.
func NewIncidentRepository(q Querier) *IncidentRepository {
	return &IncidentRepository{q: q}
}

const incidentColumns = `
	id, student_id, reporter_id, assigned_to, severity, status,
	title, description, action_taken, occurred_at,
	closed_by, closed_at, version, created_at, updated_at`

// Create persists a new incident.
func (r *IncidentRepository) Create(ctx context.Context, inc *incident.Incident) error {
	query := `
		INSERT INTO incidents (
			id, student_id, reporter_id, assigned_to, severity, status,
			title, description, action_taken, occurred_at,
			closed_by, closed_at, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.q.Exec(ctx, query,
		inc.ID, inc.StudentID, inc.ReporterID, nullString(inc.AssignedTo),
		inc.Severity.String(), inc.Status.String(),
		inc.Title, inc.Description, inc.ActionTaken, inc.OccurredAt,
		nullString(inc.ClosedBy), nullTime(inc.ClosedAt),
		inc.Version, inc.CreatedAt, inc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create incident: %w", err)
	}
	return nil
}

// FindByID loads an incident by id.
func (r *IncidentRepository) FindByID(ctx context.Context, id string) (*incident.Incident, error) {
	query := `SELECT` + incidentColumns + ` FROM incidents WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

// FindByIDForUpdate loads an incident and locks its row until the
// enclosing transaction ends.
func (r *IncidentRepository) FindByIDForUpdate(ctx context.Context, id string) (*incident.Incident, error) {
	query := `SELECT` + incidentColumns + ` FROM incidents WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

// Update persists incident changes guarded by the entity version. The
// stored version must match the version the entity was loaded with; on
// success the entity's version is advanced to the stored value.
func (r *IncidentRepository) Update(ctx context.Context, inc *incident.Incident) error {
	query := `
		UPDATE incidents SET
			assigned_to = $1,
			status = $2,
			action_taken = $3,
			closed_by = $4,
			closed_at = $5,
			version = version + 1,
			updated_at = $6
		WHERE id = $7 AND version = $8`

	tag, err := r.q.Exec(ctx, query,
		nullString(inc.AssignedTo), inc.Status.String(), inc.ActionTaken,
		nullString(inc.ClosedBy), nullTime(inc.ClosedAt),
		inc.UpdatedAt, inc.ID, inc.Version,
	)
	if err != nil {
		return fmt.Errorf("postgres: update incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row vanished or a concurrent writer bumped the
		// version first; find out which.
		var exists bool
		checkErr := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incidents WHERE id = $1)`, inc.ID).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("postgres: update incident: %w", checkErr)
		}
		if !exists {
			return incident.ErrIncidentNotFound
		}
		return incident.ErrStaleIncident
	}

	inc.Version++
	return nil
}

// List returns incidents matching the filter, newest first.
func (r *IncidentRepository) List(ctx context.Context, filter incident.ListFilter) ([]*incident.Incident, error) {
	var (
		conditions []string
		args       []interface{}
	)

	addCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.StudentID != "" {
		addCondition("student_id = $%d", filter.StudentID)
	}
	if filter.AssignedTo != "" {
		addCondition("assigned_to = $%d", filter.AssignedTo)
	}
	if filter.ReporterID != "" {
		addCondition("reporter_id = $%d", filter.ReporterID)
	}
	if filter.Status != "" {
		addCondition("status = $%d", filter.Status.String())
	}
	if filter.Severity != "" {
		addCondition("severity = $%d", filter.Severity.String())
	}
	if !filter.OccurredAfter.IsZero() {
		addCondition("occurred_at >= $%d", filter.OccurredAfter)
	}
	if !filter.OccurredBefore.IsZero() {
		addCondition("occurred_at <= $%d", filter.OccurredBefore)
	}

	query := `SELECT` + incidentColumns + ` FROM incidents`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*incident.Incident
	for rows.Next() {
		inc, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// CountByStudent returns the number of incidents for a student,
// optionally narrowed to a status.
func (r *IncidentRepository) CountByStudent(ctx context.Context, studentID string, status incident.Status) (int, error) {
	query := `SELECT COUNT(*) FROM incidents WHERE student_id = $1`
	args := []interface{}{studentID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status.String())
	}

	var count int
	if err := r.q.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count incidents: %w", err)
	}
	return count, nil
}

func (r *IncidentRepository) scanOne(row pgx.Row) (*incident.Incident, error) {
	inc, err := scanIncident(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, incident.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("postgres: find incident: %w", err)
	}
	return inc, nil
}

func (r *IncidentRepository) scanRow(rows pgx.Rows) (*incident.Incident, error) {
	inc, err := scanIncident(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan incident: %w", err)
	}
	return inc, nil
}

func scanIncident(row pgx.Row) (*incident.Incident, error) {
	var (
		inc        incident.Incident
		severity   string
		status     string
		assignedTo *string
		closedBy   *string
		closedAt   *time.Time
	)

	err := row.Scan(
		&inc.ID, &inc.StudentID, &inc.ReporterID, &assignedTo, &severity, &status,
		&inc.Title, &inc.Description, &inc.ActionTaken, &inc.OccurredAt,
		&closedBy, &closedAt, &inc.Version, &inc.CreatedAt, &inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inc.Severity = incident.Severity(severity)
	inc.Status = incident.Status(status)
	if assignedTo != nil {
		inc.AssignedTo = *assignedTo
	}
	if closedBy != nil {
		inc.ClosedBy = *closedBy
	}
	if closedAt != nil {
		inc.ClosedAt = *closedAt
	}

	return &inc, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
