package incident

import (
	"context"
	"time"
)

// ListFilter narrows incident listings. Zero values mean "no constraint".
type ListFilter struct {
	StudentID  string
	AssignedTo string
	ReporterID string
	Status     Status
	Severity   Severity

	OccurredAfter  time.Time
	OccurredBefore time.Time

	Limit  int
	Offset int
}

// Repository is the persistence port for incidents.
type Repository interface {
	// Create persists a new incident.
	Create(ctx context.Context, inc *Incident) error

	// FindByID loads an incident by id. Returns ErrIncidentNotFound
	// when no row exists.
	FindByID(ctx context.Context, id string) (*Incident, error)

	// FindByIDForUpdate loads an incident and locks its row for the
	// duration of the enclosing transaction. Only meaningful when
	// called through a UnitOfWork.
	FindByIDForUpdate(ctx context.Context, id string) (*Incident, error)

	// Update persists incident changes guarded by the entity version.
	// Returns ErrStaleIncident when the stored version moved on.
	Update(ctx context.Context, inc *Incident) error

	// List returns incidents matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]*Incident, error)

	// CountByStudent returns the number of incidents filed against a
	// student, optionally narrowed to a status.
	CountByStudent(ctx context.Context, studentID string, status Status) (int, error)
}

// StatusLogRepository is the persistence port for the audit trail.
// Append only: there is no update or delete.
type StatusLogRepository interface {
	// Append persists one audit row.
	Append(ctx context.Context, entry *StatusLog) error

	// TrailFor returns the full audit trail of an incident ordered by
	// creation time ascending.
	TrailFor(ctx context.Context, incidentID string) ([]*StatusLog, error)
}

// UnitOfWork scopes repository work to a single transaction. Commit makes
// all writes visible atomically; Rollback discards them. Rollback after a
// successful Commit is a no-op, which allows `defer uow.Rollback(ctx)`.
type UnitOfWork interface {
	Incidents() Repository
	StatusLogs() StatusLogRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory opens transactional scopes.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
