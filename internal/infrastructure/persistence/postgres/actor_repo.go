package postgres

import (
	"context"
	"fmt"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
)

// ActorDirectory implements actor.Directory and actor.GuardianDirectory
// on PostgreSQL. The platform owns these tables; this side only reads.
type ActorDirectory struct {
	q Querier
}

// NewActorDirectory creates a directory on the given querier.
func NewActorDirectory(q Querier) *ActorDirectory {
	return &ActorDirectory{q: q}
}

// FindByID loads an actor by id.
func (d *ActorDirectory) FindByID(ctx context.Context, id string) (*actor.Actor, error) {
	query := `
		SELECT id, school_id, full_name, email, roles, active, created_at
		FROM actors
		WHERE id = $1`

	a, err := scanActor(d.q.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, actor.ErrActorNotFound
		}
		return nil, fmt.Errorf("postgres: find actor: %w", err)
	}
	return a, nil
}

// FindOneWithRole returns any one active actor holding the role. The
// order is whatever the index returns first; there is deliberately no
// tie-break.
func (d *ActorDirectory) FindOneWithRole(ctx context.Context, role actor.Role) (*actor.Actor, error) {
	query := `
		SELECT id, school_id, full_name, email, roles, active, created_at
		FROM actors
		WHERE active AND $1 = ANY(roles)
		LIMIT 1`

	a, err := scanActor(d.q.QueryRow(ctx, query, role.String()))
	if err != nil {
		if IsNoRows(err) {
			return nil, actor.ErrActorNotFound
		}
		return nil, fmt.Errorf("postgres: find actor with role: %w", err)
	}
	return a, nil
}

// GuardiansOf returns the portal-enabled guardians of a student.
func (d *ActorDirectory) GuardiansOf(ctx context.Context, studentID string) ([]*actor.Guardian, error) {
	query := `
		SELECT id, student_id, full_name, email, portal_access
		FROM guardians
		WHERE student_id = $1 AND portal_access`

	rows, err := d.q.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load guardians: %w", err)
	}
	defer rows.Close()

	var guardians []*actor.Guardian
	for rows.Next() {
		var g actor.Guardian
		if err := rows.Scan(&g.ID, &g.StudentID, &g.FullName, &g.Email, &g.PortalAccess); err != nil {
			return nil, fmt.Errorf("postgres: scan guardian: %w", err)
		}
		guardians = append(guardians, &g)
	}
	return guardians, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActor(row rowScanner) (*actor.Actor, error) {
	var (
		a     actor.Actor
		roles []string
	)
	if err := row.Scan(&a.ID, &a.SchoolID, &a.FullName, &a.Email, &roles, &a.Active, &a.CreatedAt); err != nil {
		return nil, err
	}

	a.Roles = make(actor.RoleSet, 0, len(roles))
	for _, r := range roles {
		a.Roles = append(a.Roles, actor.Role(r))
	}
	return &a, nil
}
