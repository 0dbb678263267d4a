package actor

import "context"

// Directory resolves staff actors and their roles. The actor records
// themselves are owned by the wider platform; the engine only reads.
type Directory interface {
	// FindByID loads an actor by id. Returns ErrActorNotFound when no
	// actor exists.
	FindByID(ctx context.Context, id string) (*Actor, error)

	// FindOneWithRole returns any one active actor holding the role,
	// in directory iteration order, or nil when nobody holds it.
	FindOneWithRole(ctx context.Context, role Role) (*Actor, error)
}

// GuardianDirectory resolves the guardians of a student. Only guardians
// with portal access enabled are returned; they are the notification
// audience for incident events.
type GuardianDirectory interface {
	GuardiansOf(ctx context.Context, studentID string) ([]*Guardian, error)
}
