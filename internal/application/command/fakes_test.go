package command

import (
	"context"
	"errors"
	"sync"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
	"github.com/schoolhub/discipline-core/internal/domain/escalation"
	"github.com/schoolhub/discipline-core/internal/domain/incident"
	"github.com/schoolhub/discipline-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY PERSISTENCE FAKES
// The store mimics the transactional repositories: writes made through a
// unit of work become visible only on Commit, and Update enforces the
// version guard the same way the SQL implementation does.
// ══════════════════════════════════════════════════════════════════════════════

type memStore struct {
	mu        sync.Mutex
	incidents map[string]*incident.Incident
	logs      []*incident.StatusLog

	beginErr  error
	commitErr error
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{incidents: make(map[string]*incident.Incident)}
}

func (s *memStore) seed(inc *incident.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[inc.ID] = inc.Clone()
}

func (s *memStore) get(id string) *incident.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incidents[id].Clone()
}

func (s *memStore) trailFor(incidentID string) []*incident.StatusLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var trail []*incident.StatusLog
	for _, entry := range s.logs {
		if entry.IncidentID == incidentID {
			trail = append(trail, entry)
		}
	}
	return trail
}

func (s *memStore) Begin(_ context.Context) (incident.UnitOfWork, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return &memUow{store: s}, nil
}

// memUow buffers writes until Commit.
type memUow struct {
	store *memStore
	done  bool

	pendingIncidents []*incident.Incident
	pendingLogs      []*incident.StatusLog
}

func (u *memUow) Incidents() incident.Repository {
	return &memIncidentRepo{uow: u}
}

func (u *memUow) StatusLogs() incident.StatusLogRepository {
	return &memStatusLogRepo{uow: u}
}

func (u *memUow) Commit(_ context.Context) error {
	if u.done {
		return errors.New("transaction already closed")
	}
	u.done = true
	if u.store.commitErr != nil {
		return u.store.commitErr
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	for _, inc := range u.pendingIncidents {
		u.store.incidents[inc.ID] = inc.Clone()
	}
	u.store.logs = append(u.store.logs, u.pendingLogs...)
	return nil
}

func (u *memUow) Rollback(_ context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.pendingIncidents = nil
	u.pendingLogs = nil
	return nil
}

type memIncidentRepo struct {
	uow *memUow
}

func (r *memIncidentRepo) Create(_ context.Context, inc *incident.Incident) error {
	r.uow.pendingIncidents = append(r.uow.pendingIncidents, inc.Clone())
	return nil
}

func (r *memIncidentRepo) FindByID(_ context.Context, id string) (*incident.Incident, error) {
	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()
	inc, ok := r.uow.store.incidents[id]
	if !ok {
		return nil, incident.ErrIncidentNotFound
	}
	return inc.Clone(), nil
}

func (r *memIncidentRepo) FindByIDForUpdate(ctx context.Context, id string) (*incident.Incident, error) {
	return r.FindByID(ctx, id)
}

func (r *memIncidentRepo) Update(_ context.Context, inc *incident.Incident) error {
	if r.uow.store.updateErr != nil {
		return r.uow.store.updateErr
	}

	r.uow.store.mu.Lock()
	stored, ok := r.uow.store.incidents[inc.ID]
	r.uow.store.mu.Unlock()
	if !ok {
		return incident.ErrIncidentNotFound
	}
	if stored.Version != inc.Version {
		return incident.ErrStaleIncident
	}

	inc.Version++
	r.uow.pendingIncidents = append(r.uow.pendingIncidents, inc.Clone())
	return nil
}

func (r *memIncidentRepo) List(_ context.Context, _ incident.ListFilter) ([]*incident.Incident, error) {
	return nil, errors.New("not implemented")
}

func (r *memIncidentRepo) CountByStudent(_ context.Context, _ string, _ incident.Status) (int, error) {
	return 0, errors.New("not implemented")
}

type memStatusLogRepo struct {
	uow *memUow
}

func (r *memStatusLogRepo) Append(_ context.Context, entry *incident.StatusLog) error {
	r.uow.pendingLogs = append(r.uow.pendingLogs, entry)
	return nil
}

func (r *memStatusLogRepo) TrailFor(_ context.Context, incidentID string) ([]*incident.StatusLog, error) {
	return r.uow.store.trailFor(incidentID), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY, RULE STORE AND PUBLISHER FAKES
// ══════════════════════════════════════════════════════════════════════════════

type memDirectory struct {
	actors map[string]*actor.Actor
}

func newMemDirectory(actors ...*actor.Actor) *memDirectory {
	d := &memDirectory{actors: make(map[string]*actor.Actor)}
	for _, a := range actors {
		d.actors[a.ID] = a
	}
	return d
}

func (d *memDirectory) FindByID(_ context.Context, id string) (*actor.Actor, error) {
	a, ok := d.actors[id]
	if !ok {
		return nil, actor.ErrActorNotFound
	}
	return a, nil
}

func (d *memDirectory) FindOneWithRole(_ context.Context, role actor.Role) (*actor.Actor, error) {
	for _, a := range d.actors {
		if a.Roles.Has(role) {
			return a, nil
		}
	}
	return nil, actor.ErrActorNotFound
}

type memRuleStore struct {
	rules map[incident.Severity]*escalation.Rule
	err   error
}

func (s *memRuleStore) FindDefaultRule(_ context.Context, severity incident.Severity) (*escalation.Rule, error) {
	if s.err != nil {
		return nil, s.err
	}
	rule, ok := s.rules[severity]
	if !ok {
		return nil, escalation.ErrRuleNotFound
	}
	return rule, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) published() []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturingPublisher) typesPublished() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}
