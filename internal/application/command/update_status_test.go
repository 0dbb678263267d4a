package command

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
	"github.com/schoolhub/discipline-core/internal/domain/escalation"
	"github.com/schoolhub/discipline-core/internal/domain/incident"
	"github.com/schoolhub/discipline-core/internal/domain/shared"
)

func newUpdateHandler(store *memStore, rules *memRuleStore, dir *memDirectory, pub *capturingPublisher) *UpdateStatusHandler {
	resolver := escalation.NewResolver(rules, dir, slog.Default())
	return NewUpdateStatusHandler(store, dir, resolver, pub, slog.Default())
}

func seedIncident(store *memStore, mutate func(*incident.Incident)) *incident.Incident {
	inc := &incident.Incident{
		ID:         "inc-1",
		StudentID:  "student-1",
		ReporterID: "teacher-1",
		Severity:   incident.SeverityMedium,
		Status:     incident.StatusPending,
		Title:      "Skipped detention",
		Version:    1,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if mutate != nil {
		mutate(inc)
	}
	store.seed(inc)
	return inc
}

func strPtr(s string) *string { return &s }

func TestUpdateStatus_AssigneeMovesToUnderReview(t *testing.T) {
	counselor := &actor.Actor{ID: "counselor-1", Roles: actor.RoleSet{actor.RoleCounselor}}
	store := newMemStore()
	seedIncident(store, func(i *incident.Incident) { i.AssignedTo = "counselor-1" })
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(counselor), pub)

	result, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "counselor-1",
		TargetStatus: incident.StatusUnderReview,
	})
	require.NoError(t, err)

	assert.Equal(t, incident.StatusPending, result.OldStatus)
	assert.Equal(t, incident.StatusUnderReview, result.NewStatus)
	assert.False(t, result.NoOp)

	stored := store.get("inc-1")
	assert.Equal(t, incident.StatusUnderReview, stored.Status)
	assert.Equal(t, 2, stored.Version)

	// Exactly one audit row with a generated default comment.
	trail := store.trailFor("inc-1")
	require.Len(t, trail, 1)
	assert.Equal(t, incident.StatusPending, trail[0].OldStatus)
	assert.Equal(t, incident.StatusUnderReview, trail[0].NewStatus)
	assert.Equal(t, "counselor-1", trail[0].ChangedBy)
	assert.Equal(t, "Status changed from pending to under_review", trail[0].Comment)

	assert.Equal(t, []shared.EventType{shared.EventIncidentStatusChanged}, pub.typesPublished())
}

func TestUpdateStatus_InvalidTransitionLeavesStateUntouched(t *testing.T) {
	admin := &actor.Actor{ID: "admin-1", Roles: actor.RoleSet{actor.RoleAdmin}}
	store := newMemStore()
	seedIncident(store, func(i *incident.Incident) { i.Status = incident.StatusResolved })
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(admin), pub)

	_, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "admin-1",
		TargetStatus: incident.StatusEscalated,
	})
	require.ErrorIs(t, err, incident.ErrInvalidTransition)

	stored := store.get("inc-1")
	assert.Equal(t, incident.StatusResolved, stored.Status)
	assert.Equal(t, 1, stored.Version)
	assert.Empty(t, store.trailFor("inc-1"))
	assert.Empty(t, pub.published())
}

func TestUpdateStatus_UnauthorizedActorRejected(t *testing.T) {
	bystander := &actor.Actor{ID: "teacher-2", Roles: actor.RoleSet{actor.RoleTeacher}}
	store := newMemStore()
	seedIncident(store, func(i *incident.Incident) { i.AssignedTo = "counselor-1" })
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(bystander), pub)

	_, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "teacher-2",
		TargetStatus: incident.StatusUnderReview,
	})
	require.ErrorIs(t, err, incident.ErrUnauthorizedTransition)

	assert.Equal(t, incident.StatusPending, store.get("inc-1").Status)
	assert.Empty(t, store.trailFor("inc-1"))
	assert.Empty(t, pub.published())
}

func TestUpdateStatus_SameStatusIsNoOp(t *testing.T) {
	teacher := &actor.Actor{ID: "teacher-2", Roles: actor.RoleSet{actor.RoleTeacher}}
	store := newMemStore()
	seedIncident(store, nil)
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(teacher), pub)

	// A no-op needs no authorization: nothing changes.
	result, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "teacher-2",
		TargetStatus: incident.StatusPending,
	})
	require.NoError(t, err)

	assert.True(t, result.NoOp)
	assert.Equal(t, result.OldStatus, result.NewStatus)
	assert.Equal(t, 1, store.get("inc-1").Version)
	assert.Empty(t, store.trailFor("inc-1"))
	assert.Empty(t, pub.published())
}

func TestUpdateStatus_PureReassignment(t *testing.T) {
	principal := &actor.Actor{ID: "principal-1", Roles: actor.RoleSet{actor.RolePrincipal}}
	store := newMemStore()
	seedIncident(store, func(i *incident.Incident) {
		i.Status = incident.StatusUnderReview
		i.AssignedTo = "counselor-1"
	})
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(principal), pub)

	result, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "principal-1",
		TargetStatus: incident.StatusUnderReview,
		AssignedTo:   strPtr("counselor-2"),
	})
	require.NoError(t, err)

	assert.True(t, result.Reassigned)
	assert.False(t, result.NoOp)
	assert.Equal(t, "counselor-2", store.get("inc-1").AssignedTo)

	// Reassignment writes no audit row but does publish an event.
	assert.Empty(t, store.trailFor("inc-1"))
	assert.Equal(t, []shared.EventType{shared.EventIncidentReassigned}, pub.typesPublished())
}

func TestUpdateStatus_PureReassignmentRequiresAuthorization(t *testing.T) {
	teacher := &actor.Actor{ID: "teacher-2", Roles: actor.RoleSet{actor.RoleTeacher}}
	store := newMemStore()
	seedIncident(store, func(i *incident.Incident) {
		i.Status = incident.StatusUnderReview
		i.AssignedTo = "counselor-1"
	})
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(teacher), pub)

	_, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "teacher-2",
		TargetStatus: incident.StatusUnderReview,
		AssignedTo:   strPtr("teacher-2"),
	})
	require.ErrorIs(t, err, incident.ErrUnauthorizedTransition)
	assert.Equal(t, "counselor-1", store.get("inc-1").AssignedTo)
}

func TestUpdateStatus_ResolveRequiresActionTaken(t *testing.T) {
	counselor := &actor.Actor{ID: "counselor-1", Roles: actor.RoleSet{actor.RoleCounselor}}
	store := newMemStore()
	seedIncident(store, func(i *incident.Incident) {
		i.Status = incident.StatusUnderReview
		i.AssignedTo = "counselor-1"
	})
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(counselor), pub)

	// Neither the command nor the incident carries resolution notes.
	_, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "counselor-1",
		TargetStatus: incident.StatusResolved,
		ActionTaken:  "   ",
	})
	require.ErrorIs(t, err, incident.ErrMissingActionTaken)
	assert.Equal(t, incident.StatusUnderReview, store.get("inc-1").Status)

	// Supplying notes on the command satisfies the precondition.
	result, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "counselor-1",
		TargetStatus: incident.StatusResolved,
		ActionTaken:  "Parent conference held",
	})
	require.NoError(t, err)
	assert.Equal(t, incident.StatusResolved, result.NewStatus)
	assert.Equal(t, "Parent conference held", store.get("inc-1").ActionTaken)
}

func TestUpdateStatus_ResolveWithStoredActionTaken(t *testing.T) {
	counselor := &actor.Actor{ID: "counselor-1", Roles: actor.RoleSet{actor.RoleCounselor}}
	store := newMemStore()
	seedIncident(store, func(i *incident.Incident) {
		i.Status = incident.StatusUnderReview
		i.AssignedTo = "counselor-1"
		i.ActionTaken = "Detention assigned"
	})
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(counselor), pub)

	result, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "counselor-1",
		TargetStatus: incident.StatusResolved,
	})
	require.NoError(t, err)
	assert.Equal(t, incident.StatusResolved, result.NewStatus)
	assert.Equal(t, "Detention assigned", store.get("inc-1").ActionTaken)
}

func TestUpdateStatus_DismissDoesNotRequireActionTaken(t *testing.T) {
	counselor := &actor.Actor{ID: "counselor-1", Roles: actor.RoleSet{actor.RoleCounselor}}
	store := newMemStore()
	seedIncident(store, func(i *incident.Incident) { i.AssignedTo = "counselor-1" })
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(counselor), pub)

	result, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "counselor-1",
		TargetStatus: incident.StatusDismissed,
		Comment:      "Report was mistaken identity",
	})
	require.NoError(t, err)
	assert.Equal(t, incident.StatusDismissed, result.NewStatus)

	trail := store.trailFor("inc-1")
	require.Len(t, trail, 1)
	assert.Equal(t, "Report was mistaken identity", trail[0].Comment)
}

func TestUpdateStatus_SelfResolutionForbiddenEvenForAdmin(t *testing.T) {
	// The reporter is an admin and the assignee; identity still wins.
	reporter := &actor.Actor{ID: "teacher-1", Roles: actor.RoleSet{actor.RoleAdmin}}
	store := newMemStore()
	seedIncident(store, func(i *incident.Incident) {
		i.Status = incident.StatusUnderReview
		i.AssignedTo = "teacher-1"
	})
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(reporter), pub)

	_, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "teacher-1",
		TargetStatus: incident.StatusResolved,
		ActionTaken:  "Handled it myself",
	})
	require.ErrorIs(t, err, incident.ErrSelfResolutionForbidden)

	stored := store.get("inc-1")
	assert.Equal(t, incident.StatusUnderReview, stored.Status)
	assert.Empty(t, stored.ActionTaken)
	assert.Empty(t, pub.published())
}

func TestUpdateStatus_SelfDismissalAllowed(t *testing.T) {
	// The identity rule binds resolution only; the reporter may dismiss
	// their own report when otherwise authorized.
	reporter := &actor.Actor{ID: "teacher-1", Roles: actor.RoleSet{actor.RolePrincipal}}
	store := newMemStore()
	seedIncident(store, nil)
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(reporter), pub)

	result, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "teacher-1",
		TargetStatus: incident.StatusDismissed,
	})
	require.NoError(t, err)
	assert.Equal(t, incident.StatusDismissed, result.NewStatus)
}

func TestUpdateStatus_EscalationUsesFallbackSeverity(t *testing.T) {
	counselor := &actor.Actor{ID: "counselor-1", Roles: actor.RoleSet{actor.RoleCounselor}}
	director := &actor.Actor{ID: "director-1", Roles: actor.RoleSet{actor.RoleAcademicDirector}}
	store := newMemStore()
	// Incident severity is medium, but escalation consults the critical
	// fallback rule.
	seedIncident(store, func(i *incident.Incident) { i.AssignedTo = "counselor-1" })
	rules := &memRuleStore{rules: map[incident.Severity]*escalation.Rule{
		incident.SeverityMedium:   {ID: "rule-m", Severity: incident.SeverityMedium, Role: actor.RoleCounselor},
		incident.SeverityCritical: {ID: "rule-c", Severity: incident.SeverityCritical, Role: actor.RoleAcademicDirector},
	}}
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, rules, newMemDirectory(counselor, director), pub)

	result, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "counselor-1",
		TargetStatus: incident.StatusEscalated,
	})
	require.NoError(t, err)

	assert.Equal(t, "director-1", store.get("inc-1").AssignedTo)
	assert.True(t, result.Reassigned)
	assert.Equal(t, []shared.EventType{
		shared.EventIncidentStatusChanged,
		shared.EventIncidentEscalated,
		shared.EventIncidentReassigned,
	}, pub.typesPublished())
}

func TestUpdateStatus_EscalationExplicitAssigneeWins(t *testing.T) {
	counselor := &actor.Actor{ID: "counselor-1", Roles: actor.RoleSet{actor.RoleCounselor}}
	director := &actor.Actor{ID: "director-1", Roles: actor.RoleSet{actor.RoleAcademicDirector}}
	store := newMemStore()
	seedIncident(store, func(i *incident.Incident) { i.AssignedTo = "counselor-1" })
	rules := &memRuleStore{rules: map[incident.Severity]*escalation.Rule{
		incident.SeverityCritical: {ID: "rule-c", Severity: incident.SeverityCritical, Role: actor.RoleAcademicDirector},
	}}
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, rules, newMemDirectory(counselor, director), pub)

	_, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "counselor-1",
		TargetStatus: incident.StatusEscalated,
		AssignedTo:   strPtr("director-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "director-1", store.get("inc-1").AssignedTo)
}

func TestUpdateStatus_EscalationWithoutRuleKeepsAssignee(t *testing.T) {
	counselor := &actor.Actor{ID: "counselor-1", Roles: actor.RoleSet{actor.RoleCounselor}}
	store := newMemStore()
	seedIncident(store, func(i *incident.Incident) { i.AssignedTo = "counselor-1" })
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(counselor), pub)

	result, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "counselor-1",
		TargetStatus: incident.StatusEscalated,
	})
	require.NoError(t, err)

	assert.Equal(t, "counselor-1", store.get("inc-1").AssignedTo)
	assert.False(t, result.Reassigned)
	assert.Equal(t, []shared.EventType{
		shared.EventIncidentStatusChanged,
		shared.EventIncidentEscalated,
	}, pub.typesPublished())
}

func TestUpdateStatus_ReopenKeepsClosureRecord(t *testing.T) {
	principal := &actor.Actor{ID: "principal-1", Roles: actor.RoleSet{actor.RolePrincipal}}
	store := newMemStore()
	closedAt := time.Now().UTC().Add(-24 * time.Hour)
	seedIncident(store, func(i *incident.Incident) {
		i.Status = incident.StatusResolved
		i.ActionTaken = "Suspension served"
		i.ClosedBy = "counselor-1"
		i.ClosedAt = closedAt
	})
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(principal), pub)

	result, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "principal-1",
		TargetStatus: incident.StatusUnderReview,
		Comment:      "New evidence surfaced",
	})
	require.NoError(t, err)

	assert.Equal(t, incident.StatusUnderReview, result.NewStatus)
	stored := store.get("inc-1")
	assert.Equal(t, "counselor-1", stored.ClosedBy)
	assert.Equal(t, closedAt, stored.ClosedAt)
}

func TestUpdateStatus_StaleVersionRejected(t *testing.T) {
	counselor := &actor.Actor{ID: "counselor-1", Roles: actor.RoleSet{actor.RoleCounselor}}
	store := newMemStore()
	store.updateErr = incident.ErrStaleIncident
	seedIncident(store, func(i *incident.Incident) { i.AssignedTo = "counselor-1" })
	pub := &capturingPublisher{}
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(counselor), pub)

	_, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "counselor-1",
		TargetStatus: incident.StatusUnderReview,
	})
	require.ErrorIs(t, err, incident.ErrStaleIncident)

	assert.Equal(t, incident.StatusPending, store.get("inc-1").Status)
	assert.Empty(t, store.trailFor("inc-1"))
	assert.Empty(t, pub.published())
}

func TestUpdateStatus_UnknownActor(t *testing.T) {
	store := newMemStore()
	seedIncident(store, nil)
	handler := newUpdateHandler(store, &memRuleStore{}, newMemDirectory(), &capturingPublisher{})

	_, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "ghost",
		TargetStatus: incident.StatusUnderReview,
	})
	require.ErrorIs(t, err, actor.ErrActorNotFound)
}

func TestUpdateStatus_UnknownIncident(t *testing.T) {
	admin := &actor.Actor{ID: "admin-1", Roles: actor.RoleSet{actor.RoleAdmin}}
	handler := newUpdateHandler(newMemStore(), &memRuleStore{}, newMemDirectory(admin), &capturingPublisher{})

	_, err := handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "missing",
		ActorID:      "admin-1",
		TargetStatus: incident.StatusUnderReview,
	})
	require.ErrorIs(t, err, incident.ErrIncidentNotFound)
}

func TestUpdateStatus_Validation(t *testing.T) {
	handler := newUpdateHandler(newMemStore(), &memRuleStore{}, newMemDirectory(), &capturingPublisher{})

	_, err := handler.Handle(context.Background(), UpdateStatusCommand{
		ActorID:      "admin-1",
		TargetStatus: incident.StatusUnderReview,
	})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		TargetStatus: incident.StatusUnderReview,
	})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), UpdateStatusCommand{
		IncidentID:   "inc-1",
		ActorID:      "admin-1",
		TargetStatus: incident.Status("archived"),
	})
	assert.Error(t, err)
}
