package command

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
	"github.com/schoolhub/discipline-core/internal/domain/escalation"
	"github.com/schoolhub/discipline-core/internal/domain/incident"
	"github.com/schoolhub/discipline-core/internal/domain/shared"
)

func newReportHandler(store *memStore, rules *memRuleStore, dir *memDirectory, pub *capturingPublisher) *ReportIncidentHandler {
	resolver := escalation.NewResolver(rules, dir, slog.Default())
	return NewReportIncidentHandler(store, resolver, pub, slog.Default())
}

func TestReportIncident_HappyPath(t *testing.T) {
	counselor := &actor.Actor{ID: "counselor-1", Roles: actor.RoleSet{actor.RoleCounselor}}
	store := newMemStore()
	rules := &memRuleStore{rules: map[incident.Severity]*escalation.Rule{
		incident.SeverityMedium: {ID: "rule-1", Severity: incident.SeverityMedium, Role: actor.RoleCounselor},
	}}
	pub := &capturingPublisher{}

	handler := newReportHandler(store, rules, newMemDirectory(counselor), pub)

	result, err := handler.Handle(context.Background(), ReportIncidentCommand{
		StudentID:   "student-1",
		ReporterID:  "teacher-1",
		Severity:    incident.SeverityMedium,
		Title:       "Skipped detention",
		Description: "Did not show up for assigned detention.",
	})
	require.NoError(t, err)

	assert.Equal(t, incident.StatusPending, result.Incident.Status)
	assert.Equal(t, "counselor-1", result.AssignedTo)
	assert.Equal(t, 1, result.Incident.Version)

	// Persisted state matches the returned one.
	stored := store.get(result.Incident.ID)
	require.NotNil(t, stored)
	assert.Equal(t, incident.StatusPending, stored.Status)
	assert.Equal(t, "counselor-1", stored.AssignedTo)

	// Exactly one audit row: the creation row.
	trail := store.trailFor(result.Incident.ID)
	require.Len(t, trail, 1)
	assert.True(t, trail[0].IsCreation())
	assert.Equal(t, incident.StatusPending, trail[0].NewStatus)
	assert.Equal(t, "teacher-1", trail[0].ChangedBy)
	assert.Equal(t, "Incident reported", trail[0].Comment)

	// One post-commit event.
	events := pub.published()
	require.Len(t, events, 1)
	reported, ok := events[0].(shared.IncidentReportedEvent)
	require.True(t, ok)
	assert.Equal(t, result.Incident.ID, reported.IncidentID)
	assert.Equal(t, "counselor-1", reported.AssignedTo)
}

func TestReportIncident_NoRuleLeavesUnassigned(t *testing.T) {
	store := newMemStore()
	pub := &capturingPublisher{}
	handler := newReportHandler(store, &memRuleStore{}, newMemDirectory(), pub)

	result, err := handler.Handle(context.Background(), ReportIncidentCommand{
		StudentID:  "student-1",
		ReporterID: "teacher-1",
		Title:      "Late to class",
	})
	require.NoError(t, err)

	assert.Empty(t, result.AssignedTo)
	assert.False(t, result.Incident.IsAssigned())
	assert.Equal(t, incident.SeverityLow, result.Incident.Severity)
}

func TestReportIncident_Validation(t *testing.T) {
	handler := newReportHandler(newMemStore(), &memRuleStore{}, newMemDirectory(), &capturingPublisher{})

	_, err := handler.Handle(context.Background(), ReportIncidentCommand{
		ReporterID: "teacher-1",
		Title:      "No student",
	})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), ReportIncidentCommand{
		StudentID: "student-1",
		Title:     "No reporter",
	})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), ReportIncidentCommand{
		StudentID:  "student-1",
		ReporterID: "teacher-1",
	})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), ReportIncidentCommand{
		StudentID:  "student-1",
		ReporterID: "teacher-1",
		Title:      "Bad severity",
		Severity:   incident.Severity("apocalyptic"),
	})
	assert.Error(t, err)
}

func TestReportIncident_ResolverFailureAbortsFiling(t *testing.T) {
	store := newMemStore()
	rules := &memRuleStore{err: errors.New("connection refused")}
	pub := &capturingPublisher{}
	handler := newReportHandler(store, rules, newMemDirectory(), pub)

	_, err := handler.Handle(context.Background(), ReportIncidentCommand{
		StudentID:  "student-1",
		ReporterID: "teacher-1",
		Title:      "Fight in hallway",
	})
	require.Error(t, err)

	assert.Empty(t, store.incidents)
	assert.Empty(t, store.logs)
	assert.Empty(t, pub.published())
}

func TestReportIncident_CommitFailureDiscardsWrites(t *testing.T) {
	store := newMemStore()
	store.commitErr = errors.New("deadlock detected")
	pub := &capturingPublisher{}
	handler := newReportHandler(store, &memRuleStore{}, newMemDirectory(), pub)

	_, err := handler.Handle(context.Background(), ReportIncidentCommand{
		StudentID:  "student-1",
		ReporterID: "teacher-1",
		Title:      "Fight in hallway",
	})
	require.Error(t, err)

	assert.Empty(t, store.incidents)
	assert.Empty(t, store.logs)
	assert.Empty(t, pub.published())
}

func TestReportIncident_PublishFailureDoesNotFailCommand(t *testing.T) {
	store := newMemStore()
	pub := &capturingPublisher{err: errors.New("bus closed")}
	handler := newReportHandler(store, &memRuleStore{}, newMemDirectory(), pub)

	result, err := handler.Handle(context.Background(), ReportIncidentCommand{
		StudentID:  "student-1",
		ReporterID: "teacher-1",
		Title:      "Phone confiscated",
	})
	require.NoError(t, err)

	// The incident and its audit row are committed even though the event
	// never reached a listener.
	assert.NotNil(t, store.get(result.Incident.ID))
	assert.Len(t, store.trailFor(result.Incident.ID), 1)
}

func TestReportIncident_CorrelationIDPropagates(t *testing.T) {
	store := newMemStore()
	pub := &capturingPublisher{}
	handler := newReportHandler(store, &memRuleStore{}, newMemDirectory(), pub)

	_, err := handler.Handle(context.Background(), ReportIncidentCommand{
		StudentID:     "student-1",
		ReporterID:    "teacher-1",
		Title:         "Graffiti",
		CorrelationID: "req-42",
	})
	require.NoError(t, err)

	events := pub.published()
	require.Len(t, events, 1)
	reported := events[0].(shared.IncidentReportedEvent)
	assert.Equal(t, "req-42", reported.CorrelationID)
}
