package escalation

import (
	"context"
	"log/slog"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
	"github.com/schoolhub/discipline-core/internal/domain/incident"
	"github.com/schoolhub/discipline-core/internal/domain/shared"
)

// FallbackSeverity is the severity the resolver is queried with when an
// incident is escalated without an explicit assignee. It is deliberately
// fixed rather than the incident's own severity so that escalations
// always route to the most senior configured role.
const FallbackSeverity = incident.SeverityCritical

// Resolver finds a concrete actor to own an incident of a given
// severity by chaining the rule store and the actor directory.
type Resolver struct {
	rules     RuleStore
	directory actor.Directory
	logger    *slog.Logger
}

// NewResolver creates an escalation resolver.
func NewResolver(rules RuleStore, directory actor.Directory, logger *slog.Logger) *Resolver {
	return &Resolver{
		rules:     rules,
		directory: directory,
		logger:    logger,
	}
}

// ResolveAssignee returns an actor to assign for the severity, or nil
// when no rule or no matching actor exists. A nil result is not an
// error: callers leave the assignment unchanged.
func (r *Resolver) ResolveAssignee(ctx context.Context, severity incident.Severity) (*actor.Actor, error) {
	rule, err := r.rules.FindDefaultRule(ctx, severity)
	if err != nil {
		if shared.IsNotFound(err) {
			r.logger.Debug("no escalation rule for severity",
				slog.String("severity", severity.String()))
			return nil, nil
		}
		return nil, shared.WrapError("escalation", "ResolveAssignee", shared.ErrServiceUnavailable, "rule lookup failed", err)
	}

	assignee, err := r.directory.FindOneWithRole(ctx, rule.Role)
	if err != nil {
		if shared.IsNotFound(err) {
			r.logger.Debug("no actor holds escalation role",
				slog.String("severity", severity.String()),
				slog.String("role", rule.Role.String()))
			return nil, nil
		}
		return nil, shared.WrapError("escalation", "ResolveAssignee", shared.ErrServiceUnavailable, "actor lookup failed", err)
	}
	if assignee == nil {
		return nil, nil
	}

	r.logger.Debug("resolved assignee",
		slog.String("severity", severity.String()),
		slog.String("role", rule.Role.String()),
		slog.String("actor_id", assignee.ID))

	return assignee, nil
}
