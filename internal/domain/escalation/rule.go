// Package escalation holds the rule-driven assignment logic: static
// severity-to-role rules and the resolver that turns a severity into a
// concrete owning actor.
package escalation

import (
	"context"
	"time"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
	"github.com/schoolhub/discipline-core/internal/domain/incident"
	"github.com/schoolhub/discipline-core/internal/domain/shared"
)

// Rule maps a severity to the role responsible for incidents of that
// severity. Rules are platform defaults; school-specific overrides exist
// in the schema (is_custom) but the engine only consults defaults.
type Rule struct {
	ID        string
	Severity  incident.Severity
	Role      actor.Role
	IsCustom  bool
	CreatedAt time.Time
}

// ErrRuleNotFound - no default rule exists for the severity.
var ErrRuleNotFound = shared.NewDomainError("escalation", "FindRule", shared.ErrNotFound, "no escalation rule for severity")

// RuleStore is the read-only port for escalation rules.
type RuleStore interface {
	// FindDefaultRule returns the platform default rule for the
	// severity (is_custom = false). Returns ErrRuleNotFound when no
	// such rule exists.
	FindDefaultRule(ctx context.Context, severity incident.Severity) (*Rule, error)
}
