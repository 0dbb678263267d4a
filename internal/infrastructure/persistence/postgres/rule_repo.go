package postgres

import (
	"context"
	"fmt"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
	"github.com/schoolhub/discipline-core/internal/domain/escalation"
	"github.com/schoolhub/discipline-core/internal/domain/incident"
)

// RuleStore implements escalation.RuleStore on PostgreSQL.
type RuleStore struct {
	q Querier
}

// NewRuleStore creates a rule store on the given querier.
func NewRuleStore(q Querier) *RuleStore {
	return &RuleStore{q: q}
}

// FindDefaultRule returns the platform default rule for the severity.
func (s *RuleStore) FindDefaultRule(ctx context.Context, severity incident.Severity) (*escalation.Rule, error) {
	query := `
		SELECT id, severity, role, is_custom, created_at
		FROM escalation_rules
		WHERE severity = $1 AND is_custom = FALSE`

	var (
		rule    escalation.Rule
		sevText string
		role    string
	)
	err := s.q.QueryRow(ctx, query, severity.String()).Scan(
		&rule.ID, &sevText, &role, &rule.IsCustom, &rule.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, escalation.ErrRuleNotFound
		}
		return nil, fmt.Errorf("postgres: find escalation rule: %w", err)
	}

	rule.Severity = incident.Severity(sevText)
	rule.Role = actor.Role(role)
	return &rule, nil
}
