package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
	"github.com/schoolhub/discipline-core/internal/domain/escalation"
	"github.com/schoolhub/discipline-core/internal/domain/incident"
)

// cachedRule is the cached form of an escalation rule. Misses are
// cached too, so a severity with no configured rule does not hammer
// the database on every filing.
type cachedRule struct {
	ID        string    `json:"id"`
	Severity  string    `json:"severity"`
	Role      string    `json:"role"`
	IsCustom  bool      `json:"is_custom"`
	CreatedAt time.Time `json:"created_at"`
	Missing   bool      `json:"missing,omitempty"`
}

// CachedRuleStore is a read-through cache over an escalation.RuleStore.
// Cache failures degrade to direct reads, never to request failures.
type CachedRuleStore struct {
	inner  escalation.RuleStore
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRuleStore wraps a rule store with Redis caching.
func NewCachedRuleStore(inner escalation.RuleStore, cache *Cache, logger *slog.Logger) *CachedRuleStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &CachedRuleStore{
		inner:  inner,
		cache:  cache,
		ttl:    TTLRuleCache,
		logger: logger,
	}
}

// FindDefaultRule implements escalation.RuleStore.
func (s *CachedRuleStore) FindDefaultRule(ctx context.Context, severity incident.Severity) (*escalation.Rule, error) {
	key := ruleKey(severity)

	var cached cachedRule
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		if cached.Missing {
			return nil, escalation.ErrRuleNotFound
		}
		return cached.toRule(), nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("rule cache read failed, falling back to store",
			slog.String("severity", severity.String()),
			slog.Any("error", err))
	}

	rule, err := s.inner.FindDefaultRule(ctx, severity)
	if err != nil {
		if errors.Is(err, escalation.ErrRuleNotFound) {
			s.store(ctx, key, cachedRule{Severity: severity.String(), Missing: true})
		}
		return nil, err
	}

	s.store(ctx, key, cachedRule{
		ID:        rule.ID,
		Severity:  rule.Severity.String(),
		Role:      rule.Role.String(),
		IsCustom:  rule.IsCustom,
		CreatedAt: rule.CreatedAt,
	})
	return rule, nil
}

// Invalidate drops all cached rules. Call after rule administration.
func (s *CachedRuleStore) Invalidate(ctx context.Context) error {
	return s.cache.DeleteByPrefix(ctx, PrefixRule)
}

func (s *CachedRuleStore) store(ctx context.Context, key string, value cachedRule) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("rule cache write failed",
			slog.String("key", key),
			slog.Any("error", err))
	}
}

func (c cachedRule) toRule() *escalation.Rule {
	return &escalation.Rule{
		ID:        c.ID,
		Severity:  incident.Severity(c.Severity),
		Role:      actor.Role(c.Role),
		IsCustom:  c.IsCustom,
		CreatedAt: c.CreatedAt,
	}
}

func ruleKey(severity incident.Severity) string {
	return PrefixRule + "default:" + severity.String()
}
