package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediadrop/mediadrop/internal/model"
)

const ruleIDPrefix = "sub-"

// Manager errors
var (
	// ErrInvalidRule rejects a create or update synchronously
	ErrInvalidRule = errors.New("invalid subscription rule")

	// ErrRuleNotFound reports an unknown rule id
	ErrRuleNotFound = errors.New("subscription rule not found")
)

// Store persists subscription rules
type Store interface {
	Save(ctx context.Context, rule *model.SubscriptionRule) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*model.SubscriptionRule, error)
}

// Manager owns the subscription rules. It is the only writer of each rule's
// dedup ledger; the scheduler reads rule snapshots and commits poll results
// back through CommitPoll and RecordError.
type Manager struct {
	store  Store
	logger *slog.Logger

	mu    sync.Mutex
	rules map[string]*model.SubscriptionRule
}

// NewManager constructs an empty manager. Call Load to read persisted rules.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger.With("component", "subscriptions"),
		rules:  make(map[string]*model.SubscriptionRule),
	}
}

// Load reads all persisted rules into memory, replacing the current set
func (m *Manager) Load(ctx context.Context) error {
	rules, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = make(map[string]*model.SubscriptionRule, len(rules))
	for _, rule := range rules {
		m.rules[rule.ID] = rule
	}
	return nil
}

// Create validates and persists a new rule. The rule gets a fresh id, an
// empty dedup ledger, and defaults to enabled.
func (m *Manager) Create(ctx context.Context, rule model.SubscriptionRule) (*model.SubscriptionRule, error) {
	if strings.TrimSpace(rule.FeedURL) == "" {
		return nil, fmt.Errorf("%w: feed url must not be empty", ErrInvalidRule)
	}

	now := time.Now()
	rule.ID = generateRuleID()
	rule.Enabled = true
	rule.LastSeenEntryIDs = nil
	rule.LastCheckedAt = time.Time{}
	rule.LastError = ""
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := m.store.Save(ctx, &rule); err != nil {
		return nil, fmt.Errorf("failed to persist subscription: %w", err)
	}

	m.mu.Lock()
	m.rules[rule.ID] = &rule
	m.mu.Unlock()

	m.logger.Info("subscription created", "rule_id", rule.ID, "feed_url", rule.FeedURL)
	return rule.Clone(), nil
}

// Update replaces a rule's user-editable fields. The dedup ledger only
// grows: ids already seen stay seen no matter what the caller passes.
func (m *Manager) Update(ctx context.Context, rule model.SubscriptionRule) (*model.SubscriptionRule, error) {
	if strings.TrimSpace(rule.FeedURL) == "" {
		return nil, fmt.Errorf("%w: feed url must not be empty", ErrInvalidRule)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.rules[rule.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, rule.ID)
	}

	updated := rule.Clone()
	updated.CreatedAt = existing.CreatedAt
	updated.LastCheckedAt = existing.LastCheckedAt
	updated.LastError = existing.LastError
	updated.UpdatedAt = time.Now()
	updated.LastSeenEntryIDs = nil
	for id := range existing.LastSeenEntryIDs {
		updated.MarkSeen(id)
	}
	for id := range rule.LastSeenEntryIDs {
		updated.MarkSeen(id)
	}

	if err := m.store.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to persist subscription: %w", err)
	}
	m.rules[rule.ID] = updated
	return updated.Clone(), nil
}

// Delete removes a rule. Unknown ids are a no-op. The store is updated
// first: a failed store delete leaves the rule in memory, so it matches
// what a restart would load.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.rules[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	m.mu.Lock()
	delete(m.rules, id)
	m.mu.Unlock()

	m.logger.Info("subscription deleted", "rule_id", id)
	return nil
}

// Get returns a snapshot of one rule
func (m *Manager) Get(id string) (*model.SubscriptionRule, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok {
		return nil, false
	}
	return rule.Clone(), true
}

// List returns snapshots of all rules
func (m *Manager) List() []*model.SubscriptionRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	rules := make([]*model.SubscriptionRule, 0, len(m.rules))
	for _, rule := range m.rules {
		rules = append(rules, rule.Clone())
	}
	return rules
}

// Enabled returns snapshots of the rules eligible for timer-driven polls
func (m *Manager) Enabled() []*model.SubscriptionRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rules []*model.SubscriptionRule
	for _, rule := range m.rules {
		if rule.Enabled {
			rules = append(rules, rule.Clone())
		}
	}
	return rules
}

// CommitPoll records a successful poll: every evaluated entry id enters the
// dedup ledger, the feed title is adopted, lastCheckedAt advances, and any
// earlier poll error is cleared.
func (m *Manager) CommitPoll(ctx context.Context, id, feedTitle string, seenIDs []string) error {
	m.mu.Lock()
	rule, ok := m.rules[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	rule.MarkSeen(seenIDs...)
	if feedTitle != "" {
		rule.Title = feedTitle
	}
	rule.LastCheckedAt = time.Now()
	rule.LastError = ""
	snapshot := rule.Clone()
	m.mu.Unlock()

	if err := m.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist poll result: %w", err)
	}
	return nil
}

// RecordError records a failed poll on the rule. The dedup ledger and
// lastCheckedAt are left untouched.
func (m *Manager) RecordError(ctx context.Context, id string, pollErr error) error {
	m.mu.Lock()
	rule, ok := m.rules[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	rule.LastError = pollErr.Error()
	snapshot := rule.Clone()
	m.mu.Unlock()

	if err := m.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist poll error: %w", err)
	}
	return nil
}

// generateRuleID generates a unique rule ID using UUID v7 for better
// uniqueness and time ordering
func generateRuleID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(ruleIDPrefix+"%d", time.Now().UnixNano())
	}
	return ruleIDPrefix + id.String()
}
