package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mediadrop/mediadrop/internal/model"
)

// SubscriptionStore persists subscription rules, including each rule's
// dedup ledger of seen feed-entry ids.
type SubscriptionStore struct {
	db *sql.DB
}

// Save upserts a rule by id
func (s *SubscriptionStore) Save(ctx context.Context, rule *model.SubscriptionRule) error {
	keywords, err := json.Marshal(rule.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	tags, err := json.Marshal(rule.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	ledger, err := encodeLedger(rule.LastSeenEntryIDs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			id, feed_url, title, keywords, tags, only_download_latest,
			download_directory, naming_template, enabled,
			last_seen_entry_ids, last_checked_at, last_error,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			feed_url = excluded.feed_url,
			title = excluded.title,
			keywords = excluded.keywords,
			tags = excluded.tags,
			only_download_latest = excluded.only_download_latest,
			download_directory = excluded.download_directory,
			naming_template = excluded.naming_template,
			enabled = excluded.enabled,
			last_seen_entry_ids = excluded.last_seen_entry_ids,
			last_checked_at = excluded.last_checked_at,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		rule.ID, rule.FeedURL, rule.Title, string(keywords), string(tags),
		boolToInt(rule.OnlyDownloadLatest), rule.DownloadDirectory,
		rule.NamingTemplate, boolToInt(rule.Enabled), ledger,
		rule.LastCheckedAt.Unix(), rule.LastError,
		rule.CreatedAt.Unix(), rule.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// Get returns one rule by id
func (s *SubscriptionStore) Get(ctx context.Context, id string) (*model.SubscriptionRule, error) {
	rows, err := s.db.QueryContext(ctx, selectSubscriptions+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	return scanSubscriptionRow(rows)
}

// List returns all rules ordered by creation time
func (s *SubscriptionStore) List(ctx context.Context) ([]*model.SubscriptionRule, error) {
	rows, err := s.db.QueryContext(ctx, selectSubscriptions+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var rules []*model.SubscriptionRule
	for rows.Next() {
		rule, err := scanSubscriptionRow(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Delete removes one rule by id. Missing rules are not an error.
func (s *SubscriptionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

const selectSubscriptions = `
	SELECT id, feed_url, title, keywords, tags, only_download_latest,
		download_directory, naming_template, enabled,
		last_seen_entry_ids, last_checked_at, last_error,
		created_at, updated_at
	FROM subscriptions`

func scanSubscriptionRow(rows *sql.Rows) (*model.SubscriptionRule, error) {
	var (
		rule                   model.SubscriptionRule
		keywordsJSON, tagsJSON string
		ledgerJSON             string
		onlyLatest, enabled    int
		lastChecked            int64
		createdAt, updatedAt   int64
	)
	err := rows.Scan(
		&rule.ID, &rule.FeedURL, &rule.Title, &keywordsJSON, &tagsJSON,
		&onlyLatest, &rule.DownloadDirectory, &rule.NamingTemplate,
		&enabled, &ledgerJSON, &lastChecked, &rule.LastError,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription row: %w", err)
	}

	rule.OnlyDownloadLatest = onlyLatest != 0
	rule.Enabled = enabled != 0
	if lastChecked > 0 {
		rule.LastCheckedAt = time.Unix(lastChecked, 0)
	}
	rule.CreatedAt = time.Unix(createdAt, 0)
	rule.UpdatedAt = time.Unix(updatedAt, 0)

	if err := json.Unmarshal([]byte(keywordsJSON), &rule.Keywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &rule.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}

	var seen []string
	if err := json.Unmarshal([]byte(ledgerJSON), &seen); err != nil {
		return nil, fmt.Errorf("failed to decode seen-entry ledger: %w", err)
	}
	if len(seen) > 0 {
		rule.LastSeenEntryIDs = make(map[string]bool, len(seen))
		for _, id := range seen {
			rule.LastSeenEntryIDs[id] = true
		}
	}
	return &rule, nil
}

// encodeLedger stores the seen-entry set as a sorted JSON array so equal
// sets produce identical rows.
func encodeLedger(seen map[string]bool) (string, error) {
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to encode seen-entry ledger: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
