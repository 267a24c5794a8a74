package model

import (
	"strings"
	"time"
)

// FeedEntry is one normalized item produced by a feed poll. Entries are
// ephemeral; only their IDs survive a poll, inside the owning rule's ledger.
type FeedEntry struct {
	ID          string
	Title       string
	PublishedAt time.Time
	MediaURL    string
}

// SubscriptionRule is a user-defined feed to watch for new media.
// LastSeenEntryIDs is the dedup ledger: it only grows, and it records every
// entry evaluated by a poll, whether or not the entry was downloaded.
type SubscriptionRule struct {
	ID                 string
	FeedURL            string
	Title              string // resolved from the feed
	Keywords           []string
	Tags               []string
	OnlyDownloadLatest bool
	DownloadDirectory  string
	NamingTemplate     string
	Enabled            bool
	LastSeenEntryIDs   map[string]bool
	LastCheckedAt      time.Time
	LastError          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasSeen reports whether an entry id is already in the dedup ledger
func (r *SubscriptionRule) HasSeen(entryID string) bool {
	return r.LastSeenEntryIDs[entryID]
}

// MarkSeen adds entry ids to the dedup ledger. Entries are never un-seen.
func (r *SubscriptionRule) MarkSeen(entryIDs ...string) {
	if r.LastSeenEntryIDs == nil {
		r.LastSeenEntryIDs = make(map[string]bool, len(entryIDs))
	}
	for _, id := range entryIDs {
		if id != "" {
			r.LastSeenEntryIDs[id] = true
		}
	}
}

// MatchesKeywords reports whether an entry title passes the rule's keyword
// filter. Matching is a case-insensitive substring check; a rule without
// keywords matches everything.
func (r *SubscriptionRule) MatchesKeywords(title string) bool {
	if len(r.Keywords) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, kw := range r.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand outside the manager
func (r *SubscriptionRule) Clone() *SubscriptionRule {
	c := *r
	if r.Keywords != nil {
		c.Keywords = append([]string(nil), r.Keywords...)
	}
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	if r.LastSeenEntryIDs != nil {
		c.LastSeenEntryIDs = make(map[string]bool, len(r.LastSeenEntryIDs))
		for id := range r.LastSeenEntryIDs {
			c.LastSeenEntryIDs[id] = true
		}
	}
	return &c
}
