package model

import "testing"

func TestMarkSeenGrowsOnly(t *testing.T) {
	rule := &SubscriptionRule{}

	rule.MarkSeen("a", "b")
	rule.MarkSeen("c")
	rule.MarkSeen("") // empty ids are ignored

	for _, id := range []string{"a", "b", "c"} {
		if !rule.HasSeen(id) {
			t.Errorf("Expected entry %q to be seen", id)
		}
	}
	if len(rule.LastSeenEntryIDs) != 3 {
		t.Errorf("Expected 3 seen entries, got %d", len(rule.LastSeenEntryIDs))
	}
	if rule.HasSeen("d") {
		t.Error("Expected unknown entry to not be seen")
	}
}

func TestMatchesKeywords(t *testing.T) {
	rule := &SubscriptionRule{Keywords: []string{"Go", "release"}}

	if !rule.MatchesKeywords("Weekly GO roundup") {
		t.Error("Expected case-insensitive substring match")
	}
	if !rule.MatchesKeywords("New Release: episode 4") {
		t.Error("Expected match on second keyword")
	}
	if rule.MatchesKeywords("Rust news") {
		t.Error("Expected no match")
	}

	empty := &SubscriptionRule{}
	if !empty.MatchesKeywords("anything at all") {
		t.Error("Expected rule without keywords to match everything")
	}
}

func TestRuleClone(t *testing.T) {
	rule := &SubscriptionRule{
		ID:       "sub-1",
		Keywords: []string{"go"},
		Tags:     []string{"dev"},
	}
	rule.MarkSeen("e1")

	clone := rule.Clone()
	clone.Keywords[0] = "changed"
	clone.MarkSeen("e2")

	if rule.Keywords[0] != "go" {
		t.Error("Expected clone keywords to be independent")
	}
	if rule.HasSeen("e2") {
		t.Error("Expected clone ledger to be independent")
	}
}
