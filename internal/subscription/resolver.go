package subscription

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mediadrop/mediadrop/internal/model"
)

// FeedFetchTimeout bounds one feed fetch; a poll is never slower than this
// per rule.
const FeedFetchTimeout = 30 * time.Second

// FeedResolver fetches and parses one feed URL into normalized entries
type FeedResolver interface {
	Resolve(ctx context.Context, feedURL string) (*ResolvedFeed, error)
}

// ResolvedFeed is the normalized result of one feed fetch
type ResolvedFeed struct {
	Title   string
	Entries []model.FeedEntry
}

// GofeedResolver resolves RSS, Atom and JSON feeds over HTTP
type GofeedResolver struct {
	parser *gofeed.Parser
}

// NewGofeedResolver returns a resolver with a bounded HTTP client
func NewGofeedResolver() *GofeedResolver {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: FeedFetchTimeout}
	return &GofeedResolver{parser: parser}
}

// Resolve fetches and normalizes a feed. Items without a usable id or media
// URL are skipped rather than failing the whole feed.
func (r *GofeedResolver) Resolve(ctx context.Context, feedURL string) (*ResolvedFeed, error) {
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve feed %s: %w", feedURL, err)
	}

	resolved := &ResolvedFeed{Title: feed.Title}
	for _, item := range feed.Items {
		entry := model.FeedEntry{
			ID:    item.GUID,
			Title: item.Title,
		}
		if entry.ID == "" {
			entry.ID = item.Link
		}

		// Podcast-style feeds carry the media as an enclosure; video
		// platforms link the watch page directly.
		entry.MediaURL = item.Link
		if len(item.Enclosures) > 0 && item.Enclosures[0].URL != "" {
			entry.MediaURL = item.Enclosures[0].URL
		}

		if item.PublishedParsed != nil {
			entry.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			entry.PublishedAt = *item.UpdatedParsed
		}

		if entry.ID == "" || entry.MediaURL == "" {
			continue
		}
		resolved.Entries = append(resolved.Entries, entry)
	}
	return resolved, nil
}
