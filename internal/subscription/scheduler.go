package subscription

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mediadrop/mediadrop/internal/download"
	"github.com/mediadrop/mediadrop/internal/model"
)

// MinPollInterval is the floor for the timer-driven poll interval
const MinPollInterval = time.Hour

// Submitter is the slice of the download engine the scheduler needs
type Submitter interface {
	Submit(spec download.JobSpec) (string, error)
}

// Scheduler polls enabled rules on a fixed interval and on demand. Polls of
// distinct rules run concurrently; a rule already being polled is skipped,
// never queued behind itself.
type Scheduler struct {
	manager  *Manager
	resolver FeedResolver
	engine   Submitter
	logger   *slog.Logger

	mu       sync.Mutex
	interval time.Duration
	inflight map[string]bool
	closed   bool

	rearm chan struct{}
	quit  chan struct{}
	wg    sync.WaitGroup
}

// NewScheduler constructs and starts a scheduler. The interval is clamped
// to MinPollInterval.
func NewScheduler(manager *Manager, resolver FeedResolver, engine Submitter, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	s := &Scheduler{
		manager:  manager,
		resolver: resolver,
		engine:   engine,
		logger:   logger.With("component", "scheduler"),
		interval: interval,
		inflight: make(map[string]bool),
		rearm:    make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.loop()
	return s
}

// SetInterval changes the poll interval and re-arms the timer. In-flight
// polls are unaffected.
func (s *Scheduler) SetInterval(interval time.Duration) {
	if interval < MinPollInterval {
		interval = MinPollInterval
	}

	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()

	select {
	case s.rearm <- struct{}{}:
	default:
	}
}

// Interval returns the current poll interval
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// RefreshAll polls every enabled rule and returns when all polls finish.
// Rule failures are isolated; they are recorded on the failing rule and
// never abort the cycle.
func (s *Scheduler) RefreshAll(ctx context.Context) {
	rules := s.manager.Enabled()

	var wg sync.WaitGroup
	for _, rule := range rules {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.pollRule(ctx, id)
		}(rule.ID)
	}
	wg.Wait()
}

// Refresh polls one rule out of band, enabled or not. Unknown ids return
// ErrRuleNotFound.
func (s *Scheduler) Refresh(ctx context.Context, ruleID string) error {
	if _, ok := s.manager.Get(ruleID); !ok {
		return ErrRuleNotFound
	}
	s.pollRule(ctx, ruleID)
	return nil
}

// Close stops the timer loop. In-flight polls run to completion.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.quit)
	s.wg.Wait()
}

// loop drives the timer-based poll cycle. A rearm signal restarts the timer
// with the current interval without triggering a poll.
func (s *Scheduler) loop() {
	defer s.wg.Done()

	for {
		timer := time.NewTimer(s.Interval())
		select {
		case <-timer.C:
			s.RefreshAll(context.Background())
		case <-s.rearm:
			timer.Stop()
		case <-s.quit:
			timer.Stop()
			return
		}
	}
}

// pollRule runs the per-rule poll algorithm. The rule snapshot is taken
// after the in-flight slot is acquired: a poll that waited out another poll
// of the same rule sees the ledger that poll committed, so an entry already
// marked seen is never re-submitted.
func (s *Scheduler) pollRule(ctx context.Context, ruleID string) {
	if !s.tryAcquire(ruleID) {
		s.logger.Debug("poll already in flight, skipping", "rule_id", ruleID)
		return
	}
	defer s.release(ruleID)

	rule, ok := s.manager.Get(ruleID)
	if !ok {
		return
	}

	logger := s.logger.With("rule_id", rule.ID, "feed_url", rule.FeedURL)

	resolved, err := s.resolver.Resolve(ctx, rule.FeedURL)
	if err != nil {
		logger.Warn("feed poll failed", "error", err)
		if recErr := s.manager.RecordError(ctx, rule.ID, err); recErr != nil {
			logger.Error("failed to record poll error", "error", recErr)
		}
		return
	}

	newEntries := collectNewEntries(rule, resolved.Entries)

	kept := make([]model.FeedEntry, 0, len(newEntries))
	for _, entry := range newEntries {
		if rule.MatchesKeywords(entry.Title) {
			kept = append(kept, entry)
		}
	}
	if rule.OnlyDownloadLatest && len(kept) > 1 {
		kept = kept[:1]
	}

	for _, entry := range kept {
		_, err := s.engine.Submit(download.JobSpec{
			URL:            entry.MediaURL,
			Kind:           model.JobKindVideo,
			OutputDir:      rule.DownloadDirectory,
			OutputTemplate: rule.NamingTemplate,
			SubscriptionID: rule.ID,
			Tags:           rule.Tags,
		})
		if err != nil {
			logger.Warn("failed to submit feed entry", "entry_id", entry.ID, "error", err)
			continue
		}
		logger.Info("feed entry queued", "entry_id", entry.ID, "title", entry.Title)
	}

	// Every new entry is marked seen, downloaded or not; a filtered-out
	// entry is never re-evaluated on the next poll.
	seenIDs := make([]string, 0, len(newEntries))
	for _, entry := range newEntries {
		seenIDs = append(seenIDs, entry.ID)
	}
	if err := s.manager.CommitPoll(ctx, rule.ID, resolved.Title, seenIDs); err != nil {
		logger.Error("failed to commit poll result", "error", err)
	}
}

// tryAcquire marks a rule as in flight; false means a poll is already running
func (s *Scheduler) tryAcquire(ruleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[ruleID] {
		return false
	}
	s.inflight[ruleID] = true
	return true
}

func (s *Scheduler) release(ruleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, ruleID)
}

// collectNewEntries keeps the entries absent from the rule's ledger, newest
// first. Undated entries sort last.
func collectNewEntries(rule *model.SubscriptionRule, entries []model.FeedEntry) []model.FeedEntry {
	var fresh []model.FeedEntry
	for _, entry := range entries {
		if !rule.HasSeen(entry.ID) {
			fresh = append(fresh, entry)
		}
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		a, b := fresh[i].PublishedAt, fresh[j].PublishedAt
		if a.IsZero() {
			return false
		}
		if b.IsZero() {
			return true
		}
		return a.After(b)
	})
	return fresh
}
