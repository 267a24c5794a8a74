package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediadrop/mediadrop/internal/config"
	"github.com/mediadrop/mediadrop/internal/format"
	"github.com/mediadrop/mediadrop/internal/model"
	"github.com/mediadrop/mediadrop/internal/platform"
)

// Engine limits
const (
	// LogTailLines is how many trailing output lines a job retains for
	// diagnostics on failure.
	LogTailLines = 40

	jobIDPrefix = "job-"
)

// Engine errors
var (
	// ErrInvalidJobSpec rejects a submission synchronously; no job is created
	ErrInvalidJobSpec = errors.New("invalid job spec")

	// ErrEngineClosed rejects submissions after Close
	ErrEngineClosed = errors.New("download engine is closed")
)

// JobSpec describes one download submission. URL and Kind are required;
// everything else defaults from the settings snapshot taken at submit time.
type JobSpec struct {
	URL            string
	Kind           model.JobKind
	FormatSelector string
	OutputDir      string
	OutputTemplate string
	SubscriptionID string
	Tags           []string
	Playlist       *model.PlaylistContext
}

// processHandle is the slice of platform.Process the engine drives. Tests
// substitute fakes through the engine's start function.
type processHandle interface {
	Lines() <-chan string
	Exit() <-chan platform.ExitStatus
	Kill()
}

// processStarter spawns one supervised process
type processStarter func(platform.ProcessSpec) processHandle

// jobEntry is the engine's private bookkeeping for one non-terminal job
type jobEntry struct {
	job             *model.DownloadJob
	cmd             CommandOptions
	proc            processHandle
	cancelRequested bool
}

// Engine owns the job queue, enforces the concurrency cap, supervises
// extractor processes, and fans progress out to subscribers. A single
// dispatch loop makes every start decision; process I/O runs in per-job
// goroutines and never blocks that loop.
type Engine struct {
	settings config.Provider
	history  HistoryStore
	tools    platform.Toolchain
	logger   *slog.Logger

	start processStarter

	mu      sync.Mutex
	jobs    map[string]*jobEntry // active (non-terminal) jobs by id
	queue   []string             // FIFO of queued job ids
	running int
	closed  bool

	events *broadcaster
	wake   chan struct{}
	quit   chan struct{}
	wg     sync.WaitGroup
}

// NewEngine constructs and starts an engine. history may be nil, in which
// case terminal jobs are not persisted.
func NewEngine(settings config.Provider, history HistoryStore, tools platform.Toolchain, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		settings: settings,
		history:  history,
		tools:    tools,
		logger:   logger.With("component", "engine"),
		jobs:     make(map[string]*jobEntry),
		events:   newBroadcaster(),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
	e.start = func(spec platform.ProcessSpec) processHandle {
		return platform.StartProcess(spec)
	}

	e.wg.Add(1)
	go e.dispatchLoop()
	return e
}

// Submit validates the spec and enqueues a job. It never blocks on the
// concurrency cap: the job is placed in Queued state even when all slots
// are busy. Safe to call concurrently.
func (e *Engine) Submit(spec JobSpec) (string, error) {
	if strings.TrimSpace(spec.URL) == "" {
		return "", fmt.Errorf("%w: url must not be empty", ErrInvalidJobSpec)
	}
	if !spec.Kind.Valid() {
		return "", fmt.Errorf("%w: unsupported kind %q", ErrInvalidJobSpec, spec.Kind)
	}

	snap := e.settings.Snapshot()

	selector := spec.FormatSelector
	if selector == "" {
		selector = format.Build(spec.Kind, snap.OneClickQuality)
	}
	outputDir := spec.OutputDir
	if outputDir == "" {
		outputDir = snap.DownloadPath
	}
	template := spec.OutputTemplate
	if template == "" {
		template = snap.NamingTemplate
	}

	job := &model.DownloadJob{
		ID:             generateJobID(),
		URL:            spec.URL,
		Kind:           spec.Kind,
		FormatSelector: selector,
		OutputDir:      outputDir,
		OutputTemplate: template,
		SubscriptionID: spec.SubscriptionID,
		Tags:           append([]string(nil), spec.Tags...),
		Playlist:       spec.Playlist,
		State:          model.JobStateQueued,
		Progress:       model.Progress{ETASeconds: -1},
		CreatedAt:      time.Now(),
	}

	entry := &jobEntry{
		job: job,
		cmd: CommandOptions{
			URL:               spec.URL,
			FormatSelector:    selector,
			OutputDir:         outputDir,
			OutputTemplate:    template,
			Proxy:             snap.Proxy,
			CookiesPath:       snap.CookiesPath,
			BrowserForCookies: snap.BrowserForCookies,
			EmbedSubs:         snap.EmbedSubs,
			EmbedThumbnail:    snap.EmbedThumbnail,
			EmbedMetadata:     snap.EmbedMetadata,
			EmbedChapters:     snap.EmbedChapters,
			TranscoderPath:    e.tools.TranscoderPath,
		},
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrEngineClosed
	}
	e.jobs[job.ID] = entry
	e.queue = append(e.queue, job.ID)
	e.mu.Unlock()

	e.notifyDispatch()
	return job.ID, nil
}

// Cancel cancels a job. A queued job goes straight to Cancelled; a running
// job has its process terminated and becomes Cancelled once the process
// exits. Unknown or already-terminal jobs are a no-op.
func (e *Engine) Cancel(jobID string) {
	e.mu.Lock()
	entry, ok := e.jobs[jobID]
	if !ok {
		e.mu.Unlock()
		return
	}

	switch entry.job.State {
	case model.JobStateQueued:
		e.removeFromQueue(jobID)
		entry.job.State = model.JobStateCancelled
		entry.job.FinishedAt = time.Now()
		delete(e.jobs, jobID)
		clone := entry.job.Clone()
		e.mu.Unlock()

		e.persistTerminal(clone)
		e.events.publish(model.Event{Type: model.EventCancelled, Job: clone})
		e.notifyDispatch()

	case model.JobStateRunning:
		entry.cancelRequested = true
		proc := entry.proc
		e.mu.Unlock()

		// proc may be nil if cancel races the spawn; the job goroutine
		// checks cancelRequested right after starting the process.
		if proc != nil {
			proc.Kill()
		}

	default:
		e.mu.Unlock()
	}
}

// Subscribe registers for started/progress/completed/failed/cancelled
// events of every job. Per-job causal order is preserved; there is no
// cross-job ordering guarantee. The returned function unsubscribes.
func (e *Engine) Subscribe(buffer int) (<-chan model.Event, func()) {
	return e.events.subscribe(buffer)
}

// Job returns a snapshot of an active (non-terminal) job
func (e *Engine) Job(jobID string) (*model.DownloadJob, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.jobs[jobID]
	if !ok {
		return nil, false
	}
	return entry.job.Clone(), true
}

// ActiveJobs returns snapshots of all non-terminal jobs
func (e *Engine) ActiveJobs() []*model.DownloadJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	jobs := make([]*model.DownloadJob, 0, len(e.jobs))
	for _, entry := range e.jobs {
		jobs = append(jobs, entry.job.Clone())
	}
	return jobs
}

// Close stops the dispatch loop, cancels all jobs, and waits for job
// goroutines to finish. Subscriber channels are closed afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true

	queued := e.queue
	e.queue = nil
	var cancelled []*model.DownloadJob
	for _, id := range queued {
		entry := e.jobs[id]
		entry.job.State = model.JobStateCancelled
		entry.job.FinishedAt = time.Now()
		delete(e.jobs, id)
		cancelled = append(cancelled, entry.job.Clone())
	}

	var procs []processHandle
	for _, entry := range e.jobs {
		entry.cancelRequested = true
		if entry.proc != nil {
			procs = append(procs, entry.proc)
		}
	}
	e.mu.Unlock()

	for _, job := range cancelled {
		e.persistTerminal(job)
		e.events.publish(model.Event{Type: model.EventCancelled, Job: job})
	}
	for _, proc := range procs {
		proc.Kill()
	}

	close(e.quit)
	e.wg.Wait()
	e.events.close()
}

// dispatchLoop is the single authoritative start-decision loop. It wakes on
// submissions and freed slots, reads a fresh settings snapshot per decision
// so concurrency-limit changes apply without a restart, and starts the
// oldest queued job while capacity remains.
func (e *Engine) dispatchLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.quit:
			return
		case <-e.wake:
		}

		for {
			limit := e.settings.Snapshot().MaxConcurrentDownloads

			e.mu.Lock()
			if e.closed || e.running >= limit || len(e.queue) == 0 {
				e.mu.Unlock()
				break
			}

			id := e.queue[0]
			e.queue = e.queue[1:]
			entry := e.jobs[id]
			entry.job.State = model.JobStateRunning
			entry.job.StartedAt = time.Now()
			e.running++
			clone := entry.job.Clone()
			e.mu.Unlock()

			e.events.publish(model.Event{Type: model.EventStarted, Job: clone})

			e.wg.Add(1)
			go e.runJob(entry)
		}
	}
}

// runJob supervises one extractor process from spawn to terminal state
func (e *Engine) runJob(entry *jobEntry) {
	defer e.wg.Done()

	argv := BuildExtractorArgs(entry.cmd)
	commandLine := e.tools.ExtractorPath + " " + strings.Join(argv, " ")

	proc := e.start(platform.ProcessSpec{
		Path: e.tools.ExtractorPath,
		Args: argv,
	})

	e.mu.Lock()
	entry.job.CommandLine = commandLine
	entry.proc = proc
	cancelled := entry.cancelRequested
	e.mu.Unlock()

	if cancelled {
		// Cancel arrived between dispatch and spawn.
		proc.Kill()
	}

	tail := newLogTail(LogTailLines)
	var fatalError string

	for line := range proc.Lines() {
		tail.append(line)

		ev, ok := platform.ParseProgressLine(line)
		if !ok {
			continue
		}
		if ev.FatalError != "" {
			// Keep the first fatal line; later ones are usually cascade noise.
			if fatalError == "" {
				fatalError = ev.FatalError
			}
			continue
		}

		e.mu.Lock()
		e.applyProgress(entry.job, ev)
		clone := entry.job.Clone()
		e.mu.Unlock()

		e.events.publish(model.Event{Type: model.EventProgress, Job: clone})
	}

	status := <-proc.Exit()

	e.mu.Lock()
	job := entry.job
	job.FinishedAt = time.Now()
	job.LogTail = tail.lines()

	var eventType model.EventType
	switch {
	case entry.cancelRequested:
		job.State = model.JobStateCancelled
		job.LastError = "" // cancelled jobs retain no error
		eventType = model.EventCancelled
	case status.SpawnFailed:
		job.State = model.JobStateFailed
		job.LastError = fmt.Sprintf("extractor could not be started: %v", status.Err)
		eventType = model.EventFailed
	case fatalError != "":
		job.State = model.JobStateFailed
		job.LastError = fatalError
		eventType = model.EventFailed
	case status.Code != 0:
		job.State = model.JobStateFailed
		job.LastError = fmt.Sprintf("extractor exited with code %d", status.Code)
		eventType = model.EventFailed
	default:
		job.State = model.JobStateCompleted
		job.Progress.Percent = 100
		eventType = model.EventCompleted
	}

	delete(e.jobs, job.ID)
	e.running--
	clone := job.Clone()
	e.mu.Unlock()

	e.persistTerminal(clone)
	e.events.publish(model.Event{Type: eventType, Job: clone})
	e.notifyDispatch()
}

// applyProgress folds one parsed event into the job. Percent never
// decreases while running; stages are recorded in report order.
func (e *Engine) applyProgress(job *model.DownloadJob, ev platform.ProgressEvent) {
	if ev.HasPercent && ev.Percent > job.Progress.Percent {
		job.Progress.Percent = ev.Percent
	}
	if ev.SpeedBytesPerSec > 0 {
		job.Progress.SpeedBytesPerSec = ev.SpeedBytesPerSec
	}
	if ev.ETASeconds >= 0 {
		job.Progress.ETASeconds = ev.ETASeconds
	}
	if ev.Stage != "" {
		job.Progress.Stage = ev.Stage
	}
	if ev.Destination != "" {
		job.OutputPath = ev.Destination
		if job.Title == "" {
			job.Title = (&model.DownloadJob{OutputPath: ev.Destination}).DisplayTitle()
		}
	}
}

// persistTerminal writes the history record for a terminal job
func (e *Engine) persistTerminal(job *model.DownloadJob) {
	if e.history == nil {
		return
	}
	record := model.HistoryRecordFromJob(job)
	if err := e.history.Insert(context.Background(), record); err != nil {
		e.logger.Error("failed to persist history record", "job_id", job.ID, "error", err)
	}
}

// removeFromQueue drops a job id from the FIFO. Caller holds e.mu.
func (e *Engine) removeFromQueue(jobID string) {
	for i, id := range e.queue {
		if id == jobID {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			return
		}
	}
}

// notifyDispatch wakes the dispatch loop without blocking
func (e *Engine) notifyDispatch() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// logTail is a bounded ring of the most recent process output lines
type logTail struct {
	buf  []string
	next int
	full bool
}

func newLogTail(capacity int) *logTail {
	return &logTail{buf: make([]string, capacity)}
}

func (t *logTail) append(line string) {
	t.buf[t.next] = line
	t.next = (t.next + 1) % len(t.buf)
	if t.next == 0 {
		t.full = true
	}
}

// lines returns the retained lines in arrival order
func (t *logTail) lines() []string {
	if !t.full {
		return append([]string(nil), t.buf[:t.next]...)
	}
	out := make([]string, 0, len(t.buf))
	out = append(out, t.buf[t.next:]...)
	return append(out, t.buf[:t.next]...)
}

// generateJobID generates a unique job ID using UUID v7 for better
// uniqueness and time ordering
func generateJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(jobIDPrefix+"%d", time.Now().UnixNano())
	}
	return jobIDPrefix + id.String()
}
