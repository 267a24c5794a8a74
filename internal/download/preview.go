package download

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mediadrop/mediadrop/internal/model"
	"github.com/mediadrop/mediadrop/internal/platform"
)

// Metadata is the one-shot preview of a URL: either a single item, or a
// playlist with flat entries.
type Metadata struct {
	ID        string
	Title     string
	Channel   string
	Thumbnail string
	Duration  string
	Entries   []MetadataEntry // non-empty only for playlists
}

// MetadataEntry is one item of a playlist preview
type MetadataEntry struct {
	ID    string
	Title string
	URL   string
}

// previewDoc mirrors the extractor's single-JSON output shape
type previewDoc struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Channel   string  `json:"channel"`
	Uploader  string  `json:"uploader"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
	Type      string  `json:"_type"`
	Entries   []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"entries"`
}

// Preview runs the extractor in metadata mode: a single JSON document is
// returned instead of a download. Used to enrich history and to expand
// playlist URLs before submission.
func (e *Engine) Preview(ctx context.Context, url string) (*Metadata, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: url must not be empty", ErrInvalidJobSpec)
	}

	argv := []string{
		"--dump-single-json",
		"--flat-playlist",
		"--no-warnings",
		url,
	}
	snap := e.settings.Snapshot()
	if snap.Proxy != "" {
		argv = append([]string{"--proxy", snap.Proxy}, argv...)
	}

	proc := e.start(platform.ProcessSpec{
		Path: e.tools.ExtractorPath,
		Args: argv,
	})

	// A hung extractor keeps its pipes open; killing it on cancellation
	// closes the line channel so the read loop below always terminates.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			proc.Kill()
		case <-watchDone:
		}
	}()

	// Metadata mode emits the document as a single JSON line on stdout;
	// anything else on the merged stream is extractor log noise.
	var doc string
	var fatalError string
	for line := range proc.Lines() {
		if ev, ok := platform.ParseProgressLine(line); ok && ev.FatalError != "" {
			if fatalError == "" {
				fatalError = ev.FatalError
			}
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "{") {
			doc = line
		}
	}

	status := <-proc.Exit()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case status.SpawnFailed:
		return nil, fmt.Errorf("extractor could not be started: %w", status.Err)
	case fatalError != "":
		return nil, fmt.Errorf("metadata extraction failed: %s", fatalError)
	case status.Code != 0:
		return nil, fmt.Errorf("extractor exited with code %d", status.Code)
	}

	if doc == "" {
		return nil, fmt.Errorf("extractor produced no metadata document")
	}
	return parsePreviewJSON([]byte(doc))
}

// SubmitPlaylist previews a URL and submits one job per playlist entry,
// each carrying its playlist context. A non-playlist URL yields a single
// job without context.
func (e *Engine) SubmitPlaylist(ctx context.Context, url string, kind model.JobKind) ([]string, error) {
	meta, err := e.Preview(ctx, url)
	if err != nil {
		return nil, err
	}

	if len(meta.Entries) == 0 {
		id, err := e.Submit(JobSpec{URL: url, Kind: kind})
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}

	ids := make([]string, 0, len(meta.Entries))
	for i, entry := range meta.Entries {
		if entry.URL == "" {
			continue
		}
		id, err := e.Submit(JobSpec{
			URL:  entry.URL,
			Kind: kind,
			Playlist: &model.PlaylistContext{
				ID:    meta.ID,
				Title: meta.Title,
				Index: i + 1,
				Size:  len(meta.Entries),
			},
		})
		if err != nil {
			e.logger.Warn("skipping playlist entry", "url", entry.URL, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parsePreviewJSON decodes the extractor's single-JSON document
func parsePreviewJSON(data []byte) (*Metadata, error) {
	var doc previewDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse metadata document: %w", err)
	}

	meta := &Metadata{
		ID:        doc.ID,
		Title:     doc.Title,
		Channel:   doc.Channel,
		Thumbnail: doc.Thumbnail,
	}
	if meta.Channel == "" {
		meta.Channel = doc.Uploader
	}
	if doc.Duration > 0 {
		meta.Duration = formatDuration(int(doc.Duration))
	}

	if doc.Type == "playlist" {
		for _, entry := range doc.Entries {
			meta.Entries = append(meta.Entries, MetadataEntry{
				ID:    entry.ID,
				Title: entry.Title,
				URL:   entry.URL,
			})
		}
	}
	return meta, nil
}

// formatDuration formats seconds into HH:MM:SS or MM:SS
func formatDuration(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
