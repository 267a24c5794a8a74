package model

import (
	"fmt"
	"strings"
	"time"
)

// JobKind is the kind of media a job downloads
type JobKind string

const (
	// JobKindVideo downloads the best matching video+audio combination
	JobKindVideo JobKind = "video"

	// JobKindAudio downloads an audio-only stream
	JobKindAudio JobKind = "audio"
)

// Valid returns true if the kind is one of the supported values
func (k JobKind) Valid() bool {
	return k == JobKindVideo || k == JobKindAudio
}

// Stage names reported by the progress parser. Stages are reported in the
// order the extractor emits them; the engine never reorders them.
const (
	StageDownloading        = "downloading"
	StageMerging            = "merging"
	StageExtractingAudio    = "extracting audio"
	StageEmbeddingMetadata  = "embedding metadata"
	StageEmbeddingThumbnail = "embedding thumbnail"
	StageEmbeddingSubtitles = "embedding subtitles"
)

// Progress holds the live progress of a running job
type Progress struct {
	Percent          float64 // 0 to 100, non-decreasing while running
	SpeedBytesPerSec float64 // 0 if unknown
	ETASeconds       int     // ETA in seconds, -1 if unknown
	Stage            string  // current stage as reported by the extractor
}

// PlaylistContext links a job to the playlist batch it was expanded from
type PlaylistContext struct {
	ID    string
	Title string
	Index int // 1-based position within the playlist
	Size  int // total number of entries in the playlist
}

// DownloadJob represents a single user-requested download
type DownloadJob struct {
	ID             string
	URL            string
	Kind           JobKind
	FormatSelector string
	OutputDir      string
	OutputTemplate string
	SubscriptionID string // non-owning back-reference, empty for manual jobs
	Tags           []string
	Playlist       *PlaylistContext

	State    JobState
	Progress Progress

	Title      string
	OutputPath string // path to downloaded file, once known

	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time

	CommandLine string   // exact extractor command line, for diagnostics
	LastError   string   // terminal failure message, empty unless Failed
	LogTail     []string // tail of process output, kept for diagnostics
}

// ETAString returns ETA formatted as hh:mm:ss, or "—" if unknown
func (j *DownloadJob) ETAString() string {
	if j.Progress.ETASeconds <= 0 {
		return "—"
	}

	hours := j.Progress.ETASeconds / 3600
	minutes := (j.Progress.ETASeconds % 3600) / 60
	seconds := j.Progress.ETASeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// DisplayTitle returns title, filename, or URL in order of preference
func (j *DownloadJob) DisplayTitle() string {
	if j.Title != "" && !strings.HasPrefix(j.Title, "http") {
		return j.Title
	}

	if j.OutputPath != "" {
		parts := strings.FieldsFunc(j.OutputPath, func(r rune) bool {
			return r == '/' || r == '\\'
		})
		if len(parts) > 0 {
			filename := parts[len(parts)-1]
			if idx := strings.LastIndex(filename, "."); idx > 0 {
				filename = filename[:idx]
			}
			return filename
		}
	}

	return j.URL
}

// Clone returns a deep copy safe to hand to event subscribers
func (j *DownloadJob) Clone() *DownloadJob {
	c := *j
	if j.Tags != nil {
		c.Tags = append([]string(nil), j.Tags...)
	}
	if j.LogTail != nil {
		c.LogTail = append([]string(nil), j.LogTail...)
	}
	if j.Playlist != nil {
		pc := *j.Playlist
		c.Playlist = &pc
	}
	return &c
}
