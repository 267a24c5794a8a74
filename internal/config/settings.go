package config

// QualityPreset selects the format-selection ladder for one-click downloads
type QualityPreset string

const (
	QualityBest   QualityPreset = "best"
	QualityGood   QualityPreset = "good"
	QualityNormal QualityPreset = "normal"
	QualityBad    QualityPreset = "bad"
	QualityWorst  QualityPreset = "worst"
)

// Default values
const (
	DefaultMaxParallel       = 2
	DefaultQualityPreset     = QualityNormal
	DefaultNamingTemplate    = "%(title)s.%(ext)s"
	DefaultPollIntervalHours = 6

	MinMaxParallel = 1
	MaxMaxParallel = 10

	MinPollIntervalHours = 1
)

// Snapshot is a consistent read-only view of the settings taken at a single
// point in time. The engine reads one snapshot per dispatch decision so a
// concurrency-limit change never tears against an output-directory change.
type Snapshot struct {
	DownloadPath           string
	MaxConcurrentDownloads int
	Proxy                  string
	CookiesPath            string
	BrowserForCookies      string
	EmbedSubs              bool
	EmbedThumbnail         bool
	EmbedMetadata          bool
	EmbedChapters          bool
	OneClickQuality        QualityPreset
	NamingTemplate         string
	PollIntervalHours      int
}

// Provider exposes the current settings as a snapshot
type Provider interface {
	Snapshot() Snapshot
}

// Static is a fixed-value Provider, used for tests and one-shot CLI runs
type Static struct {
	Snap Snapshot
}

// Snapshot returns the fixed snapshot
func (s Static) Snapshot() Snapshot {
	return s.Snap
}

// QualityPresetOptions returns the ordered quality ladder, best first
func QualityPresetOptions() []QualityPreset {
	return []QualityPreset{QualityBest, QualityGood, QualityNormal, QualityBad, QualityWorst}
}

// ValidPreset reports whether p is one of the known presets
func ValidPreset(p QualityPreset) bool {
	for _, known := range QualityPresetOptions() {
		if p == known {
			return true
		}
	}
	return false
}

// normalize clamps out-of-range values and fills defaults in place
func (s *Snapshot) normalize(fallbackDownloadPath string) {
	if s.DownloadPath == "" {
		s.DownloadPath = fallbackDownloadPath
	}
	if s.MaxConcurrentDownloads < MinMaxParallel {
		s.MaxConcurrentDownloads = DefaultMaxParallel
	}
	if s.MaxConcurrentDownloads > MaxMaxParallel {
		s.MaxConcurrentDownloads = MaxMaxParallel
	}
	if !ValidPreset(s.OneClickQuality) {
		s.OneClickQuality = DefaultQualityPreset
	}
	if s.NamingTemplate == "" {
		s.NamingTemplate = DefaultNamingTemplate
	}
	if s.PollIntervalHours < MinPollIntervalHours {
		s.PollIntervalHours = DefaultPollIntervalHours
	}
}
