package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/mediadrop/mediadrop/internal/platform"
)

// fileFormat is the on-disk TOML layout of the settings file
type fileFormat struct {
	DownloadPath           string `toml:"download_path"`
	MaxConcurrentDownloads int    `toml:"max_concurrent_downloads"`
	Proxy                  string `toml:"proxy"`
	CookiesPath            string `toml:"cookies_path"`
	BrowserForCookies      string `toml:"browser_for_cookies"`
	EmbedSubs              bool   `toml:"embed_subs"`
	EmbedThumbnail         bool   `toml:"embed_thumbnail"`
	EmbedMetadata          bool   `toml:"embed_metadata"`
	EmbedChapters          bool   `toml:"embed_chapters"`
	OneClickQuality        string `toml:"one_click_quality"`
	NamingTemplate         string `toml:"naming_template"`
	PollIntervalHours      int    `toml:"poll_interval_hours"`
}

// FileSettings is a Provider backed by a TOML file. The file is re-read when
// it changes on disk, so settings edits take effect on the engine's next
// dispatch decision without a restart.
type FileSettings struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	snap Snapshot

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewFileSettings loads the settings file (missing file means defaults) and
// starts watching it for changes.
func NewFileSettings(path string, logger *slog.Logger) (*FileSettings, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs := &FileSettings{
		path:   path,
		logger: logger.With("component", "settings"),
		done:   make(chan struct{}),
	}
	if err := fs.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create settings watcher: %w", err)
	}
	// Watch the parent directory: editors and atomic writers replace the
	// file, which would drop a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch settings directory: %w", err)
	}
	fs.watcher = watcher

	go fs.watch()
	return fs, nil
}

// Snapshot returns a consistent copy of the current settings
func (fs *FileSettings) Snapshot() Snapshot {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.snap
}

// Close stops watching the settings file. Safe to call more than once.
func (fs *FileSettings) Close() error {
	var err error
	fs.closeOnce.Do(func() {
		close(fs.done)
		if fs.watcher != nil {
			err = fs.watcher.Close()
		}
	})
	return err
}

// reload reads and validates the settings file into the current snapshot
func (fs *FileSettings) reload() error {
	var raw fileFormat
	if _, err := os.Stat(fs.path); err == nil {
		if _, err := toml.DecodeFile(fs.path, &raw); err != nil {
			return fmt.Errorf("failed to parse settings file %s: %w", fs.path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read settings file %s: %w", fs.path, err)
	}

	fallbackDir, err := platform.HomeDownloadsDir()
	if err != nil {
		fallbackDir = os.TempDir()
	}

	snap := Snapshot{
		DownloadPath:           raw.DownloadPath,
		MaxConcurrentDownloads: raw.MaxConcurrentDownloads,
		Proxy:                  raw.Proxy,
		CookiesPath:            raw.CookiesPath,
		BrowserForCookies:      raw.BrowserForCookies,
		EmbedSubs:              raw.EmbedSubs,
		EmbedThumbnail:         raw.EmbedThumbnail,
		EmbedMetadata:          raw.EmbedMetadata,
		EmbedChapters:          raw.EmbedChapters,
		OneClickQuality:        QualityPreset(raw.OneClickQuality),
		NamingTemplate:         raw.NamingTemplate,
		PollIntervalHours:      raw.PollIntervalHours,
	}
	snap.normalize(fallbackDir)

	fs.mu.Lock()
	fs.snap = snap
	fs.mu.Unlock()
	return nil
}

// watch re-reads the file whenever it is written or replaced
func (fs *FileSettings) watch() {
	name := filepath.Base(fs.path)
	for {
		select {
		case <-fs.done:
			return
		case ev, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := fs.reload(); err != nil {
				fs.logger.Warn("settings reload failed", "error", err)
			} else {
				fs.logger.Info("settings reloaded", "path", fs.path)
			}
		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			fs.logger.Warn("settings watcher error", "error", err)
		}
	}
}
