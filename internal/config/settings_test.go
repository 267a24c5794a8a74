package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	var snap Snapshot
	snap.normalize("/tmp/downloads")

	if snap.DownloadPath != "/tmp/downloads" {
		t.Errorf("Expected fallback download path, got '%s'", snap.DownloadPath)
	}
	if snap.MaxConcurrentDownloads != DefaultMaxParallel {
		t.Errorf("Expected default max parallel %d, got %d", DefaultMaxParallel, snap.MaxConcurrentDownloads)
	}
	if snap.OneClickQuality != DefaultQualityPreset {
		t.Errorf("Expected default quality preset, got '%s'", snap.OneClickQuality)
	}
	if snap.NamingTemplate != DefaultNamingTemplate {
		t.Errorf("Expected default naming template, got '%s'", snap.NamingTemplate)
	}
	if snap.PollIntervalHours != DefaultPollIntervalHours {
		t.Errorf("Expected default poll interval, got %d", snap.PollIntervalHours)
	}
}

func TestNormalizeClampsMaxParallel(t *testing.T) {
	snap := Snapshot{MaxConcurrentDownloads: 50}
	snap.normalize("/tmp")
	if snap.MaxConcurrentDownloads != MaxMaxParallel {
		t.Errorf("Expected max parallel clamped to %d, got %d", MaxMaxParallel, snap.MaxConcurrentDownloads)
	}

	snap = Snapshot{MaxConcurrentDownloads: -3}
	snap.normalize("/tmp")
	if snap.MaxConcurrentDownloads != DefaultMaxParallel {
		t.Errorf("Expected negative max parallel reset to default, got %d", snap.MaxConcurrentDownloads)
	}
}

func TestNormalizeRejectsUnknownPreset(t *testing.T) {
	snap := Snapshot{OneClickQuality: QualityPreset("ultra")}
	snap.normalize("/tmp")
	if snap.OneClickQuality != DefaultQualityPreset {
		t.Errorf("Expected unknown preset replaced with default, got '%s'", snap.OneClickQuality)
	}
}

func TestFileSettingsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")

	fs, err := NewFileSettings(path, nil)
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	defer fs.Close()

	snap := fs.Snapshot()
	if snap.MaxConcurrentDownloads != DefaultMaxParallel {
		t.Errorf("Expected defaults for missing file, got max parallel %d", snap.MaxConcurrentDownloads)
	}
}

func TestFileSettingsLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")

	content := `
download_path = "/media/library"
max_concurrent_downloads = 4
proxy = "socks5://127.0.0.1:9050"
embed_thumbnail = true
one_click_quality = "good"
poll_interval_hours = 12
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write settings file: %v", err)
	}

	fs, err := NewFileSettings(path, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer fs.Close()

	snap := fs.Snapshot()
	if snap.DownloadPath != "/media/library" {
		t.Errorf("Expected download path '/media/library', got '%s'", snap.DownloadPath)
	}
	if snap.MaxConcurrentDownloads != 4 {
		t.Errorf("Expected max parallel 4, got %d", snap.MaxConcurrentDownloads)
	}
	if snap.Proxy != "socks5://127.0.0.1:9050" {
		t.Errorf("Expected proxy to be set, got '%s'", snap.Proxy)
	}
	if !snap.EmbedThumbnail {
		t.Error("Expected embed_thumbnail to be true")
	}
	if snap.OneClickQuality != QualityGood {
		t.Errorf("Expected quality 'good', got '%s'", snap.OneClickQuality)
	}
	if snap.PollIntervalHours != 12 {
		t.Errorf("Expected poll interval 12, got %d", snap.PollIntervalHours)
	}
}

func TestFileSettingsCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")

	fs, err := NewFileSettings(path, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := fs.Close(); err != nil {
		t.Errorf("Expected first close to succeed, got %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Errorf("Expected second close to be a no-op, got %v", err)
	}
}

func TestStaticProvider(t *testing.T) {
	p := Static{Snap: Snapshot{MaxConcurrentDownloads: 3}}
	if p.Snapshot().MaxConcurrentDownloads != 3 {
		t.Error("Expected static provider to return its snapshot")
	}
}
