package format

import (
	"strings"
	"testing"

	"github.com/mediadrop/mediadrop/internal/config"
	"github.com/mediadrop/mediadrop/internal/model"
)

func TestBuildCascadeInvariants(t *testing.T) {
	kinds := []model.JobKind{model.JobKindVideo, model.JobKindAudio}

	for _, kind := range kinds {
		for _, preset := range config.QualityPresetOptions() {
			expr := Build(kind, preset)
			if expr == "" {
				t.Errorf("Expected non-empty expression for %s/%s", kind, preset)
				continue
			}

			alternatives := strings.Split(expr, "/")

			// No duplicate alternatives.
			seen := map[string]bool{}
			for _, alt := range alternatives {
				if alt == "" {
					t.Errorf("Expected no empty alternative in %q (%s/%s)", expr, kind, preset)
				}
				if seen[alt] {
					t.Errorf("Expected no duplicate alternative %q in %q (%s/%s)", alt, expr, kind, preset)
				}
				seen[alt] = true
			}

			// The final alternative is a plain catch-all.
			last := alternatives[len(alternatives)-1]
			if last != "best" && last != "worst" {
				t.Errorf("Expected catch-all final alternative in %q (%s/%s), got %q", expr, kind, preset, last)
			}
		}
	}
}

func TestBuildBestHasNoCaps(t *testing.T) {
	for _, kind := range []model.JobKind{model.JobKindVideo, model.JobKindAudio} {
		expr := Build(kind, config.QualityBest)
		if strings.Contains(expr, "height<=") || strings.Contains(expr, "abr<=") {
			t.Errorf("Expected no cap tokens for best preset, got %q", expr)
		}
	}
}

func TestBuildWorstInvertsCascade(t *testing.T) {
	expr := Build(model.JobKindVideo, config.QualityWorst)
	primary := strings.Split(expr, "/")[0]
	if strings.Contains(primary, "best") {
		t.Errorf("Expected worst preset to not lead with a best token, got %q", expr)
	}
	if !strings.HasPrefix(primary, "worst") {
		t.Errorf("Expected worst preset to prefer smallest streams, got %q", expr)
	}

	audio := Build(model.JobKindAudio, config.QualityWorst)
	if strings.Contains(strings.Split(audio, "/")[0], "best") {
		t.Errorf("Expected worst audio to not lead with a best token, got %q", audio)
	}
}

func TestBuildVideoHeightLadder(t *testing.T) {
	tests := []struct {
		preset config.QualityPreset
		token  string
	}{
		{config.QualityGood, "height<=1080"},
		{config.QualityNormal, "height<=720"},
		{config.QualityBad, "height<=480"},
	}

	for _, tt := range tests {
		expr := Build(model.JobKindVideo, tt.preset)
		if !strings.Contains(expr, tt.token) {
			t.Errorf("Expected %q in expression for preset %s, got %q", tt.token, tt.preset, expr)
		}
		if !strings.Contains(expr, "bestvideo+bestaudio") {
			t.Errorf("Expected uncapped fallback for preset %s, got %q", tt.preset, expr)
		}
	}
}

func TestBuildBestDeduplicates(t *testing.T) {
	// For best the capped and uncapped combination are identical; the
	// cascade must contain the combination only once.
	expr := Build(model.JobKindVideo, config.QualityBest)
	if expr != "bestvideo+bestaudio/best" {
		t.Errorf("Expected deduplicated best cascade, got %q", expr)
	}
}

func TestBuildUnknownPresetFallsBack(t *testing.T) {
	expr := Build(model.JobKindVideo, config.QualityPreset("ultra"))
	want := Build(model.JobKindVideo, config.DefaultQualityPreset)
	if expr != want {
		t.Errorf("Expected unknown preset to use default expression %q, got %q", want, expr)
	}
}
