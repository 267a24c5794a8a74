// Package format builds extractor format-selector expressions from quality
// presets. Expressions are descending cascades of /-separated alternatives
// ending in a catch-all, so the extractor always has a usable selector.
package format

import (
	"fmt"
	"strings"

	"github.com/mediadrop/mediadrop/internal/config"
	"github.com/mediadrop/mediadrop/internal/model"
)

// Alternative separator in selector expressions
const cascadeSeparator = "/"

// videoHeightCaps maps presets to a maximum vertical resolution. Best is
// unbounded and worst inverts the cascade instead of applying a cap.
var videoHeightCaps = map[config.QualityPreset]int{
	config.QualityGood:   1080,
	config.QualityNormal: 720,
	config.QualityBad:    480,
}

// audioBitrateCaps maps presets to a maximum audio bitrate in kbit/s
var audioBitrateCaps = map[config.QualityPreset]int{
	config.QualityGood:   192,
	config.QualityNormal: 128,
	config.QualityBad:    96,
}

// Build returns the selector expression for a media kind and quality preset.
// Unknown presets fall back to the default preset's expression.
func Build(kind model.JobKind, preset config.QualityPreset) string {
	if !config.ValidPreset(preset) {
		preset = config.DefaultQualityPreset
	}

	if kind == model.JobKindAudio {
		return buildAudio(preset)
	}
	return buildVideo(preset)
}

// buildVideo assembles the capped/uncapped/catch-all cascade for video
func buildVideo(preset config.QualityPreset) string {
	if preset == config.QualityWorst {
		// No finite cap exists for "worst": invert the cascade to genuinely
		// prefer the smallest streams.
		return cascade("worstvideo+worstaudio", "worst")
	}

	capped := "bestvideo+bestaudio"
	if height, ok := videoHeightCaps[preset]; ok {
		capped = fmt.Sprintf("bestvideo[height<=%d]+bestaudio[abr<=%d]", height, audioBitrateCaps[preset])
	}

	return cascade(capped, "bestvideo+bestaudio", "best")
}

// buildAudio assembles the capped/uncapped/catch-all cascade for audio
func buildAudio(preset config.QualityPreset) string {
	if preset == config.QualityWorst {
		return cascade("worstaudio", "worst")
	}

	capped := "bestaudio"
	if bitrate, ok := audioBitrateCaps[preset]; ok {
		capped = fmt.Sprintf("bestaudio[abr<=%d]", bitrate)
	}

	return cascade(capped, "bestaudio", "best")
}

// cascade joins alternatives, dropping duplicates while preserving the
// first-seen order. Duplicate alternatives are semantically inert for the
// extractor but make diagnostics confusing.
func cascade(alternatives ...string) string {
	seen := make(map[string]bool, len(alternatives))
	unique := make([]string, 0, len(alternatives))
	for _, alt := range alternatives {
		if alt == "" || seen[alt] {
			continue
		}
		seen[alt] = true
		unique = append(unique, alt)
	}
	return strings.Join(unique, cascadeSeparator)
}
