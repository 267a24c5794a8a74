package platform

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mediadrop/mediadrop/internal/model"
)

// Extractor output markers
const (
	fatalErrorPrefix  = "ERROR:"
	destinationMarker = "Destination:"
)

// ProgressEvent is one structured observation parsed from a single line of
// extractor output. At most one event is produced per line.
type ProgressEvent struct {
	Percent          float64
	HasPercent       bool
	SpeedBytesPerSec float64
	ETASeconds       int // -1 if unknown
	Stage            string
	Destination      string // output file path, when the line announces it
	FatalError       string // verbatim extractor error text
}

var (
	// percentRe matches a direct percentage token, e.g. " 42.5%"
	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

	// fractionRe matches downloaded-of-total byte counts, with or without
	// unit suffixes, e.g. "5.2MiB of ~10.4MiB" or "5242880 of 10485760"
	fractionRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s*(?:[KMGTP]i?B)?)\s+of\s+~?\s*(\d+(?:\.\d+)?\s*(?:[KMGTP]i?B)?)`)

	// speedRe matches transfer speed, e.g. "at 1.23MiB/s"
	speedRe = regexp.MustCompile(`(?i)at\s+(\d+(?:\.\d+)?\s*(?:[KMGTP]i?B))/s`)

	// etaRe matches "ETA 00:32" and "ETA 01:02:03"
	etaRe = regexp.MustCompile(`ETA\s+(?:(\d+):)?(\d+):(\d{2})`)
)

// stagePrefixes maps extractor log prefixes to reported stages. The order of
// reported stages follows the extractor's output; no sequence is enforced.
var stagePrefixes = []struct {
	prefix string
	stage  string
}{
	{"[download]", model.StageDownloading},
	{"[Merger]", model.StageMerging},
	{"[ffmpeg]", model.StageMerging},
	{"[VideoRemuxer]", model.StageMerging},
	{"[ExtractAudio]", model.StageExtractingAudio},
	{"[Metadata]", model.StageEmbeddingMetadata},
	{"[EmbedThumbnail]", model.StageEmbeddingThumbnail},
	{"[ThumbnailsConvertor]", model.StageEmbeddingThumbnail},
	{"[EmbedSubtitle]", model.StageEmbeddingSubtitles},
}

// ParseProgressLine parses one line of extractor output. It returns the
// structured event and true, or a zero event and false for lines that carry
// no recognizable information. Malformed lines are ignored, never an error.
func ParseProgressLine(line string) (ProgressEvent, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ProgressEvent{}, false
	}

	if strings.HasPrefix(line, fatalErrorPrefix) {
		msg := strings.TrimSpace(strings.TrimPrefix(line, fatalErrorPrefix))
		if msg == "" {
			return ProgressEvent{}, false
		}
		return ProgressEvent{FatalError: msg, ETASeconds: -1}, true
	}

	stage, rest, ok := matchStage(line)
	if !ok {
		return ProgressEvent{}, false
	}

	ev := ProgressEvent{Stage: stage, ETASeconds: -1}

	if idx := strings.Index(rest, destinationMarker); idx >= 0 {
		ev.Destination = strings.TrimSpace(rest[idx+len(destinationMarker):])
		return ev, true
	}

	// A direct percentage token wins over a byte fraction when both appear.
	if m := percentRe.FindStringSubmatch(rest); m != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			ev.Percent = clampPercent(pct)
			ev.HasPercent = true
		}
	} else if m := fractionRe.FindStringSubmatch(rest); m != nil {
		downloaded, errD := humanize.ParseBytes(strings.TrimSpace(m[1]))
		total, errT := humanize.ParseBytes(strings.TrimSpace(m[2]))
		if errD == nil && errT == nil && total > 0 {
			ev.Percent = clampPercent(float64(downloaded) / float64(total) * 100)
			ev.HasPercent = true
		}
	}

	if m := speedRe.FindStringSubmatch(rest); m != nil {
		if speed, err := humanize.ParseBytes(strings.TrimSpace(m[1])); err == nil {
			ev.SpeedBytesPerSec = float64(speed)
		}
	}

	if m := etaRe.FindStringSubmatch(rest); m != nil {
		hours := 0
		if m[1] != "" {
			hours, _ = strconv.Atoi(m[1])
		}
		minutes, _ := strconv.Atoi(m[2])
		seconds, _ := strconv.Atoi(m[3])
		ev.ETASeconds = hours*3600 + minutes*60 + seconds
	}

	return ev, true
}

// matchStage resolves the line's bracketed prefix to a stage name
func matchStage(line string) (stage, rest string, ok bool) {
	for _, sp := range stagePrefixes {
		if strings.HasPrefix(line, sp.prefix) {
			return sp.stage, line[len(sp.prefix):], true
		}
	}
	return "", "", false
}

// clampPercent forces a percentage into [0, 100]
func clampPercent(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
