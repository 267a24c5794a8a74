package download

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Default output template when neither the job nor the settings name one
const DefaultOutputTemplate = "%(title)s.%(ext)s"

// knownVideoHostSuffixes is the fixed domain-family list that triggers the
// extra extractor-args entry. Matching is exact or sub-domain suffix only.
var knownVideoHostSuffixes = []string{
	"youtube.com",
	"youtu.be",
	"youtube-nocookie.com",
}

// knownVideoHostExtractorArgs constrains the internal client variants the
// extractor uses for the matched domain family.
const knownVideoHostExtractorArgs = "youtube:player_client=default,android"

// CommandOptions describes one extractor invocation. The struct is the only
// place argv is assembled from; everything the engine passes to the
// extractor goes through BuildExtractorArgs.
type CommandOptions struct {
	URL            string
	FormatSelector string
	OutputDir      string
	OutputTemplate string

	Proxy             string
	CookiesPath       string
	BrowserForCookies string // "browser" or "browser:profile"

	EmbedSubs      bool
	EmbedThumbnail bool
	EmbedMetadata  bool
	EmbedChapters  bool

	TranscoderPath string // ffmpeg location, empty when unresolved
}

// BuildExtractorArgs builds the extractor argv from typed options. The
// result is deterministic for equal options.
func BuildExtractorArgs(opts CommandOptions) []string {
	args := []string{
		"--newline",
		"--no-colors",
		"--no-warnings",
	}

	if opts.FormatSelector != "" {
		args = append(args, "--format", opts.FormatSelector)
	}

	template := opts.OutputTemplate
	if template == "" {
		template = DefaultOutputTemplate
	}
	args = append(args, "--output", filepath.Join(opts.OutputDir, template))

	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy)
	}

	// A cookies file and browser cookies are mutually exclusive; the
	// explicit file wins.
	if opts.CookiesPath != "" {
		args = append(args, "--cookies", opts.CookiesPath)
	} else if opts.BrowserForCookies != "" {
		args = append(args, "--cookies-from-browser", opts.BrowserForCookies)
	}

	if opts.EmbedSubs {
		args = append(args, "--embed-subs")
	}
	if opts.EmbedThumbnail {
		args = append(args, "--embed-thumbnail")
	}
	if opts.EmbedMetadata {
		args = append(args, "--embed-metadata")
	}
	if opts.EmbedChapters {
		args = append(args, "--embed-chapters")
	}

	if opts.TranscoderPath != "" {
		args = append(args, "--ffmpeg-location", opts.TranscoderPath)
	}

	if matchesKnownVideoHost(opts.URL) {
		args = append(args, "--extractor-args", knownVideoHostExtractorArgs)
	}

	return append(args, opts.URL)
}

// matchesKnownVideoHost reports whether the URL's hostname is an exact or
// sub-domain match against the fixed suffix list.
func matchesKnownVideoHost(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}

	for _, suffix := range knownVideoHostSuffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
