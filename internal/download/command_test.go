package download

import (
	"reflect"
	"strings"
	"testing"
)

func argsContainPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func argsContain(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func TestBuildExtractorArgsBasic(t *testing.T) {
	args := BuildExtractorArgs(CommandOptions{
		URL:            "https://example.com/video",
		FormatSelector: "best",
		OutputDir:      "/downloads",
	})

	if args[len(args)-1] != "https://example.com/video" {
		t.Errorf("Expected URL as final argument, got %q", args[len(args)-1])
	}
	if !argsContainPair(args, "--format", "best") {
		t.Errorf("Expected format selector in args: %v", args)
	}
	if !argsContainPair(args, "--output", "/downloads/"+DefaultOutputTemplate) {
		t.Errorf("Expected default output template in args: %v", args)
	}
	if !argsContain(args, "--newline") {
		t.Errorf("Expected line-oriented progress flag in args: %v", args)
	}
}

func TestBuildExtractorArgsProxyAndEmbeds(t *testing.T) {
	args := BuildExtractorArgs(CommandOptions{
		URL:            "https://example.com/video",
		OutputDir:      "/downloads",
		Proxy:          "socks5://127.0.0.1:9050",
		EmbedSubs:      true,
		EmbedThumbnail: true,
		EmbedMetadata:  true,
		EmbedChapters:  true,
		TranscoderPath: "/usr/bin/ffmpeg",
	})

	if !argsContainPair(args, "--proxy", "socks5://127.0.0.1:9050") {
		t.Errorf("Expected proxy in args: %v", args)
	}
	for _, flag := range []string{"--embed-subs", "--embed-thumbnail", "--embed-metadata", "--embed-chapters"} {
		if !argsContain(args, flag) {
			t.Errorf("Expected %s in args: %v", flag, args)
		}
	}
	if !argsContainPair(args, "--ffmpeg-location", "/usr/bin/ffmpeg") {
		t.Errorf("Expected transcoder location in args: %v", args)
	}
}

func TestBuildExtractorArgsCookiesFileWins(t *testing.T) {
	args := BuildExtractorArgs(CommandOptions{
		URL:               "https://example.com/video",
		OutputDir:         "/downloads",
		CookiesPath:       "/tmp/cookies.txt",
		BrowserForCookies: "firefox:default",
	})

	if !argsContainPair(args, "--cookies", "/tmp/cookies.txt") {
		t.Errorf("Expected cookies file in args: %v", args)
	}
	if argsContain(args, "--cookies-from-browser") {
		t.Errorf("Expected browser cookies to be suppressed by cookies file: %v", args)
	}

	args = BuildExtractorArgs(CommandOptions{
		URL:               "https://example.com/video",
		OutputDir:         "/downloads",
		BrowserForCookies: "firefox:default",
	})
	if !argsContainPair(args, "--cookies-from-browser", "firefox:default") {
		t.Errorf("Expected browser cookies in args: %v", args)
	}
}

func TestBuildExtractorArgsKnownHost(t *testing.T) {
	hosts := []struct {
		url     string
		matched bool
	}{
		{"https://www.youtube.com/watch?v=abc", true},
		{"https://youtube.com/watch?v=abc", true},
		{"https://music.youtube.com/watch?v=abc", true},
		{"https://youtu.be/abc", true},
		{"https://www.youtube-nocookie.com/embed/abc", true},
		{"https://vimeo.com/12345", false},
		{"https://notyoutube.com/watch", false},
		{"https://youtube.com.evil.example/watch", false},
	}

	for _, tt := range hosts {
		args := BuildExtractorArgs(CommandOptions{URL: tt.url, OutputDir: "/d"})
		got := argsContainPair(args, "--extractor-args", knownVideoHostExtractorArgs)
		if got != tt.matched {
			t.Errorf("URL %s: expected host match %v, got args %v", tt.url, tt.matched, args)
		}
	}
}

func TestBuildExtractorArgsDeterministic(t *testing.T) {
	opts := CommandOptions{
		URL:            "https://www.youtube.com/watch?v=abc",
		FormatSelector: "best",
		OutputDir:      "/downloads",
		Proxy:          "http://proxy:8080",
		EmbedSubs:      true,
	}

	first := BuildExtractorArgs(opts)
	second := BuildExtractorArgs(opts)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected deterministic args, got %v vs %v", first, second)
	}
	if strings.Join(first, " ") == "" {
		t.Error("Expected non-empty command line")
	}
}
