package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// External tool names and override environment variables
const (
	ExtractorCommand  = "yt-dlp"
	TranscoderCommand = "ffmpeg"

	ExtractorPathEnv  = "MEDIADROP_EXTRACTOR"
	TranscoderPathEnv = "MEDIADROP_FFMPEG"
)

// extraSearchDirs are checked after PATH for common install locations
var extraSearchDirs = map[string][]string{
	"darwin": {"/usr/local/bin", "/opt/homebrew/bin"},
	"linux":  {"/usr/local/bin", "/snap/bin"},
}

// Toolchain holds the resolved filesystem locations of the external tools.
// ExtractorPath is required; TranscoderPath may be empty when ffmpeg is not
// installed, in which case merge/embed postprocessing is left to whatever
// the extractor can do on its own.
type Toolchain struct {
	ExtractorPath  string
	TranscoderPath string
}

// ResolveToolchain locates the extractor and transcoder binaries. The
// extractor is mandatory; a missing transcoder is not an error.
func ResolveToolchain() (Toolchain, error) {
	extractor, err := ResolveBinary(ExtractorPathEnv, ExtractorCommand)
	if err != nil {
		return Toolchain{}, fmt.Errorf("extractor binary not found: %w", err)
	}

	transcoder, err := ResolveBinary(TranscoderPathEnv, TranscoderCommand)
	if err != nil {
		transcoder = ""
	}

	return Toolchain{ExtractorPath: extractor, TranscoderPath: transcoder}, nil
}

// ResolveBinary finds an executable by env override, PATH, then well-known
// install directories.
func ResolveBinary(envKey, name string) (string, error) {
	if override := os.Getenv(envKey); override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("%s points to %s: %w", envKey, override, err)
		}
		return override, nil
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	for _, dir := range extraSearchDirs[runtime.GOOS] {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH", name)
}

// HasExecutable reports whether an executable is available in PATH
func HasExecutable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
