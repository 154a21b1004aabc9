package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidsum/internal/config"
)

// ConfigOption customizes a generated test configuration. The string argument
// is the temp directory backing the config.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// pipelineBinaries are the tools a default configuration expects on PATH.
var pipelineBinaries = []string{"yt-dlp", "ffmpeg", "ffprobe", "uvx"}

// NewConfig returns a configuration whose directories all live under one
// per-test temp directory. Summaries are disabled and the API binds an
// ephemeral loopback port so no test reaches a network service by accident.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	for dir, target := range map[string]*string{
		"work":  &cfg.Paths.WorkDir,
		"state": &cfg.Paths.StateDir,
		"logs":  &cfg.Paths.LogDir,
		"inbox": &cfg.Paths.InboxDir,
	} {
		*target = filepath.Join(base, dir)
	}
	cfg.Summary.Backend = config.BackendNone
	cfg.API.Bind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// WithStubbedBinaries installs no-op executables under <base>/bin and puts
// that directory first on PATH for the duration of the test. With no names,
// every pipeline tool is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, _ *config.Config) {
		t.Helper()
		if len(names) == 0 {
			names = pipelineBinaries
		}
		binDir := filepath.Join(base, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", strings.Join([]string{binDir, os.Getenv("PATH")}, string(os.PathListSeparator)))
	}
}

// BaseDir returns the temp directory backing a config built by NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
