package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"vidsum/internal/config"
)

func clearSecretEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENROUTER_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "WHISPER_API_URL", "WHISPER_API_KEY", "HF_TOKEN", "HUGGING_FACE_HUB_TOKEN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfigExpandsPathsAndUsesEnvKey(t *testing.T) {
	clearSecretEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "router-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "vidsum", "jobs")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.JobsDBPath() != filepath.Join(tempHome, ".local", "share", "vidsum", "jobs.db") {
		t.Fatalf("unexpected jobs db path: %q", cfg.JobsDBPath())
	}
	if cfg.Summary.APIKey != "router-key" {
		t.Fatalf("expected summary key from env, got %q", cfg.Summary.APIKey)
	}
	if cfg.Summary.MaxInputChars != 3500 {
		t.Fatalf("expected default max_input_chars 3500, got %d", cfg.Summary.MaxInputChars)
	}
	if cfg.Segments.ChunkSeconds != 15 {
		t.Fatalf("expected default chunk_seconds 15, got %d", cfg.Segments.ChunkSeconds)
	}
	if cfg.Transcription.Backend != config.BackendWhisperX {
		t.Fatalf("unexpected transcription backend %q", cfg.Transcription.Backend)
	}
	if cfg.Transcription.VADMethod != "silero" {
		t.Fatalf("expected VAD default to silero, got %q", cfg.Transcription.VADMethod)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("unexpected sample rate %d", cfg.Audio.SampleRate)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearSecretEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	custom := config.Default()
	custom.Paths.WorkDir = "~/videos/work"
	custom.Segments.ChunkSeconds = 30
	custom.Summary.Backend = "Gemini"
	custom.Summary.Model = ""
	custom.Summary.APIKey = "gemini-key"
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(tempHome, "custom.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.WorkDir != filepath.Join(tempHome, "videos", "work") {
		t.Fatalf("unexpected work dir %q", cfg.Paths.WorkDir)
	}
	if cfg.ChunkWidth().Seconds() != 30 {
		t.Fatalf("unexpected chunk width %s", cfg.ChunkWidth())
	}
	if cfg.Summary.Backend != config.BackendGemini {
		t.Fatalf("expected backend normalized to gemini, got %q", cfg.Summary.Backend)
	}
	if cfg.Summary.Model == "" || strings.Contains(cfg.Summary.Model, "/") {
		t.Fatalf("expected gemini default model, got %q", cfg.Summary.Model)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearSecretEnv(t)
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENROUTER_API_KEY=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Summary.APIKey != "from-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.Summary.APIKey)
	}
}

func TestConfigFileKeyWinsOverEnv(t *testing.T) {
	clearSecretEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "env-key")

	custom := config.Default()
	custom.Summary.APIKey = "file-key"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(tempHome, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Summary.APIKey != "file-key" {
		t.Fatalf("expected file key to win, got %q", cfg.Summary.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Segments.ChunkSeconds != 15 {
		t.Fatalf("expected sample chunk_seconds 15, got %d", cfg.Segments.ChunkSeconds)
	}
	if cfg.Summary.MaxInputChars != 3500 {
		t.Fatalf("expected sample max_input_chars 3500, got %d", cfg.Summary.MaxInputChars)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "chunk seconds",
			mutate:  func(c *config.Config) { c.Segments.ChunkSeconds = 0 },
			wantErr: "segments.chunk_seconds",
		},
		{
			name:    "unknown transcription backend",
			mutate:  func(c *config.Config) { c.Transcription.Backend = "vosk" },
			wantErr: "transcription.backend",
		},
		{
			name: "whisper api without url",
			mutate: func(c *config.Config) {
				c.Transcription.Backend = config.BackendWhisperAPI
				c.Transcription.APIURL = ""
			},
			wantErr: "transcription.api_url",
		},
		{
			name: "pyannote without token",
			mutate: func(c *config.Config) {
				c.Transcription.VADMethod = "pyannote"
				c.Transcription.HFToken = ""
			},
			wantErr: "transcription.hf_token",
		},
		{
			name:    "unknown summary backend",
			mutate:  func(c *config.Config) { c.Summary.Backend = "cohere" },
			wantErr: "summary.backend",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *config.Config) { c.Summary.Concurrency = 0 },
			wantErr: "summary.concurrency",
		},
		{
			name:    "negative max input",
			mutate:  func(c *config.Config) { c.Summary.MaxInputChars = -1 },
			wantErr: "summary.max_input_chars",
		},
		{
			name: "heartbeat ordering",
			mutate: func(c *config.Config) {
				c.Workflow.HeartbeatInterval = 30
				c.Workflow.HeartbeatTimeout = 30
			},
			wantErr: "workflow.heartbeat_timeout",
		},
		{
			name:    "fetch timeout",
			mutate:  func(c *config.Config) { c.Fetch.TimeoutSeconds = 0 },
			wantErr: "fetch.timeout_seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.InboxDir = filepath.Join(base, "inbox")
	cfg.Inbox.Enabled = true

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.InboxDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
