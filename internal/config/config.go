package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir  string `toml:"work_dir"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	InboxDir string `toml:"inbox_dir"`
}

// Fetch configures media acquisition.
type Fetch struct {
	YTDLPBinary    string `toml:"yt_dlp_binary"`
	Format         string `toml:"format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Audio configures waveform extraction.
type Audio struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	SampleRate    int    `toml:"sample_rate"`
}

// Transcription selects and configures the speech-to-text backend.
type Transcription struct {
	Backend        string `toml:"backend"`
	Model          string `toml:"model"`
	CUDAEnabled    bool   `toml:"cuda_enabled"`
	VADMethod      string `toml:"vad_method"`
	HFToken        string `toml:"hf_token"`
	APIURL         string `toml:"api_url"`
	APIModel       string `toml:"api_model"`
	APIKey         string `toml:"api_key"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Summary selects and configures the summarization backend.
type Summary struct {
	Backend        string `toml:"backend"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	Prompt         string `toml:"prompt"`
	MaxInputChars  int    `toml:"max_input_chars"`
	Concurrency    int    `toml:"concurrency"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Segments configures scene windowing.
type Segments struct {
	ChunkSeconds int `toml:"chunk_seconds"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	MaxJobs            int `toml:"max_jobs"`
}

// API configures the HTTP submission surface.
type API struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
	Token   string `toml:"token"`
}

// Inbox configures the descriptor drop directory watcher.
type Inbox struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vidsum.
//
// Configuration sections by subsystem:
//   - Paths: working, state, log, and inbox directories
//   - Fetch: yt-dlp acquisition
//   - Audio: ffmpeg waveform extraction
//   - Transcription: WhisperX CLI or Whisper-compatible HTTP backend
//   - Summary: OpenRouter or Gemini summarization
//   - Segments: scene window width
//   - Workflow: daemon polling intervals and heartbeats
//   - API, Inbox: job submission surfaces
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Fetch         Fetch         `toml:"fetch"`
	Audio         Audio         `toml:"audio"`
	Transcription Transcription `toml:"transcription"`
	Summary       Summary       `toml:"summary"`
	Segments      Segments      `toml:"segments"`
	Workflow      Workflow      `toml:"workflow"`
	API           API           `toml:"api"`
	Inbox         Inbox         `toml:"inbox"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidsum/config.toml")
}

// Load locates, parses, and validates a configuration file. A .env file in the
// current directory is loaded first without overriding the environment. The
// returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, "", false, err
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidsum.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline and daemon write to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Inbox.Enabled {
		if err := os.MkdirAll(c.Paths.InboxDir, 0o755); err != nil {
			return fmt.Errorf("create inbox directory %q: %w", c.Paths.InboxDir, err)
		}
	}
	return nil
}

// JobsDBPath returns the SQLite job store location.
func (c *Config) JobsDBPath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// ChunkWidth returns the scene window width.
func (c *Config) ChunkWidth() time.Duration {
	return time.Duration(c.Segments.ChunkSeconds) * time.Second
}

// FetchTimeout returns the per-download deadline.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// TranscriptionTimeout returns the per-transcription deadline.
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.Transcription.TimeoutSeconds) * time.Second
}

// SummaryTimeout returns the per-request summarization deadline.
func (c *Config) SummaryTimeout() time.Duration {
	return time.Duration(c.Summary.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
