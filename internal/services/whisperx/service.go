package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"vidsum/internal/language"
)

// CommandRunner executes an external tool. Tests substitute a fake.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// ErrNoOutput is returned when WhisperX exits cleanly without writing JSON.
var ErrNoOutput = errors.New("whisperx produced no json output")

// Service runs WhisperX through uvx and reads back its JSON segments.
type Service struct {
	cfg    Config
	runner CommandRunner
}

// NewService returns a Service that shells out to uvx.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg.normalized(), runner: runUVX}
}

// WithCommandRunner replaces the uvx launcher.
func (s *Service) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		s.runner = runner
	}
}

// Model reports the model passed to WhisperX.
func (s *Service) Model() string { return s.cfg.Model }

// Segment is one sentence-level span of WhisperX output. Times are seconds.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is the parsed output of one run.
type Result struct {
	JSONPath string
	Segments []Segment
}

// TranscribeFile runs WhisperX on source and parses <outputDir>/<base>.json.
// A blank outputDir means the directory holding source.
func (s *Service) TranscribeFile(ctx context.Context, source, outputDir string) (Result, error) {
	if source == "" {
		return Result{}, errors.New("transcribe: source path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	jsonPath := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))+".json")
	// Output left by an interrupted run must not pass for fresh output.
	if err := os.Remove(jsonPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Result{}, fmt.Errorf("transcribe: remove stale output: %w", err)
	}
	if err := s.runner(ctx, UVXCommand, s.buildArgs(source, outputDir)...); err != nil {
		return Result{}, fmt.Errorf("whisperx: %w", err)
	}

	segments, err := LoadSegments(jsonPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Result{}, ErrNoOutput
	case err != nil:
		return Result{}, err
	}
	return Result{JSONPath: jsonPath, Segments: segments}, nil
}

func (s *Service) buildArgs(source, outputDir string) []string {
	var args []string
	if s.cfg.CUDAEnabled {
		args = append(args, "--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args, "whisperx", source, "--model", s.cfg.Model, "--output_dir", outputDir)
	args = append(args, decodeFlags...)
	args = append(args, "--vad_method", s.cfg.VADMethod)
	if s.cfg.VADMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}
	if lang := language.ToISO2(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		return append(args, "--device", CUDADevice)
	}
	return append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
}

// LoadSegments reads the segments array of a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var out struct {
		Segments []Segment `json:"segments"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return out.Segments, nil
}

func runUVX(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// Torch 2.6 made torch.load default to weights_only, which rejects the
	// pyannote and WhisperX checkpoints.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
