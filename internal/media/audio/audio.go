package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"vidsum/internal/config"
	"vidsum/internal/deps"
	"vidsum/internal/fileutil"
	"vidsum/internal/media/ffprobe"
	"vidsum/internal/services"
	"vidsum/internal/stage"
)

const (
	stageName         = "extracting"
	defaultBinary     = "ffmpeg"
	DefaultSampleRate = 16000
)

// Extractor writes a normalized waveform for mediaPath to audioPath.
type Extractor interface {
	Extract(ctx context.Context, mediaPath, audioPath string) error
}

// CommandRunner executes an external tool. Tests substitute a fake.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Prober lists the streams of a media file.
type Prober func(ctx context.Context, path string) (ffprobe.Result, error)

// FFmpeg extracts audio with the ffmpeg CLI.
type FFmpeg struct {
	binary     string
	sampleRate int
	language   string
	runner     CommandRunner
	probe      Prober
}

// NewFFmpeg constructs an extractor from the audio configuration.
func NewFFmpeg(cfg config.Audio) *FFmpeg {
	binary := strings.TrimSpace(cfg.FFmpegBinary)
	if binary == "" {
		binary = defaultBinary
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	probeBinary := strings.TrimSpace(cfg.FFprobeBinary)
	return &FFmpeg{
		binary:     binary,
		sampleRate: rate,
		runner:     runCommand,
		probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, probeBinary, path)
		},
	}
}

// WithPreferredLanguage biases track selection toward the spoken language
// hint. Blank or "auto" disables the preference.
func (f *FFmpeg) WithPreferredLanguage(lang string) *FFmpeg {
	f.language = lang
	return f
}

// WithProber replaces stream inspection. A nil prober skips it, leaving
// track choice to ffmpeg.
func (f *FFmpeg) WithProber(probe Prober) {
	f.probe = probe
}

// WithCommandRunner sets a custom command runner (for testing).
func (f *FFmpeg) WithCommandRunner(runner CommandRunner) {
	if runner == nil {
		runner = runCommand
	}
	f.runner = runner
}

// SampleRate returns the output sample rate in Hz.
func (f *FFmpeg) SampleRate() int {
	return f.sampleRate
}

// Extract decodes the spoken audio stream of mediaPath into a mono PCM WAV,
// discarding video, subtitle, and data streams. An existing audioPath is
// overwritten.
func (f *FFmpeg) Extract(ctx context.Context, mediaPath, audioPath string) error {
	if !fileutil.NonEmptyFile(mediaPath) {
		return services.Wrap(services.ErrExtraction, stageName, "ffmpeg", "media file missing or empty", os.ErrNotExist)
	}
	streamIndex, err := f.selectStream(ctx, mediaPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(audioPath), 0o755); err != nil {
		return services.Wrap(services.ErrExtraction, stageName, "prepare output", "create directory", err)
	}
	if err := f.runner(ctx, f.binary, f.buildArgs(mediaPath, audioPath, streamIndex)...); err != nil {
		return services.Wrap(services.ErrExtraction, stageName, "ffmpeg", "decode audio", err)
	}
	if !fileutil.NonEmptyFile(audioPath) {
		return services.Wrap(services.ErrExtraction, stageName, "ffmpeg", "no audio produced", nil)
	}
	return nil
}

// selectStream returns the container index to decode, or -1 to let ffmpeg
// choose. Probe failures fall through to ffmpeg, which reports unreadable
// media itself.
func (f *FFmpeg) selectStream(ctx context.Context, mediaPath string) (int, error) {
	if f.probe == nil {
		return -1, nil
	}
	result, err := f.probe(ctx, mediaPath)
	if err != nil {
		return -1, nil
	}
	spoken, ok := SelectSpoken(result.Streams, f.language)
	if !ok {
		return -1, services.Wrap(services.ErrExtraction, stageName, "ffprobe", "media has no audio stream", nil)
	}
	return spoken.Index, nil
}

func (f *FFmpeg) buildArgs(mediaPath, audioPath string, streamIndex int) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", mediaPath,
	}
	if streamIndex >= 0 {
		args = append(args, "-map", "0:"+strconv.Itoa(streamIndex))
	}
	return append(args,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(f.sampleRate),
		"-c:a", "pcm_s16le",
		audioPath,
	)
}

// HealthCheck verifies the ffmpeg binary is on PATH.
func (f *FFmpeg) HealthCheck(context.Context) stage.Health {
	return deps.BinaryHealth("audio", "FFmpeg", f.binary)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
