package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"vidsum/internal/config"
	"vidsum/internal/deps"
	"vidsum/internal/fileutil"
	"vidsum/internal/services"
	"vidsum/internal/stage"
	"vidsum/internal/workdir"
)

const (
	stageName     = "fetching"
	defaultBinary = "yt-dlp"
	defaultFormat = "ba"
)

// YTDLP downloads the audio-bearing stream of a single video with yt-dlp.
type YTDLP struct {
	binary  string
	format  string
	timeout time.Duration
	runner  CommandRunner
}

// NewYTDLP constructs a downloader from the fetch configuration.
func NewYTDLP(cfg config.Fetch) *YTDLP {
	binary := strings.TrimSpace(cfg.YTDLPBinary)
	if binary == "" {
		binary = defaultBinary
	}
	format := strings.TrimSpace(cfg.Format)
	if format == "" {
		format = defaultFormat
	}
	return &YTDLP{
		binary:  binary,
		format:  format,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		runner:  runCommand,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (y *YTDLP) WithCommandRunner(runner CommandRunner) {
	if runner == nil {
		runner = runCommand
	}
	y.runner = runner
}

// Fetch downloads reference into destDir as media.<ext>. Any media file from
// an earlier attempt is removed first so the download always overwrites.
func (y *YTDLP) Fetch(ctx context.Context, reference, destDir string) (string, error) {
	ref, err := NormalizeReference(reference)
	if err != nil {
		return "", services.Wrap(services.ErrAcquisition, stageName, "normalize reference", "invalid reference", err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrAcquisition, stageName, "prepare destination", "create directory", err)
	}
	if err := workdir.RemoveMediaFiles(destDir); err != nil {
		return "", services.Wrap(services.ErrAcquisition, stageName, "prepare destination", "remove stale media", err)
	}

	if y.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}
	if err := y.runner(ctx, y.binary, y.buildArgs(ref, destDir)...); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("download exceeded %s: %w", y.timeout, err)
		}
		return "", services.Wrap(services.ErrAcquisition, stageName, "yt-dlp", "download failed", err)
	}

	path, ok := largestMedia(destDir)
	if !ok {
		return "", services.Wrap(services.ErrAcquisition, stageName, "yt-dlp", "no media file produced", nil)
	}
	return path, nil
}

func (y *YTDLP) buildArgs(ref, destDir string) []string {
	return []string{
		"--no-playlist",
		"--playlist-items", "1",
		"--no-part",
		"--force-overwrites",
		"--no-progress",
		"-f", y.format,
		"-o", workdir.MediaTemplate(destDir),
		ref,
	}
}

// HealthCheck verifies the yt-dlp binary is on PATH.
func (y *YTDLP) HealthCheck(context.Context) stage.Health {
	return deps.BinaryHealth("fetch", "yt-dlp", y.binary)
}

func largestMedia(dir string) (string, bool) {
	var (
		best     string
		bestSize int64
	)
	for _, candidate := range workdir.MediaFiles(dir) {
		if !fileutil.NonEmptyFile(candidate) {
			continue
		}
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = candidate, info.Size()
		}
	}
	return best, best != ""
}
