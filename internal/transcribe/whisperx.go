package transcribe

import (
	"context"
	"time"

	"vidsum/internal/config"
	"vidsum/internal/deps"
	"vidsum/internal/services"
	"vidsum/internal/services/whisperx"
	"vidsum/internal/stage"
	"vidsum/internal/transcript"
	"vidsum/internal/workdir"
)

// WhisperX transcribes with the local WhisperX CLI.
type WhisperX struct {
	svc     *whisperx.Service
	timeout time.Duration
}

// NewWhisperX builds the CLI backend from the transcription config.
func NewWhisperX(cfg config.Transcription) *WhisperX {
	return &WhisperX{
		svc: whisperx.NewService(whisperx.Config{
			Model:       cfg.Model,
			CUDAEnabled: cfg.CUDAEnabled,
			VADMethod:   cfg.VADMethod,
			HFToken:     cfg.HFToken,
			Language:    cfg.Language,
		}),
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperX) WithCommandRunner(runner whisperx.CommandRunner) {
	w.svc.WithCommandRunner(runner)
}

// Transcribe writes WhisperX output into a whisperx/ directory beside the
// audio file and converts its segments.
func (w *WhisperX) Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	result, err := w.svc.TranscribeFile(ctx, audioPath, workdir.WhisperDirFor(audioPath))
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, stageName, "whisperx", "model "+w.svc.Model(), err)
	}
	segs := make([]transcript.Segment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		segs = append(segs, transcript.FromSeconds(seg.Start, seg.End, seg.Text))
	}
	return finish(segs), nil
}

// HealthCheck verifies uvx is available to launch WhisperX.
func (w *WhisperX) HealthCheck(context.Context) stage.Health {
	return deps.BinaryHealth("transcription", "uvx", whisperx.UVXCommand)
}
