// Package transcribe turns a waveform into ordered, whole-second transcript
// segments.
//
// Two backends are available: the WhisperX CLI (run locally through uvx)
// and any OpenAI-compatible /v1/audio/transcriptions endpoint. Both return
// an empty, non-nil slice when the audio has no speech; an error means the
// backend itself is unavailable or misconfigured.
package transcribe

import (
	"context"
	"fmt"

	"vidsum/internal/config"
	"vidsum/internal/services"
	"vidsum/internal/transcript"
)

const stageName = "transcribing"

// Transcriber converts an audio file into transcript segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error)
}

// New selects the backend named by cfg.Transcription.Backend.
func New(cfg *config.Config) (Transcriber, error) {
	switch cfg.Transcription.Backend {
	case "", config.BackendWhisperX:
		return NewWhisperX(cfg.Transcription), nil
	case config.BackendWhisperAPI:
		return NewWhisperAPI(cfg.Transcription)
	default:
		return nil, services.Wrap(services.ErrConfiguration, stageName, "select backend",
			fmt.Sprintf("unknown transcription backend %q", cfg.Transcription.Backend), nil)
	}
}

// finish normalizes backend output into the transcript invariants.
func finish(segs []transcript.Segment) []transcript.Segment {
	out := transcript.Normalize(segs)
	if out == nil {
		out = []transcript.Segment{}
	}
	return out
}
