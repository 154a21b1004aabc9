package ffprobe

import (
	"context"
	"testing"
)

const sample = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2,
     "tags": {"language": "eng", "title": "Main"}, "disposition": {"default": 1}},
    {"index": 2, "codec_name": "opus", "codec_type": "audio", "channels": 2,
     "tags": {"language": "eng", "title": "Director Commentary"}}
  ],
  "format": {"filename": "media.mkv", "nb_streams": 3, "duration": "123.450000", "format_name": "matroska,webm"}
}`

func TestParseAudioStreams(t *testing.T) {
	result, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	audio := result.AudioStreams()
	if len(audio) != 2 {
		t.Fatalf("expected 2 audio streams, got %d", len(audio))
	}
	if audio[0].Index != 1 || audio[0].Tags["language"] != "eng" || audio[0].Disposition["default"] != 1 {
		t.Fatalf("unexpected first audio stream %+v", audio[0])
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration %v", result.DurationSeconds())
	}
}

func TestDurationHandlesInvalidNumbers(t *testing.T) {
	for _, value := range []string{"", "N/A", "-4"} {
		if got := (Result{Format: Format{Duration: value}}).DurationSeconds(); got != 0 {
			t.Fatalf("DurationSeconds(%q) = %v, want 0", value, got)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "", "  "); err == nil {
		t.Fatal("expected empty path error")
	}
}
