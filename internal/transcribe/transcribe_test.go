package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidsum/internal/config"
	"vidsum/internal/services"
	"vidsum/internal/testsupport"
	"vidsum/internal/transcript"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	testsupport.WriteFile(t, path, 64)
	return path
}

func TestWhisperXQuantizesAndOrders(t *testing.T) {
	audio := writeAudio(t)
	backend := NewWhisperX(config.Transcription{Model: "tiny"})
	backend.WithCommandRunner(func(context.Context, string, ...string) error {
		body := `{"segments":[
			{"text":"second","start":14.2,"end":16.0},
			{"text":"first","start":0.4,"end":2.1},
			{"text":"   ","start":3,"end":4}
		]}`
		dir := filepath.Join(filepath.Dir(audio), "whisperx")
		return os.WriteFile(filepath.Join(dir, "audio.json"), []byte(body), 0o644)
	})

	segs, err := backend.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	want := []transcript.Segment{
		{Start: 0, End: 3 * time.Second, Text: "first"},
		{Start: 14 * time.Second, End: 16 * time.Second, Text: "second"},
	}
	if len(segs) != len(want) {
		t.Fatalf("expected %d segments, got %#v", len(want), segs)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Fatalf("segment %d = %#v, want %#v", i, segs[i], want[i])
		}
	}
}

func TestWhisperXNoSpeechIsEmptySuccess(t *testing.T) {
	audio := writeAudio(t)
	backend := NewWhisperX(config.Transcription{})
	backend.WithCommandRunner(func(context.Context, string, ...string) error {
		dir := filepath.Join(filepath.Dir(audio), "whisperx")
		return os.WriteFile(filepath.Join(dir, "audio.json"), []byte(`{"segments":[]}`), 0o644)
	})
	segs, err := backend.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if segs == nil || len(segs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", segs)
	}
}

func TestWhisperXToolFailureIsTranscriptionFailure(t *testing.T) {
	backend := NewWhisperX(config.Transcription{})
	backend.WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("model not found")
	})
	_, err := backend.Transcribe(context.Background(), writeAudio(t))
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription failure, got %v", err)
	}
}

func TestWhisperAPITranscribe(t *testing.T) {
	var gotAuth, gotFormat, gotModel, gotLang string
	var gotFile []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotFormat = r.FormValue("response_format")
		gotModel = r.FormValue("model")
		gotLang = r.FormValue("language")
		file, _, err := r.FormFile("file")
		if err == nil {
			gotFile, _ = io.ReadAll(file)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hi there","segments":[{"start":1.5,"end":2.2,"text":" hi there"}]}`))
	}))
	defer server.Close()

	backend, err := NewWhisperAPI(config.Transcription{APIURL: server.URL, APIModel: "whisper-1", APIKey: "sk-test", Language: "English", TimeoutSeconds: 5})
	if err != nil {
		t.Fatalf("NewWhisperAPI: %v", err)
	}
	audio := writeAudio(t)
	segs, err := backend.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 1 || segs[0] != (transcript.Segment{Start: time.Second, End: 3 * time.Second, Text: "hi there"}) {
		t.Fatalf("unexpected segments %#v", segs)
	}
	if gotAuth != "Bearer sk-test" || gotFormat != "verbose_json" || gotModel != "whisper-1" || gotLang != "en" {
		t.Fatalf("unexpected request auth=%q format=%q model=%q lang=%q", gotAuth, gotFormat, gotModel, gotLang)
	}
	if len(gotFile) != 64 {
		t.Fatalf("uploaded %d bytes, want 64", len(gotFile))
	}
}

func TestWhisperAPITextOnlyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"text":"whole clip","duration":7.3}`))
	}))
	defer server.Close()

	backend, err := NewWhisperAPI(config.Transcription{APIURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	segs, err := backend.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 1 || segs[0].End != 8*time.Second {
		t.Fatalf("unexpected segments %#v", segs)
	}
}

func TestWhisperAPIErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	backend, err := NewWhisperAPI(config.Transcription{APIURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	_, err = backend.Transcribe(context.Background(), writeAudio(t))
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription failure, got %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	cfg.Transcription.Backend = config.BackendWhisperX
	if tr, err := New(cfg); err != nil {
		t.Fatalf("whisperx: %v", err)
	} else if _, ok := tr.(*WhisperX); !ok {
		t.Fatalf("expected *WhisperX, got %T", tr)
	}

	cfg.Transcription.Backend = config.BackendWhisperAPI
	cfg.Transcription.APIURL = ""
	if _, err := New(cfg); !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected missing url failure, got %v", err)
	}

	cfg.Transcription.Backend = "bogus"
	if _, err := New(cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
