package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidsum/internal/config"
	langpkg "vidsum/internal/language"
	"vidsum/internal/services"
	"vidsum/internal/stage"
	"vidsum/internal/transcript"
)

// WhisperAPI calls an OpenAI-compatible /v1/audio/transcriptions endpoint.
type WhisperAPI struct {
	url      string
	model    string
	apiKey   string
	language string
	client   *http.Client
}

// NewWhisperAPI builds the HTTP backend. The endpoint URL is required.
func NewWhisperAPI(cfg config.Transcription) (*WhisperAPI, error) {
	url := strings.TrimSpace(cfg.APIURL)
	if url == "" {
		return nil, services.Wrap(services.ErrTranscription, stageName, "whisper api", "api_url is not configured", nil)
	}
	return &WhisperAPI{
		url:      url,
		model:    strings.TrimSpace(cfg.APIModel),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		language: langpkg.ToISO2(cfg.Language),
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}, nil
}

// WithHTTPClient overrides the HTTP client (for testing).
func (w *WhisperAPI) WithHTTPClient(client *http.Client) {
	if client != nil {
		w.client = client
	}
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads audioPath as multipart/form-data and requests
// verbose_json so segment timestamps come back.
func (w *WhisperAPI) Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
	body, contentType, err := w.buildForm(audioPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, stageName, "whisper api", "build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, body)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, stageName, "whisper api", "create request", err)
	}
	req.Header.Set("Content-Type", contentType)
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, stageName, "whisper api", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, stageName, "whisper api", "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrTranscription, stageName, "whisper api",
			fmt.Sprintf("status %d", resp.StatusCode), errors.New(truncate(string(raw), 300)))
	}

	var parsed verboseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, services.Wrap(services.ErrTranscription, stageName, "whisper api", "decode response", err)
	}

	segs := make([]transcript.Segment, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		segs = append(segs, transcript.FromSeconds(seg.Start, seg.End, seg.Text))
	}
	// Servers that ignore verbose_json still return the full text.
	if len(segs) == 0 && strings.TrimSpace(parsed.Text) != "" {
		segs = append(segs, transcript.FromSeconds(0, parsed.Duration, parsed.Text))
	}
	return finish(segs), nil
}

func (w *WhisperAPI) buildForm(audioPath string) (io.Reader, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy audio data: %w", err)
	}
	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
		{"temperature", "0"},
	}
	if w.model != "" {
		fields = append(fields, [2]string{"model", w.model})
	}
	if w.language != "" {
		fields = append(fields, [2]string{"language", w.language})
	}
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// HealthCheck reports whether an endpoint is configured. It does not probe
// the server so a doctor run never uploads audio.
func (w *WhisperAPI) HealthCheck(context.Context) stage.Health {
	if w.url == "" {
		return stage.Unhealthy("transcription", "api_url is not configured")
	}
	return stage.Healthy("transcription")
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
