package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func geminiServer(t *testing.T, handler func(key string, body map[string]any) (int, any)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		status, payload := handler(r.Header.Get("x-goog-api-key"), body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(server.Close)
	return server
}

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{APIKey: " , "}); !errors.Is(err, ErrNoKeys) {
		t.Fatalf("expected ErrNoKeys, got %v", err)
	}
}

func TestSummarizeSendsPromptAndText(t *testing.T) {
	var gotBody string
	server := geminiServer(t, func(_ string, body map[string]any) (int, any) {
		raw, _ := json.Marshal(body)
		gotBody = string(raw)
		return http.StatusOK, textResponse(" Two people discuss the weather. ")
	})

	client, err := NewClient(Config{APIKey: "k1", BaseURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	summary, err := client.Summarize(context.Background(), "it looks like rain today")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "Two people discuss the weather." {
		t.Fatalf("unexpected summary %q", summary)
	}
	if !strings.Contains(gotBody, "it looks like rain today") || !strings.Contains(gotBody, "2-3 sentences") {
		t.Fatalf("prompt missing from request: %s", gotBody)
	}
}

func TestSummarizeRotatesKeysOnQuota(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	server := geminiServer(t, func(key string, _ map[string]any) (int, any) {
		mu.Lock()
		seen = append(seen, key)
		mu.Unlock()
		if key == "k1" {
			return http.StatusTooManyRequests, map[string]any{
				"error": map[string]any{"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
			}
		}
		return http.StatusOK, textResponse("from second key")
	})

	client, err := NewClient(Config{APIKey: "k1, k2", BaseURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	summary, err := client.Summarize(context.Background(), "text")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "from second key" {
		t.Fatalf("unexpected summary %q", summary)
	}
	if len(seen) != 2 || seen[0] != "k1" || seen[1] != "k2" {
		t.Fatalf("unexpected key order %v", seen)
	}
}

func TestSummarizeFailsOnServerError(t *testing.T) {
	server := geminiServer(t, func(string, map[string]any) (int, any) {
		return http.StatusBadRequest, map[string]any{
			"error": map[string]any{"code": 400, "message": "bad model", "status": "INVALID_ARGUMENT"},
		}
	})
	client, err := NewClient(Config{APIKey: "k1", BaseURL: server.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Summarize(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
}
