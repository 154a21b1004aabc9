// Package gemini summarizes text with the Google Gemini API through the genai
// SDK.
//
// Several API keys may be configured as a comma-separated list. A rate-limit
// or quota response rotates to the next key; other errors fail immediately.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

const (
	defaultModel  = "gemini-2.5-flash"
	defaultPrompt = "Summarize this video segment clearly in 2-3 sentences:"
)

// Config captures the Gemini backend settings.
type Config struct {
	APIKey         string
	Model          string
	Prompt         string
	BaseURL        string
	TimeoutSeconds int
}

// Client issues GenerateContent calls, rotating keys on quota errors.
type Client struct {
	model   string
	prompt  string
	baseURL string
	timeout time.Duration
	keys    []string

	mu      sync.Mutex
	current int
	clients map[string]*genai.Client
}

// ErrNoKeys is returned when no API key is configured.
var ErrNoKeys = errors.New("gemini: api key required")

// NewClient builds a client. Keys are split on commas.
func NewClient(cfg Config) (*Client, error) {
	var keys []string
	for _, key := range strings.Split(cfg.APIKey, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	c := &Client{
		model:   strings.TrimSpace(cfg.Model),
		prompt:  strings.TrimSpace(cfg.Prompt),
		baseURL: strings.TrimSpace(cfg.BaseURL),
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		keys:    keys,
		clients: make(map[string]*genai.Client, len(keys)),
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.prompt == "" {
		c.prompt = defaultPrompt
	}
	return c, nil
}

// Model returns the configured model for logging.
func (c *Client) Model() string {
	return c.model
}

// Summarize asks Gemini for a short summary of text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("gemini summarize: text required")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	prompt := c.prompt + "\n\n" + text

	var lastErr error
	for range len(c.keys) {
		key := c.currentKey()
		client, err := c.clientFor(ctx, key)
		if err != nil {
			lastErr = fmt.Errorf("create client: %w", err)
			c.rotate(key)
			continue
		}
		result, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
		if err != nil {
			if isQuotaError(err) {
				lastErr = err
				c.rotate(key)
				continue
			}
			return "", fmt.Errorf("gemini generate content: %w", err)
		}
		if summary := responseText(result); summary != "" {
			return summary, nil
		}
		return "", errors.New("gemini: empty response")
	}
	return "", fmt.Errorf("gemini: all api keys exhausted: %w", lastErr)
}

func (c *Client) currentKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[c.current]
}

// rotate advances past key unless another caller already did.
func (c *Client) rotate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[c.current] == key {
		c.current = (c.current + 1) % len(c.keys)
	}
}

func (c *Client) clientFor(ctx context.Context, key string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[key]; ok {
		return client, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.clients[key] = client
	return client, nil
}

func responseText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func isQuotaError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
