package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultTimeout = 60 * time.Second
	defaultPrompt  = "Summarize this video segment clearly in 2-3 sentences:"

	// summaryTemperature keeps scene summaries close to the transcript.
	summaryTemperature = 0.2
)

// Config captures the runtime settings required to talk to OpenRouter.
// Referer and Title become the attribution headers OpenRouter shows on its
// usage dashboard.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	Prompt         string
	TimeoutSeconds int
}

// retryPolicy bounds how hard a single Summarize call tries.
type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	// sleep replaces the context-aware timer in tests.
	sleep func(time.Duration)
}

// Client wraps the OpenRouter chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts sets the total number of requests per call.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff sets the first backoff delay and the cap.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.baseDelay = baseDelay
		c.retry.maxDelay = maxDelay
	}
}

// WithSleeper replaces the retry wait.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleep = sleeper }
}

// NewClient trims cfg, fills the endpoint and prompt defaults, then applies opts.
func NewClient(cfg Config, opts ...Option) *Client {
	for _, field := range []*string{&cfg.APIKey, &cfg.BaseURL, &cfg.Model, &cfg.Referer, &cfg.Title, &cfg.Prompt} {
		*field = strings.TrimSpace(*field)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaultPrompt
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retryPolicy{attempts: 4, baseDelay: time.Second, maxDelay: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model returns the configured model for logging.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Summarize asks the model for a short plain-text summary of one scene's
// transcript. The prompt is the system message and the text the user message.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("llm summarize: text required")
	}
	if c.cfg.APIKey == "" {
		return "", errors.New("llm summarize: api key required")
	}
	return c.complete(ctx, chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.cfg.Prompt},
			{Role: "user", Content: text},
		},
		Temperature: summaryTemperature,
	}, "llm summarize")
}
