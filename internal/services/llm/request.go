package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Message chatReply `json:"message"`
	// Some OpenRouter providers answer with the streaming shape even when
	// stream is off; older ones use the completions "text" field.
	Delta        chatReply `json:"delta"`
	Text         string    `json:"text"`
	FinishReason string    `json:"finish_reason"`
}

type chatReply struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

type chatCompletionResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// reply returns the first non-blank text across all choices together with
// the first finish reason and refusal seen.
func (r chatCompletionResponse) reply() (text, finishReason, refusal string) {
	for _, choice := range r.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = firstNonBlank(choice.Message.Refusal, choice.Delta.Refusal)
		}
		if text = firstNonBlank(choice.Message.Content, choice.Delta.Content, choice.Text); text != "" {
			return text, finishReason, refusal
		}
	}
	return "", finishReason, refusal
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// complete posts payload until it yields text, a permanent error, or the
// attempt budget runs out.
func (c *Client) complete(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	attempts := c.retryAttempts()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var text string
		if text, err = c.attempt(ctx, payload, op); err == nil {
			return text, nil
		}
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return "", err
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
	}
	return "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, err)
}

func (c *Client) attempt(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	resp, body, err := c.post(ctx, payload)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty choices", op)
	}
	text, finishReason, refusal := resp.reply()
	if text == "" {
		return "", &emptyContentError{Op: op, FinishReason: finishReason, Refusal: refusal, Snippet: snippet(string(body))}
	}
	return text, nil
}

func (c *Client) post(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, []byte, error) {
	var out chatCompletionResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return out, nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return out, nil, fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	for header, value := range map[string]string{"HTTP-Referer": c.cfg.Referer, "X-Title": c.cfg.Title} {
		if value != "" {
			req.Header.Set(header, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, nil, fmt.Errorf("llm request: http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, nil, fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return out, body, newHTTPStatusError(resp, body)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, body, fmt.Errorf("llm request: decode response: %w", err)
	}
	if out.Error != nil {
		return out, body, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(out.Error.Message))
	}
	return out, body, nil
}

// snippet flattens a response body to one line of at most 160 runes for
// error messages.
func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > 160 {
		return string(runes[:160]) + "..."
	}
	return clean
}
