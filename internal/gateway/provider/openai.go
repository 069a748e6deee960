package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tkim9/upbit-autotrade/internal/logger"
)

// OpenAIChatClient talks to any OpenAI-compatible chat completions
// endpoint (/v1/chat/completions).
type OpenAIChatClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// Retries for 429/5xx. Zero means the default of 2.
	MaxRetries int
}

func (c *OpenAIChatClient) ID() string { return c.Model }

// endpoint normalizes BaseURL so a configured value with or without a
// trailing /chat/completions both work.
func (c *OpenAIChatClient) endpoint() string {
	url := strings.TrimSpace(c.BaseURL)
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func (c *OpenAIChatClient) Call(ctx context.Context, req Request) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	url := c.endpoint()

	messages := []map[string]any{}
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.SystemPrompt})
	}
	if req.ImageDataURI != "" {
		messages = append(messages, map[string]any{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": req.UserPrompt},
				{"type": "image_url", "image_url": map[string]any{"url": req.ImageDataURI}},
			},
		})
	} else {
		messages = append(messages, map[string]any{"role": "user", "content": req.UserPrompt})
	}

	body := map[string]any{"model": c.Model, "messages": messages, "temperature": 0.5}
	if req.Schema != nil {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   req.Schema.Name,
				"strict": true,
				"schema": req.Schema.Schema,
			},
		}
	}
	b, _ := json.Marshal(body)

	httpc := &http.Client{Timeout: timeout}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt == 0 {
			logger.Debugf("[ai] request: POST %s model=%s auth=Bearer ****%s bytes=%d",
				url, c.Model, keyTail(c.APIKey), len(b))
		}
		hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return "", err
		}
		hreq.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			hreq.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := httpc.Do(hreq)
		if err != nil {
			return "", err
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return "", derr
			}
			if len(r.Choices) == 0 {
				return "", fmt.Errorf("empty choices")
			}
			return r.Choices[0].Message.Content, nil
		}

		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		retryAfter := resp.Header.Get("Retry-After")
		status := resp.StatusCode
		resp.Body.Close()
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = http.StatusText(status)
		}
		lastErr = fmt.Errorf("status=%d: %s", status, msg)
		if !retryableStatus(status) || attempt >= maxRetries {
			break
		}
		wait := time.Duration(0)
		if retryAfter != "" {
			if secs, perr := strconv.Atoi(retryAfter); perr == nil {
				wait = time.Duration(secs) * time.Second
			}
		}
		if wait == 0 {
			// 0.8s, 1.6s, 3.2s ... capped at 8s
			wait = (800 * time.Millisecond) << attempt
			if wait > 8*time.Second {
				wait = 8 * time.Second
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func keyTail(key string) string {
	if len(key) > 4 {
		return key[len(key)-4:]
	}
	return key
}
