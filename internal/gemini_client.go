package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/propsage/propsage"
)

// GeminiClient calls the generateContent endpoint of the Gemini REST API.
// It implements propsage.Completer; the service layer never sees HTTP
// details.
type GeminiClient struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.SugaredLogger
}

// NewGeminiClient builds a client from config. Zero or negative limits fall
// back to the defaults from propsage.DefaultConfig.
func NewGeminiClient(cfg propsage.GeminiConfig) *GeminiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GeminiClient{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.Model,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      zap.S().Named("gemini"),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type generateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// APIError is a structured Gemini API failure.
type APIError struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gemini api error: status=%d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini api error: status=%d", e.StatusCode)
}

// Complete sends one prompt and returns the first candidate's text. Rate
// limits and server errors are retried with exponential backoff up to the
// configured attempt count.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("gemini api key is missing")
	}
	if c.model == "" {
		return "", errors.New("gemini model cannot be empty")
	}
	payload, err := json.Marshal(generateContentRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, c.model, url.QueryEscape(c.apiKey))

	backoff := c.retryDelay
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		text, retryable, err := c.doRequest(ctx, endpoint, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable || attempt == c.maxAttempts {
			break
		}
		c.logger.Warnw("completion attempt failed, retrying",
			"attempt", attempt, "error", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		backoff *= 2
	}
	return "", lastErr
}

func (c *GeminiClient) doRequest(ctx context.Context, endpoint string, payload []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", isRetryableNetErr(err), fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var raw struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &raw) == nil {
			apiErr.Message = raw.Error.Message
			apiErr.Status = raw.Error.Status
		}
		retry := resp.StatusCode == http.StatusTooManyRequests ||
			(resp.StatusCode >= 500 && resp.StatusCode <= 599)
		return "", retry, apiErr
	}

	var out generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", false, errors.New("empty completion candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, false, nil
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}
