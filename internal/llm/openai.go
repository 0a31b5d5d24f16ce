package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"jarvis/internal/config"
	"jarvis/internal/httpkit"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Defaults for the retry budget. Timeouts, rate limits, and transport
// failures are retried; authorization failures and malformed bodies are
// surfaced immediately.
const (
	defaultAttemptTimeout = 60 * time.Second
	defaultMaxRetries     = 2
	defaultBackoffBase    = 500 * time.Millisecond
	defaultMaxTokens      = 200
)

// OpenAIClient is a client for the OpenAI chat completions API.
//
// The API key is not held by the client: it arrives with every call so
// that a config reload takes effect on the next request.
type OpenAIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	attemptTimeout time.Duration
	maxRetries     int
	backoffBase    time.Duration
}

// NewOpenAIClient creates a new OpenAI client. An empty baseURL selects
// the public API endpoint.
func NewOpenAIClient(baseURL string, logger *slog.Logger) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		baseURL: baseURL,
		logger:  logger.With("provider", "openai"),
		// No global timeout — the per-attempt context bounds each try.
		httpClient:     httpkit.NewClient(httpkit.WithTimeout(0)),
		attemptTimeout: defaultAttemptTimeout,
		maxRetries:     defaultMaxRetries,
		backoffBase:    defaultBackoffBase,
	}
}

// OpenAI request/response types

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends the conversation to the chat completions endpoint and
// returns the assistant reply. Retryable failures are retried up to the
// budget with exponential backoff before the classified error surfaces.
func (c *OpenAIClient) Complete(ctx context.Context, model, apiKey string, messages []Message) (string, error) {
	// Lazy credential validation: the key's absence only matters once a
	// completion is actually requested.
	if apiKey == "" {
		return "", &APIError{
			Kind:    KindUnauthorized,
			Message: "openai_api_key is not configured",
		}
	}

	var lastErr *APIError
	for attempt := 0; ; attempt++ {
		reply, apiErr := c.completeOnce(ctx, model, apiKey, messages)
		if apiErr == nil {
			if attempt > 0 {
				c.logger.Info("completion succeeded after retry", "attempts", attempt+1)
			}
			return reply, nil
		}

		// Cancellation from the caller is not a provider failure.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = apiErr
		if !apiErr.Kind.retryable() || attempt >= c.maxRetries {
			break
		}

		delay := c.backoffBase << attempt
		if apiErr.RetryAfter > delay {
			delay = apiErr.RetryAfter
		}
		c.logger.Warn("completion attempt failed, retrying",
			"kind", apiErr.Kind.String(),
			"attempt", attempt+1,
			"max_attempts", c.maxRetries+1,
			"delay", delay,
			"error", apiErr,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	c.logger.Error("completion failed", "kind", lastErr.Kind.String(), "error", lastErr)
	return "", lastErr
}

// completeOnce performs a single bounded attempt and classifies the outcome.
func (c *OpenAIClient) completeOnce(ctx context.Context, model, apiKey string, messages []Message) (string, *APIError) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req := chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: defaultMaxTokens,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", &APIError{Kind: KindTransport, Message: "marshal request", Err: err}
	}

	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(attemptCtx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", &APIError{Kind: KindTransport, Message: "create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body := httpkit.ReadErrorBody(resp.Body, 4096)
		return "", &APIError{
			Kind:    KindUnauthorized,
			Status:  resp.StatusCode,
			Message: "API key rejected or model not permitted",
			Err:     errors.New(body),
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		body := httpkit.ReadErrorBody(resp.Body, 4096)
		return "", &APIError{
			Kind:       KindRateLimited,
			Status:     resp.StatusCode,
			Message:    "rate limited",
			RetryAfter: retryAfter,
			Err:        errors.New(body),
		}

	case resp.StatusCode != http.StatusOK:
		body := httpkit.ReadErrorBody(resp.Body, 4096)
		return "", &APIError{
			Kind:    KindTransport,
			Status:  resp.StatusCode,
			Message: "unexpected status",
			Err:     errors.New(body),
		}
	}

	// Buffer the body so a decode failure can log the raw payload.
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", classifyTransport(err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil || len(parsed.Choices) == 0 {
		c.logger.Error("malformed completion response",
			"model", model,
			"decode_error", err,
			"body", truncate(buf.String(), 4096),
		)
		return "", &APIError{
			Kind:    KindBadResponse,
			Status:  resp.StatusCode,
			Message: "empty or undecodable response body",
			Err:     err,
		}
	}

	reply := parsed.Choices[0].Message.Content
	c.logger.Debug("completion received",
		"model", parsed.Model,
		"finish_reason", parsed.Choices[0].FinishReason,
		"reply_len", len(reply),
	)
	c.logger.Log(ctx, config.LevelTrace, "response content", "content", reply)

	// An empty reply string is still a successful turn.
	return reply, nil
}

// classifyTransport maps a round-trip error to Timeout or Transport.
func classifyTransport(err error) *APIError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &APIError{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	return &APIError{Kind: KindTransport, Message: "request failed", Err: err}
}

// parseRetryAfter reads a Retry-After header in seconds form. HTTP-date
// form is rare on this API and falls back to zero (use backoff).
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + fmt.Sprintf("... (%d bytes total)", len(s))
}
