package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vampirenirmal/bookmarketer/internal/metrics"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	defaultMaxOutputTokens = 4096
	maxResponseBytes       = 8 << 20
)

// Client talks to Anthropic-style (/messages) or OpenAI-style
// (/chat/completions) endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	provider   string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Client)

func WithRetry(maxRetries int) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithBackoff sets the linear backoff step between retries.
func WithBackoff(step time.Duration) Option {
	return func(c *Client) {
		c.backoff = step
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		transport := c.httpClient.Transport
		c.httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}
}

func WithRateLimit(requestsPerMinute int, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

// WithAPIConfig overrides the endpoint and model. Empty values keep the
// provider defaults.
func WithAPIConfig(baseURL, model string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
		if model != "" {
			c.model = model
		}
	}
}

func WithProvider(provider string) Option {
	return func(c *Client) {
		c.provider = provider
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		apiKey:   apiKey,
		provider: ProviderAnthropic,
		httpClient: &http.Client{
			Timeout:   120 * time.Second,
			Transport: transport,
		},
		maxRetries: 3,
		backoff:    time.Second,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		logger:     slog.Default().With("component", "ai_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL == "" {
		c.baseURL = "https://api.anthropic.com/v1"
		if c.provider == ProviderOpenAI {
			c.baseURL = "https://api.openai.com/v1"
		}
	}
	if c.model == "" {
		c.model = "claude-3-5-sonnet-20241022"
		if c.provider == ProviderOpenAI {
			c.model = "gpt-4o"
		}
	}

	c.logger.Debug("AI client initialized",
		"provider", c.provider,
		"base_url", c.baseURL,
		"model", c.model,
		"max_retries", c.maxRetries,
		"rate_limit", fmt.Sprintf("%v req/s", c.limiter.Limit()))

	return c
}

func (c *Client) Ask(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	if maxOutputTokens <= 0 {
		maxOutputTokens = defaultMaxOutputTokens
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	text, err := withRetries(ctx, c.logger, c.maxRetries, c.backoff, func(ctx context.Context) (string, error) {
		return c.doRequest(ctx, prompt, maxOutputTokens)
	})
	c.metrics.ObserveModelRequest(c.provider, outcome(err), time.Since(start))
	return text, err
}

// withRetries calls fn until it succeeds, fails with a non-retryable error,
// or runs out of attempts. Backoff grows linearly with the attempt number.
func withRetries(ctx context.Context, logger *slog.Logger, maxRetries int, backoff time.Duration, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * backoff
			logger.Debug("retry backoff", "attempt", attempt, "backoff", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		attemptStart := time.Now()
		text, err := fn(ctx)
		if err == nil {
			logger.Debug("model request succeeded",
				"attempt", attempt,
				"duration_ms", time.Since(attemptStart).Milliseconds(),
				"response_length", len(text))
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", err
		}
		if !IsRetryable(err) {
			logger.Error("model request failed with non-retryable error", "attempt", attempt, "error", err)
			return "", err
		}
		logger.Warn("model request failed, will retry", "attempt", attempt, "error", err)
	}

	logger.Error("model request failed after max retries", "max_retries", maxRetries, "error", lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind, ok := KindOf(err); ok {
		return kind.String()
	}
	return "error"
}

func (c *Client) doRequest(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	endpoint := "/messages"
	if c.provider == ProviderOpenAI {
		endpoint = "/chat/completions"
	}
	// Both APIs accept the same minimal body.
	payload, err := json.Marshal(map[string]any{
		"model":      c.model,
		"messages":   []map[string]string{{"role": "user", "content": prompt}},
		"max_tokens": maxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.provider == ProviderOpenAI {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	}

	c.logger.Debug("sending model request",
		"provider", c.provider,
		"endpoint", endpoint,
		"model", c.model,
		"prompt_length", len(prompt),
		"max_tokens", maxOutputTokens)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", NetworkError(c.provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", NetworkError(c.provider, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", StatusError(c.provider, resp.StatusCode, string(respBody))
	}

	if c.provider == ProviderOpenAI {
		return c.parseOpenAI(respBody)
	}
	return c.parseAnthropic(respBody)
}

func (c *Client) parseOpenAI(body []byte) (string, error) {
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &TransportError{Provider: c.provider, Kind: KindProvider, Message: "unparseable response envelope", Err: err}
	}
	if len(response.Choices) == 0 {
		return "", &TransportError{Provider: c.provider, Kind: KindProvider, Message: "no choices in response"}
	}

	choice := response.Choices[0]
	c.logger.Info("model request completed",
		"provider", c.provider,
		"prompt_tokens", response.Usage.PromptTokens,
		"completion_tokens", response.Usage.CompletionTokens,
		"finish_reason", choice.FinishReason)
	return choice.Message.Content, nil
}

func (c *Client) parseAnthropic(body []byte) (string, error) {
	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &TransportError{Provider: c.provider, Kind: KindProvider, Message: "unparseable response envelope", Err: err}
	}
	if len(response.Content) == 0 {
		return "", &TransportError{Provider: c.provider, Kind: KindProvider, Message: "no content in response"}
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	c.logger.Info("model request completed",
		"provider", c.provider,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
		"stop_reason", response.StopReason)
	return text.String(), nil
}
