package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/vampirenirmal/bookmarketer/internal/metrics"
)

const ProviderGemini = "gemini"

// GeminiClient adapts google.golang.org/genai to AIClient.
type GeminiClient struct {
	client     *genai.Client
	model      string
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// GeminiConfig carries the settings NewGeminiClient needs. BaseURL is only
// set when talking to a proxy or a test server.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		cc.HTTPOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	g := &GeminiClient{
		client:     client,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
	if g.model == "" {
		g.model = "gemini-2.5-flash"
	}
	if g.backoff <= 0 {
		g.backoff = time.Second
	}
	if g.logger == nil {
		g.logger = slog.Default().With("component", "gemini_client")
	}
	return g, nil
}

func (g *GeminiClient) Ask(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	if maxOutputTokens <= 0 {
		maxOutputTokens = defaultMaxOutputTokens
	}
	start := time.Now()
	text, err := withRetries(ctx, g.logger, g.maxRetries, g.backoff, func(ctx context.Context) (string, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
			MaxOutputTokens: int32(maxOutputTokens),
		})
		if err != nil {
			return "", classifyGemini(err)
		}
		return resp.Text(), nil
	})
	g.metrics.ObserveModelRequest(ProviderGemini, outcome(err), time.Since(start))
	return text, err
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		te := StatusError(ProviderGemini, apiErr.Code, apiErr.Message)
		te.Err = err
		return te
	}
	return NetworkError(ProviderGemini, err)
}
