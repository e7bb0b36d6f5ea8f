package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vampirenirmal/bookmarketer/internal/agent"
	"github.com/vampirenirmal/bookmarketer/internal/config"
	"github.com/vampirenirmal/bookmarketer/internal/metrics"
	"github.com/vampirenirmal/bookmarketer/internal/modules"
	"github.com/vampirenirmal/bookmarketer/internal/phase"
	"github.com/vampirenirmal/bookmarketer/internal/session"
	"github.com/vampirenirmal/bookmarketer/internal/storage"
	"github.com/vampirenirmal/bookmarketer/internal/telemetry"
)

// annotationNoApp marks commands that run without config, storage or a
// model client.
const annotationNoApp = "bookmarketer/no-app"

type globalOptions struct {
	configPath  string
	mock        bool
	metricsAddr string
	json        bool
}

// app holds what commands share once the config is loaded.
type app struct {
	opts   globalOptions
	stdout io.Writer
	stderr io.Writer

	cfg         *config.Config
	logger      *slog.Logger
	store       storage.Storage
	checkpoints *storage.CheckpointManager
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	server      *http.Server

	// client is built on first use so that offline commands never need
	// provider credentials.
	client agent.AIClient
}

func (a *app) open(ctx context.Context) error {
	var overrides []func(*config.Config)
	if a.opts.mock {
		overrides = append(overrides, func(c *config.Config) { c.AI.Provider = config.ProviderMock })
	}
	if a.opts.metricsAddr != "" {
		overrides = append(overrides, func(c *config.Config) { c.Metrics.ListenAddr = a.opts.metricsAddr })
	}
	cfg, err := config.Load(a.opts.configPath, overrides...)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = telemetry.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	a.store = store
	a.checkpoints = storage.NewCheckpointManager(store)

	if cfg.Metrics.ListenAddr != "" {
		if err := a.serveMetrics(cfg.Metrics.ListenAddr); err != nil {
			return err
		}
	}
	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		return storage.OpenSQLite(cfg.DatabasePath)
	default:
		return storage.NewFileSystem(cfg.OutputDir), nil
	}
}

func (a *app) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

// close releases storage and stops the metrics server. It is safe to call
// on an app that was never opened.
func (a *app) close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.server.Shutdown(ctx)
		cancel()
	}
	if c, ok := a.store.(io.Closer); ok {
		if err := c.Close(); err != nil && a.logger != nil {
			a.logger.Warn("closing storage", "error", err)
		}
	}
}

// modelClient builds the configured provider client, wrapped in the
// response cache when ai.cache_ttl is set.
func (a *app) modelClient(ctx context.Context) (agent.AIClient, error) {
	if a.client != nil {
		return a.client, nil
	}
	ai := a.cfg.AI
	lim := a.cfg.Limits

	var client agent.AIClient
	switch ai.Provider {
	case config.ProviderMock:
		client = agent.NewMockClient()
	case config.ProviderGemini:
		g, err := agent.NewGeminiClient(ctx, agent.GeminiConfig{
			APIKey:     ai.APIKey,
			Model:      ai.Model,
			BaseURL:    ai.BaseURL,
			Timeout:    ai.Timeout,
			MaxRetries: lim.MaxRetries,
			Metrics:    a.metrics,
		})
		if err != nil {
			return nil, err
		}
		client = g
	default:
		client = agent.NewClient(ai.APIKey,
			agent.WithProvider(ai.Provider),
			agent.WithAPIConfig(ai.BaseURL, ai.Model),
			agent.WithRetry(lim.MaxRetries),
			agent.WithTimeout(ai.Timeout),
			agent.WithRateLimit(lim.RateLimit.RequestsPerMinute, lim.RateLimit.BurstSize),
			agent.WithMetrics(a.metrics),
		)
	}

	if ai.CacheTTL > 0 {
		client = agent.WithCache(client, agent.NewResponseCache(a.store, ai.CacheTTL))
	}
	a.client = client
	return client, nil
}

func (a *app) loadSession(ctx context.Context, id string) (*session.Session, error) {
	return session.Load(ctx, a.checkpoints, id, session.WithLogger(telemetry.WithSession(a.logger, id)))
}

func (a *app) readSession(ctx context.Context, id string) (*session.Session, error) {
	return session.Read(ctx, a.checkpoints, id)
}

func (a *app) runner(ctx context.Context, sess *session.Session) (*phase.Runner, error) {
	client, err := a.modelClient(ctx)
	if err != nil {
		return nil, err
	}
	registry, err := modules.NewRegistry(nil)
	if err != nil {
		return nil, err
	}
	return phase.NewRunner(sess, client, registry,
		phase.WithLogger(telemetry.WithSession(a.logger, sess.ID()).With("component", "phase")),
		phase.WithMetrics(a.metrics),
		phase.WithConcurrency(a.cfg.Limits.MaxConcurrentRequests),
		phase.WithMalformedRetries(a.cfg.Limits.MalformedRetries),
		phase.WithMaxOutputTokens(a.cfg.AI.MaxOutputTokens),
		phase.WithStepTimeout(a.cfg.Limits.StepTimeout),
	), nil
}

func (a *app) output() *output {
	return newOutput(a.stdout, a.stderr, a.opts.json)
}
