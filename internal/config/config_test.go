package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func validConfig() Config {
	cfg := Default()
	cfg.AI.APIKey = "sk-1234567890abcdef1234567890abcdef"
	cfg.Storage.OutputDir = "output"
	return cfg
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{
			name:    "missing API key",
			mutate:  func(c *Config) { c.AI.APIKey = "" },
			wantErr: true,
			errMsg:  "APIKey",
		},
		{
			name:   "mock needs no key",
			mutate: func(c *Config) { c.AI.Provider = ProviderMock; c.AI.APIKey = "" },
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.AI.Provider = "llama" },
			wantErr: true,
			errMsg:  "Provider",
		},
		{
			name:    "invalid base URL",
			mutate:  func(c *Config) { c.AI.BaseURL = "not-a-url" },
			wantErr: true,
			errMsg:  "BaseURL",
		},
		{
			name:    "timeout too low",
			mutate:  func(c *Config) { c.AI.Timeout = time.Second },
			wantErr: true,
			errMsg:  "Timeout",
		},
		{
			name:    "sqlite without database path",
			mutate:  func(c *Config) { c.Storage.Backend = BackendSQLite; c.Storage.DatabasePath = "" },
			wantErr: true,
			errMsg:  "DatabasePath",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Limits.MaxConcurrentRequests = 0 },
			wantErr: true,
			errMsg:  "MaxConcurrentRequests",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
			errMsg:  "Level",
		},
		{
			name:    "bad metrics address",
			mutate:  func(c *Config) { c.Metrics.ListenAddr = "nowhere" },
			wantErr: true,
			errMsg:  "ListenAddr",
		},
		{
			name:   "metrics port only",
			mutate: func(c *Config) { c.Metrics.ListenAddr = ":9090" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not mention %q", err, tt.errMsg)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	want.AI.APIKey = "from-env"
	if diff := cmp.Diff(want, *cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
ai:
  provider: openai
  model: gpt-4o-mini
  timeout: 90s
  cache_ttl: 24h
limits:
  max_concurrent_requests: 5
  step_timeout: 3m
storage:
  backend: sqlite
  output_dir: ~/marketing
metrics:
  listen_addr: ":9090"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	home, _ := os.UserHomeDir()
	checks := []struct {
		name      string
		got, want any
	}{
		{"provider", cfg.AI.Provider, ProviderOpenAI},
		{"api key", cfg.AI.APIKey, "sk-openai"},
		{"timeout", cfg.AI.Timeout, 90 * time.Second},
		{"cache ttl", cfg.AI.CacheTTL, 24 * time.Hour},
		{"max output tokens default", cfg.AI.MaxOutputTokens, 4096},
		{"concurrency", cfg.Limits.MaxConcurrentRequests, 5},
		{"retries default", cfg.Limits.MaxRetries, 3},
		{"rate limit default", cfg.Limits.RateLimit.RequestsPerMinute, 30},
		{"output dir", cfg.Storage.OutputDir, filepath.Join(home, "marketing")},
		{"log level", cfg.Logging.Level, "debug"},
		{"metrics", cfg.Metrics.ListenAddr, ":9090"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("ai: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("Load(bad yaml) error = %v", err)
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("ai:\n  provider: mock\nlimits:\n  max_retries: 99\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(invalid); err == nil || !strings.Contains(err.Error(), "MaxRetries") {
		t.Errorf("Load(invalid) error = %v", err)
	}
}

func TestPath(t *testing.T) {
	t.Setenv("BOOKMARKETER_CONFIG", "/tmp/explicit.yaml")
	if got := Path(); got != "/tmp/explicit.yaml" {
		t.Errorf("Path() = %q", got)
	}
	t.Setenv("BOOKMARKETER_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := Path(); got != filepath.Join("/xdg", "bookmarketer", "config.yaml") {
		t.Errorf("Path() = %q", got)
	}
}

func TestWriteKeepsSecretsOut(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gm-secret")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := validConfig()
	cfg.AI.Provider = ProviderGemini
	cfg.AI.APIKey = "gm-secret"
	if err := Write(cfg, path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "gm-secret") || !strings.Contains(string(data), "${GEMINI_API_KEY}") {
		t.Errorf("written config:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.AI.APIKey != "gm-secret" {
		t.Errorf("api key = %q, want resolved from env", loaded.AI.APIKey)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	path := filepath.Join(t.TempDir(), "absent.yaml")

	if _, err := Load(path); err == nil {
		t.Fatal("Load without an API key should fail validation")
	}
	cfg, err := Load(path, func(c *Config) { c.AI.Provider = ProviderMock })
	if err != nil {
		t.Fatalf("Load with mock override: %v", err)
	}
	if cfg.AI.Provider != ProviderMock {
		t.Errorf("provider = %q", cfg.AI.Provider)
	}
}
