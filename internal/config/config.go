// Package config loads settings from a YAML file, the environment and
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "bookmarketer"

// Provider names accepted in ai.provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Storage backends accepted in storage.backend.
const (
	BackendFileSystem = "filesystem"
	BackendSQLite     = "sqlite"
)

type Config struct {
	AI      AIConfig      `yaml:"ai" validate:"required"`
	Limits  Limits        `yaml:"limits" validate:"required"`
	Storage StorageConfig `yaml:"storage" validate:"required"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type AIConfig struct {
	Provider        string        `yaml:"provider" validate:"required,oneof=anthropic openai gemini mock"`
	APIKey          string        `yaml:"api_key" validate:"required_unless=Provider mock"`
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout         time.Duration `yaml:"timeout" validate:"min=10s,max=1h"`
	MaxOutputTokens int           `yaml:"max_output_tokens" validate:"min=256,max=65536"`
	// CacheTTL enables the response cache when positive.
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"min=0"`
}

type StorageConfig struct {
	Backend      string `yaml:"backend" validate:"required,oneof=filesystem sqlite"`
	OutputDir    string `yaml:"output_dir" validate:"required"`
	DatabasePath string `yaml:"database_path" validate:"required_if=Backend sqlite"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

type MetricsConfig struct {
	// ListenAddr serves /metrics when set, e.g. ":9090".
	ListenAddr string `yaml:"listen_addr" validate:"omitempty,hostname_port"`
}

// Default returns a configuration that needs only an API key.
func Default() Config {
	dataDir := DataDir()
	return Config{
		AI: AIConfig{
			Provider:        ProviderAnthropic,
			Timeout:         5 * time.Minute,
			MaxOutputTokens: 4096,
		},
		Limits: DefaultLimits(),
		Storage: StorageConfig{
			Backend:      BackendFileSystem,
			OutputDir:    dataDir,
			DatabasePath: filepath.Join(dataDir, appName+".db"),
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the config at path, or at the resolved default location when
// path is empty. A missing file yields the defaults. A .env file in the
// working directory is loaded first. Overrides run after the environment
// is applied and before validation.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = Path()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	for _, override := range overrides {
		override(&cfg)
	}
	cfg.Storage.OutputDir = expandTilde(cfg.Storage.OutputDir)
	cfg.Storage.DatabasePath = expandTilde(cfg.Storage.DatabasePath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Path resolves the config file location: BOOKMARKETER_CONFIG, then
// XDG_CONFIG_HOME, then ~/.config.
func Path() string {
	if path := os.Getenv("BOOKMARKETER_CONFIG"); path != "" {
		return path
	}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName, "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName, "config.yaml")
}

// DataDir is where sessions and exports live by default.
func DataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

var apiKeyEnv = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
}

func (c *Config) applyEnv() {
	key := strings.TrimSpace(c.AI.APIKey)
	if key == "" || (strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}")) {
		name := apiKeyEnv[c.AI.Provider]
		if strings.HasPrefix(key, "${") {
			name = strings.TrimSuffix(strings.TrimPrefix(key, "${"), "}")
		}
		c.AI.APIKey = os.Getenv(name)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Logging.Format = strings.ToLower(format)
	}
}

// expandTilde expands a leading ~/ to the user's home directory.
func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// APIKeyEnv names the environment variable consulted for provider's key.
func APIKeyEnv(provider string) string {
	return apiKeyEnv[provider]
}

// Write saves cfg to path. The API key is replaced by a reference to its
// environment variable so secrets stay out of the file.
func Write(cfg Config, path string) error {
	if name, ok := apiKeyEnv[cfg.AI.Provider]; ok {
		cfg.AI.APIKey = "${" + name + "}"
	} else {
		cfg.AI.APIKey = ""
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
