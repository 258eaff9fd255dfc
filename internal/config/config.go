package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// StrategyEndpointConfig overrides the webhook paths of one strategy.
type StrategyEndpointConfig struct {
	Retrieval string `yaml:"retrieval,omitempty"`
	Agentic   string `yaml:"agentic,omitempty"`
}

// NotebookHooksConfig holds the notebook CRUD and ingestion webhook paths.
type NotebookHooksConfig struct {
	Create  string `yaml:"create"`
	List    string `yaml:"list"`
	Details string `yaml:"details"`
	Delete  string `yaml:"delete"`
	Status  string `yaml:"status"`
	Ingest  string `yaml:"ingest"`
}

// ChatHooksConfig holds the chat history webhook paths.
type ChatHooksConfig struct {
	Save  string `yaml:"save"`
	Pull  string `yaml:"pull"`
	Clear string `yaml:"clear"`
}

// SettingsHooksConfig holds the settings webhook paths.
type SettingsHooksConfig struct {
	Push string `yaml:"push"`
	Pull string `yaml:"pull"`
}

// WebhookConfig describes how to reach the workflow backend. Relative paths
// are resolved against BaseURL.
type WebhookConfig struct {
	BaseURL     string                            `yaml:"base_url" validate:"required,url"`
	TimeoutSecs int                               `yaml:"timeout_secs" validate:"gte=1"`
	MaxRetries  int                               `yaml:"max_retries" validate:"gte=0,lte=10"`
	Headers     map[string]string                 `yaml:"headers,omitempty"`
	Notebooks   NotebookHooksConfig               `yaml:"notebooks"`
	Chat        ChatHooksConfig                   `yaml:"chat"`
	Settings    SettingsHooksConfig               `yaml:"settings"`
	Strategies  map[string]StrategyEndpointConfig `yaml:"strategies,omitempty"`
}

// StorageConfig locates the local notebook configuration store.
type StorageConfig struct {
	Type string `yaml:"type" validate:"oneof=file memory"`
	Path string `yaml:"path"`
}

// PollingConfig sets the dashboard and status refresh intervals.
type PollingConfig struct {
	DashboardSecs int `yaml:"dashboard_secs" validate:"gte=1"`
	StatusSecs    int `yaml:"status_secs" validate:"gte=1"`
}

// LoggingConfig controls the rotating log file.
type LoggingConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// FinderConfig bounds the document search over retrieval responses.
type FinderConfig struct {
	MaxDepth int `yaml:"max_depth" validate:"gte=1,lte=16"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Webhooks WebhookConfig `yaml:"webhooks"`
	Storage  StorageConfig `yaml:"storage"`
	Polling  PollingConfig `yaml:"polling"`
	Logging  LoggingConfig `yaml:"logging"`
	Finder   FinderConfig  `yaml:"finder"`
}

// Timeout returns the per-request webhook timeout.
func (c *AppConfig) Timeout() time.Duration {
	return time.Duration(c.Webhooks.TimeoutSecs) * time.Second
}

// DashboardInterval returns the notebook list refresh interval.
func (c *AppConfig) DashboardInterval() time.Duration {
	return time.Duration(c.Polling.DashboardSecs) * time.Second
}

// StatusInterval returns the open-notebook status refresh interval.
func (c *AppConfig) StatusInterval() time.Duration {
	return time.Duration(c.Polling.StatusSecs) * time.Second
}

// Resolve turns a webhook path into an absolute URL. Absolute URLs are kept.
func (c *AppConfig) Resolve(path string) string {
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return strings.TrimRight(c.Webhooks.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Environment overrides.
const (
	EnvBaseURL  = "RAGNB_WEBHOOK_BASE_URL"
	EnvLogLevel = "RAGNB_LOG_LEVEL"
)

var validate = validator.New()

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return finish(cfg)
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return finish(&cfg)
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragnb/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragnb/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	cfg, err = finish(cfg)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func finish(cfg *AppConfig) (*AppConfig, error) {
	applyEnvOverrides(cfg)
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.Webhooks.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

func defaultUserConfigPath() (string, error) {
	dir, err := userDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func userDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragnb"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{Webhooks: WebhookConfig{MaxRetries: 2}}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	w := &cfg.Webhooks
	def(&w.BaseURL, "http://localhost:5678/webhook")
	if w.TimeoutSecs == 0 {
		w.TimeoutSecs = 120
	}
	def(&w.Notebooks.Create, "notebook-create")
	def(&w.Notebooks.List, "notebook-list")
	def(&w.Notebooks.Details, "notebook-details")
	def(&w.Notebooks.Delete, "notebook-delete")
	def(&w.Notebooks.Status, "notebook-status")
	def(&w.Notebooks.Ingest, "notebook-ingest")
	def(&w.Chat.Save, "chat-save")
	def(&w.Chat.Pull, "chat-pull")
	def(&w.Chat.Clear, "chat-clear")
	def(&w.Settings.Push, "settings-push")
	def(&w.Settings.Pull, "settings-pull")

	def(&cfg.Storage.Type, "file")
	if cfg.Polling.DashboardSecs == 0 {
		cfg.Polling.DashboardSecs = 10
	}
	if cfg.Polling.StatusSecs == 0 {
		cfg.Polling.StatusSecs = 5
	}
	def(&cfg.Logging.Level, "info")
	if cfg.Finder.MaxDepth == 0 {
		cfg.Finder.MaxDepth = 4
	}
	if dir, err := userDir(); err == nil {
		def(&cfg.Storage.Path, filepath.Join(dir, "notebooks.json"))
		def(&cfg.Logging.Path, filepath.Join(dir, "ragnb.log"))
	}
}
