// Package config provides configuration loading and management for the catalog watcher.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/catalog-watcher/internal/filtering"
	"github.com/stacklok/catalog-watcher/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of every environment variable read by the service
	EnvPrefix = "CATALOG_WATCHER"

	// StorageTypeFile stores the sync state as a JSON file
	StorageTypeFile = "file"

	// StorageTypeBolt stores the sync state in a bbolt database
	StorageTypeBolt = "bolt"

	// NotificationTypeDiscord delivers notifications to a Discord webhook
	NotificationTypeDiscord = "discord"

	// NotificationTypeLog writes notifications to the structured log
	NotificationTypeLog = "log"
)

const (
	defaultBaseURL         = "https://api.jikan.moe/v4"
	defaultGenreID         = 26
	defaultPageSize        = 10
	defaultPagesPerCycle   = 1
	defaultRequestTimeout  = "10s"
	defaultMaxAttempts     = 3
	defaultIntervalMinutes = 30
	defaultInitialDelay    = "5s"
	defaultFirstRunCap     = 3
	defaultStatePath       = "./data/state.json"

	// MinSyncInterval is the floor applied to the configured poll interval
	MinSyncInterval = time.Minute
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path  string
	viper *viper.Viper
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// WithViper sets the viper instance used to resolve environment overrides.
// Values set directly on the instance take precedence over the environment.
func WithViper(v *viper.Viper) Option {
	return func(cfg *loaderConfig) error {
		if v == nil {
			return fmt.Errorf("viper instance is required")
		}
		cfg.viper = v
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Catalog      CatalogConfig      `yaml:"catalog"`
	Sync         SyncConfig         `yaml:"sync"`
	Storage      StorageConfig      `yaml:"storage"`
	Notification NotificationConfig `yaml:"notification"`
	Telemetry    *telemetry.Config  `yaml:"telemetry,omitempty"`
}

// CatalogConfig defines how the remote catalog is queried
type CatalogConfig struct {
	// BaseURL is the root of the Jikan v4 API
	BaseURL string `yaml:"baseURL"`

	// GenreID filters every query to a single genre
	GenreID int `yaml:"genreID"`

	// PageSize is the number of items per page, clamped to 1..25 by the client
	PageSize int `yaml:"pageSize"`

	// PagesPerCycle is the number of pages scanned by each sync cycle
	PagesPerCycle int `yaml:"pagesPerCycle"`

	// RequestTimeout bounds each HTTP request (e.g. "10s")
	RequestTimeout string `yaml:"requestTimeout"`

	// MaxAttempts is the number of attempts per page on transient failures
	MaxAttempts int `yaml:"maxAttempts"`

	// Filter narrows the fetched batch before reconciliation (optional)
	Filter *FilterConfig `yaml:"filter,omitempty"`
}

// FilterConfig selects which catalog items are tracked
type FilterConfig struct {
	Titles *IncludeExcludeConfig `yaml:"titles,omitempty"`
	Types  *IncludeExcludeConfig `yaml:"types,omitempty"`
}

// IncludeExcludeConfig holds include and exclude entries. Exclude takes precedence.
type IncludeExcludeConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// Rules converts the filter configuration to filtering rules
func (c *FilterConfig) Rules() filtering.Rules {
	var rules filtering.Rules
	if c == nil {
		return rules
	}
	if c.Titles != nil {
		rules.IncludeTitles = c.Titles.Include
		rules.ExcludeTitles = c.Titles.Exclude
	}
	if c.Types != nil {
		rules.IncludeTypes = c.Types.Include
		rules.ExcludeTypes = c.Types.Exclude
	}
	return rules
}

// SyncConfig defines the sync schedule
type SyncConfig struct {
	// IntervalMinutes is the delay between the end of one cycle and the start of the next
	IntervalMinutes int `yaml:"intervalMinutes"`

	// InitialDelay is the delay before the first cycle (e.g. "5s")
	InitialDelay string `yaml:"initialDelay"`

	// FirstRunCap bounds the number of new-item notifications sent before the state is initialized
	FirstRunCap int `yaml:"firstRunCap"`
}

// StorageConfig defines where the sync state is persisted
type StorageConfig struct {
	// Type is "file" or "bolt"
	Type string `yaml:"type"`

	// Path is the state file, or the bolt database file
	Path string `yaml:"path"`
}

// NotificationConfig selects the notification sink
type NotificationConfig struct {
	// Type is "discord" or "log"
	Type    string         `yaml:"type"`
	Discord *DiscordConfig `yaml:"discord,omitempty"`
}

// DiscordConfig defines Discord webhook delivery
type DiscordConfig struct {
	WebhookURL string `yaml:"webhookURL"`
	Username   string `yaml:"username,omitempty"`
	AvatarURL  string `yaml:"avatarURL,omitempty"`
}

// Default returns a configuration populated with defaults
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{
			BaseURL:        defaultBaseURL,
			GenreID:        defaultGenreID,
			PageSize:       defaultPageSize,
			PagesPerCycle:  defaultPagesPerCycle,
			RequestTimeout: defaultRequestTimeout,
			MaxAttempts:    defaultMaxAttempts,
		},
		Sync: SyncConfig{
			IntervalMinutes: defaultIntervalMinutes,
			InitialDelay:    defaultInitialDelay,
			FirstRunCap:     defaultFirstRunCap,
		},
		Storage: StorageConfig{
			Type: StorageTypeFile,
			Path: defaultStatePath,
		},
		Notification: NotificationConfig{
			Type: NotificationTypeDiscord,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file and
// environment overrides, in that order, and validates the result
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}
	if loaderCfg.viper == nil {
		loaderCfg.viper = viper.New()
	}

	config := Default()

	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := applyEnvOverrides(loaderCfg.viper, config); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// GetRequestTimeout returns the per-request timeout
func (c *CatalogConfig) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(defaultRequestTimeout)
	}
	return d
}

// GetPagesPerCycle returns the number of pages per cycle, at least one
func (c *CatalogConfig) GetPagesPerCycle() int {
	return max(1, c.PagesPerCycle)
}

// GetInterval returns the poll interval, floored at MinSyncInterval
func (c *SyncConfig) GetInterval() time.Duration {
	return max(time.Duration(c.IntervalMinutes)*time.Minute, MinSyncInterval)
}

// GetInitialDelay returns the delay before the first cycle
func (c *SyncConfig) GetInitialDelay() time.Duration {
	d, err := time.ParseDuration(c.InitialDelay)
	if err != nil || d < 0 {
		d, _ = time.ParseDuration(defaultInitialDelay)
	}
	return d
}

// GetStorageType returns the storage type, defaulting to file
func (c *Config) GetStorageType() string {
	if c.Storage.Type == "" {
		return StorageTypeFile
	}
	return c.Storage.Type
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.Catalog.validate(); err != nil {
		return err
	}
	if err := c.Sync.validate(); err != nil {
		return err
	}

	switch c.GetStorageType() {
	case StorageTypeFile, StorageTypeBolt:
	default:
		return fmt.Errorf("storage.type must be %q or %q, got %q", StorageTypeFile, StorageTypeBolt, c.Storage.Type)
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}

	if err := c.Notification.validate(); err != nil {
		return err
	}

	return c.Telemetry.Validate()
}

func (c *CatalogConfig) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("catalog.baseURL is invalid: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("catalog.baseURL must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.GenreID <= 0 {
		return fmt.Errorf("catalog.genreID must be positive")
	}
	if c.RequestTimeout != "" {
		if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
			return fmt.Errorf("catalog.requestTimeout must be a valid duration (e.g., '10s'): %w", err)
		}
	}
	if _, err := filtering.New(c.Filter.Rules()); err != nil {
		return fmt.Errorf("catalog.filter is invalid: %w", err)
	}
	return nil
}

func (c *SyncConfig) validate() error {
	if c.InitialDelay != "" {
		if _, err := time.ParseDuration(c.InitialDelay); err != nil {
			return fmt.Errorf("sync.initialDelay must be a valid duration (e.g., '5s'): %w", err)
		}
	}
	if c.FirstRunCap < 0 {
		return fmt.Errorf("sync.firstRunCap cannot be negative")
	}
	return nil
}

func (c *NotificationConfig) validate() error {
	switch c.Type {
	case NotificationTypeDiscord:
		if c.Discord == nil || strings.TrimSpace(c.Discord.WebhookURL) == "" {
			return fmt.Errorf("notification.discord.webhookURL is required when notification.type is %q",
				NotificationTypeDiscord)
		}
		u, err := url.Parse(c.Discord.WebhookURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("notification.discord.webhookURL must be an absolute URL")
		}
	case NotificationTypeLog:
	default:
		return fmt.Errorf("notification.type must be %q or %q, got %q",
			NotificationTypeDiscord, NotificationTypeLog, c.Type)
	}
	return nil
}
