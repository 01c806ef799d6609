package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding maps a configuration key to the environment variables that can set it.
// The prefixed name is checked first, then the legacy bare name if any.
type envBinding struct {
	key    string
	envs   []string
	assign func(cfg *Config, value string) error
}

func prefixed(name string) string {
	return EnvPrefix + "_" + name
}

func intSetter(key string, set func(cfg *Config, v int)) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", key, value)
		}
		set(cfg, n)
		return nil
	}
}

// listSetter splits a comma-separated value, dropping empty entries
func listSetter(set func(cfg *Config, v []string)) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		set(cfg, out)
		return nil
	}
}

var envBindings = []envBinding{
	{
		key:  "catalog.baseURL",
		envs: []string{prefixed("CATALOG_BASE_URL"), "JIKAN_BASE"},
		assign: func(cfg *Config, v string) error {
			cfg.Catalog.BaseURL = v
			return nil
		},
	},
	{
		key:  "catalog.genreID",
		envs: []string{prefixed("CATALOG_GENRE_ID"), "JIKAN_GENRE_ID"},
		assign: intSetter("catalog.genreID", func(cfg *Config, v int) {
			cfg.Catalog.GenreID = v
		}),
	},
	{
		key:  "catalog.pageSize",
		envs: []string{prefixed("CATALOG_PAGE_SIZE"), "LIST_PER_PAGE"},
		assign: intSetter("catalog.pageSize", func(cfg *Config, v int) {
			cfg.Catalog.PageSize = v
		}),
	},
	{
		key:  "catalog.pagesPerCycle",
		envs: []string{prefixed("CATALOG_PAGES_PER_CYCLE"), "PAGES_TO_SCAN"},
		assign: intSetter("catalog.pagesPerCycle", func(cfg *Config, v int) {
			cfg.Catalog.PagesPerCycle = v
		}),
	},
	{
		key:  "catalog.requestTimeout",
		envs: []string{prefixed("CATALOG_REQUEST_TIMEOUT")},
		assign: func(cfg *Config, v string) error {
			cfg.Catalog.RequestTimeout = v
			return nil
		},
	},
	{
		key:  "catalog.maxAttempts",
		envs: []string{prefixed("CATALOG_MAX_ATTEMPTS")},
		assign: intSetter("catalog.maxAttempts", func(cfg *Config, v int) {
			cfg.Catalog.MaxAttempts = v
		}),
	},
	{
		key:  "catalog.filter.titles.include",
		envs: []string{prefixed("CATALOG_FILTER_INCLUDE_TITLES")},
		assign: listSetter(func(cfg *Config, v []string) {
			titleFilter(cfg).Include = v
		}),
	},
	{
		key:  "catalog.filter.titles.exclude",
		envs: []string{prefixed("CATALOG_FILTER_EXCLUDE_TITLES")},
		assign: listSetter(func(cfg *Config, v []string) {
			titleFilter(cfg).Exclude = v
		}),
	},
	{
		key:  "catalog.filter.types.include",
		envs: []string{prefixed("CATALOG_FILTER_INCLUDE_TYPES")},
		assign: listSetter(func(cfg *Config, v []string) {
			typeFilter(cfg).Include = v
		}),
	},
	{
		key:  "catalog.filter.types.exclude",
		envs: []string{prefixed("CATALOG_FILTER_EXCLUDE_TYPES")},
		assign: listSetter(func(cfg *Config, v []string) {
			typeFilter(cfg).Exclude = v
		}),
	},
	{
		key:  "sync.intervalMinutes",
		envs: []string{prefixed("SYNC_INTERVAL_MINUTES"), "CHECK_INTERVAL_MINUTES"},
		assign: intSetter("sync.intervalMinutes", func(cfg *Config, v int) {
			cfg.Sync.IntervalMinutes = v
		}),
	},
	{
		key:  "sync.initialDelay",
		envs: []string{prefixed("SYNC_INITIAL_DELAY")},
		assign: func(cfg *Config, v string) error {
			cfg.Sync.InitialDelay = v
			return nil
		},
	},
	{
		key:  "sync.firstRunCap",
		envs: []string{prefixed("SYNC_FIRST_RUN_CAP"), "MAX_INITIAL_POSTS"},
		assign: intSetter("sync.firstRunCap", func(cfg *Config, v int) {
			cfg.Sync.FirstRunCap = v
		}),
	},
	{
		key:  "storage.type",
		envs: []string{prefixed("STORAGE_TYPE")},
		assign: func(cfg *Config, v string) error {
			cfg.Storage.Type = strings.ToLower(v)
			return nil
		},
	},
	{
		key:  "storage.path",
		envs: []string{prefixed("STORAGE_PATH"), "STATE_FILE"},
		assign: func(cfg *Config, v string) error {
			cfg.Storage.Path = v
			return nil
		},
	},
	{
		key:  "notification.type",
		envs: []string{prefixed("NOTIFICATION_TYPE")},
		assign: func(cfg *Config, v string) error {
			cfg.Notification.Type = strings.ToLower(v)
			return nil
		},
	},
	{
		key:  "notification.discord.webhookURL",
		envs: []string{prefixed("NOTIFICATION_DISCORD_WEBHOOK_URL"), "DISCORD_WEBHOOK_URL"},
		assign: func(cfg *Config, v string) error {
			discordConfig(cfg).WebhookURL = v
			return nil
		},
	},
	{
		key:  "notification.discord.username",
		envs: []string{prefixed("NOTIFICATION_DISCORD_USERNAME")},
		assign: func(cfg *Config, v string) error {
			discordConfig(cfg).Username = v
			return nil
		},
	},
}

func discordConfig(cfg *Config) *DiscordConfig {
	if cfg.Notification.Discord == nil {
		cfg.Notification.Discord = &DiscordConfig{}
	}
	return cfg.Notification.Discord
}

func filterConfig(cfg *Config) *FilterConfig {
	if cfg.Catalog.Filter == nil {
		cfg.Catalog.Filter = &FilterConfig{}
	}
	return cfg.Catalog.Filter
}

func titleFilter(cfg *Config) *IncludeExcludeConfig {
	f := filterConfig(cfg)
	if f.Titles == nil {
		f.Titles = &IncludeExcludeConfig{}
	}
	return f.Titles
}

func typeFilter(cfg *Config) *IncludeExcludeConfig {
	f := filterConfig(cfg)
	if f.Types == nil {
		f.Types = &IncludeExcludeConfig{}
	}
	return f.Types
}

// applyEnvOverrides binds every known key to its environment variables and
// overwrites the matching fields for keys that are set
func applyEnvOverrides(v *viper.Viper, cfg *Config) error {
	for _, b := range envBindings {
		if err := v.BindEnv(append([]string{b.key}, b.envs...)...); err != nil {
			return fmt.Errorf("failed to bind environment for %s: %w", b.key, err)
		}
		if !v.IsSet(b.key) {
			continue
		}
		value := v.GetString(b.key)
		if value == "" {
			continue
		}
		if err := b.assign(cfg, value); err != nil {
			return err
		}
	}
	return nil
}
