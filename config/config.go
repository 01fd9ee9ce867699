package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/s0up4200/qbthrottle/schedule"
)

// Load loads the configuration from file
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)
	return readConfig(v)
}

// Watch loads the configuration and invokes onReload with a fresh Config
// whenever the file changes. A reload that fails to parse or validate is
// logged and dropped, leaving the previous configuration in effect.
func Watch(configPath string, logger zerolog.Logger, onReload func(*Config)) (*Config, error) {
	v := newViper(configPath)

	cfg, err := readConfig(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Debug().Str("file", e.Name).Msg("Config file changed")

		var next Config
		if err := v.Unmarshal(&next); err != nil {
			logger.Error().Err(err).Msg("Ignoring config reload: unmarshal failed")
			return
		}
		if err := validate(&next); err != nil {
			logger.Error().Err(err).Msg("Ignoring config reload: validation failed")
			return
		}
		onReload(&next)
	})
	v.WatchConfig()

	return cfg, nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()

	// Set default values
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".qbthrottle"))
		}

		// Check /etc
		v.AddConfigPath("/etc/qbthrottle/")
	}

	return v
}

func readConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// qBittorrent defaults
	v.SetDefault("qbittorrent.url", "http://localhost:8080")
	v.SetDefault("qbittorrent.timeout", "30s")

	// Signal source defaults
	v.SetDefault("jellyfin.active_within", "60s")

	// Loop defaults
	v.SetDefault("loop.interval", "30s")
	v.SetDefault("loop.dwell", "5m")
	v.SetDefault("loop.retry.attempts", 3)
	v.SetDefault("loop.retry.base_delay", "1s")
	v.SetDefault("loop.retry.max_delay", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")
	v.SetDefault("logging.color", true)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.QBittorrent.URL == "" {
		return fmt.Errorf("qbittorrent.url is required")
	}
	if cfg.QBittorrent.Username == "" {
		return fmt.Errorf("qbittorrent.username is required")
	}

	if cfg.Jellyfin.Enabled {
		if cfg.Jellyfin.URL == "" {
			return fmt.Errorf("jellyfin.url is required when jellyfin is enabled")
		}
		if cfg.Jellyfin.APIToken == "" {
			return fmt.Errorf("jellyfin.api_token is required when jellyfin is enabled")
		}
	}

	if cfg.Radarr.Enabled {
		if cfg.Radarr.URL == "" {
			return fmt.Errorf("radarr.url is required when radarr is enabled")
		}
		if cfg.Radarr.APIKey == "" {
			return fmt.Errorf("radarr.api_key is required when radarr is enabled")
		}
	}

	if cfg.Loop.Interval <= 0 {
		return fmt.Errorf("loop.interval must be positive")
	}
	if cfg.Loop.Dwell < 0 {
		return fmt.Errorf("loop.dwell must not be negative")
	}
	if cfg.Loop.Retry.Attempts < 1 {
		return fmt.Errorf("loop.retry.attempts must be at least 1")
	}
	if cfg.Schedule.DefaultUploadKiB < 0 || cfg.Schedule.DefaultDownloadKiB < 0 {
		return fmt.Errorf("schedule default caps must not be negative")
	}

	// Compile the schedule so malformed rules fail at load time rather
	// than inside the loop.
	if _, err := schedule.NewProfile(cfg.Schedule.Rules, cfg.Schedule.DefaultTargets()); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"auto":    true,
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
