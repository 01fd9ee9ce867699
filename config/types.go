package config

import (
	"time"

	"github.com/s0up4200/qbthrottle/schedule"
)

// Config represents the complete configuration structure
type Config struct {
	QBittorrent QBittorrentConfig `mapstructure:"qbittorrent"`
	Jellyfin    JellyfinConfig    `mapstructure:"jellyfin"`
	Radarr      RadarrConfig      `mapstructure:"radarr"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Loop        LoopConfig        `mapstructure:"loop"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// QBittorrentConfig holds Web API connection details
type QBittorrentConfig struct {
	URL        string        `mapstructure:"url"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// JellyfinConfig holds the Jellyfin signal source details
type JellyfinConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	APIToken     string        `mapstructure:"api_token"`
	ActiveWithin time.Duration `mapstructure:"active_within"`
}

// RadarrConfig holds the Radarr queue signal source details
type RadarrConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
}

// ScheduleConfig contains the throttle rules and the fallback caps that
// apply when no rule matches. Zero caps mean unlimited.
type ScheduleConfig struct {
	DefaultUploadKiB   int64               `mapstructure:"default_upload_kib"`
	DefaultDownloadKiB int64               `mapstructure:"default_download_kib"`
	Rules              []schedule.RuleSpec `mapstructure:"rules"`
}

// LoopConfig contains control loop timing settings
type LoopConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Dwell    time.Duration `mapstructure:"dwell"`
	Retry    RetryConfig   `mapstructure:"retry"`
}

// RetryConfig bounds per-tick retries against the Web API
type RetryConfig struct {
	Attempts  uint          `mapstructure:"attempts"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
	MaxDelay  time.Duration `mapstructure:"max_delay"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// DefaultTargets returns the fallback cap pair.
func (s ScheduleConfig) DefaultTargets() schedule.Targets {
	return schedule.Targets{
		UploadKiB:   s.DefaultUploadKiB,
		DownloadKiB: s.DefaultDownloadKiB,
	}
}
