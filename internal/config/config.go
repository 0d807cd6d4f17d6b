package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Content ContentConfig `yaml:"content"`
	Build   BuildConfig   `yaml:"build"`
	Watch   WatchConfig   `yaml:"watch"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

// SiteConfig describes site-wide presentation values.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
}

// ContentConfig locates the source tree and the published tree.
type ContentConfig struct {
	SourceDir string `yaml:"source_dir"`
	OutputDir string `yaml:"output_dir"`
}

// BuildConfig controls the build pipeline.
type BuildConfig struct {
	// Workers bounds render parallelism. Zero means one worker per CPU.
	Workers int `yaml:"workers,omitempty"`
	// CacheFile holds the incremental build cache between runs.
	CacheFile string `yaml:"cache_file,omitempty"`
	// DisableGitDates turns off date backfill from git history.
	DisableGitDates bool `yaml:"disable_git_dates,omitempty"`
}

// WatchConfig controls watch mode. Durations are strings ("300ms", "2s")
// validated at load time.
type WatchConfig struct {
	Debounce            string `yaml:"debounce,omitempty"`
	MaxDelay            string `yaml:"max_delay,omitempty"`
	FullRebuildInterval string `yaml:"full_rebuild_interval,omitempty"`
	MetricsListen       string `yaml:"metrics_listen,omitempty"`
	NATSURL             string `yaml:"nats_url,omitempty"`
	NATSSubject         string `yaml:"nats_subject,omitempty"`
}

// HistoryConfig controls the SQLite build history. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig controls the slog handler installed in main.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text, json
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// .env values feed the ${VAR} expansion below; a missing file is fine.
	_ = godotenv.Load()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Site.Title == "" {
		c.Site.Title = "Wiki"
	}
	if c.Content.SourceDir == "" {
		c.Content.SourceDir = "content"
	}
	if c.Content.OutputDir == "" {
		c.Content.OutputDir = "public"
	}
	if c.Build.CacheFile == "" {
		c.Build.CacheFile = ".wikigen/cache.json"
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = "300ms"
	}
	if c.Watch.MaxDelay == "" {
		c.Watch.MaxDelay = "2s"
	}
	if c.Watch.NATSSubject == "" {
		c.Watch.NATSSubject = "wikigen.builds"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks cross-field constraints and duration syntax.
func (c *Config) Validate() error {
	if c.Content.SourceDir == c.Content.OutputDir {
		return fmt.Errorf("source_dir and output_dir must differ: %s", c.Content.SourceDir)
	}
	if c.Build.Workers < 0 {
		return fmt.Errorf("build.workers must not be negative: %d", c.Build.Workers)
	}
	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return fmt.Errorf("invalid watch.debounce: %w", err)
	}
	if _, err := time.ParseDuration(c.Watch.MaxDelay); err != nil {
		return fmt.Errorf("invalid watch.max_delay: %w", err)
	}
	if c.Watch.FullRebuildInterval != "" {
		if _, err := time.ParseDuration(c.Watch.FullRebuildInterval); err != nil {
			return fmt.Errorf("invalid watch.full_rebuild_interval: %w", err)
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}
	return nil
}

// DebounceDuration returns the parsed watch debounce quiet window.
func (c *Config) DebounceDuration() time.Duration {
	d, _ := time.ParseDuration(c.Watch.Debounce)
	return d
}

// MaxDelayDuration returns the parsed watch max coalescing delay.
func (c *Config) MaxDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.Watch.MaxDelay)
	return d
}

// FullRebuildIntervalDuration returns the scheduled full rebuild interval,
// zero when disabled.
func (c *Config) FullRebuildIntervalDuration() time.Duration {
	if c.Watch.FullRebuildInterval == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Watch.FullRebuildInterval)
	return d
}
