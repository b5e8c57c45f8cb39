package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSearchURL is the DuckDuckGo image search the harvester targets by default
const DefaultSearchURL = "https://duckduckgo.com/?q=profile+pictures&atb=v418-1&ia=images&iax=images"

// DefaultUserAgent is the desktop browser user agent used for the session and downloads
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds all configuration options for the image harvester
type Config struct {
	// Search page and rendering session
	Search SearchConfig `yaml:"search" json:"search"`

	// Scroll-driven discovery loop
	Harvest HarvestConfig `yaml:"harvest" json:"harvest"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// SearchConfig describes the results page and the rendering session
type SearchConfig struct {
	URL            string        `yaml:"url" json:"url"`
	Selector       string        `yaml:"selector" json:"selector"`
	Renderer       string        `yaml:"renderer" json:"renderer"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	ViewportWidth  int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height" json:"viewport_height"`
	Headless       bool          `yaml:"headless" json:"headless"`
	WaitTimeout    time.Duration `yaml:"wait_timeout" json:"wait_timeout"`
	RespectRobots  bool          `yaml:"respect_robots" json:"respect_robots"`
}

// HarvestConfig holds the termination policy of the discovery loop
type HarvestConfig struct {
	TargetCount    int           `yaml:"target_count" json:"target_count"`
	MaxIterations  int           `yaml:"max_iterations" json:"max_iterations"`
	StabilityLimit int           `yaml:"stability_limit" json:"stability_limit"`
	ScrollFraction float64       `yaml:"scroll_fraction" json:"scroll_fraction"`
	ScrollDelay    time.Duration `yaml:"scroll_delay" json:"scroll_delay"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	FetchTimeout     time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
	UserAgent        string        `yaml:"user_agent" json:"user_agent"`
	ProgressInterval int           `yaml:"progress_interval" json:"progress_interval"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	TargetFolder   string `yaml:"target_folder" json:"target_folder"`
	SaveManifest   bool   `yaml:"save_manifest" json:"save_manifest"`
	ManifestFormat string `yaml:"manifest_format" json:"manifest_format"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" json:"listen"`
	Path   string `yaml:"path" json:"path"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			URL:            DefaultSearchURL,
			Selector:       "figure img",
			Renderer:       "chrome",
			UserAgent:      DefaultUserAgent,
			ViewportWidth:  1280,
			ViewportHeight: 1024,
			Headless:       true,
			WaitTimeout:    10 * time.Second,
		},
		Harvest: HarvestConfig{
			TargetCount:    500,
			MaxIterations:  1000,
			StabilityLimit: 5,
			ScrollFraction: 0.8,
			ScrollDelay:    500 * time.Millisecond,
		},
		Download: DownloadConfig{
			FetchTimeout:     10 * time.Second,
			UserAgent:        DefaultUserAgent,
			ProgressInterval: 50,
		},
		Output: OutputConfig{
			TargetFolder:   "profilePhotos",
			SaveManifest:   false,
			ManifestFormat: "json",
		},
		Notifications: NotificationConfig{
			Enabled:    true,
			OnComplete: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Metrics: MetricsConfig{
			Listen: "",
			Path:   "/metrics",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("IMGHARVEST_SEARCH_URL"); v != "" {
		c.Search.URL = v
	}
	if v := os.Getenv("IMGHARVEST_SELECTOR"); v != "" {
		c.Search.Selector = v
	}
	if v := os.Getenv("IMGHARVEST_RENDERER"); v != "" {
		c.Search.Renderer = v
	}
	if v := os.Getenv("IMGHARVEST_USER_AGENT"); v != "" {
		c.Search.UserAgent = v
		c.Download.UserAgent = v
	}
	if v := os.Getenv("IMGHARVEST_HEADLESS"); v != "" {
		c.Search.Headless = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("IMGHARVEST_RESPECT_ROBOTS"); v != "" {
		c.Search.RespectRobots = strings.ToLower(v) == "true"
	}

	if v := os.Getenv("IMGHARVEST_TARGET_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGHARVEST_TARGET_COUNT: %w", err))
		} else {
			c.Harvest.TargetCount = n
		}
	}
	if v := os.Getenv("IMGHARVEST_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGHARVEST_MAX_ITERATIONS: %w", err))
		} else {
			c.Harvest.MaxIterations = n
		}
	}
	if v := os.Getenv("IMGHARVEST_STABILITY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGHARVEST_STABILITY_LIMIT: %w", err))
		} else {
			c.Harvest.StabilityLimit = n
		}
	}
	if v := os.Getenv("IMGHARVEST_SCROLL_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGHARVEST_SCROLL_DELAY: %w", err))
		} else {
			c.Harvest.ScrollDelay = d
		}
	}
	if v := os.Getenv("IMGHARVEST_FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGHARVEST_FETCH_TIMEOUT: %w", err))
		} else {
			c.Download.FetchTimeout = d
		}
	}

	if v := os.Getenv("IMGHARVEST_TARGET_FOLDER"); v != "" {
		c.Output.TargetFolder = v
	}
	if v := os.Getenv("IMGHARVEST_NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("IMGHARVEST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IMGHARVEST_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"imgharvest.yaml",
		"imgharvest.yml",
		".imgharvest.yaml",
		".imgharvest.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "imgharvest", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".imgharvest.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Search
	if c.Search.URL == "" {
		errs = append(errs, errors.New("search URL is required"))
	}
	if c.Search.Selector == "" {
		errs = append(errs, errors.New("result selector is required"))
	}
	validRenderers := map[string]bool{"chrome": true, "static": true}
	if !validRenderers[strings.ToLower(c.Search.Renderer)] {
		errs = append(errs, fmt.Errorf("invalid renderer %q (want chrome or static)", c.Search.Renderer))
	}
	if c.Search.ViewportWidth <= 0 || c.Search.ViewportHeight <= 0 {
		errs = append(errs, errors.New("viewport dimensions must be positive"))
	}
	if c.Search.WaitTimeout < 0 {
		errs = append(errs, errors.New("wait timeout cannot be negative"))
	}

	// Harvest
	if c.Harvest.TargetCount < 0 {
		errs = append(errs, errors.New("target count cannot be negative"))
	}
	if c.Harvest.MaxIterations <= 0 {
		errs = append(errs, errors.New("max iterations must be positive"))
	}
	if c.Harvest.StabilityLimit <= 0 {
		errs = append(errs, errors.New("stability limit must be positive"))
	}
	if c.Harvest.ScrollFraction <= 0 {
		errs = append(errs, errors.New("scroll fraction must be positive"))
	}
	if c.Harvest.ScrollDelay < 0 {
		errs = append(errs, errors.New("scroll delay cannot be negative"))
	}

	// Download
	if c.Download.FetchTimeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.Download.ProgressInterval < 0 {
		errs = append(errs, errors.New("progress interval cannot be negative"))
	}

	// Output
	if c.Output.TargetFolder == "" {
		errs = append(errs, errors.New("target folder is required"))
	}
	validFormats := map[string]bool{"json": true, "yaml": true}
	if !validFormats[strings.ToLower(c.Output.ManifestFormat)] {
		errs = append(errs, errors.New("invalid manifest format"))
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["url"].(string); ok && v != "" {
		c.Search.URL = v
	}
	if v, ok := flags["selector"].(string); ok && v != "" {
		c.Search.Selector = v
	}
	if v, ok := flags["renderer"].(string); ok && v != "" {
		c.Search.Renderer = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.Search.Headless = v
	}
	if v, ok := flags["respect-robots"].(bool); ok {
		c.Search.RespectRobots = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.TargetFolder = v
	}
	if v, ok := flags["target-count"].(int); ok && v >= 0 {
		c.Harvest.TargetCount = v
	}
	if v, ok := flags["max-iterations"].(int); ok && v > 0 {
		c.Harvest.MaxIterations = v
	}
	if v, ok := flags["stability-limit"].(int); ok && v > 0 {
		c.Harvest.StabilityLimit = v
	}
	if v, ok := flags["scroll-delay"].(time.Duration); ok && v >= 0 {
		c.Harvest.ScrollDelay = v
	}
	if v, ok := flags["fetch-timeout"].(time.Duration); ok && v > 0 {
		c.Download.FetchTimeout = v
	}
	if v, ok := flags["manifest"].(bool); ok {
		c.Output.SaveManifest = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["metrics-listen"].(string); ok && v != "" {
		c.Metrics.Listen = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".imgharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
