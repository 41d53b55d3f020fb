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

	errs "musinsacrawler/pkg/errors"
)

// DefaultFile is the config file created on first run
const DefaultFile = "crawler_config.yaml"

const envPrefix = "MUSINSA_CRAWLER_"

// Config is the immutable snapshot a run is started with.
// The flat keys mirror the classic crawler_config.json layout.
type Config struct {
	MaxImages           int     `yaml:"max_images" json:"max_images"`
	DownloadDelay       float64 `yaml:"download_delay" json:"download_delay"`
	PageLoadTimeout     int     `yaml:"page_load_timeout" json:"page_load_timeout"`
	ImplicitWait        int     `yaml:"implicit_wait" json:"implicit_wait"`
	RetryAttempts       int     `yaml:"retry_attempts" json:"retry_attempts"`
	ImageQualityFilter  bool    `yaml:"image_quality_filter" json:"image_quality_filter"`
	HeadlessMode        bool    `yaml:"headless_mode" json:"headless_mode"`
	MinFileSize         int64   `yaml:"min_file_size" json:"min_file_size"`
	MaxPages            int     `yaml:"max_pages" json:"max_pages"`
	MaxScrollIterations int     `yaml:"max_scroll_iterations" json:"max_scroll_iterations"`
	DownloadTimeout     int     `yaml:"download_timeout" json:"download_timeout"`

	Output        OutputConfig       `yaml:"output" json:"output"`
	Site          SiteConfig         `yaml:"site" json:"site"`
	Browser       BrowserConfig      `yaml:"browser" json:"browser"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
}

// OutputConfig controls where run artifacts are written
type OutputConfig struct {
	// BaseDirectory gets a _YYYYMMDD_HHMMSS suffix per run
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// SiteConfig holds the storefront endpoints
type SiteConfig struct {
	LoginURL     string `yaml:"login_url" json:"login_url"`
	LoginPattern string `yaml:"login_pattern" json:"login_pattern"`
	OrderListURL string `yaml:"order_list_url" json:"order_list_url"`
	Referer      string `yaml:"referer" json:"referer"`
}

// BrowserConfig holds options for the automated browser
type BrowserConfig struct {
	UserAgent     string `yaml:"user_agent" json:"user_agent"`
	ExecPath      string `yaml:"exec_path" json:"exec_path,omitempty"`
	WindowWidth   int    `yaml:"window_width" json:"window_width"`
	WindowHeight  int    `yaml:"window_height" json:"window_height"`
	DisableImages bool   `yaml:"disable_images" json:"disable_images"`
}

// NotificationConfig holds desktop notification preferences
type NotificationConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file,omitempty"`
	// NoColor disables ANSI colours on the console writer
	NoColor bool `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns the documented defaults
func DefaultConfig() *Config {
	return &Config{
		MaxImages:           1000,
		DownloadDelay:       0.5,
		PageLoadTimeout:     30,
		ImplicitWait:        10,
		RetryAttempts:       3,
		ImageQualityFilter:  true,
		HeadlessMode:        false,
		MinFileSize:         5120,
		MaxPages:            50,
		MaxScrollIterations: 30,
		DownloadTimeout:     15,
		Output: OutputConfig{
			BaseDirectory: "musinsa_images",
		},
		Site: SiteConfig{
			LoginURL:     "https://www.musinsa.com/auth/login",
			LoginPattern: "/auth/login",
			OrderListURL: "https://www.musinsa.com/order/order-list",
			Referer:      "https://www.musinsa.com/",
		},
		Browser: BrowserConfig{
			UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			WindowWidth:   1920,
			WindowHeight:  1080,
			DisableImages: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DownloadDelayDuration returns download_delay as a duration
func (c *Config) DownloadDelayDuration() time.Duration {
	return time.Duration(c.DownloadDelay * float64(time.Second))
}

// PageLoadTimeoutDuration returns page_load_timeout as a duration
func (c *Config) PageLoadTimeoutDuration() time.Duration {
	return time.Duration(c.PageLoadTimeout) * time.Second
}

// ImplicitWaitDuration returns implicit_wait as a duration
func (c *Config) ImplicitWaitDuration() time.Duration {
	return time.Duration(c.ImplicitWait) * time.Second
}

// DownloadTimeoutDuration returns download_timeout as a duration
func (c *Config) DownloadTimeoutDuration() time.Duration {
	return time.Duration(c.DownloadTimeout) * time.Second
}

// LoadFromEnv applies MUSINSA_CRAWLER_* overrides
func (c *Config) LoadFromEnv() error {
	var errList []error

	setInt := func(key string, dst *int) {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errList = append(errList, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(envPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errList = append(errList, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	setInt("MAX_IMAGES", &c.MaxImages)
	setInt("RETRY_ATTEMPTS", &c.RetryAttempts)
	setInt("MAX_PAGES", &c.MaxPages)
	setInt("PAGE_LOAD_TIMEOUT", &c.PageLoadTimeout)
	setBool("HEADLESS", &c.HeadlessMode)
	setBool("QUALITY_FILTER", &c.ImageQualityFilter)
	setBool("NOTIFICATIONS", &c.Notifications.Enabled)

	if v := os.Getenv(envPrefix + "DOWNLOAD_DELAY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errList = append(errList, fmt.Errorf("%sDOWNLOAD_DELAY: %w", envPrefix, err))
		} else {
			c.DownloadDelay = f
		}
	}
	if v := os.Getenv(envPrefix + "OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv(envPrefix + "CHROME_PATH"); v != "" {
		c.Browser.ExecPath = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return errors.Join(errList...)
}

// LoadFromFile overlays the YAML (or JSON) document at path onto c.
// Keys missing from the document keep their current values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errs.ConfigLoad(path, err)
	}
	return nil
}

// ResolvePath returns the config file to use. An explicit path always wins;
// otherwise the first existing standard location, or DefaultFile.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		DefaultFile,
		"crawler_config.yml",
		"crawler_config.json",
		filepath.Join(home, ".config", "musinsa-crawler", "config.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return DefaultFile
}

// EnsureFile writes the defaults to path when no file exists there.
// created reports whether a new file was written.
func EnsureFile(path string) (created bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := DefaultConfig().Save(path); err != nil {
		return false, err
	}
	return true, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errList []error

	if c.MaxImages <= 0 {
		errList = append(errList, errors.New("max_images must be positive"))
	}
	if c.DownloadDelay < 0 {
		errList = append(errList, errors.New("download_delay cannot be negative"))
	}
	if c.PageLoadTimeout <= 0 {
		errList = append(errList, errors.New("page_load_timeout must be positive"))
	}
	if c.ImplicitWait <= 0 {
		errList = append(errList, errors.New("implicit_wait must be positive"))
	}
	if c.RetryAttempts <= 0 {
		errList = append(errList, errors.New("retry_attempts must be positive"))
	}
	if c.MinFileSize < 0 {
		errList = append(errList, errors.New("min_file_size cannot be negative"))
	}
	if c.MaxPages <= 0 {
		errList = append(errList, errors.New("max_pages must be positive"))
	}
	if c.MaxScrollIterations <= 0 {
		errList = append(errList, errors.New("max_scroll_iterations must be positive"))
	}
	if c.DownloadTimeout <= 0 {
		errList = append(errList, errors.New("download_timeout must be positive"))
	}
	if c.Output.BaseDirectory == "" {
		errList = append(errList, errors.New("output.base_directory is required"))
	}
	if c.Site.LoginURL == "" || c.Site.OrderListURL == "" {
		errList = append(errList, errors.New("site.login_url and site.order_list_url are required"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errList = append(errList, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errList...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags applies flags that were explicitly set
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["max-images"].(int); ok && v > 0 {
		c.MaxImages = v
	}
	if v, ok := flags["download-delay"].(float64); ok && v >= 0 {
		c.DownloadDelay = v
	}
	if v, ok := flags["retry-attempts"].(int); ok && v > 0 {
		c.RetryAttempts = v
	}
	if v, ok := flags["max-pages"].(int); ok && v > 0 {
		c.MaxPages = v
	}
	if v, ok := flags["headless"].(bool); ok {
		c.HeadlessMode = v
	}
	if v, ok := flags["quality-filter"].(bool); ok {
		c.ImageQualityFilter = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok {
		c.Logging.NoColor = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
}

// Load builds the run configuration.
// Precedence: flags > environment > .env file > config file > defaults.
//
// A malformed config file is not fatal: Load returns a usable configuration
// built from the remaining sources together with the config_load error, so
// callers can report it and carry on.
func Load(path string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := DefaultConfig()

	var loadErr error
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			if !errs.IsType(err, errs.ErrorTypeConfigLoad) {
				return nil, err
			}
			loadErr = err
			cfg = DefaultConfig()
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, loadErr
}
