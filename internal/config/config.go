// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob of a crawl run.
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Mask    MaskConfig    `mapstructure:"mask"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlConfig governs link discovery and product processing.
type CrawlConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	PageParam         string `mapstructure:"page_param"`
	MaxPages          int    `mapstructure:"max_pages"`
	ProductPattern    string `mapstructure:"product_pattern"`
	TargetLinks       int    `mapstructure:"target_links"`
	SkipFailedListing bool   `mapstructure:"skip_failed_listing"`
	RespectRobots     bool   `mapstructure:"respect_robots"`
	DownloadImages    bool   `mapstructure:"download_images"`
	ImageHost         string `mapstructure:"image_host"`
}

// FetchConfig controls egress endpoints, retries and pacing.
type FetchConfig struct {
	Proxies             []string      `mapstructure:"proxies"`
	ProxiesFile         string        `mapstructure:"proxies_file"`
	AllowDirect         bool          `mapstructure:"allow_direct"`
	UserAgents          []string      `mapstructure:"user_agents"`
	AcceptLanguage      string        `mapstructure:"accept_language"`
	Fingerprint         string        `mapstructure:"fingerprint"`
	MaxRedirects        int           `mapstructure:"max_redirects"`
	MaxAttempts         int           `mapstructure:"max_attempts"`
	FirstConnectTimeout time.Duration `mapstructure:"first_connect_timeout"`
	RetryConnectTimeout time.Duration `mapstructure:"retry_connect_timeout"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	PreWaitMin          time.Duration `mapstructure:"prewait_min"`
	PreWaitMax          time.Duration `mapstructure:"prewait_max"`
	JitterMin           time.Duration `mapstructure:"jitter_min"`
	JitterMax           time.Duration `mapstructure:"jitter_max"`
}

// MaskConfig controls how targets appear in logs.
type MaskConfig struct {
	Disabled bool   `mapstructure:"disabled"`
	Salt     string `mapstructure:"salt"`
	HashLen  int    `mapstructure:"hash_len"`
}

// StorageConfig selects the output backend.
type StorageConfig struct {
	// Backend is one of tsv, csv, ndjson, sqlite or postgres.
	Backend     string `mapstructure:"backend"`
	Path        string `mapstructure:"path"`
	DSN         string `mapstructure:"dsn"`
	Table       string `mapstructure:"table"`
	PicturesDir string `mapstructure:"pictures_dir"`
}

// MetricsConfig controls the Prometheus endpoint. Port 0 disables it.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Backends lists the accepted storage.backend values.
var Backends = []string{"tsv", "csv", "ndjson", "sqlite", "postgres"}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// LOG_MASK_SALT is accepted for compatibility with existing deployments.
	if err := v.BindEnv("mask.salt", "SHELF_MASK_SALT", "LOG_MASK_SALT"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.base_url", "https://vkusvill.ru/goods/gotovaya-eda/")
	v.SetDefault("crawl.page_param", "PAGEN_1")
	v.SetDefault("crawl.max_pages", 60)
	v.SetDefault("crawl.product_pattern", `/goods/[^/]+-\d+\.html$`)
	v.SetDefault("crawl.target_links", 0)
	v.SetDefault("crawl.skip_failed_listing", false)
	v.SetDefault("crawl.respect_robots", false)
	v.SetDefault("crawl.download_images", false)
	v.SetDefault("crawl.image_host", "img.vkusvill.ru")
	v.SetDefault("fetch.proxies", []string{})
	v.SetDefault("fetch.proxies_file", "data/proxies.txt")
	v.SetDefault("fetch.allow_direct", true)
	v.SetDefault("fetch.user_agents", []string{})
	v.SetDefault("fetch.accept_language", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7")
	v.SetDefault("fetch.fingerprint", "auto")
	v.SetDefault("fetch.max_redirects", 10)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.first_connect_timeout", 12*time.Second)
	v.SetDefault("fetch.retry_connect_timeout", 6*time.Second)
	v.SetDefault("fetch.read_timeout", 15*time.Second)
	v.SetDefault("fetch.prewait_min", 2*time.Second)
	v.SetDefault("fetch.prewait_max", 4*time.Second)
	v.SetDefault("fetch.jitter_min", 20*time.Millisecond)
	v.SetDefault("fetch.jitter_max", 80*time.Millisecond)
	v.SetDefault("mask.disabled", false)
	v.SetDefault("mask.salt", "vv_mask_salt")
	v.SetDefault("mask.hash_len", 10)
	v.SetDefault("storage.backend", "tsv")
	v.SetDefault("storage.path", "data/dataset.tsv")
	v.SetDefault("storage.table", "products")
	v.SetDefault("storage.pictures_dir", "data/pictures")
	v.SetDefault("metrics.port", 0)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawl.BaseURL == "" {
		return fmt.Errorf("crawl.base_url is required")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Crawl.TargetLinks < 0 {
		return fmt.Errorf("crawl.target_links must be >= 0")
	}
	if _, err := regexp.Compile(c.Crawl.ProductPattern); err != nil {
		return fmt.Errorf("crawl.product_pattern: %w", err)
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0")
	}
	if c.Fetch.MaxRedirects < 1 {
		return fmt.Errorf("fetch.max_redirects must be >= 1")
	}
	if c.Fetch.FirstConnectTimeout <= 0 || c.Fetch.RetryConnectTimeout <= 0 || c.Fetch.ReadTimeout <= 0 {
		return fmt.Errorf("fetch timeouts must be > 0")
	}
	if c.Fetch.PreWaitMin < 0 || c.Fetch.JitterMin < 0 {
		return fmt.Errorf("fetch pacing must not be negative")
	}
	if c.Fetch.PreWaitMax < c.Fetch.PreWaitMin || c.Fetch.JitterMax < c.Fetch.JitterMin {
		return fmt.Errorf("fetch pacing max must be >= min")
	}
	if !c.Fetch.AllowDirect && len(c.Fetch.Proxies) == 0 && c.Fetch.ProxiesFile == "" {
		return fmt.Errorf("fetch.allow_direct is false and no proxies are configured")
	}
	if !validBackend(c.Storage.Backend) {
		return fmt.Errorf("storage.backend must be one of %s", strings.Join(Backends, ", "))
	}
	if c.Storage.Backend == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn must be set for the postgres backend")
	}
	if c.Storage.Backend != "postgres" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path must be set for the %s backend", c.Storage.Backend)
	}
	if c.Crawl.DownloadImages && c.Storage.PicturesDir == "" {
		return fmt.Errorf("storage.pictures_dir must be set when downloading images")
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535")
	}
	return nil
}

func validBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}
