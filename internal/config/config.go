// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all scraper configuration knobs loaded via Viper.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Assets    AssetsConfig    `mapstructure:"assets"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Selectors Selectors       `mapstructure:"selectors"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig describes the vendor listing API.
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Language       string `mapstructure:"language"`
	Category       int    `mapstructure:"category"`
	PageIndex      int    `mapstructure:"page_index"`
	PageSize       int    `mapstructure:"page_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// BrowserConfig controls the headless sessions workers open per product.
type BrowserConfig struct {
	UserAgent                string `mapstructure:"user_agent"`
	OpenTimeoutSeconds       int    `mapstructure:"open_timeout_seconds"`
	ReadyTimeoutSeconds      int    `mapstructure:"ready_timeout_seconds"`
	AffordanceTimeoutSeconds int    `mapstructure:"affordance_timeout_seconds"`
	NavigationTimeoutSeconds int    `mapstructure:"navigation_timeout_seconds"`
}

// AssetsConfig governs streamed downloads and CAD completion polling.
type AssetsConfig struct {
	ConnectTimeoutSeconds int      `mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int      `mapstructure:"read_timeout_seconds"`
	PollIntervalMs        int      `mapstructure:"poll_interval_ms"`
	PollTicks             int      `mapstructure:"poll_ticks"`
	SettleDelayMs         int      `mapstructure:"settle_delay_ms"`
	InProgressSuffixes    []string `mapstructure:"in_progress_suffixes"`
	CADExtension          string   `mapstructure:"cad_extension"`
	PlaceholderImageURL   string   `mapstructure:"placeholder_image_url"`
}

// ScrapeConfig governs the worker pool and output layout.
type ScrapeConfig struct {
	Workers    int    `mapstructure:"workers"`
	OutputRoot string `mapstructure:"output_root"`
}

// RateLimitConfig bounds request rates against the vendor's hosts.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Selectors is the versioned selector contract for the vendor's markup.
// Entries beginning with "//" are XPath, the rest are CSS. Swapping a site
// revision is a config change, never a code change.
type Selectors struct {
	BomRows        string `mapstructure:"bom_rows"`
	SpecRows       string `mapstructure:"spec_rows"`
	ProductImage   string `mapstructure:"product_image"`
	ConsentBanner  string `mapstructure:"consent_banner"`
	Format2D       string `mapstructure:"format_2d"`
	FormatDropdown string `mapstructure:"format_dropdown"`
	DWGOption      string `mapstructure:"dwg_option"`
	DownloadButton string `mapstructure:"download_button"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
	v.SetDefault("api.base_url", "https://www.baldor.com")
	v.SetDefault("api.language", "en-US")
	v.SetDefault("api.category", 110)
	v.SetDefault("api.page_index", 3)
	v.SetDefault("api.page_size", 10)
	v.SetDefault("api.timeout_seconds", 15)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("browser.open_timeout_seconds", 30)
	v.SetDefault("browser.ready_timeout_seconds", 30)
	v.SetDefault("browser.affordance_timeout_seconds", 10)
	v.SetDefault("browser.navigation_timeout_seconds", 45)
	v.SetDefault("assets.connect_timeout_seconds", 5)
	v.SetDefault("assets.read_timeout_seconds", 30)
	v.SetDefault("assets.poll_interval_ms", 1000)
	v.SetDefault("assets.poll_ticks", 60)
	v.SetDefault("assets.settle_delay_ms", 2500)
	v.SetDefault("assets.in_progress_suffixes", []string{".crdownload", ".tmp"})
	v.SetDefault("assets.cad_extension", ".dwg")
	v.SetDefault("assets.placeholder_image_url", "")
	v.SetDefault("scrape.workers", 2)
	v.SetDefault("scrape.output_root", "output")
	v.SetDefault("rate_limit.rps", 2)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("selectors.bom_rows", "table.data-table tbody tr")
	v.SetDefault("selectors.spec_rows", "table.data-table tbody tr")
	v.SetDefault("selectors.product_image", "img.product-image")
	v.SetDefault("selectors.consent_banner", "#adroll_consent_banner")
	v.SetDefault("selectors.format_2d", `//input[@value='2D']`)
	v.SetDefault("selectors.format_dropdown", `//span[contains(@class, 'k-dropdown')]`)
	v.SetDefault("selectors.dwg_option", `//li[contains(text(), '2D AutoCAD DWG >=2000')]`)
	v.SetDefault("selectors.download_button", "#cadDownload")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if c.API.PageSize <= 0 {
		return fmt.Errorf("api.page_size must be > 0")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be > 0")
	}
	if c.Scrape.Workers <= 0 {
		return fmt.Errorf("scrape.workers must be > 0")
	}
	if c.Scrape.OutputRoot == "" {
		return fmt.Errorf("scrape.output_root must be set")
	}
	if c.Assets.PollTicks <= 0 {
		return fmt.Errorf("assets.poll_ticks must be > 0")
	}
	if c.Assets.PollIntervalMs <= 0 {
		return fmt.Errorf("assets.poll_interval_ms must be > 0")
	}
	if c.Selectors.BomRows == "" {
		return fmt.Errorf("selectors.bom_rows must be set")
	}
	return nil
}

// ListingURL renders the listing API request for the configured catalog page.
func (c APIConfig) ListingURL() string {
	q := url.Values{}
	q.Set("include", "results")
	q.Set("language", c.Language)
	q.Set("pageIndex", strconv.Itoa(c.PageIndex))
	q.Set("pageSize", strconv.Itoa(c.PageSize))
	q.Set("category", strconv.Itoa(c.Category))
	return fmt.Sprintf("%s/api/products?%s", strings.TrimRight(c.BaseURL, "/"), q.Encode())
}

// InfopacketURL is the streamed manual endpoint for one product.
func (c APIConfig) InfopacketURL(productID string) string {
	return fmt.Sprintf("%s/api/products/%s/infopacket", strings.TrimRight(c.BaseURL, "/"), productID)
}

// ProductViewURL deep-links a product page tab ("specs", "parts", "drawings").
func (c APIConfig) ProductViewURL(productID, tab string) string {
	return fmt.Sprintf(`%s/catalog/%s#tab="%s"`, strings.TrimRight(c.BaseURL, "/"), productID, tab)
}

// Timeout converts the API timeout into a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
