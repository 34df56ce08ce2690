package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Components receive the
// sections they need at construction time; nothing reads the environment
// directly.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Listings     ListingsConfig     `yaml:"listings" mapstructure:"listings"`
	ContentFetch ContentFetchConfig `yaml:"contentfetch" mapstructure:"contentfetch"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Verifier     VerifierConfig     `yaml:"verifier" mapstructure:"verifier"`
	Outreach     OutreachConfig     `yaml:"outreach" mapstructure:"outreach"`
	Enrich       EnrichConfig       `yaml:"enrich" mapstructure:"enrich"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ListingsConfig holds listings provider API settings.
type ListingsConfig struct {
	Key              string  `yaml:"key" mapstructure:"key"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	DefaultLimit     int     `yaml:"default_limit" mapstructure:"default_limit"`
	PollTimeoutSecs  int     `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
	PollIntervalSecs int     `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
}

// ContentFetchConfig holds page text extraction settings.
type ContentFetchConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	MaxPages    int     `yaml:"max_pages" mapstructure:"max_pages"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings for the intel extraction step.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// VerifierConfig holds email verification provider settings.
type VerifierConfig struct {
	Key        string  `yaml:"key" mapstructure:"key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// OutreachConfig holds outreach provider settings. Mode "simulation" replaces
// the HTTP client with one that issues no network calls.
type OutreachConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	Mode            string `yaml:"mode" mapstructure:"mode"`
	CampaignDir     string `yaml:"campaign_dir" mapstructure:"campaign_dir"`
	DefaultCampaign string `yaml:"default_campaign" mapstructure:"default_campaign"`
}

// SimulationMode reports whether outreach runs without real provider calls.
func (c OutreachConfig) SimulationMode() bool {
	return strings.EqualFold(c.Mode, "simulation")
}

// EnrichConfig configures the enrichment worker pool and per-step timeouts.
type EnrichConfig struct {
	Workers           int `yaml:"workers" mapstructure:"workers"`
	QueueSize         int `yaml:"queue_size" mapstructure:"queue_size"`
	FetchTimeoutSecs  int `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	IntelTimeoutSecs  int `yaml:"intel_timeout_secs" mapstructure:"intel_timeout_secs"`
	VerifyTimeoutSecs int `yaml:"verify_timeout_secs" mapstructure:"verify_timeout_secs"`
}

// FetchTimeout returns the content fetch step deadline.
func (c EnrichConfig) FetchTimeout() time.Duration {
	return secsOr(c.FetchTimeoutSecs, 60*time.Second)
}

// IntelTimeout returns the AI extraction step deadline.
func (c EnrichConfig) IntelTimeout() time.Duration {
	return secsOr(c.IntelTimeoutSecs, 120*time.Second)
}

// VerifyTimeout returns the per-email verification deadline.
func (c EnrichConfig) VerifyTimeout() time.Duration {
	return secsOr(c.VerifyTimeoutSecs, 30*time.Second)
}

func secsOr(secs int, fallback time.Duration) time.Duration {
	if secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("listings.base_url", "https://api.apify.com/v2")
	v.SetDefault("listings.rate_per_sec", 5)
	v.SetDefault("listings.default_limit", 100)
	v.SetDefault("listings.poll_timeout_secs", 300)
	v.SetDefault("listings.poll_interval_secs", 2)
	v.SetDefault("contentfetch.base_url", "https://r.jina.ai")
	v.SetDefault("contentfetch.max_pages", 3)
	v.SetDefault("contentfetch.rate_per_sec", 2)
	v.SetDefault("contentfetch.timeout_secs", 60)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("verifier.base_url", "https://api.millionverifier.com")
	v.SetDefault("verifier.rate_per_sec", 5)
	v.SetDefault("outreach.base_url", "https://api.instantly.ai/api/v2")
	v.SetDefault("outreach.mode", "live")
	v.SetDefault("outreach.campaign_dir", "campaigns")
	v.SetDefault("enrich.workers", 5)
	v.SetDefault("enrich.queue_size", 256)
	v.SetDefault("enrich.fetch_timeout_secs", 60)
	v.SetDefault("enrich.intel_timeout_secs", 120)
	v.SetDefault("enrich.verify_timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration required for the given mode is
// present. Modes: "ingest", "import", "enrich", "campaign", "serve".
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStore := func() {
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required for the postgres driver")
		}
	}

	switch mode {
	case "ingest":
		requireStore()
		if c.Listings.Key == "" {
			missing = append(missing, "listings.key is required")
		}
	case "import":
		requireStore()
	case "enrich":
		requireStore()
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
		if c.Verifier.Key == "" {
			missing = append(missing, "verifier.key is required")
		}
		if c.Enrich.Workers < 1 || c.Enrich.Workers > 50 {
			missing = append(missing, "enrich.workers must be between 1 and 50")
		}
	case "campaign":
		requireStore()
		if !c.Outreach.SimulationMode() && c.Outreach.Key == "" {
			missing = append(missing, "outreach.key is required outside simulation mode")
		}
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
