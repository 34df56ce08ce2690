package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.apify.com/v2", cfg.Listings.BaseURL)
	assert.Equal(t, 100, cfg.Listings.DefaultLimit)
	assert.Equal(t, 300, cfg.Listings.PollTimeoutSecs)
	assert.Equal(t, "https://r.jina.ai", cfg.ContentFetch.BaseURL)
	assert.Equal(t, 3, cfg.ContentFetch.MaxPages)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, 1024, cfg.Anthropic.MaxTokens)
	assert.Equal(t, "https://api.millionverifier.com", cfg.Verifier.BaseURL)
	assert.Equal(t, "live", cfg.Outreach.Mode)
	assert.False(t, cfg.Outreach.SimulationMode())
	assert.Equal(t, float64(5), cfg.Listings.RatePerSec)
	assert.Equal(t, 5, cfg.Enrich.Workers)
	assert.Equal(t, 256, cfg.Enrich.QueueSize)
	assert.Equal(t, 60*time.Second, cfg.Enrich.FetchTimeout())
	assert.Equal(t, 120*time.Second, cfg.Enrich.IntelTimeout())
	assert.Equal(t, 30*time.Second, cfg.Enrich.VerifyTimeout())
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
server:
  port: 9090
listings:
  rate_per_sec: 2.5
enrich:
  workers: 10
outreach:
  mode: SIMULATION
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2.5, cfg.Listings.RatePerSec)
	assert.Equal(t, 10, cfg.Enrich.Workers)
	assert.True(t, cfg.Outreach.SimulationMode())
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.ContentFetch.MaxPages)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEADGEN_STORE_DRIVER", "postgres")
	t.Setenv("LEADGEN_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("LEADGEN_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestEnrichTimeouts_FallbackOnZero(t *testing.T) {
	cfg := EnrichConfig{}
	assert.Equal(t, 60*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 120*time.Second, cfg.IntelTimeout())
	assert.Equal(t, 30*time.Second, cfg.VerifyTimeout())

	cfg = EnrichConfig{FetchTimeoutSecs: 5, IntelTimeoutSecs: 10, VerifyTimeoutSecs: 2}
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 10*time.Second, cfg.IntelTimeout())
	assert.Equal(t, 2*time.Second, cfg.VerifyTimeout())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config populated enough to pass mode validation.
func validDefaults() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "sqlite"},
		Server: ServerConfig{Port: 8080},
		Enrich: EnrichConfig{Workers: 5},
	}
}

func TestValidateIngest(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("ingest")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "listings.key is required")

	cfg.Listings.Key = "apify-key"
	assert.NoError(t, cfg.Validate("ingest"))
}

func TestValidateIngest_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Listings.Key = "apify-key"
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("ingest")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/leads"
	assert.NoError(t, cfg.Validate("ingest"))
}

func TestValidateEnrich(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "verifier.key is required")

	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Verifier.Key = "mv-key"
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidateEnrich_WorkerBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Verifier.Key = "mv-key"

	cfg.Enrich.Workers = 0
	err := cfg.Validate("enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "enrich.workers must be between 1 and 50")

	cfg.Enrich.Workers = 51
	assert.Error(t, cfg.Validate("enrich"))

	cfg.Enrich.Workers = 50
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidateCampaign_SimulationSkipsKey(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("campaign")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "outreach.key is required")

	cfg.Outreach.Mode = "simulation"
	assert.NoError(t, cfg.Validate("campaign"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
