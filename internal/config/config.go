// Package config provides configuration management for arni-worker.
// Values come from the environment (optionally seeded from a .env file)
// and an optional config file in YAML or JSON-with-comments form.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// Defaults for the usage accounting core.
const (
	DefaultPort            = 8787
	DefaultMaxTokensLimit  = 88000
	DefaultWeeklyTokens    = 400000
	DefaultWindowDuration  = 5 * time.Hour
	DefaultOpusCostIn      = 0.015
	DefaultOpusCostOut     = 0.075
	DefaultUsageTTLDays    = 90
	DefaultLogTTLDays      = 30
	DefaultRequestBodyMax  = 1 << 20
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the full server configuration.
type Config struct {
	Port          int    `yaml:"port" json:"port"`
	Debug         bool   `yaml:"debug" json:"debug"`
	LoggingToFile bool   `yaml:"logging-to-file" json:"logging-to-file"`
	LogDir        string `yaml:"log-dir" json:"log-dir"`

	// KVDSN selects the key-value backend: sqlite://, postgres:// or s3://.
	KVDSN string `yaml:"kv-dsn" json:"kv-dsn"`

	// APIKey is read into request context but never enforced.
	APIKey string `yaml:"api-key" json:"api-key"`

	// OTLPEndpoint enables trace export when non-empty.
	OTLPEndpoint string `yaml:"otlp-endpoint" json:"otlp-endpoint"`

	// CronInterval enables the internal maintenance ticker when > 0.
	CronInterval time.Duration `yaml:"cron-interval" json:"cron-interval"`

	Quota QuotaConfig `yaml:"quota" json:"quota"`
	Usage UsageConfig `yaml:"usage" json:"usage"`
}

// QuotaConfig parameterizes the rolling-window and weekly budgets.
type QuotaConfig struct {
	MaxTokensLimit    int           `yaml:"max-tokens-limit" json:"max-tokens-limit"`
	WeeklyTokensLimit int           `yaml:"weekly-tokens-limit" json:"weekly-tokens-limit"`
	WindowDuration    time.Duration `yaml:"window-duration" json:"window-duration"`
}

// UsageConfig parameterizes aggregation and retention.
type UsageConfig struct {
	// Reference rates per 1000 tokens used for the savings metric.
	OpusCostIn  float64 `yaml:"opus-cost-in" json:"opus-cost-in"`
	OpusCostOut float64 `yaml:"opus-cost-out" json:"opus-cost-out"`

	UsageTTLDays int `yaml:"usage-ttl-days" json:"usage-ttl-days"`
	LogTTLDays   int `yaml:"log-ttl-days" json:"log-ttl-days"`
}

// LookupEnvFunc looks up environment variables. It accepts multiple keys
// and returns the first non-empty value found.
type LookupEnvFunc func(keys ...string) (string, bool)

func osLookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

// Default returns a Config populated with all defaults.
func Default() *Config {
	return &Config{
		Port:  DefaultPort,
		KVDSN: defaultKVDSN(),
		Quota: QuotaConfig{
			MaxTokensLimit:    DefaultMaxTokensLimit,
			WeeklyTokensLimit: DefaultWeeklyTokens,
			WindowDuration:    DefaultWindowDuration,
		},
		Usage: UsageConfig{
			OpusCostIn:   DefaultOpusCostIn,
			OpusCostOut:  DefaultOpusCostOut,
			UsageTTLDays: DefaultUsageTTLDays,
			LogTTLDays:   DefaultLogTTLDays,
		},
	}
}

func defaultKVDSN() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sqlite://arni.db"
	}
	return "sqlite://" + filepath.Join(home, ".arni", "arni.db")
}

// Load builds the configuration: defaults, then an optional config file,
// then environment overrides. A .env file in the working directory is
// honored when present.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if configPath != "" {
		if err := cfg.mergeFile(configPath); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv(osLookupEnv)
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".hujson":
		std, err := hujson.Standardize(data)
		if err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := yaml.Unmarshal(std, c); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) applyEnv(lookupEnv LookupEnvFunc) {
	if v, ok := lookupEnv("PORT", "ARNI_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Port = n
		}
	}
	if v, ok := lookupEnv("ARNI_DEBUG", "DEBUG"); ok {
		c.Debug = parseBool(v, c.Debug)
	}
	if v, ok := lookupEnv("LOGGING_TO_FILE"); ok {
		c.LoggingToFile = parseBool(v, c.LoggingToFile)
	}
	if v, ok := lookupEnv("ARNI_LOG_DIR"); ok {
		c.LogDir = v
	}
	if v, ok := lookupEnv("ARNI_KV_DSN", "KV_DSN"); ok {
		c.KVDSN = v
	}
	if v, ok := lookupEnv("ARNI_API_KEY", "API_KEY"); ok {
		c.APIKey = v
	}
	if v, ok := lookupEnv("ARNI_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
		c.OTLPEndpoint = v
	}
	if v, ok := lookupEnv("ARNI_CRON_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			c.CronInterval = d
		}
	}

	if v, ok := lookupEnv("MAX_TOKENS_LIMIT"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Quota.MaxTokensLimit = n
		}
	}
	if v, ok := lookupEnv("WEEKLY_TOKENS_LIMIT"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Quota.WeeklyTokensLimit = n
		}
	}
	if v, ok := lookupEnv("WINDOW_DURATION_MS"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Quota.WindowDuration = time.Duration(n) * time.Millisecond
		}
	}
	if v, ok := lookupEnv("OPUS_COST_IN"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Usage.OpusCostIn = f
		}
	}
	if v, ok := lookupEnv("OPUS_COST_OUT"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Usage.OpusCostOut = f
		}
	}
	if v, ok := lookupEnv("USAGE_TTL_DAYS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Usage.UsageTTLDays = n
		}
	}
	if v, ok := lookupEnv("LOG_TTL_DAYS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Usage.LogTTLDays = n
		}
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v)))
	if err != nil {
		return fallback
	}
	return b
}

// Reloadable is the hot-swappable subset of the configuration. The
// watcher replaces it atomically when the config file changes.
type Reloadable struct {
	Quota QuotaConfig
	Usage UsageConfig
}

// Snapshot returns the reloadable subset of c.
func (c *Config) Snapshot() Reloadable {
	return Reloadable{Quota: c.Quota, Usage: c.Usage}
}

// Live wraps a Reloadable behind a mutex for concurrent readers.
type Live struct {
	mu  sync.RWMutex
	cur Reloadable
}

// NewLive seeds a Live view from cfg.
func NewLive(cfg *Config) *Live {
	return &Live{cur: cfg.Snapshot()}
}

// Get returns the current reloadable snapshot.
func (l *Live) Get() Reloadable {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

// Set replaces the current snapshot.
func (l *Live) Set(r Reloadable) {
	l.mu.Lock()
	l.cur = r
	l.mu.Unlock()
}
