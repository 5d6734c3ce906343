package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Black-And-White-Club/score-ledger/app/observability"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendKV       = "kv"
	BackendSQLite   = "sqlite"
)

// Config struct to hold the configuration settings
type Config struct {
	Store         StoreConfig         `yaml:"store"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	SQLite        SQLiteConfig        `yaml:"sqlite"`
	JWT           JWTConfig           `yaml:"jwt"`
	HTTP          HTTPConfig          `yaml:"http"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Export        ExportConfig        `yaml:"export"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StoreConfig selects the durable adapter behind the ledger.
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory|postgres|kv|sqlite
}

// Shared reports whether the backend can be shared by several ledger processes.
func (s StoreConfig) Shared() bool {
	return s.Backend == BackendPostgres || s.Backend == BackendKV
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration. An empty URL runs the bus in-process.
type NATSConfig struct {
	URL        string `yaml:"url"`
	QueueGroup string `yaml:"queue_group"`
	KVBucket   string `yaml:"kv_bucket"`
}

// SQLiteConfig holds the embedded database path.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	Issuer     string        `yaml:"issuer"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// HTTPConfig holds the REST listener settings.
type HTTPConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	SubmitRate     float64  `yaml:"submit_rate"`
	SubmitBurst    int      `yaml:"submit_burst"`
}

// LedgerConfig tunes the ledger core.
type LedgerConfig struct {
	MaxRetries int `yaml:"max_retries"`
	// DurableEvents routes notifications through the River queue (postgres backend only).
	DurableEvents bool `yaml:"durable_events"`
	// ResyncInterval is how often a process on a shared store rescans it for
	// writes it missed. Defaults to 30s on postgres and kv, off otherwise.
	ResyncInterval time.Duration `yaml:"resync_interval"`
}

// ExportConfig holds the S3-compatible bucket for spreadsheet exports.
type ExportConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicBaseURL   string `yaml:"public_base_url"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	Environment     string  `yaml:"environment"`
	LogLevel        string  `yaml:"log_level"`
	MetricsAddress  string  `yaml:"metrics_address"`
	OTLPEndpoint    string  `yaml:"otlp_endpoint"`
	OTLPInsecure    bool    `yaml:"otlp_insecure"`
	TempoSampleRate float64 `yaml:"tempo_sample_rate"`
}

// LoadConfig loads the configuration from a YAML file, then applies environment
// overrides. A missing file falls back to environment-only configuration.
func LoadConfig(filename string) (*Config, error) {
	// Local development convenience; absent in deployed environments.
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env only
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", filename, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides cfg with any environment variables that are set.
func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true"
		}
	}

	str("STORE_BACKEND", &cfg.Store.Backend)
	str("DATABASE_URL", &cfg.Postgres.DSN)
	str("NATS_URL", &cfg.NATS.URL)
	str("NATS_QUEUE_GROUP", &cfg.NATS.QueueGroup)
	str("NATS_KV_BUCKET", &cfg.NATS.KVBucket)
	str("SQLITE_PATH", &cfg.SQLite.Path)
	str("JWT_SECRET", &cfg.JWT.Secret)
	str("JWT_ISSUER", &cfg.JWT.Issuer)
	str("HTTP_ADDRESS", &cfg.HTTP.Address)
	str("EXPORT_S3_ENDPOINT", &cfg.Export.Endpoint)
	str("EXPORT_S3_REGION", &cfg.Export.Region)
	str("EXPORT_S3_BUCKET", &cfg.Export.Bucket)
	str("EXPORT_S3_PREFIX", &cfg.Export.Prefix)
	str("EXPORT_S3_ACCESS_KEY_ID", &cfg.Export.AccessKeyID)
	str("EXPORT_S3_SECRET_ACCESS_KEY", &cfg.Export.SecretAccessKey)
	str("EXPORT_PUBLIC_BASE_URL", &cfg.Export.PublicBaseURL)
	boolean("EXPORT_S3_PATH_STYLE", &cfg.Export.UsePathStyle)
	str("ENV", &cfg.Observability.Environment)
	str("LOG_LEVEL", &cfg.Observability.LogLevel)
	str("METRICS_ADDRESS", &cfg.Observability.MetricsAddress)
	str("OTLP_ENDPOINT", &cfg.Observability.OTLPEndpoint)
	boolean("OTLP_INSECURE", &cfg.Observability.OTLPInsecure)
	boolean("LEDGER_DURABLE_EVENTS", &cfg.Ledger.DurableEvents)

	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.HTTP.AllowedOrigins = append(cfg.HTTP.AllowedOrigins, o)
			}
		}
	}
	if v := os.Getenv("JWT_DEFAULT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_DEFAULT_TTL value: %w", err)
		}
		cfg.JWT.DefaultTTL = d
	}
	if v := os.Getenv("HTTP_SUBMIT_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid HTTP_SUBMIT_RATE value: %w", err)
		}
		cfg.HTTP.SubmitRate = f
	}
	if v := os.Getenv("HTTP_SUBMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_SUBMIT_BURST value: %w", err)
		}
		cfg.HTTP.SubmitBurst = n
	}
	if v := os.Getenv("LEDGER_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_MAX_RETRIES value: %w", err)
		}
		cfg.Ledger.MaxRetries = n
	}
	if v := os.Getenv("LEDGER_RESYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_RESYNC_INTERVAL value: %w", err)
		}
		cfg.Ledger.ResyncInterval = d
	}
	if v := os.Getenv("TEMPO_SAMPLE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TEMPO_SAMPLE_RATE value: %w", err)
		}
		cfg.Observability.TempoSampleRate = f
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Ledger.ResyncInterval == 0 && c.Store.Shared() {
		c.Ledger.ResyncInterval = 30 * time.Second
	}
	if c.NATS.KVBucket == "" {
		c.NATS.KVBucket = "score_ledger"
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "score-ledger.db"
	}
	if c.JWT.DefaultTTL == 0 {
		c.JWT.DefaultTTL = 24 * time.Hour
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.SubmitRate == 0 {
		c.HTTP.SubmitRate = 5
	}
	if c.HTTP.SubmitBurst == 0 {
		c.HTTP.SubmitBurst = 10
	}
	if c.Observability.TempoSampleRate == 0 {
		c.Observability.TempoSampleRate = 0.1
	}
}

// Validate reports settings the selected backends cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres store requires DATABASE_URL"))
		}
	case BackendKV:
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("kv store requires NATS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Ledger.DurableEvents && c.Postgres.DSN == "" {
		errs = append(errs, errors.New("durable events require DATABASE_URL"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable not set"))
	}
	if c.Ledger.MaxRetries < 0 {
		errs = append(errs, errors.New("ledger.max_retries must not be negative"))
	}
	if c.Ledger.ResyncInterval < 0 {
		errs = append(errs, errors.New("ledger.resync_interval must not be negative"))
	}
	return errors.Join(errs...)
}

// ToObsConfig maps the observability section onto observability.Config.
func ToObsConfig(appCfg *Config) observability.Config {
	return observability.Config{
		ServiceName:    "score-ledger",
		Environment:    appCfg.Observability.Environment,
		Version:        Version,
		LogLevel:       appCfg.Observability.LogLevel,
		MetricsAddress: appCfg.Observability.MetricsAddress,
		OTLPEndpoint:   appCfg.Observability.OTLPEndpoint,
		OTLPInsecure:   appCfg.Observability.OTLPInsecure,
		SampleRate:     appCfg.Observability.TempoSampleRate,
	}
}

// Version is stamped at build time with -ldflags "-X .../config.Version=...".
var Version = "dev"
