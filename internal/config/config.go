package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Agency   AgencyConfig   `yaml:"agency" mapstructure:"agency"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Crypto   CryptoConfig   `yaml:"crypto" mapstructure:"crypto"`
	Google   GoogleConfig   `yaml:"google" mapstructure:"google"`
	AI       AIConfig       `yaml:"ai" mapstructure:"ai"`
	R2       R2Config       `yaml:"r2" mapstructure:"r2"`
	ZAPI     ZAPIConfig     `yaml:"zapi" mapstructure:"zapi"`
	Email    EmailConfig    `yaml:"email" mapstructure:"email"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// AgencyConfig identifies the tenant this worker runs for.
type AgencyConfig struct {
	ID string `yaml:"id" mapstructure:"id"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CryptoConfig holds the credential encryption key (64 hex chars).
type CryptoConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// GoogleConfig holds the OAuth application credentials used to refresh
// client tokens.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
}

// AIConfig configures the executive summary generation.
type AIConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-call timeout.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// R2Config configures the artifact store and signed-URL expiry.
type R2Config struct {
	AccountID       string `yaml:"account_id" mapstructure:"account_id"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	URLExpirySecs   int    `yaml:"url_expiry_secs" mapstructure:"url_expiry_secs"`
}

// URLExpiry returns the signed-URL lifetime.
func (c R2Config) URLExpiry() time.Duration {
	return time.Duration(c.URLExpirySecs) * time.Second
}

// ZAPIConfig configures the WhatsApp gateway.
type ZAPIConfig struct {
	InstanceID    string `yaml:"instance_id" mapstructure:"instance_id"`
	Token         string `yaml:"token" mapstructure:"token"`
	SecurityToken string `yaml:"security_token" mapstructure:"security_token"`
}

// EmailConfig configures outbound email.
type EmailConfig struct {
	ResendKey string `yaml:"resend_key" mapstructure:"resend_key"`
	From      string `yaml:"from" mapstructure:"from"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	MaxIngestRetries     int `yaml:"max_ingest_retries" mapstructure:"max_ingest_retries"`
	IngestBackoffMS      int `yaml:"ingest_backoff_ms" mapstructure:"ingest_backoff_ms"`
	MaxConcurrentClients int `yaml:"max_concurrent_clients" mapstructure:"max_concurrent_clients"`
	TokenExpiryBufferSec int `yaml:"token_expiry_buffer_secs" mapstructure:"token_expiry_buffer_secs"`
}

// IngestBackoff returns the base backoff between rate-limited ingest retries.
func (c PipelineConfig) IngestBackoff() time.Duration {
	return time.Duration(c.IngestBackoffMS) * time.Millisecond
}

// TokenExpiryBuffer returns the freshness lookahead applied before using a
// refreshable credential.
func (c PipelineConfig) TokenExpiryBuffer() time.Duration {
	return time.Duration(c.TokenExpiryBufferSec) * time.Second
}

// ServerConfig configures the HTTP trigger server.
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
	v.SetEnvPrefix("METRIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("ai.model", "claude-haiku-4-5-20251001")
	v.SetDefault("ai.max_retries", 2)
	v.SetDefault("ai.timeout_secs", 60)
	v.SetDefault("r2.url_expiry_secs", 3600)
	v.SetDefault("pipeline.max_ingest_retries", 3)
	v.SetDefault("pipeline.ingest_backoff_ms", 2000)
	v.SetDefault("pipeline.max_concurrent_clients", 5)
	v.SetDefault("pipeline.token_expiry_buffer_secs", 300)

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

// Validate checks the settings every pipeline invocation requires.
func (c *Config) Validate() error {
	if c.Agency.ID == "" {
		return eris.New("config: agency.id is required")
	}
	if c.Crypto.Key == "" {
		return eris.New("config: crypto.key is required")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for the postgres driver")
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
