// Package config loads service configuration with Viper: environment
// variables first, with an optional .env file for development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DocumentBackend selects the physical content encoding for documents.
type DocumentBackend string

const (
	BackendInline DocumentBackend = "inline"
	BackendFile   DocumentBackend = "file"
)

// Config holds all configuration for the activation service.
type Config struct {
	Addr     string `mapstructure:"LENDGATE_ADDR"`
	LogLevel string `mapstructure:"LENDGATE_LOG_LEVEL"`

	PostgresDSN string `mapstructure:"LENDGATE_POSTGRES_DSN"`
	RedisURL    string `mapstructure:"LENDGATE_REDIS_URL"`

	KafkaBrokers    string `mapstructure:"LENDGATE_KAFKA_BROKERS"`
	AuditTopic      string `mapstructure:"LENDGATE_AUDIT_TOPIC"`
	AuditBufferSize int    `mapstructure:"LENDGATE_AUDIT_BUFFER"`

	JWTSigningKey string `mapstructure:"LENDGATE_JWT_SIGNING_KEY"`

	DocumentBackend     string        `mapstructure:"LENDGATE_DOCUMENT_BACKEND"`
	DocumentFileRoot    string        `mapstructure:"LENDGATE_DOCUMENT_FILE_ROOT"`
	DocumentMaxBytes    int64         `mapstructure:"LENDGATE_DOCUMENT_MAX_BYTES"`
	DocumentReadTimeout time.Duration `mapstructure:"LENDGATE_DOCUMENT_READ_TIMEOUT"`

	BatchDeadline time.Duration `mapstructure:"LENDGATE_BATCH_DEADLINE"`
	BatchCacheTTL time.Duration `mapstructure:"LENDGATE_BATCH_CACHE_TTL"`
}

// Load reads configuration from the environment, consulting an optional
// .env file in path for development setups.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("LENDGATE_ADDR", ":8080")
	v.SetDefault("LENDGATE_LOG_LEVEL", "info")
	v.SetDefault("LENDGATE_AUDIT_TOPIC", "lendgate.audit")
	v.SetDefault("LENDGATE_AUDIT_BUFFER", 256)
	v.SetDefault("LENDGATE_DOCUMENT_BACKEND", string(BackendInline))
	v.SetDefault("LENDGATE_DOCUMENT_FILE_ROOT", "/var/lib/lendgate/documents")
	v.SetDefault("LENDGATE_DOCUMENT_MAX_BYTES", 5<<20)
	v.SetDefault("LENDGATE_DOCUMENT_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("LENDGATE_BATCH_DEADLINE", 3*time.Second)
	v.SetDefault("LENDGATE_BATCH_CACHE_TTL", 2*time.Minute)

	for _, key := range []string{
		"LENDGATE_ADDR", "LENDGATE_LOG_LEVEL", "LENDGATE_POSTGRES_DSN",
		"LENDGATE_REDIS_URL", "LENDGATE_KAFKA_BROKERS", "LENDGATE_AUDIT_TOPIC",
		"LENDGATE_AUDIT_BUFFER", "LENDGATE_JWT_SIGNING_KEY",
		"LENDGATE_DOCUMENT_BACKEND", "LENDGATE_DOCUMENT_FILE_ROOT",
		"LENDGATE_DOCUMENT_MAX_BYTES", "LENDGATE_DOCUMENT_READ_TIMEOUT",
		"LENDGATE_BATCH_DEADLINE", "LENDGATE_BATCH_CACHE_TTL",
	} {
		_ = v.BindEnv(key)
	}

	// The .env file is optional; a missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch DocumentBackend(c.DocumentBackend) {
	case BackendInline, BackendFile:
	default:
		return fmt.Errorf("unknown document backend %q", c.DocumentBackend)
	}
	if DocumentBackend(c.DocumentBackend) == BackendFile && c.DocumentFileRoot == "" {
		return fmt.Errorf("document file root is required for the file backend")
	}
	if c.DocumentMaxBytes <= 0 {
		return fmt.Errorf("document max bytes must be positive")
	}
	return nil
}

// Brokers splits the comma-separated broker list, empty when Kafka is not
// configured.
func (c Config) Brokers() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}
