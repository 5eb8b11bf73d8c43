package kafka_config

import (
	"fmt"
	"os"
	"roombook/pkg/logger"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
)

var compressionCodecs = map[string]compress.Compression{
	"none":   0,
	"gzip":   compress.Gzip,
	"snappy": compress.Snappy,
	"lz4":    compress.Lz4,
	"zstd":   compress.Zstd,
}

var requiredAcks = map[int]kafka.RequiredAcks{
	-1: kafka.RequireAll,
	0:  kafka.RequireNone,
	1:  kafka.RequireOne,
}

// Config holds the producer settings for the notification topic. Only the
// producer side is configured: this service never consumes.
type Config struct {
	Brokers []string

	ProducerMaxAttempts  int
	ProducerBatchTimeout time.Duration
	ProducerWriteTimeout time.Duration
	ProducerRequireAcks  int    // -1 = all, 0 = none, 1 = leader only
	ProducerCompression  string // "none", "gzip", "snappy", "lz4", "zstd"
	// ProducerMaxRetries bounds sink-level retries of transient failures, on
	// top of the writer's own attempts.
	ProducerMaxRetries int

	EnableMiddleware bool
}

// Load reads the producer settings from the environment and validates them.
func Load() (*Config, error) {
	cfg := &Config{
		Brokers: splitBrokers(getEnvStr(EnvKafkaBrokers, DefaultKafkaBrokers)),

		ProducerMaxAttempts:  getEnvInt(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts),
		ProducerBatchTimeout: getEnvDuration(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout),
		ProducerWriteTimeout: getEnvDuration(EnvKafkaProducerWriteTimeout, DefaultProducerWriteTimeout),
		ProducerRequireAcks:  getEnvInt(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks),
		ProducerCompression:  strings.ToLower(getEnvStr(EnvKafkaProducerCompression, DefaultProducerCompression)),
		ProducerMaxRetries:   getEnvInt(EnvKafkaProducerMaxRetries, DefaultProducerMaxRetries),

		EnableMiddleware: getEnvBool(EnvKafkaEnableMiddleware, DefaultEnableMiddleware),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (cfg *Config) Validate() error {
	var errors []string

	if len(cfg.Brokers) == 0 {
		errors = append(errors, "At least one Kafka broker is required")
	}
	for i, broker := range cfg.Brokers {
		if !strings.Contains(broker, ":") {
			errors = append(errors, fmt.Sprintf("Broker %d must be host:port, got: %q", i, broker))
		}
	}

	if cfg.ProducerMaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("ProducerMaxAttempts must be positive, got: %d", cfg.ProducerMaxAttempts))
	}
	if cfg.ProducerBatchTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ProducerBatchTimeout must be positive, got: %s", cfg.ProducerBatchTimeout))
	}
	if cfg.ProducerWriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ProducerWriteTimeout must be positive, got: %s", cfg.ProducerWriteTimeout))
	}
	if _, ok := compressionCodecs[cfg.ProducerCompression]; !ok {
		errors = append(errors, fmt.Sprintf("ProducerCompression must be one of [none, gzip, snappy, lz4, zstd], got: %s", cfg.ProducerCompression))
	}
	if _, ok := requiredAcks[cfg.ProducerRequireAcks]; !ok {
		errors = append(errors, fmt.Sprintf("ProducerRequireAcks must be -1, 0, or 1, got: %d", cfg.ProducerRequireAcks))
	}
	if cfg.ProducerMaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("ProducerMaxRetries cannot be negative, got: %d", cfg.ProducerMaxRetries))
	}

	if len(errors) > 0 {
		errMsg := "Kafka configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}
	return nil
}

// Compression returns the writer codec. Unknown names fall back to snappy.
func (cfg *Config) Compression() compress.Compression {
	if c, ok := compressionCodecs[cfg.ProducerCompression]; ok {
		return c
	}
	return compress.Snappy
}

// RequiredAcks returns the writer ack level. Unknown values require all
// in-sync replicas.
func (cfg *Config) RequiredAcks() kafka.RequiredAcks {
	if a, ok := requiredAcks[cfg.ProducerRequireAcks]; ok {
		return a
	}
	return kafka.RequireAll
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka producer configured",
		"brokers", cfg.Brokers,
		"max_attempts", cfg.ProducerMaxAttempts,
		"batch_timeout", cfg.ProducerBatchTimeout,
		"write_timeout", cfg.ProducerWriteTimeout,
		"require_acks", cfg.ProducerRequireAcks,
		"compression", cfg.ProducerCompression,
		"max_retries", cfg.ProducerMaxRetries,
		"middleware", cfg.EnableMiddleware,
	)
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
