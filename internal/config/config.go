package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds process settings, populated from environment variables and an
// optional .env file in the working directory.
type Config struct {
	LogLevel        string
	LogFormat       string
	Workers         int
	ShutdownTimeout time.Duration

	// Kafka publishing is disabled when KafkaBrokers is empty.
	KafkaBrokers      []string
	KafkaSummaryTopic string

	// Metrics are pushed only when PushgatewayURL is set.
	PushgatewayURL string
	PushgatewayJob string
}

// Load reads configuration from environment variables, applying defaults where unset.
// Variables already present in the environment take precedence over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	workers, err := parseWorkers()
	if err != nil {
		return nil, err
	}

	var brokers []string
	if s := os.Getenv("KAFKA_BROKERS"); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}

	cfg := &Config{
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		Workers:           workers,
		ShutdownTimeout:   shutdownTimeout,
		KafkaBrokers:      brokers,
		KafkaSummaryTopic: sharedcfg.EnvOrDefault("KAFKA_SUMMARY_TOPIC", "climate-stat-summaries"),
		PushgatewayURL:    os.Getenv("PUSHGATEWAY_URL"),
		PushgatewayJob:    sharedcfg.EnvOrDefault("PUSHGATEWAY_JOB", "climate-stats-etl"),
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSummaryTopic == "" {
		return nil, errors.New("KAFKA_SUMMARY_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.PushgatewayURL != "" && cfg.PushgatewayJob == "" {
		return nil, errors.New("PUSHGATEWAY_JOB is required when PUSHGATEWAY_URL is set")
	}

	return cfg, nil
}

// PublishEnabled reports whether summaries should also go to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseWorkers() (int, error) {
	s := os.Getenv("WORKERS")
	if s == "" {
		return runtime.NumCPU(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid WORKERS")
	}
	return n, nil
}
