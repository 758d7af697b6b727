// Package config provides configuration management for the Pub/Sub broker.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// RingDefault and RingMax bound a topic's ring_size (§3).
const (
	RingDefault = 100
	RingMax     = 10000
)

// Config holds every option recognized at startup (§6.3). Options are read
// once at process bootstrap; nothing in the broker re-reads them at runtime.
type Config struct {
	Host   string `env:"HOST" envDefault:"0.0.0.0"`
	Port   string `env:"PORT" envDefault:"8080"`
	WSPath string `env:"WS_PATH" envDefault:"/ws" validate:"required"`

	APIKeysRaw string `env:"API_KEYS" envDefault:"plivo-test-key,demo-key,test-123"`

	SubscriberQueueSize   int `env:"SUBSCRIBER_QUEUE_SIZE" envDefault:"50" validate:"min=1"`
	DefaultRingBufferSize int `env:"DEFAULT_RING_BUFFER_SIZE" envDefault:"100" validate:"min=1"`
	MaxRingBufferSize     int `env:"MAX_RING_BUFFER_SIZE" envDefault:"10000" validate:"min=1"`
	SlowConsumerThreshold int `env:"SLOW_CONSUMER_THRESHOLD" envDefault:"3" validate:"min=1"`

	ShutdownTimeoutSeconds int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"30" validate:"min=1"`

	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"60s"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`
	Version     string `env:"VERSION" envDefault:"dev"`
}

// Load populates a Config from the process environment and validates it.
// Call godotenv.Load beforehand if a .env file should seed the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return cfg, nil
}

// APIKeys splits the comma-separated allow-list into individual credentials.
func (c *Config) APIKeys() []string {
	parts := strings.Split(c.APIKeysRaw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

// ShutdownTimeout returns the configured shutdown budget as a time.Duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// ClampRingSize clamps a requested ring_size into [1, MaxRingBufferSize],
// substituting DefaultRingBufferSize when requested is 0 or negative.
func (c *Config) ClampRingSize(requested int) int {
	if requested <= 0 {
		requested = c.DefaultRingBufferSize
	}
	if requested > c.MaxRingBufferSize {
		requested = c.MaxRingBufferSize
	}
	return requested
}
