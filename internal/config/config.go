package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// State store backends
const (
	StateBackendMemory = "memory"
	StateBackendRedis  = "redis"
)

// Config holds all configuration for the voice reader bot
type Config struct {
	// Credentials, both required to serve
	TTSAPIKey        string `envconfig:"TS_API_KEY"`
	TelegramBotToken string `envconfig:"TG_BOT_TOKEN"`

	// HTTP server for health, metrics and the optional WebSocket endpoint
	Port string `envconfig:"PORT" default:"8080"`

	// Google Text-to-Speech
	TTSEndpoint    string `envconfig:"TTS_ENDPOINT" default:"https://texttospeech.googleapis.com/v1/text:synthesize"`
	TTSTimeout     int    `envconfig:"TTS_TIMEOUT" default:"30"`         // seconds, per HTTP request
	MaxChunkLength int    `envconfig:"MAX_CHUNK_LENGTH" default:"5000"` // bytes per synthesis request

	// Dialogue state storage
	StateBackend  string        `envconfig:"STATE_BACKEND" default:"memory"` // memory or redis
	StateTTL      time.Duration `envconfig:"STATE_TTL" default:"0s"`         // redis only, 0 keeps state forever
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string        `envconfig:"REDIS_PREFIX" default:"voice-reader:state:"`

	// Telegram transport
	TelegramPollTimeout int `envconfig:"TELEGRAM_POLL_TIMEOUT" default:"60"` // seconds

	// Optional WebSocket transport on the HTTP server
	WebSocketEnabled bool `envconfig:"WEBSOCKET_ENABLED" default:"false"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // 0 disables the breaker
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"` // milliseconds

	// Observability configuration
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`   // debug, info, warn, error
	LogPretty         bool   `envconfig:"LOG_PRETTY" default:"false"` // console output for development
	MetricsEnabled    bool   `envconfig:"METRICS_ENABLED" default:"true"`
	GRPCHealthEnabled bool   `envconfig:"GRPC_HEALTH_ENABLED" default:"false"`
	GRPCHealthPort    string `envconfig:"GRPC_HEALTH_PORT" default:"50051"`
}

// Load reads configuration from the environment for the bot server.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	cfg, err := process()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSynthesis loads configuration for one-off synthesis from the command
// line, which needs the TTS key but no bot token.
func LoadSynthesis() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := process()
	if err != nil {
		return nil, err
	}
	if cfg.TTSAPIKey == "" {
		return nil, fmt.Errorf("TS_API_KEY is required")
	}
	if err := cfg.validateTTS(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func process() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.StateBackend = strings.ToLower(strings.TrimSpace(cfg.StateBackend))
	return &cfg, nil
}

// Validate checks the settings required to serve conversations
func (c *Config) Validate() error {
	if c.TTSAPIKey == "" {
		return fmt.Errorf("TS_API_KEY is required")
	}
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TG_BOT_TOKEN is required")
	}
	if err := c.validateTTS(); err != nil {
		return err
	}

	switch c.StateBackend {
	case StateBackendMemory:
	case StateBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STATE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("unsupported STATE_BACKEND %q", c.StateBackend)
	}

	return nil
}

func (c *Config) validateTTS() error {
	if c.MaxChunkLength <= 0 {
		return fmt.Errorf("MAX_CHUNK_LENGTH must be positive, got %d", c.MaxChunkLength)
	}
	if c.TTSTimeout < 0 {
		return fmt.Errorf("TTS_TIMEOUT must not be negative, got %d", c.TTSTimeout)
	}
	return nil
}

// TTSRequestTimeout returns the HTTP timeout for one synthesis request
func (c *Config) TTSRequestTimeout() time.Duration {
	return time.Duration(c.TTSTimeout) * time.Second
}

