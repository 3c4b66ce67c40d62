package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	RateLimiterRedis = "redis"
	RateLimiterLocal = "local"
)

type Config struct {
	DatabaseDSN     string `env:"DATABASE_DSN,required=true"`
	DBMaxOpenConns  int    `env:"DB_MAX_OPEN_CONNS,default=10"`
	DBMaxIdleConns  int    `env:"DB_MAX_IDLE_CONNS,default=2"`
	RabbitMQURL     string `env:"RABBITMQ_URL,required=true"`
	RedisURL        string `env:"REDIS_URL,required=true"`
	ChangeQueue     string `env:"CHANGE_QUEUE,default=reservation.changes"`

	WhatsAppAccessToken          string `env:"WHATSAPP_ACCESS_TOKEN,required=true"`
	WhatsAppPhoneNumberID        string `env:"WHATSAPP_PHONE_NUMBER_ID,required=true"`
	WhatsAppAPIBaseURL           string `env:"WHATSAPP_API_BASE_URL,default=https://graph.facebook.com"`
	WhatsAppAPIVersion           string `env:"WHATSAPP_API_VERSION,default=v21.0"`
	WhatsAppTimeoutSeconds       int    `env:"WHATSAPP_TIMEOUT_SECONDS,default=10"`
	WhatsAppMessageMode          string `env:"WHATSAPP_MESSAGE_MODE,default=template"`
	WhatsAppApprovalTemplate     string `env:"WHATSAPP_APPROVAL_TEMPLATE,default=rezervasyon_onay"`
	WhatsAppCancellationTemplate string `env:"WHATSAPP_CANCELLATION_TEMPLATE,default=rezervasyon_iptal"`
	WhatsAppTemplateLanguage     string `env:"WHATSAPP_TEMPLATE_LANGUAGE,default=tr"`

	PhoneCountryCode    string `env:"PHONE_COUNTRY_CODE,default=90"`
	DefaultBoatName     string `env:"DEFAULT_BOAT_NAME,default=Tekne"`
	DefaultLocationLink string `env:"DEFAULT_LOCATION_LINK"`

	WorkerConcurrency       int    `env:"WORKER_CONCURRENCY,default=4"`
	RateLimitPerSec         int    `env:"RATE_LIMIT_PER_SEC,default=20"`
	RateLimiterBackend      string `env:"RATE_LIMITER_BACKEND,default=redis"`
	RateLimitMaxWaitSeconds int    `env:"RATE_LIMIT_MAX_WAIT_SECONDS,default=10"`
	DispatchLockTTLSeconds  int    `env:"DISPATCH_LOCK_TTL_SECONDS,default=30"`

	SweepIntervalSeconds  int `env:"SWEEP_INTERVAL_SECONDS,default=60"`
	SweepLimit            int `env:"SWEEP_LIMIT,default=100"`
	SweepMaxAttempts      int `env:"SWEEP_MAX_ATTEMPTS,default=5"`
	SweepBaseDelaySeconds int `env:"SWEEP_BASE_DELAY_SECONDS,default=60"`

	APIPort   int    `env:"API_PORT,default=8080"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

// Load reads an optional .env file and then the process environment.
// Values already present in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.WhatsAppMessageMode)) {
	case "template", "text":
	default:
		return fmt.Errorf("invalid WHATSAPP_MESSAGE_MODE %q", c.WhatsAppMessageMode)
	}

	switch strings.ToLower(strings.TrimSpace(c.RateLimiterBackend)) {
	case RateLimiterRedis, RateLimiterLocal:
	default:
		return fmt.Errorf("invalid RATE_LIMITER_BACKEND %q", c.RateLimiterBackend)
	}

	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	if c.SweepMaxAttempts < 1 {
		return fmt.Errorf("SWEEP_MAX_ATTEMPTS must be positive, got %d", c.SweepMaxAttempts)
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT out of range: %d", c.APIPort)
	}
	// The dispatch lock must outlive a send, or a second replica can re-send
	// while the first is still waiting on the provider.
	if c.DispatchLockTTL() <= c.WhatsAppTimeout() {
		return fmt.Errorf("DISPATCH_LOCK_TTL_SECONDS (%s) must exceed WHATSAPP_TIMEOUT_SECONDS (%s)",
			c.DispatchLockTTL(), c.WhatsAppTimeout())
	}

	return nil
}

func (c *Config) WhatsAppTimeout() time.Duration {
	return secondsOrDefault(c.WhatsAppTimeoutSeconds, 10*time.Second)
}

func (c *Config) RateLimitMaxWait() time.Duration {
	return secondsOrDefault(c.RateLimitMaxWaitSeconds, 10*time.Second)
}

func (c *Config) DispatchLockTTL() time.Duration {
	return secondsOrDefault(c.DispatchLockTTLSeconds, 30*time.Second)
}

func (c *Config) SweepInterval() time.Duration {
	return secondsOrDefault(c.SweepIntervalSeconds, time.Minute)
}

func (c *Config) SweepBaseDelay() time.Duration {
	return secondsOrDefault(c.SweepBaseDelaySeconds, time.Minute)
}

func secondsOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
