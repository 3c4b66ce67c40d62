package cmd

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/kursadbilgin/reservation-notifier/internal/composer"
	"github.com/kursadbilgin/reservation-notifier/internal/config"
	"github.com/kursadbilgin/reservation-notifier/internal/domain"
	"github.com/kursadbilgin/reservation-notifier/internal/infra/postgresql"
	infraredis "github.com/kursadbilgin/reservation-notifier/internal/infra/redis"
	"github.com/kursadbilgin/reservation-notifier/internal/observability"
	"github.com/kursadbilgin/reservation-notifier/internal/phone"
	"github.com/kursadbilgin/reservation-notifier/internal/provider"
	"github.com/kursadbilgin/reservation-notifier/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runtime holds the process-wide dependencies shared by every command.
type runtime struct {
	cfg    *config.Config
	logger *zap.Logger

	db    *gorm.DB
	sqlDB *sql.DB
	rdb   *goredis.Client
}

func loadRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger}, nil
}

func (r *runtime) openPostgres() error {
	db, err := postgresql.NewPostgres(r.cfg.DatabaseDSN, postgresql.PoolConfig{
		MaxOpenConns: r.cfg.DBMaxOpenConns,
		MaxIdleConns: r.cfg.DBMaxIdleConns,
	})
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}

	r.db = db
	r.sqlDB = sqlDB
	return nil
}

func (r *runtime) openRedis() error {
	rdb, err := infraredis.NewRedis(r.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	r.rdb = rdb
	return nil
}

func (r *runtime) Close() {
	if r.rdb != nil {
		_ = r.rdb.Close()
	}
	if r.sqlDB != nil {
		_ = r.sqlDB.Close()
	}
	_ = r.logger.Sync()
}

func (r *runtime) composer() (*composer.Composer, error) {
	return composer.New(composer.Config{
		Mode:                 domain.MessageMode(strings.ToLower(strings.TrimSpace(r.cfg.WhatsAppMessageMode))),
		ApprovalTemplate:     r.cfg.WhatsAppApprovalTemplate,
		CancellationTemplate: r.cfg.WhatsAppCancellationTemplate,
		LanguageCode:         r.cfg.WhatsAppTemplateLanguage,
		DefaultBoatName:      r.cfg.DefaultBoatName,
		DefaultLocationLink:  r.cfg.DefaultLocationLink,
	})
}

func (r *runtime) normalizer() *phone.Normalizer {
	return phone.NewNormalizer(r.cfg.PhoneCountryCode)
}

func (r *runtime) provider() (*provider.WhatsAppProvider, error) {
	return provider.NewWhatsAppProvider(provider.WhatsAppConfig{
		BaseURL:       r.cfg.WhatsAppAPIBaseURL,
		APIVersion:    r.cfg.WhatsAppAPIVersion,
		PhoneNumberID: r.cfg.WhatsAppPhoneNumberID,
		AccessToken:   r.cfg.WhatsAppAccessToken,
		Timeout:       r.cfg.WhatsAppTimeout(),
		Logger:        r.logger,
	})
}

// rateLimiter picks the shared Redis window or an in-process limiter. The
// Redis backend requires openRedis to have run.
func (r *runtime) rateLimiter() (ratelimit.RateLimiter, error) {
	switch strings.ToLower(strings.TrimSpace(r.cfg.RateLimiterBackend)) {
	case config.RateLimiterLocal:
		return ratelimit.NewLocalRateLimiter(r.cfg.RateLimitPerSec), nil
	default:
		if r.rdb == nil {
			return nil, fmt.Errorf("redis rate limiter requires a redis connection")
		}
		limiter, err := infraredis.NewRedisRateLimiter(r.rdb, r.cfg.RateLimitPerSec)
		if err != nil {
			return nil, err
		}
		return limiter, nil
	}
}
