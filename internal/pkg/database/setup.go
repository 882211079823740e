package database

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lionelbuh/touchconnectpro/app/models"
	"github.com/lionelbuh/touchconnectpro/internal/pkg/config"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var ErrStoreNotConfigured = errors.New("RECORD_STORE_URL is not configured")

// Setup opens the record store and migrates the tables this service owns.
// The ideas table belongs to the onboarding flow and is never migrated here.
func Setup(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err == nil {
			if err := db.AutoMigrate(&models.BillingWebhookEvent{}); err != nil {
				return nil, fmt.Errorf("migrate billing_webhook_events: %w", err)
			}
			return db, nil
		}

		log.Warnf("Failed to connect to record store (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, err
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	dsn := strings.TrimSpace(cfg.RecordStoreURL)
	if dsn == "" {
		return nil, ErrStoreNotConfigured
	}

	switch cfg.RecordStoreDriver {
	case config.StoreDriverMySQL:
		// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
		withKey, err := applyMySQLStoreKey(dsn, cfg.RecordStoreKey)
		if err != nil {
			return nil, err
		}
		return mysql.New(mysql.Config{
			DSN:                       withKey,
			DefaultStringSize:         256,
			SkipInitializeWithVersion: false,
		}), nil
	default:
		withKey, err := applyStoreKey(dsn, cfg.RecordStoreKey)
		if err != nil {
			return nil, err
		}
		return postgres.New(postgres.Config{
			DSN: withKey,
			// Supabase's pooler runs in transaction mode.
			PreferSimpleProtocol: true,
		}), nil
	}
}

// applyStoreKey injects the record store key as the connection password when
// the URL does not already carry one.
func applyStoreKey(dsn, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid RECORD_STORE_URL: %w", err)
	}
	if u.User == nil {
		return "", errors.New("RECORD_STORE_URL must include a user when RECORD_STORE_KEY is set")
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		return dsn, nil
	}
	u.User = url.UserPassword(u.User.Username(), key)
	return u.String(), nil
}

// applyMySQLStoreKey is applyStoreKey for go-sql-driver DSNs.
func applyMySQLStoreKey(dsn, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return dsn, nil
	}
	parsed, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid RECORD_STORE_URL: %w", err)
	}
	if parsed.User == "" {
		return "", errors.New("RECORD_STORE_URL must include a user when RECORD_STORE_KEY is set")
	}
	if parsed.Passwd != "" {
		return dsn, nil
	}
	parsed.Passwd = key
	return parsed.FormatDSN(), nil
}
