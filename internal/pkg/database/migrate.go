package database

import (
	"strings"

	"github.com/lionelbuh/touchconnectpro/internal/pkg/config"
)

// MigrationSource returns the golang-migrate source and database URLs for the
// configured record store. Each driver has its own migrations directory.
func MigrationSource(cfg *config.Config) (sourceURL, databaseURL string, err error) {
	dsn := strings.TrimSpace(cfg.RecordStoreURL)
	if dsn == "" {
		return "", "", ErrStoreNotConfigured
	}

	switch cfg.RecordStoreDriver {
	case config.StoreDriverMySQL:
		withKey, err := applyMySQLStoreKey(dsn, cfg.RecordStoreKey)
		if err != nil {
			return "", "", err
		}
		databaseURL = "mysql://" + withQueryParam(withKey, "multiStatements=true")
	default:
		databaseURL, err = applyStoreKey(dsn, cfg.RecordStoreKey)
		if err != nil {
			return "", "", err
		}
	}
	return "file://migrations/" + cfg.RecordStoreDriver, databaseURL, nil
}

func withQueryParam(dsn, param string) string {
	if strings.Contains(dsn, param) {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}
