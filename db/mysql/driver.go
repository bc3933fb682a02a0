package mysql

import (
	"fmt"
	"time"

	drv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// NormalizeDSN parses dsn and turns on parseTime with a UTC location, which
// the models need to scan DATETIME columns into time.Time.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := drv.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Open creates a GORM *DB backed by MySQL.
func Open(dsn string, conf *gorm.Config) (*gorm.DB, error) {
	dsn, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.New(mysql.Config{
		DSN:               dsn,
		DefaultStringSize: 256,
	}), conf)
}
