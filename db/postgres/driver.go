package postgres

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open creates a GORM *DB backed by PostgreSQL through pgx.
func Open(dsn string, conf *gorm.Config) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{DSN: dsn}), conf)
}
