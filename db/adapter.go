package db

import (
	"fmt"

	"github.com/kasuganosora/magicwardrobe/config"
	dbmysql "github.com/kasuganosora/magicwardrobe/db/mysql"
	dbpostgres "github.com/kasuganosora/magicwardrobe/db/postgres"
	dbsqlite "github.com/kasuganosora/magicwardrobe/db/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	ModeMemory   = "memory"
	ModeSQLite   = "sqlite"
	ModeMySQL    = "mysql"
	ModePostgres = "postgres"
)

// Open returns a *gorm.DB for the configured database mode. Server modes get
// the configured connection pool; SQLite modes manage their own.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	conf := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var (
		gdb *gorm.DB
		err error
	)
	switch cfg.Mode {
	case ModeMemory:
		return dbsqlite.OpenMemory(conf)
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath, conf)
	case ModeMySQL:
		gdb, err = dbmysql.Open(cfg.MySQLDSN, conf)
	case ModePostgres:
		gdb, err = dbpostgres.Open(cfg.PostgresDSN, conf)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", cfg.Mode, err)
	}
	if err := configurePool(gdb, cfg); err != nil {
		return nil, err
	}
	return gdb, nil
}

func configurePool(gdb *gorm.DB, cfg config.DatabaseConfig) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("db: pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	sqlDB.SetConnMaxLifetime(cfg.MaxLife)
	return nil
}
