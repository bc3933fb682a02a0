package sqlite

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open creates a GORM *DB backed by a SQLite file, creating its directory if needed.
func Open(path string, conf *gorm.Config) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), conf)
}

// OpenMemory creates a private in-memory SQLite database. The pool is pinned
// to a single connection because every new connection to ":memory:" would
// see its own empty database.
func OpenMemory(conf *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), conf)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
