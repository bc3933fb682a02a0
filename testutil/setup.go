package testutil

import (
	"testing"

	"github.com/kasuganosora/magicwardrobe/cache"
	"github.com/kasuganosora/magicwardrobe/cache/local"
	"github.com/kasuganosora/magicwardrobe/config"
	dbadapter "github.com/kasuganosora/magicwardrobe/db"
	"github.com/kasuganosora/magicwardrobe/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates a private in-memory SQLite DB and runs AutoMigrate.
// It requires no external services and is safe to use in parallel tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode: dbadapter.ModeMemory,
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SetupTestCache creates a LocalCache (no Redis required).
func SetupTestCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(cache.CacheConfig{}) // empty RedisAddr → LocalCache
	require.NoError(t, err, "SetupTestCache: NewCache")
	if lc, ok := c.(*local.LocalCache); ok {
		t.Cleanup(lc.Close)
	}
	return c
}

// CreateAccount inserts an account and returns its id.
func CreateAccount(t *testing.T, db *gorm.DB, username string) int64 {
	t.Helper()
	acc := &model.Account{Username: username, PasswordHash: "x", Status: 1}
	require.NoError(t, db.Create(acc).Error, "CreateAccount")
	return acc.ID
}
