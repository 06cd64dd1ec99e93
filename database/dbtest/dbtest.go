// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"stocks-simulator/config"
	"stocks-simulator/database"
)

// Open returns a migrated sqlite database in a temporary directory.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := config.OpenDB(config.Database{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "finance.db"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
