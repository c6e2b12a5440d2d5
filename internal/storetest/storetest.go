// Package storetest opens throwaway migrated databases for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"workshop-scheduler/config"
	"workshop-scheduler/internal/db"
)

// Open returns a migrated sqlite database private to t. The database lives in
// a file under t.TempDir, so it survives connections that database/sql
// discards, for example after a context deadline.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := db.Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "workshop.db") + "?_foreign_keys=1&_busy_timeout=5000",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}
