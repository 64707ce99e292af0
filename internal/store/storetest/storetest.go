// Package storetest provides an isolated in-memory database for tests.
package storetest

import (
	"sync/atomic"
	"testing"

	"github.com/hustariz/rascarobingo/internal/database"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a fresh in-memory SQLite database with the schema migrated.
// It is pinned to one connection so every query sees the same memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// FailWrites makes every create/update/delete against table fail with err
// once the returned arm func has been called.
func FailWrites(t testing.TB, db *gorm.DB, table string, err error) (arm func()) {
	t.Helper()

	var armed atomic.Bool
	fail := func(tx *gorm.DB) {
		if armed.Load() && tx.Statement.Schema != nil && tx.Statement.Schema.Table == table {
			_ = tx.AddError(err)
		}
	}
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("storetest:fail_create_"+table, fail))
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("storetest:fail_update_"+table, fail))
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register("storetest:fail_delete_"+table, fail))
	return func() { armed.Store(true) }
}
