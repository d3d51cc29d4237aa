// Package testutil holds shared helpers for package tests.
package testutil

import (
	"testing"

	"unscored/internal/config"
	"unscored/internal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewTestDB opens a fresh in-memory sqlite archive with the full schema.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		SQLitePath:   ":memory:",
		DBSchemaMode: database.SchemaModeAuto,
	}
	db, err := database.Connect(cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
