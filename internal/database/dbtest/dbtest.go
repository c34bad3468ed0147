// Package dbtest opens migrated SQLite databases for package tests.
package dbtest

import (
	"path/filepath"
	"realestate-platform/internal/database"
	"realestate-platform/internal/models"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a fresh, migrated database in t's temp dir
func New(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.Logger = logger.Default.LogMode(logger.Silent)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with the given role
func CreateUser(t testing.TB, db *gorm.DB, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateProperty inserts an active property owned by ownerID
func CreateProperty(t testing.TB, db *gorm.DB, ownerID, title string) *models.Property {
	t.Helper()
	p := &models.Property{
		UserID:   ownerID,
		Title:    title,
		Price:    decimal.NewFromInt(250000),
		Area:     120,
		Location: "Αθήνα",
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
