// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"directchat/internal/database"
	"directchat/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewTestDB opens a private in-memory SQLite database with the full schema.
// The pool is capped at one connection because every new connection to
// ":memory:" would see a different, empty database.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:directchat_test_%d?mode=memory&cache=private&_foreign_keys=on", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts a user with a completed profile. An empty username leaves it unset.
func CreateUser(t testing.TB, db *gorm.DB, id, username string) *models.User {
	t.Helper()

	user := &models.User{
		ID:                id,
		Email:             id + "@example.com",
		Status:            models.StatusOffline,
		IsProfileComplete: true,
		LastSeen:          time.Now().UTC(),
	}
	if username != "" {
		user.Username = &username
		display := "User " + username
		user.DisplayName = &display
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
