// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/learnhub/engine/internal/models"
	"github.com/learnhub/engine/pkg/database"
	"github.com/learnhub/engine/pkg/logger"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB returns an isolated in-memory database with every model migrated.
// A single connection keeps the shared-cache database alive and serializes
// transactions the way row locks would.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	logger.Replace(zap.NewNop())

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(database.Options{}))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}
