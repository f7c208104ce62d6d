// internal/database/migrate_test.go
package database

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nomadbitcoin/softlaw-market/internal/models"
)

// The schema must migrate on sqlite as well as Postgres; identifiers are
// assigned by the BeforeCreate hook, not by a database default.
func TestMigrateOnSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))

	user := &models.User{
		Username: "migrator",
		Email:    "migrator@example.com",
		UserType: models.UserTypeCreator,
	}
	require.NoError(t, db.Create(user).Error)
	assert.NotEqual(t, uuid.Nil, user.ID)
}
