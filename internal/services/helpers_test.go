package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"zheer/internal/db"
	"zheer/internal/models"
)

// newTestDB opens an in-memory database seeded with the standard roles.
// Each test gets its own database, keyed by the test name.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.Migrate(gdb))
	require.NoError(t, db.Seed(gdb))
	return gdb
}

func newIdentity(gdb *gorm.DB) *IdentityService {
	tokens := NewTokenServiceWithSecret("test-secret")
	return NewIdentityService(gdb, tokens, NewMailService())
}

// registerUser creates a confirmed account ready to act.
func registerUser(t *testing.T, identity *IdentityService, email, username string) *models.User {
	t.Helper()

	user, err := identity.Register(email, username, "password")
	require.NoError(t, err)
	require.NoError(t, identity.db.Model(user).Update("confirmed", true).Error)
	user.Confirmed = true
	return user
}

// registerUnconfirmed creates an account that has not confirmed yet.
func registerUnconfirmed(t *testing.T, identity *IdentityService, email, username string) *models.User {
	t.Helper()

	user, err := identity.Register(email, username, "password")
	require.NoError(t, err)
	return user
}

// promote moves a user into the named role.
func promote(t *testing.T, gdb *gorm.DB, user *models.User, roleName string) {
	t.Helper()

	var role models.Role
	require.NoError(t, gdb.Where("name = ?", roleName).First(&role).Error)
	require.NoError(t, gdb.Model(user).Update("role_id", role.ID).Error)
	user.RoleID = role.ID
	user.Role = role
}
