package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zheer/internal/apperrors"
	"zheer/internal/models"
)

func TestRegister(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)

	user, err := identity.Register("alice@example.com", "alice", "password")
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.Confirmed)
	assert.NotEmpty(t, user.AvatarHash)
	assert.NotEqual(t, "password", user.PasswordHash)

	// New accounts land in the default role.
	assert.Equal(t, "User", user.Role.Name)
	assert.True(t, user.Can(models.PermissionFollow))
	assert.True(t, user.Can(models.PermissionComment))
	assert.True(t, user.Can(models.PermissionPostArticles))
	assert.False(t, user.Can(models.PermissionModerateComments))
	assert.False(t, user.IsAdministrator())

	// Registration creates the self-follow edge.
	var edge models.Follow
	err = gdb.Where("follower_id = ? AND followed_id = ?", user.ID, user.ID).First(&edge).Error
	require.NoError(t, err)
}

func TestRegisterAdminEmail(t *testing.T) {
	t.Setenv("ADMIN_EMAIL", "boss@example.com")

	gdb := newTestDB(t)
	identity := newIdentity(gdb)

	user, err := identity.Register("boss@example.com", "boss", "password")
	require.NoError(t, err)

	assert.True(t, user.IsAdministrator())
	assert.Equal(t, "Administrator", user.Role.Name)
}

func TestRegisterValidation(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)

	_, err := identity.Register("", "alice", "password")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = identity.Register("a@example.com", "1bad", "password")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = identity.Register("a@example.com", "alice", "short")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRegisterDuplicate(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)

	_, err := identity.Register("alice@example.com", "alice", "password")
	require.NoError(t, err)

	_, err = identity.Register("alice@example.com", "alice2", "password")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = identity.Register("other@example.com", "alice", "password")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAuthenticate(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	user := registerUser(t, identity, "alice@example.com", "alice")

	got, err := identity.Authenticate("alice@example.com", "password")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotZero(t, got.Role.Permissions)

	_, err = identity.Authenticate("alice@example.com", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrAuthentication)

	_, err = identity.Authenticate("nobody@example.com", "password")
	assert.ErrorIs(t, err, apperrors.ErrAuthentication)
}

func TestAPITokenFlow(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	user := registerUser(t, identity, "alice@example.com", "alice")

	token, err := identity.IssueAPIToken(user, "nonce-1", APITokenTTL)
	require.NoError(t, err)

	got, err := identity.AuthenticateToken(token, "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// A token is bound to the session it was issued under.
	_, err = identity.AuthenticateToken(token, "nonce-2")
	assert.ErrorIs(t, err, apperrors.ErrTokenMismatch)

	_, err = identity.AuthenticateToken("garbage", "nonce-1")
	assert.ErrorIs(t, err, apperrors.ErrTokenMalformed)
}

func TestConfirm(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	user := registerUnconfirmed(t, identity, "alice@example.com", "alice")
	other := registerUnconfirmed(t, identity, "bob@example.com", "bob")

	token, err := identity.IssueConfirmationToken(user, ConfirmTokenTTL)
	require.NoError(t, err)

	// Someone else's token does not confirm this account.
	err = identity.Confirm(other, token)
	assert.ErrorIs(t, err, apperrors.ErrTokenMismatch)
	assert.False(t, other.Confirmed)

	require.NoError(t, identity.Confirm(user, token))
	assert.True(t, user.Confirmed)

	reloaded, err := identity.GetUser(user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Confirmed)

	// Confirming twice is harmless.
	require.NoError(t, identity.Confirm(user, token))
}

func TestConfirmExpiredToken(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	user := registerUnconfirmed(t, identity, "alice@example.com", "alice")

	token, err := identity.IssueConfirmationToken(user, -time.Minute)
	require.NoError(t, err)

	err = identity.Confirm(user, token)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
	assert.False(t, user.Confirmed)
}

func TestPasswordReset(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	user := registerUser(t, identity, "alice@example.com", "alice")

	err := identity.RequestPasswordReset("missing@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, identity.RequestPasswordReset("alice@example.com"))

	token, err := identity.IssueResetToken(user, ConfirmTokenTTL)
	require.NoError(t, err)

	_, err = identity.ResetPassword(token, "short")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	got, err := identity.ResetPassword(token, "newpassword")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = identity.Authenticate("alice@example.com", "newpassword")
	require.NoError(t, err)
	_, err = identity.Authenticate("alice@example.com", "password")
	assert.ErrorIs(t, err, apperrors.ErrAuthentication)
}

func TestResetTokenRejectsOtherPurposes(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	user := registerUser(t, identity, "alice@example.com", "alice")

	// A confirmation token must not double as a reset token.
	confirm, err := identity.IssueConfirmationToken(user, ConfirmTokenTTL)
	require.NoError(t, err)
	_, err = identity.DecodeResetToken(confirm)
	assert.ErrorIs(t, err, apperrors.ErrTokenMalformed)

	api, err := identity.IssueAPIToken(user, "nonce", APITokenTTL)
	require.NoError(t, err)
	_, err = identity.DecodeResetToken(api)
	assert.ErrorIs(t, err, apperrors.ErrTokenMalformed)
}

func TestChangePassword(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	user := registerUser(t, identity, "alice@example.com", "alice")

	err := identity.ChangePassword(user, "wrong", "newpassword")
	assert.ErrorIs(t, err, apperrors.ErrAuthentication)

	require.NoError(t, identity.ChangePassword(user, "password", "newpassword"))

	_, err = identity.Authenticate("alice@example.com", "newpassword")
	require.NoError(t, err)
}

func TestEditProfile(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	user := registerUser(t, identity, "alice@example.com", "alice")

	require.NoError(t, identity.EditProfile(user, "Alice", "Shanghai", "about me"))

	reloaded, err := identity.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", reloaded.Name)
	assert.Equal(t, "Shanghai", reloaded.Location)
	assert.Equal(t, "about me", reloaded.AboutMe)
}

func TestEditProfileAdmin(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	user := registerUnconfirmed(t, identity, "alice@example.com", "alice")

	var moderator models.Role
	require.NoError(t, gdb.Where("name = ?", "Moderator").First(&moderator).Error)

	oldHash := user.AvatarHash
	err := identity.EditProfileAdmin(user, AdminProfileEdit{
		Email:     "alice2@example.com",
		Username:  "alice2",
		Confirmed: true,
		RoleID:    moderator.ID,
	})
	require.NoError(t, err)

	reloaded, err := identity.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice2@example.com", reloaded.Email)
	assert.Equal(t, "alice2", reloaded.Username)
	assert.True(t, reloaded.Confirmed)
	assert.Equal(t, moderator.ID, reloaded.RoleID)
	// Avatar tracks the new email.
	assert.NotEqual(t, oldHash, reloaded.AvatarHash)

	err = identity.EditProfileAdmin(user, AdminProfileEdit{
		Email:    "alice2@example.com",
		Username: "alice2",
		RoleID:   999,
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPing(t *testing.T) {
	gdb := newTestDB(t)
	identity := newIdentity(gdb)
	user := registerUser(t, identity, "alice@example.com", "alice")

	stale := time.Now().Add(-time.Hour)
	require.NoError(t, gdb.Model(user).Update("last_seen", stale).Error)

	require.NoError(t, identity.Ping(user))

	reloaded, err := identity.GetUser(user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.LastSeen.After(stale))
}
