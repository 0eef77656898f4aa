package services

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gorm.io/gorm"

	"zheer/internal/apperrors"
	"zheer/internal/models"
	"zheer/internal/utils"
)

const (
	// APITokenTTL is the lifetime of a bearer token for API auth.
	APITokenTTL = 24 * time.Hour
	// ConfirmTokenTTL is the lifetime of confirmation and reset tokens.
	ConfirmTokenTTL = time.Hour

	minPasswordLen = 6
)

// Usernames start with a letter (latin or CJK) and continue with letters,
// digits, underscores or dots.
var usernameRe = regexp.MustCompile(`^[A-Za-z一-龥][A-Za-z0-9_.一-龥]*$`)

// IdentityService resolves callers from credentials or tokens, registers and
// confirms accounts, and mints the three token flavors (confirmation, API
// auth, password reset) on top of the shared codec.
type IdentityService struct {
	db     *gorm.DB
	tokens *TokenService
	mail   *MailService
}

func NewIdentityService(db *gorm.DB, tokens *TokenService, mail *MailService) *IdentityService {
	return &IdentityService{db: db, tokens: tokens, mail: mail}
}

// Register creates a new account: role assignment (admin email gets the
// full-permission role, everyone else the default role), avatar hash
// derivation and the mandatory self-follow edge all happen in one
// transaction. A confirmation mail is sent afterwards; mail failure never
// fails the registration.
func (s *IdentityService) Register(email, username, password string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", apperrors.ErrValidation)
	}
	if !usernameRe.MatchString(username) {
		return nil, fmt.Errorf("%w: invalid username", apperrors.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLen)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		MemberSince:  now,
		LastSeen:     now,
	}
	user.SetEmail(email)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if email != "" && email == os.Getenv("ADMIN_EMAIL") {
			if err := tx.Where("permissions = ?", 0xff).First(&role).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Where("is_default = ?", true).First(&role).Error; err != nil {
				return err
			}
		}
		user.RoleID = role.ID
		user.Role = role

		if err := tx.Create(user).Error; err != nil {
			return err
		}
		// Mandatory self-edge: the feed query then covers the user's own
		// posts with no special case.
		return tx.Create(&models.Follow{FollowerID: user.ID, FollowedID: user.ID}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: email or username already registered", apperrors.ErrValidation)
		}
		return nil, err
	}

	if token, terr := s.IssueConfirmationToken(user, ConfirmTokenTTL); terr == nil {
		s.mail.SendConfirmationEmail(user.Email, token)
	}

	return user, nil
}

// GetUser loads a user with their role.
func (s *IdentityService) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Role").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", apperrors.ErrNotFound, id)
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate resolves a caller from an email/password pair.
func (s *IdentityService) Authenticate(email, password string) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Role").Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAuthentication
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.ErrAuthentication
	}
	return &user, nil
}

// AuthenticateToken resolves a caller from a bearer token. The nonce embedded
// at issuance must equal the nonce the client presents now; this binds a
// token to one client session so it cannot be replayed from another.
func (s *IdentityService) AuthenticateToken(token, nonce string) (*models.User, error) {
	payload, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	id, ok := ClaimUint(payload, "id")
	if !ok {
		return nil, fmt.Errorf("%w: missing id claim", apperrors.ErrTokenMalformed)
	}
	embedded, _ := ClaimString(payload, "nonce")
	if embedded == "" || embedded != nonce {
		return nil, fmt.Errorf("%w: token is bound to another session", apperrors.ErrTokenMismatch)
	}

	var user models.User
	if err := s.db.Preload("Role").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAuthentication
		}
		return nil, err
	}
	return &user, nil
}

// IssueAPIToken mints a bearer token bound to the given session nonce.
func (s *IdentityService) IssueAPIToken(user *models.User, nonce string, ttl time.Duration) (string, error) {
	return s.tokens.Issue(map[string]interface{}{"id": user.ID, "nonce": nonce}, ttl)
}

// IssueConfirmationToken mints an account confirmation token.
func (s *IdentityService) IssueConfirmationToken(user *models.User, ttl time.Duration) (string, error) {
	return s.tokens.Issue(map[string]interface{}{"confirm": user.ID}, ttl)
}

// Confirm marks the account confirmed when the token's confirm claim names
// this user. A token for a different account yields ErrTokenMismatch, which
// callers surface differently from expired or malformed tokens.
func (s *IdentityService) Confirm(user *models.User, token string) error {
	payload, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}
	id, ok := ClaimUint(payload, "confirm")
	if !ok || id != user.ID {
		return fmt.Errorf("%w: token does not match this account", apperrors.ErrTokenMismatch)
	}
	if user.Confirmed {
		return nil
	}
	if err := s.db.Model(user).Update("confirmed", true).Error; err != nil {
		return err
	}
	user.Confirmed = true
	return nil
}

// SendConfirmation re-sends the confirmation mail for an unconfirmed account.
func (s *IdentityService) SendConfirmation(user *models.User) error {
	token, err := s.IssueConfirmationToken(user, ConfirmTokenTTL)
	if err != nil {
		return err
	}
	s.mail.SendConfirmationEmail(user.Email, token)
	return nil
}

// IssueResetToken mints a password reset token for the account with the
// given email. The payload uses fixed keys {purpose, id}.
func (s *IdentityService) IssueResetToken(user *models.User, ttl time.Duration) (string, error) {
	return s.tokens.Issue(map[string]interface{}{"purpose": "reset", "id": user.ID}, ttl)
}

// DecodeResetToken verifies a reset token and returns the target user id.
func (s *IdentityService) DecodeResetToken(token string) (uint, error) {
	payload, err := s.tokens.Verify(token)
	if err != nil {
		return 0, err
	}
	if purpose, _ := ClaimString(payload, "purpose"); purpose != "reset" {
		return 0, fmt.Errorf("%w: not a reset token", apperrors.ErrTokenMalformed)
	}
	id, ok := ClaimUint(payload, "id")
	if !ok {
		return 0, fmt.Errorf("%w: missing id claim", apperrors.ErrTokenMalformed)
	}
	return id, nil
}

// RequestPasswordReset mails a reset link to the account with the given
// email. A missing account is reported to the caller as ErrNotFound; the
// boundary decides whether to reveal that.
func (s *IdentityService) RequestPasswordReset(email string) error {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: no account for that email", apperrors.ErrNotFound)
		}
		return err
	}
	token, err := s.IssueResetToken(&user, ConfirmTokenTTL)
	if err != nil {
		return err
	}
	s.mail.SendPasswordResetEmail(user.Email, token)
	return nil
}

// ResetPassword sets a new password for the account a reset token names.
func (s *IdentityService) ResetPassword(token, newPassword string) (*models.User, error) {
	id, err := s.DecodeResetToken(token)
	if err != nil {
		return nil, err
	}
	if len(newPassword) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLen)
	}
	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(user).Update("password_hash", hash).Error; err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	return user, nil
}

// ChangePassword verifies the old password before setting the new one.
func (s *IdentityService) ChangePassword(user *models.User, oldPassword, newPassword string) error {
	if !utils.CheckPasswordHash(oldPassword, user.PasswordHash) {
		return apperrors.ErrAuthentication
	}
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLen)
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.db.Model(user).Update("password_hash", hash).Error; err != nil {
		return err
	}
	user.PasswordHash = hash
	return nil
}

// Ping touches last_seen. Called on every authenticated request.
func (s *IdentityService) Ping(user *models.User) error {
	now := time.Now()
	if err := s.db.Model(user).Update("last_seen", now).Error; err != nil {
		return err
	}
	user.LastSeen = now
	return nil
}

// EditProfile updates the self-editable profile fields.
func (s *IdentityService) EditProfile(user *models.User, name, location, aboutMe string) error {
	updates := map[string]interface{}{
		"name":     name,
		"location": location,
		"about_me": aboutMe,
	}
	if err := s.db.Model(user).Updates(updates).Error; err != nil {
		return err
	}
	user.Name = name
	user.Location = location
	user.AboutMe = aboutMe
	return nil
}

// AdminProfileEdit is the administrator's profile edit: email (with
// synchronous avatar recompute), username, confirmed flag and role, committed
// in one transaction.
type AdminProfileEdit struct {
	Email     string
	Username  string
	Confirmed bool
	RoleID    uint
}

func (s *IdentityService) EditProfileAdmin(user *models.User, edit AdminProfileEdit) error {
	if edit.Email == "" || !usernameRe.MatchString(edit.Username) {
		return fmt.Errorf("%w: invalid email or username", apperrors.ErrValidation)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if err := tx.First(&role, edit.RoleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: role %d", apperrors.ErrNotFound, edit.RoleID)
			}
			return err
		}

		user.SetEmail(edit.Email)
		user.Username = edit.Username
		user.Confirmed = edit.Confirmed
		user.RoleID = role.ID
		user.Role = role

		updates := map[string]interface{}{
			"email":       user.Email,
			"avatar_hash": user.AvatarHash,
			"username":    user.Username,
			"confirmed":   user.Confirmed,
			"role_id":     user.RoleID,
		}
		return tx.Model(user).Updates(updates).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: email or username already taken", apperrors.ErrValidation)
		}
		return err
	}
	return nil
}
