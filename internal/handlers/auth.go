package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"zheer/internal/apperrors"
	"zheer/internal/middleware"
	"zheer/internal/services"
)

type AuthHandler struct {
	identity *services.IdentityService
}

func NewAuthHandler(identity *services.IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

// Register creates a new account and sends the confirmation mail.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	user, err := h.identity.Register(req.Email, req.Username, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userJSON(user))
}

// Token mints a fresh API token bound to the caller's session nonce. Only
// password-authenticated callers may mint one: a request that itself
// authenticated with a token is refused, so tokens cannot renew themselves
// indefinitely.
func (h *AuthHandler) Token(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil || middleware.TokenUsed(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"status": http.StatusUnauthorized,
			"error":  "Invalid credentials when you get token",
		})
		return
	}

	token, err := h.identity.IssueAPIToken(user, middleware.RequestNonce(c), services.APITokenTTL)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expiration": int(services.APITokenTTL.Seconds()),
	})
}

// Confirm redeems a confirmation token for the signed-in account.
func (h *AuthHandler) Confirm(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.identity.Confirm(user, c.Param("token")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmed": true})
}

// ResendConfirmation mails a fresh confirmation token.
func (h *AuthHandler) ResendConfirmation(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user.Confirmed {
		c.JSON(http.StatusOK, gin.H{"message": "account already confirmed"})
		return
	}
	if err := h.identity.SendConfirmation(user); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "confirmation email sent"})
}

// ForgotPassword mails a reset link. Whether the account exists is not
// revealed to the caller.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	if err := h.identity.RequestPasswordReset(req.Email); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the account exists, a reset email has been sent"})
}

// ResetPassword redeems a reset token for a new password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	if _, err := h.identity.ResetPassword(req.Token, req.Password); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated, please sign in"})
}

// ChangePassword rotates the password for the signed-in account.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.identity.ChangePassword(user, req.OldPassword, req.NewPassword); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// EditProfile updates the caller's own profile fields.
func (h *AuthHandler) EditProfile(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Location string `json:"location"`
		AboutMe  string `json:"about_me"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.identity.EditProfile(user, req.Name, req.Location, req.AboutMe); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, userJSON(user))
}

// EditProfileAdmin lets an administrator edit any account, including email
// (avatar hash follows), confirmation state and role.
func (h *AuthHandler) EditProfileAdmin(c *gin.Context) {
	id, ok := paramUint(c, "id")
	if !ok {
		abortWithError(c, apperrors.ErrNotFound)
		return
	}
	var req struct {
		Email     string `json:"email"`
		Username  string `json:"username"`
		Confirmed bool   `json:"confirmed"`
		RoleID    uint   `json:"role_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}

	user, err := h.identity.GetUser(id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	edit := services.AdminProfileEdit{
		Email:     req.Email,
		Username:  req.Username,
		Confirmed: req.Confirmed,
		RoleID:    req.RoleID,
	}
	if err := h.identity.EditProfileAdmin(user, edit); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, userJSON(user))
}
