package middleware

import (
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"zheer/internal/apperrors"
	"zheer/internal/models"
	"zheer/internal/services"
)

const (
	ActorKey     = "actor"
	TokenUsedKey = "token_used"

	// NonceHeader lets non-browser clients present their session nonce
	// explicitly instead of via the cookie session.
	NonceHeader = "X-Session-Nonce"

	nonceSessionKey = "session_nonce"
)

// SessionNonce guarantees every client session carries a stable random
// nonce. API tokens are bound to it at issuance, so a stolen token cannot be
// replayed from a different session.
func SessionNonce() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if session.Get(nonceSessionKey) == nil {
			session.Set(nonceSessionKey, uuid.NewString())
			if err := session.Save(); err != nil {
				log.Printf("Failed to save session nonce: %v", err)
			}
		}
		c.Next()
	}
}

// RequestNonce returns the nonce this client presented: the explicit header
// wins, else the cookie session value.
func RequestNonce(c *gin.Context) string {
	if n := c.GetHeader(NonceHeader); n != "" {
		return n
	}
	session := sessions.Default(c)
	if v, ok := session.Get(nonceSessionKey).(string); ok {
		return v
	}
	return ""
}

// Authenticate builds the per-request authentication context. It accepts
// either `Basic email:password` (an empty password means the email field
// carries a token instead) or `Bearer token`, and stores the resolved actor
// on the gin context. A missing header resolves to the anonymous actor; a
// bad credential aborts with 401.
func Authenticate(identity *services.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(ActorKey, models.AnonymousUser{})
			c.Next()
			return
		}

		var (
			user      *models.User
			tokenUsed bool
			err       error
		)
		switch {
		case strings.HasPrefix(header, "Bearer "):
			token := strings.TrimPrefix(header, "Bearer ")
			user, err = identity.AuthenticateToken(token, RequestNonce(c))
			tokenUsed = true
		case strings.HasPrefix(header, "Basic "):
			raw, decErr := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
			if decErr != nil {
				err = apperrors.ErrAuthentication
				break
			}
			emailOrToken, password, _ := strings.Cut(string(raw), ":")
			if emailOrToken == "" {
				c.Set(ActorKey, models.AnonymousUser{})
				c.Next()
				return
			}
			if password == "" {
				user, err = identity.AuthenticateToken(emailOrToken, RequestNonce(c))
				tokenUsed = true
			} else {
				user, err = identity.Authenticate(emailOrToken, password)
			}
		default:
			err = apperrors.ErrAuthentication
		}

		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "error": authMessage(err)})
			return
		}

		if perr := identity.Ping(user); perr != nil {
			log.Printf("Failed to update last_seen for user %d: %v", user.ID, perr)
		}
		c.Set(ActorKey, user)
		c.Set(TokenUsedKey, tokenUsed)
		c.Next()
	}
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired):
		return "token expired, please request a new one"
	case errors.Is(err, apperrors.ErrTokenMismatch):
		return "token does not match this session"
	default:
		return "Invalid credentials"
	}
}

// CurrentActor returns the caller's capability surface; anonymous when the
// request carried no usable credentials.
func CurrentActor(c *gin.Context) models.Actor {
	if v, ok := c.Get(ActorKey); ok {
		if a, ok := v.(models.Actor); ok {
			return a
		}
	}
	return models.AnonymousUser{}
}

// CurrentUser returns the authenticated user, or nil for anonymous callers.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ActorKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// TokenUsed reports whether the caller authenticated with a token rather
// than a password. Token issuance refuses such callers.
func TokenUsed(c *gin.Context) bool {
	return c.GetBool(TokenUsedKey)
}

// AuthRequired rejects anonymous callers.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentActor(c).IsAnonymous() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "error": "Invalid credentials"})
			return
		}
		c.Next()
	}
}

// RequireConfirmed rejects signed-in but unconfirmed accounts.
func RequireConfirmed() gin.HandlerFunc {
	return func(c *gin.Context) {
		if u := CurrentUser(c); u != nil && !u.Confirmed {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "error": "unconfirmed account"})
			return
		}
		c.Next()
	}
}

// PermissionRequired gates a route on a permission mask; every bit must be
// present.
func PermissionRequired(mask uint8) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentActor(c).Can(mask) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": http.StatusUnauthorized, "error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

// AdminRequired gates a route on the administrator bit.
func AdminRequired() gin.HandlerFunc {
	return PermissionRequired(models.PermissionAdminister)
}
