package services

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"zheer/internal/apperrors"
)

// TokenService signs and verifies compact, self-contained, expiring tokens.
// It is payload-agnostic: callers supply the claim map and interpret it.
// Account confirmation, API auth and password reset all share this codec with
// different payload shapes.
type TokenService struct {
	secret []byte
}

func NewTokenService() *TokenService {
	secret := os.Getenv("SECRET_KEY")
	if secret == "" {
		secret = "secret_key_change_me"
	}
	return &TokenService{secret: []byte(secret)}
}

// NewTokenServiceWithSecret builds a codec with an explicit secret.
func NewTokenServiceWithSecret(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Issue signs payload into a token expiring after ttl.
func (s *TokenService) Issue(payload map[string]interface{}, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{}
	for k, v := range payload {
		claims[k] = v
	}
	now := time.Now()
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and expiry and returns the embedded payload.
// Failures are distinguished: an expired but well-formed token yields
// apperrors.ErrTokenExpired (the caller may ask for a fresh one), a bad
// signature yields apperrors.ErrTokenSignature, and anything unparseable
// yields apperrors.ErrTokenMalformed.
func (s *TokenService) Verify(tokenStr string) (map[string]interface{}, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", apperrors.ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %v", apperrors.ErrTokenSignature, err)
		default:
			return nil, fmt.Errorf("%w: %v", apperrors.ErrTokenMalformed, err)
		}
	}
	if !token.Valid {
		return nil, apperrors.ErrTokenMalformed
	}

	payload := map[string]interface{}(claims)
	delete(payload, "iat")
	delete(payload, "exp")
	return payload, nil
}

// ClaimUint reads a numeric claim. JSON round-trips numbers as float64, so
// both forms are accepted.
func ClaimUint(payload map[string]interface{}, key string) (uint, bool) {
	switch v := payload[key].(type) {
	case float64:
		return uint(v), true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case uint:
		return v, true
	default:
		return 0, false
	}
}

// ClaimString reads a string claim.
func ClaimString(payload map[string]interface{}, key string) (string, bool) {
	v, ok := payload[key].(string)
	return v, ok
}
