// Package apperrors holds the sentinel errors the service layer surfaces to
// the HTTP boundary. Handlers match them with errors.Is and translate them to
// status codes; none of them are fatal to the process.
package apperrors

import "errors"

var (
	// ErrAuthentication covers bad credentials and unusable tokens. The
	// caller may retry with different credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrAuthorization means the caller is known but lacks the permission
	// bits for the operation. Terminal for the request.
	ErrAuthorization = errors.New("permission denied")

	// ErrValidation marks malformed input; the wrapping error carries the
	// offending reason.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing user or content row.
	ErrNotFound = errors.New("resource not found")

	// Token-layer outcomes. Expired tokens are well-formed and the client
	// should request a fresh one; malformed or badly signed tokens are
	// rejected outright; a mismatch means the token is valid but bound to
	// a different account or session.
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenMismatch  = errors.New("token mismatch")
)
