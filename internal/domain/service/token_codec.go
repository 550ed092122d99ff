package service

import (
	"errors"
	"time"

	"authcore/internal/domain/entity"
)

// Token validation failure kinds. Callers treat all of them as "unauthenticated";
// the distinction only feeds logs.
var (
	ErrTokenMalformed        = errors.New("session token is malformed")
	ErrTokenExpired          = errors.New("session token has expired")
	ErrTokenInvalidSignature = errors.New("session token signature is invalid")
)

// TokenCodec issues and validates signed, expiring session tokens.
type TokenCodec interface {
	// Issue creates a new session token for the given account identifier.
	Issue(identifier string) (*entity.SessionToken, error)

	// Validate checks signature and expiry and returns the decoded token.
	// It fails with one of ErrTokenMalformed, ErrTokenExpired or ErrTokenInvalidSignature.
	Validate(token string) (*entity.SessionToken, error)

	// TTL returns the lifetime of issued tokens.
	TTL() time.Duration
}
