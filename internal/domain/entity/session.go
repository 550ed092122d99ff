package entity

import "time"

// SessionToken is a stateless, signed proof of a successful login.
// It is never persisted; its validity is decided by signature and expiry alone.
type SessionToken struct {
	Token      string    // Serialized, signed token handed to the client.
	Identifier string    // Account identifier the token was issued for.
	Nonce      string    // Random value making every issued token unique.
	IssuedAt   time.Time // Time the token was issued.
	ExpiresAt  time.Time // Token is invalid at and after this instant.
}
