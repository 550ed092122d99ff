// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is a registered credential: one identifier bound to one password hash.
type Account struct {
	ID           uuid.UUID // Storage-assigned identifier for the record.
	Identifier   string    // Normalized login string, unique across all accounts.
	PasswordHash string    // Encoded hash carrying algorithm, parameters, salt and digest. Never leaves the core.
	CreatedAt    time.Time // Timestamp of when the account was created.
}

// Public returns a copy of the account without its password hash.
func (a *Account) Public() *Account {
	if a == nil {
		return nil
	}

	return &Account{
		ID:         a.ID,
		Identifier: a.Identifier,
		CreatedAt:  a.CreatedAt,
	}
}

// NormalizeIdentifier trims surrounding whitespace and lower-cases the identifier
// so that "A@X.com " and "a@x.com" name the same account.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
