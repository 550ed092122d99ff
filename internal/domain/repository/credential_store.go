// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"authcore/internal/domain/entity"
)

// Domain-specific errors for credential persistence.
// This allows the application layer to handle specific outcomes without depending on database-specific errors.
var (
	// ErrAccountExists is returned when an account with the same identifier is already stored.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound is returned when no account matches the identifier.
	ErrAccountNotFound = errors.New("account not found")
)

// CredentialStore defines the persistence operations the authentication core depends on.
type CredentialStore interface {
	// InsertIfAbsent atomically creates an account unless one with the same identifier exists.
	// Two concurrent calls with the same identifier never both succeed; the loser gets ErrAccountExists.
	InsertIfAbsent(ctx context.Context, identifier, passwordHash string) (*entity.Account, error)

	// FindByIdentifier retrieves an account by its normalized identifier, or ErrAccountNotFound.
	FindByIdentifier(ctx context.Context, identifier string) (*entity.Account, error)
}
