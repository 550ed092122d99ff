// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"authcore/internal/domain/entity"
)

// --- Input DTOs ---

// SignupInput defines the data required to create an account.
type SignupInput struct {
	Identifier string
	Password   string
}

// LoginInput defines the data required for an account to log in.
type LoginInput struct {
	Identifier string
	Password   string
}

// --- Output DTOs ---

// SignupOutput returns the newly created account without its password hash.
type SignupOutput struct {
	Account *entity.Account
}

// LoginOutput returns the issued session token.
type LoginOutput struct {
	Token     string
	ExpiresAt time.Time
}

// SessionOutput describes a validated session token.
type SessionOutput struct {
	Identifier string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// AuthUsecase defines the interface for credential authentication.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type AuthUsecase interface {
	Signup(ctx context.Context, input *SignupInput) (*SignupOutput, error)
	Login(ctx context.Context, input *LoginInput) (*LoginOutput, error)
	Authenticate(ctx context.Context, token string) (*SessionOutput, error)
}
