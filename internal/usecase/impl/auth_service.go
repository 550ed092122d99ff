// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/fx"

	"authcore/config"
	deliverycontext "authcore/internal/delivery/context"
	"authcore/internal/domain/entity"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/domain/repository"
	"authcore/internal/domain/service"
	"authcore/internal/errors"
	"authcore/internal/usecase"
)

const (
	defaultMinPasswordLength = 8
	defaultMaxPasswordLength = 128

	// identifierRules limits identifiers to email-shaped strings that fit the accounts column.
	identifierRules = "required,email,max=320"
)

// rehashChecker is implemented by hashers that can tell when a stored hash was
// produced with outdated parameters.
type rehashChecker interface {
	NeedsRehash(encodedHash string) bool
}

// authService implements the AuthUsecase interface.
// It holds no mutable state; concurrent calls are independent.
type authService struct {
	store             repository.CredentialStore
	hasher            service.PasswordHasher
	codec             service.TokenCodec
	validate          *validator.Validate
	minPasswordLength int
	maxPasswordLength int
	logger            *slog.Logger
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	Store  repository.CredentialStore
	Hasher service.PasswordHasher
	Codec  service.TokenCodec
	Config *config.Config
	Logger *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	minLen, maxLen := defaultMinPasswordLength, defaultMaxPasswordLength
	if params.Config != nil && params.Config.Auth != nil {
		if params.Config.Auth.MinPasswordLength > 0 {
			minLen = params.Config.Auth.MinPasswordLength
		}
		if params.Config.Auth.MaxPasswordLength > 0 {
			maxLen = params.Config.Auth.MaxPasswordLength
		}
	}

	return &authService{
		store:             params.Store,
		hasher:            params.Hasher,
		codec:             params.Codec,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		minPasswordLength: minLen,
		maxPasswordLength: maxLen,
		logger:            params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Signup creates an account. Uniqueness is decided by the store's atomic insert,
// never by a prior lookup.
func (srv *authService) Signup(ctx context.Context, input *usecase.SignupInput) (*usecase.SignupOutput, error) {
	identifier := entity.NormalizeIdentifier(input.Identifier)
	srv.log(ctx).Debug("Starting signup", slog.String("identifier", identifier))

	if err := srv.checkIdentifier(identifier); err != nil {
		return nil, err
	}
	if err := srv.checkPassword(input.Password); err != nil {
		return nil, err
	}

	hash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	account, err := srv.store.InsertIfAbsent(ctx, identifier, hash)
	if err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			srv.log(ctx).Info("Signup rejected, identifier taken", slog.String("identifier", identifier))

			return nil, domainerrors.ErrDuplicateAccount.WrapMessage("signup failed")
		}

		srv.log(ctx).Error("Signup failed", slog.String("identifier", identifier), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to insert account")
	}

	srv.log(ctx).Info("Account created", slog.String("identifier", identifier), slog.String("accountID", account.ID.String()))

	return &usecase.SignupOutput{Account: account.Public()}, nil
}

// Login verifies the credentials and issues a session token. An unknown
// identifier is verified against the dummy hash so that both failure paths cost
// the same and return the same error.
func (srv *authService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	identifier := entity.NormalizeIdentifier(input.Identifier)
	srv.log(ctx).Debug("Starting login", slog.String("identifier", identifier))

	encodedHash := srv.hasher.DummyHash()
	known := false

	account, err := srv.store.FindByIdentifier(ctx, identifier)
	switch {
	case err == nil:
		encodedHash = account.PasswordHash
		known = true
	case errors.Is(err, repository.ErrAccountNotFound):
	default:
		srv.log(ctx).Error("Login failed", slog.String("identifier", identifier), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to find account")
	}

	matched := srv.hasher.Verify(input.Password, encodedHash)
	if !known || !matched {
		srv.log(ctx).Warn("Login failed", slog.String("identifier", identifier), slog.Bool("knownAccount", known))

		return nil, domainerrors.ErrInvalidCredentials.WrapMessage("login failed")
	}

	if checker, ok := srv.hasher.(rehashChecker); ok && checker.NeedsRehash(encodedHash) {
		srv.log(ctx).Info("Password hash uses outdated parameters", slog.String("identifier", identifier))
	}

	session, err := srv.codec.Issue(identifier)
	if err != nil {
		srv.log(ctx).Error("Login failed", slog.String("identifier", identifier), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to issue session token")
	}

	srv.log(ctx).Debug("Logged in successfully", slog.String("identifier", identifier))

	return &usecase.LoginOutput{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Authenticate validates a session token. Every failure kind maps to
// Unauthenticated; the kind only reaches the logs.
func (srv *authService) Authenticate(ctx context.Context, token string) (*usecase.SessionOutput, error) {
	if token == "" {
		return nil, domainerrors.ErrUnauthenticated.WrapMessage("missing session token")
	}

	session, err := srv.codec.Validate(token)
	if err != nil {
		srv.log(ctx).Info("Session token rejected", slog.String("reason", tokenFailureReason(err)))

		return nil, domainerrors.ErrUnauthenticated.WrapMessage("invalid session token")
	}

	return &usecase.SessionOutput{
		Identifier: session.Identifier,
		IssuedAt:   session.IssuedAt,
		ExpiresAt:  session.ExpiresAt,
	}, nil
}

func (srv *authService) checkIdentifier(identifier string) error {
	if err := srv.validate.Var(identifier, identifierRules); err != nil {
		return domainerrors.ErrInvalidInput.WithDetails("identifier must be a valid email address")
	}

	return nil
}

// checkPassword measures length in characters, not bytes.
func (srv *authService) checkPassword(password string) error {
	length := utf8.RuneCountInString(password)

	if length < srv.minPasswordLength {
		return domainerrors.ErrInvalidInput.WithDetails(
			fmt.Sprintf("password must be at least %d characters", srv.minPasswordLength))
	}
	if length > srv.maxPasswordLength {
		return domainerrors.ErrInvalidInput.WithDetails(
			fmt.Sprintf("password must be at most %d characters", srv.maxPasswordLength))
	}

	return nil
}

func tokenFailureReason(err error) string {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return "expired"
	case errors.Is(err, service.ErrTokenInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, service.ErrTokenMalformed):
		return "malformed"
	default:
		return "unknown"
	}
}
