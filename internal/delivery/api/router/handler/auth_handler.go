// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"authcore/internal/delivery/api/middleware"
	"authcore/internal/delivery/api/response"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/errors"
	"authcore/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC usecase.AuthUsecase
	Logger *slog.Logger
}

// AuthHandler holds dependencies for signup, login and session handlers.
type AuthHandler struct {
	authUC usecase.AuthUsecase
	logger *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler.
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		authUC: params.AuthUC,
		logger: params.Logger,
	}
}

// CredentialsRequest is the request body of signup and login.
type CredentialsRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// AccountResponse is returned by a successful signup.
type AccountResponse struct {
	Identifier string    `json:"identifier"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionResponse describes the session presented on a protected route.
type SessionResponse struct {
	Identifier string    `json:"identifier"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Signup handles account creation.
func (h *AuthHandler) Signup(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}

	output, err := h.authUC.Signup(c.Request().Context(), &usecase.SignupInput{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, AccountResponse{
		Identifier: output.Account.Identifier,
		CreatedAt:  output.Account.CreatedAt,
	})
}

// Login handles credential verification and token issuance.
func (h *AuthHandler) Login(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}

	output, err := h.authUC.Login(c.Request().Context(), &usecase.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, TokenResponse{
		Token:     output.Token,
		ExpiresAt: output.ExpiresAt,
	})
}

// Session returns the identity behind the bearer token. It must run behind AuthMiddleware.
func (h *AuthHandler) Session(c echo.Context) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return domainerrors.ErrUnauthenticated
	}

	return response.Success(c, http.StatusOK, SessionResponse{
		Identifier: session.Identifier,
		ExpiresAt:  session.ExpiresAt,
	})
}

func bindCredentials(c echo.Context) (*CredentialsRequest, error) {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return nil, domainerrors.ErrInvalidInput.WithDetails("request body must be a JSON object")
	}

	if err := c.Validate(&req); err != nil {
		return nil, errors.WithStack(err)
	}

	return &req, nil
}
