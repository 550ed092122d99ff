package middleware

import (
	"strings"

	deliverycontext "authcore/internal/delivery/context"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/usecase"

	"github.com/labstack/echo/v4"
)

const bearerPrefix = "Bearer "

// sessionKey is the echo.Context key holding the validated *usecase.SessionOutput.
const sessionKey = "session"

// AuthMiddleware validates session tokens presented as Bearer credentials.
type AuthMiddleware struct {
	authUC usecase.AuthUsecase
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(authUC usecase.AuthUsecase) *AuthMiddleware {
	return &AuthMiddleware{authUC: authUC}
}

// Authenticate rejects the request with Unauthenticated unless it carries a
// valid, unexpired session token.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return domainerrors.ErrUnauthenticated.WrapMessage("missing bearer token")
		}

		session, err := m.authUC.Authenticate(c.Request().Context(), token)
		if err != nil {
			return err
		}

		deliverycontext.SetIdentifier(c, session.Identifier)
		c.Set(sessionKey, session)

		return next(c)
	}
}

// GetSession returns the session validated by Authenticate.
func GetSession(c echo.Context) (*usecase.SessionOutput, bool) {
	session, ok := c.Get(sessionKey).(*usecase.SessionOutput)

	return session, ok && session != nil
}

func bearerToken(header string) (string, bool) {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])

	return token, token != ""
}
