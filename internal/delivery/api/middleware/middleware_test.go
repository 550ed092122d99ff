package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"authcore/config"
	"authcore/internal/delivery/api/response"
	"authcore/internal/delivery/api/validator"
	deliverycontext "authcore/internal/delivery/context"
	domainerrors "authcore/internal/domain/errors"
	"authcore/internal/errors"
	mockUsecase "authcore/internal/mocks/usecase"
	"authcore/internal/usecase"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()

	var body struct {
		Error *struct {
			Code    string          `json:"code"`
			Message string          `json:"message"`
			Details json.RawMessage `json:"details"`
		} `json:"error"`
		Meta *response.MetaInfo `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)

	var details any
	if len(body.Error.Details) > 0 {
		require.NoError(t, json.Unmarshal(body.Error.Details, &details))
	}

	return response.ErrorResponse{
		Error: &response.ErrorInfo{Code: body.Error.Code, Message: body.Error.Message, Details: details},
		Meta:  body.Meta,
	}
}

func TestErrorMiddleware_HandleHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails bool
	}{
		{
			name:       "wrapped app error",
			err:        domainerrors.ErrDuplicateAccount.WrapMessage("signup failed"),
			wantStatus: http.StatusConflict,
			wantCode:   "DUPLICATE_ACCOUNT",
		},
		{
			name:        "app error with details",
			err:         domainerrors.ErrInvalidInput.WithDetails("password is too short"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_INPUT",
			wantDetails: true,
		},
		{
			name:       "store error hides details",
			err:        domainerrors.NewStoreError(errors.New("connection refused"), "find account"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "STORE_UNAVAILABLE",
		},
		{
			name:        "validation errors",
			err:         validator.ValidationErrors{{Field: "identifier", Rule: "required"}},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_INPUT",
			wantDetails: true,
		},
		{
			name:       "echo http error",
			err:        echo.NewHTTPError(http.StatusNotFound, "not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   "HTTP_ERROR",
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/auth/signup", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			deliverycontext.SetRequestID(c, "req-1")

			NewErrorMiddleware(discardLogger()).HandleHTTPError(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
			assert.Equal(t, "req-1", body.Meta.RequestID)
			if tt.wantDetails {
				assert.NotNil(t, body.Error.Details)
			} else {
				assert.Nil(t, body.Error.Details)
			}
		})
	}
}

func TestErrorMiddleware_UnknownErrorDoesNotLeak(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	NewErrorMiddleware(discardLogger()).HandleHTTPError(errors.New("pq: password authentication failed"), c)

	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	expiresAt := time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC)

	t.Run("valid bearer token", func(t *testing.T) {
		uc := mockUsecase.NewMockAuthUsecase(t)
		uc.EXPECT().Authenticate(mock.Anything, "tok").
			Return(&usecase.SessionOutput{Identifier: "alice@example.com", ExpiresAt: expiresAt}, nil)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer tok")
		c := e.NewContext(req, httptest.NewRecorder())

		var called bool
		err := NewAuthMiddleware(uc).Authenticate(func(c echo.Context) error {
			called = true

			identifier, ok := deliverycontext.GetIdentifier(c)
			assert.True(t, ok)
			assert.Equal(t, "alice@example.com", identifier)

			session, ok := GetSession(c)
			require.True(t, ok)
			assert.Equal(t, expiresAt, session.ExpiresAt)

			return nil
		})(c)

		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("case-insensitive scheme", func(t *testing.T) {
		uc := mockUsecase.NewMockAuthUsecase(t)
		uc.EXPECT().Authenticate(mock.Anything, "tok").
			Return(&usecase.SessionOutput{Identifier: "alice@example.com"}, nil)

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		req.Header.Set(echo.HeaderAuthorization, "bearer tok")

		err := NewAuthMiddleware(uc).Authenticate(func(echo.Context) error { return nil })(
			e.NewContext(req, httptest.NewRecorder()))
		require.NoError(t, err)
	})

	for name, header := range map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic dXNlcjpwYXNz",
		"empty token":    "Bearer   ",
	} {
		t.Run(name, func(t *testing.T) {
			uc := mockUsecase.NewMockAuthUsecase(t)

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
			if header != "" {
				req.Header.Set(echo.HeaderAuthorization, header)
			}

			err := NewAuthMiddleware(uc).Authenticate(func(echo.Context) error {
				t.Fatal("next must not be called")

				return nil
			})(e.NewContext(req, httptest.NewRecorder()))

			assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
		})
	}

	t.Run("rejected token", func(t *testing.T) {
		uc := mockUsecase.NewMockAuthUsecase(t)
		uc.EXPECT().Authenticate(mock.Anything, "expired").
			Return(nil, domainerrors.ErrUnauthenticated.WrapMessage("authenticate failed"))

		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer expired")

		err := NewAuthMiddleware(uc).Authenticate(func(echo.Context) error {
			t.Fatal("next must not be called")

			return nil
		})(e.NewContext(req, httptest.NewRecorder()))

		assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
	})
}

func newTestLimiter(perMinute float64, burst int) *RateLimiter {
	cfg := &config.Config{RateLimit: &config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: perMinute,
		Burst:             burst,
		CleanupInterval:   time.Minute,
	}}

	return NewRateLimiter(cfg, discardLogger())
}

func TestRateLimiter_Limit(t *testing.T) {
	rl := newTestLimiter(60, 2)
	e := echo.New()
	h := rl.Limit(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	call := func(remoteAddr string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()

		return rec, h(e.NewContext(req, rec))
	}

	for range 2 {
		_, err := call("192.0.2.1:1000")
		require.NoError(t, err)
	}

	rec, err := call("192.0.2.1:1001")
	assert.ErrorIs(t, err, domainerrors.ErrTooManyRequests)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Other clients keep their own budget.
	_, err = call("192.0.2.2:1000")
	require.NoError(t, err)
	assert.Equal(t, 2, rl.Size())
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(&config.Config{RateLimit: &config.RateLimitConfig{Enabled: false, Burst: 1}}, discardLogger())
	e := echo.New()
	h := rl.Limit(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for range 5 {
		rec := httptest.NewRecorder()
		require.NoError(t, h(e.NewContext(httptest.NewRequest(http.MethodPost, "/auth/login", nil), rec)))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Zero(t, rl.Size())
}

func TestRateLimiter_CleanupDropsIdleClients(t *testing.T) {
	rl := newTestLimiter(60, 1)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.limiterFor("192.0.2.1")
	now = now.Add(90 * time.Second)
	rl.limiterFor("192.0.2.2")

	now = now.Add(90 * time.Second)
	rl.cleanup()

	assert.Equal(t, 1, rl.Size())
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := newTestLimiter(60, 1)
	rl.Start()
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
