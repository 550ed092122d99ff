package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authcore/config"
	apimiddleware "authcore/internal/delivery/api/middleware"
)

func newLimitedEcho(t *testing.T, trustedProxies []string, burst int) (*echo.Echo, *apimiddleware.RateLimiter) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	limiter := apimiddleware.NewRateLimiter(&config.Config{RateLimit: &config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 1,
		Burst:             burst,
		CleanupInterval:   time.Minute,
	}}, logger)

	extractor, err := newIPExtractor(trustedProxies)
	require.NoError(t, err)

	e := echo.New()
	e.IPExtractor = extractor
	e.HTTPErrorHandler = apimiddleware.NewErrorMiddleware(logger).HandleHTTPError
	e.POST("/auth/login", func(c echo.Context) error {
		return c.String(http.StatusOK, c.RealIP())
	}, limiter.Limit)

	return e, limiter
}

func postLogin(e *echo.Echo, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set(echo.HeaderXForwardedFor, forwardedFor)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func TestNewIPExtractor_IgnoresForwardedForWithoutTrustedProxies(t *testing.T) {
	const burst = 5
	e, limiter := newLimitedEcho(t, nil, burst)

	allowed := 0
	for i := range 50 {
		rec := postLogin(e, "203.0.113.7:4000", fmt.Sprintf("198.51.100.%d", i))
		if rec.Code == http.StatusOK {
			allowed++
			assert.Equal(t, "203.0.113.7", rec.Body.String())
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}

	assert.Equal(t, burst, allowed)
	assert.Equal(t, 1, limiter.Size())
}

func TestNewIPExtractor_TrustedProxy(t *testing.T) {
	e, limiter := newLimitedEcho(t, []string{"203.0.113.0/24"}, 1)

	// Behind the trusted proxy each forwarded client has its own bucket.
	rec := postLogin(e, "203.0.113.7:4000", "198.51.100.1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "198.51.100.1", rec.Body.String())

	rec = postLogin(e, "203.0.113.7:4000", "198.51.100.2")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postLogin(e, "203.0.113.7:4000", "198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A peer outside the trusted range cannot choose its key.
	rec = postLogin(e, "192.0.2.50:4000", "198.51.100.9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "192.0.2.50", rec.Body.String())

	rec = postLogin(e, "192.0.2.50:4000", "198.51.100.10")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	assert.Equal(t, 3, limiter.Size())
}

func TestNewIPExtractor_RejectsInvalidCIDR(t *testing.T) {
	_, err := newIPExtractor([]string{"10.0.0.0/33"})
	require.Error(t, err)
}
