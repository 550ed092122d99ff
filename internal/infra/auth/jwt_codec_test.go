package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authcore/config"
	"authcore/internal/domain/service"
	"authcore/internal/errors"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCodec(t *testing.T, ttl time.Duration) (*jwtCodec, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := newJWTCodec(testSecret, ttl, clock.Now)
	require.NoError(t, err)

	return codec, clock
}

func TestJWTCodec_IssueAndValidate(t *testing.T) {
	codec, clock := newTestCodec(t, time.Hour)

	issued, err := codec.Issue("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", issued.Identifier)
	assert.Equal(t, clock.Now(), issued.IssuedAt)
	assert.Equal(t, clock.Now().Add(time.Hour), issued.ExpiresAt)
	assert.NotEmpty(t, issued.Nonce)
	assert.Len(t, strings.Split(issued.Token, "."), 3)

	clock.Advance(59 * time.Minute)

	validated, err := codec.Validate(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", validated.Identifier)
	assert.Equal(t, issued.Nonce, validated.Nonce)
	assert.True(t, issued.ExpiresAt.Equal(validated.ExpiresAt))
}

func TestJWTCodec_TokensAreUnique(t *testing.T) {
	codec, _ := newTestCodec(t, time.Hour)

	first, err := codec.Issue("alice@example.com")
	require.NoError(t, err)
	second, err := codec.Issue("alice@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	assert.NotEqual(t, first.Nonce, second.Nonce)
}

func TestJWTCodec_Expired(t *testing.T) {
	codec, clock := newTestCodec(t, time.Hour)

	issued, err := codec.Issue("alice@example.com")
	require.NoError(t, err)

	t.Run("at expiry", func(t *testing.T) {
		clock.t = issued.ExpiresAt
		_, err := codec.Validate(issued.Token)
		assert.True(t, errors.Is(err, service.ErrTokenExpired), "got %v", err)
	})

	t.Run("after expiry", func(t *testing.T) {
		clock.t = issued.ExpiresAt.Add(time.Second)
		_, err := codec.Validate(issued.Token)
		assert.True(t, errors.Is(err, service.ErrTokenExpired), "got %v", err)
	})
}

func TestJWTCodec_InvalidSignature(t *testing.T) {
	codec, _ := newTestCodec(t, time.Hour)

	issued, err := codec.Issue("alice@example.com")
	require.NoError(t, err)

	parts := strings.Split(issued.Token, ".")
	require.Len(t, parts, 3)

	t.Run("flipped signature byte", func(t *testing.T) {
		sig, err := base64.RawURLEncoding.DecodeString(parts[2])
		require.NoError(t, err)
		sig[0] ^= 0x01

		tampered := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(sig)
		_, err = codec.Validate(tampered)
		assert.True(t, errors.Is(err, service.ErrTokenInvalidSignature), "got %v", err)
	})

	t.Run("rewritten payload", func(t *testing.T) {
		payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"mallory@example.com","exp":4102444800,"iat":1709294400}`))
		_, err := codec.Validate(parts[0] + "." + payload + "." + parts[2])
		assert.True(t, errors.Is(err, service.ErrTokenInvalidSignature), "got %v", err)
	})

	t.Run("tampered and expired reports signature", func(t *testing.T) {
		expiredCodec, clock := newTestCodec(t, time.Minute)
		old, err := expiredCodec.Issue("alice@example.com")
		require.NoError(t, err)
		clock.Advance(time.Hour)

		p := strings.Split(old.Token, ".")
		_, err = expiredCodec.Validate(p[0] + "." + p[1] + "." + parts[2])
		assert.True(t, errors.Is(err, service.ErrTokenInvalidSignature), "got %v", err)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := newJWTCodec([]byte("ffffffffffffffffffffffffffffffff"), time.Hour, time.Now)
		require.NoError(t, err)

		_, err = other.Validate(issued.Token)
		assert.True(t, errors.Is(err, service.ErrTokenInvalidSignature), "got %v", err)
	})

	t.Run("unexpected algorithm", func(t *testing.T) {
		claims := sessionClaims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)),
		}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
		require.NoError(t, err)

		_, err = codec.Validate(signed)
		assert.True(t, errors.Is(err, service.ErrTokenInvalidSignature), "got %v", err)
	})
}

func TestJWTCodec_Malformed(t *testing.T) {
	codec, _ := newTestCodec(t, time.Hour)

	inputs := []string{
		"",
		"garbage",
		"a.b",
		"a.b.c",
		"!!!.???.###",
	}

	for _, in := range inputs {
		_, err := codec.Validate(in)
		assert.True(t, errors.Is(err, service.ErrTokenMalformed), "input %q: got %v", in, err)
	}

	t.Run("missing expiry", func(t *testing.T) {
		claims := sessionClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alice@example.com"}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		require.NoError(t, err)

		_, err = codec.Validate(signed)
		assert.True(t, errors.Is(err, service.ErrTokenMalformed), "got %v", err)
	})

	t.Run("missing subject", func(t *testing.T) {
		claims := sessionClaims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)),
		}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		require.NoError(t, err)

		_, err = codec.Validate(signed)
		assert.True(t, errors.Is(err, service.ErrTokenMalformed), "got %v", err)
	})
}

func TestNewJWTCodec(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.SecretKey.Session = "too-short"

		_, err := NewJWTCodec(cfg)
		assert.Error(t, err)
	})

	t.Run("uses configured ttl", func(t *testing.T) {
		cfg := &config.Config{Auth: &config.AuthConfig{SessionTTL: 15 * time.Minute}}
		cfg.SecretKey.Session = string(testSecret)

		codec, err := NewJWTCodec(cfg)
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, codec.TTL())
	})

	t.Run("rejects empty identifier", func(t *testing.T) {
		codec, _ := newTestCodec(t, time.Hour)
		_, err := codec.Issue("")
		assert.Error(t, err)
	})
}
