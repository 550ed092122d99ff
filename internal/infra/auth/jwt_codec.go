package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authcore/config"
	"authcore/internal/domain/entity"
	"authcore/internal/domain/service"
	"authcore/internal/errors"
)

// MinSecretLength is the minimum size of the HMAC signing secret in bytes.
const MinSecretLength = 32

// sessionClaims carries the account identifier in "sub" and the nonce in "jti".
type sessionClaims struct {
	jwt.RegisteredClaims
}

// jwtCodec is a concrete implementation of the TokenCodec interface using HS256 JWTs.
type jwtCodec struct {
	secret []byte        // Process-wide signing key, immutable after construction.
	ttl    time.Duration // Lifetime of issued tokens.
	now    func() time.Time
	parser *jwt.Parser
}

// NewJWTCodec is the constructor for jwtCodec.
// It reads the signing secret from secretKey.session and the TTL from auth.sessionTTL.
func NewJWTCodec(cfg *config.Config) (service.TokenCodec, error) {
	ttl := time.Hour
	if cfg.Auth != nil && cfg.Auth.SessionTTL > 0 {
		ttl = cfg.Auth.SessionTTL
	}

	codec, err := newJWTCodec([]byte(cfg.SecretKey.Session), ttl, time.Now)
	if err != nil {
		return nil, err
	}

	return codec, nil
}

func newJWTCodec(secret []byte, ttl time.Duration, now func() time.Time) (*jwtCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.Errorf("session secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	return &jwtCodec{
		secret: key,
		ttl:    ttl,
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

// Issue signs a token for identifier that expires TTL from now.
func (c *jwtCodec) Issue(identifier string) (*entity.SessionToken, error) {
	if identifier == "" {
		return nil, errors.New("identifier is required")
	}

	// NumericDate has second precision; truncate so the returned times match the claims.
	issuedAt := c.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(c.ttl)
	nonce := uuid.NewString()

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identifier,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        nonce,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, errors.Wrap(err, "sign session token")
	}

	return &entity.SessionToken{
		Token:      signed,
		Identifier: identifier,
		Nonce:      nonce,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// Validate verifies the MAC first and only then looks at expiry,
// so a forged token is reported as such even when it is also stale.
func (c *jwtCodec) Validate(tokenString string) (*entity.SessionToken, error) {
	claims := &sessionClaims{}

	token, err := c.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if !token.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, service.ErrTokenMalformed
	}

	session := &entity.SessionToken{
		Token:      tokenString,
		Identifier: claims.Subject,
		Nonce:      claims.ID,
		ExpiresAt:  claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}

	return session, nil
}

func (c *jwtCodec) TTL() time.Duration {
	return c.ttl
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return errors.Wrap(service.ErrTokenInvalidSignature, err.Error())
	case errors.Is(err, jwt.ErrTokenExpired):
		return errors.Wrap(service.ErrTokenExpired, err.Error())
	default:
		// Malformed segments, unknown algorithms and missing claims.
		return errors.Wrap(service.ErrTokenMalformed, err.Error())
	}
}
