// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"authcore/config"
	"authcore/internal/domain/service"
	"authcore/internal/errors"
)

const (
	argon2Prefix = "$argon2id$"

	// Upper bounds applied to parameters decoded from stored hashes.
	maxArgon2Memory = 1 << 21 // KiB
	maxArgon2Time   = 64
	maxArgon2KeyLen = 1024
)

// Argon2Params are the cost parameters used when producing new hashes.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// argon2Hasher implements service.PasswordHasher with argon2id.
// Hashes written by the previous bcrypt encoder still verify through legacy.
type argon2Hasher struct {
	params Argon2Params
	legacy *bcryptVerifier
	dummy  string
}

// NewArgon2Hasher builds the hasher from the auth.argon2 configuration.
func NewArgon2Hasher(cfg *config.Config) (service.PasswordHasher, error) {
	if cfg.Auth == nil {
		return nil, errors.New("auth config is missing")
	}

	a := cfg.Auth.Argon2

	hasher, err := newArgon2Hasher(Argon2Params{
		Memory:      a.Memory,
		Iterations:  a.Iterations,
		Parallelism: a.Parallelism,
		SaltLength:  a.SaltLength,
		KeyLength:   a.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	return hasher, nil
}

// newArgon2Hasher builds the hasher with explicit parameters.
// The dummy hash is computed once here so that its cost matches real hashes.
func newArgon2Hasher(params Argon2Params) (*argon2Hasher, error) {
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		return nil, errors.Errorf("invalid argon2 parameters: m=%d t=%d p=%d",
			params.Memory, params.Iterations, params.Parallelism)
	}
	if params.SaltLength < 8 || params.KeyLength < 16 || params.KeyLength > maxArgon2KeyLen {
		return nil, errors.Errorf("invalid argon2 lengths: salt=%d key=%d", params.SaltLength, params.KeyLength)
	}

	h := &argon2Hasher{
		params: params,
		legacy: newBcryptVerifier(),
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, errors.Wrap(err, "generate dummy secret")
	}

	dummy, err := h.Hash(base64.RawStdEncoding.EncodeToString(secret))
	if err != nil {
		return nil, errors.Wrap(err, "compute dummy hash")
	}
	h.dummy = dummy

	return h, nil
}

// Hash produces $argon2id$v=19$m=<mem>,t=<time>,p=<threads>$<salt>$<digest>.
func (h *argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "generate salt")
	}

	digest := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// Verify recomputes the digest with the parameters stored in the hash.
// Anything it cannot decode verifies false.
func (h *argon2Hasher) Verify(password, encodedHash string) bool {
	switch {
	case strings.HasPrefix(encodedHash, argon2Prefix):
		return verifyArgon2(password, encodedHash)
	case h.legacy.Supports(encodedHash):
		return h.legacy.Verify(password, encodedHash)
	default:
		return false
	}
}

func (h *argon2Hasher) DummyHash() string {
	return h.dummy
}

// NeedsRehash reports whether the hash was produced by another algorithm or
// with parameters different from the current ones.
func (h *argon2Hasher) NeedsRehash(encodedHash string) bool {
	decoded, err := decodeArgon2(encodedHash)
	if err != nil {
		return true
	}

	return decoded.memory != h.params.Memory ||
		decoded.time != h.params.Iterations ||
		decoded.threads != h.params.Parallelism ||
		uint32(len(decoded.digest)) != h.params.KeyLength
}

type argon2Hash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	digest  []byte
}

func decodeArgon2(encodedHash string) (*argon2Hash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return nil, errors.Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, errors.Wrap(err, "parse version")
	}
	if version != argon2.Version {
		return nil, errors.Errorf("unsupported argon2 version: %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, errors.Wrap(err, "parse parameters")
	}

	// argon2.IDKey panics on zero threads; it also must not be steered into huge allocations.
	if threads == 0 || threads > 255 {
		return nil, errors.Errorf("invalid threads value: %d", threads)
	}
	if time == 0 || time > maxArgon2Time {
		return nil, errors.Errorf("invalid time value: %d", time)
	}
	if memory == 0 || memory > maxArgon2Memory {
		return nil, errors.Errorf("invalid memory value: %d", memory)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, errors.New("invalid salt encoding")
	}

	digest, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, errors.Wrap(err, "decode digest")
	}
	if len(digest) == 0 || len(digest) > maxArgon2KeyLen {
		return nil, errors.Errorf("invalid digest length: %d", len(digest))
	}

	return &argon2Hash{
		memory:  memory,
		time:    time,
		threads: uint8(threads),
		salt:    salt,
		digest:  digest,
	}, nil
}

func verifyArgon2(password, encodedHash string) bool {
	decoded, err := decodeArgon2(encodedHash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), decoded.salt, decoded.time, decoded.memory, decoded.threads, uint32(len(decoded.digest)))

	return subtle.ConstantTimeCompare(computed, decoded.digest) == 1
}
