// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

// PasswordHasher defines the interface for password hashing and verification.
// This abstracts the underlying hashing algorithm (e.g., argon2id), keeping the domain pure.
type PasswordHasher interface {
	// Hash generates a salted hash from a plaintext password.
	// The result encodes the algorithm, its cost parameters, the salt and the digest.
	Hash(password string) (string, error)

	// Verify reports whether password matches the encoded hash.
	// A malformed or unsupported hash yields false.
	Verify(password, encodedHash string) bool

	// DummyHash returns a valid hash of a random secret, computed with the live parameters.
	// Verifying against it costs the same as verifying against a real account.
	DummyHash() string
}
