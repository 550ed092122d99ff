package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcryptVerifier checks hashes written by the previous account service, which
// stored bcrypt digests. New hashes are never produced with it.
type bcryptVerifier struct{}

func newBcryptVerifier() *bcryptVerifier {
	return &bcryptVerifier{}
}

// Supports reports whether the encoded hash carries a bcrypt prefix.
func (v *bcryptVerifier) Supports(encodedHash string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encodedHash, prefix) {
			return true
		}
	}

	return false
}

// Verify compares a plaintext password with a bcrypt hash.
func (v *bcryptVerifier) Verify(password, encodedHash string) bool {
	// bcrypt only reads the first 72 bytes and rejects longer input outright.
	if len(password) > 72 {
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))

	return err == nil
}
