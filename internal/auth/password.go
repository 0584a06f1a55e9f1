package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"core_bank/internal/domain"
)

// MaxPasswordBytes is the longest input bcrypt accepts, counted in bytes.
const MaxPasswordBytes = 72

// HashPassword returns a salted bcrypt hash of plaintext.
func HashPassword(plaintext string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, domain.Wrap(domain.ErrWeakPassword, err)
	}
	if err != nil {
		return nil, domain.Internal(err)
	}
	return hash, nil
}

// CheckPassword reports whether plaintext matches hash. bcrypt compares in
// constant time.
func CheckPassword(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}
