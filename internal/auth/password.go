package auth

import (
	"github.com/example/marketplace-engine/internal/fault"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// HashPassword bcrypt-hashes a password. Anything shorter than eight
// characters is rejected before hashing.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fault.Validationf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash. A garbage
// hash fails closed.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
