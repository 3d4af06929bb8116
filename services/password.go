package services

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLength is the longest password bcrypt accepts
const MaxPasswordLength = 72

// HashPassword returns a bcrypt hash of password for provisioning a credential store
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrInvalidInput
	}
	if len(password) > MaxPasswordLength {
		return "", NewDomainError(ErrorTypeValidation, fmt.Sprintf("password must be at most %d bytes", MaxPasswordLength), nil)
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", NewDomainError(ErrorTypeValidation, fmt.Sprintf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost), nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", WrapInternal("failed to hash password", err)
	}
	return string(hash), nil
}

// newDummyHash returns a hash of a random secret at the given cost. Unknown
// usernames are compared against it so they cost as much as real accounts.
func newDummyHash(cost int) []byte {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	hash, err := bcrypt.GenerateFromPassword(secret, cost)
	if err != nil {
		panic(fmt.Sprintf("failed to generate dummy password hash: %v", err))
	}
	return hash
}
