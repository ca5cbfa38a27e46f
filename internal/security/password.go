// Package security hashes the system administrator password stored in the
// tenant-management tables.
package security

import (
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"snowadmin/pkg/errors"
)

// DefaultCost is the bcrypt work factor used for administrator passwords.
const DefaultCost = 12

// minPasswordLength applies to operator-chosen passwords.
const minPasswordLength = 12

// HashPassword returns the bcrypt hash of password. A cost of zero selects
// DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", errors.ValidationError("cost", cost,
			fmt.Sprintf("must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if len(password) < minPasswordLength {
		return "", errors.ValidationError("password", "<redacted>",
			fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		if stderrors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", errors.ValidationError("password", "<redacted>", "must be at most 72 bytes")
		}
		return "", errors.Wrap(err, errors.ErrCodeInternal, "Failed to hash password")
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash.
func VerifyPassword(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, errors.Wrap(err, errors.ErrCodeInvalidInput, "Not a bcrypt hash")
	}
}

// HashCost returns the work factor recorded in hash.
func HashCost(hash string) (int, error) {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInvalidInput, "Not a bcrypt hash")
	}
	return cost, nil
}

// GeneratePassword returns a random GUID-style password.
func GeneratePassword() string {
	return uuid.NewString()
}
