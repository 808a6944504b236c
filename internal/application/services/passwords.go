package services

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

// bcryptCost is a variable so tests can trade strength for speed
var bcryptCost = 12

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperrors.NewValidationError("Password is too long.").WithFields("password")
		}
		return "", apperrors.NewInternalError("failed to hash password", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
