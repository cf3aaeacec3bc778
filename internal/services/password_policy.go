package services

import (
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72
)

// PasswordPolicyError carries the first rule a password broke, phrased for
// the end user.
type PasswordPolicyError struct {
	Message string
}

func (e *PasswordPolicyError) Error() string {
	return e.Message
}

// ValidatePassword enforces at least MinPasswordLength characters, at most
// MaxPasswordBytes bytes, and one each of uppercase, lowercase and digit.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return &PasswordPolicyError{Message: "Password must be at least 8 characters long"}
	}
	if len(password) > MaxPasswordBytes {
		return &PasswordPolicyError{Message: "Password must be at most 72 bytes long"}
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	switch {
	case !upper:
		return &PasswordPolicyError{Message: "Password must contain at least one uppercase letter"}
	case !lower:
		return &PasswordPolicyError{Message: "Password must contain at least one lowercase letter"}
	case !digit:
		return &PasswordPolicyError{Message: "Password must contain at least one number"}
	}
	return nil
}

// NewValidator returns a validator with the "password" tag registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidatePassword(fl.Field().String()) == nil
	})
	return v
}
