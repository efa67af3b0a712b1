package utils

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinOperatorPasswordLength = 12
	// bcrypt ignores input past 72 bytes.
	MaxOperatorPasswordLength = 72
	OperatorPasswordCost      = 12
)

var (
	ErrPasswordTooShort      = fmt.Errorf("password must be at least %d characters long", MinOperatorPasswordLength)
	ErrPasswordTooLong       = fmt.Errorf("password must be at most %d bytes long", MaxOperatorPasswordLength)
	ErrPasswordNoUppercase   = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoLowercase   = errors.New("password must contain at least one lowercase letter")
	ErrPasswordNoDigit       = errors.New("password must contain at least one digit")
	ErrPasswordNoSpecialChar = errors.New("password must contain at least one special character")
)

// ValidatePasswordStrength reports every rule the operator password breaks,
// joined into one error.
func ValidatePasswordStrength(password string) error {
	var errs []error
	if len([]rune(password)) < MinOperatorPasswordLength {
		errs = append(errs, ErrPasswordTooShort)
	}
	if len(password) > MaxOperatorPasswordLength {
		errs = append(errs, ErrPasswordTooLong)
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper {
		errs = append(errs, ErrPasswordNoUppercase)
	}
	if !lower {
		errs = append(errs, ErrPasswordNoLowercase)
	}
	if !digit {
		errs = append(errs, ErrPasswordNoDigit)
	}
	if !special {
		errs = append(errs, ErrPasswordNoSpecialChar)
	}
	return errors.Join(errs...)
}

// HashOperatorPassword produces the value for OPERATOR_PASSWORD_HASH.
func HashOperatorPassword(password string) (string, error) {
	if err := ValidatePasswordStrength(password); err != nil {
		return "", err
	}
	return HashPassword(password)
}

// HashPassword hashes without the strength rules.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordTooShort
	}
	if len(password) > MaxOperatorPasswordLength {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), OperatorPasswordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
