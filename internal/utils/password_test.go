package utils

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, ValidatePasswordStrength("Correct-Horse-9-Battery"))

	err := ValidatePasswordStrength("short")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPasswordTooShort))
	assert.True(t, errors.Is(err, ErrPasswordNoUppercase))
	assert.True(t, errors.Is(err, ErrPasswordNoDigit))
	assert.True(t, errors.Is(err, ErrPasswordNoSpecialChar))
	assert.False(t, errors.Is(err, ErrPasswordNoLowercase))

	long := "Aa1!" + strings.Repeat("x", MaxOperatorPasswordLength)
	assert.True(t, errors.Is(ValidatePasswordStrength(long), ErrPasswordTooLong))
}

func TestHashOperatorPassword(t *testing.T) {
	hash, err := HashOperatorPassword("Correct-Horse-9-Battery")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("Correct-Horse-9-Battery")))

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, OperatorPasswordCost, cost)

	_, err = HashOperatorPassword("weak")
	assert.Error(t, err)
}
