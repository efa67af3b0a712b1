package operator

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrDisabled           = errors.New("operator access is not configured")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid operator token")
)

// Subject is the fixed subject of operator tokens.
const Subject = "operator"

// Claims carried by an operator session token.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenRequest is the body of the operator remediation endpoints.
type TokenRequest struct {
	Token string `json:"token" validate:"required,min=1,max=256"`
}

// LoginRequest is the body of the operator login endpoint.
type LoginRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse carries a short lived operator token.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}
