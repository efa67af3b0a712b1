package access

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status is informational; any stored record is consumable regardless of it.
type Status string

const (
	StatusValid       Status = "valid"
	StatusReactivated Status = "reactivated"
)

// Record is what gets persisted for an access token. The raw secret never is.
type Record struct {
	Created time.Time `json:"created"`
	Status  Status    `json:"status"`
}

// HashSecret returns the hex SHA-256 digest used as the storage identity of a secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// LogFragment returns a short hash prefix that is safe to log.
func LogFragment(secret string) string {
	return HashSecret(secret)[:8]
}
