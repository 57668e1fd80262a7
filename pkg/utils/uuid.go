package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewUUID generates a new UUID
func NewUUID() uuid.UUID {
	return uuid.New()
}

// ParseUUID parses a string into a UUID
func ParseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// GenerateBuyOrder generates a merchant-unique buy order for one payment
// attempt. This is the idempotency key joining payment and fiscal
// document, so it must never repeat across attempts.
func GenerateBuyOrder() string {
	return "OC-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:20])
}

// GenerateSessionID generates a gateway session identifier
func GenerateSessionID() string {
	return "S-" + strings.ToUpper(uuid.New().String()[:8])
}

// GenerateProductCode generates a unique product code
func GenerateProductCode() string {
	return "PROD-" + strings.ToUpper(uuid.New().String()[:8])
}
