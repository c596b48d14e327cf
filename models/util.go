package models

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random UUIDv4 as a hyphenless 32-char lowercase string.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
