// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen = 128

	// undefinedUserID is what browser clients send when the identifier was never set.
	undefinedUserID = "undefined"
)

var (
	ErrUserIDMissing = errors.New("user id missing")
	ErrUserIDTooLong = errors.New("user id too long")
)

// UserID is the stable identifier supplied by the authentication layer.
type UserID string

func (id UserID) String() string { return string(id) }

// ParseUserID validates the identifier a connection was opened with.
// Empty and "undefined" identifiers are rejected.
func ParseUserID(raw string) (UserID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == undefinedUserID {
		return "", ErrUserIDMissing
	}
	if len(raw) > MaxUserIDLen {
		return "", ErrUserIDTooLong
	}
	return UserID(raw), nil
}
