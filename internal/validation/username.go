// Package validation holds input rules shared by services and handlers.
package validation

import (
	"errors"
	"regexp"
	"strings"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

var reservedUsernames = map[string]struct{}{
	"admin":      {},
	"api":        {},
	"directchat": {},
	"me":         {},
	"metrics":    {},
	"root":       {},
	"support":    {},
	"system":     {},
}

// Errors returned by ValidateUsername.
var (
	ErrUsernameFormat   = errors.New("username must be 3-30 characters of lowercase letters, numbers, underscores and dots")
	ErrUsernameDots     = errors.New("username cannot start or end with a dot or contain consecutive dots")
	ErrUsernameReserved = errors.New("username is reserved")
)

// NormalizeUsername trims and lowercases a username. Usernames are stored normalized.
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateUsername checks a normalized username.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrUsernameFormat
	}
	if strings.HasPrefix(username, ".") || strings.HasSuffix(username, ".") || strings.Contains(username, "..") {
		return ErrUsernameDots
	}
	if _, reserved := reservedUsernames[username]; reserved {
		return ErrUsernameReserved
	}
	return nil
}

// EscapeLike escapes LIKE wildcards so q matches literally. Use with ESCAPE '\'.
func EscapeLike(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(q)
}
