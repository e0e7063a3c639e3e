// Package password bundles the credential primitives: the shared password
// policy, the temporary-password generator, and the bcrypt hasher.
package password

import "strings"

// blacklist holds substrings that immediately fail a password,
// case-insensitively.
var blacklist = []string{"123456", "password", "azerty", "qwerty", "admin", "letmein"}

const specialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// PolicyResult reports each policy check individually so the UI can show
// per-rule feedback.
type PolicyResult struct {
	MinLength bool `json:"minLength"`
	Uppercase bool `json:"uppercase"`
	Lowercase bool `json:"lowercase"`
	Digit     bool `json:"digit"`
	Special   bool `json:"special"`
	NotCommon bool `json:"notCommon"`
}

// Valid reports overall validity: all six checks must pass.
func (r PolicyResult) Valid() bool {
	return r.MinLength && r.Uppercase && r.Lowercase && r.Digit && r.Special && r.NotCommon
}

// CheckPolicy evaluates pw against the shared password policy:
// length >= 8, at least one uppercase, lowercase, digit, and special
// character, and no blacklisted substring.
func CheckPolicy(pw string) PolicyResult {
	r := PolicyResult{
		MinLength: len(pw) >= 8,
		NotCommon: true,
	}

	for _, c := range pw {
		switch {
		case c >= 'A' && c <= 'Z':
			r.Uppercase = true
		case c >= 'a' && c <= 'z':
			r.Lowercase = true
		case c >= '0' && c <= '9':
			r.Digit = true
		case strings.ContainsRune(specialChars, c):
			r.Special = true
		}
	}

	lowered := strings.ToLower(pw)
	for _, bad := range blacklist {
		if strings.Contains(lowered, bad) {
			r.NotCommon = false
			break
		}
	}

	return r
}
