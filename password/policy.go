package password

import (
	"fmt"
	"strings"
	"unicode"
)

const minLength = 8

// commonPasswords is a small deny-list of credentials seen in virtually every
// breach corpus. Matched case-insensitively.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"password1!": {},
	"12345678":   {},
	"123456789":  {},
	"qwerty123":  {},
	"letmein123": {},
	"admin123":   {},
	"welcome1":   {},
	"iloveyou1":  {},
}

// PolicyError describes a single password policy violation.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("password does not meet policy: %s", e.Reason)
}

// ValidatePolicy checks a candidate password against the registration policy.
// Checks run in a fixed order (length, uppercase, lowercase, digit, special
// character, deny-list) and the first failure is returned, so error messages
// are deterministic for a given input.
func ValidatePolicy(candidate string) error {
	if len(candidate) < minLength {
		return &PolicyError{Reason: fmt.Sprintf("must be at least %d characters", minLength)}
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if !hasUpper {
		return &PolicyError{Reason: "must contain an uppercase letter"}
	}
	if !hasLower {
		return &PolicyError{Reason: "must contain a lowercase letter"}
	}
	if !hasDigit {
		return &PolicyError{Reason: "must contain a digit"}
	}
	if !hasSpecial {
		return &PolicyError{Reason: "must contain a special character"}
	}

	if _, banned := commonPasswords[strings.ToLower(candidate)]; banned {
		return &PolicyError{Reason: "too common"}
	}

	return nil
}
