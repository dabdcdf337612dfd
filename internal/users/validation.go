package users

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const minPasswordLength = 8

// ValidationError lists invalid input fields with a message per field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// CreateInput is a request to create or restore a user.
type CreateInput struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	// Pic is the stored-object key of an already uploaded picture.
	Pic string `json:"pic"`
}

// Validate returns a *ValidationError describing every invalid field, or nil.
func (in CreateInput) Validate() error {
	fields := map[string]string{}

	if strings.TrimSpace(in.FullName) == "" {
		fields["fullName"] = "Full name is required."
	}
	if strings.TrimSpace(in.Email) == "" || !strings.Contains(in.Email, "@") {
		fields["email"] = "Email must contain @."
	}
	switch {
	case in.Password == "":
		fields["password"] = "Password is required."
	case !strongPassword(in.Password):
		fields["password"] = "Password must be at least 8 characters, include uppercase, lowercase, a number, and a special character."
	case in.Password != in.ConfirmPassword:
		fields["confirmPassword"] = "Passwords do not match."
	}
	if strings.TrimSpace(in.Pic) == "" {
		fields["pic"] = "Photo is required."
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// strongPassword requires ASCII upper, lower and digit characters plus one
// character outside [A-Za-z0-9].
func strongPassword(pwd string) bool {
	if utf8.RuneCountInString(pwd) < minPasswordLength {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range pwd {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}
	return upper && lower && digit && special
}
