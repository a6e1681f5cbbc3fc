package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost = 12

	// Provisioning policy for new passwords. Login accepts anything the
	// stored hash matches within the wider login bounds.
	MinProvisionPasswordLen = 8
	MaxProvisionPasswordLen = 72 // bcrypt ignores bytes past 72
)

// dummyHash is compared against when no account matches so that unknown
// usernames cost the same bcrypt work as wrong passwords.
var dummyHash = sync.OnceValue(func() string {
	return mustHash("tajnur-auth-dummy-password", BcryptCost)
})

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "invalid password: " + strings.Join(e.Errors, "; ")
}

var commonPasswords = map[string]bool{
	"password":    true,
	"12345678":    true,
	"password1":   true,
	"password123": true,
	"admin123":    true,
	"manager123":  true,
	"staff123":    true,
	"letmein1":    true,
	"welcome1":    true,
	"qwerty123":   true,
	"passw0rd":    true,
	"trustno1":    true,
}

func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, BcryptCost)
}

// HashPasswordWithCost is HashPassword with an explicit bcrypt cost. Tests use bcrypt.MinCost.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// ComparePassword accepts any bcrypt variant, including $2y$ hashes
// migrated from older systems.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// BurnCompare performs a comparison that always fails, for absent accounts.
func BurnCompare(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash()), []byte(password))
}

// RandomHex returns n random bytes hex encoded
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// RandomURLToken returns n random bytes as unpadded base64url
func RandomURLToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidatePassword applies the provisioning policy used when accounts are
// created out-of-band.
func ValidatePassword(password string) error {
	errors := make([]string, 0)

	n := utf8.RuneCountInString(password)
	if n < MinProvisionPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at least %d characters", MinProvisionPasswordLen))
	}
	if len(password) > MaxProvisionPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at most %d bytes", MaxProvisionPasswordLen))
	}

	hasLetter := false
	hasDigit := false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		errors = append(errors, "must contain a letter")
	}
	if !hasDigit {
		errors = append(errors, "must contain a digit")
	}

	if commonPasswords[strings.ToLower(password)] {
		errors = append(errors, "is too common")
	}

	if len(errors) > 0 {
		return &PasswordValidationError{Errors: errors}
	}
	return nil
}

func mustHash(password string, cost int) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		panic(err)
	}
	return string(h)
}
