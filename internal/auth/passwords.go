// Package auth holds the credential comparison policy used by the store.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Passwords turns a submitted password into its stored form and checks
// a submitted password against a stored one.
type Passwords interface {
	Hash(password string) (string, error)
	Matches(stored, password string) bool
}

// Plain stores and compares passwords as given.
type Plain struct{}

func (Plain) Hash(password string) (string, error) { return password, nil }

func (Plain) Matches(stored, password string) bool { return stored == password }

// ErrPasswordTooLong is returned by Bcrypt.Hash for passwords over 72 bytes.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// Bcrypt stores salted bcrypt hashes.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (Bcrypt) Matches(stored, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// ForMode returns the policy named by mode ("plain" or "bcrypt").
func ForMode(mode string) (Passwords, error) {
	switch mode {
	case "", "plain":
		return Plain{}, nil
	case "bcrypt":
		return Bcrypt{}, nil
	default:
		return nil, fmt.Errorf("unknown password hashing mode %q", mode)
	}
}
