package store

import (
	"errors"
	"fmt"

	"socialfeed/internal/auth"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrForbidden    = errors.New("requesting user does not own the record")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrValidation   = errors.New("validation failed")
	// ErrUnavailable marks transient failures: timeouts, lost connections, busy
	// databases. It is the only store error worth retrying.
	ErrUnavailable = errors.New("store unavailable")
)

// ValidationError rejects malformed input before it reaches the database.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DuplicateKeyError reports which unique column rejected a write.
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string {
	if e.Field == "" {
		return ErrDuplicateKey.Error()
	}
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// NotFoundError names the missing entity ("user", "post", "comment").
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	if e.Entity == "" {
		return ErrNotFound.Error()
	}
	return e.Entity + " not found"
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// hashPassword runs p.Hash, reporting passwords the policy cannot hash as
// validation errors.
func hashPassword(p auth.Passwords, password string) (string, error) {
	hashed, err := p.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", &ValidationError{Field: "password", Message: "Password cannot exceed 72 bytes"}
	}
	return hashed, err
}

func notFound(entity string) error { return &NotFoundError{Entity: entity} }

func unavailable(err error) error { return fmt.Errorf("%w: %v", ErrUnavailable, err) }

// isClassified reports whether err already carries one of the store sentinels.
func isClassified(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnavailable)
}
