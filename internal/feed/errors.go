package feed

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"socialfeed/internal/store"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindDuplicateKey
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindDuplicateKey:
		return "DuplicateKey"
	case KindNotFound:
		return "NotFound"
	case KindForbidden:
		return "Forbidden"
	case KindUnauthorized:
		return "Unauthorized"
	case KindStoreUnavailable:
		return "StoreUnavailable"
	}
	return "Unknown"
}

// Error is the only error type the gateway and aggregator return.
// Message is safe to show to the end user.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Retryable reports whether the caller may retry the same call unchanged.
func (e *Error) Retryable() bool { return e.Kind == KindStoreUnavailable }

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

const unavailableMessage = "Service temporarily unavailable, please retry"

// translate converts a store error into an *Error. Unrecognised errors are
// logged and reported as StoreUnavailable so raw storage errors stay inside.
func translate(log logrus.FieldLogger, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	var ve *store.ValidationError
	var de *store.DuplicateKeyError
	var nf *store.NotFoundError
	switch {
	case errors.As(err, &ve):
		return &Error{Kind: KindValidation, Message: ve.Message}
	case errors.As(err, &de):
		if de.Field == "" {
			return &Error{Kind: KindDuplicateKey, Message: "Record already exists"}
		}
		return &Error{Kind: KindDuplicateKey, Message: capitalize(de.Field) + " already exists"}
	case errors.As(err, &nf):
		if nf.Entity == "" {
			return &Error{Kind: KindNotFound, Message: "Not found"}
		}
		return &Error{Kind: KindNotFound, Message: capitalize(nf.Entity) + " not found"}
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: "Not found"}
	case errors.Is(err, store.ErrForbidden):
		return &Error{Kind: KindForbidden, Message: "You are not allowed to modify this resource"}
	case errors.Is(err, store.ErrUnavailable):
		log.WithError(err).WithField("op", op).Warn("Store unavailable")
		return &Error{Kind: KindStoreUnavailable, Message: unavailableMessage}
	}
	log.WithError(err).WithField("op", op).Error("Unexpected store error")
	return &Error{Kind: KindStoreUnavailable, Message: unavailableMessage}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
