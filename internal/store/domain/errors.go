package domain

import (
	"errors"
	"fmt"
)

// Error kinds reported by store operations. Business-rule failures carry one of the
// first five; ErrPersistence marks a storage failure after the in-memory state changed.
var (
	ErrValidation        = errors.New("validation error")
	ErrDuplicate         = errors.New("duplicate")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("empty cart")
	ErrPersistence       = errors.New("persistence failed")
)

// Error is a business-rule failure with a message suitable for API clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func Duplicatef(format string, args ...any) error {
	return newError(ErrDuplicate, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func InsufficientStockf(format string, args ...any) error {
	return newError(ErrInsufficientStock, format, args...)
}

func EmptyCartf(format string, args ...any) error {
	return newError(ErrEmptyCart, format, args...)
}

// Kind returns a stable label for err, used in logs and metric attributes.
func Kind(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "error"
	}
}

// IsBusiness reports whether err is a recoverable business-rule failure.
func IsBusiness(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
