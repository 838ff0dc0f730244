package services

import (
	"errors"
	"fmt"
)

// Error kinds returned by ProductService. Match them with errors.Is.
var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
	ErrConflict     = errors.New("CONFLICT")
	ErrNotFound     = errors.New("NOT_FOUND")
	ErrInvalidState = errors.New("INVALID_STATE")
)

// ProductError is a classified business-rule failure.
type ProductError struct {
	Kind    error
	Message string
}

func (e *ProductError) Error() string {
	return e.Message
}

func (e *ProductError) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...interface{}) *ProductError {
	return &ProductError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
