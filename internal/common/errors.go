// Package common defines shared constants and sentinel errors used across
// the store adapters, the saga coordinator and the API layer. Callers should
// use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Store-level error kinds.
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStoreFailure is a store-side error that is neither transient nor
	// caused by the request (bad query, schema mismatch).
	ErrStoreFailure = errors.New("store failure")

	// Input errors (malformed archive, unsafe filename, bad field values).
	ErrValidation = errors.New("validation failure")

	// Batch endpoints report per-item results; this marks a report with failures.
	ErrPartialBatch = errors.New("partial batch failure")

	// Auth errors (invalid or malformed token / session handle).
	ErrInvalidToken = errors.New("invalid token")
)

// StoreError describes a failed operation against one of the three stores.
// It matches both its Kind and the underlying cause with errors.Is.
type StoreError struct {
	Store string
	Op    string
	Kind  error
	Err   error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s store %s: %v", e.Store, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s store %s: %v: %v", e.Store, e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewStoreError builds a StoreError. A nil kind defaults to ErrStoreUnavailable.
func NewStoreError(store, op string, kind, err error) *StoreError {
	if kind == nil {
		kind = ErrStoreUnavailable
	}
	return &StoreError{Store: store, Op: op, Kind: kind, Err: err}
}

// Validationf returns a validation error with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsClientError reports whether err is caused by the caller (bad input,
// duplicates, missing resources) rather than by the infrastructure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound)
}
