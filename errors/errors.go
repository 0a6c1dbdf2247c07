// Package errors provides error handling for shopcsv.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for user-facing messages
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrLocked) {
//	    // another run holds the lease
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Sentinel errors covering the export failure taxonomy.
// Use these with errors.Is() for type-safe checks, wrapping them
// with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")

	// ErrLocked indicates another run currently holds the job lease.
	// Retryable: the caller may try again once the holder releases
	// or the lease TTL expires.
	ErrLocked = New("job already running")

	// ErrConfig indicates invalid or unsupported configuration.
	// Never retried automatically.
	ErrConfig = New("invalid configuration")

	// ErrResource indicates an environment failure (unwritable directory,
	// open-handle failure, disk full). The current run aborts; a fresh
	// run is safe to retry.
	ErrResource = New("resource unavailable")
)

// IsNotFound checks if an error is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsLocked checks if an error is or wraps ErrLocked
func IsLocked(err error) bool {
	return err != nil && Is(err, ErrLocked)
}

// IsConfig checks if an error is or wraps ErrConfig
func IsConfig(err error) bool {
	return err != nil && Is(err, ErrConfig)
}

// IsResource checks if an error is or wraps ErrResource
func IsResource(err error) bool {
	return err != nil && Is(err, ErrResource)
}

// NewConfigError creates a configuration error with a formatted message
func NewConfigError(format string, args ...interface{}) error {
	return Wrap(ErrConfig, Newf(format, args...).Error())
}

// WrapResource wraps an error as a resource error with context
func WrapResource(err error, context string) error {
	return Wrap(Wrap(ErrResource, err.Error()), context)
}
