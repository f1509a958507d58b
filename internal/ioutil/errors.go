// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package ioutil provides the byte-level utilities shared by every
// other package in fsais: file open/close, size queries, random
// tempfile naming, I/O accounting, and the typed error values the
// rest of the engine returns on any fatal condition.
package ioutil

import (
	"errors"
	"fmt"
)

// Error classes. All fatal paths in the engine wrap one of these,
// either via Fatalf (fmt.Errorf with %w) or as an *IOError, which
// unwraps to ErrIO, so callers can use errors.Is to classify a
// failure.
var (
	ErrConfig        = errors.New("fsais: configuration error")
	ErrTypeCapacity  = errors.New("fsais: integer type too narrow")
	ErrIO            = errors.New("fsais: I/O error")
	ErrInvariant     = errors.New("fsais: invariant violation")
)

// IOError is an extended error carrying the offending component's
// name alongside the message. A component string rather than a
// numeric code: fsais has no stable error-code table to keep in sync
// across components.
type IOError struct {
	Component string
	Msg       string
	Err       error
}

func (e *IOError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Msg)
}

func (e *IOError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Err, ErrIO}
	}
	return []error{ErrIO}
}

// NewIOError builds an *IOError identifying which component failed.
func NewIOError(component, msg string, cause error) *IOError {
	return &IOError{Component: component, Msg: msg, Err: cause}
}

// Fatalf builds a fatal error wrapping one of the sentinel classes
// above, identifying the offending component in the message.
func Fatalf(sentinel error, component, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", component, fmt.Sprintf(format, args...), sentinel)
}
