/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package errors defines the connector's error kinds: wrappers that let a
// caller test "what went wrong" (errors.As) without the orchestrator
// needing to know how each layer renders it onto the wire.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrProcessNotFound is returned by the process store when no record matches a given PID.
	ErrProcessNotFound = errors.New("process not found")

	// ErrMateNotFound is returned when no participant record matches a given identity.
	ErrMateNotFound = errors.New("mate not found")
)

// NewTransient returns a transient error that wraps the given error in order to indicate to the caller that a retry may
// resolve the problem, whereas a non-transient (persistent) error will always fail with the same outcome if retried.
// Used for unreachable peers and database connectivity failures.
func NewTransient(err error) error {
	return &transientError{err: err}
}

// NewTransientf returns a transient error in order to indicate to the caller that a retry may resolve the problem,
// whereas a non-transient (persistent) error will always fail with the same outcome if retried.
func NewTransientf(format string, a ...interface{}) error {
	return &transientError{err: fmt.Errorf(format, a...)}
}

// IsTransient returns true if the given error is a 'transient' error.
func IsTransient(err error) bool {
	errTransientType := &transientError{}

	return errors.As(err, &errTransientType)
}

// NewBadRequest returns a 'bad request' error that wraps the given error in order to indicate to the caller that
// the request was invalid (400).
func NewBadRequest(err error) error {
	return &badRequestError{err: err}
}

// NewBadRequestf returns a 'bad request' error in order to indicate to the caller that the request was invalid.
func NewBadRequestf(format string, a ...interface{}) error {
	return &badRequestError{err: fmt.Errorf(format, a...)}
}

// IsBadRequest returns true if the given error is a 'bad request' error.
func IsBadRequest(err error) bool {
	errInvalidRequestType := &badRequestError{}

	return errors.As(err, &errInvalidRequestType)
}

// NewNotAllowed returns a 'not allowed' error, raised when the state machine rejects a transition
// for the given current state (409).
func NewNotAllowed(state fmt.Stringer, err error) error {
	return &notAllowedError{state: state.String(), err: err}
}

// NewNotAllowedf returns a 'not allowed' error carrying the current state and a formatted reason.
func NewNotAllowedf(state fmt.Stringer, format string, a ...interface{}) error {
	return &notAllowedError{state: state.String(), err: fmt.Errorf(format, a...)}
}

// IsNotAllowed returns true if the given error is a 'not allowed' error.
func IsNotAllowed(err error) bool {
	errNotAllowedType := &notAllowedError{}

	return errors.As(err, &errNotAllowedType)
}

// NotAllowedState returns the current-state string carried by a 'not allowed' error, or "" if
// err is not one.
func NotAllowedState(err error) string {
	errNotAllowedType := &notAllowedError{}

	if errors.As(err, &errNotAllowedType) {
		return errNotAllowedType.state
	}

	return ""
}

// NewNotFound returns a 'not found' error (404).
func NewNotFound(err error) error {
	return &notFoundError{err: err}
}

// NewNotFoundf returns a 'not found' error with a formatted reason.
func NewNotFoundf(format string, a ...interface{}) error {
	return &notFoundError{err: fmt.Errorf(format, a...)}
}

// IsNotFound returns true if the given error is a 'not found' error.
func IsNotFound(err error) bool {
	errNotFoundType := &notFoundError{}

	return errors.As(err, &errNotFoundType)
}

// NewUnauthorized returns an 'unauthorized' error: missing/invalid bearer token or hash mismatch
// (401).
func NewUnauthorized(err error) error {
	return &unauthorizedError{err: err}
}

// NewUnauthorizedf returns an 'unauthorized' error with a formatted reason.
func NewUnauthorizedf(format string, a ...interface{}) error {
	return &unauthorizedError{err: fmt.Errorf(format, a...)}
}

// IsUnauthorized returns true if the given error is an 'unauthorized' error.
func IsUnauthorized(err error) bool {
	errUnauthorizedType := &unauthorizedError{}

	return errors.As(err, &errUnauthorizedType)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string {
	return e.err.Error()
}

func (e *badRequestError) Unwrap() error {
	return e.err
}

type notAllowedError struct {
	state string
	err   error
}

func (e *notAllowedError) Error() string {
	return fmt.Sprintf("%s [state: %s]", e.err.Error(), e.state)
}

func (e *notAllowedError) Unwrap() error {
	return e.err
}

type notFoundError struct {
	err error
}

func (e *notFoundError) Error() string {
	return e.err.Error()
}

func (e *notFoundError) Unwrap() error {
	return e.err
}

type unauthorizedError struct {
	err error
}

func (e *unauthorizedError) Error() string {
	return e.err.Error()
}

func (e *unauthorizedError) Unwrap() error {
	return e.err
}
