package types

import (
	"errors"
	"fmt"
)

// CancelError signals that a case decided mid-flight that it cannot proceed.
// It is classified as StatusCancelled, never as a failure.
type CancelError struct {
	Reason string
}

func (e *CancelError) Error() string {
	if e.Reason == "" {
		return "cancelled"
	}
	return fmt.Sprintf("cancelled: %s", e.Reason)
}

// NewCancelError creates a new CancelError
func NewCancelError(reason string) *CancelError {
	return &CancelError{Reason: reason}
}

// IsCancelError checks if the error is or wraps a CancelError
func IsCancelError(err error) bool {
	var cancelErr *CancelError
	return err != nil && errors.As(err, &cancelErr)
}

// AsCancelError unwraps the CancelError carried by err, if any.
func AsCancelError(err error) (*CancelError, bool) {
	var cancelErr *CancelError
	if err != nil && errors.As(err, &cancelErr) {
		return cancelErr, true
	}
	return nil, false
}

// IgnoreError signals that a case declined to run, e.g. because a
// precondition does not hold in the current environment. It is classified
// as StatusIgnored and does not count against the run.
type IgnoreError struct {
	Reason string
}

func (e *IgnoreError) Error() string {
	if e.Reason == "" {
		return "ignored"
	}
	return fmt.Sprintf("ignored: %s", e.Reason)
}

// NewIgnoreError creates a new IgnoreError
func NewIgnoreError(reason string) *IgnoreError {
	return &IgnoreError{Reason: reason}
}

// IsIgnoreError checks if the error is or wraps an IgnoreError
func IsIgnoreError(err error) bool {
	var ignoreErr *IgnoreError
	return err != nil && errors.As(err, &ignoreErr)
}

// AsIgnoreError unwraps the IgnoreError carried by err, if any.
func AsIgnoreError(err error) (*IgnoreError, bool) {
	var ignoreErr *IgnoreError
	if err != nil && errors.As(err, &ignoreErr) {
		return ignoreErr, true
	}
	return nil, false
}

// ResourceError marks a failure in resource acquisition or release rather
// than in a case body. Cases that depended on the resource fail with it.
type ResourceError struct {
	Op  string // "acquire" or "release"
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s failed: %v", e.Op, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError creates a new ResourceError for the given operation
func NewResourceError(op string, err error) *ResourceError {
	return &ResourceError{Op: op, Err: err}
}

// IsResourceError checks if the error is or wraps a ResourceError
func IsResourceError(err error) bool {
	var resErr *ResourceError
	return err != nil && errors.As(err, &resErr)
}
