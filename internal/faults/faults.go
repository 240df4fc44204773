// Package faults classifies pipeline failures so that retry policy and job
// records can reason about them uniformly.
package faults

import "errors"

// Class labels a failure by how the pipeline should react to it.
type Class string

const (
	// ClassNone marks success or an unclassified error.
	ClassNone Class = ""
	// ClassInput covers malformed documents and empty normalization results.
	// Never retried.
	ClassInput Class = "input"
	// ClassTransient covers timeouts, connection resets and 5xx-equivalent
	// upstream failures. Retried with backoff.
	ClassTransient Class = "transient"
	// ClassCircuitOpen marks fail-fast rejections while the breaker is open.
	ClassCircuitOpen Class = "circuit_open"
	// ClassDecode covers extraction responses that violate the contract.
	// Retried a small bounded number of times.
	ClassDecode Class = "decode"
	// ClassConflict covers unique-constraint races during merge application.
	ClassConflict Class = "conflict"
)

type classedError struct {
	class Class
	err   error
}

func (e *classedError) Error() string { return string(e.class) + ": " + e.err.Error() }

func (e *classedError) Unwrap() error { return e.err }

// WithClass wraps err with a failure class. A nil err returns nil.
func WithClass(class Class, err error) error {
	if err == nil {
		return nil
	}
	return &classedError{class: class, err: err}
}

// ClassOf returns the innermost class attached to err, or ClassNone.
func ClassOf(err error) Class {
	var ce *classedError
	if errors.As(err, &ce) {
		return ce.class
	}
	return ClassNone
}

// Retryable reports whether the class may be retried by the call layer.
func (c Class) Retryable() bool {
	switch c {
	case ClassTransient, ClassDecode:
		return true
	default:
		return false
	}
}
