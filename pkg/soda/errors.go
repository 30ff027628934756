package soda

import (
	"errors"
	"fmt"
	"time"
)

// StatusError represents a non-2xx SODA response with additional context.
type StatusError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string

	// RetryAfter is the server-requested backoff on 429 responses,
	// zero when the header was absent.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("soda %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
}

// TransportError represents a connection or timeout failure before any
// HTTP status was received.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("soda transport error: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ClassOf extracts the ErrorClass from an error returned by the client.
// Unrecognized errors classify as network failures.
func ClassOf(err error) ErrorClass {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.ErrorClass
	}
	return ErrorClassNetwork
}
