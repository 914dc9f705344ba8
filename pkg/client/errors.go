package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled
	// during a backoff wait.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass classifies a failed attempt and decides whether it is
// retried.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses. Never retried.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses. Retried.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents connection-level failures. Retried.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents an attempt that exceeded its
	// per-attempt timeout. Never retried, even with budget remaining.
	ErrorClassTimeout ErrorClass = "timeout"
)

// RequestError is a classified backend request failure.
type RequestError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Err != nil:
		return fmt.Sprintf("backend %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("backend %s error (status %d): %s",
			e.Class, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("backend %s error: %s: %v", e.Class, e.Message, e.Err)
	default:
		return fmt.Sprintf("backend %s error: %s", e.Class, e.Message)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error class is retryable.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	case ErrorClassClient, ErrorClassTimeout:
		return false
	default:
		return false
	}
}

// classifyStatus maps an HTTP status code >= 400 to an error class.
func classifyStatus(statusCode int) ErrorClass {
	if statusCode >= 400 && statusCode < 500 {
		return ErrorClassClient
	}
	return ErrorClassServer
}
