package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const (
	// CodeNetwork marks a failure that never produced an HTTP response.
	CodeNetwork = 0
	// CodeInvalidDocument marks a stored document that failed to decode.
	CodeInvalidDocument = http.StatusUnprocessableEntity
)

// Error is the structured failure every Client operation reports.
type Error struct {
	Code    int
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.Code == CodeNetwork {
		return fmt.Sprintf("remote: network error: %s", e.Message)
	}
	return fmt.Sprintf("remote: status %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Retryable reports whether another attempt may succeed: network failures, 429 and 5xx.
func (e *Error) Retryable() bool {
	if errors.Is(e.err, context.Canceled) || errors.Is(e.err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case e.Code == CodeNetwork:
		return true
	case e.Code == http.StatusTooManyRequests:
		return true
	case e.Code >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// NewError builds an Error with the given status code.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// IsRetryable reports whether err is an *Error worth retrying.
func IsRetryable(err error) bool {
	var remoteErr *Error
	if !errors.As(err, &remoteErr) {
		return false
	}
	return remoteErr.Retryable()
}

// StatusOf returns the status code carried by err, or CodeNetwork when there is none.
func StatusOf(err error) int {
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return remoteErr.Code
	}
	return CodeNetwork
}

// statusCoder is implemented by collaborator errors that know their HTTP meaning,
// such as a revoked grant surfacing through the token source.
type statusCoder interface {
	StatusCode() int
}

// httpStatusCoder is implemented by AWS SDK response errors.
type httpStatusCoder interface {
	HTTPStatusCode() int
}

// classify converts a transport failure into an *Error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var remoteErr *Error
	if errors.As(err, &remoteErr) {
		return err
	}
	var coded statusCoder
	if errors.As(err, &coded) {
		return &Error{Code: coded.StatusCode(), Message: err.Error(), err: err}
	}
	var responseErr httpStatusCoder
	if errors.As(err, &responseErr) {
		return &Error{Code: responseErr.HTTPStatusCode(), Message: err.Error(), err: err}
	}
	return &Error{Code: CodeNetwork, Message: err.Error(), err: err}
}

func invalidDocument(err error) error {
	return &Error{Code: CodeInvalidDocument, Message: err.Error(), err: err}
}
