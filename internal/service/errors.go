package service

import (
	"errors"
	"fmt"
)

// TransportError means the request did not produce a usable response:
// network/DNS failure, timeout, non-2xx status or an undecodable body.
type TransportError struct {
	Method string
	Path   string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api %s %s failed with status %d: %v", e.Method, e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("api %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is an application-level failure: the API answered 2xx but the
// body carried an "error" field. Message is meant to be shown verbatim.
type APIError struct {
	Path    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %s: %s", e.Path, e.Message)
}

var ErrEmptyExplanation = errors.New("explanation service returned no text")

// UserMessage picks what the UI shows for err: the verbatim API message for
// application errors, fallback for everything else.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
