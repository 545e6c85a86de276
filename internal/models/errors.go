package models

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindUnsupportedSite  ErrorKind = "unsupported_site"
	KindInvalidURL       ErrorKind = "invalid_url"
	KindTransportFailure ErrorKind = "transport_failure"
	KindParseFailure     ErrorKind = "parse_failure"
)

// Error describes why a scrape produced no product. Status follows HTTP
// semantics so callers can surface it unchanged.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Status  int       `json:"status"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether a fresh attempt could succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransportFailure || e.Kind == KindParseFailure
}

func NewUnsupportedSite(message string) *Error {
	return &Error{Kind: KindUnsupportedSite, Message: message, Status: http.StatusNotFound}
}

func NewInvalidURL() *Error {
	return &Error{Kind: KindInvalidURL, Message: "Invalid URL!", Status: http.StatusNotFound}
}

// NewTransportFailure uses the upstream HTTP status when one is known.
func NewTransportFailure(message string, status int) *Error {
	if status <= 0 {
		status = http.StatusInternalServerError
	}
	return &Error{Kind: KindTransportFailure, Message: message, Status: status}
}

func NewParseFailure(message string) *Error {
	return &Error{Kind: KindParseFailure, Message: message, Status: http.StatusInternalServerError}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
