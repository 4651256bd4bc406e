// Package apperr defines the domain error taxonomy. Every error carries a
// stable machine-readable code and a human-readable message and is surfaced
// to the caller unmodified.
package apperr

import "errors"

// Kind classifies an error for transport-level mapping (HTTP status, close code).
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindValidation
	KindAuthorization
	KindDelivery
)

// Error is a domain error with a stable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Authorization(code, message string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: message}
}

func Delivery(code, message string) *Error {
	return &Error{Kind: KindDelivery, Code: code, Message: message}
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// CodeOf returns the machine code of a domain error, or "" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
