// Package errs provides the unified error type used across all of dbmeta.
//
// Every engine adapter (postgres, mysql, …) and every storage backend wraps
// its native errors into *errs.Error before returning them. The collection
// layer never inspects driver errors directly: it calls Classify and works
// with the closed Category vocabulary only.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.Timeout, "lock wait exceeded", pgErr)
//
//	// In the collector, decide what to do:
//	if errs.Classify(err) == errs.Permission {
//	    // record and move on, never retry
//	}
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Category is the permanent classification of a failure. All engines map
// their native codes into one of these values; new engines add a
// classifier, never a new category.
type Category int

const (
	Other       Category = iota // exhaustive fallback
	Permission                  // access denied / insufficient privilege
	Timeout                     // deadline, lock wait, statement timeout
	Connection                  // cannot reach or keep a session with the server
	NotFound                    // object, schema or database does not exist
	InvalidData                 // catalog returned something we could not decode
)

var categoryNames = map[Category]string{
	Other:       "other",
	Permission:  "permission",
	Timeout:     "timeout",
	Connection:  "connection",
	NotFound:    "not_found",
	InvalidData: "invalid_data",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return "other"
}

// MarshalText encodes the category as its snake_case name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a snake_case category name.
func (c *Category) UnmarshalText(b []byte) error {
	for k, v := range categoryNames {
		if v == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown error category %q", string(b))
}

// Error is the single error type returned by all dbmeta subsystems.
// Message is always credential-free; Cause keeps the original driver error
// for local debugging and is never serialized.
type Error struct {
	Kind    Category
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, Redact(e.Cause.Error()))
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with the given kind and message and no cause.
func New(kind Category, msg string) *Error {
	return &Error{Kind: kind, Message: Redact(msg)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind Category, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: Redact(msg), Cause: cause}
}

// Classify maps any error to exactly one Category. It is total and pure.
func Classify(err error) Category {
	if err == nil {
		return Other
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Timeout
	}
	return Other
}

// Message returns the persistable text for err: the *Error message when
// present, otherwise the redacted error string.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return Redact(err.Error())
}

// IsPermission reports whether err is an access control failure.
func IsPermission(err error) bool { return Classify(err) == Permission }

// IsNotFound reports whether err represents a missing object.
func IsNotFound(err error) bool { return Classify(err) == NotFound }

// IsTimeout reports whether err was caused by a deadline or cancellation.
func IsTimeout(err error) bool { return Classify(err) == Timeout }

// IsConnection reports whether err is a connectivity failure.
func IsConnection(err error) bool { return Classify(err) == Connection }
