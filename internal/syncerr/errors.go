// Package syncerr defines the error taxonomy shared by the catalog client,
// the state store and the sync cycle.
package syncerr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a sync failure so callers can branch on it.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors that are not *Error
	KindUnknown Kind = iota
	// KindNotFound means the requested page is beyond the available range.
	// It is an expected terminal condition for pagination.
	KindNotFound
	// KindTransient covers network failures, 5xx and unexpected statuses
	KindTransient
	// KindMalformed means a response body did not decode as expected
	KindMalformed
	// KindPersistence means a durable write of the sync state failed
	KindPersistence
)

// String returns the lowercase name of the kind, used as a log and metric attribute
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is the tagged error carried through the sync pipeline
type Error struct {
	Kind Kind
	// Op names the failing operation, e.g. "fetch page 3" or "save state"
	Op string
	// StatusCode is the HTTP status, when the failure came from a response
	StatusCode int
	URL        string
	// Detail is the error message recovered from the response body, if any
	Detail string
	// RetryAfter is the wait the server asked for before the next attempt
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NotFound creates a KindNotFound error
func NotFound(op string, statusCode int, url, detail string) *Error {
	return &Error{Kind: KindNotFound, Op: op, StatusCode: statusCode, URL: url, Detail: detail}
}

// Transient creates a KindTransient error
func Transient(op string, statusCode int, url, detail string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, StatusCode: statusCode, URL: url, Detail: detail, Err: err}
}

// Malformed creates a KindMalformed error
func Malformed(op, url string, err error) *Error {
	return &Error{Kind: KindMalformed, Op: op, URL: url, Err: err}
}

// Persistence creates a KindPersistence error
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
