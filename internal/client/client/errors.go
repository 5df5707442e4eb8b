package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels matched by *Error through errors.Is.
var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLocalStorage = errors.New("local storage failure")
	ErrMalformed    = errors.New("malformed response")
)

// ErrorKind classifies failures so callers can branch without parsing
// messages.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindTransient covers timeouts, refused connections, offline and 5xx.
	KindTransient
	// KindValidation is a 4xx other than 401.
	KindValidation
	// KindAuth is a 401.
	KindAuth
	// KindRefreshFailed means the session could not be renewed and was dropped.
	KindRefreshFailed
	// KindLocalStorage is a failure of the local database.
	KindLocalStorage
	// KindMalformed is a response that could not be decoded.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindRefreshFailed:
		return "refresh_failed"
	case KindLocalStorage:
		return "local_storage"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by the transport and the services built
// on top of it.
type Error struct {
	Kind ErrorKind
	// Op names the failed operation, e.g. "POST /notes/sync".
	Op string
	// Status is the HTTP status, 0 when no response was received.
	Status int
	// Message is the reason reported by the server, if any.
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (%d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindTransient
	case ErrUnauthorized:
		return e.Kind == KindAuth || e.Kind == KindRefreshFailed
	case ErrLocalStorage:
		return e.Kind == KindLocalStorage
	case ErrMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

// Reason is a short human-readable explanation for the CLI.
func (e *Error) Reason() string {
	switch {
	case e.Kind == KindTransient && e.Status >= 500:
		return "server error, try again later"
	case e.Kind == KindTransient:
		return "server unreachable"
	case e.Kind == KindAuth:
		return "invalid credentials"
	case e.Kind == KindRefreshFailed:
		return "session expired, please log in again"
	case e.Status == http.StatusConflict:
		return "already exists"
	case e.Kind == KindValidation && e.Message != "":
		return e.Message
	case e.Kind == KindLocalStorage:
		return "local storage failure"
	case e.Kind == KindMalformed:
		return "unexpected server response"
	}
	return e.Error()
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonOf returns a caller-facing reason for err.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason()
	}
	return err.Error()
}

// LocalStorageError wraps a database failure of op.
func LocalStorageError(op string, err error) error {
	return &Error{Kind: KindLocalStorage, Op: op, Err: err}
}

// kindForStatus maps an HTTP error status to a kind.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return KindTransient
	case status >= 500:
		return KindTransient
	case status >= 400:
		return KindValidation
	}
	return KindUnknown
}
