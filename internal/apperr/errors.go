package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can decide whether to reject, degrade,
// or mark a render as failed.
type Kind string

const (
	KindPrecondition Kind = "precondition" // bad input or missing prerequisite, rejected before any work starts
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindCollaborator Kind = "collaborator" // narration, image or script provider failed
	KindAsset        Kind = "asset"        // referenced media missing or unreadable
	KindComposition  Kind = "composition"  // encoding or concatenation failed
	KindUnavailable  Kind = "unavailable"  // optional provider not configured
	KindInternal     Kind = "internal"
)

// Error is the structured error carried through the render pipeline and API.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "scheduler.enqueue"
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and operation to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Precondition(op, format string, args ...interface{}) *Error {
	return Newf(KindPrecondition, op, format, args...)
}

func NotFound(op, format string, args ...interface{}) *Error {
	return Newf(KindNotFound, op, format, args...)
}

func Conflict(op, format string, args ...interface{}) *Error {
	return Newf(KindConflict, op, format, args...)
}

// KindOf returns the kind of the outermost *Error in the chain, or
// KindInternal when err carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message of err without the op prefix.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	return err.Error()
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindPrecondition:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindCollaborator:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
