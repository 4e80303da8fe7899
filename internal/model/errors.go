package model

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per Kind. Match with errors.Is.
var (
	ErrConstraintViolation = errors.New("constraint violation")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyVoted        = errors.New("already voted")
	ErrUnknownRegistrant   = errors.New("unknown registrant")
	ErrSensor              = errors.New("sensor error")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrInvalidInput        = errors.New("invalid input")
)

// Kind categorises an Error.
type Kind string

const (
	KindConstraint        Kind = "CONSTRAINT_VIOLATION"
	KindNotFound          Kind = "NOT_FOUND"
	KindAlreadyVoted      Kind = "ALREADY_VOTED"
	KindUnknownRegistrant Kind = "UNKNOWN_REGISTRANT"
	KindSensor            Kind = "SENSOR_ERROR"
	KindUnavailable       Kind = "STORE_UNAVAILABLE"
	KindInvalidInput      Kind = "INVALID_INPUT"
)

var kindSentinels = map[Kind]error{
	KindConstraint:        ErrConstraintViolation,
	KindNotFound:          ErrNotFound,
	KindAlreadyVoted:      ErrAlreadyVoted,
	KindUnknownRegistrant: ErrUnknownRegistrant,
	KindSensor:            ErrSensor,
	KindUnavailable:       ErrStoreUnavailable,
	KindInvalidInput:      ErrInvalidInput,
}

// parents lists the broader kinds a kind also satisfies. A duplicate vote is
// a constraint violation; an unknown registrant is a missing row.
var parents = map[Kind]Kind{
	KindAlreadyVoted:      KindConstraint,
	KindUnknownRegistrant: KindNotFound,
}

// Error is the error type returned across component boundaries.
//
// Op names the failing operation (e.g. "cast vote"). Err, when set, is the
// wrapped cause; it is never a raw storage-engine error.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = kindSentinels[e.Kind].Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of e's kind and of any broader kind.
func (e *Error) Is(target error) bool {
	for k := e.Kind; k != ""; k = parents[k] {
		if kindSentinels[k] == target {
			return true
		}
	}
	return false
}

// NewError creates an Error with a message.
func NewError(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// WrapError creates an Error around a cause.
func WrapError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the most specific kind of err, or "" if err carries none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range []Kind{KindAlreadyVoted, KindUnknownRegistrant, KindConstraint, KindNotFound, KindSensor, KindUnavailable, KindInvalidInput} {
		if errors.Is(err, kindSentinels[k]) {
			return k
		}
	}
	return ""
}
