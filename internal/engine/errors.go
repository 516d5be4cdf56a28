package engine

import "errors"

// ErrorKind classifies a rule failure so the transport layer can map it to a
// status code without string matching.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindPrecondition ErrorKind = "precondition_failed"
	KindValidation   ErrorKind = "validation_failed"
	KindConflict     ErrorKind = "conflict"
)

type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Message: msg} }
func Precondition(msg string) error { return &Error{Kind: KindPrecondition, Message: msg} }
func Validation(msg string) error   { return &Error{Kind: KindValidation, Message: msg} }
func Conflict(msg string) error     { return &Error{Kind: KindConflict, Message: msg} }

// KindOf returns the classification of err, or empty for untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
