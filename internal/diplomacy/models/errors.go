package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a diplomacy failure for callers and transports
type ErrorKind string

const (
	KindNotAuthorized        ErrorKind = "not_authorized"
	KindConflict             ErrorKind = "conflict"
	KindInvalidTransition    ErrorKind = "invalid_transition"
	KindIncompatibleRelation ErrorKind = "incompatible_relation"
	KindValidation           ErrorKind = "validation"
	KindNotFound             ErrorKind = "not_found"
)

// Sentinels for errors.Is matching on kind
var (
	ErrNotAuthorized        = &DiplomacyError{Kind: KindNotAuthorized}
	ErrConflict             = &DiplomacyError{Kind: KindConflict}
	ErrInvalidTransition    = &DiplomacyError{Kind: KindInvalidTransition}
	ErrIncompatibleRelation = &DiplomacyError{Kind: KindIncompatibleRelation}
	ErrValidation           = &DiplomacyError{Kind: KindValidation}
	ErrNotFound             = &DiplomacyError{Kind: KindNotFound}
)

// DiplomacyError is the single error type returned for domain rule violations.
// Field names the offending input for validation failures; Ref carries an
// entity id the caller can act on, such as the treaty already holding a pair.
type DiplomacyError struct {
	Kind    ErrorKind
	Message string
	Field   string
	Ref     string
}

func (e *DiplomacyError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	case e.Ref != "":
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Ref)
	case e.Message == "":
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any DiplomacyError of the same kind
func (e *DiplomacyError) Is(target error) bool {
	t, ok := target.(*DiplomacyError)
	return ok && t.Kind == e.Kind
}

func NotAuthorized(format string, args ...any) error {
	return &DiplomacyError{Kind: KindNotAuthorized, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a clash with an existing entity identified by ref
func Conflict(ref, format string, args ...any) error {
	return &DiplomacyError{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Ref: ref}
}

func InvalidTransition(format string, args ...any) error {
	return &DiplomacyError{Kind: KindInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

// IncompatibleRelation names the pair whose relation blocks the operation
func IncompatibleRelation(pair PairKey, format string, args ...any) error {
	return &DiplomacyError{Kind: KindIncompatibleRelation, Message: fmt.Sprintf(format, args...), Ref: string(pair)}
}

func Validation(field, format string, args ...any) error {
	return &DiplomacyError{Kind: KindValidation, Message: fmt.Sprintf(format, args...), Field: field}
}

func NotFound(format string, args ...any) error {
	return &DiplomacyError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// AsDiplomacyError unwraps err to a DiplomacyError when there is one
func AsDiplomacyError(err error) (*DiplomacyError, bool) {
	var de *DiplomacyError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
