// Package queryerr defines the error taxonomy shared by the query composition
// engine, the storage collaborator and the batched resolution layer.
package queryerr

import (
	"errors"
	"fmt"
)

// Code classifies a query error. Codes surface to GraphQL clients as
// extensions.code.
type Code string

const (
	CodeInvalidIdentifier    Code = "INVALID_IDENTIFIER"
	CodeIncompleteRangeSpec  Code = "INCOMPLETE_RANGE_SPEC"
	CodeInvalidLimit         Code = "INVALID_LIMIT"
	CodeInconsistentKeyState Code = "INCONSISTENT_KEY_STATE"
	CodeStorageUnavailable   Code = "STORAGE_UNAVAILABLE"
)

// Sentinels for errors.Is comparisons. Any *Error with the same code matches.
var (
	ErrInvalidIdentifier    = &Error{Code: CodeInvalidIdentifier}
	ErrIncompleteRangeSpec  = &Error{Code: CodeIncompleteRangeSpec}
	ErrInvalidLimit         = &Error{Code: CodeInvalidLimit}
	ErrInconsistentKeyState = &Error{Code: CodeInconsistentKeyState}
	ErrStorageUnavailable   = &Error{Code: CodeStorageUnavailable}
)

// Error is a classified query error.
type Error struct {
	Code    Code
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Field == "" && t.Message == ""
}

// Extensions is picked up by graphql-go when formatting resolver errors.
func (e *Error) Extensions() map[string]interface{} {
	extensions := map[string]interface{}{
		"code": string(e.Code),
	}
	if e.Field != "" {
		extensions["field"] = e.Field
	}
	return extensions
}

// InvalidIdentifier reports a malformed external identifier.
func InvalidIdentifier(field, value string, err error) error {
	return &Error{
		Code:    CodeInvalidIdentifier,
		Field:   field,
		Message: fmt.Sprintf("invalid identifier %q", value),
		Err:     err,
	}
}

// IncompleteRangeSpec reports a range-like input with only some of its bounds.
func IncompleteRangeSpec(field, message string) error {
	return &Error{Code: CodeIncompleteRangeSpec, Field: field, Message: message}
}

// InvalidRangeBound reports a range bound that cannot be read as the range's
// value type. The range is unusable, so it shares the incomplete-range code.
func InvalidRangeBound(field string, value interface{}, err error) error {
	return &Error{
		Code:    CodeIncompleteRangeSpec,
		Field:   field,
		Message: fmt.Sprintf("invalid bound %v", value),
		Err:     err,
	}
}

// InvalidLimit reports an unusable page request.
func InvalidLimit(field, message string) error {
	return &Error{Code: CodeInvalidLimit, Field: field, Message: message}
}

// InconsistentKeyState reports a referential-integrity gap found while
// resolving related objects.
func InconsistentKeyState(field, message string) error {
	return &Error{Code: CodeInconsistentKeyState, Field: field, Message: message}
}

// StorageUnavailable wraps an error returned by the storage layer.
func StorageUnavailable(err error) error {
	if err == nil {
		return nil
	}
	var qe *Error
	if errors.As(err, &qe) {
		return err
	}
	return &Error{Code: CodeStorageUnavailable, Message: "storage unavailable", Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code, true
	}
	return "", false
}
