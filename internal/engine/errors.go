package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/flowtree/internal/ir"
)

// Error is a failure reported by an engine operation.
//
// Validation errors are returned before any lock or transaction is taken.
// PERSISTENCE_FAILURE wraps the underlying store or lock error, and the
// transaction it interrupted has been rolled back.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// FlowID identifies the affected flow, when there is one.
	FlowID ir.FlowID

	// Identifier is the path the operation was addressing, if any.
	Identifier string

	// Err is the underlying cause.
	Err error
}

// Code categorizes engine errors.
type Code string

const (
	// CodeInvalidIdentifier indicates a malformed path or flow id, or a
	// path that does not belong to the flow it was submitted under.
	CodeInvalidIdentifier Code = "INVALID_IDENTIFIER_FORMAT"

	// CodeRootFlowInsert indicates a generic insert at depth 2 or less.
	CodeRootFlowInsert Code = "ROOT_FLOW_INSERT_NOT_ALLOWED"

	// CodeFlowAlreadyExists indicates insertMainFlow on an existing flow.
	CodeFlowAlreadyExists Code = "FLOW_ALREADY_EXISTS"

	// CodeFlowNotFound indicates a flow-level operation on a missing flow.
	CodeFlowNotFound Code = "FLOW_NOT_FOUND"

	// CodeCrossParentMove indicates a rename that would change the parent.
	CodeCrossParentMove Code = "CROSS_PARENT_MOVE_NOT_ALLOWED"

	// CodePersistence indicates a store or lock failure.
	CodePersistence Code = "PERSISTENCE_FAILURE"
)

// Sentinels for errors.Is. Any *Error matches the sentinel with the same code.
var (
	ErrInvalidIdentifier = &Error{Code: CodeInvalidIdentifier}
	ErrRootFlowInsert    = &Error{Code: CodeRootFlowInsert}
	ErrFlowAlreadyExists = &Error{Code: CodeFlowAlreadyExists}
	ErrFlowNotFound      = &Error{Code: CodeFlowNotFound}
	ErrCrossParentMove   = &Error{Code: CodeCrossParentMove}
	ErrPersistence       = &Error{Code: CodePersistence}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.FlowID != 0 && e.Identifier != "":
		return fmt.Sprintf("%s: %s (flow=%s, identifier=%s)", e.Code, msg, e.FlowID, e.Identifier)
	case e.FlowID != 0:
		return fmt.Sprintf("%s: %s (flow=%s)", e.Code, msg, e.FlowID)
	case e.Identifier != "":
		return fmt.Sprintf("%s: %s (identifier=%s)", e.Code, msg, e.Identifier)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func invalidIdentifier(flow ir.FlowID, identifier string, err error) *Error {
	return &Error{
		Code:       CodeInvalidIdentifier,
		Message:    "invalid identifier format",
		FlowID:     flow,
		Identifier: identifier,
		Err:        err,
	}
}

func persistenceFailure(op string, flow ir.FlowID, err error) *Error {
	return &Error{
		Code:    CodePersistence,
		Message: op + " failed",
		FlowID:  flow,
		Err:     err,
	}
}

// ParseIdentifier parses a dotted path, reporting INVALID_IDENTIFIER_FORMAT.
func ParseIdentifier(s string) (ir.Path, error) {
	p, err := ir.ParsePath(s)
	if err != nil {
		return nil, invalidIdentifier(0, s, err)
	}
	return p, nil
}

// ParseFlow parses a flow id, reporting INVALID_IDENTIFIER_FORMAT.
func ParseFlow(s string) (ir.FlowID, error) {
	f, err := ir.ParseFlowID(s)
	if err != nil {
		return 0, invalidIdentifier(0, s, err)
	}
	return f, nil
}
