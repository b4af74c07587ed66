// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
)

// ErrorKind names a failure a caller can act on. The string doubles as the
// API error code.
type ErrorKind string

const (
	KindInsufficientBalance           ErrorKind = "InsufficientBalance"
	KindInsufficientAllowance         ErrorKind = "InsufficientAllowance"
	KindAlreadyOnList                 ErrorKind = "AlreadyOnList"
	KindCallerIsOwner                 ErrorKind = "CallerIsOwner"
	KindCallerIsNotOwner              ErrorKind = "CallerIsNotOwner"
	KindNotOnPossibleBuyersList       ErrorKind = "NotOnPossibleBuyersList"
	KindNotOnBuyersList               ErrorKind = "NotOnBuyersList"
	KindTransferError                 ErrorKind = "TransferError"
	KindContractReportInsertionFailed ErrorKind = "ContractReportInsertionFailed"

	KindNotFound       ErrorKind = "NotFound"
	KindInvalidRequest ErrorKind = "InvalidRequest"
	KindConflict       ErrorKind = "Conflict"
	KindUnauthorized   ErrorKind = "Unauthorized"
)

// Error is a typed domain failure. Two errors match under errors.Is when
// their kinds are equal.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInsufficientBalance           = &Error{Kind: KindInsufficientBalance}
	ErrInsufficientAllowance         = &Error{Kind: KindInsufficientAllowance}
	ErrAlreadyOnList                 = &Error{Kind: KindAlreadyOnList}
	ErrCallerIsOwner                 = &Error{Kind: KindCallerIsOwner}
	ErrCallerIsNotOwner              = &Error{Kind: KindCallerIsNotOwner}
	ErrNotOnPossibleBuyersList       = &Error{Kind: KindNotOnPossibleBuyersList}
	ErrNotOnBuyersList               = &Error{Kind: KindNotOnBuyersList}
	ErrTransferError                 = &Error{Kind: KindTransferError}
	ErrContractReportInsertionFailed = &Error{Kind: KindContractReportInsertionFailed}

	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
)

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when err
// is not a domain error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
