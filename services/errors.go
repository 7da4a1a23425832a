package services

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUpstream
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindUpstream:
		return "UPSTREAM"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	default:
		return "INTERNAL"
	}
}

// Error messages shared by the HTTP layer and tests.
const (
	ErrMsgProductNotFound  = "product not found"
	ErrMsgAddressNotFound  = "address not found"
	ErrMsgOrderNotFound    = "order not found"
	ErrMsgCartEmpty        = "cart is empty"
	ErrMsgItemsRequired    = "order must contain at least one item"
	ErrMsgQuantityPositive = "quantity must be at least 1"
	ErrMsgQuantityTooLarge = "quantity must be at most 1000"
	ErrMsgInvalidPayment   = "invalid payment method"
	ErrMsgNotesTooLong     = "order notes must be at most 500 characters"
	ErrMsgNotCancellable   = "order can no longer be cancelled"
	ErrMsgCartBusy         = "cart was modified concurrently, please retry"
	ErrMsgPaymentInit      = "payment initiation failed"
	ErrMsgInvalidLogin     = "invalid email or password"
)

// Error carries a Kind that controllers map to a status code. Message is
// safe to show to clients; Err is the cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func NewValidationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NewConflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func NewUpstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

func NewUnauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func NewInternal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf returns KindInternal for errors that are not *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
