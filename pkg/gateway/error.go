package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies adapter failures. The orchestrator maps KindTransport to
// retryable outcomes and KindBusiness to a terminal failed record.
type Kind string

const (
	KindAuth      Kind = "AUTH_FAILURE"
	KindBusiness  Kind = "BUSINESS_REJECTED"
	KindTransport Kind = "TRANSPORT"
	KindConfig    Kind = "CONFIG"
	KindUnknown   Kind = "UNKNOWN"
)

// Error is a structured adapter failure. Code is provider-specific.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s [%s/%s]", e.Message, e.Kind, e.Code)
	}
	return fmt.Sprintf("gateway: %s [%s]", e.Message, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func NewError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Transport wraps a network-level failure. No provider-side effect may be
// assumed when this is returned.
func Transport(err error) *Error {
	return &Error{Kind: KindTransport, Code: "TRANSPORT", Message: err.Error(), cause: err}
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

func IsTransport(err error) bool {
	ge, ok := AsError(err)
	return ok && ge.Kind == KindTransport
}
