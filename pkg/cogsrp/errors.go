package cogsrp

import (
	"errors"
	"fmt"
)

// Kind tags an error the way a caller across language boundaries can branch
// on without string-matching a message.
type Kind string

const (
	KindInvalidParameter             Kind = "InvalidParameter"
	KindInvalidAuthenticationFlowType Kind = "InvalidAuthenticationFlowType"
	KindNotAuthorized                Kind = "NotAuthorized"
	KindNetworkError                 Kind = "NetworkError"
	KindIdPError                     Kind = "IdPError"
	KindCryptoInvariant              Kind = "CryptoInvariant"
)

// Error is the one error type every operation in this package returns or
// hands to a Callback's OnFailure. Message is human-readable; Kind is
// stable and meant for programmatic branching.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cogsrp: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("cogsrp: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, cogsrp.NotAuthorized) style sentinels below.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind && other.Message == ""
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Sentinel values usable with errors.Is(err, cogsrp.ErrNotAuthorized) to
// test only the Kind, ignoring Message.
var (
	ErrInvalidParameter             = &Error{Kind: KindInvalidParameter}
	ErrInvalidAuthenticationFlowType = &Error{Kind: KindInvalidAuthenticationFlowType}
	ErrNotAuthorized                = &Error{Kind: KindNotAuthorized}
	ErrNetwork                      = &Error{Kind: KindNetworkError}
	ErrIdP                          = &Error{Kind: KindIdPError}
	ErrCryptoInvariant              = &Error{Kind: KindCryptoInvariant}
)
