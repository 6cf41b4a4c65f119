package auth

import (
	"errors"
	"net/http"
)

// Kind classifies why an authenticated invocation was rejected.
type Kind int

// Rejection kinds. The zero Kind means the error was not produced by the gate.
const (
	ConfigurationError Kind = iota + 1
	AuthenticationRequired
	InvalidCredential
)

// Client-facing messages for each rejection kind.
const (
	MessageAuthenticationRequired = "Bearer authentication is required"
	MessageInvalidCredential      = "Invalid token"
	MessageConfiguration          = "Internal Server Error"
)

var (
	// ErrConfiguration matches errors caused by a miswired receiver.
	ErrConfiguration = errors.New("authentication misconfigured")
	// ErrAuthenticationRequired matches requests without a usable bearer token.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrInvalidCredential matches tokens the verifier rejected.
	ErrInvalidCredential = errors.New("invalid credential")
)

// String returns a short label for the kind, suitable for metric labels.
func (k Kind) String() string {
	switch k {
	case ConfigurationError:
		return "configuration_error"
	case AuthenticationRequired:
		return "authentication_required"
	case InvalidCredential:
		return "invalid_credential"
	default:
		return "unknown"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case AuthenticationRequired, InvalidCredential:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) sentinel() error {
	switch k {
	case ConfigurationError:
		return ErrConfiguration
	case AuthenticationRequired:
		return ErrAuthenticationRequired
	case InvalidCredential:
		return ErrInvalidCredential
	}
	return nil
}

// Error is a categorized rejection. Message is safe to return to clients;
// Err holds the underlying cause and is only meant for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusOf returns the HTTP status for err. Errors that are not an *Error
// are treated as server faults.
func StatusOf(err error) int {
	return KindOf(err).Status()
}
