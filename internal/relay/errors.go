package relay

import "fmt"

// Kind classifies a relay error. Only KindAuth is fatal to the session;
// everything else is reported to the client as an error frame and the
// connection stays open.
type Kind int

const (
	KindAuth Kind = iota
	KindValidation
	KindNotFound
	KindAuthorization
	KindPersistence
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not-found"
	case KindAuthorization:
		return "authorization"
	case KindPersistence:
		return "persistence"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error carries a client-visible message plus an optional underlying cause
// that only ever reaches the logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the session must be closed after this error.
func (e *Error) Fatal() bool { return e.Kind == KindAuth }

func authError(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

func validationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func notFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func authorizationError(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

func persistenceError(message string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}
