package utils

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error the way the pages present it.
type Kind int

const (
	// KindValidation is a form or file-type problem caught before any call.
	KindValidation Kind = iota + 1
	// KindServer is a message reported by the backend.
	KindServer
	// KindTransport is a request that got no usable response.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy is returned when a control already has a request in flight.
	ErrBusy = errors.New("request already in progress")
	// ErrNoSelection is returned when an upload is attempted with no file.
	ErrNoSelection = errors.New("no file selected")
)

// ViewError is an error with a message fit for display next to a control.
type ViewError struct {
	Kind    Kind
	Code    int
	Message string
	cause   error
}

func (e *ViewError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (code %d): %s: %v", e.Kind, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (code %d): %s", e.Kind, e.Code, e.Message)
}

func (e *ViewError) Unwrap() error { return e.cause }

func Validation(message string) error {
	return &ViewError{Kind: KindValidation, Message: message}
}

func Server(code int, message string) error {
	return &ViewError{Kind: KindServer, Code: code, Message: message}
}

func Transport(message string, cause error) error {
	return &ViewError{Kind: KindTransport, Message: message, cause: cause}
}

// AsViewError unwraps err to a *ViewError if there is one in the chain.
func AsViewError(err error) (*ViewError, bool) {
	var ve *ViewError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// UserMessage returns the message to show for err. Server and validation
// errors carry their own text when it is non-empty; everything else gets
// fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	ve, ok := AsViewError(err)
	if !ok || ve.Kind == KindTransport || ve.Message == "" {
		return fallback
	}
	return ve.Message
}
