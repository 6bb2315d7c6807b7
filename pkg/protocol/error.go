package protocol

import (
	"errors"
	"fmt"
)

// DecodeErrorKind identifies why an inbound message was rejected.
type DecodeErrorKind uint8

const (
	DecodeSyntax      DecodeErrorKind = iota + 1 // Not a JSON object
	DecodeMissingType                            // No type tag
	DecodeVersion                                // Unsupported protocol version
	DecodePayload                                // Payload does not match the type's shape
	DecodeTooLarge                               // Frame exceeds MaxEnvelopeBytes
)

// String returns the string representation of the kind.
func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeSyntax:
		return "Syntax"
	case DecodeMissingType:
		return "MissingType"
	case DecodeVersion:
		return "Version"
	case DecodePayload:
		return "Payload"
	case DecodeTooLarge:
		return "TooLarge"
	default:
		return "Unknown"
	}
}

// DecodeError is returned by Decode and ParseEvent. It never escapes as a
// panic; callers log it and drop the message.
type DecodeError struct {
	Kind DecodeErrorKind
	Type MessageType // Envelope type, when it could be read
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	msg := "protocol: decode " + e.Kind.String()
	if e.Type != "" {
		msg += " (" + string(e.Type) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is a *DecodeError and returns it.
func IsDecodeError(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func newDecodeError(kind DecodeErrorKind, t MessageType, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Type: t, Err: fmt.Errorf(format, args...)}
}
