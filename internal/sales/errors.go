package sales

import (
	"errors"
	"strings"
)

var (
	ErrForbidden  = errors.New("operación no permitida")
	ErrValidation = errors.New("datos inválidos")
	ErrNotFound   = errors.New("registro no encontrado")
)

// ValidationError carries the message shown to the user. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// reasonError keeps a user-facing reason while matching a sentinel.
type reasonError struct {
	msg  string
	kind error
}

func (e *reasonError) Error() string        { return e.msg }
func (e *reasonError) Is(target error) bool { return target == e.kind }

func forbidden(msg string) error { return &reasonError{msg: msg, kind: ErrForbidden} }
func notFound(msg string) error  { return &reasonError{msg: msg, kind: ErrNotFound} }

// Message returns the text to flash for err. Validation and permission
// errors keep their own message; anything else falls back to fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var re *reasonError
	if errors.As(err, &re) {
		return re.msg
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}

type messageRule struct {
	contains string
	message  string
}

// translate maps a backend error onto the first rule whose substring occurs in
// its message, or onto fallback.
func translate(err error, fallback string, rules ...messageRule) error {
	if err == nil {
		return nil
	}
	text := err.Error()
	for _, rule := range rules {
		if strings.Contains(text, rule.contains) {
			return &friendlyError{msg: rule.message, cause: err}
		}
	}
	return &friendlyError{msg: fallback, cause: err}
}

type friendlyError struct {
	msg   string
	cause error
}

func (e *friendlyError) Error() string { return e.msg }
func (e *friendlyError) Unwrap() error { return e.cause }
