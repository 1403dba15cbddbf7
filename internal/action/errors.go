// Package action holds the dispatcher, the static action registry and the
// error taxonomy shared by every remote operation.
package action

import (
	"errors"
	"fmt"

	"github.com/hal9000y/workspace-mcp/internal/schema"
)

// Kind classifies an error for the response envelope.
type Kind string

// Error taxonomy. Every failure surfaced to a caller is one of these.
const (
	KindUnknownAction Kind = "UnknownAction"
	KindValidation    Kind = "ValidationError"
	KindAuth          Kind = "AuthError"
	KindUpstream      Kind = "UpstreamError"
	KindTransient     Kind = "TransientNetworkError"
	KindRendering     Kind = "RenderingError"
)

// Error is a classified failure with an actionable hint.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Details any

	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// NewError builds a classified error wrapping cause (which may be nil).
func NewError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		wrapped: cause,
	}
}

// WithHint attaches a caller-facing remediation hint.
func (e *Error) WithHint(format string, args ...any) *Error {
	e.Hint = fmt.Sprintf(format, args...)
	return e
}

// WithDetails attaches structured detail for the envelope.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// Classify maps an arbitrary handler error onto the taxonomy. Raw transport
// errors never escape to the caller: anything unrecognized becomes an
// UpstreamError.
func Classify(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var invalid *schema.Error
	if errors.As(err, &invalid) {
		return validationError(invalid)
	}

	return NewError(KindUpstream, err, "remote operation failed").
		WithHint("the remote API rejected the request; check the error details and retry")
}

func validationError(invalid *schema.Error) *Error {
	return NewError(KindValidation, nil, "%d parameter violation(s) for %s", len(invalid.Violations), invalid.Action).
		WithDetails(invalid).
		WithHint("fix the listed fields and retry; a corrected example is included in details.example")
}

// Envelope is the normalized dispatcher response.
type Envelope struct {
	Status string       `json:"status" jsonschema:"success or error"`
	Action string       `json:"action" jsonschema:"the action that was dispatched"`
	Data   any          `json:"data,omitempty" jsonschema:"action result on success"`
	Error  *ErrorDetail `json:"error,omitempty" jsonschema:"classified error on failure"`
}

// ErrorDetail is the error half of the envelope.
type ErrorDetail struct {
	Type    Kind   `json:"error_type" jsonschema:"taxonomy kind"`
	Message string `json:"message" jsonschema:"human-readable failure summary"`
	Details any    `json:"details,omitempty" jsonschema:"structured failure detail"`
	Hint    string `json:"hint,omitempty" jsonschema:"actionable remediation hint"`
}

func successEnvelope(action string, data any) *Envelope {
	return &Envelope{Status: "success", Action: action, Data: data}
}

func errorEnvelope(action string, err *Error) *Envelope {
	return &Envelope{
		Status: "error",
		Action: action,
		Error: &ErrorDetail{
			Type:    err.Kind,
			Message: err.Message,
			Details: err.Details,
			Hint:    err.Hint,
		},
	}
}
