// Package apperrors defines the gateway error taxonomy and translates it into
// each protocol's native failure shape. A logical failure keeps the same
// (code, message) pair no matter which adapter surfaced it.
package apperrors

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code identifies a failure kind. The numeric ranges are part of the wire
// contract: 1000-1999 general, 2000-2999 grid business errors, 3000-3999
// request/wire errors.
type Code int

const (
	CodeInternal     Code = 1000
	CodeValidation   Code = 1001
	CodeNotFound     Code = 1002
	CodeUnauthorized Code = 1003
	CodeForbidden    Code = 1004

	CodeGridItemNotFound       Code = 2001
	CodeGridItemCreationFailed Code = 2002
	CodeGridItemUpdateFailed   Code = 2003

	CodeMalformedRequest Code = 3001
	CodeUnknownMethod    Code = 3002
	CodeInvalidArguments Code = 3003
)

// JSON-RPC 2.0 wire error codes.
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

var codeMessages = map[Code]string{
	CodeInternal:               "Internal server error",
	CodeValidation:             "Validation error",
	CodeNotFound:               "Resource not found",
	CodeUnauthorized:           "Unauthorized",
	CodeForbidden:              "Forbidden",
	CodeGridItemNotFound:       "Grid item not found",
	CodeGridItemCreationFailed: "Grid item creation failed",
	CodeGridItemUpdateFailed:   "Grid item update failed",
	CodeMalformedRequest:       "JSON-RPC parse error",
	CodeUnknownMethod:          "JSON-RPC method not found",
	CodeInvalidArguments:       "JSON-RPC invalid params",
}

// Message returns the canonical message text for the code.
func (c Code) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return codeMessages[CodeInternal]
}

// Error is a failure tagged with a taxonomy code. An optional message
// overrides the code's canonical text; the override travels with the error
// across every adapter so all protocols report identical text.
type Error struct {
	Code    Code
	message string
	cause   error
}

// New returns an Error carrying the code's canonical message.
func New(code Code) *Error {
	return &Error{Code: code}
}

// WithMessage returns an Error whose message replaces the canonical text.
func WithMessage(code Code, message string) *Error {
	return &Error{Code: code, message: message}
}

// Wrap attaches a cause to the taxonomy error. The cause is kept for logs and
// errors.Is/As; it never leaks into wire messages.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, cause: cause}
}

func (e *Error) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.Code.Message()
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the taxonomy code from err. Anything that is not a tagged
// Error collapses to CodeInternal, matching the rule that unexpected faults
// are reported per-request as internal errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// MessageOf returns the wire message for err, honouring overrides.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return CodeInternal.Message()
}

// HTTPStatus maps a code onto its REST status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeMalformedRequest, CodeInvalidArguments:
		return http.StatusBadRequest
	case CodeNotFound, CodeGridItemNotFound, CodeUnknownMethod:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// GRPCStatus maps err onto a gRPC status carrying the same message text the
// other adapters report.
func GRPCStatus(err error) *status.Status {
	var grpcCode codes.Code
	switch CodeOf(err) {
	case CodeValidation, CodeMalformedRequest, CodeInvalidArguments:
		grpcCode = codes.InvalidArgument
	case CodeNotFound, CodeGridItemNotFound:
		grpcCode = codes.NotFound
	case CodeUnauthorized:
		grpcCode = codes.Unauthenticated
	case CodeForbidden:
		grpcCode = codes.PermissionDenied
	case CodeUnknownMethod:
		grpcCode = codes.Unimplemented
	default:
		grpcCode = codes.Internal
	}
	return status.New(grpcCode, MessageOf(err))
}

// JSONRPCCode maps a taxonomy code onto the JSON-RPC error object code.
// Wire-level failures use the reserved -32xxx range; business failures keep
// their taxonomy code so clients can tell them apart.
func JSONRPCCode(code Code) int {
	switch code {
	case CodeMalformedRequest:
		return JSONRPCParseError
	case CodeUnknownMethod:
		return JSONRPCMethodNotFound
	case CodeInvalidArguments:
		return JSONRPCInvalidParams
	case CodeInternal:
		return JSONRPCInternalError
	default:
		return int(code)
	}
}
