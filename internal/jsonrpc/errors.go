package jsonrpc

import (
	"fmt"
	"net/http"
)

// ErrorCode is a JSON-RPC 2.0 error code. Codes in the -32700..-32600 range
// are reserved by the JSON-RPC spec; the -32000..-32099 range carries the
// MCP-specific extensions used by this adapter.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received by the server.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid Request object.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound indicates the method does not exist / is not available.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError indicates an internal JSON-RPC error.
	ErrorCodeInternalError ErrorCode = -32603

	// ErrorCodeServerError is a generic server-side failure.
	ErrorCodeServerError ErrorCode = -32000
	// ErrorCodeUnauthorized indicates the caller is not authenticated.
	ErrorCodeUnauthorized ErrorCode = -32001
	// ErrorCodeResourceNotFound indicates an unknown resource URI.
	ErrorCodeResourceNotFound ErrorCode = -32002
	// ErrorCodePermissionDenied indicates the caller lacks a required capability.
	ErrorCodePermissionDenied ErrorCode = -32003
	// ErrorCodeToolNotFound indicates an unknown tool name.
	ErrorCodeToolNotFound ErrorCode = -32004
	// ErrorCodePromptNotFound indicates an unknown prompt name.
	ErrorCodePromptNotFound ErrorCode = -32005
	// ErrorCodeTimeout indicates an operation exceeded its deadline.
	ErrorCodeTimeout ErrorCode = -32006
	// ErrorCodeMethodNotAllowed indicates an unsupported HTTP verb on the
	// transport endpoint.
	ErrorCodeMethodNotAllowed ErrorCode = -32007
)

// HTTPStatus maps a JSON-RPC error code to the HTTP status the streamable
// HTTP transport should answer with. Codes without an explicit mapping return
// 200: those errors (notably InvalidParams and in-band tool failures) are
// application-level outcomes, not transport failures.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrorCodeParseError, ErrorCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrorCodePermissionDenied:
		return http.StatusForbidden
	case ErrorCodeMethodNotFound, ErrorCodeResourceNotFound, ErrorCodeToolNotFound, ErrorCodePromptNotFound:
		return http.StatusNotFound
	case ErrorCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorCodeInternalError, ErrorCodeServerError:
		return http.StatusInternalServerError
	case ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusOK
	}
}

// NewError builds a bare error object with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf builds an error object with a formatted message.
func Errorf(code ErrorCode, format string, a ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, a...)}
}

// MissingParameter reports a required parameter that was absent from a request.
func MissingParameter(name string) *Error {
	return Errorf(ErrorCodeInvalidParams, "Missing required parameter: %s", name)
}

// MethodNotFound reports an unknown JSON-RPC method.
func MethodNotFound(method string) *Error {
	return Errorf(ErrorCodeMethodNotFound, "Method not found: %s", method)
}

// ToolNotFound reports an unknown tool name.
func ToolNotFound(name string) *Error {
	return Errorf(ErrorCodeToolNotFound, "Tool not found: %s", name)
}

// ResourceNotFound reports an unknown resource URI.
func ResourceNotFound(uri string) *Error {
	return Errorf(ErrorCodeResourceNotFound, "Resource not found: %s", uri)
}

// PromptNotFound reports an unknown prompt name.
func PromptNotFound(name string) *Error {
	return Errorf(ErrorCodePromptNotFound, "Prompt not found: %s", name)
}

// Unauthorized reports a request without an authenticated user.
func Unauthorized(detail string) *Error {
	if detail == "" {
		detail = "Authentication required"
	}
	return NewError(ErrorCodeUnauthorized, detail)
}

// PermissionDenied reports a caller lacking a required capability.
func PermissionDenied(detail string) *Error {
	if detail == "" {
		detail = "Permission denied"
	}
	return NewError(ErrorCodePermissionDenied, detail)
}

// InternalError wraps an unexpected failure. The underlying error text is
// surfaced in the data field rather than the message to keep wire messages
// stable for clients.
func InternalError(err error) *Error {
	e := NewError(ErrorCodeInternalError, "Internal error")
	if err != nil {
		e.Data = err.Error()
	}
	return e
}
