package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// AnyMessage is a generic JSON-RPC message (request, notification, or
// response). Unmarshaling is deliberately lenient: structural rules are
// enforced separately by ValidateMessage so that violations surface as
// JSON-RPC error objects rather than decode failures.
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Request represents a JSON-RPC request (with an ID) or notification (without ID).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Response represents a JSON-RPC response.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewResultResponse builds a successful JSON-RPC response object.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewErrorResponse builds an error JSON-RPC response with the given code.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// Type returns "request" if the message is a request, "response" if it's a
// response, or "notification" if it's a notification.
func (m *AnyMessage) Type() string {
	if m.Method != "" {
		if m.ID == nil || m.ID.IsNil() {
			return "notification"
		}
		return "request"
	}
	return "response"
}

// IsNotification reports whether the message is a request without an ID.
func (m *AnyMessage) IsNotification() bool {
	return m.Type() == "notification"
}

// AsRequest returns the message as a Request if it is a request or
// notification message, otherwise nil.
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}

	return &Request{
		JSONRPCVersion: m.JSONRPCVersion,
		Method:         m.Method,
		Params:         m.Params,
		ID:             m.ID,
	}
}

// ValidateMessage enforces JSON-RPC 2.0 structural rules on a decoded
// message: the version tag must be "2.0", the message must declare either a
// method or one of result/error (a message with result and no method is a
// response, which is not valid as an inbound request), and a non-notification
// response must carry an id. Returns nil when the message is valid; otherwise
// an InvalidRequest error payload describing the violation.
func ValidateMessage(m *AnyMessage) *Error {
	if m.JSONRPCVersion != ProtocolVersion {
		return &Error{
			Code:    ErrorCodeInvalidRequest,
			Message: fmt.Sprintf("Invalid JSON-RPC version: expected %q", ProtocolVersion),
		}
	}

	hasMethod := m.Method != ""
	hasResult := len(m.Result) > 0
	hasError := m.Error != nil

	if hasMethod {
		if hasResult || hasError {
			return &Error{
				Code:    ErrorCodeInvalidRequest,
				Message: "Request message cannot carry result or error fields",
			}
		}
		return nil
	}

	if !hasResult && !hasError {
		return &Error{
			Code:    ErrorCodeInvalidRequest,
			Message: "Message must declare a method or one of result/error",
		}
	}
	if hasResult && hasError {
		return &Error{
			Code:    ErrorCodeInvalidRequest,
			Message: "Response message cannot have both result and error fields",
		}
	}
	if m.ID == nil || m.ID.IsNil() {
		return &Error{
			Code:    ErrorCodeInvalidRequest,
			Message: "Response message must carry an id",
		}
	}
	return nil
}
