package mcpjsonrpc

import "errors"

// Based on JSON-RPC 2.0 Specification: https://www.jsonrpc.org/specification

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Error codes (subset, based on JSON-RPC spec and application errors)
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// -32000 to -32099: Server error (implementation-defined)
	CodeServerErrorSyncFailed = -32000
)

// Coder is implemented by errors that map onto a JSON-RPC code.
type Coder interface {
	Code() int
}

// FromError converts err into a JSON-RPC error object. Errors that carry no
// code become internal errors.
func FromError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	code := CodeInternalError
	var c Coder
	if errors.As(err, &c) {
		code = c.Code()
	}
	return &Error{Code: code, Message: err.Error()}
}
