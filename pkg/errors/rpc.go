package errors

import (
	"fmt"
)

/*
RpcError represents a JSON-RPC error response.
*/
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

/*
Error implements the error interface for RpcError.
*/
func (e *RpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Convenience errors on the JSON-RPC reserved codes.
var (
	ErrMethodNotFound = &RpcError{Code: -32601, Message: "Method not found"}
	ErrInternal       = &RpcError{Code: -32603, Message: "Internal error"}

	// Tool-execution failures surface on -32000.
	ErrToolExecution = &RpcError{Code: -32000, Message: "Tool execution failed"}
)

// WithMessagef creates a *copy* of an RpcError with a formatted message.
// It does not modify the original error variable.
func (e *RpcError) WithMessagef(format string, args ...any) *RpcError {
	newErr := *e
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}
