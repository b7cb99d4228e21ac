package daemon

import (
	"fmt"

	"github.com/Aman-CERP/docsearch/internal/index"
	"github.com/Aman-CERP/docsearch/internal/queue"
	"github.com/Aman-CERP/docsearch/internal/telemetry"
)

// JSON-RPC 2.0 method names.
const (
	MethodSearch = "search"
	MethodStatus = "status"
	MethodPing   = "ping"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for daemon-specific errors.
const (
	ErrCodeSearchFailed = -32002
	ErrCodeIndexBusy    = -32003
	ErrCodeIndexCorrupt = -32004
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error. Data carries the docsearch error
// code when there is one.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	// Query is the boolean query text. Empty matches every document.
	Query string `json:"query"`

	// Folder restricts hits to one folder id (optional).
	Folder string `json:"folder,omitempty"`

	// Actor is the user whose favorites are flagged (optional).
	Actor string `json:"actor,omitempty"`

	// Limit truncates the ranked hits. Zero keeps the server's cap.
	Limit int `json:"limit,omitempty"`
}

// Validate checks the parameters.
func (p *SearchParams) Validate() error {
	if p.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	return nil
}

// SearchResult is one ranked hit.
type SearchResult = index.Result

// StatusResult contains daemon status information.
type StatusResult struct {
	Running   bool                `json:"running"`
	PID       int                 `json:"pid"`
	Uptime    string              `json:"uptime"`
	IndexDir  string              `json:"index_dir"`
	Documents uint64              `json:"documents"`
	IndexErr  string              `json:"index_error,omitempty"`
	Queue     *queue.Stats        `json:"queue,omitempty"`
	Queries   *telemetry.Snapshot `json:"queries,omitempty"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
