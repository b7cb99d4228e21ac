package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// ErrNotRunning is returned when no daemon accepts connections on the socket.
var ErrNotRunning = errors.New("daemon not running")

// Client connects to the daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotRunning, err)
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var pong PingResult
	if err := c.call(ctx, MethodPing, nil, &pong); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Search sends a search request to the daemon.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	var results []SearchResult
	if err := c.call(ctx, MethodSearch, params, &results); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return results, nil
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, fmt.Errorf("status failed: %w", err)
	}
	return &status, nil
}

// call performs one request/response exchange on a fresh connection.
// RPC errors are returned as *Error.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	// Set deadline from context or timeout
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID(),
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	id := c.requestID.Add(1)
	return fmt.Sprintf("req-%d", id)
}
