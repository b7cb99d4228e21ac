package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Aman-CERP/docsearch/internal/errors"
)

// RequestHandler handles incoming RPC requests.
type RequestHandler interface {
	HandleSearch(ctx context.Context, params SearchParams) ([]SearchResult, error)
	GetStatus(ctx context.Context) StatusResult
}

// Server listens on a Unix socket and handles RPC requests, one request
// per connection.
type Server struct {
	socketPath string
	timeout    time.Duration
	grace      time.Duration
	logger     *slog.Logger
	listener   net.Listener
	handler    RequestHandler
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string) (*Server, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("socket path cannot be empty")
	}
	return &Server{
		socketPath: socketPath,
		timeout:    30 * time.Second,
		grace:      10 * time.Second,
		logger:     slog.Default(),
	}, nil
}

// SetHandler sets the request handler for search and status.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// SetLogger sets the server logger.
func (s *Server) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetTimeouts sets the per-connection deadline and the shutdown grace period.
func (s *Server) SetTimeouts(conn, grace time.Duration) {
	if conn > 0 {
		s.timeout = conn
	}
	if grace > 0 {
		s.grace = grace
	}
}

// ListenAndServe starts the server and blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Clean up any stale socket
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("server_listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.drain()
	return ctx.Err()
}

// drain waits for open connections up to the grace period.
func (s *Server) drain() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.grace):
		s.logger.Warn("shutdown_grace_exceeded", slog.Duration("grace", s.grace))
	}
}

// handleConnection processes a single client connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Warn("set_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	start := time.Now()
	resp := s.handleRequest(ctx, req)
	_ = encoder.Encode(resp)

	s.logger.Debug("request_handled",
		slog.String("method", req.Method),
		slog.Bool("ok", resp.Error == nil),
		slog.Duration("duration", time.Since(start)))
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "jsonrpc must be \"2.0\"")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus(ctx))

	case MethodSearch:
		return s.handleSearch(ctx, req)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no search handler configured")
	}

	// Params arrive as a generic map; round-trip into the typed struct.
	paramsData, err := json.Marshal(req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params")
	}

	var params SearchParams
	if err := json.Unmarshal(paramsData, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}

	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	results, err := s.handler.HandleSearch(ctx, params)
	if err != nil {
		return searchError(req.ID, err)
	}
	if results == nil {
		results = []SearchResult{}
	}

	return NewSuccessResponse(req.ID, results)
}

// searchError maps docsearch errors onto RPC codes.
func searchError(id string, err error) Response {
	code := ErrCodeSearchFailed
	switch {
	case errors.IsRetryable(err):
		code = ErrCodeIndexBusy
	case errors.GetCode(err) == errors.ErrCodeCorruptIndex:
		code = ErrCodeIndexCorrupt
	case errors.GetCategory(err) == errors.CategoryValidation:
		code = ErrCodeInvalidParams
	}

	resp := NewErrorResponse(id, code, err.Error())
	if dc := errors.GetCode(err); dc != "" {
		resp.Error.Data = dc
	}
	return resp
}

// getStatus returns the current server status.
func (s *Server) getStatus(ctx context.Context) StatusResult {
	status := StatusResult{}
	if s.handler != nil {
		status = s.handler.GetStatus(ctx)
	}

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	status.Running = true
	status.PID = os.Getpid()
	status.Uptime = time.Since(started).Round(time.Second).String()
	return status
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
