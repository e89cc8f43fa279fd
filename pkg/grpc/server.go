// Package grpc provides a lightweight JSON-over-TCP RPC framework used to
// query the FTS service from other processes, including ftsc.
//
// This is a custom implementation that avoids the full google.golang.org/grpc
// dependency while providing the core RPC patterns: service registration,
// method dispatch, request/response framing and status codes.
//
// Protocol: newline-delimited JSON over a persistent TCP connection.
//
// Example server:
//
//	s := grpc.NewServer()
//	s.Register(proto.MethodCompile, func(ctx context.Context, req json.RawMessage) (any, error) {
//	    var in proto.CompileRequest
//	    if err := json.Unmarshal(req, &in); err != nil {
//	        return nil, err
//	    }
//	    return svc.Compile(ctx, in)
//	})
//	s.Serve(ctx, ":9100")
//
// Example client:
//
//	c, _ := grpc.Dial("localhost:9100")
//	var resp proto.CompileResponse
//	c.Call(ctx, proto.MethodCompile, &proto.CompileRequest{Query: "cat -dog"}, &resp)
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/errors"
)

// HandlerFunc processes an RPC request and returns a response or error.
type HandlerFunc func(ctx context.Context, req json.RawMessage) (any, error)

// Request is the wire format for an RPC request.
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

// Response is the wire format for an RPC response. Code mirrors the HTTP
// status the same failure gets from the HTTP API.
type Response struct {
	ID    string `json:"id"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Code  int    `json:"code,omitempty"`
}

// Server is a lightweight JSON-over-TCP RPC server.
type Server struct {
	handlers map[string]HandlerFunc
	listener net.Listener
	logger   *slog.Logger
	mu       sync.RWMutex
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a new RPC server.
func NewServer() *Server {
	return &Server{
		handlers: make(map[string]HandlerFunc),
		logger:   slog.Default().With("component", "rpc-server"),
		done:     make(chan struct{}),
	}
}

// Register adds a handler for the given RPC method name.
// Method names follow the "Service.Method" convention.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

// Listen binds addr without serving yet; Addr reports the bound address.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx ends or Stop is called. Handlers run
// with contexts derived from ctx. It listens on addr unless Listen was
// called first.
func (s *Server) Serve(ctx context.Context, addr string) error {
	if s.Addr() == nil {
		if err := s.Listen(addr); err != nil {
			return err
		}
	}
	s.mu.RLock()
	ln := s.listener
	s.mu.RUnlock()
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				s.logger.Error("accept error", "error", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-s.done:
			conn.Close()
		case <-closed:
		}
	}()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			return // connection closed or read error
		}

		s.mu.RLock()
		handler, exists := s.handlers[req.Method]
		s.mu.RUnlock()

		resp := Response{ID: req.ID}

		if !exists {
			resp.Error = fmt.Sprintf("unknown method: %s", req.Method)
			resp.Code = http.StatusNotFound
		} else {
			data, err := handler(ctx, req.Params)
			if err != nil {
				resp.Error = err.Error()
				resp.Code = apperrors.HTTPStatusCode(err)
			} else {
				resp.Data = data
			}
		}

		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

// MethodCount returns the number of registered methods.
func (s *Server) MethodCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Stop closes the listener and waits for open connections to finish.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.RLock()
		ln := s.listener
		s.mu.RUnlock()
		if ln != nil {
			ln.Close()
		}
		s.wg.Wait()
		s.logger.Info("rpc server stopped")
	})
}

// RemoteError is a failure reported by the server.
type RemoteError struct {
	Method  string
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc %s failed (%d): %s", e.Method, e.Code, e.Message)
}

// IsRemote reports whether err came back from the server, as opposed to a
// transport failure.
func IsRemote(err error) (*RemoteError, bool) {
	var re *RemoteError
	ok := errors.As(err, &re)
	return re, ok
}
