// Package stdio bridges the router to a line-delimited JSON-RPC stream for
// local process integration. There are no sessions and no headers; identity
// is fixed at construction time.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/hostbridge/mcp-adapter/internal/jsonrpc"
	"github.com/hostbridge/mcp-adapter/router"
)

// ErrDisabled is returned by Serve when the bridge was not enabled.
var ErrDisabled = errors.New("stdio: transport disabled")

// Option configures the Handler.
type Option func(*Handler)

// WithIO replaces the default stdin/stdout pair.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(h *Handler) {
		if in != nil {
			h.in = in
		}
		if out != nil {
			h.out = out
		}
	}
}

// WithLogger sets the handler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithUserID fixes the identity attributed to every routed message.
func WithUserID(id int64) Option {
	return func(h *Handler) { h.userID = id }
}

// WithEnabled gates Serve. A disabled bridge still answers HandleMessage so
// embedders can drive it manually.
func WithEnabled(enabled bool) Option {
	return func(h *Handler) { h.enabled = enabled }
}

// Handler reads one JSON-RPC message per line and writes one response line
// per non-notification message.
type Handler struct {
	router  *router.Router
	in      io.Reader
	out     io.Writer
	outMu   sync.Mutex
	log     *slog.Logger
	userID  int64
	enabled bool
}

// New builds a Handler over the given router. The bridge defaults to
// stdin/stdout and starts disabled.
func New(rt *router.Router, opts ...Option) *Handler {
	h := &Handler{
		router: rt,
		in:     os.Stdin,
		out:    os.Stdout,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleMessage processes one raw JSON-RPC message and returns the encoded
// response, or nil for notifications.
func (h *Handler) HandleMessage(ctx context.Context, raw []byte) ([]byte, error) {
	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return encodeResponse(jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "Invalid JSON in message", nil))
	}
	if rpcErr := jsonrpc.ValidateMessage(&msg); rpcErr != nil {
		return encodeResponse(jsonrpc.NewErrorResponse(msg.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data))
	}
	// Response-shaped messages pass structural validation but cannot be
	// routed; only requests and notifications arrive inbound.
	if msg.Method == "" {
		return encodeResponse(jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidRequest, "Expected a request or notification", nil))
	}

	resp := h.router.Route(ctx, &router.Request{
		Method:    msg.Method,
		Params:    msg.Params,
		ID:        msg.ID,
		Transport: router.TransportSTDIO,
		UserID:    h.userID,
	})
	if resp == nil {
		return nil, nil
	}
	return encodeResponse(resp)
}

// Serve reads messages from the input stream until EOF or context
// cancellation. It returns ErrDisabled immediately when the bridge was not
// enabled.
func (h *Handler) Serve(ctx context.Context) error {
	if !h.enabled {
		return ErrDisabled
	}

	scanner := bufio.NewScanner(h.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		out, err := h.HandleMessage(ctx, line)
		if err != nil {
			h.log.ErrorContext(ctx, "stdio.message.fail", slog.String("err", err.Error()))
			continue
		}
		if out == nil {
			continue
		}
		if err := h.writeLine(out); err != nil {
			return fmt.Errorf("stdio: write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdio: read input: %w", err)
	}
	return nil
}

func (h *Handler) writeLine(b []byte) error {
	h.outMu.Lock()
	defer h.outMu.Unlock()
	if _, err := h.out.Write(b); err != nil {
		return err
	}
	_, err := h.out.Write([]byte{'\n'})
	return err
}

func encodeResponse(resp *jsonrpc.Response) ([]byte, error) {
	return json.Marshal(resp)
}
