// Package router dispatches JSON-RPC methods to their handlers and
// normalizes every outcome into a uniform response shape. Each dispatch is
// timed and recorded as an "mcp.request" observability event regardless of
// whether it succeeded, failed cleanly, or panicked.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hostbridge/mcp-adapter/internal/jsonrpc"
	"github.com/hostbridge/mcp-adapter/internal/logctx"
	"github.com/hostbridge/mcp-adapter/observe"
)

const requestEvent = "mcp.request"

// Transport names used in Request.Transport.
const (
	TransportHTTP  = "http"
	TransportSTDIO = "stdio"
)

// Request is a routed JSON-RPC call plus its transport context.
type Request struct {
	Method    string
	Params    json.RawMessage
	ID        *jsonrpc.RequestID
	Transport string

	// UserID is the authenticated user, or zero for anonymous callers.
	UserID int64
	// SessionID is the validated session token, when the transport carries
	// sessions.
	SessionID string
}

// IsNotification reports whether the request carries no id and therefore
// expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil || r.ID.IsNil()
}

// HandlerFunc services one method. It returns a result value or a wire-level
// error object; never both.
type HandlerFunc func(ctx context.Context, req *Request) (any, *jsonrpc.Error)

type route struct {
	fn        HandlerFunc
	paginated bool
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithEvents sets the observability recorder for per-request events.
func WithEvents(rec observe.Recorder) Option {
	return func(r *Router) {
		if rec != nil {
			r.events = rec
		}
	}
}

// Router is a dispatch table keyed on exact method strings.
type Router struct {
	mu     sync.RWMutex
	routes map[string]route
	log    *slog.Logger
	events observe.Recorder
}

// New builds an empty router.
func New(opts ...Option) *Router {
	r := &Router{
		routes: make(map[string]route),
		log:    slog.Default(),
		events: observe.Log{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a handler to a method name.
func (r *Router) Register(method string, fn HandlerFunc) {
	r.mu.Lock()
	r.routes[method] = route{fn: fn}
	r.mu.Unlock()
}

// RegisterList binds a handler whose results are pagination-framed: a missing
// nextCursor is injected as an empty string for clients that expect the
// cursor field on every list response.
func (r *Router) RegisterList(method string, fn HandlerFunc) {
	r.mu.Lock()
	r.routes[method] = route{fn: fn, paginated: true}
	r.mu.Unlock()
}

// RegisterNotification binds a no-response handler. The handler runs for its
// side effects; Route returns nil for the message.
func (r *Router) RegisterNotification(method string, fn HandlerFunc) {
	if fn == nil {
		fn = func(context.Context, *Request) (any, *jsonrpc.Error) { return nil, nil }
	}
	r.Register(method, fn)
}

// Methods returns the registered method names.
func (r *Router) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routes))
	for m := range r.routes {
		out = append(out, m)
	}
	return out
}

// Route dispatches one request. Notifications yield a nil response. Handler
// panics are recovered into internal errors; nothing escapes to the
// transport.
func (r *Router) Route(ctx context.Context, req *Request) *jsonrpc.Response {
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{
		Method:    req.Method,
		ID:        req.ID.String(),
		Transport: req.Transport,
	})

	r.mu.RLock()
	rt, ok := r.routes[req.Method]
	r.mu.RUnlock()

	start := time.Now()

	if !ok {
		r.record(ctx, req, "error", time.Since(start))
		r.log.WarnContext(ctx, "rpc.method.unknown", slog.String("method", req.Method))
		if req.IsNotification() {
			return nil
		}
		e := jsonrpc.MethodNotFound(req.Method)
		return jsonrpc.NewErrorResponse(req.ID, e.Code, e.Message, e.Data)
	}

	result, rpcErr := r.dispatch(ctx, rt, req)
	dur := time.Since(start)

	if rpcErr != nil {
		r.record(ctx, req, "error", dur)
		r.log.WarnContext(ctx, "rpc.inbound.err",
			slog.Int("code", int(rpcErr.Code)),
			slog.String("err", rpcErr.Message),
			slog.Duration("dur", dur))
		if req.IsNotification() {
			return nil
		}
		return jsonrpc.NewErrorResponse(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}

	r.record(ctx, req, "success", dur)
	r.log.InfoContext(ctx, "rpc.inbound.ok", slog.Duration("dur", dur))

	if req.IsNotification() {
		return nil
	}

	if rt.paginated {
		result = AddCursorCompatibility(result)
	}

	resp, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		r.log.ErrorContext(ctx, "rpc.result.marshal.fail", slog.String("err", err.Error()))
		e := jsonrpc.InternalError(err)
		return jsonrpc.NewErrorResponse(req.ID, e.Code, e.Message, e.Data)
	}
	return resp
}

// dispatch invokes the handler with panic isolation.
func (r *Router) dispatch(ctx context.Context, rt route, req *Request) (result any, rpcErr *jsonrpc.Error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.ErrorContext(ctx, "rpc.handler.panic", slog.String("panic", fmt.Sprintf("%v", rec)))
			result = nil
			rpcErr = jsonrpc.NewError(jsonrpc.ErrorCodeInternalError, "Internal error")
		}
	}()
	return rt.fn(ctx, req)
}

func (r *Router) record(ctx context.Context, req *Request, status string, dur time.Duration) {
	r.events.Record(ctx, observe.Event{
		Name: requestEvent,
		Tags: map[string]string{
			"method":    req.Method,
			"transport": req.Transport,
			"status":    status,
		},
		Duration: dur,
	})
}

// AddCursorCompatibility injects an empty-string nextCursor into map-shaped
// list results that lack one. An existing cursor is preserved, making the
// operation idempotent.
func AddCursorCompatibility(result any) any {
	m, ok := result.(map[string]any)
	if !ok {
		return result
	}
	if _, exists := m["nextCursor"]; !exists {
		m["nextCursor"] = ""
	}
	return m
}
