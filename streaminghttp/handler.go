// Package streaminghttp adapts the router to the MCP Streamable HTTP
// transport. One HTTP request is one synchronous exchange; all cross-request
// state lives in the session manager.
package streaminghttp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/hostbridge/mcp-adapter/auth"
	"github.com/hostbridge/mcp-adapter/handlers"
	"github.com/hostbridge/mcp-adapter/internal/jsonrpc"
	"github.com/hostbridge/mcp-adapter/internal/logctx"
	"github.com/hostbridge/mcp-adapter/mcp"
	"github.com/hostbridge/mcp-adapter/router"
	"github.com/hostbridge/mcp-adapter/sessions"
)

var _ http.Handler = (*Handler)(nil)

var (
	jsonMediaType  = contenttype.NewMediaType("application/json")
	jsonMediaTypes = []contenttype.MediaType{jsonMediaType}
)

const (
	// Canonical header names; Go matches headers case-insensitively.
	mcpSessionIDHeader       = "Mcp-Session-Id"
	mcpProtocolVersionHeader = "MCP-Protocol-Version"
)

// DefaultRequiredCapability is the capability the default permission gate
// demands of every caller.
const DefaultRequiredCapability = "read"

// ErrUseDefault signals from a PermissionCallback that the default gate
// should decide instead.
var ErrUseDefault = errors.New("streaminghttp: use default permission check")

// PermissionCallback overrides the transport permission gate. Returning
// ErrUseDefault falls back to the default decision; any other error is
// logged and also falls back.
type PermissionCallback func(r *http.Request, user *auth.User) (bool, error)

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithAuthenticator sets the identity resolver for incoming requests.
// Without one every caller is anonymous and the default gate rejects them.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(h *Handler) { h.auth = a }
}

// WithPermissionCallback installs a gate override.
func WithPermissionCallback(cb PermissionCallback) Option {
	return func(h *Handler) { h.permission = cb }
}

// WithRequiredCapability changes the capability the default gate checks.
func WithRequiredCapability(capability string) Option {
	return func(h *Handler) {
		if capability != "" {
			h.requiredCapability = capability
		}
	}
}

// Handler serves the Streamable HTTP endpoint.
type Handler struct {
	router             *router.Router
	sessions           *sessions.Manager
	auth               auth.Authenticator
	permission         PermissionCallback
	requiredCapability string
	log                *slog.Logger
}

// New builds a Handler over the given router and session manager.
func New(rt *router.Router, mgr *sessions.Manager, opts ...Option) *Handler {
	h := &Handler{
		router:             rt,
		sessions:           mgr,
		requiredCapability: DefaultRequiredCapability,
		log:                slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})
	r = r.WithContext(ctx)

	user, ok := h.gate(w, r)
	if !ok {
		return
	}

	if !h.checkProtocolVersionHeader(w, r) {
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r, user)
	case http.MethodGet:
		h.writeError(w, r, nil, jsonrpc.NewError(jsonrpc.ErrorCodeMethodNotAllowed, "SSE streaming not yet implemented"), http.StatusMethodNotAllowed)
	case http.MethodDelete:
		h.handleDelete(w, r, user)
	default:
		h.writeError(w, r, nil, jsonrpc.NewError(jsonrpc.ErrorCodeMethodNotAllowed, "Method not allowed"), http.StatusMethodNotAllowed)
	}
}

// gate resolves the caller identity and applies the transport permission
// check. It writes the 401/403 response itself when the caller is rejected.
func (h *Handler) gate(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	user := auth.Anonymous()
	if h.auth != nil {
		u, err := h.auth.Authenticate(r)
		if err != nil {
			h.log.WarnContext(r.Context(), "http.auth.fail", slog.String("err", err.Error()))
			h.writeError(w, r, nil, jsonrpc.Unauthorized("Authentication failed"), http.StatusUnauthorized)
			return nil, false
		}
		if u != nil {
			user = u
		}
	}

	if h.allowed(r, user) {
		return user, true
	}

	h.log.WarnContext(r.Context(), "http.permission.denied",
		slog.Int64("user_id", user.ID),
		slog.String("capability", h.requiredCapability))
	if user.ID == 0 {
		h.writeError(w, r, nil, jsonrpc.Unauthorized("Authentication required"), http.StatusUnauthorized)
	} else {
		h.writeError(w, r, nil, jsonrpc.PermissionDenied("Missing required capability: "+h.requiredCapability), http.StatusForbidden)
	}
	return nil, false
}

func (h *Handler) allowed(r *http.Request, user *auth.User) bool {
	if h.permission != nil {
		allow, err := func() (allow bool, err error) {
			defer func() {
				if rec := recover(); rec != nil {
					allow, err = false, errors.New("permission callback panic")
				}
			}()
			return h.permission(r, user)
		}()
		switch {
		case err == nil:
			return allow
		case errors.Is(err, ErrUseDefault):
			// fall through to default
		default:
			h.log.WarnContext(r.Context(), "http.permission.callback.err", slog.String("err", err.Error()))
		}
	}
	return user.ID != 0 && user.Can(h.requiredCapability)
}

// checkProtocolVersionHeader validates the optional MCP-Protocol-Version
// request header and echoes the effective version on the response.
func (h *Handler) checkProtocolVersionHeader(w http.ResponseWriter, r *http.Request) bool {
	pv := r.Header.Get(mcpProtocolVersionHeader)
	if pv == "" {
		w.Header().Set(mcpProtocolVersionHeader, mcp.LatestProtocolVersion)
		return true
	}
	if !mcp.IsSupportedProtocolVersion(pv) {
		h.writeError(w, r, nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidRequest, "Unsupported protocol version: %s", pv), http.StatusBadRequest)
		return false
	}
	w.Header().Set(mcpProtocolVersionHeader, pv)
	return true
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request, user *auth.User) {
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.EqualsMIME(jsonMediaType) {
		h.writeError(w, r, nil, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidRequest, "Content-Type must be application/json"), http.StatusUnsupportedMediaType)
		return
	}
	// Accept is treated permissively: reject only when the client supplies a
	// header that excludes application/json outright.
	if acc := r.Header.Get("Accept"); acc != "" {
		if _, _, err := contenttype.GetAcceptableMediaType(r, jsonMediaTypes); err != nil {
			h.writeError(w, r, nil, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidRequest, "Accept header must include application/json"), http.StatusNotAcceptable)
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, r, nil, jsonrpc.NewError(jsonrpc.ErrorCodeParseError, "Failed to read request body"), 0)
		return
	}

	raws, batch, parseErr := splitMessages(body)
	if parseErr != nil {
		h.writeError(w, r, nil, parseErr, 0)
		return
	}

	responses := make([]*jsonrpc.Response, 0, len(raws))
	for _, raw := range raws {
		resp := h.handleMessage(w, r, user, raw)
		if resp != nil {
			responses = append(responses, resp)
		}
	}

	switch {
	case batch:
		h.writeJSON(w, http.StatusOK, responses)
	case len(responses) == 0:
		// Notification-only body.
		w.WriteHeader(http.StatusOK)
	default:
		resp := responses[0]
		status := http.StatusOK
		if resp.Error != nil {
			status = jsonrpc.HTTPStatus(resp.Error.Code)
		}
		h.writeJSON(w, status, resp)
	}
}

// splitMessages normalizes the body to a message list and reports whether it
// was a batch.
func splitMessages(body []byte) ([]json.RawMessage, bool, *jsonrpc.Error) {
	trimmed := trimLeftSpace(body)
	if len(trimmed) == 0 {
		return nil, false, jsonrpc.NewError(jsonrpc.ErrorCodeParseError, "Empty request body")
	}
	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, false, jsonrpc.NewError(jsonrpc.ErrorCodeParseError, "Invalid JSON in request body")
		}
		if len(raws) == 0 {
			return nil, false, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidRequest, "Empty batch")
		}
		return raws, true, nil
	}
	if !json.Valid(body) {
		return nil, false, jsonrpc.NewError(jsonrpc.ErrorCodeParseError, "Invalid JSON in request body")
	}
	return []json.RawMessage{json.RawMessage(body)}, false, nil
}

func trimLeftSpace(b []byte) []byte {
	for len(b) > 0 {
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			b = b[1:]
		default:
			return b
		}
	}
	return b
}

// handleMessage validates, session-checks and routes one message.
// Notifications yield nil. initialize success promotes the minted session id
// into the response header.
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request, user *auth.User, raw json.RawMessage) *jsonrpc.Response {
	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "Invalid JSON-RPC message", nil)
	}
	if rpcErr := jsonrpc.ValidateMessage(&msg); rpcErr != nil {
		return jsonrpc.NewErrorResponse(msg.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}
	// A response-shaped message is structurally valid JSON-RPC but is not
	// acceptable inbound: this endpoint only services requests and
	// notifications.
	if msg.Method == "" {
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidRequest, "Expected a request or notification", nil)
	}

	req := &router.Request{
		Method:    msg.Method,
		Params:    msg.Params,
		ID:        msg.ID,
		Transport: router.TransportHTTP,
		UserID:    user.ID,
	}

	if msg.Method != string(mcp.InitializeMethod) {
		sid := r.Header.Get(mcpSessionIDHeader)
		if sid == "" {
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidRequest, "Missing Mcp-Session-Id header", nil)
		}
		ok, err := h.sessions.ValidateSession(r.Context(), user.ID, sid)
		if err != nil {
			h.log.ErrorContext(r.Context(), "session.validate.fail", slog.String("err", err.Error()))
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInternalError, "Session validation failed", nil)
		}
		if !ok {
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidParams, "Invalid or expired session", nil)
		}
		req.SessionID = sid
	}

	resp := h.router.Route(r.Context(), req)
	if resp == nil {
		return nil
	}

	if msg.Method == string(mcp.InitializeMethod) && resp.Error == nil {
		resp = h.promoteSessionID(w, resp)
	}
	return resp
}

// promoteSessionID moves the session id the initialize handler attached to
// its result out of the body and into the Mcp-Session-Id response header.
func (h *Handler) promoteSessionID(w http.ResponseWriter, resp *jsonrpc.Response) *jsonrpc.Response {
	var result map[string]any
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return resp
	}
	sid, ok := result[handlers.SessionIDKey].(string)
	if !ok || sid == "" {
		return resp
	}
	delete(result, handlers.SessionIDKey)
	w.Header().Set(mcpSessionIDHeader, sid)

	clean, err := jsonrpc.NewResultResponse(resp.ID, result)
	if err != nil {
		return resp
	}
	return clean
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, user *auth.User) {
	sid := r.Header.Get(mcpSessionIDHeader)
	if sid == "" {
		h.writeError(w, r, nil, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidRequest, "Missing Mcp-Session-Id header"), 0)
		return
	}

	existed, err := h.sessions.DeleteSession(r.Context(), user.ID, sid)
	if err != nil {
		h.log.ErrorContext(r.Context(), "session.delete.fail", slog.String("err", err.Error()))
		h.writeError(w, r, nil, jsonrpc.InternalError(err), 0)
		return
	}
	h.log.InfoContext(r.Context(), "session.delete",
		slog.Int64("user_id", user.ID),
		slog.Bool("existed", existed))

	// Always a bare 200 for a well-formed DELETE.
	w.WriteHeader(http.StatusOK)
}

// writeError emits a JSON-RPC error object as the whole response body.
// Status zero means derive it from the error code.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, id *jsonrpc.RequestID, e *jsonrpc.Error, status int) {
	if status == 0 {
		status = jsonrpc.HTTPStatus(e.Code)
	}
	h.log.DebugContext(r.Context(), "http.reject",
		slog.Int("status", status),
		slog.Int("code", int(e.Code)),
		slog.String("err", e.Message))
	h.writeJSON(w, status, jsonrpc.NewErrorResponse(id, e.Code, e.Message, e.Data))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("http.response.encode.fail", slog.String("err", err.Error()))
	}
}
