package router_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/hostbridge/mcp-adapter/internal/jsonrpc"
	"github.com/hostbridge/mcp-adapter/observe"
	"github.com/hostbridge/mcp-adapter/router"
)

type captureRecorder struct {
	mu     sync.Mutex
	events []observe.Event
}

func (c *captureRecorder) Record(_ context.Context, ev observe.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureRecorder) last(t *testing.T) observe.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		t.Fatal("no events recorded")
	}
	return c.events[len(c.events)-1]
}

func requestID(t *testing.T, raw string) *jsonrpc.RequestID {
	t.Helper()
	var id jsonrpc.RequestID
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		t.Fatalf("unmarshal id %q: %v", raw, err)
	}
	return &id
}

func TestRouteUnknownMethod(t *testing.T) {
	rt := router.New()
	resp := rt.Route(context.Background(), &router.Request{
		Method: "no/such-method",
		ID:     requestID(t, "1"),
	})
	if resp == nil || resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != jsonrpc.ErrorCodeMethodNotFound {
		t.Errorf("code = %d, want %d", resp.Error.Code, jsonrpc.ErrorCodeMethodNotFound)
	}
	if !strings.Contains(resp.Error.Message, "no/such-method") {
		t.Errorf("message %q does not name the method", resp.Error.Message)
	}
}

func TestRouteUnknownMethodNotificationIsSilent(t *testing.T) {
	rt := router.New()
	resp := rt.Route(context.Background(), &router.Request{Method: "no/such-method"})
	if resp != nil {
		t.Fatalf("expected nil response for notification, got %+v", resp)
	}
}

func TestRouteSuccessAndNotification(t *testing.T) {
	rt := router.New()
	calls := 0
	rt.Register("ping", func(context.Context, *router.Request) (any, *jsonrpc.Error) {
		calls++
		return map[string]any{}, nil
	})

	resp := rt.Route(context.Background(), &router.Request{Method: "ping", ID: requestID(t, "7")})
	if resp == nil || resp.Error != nil {
		t.Fatalf("expected success response, got %+v", resp)
	}

	// Same handler invoked as a notification: runs, but yields no response.
	if resp := rt.Route(context.Background(), &router.Request{Method: "ping"}); resp != nil {
		t.Fatalf("expected nil response for notification, got %+v", resp)
	}
	if calls != 2 {
		t.Errorf("handler invoked %d times, want 2", calls)
	}
}

func TestRoutePanicBecomesInternalError(t *testing.T) {
	rt := router.New()
	rt.Register("boom", func(context.Context, *router.Request) (any, *jsonrpc.Error) {
		panic("kaboom")
	})

	resp := rt.Route(context.Background(), &router.Request{Method: "boom", ID: requestID(t, "1")})
	if resp == nil || resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != jsonrpc.ErrorCodeInternalError {
		t.Errorf("code = %d, want %d", resp.Error.Code, jsonrpc.ErrorCodeInternalError)
	}
	if strings.Contains(resp.Error.Message, "kaboom") {
		t.Error("panic detail leaked into wire message")
	}
}

func TestRouteCursorInjection(t *testing.T) {
	rt := router.New()
	rt.RegisterList("things/list", func(context.Context, *router.Request) (any, *jsonrpc.Error) {
		return map[string]any{"things": []string{}}, nil
	})

	resp := rt.Route(context.Background(), &router.Request{Method: "things/list", ID: requestID(t, "1")})
	if resp == nil || resp.Error != nil {
		t.Fatalf("expected success, got %+v", resp)
	}
	var result map[string]any
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if cursor, ok := result["nextCursor"]; !ok || cursor != "" {
		t.Errorf("nextCursor = %v, want empty string", cursor)
	}
}

func TestAddCursorCompatibilityIdempotent(t *testing.T) {
	m := map[string]any{"nextCursor": "abc"}
	out := router.AddCursorCompatibility(m).(map[string]any)
	if out["nextCursor"] != "abc" {
		t.Errorf("existing cursor overwritten: %v", out["nextCursor"])
	}

	// Non-map results pass through untouched.
	if got := router.AddCursorCompatibility("plain"); got != "plain" {
		t.Errorf("non-map result mutated: %v", got)
	}
}

func TestRouteRecordsEvents(t *testing.T) {
	rec := &captureRecorder{}
	rt := router.New(router.WithEvents(rec))
	rt.Register("ok", func(context.Context, *router.Request) (any, *jsonrpc.Error) {
		return map[string]any{}, nil
	})

	rt.Route(context.Background(), &router.Request{Method: "ok", ID: requestID(t, "1"), Transport: router.TransportHTTP})
	ev := rec.last(t)
	if ev.Name != "mcp.request" {
		t.Errorf("event name = %q", ev.Name)
	}
	if ev.Tags["status"] != "success" || ev.Tags["method"] != "ok" || ev.Tags["transport"] != "http" {
		t.Errorf("event tags = %v", ev.Tags)
	}

	rt.Route(context.Background(), &router.Request{Method: "missing", ID: requestID(t, "2")})
	if ev := rec.last(t); ev.Tags["status"] != "error" {
		t.Errorf("unknown method event status = %q, want error", ev.Tags["status"])
	}
}
