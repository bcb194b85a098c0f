package stdio_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hostbridge/mcp-adapter/internal/jsonrpc"
	"github.com/hostbridge/mcp-adapter/router"
	"github.com/hostbridge/mcp-adapter/stdio"
)

func pingRouter() *router.Router {
	rt := router.New()
	rt.Register("ping", func(context.Context, *router.Request) (any, *jsonrpc.Error) {
		return map[string]any{}, nil
	})
	rt.RegisterNotification("notifications/initialized", nil)
	return rt
}

func TestHandleMessageRequest(t *testing.T) {
	h := stdio.New(pingRouter())

	out, err := h.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != float64(1) {
		t.Errorf("id = %v", resp["id"])
	}
	if _, ok := resp["result"]; !ok {
		t.Errorf("response = %v", resp)
	}
}

func TestHandleMessageNotificationIsSilent(t *testing.T) {
	h := stdio.New(pingRouter())

	out, err := h.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if out != nil {
		t.Errorf("notification produced output: %s", out)
	}
}

func TestHandleMessageBadJSON(t *testing.T) {
	h := stdio.New(pingRouter())

	out, err := h.HandleMessage(context.Background(), []byte(`{"jsonrpc":`))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	errObj, _ := resp["error"].(map[string]any)
	if code, _ := errObj["code"].(float64); code != -32700 {
		t.Errorf("code = %v, want -32700", code)
	}
}

func TestHandleMessageInvalidEnvelope(t *testing.T) {
	h := stdio.New(pingRouter())

	out, err := h.HandleMessage(context.Background(), []byte(`{"jsonrpc":"1.0","id":1,"method":"ping"}`))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	errObj, _ := resp["error"].(map[string]any)
	if code, _ := errObj["code"].(float64); code != -32600 {
		t.Errorf("code = %v, want -32600", code)
	}
}

func TestServeDisabled(t *testing.T) {
	h := stdio.New(pingRouter())
	if err := h.Serve(context.Background()); !errors.Is(err, stdio.ErrDisabled) {
		t.Fatalf("Serve = %v, want ErrDisabled", err)
	}
}

func TestServeLoop(t *testing.T) {
	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n" +
			`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n")
	var out bytes.Buffer

	h := stdio.New(pingRouter(),
		stdio.WithEnabled(true),
		stdio.WithIO(in, &out),
		stdio.WithUserID(1))

	if err := h.Serve(context.Background()); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 output lines (notification silent), got %d: %q", len(lines), out.String())
	}
	for i, want := range []float64{1, 2} {
		var resp map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &resp); err != nil {
			t.Fatalf("decode line %d: %v", i, err)
		}
		if resp["id"] != want {
			t.Errorf("line %d id = %v, want %v", i, resp["id"], want)
		}
	}
}

func TestHandleMessageResponseShapedRejected(t *testing.T) {
	h := stdio.New(pingRouter())

	out, err := h.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":9,"result":{}}`))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	errObj, _ := resp["error"].(map[string]any)
	if errObj == nil || errObj["code"] != float64(jsonrpc.ErrorCodeInvalidRequest) {
		t.Errorf("response = %v, want invalid request error", resp)
	}
}
