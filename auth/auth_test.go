package auth_test

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/hostbridge/mcp-adapter/auth"
)

func TestUserCan(t *testing.T) {
	u := &auth.User{ID: 7, Capabilities: map[string]bool{"read": true}}
	if !u.Can("read") {
		t.Error("expected read capability")
	}
	if u.Can("write") {
		t.Error("unexpected write capability")
	}

	var nilUser *auth.User
	if nilUser.Can("read") {
		t.Error("nil user must hold no capabilities")
	}
	if auth.Anonymous().Can("read") {
		t.Error("anonymous user must hold no capabilities")
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("POST", "/mcp", nil)
	if auth.BearerToken(r) != "" {
		t.Error("expected empty token without header")
	}

	r.Header.Set("Authorization", "Bearer abc123")
	if got := auth.BearerToken(r); got != "abc123" {
		t.Errorf("token = %q", got)
	}

	r.Header.Set("Authorization", "bearer lower-scheme")
	if got := auth.BearerToken(r); got != "lower-scheme" {
		t.Errorf("case-insensitive scheme: token = %q", got)
	}

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if auth.BearerToken(r) != "" {
		t.Error("non-bearer scheme should yield empty token")
	}
}

func TestStaticAuthenticator(t *testing.T) {
	s := &auth.Static{Users: map[string]*auth.User{
		"good": {ID: 7, Capabilities: map[string]bool{"read": true}},
	}}

	r := httptest.NewRequest("POST", "/mcp", nil)
	u, err := s.Authenticate(r)
	if err != nil {
		t.Fatalf("anonymous: %v", err)
	}
	if u.ID != 0 {
		t.Errorf("anonymous user id = %d", u.ID)
	}

	r.Header.Set("Authorization", "Bearer good")
	u, err = s.Authenticate(r)
	if err != nil {
		t.Fatalf("valid token: %v", err)
	}
	if u.ID != 7 || !u.Can("read") {
		t.Errorf("user = %+v", u)
	}

	r.Header.Set("Authorization", "Bearer bad")
	if _, err := s.Authenticate(r); !errors.Is(err, auth.ErrUnauthorized) {
		t.Errorf("invalid token err = %v, want ErrUnauthorized", err)
	}
}

func TestFixedAuthenticator(t *testing.T) {
	f := &auth.Fixed{User: &auth.User{ID: 3, Capabilities: map[string]bool{"read": true}}}

	r := httptest.NewRequest("POST", "/mcp", nil)
	u, err := f.Authenticate(r)
	if err != nil {
		t.Fatalf("no header: %v", err)
	}
	if u.ID != 3 || !u.Can("read") {
		t.Errorf("user = %+v", u)
	}

	r.Header.Set("Authorization", "Bearer ignored")
	u, err = f.Authenticate(r)
	if err != nil || u.ID != 3 {
		t.Errorf("credentials must not change the fixed identity: %+v, %v", u, err)
	}

	empty := &auth.Fixed{}
	u, err = empty.Authenticate(httptest.NewRequest("POST", "/mcp", nil))
	if err != nil || u.ID != 0 {
		t.Errorf("nil user should resolve anonymous: %+v, %v", u, err)
	}
}
