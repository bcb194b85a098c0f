// Package auth defines the transport-facing identity contract. Transports
// resolve an authenticated User from the incoming request and pass its id
// down to the router; they never consult ambient state for identity.
package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates authentication failed or no valid credentials
// were supplied.
var ErrUnauthorized = errors.New("auth: unauthorized")

// User is an authenticated principal.
type User struct {
	// ID is the positive user identifier. Zero means anonymous.
	ID int64
	// Capabilities is the set of capability names granted to the user.
	Capabilities map[string]bool
}

// Can reports whether the user holds the named capability.
func (u *User) Can(capability string) bool {
	if u == nil {
		return false
	}
	return u.Capabilities[capability]
}

// Anonymous returns the zero-identity user.
func Anonymous() *User {
	return &User{}
}

// Authenticator resolves the caller's identity from an HTTP request.
// Implementations return ErrUnauthorized (possibly wrapped) when credentials
// are present but invalid; absent credentials resolve to the anonymous user
// so the permission gate can decide what anonymous callers may do.
type Authenticator interface {
	Authenticate(r *http.Request) (*User, error)
}

// BearerToken extracts the Bearer token from an Authorization header, or ""
// when the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Fixed resolves every caller to the same principal regardless of
// credentials. It backs local deployments that run without real
// authentication but still need a positive user id to mint sessions.
type Fixed struct {
	User *User
}

// Authenticate implements Authenticator.
func (f *Fixed) Authenticate(*http.Request) (*User, error) {
	if f.User == nil {
		return Anonymous(), nil
	}
	return f.User, nil
}

// Static authenticates by exact bearer-token lookup. It is intended for
// tests and single-tenant deployments where tokens are provisioned out of
// band.
type Static struct {
	// Users maps bearer tokens to their principals.
	Users map[string]*User
}

// Authenticate implements Authenticator.
func (s *Static) Authenticate(r *http.Request) (*User, error) {
	tok := BearerToken(r)
	if tok == "" {
		return Anonymous(), nil
	}
	u, ok := s.Users[tok]
	if !ok || u == nil {
		return nil, ErrUnauthorized
	}
	return u, nil
}
