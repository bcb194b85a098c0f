// Package jwtauth authenticates bearer JWTs against a shared secret or a
// JWKS endpoint, optionally discovered via OIDC metadata. The subject claim
// carries the numeric user id and the "caps" claim the capability grant.
package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"github.com/hostbridge/mcp-adapter/auth"
)

// CapabilitiesClaim is the JWT claim listing granted capability names.
const CapabilitiesClaim = "caps"

// Config controls token validation.
type Config struct {
	Issuer            string
	ExpectedAudiences []string
	AllowedAlgs       []string
	Leeway            time.Duration
}

// DefaultConfig returns a Config with safe algorithm and leeway defaults.
func DefaultConfig() *Config {
	return &Config{
		AllowedAlgs: []string{"RS256"},
		Leeway:      60 * time.Second,
	}
}

func (c *Config) normalize() {
	if len(c.AllowedAlgs) == 0 {
		c.AllowedAlgs = []string{"RS256"}
	}
	if c.Leeway == 0 {
		c.Leeway = 60 * time.Second
	}
}

// Authenticator validates bearer JWTs from incoming requests.
type Authenticator struct {
	cfg     *Config
	keyfunc jwt.Keyfunc
}

var _ auth.Authenticator = (*Authenticator)(nil)

// NewHMAC builds an authenticator validating HS256 tokens signed with the
// given shared secret.
func NewHMAC(cfg *Config, secret []byte) (*Authenticator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if len(secret) == 0 {
		return nil, errors.New("secret is required")
	}
	cfg.AllowedAlgs = []string{"HS256"}
	cfg.normalize()
	return &Authenticator{cfg: cfg, keyfunc: func(t *jwt.Token) (any, error) {
		return secret, nil
	}}, nil
}

// NewJWKS builds an authenticator resolving signing keys from a JWKS
// endpoint. Keys are refreshed automatically.
func NewJWKS(ctx context.Context, cfg *Config, jwksURI string) (*Authenticator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if jwksURI == "" {
		return nil, errors.New("jwks uri required")
	}
	cfg.normalize()

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURI})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}
	return &Authenticator{cfg: cfg, keyfunc: allowedAlgsKeyfunc(cfg, kf.Keyfunc)}, nil
}

// NewFromDiscovery performs OIDC discovery against cfg.Issuer to locate the
// jwks_uri and builds a JWKS-backed authenticator.
func NewFromDiscovery(ctx context.Context, cfg *Config) (*Authenticator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	cfg.normalize()

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}
	var meta struct {
		Issuer  string `json:"issuer"`
		JwksURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("invalid discovery metadata: %w", err)
	}
	if meta.JwksURI == "" {
		return nil, errors.New("discovery incomplete: missing jwks_uri")
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{meta.JwksURI})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}
	return &Authenticator{cfg: cfg, keyfunc: allowedAlgsKeyfunc(cfg, kf.Keyfunc)}, nil
}

func allowedAlgsKeyfunc(cfg *Config, inner jwt.Keyfunc) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		alg := t.Method.Alg()
		for _, a := range cfg.AllowedAlgs {
			if alg == a {
				return inner(t)
			}
		}
		return nil, fmt.Errorf("disallowed alg: %s", alg)
	}
}

// Authenticate implements auth.Authenticator. Requests without a bearer
// token resolve to the anonymous user.
func (a *Authenticator) Authenticate(r *http.Request) (*auth.User, error) {
	tok := auth.BearerToken(r)
	if tok == "" {
		return auth.Anonymous(), nil
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(a.cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.cfg.Leeway),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if len(a.cfg.ExpectedAudiences) == 1 {
		opts = append(opts, jwt.WithAudience(a.cfg.ExpectedAudiences[0]))
	}
	parser := jwt.NewParser(opts...)

	parsed, err := parser.Parse(tok, a.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: token parse/verify failed: %v", auth.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims type", auth.ErrUnauthorized)
	}
	if len(a.cfg.ExpectedAudiences) > 1 && !audIntersects(claims["aud"], a.cfg.ExpectedAudiences) {
		return nil, fmt.Errorf("%w: audience mismatch", auth.ErrUnauthorized)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", auth.ErrUnauthorized)
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: sub is not a valid user id", auth.ErrUnauthorized)
	}

	return &auth.User{ID: id, Capabilities: capabilities(claims)}, nil
}

// capabilities reads the caps claim, accepting either a list of names or a
// name-to-bool map.
func capabilities(claims jwt.MapClaims) map[string]bool {
	out := map[string]bool{}
	switch v := claims[CapabilitiesClaim].(type) {
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				out[s] = true
			}
		}
	case map[string]any:
		for name, granted := range v {
			if b, ok := granted.(bool); ok && b {
				out[name] = true
			}
		}
	}
	return out
}

func audIntersects(aud any, wants []string) bool {
	wantSet := map[string]struct{}{}
	for _, w := range wants {
		wantSet[w] = struct{}{}
	}
	switch v := aud.(type) {
	case string:
		_, ok := wantSet[v]
		return ok
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				if _, ok2 := wantSet[s]; ok2 {
					return true
				}
			}
		}
	case []string:
		for _, s := range v {
			if _, ok := wantSet[s]; ok {
				return true
			}
		}
	}
	return false
}
