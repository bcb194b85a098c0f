// Package server wires the adapter together: an ability registry feeds the
// component registry, handlers consume registry and sessions, and the router
// fronts both transports.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hostbridge/mcp-adapter/abilities"
	"github.com/hostbridge/mcp-adapter/auth"
	"github.com/hostbridge/mcp-adapter/handlers"
	"github.com/hostbridge/mcp-adapter/mcp"
	"github.com/hostbridge/mcp-adapter/observe"
	"github.com/hostbridge/mcp-adapter/registry"
	"github.com/hostbridge/mcp-adapter/router"
	"github.com/hostbridge/mcp-adapter/sessions"
	"github.com/hostbridge/mcp-adapter/sessions/memorystore"
	"github.com/hostbridge/mcp-adapter/stdio"
	"github.com/hostbridge/mcp-adapter/streaminghttp"
)

// Option configures a Server.
type Option func(*config)

type config struct {
	abilities     *abilities.Registry
	store         sessions.Store
	sessionConfig *sessions.Config
	userDirectory sessions.UserDirectory
	serverInfo    mcp.ImplementationInfo
	instructions  string
	log           *slog.Logger
	events        observe.Recorder
	validator     registry.Validator

	authenticator      auth.Authenticator
	permission         streaminghttp.PermissionCallback
	requiredCapability string

	stdioEnabled bool
	stdioUserID  int64
}

// WithAbilities sets the host ability registry. Without one an empty
// registry is used.
func WithAbilities(reg *abilities.Registry) Option {
	return func(c *config) { c.abilities = reg }
}

// WithSessionStore sets the session persistence backend. Defaults to the
// in-memory store.
func WithSessionStore(store sessions.Store) Option {
	return func(c *config) { c.store = store }
}

// WithSessionConfig overrides session limits and timeouts.
func WithSessionConfig(cfg sessions.Config) Option {
	return func(c *config) { c.sessionConfig = &cfg }
}

// WithUserDirectory sets the user existence check for session creation.
func WithUserDirectory(d sessions.UserDirectory) Option {
	return func(c *config) { c.userDirectory = d }
}

// WithServerInfo sets the implementation info advertised on initialize.
func WithServerInfo(info mcp.ImplementationInfo) Option {
	return func(c *config) { c.serverInfo = info }
}

// WithInstructions sets the optional instructions string advertised on
// initialize.
func WithInstructions(s string) Option {
	return func(c *config) { c.instructions = s }
}

// WithLogger sets the logger shared by all components.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithEvents sets the observability recorder.
func WithEvents(rec observe.Recorder) Option {
	return func(c *config) { c.events = rec }
}

// WithValidator overrides component validation.
func WithValidator(v registry.Validator) Option {
	return func(c *config) { c.validator = v }
}

// WithAuthenticator sets the HTTP identity resolver.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(c *config) { c.authenticator = a }
}

// WithPermissionCallback overrides the HTTP transport permission gate.
func WithPermissionCallback(cb streaminghttp.PermissionCallback) Option {
	return func(c *config) { c.permission = cb }
}

// WithRequiredCapability changes the capability the default HTTP gate
// demands.
func WithRequiredCapability(capability string) Option {
	return func(c *config) { c.requiredCapability = capability }
}

// WithStdio enables the stdio bridge under the given fixed user identity.
func WithStdio(userID int64) Option {
	return func(c *config) {
		c.stdioEnabled = true
		c.stdioUserID = userID
	}
}

// Server is the assembled adapter.
type Server struct {
	Registry *registry.Registry
	Sessions *sessions.Manager
	Router   *router.Router
	HTTP     http.Handler
	STDIO    *stdio.Handler
}

// New assembles a Server.
func New(opts ...Option) *Server {
	c := &config{
		log:        slog.Default(),
		serverInfo: mcp.ImplementationInfo{Name: "mcp-adapter", Version: "dev"},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.abilities == nil {
		c.abilities = abilities.NewRegistry()
	}
	if c.store == nil {
		c.store = memorystore.New()
	}

	regOpts := []registry.Option{registry.WithLogger(c.log)}
	if c.events != nil {
		regOpts = append(regOpts, registry.WithEvents(c.events))
	}
	if c.validator != nil {
		regOpts = append(regOpts, registry.WithValidator(c.validator))
	}
	reg := registry.New(c.abilities, regOpts...)
	registerAbilities(reg, c.abilities)

	mgrOpts := []sessions.ManagerOption{sessions.WithLogger(c.log)}
	if c.sessionConfig != nil {
		mgrOpts = append(mgrOpts, sessions.WithConfig(*c.sessionConfig))
	}
	if c.userDirectory != nil {
		mgrOpts = append(mgrOpts, sessions.WithUserDirectory(c.userDirectory))
	}
	mgr := sessions.NewManager(c.store, mgrOpts...)

	rtOpts := []router.Option{router.WithLogger(c.log)}
	if c.events != nil {
		rtOpts = append(rtOpts, router.WithEvents(c.events))
	}
	rt := router.New(rtOpts...)
	registerRoutes(rt, reg, mgr, c)

	httpOpts := []streaminghttp.Option{streaminghttp.WithLogger(c.log)}
	if c.authenticator != nil {
		httpOpts = append(httpOpts, streaminghttp.WithAuthenticator(c.authenticator))
	}
	if c.permission != nil {
		httpOpts = append(httpOpts, streaminghttp.WithPermissionCallback(c.permission))
	}
	if c.requiredCapability != "" {
		httpOpts = append(httpOpts, streaminghttp.WithRequiredCapability(c.requiredCapability))
	}

	return &Server{
		Registry: reg,
		Sessions: mgr,
		Router:   rt,
		HTTP:     streaminghttp.New(rt, mgr, httpOpts...),
		STDIO: stdio.New(rt,
			stdio.WithLogger(c.log),
			stdio.WithUserID(c.stdioUserID),
			stdio.WithEnabled(c.stdioEnabled)),
	}
}

// registerAbilities exposes every public ability already present in the
// ability registry as the component kind its metadata declares. Abilities
// added later (e.g. by a filesystem watcher) are bridged by their provider.
func registerAbilities(reg *registry.Registry, ab *abilities.Registry) {
	ctx := context.Background()
	for _, name := range ab.Names() {
		a, ok := ab.Get(name)
		if !ok || !a.Meta().Public {
			continue
		}
		switch a.Meta().ComponentType() {
		case abilities.TypeResource:
			reg.RegisterResources(ctx, name)
		case abilities.TypePrompt:
			reg.RegisterPrompts(ctx, name)
		default:
			reg.RegisterTools(ctx, name)
		}
	}
}

func registerRoutes(rt *router.Router, reg *registry.Registry, mgr *sessions.Manager, c *config) {
	initHandler := &handlers.Initialize{
		Sessions:     mgr,
		ServerInfo:   c.serverInfo,
		Instructions: c.instructions,
		Log:          c.log,
	}
	tools := &handlers.Tools{Registry: reg, Log: c.log}
	resources := &handlers.Resources{Registry: reg, Log: c.log}
	prompts := &handlers.Prompts{Registry: reg, Log: c.log}
	system := &handlers.System{Log: c.log}

	rt.Register(string(mcp.InitializeMethod), initHandler.Handle)

	rt.RegisterList(string(mcp.ToolsListMethod), tools.List)
	rt.Register(string(mcp.ToolsCallMethod), tools.Call)

	rt.RegisterList(string(mcp.ResourcesListMethod), resources.List)
	rt.Register(string(mcp.ResourcesReadMethod), resources.Read)

	rt.RegisterList(string(mcp.PromptsListMethod), prompts.List)
	rt.Register(string(mcp.PromptsGetMethod), prompts.Get)

	rt.Register(string(mcp.PingMethod), system.Ping)
	rt.Register(string(mcp.LoggingSetLevelMethod), system.SetLevel)
	rt.Register(string(mcp.CompletionCompleteMethod), system.Complete)
	rt.Register(string(mcp.RootsListMethod), system.ListRoots)

	rt.RegisterNotification(string(mcp.InitializedNotificationMethod), nil)
	rt.RegisterNotification(string(mcp.CancelledNotificationMethod), nil)
	rt.RegisterNotification(string(mcp.ProgressNotificationMethod), nil)
}
