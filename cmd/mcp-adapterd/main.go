// Command mcp-adapterd serves the MCP Streamable HTTP endpoint and,
// optionally, the stdio bridge, configured entirely from the environment.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/hostbridge/mcp-adapter/abilities"
	"github.com/hostbridge/mcp-adapter/auth"
	"github.com/hostbridge/mcp-adapter/auth/jwtauth"
	"github.com/hostbridge/mcp-adapter/fsabilities"
	"github.com/hostbridge/mcp-adapter/internal/logctx"
	"github.com/hostbridge/mcp-adapter/mcp"
	"github.com/hostbridge/mcp-adapter/observe"
	"github.com/hostbridge/mcp-adapter/server"
	"github.com/hostbridge/mcp-adapter/sessions"
	"github.com/hostbridge/mcp-adapter/sessions/redisstore"
)

type appConfig struct {
	Addr     string `env:"MCP_HTTP_ADDR,default=:8080"`
	BasePath string `env:"MCP_HTTP_PATH,default=/mcp"`
	LogLevel string `env:"MCP_LOG_LEVEL,default=info"`

	ServerName    string `env:"MCP_SERVER_NAME,default=mcp-adapter"`
	ServerVersion string `env:"MCP_SERVER_VERSION,default=dev"`
	Instructions  string `env:"MCP_INSTRUCTIONS"`

	RedisAddr string `env:"REDIS_ADDR"`

	RequiredCapability string `env:"MCP_REQUIRED_CAPABILITY,default=read"`
	LocalUserID        int64  `env:"MCP_LOCAL_USER_ID,default=1"`
	JWTIssuer          string `env:"MCP_JWT_ISSUER"`
	JWTAudience        string `env:"MCP_JWT_AUDIENCE"`
	JWTHMACSecret      string `env:"MCP_JWT_HMAC_SECRET"`
	JWTJWKSURI         string `env:"MCP_JWT_JWKS_URI"`

	DocsDir string `env:"MCP_DOCS_DIR"`

	StdioEnabled bool  `env:"MCP_STDIO_ENABLED,default=false"`
	StdioUserID  int64 `env:"MCP_STDIO_USER_ID,default=1"`

	ShutdownTimeout time.Duration `env:"MCP_SHUTDOWN_TIMEOUT,default=10s"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}

	authn, err := newAuthenticator(ctx, cfg)
	if err != nil {
		return err
	}

	abilityReg := abilities.NewRegistry()
	var provider *fsabilities.Provider
	if cfg.DocsDir != "" {
		provider, err = fsabilities.New(abilityReg, cfg.DocsDir, fsabilities.WithLogger(log))
		if err != nil {
			return err
		}
		if err := provider.Sync(ctx); err != nil {
			return fmt.Errorf("sync docs dir: %w", err)
		}
	}

	opts := []server.Option{
		server.WithAbilities(abilityReg),
		server.WithSessionStore(store),
		server.WithLogger(log),
		server.WithEvents(observe.Log{Logger: log}),
		server.WithServerInfo(mcp.ImplementationInfo{Name: cfg.ServerName, Version: cfg.ServerVersion}),
		server.WithInstructions(cfg.Instructions),
		server.WithRequiredCapability(cfg.RequiredCapability),
	}
	if authn == nil {
		// No JWT settings: resolve every caller to a fixed local identity
		// holding the required capability so the daemon can mint sessions
		// out of the box.
		authn = &auth.Fixed{User: &auth.User{
			ID:           cfg.LocalUserID,
			Capabilities: map[string]bool{cfg.RequiredCapability: true},
		}}
	}
	opts = append(opts, server.WithAuthenticator(authn))
	if cfg.StdioEnabled {
		opts = append(opts, server.WithStdio(cfg.StdioUserID))
	}
	srv := server.New(opts...)

	if provider != nil {
		// Mirror watch-time ability changes into the component registry;
		// files present at startup were bridged by server.New.
		provider.SetOnChange(func(cctx context.Context, name string, added bool) {
			if added {
				srv.Registry.RegisterResources(cctx, name)
				return
			}
			srv.Registry.RemoveResourceByAbility(cctx, name)
		})
		go func() {
			if err := provider.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("fsabilities.watch.exit", slog.String("err", err.Error()))
			}
		}()
	}
	if cfg.StdioEnabled {
		go func() {
			if err := srv.STDIO.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("stdio.serve.exit", slog.String("err", err.Error()))
			}
		}()
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.BasePath, srv.HTTP)

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http.listen", slog.String("addr", cfg.Addr), slog.String("path", cfg.BasePath))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown.begin")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("shutdown.done")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	base := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logctx.Handler{Handler: base})
}

func newSessionStore(ctx context.Context, cfg appConfig) (sessions.Store, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	store, err := redisstore.New(ctx, redisstore.Config{RedisAddr: cfg.RedisAddr})
	if err != nil {
		return nil, fmt.Errorf("redis session store: %w", err)
	}
	return store, nil
}

func newAuthenticator(ctx context.Context, cfg appConfig) (auth.Authenticator, error) {
	jwtCfg := jwtauth.DefaultConfig()
	jwtCfg.Issuer = cfg.JWTIssuer
	if cfg.JWTAudience != "" {
		jwtCfg.ExpectedAudiences = []string{cfg.JWTAudience}
	}

	switch {
	case cfg.JWTHMACSecret != "":
		return jwtauth.NewHMAC(jwtCfg, []byte(cfg.JWTHMACSecret))
	case cfg.JWTJWKSURI != "":
		return jwtauth.NewJWKS(ctx, jwtCfg, cfg.JWTJWKSURI)
	case cfg.JWTIssuer != "":
		return jwtauth.NewFromDiscovery(ctx, jwtCfg)
	default:
		return nil, nil
	}
}
