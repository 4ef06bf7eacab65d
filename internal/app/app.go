package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/inaumanmajeed/epicrealm-support/internal/auth"
	"github.com/inaumanmajeed/epicrealm-support/internal/config"
	"github.com/inaumanmajeed/epicrealm-support/internal/core"
	"github.com/inaumanmajeed/epicrealm-support/internal/service/support"
	"github.com/inaumanmajeed/epicrealm-support/internal/store"
	"github.com/inaumanmajeed/epicrealm-support/internal/store/sqlite"
	transporthttp "github.com/inaumanmajeed/epicrealm-support/internal/transport/http"
)

// App owns the support server: store, hub and HTTP transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// JWTConfig derives token settings from the server configuration.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	svcLog := logger.With().Str("component", "support").Logger()
	svc := support.New(st, support.Config{
		StaffDisplayName:          cfg.Support.StaffDisplayName,
		PermissiveAnonymousAccess: cfg.Support.PermissiveAnonymousAccess,
	}, &svcLog)
	if cfg.Support.PermissiveAnonymousAccess {
		logger.Warn().Msg("permissive anonymous access enabled: anonymous visitors can open any anonymous chat")
	}

	authLog := logger.With().Str("component", "auth").Logger()
	resolver := auth.NewResolver(st, JWTConfig(cfg), &authLog)

	hubLog := logger.With().Str("component", "hub").Logger()
	hub := core.NewHub(svc, core.NewPresence(), core.HubConfig{
		HistoryReplayLimit: cfg.Support.HistoryReplayLimit,
	}, &hubLog)

	server := transporthttp.NewServer(transporthttp.Deps{
		Hub:      hub,
		Service:  svc,
		Resolver: resolver,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run serves until ctx is cancelled or the listener fails, then drains the hub
// and closes the store.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		a.hub.Run(hubCtx)
	}()
	defer a.close(stopHub, hubDone)

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	// WebSocket connections are hijacked and not tracked by Shutdown; the hub
	// closes their event channels once stopped.
	a.log.Info().Dur("timeout", a.shutdownTimeout).Msg("shutting down http server")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-serveErr
}

func (a *App) close(stopHub context.CancelFunc, hubDone <-chan struct{}) {
	stopHub()
	select {
	case <-hubDone:
	case <-time.After(a.shutdownTimeout):
		a.log.Warn().Msg("hub did not stop before shutdown timeout")
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close store")
		return
	}
	a.log.Info().Msg("store closed")
}
