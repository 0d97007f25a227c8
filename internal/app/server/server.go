package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"affiliate-gateway/internal/api"
	"affiliate-gateway/internal/authz"
	"affiliate-gateway/internal/config"
	"affiliate-gateway/internal/listener"
	"affiliate-gateway/internal/storage"
	"affiliate-gateway/internal/upstream"
)

// backend is what the gateway needs from local storage.
type backend interface {
	storage.Records
	storage.Profiles
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}

// App is the wired gateway.
type App struct {
	Handler http.Handler
	Bus     *authz.Bus
	// Memory is set when running without Postgres.
	Memory *storage.Memory

	gateway *api.Handler
	store   *storage.Store
}

// Build wires storage, the upstream client, the session router and the HTTP routes.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Bus: authz.NewBus()}

	var be backend
	if cfg.UsePostgres() {
		store, err := storage.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		app.store = store
		be = store
	} else {
		log.Warn().Msg("no postgres configured; using in-memory storage")
		app.Memory = storage.NewMemory()
		be = app.Memory
	}

	hc := &http.Client{Timeout: cfg.UpstreamTimeout()}
	if !cfg.Upstream.Generic.Configured() {
		log.Warn().Msg("generic upstream credentials not configured")
	}
	if !cfg.Upstream.Social.Configured() {
		log.Warn().Msg("social upstream credentials not configured")
	}
	broker := upstream.NewBroker(cfg.Upstream.BaseURL, cfg.Upstream.Generic, cfg.Upstream.Social, hc)
	client := upstream.NewClient(cfg.Upstream.BaseURL, broker, be, hc)

	checker := authz.CheckerFunc(func(ctx context.Context, s authz.Session) (bool, error) {
		return be.IsAdmin(ctx, s.UserID)
	})
	router := authz.NewRouter(cfg.Auth.AdminEmail, checker)

	app.gateway = api.NewHandler(client, authz.NewTokenParser(cfg.Auth.JWTSecret), router, be, be, app.Bus)
	app.Handler = api.Router(app.gateway, cfg.RequestTimeout())
	return app, nil
}

// Close releases storage.
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func (a *App) newServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(a.gateway.CloseStreams)
	return srv
}

// shutdown drains srv first and only then stops the background work under cancel.
func (a *App) shutdown(ctx context.Context, srv *http.Server, cancel context.CancelFunc) error {
	defer cancel()
	return srv.Shutdown(ctx)
}

func Run(cfg config.Config) {
	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(bgCtx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init app")
	}
	defer app.Close()

	// Listener (LISTEN/NOTIFY)
	if app.store != nil {
		go listener.ListenSessions(bgCtx, app.store, app.Bus, cfg.Listener.Channel, cfg.Backoff())
	}

	srv := app.newServer(cfg.Server.Addr)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	waitForSignal()
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := app.shutdown(shCtx, srv, cancel); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
