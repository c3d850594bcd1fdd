// Package serverapp assembles the estate-graphql HTTP server and owns its
// lifecycle: init, start, wait and shutdown.
package serverapp

import (
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"estate-graphql/internal/config"
	"estate-graphql/internal/dialect"
	"estate-graphql/internal/logging"
	"estate-graphql/internal/observability"
	"estate-graphql/internal/resolver"
	"estate-graphql/internal/store"
)

// App owns runtime resources for the estate-graphql server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	meterProvider   *observability.MeterProvider
	graphqlMetrics  *observability.GraphQLMetrics
	securityMetrics *observability.SecurityMetrics
	tracerProvider  *observability.TracerProvider

	dialect    dialect.Dialect
	db         *sql.DB
	dbStatsReg interface{ Unregister() error }

	store    *store.Store
	resolver *resolver.Resolver

	graphqlHandler http.Handler
	mux            *http.ServeMux
	handler        http.Handler

	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	d, err := dialect.ForName(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		dialect: d,
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
