// Package app holds the application context for the econbench CLI: the
// configuration, the logger, and the lazily created warehouse and storage
// clients the commands share.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/internal/warehouse"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// App carries the CLI's dependencies. Commands reach it through the small
// AppContext interfaces they declare for themselves.
type App struct {
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	mu        sync.Mutex
	warehouse *warehouse.Client
	uploader  *artifacts.Uploader
}

// New creates an App with the given version information. Configuration is
// loaded from flags, environment, .env files, and the config file; options
// override afterwards.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version string.
func (a *App) Version() string { return a.version }

// Commit returns the git commit hash.
func (a *App) Commit() string { return a.commit }

// Date returns the build date.
func (a *App) Date() string { return a.date }

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string { return a.builtBy }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// Verbose reports whether verbose output was requested.
func (a *App) Verbose() bool { return a.config.Verbose }

// Format returns the requested output format, empty for auto-detect.
func (a *App) Format() string { return a.config.Format }

// CensusAPIKey returns the Census Bureau API key, empty when unset.
func (a *App) CensusAPIKey() string { return a.config.CensusAPIKey }

// Warehouse returns the shared BigQuery client, creating it on first use.
func (a *App) Warehouse(ctx context.Context) (*warehouse.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.warehouse != nil {
		return a.warehouse, nil
	}
	client, err := warehouse.New(ctx, a.config.Project, a.config.Dataset)
	if err != nil {
		return nil, err
	}
	a.warehouse = client
	return client, nil
}

// Uploader returns the shared Cloud Storage uploader, creating it on first
// use.
func (a *App) Uploader(ctx context.Context) (*artifacts.Uploader, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.uploader != nil {
		return a.uploader, nil
	}
	up, err := artifacts.NewUploader(ctx)
	if err != nil {
		return nil, err
	}
	a.uploader = up
	return up, nil
}

// Shutdown closes the clients the app created.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	if a.warehouse != nil {
		if err := a.warehouse.Close(); err != nil {
			firstErr = err
		}
		a.warehouse = nil
	}
	if a.uploader != nil {
		if err := a.uploader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.uploader = nil
	}
	return firstErr
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}
