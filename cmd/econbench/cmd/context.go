// Package cmd implements the econbench subcommands. Each command declares
// the slice of the app it needs through the AppContext interface, which
// keeps commands testable against fakes.
package cmd

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/internal/warehouse"
)

// AppContext is the surface commands need from the application.
type AppContext interface {
	Logger() *zerolog.Logger
	Format() string
	CensusAPIKey() string
	Warehouse(ctx context.Context) (*warehouse.Client, error)
	Uploader(ctx context.Context) (*artifacts.Uploader, error)
}
