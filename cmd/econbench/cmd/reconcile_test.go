package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/internal/warehouse"
)

var errNoWarehouse = errors.New("warehouse unavailable")

// fakeApp satisfies AppContext without GCP credentials: any warehouse or
// uploader request fails.
type fakeApp struct {
	logger         zerolog.Logger
	warehouseCalls int
}

func (f *fakeApp) Logger() *zerolog.Logger { return &f.logger }
func (f *fakeApp) Format() string          { return "json" }
func (f *fakeApp) CensusAPIKey() string    { return "" }

func (f *fakeApp) Warehouse(_ context.Context) (*warehouse.Client, error) {
	f.warehouseCalls++
	return nil, errNoWarehouse
}

func (f *fakeApp) Uploader(_ context.Context) (*artifacts.Uploader, error) {
	return nil, errors.New("uploader unavailable")
}

func TestReconcileHasStandaloneSubcommands(t *testing.T) {
	cmd := NewReconcileCommand(&fakeApp{logger: zerolog.Nop()})

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["abs"], "reconcile abs subcommand missing")
	assert.True(t, names["qcew"], "reconcile qcew subcommand missing")

	for _, name := range []string{"abs", "qcew"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.NotNil(t, sub.Flags().Lookup("publish"), "%s missing --publish", name)
		assert.NotNil(t, sub.Flags().Lookup("rdm-csv"), "%s missing --rdm-csv", name)
	}
}

func TestReconcileRunnerOverrideWithoutPublish(t *testing.T) {
	app := &fakeApp{logger: zerolog.Nop()}

	runner, err := newReconcileRunner(context.Background(), app, "fixtures/warehouse.csv", false)
	require.NoError(t, err)
	assert.Zero(t, app.warehouseCalls, "override without publish should not touch BigQuery")
	assert.IsType(t, &warehouse.Override{}, runner.Warehouse)
	assert.Nil(t, runner.Publisher)
}

func TestReconcileRunnerOverrideWithPublishNeedsWarehouse(t *testing.T) {
	app := &fakeApp{logger: zerolog.Nop()}

	_, err := newReconcileRunner(context.Background(), app, "fixtures/warehouse.csv", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, errNoWarehouse)
	assert.Equal(t, 1, app.warehouseCalls, "publishing from an override must wire the BigQuery publisher")
}
