// Package warehouse is the BigQuery access layer: system-of-record reads
// for reconciliation, QA-table publishes, INFORMATION_SCHEMA introspection,
// and the rollup queries behind the snapshot and year-over-year reports.
//
// Local CSV overrides live here too. An override path short-circuits
// BigQuery entirely, which keeps reconciliation runnable against a warehouse
// export when no credentials are around.
package warehouse

import (
	"context"
	"fmt"
	"regexp"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// Default warehouse coordinates. Both are configurable from the CLI.
const (
	DefaultProject = "rdm-datalab-portfolio"
	DefaultDataset = "portfolio_data"

	// FactTable is the integrated ABS+QCEW system-of-record table.
	FactTable = "econ_bnchmrk_abs_qcew"
)

// identRe guards column and table names interpolated into SQL. Parameters
// cover the values; identifiers discovered at runtime get this check.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Client wraps a BigQuery client for one project + dataset.
type Client struct {
	bq      *bigquery.Client
	project string
	dataset string
	log     zerolog.Logger
}

// New connects to BigQuery. Empty project or dataset fall back to the
// defaults. Credentials come from the ambient environment (ADC).
func New(ctx context.Context, project, dataset string) (*Client, error) {
	if project == "" {
		project = DefaultProject
	}
	if dataset == "" {
		dataset = DefaultDataset
	}
	bq, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, errors.WrapQuery("connect", project, err)
	}
	return &Client{
		bq:      bq,
		project: project,
		dataset: dataset,
		log:     logging.With().Str("component", "warehouse").Logger(),
	}, nil
}

// Close releases the underlying BigQuery client.
func (c *Client) Close() error {
	return c.bq.Close()
}

// Project returns the connected project ID.
func (c *Client) Project() string { return c.project }

// Dataset returns the connected dataset name.
func (c *Client) Dataset() string { return c.dataset }

// tableRef renders the fully qualified, backtick-quoted table reference.
func (c *Client) tableRef(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", c.project, c.dataset, table)
}

// checkIdent rejects identifiers that cannot be safely interpolated.
func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return errors.NewValidationError("identifier", name, "not a valid BigQuery identifier")
	}
	return nil
}

func toInt64s(years []int) []int64 {
	out := make([]int64, len(years))
	for i, y := range years {
		out[i] = int64(y)
	}
	return out
}

func nullFloat(v bigquery.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
