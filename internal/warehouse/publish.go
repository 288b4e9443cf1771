package warehouse

import (
	"context"

	"cloud.google.com/go/bigquery"
	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// rowSaver adapts a value map to the inserter. Schema comes from the
// destination table; an empty insert ID keeps BigQuery's best-effort
// dedupe out of the way so every run appends.
type rowSaver struct {
	values map[string]bigquery.Value
}

// Save implements bigquery.ValueSaver.
func (s rowSaver) Save() (map[string]bigquery.Value, string, error) {
	return s.values, "", nil
}

// Publish appends rows to a QA table. Every row in the batch gets the same
// run_id (a fresh uuid4) and the same timestamp under tsColumn, so a run
// can be isolated or rolled back by predicate later.
func (c *Client) Publish(ctx context.Context, table string, rows []map[string]any, tsColumn string) error {
	if len(rows) == 0 {
		return nil
	}
	if err := checkIdent(table); err != nil {
		return err
	}

	runID := uuid.NewString()
	runTS := utc.Now().Format(constants.TimeFormatSnapshot)

	savers := make([]rowSaver, 0, len(rows))
	for _, row := range rows {
		values := make(map[string]bigquery.Value, len(row)+2)
		for k, v := range row {
			values[k] = v
		}
		values["run_id"] = runID
		values[tsColumn] = runTS
		savers = append(savers, rowSaver{values: values})
	}

	ctx, cancel := context.WithTimeout(ctx, constants.WarehouseQueryTimeout)
	defer cancel()

	if err := c.bq.Dataset(c.dataset).Table(table).Inserter().Put(ctx, savers); err != nil {
		return errors.WrapQuery("publish", table, err)
	}
	c.log.Info().Str("table", table).Str("run_id", runID).Int("rows", len(rows)).
		Msg("Published QA rows")
	return nil
}
