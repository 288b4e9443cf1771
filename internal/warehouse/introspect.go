package warehouse

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// Column is one entry from INFORMATION_SCHEMA.COLUMNS.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

type columnRow struct {
	Name     string `bigquery:"column_name"`
	Type     string `bigquery:"data_type"`
	Nullable string `bigquery:"is_nullable"`
}

// DiscoverColumns lists a table's columns in ordinal order.
func (c *Client) DiscoverColumns(ctx context.Context, table string) ([]Column, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.WarehouseQueryTimeout)
	defer cancel()

	q := c.bq.Query(fmt.Sprintf(
		"SELECT column_name, data_type, is_nullable FROM `%s.%s.INFORMATION_SCHEMA.COLUMNS` WHERE table_name = @table ORDER BY ordinal_position",
		c.project, c.dataset))
	q.Parameters = []bigquery.QueryParameter{{Name: "table", Value: table}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, errors.WrapQuery("introspect", table, err)
	}

	var columns []Column
	for {
		var r columnRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.WrapQuery("introspect", table, err)
		}
		columns = append(columns, Column{
			Name:     r.Name,
			Type:     r.Type,
			Nullable: r.Nullable == "YES",
		})
	}
	if len(columns) == 0 {
		return nil, errors.NewNotFoundError("table", table)
	}
	return columns, nil
}

// ListTables lists the dataset's base tables.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.WarehouseQueryTimeout)
	defer cancel()

	q := c.bq.Query(fmt.Sprintf(
		"SELECT table_name FROM `%s.%s.INFORMATION_SCHEMA.TABLES` WHERE table_type = 'BASE TABLE' ORDER BY table_name",
		c.project, c.dataset))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, errors.WrapQuery("introspect", c.dataset, err)
	}

	var tables []string
	for {
		var r struct {
			Name string `bigquery:"table_name"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.WrapQuery("introspect", c.dataset, err)
		}
		tables = append(tables, r.Name)
	}
	return tables, nil
}
