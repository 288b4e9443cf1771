package qa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	md "github.com/nao1215/markdown"
	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/reports"
	"github.com/rdmdatalab/econbench/internal/warehouse"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// SchemaSource is the warehouse surface the schema diff reads from.
type SchemaSource interface {
	DiscoverColumns(ctx context.Context, table string) ([]warehouse.Column, error)
	ListTables(ctx context.Context) ([]string, error)
}

// SchemaConfig drives one schema diff run.
type SchemaConfig struct {
	DDLGlob string
	OutDir  string
}

// TableDiff is the comparison result for one DDL-defined table.
type TableDiff struct {
	Table          string   `json:"table"`
	Match          bool     `json:"match"`
	NotInWarehouse bool     `json:"not_in_warehouse"`
	MissingLive    []string `json:"missing_in_warehouse,omitempty"`
	ExtraLive      []string `json:"extra_in_warehouse,omitempty"`
	TypeMismatches []string `json:"type_mismatches,omitempty"`
}

// SchemaReport is the JSON summary artifact of a schema diff.
type SchemaReport struct {
	Match         bool        `json:"match"`
	Tables        []TableDiff `json:"tables"`
	UntrackedLive []string    `json:"untracked_live_tables,omitempty"`
	MarkdownPath  string      `json:"-"`
	JSONPath      string      `json:"-"`
}

// ddlTable is one parsed CREATE OR REPLACE TABLE statement.
type ddlTable struct {
	name    string
	columns []warehouse.Column
}

var createTableRe = regexp.MustCompile("(?is)CREATE\\s+OR\\s+REPLACE\\s+TABLE\\s+`?([A-Za-z0-9_.\\-]+)`?\\s*\\(")

// SchemaDiff compares the checked-in DDL against the live warehouse.
type SchemaDiff struct {
	source SchemaSource
	log    zerolog.Logger
}

// NewSchemaDiff builds a diff over the given schema source.
func NewSchemaDiff(source SchemaSource) *SchemaDiff {
	return &SchemaDiff{
		source: source,
		log:    logging.With().Str("component", "schema").Logger(),
	}
}

// Run diffs every DDL file against the live schema and writes the markdown
// report plus the JSON summary. Mismatches are reported, not errors; the
// CLI decides whether to gate on them.
func (s *SchemaDiff) Run(ctx context.Context, cfg SchemaConfig) (*SchemaReport, error) {
	cfg = withSchemaDefaults(cfg)

	tables, err := loadDDL(cfg.DDLGlob)
	if err != nil {
		return nil, err
	}

	live, err := s.source.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	liveSet := make(map[string]bool, len(live))
	for _, name := range live {
		liveSet[name] = true
	}

	report := &SchemaReport{Match: true}
	tracked := map[string]bool{}
	for _, table := range tables {
		tracked[table.name] = true
		diff, err := s.diffTable(ctx, table, liveSet)
		if err != nil {
			return nil, err
		}
		if !diff.Match {
			report.Match = false
		}
		report.Tables = append(report.Tables, diff)

		verdict := "MATCH"
		if !diff.Match {
			verdict = "MISMATCH"
		}
		s.log.Info().Str("table", table.name).Msg("[SCHEMA] " + verdict)
	}
	for _, name := range live {
		if !tracked[name] {
			report.UntrackedLive = append(report.UntrackedLive, name)
		}
	}
	sort.Strings(report.UntrackedLive)

	mdPath := filepath.Join(cfg.OutDir, "schema_diff_report.md")
	jsonPath := filepath.Join(cfg.OutDir, "schema_diff_summary.json")
	if err := s.writeMarkdown(mdPath, report); err != nil {
		return nil, err
	}
	if err := writeJSON(jsonPath, report); err != nil {
		return nil, err
	}
	report.MarkdownPath = mdPath
	report.JSONPath = jsonPath
	return report, nil
}

func (s *SchemaDiff) diffTable(ctx context.Context, table ddlTable, liveSet map[string]bool) (TableDiff, error) {
	diff := TableDiff{Table: table.name, Match: true}
	if !liveSet[table.name] {
		diff.Match = false
		diff.NotInWarehouse = true
		return diff, nil
	}

	liveColumns, err := s.source.DiscoverColumns(ctx, table.name)
	if err != nil {
		return diff, err
	}
	liveByName := make(map[string]warehouse.Column, len(liveColumns))
	for _, col := range liveColumns {
		liveByName[col.Name] = col
	}
	ddlByName := make(map[string]warehouse.Column, len(table.columns))
	for _, col := range table.columns {
		ddlByName[col.Name] = col
	}

	for _, col := range table.columns {
		liveCol, ok := liveByName[col.Name]
		if !ok {
			diff.MissingLive = append(diff.MissingLive, col.Name)
			continue
		}
		if normalizeType(col.Type) != normalizeType(liveCol.Type) {
			diff.TypeMismatches = append(diff.TypeMismatches,
				fmt.Sprintf("%s: ddl=%s live=%s", col.Name, col.Type, liveCol.Type))
		}
	}
	for _, col := range liveColumns {
		if _, ok := ddlByName[col.Name]; !ok {
			diff.ExtraLive = append(diff.ExtraLive, col.Name)
		}
	}
	sort.Strings(diff.MissingLive)
	sort.Strings(diff.ExtraLive)
	sort.Strings(diff.TypeMismatches)

	diff.Match = len(diff.MissingLive) == 0 && len(diff.ExtraLive) == 0 && len(diff.TypeMismatches) == 0
	return diff, nil
}

func (s *SchemaDiff) writeMarkdown(path string, report *SchemaReport) error {
	return reports.Write(path, func(doc *md.Markdown) {
		doc.H1("Warehouse Schema Diff").LF()
		overall := "MATCH"
		if !report.Match {
			overall = "MISMATCH"
		}
		doc.PlainTextf("Overall: %s", overall).LF()

		for _, diff := range report.Tables {
			verdict := "MATCH"
			if !diff.Match {
				verdict = "MISMATCH"
			}
			doc.H2(fmt.Sprintf("%s: %s", verdict, diff.Table))
			switch {
			case diff.NotInWarehouse:
				doc.PlainText("Table is defined in DDL but does not exist in the warehouse.").LF()
			case diff.Match:
				doc.PlainText("Live schema matches the DDL.").LF()
			default:
				if len(diff.MissingLive) > 0 {
					doc.H3("Missing in warehouse")
					doc.BulletList(diff.MissingLive...).LF()
				}
				if len(diff.ExtraLive) > 0 {
					doc.H3("Extra in warehouse")
					doc.BulletList(diff.ExtraLive...).LF()
				}
				if len(diff.TypeMismatches) > 0 {
					doc.H3("Type mismatches")
					doc.BulletList(diff.TypeMismatches...).LF()
				}
			}
		}

		if len(report.UntrackedLive) > 0 {
			doc.H2("Live tables with no DDL")
			doc.BulletList(report.UntrackedLive...)
		}
	})
}

// loadDDL parses every CREATE OR REPLACE TABLE statement in the glob.
func loadDDL(glob string) ([]ddlTable, error) {
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, errors.NewValidationError("glob", glob, "invalid DDL glob")
	}
	if len(paths) == 0 {
		return nil, errors.NewNotFoundError("ddl files", glob)
	}
	sort.Strings(paths)

	var tables []ddlTable
	for _, path := range paths {
		data, err := os.ReadFile(path) //nolint:gosec // DDL paths come from the checked-in glob
		if err != nil {
			return nil, errors.WrapIO("read", path, err)
		}
		parsed, err := parseDDL(path, string(data))
		if err != nil {
			return nil, err
		}
		tables = append(tables, parsed...)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].name < tables[j].name })
	return tables, nil
}

func parseDDL(path, sql string) ([]ddlTable, error) {
	var tables []ddlTable
	for _, loc := range createTableRe.FindAllStringSubmatchIndex(sql, -1) {
		fullName := sql[loc[2]:loc[3]]
		parts := strings.Split(fullName, ".")
		name := parts[len(parts)-1]

		body, err := balancedParens(sql[loc[1]-1:])
		if err != nil {
			return nil, errors.NewParseError("sql", path, fmt.Sprintf("table %s: %v", name, err), err)
		}
		columns, err := parseColumns(body)
		if err != nil {
			return nil, errors.NewParseError("sql", path, fmt.Sprintf("table %s: %v", name, err), err)
		}
		tables = append(tables, ddlTable{name: name, columns: columns})
	}
	if len(tables) == 0 {
		return nil, errors.NewParseError("sql", path, "no CREATE OR REPLACE TABLE statements found", nil)
	}
	return tables, nil
}

// balancedParens returns the contents of the parenthesized block that s
// opens with, excluding the outer pair.
func balancedParens(s string) (string, error) {
	depth := 0
	for i, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[1:i], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced parentheses in column list")
}

func parseColumns(body string) ([]warehouse.Column, error) {
	var columns []warehouse.Column
	for _, def := range splitTopLevel(body) {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}
		fields := strings.Fields(def)
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed column definition %q", def)
		}
		name := strings.Trim(fields[0], "`")
		typ := strings.ToUpper(fields[1])
		if idx := strings.Index(typ, "("); idx > 0 {
			typ = typ[:idx]
		}
		columns = append(columns, warehouse.Column{
			Name:     name,
			Type:     typ,
			Nullable: !strings.Contains(strings.ToUpper(def), "NOT NULL"),
		})
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("empty column list")
	}
	return columns, nil
}

// splitTopLevel splits on commas outside parentheses, so parameterized
// types like NUMERIC(10, 2) survive.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// normalizeType maps DDL and INFORMATION_SCHEMA spellings of the same
// BigQuery type onto one name.
func normalizeType(typ string) string {
	switch strings.ToUpper(typ) {
	case "INT64", "INTEGER":
		return "INT64"
	case "FLOAT64", "FLOAT":
		return "FLOAT64"
	case "BOOL", "BOOLEAN":
		return "BOOL"
	case "NUMERIC", "BIGNUMERIC", "DECIMAL":
		return "NUMERIC"
	default:
		return strings.ToUpper(typ)
	}
}

func withSchemaDefaults(cfg SchemaConfig) SchemaConfig {
	if cfg.DDLGlob == "" {
		cfg.DDLGlob = filepath.Join("bigquery", "ddl", "*.sql")
	}
	if cfg.OutDir == "" {
		cfg.OutDir = constants.DefaultReportsDir
	}
	return cfg
}
