package qa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	md "github.com/nao1215/markdown"
	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/internal/reports"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// typeSampleRows caps how many rows the type inference reads per file.
const typeSampleRows = 200

// DictionaryConfig drives one data-dictionary build.
type DictionaryConfig struct {
	Globs        []string
	MetadataYAML string
	OutMD        string
	OutCSV       string
}

// DictEntry is one documented column.
type DictEntry struct {
	File        string
	Column      string
	Type        string
	Source      string
	Description string
}

// fileMetadata is the per-file override block from the metadata YAML.
// Anything it sets wins over the header heuristics.
type fileMetadata struct {
	Description string                    `yaml:"description"`
	Columns     map[string]columnOverride `yaml:"columns"`
}

type columnOverride struct {
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Source      string `yaml:"source"`
}

type dictionaryMetadata struct {
	Files map[string]fileMetadata `yaml:"files"`
}

// DictionaryBuilder generates the markdown and CSV data dictionary for the
// cleaned exports.
type DictionaryBuilder struct {
	log zerolog.Logger
}

// NewDictionaryBuilder builds a builder that logs under the dictionary
// component.
func NewDictionaryBuilder() *DictionaryBuilder {
	return &DictionaryBuilder{log: logging.With().Str("component", "dictionary").Logger()}
}

// Run scans the configured CSV globs, infers column types and descriptions,
// applies the YAML overrides, and writes the dictionary pair.
func (b *DictionaryBuilder) Run(_ context.Context, cfg DictionaryConfig) error {
	cfg = withDictionaryDefaults(cfg)

	meta, err := loadDictionaryMetadata(cfg.MetadataYAML)
	if err != nil {
		return err
	}

	paths, err := expandGlobs(cfg.Globs)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.NewNotFoundError("dictionary inputs", strings.Join(cfg.Globs, ", "))
	}

	var entries []DictEntry
	fileDescs := map[string]string{}
	for _, path := range paths {
		fileEntries, err := b.describeFile(path, meta)
		if err != nil {
			return err
		}
		entries = append(entries, fileEntries...)
		if fm, ok := meta.Files[filepath.Base(path)]; ok {
			fileDescs[filepath.Base(path)] = fm.Description
		}
		b.log.Info().Str("file", path).Int("columns", len(fileEntries)).Msg("[DICTIONARY] Documented file")
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].File != entries[j].File {
			return entries[i].File < entries[j].File
		}
		return entries[i].Column < entries[j].Column
	})

	if err := b.writeCSV(cfg.OutCSV, entries); err != nil {
		return err
	}
	if err := b.writeMarkdown(cfg.OutMD, entries, fileDescs); err != nil {
		return err
	}
	b.log.Info().Int("entries", len(entries)).Str("md", cfg.OutMD).Str("csv", cfg.OutCSV).
		Msg("[DICTIONARY] Wrote data dictionary")
	return nil
}

func (b *DictionaryBuilder) describeFile(path string, meta dictionaryMetadata) ([]DictEntry, error) {
	header, rows, err := artifacts.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	if len(rows) > typeSampleRows {
		rows = rows[:typeSampleRows]
	}

	base := filepath.Base(path)
	overrides := meta.Files[base].Columns

	entries := make([]DictEntry, 0, len(header))
	for _, col := range header {
		entry := DictEntry{
			File:        base,
			Column:      col,
			Type:        inferType(col, rows),
			Source:      inferSource(col),
			Description: describeColumn(col),
		}
		if o, ok := overrides[col]; ok {
			if o.Description != "" {
				entry.Description = o.Description
			}
			if o.Type != "" {
				entry.Type = o.Type
			}
			if o.Source != "" {
				entry.Source = o.Source
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// inferType samples the column's non-empty cells: all integers is INTEGER,
// all numeric is FLOAT, anything else is STRING. An entirely empty column
// stays STRING.
func inferType(col string, rows []map[string]string) string {
	sampled, allInt, allFloat := 0, true, true
	for _, row := range rows {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		sampled++
		if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			allFloat = false
		}
	}
	switch {
	case sampled == 0:
		return "STRING"
	case allInt:
		return "INTEGER"
	case allFloat:
		return "FLOAT"
	default:
		return "STRING"
	}
}

func inferSource(col string) string {
	switch {
	case strings.HasPrefix(col, "abs_"):
		return "Census ABS"
	case strings.HasPrefix(col, "qcew_"):
		return "BLS QCEW"
	case strings.HasPrefix(col, "bea_") || strings.HasPrefix(col, "gdp_"):
		return "BEA"
	case strings.HasPrefix(col, "tri_") || strings.HasPrefix(col, "epa_"):
		return "EPA TRI"
	case strings.HasPrefix(col, "population_") || strings.Contains(col, "fips") || col == "state_cd" || col == "cnty_nm":
		return "Reference"
	default:
		return "Derived"
	}
}

// describeColumn builds a description from the column-name conventions the
// cleaned exports follow.
func describeColumn(col string) string {
	subject := strings.NewReplacer("_", " ").Replace(trimColumnAffixes(col))
	switch {
	case strings.HasSuffix(col, "_usd_amt"):
		return fmt.Sprintf("%s in US dollars", strings.TrimSpace(subject+" amount"))
	case strings.HasSuffix(col, "_num"):
		return subject + " count"
	case strings.HasSuffix(col, "_cd"):
		return subject + " code"
	case strings.HasSuffix(col, "_nm"):
		return subject + " name"
	case strings.HasSuffix(col, "_year") || col == "year_num":
		return subject + " year"
	case strings.HasSuffix(col, "_pct"):
		return subject + " percentage"
	default:
		return subject
	}
}

func trimColumnAffixes(col string) string {
	for _, prefix := range []string{"abs_", "qcew_", "bea_", "epa_", "tri_"} {
		col = strings.TrimPrefix(col, prefix)
	}
	for _, suffix := range []string{"_usd_amt", "_num", "_cd", "_nm", "_pct"} {
		col = strings.TrimSuffix(col, suffix)
	}
	return col
}

func (b *DictionaryBuilder) writeCSV(path string, entries []DictEntry) error {
	columns := []string{"file_name", "column_name", "data_type", "source_system", "description"}
	records := make([][]string, 0, len(entries))
	for _, e := range entries {
		records = append(records, []string{e.File, e.Column, e.Type, e.Source, e.Description})
	}
	return artifacts.WriteCSV(path, columns, records)
}

func (b *DictionaryBuilder) writeMarkdown(path string, entries []DictEntry, fileDescs map[string]string) error {
	return reports.Write(path, func(doc *md.Markdown) {
		doc.H1("RDM Datalab v1 Data Dictionary").LF()

		var current string
		var rows [][]string
		flush := func() {
			if current == "" {
				return
			}
			doc.Table(md.TableSet{
				Header: []string{"Column", "Type", "Source", "Description"},
				Rows:   rows,
			}).LF()
		}
		for _, e := range entries {
			if e.File != current {
				flush()
				current = e.File
				rows = nil
				doc.H2(e.File)
				if desc := fileDescs[e.File]; desc != "" {
					doc.PlainText(desc).LF()
				}
			}
			rows = append(rows, []string{e.Column, e.Type, e.Source, e.Description})
		}
		flush()
	})
}

func loadDictionaryMetadata(path string) (dictionaryMetadata, error) {
	var meta dictionaryMetadata
	if path == "" {
		return meta, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // Metadata path is operator-controlled
	if err != nil {
		return meta, errors.WrapIO("read", path, err)
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, errors.WrapParse("yaml", path, err)
	}
	return meta, nil
}

func expandGlobs(globs []string) ([]string, error) {
	var paths []string
	seen := map[string]bool{}
	for _, pattern := range globs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.NewValidationError("glob", pattern, "invalid glob pattern")
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func withDictionaryDefaults(cfg DictionaryConfig) DictionaryConfig {
	if len(cfg.Globs) == 0 {
		cfg.Globs = []string{
			"data_clean/abs/*.csv",
			"data_clean/qcew/*.csv",
			"data_clean/bea/*.csv",
			"data_clean/epa/*.csv",
			"data_clean/reference/*.csv",
			"data_clean/integration/*.csv",
		}
	}
	if cfg.OutMD == "" {
		cfg.OutMD = filepath.Join(constants.DefaultReportsDir, "data_dictionary.md")
	}
	if cfg.OutCSV == "" {
		cfg.OutCSV = filepath.Join(constants.DefaultReportsDir, "data_dictionary.csv")
	}
	return cfg
}
