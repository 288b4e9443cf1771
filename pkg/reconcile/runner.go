package reconcile

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rdmdatalab/econbench/internal/artifacts"
	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/econ"
	"github.com/rdmdatalab/econbench/pkg/errors"
	"github.com/rdmdatalab/econbench/pkg/logging"
)

// Publish targets. The combined runner hard-codes the per-system tables;
// only the full-surface target is overridable from the CLI.
const (
	AbsTable            = "qa_abs_reconciliation"
	QcewTable           = "qa_qcew_reconciliation"
	AbsFullSurfaceTable = "qa_abs_reconciliation_full"
)

// Modes accepted by the combined runner.
const (
	ModeStandard       = "standard"
	ModeAbsFullSurface = "abs-full-surface"
)

// System selectors for the combined runner.
const (
	SystemABS  = "abs"
	SystemQCEW = "qcew"
)

// Timestamp columns stamped onto published rows. The full-surface table
// predates the per-system tables and kept its older column name.
const (
	RunTSColumn    = "run_ts"
	RunTSUTCColumn = "run_ts_utc"
)

// SourceSystemColumn tags each stacked row with the system that produced it.
const SourceSystemColumn = "source_system"

// Defaults shared by the CLI entry points. The two-county slice is the
// standing demo surface; the full-surface mode covers everything.
var (
	DefaultYears    = []int{2022, 2023}
	DefaultCounties = []string{"06075", "06085"}
	DefaultNaics    = []string{"42", "62"}
)

const (
	DefaultQcewRawTemplate = "data_raw/qcew/{year}.annual.singlefile.csv"
	DefaultQcewCacheDir    = "data_raw/qcew/source_qa"
	DefaultOwnershipCode   = "5"
	DefaultAggLevel        = "74"
)

// AbsSource fetches the Census side of an ABS reconciliation.
type AbsSource interface {
	// FetchSlices issues one request per year × county × sector.
	FetchSlices(ctx context.Context, years []int, counties, naics []string) ([]AbsSourceRow, error)

	// FetchFullSurface sweeps county:* per state for every year.
	FetchFullSurface(ctx context.Context, years []int) ([]AbsSourceRow, error)
}

// QcewSource loads the published QCEW side from the annual singlefile.
type QcewSource interface {
	Load(ctx context.Context, cfg QcewConfig) ([]QcewSourceRow, error)
}

// Warehouse serves the system-of-record side of a reconciliation, either
// from BigQuery or from a local CSV override.
type Warehouse interface {
	AbsFacts(ctx context.Context, years []int, counties, naics []string) ([]AbsWarehouseRow, error)
	AbsFactsAll(ctx context.Context, years []int) ([]AbsWarehouseRow, error)
	QcewFacts(ctx context.Context, years []int, counties, naics []string) ([]QcewWarehouseRow, error)
}

// Publisher appends rows to a QA table, stamping run_id and the named
// timestamp column onto every row.
type Publisher interface {
	Publish(ctx context.Context, table string, rows []map[string]any, tsColumn string) error
}

// Config drives a combined reconciliation run.
type Config struct {
	Systems  []string
	Mode     string
	Years    []int
	Counties []string
	Naics    []string
	OutDir   string
	Publish  bool

	// Table is the full-surface publish target; the standard-mode
	// per-system tables are fixed.
	Table string

	// RdmCSV records the warehouse CSV override path for the run log.
	// The override itself is wired in by swapping the Warehouse.
	RdmCSV string
}

// Result reports what a run produced.
type Result struct {
	AbsRows  []AbsRow
	QcewRows []QcewRow

	StampedCSV  string
	LatestCSV   string
	CombinedCSV string
	SummaryPath string
}

// Runner wires sources, the warehouse, and the publisher into the
// reconciliation entry points behind the CLI.
type Runner struct {
	Abs       AbsSource
	Qcew      QcewSource
	Warehouse Warehouse
	Publisher Publisher
	Log       zerolog.Logger
}

// NewRunner builds a Runner that logs under the recon component.
func NewRunner(abs AbsSource, qcew QcewSource, warehouse Warehouse, publisher Publisher) *Runner {
	return &Runner{
		Abs:       abs,
		Qcew:      qcew,
		Warehouse: warehouse,
		Publisher: publisher,
		Log:       logging.With().Str("component", "recon").Logger(),
	}
}

// Run executes the combined flow: the selected systems reconcile, the
// frames stack into one CSV, and the pass/fail summary is written.
// Standard mode leaves per-system artifacts and publishing to RunABS and
// RunQCEW; full-surface mode writes and publishes its own artifacts and
// returns without a combined CSV.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg = withDefaults(cfg)

	r.Log.Info().
		Strs("systems", cfg.Systems).
		Str("mode", cfg.Mode).
		Ints("years", cfg.Years).
		Strs("counties", cfg.Counties).
		Strs("naics", cfg.Naics).
		Str("outdir", cfg.OutDir).
		Bool("publish_bq", cfg.Publish).
		Str("bq_table", cfg.Table).
		Str("rdm_csv", orNone(cfg.RdmCSV)).
		Msg("[RECON] Starting reconciliation run")

	if cfg.Mode == ModeAbsFullSurface {
		return r.runFullSurface(ctx, cfg)
	}

	res := &Result{}
	ranAbs := false
	ranQcew := false

	if hasSystem(cfg.Systems, SystemABS) {
		r.Log.Info().Msg("[RECON] Starting ABS reconciliation")
		rows, err := r.reconcileAbsSlice(ctx, cfg.Years, cfg.Counties, cfg.Naics)
		if err != nil {
			return nil, err
		}
		res.AbsRows = rows
		ranAbs = true
		r.Log.Info().Int("rows", len(rows)).Msg("[RECON] ABS reconciliation complete")
	}

	if hasSystem(cfg.Systems, SystemQCEW) {
		r.Log.Info().Msg("[RECON] Starting QCEW reconciliation")
		qcfg := QcewConfig{
			Years:              cfg.Years,
			Counties:           cfg.Counties,
			Naics:              cfg.Naics,
			OutDir:             cfg.OutDir,
			Publish:            cfg.Publish,
			Table:              QcewTable,
			RawTemplate:        DefaultQcewRawTemplate,
			CacheDir:           DefaultQcewCacheDir,
			OwnershipCode:      DefaultOwnershipCode,
			AggLevel:           DefaultAggLevel,
			AllowWageTolerance: true,
			RdmCSV:             cfg.RdmCSV,
		}
		rows, err := r.reconcileQcewSlice(ctx, qcfg)
		if err != nil {
			return nil, err
		}
		res.QcewRows = rows
		ranQcew = true
		r.Log.Info().Int("rows", len(rows)).Msg("[RECON] QCEW reconciliation complete")
	}

	if !ranAbs && !ranQcew {
		return res, nil
	}

	stamp := artifacts.Stamp()
	columns := CombinedColumns(ranAbs, ranQcew)
	records := CombinedRecords(res.AbsRows, res.QcewRows, columns)
	combined := artifacts.Path(cfg.OutDir, "reconciliation_all", stamp)
	if err := artifacts.WriteCSV(combined, columns, records); err != nil {
		return nil, err
	}
	res.CombinedCSV = combined
	r.Log.Info().Str("path", combined).Msg("[RECON] Wrote combined CSV")

	summary := artifacts.MarkdownPath(cfg.OutDir, "reconciliation_summary", stamp)
	if err := WriteSummary(summary, res.AbsRows, ranAbs, res.QcewRows, ranQcew); err != nil {
		return nil, err
	}
	res.SummaryPath = summary
	r.Log.Info().Str("path", summary).Msg("[RECON] Wrote summary")

	return res, nil
}

// RunABS is the standalone ABS entry point: reconcile the configured
// slice, write the stamped artifact pair, optionally publish.
func (r *Runner) RunABS(ctx context.Context, cfg AbsConfig) (*Result, error) {
	cfg = withAbsDefaults(cfg)

	rows, err := r.reconcileAbsSlice(ctx, cfg.Years, cfg.Counties, cfg.Naics)
	if err != nil {
		return nil, err
	}

	stamped, latest, err := artifacts.WriteTimestamped(cfg.OutDir, "abs_reconciliation", artifacts.Stamp(), AbsColumns, AbsRecords(rows))
	if err != nil {
		return nil, err
	}

	if cfg.Publish {
		if err := r.publishAbs(ctx, cfg.Table, rows, RunTSColumn, false); err != nil {
			return nil, err
		}
	}

	passed, total := AbsPassCount(rows)
	r.Log.Info().Str("stamped", stamped).Str("latest", latest).Msg("[ABS] Wrote reconciliation artifacts")
	r.Log.Info().Int("passed", passed).Int("total", total).Msg("[ABS] pass_all")
	for _, row := range AbsFailures(rows) {
		r.Log.Warn().Msg("[ABS]   - " + row.FailureLine())
	}

	return &Result{AbsRows: rows, StampedCSV: stamped, LatestCSV: latest}, nil
}

// RunQCEW is the standalone QCEW entry point.
func (r *Runner) RunQCEW(ctx context.Context, cfg QcewConfig) (*Result, error) {
	cfg = withQcewDefaults(cfg)

	rows, err := r.reconcileQcewSlice(ctx, cfg)
	if err != nil {
		return nil, err
	}

	stamped, latest, err := artifacts.WriteTimestamped(cfg.OutDir, "qcew_reconciliation", artifacts.Stamp(), QcewColumns, QcewRecords(rows))
	if err != nil {
		return nil, err
	}

	if cfg.Publish {
		if err := r.publishQcew(ctx, cfg.Table, rows); err != nil {
			return nil, err
		}
	}

	passed, total := QcewPassCount(rows)
	r.Log.Info().Str("stamped", stamped).Str("latest", latest).Msg("[QCEW] Wrote reconciliation artifacts")
	r.Log.Info().Int("passed", passed).Int("total", total).Msg("[QCEW] pass_all")
	for _, row := range QcewFailures(rows) {
		r.Log.Warn().Msg("[QCEW]   - " + row.FailureLine())
	}

	return &Result{QcewRows: rows, StampedCSV: stamped, LatestCSV: latest}, nil
}

func (r *Runner) runFullSurface(ctx context.Context, cfg Config) (*Result, error) {
	r.Log.Info().Msg("[RECON] Starting ABS full-surface reconciliation")

	source, err := r.Abs.FetchFullSurface(ctx, cfg.Years)
	if err != nil {
		return nil, err
	}
	facts, err := r.Warehouse.AbsFactsAll(ctx, cfg.Years)
	if err != nil {
		return nil, err
	}
	rows := ReconcileABS(source, facts)

	columns := CombinedColumns(true, false)
	records := CombinedRecords(rows, nil, columns)
	stamped, latest, err := artifacts.WriteTimestamped(cfg.OutDir, "abs_reconciliation_full", artifacts.Stamp(), columns, records)
	if err != nil {
		return nil, err
	}

	if cfg.Publish {
		if err := r.publishAbs(ctx, cfg.Table, rows, RunTSUTCColumn, true); err != nil {
			return nil, err
		}
	}

	passed, total := AbsPassCount(rows)
	r.Log.Info().Str("stamped", stamped).Str("latest", latest).Msg("[RECON] Wrote full-surface artifacts")
	r.Log.Info().Int("passed", passed).Int("total", total).Msg("[RECON] ABS pass_all")
	for _, row := range AbsFailures(rows) {
		r.Log.Warn().Msg("[RECON]   - " + row.FailureLine())
	}

	return &Result{AbsRows: rows, StampedCSV: stamped, LatestCSV: latest}, nil
}

func (r *Runner) reconcileAbsSlice(ctx context.Context, years []int, counties, naics []string) ([]AbsRow, error) {
	source, err := r.Abs.FetchSlices(ctx, years, counties, naics)
	if err != nil {
		return nil, err
	}
	facts, err := r.Warehouse.AbsFacts(ctx, years, counties, naics)
	if err != nil {
		return nil, err
	}
	return ReconcileABS(source, facts), nil
}

func (r *Runner) reconcileQcewSlice(ctx context.Context, cfg QcewConfig) ([]QcewRow, error) {
	source, err := r.Qcew.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	facts, err := r.Warehouse.QcewFacts(ctx, cfg.Years, cfg.Counties, cfg.Naics)
	if err != nil {
		return nil, err
	}
	return ReconcileQCEW(source, facts, cfg.AllowWageTolerance), nil
}

func (r *Runner) publishAbs(ctx context.Context, table string, rows []AbsRow, tsColumn string, tagSystem bool) error {
	if r.Publisher == nil {
		return errors.NewConfigError("reconcile", "publishing requested but no publisher is configured", nil)
	}
	values := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		v := row.Values()
		if tagSystem {
			v[SourceSystemColumn] = SystemABS
		}
		values = append(values, v)
	}
	return r.Publisher.Publish(ctx, table, values, tsColumn)
}

func (r *Runner) publishQcew(ctx context.Context, table string, rows []QcewRow) error {
	if r.Publisher == nil {
		return errors.NewConfigError("reconcile", "publishing requested but no publisher is configured", nil)
	}
	values := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Values())
	}
	return r.Publisher.Publish(ctx, table, values, RunTSColumn)
}

func withDefaults(cfg Config) Config {
	if len(cfg.Systems) == 0 {
		cfg.Systems = []string{SystemABS, SystemQCEW}
	}
	for i, s := range cfg.Systems {
		cfg.Systems[i] = strings.ToLower(strings.TrimSpace(s))
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeStandard
	}
	cfg.Mode = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(cfg.Mode)), "_", "-")
	if len(cfg.Years) == 0 {
		cfg.Years = DefaultYears
	}
	if len(cfg.Counties) == 0 {
		cfg.Counties = DefaultCounties
	}
	for i, c := range cfg.Counties {
		cfg.Counties[i] = econ.PadFIPS(c)
	}
	if len(cfg.Naics) == 0 {
		cfg.Naics = DefaultNaics
	}
	for i, n := range cfg.Naics {
		cfg.Naics[i] = econ.PadSector(n)
	}
	if cfg.OutDir == "" {
		cfg.OutDir = constants.DefaultQAOutDir
	}
	if cfg.Table == "" {
		cfg.Table = AbsFullSurfaceTable
	}
	return cfg
}

func withAbsDefaults(cfg AbsConfig) AbsConfig {
	if len(cfg.Years) == 0 {
		cfg.Years = DefaultYears
	}
	if len(cfg.Counties) == 0 {
		cfg.Counties = DefaultCounties
	}
	for i, c := range cfg.Counties {
		cfg.Counties[i] = econ.PadFIPS(c)
	}
	if len(cfg.Naics) == 0 {
		cfg.Naics = DefaultNaics
	}
	for i, n := range cfg.Naics {
		cfg.Naics[i] = econ.PadSector(n)
	}
	if cfg.OutDir == "" {
		cfg.OutDir = constants.DefaultQAOutDir
	}
	if cfg.Table == "" {
		cfg.Table = AbsTable
	}
	return cfg
}

func withQcewDefaults(cfg QcewConfig) QcewConfig {
	if len(cfg.Years) == 0 {
		cfg.Years = DefaultYears
	}
	if len(cfg.Counties) == 0 {
		cfg.Counties = DefaultCounties
	}
	for i, c := range cfg.Counties {
		cfg.Counties[i] = econ.PadFIPS(c)
	}
	if len(cfg.Naics) == 0 {
		cfg.Naics = DefaultNaics
	}
	for i, n := range cfg.Naics {
		cfg.Naics[i] = econ.PadSector(n)
	}
	if cfg.OutDir == "" {
		cfg.OutDir = constants.DefaultQAOutDir
	}
	if cfg.Table == "" {
		cfg.Table = QcewTable
	}
	if cfg.RawTemplate == "" {
		cfg.RawTemplate = DefaultQcewRawTemplate
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultQcewCacheDir
	}
	if cfg.OwnershipCode == "" {
		cfg.OwnershipCode = DefaultOwnershipCode
	}
	if cfg.AggLevel == "" {
		cfg.AggLevel = DefaultAggLevel
	}
	return cfg
}

func hasSystem(systems []string, name string) bool {
	for _, s := range systems {
		if s == name {
			return true
		}
	}
	return false
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
