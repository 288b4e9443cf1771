// Package reconcile compares fresh source pulls against the warehouse's
// values for the same county × NAICS2 sector × year keys.
//
// Each system (ABS, QCEW) fetches its source metrics, fetches the
// warehouse's version of the same slice, outer-joins on the common key,
// and classifies every metric as pass or fail under per-metric tolerances.
// Deltas are always warehouse minus source. Suppressed publisher values
// ("D", "S", ...) surface as nil with a note so a withheld cell is never
// confused with a genuinely absent row.
//
// ABS passes are plain booleans: a missing side fails the metric. QCEW
// passes are tri-state (*bool): nil means the comparison was impossible,
// which keeps suppressed counties out of both the pass and fail counts.
package reconcile

import (
	"math"

	"github.com/rdmdatalab/econbench/pkg/econ"
)

// Per-metric tolerances. Firms and employment match exactly; dollar
// aggregates allow slack for the $1k → USD scaling on the source side.
const (
	// PayrollToleranceUSD bounds |rdm − source| for ABS annual payroll.
	PayrollToleranceUSD = 1000.0
	// ReceiptsToleranceUSD bounds |rdm − source| for ABS receipts.
	ReceiptsToleranceUSD = 1000.0
	// WeeklyWageToleranceUSD bounds |rdm − source| for the QCEW average
	// weekly wage, a rounding guard for the wages/(emp*52) recompute.
	WeeklyWageToleranceUSD = 1.0
)

// Note flags appended during reconciliation, on top of the parse notes
// from pkg/econ.
const (
	NoteMissingFromBoth   = "missing_from_both"
	NoteMissingFromCensus = "missing_from_census"
	NoteMissingFromSource = "missing_from_source"
	NoteMissingFromRdm    = "missing_from_rdm"
)

// sub computes rdm − source, nil when either side is nil.
func sub(rdm, source *float64) *float64 {
	if rdm == nil || source == nil {
		return nil
	}
	d := *rdm - *source
	return &d
}

// passExact is the strict two-state pass: a missing side fails.
func passExact(delta *float64) bool {
	return delta != nil && *delta == 0
}

// passTol is the tolerance two-state pass: a missing side fails.
func passTol(delta *float64, tol float64) bool {
	return delta != nil && math.Abs(*delta) <= tol
}

// triPassExact is the tri-state pass: nil when the comparison was
// impossible because a side is missing.
func triPassExact(delta *float64) *bool {
	if delta == nil {
		return nil
	}
	return econ.Bool(*delta == 0)
}

// triPassTol is the tri-state tolerance pass.
func triPassTol(delta *float64, tol float64) *bool {
	if delta == nil {
		return nil
	}
	return econ.Bool(math.Abs(*delta) <= tol)
}

// passLabel renders a tri-state pass for failure listings. NA marks a
// comparison that never happened.
func passLabel(v *bool) string {
	if v == nil {
		return "NA"
	}
	if *v {
		return "true"
	}
	return "false"
}
