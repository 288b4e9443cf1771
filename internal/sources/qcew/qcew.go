// Package qcew prepares BLS QCEW annual singlefiles for the benchmark
// warehouse and loads them as the source side of QCEW reconciliation. Raw
// singlefiles vary in column spelling across vintages and re-exports, so
// both paths share one synonym-driven normalization before filtering.
package qcew

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rdmdatalab/econbench/pkg/errors"
)

// Canonical QCEW column names. Raw headers resolve to these before any
// filtering, so the rest of the package never sees vintage spellings.
const (
	colArea     = "area_fips"
	colIndustry = "industry_code"
	colYear     = "year"
	colEmp      = "annual_avg_emplvl"
	colWages    = "total_annual_wages"
	colAvgWage  = "annual_avg_wkly_wage"
	colAggLevel = "agglvl_code"
	colOwn      = "own_code"
	colQtr      = "qtr"
)

// synonyms lists the accepted spellings per canonical column, canonical
// first. The alternates cover warehouse-schema re-exports and legacy dumps.
var synonyms = map[string][]string{
	colArea:     {"area_fips", "state_cnty_fips_cd", "area", "fips"},
	colIndustry: {"industry_code", "indstr_cd", "naics", "industry"},
	colYear:     {"year", "year_num"},
	colEmp: {
		"annual_avg_emplvl",
		"annual_avg_emp",
		"qcew_ann_avg_emp_lvl_num",
		"annual_avg_employment",
		"annualaverageemployment",
		"annual_avg_emplv",
	},
	colWages: {
		"total_annual_wages",
		"qcew_ttl_ann_wage_usd_amt",
		"totalannualwages",
		"annual_total_wages",
		"tot_annual_wages",
	},
	colAvgWage: {
		"annual_avg_wkly_wage",
		"avg_wkly_wage",
		"avg_weekly_wage",
		"average_weekly_wage",
		"qcew_avg_wkly_wage_usd_amt",
	},
	colAggLevel: {"agglvl_code", "agg_lvl_cd", "aggregation_level"},
	colOwn:      {"own_code", "ownership", "ownership_code", "own"},
	colQtr:      {"qtr", "quarter"},
}

// requiredColumns must all resolve in a raw file. own_code and qtr stay
// optional because annual singlefiles sometimes ship without them.
var requiredColumns = []string{
	colArea,
	colIndustry,
	colYear,
	colEmp,
	colWages,
	colAvgWage,
	colAggLevel,
}

// resolveColumns maps canonical column names to the spellings a raw header
// actually uses, matching case-insensitively.
func resolveColumns(header []string) (map[string]string, error) {
	lower := make(map[string]string, len(header))
	for _, col := range header {
		lower[strings.ToLower(col)] = col
	}

	resolved := make(map[string]string, len(synonyms))
	for canonical, opts := range synonyms {
		for _, opt := range opts {
			if raw, ok := lower[opt]; ok {
				resolved[canonical] = raw
				break
			}
		}
	}

	var missing []string
	for _, canonical := range requiredColumns {
		if _, ok := resolved[canonical]; !ok {
			missing = append(missing, canonical)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewValidationError("columns", missing,
			fmt.Sprintf("QCEW source missing required columns: %s", strings.Join(missing, ", ")))
	}
	return resolved, nil
}

// field returns the raw cell for a canonical column, nil when the file or
// the record lacks it.
func field(record, resolved map[string]string, canonical string) *string {
	raw, ok := resolved[canonical]
	if !ok {
		return nil
	}
	v, ok := record[raw]
	if !ok {
		return nil
	}
	return &v
}

// fieldText returns the trimmed cell text, empty when absent.
func fieldText(record, resolved map[string]string, canonical string) string {
	if v := field(record, resolved, canonical); v != nil {
		return strings.TrimSpace(*v)
	}
	return ""
}

// yearPlaceholder is substituted into raw and output path templates.
const yearPlaceholder = "{year}"

// ExpandYear substitutes the {year} placeholder in a path template.
func ExpandYear(template string, year int) string {
	return strings.ReplaceAll(template, yearPlaceholder, strconv.Itoa(year))
}
