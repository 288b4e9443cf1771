// Package econ defines the common vocabulary shared by every pipeline in the
// toolkit: the county × NAICS2-sector × year key schema, publisher suppression
// handling, and the small numeric helpers the reconciliation and QA layers
// depend on.
//
// Every dataset the toolkit touches is normalized onto the same grain before
// anything else happens to it:
//
//	key := econ.Key{Year: 2022, FIPS: "06075", Sector: "62"}
//
// FIPS codes are always 5 digits zero-padded (2-digit state + 3-digit
// county). Sector codes are 2-digit NAICS sectors, with the three ranged
// sectors kept in their published form: "31-33", "44-45", "48-49".
package econ

import "fmt"

// Key identifies one observation at the county × sector × year grain.
type Key struct {
	Year   int
	FIPS   string
	Sector string
}

// String renders the key the way reconciliation failure lines print it.
func (k Key) String() string {
	return fmt.Sprintf("%d %s %s", k.Year, k.FIPS, k.Sector)
}

// Less orders keys by (Year, FIPS, Sector), the sort order of every
// exported CSV.
func (k Key) Less(other Key) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	if k.FIPS != other.FIPS {
		return k.FIPS < other.FIPS
	}
	return k.Sector < other.Sector
}

// Float returns a pointer to v. Nullable metrics are *float64 throughout
// the toolkit; nil means the value is absent or suppressed.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v. Tri-state pass flags are *bool; nil means
// the comparison could not be made.
func Bool(v bool) *bool {
	return &v
}
