package econ

import "strings"

// StateFIPS lists the 50 states plus DC by FIPS code, in code order. Full
// national pulls iterate this list one state at a time.
var StateFIPS = []string{
	"01", "02", "04", "05", "06", "08", "09", "10", "11", "12",
	"13", "15", "16", "17", "18", "19", "20", "21", "22", "23",
	"24", "25", "26", "27", "28", "29", "30", "31", "32", "33",
	"34", "35", "36", "37", "38", "39", "40", "41", "42", "44",
	"45", "46", "47", "48", "49", "50", "51", "53", "54", "55",
	"56",
}

// PadFIPS left-pads a combined state+county code to 5 digits. Codes read
// from CSV or typed on the command line often arrive with the leading zero
// stripped.
func PadFIPS(fips string) string {
	return zfill(strings.TrimSpace(fips), 5)
}

// PadState left-pads a state code to 2 digits.
func PadState(fips string) string {
	return zfill(strings.TrimSpace(fips), 2)
}

// PadCountyPart left-pads the county portion of a code to 3 digits.
func PadCountyPart(fips string) string {
	return zfill(strings.TrimSpace(fips), 3)
}

// SplitFIPS breaks a 5-digit combined code into its state and county parts.
func SplitFIPS(fips string) (state, county string) {
	padded := PadFIPS(fips)
	if len(padded) < 5 {
		return padded, ""
	}
	return padded[:2], padded[2:]
}

// ValidFIPS reports whether a combined code is five digits.
func ValidFIPS(fips string) bool {
	if len(fips) != 5 {
		return false
	}
	for _, ch := range fips {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

func zfill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
