package econ

import "strings"

// ValidSectors is the canonical NAICS2 sector allowlist used downstream.
// Manufacturing, retail, and transportation publish as combined ranges.
var ValidSectors = map[string]bool{
	"11":    true,
	"21":    true,
	"22":    true,
	"23":    true,
	"31-33": true,
	"42":    true,
	"44-45": true,
	"48-49": true,
	"51":    true,
	"52":    true,
	"53":    true,
	"54":    true,
	"55":    true,
	"56":    true,
	"61":    true,
	"62":    true,
	"71":    true,
	"72":    true,
	"81":    true,
	"92":    true,
}

// FactSectors lists the plain two-digit codes accepted in the fact table,
// where combined ranges are stored as their member codes.
var FactSectors = map[string]bool{
	"11": true,
	"21": true,
	"22": true,
	"23": true,
	"31": true,
	"32": true,
	"33": true,
	"42": true,
	"44": true,
	"45": true,
	"48": true,
	"49": true,
	"51": true,
	"52": true,
	"53": true,
	"54": true,
	"55": true,
	"56": true,
	"61": true,
	"62": true,
	"71": true,
	"72": true,
	"81": true,
	"92": true,
}

// PadSector zero-pads a plain sector code to two digits. Ranged codes
// pass through untouched.
func PadSector(code string) string {
	code = strings.TrimSpace(code)
	if strings.Contains(code, "-") {
		return code
	}
	return zfill(code, 2)
}

// DeriveSector maps a raw NAICS code to its canonical sector label. Codes
// whose leading digits fall outside the allowlist derive to "", so surprise
// codes get dropped during prep instead of leaking into the warehouse.
func DeriveSector(code string) string {
	var digits strings.Builder
	for _, ch := range strings.TrimSpace(code) {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	cleaned := digits.String()
	if len(cleaned) < 2 {
		return ""
	}
	base := cleaned[:2]
	switch base {
	case "31", "32", "33":
		return "31-33"
	case "44", "45":
		return "44-45"
	case "48", "49":
		return "48-49"
	}
	if ValidSectors[base] {
		return base
	}
	return ""
}

// NormalizeSector coerces a sector label from any side of a comparison into
// the canonical form, without an allowlist. Unlike DeriveSector it accepts
// pre-combined labels like "44-45" as well as raw codes.
func NormalizeSector(code string) string {
	var b strings.Builder
	for _, ch := range strings.TrimSpace(code) {
		if (ch >= '0' && ch <= '9') || ch == '-' {
			b.WriteRune(ch)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return ""
	}
	if strings.HasPrefix(cleaned, "31") || strings.HasPrefix(cleaned, "32") || strings.HasPrefix(cleaned, "33") {
		return "31-33"
	}
	if strings.HasPrefix(cleaned, "44") || strings.HasPrefix(cleaned, "45") {
		return "44-45"
	}
	if strings.HasPrefix(cleaned, "48") || strings.HasPrefix(cleaned, "49") {
		return "48-49"
	}
	var digits strings.Builder
	for _, ch := range cleaned {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	d := digits.String()
	if len(d) < 2 {
		return ""
	}
	return d[:2]
}
