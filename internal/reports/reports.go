// Package reports renders the generated markdown documents and owns the
// number formatting shared by the QA suites. Every report in the repo is
// written through the same markdown builder so tables and headings stay
// uniform across reconciliation summaries, snapshots, and QA output.
package reports

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	md "github.com/nao1215/markdown"

	"github.com/rdmdatalab/econbench/pkg/constants"
	"github.com/rdmdatalab/econbench/pkg/errors"
)

// Dash is the table placeholder for an absent value.
const Dash = "—"

// Write renders a markdown document to path, creating the directory first.
// The build callback receives the open document and adds content; Write
// handles file lifecycle and the final Build.
func Write(path string, build func(doc *md.Markdown)) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(path), err)
	}
	f, err := os.Create(path) //nolint:gosec // Report paths are operator-controlled
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	defer func() { _ = f.Close() }()

	doc := md.NewMarkdown(f)
	build(doc)
	if err := doc.Build(); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return f.Close()
}

// FormatInt renders a nullable count with thousands separators.
func FormatInt(v *float64) string {
	if v == nil {
		return Dash
	}
	return Comma(int64(math.Round(*v)))
}

// FormatCount renders a plain count with thousands separators.
func FormatCount(n int64) string {
	return Comma(n)
}

// FormatUSD renders a nullable dollar amount with a $ sign and separators.
// Amounts are rounded to whole dollars; national totals dwarf the cents.
func FormatUSD(v *float64) string {
	if v == nil {
		return Dash
	}
	n := int64(math.Round(*v))
	if n < 0 {
		return "-$" + Comma(-n)
	}
	return "$" + Comma(n)
}

// FormatPct renders a nullable ratio as a percentage with two decimals.
func FormatPct(v *float64) string {
	if v == nil {
		return Dash
	}
	return strconv.FormatFloat(*v*100, 'f', 2, 64) + "%"
}

// FormatFloat renders a nullable float with the given decimal places.
func FormatFloat(v *float64, places int) string {
	if v == nil {
		return Dash
	}
	return strconv.FormatFloat(*v, 'f', places, 64)
}

// Comma inserts thousands separators into an integer.
func Comma(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := ""
	if strings.HasPrefix(s, "-") {
		neg, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return neg + s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return neg + b.String()
}
