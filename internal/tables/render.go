// Package tables renders raw coefficient tables in the LaTeX layout the
// polishing stage consumes. It knows nothing about estimation; callers
// hand it finished numbers.
package tables

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bankpanel/internal/errors"
)

// Coefficient is one estimate with its standard error and p-value
type Coefficient struct {
	Estimate float64
	SE       float64
	PValue   float64
}

// Model is one rendered column of a panel table
type Model struct {
	Header        string
	Concentration Coefficient
	Interaction   Coefficient
	Obs           int
	R2            float64
	WithinR2      float64
}

// FixedEffects indicates which factors a specification absorbs; each maps
// to a Yes/No indicator row
type FixedEffects struct {
	Bank     bool
	BankPost bool
	Quarter  bool
}

// Row labels for the two coefficient rows. The level label deliberately
// carries the raw variable name; the polisher relabels or drops it.
const (
	concentrationLabel = `l1\_herfdepcty`
	interactionLabel   = `l1\_herfdepcty $\times$ dFF`
)

// RenderPanel renders one panel table with a column per model
func RenderPanel(models []Model, fe FixedEffects) string {
	k := len(models)

	var b strings.Builder
	fmt.Fprintf(&b, "\\begin{tabular}{l%s}\n", strings.Repeat("c", k))
	b.WriteString("   \\toprule\n")

	headers := make([]string, k)
	numbers := make([]string, k)
	for i, m := range models {
		headers[i] = EscapeLatex(m.Header)
		numbers[i] = fmt.Sprintf("(%d)", i+1)
	}
	fmt.Fprintf(&b, "    & %s \\\\\n", strings.Join(headers, " & "))
	fmt.Fprintf(&b, "    & %s \\\\\n", strings.Join(numbers, " & "))
	b.WriteString("   \\midrule\n")

	writeCoefRow(&b, concentrationLabel, models, func(m Model) Coefficient { return m.Concentration })
	writeCoefRow(&b, interactionLabel, models, func(m Model) Coefficient { return m.Interaction })

	b.WriteString("   \\midrule\n")
	writeIndicatorRow(&b, "rssdid fixed effects", fe.Bank, k)
	writeIndicatorRow(&b, "rssdid-post2008 fixed effects", fe.BankPost, k)
	writeIndicatorRow(&b, "dateq fixed effects", fe.Quarter, k)

	b.WriteString("   \\midrule\n")
	cells := make([]string, k)
	for i, m := range models {
		cells[i] = FormatCount(m.Obs)
	}
	fmt.Fprintf(&b, "   Observations & %s \\\\\n", strings.Join(cells, " & "))
	for i, m := range models {
		cells[i] = fmt.Sprintf("%.3f", m.R2)
	}
	fmt.Fprintf(&b, "   R$^2$ & %s \\\\\n", strings.Join(cells, " & "))
	for i, m := range models {
		cells[i] = fmt.Sprintf("%.3f", m.WithinR2)
	}
	fmt.Fprintf(&b, "   Within R$^2$ & %s \\\\\n", strings.Join(cells, " & "))

	b.WriteString("   \\bottomrule\n")
	b.WriteString("\\end{tabular}\n")

	return b.String()
}

// WritePanel writes a rendered table, creating the directory if needed
func WritePanel(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("failed to create tables directory", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

func writeCoefRow(b *strings.Builder, label string, models []Model, pick func(Model) Coefficient) {
	coefs := make([]string, len(models))
	ses := make([]string, len(models))
	for i, m := range models {
		c := pick(m)
		coefs[i] = fmt.Sprintf("%.4f%s", c.Estimate, Stars(c.PValue))
		ses[i] = fmt.Sprintf("(%.4f)", c.SE)
	}
	fmt.Fprintf(b, "   %s & %s \\\\\n", label, strings.Join(coefs, " & "))
	fmt.Fprintf(b, "    & %s \\\\\n", strings.Join(ses, " & "))
}

func writeIndicatorRow(b *strings.Builder, label string, active bool, k int) {
	cell := "No"
	if active {
		cell = "Yes"
	}
	cells := make([]string, k)
	for i := range cells {
		cells[i] = cell
	}
	fmt.Fprintf(b, "   %s & %s \\\\\n", label, strings.Join(cells, " & "))
}

// Stars returns the significance marker for a two-sided p-value
func Stars(p float64) string {
	switch {
	case p < 0.01:
		return "***"
	case p < 0.05:
		return "**"
	case p < 0.1:
		return "*"
	default:
		return ""
	}
}

// EscapeLatex escapes the characters that occur in variable names
func EscapeLatex(s string) string {
	s = strings.ReplaceAll(s, "_", `\_`)
	return strings.ReplaceAll(s, "&", `\&`)
}

// FormatCount renders an observation count with thousands separators
func FormatCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return s + "," + strings.Join(parts, ",")
}
