package polish

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bankpanel/internal/config"
	"bankpanel/internal/errors"
)

// Composite row configurations. Tags must match the stage-two file naming;
// labels are what the reader sees.

var filterRows = []struct {
	Tag   string
	Label string
}{
	{"none", "None"},
	{"growth", "Growth"},
	{"winsor", "Winsor"},
	{"both", `\makecell{Growth+\\Winsor}`},
}

var sampleRows = []struct {
	Tag   string
	Label string
}{
	{"full", "Full sample"},
	{"pre2008", "Pre-2008"},
	{"top25", `Top 25\% assets`},
	{"top10", `Top 10\% assets`},
}

var feRows = []struct {
	Tag      string
	Bank     bool
	Quarter  bool
	BankPost bool
}{
	{"mainFE", true, true, true},
	{"noPost2008FE", true, true, false},
	{"noBankFE", false, true, true},
	{"noQuarterFE", true, false, true},
	{"onlyBankFE", true, false, false},
	{"quarterOnlyFE", false, true, false},
}

// The fixed-effect sweep runs on this combination only
const (
	feSample = "full"
	feFilter = "both"
)

// buildFilterComposite stacks the four filter treatments of one sample
// into a single table, one row per filter, with the interaction
// coefficient over its standard error and a trailing observation column.
func buildFilterComposite(paths *config.Paths, panel, sample string) error {
	sources := make([]*panelTable, len(filterRows))
	for i, f := range filterRows {
		t, err := parsePanelTable(paths.TablePath(panel, sample, f.Tag, ""))
		if err != nil {
			return err
		}
		sources[i] = t
	}

	head := sources[0]
	k := len(head.HeaderVars)
	nCols := k + 2

	var b strings.Builder
	writeCompositePreamble(&b, "l"+strings.Repeat("c", k)+"c")
	fmt.Fprintf(&b, "   Filter & %s & Obs.\\\\\n", strings.Join(head.HeaderVars, " & "))
	fmt.Fprintf(&b, "          & %s & \\\\\n", strings.Join(head.HeaderNums, " & "))
	writeInteractionBanner(&b, nCols)

	for i, f := range filterRows {
		fmt.Fprintf(&b, "   %s & %s & %s\\\\\n",
			f.Label, stackedCells(sources[i]), sources[i].ObsCell())
	}
	writeCompositeClosing(&b)

	name := fmt.Sprintf("t8_%s_%s_composite", panel, sample)
	return writeComposite(paths.CompositePath(name), b.String())
}

// buildFEComposite stacks the fixed-effect sweep of the full/both
// combination: three Y/blank indicator columns followed by one coefficient
// column per variable, one row per specification.
func buildFEComposite(paths *config.Paths, panel string) error {
	sources := make([]*panelTable, len(feRows))
	for i, fe := range feRows {
		t, err := parsePanelTable(paths.TablePath(panel, feSample, feFilter, fe.Tag))
		if err != nil {
			return err
		}
		sources[i] = t
	}

	head := sources[0]
	k := len(head.HeaderVars)
	nCols := k + 3

	var b strings.Builder
	writeCompositePreamble(&b, strings.Repeat("c", nCols))
	fmt.Fprintf(&b, "   %s & %s & %s & %s\\\\\n",
		`\makecell[c]{Bank\\f.e.}`,
		`\makecell[c]{Quarter\\f.e.}`,
		`\makecell[c]{Bank $\times$\\2008 f.e.}`,
		strings.Join(head.HeaderVars, " & "))
	fmt.Fprintf(&b, "           &               &                    & %s\\\\\n",
		strings.Join(head.HeaderNums, " & "))
	writeInteractionBanner(&b, nCols)

	for i, fe := range feRows {
		fmt.Fprintf(&b, "   %s & %s & %s & %s\\\\\n",
			indicator(fe.Bank), indicator(fe.Quarter), indicator(fe.BankPost),
			stackedCells(sources[i]))
	}
	writeCompositeClosing(&b)

	name := fmt.Sprintf("t8_%s_%s_%s_FEcomposite", panel, feSample, feFilter)
	return writeComposite(paths.CompositePath(name), b.String())
}

// buildRobustnessComposite stacks the four samples, all with the combined
// filter treatment, one row per sample.
func buildRobustnessComposite(paths *config.Paths, panel string) error {
	sources := make([]*panelTable, len(sampleRows))
	for i, s := range sampleRows {
		t, err := parsePanelTable(paths.TablePath(panel, s.Tag, feFilter, ""))
		if err != nil {
			return err
		}
		sources[i] = t
	}

	head := sources[0]
	k := len(head.HeaderVars)
	nCols := k + 2

	var b strings.Builder
	writeCompositePreamble(&b, "l"+strings.Repeat("c", k)+"c")
	fmt.Fprintf(&b, "   Sample & %s & Obs.\\\\\n", strings.Join(head.HeaderVars, " & "))
	fmt.Fprintf(&b, "          & %s & \\\\\n", strings.Join(head.HeaderNums, " & "))
	writeInteractionBanner(&b, nCols)

	for i, s := range sampleRows {
		fmt.Fprintf(&b, "   %s & %s & %s\\\\\n",
			s.Label, stackedCells(sources[i]), sources[i].ObsCell())
	}
	writeCompositeClosing(&b)

	name := fmt.Sprintf("t8_%s_robustness_composite", panel)
	return writeComposite(paths.CompositePath(name), b.String())
}

func writeCompositePreamble(b *strings.Builder, colSpec string) {
	b.WriteString("\\begingroup\n")
	b.WriteString("\\centering\n")
	fmt.Fprintf(b, "\\begin{tabular*}{\\textwidth}{@{\\extracolsep{\\fill}}%s@{}}\n", colSpec)
	b.WriteString("   \\toprule\n")
}

func writeInteractionBanner(b *strings.Builder, nCols int) {
	b.WriteString("   \\midrule\n")
	fmt.Fprintf(b, "   \\multicolumn{%d}{c}{%s}\\\\\n", nCols, interactionLabel)
	b.WriteString("   \\midrule\n")
}

func writeCompositeClosing(b *strings.Builder) {
	b.WriteString("   \\bottomrule\n")
	b.WriteString("\\end{tabular*}\n")
	b.WriteString("\\par\\endgroup\n")
}

// stackedCells renders coefficient-over-SE makecell cells for one source
func stackedCells(t *panelTable) string {
	n := len(t.Coefs)
	if len(t.SEs) < n {
		n = len(t.SEs)
	}
	cells := make([]string, n)
	for i := 0; i < n; i++ {
		cells[i] = fmt.Sprintf(`\makecell{%s \\ %s}`, t.Coefs[i], t.SEs[i])
	}
	return strings.Join(cells, " & ")
}

func indicator(active bool) string {
	if active {
		return "Y"
	}
	return ""
}

func writeComposite(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("failed to create final tables directory", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}
