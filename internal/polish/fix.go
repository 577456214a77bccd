// Package polish post-processes the raw coefficient tables into
// publication form. It never re-estimates anything: every number is taken
// as given from the stage-two output, reformatted, and recombined into
// composite tables.
package polish

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"bankpanel/internal/errors"
)

// interactionLabel is the pretty row label the fix pass installs; the
// composite builders locate the coefficient row by it.
const interactionLabel = `$\Delta FF_t \times$ Bank HHI`

// rawInteractionLabel is the row label as stage two writes it
const rawInteractionLabel = `l1\_herfdepcty $\times$ dFF`

// replacement is an ordered search/replace pair. Plain slices keep the
// substitution order deterministic.
type replacement struct {
	old string
	new string
}

var headerReplacementsA = []replacement{
	{`d\_total\_deposits`, `\makecell[c]{$\Delta$Total\\deposits}`},
	{`d\_deposit\_spread`, `\makecell[c]{$\Delta$Deposit\\spread}`},
	{`d\_savings\_deposits`, `\makecell[c]{$\Delta$Savings\\deposits}`},
	{`d\_time\_deposits`, `\makecell[c]{$\Delta$Time\\deposits}`},
	{`d\_wholesale\_funding`, `\makecell[c]{$\Delta$Wholesale\\funding}`},
	{`d\_total\_liabilities`, `\makecell[c]{$\Delta$Total\\liabilities}`},
}

var headerReplacementsB = []replacement{
	{`d\_total\_assets`, `\makecell[c]{$\Delta$Total\\assets}`},
	{`d\_cash`, `\makecell[c]{$\Delta$Cash}`},
	{`d\_total\_securities`, `\makecell[c]{$\Delta$Securities}`},
	{`d\_total\_loans`, `\makecell[c]{$\Delta$Total\\loans}`},
	{`d\_re\_loans`, `\makecell[c]{$\Delta$RE\\loans}`},
	{`d\_ci\_loans`, `\makecell[c]{$\Delta$C\&I\\loans}`},
}

// fixedEffectLabels are the indicator row labels stage two emits; the fix
// pass drops these rows entirely.
var fixedEffectLabels = []string{
	"rssdid fixed effects",
	"rssdid-post2008 fixed effects",
	"dateq fixed effects",
}

var (
	tabularPattern = regexp.MustCompile(`\\begin\{tabular\}\{l(c+)\}`)
	decimalPattern = regexp.MustCompile(`-?\d+\.\d+`)
)

// headerReplacements returns the column relabeling for a panel letter
func headerReplacements(panel string) ([]replacement, error) {
	switch panel {
	case "A":
		return headerReplacementsA, nil
	case "B":
		return headerReplacementsB, nil
	default:
		return nil, errors.NewUnknownTagError("panel", panel)
	}
}

// FixTable rewrites one raw table in place: drops the concentration level
// row with its standard-error row, the within-R² row, and the
// fixed-effect indicator rows; relabels headers and the interaction row;
// widens the tabular to full text width; and pads every decimal to three
// places.
func FixTable(path, panel string) error {
	mapping, err := headerReplacements(panel)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError(fmt.Sprintf("raw table %s", path))
		}
		return errors.NewStorageError(fmt.Sprintf("failed to read %s", path), err)
	}

	lines := strings.Split(string(raw), "\n")
	kept := make([]string, 0, len(lines))
	skipNext := false
	for _, line := range lines {
		if skipNext {
			skipNext = false
			continue
		}
		// Level-term row; the next line is its standard error.
		if strings.Contains(line, `l1\_herfdepcty`) && !strings.Contains(line, "dFF") {
			skipNext = true
			continue
		}
		if strings.Contains(line, "Within R$^2$") || strings.Contains(line, "Within Adjusted R") {
			continue
		}
		if containsAny(line, fixedEffectLabels) {
			continue
		}
		kept = append(kept, line)
	}

	text := strings.Join(kept, "\n")
	for _, r := range mapping {
		text = strings.ReplaceAll(text, r.old, r.new)
	}
	text = strings.ReplaceAll(text, rawInteractionLabel, interactionLabel)
	text = tabularPattern.ReplaceAllString(text,
		`\begin{tabular*}{\textwidth}{@{\extracolsep{\fill}}l$1@{}}`)
	text = strings.ReplaceAll(text, `\end{tabular}`, `\end{tabular*}`)
	text = decimalPattern.ReplaceAllStringFunc(text, padToThreeDecimals)

	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

func padToThreeDecimals(num string) string {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return num
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func containsAny(line string, labels []string) bool {
	for _, l := range labels {
		if strings.Contains(line, l) {
			return true
		}
	}
	return false
}
