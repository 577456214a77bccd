package polish

import (
	"fmt"
	"os"
	"strings"

	"bankpanel/internal/errors"
)

// panelTable holds the pieces of a polished panel table the composite
// builders need: column headers, the interaction coefficient row, its
// standard errors, and the observation counts.
type panelTable struct {
	HeaderVars []string
	HeaderNums []string
	Coefs      []string
	SEs        []string
	Obs        []string
}

// parsePanelTable extracts the composite inputs from one polished table.
// A missing file is fatal: the composite cannot be built without every
// source table.
func parsePanelTable(path string) (*panelTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("source table %s", path))
		}
		return nil, errors.NewStorageError(fmt.Sprintf("failed to read %s", path), err)
	}
	lines := strings.Split(string(raw), "\n")

	topIdx := indexContaining(lines, 0, `\toprule`)
	if topIdx < 0 {
		return nil, errors.NewParsingError(fmt.Sprintf("no \\toprule in %s", path), nil)
	}
	midIdx := indexContaining(lines, topIdx+1, `\midrule`)
	if midIdx < 0 || midIdx < topIdx+3 {
		return nil, errors.NewParsingError(fmt.Sprintf("malformed header block in %s", path), nil)
	}

	t := &panelTable{
		HeaderVars: extractRowValues(lines[topIdx+1], true),
		HeaderNums: extractRowValues(lines[topIdx+2], true),
	}

	intIdx := indexContaining(lines, 0, interactionLabel)
	if intIdx < 0 {
		// fall back to the raw label in case the fix pass was skipped
		for i, l := range lines {
			if strings.Contains(l, `l1\_herfdepcty`) && strings.Contains(l, "dFF") {
				intIdx = i
				break
			}
		}
	}
	if intIdx < 0 {
		return nil, errors.NewParsingError(fmt.Sprintf("no interaction row in %s", path), nil)
	}
	t.Coefs = extractRowValues(lines[intIdx], true)

	seIdx := -1
	for j := intIdx + 1; j < len(lines); j++ {
		if strings.Contains(lines[j], "&") {
			seIdx = j
			break
		}
	}
	if seIdx < 0 {
		return nil, errors.NewParsingError(fmt.Sprintf("no standard-error row in %s", path), nil)
	}
	t.SEs = extractRowValues(lines[seIdx], true)

	obsIdx := indexContaining(lines, 0, "Observations")
	if obsIdx < 0 {
		return nil, errors.NewParsingError(fmt.Sprintf("no observations row in %s", path), nil)
	}
	t.Obs = extractRowValues(lines[obsIdx], true)

	return t, nil
}

// ObsCell returns the first non-empty observation count. Counts are
// identical across columns within a table.
func (t *panelTable) ObsCell() string {
	for _, o := range t.Obs {
		if o != "" {
			return o
		}
	}
	return ""
}

func indexContaining(lines []string, from int, needle string) int {
	for i := from; i < len(lines); i++ {
		if strings.Contains(lines[i], needle) {
			return i
		}
	}
	return -1
}

// extractRowValues splits a LaTeX table row into cell contents. '\&' is
// shielded first so only real column separators split the row.
func extractRowValues(line string, skipFirst bool) []string {
	const placeholder = "\x00AMP\x00"
	tmp := strings.ReplaceAll(line, `\&`, placeholder)

	parts := strings.Split(tmp, "&")
	if skipFirst && len(parts) > 0 {
		parts = parts[1:]
	}

	vals := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimRight(p, " \t")
		p = strings.TrimSuffix(p, `\\`)
		p = strings.ReplaceAll(p, placeholder, `\&`)
		p = strings.TrimSpace(p)
		if p != "" {
			vals = append(vals, p)
		}
	}
	return vals
}
