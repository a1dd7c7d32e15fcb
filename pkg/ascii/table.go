package ascii

import (
	"strings"
)

// Table is a plain column-aligned table.
type Table struct {
	Headers []string
	Rows    [][]string
	// MaxWidth caps any single column; 0 means unlimited.
	MaxWidth int
}

// NewTable starts a table with headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// Add appends a row. Missing cells render empty; extra cells are dropped.
func (t *Table) Add(cells ...string) {
	row := make([]string, len(t.Headers))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

func (t *Table) widths() []int {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = StringWidth(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if w := StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	if t.MaxWidth > 0 {
		for i := range widths {
			widths[i] = min(widths[i], t.MaxWidth)
		}
	}
	return widths
}

// String renders the header, a rule, then every row. Cells are separated by
// two spaces and trailing blanks are trimmed.
func (t *Table) String() string {
	if len(t.Headers) == 0 {
		return ""
	}
	widths := t.widths()
	var sb strings.Builder
	line := func(cells []string) {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = Pad(Truncate(c, widths[i]), widths[i])
		}
		sb.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		sb.WriteByte('\n')
	}

	line(t.Headers)
	rules := make([]string, len(widths))
	for i, w := range widths {
		rules[i] = strings.Repeat("─", w)
	}
	line(rules)
	for _, row := range t.Rows {
		line(row)
	}
	return sb.String()
}
