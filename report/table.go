// Package report renders sweep results as fixed-width text tables and
// writes the sweep log.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cs217/hlsweep/extract"
	"github.com/cs217/hlsweep/util"
)

// DefaultSeparator separates the cells of a table line.
const DefaultSeparator = " | "

// Row is one line of results: field name to rendered value.
type Row map[string]string

// Get returns the value of field, or extract.NA.
func (r Row) Get(field string) string {
	if v, ok := r[field]; ok && v != "" {
		return v
	}
	return extract.NA
}

// Column is a fixed-width table column.
type Column struct {
	Header    string `yaml:"header"`
	Field     string `yaml:"field"`
	Width     int    `yaml:"width"`
	Precision *int   `yaml:"precision"`
	Align     string `yaml:"align"`
}

// Format renders value in the column. Numeric values are printed with the
// column precision, anything else (e.g. N/A) verbatim. The result is padded
// to the column width but never truncated.
func (c Column) Format(value string) string {
	if c.Precision != nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			value = strconv.FormatFloat(f, 'f', *c.Precision, 64)
		}
	}
	if c.Align == "right" {
		return padLeft(value, c.Width)
	}
	return padRight(value, c.Width)
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-len(s)-left)
}

// Pivot turns the values of RowField into table rows and the values of
// GroupField into blocks of columns.
type Pivot struct {
	RowField   string   `yaml:"row"`
	RowHeader  string   `yaml:"row_header"`
	RowWidth   int      `yaml:"row_width"`
	GroupField string   `yaml:"group"`
	Groups     []string `yaml:"groups"`
	Rows       []string `yaml:"rows"`
	Sort       bool     `yaml:"sort"`
	Skip       []string `yaml:"skip"`
}

// Table is the layout of a summary table.
type Table struct {
	Title     string   `yaml:"title"`
	Rule      int      `yaml:"rule"`
	Separator string   `yaml:"separator"`
	Columns   []Column `yaml:"columns"`
	Pivot     *Pivot   `yaml:"pivot"`
}

func (t *Table) separator() string {
	if t.Separator == "" {
		return DefaultSeparator
	}
	return t.Separator
}

func (t *Table) banner(b *strings.Builder) {
	rule := strings.Repeat("=", t.Rule)
	b.WriteString("\n\n" + rule + "\n")
	b.WriteString(center(t.Title, t.Rule) + "\n")
	b.WriteString(rule + "\n")
}

// Render formats rows as the table.
func (t *Table) Render(rows []Row) string {
	var b strings.Builder
	t.banner(&b)
	if t.Pivot != nil {
		t.renderPivot(&b, rows)
	} else {
		t.renderFlat(&b, rows)
	}
	b.WriteString(strings.Repeat("=", t.Rule) + "\n")
	return b.String()
}

func (t *Table) renderFlat(b *strings.Builder, rows []Row) {
	header := strings.Join(util.MappedSlice(t.Columns, func(c Column) string {
		return padRight(c.Header, c.Width)
	}), t.separator())
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("-", len(header)) + "\n")
	for _, row := range rows {
		cells := util.MappedSlice(t.Columns, func(c Column) string { return c.Format(row.Get(c.Field)) })
		b.WriteString(strings.Join(cells, t.separator()) + "\n")
	}
}

func (t *Table) pivotRows(rows []Row) []string {
	p := t.Pivot
	names := util.NewOrderedSet(p.Rows...)
	if len(p.Rows) == 0 {
		for _, row := range rows {
			names.Add(row.Get(p.RowField))
		}
	}
	skip := util.NewOrderedSet(p.Skip...)
	keep := func(name string) bool { return !skip.Contains(name) }
	if p.Sort {
		return util.FilteredSlice(names.Sorted(), keep)
	}
	return util.FilteredSlice(names.Values(), keep)
}

func (t *Table) pivotGroups(rows []Row) []string {
	if len(t.Pivot.Groups) > 0 {
		return t.Pivot.Groups
	}
	groups := util.NewOrderedSet[string]()
	for _, row := range rows {
		groups.Add(row.Get(t.Pivot.GroupField))
	}
	return groups.Values()
}

func (t *Table) renderPivot(b *strings.Builder, rows []Row) {
	p := t.Pivot
	sep := t.separator()
	groups := t.pivotGroups(rows)

	blockWidth := 0
	for i, c := range t.Columns {
		if i > 0 {
			blockWidth += len(sep)
		}
		blockWidth += c.Width
	}

	line1 := padRight(p.RowHeader, p.RowWidth)
	line2 := padRight("", p.RowWidth)
	for _, group := range groups {
		line1 += sep + center(group, blockWidth)
		for _, c := range t.Columns {
			line2 += sep + padRight(c.Header, c.Width)
		}
	}
	b.WriteString(line1 + "\n")
	b.WriteString(line2 + "\n")
	b.WriteString(strings.Repeat("-", len(line2)) + "\n")

	cells := map[[2]string]Row{}
	for _, row := range rows {
		cells[[2]string{row.Get(p.RowField), row.Get(p.GroupField)}] = row
	}
	for _, name := range t.pivotRows(rows) {
		line := padRight(name, p.RowWidth)
		for _, group := range groups {
			row := cells[[2]string{name, group}]
			for _, c := range t.Columns {
				line += sep + c.Format(row.Get(c.Field))
			}
		}
		b.WriteString(line + "\n")
	}
}

// Verdict is the final line of a sweep.
func Verdict(errors int) string {
	if errors == 0 {
		return "Test Passed"
	}
	return fmt.Sprintf("Test Failed with %d errors", errors)
}
