// Package table keeps text tables consistent with their column grid: every
// structural edit recomputes the grid and adjusts the cells of every row,
// respecting cells that span several grid columns.
package table

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"

	"github.com/alimasry/go-docops/attrs"
	"github.com/alimasry/go-docops/tree"
)

// SpanKey is the cell attribute holding the number of grid columns a cell covers.
const SpanKey = "gridSpan"

// Mode selects on which side of the reference column a new column goes.
type Mode string

const (
	Before Mode = "before"
	Behind Mode = "behind"
)

// ErrBadGrid reports a grid change the table cannot take.
var ErrBadGrid = errors.New("invalid table grid")

// Span returns the number of grid columns cell covers.
func Span(cell *tree.Component) int {
	if n, ok := attrs.Int(cell.Inline[attrs.Cell][SpanKey]); ok && n > 1 {
		return n
	}
	return 1
}

// SetSpan changes the column span of a cell.
func SetSpan(t *tree.Tree, cell tree.ID, n int) {
	c := t.Mut(cell)
	if c.Inline == nil {
		c.Inline = attrs.Map{}
	}
	if n <= 1 {
		c.Inline.Delete(attrs.Cell, SpanKey)
		return
	}
	c.Inline.Set(attrs.Cell, SpanKey, float64(n))
}

// Width returns the number of grid columns a row's cells cover.
func Width(t *tree.Tree, row tree.ID) int {
	n := 0
	for _, c := range t.Get(row).Children {
		n += Span(t.Get(c))
	}
	return n
}

// Rows returns the rows of a table.
func Rows(t *tree.Tree, table tree.ID) []tree.ID {
	return slices.Clone(t.Get(table).Children)
}

// NewCell creates a detached cell holding one empty paragraph. Attributes and
// paragraph style are copied from ref, when given, but never its content.
func NewCell(t *tree.Tree, ref *tree.Component) tree.ID {
	cell := t.New(tree.KindCell)
	para := t.New(tree.KindParagraph)
	if ref != nil {
		cell.StyleID = ref.StyleID
		cell.Inline = ref.Inline.Clone()
		if len(ref.Children) > 0 {
			if first := t.Get(ref.Children[0]); first.Kind.IsParagraph() {
				para.StyleID = first.StyleID
			}
		}
	}
	t.Append(cell.ID, para.ID)
	return cell.ID
}

func newPlainCell(t *tree.Tree, ref *tree.Component) tree.ID {
	id := NewCell(t, ref)
	SetSpan(t, id, 1)
	return id
}

// cellAt returns the index of the cell covering grid column col and the first
// column that cell covers; -1 when the row is shorter.
func cellAt(t *tree.Tree, row tree.ID, col int) (index, start int) {
	pos := 0
	for i, c := range t.Get(row).Children {
		span := Span(t.Get(c))
		if col < pos+span {
			return i, pos
		}
		pos += span
	}
	return -1, pos
}

// InsertColumn adds one grid column. gridPos names the reference column; the
// new column goes before or behind it. grid, when given, is the complete new
// grid; otherwise the reference column width is repeated. A cell spanning
// across the insertion point grows instead of being split.
func InsertColumn(t *tree.Tree, table tree.ID, gridPos int, grid []float64, mode Mode) error {
	tb := t.Get(table)
	old := len(tb.Grid)
	if gridPos < 0 || (old > 0 && gridPos >= old) || (old == 0 && gridPos != 0) {
		return fmt.Errorf("%w: grid position %d of %d columns", ErrBadGrid, gridPos, old)
	}
	if mode == "" {
		mode = Before
	}
	if mode != Before && mode != Behind {
		return fmt.Errorf("%w: insert mode %q", ErrBadGrid, mode)
	}
	if grid != nil && len(grid) != old+1 {
		return fmt.Errorf("%w: new grid has %d columns, want %d", ErrBadGrid, len(grid), old+1)
	}
	newCol := gridPos
	if mode == Behind && old > 0 {
		newCol = gridPos + 1
	}

	// short rows are completed first so every row takes the new column
	for _, row := range tb.Children {
		if len(t.Get(row).Children) == 0 {
			continue
		}
		for w := Width(t, row); w < old; w++ {
			t.Append(row, newPlainCell(t, lastCell(t, row)))
		}
	}
	for _, row := range tb.Children {
		idx, start := cellAt(t, row, gridPos)
		if idx < 0 {
			if Width(t, row) == newCol {
				t.Append(row, newPlainCell(t, lastCell(t, row)))
			}
			continue
		}
		cell := t.Get(t.Get(row).Children[idx])
		end := start + Span(cell) - 1
		switch {
		case mode == Before && start == gridPos:
			t.Insert(row, idx, newPlainCell(t, cell))
		case mode == Behind && end == gridPos:
			t.Insert(row, idx+1, newPlainCell(t, cell))
		default:
			SetSpan(t, cell.ID, Span(cell)+1)
		}
	}

	if grid == nil {
		width := 1000.0
		if old > 0 {
			width = tb.Grid[gridPos]
		}
		grid = slices.Insert(slices.Clone(tb.Grid), newCol, width)
	}
	t.Mut(table).Grid = slices.Clone(grid)
	return CheckBounded(t, table)
}

func lastCell(t *tree.Tree, row tree.ID) *tree.Component {
	kids := t.Get(row).Children
	if len(kids) == 0 {
		return nil
	}
	return t.Get(kids[len(kids)-1])
}

// DeleteColumns removes grid columns start..end inclusive. Cells entirely
// inside the range are deleted, spanning cells shrink by the overlap, rows left
// without cells are deleted. It reports whether the table lost its last column.
func DeleteColumns(t *tree.Tree, table tree.ID, start, end int) (empty bool, err error) {
	tb := t.Get(table)
	if start < 0 || end < start || end >= len(tb.Grid) {
		return false, fmt.Errorf("%w: delete columns %d..%d of %d", ErrBadGrid, start, end, len(tb.Grid))
	}
	for _, row := range slices.Clone(tb.Children) {
		pos := 0
		for _, cid := range slices.Clone(t.Get(row).Children) {
			cell := t.Get(cid)
			span := Span(cell)
			first, last := pos, pos+span-1
			pos += span
			overlap := min(last, end) - max(first, start) + 1
			switch {
			case overlap <= 0:
			case overlap >= span:
				t.Delete(cid)
			default:
				SetSpan(t, cid, span-overlap)
			}
		}
		if len(t.Get(row).Children) == 0 {
			t.Delete(row)
		}
	}
	t.Mut(table).Grid = slices.Delete(slices.Clone(tb.Grid), start, end+1)
	if len(t.Get(table).Grid) == 0 {
		return true, nil
	}
	return false, CheckBounded(t, table)
}

// InsertRows inserts count rows before row index at. With ref the rows copy
// the reference row's attributes and cell layout, never its text; otherwise,
// with defaultCells, they get one plain cell per grid column.
func InsertRows(t *tree.Tree, table tree.ID, at, count int, ref *int, defaultCells bool) ([]tree.ID, error) {
	tb := t.Get(table)
	if at < 0 || at > len(tb.Children) {
		return nil, fmt.Errorf("%w: row %d of %d", tree.ErrOutOfRange, at, len(tb.Children))
	}
	var refRow *tree.Component
	if ref != nil {
		if *ref < 0 || *ref >= len(tb.Children) {
			return nil, fmt.Errorf("%w: reference row %d of %d", tree.ErrOutOfRange, *ref, len(tb.Children))
		}
		refRow = t.Get(tb.Children[*ref])
	}
	count = max(count, 1)
	rows := make([]tree.ID, 0, count)
	for i := range count {
		row := t.New(tree.KindRow)
		switch {
		case refRow != nil:
			row.StyleID = refRow.StyleID
			row.Inline = refRow.Inline.Clone()
			for _, cid := range refRow.Children {
				t.Append(row.ID, NewCell(t, t.Get(cid)))
			}
		case defaultCells:
			for range len(tb.Grid) {
				t.Append(row.ID, NewCell(t, nil))
			}
		}
		t.Insert(table, at+i, row.ID)
		rows = append(rows, row.ID)
	}
	return rows, CheckBounded(t, table)
}

// InsertCells inserts count plain cells before cell index at of a row.
func InsertCells(t *tree.Tree, row tree.ID, at, count int) ([]tree.ID, error) {
	r := t.Get(row)
	if at < 0 || at > len(r.Children) {
		return nil, fmt.Errorf("%w: cell %d of %d", tree.ErrOutOfRange, at, len(r.Children))
	}
	count = max(count, 1)
	cells := make([]tree.ID, 0, count)
	for i := range count {
		id := NewCell(t, nil)
		t.Insert(row, at+i, id)
		cells = append(cells, id)
	}
	return cells, CheckBounded(t, r.Parent)
}

// DeleteCells removes cells from..to inclusive of a row. The grid columns they
// covered go to the cell before them, or after them at the start of the row, so
// the row keeps covering the grid. A row left without cells is deleted.
func DeleteCells(t *tree.Tree, row tree.ID, from, to int) error {
	kids := t.Get(row).Children
	if from < 0 || to < from || to >= len(kids) {
		return fmt.Errorf("%w: delete cells %d..%d of %d", tree.ErrOutOfRange, from, to, len(kids))
	}
	doomed := slices.Clone(kids[from : to+1])
	var heir tree.ID
	switch {
	case from > 0:
		heir = kids[from-1]
	case to+1 < len(kids):
		heir = kids[to+1]
	}
	freed := 0
	for _, id := range doomed {
		freed += Span(t.Get(id))
		t.Delete(id)
	}
	if heir == 0 {
		t.Delete(row)
		return nil
	}
	SetSpan(t, heir, Span(t.Get(heir))+freed)
	return nil
}

// DeleteRows removes rows from..to inclusive.
func DeleteRows(t *tree.Tree, table tree.ID, from, to int) error {
	rows := t.Get(table).Children
	if from < 0 || to < from || to >= len(rows) {
		return fmt.Errorf("%w: delete rows %d..%d of %d", tree.ErrOutOfRange, from, to, len(rows))
	}
	for _, row := range slices.Clone(rows[from : to+1]) {
		t.Delete(row)
	}
	return nil
}

// SetGrid replaces the column widths; the column count may only change while
// the table has no cells.
func SetGrid(t *tree.Tree, table tree.ID, grid []float64) error {
	tb := t.Get(table)
	hasCells := slices.ContainsFunc(tb.Children, func(r tree.ID) bool { return len(t.Get(r).Children) > 0 })
	if hasCells && len(grid) != len(tb.Grid) {
		return tree.Structuref(tb, "grid resize from %d to %d columns without column operation", len(tb.Grid), len(grid))
	}
	t.Mut(table).Grid = slices.Clone(grid)
	return nil
}

// CheckBounded verifies no row of table covers more columns than its grid.
// Rows may be shorter while their cells are being inserted one by one.
func CheckBounded(t *tree.Tree, table tree.ID) error {
	tb := t.Get(table)
	var errs error
	for _, row := range tb.Children {
		if w := Width(t, row); w > len(tb.Grid) {
			errs = multierr.Append(errs, tree.Structuref(t.Get(row), "row covers %d columns, grid has %d", w, len(tb.Grid)))
		}
	}
	return errs
}

// Check verifies every row of table covers exactly its grid.
func Check(t *tree.Tree, table tree.ID) error {
	tb := t.Get(table)
	var errs error
	for _, row := range tb.Children {
		if w := Width(t, row); w != len(tb.Grid) {
			errs = multierr.Append(errs, tree.Structuref(t.Get(row), "row covers %d columns, grid has %d", w, len(tb.Grid)))
		}
	}
	return errs
}

// GridValue converts a JSON grid attribute into column widths.
func GridValue(v any) ([]float64, error) {
	raw, ok := v.([]any)
	if !ok {
		if g, ok := v.([]float64); ok {
			return slices.Clone(g), nil
		}
		return nil, fmt.Errorf("%w: tableGrid must be an array", ErrBadGrid)
	}
	out := make([]float64, len(raw))
	for i, e := range raw {
		f, ok := attrs.Float(e)
		if !ok {
			return nil, fmt.Errorf("%w: tableGrid[%d] is not a number", ErrBadGrid, i)
		}
		out[i] = f
	}
	return out, nil
}

// GridJSON converts column widths back into the attribute form.
func GridJSON(grid []float64) []any {
	out := make([]any, len(grid))
	for i, w := range grid {
		out[i] = w
	}
	return out
}
