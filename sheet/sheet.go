// Package sheet addresses the rows, cells and columns of spreadsheet sheets.
// Sheets store runs of equal rows, cells and columns as one component with a
// repeat count; edits split those runs at the edges of the range they touch so
// the range is covered by whole components, never expanding the inside of a run.
package sheet

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/alimasry/go-docops/attrs"
	"github.com/alimasry/go-docops/tree"
)

// ErrLimit reports an address beyond the sheet size.
var ErrLimit = errors.New("address beyond sheet limits")

// Limits bounds the size of every sheet.
type Limits struct {
	Rows int
	Cols int
}

// DefaultLimits matches the largest sheets office suites write.
var DefaultLimits = Limits{Rows: 1048576, Cols: 16384}

// Range is an inclusive rectangle of cells.
type Range struct {
	Col0, Row0, Col1, Row1 int
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]..[%d,%d]", r.Col0, r.Row0, r.Col1, r.Row1)
}

// Check validates r against the limits.
func (l Limits) Check(r Range) error {
	if r.Col0 < 0 || r.Row0 < 0 || r.Col1 < r.Col0 || r.Row1 < r.Row0 {
		return fmt.Errorf("%w: malformed range %s", ErrLimit, r)
	}
	if r.Col1 >= l.Cols || r.Row1 >= l.Rows {
		return fmt.Errorf("%w: range %s, limits %dx%d", ErrLimit, r, l.Cols, l.Rows)
	}
	return nil
}

// Count returns the total of repeat counts of the components.
func Count(t *tree.Tree, ids []tree.ID) int {
	n := 0
	for _, id := range ids {
		n += t.Get(id).Count()
	}
	return n
}

func rows(t *tree.Tree, sheet tree.ID) []tree.ID { return t.Children(sheet) }

// ensure appends one empty run so the children of parent cover n positions.
func ensure(t *tree.Tree, parent tree.ID, kids []tree.ID, kind tree.Kind, n int) {
	if have := Count(t, kids); have < n {
		c := t.New(kind)
		c.Repeat = n - have
		t.Append(parent, c.ID)
	}
}

// splitAt makes position pos start a component within kids of parent.
func splitAt(t *tree.Tree, parent tree.ID, kids []tree.ID, pos int) {
	start := 0
	for _, id := range kids {
		n := t.Get(id).Count()
		if pos > start && pos < start+n {
			cp, err := t.Clone(id)
			if err != nil {
				// sheet rows and cells never hold foreign content
				panic(err)
			}
			t.Mut(id).Repeat = pos - start
			t.Mut(cp).Repeat = start + n - pos
			t.Insert(parent, t.IndexOf(id)+1, cp)
			return
		}
		start += n
	}
}

// between returns the components of kids covering positions from..to, which
// must start and end on component boundaries.
func between(t *tree.Tree, kids []tree.ID, from, to int) []tree.ID {
	var out []tree.ID
	start := 0
	for _, id := range kids {
		n := t.Get(id).Count()
		if start >= from && start+n-1 <= to {
			out = append(out, id)
		}
		start += n
	}
	return out
}

// Rows returns whole row components covering rows from..to, creating and
// splitting rows as needed.
func Rows(t *tree.Tree, sheet tree.ID, from, to int) []tree.ID {
	ensure(t, sheet, rows(t, sheet), tree.KindRow, to+1)
	splitAt(t, sheet, rows(t, sheet), from)
	splitAt(t, sheet, rows(t, sheet), to+1)
	return between(t, rows(t, sheet), from, to)
}

// Cells returns whole cell components of a row covering columns from..to.
func Cells(t *tree.Tree, row tree.ID, from, to int) []tree.ID {
	ensure(t, row, t.Get(row).Children, tree.KindCell, to+1)
	splitAt(t, row, t.Get(row).Children, from)
	splitAt(t, row, t.Get(row).Children, to+1)
	return between(t, t.Get(row).Children, from, to)
}

// Each calls fn for every cell component covering r.
func Each(t *tree.Tree, sheet tree.ID, r Range, fn func(row, cell tree.ID) error) error {
	for _, row := range Rows(t, sheet, r.Row0, r.Row1) {
		for _, cell := range Cells(t, row, r.Col0, r.Col1) {
			if err := fn(row, cell); err != nil {
				return err
			}
		}
	}
	return nil
}

// Columns returns the indices of whole column descriptors covering from..to.
func Columns(t *tree.Tree, sheet tree.ID, from, to int) []int {
	s := t.Mut(sheet)
	have := 0
	for _, c := range s.Columns {
		have += max(c.Repeat, 1)
	}
	if have <= to {
		s.Columns = append(s.Columns, tree.Column{Repeat: to + 1 - have})
	}
	s.Columns = splitColumns(s.Columns, from)
	s.Columns = splitColumns(s.Columns, to+1)
	var out []int
	start := 0
	for i, c := range s.Columns {
		n := max(c.Repeat, 1)
		if start >= from && start+n-1 <= to {
			out = append(out, i)
		}
		start += n
	}
	return out
}

func splitColumns(cols []tree.Column, pos int) []tree.Column {
	start := 0
	for i, c := range cols {
		n := max(c.Repeat, 1)
		if pos > start && pos < start+n {
			head, tail := c, c
			head.Repeat = pos - start
			tail.Repeat = start + n - pos
			tail.Attrs = c.Attrs.Clone()
			cols[i] = head
			return slices.Insert(cols, i+1, tail)
		}
		start += n
	}
	return cols
}

// InsertRows inserts count empty rows before row at, dropping rows pushed past
// the limit.
func InsertRows(t *tree.Tree, sheet tree.ID, at, count int, lim Limits) error {
	if at < 0 || at >= lim.Rows || count < 1 {
		return fmt.Errorf("%w: insert %d rows at %d", ErrLimit, count, at)
	}
	ensure(t, sheet, rows(t, sheet), tree.KindRow, at)
	splitAt(t, sheet, rows(t, sheet), at)
	row := t.New(tree.KindRow)
	row.Repeat = count
	kids := rows(t, sheet)
	idx := len(t.Get(sheet).Children)
	start := 0
	for _, id := range kids {
		if start == at {
			idx = t.IndexOf(id)
			break
		}
		start += t.Get(id).Count()
	}
	t.Insert(sheet, idx, row.ID)
	trim(t, sheet, rows(t, sheet), lim.Rows)
	return nil
}

// DeleteRows removes rows from..to.
func DeleteRows(t *tree.Tree, sheet tree.ID, from, to int, lim Limits) error {
	if err := lim.Check(Range{Row0: from, Row1: to}); err != nil {
		return err
	}
	if Count(t, rows(t, sheet)) <= from {
		return nil
	}
	to = min(to, Count(t, rows(t, sheet))-1)
	for _, id := range Rows(t, sheet, from, to) {
		t.Delete(id)
	}
	return nil
}

// InsertColumns inserts count empty columns before column at in every row and
// in the column descriptors.
func InsertColumns(t *tree.Tree, sheet tree.ID, at, count int, lim Limits) error {
	if at < 0 || at >= lim.Cols || count < 1 {
		return fmt.Errorf("%w: insert %d columns at %d", ErrLimit, count, at)
	}
	for _, row := range rows(t, sheet) {
		if Count(t, t.Get(row).Children) <= at {
			continue
		}
		splitAt(t, row, t.Get(row).Children, at)
		idx := 0
		start := 0
		for i, id := range t.Get(row).Children {
			if start == at {
				idx = i
				break
			}
			start += t.Get(id).Count()
		}
		cell := t.New(tree.KindCell)
		cell.Repeat = count
		t.Insert(row, idx, cell.ID)
		trim(t, row, t.Get(row).Children, lim.Cols)
	}
	s := t.Mut(sheet)
	have := 0
	for _, c := range s.Columns {
		have += max(c.Repeat, 1)
	}
	if have > at {
		s.Columns = splitColumns(s.Columns, at)
		start := 0
		for i, c := range s.Columns {
			if start == at {
				s.Columns = slices.Insert(s.Columns, i, tree.Column{Repeat: count})
				break
			}
			start += max(c.Repeat, 1)
		}
		s.Columns = trimColumns(s.Columns, lim.Cols)
	}
	return nil
}

// DeleteColumns removes columns from..to in every row and descriptor.
func DeleteColumns(t *tree.Tree, sheet tree.ID, from, to int, lim Limits) error {
	if err := lim.Check(Range{Col0: from, Col1: to}); err != nil {
		return err
	}
	for _, row := range rows(t, sheet) {
		n := Count(t, t.Get(row).Children)
		if n <= from {
			continue
		}
		for _, id := range Cells(t, row, from, min(to, n-1)) {
			t.Delete(id)
		}
	}
	s := t.Mut(sheet)
	have := 0
	for _, c := range s.Columns {
		have += max(c.Repeat, 1)
	}
	if have > from {
		idx := Columns(t, sheet, from, min(to, have-1))
		s = t.Mut(sheet)
		s.Columns = slices.Delete(s.Columns, idx[0], idx[len(idx)-1]+1)
	}
	return nil
}

// trim drops positions at or beyond limit.
func trim(t *tree.Tree, parent tree.ID, kids []tree.ID, limit int) {
	start := 0
	for _, id := range kids {
		n := t.Get(id).Count()
		switch {
		case start >= limit:
			t.Delete(id)
		case start+n > limit:
			t.Mut(id).Repeat = limit - start
		}
		start += n
	}
}

func trimColumns(cols []tree.Column, limit int) []tree.Column {
	start := 0
	for i, c := range cols {
		n := max(c.Repeat, 1)
		if start >= limit {
			return cols[:i]
		}
		if start+n > limit {
			cols[i].Repeat = limit - start
		}
		start += n
	}
	return cols
}

// SameCell reports whether two cells hold equal content and formatting.
func SameCell(a, b *tree.Component) bool {
	return a.StyleID == b.StyleID && a.Formula == b.Formula &&
		reflect.DeepEqual(a.Value, b.Value) && a.Inline.Equal(b.Inline)
}

// SameRow reports whether two rows hold equal cells and formatting.
func SameRow(t *tree.Tree, a, b tree.ID) bool {
	ra, rb := t.Get(a), t.Get(b)
	if ra.StyleID != rb.StyleID || !ra.Inline.Equal(rb.Inline) || len(ra.Children) != len(rb.Children) {
		return false
	}
	for i := range ra.Children {
		ca, cb := t.Get(ra.Children[i]), t.Get(rb.Children[i])
		if ca.Count() != cb.Count() || !SameCell(ca, cb) {
			return false
		}
	}
	return true
}

// SameColumn reports whether two column descriptors are equal apart from
// their repeat count.
func SameColumn(a, b tree.Column) bool {
	return a.StyleID == b.StyleID && a.Attrs.Equal(b.Attrs)
}

// IsEmptyCell reports whether a cell holds nothing worth writing.
func IsEmptyCell(c *tree.Component) bool {
	return c.Value == nil && c.Formula == "" && c.StyleID == "" && c.Inline.IsEmpty()
}

// CellAttrs lists the families a sheet cell carries.
var CellAttrs = []attrs.Family{attrs.Cell, attrs.Character, attrs.Paragraph}

// Compact merges adjacent equal cells, rows and column descriptors into
// repeated runs and drops trailing empty ones, so equal sheets share one
// shape however they were edited.
func Compact(t *tree.Tree, sheet tree.ID) {
	for _, row := range rows(t, sheet) {
		mergeRuns(t, t.Get(row).Children, func(a, b tree.ID) bool { return SameCell(t.Get(a), t.Get(b)) })
		kids := t.Get(row).Children
		for i := len(kids) - 1; i >= 0 && IsEmptyCell(t.Get(kids[i])); i-- {
			t.Delete(kids[i])
		}
	}
	mergeRuns(t, rows(t, sheet), func(a, b tree.ID) bool { return SameRow(t, a, b) })
	kids := rows(t, sheet)
	for i := len(kids) - 1; i >= 0; i-- {
		r := t.Get(kids[i])
		if len(r.Children) > 0 || r.StyleID != "" || !r.Inline.IsEmpty() {
			break
		}
		t.Delete(r.ID)
	}

	cols := t.Get(sheet).Columns
	if len(cols) == 0 {
		return
	}
	var out []tree.Column
	for _, c := range cols {
		if n := len(out); n > 0 && SameColumn(out[n-1], c) {
			out[n-1].Repeat = max(out[n-1].Repeat, 1) + max(c.Repeat, 1)
			continue
		}
		out = append(out, c)
	}
	for len(out) > 0 && out[len(out)-1].StyleID == "" && out[len(out)-1].Attrs.IsEmpty() {
		out = out[:len(out)-1]
	}
	if len(out) != len(cols) {
		t.Mut(sheet).Columns = out
	}
}

// mergeRuns folds each component into its predecessor when same says they are
// equal, summing repeat counts.
func mergeRuns(t *tree.Tree, kids []tree.ID, same func(a, b tree.ID) bool) {
	kids = slices.Clone(kids)
	prev := tree.ID(0)
	for _, id := range kids {
		if prev != 0 && same(prev, id) {
			t.Mut(prev).Repeat = t.Get(prev).Count() + t.Get(id).Count()
			t.Delete(id)
			continue
		}
		prev = id
	}
}
