// Package extract walks a document and writes the operation log that rebuilds
// it from an empty document.
//
// Definitions come first (fonts, styles with parents before children, list
// styles) so every later operation finds what it references. Content follows
// in document order. Paragraph text is inserted unformatted and formatted in
// a second pass, which keeps the log independent of how insertText inherits
// formatting. Automatic styles never appear in the log: components carry their
// named style plus the direct formatting the automatic styles held.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alimasry/go-docops/attrs"
	"github.com/alimasry/go-docops/list"
	"github.com/alimasry/go-docops/ops"
	"github.com/alimasry/go-docops/sheet"
	"github.com/alimasry/go-docops/style"
	"github.com/alimasry/go-docops/table"
	"github.com/alimasry/go-docops/tree"
)

// ErrForeign reports foreign content no operation can recreate.
var ErrForeign = errors.New("foreign content cannot be extracted")

type extractor struct {
	t      *tree.Tree
	styles *style.Registry
	lists  *list.Registry
	out    []ops.Operation
	sheets int
}

// Operations returns the log that rebuilds the document.
func Operations(t *tree.Tree, styles *style.Registry, lists *list.Registry) ([]ops.Operation, error) {
	x := &extractor{t: t, styles: styles, lists: lists}
	x.definitions()
	if err := x.blocks(t.Root(), nil, false); err != nil {
		return nil, err
	}
	return x.out, nil
}

func (x *extractor) emit(op ops.Operation) { x.out = append(x.out, op) }

func patchOf(m attrs.Map) *attrs.Patch {
	if m.IsEmpty() {
		return nil
	}
	p := m.ToPatch()
	return &p
}

func (x *extractor) definitions() {
	for _, f := range x.styles.Fonts() {
		x.emit(ops.Operation{Name: ops.InsertFontDescription, FontName: f.Name, Attrs: patchOf(f.Attrs)})
	}
	for _, s := range x.styles.Named() {
		x.emit(ops.Operation{
			Name:       ops.InsertStyleSheet,
			StyleID:    s.ID,
			Type:       string(s.Family),
			StyleName:  s.Name,
			Parent:     s.Parent,
			Attrs:      patchOf(s.Attrs),
			Hidden:     s.Hidden,
			Default:    s.Default,
			UIPriority: s.UIPriority,
		})
	}
	for _, d := range x.lists.Definitions() {
		x.emit(ops.Operation{Name: ops.InsertListStyle, ListStyleID: d.ID, ListDefinition: d})
	}
}

// formatting returns the patch that gives a fresh component the formatting of
// c, nil when c has none.
func (x *extractor) formatting(c *tree.Component) (*attrs.Patch, error) {
	named, direct, err := x.styles.Direct(c)
	if err != nil {
		return nil, fmt.Errorf("%s %d: %w", c.Kind, c.ID, err)
	}
	p := direct.ToPatch()
	if named != "" {
		p.StyleID = attrs.Set(named)
	}
	if p.IsZero() {
		return nil, nil
	}
	return &p, nil
}

// blocks writes the blocks of a container. Cells start with an implicit empty
// paragraph: it is reused for a leading paragraph and deleted otherwise.
func (x *extractor) blocks(container tree.ID, base tree.Path, implicit bool) error {
	kids := x.t.Children(container)
	reuse := implicit && len(kids) > 0 && x.t.Get(kids[0]).Kind.IsParagraph()
	for i, id := range kids {
		c := x.t.Get(id)
		path := base.With(i)
		switch {
		case c.Kind.IsParagraph():
			f, err := x.formatting(c)
			if err != nil {
				return err
			}
			if i == 0 && reuse {
				if f != nil {
					x.emit(ops.Operation{Name: ops.SetAttributes, Start: path, Attrs: f})
				}
			} else {
				x.emit(ops.Operation{Name: ops.InsertParagraph, Start: path, Attrs: f})
			}
			if err := x.inline(c, path); err != nil {
				return err
			}
		case c.Kind == tree.KindTable:
			if err := x.table(c, path); err != nil {
				return err
			}
		case c.Kind == tree.KindSheet:
			if err := x.sheet(c); err != nil {
				return err
			}
		case c.Kind == tree.KindForeign:
			return fmt.Errorf("block %v: %w", path, ErrForeign)
		default:
			return fmt.Errorf("block %v: unexpected %s", path, c.Kind)
		}
	}
	if implicit && !reuse {
		x.emit(ops.Operation{Name: ops.Delete, Start: base.With(len(kids))})
	}
	return nil
}

// inline writes paragraph content: text and inline components first, then
// their formatting.
func (x *extractor) inline(para *tree.Component, path tree.Path) error {
	var text strings.Builder
	textAt := -1
	flush := func() {
		if text.Len() > 0 {
			x.emit(ops.Operation{Name: ops.InsertText, Start: path.With(textAt), Text: text.String()})
		}
		text.Reset()
		textAt = -1
	}

	off := 0
	for _, id := range para.Children {
		c := x.t.Get(id)
		at := path.With(off)
		switch c.Kind {
		case tree.KindTextRun:
			if c.Text != "" && textAt < 0 {
				textAt = off
			}
			text.WriteString(c.Text)
		case tree.KindTab:
			flush()
			x.emit(ops.Operation{Name: ops.InsertTab, Start: at})
		case tree.KindHardBreak:
			flush()
			x.emit(ops.Operation{Name: ops.InsertHardBreak, Start: at, Type: c.Name})
		case tree.KindField:
			flush()
			x.emit(ops.Operation{Name: ops.InsertField, Start: at, Type: c.Name, Representation: c.Text})
		case tree.KindBookmark:
			flush()
			x.emit(ops.Operation{Name: ops.InsertBookmark, Start: at, ID: c.Name, AnchorName: c.Text})
		case tree.KindDrawing:
			flush()
			x.emit(ops.Operation{Name: ops.InsertDrawing, Start: at, Type: c.Name})
			if err := x.blocks(c.ID, at, false); err != nil {
				return err
			}
		default:
			return fmt.Errorf("inline %v: %w", at, ErrForeign)
		}
		off += c.Width()
	}
	flush()

	off = 0
	hasText := x.t.TextLen(para.ID) > 0
	for _, id := range para.Children {
		c := x.t.Get(id)
		if hasText && c.Width() == 0 {
			// no operation addresses an empty run next to text
			continue
		}
		f, err := x.formatting(c)
		if err != nil {
			return err
		}
		w := c.Width()
		if f != nil {
			x.emit(ops.Operation{Name: ops.SetAttributes, Start: path.With(off), End: path.With(off + max(w, 1) - 1), Attrs: f})
		}
		off += w
	}
	return nil
}

func (x *extractor) table(tb *tree.Component, path tree.Path) error {
	f, err := x.formatting(tb)
	if err != nil {
		return err
	}
	if len(tb.Grid) > 0 {
		if f == nil {
			f = &attrs.Patch{}
		}
		f.SetValue(attrs.Table, "tableGrid", attrs.Set(table.GridJSON(tb.Grid)))
	}
	x.emit(ops.Operation{Name: ops.InsertTable, Start: path, Attrs: f})
	for r, rid := range tb.Children {
		row := x.t.Get(rid)
		rp := path.With(r)
		f, err := x.formatting(row)
		if err != nil {
			return err
		}
		x.emit(ops.Operation{Name: ops.InsertRows, Start: rp, Count: 1, InsertDefaultCells: ops.Ptr(false), Attrs: f})
		for c, cid := range row.Children {
			cell := x.t.Get(cid)
			cp := rp.With(c)
			f, err := x.formatting(cell)
			if err != nil {
				return err
			}
			x.emit(ops.Operation{Name: ops.InsertCells, Start: cp, Count: 1, Attrs: f})
			if err := x.blocks(cid, cp, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *extractor) sheet(s *tree.Component) error {
	idx := ops.Ptr(x.sheets)
	x.sheets++
	f, err := x.formatting(s)
	if err != nil {
		return err
	}
	x.emit(ops.Operation{Name: ops.InsertSheet, Sheet: idx, SheetName: s.Name, Attrs: f})

	col := 0
	for _, cd := range s.Columns {
		n := max(cd.Repeat, 1)
		if cd.StyleID != "" || !cd.Attrs.IsEmpty() {
			p := cd.Attrs.ToPatch()
			if cd.StyleID != "" {
				p.StyleID = attrs.Set(cd.StyleID)
			}
			x.emit(ops.Operation{Name: ops.SetColumnAttributes, Sheet: idx, Start: tree.Path{col}, End: tree.Path{col + n - 1}, Attrs: &p})
		}
		col += n
	}

	r := 0
	for _, rid := range x.t.Children(s.ID) {
		row := x.t.Get(rid)
		n := row.Count()
		f, err := x.formatting(row)
		if err != nil {
			return err
		}
		if f != nil {
			x.emit(ops.Operation{Name: ops.SetRowAttributes, Sheet: idx, Start: tree.Path{r}, End: tree.Path{r + n - 1}, Attrs: f})
		}
		col := 0
		for _, cid := range row.Children {
			cell := x.t.Get(cid)
			m := cell.Count()
			if !sheet.IsEmptyCell(cell) {
				if err := x.cell(idx, cell, col, r, m, n); err != nil {
					return err
				}
			}
			col += m
		}
		r += n
	}
	return nil
}

// cell writes one run of equal cells covering cols x rows.
func (x *extractor) cell(idx *int, c *tree.Component, col, row, cols, rows int) error {
	f, err := x.formatting(c)
	if err != nil {
		return err
	}
	var value attrs.Value
	if c.Value != nil {
		value = attrs.Set(c.Value)
	}
	var formula *string
	if c.Formula != "" {
		formula = ops.Ptr(c.Formula)
	}
	start := tree.Path{col, row}
	if cols == 1 && rows == 1 {
		x.emit(ops.Operation{Name: ops.SetCellContents, Sheet: idx, Start: start,
			Contents: [][]ops.CellContent{{{Value: value, Formula: formula, Attrs: f}}}})
		return nil
	}
	x.emit(ops.Operation{Name: ops.FillCellRange, Sheet: idx, Start: start,
		End: tree.Path{col + cols - 1, row + rows - 1}, Value: value, Formula: formula, Attrs: f})
	return nil
}
