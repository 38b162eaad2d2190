package engine

import (
	"fmt"
	"slices"

	"github.com/alimasry/go-docops/attrs"
	"github.com/alimasry/go-docops/ops"
	"github.com/alimasry/go-docops/style"
	"github.com/alimasry/go-docops/table"
	"github.com/alimasry/go-docops/tree"
)

// gridKey is the table attribute that carries the column grid.
const gridKey = "tableGrid"

func (d *Document) setAttributes(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	if op.Attrs == nil {
		return missing("attrs")
	}
	pos, err := d.tree.Locate(op.Start)
	if err != nil {
		return err
	}
	if pos.Text {
		return d.setTextAttributes(pos, op)
	}
	ids, err := d.siblingRange(op.Start, op.End)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := d.setComponentAttributes(id, op.Patch()); err != nil {
			return err
		}
	}
	return nil
}

// setComponentAttributes patches one component and repairs the structures
// its attributes drive: list grouping, headings, table grids and spans.
func (d *Document) setComponentAttributes(id tree.ID, p attrs.Patch) error {
	c := d.tree.Get(id)
	switch c.Kind {
	case tree.KindTable:
		if v := p.Value(attrs.Table, gridKey); v.IsSet() {
			grid, err := table.GridValue(v.Get())
			if err != nil {
				return err
			}
			if err := table.SetGrid(d.tree, id, grid); err != nil {
				return err
			}
		}
		p = p.Without(attrs.Table, gridKey)
	case tree.KindCell:
		if v := p.Value(attrs.Cell, table.SpanKey); !v.IsZero() {
			n, _ := attrs.Int(v.Get())
			table.SetSpan(d.tree, id, n)
			p = p.Without(attrs.Cell, table.SpanKey)
		}
	}
	if err := d.patchComponent(id, p); err != nil {
		return err
	}
	switch c.Kind {
	case tree.KindParagraph, tree.KindHeading:
		return d.paragraphChanged(id)
	case tree.KindCell:
		if tb := d.tree.Ancestor(id, tree.KindTable); tb != nil {
			return table.CheckBounded(d.tree, tb.ID)
		}
	}
	return nil
}

// patchComponent applies a patch to the formatting of one component. The
// style key names the component's named style; family attributes go to the
// automatic style the component references, cloned first when shared, or to
// its inline attributes.
func (d *Document) patchComponent(id tree.ID, p attrs.Patch) error {
	if p.IsZero() {
		return nil
	}
	c := d.tree.Get(id)
	family := style.FamilyOf(c.Kind)
	if family == "" {
		return invalid("%s %d takes no attributes", c.Kind, id)
	}
	if err := d.setStyleRef(id, family, p.StyleID); err != nil {
		return err
	}
	rest := p.WithoutStyle()
	if rest.IsZero() {
		return nil
	}
	c = d.tree.Get(id)
	if d.styles.IsAutomatic(c.StyleID) {
		auto, err := d.styles.SetAttributes(c.StyleID, rest, d.tree)
		if err != nil {
			return err
		}
		m := d.tree.Mut(id)
		m.StyleID = auto
		// inline values would shadow what the automatic style now says
		for f := range m.Inline {
			if rest.ClearsFamily(f) {
				delete(m.Inline, f)
				continue
			}
			for k := range rest.Families[f] {
				m.Inline.Delete(f, k)
			}
		}
		return nil
	}
	m := d.tree.Mut(id)
	m.Inline = m.Inline.Patch(rest)
	if m.Inline.IsEmpty() {
		m.Inline = nil
	}
	return nil
}

// setStyleRef applies the style key of a patch.
func (d *Document) setStyleRef(id tree.ID, family attrs.Family, v attrs.Value) error {
	if v.IsZero() {
		return nil
	}
	c := d.tree.Get(id)
	named := ""
	if v.IsSet() {
		s, ok := v.String()
		if !ok {
			return invalid("styleId must be a string, got %v", v.Get())
		}
		sheet, ok := d.styles.Get(s)
		if !ok {
			return &style.StyleError{ID: s, Err: style.ErrDangling}
		}
		if sheet.Family != family {
			return &style.StyleError{ID: s, Err: fmt.Errorf("%w: %s style on a %s", style.ErrFamily, sheet.Family, c.Kind)}
		}
		named = s
	}
	if d.styles.IsAutomatic(c.StyleID) {
		auto, err := d.styles.Reparent(c.StyleID, named, d.tree)
		if err != nil {
			return err
		}
		d.tree.Mut(id).StyleID = auto
		return nil
	}
	d.tree.Mut(id).StyleID = named
	return nil
}

// textSpan is a character range of one paragraph, to exclusive.
type textSpan struct {
	para     tree.ID
	from, to int
}

// setTextAttributes formats an inclusive character range. Paragraph attributes
// go to the paragraphs the range touches, everything else to the runs and
// inline components inside it.
func (d *Document) setTextAttributes(start tree.Position, op *ops.Operation) error {
	end := start
	if op.End != nil {
		var err error
		if end, err = d.locateText(op.End); err != nil {
			return err
		}
	}
	spans, err := d.textSpans(start, end)
	if err != nil {
		return err
	}
	p := op.Patch()
	paraPatch := p.Only(attrs.Paragraph)
	inline := p.Drop(attrs.Paragraph)
	for _, s := range spans {
		if !paraPatch.IsZero() {
			if err := d.setComponentAttributes(s.para, paraPatch); err != nil {
				return err
			}
		}
		if inline.IsZero() {
			continue
		}
		if err := d.formatChars(s, inline); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) textSpans(start, end tree.Position) ([]textSpan, error) {
	if start.Parent == end.Parent {
		n := d.tree.TextLen(start.Parent)
		if n == 0 && start.Index == 0 && end.Index == 0 {
			return []textSpan{{para: start.Parent}}, nil
		}
		if end.Index < start.Index || end.Index >= n {
			return nil, invalid("characters %d..%d of %d", start.Index, end.Index, n)
		}
		return []textSpan{{start.Parent, start.Index, end.Index + 1}}, nil
	}
	first, last, between, err := d.paragraphSpan(start.Parent, end.Parent)
	if err != nil {
		return nil, err
	}
	if end.Index >= d.tree.TextLen(last) {
		return nil, invalid("range ends at character %d of %d", end.Index, d.tree.TextLen(last))
	}
	spans := []textSpan{{first, start.Index, d.tree.TextLen(first)}}
	for _, id := range between {
		if d.tree.Get(id).Kind.IsParagraph() {
			spans = append(spans, textSpan{id, 0, d.tree.TextLen(id)})
		}
	}
	return append(spans, textSpan{last, 0, end.Index + 1}), nil
}

// formatChars patches every inline child inside a span. An empty paragraph is
// formatted through its placeholder run.
func (d *Document) formatChars(s textSpan, p attrs.Patch) error {
	var targets []tree.ID
	if s.from == s.to {
		if d.tree.TextLen(s.para) > 0 {
			return nil
		}
		kids := d.tree.Get(s.para).Children
		if len(kids) == 0 {
			run := d.tree.New(tree.KindTextRun)
			d.tree.Append(s.para, run.ID)
			kids = d.tree.Get(s.para).Children
		}
		targets = slices.Clone(kids[:1])
	} else {
		first := d.boundary(s.para, s.from)
		last := d.boundary(s.para, s.to)
		targets = slices.Clone(d.tree.Get(s.para).Children[first:last])
	}
	for _, id := range targets {
		fp := p
		if d.tree.Get(id).Kind == tree.KindDrawing {
			// a character style in a range does not apply to the drawings inside it
			if sid, ok := p.StyleID.String(); ok && len(targets) > 1 {
				if st, ok := d.styles.Get(sid); ok && st.Family != attrs.Drawing {
					fp = p.WithoutStyle()
				}
			}
		} else {
			fp = p.Drop(attrs.Drawing)
		}
		if err := d.patchComponent(id, fp); err != nil {
			return err
		}
	}
	d.tidyRuns(s.para)
	return nil
}
