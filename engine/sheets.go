package engine

import (
	"fmt"

	"github.com/alimasry/go-docops/attrs"
	"github.com/alimasry/go-docops/ops"
	"github.com/alimasry/go-docops/sheet"
	"github.com/alimasry/go-docops/style"
	"github.com/alimasry/go-docops/tree"
)

// sheets returns the sheets of the document in order.
func (d *Document) sheets() []tree.ID {
	var out []tree.ID
	for _, id := range d.tree.Get(d.tree.Root()).Children {
		if d.tree.Get(id).Kind == tree.KindSheet {
			out = append(out, id)
		}
	}
	return out
}

func (d *Document) sheetAt(op *ops.Operation) (tree.ID, error) {
	if op.Sheet == nil {
		return 0, missing("sheet")
	}
	all := d.sheets()
	if *op.Sheet < 0 || *op.Sheet >= len(all) {
		return 0, &tree.PathError{Path: tree.Path{*op.Sheet}, Err: tree.ErrOutOfRange,
			Msg: fmt.Sprintf("sheet %d of %d", *op.Sheet, len(all))}
	}
	return all[*op.Sheet], nil
}

// placeSheet inserts a detached sheet so it becomes sheet number at.
func (d *Document) placeSheet(id tree.ID, at int) error {
	all := d.sheets()
	if at < 0 || at > len(all) {
		return &tree.PathError{Path: tree.Path{at}, Err: tree.ErrOutOfRange,
			Msg: fmt.Sprintf("sheet position %d of %d", at, len(all))}
	}
	root := d.tree.Root()
	if at == len(all) {
		d.tree.Append(root, id)
		return nil
	}
	d.tree.Insert(root, d.tree.IndexOf(all[at]), id)
	return nil
}

func (d *Document) checkSheetName(name string, except tree.ID) error {
	if name == "" {
		return missing("sheetName")
	}
	for _, id := range d.sheets() {
		if id != except && d.tree.Get(id).Name == name {
			return invalid("sheet name %q already used", name)
		}
	}
	return nil
}

func (d *Document) insertSheet(op *ops.Operation) error {
	if op.Sheet == nil {
		return missing("sheet")
	}
	if err := d.checkSheetName(op.SheetName, 0); err != nil {
		return err
	}
	s := d.tree.New(tree.KindSheet)
	s.Name = op.SheetName
	if err := d.placeSheet(s.ID, *op.Sheet); err != nil {
		return err
	}
	return d.patchComponent(s.ID, op.Patch())
}

func (d *Document) deleteSheet(op *ops.Operation) error {
	id, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	d.tree.Delete(id)
	return nil
}

func (d *Document) moveSheet(op *ops.Operation) error {
	id, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	if len(op.To) == 0 {
		return missing("to")
	}
	d.tree.Detach(id)
	return d.placeSheet(id, op.To.Last())
}

func (d *Document) copySheet(op *ops.Operation) error {
	id, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	if len(op.To) == 0 {
		return missing("to")
	}
	if err := d.checkSheetName(op.SheetName, 0); err != nil {
		return err
	}
	cp, err := d.tree.Clone(id)
	if err != nil {
		return err
	}
	d.tree.Mut(cp).Name = op.SheetName
	return d.placeSheet(cp, op.To.Last())
}

func (d *Document) setSheetName(op *ops.Operation) error {
	id, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	if err := d.checkSheetName(op.SheetName, id); err != nil {
		return err
	}
	d.tree.Mut(id).Name = op.SheetName
	return nil
}

func (d *Document) setSheetAttributes(op *ops.Operation) error {
	id, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	if op.Attrs == nil {
		return missing("attrs")
	}
	return d.patchComponent(id, op.Patch())
}

// cellRange reads start [col,row] and the optional inclusive end.
func cellRange(op *ops.Operation) (sheet.Range, error) {
	if len(op.Start) != 2 {
		return sheet.Range{}, missing("start [col,row]")
	}
	r := sheet.Range{Col0: op.Start[0], Row0: op.Start[1], Col1: op.Start[0], Row1: op.Start[1]}
	if op.End != nil {
		if len(op.End) != 2 {
			return sheet.Range{}, invalid("end must be [col,row], got %v", op.End)
		}
		r.Col1, r.Row1 = op.End[0], op.End[1]
	}
	return r, nil
}

// lineRange reads a row or column interval.
func lineRange(op *ops.Operation) (from, to int, err error) {
	if len(op.Start) == 0 {
		return 0, 0, missing("start")
	}
	from = op.Start.Last()
	to = from + max(op.Count, 1) - 1
	if op.End != nil {
		to = op.End.Last()
	}
	if to < from {
		return 0, 0, invalid("interval %d..%d is reversed", from, to)
	}
	return from, to, nil
}

// cellEdit is what one cell write changes.
type cellEdit struct {
	value   attrs.Value
	formula *string
	patch   attrs.Patch
}

func (d *Document) editCell(id tree.ID, e cellEdit) error {
	if e.value.IsSet() {
		d.tree.Mut(id).Value = e.value.Get()
	} else if e.value.IsClear() {
		d.tree.Mut(id).Value = nil
	}
	if e.formula != nil {
		d.tree.Mut(id).Formula = *e.formula
	}
	return d.patchComponent(id, e.patch)
}

func (d *Document) setCellContents(op *ops.Operation) error {
	s, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	origin, err := cellRange(op)
	if err != nil {
		return err
	}
	if op.Contents == nil {
		return missing("contents")
	}
	for dr, row := range op.Contents {
		col := origin.Col0
		for _, cc := range row {
			r := sheet.Range{Col0: col, Row0: origin.Row0 + dr, Col1: col + cc.Count() - 1, Row1: origin.Row0 + dr}
			if err := d.limits.Check(r); err != nil {
				return err
			}
			edit := cellEdit{value: cc.Value, formula: cc.Formula}
			if cc.Attrs != nil {
				edit.patch = *cc.Attrs
			}
			if err := sheet.Each(d.tree, s, r, func(_, cell tree.ID) error { return d.editCell(cell, edit) }); err != nil {
				return err
			}
			col += cc.Count()
		}
	}
	sheet.Compact(d.tree, s)
	return nil
}

func (d *Document) fillCellRange(op *ops.Operation) error {
	s, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	r, err := cellRange(op)
	if err != nil {
		return err
	}
	if err := d.limits.Check(r); err != nil {
		return err
	}
	edit := cellEdit{value: op.Value, formula: op.Formula, patch: op.Patch()}
	if err := sheet.Each(d.tree, s, r, func(_, cell tree.ID) error { return d.editCell(cell, edit) }); err != nil {
		return err
	}
	sheet.Compact(d.tree, s)
	return nil
}

func (d *Document) setRowAttributes(op *ops.Operation) error {
	s, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	from, to, err := lineRange(op)
	if err != nil {
		return err
	}
	if err := d.limits.Check(sheet.Range{Row0: from, Row1: to}); err != nil {
		return err
	}
	for _, row := range sheet.Rows(d.tree, s, from, to) {
		if err := d.patchComponent(row, op.Patch()); err != nil {
			return err
		}
	}
	sheet.Compact(d.tree, s)
	return nil
}

func (d *Document) setColumnAttributes(op *ops.Operation) error {
	s, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	from, to, err := lineRange(op)
	if err != nil {
		return err
	}
	if err := d.limits.Check(sheet.Range{Col0: from, Col1: to}); err != nil {
		return err
	}
	p := op.Patch()
	named := ""
	if v, ok := p.StyleID.String(); ok {
		st, ok := d.styles.Get(v)
		if !ok {
			return &style.StyleError{ID: v, Err: style.ErrDangling}
		}
		if st.Family != attrs.Column {
			return invalid("%s style %q on a column", st.Family, v)
		}
		named = v
	}
	idx := sheet.Columns(d.tree, s, from, to)
	cols := d.tree.Mut(s).Columns
	for _, i := range idx {
		if !p.StyleID.IsZero() {
			cols[i].StyleID = named
		}
		cols[i].Attrs = cols[i].Attrs.Patch(p.WithoutStyle())
		if cols[i].Attrs.IsEmpty() {
			cols[i].Attrs = nil
		}
	}
	sheet.Compact(d.tree, s)
	return nil
}

func (d *Document) insertSheetRows(op *ops.Operation) error {
	s, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	from, to, err := lineRange(op)
	if err != nil {
		return err
	}
	if err := sheet.InsertRows(d.tree, s, from, to-from+1, d.limits); err != nil {
		return err
	}
	sheet.Compact(d.tree, s)
	return nil
}

func (d *Document) deleteSheetRows(op *ops.Operation) error {
	s, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	from, to, err := lineRange(op)
	if err != nil {
		return err
	}
	if err := sheet.DeleteRows(d.tree, s, from, to, d.limits); err != nil {
		return err
	}
	sheet.Compact(d.tree, s)
	return nil
}

func (d *Document) insertSheetColumns(op *ops.Operation) error {
	s, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	from, to, err := lineRange(op)
	if err != nil {
		return err
	}
	if err := sheet.InsertColumns(d.tree, s, from, to-from+1, d.limits); err != nil {
		return err
	}
	sheet.Compact(d.tree, s)
	return nil
}

func (d *Document) deleteSheetColumns(op *ops.Operation) error {
	s, err := d.sheetAt(op)
	if err != nil {
		return err
	}
	from, to, err := lineRange(op)
	if err != nil {
		return err
	}
	if err := sheet.DeleteColumns(d.tree, s, from, to, d.limits); err != nil {
		return err
	}
	sheet.Compact(d.tree, s)
	return nil
}
