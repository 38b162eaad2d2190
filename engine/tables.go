package engine

import (
	"github.com/alimasry/go-docops/ops"
	"github.com/alimasry/go-docops/table"
	"github.com/alimasry/go-docops/tree"
)

func (d *Document) insertTable(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	pos, err := d.tree.Locate(op.Start)
	if err != nil {
		return err
	}
	if err := d.blockContainer(op.Start, pos); err != nil {
		return err
	}
	tb := d.tree.New(tree.KindTable)
	if op.TableGrid != nil {
		tb.Grid = append([]float64(nil), op.TableGrid...)
	}
	if err := d.setComponentAttributes(tb.ID, op.Patch()); err != nil {
		return err
	}
	d.structure().InsertBlock(pos.Parent, pos.Index, tb.ID)
	return nil
}

// tableAt resolves the table a row-level path points into.
func (d *Document) tableAt(p tree.Path) (*tree.Component, error) {
	if len(p) < 2 {
		return nil, &tree.PathError{Path: p, Err: tree.ErrOutOfRange, Msg: "row path needs a table prefix"}
	}
	return d.tree.ResolveKind(p.Parent(), tree.KindTable)
}

func (d *Document) insertRows(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	tb, err := d.tableAt(op.Start)
	if err != nil {
		return err
	}
	defaults := true
	if op.InsertDefaultCells != nil {
		defaults = *op.InsertDefaultCells
	}
	rows, err := table.InsertRows(d.tree, tb.ID, op.Start.Last(), op.Count, op.ReferenceRow, defaults)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := d.setComponentAttributes(r, op.Patch()); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) insertCells(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	if len(op.Start) < 2 {
		return &tree.PathError{Path: op.Start, Err: tree.ErrOutOfRange, Msg: "cell path needs a row prefix"}
	}
	row, err := d.tree.ResolveKind(op.Start.Parent(), tree.KindRow)
	if err != nil {
		return err
	}
	cells, err := table.InsertCells(d.tree, row.ID, op.Start.Last(), op.Count)
	if err != nil {
		return err
	}
	for _, c := range cells {
		if err := d.setComponentAttributes(c, op.Patch()); err != nil {
			return err
		}
	}
	return nil
}

// insertColumn handles insertColumn and, repeating it, insertColumns. A
// tableGrid given with the operation is the grid after all insertions.
func (d *Document) insertColumn(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	if op.GridPosition == nil {
		return missing("gridPosition")
	}
	tb, err := d.tree.ResolveKind(op.Start, tree.KindTable)
	if err != nil {
		return err
	}
	n := 1
	if op.Name == ops.InsertColumns {
		n = max(op.Count, 1)
	}
	for i := range n {
		var grid []float64
		if i == n-1 {
			grid = op.TableGrid
		}
		if err := table.InsertColumn(d.tree, tb.ID, *op.GridPosition, grid, table.Mode(op.InsertMode)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) deleteColumns(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	if op.StartGrid == nil {
		return missing("startGrid")
	}
	tb, err := d.tree.ResolveKind(op.Start, tree.KindTable)
	if err != nil {
		return err
	}
	end := *op.StartGrid
	if op.EndGrid != nil {
		end = *op.EndGrid
	}
	empty, err := table.DeleteColumns(d.tree, tb.ID, *op.StartGrid, end)
	if err != nil {
		return err
	}
	if empty {
		d.structure().RemoveBlock(tb.ID)
	}
	return nil
}

func (d *Document) deleteRows(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	tb, err := d.tableAt(op.Start)
	if err != nil {
		return err
	}
	to := op.Start.Last()
	if op.End != nil {
		to = op.End.Last()
	}
	return table.DeleteRows(d.tree, tb.ID, op.Start.Last(), to)
}
