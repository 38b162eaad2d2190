package engine

import (
	"fmt"

	"github.com/alimasry/go-docops/ops"
	"github.com/alimasry/go-docops/tree"
)

type handler func(d *Document, op *ops.Operation) error

var handlers = map[string]handler{
	ops.InsertParagraph: (*Document).insertParagraph,
	ops.SplitParagraph:  (*Document).splitParagraph,
	ops.MergeParagraph:  (*Document).mergeParagraph,
	ops.InsertText:      (*Document).insertText,
	ops.InsertTab:       (*Document).insertInline,
	ops.InsertHardBreak: (*Document).insertInline,
	ops.InsertField:     (*Document).insertInline,
	ops.InsertBookmark:  (*Document).insertInline,
	ops.InsertDrawing:   (*Document).insertInline,
	ops.Delete:          (*Document).delete,
	ops.SetAttributes:   (*Document).setAttributes,
	ops.Move:            (*Document).move,

	ops.InsertTable:   (*Document).insertTable,
	ops.InsertRows:    (*Document).insertRows,
	ops.InsertCells:   (*Document).insertCells,
	ops.InsertColumn:  (*Document).insertColumn,
	ops.InsertColumns: (*Document).insertColumn,
	ops.DeleteColumns: (*Document).deleteColumns,
	ops.DeleteRows:    (*Document).deleteRows,

	ops.InsertStyleSheet:      (*Document).insertStyleSheet,
	ops.ChangeStyleSheet:      (*Document).changeStyleSheet,
	ops.DeleteStyleSheet:      (*Document).deleteStyleSheet,
	ops.InsertListStyle:       (*Document).insertListStyle,
	ops.DeleteListStyle:       (*Document).deleteListStyle,
	ops.InsertFontDescription: (*Document).insertFontDescription,

	ops.InsertSheet:         (*Document).insertSheet,
	ops.DeleteSheet:         (*Document).deleteSheet,
	ops.MoveSheet:           (*Document).moveSheet,
	ops.CopySheet:           (*Document).copySheet,
	ops.SetSheetName:        (*Document).setSheetName,
	ops.SetSheetAttributes:  (*Document).setSheetAttributes,
	ops.SetCellContents:     (*Document).setCellContents,
	ops.FillCellRange:       (*Document).fillCellRange,
	ops.SetRowAttributes:    (*Document).setRowAttributes,
	ops.SetColumnAttributes: (*Document).setColumnAttributes,

	ops.NoOp: func(*Document, *ops.Operation) error { return nil },
}

// sheetVariants replace the table handlers when an operation names a sheet.
var sheetVariants = map[string]handler{
	ops.InsertRows:    (*Document).insertSheetRows,
	ops.DeleteRows:    (*Document).deleteSheetRows,
	ops.InsertColumns: (*Document).insertSheetColumns,
	ops.DeleteColumns: (*Document).deleteSheetColumns,
}

// applyOne applies op inside the open transaction.
func (d *Document) applyOne(index int, op *ops.Operation) error {
	fail := func(err error) error {
		return &OpError{Op: op.Name, OSN: op.OSN, Index: index, Kind: classify(err), Err: err}
	}
	if op.Name == "" {
		return fail(missing("name"))
	}
	if op.OSN != nil && *op.OSN < d.next {
		return fail(fmt.Errorf("%w: osn %d, expected at least %d", ErrOutOfOrder, *op.OSN, d.next))
	}
	h, ok := handlers[op.Name]
	if v, isSheet := sheetVariants[op.Name]; isSheet && op.SheetOp() {
		h = v
	}
	if !ok {
		return fail(fmt.Errorf("%w: %q", ErrUnknownOperation, op.Name))
	}
	if err := h(d, op); err != nil {
		d.log.V(1).Info("operation failed", "op", op.String(), "err", err.Error())
		return fail(err)
	}
	if op.OSN == nil {
		op.OSN = ops.Ptr(d.next)
	}
	d.next = *op.OSN + op.Length()
	d.log.V(2).Info("applied", "op", op.String())
	return nil
}

func requireStart(op *ops.Operation) error {
	if len(op.Start) == 0 {
		return missing("start")
	}
	return nil
}

// locateText resolves a path that must end at a character position.
func (d *Document) locateText(p tree.Path) (tree.Position, error) {
	pos, err := d.tree.Locate(p)
	if err != nil {
		return pos, err
	}
	if !pos.Text {
		return pos, &tree.PathError{Path: p, Depth: len(p) - 1, Err: tree.ErrTypeMismatch, Msg: "not a character position"}
	}
	return pos, nil
}

// blockContainer checks that a position addresses a container of blocks.
func (d *Document) blockContainer(p tree.Path, pos tree.Position) error {
	switch d.tree.Get(pos.Parent).Kind {
	case tree.KindDocument, tree.KindCell, tree.KindDrawing:
		return nil
	}
	return &tree.PathError{Path: p, Depth: len(p) - 1, Err: tree.ErrTypeMismatch,
		Msg: fmt.Sprintf("%s cannot hold blocks", d.tree.Get(pos.Parent).Kind)}
}
