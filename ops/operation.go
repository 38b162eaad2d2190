// Package ops defines the operation records an editing session exchanges, the
// loaders for operation logs, and the canonical form two logs are compared in.
package ops

import (
	"fmt"
	"strings"

	"github.com/alimasry/go-docops/attrs"
	"github.com/alimasry/go-docops/list"
	"github.com/alimasry/go-docops/tree"
)

// Operation names.
const (
	InsertParagraph = "insertParagraph"
	SplitParagraph  = "splitParagraph"
	MergeParagraph  = "mergeParagraph"
	InsertText      = "insertText"
	InsertTab       = "insertTab"
	InsertHardBreak = "insertHardBreak"
	InsertField     = "insertField"
	InsertBookmark  = "insertBookmark"
	InsertDrawing   = "insertDrawing"
	Delete          = "delete"
	SetAttributes   = "setAttributes"
	Move            = "move"

	InsertTable   = "insertTable"
	InsertRows    = "insertRows"
	InsertCells   = "insertCells"
	InsertColumn  = "insertColumn"
	InsertColumns = "insertColumns"
	DeleteColumns = "deleteColumns"
	DeleteRows    = "deleteRows"

	InsertStyleSheet      = "insertStyleSheet"
	ChangeStyleSheet      = "changeStyleSheet"
	DeleteStyleSheet      = "deleteStyleSheet"
	InsertListStyle       = "insertListStyle"
	DeleteListStyle       = "deleteListStyle"
	InsertFontDescription = "insertFontDescription"

	InsertSheet         = "insertSheet"
	DeleteSheet         = "deleteSheet"
	MoveSheet           = "moveSheet"
	CopySheet           = "copySheet"
	SetSheetName        = "setSheetName"
	SetSheetAttributes  = "setSheetAttributes"
	SetCellContents     = "setCellContents"
	FillCellRange       = "fillCellRange"
	SetRowAttributes    = "setRowAttributes"
	SetColumnAttributes = "setColumnAttributes"

	NoOp = "noOp"
)

// Operation is one editing operation. Fields absent from the JSON record stay
// at their zero value and mean "unchanged".
type Operation struct {
	Name string `json:"name"`

	Start tree.Path `json:"start,omitempty"`
	End   tree.Path `json:"end,omitempty"`
	To    tree.Path `json:"to,omitempty"`

	Text  string       `json:"text,omitempty"`
	Attrs *attrs.Patch `json:"attrs,omitempty"`
	Count int          `json:"count,omitempty"`

	OSN *int `json:"osn,omitempty"`
	OPL int  `json:"opl,omitempty"`

	// tables
	GridPosition       *int      `json:"gridPosition,omitempty"`
	TableGrid          []float64 `json:"tableGrid,omitempty"`
	InsertMode         string    `json:"insertMode,omitempty"`
	ReferenceRow       *int      `json:"referenceRow,omitempty"`
	InsertDefaultCells *bool     `json:"insertDefaultCells,omitempty"`
	StartGrid          *int      `json:"startGrid,omitempty"`
	EndGrid            *int      `json:"endGrid,omitempty"`

	// styles, lists and fonts
	StyleID        string           `json:"styleId,omitempty"`
	StyleName      string           `json:"styleName,omitempty"`
	Type           string           `json:"type,omitempty"`
	Parent         string           `json:"parent,omitempty"`
	Hidden         bool             `json:"hidden,omitempty"`
	Default        bool             `json:"default,omitempty"`
	UIPriority     int              `json:"uiPriority,omitempty"`
	ListStyleID    string           `json:"listStyleId,omitempty"`
	ListDefinition *list.Definition `json:"listDefinition,omitempty"`
	FontName       string           `json:"fontName,omitempty"`

	// inline components
	Representation string `json:"representation,omitempty"`
	ID             string `json:"id,omitempty"`
	AnchorName     string `json:"anchorName,omitempty"`

	// spreadsheets
	Sheet     *int            `json:"sheet,omitempty"`
	SheetName string          `json:"sheetName,omitempty"`
	Contents  [][]CellContent `json:"contents,omitempty"`
	Value     attrs.Value     `json:"value,omitzero"`
	Formula   *string         `json:"formula,omitempty"`
}

// CellContent is one entry of a setCellContents row.
type CellContent struct {
	Value   attrs.Value  `json:"value,omitzero"`
	Formula *string      `json:"formula,omitempty"`
	Attrs   *attrs.Patch `json:"attrs,omitempty"`
	Repeat  int          `json:"repeat,omitempty"`
}

// Count returns the repeat count, at least one.
func (c CellContent) Count() int { return max(c.Repeat, 1) }

// Ptr returns a pointer to v, for the optional fields of an Operation.
func Ptr[T any](v T) *T { return &v }

// Patch returns the attribute patch, zero when absent.
func (op *Operation) Patch() attrs.Patch {
	if op.Attrs == nil {
		return attrs.Patch{}
	}
	return *op.Attrs
}

// IsRange reports whether the operation addresses a range rather than a point.
func (op *Operation) IsRange() bool { return op.End != nil }

// Length is the number of sequence numbers the operation consumes.
func (op *Operation) Length() int { return max(op.OPL, 1) }

// SheetOp reports whether the operation addresses a spreadsheet sheet.
func (op *Operation) SheetOp() bool { return op.Sheet != nil }

func (op Operation) String() string {
	var b strings.Builder
	b.WriteString(op.Name)
	if op.Sheet != nil {
		fmt.Fprintf(&b, " sheet=%d", *op.Sheet)
	}
	if op.Start != nil {
		fmt.Fprintf(&b, " start=%v", op.Start)
	}
	if op.End != nil {
		fmt.Fprintf(&b, " end=%v", op.End)
	}
	if op.OSN != nil {
		fmt.Fprintf(&b, " osn=%d", *op.OSN)
	}
	return b.String()
}
