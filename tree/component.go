// Package tree is the component arena of one document: components addressed by
// stable ids, the path resolver operations use to find them, and the journal that
// makes a sequence of mutations atomic.
package tree

import (
	"slices"

	"github.com/alimasry/go-docops/attrs"
)

// ID identifies a component for the lifetime of its tree. Zero is no component.
type ID uint32

// Kind tags a component variant.
type Kind uint8

const (
	KindDocument Kind = iota + 1
	KindParagraph
	KindHeading
	KindTextRun
	KindTab
	KindHardBreak
	KindTable
	KindRow
	KindCell
	KindList
	KindListItem
	KindSheet
	KindDrawing
	KindField
	KindBookmark
	KindForeign
)

var kindNames = map[Kind]string{
	KindDocument:  "document",
	KindParagraph: "paragraph",
	KindHeading:   "heading",
	KindTextRun:   "textRun",
	KindTab:       "tab",
	KindHardBreak: "hardBreak",
	KindTable:     "table",
	KindRow:       "row",
	KindCell:      "cell",
	KindList:      "list",
	KindListItem:  "listItem",
	KindSheet:     "sheet",
	KindDrawing:   "drawing",
	KindField:     "field",
	KindBookmark:  "bookmark",
	KindForeign:   "foreign",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsParagraph reports whether k holds inline content.
func (k Kind) IsParagraph() bool { return k == KindParagraph || k == KindHeading }

// IsWrapper reports whether k is a list wrapper, which is transparent to paths.
func (k Kind) IsWrapper() bool { return k == KindList || k == KindListItem }

// holdsBlocks reports whether the logical children of k are blocks.
func (k Kind) holdsBlocks() bool {
	switch k {
	case KindDocument, KindCell, KindDrawing, KindList, KindListItem:
		return true
	}
	return false
}

// Blob is foreign content kept opaque so it round-trips untouched.
type Blob struct {
	Name     string
	Data     []byte
	Clonable bool
}

// Column describes a run of equal spreadsheet columns.
type Column struct {
	Repeat  int
	StyleID string
	Attrs   attrs.Map
}

// Component is one node of the document tree. Only the fields that matter to
// its Kind are used.
type Component struct {
	ID       ID
	Kind     Kind
	Parent   ID
	Children []ID

	StyleID string
	Inline  attrs.Map

	// Repeat is the repeat count of sheet rows and cells; zero means one.
	Repeat int

	Text string // text runs, field representation
	Name string // sheet name, bookmark id, field type, drawing type

	Grid []float64 // table column widths

	Value   any // sheet cell value
	Formula string
	Columns []Column // sheet columns

	ListStyleID string // list wrappers
	ListLevel   int

	Blob *Blob
}

// Count returns the repeat count, at least one.
func (c *Component) Count() int {
	if c.Repeat < 1 {
		return 1
	}
	return c.Repeat
}

// Width returns the number of character positions c occupies in a paragraph.
func (c *Component) Width() int {
	if c.Kind == KindTextRun {
		return len([]rune(c.Text))
	}
	return 1
}

// Attrs returns the inline attributes, never nil.
func (c *Component) Attrs() attrs.Map {
	if c.Inline == nil {
		return attrs.Map{}
	}
	return c.Inline
}

func (c *Component) clone() *Component {
	cp := *c
	cp.Children = slices.Clone(c.Children)
	cp.Inline = c.Inline.Clone()
	cp.Grid = slices.Clone(c.Grid)
	if c.Columns != nil {
		cp.Columns = make([]Column, len(c.Columns))
		for i, col := range c.Columns {
			col.Attrs = col.Attrs.Clone()
			cp.Columns[i] = col
		}
	}
	return &cp
}
