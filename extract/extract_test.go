package extract_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimasry/go-docops/engine"
	"github.com/alimasry/go-docops/extract"
	"github.com/alimasry/go-docops/ops"
	"github.com/alimasry/go-docops/tree"
)

func load(t *testing.T, src string) *engine.Document {
	t.Helper()
	log, err := ops.LoadLog(strings.NewReader(src))
	require.NoError(t, err)
	d, err := engine.Load(log)
	require.NoError(t, err)
	return d
}

const textDocument = `[
	{name: "insertFontDescription", fontName: "Liberation Serif", attrs: {character: {family: "serif"}}},
	{name: "insertStyleSheet", styleId: "Standard", type: "paragraph", default: true, attrs: {paragraph: {marginBottom: 200}}},
	{name: "insertStyleSheet", styleId: "Heading1", type: "paragraph", parent: "Standard", attrs: {paragraph: {outlineLevel: 1}}},
	{name: "insertStyleSheet", styleId: "Strong", type: "character", attrs: {character: {bold: true}}},
	{name: "insertListStyle", listStyleId: "L1", listDefinition: {listLevel0: {numberFormat: "decimal"}}},
	{name: "insertParagraph", start: [0], attrs: {styleId: "Heading1"}},
	{name: "insertText", start: [0, 0], text: "Title"},
	{name: "insertParagraph", start: [1], attrs: {paragraph: {alignment: "justify"}}},
	{name: "insertText", start: [1, 0], text: "plain bold italic"},
	{name: "setAttributes", start: [1, 6], end: [1, 9], attrs: {styleId: "Strong"}},
	{name: "setAttributes", start: [1, 11], end: [1, 16], attrs: {character: {italic: true}}},
	{name: "insertTab", start: [1, 5]},
	{name: "insertField", start: [1, 0], type: "page-number", representation: "3"},
	{name: "insertBookmark", start: [1, 3], id: "b1", anchorName: "here"},
	{name: "insertParagraph", start: [2], attrs: {paragraph: {listStyleId: "L1", listLevel: 0}}},
	{name: "insertText", start: [2, 0], text: "item"},
	{name: "insertParagraph", start: [3], attrs: {paragraph: {listStyleId: "L1", listLevel: 0}}},
	{name: "setAttributes", start: [3, 0], end: [3, 0], attrs: {character: {bold: true}}},
	{name: "insertParagraph", start: [4]},
	{name: "insertText", start: [4, 0], text: "ab"},
	{name: "insertDrawing", start: [4, 1], type: "shape", attrs: {drawing: {width: 500}}},
	{name: "insertParagraph", start: [4, 1, 0]},
	{name: "insertText", start: [4, 1, 0, 0], text: "inside"},
]`

const tableDocument = `[
	{name: "insertTable", start: [0], attrs: {table: {tableGrid: [1000, 2000, 1000, 500], width: "auto"}}},
	{name: "insertRows", start: [0, 0], count: 2, attrs: {row: {height: 300}}},
	{name: "deleteColumns", start: [0], startGrid: 3},
	{name: "insertColumn", start: [0], gridPosition: 1, insertMode: "behind"},
	{name: "delete", start: [0, 0, 3]},
	{name: "setAttributes", start: [0, 0, 0], attrs: {cell: {gridSpan: 2, fillColor: "yellow"}}},
	{name: "insertText", start: [0, 0, 1, 0, 0], text: "cell"},
	{name: "insertParagraph", start: [0, 0, 1, 1], attrs: {paragraph: {alignment: "center"}}},
	{name: "insertText", start: [0, 0, 1, 1, 0], text: "second"},
	{name: "insertTable", start: [0, 0, 2, 0], attrs: {table: {tableGrid: [400]}}},
	{name: "insertRows", start: [0, 0, 2, 0, 0]},
	{name: "delete", start: [0, 0, 2, 1]},
	{name: "delete", start: [0, 1, 1, 0]},
	{name: "insertParagraph", start: [1]},
]`

const sheetDocument = `[
	{name: "insertStyleSheet", styleId: "Wide", type: "column", attrs: {column: {width: 4000}}},
	{name: "insertStyleSheet", styleId: "Money", type: "cell", attrs: {cell: {numberFormat: "0.00"}}},
	{name: "insertSheet", sheet: 0, sheetName: "Data", attrs: {sheet: {visible: true}}},
	{name: "insertSheet", sheet: 1, sheetName: "Summary"},
	{name: "setColumnAttributes", sheet: 0, start: [1], end: [2], attrs: {styleId: "Wide"}},
	{name: "setColumnAttributes", sheet: 0, start: 5, attrs: {column: {hidden: true}}},
	{name: "setRowAttributes", sheet: 0, start: [3], attrs: {row: {height: 500}}},
	{name: "fillCellRange", sheet: 0, start: [0, 0], end: [1, 4], value: 7},
	{name: "setCellContents", sheet: 0, start: [0, 5], contents: [[{value: "a"}, {formula: "=A1", repeat: 2, attrs: {styleId: "Money"}}]]},
	{name: "setCellContents", sheet: 1, start: [2, 2], contents: [[{value: true}], [{value: null, attrs: {cell: {fillColor: "red"}}}]]},
	{name: "insertRows", sheet: 0, start: [1]},
]`

func TestOperations_Fixpoint(t *testing.T) {
	tests := []struct {
		name string
		log  string
	}{
		{"text", textDocument},
		{"tables", tableDocument},
		{"sheets", sheetDocument},
		{"empty", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := load(t, tt.log)
			require.NoError(t, d.Validate())

			first, err := d.Extract()
			require.NoError(t, err)
			replayed, err := engine.Load(first)
			require.NoError(t, err)
			require.NoError(t, replayed.Validate())
			second, err := replayed.Extract()
			require.NoError(t, err)

			if diff := ops.Diff(first, second); diff != "" {
				t.Errorf("extraction is not stable (-first +second):\n%s", diff)
			}
			a, err := ops.Fingerprint(first)
			require.NoError(t, err)
			b, err := ops.Fingerprint(second)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}
}

func TestOperations_TextOrder(t *testing.T) {
	d := load(t, textDocument)
	log, err := d.Extract()
	require.NoError(t, err)

	var names []string
	for _, op := range log[:5] {
		names = append(names, op.Name)
	}
	want := []string{ops.InsertFontDescription, ops.InsertStyleSheet, ops.InsertStyleSheet, ops.InsertStyleSheet, ops.InsertListStyle}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("definitions (-want +got):\n%s", diff)
	}

	var texts []string
	for _, op := range log {
		if op.Name == ops.InsertText {
			texts = append(texts, op.Text)
		}
	}
	want = []string{"Title", "pl", "ain", " bold italic", "item", "a", "inside", "b"}
	if diff := cmp.Diff(want, texts); diff != "" {
		t.Errorf("inserted text (-want +got):\n%s", diff)
	}

	require.NoError(t, d.InternStyles())
	log, err = d.Extract()
	require.NoError(t, err)
	for _, op := range log {
		if op.Attrs == nil {
			continue
		}
		if id, ok := op.Attrs.StyleID.String(); ok {
			assert.False(t, d.Styles().IsAutomatic(id), "automatic style %s leaked into the log", id)
		}
	}
}

func TestOperations_ReproducesContent(t *testing.T) {
	d := load(t, textDocument)
	log, err := d.Extract()
	require.NoError(t, err)
	replayed, err := engine.Load(log)
	require.NoError(t, err)

	for _, p := range []tree.Path{{0}, {1}, {2}, {3}, {4}, {4, 1, 0}} {
		want, err := d.Tree().ResolveKind(p, tree.KindParagraph, tree.KindHeading)
		require.NoError(t, err)
		got, err := replayed.Tree().ResolveKind(p, tree.KindParagraph, tree.KindHeading)
		require.NoError(t, err)
		assert.Equal(t, want.Kind, got.Kind, "kind at %v", p)
		assert.Equal(t, d.Tree().PlainText(want.ID), replayed.Tree().PlainText(got.ID), "text at %v", p)

		we, err := d.Styles().Effective(d.Tree(), want.ID)
		require.NoError(t, err)
		ge, err := replayed.Styles().Effective(replayed.Tree(), got.ID)
		require.NoError(t, err)
		assert.True(t, we.Equal(ge), "paragraph attributes at %v: %v != %v", p, we, ge)
	}
	assert.Equal(t, d.ListLabels(), replayed.ListLabels())
}

func TestOperations_AfterInterning(t *testing.T) {
	d := load(t, textDocument)
	before, err := d.Extract()
	require.NoError(t, err)
	require.NoError(t, d.InternStyles())
	after, err := d.Extract()
	require.NoError(t, err)
	assert.Empty(t, ops.Diff(before, after))
}

func TestOperations_Foreign(t *testing.T) {
	d := load(t, `[{name: "insertParagraph", start: [0]}]`)
	tr := d.Tree()
	blob := tr.New(tree.KindForeign)
	blob.Blob = &tree.Blob{Name: "ext:thing", Clonable: true}
	tr.Append(tr.Root(), blob.ID)

	_, err := extract.Operations(tr, d.Styles(), d.Lists())
	assert.ErrorIs(t, err, extract.ErrForeign)
}
