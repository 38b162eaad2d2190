package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimasry/go-docops/attrs"
	"github.com/alimasry/go-docops/tree"
)

// newTable builds a table with the given grid and rows of one plain cell per
// column.
func newTable(t *testing.T, rows int, grid ...float64) (*tree.Tree, tree.ID) {
	t.Helper()
	tr := tree.New()
	tb := tr.New(tree.KindTable)
	tb.Grid = grid
	tr.Append(tr.Root(), tb.ID)
	if rows > 0 {
		_, err := InsertRows(tr, tb.ID, 0, rows, nil, true)
		require.NoError(t, err)
	}
	return tr, tb.ID
}

func cells(tr *tree.Tree, table tree.ID, row int) []tree.ID {
	return tr.Get(Rows(tr, table)[row]).Children
}

func spans(tr *tree.Tree, table tree.ID, row int) []int {
	var out []int
	for _, c := range cells(tr, table, row) {
		out = append(out, Span(tr.Get(c)))
	}
	return out
}

// mergeFirstTwo makes the first cell of row 0 span two columns.
func mergeFirstTwo(t *testing.T, tr *tree.Tree, table tree.ID) {
	t.Helper()
	tr.Delete(cells(tr, table, 0)[1])
	SetSpan(tr, cells(tr, table, 0)[0], 2)
	require.NoError(t, Check(tr, table))
}

func TestInsertRows(t *testing.T) {
	tr, tb := newTable(t, 2, 100, 200, 300)
	assert.Equal(t, []int{1, 1, 1}, spans(tr, tb, 1))
	require.NoError(t, Check(tr, tb))

	t.Run("reference row", func(t *testing.T) {
		mergeFirstTwo(t, tr, tb)
		first := cells(tr, tb, 0)[0]
		para := tr.Get(first).Children[0]
		run := tr.New(tree.KindTextRun)
		run.Text = "copied?"
		tr.Append(para, run.ID)

		rows, err := InsertRows(tr, tb, 1, 2, new(int), false)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, []int{2, 1}, spans(tr, tb, 1))
		assert.Equal(t, []int{2, 1}, spans(tr, tb, 2))

		copied := tr.Get(cells(tr, tb, 1)[0])
		assert.Empty(t, tr.Get(copied.Children[0]).Children, "text is never copied")
		assert.NoError(t, Check(tr, tb))
	})

	t.Run("bare rows", func(t *testing.T) {
		rows, err := InsertRows(tr, tb, 0, 0, nil, false)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Empty(t, tr.Get(rows[0]).Children)
		assert.Error(t, Check(tr, tb), "a bare row does not cover the grid")
		assert.NoError(t, CheckBounded(tr, tb))
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := InsertRows(tr, tb, 9, 1, nil, true)
		assert.ErrorIs(t, err, tree.ErrOutOfRange)
		ref := 42
		_, err = InsertRows(tr, tb, 0, 1, &ref, true)
		assert.ErrorIs(t, err, tree.ErrOutOfRange)
	})
}

func TestInsertColumn(t *testing.T) {
	t.Run("spanning cells grow", func(t *testing.T) {
		tr, tb := newTable(t, 2, 100, 200, 300)
		mergeFirstTwo(t, tr, tb)

		require.NoError(t, InsertColumn(tr, tb, 1, nil, Before))
		assert.Equal(t, []float64{100, 200, 200, 300}, tr.Get(tb).Grid)
		assert.Equal(t, []int{3, 1}, spans(tr, tb, 0))
		assert.Equal(t, []int{1, 1, 1, 1}, spans(tr, tb, 1))
		assert.NoError(t, Check(tr, tb))
	})

	t.Run("behind the last column", func(t *testing.T) {
		tr, tb := newTable(t, 1, 100, 200)
		require.NoError(t, InsertColumn(tr, tb, 1, []float64{100, 150, 50}, Behind))
		assert.Equal(t, []float64{100, 150, 50}, tr.Get(tb).Grid)
		assert.Len(t, cells(tr, tb, 0), 3)
		assert.NoError(t, Check(tr, tb))
	})

	t.Run("new cells copy attributes", func(t *testing.T) {
		tr, tb := newTable(t, 1, 100)
		first := cells(tr, tb, 0)[0]
		tr.Mut(first).Inline = attrs.Map{attrs.Cell: {"fill": "red"}}

		require.NoError(t, InsertColumn(tr, tb, 0, nil, ""))
		added := tr.Get(cells(tr, tb, 0)[0])
		assert.Equal(t, "red", added.Inline.String(attrs.Cell, "fill"))
		assert.NotEqual(t, first, added.ID)
	})

	t.Run("short rows are completed", func(t *testing.T) {
		tr, tb := newTable(t, 2, 100, 200)
		tr.Delete(cells(tr, tb, 1)[1])
		bare, err := InsertRows(tr, tb, 2, 1, nil, false)
		require.NoError(t, err)

		require.NoError(t, InsertColumn(tr, tb, 1, nil, Behind))
		assert.Equal(t, []int{1, 1, 1}, spans(tr, tb, 1))
		assert.Empty(t, tr.Get(bare[0]).Children, "rows without cells are left alone")
		assert.NoError(t, CheckBounded(tr, tb))
	})

	t.Run("invalid", func(t *testing.T) {
		tr, tb := newTable(t, 1, 100, 200)
		assert.ErrorIs(t, InsertColumn(tr, tb, 2, nil, Before), ErrBadGrid)
		assert.ErrorIs(t, InsertColumn(tr, tb, 0, nil, "sideways"), ErrBadGrid)
		assert.ErrorIs(t, InsertColumn(tr, tb, 0, []float64{1, 2}, Before), ErrBadGrid)
		assert.Equal(t, []float64{100, 200}, tr.Get(tb).Grid)
	})
}

func TestDeleteColumns(t *testing.T) {
	tr, tb := newTable(t, 2, 100, 200, 300, 400)
	mergeFirstTwo(t, tr, tb)
	SetSpan(tr, cells(tr, tb, 0)[0], 3)
	tr.Delete(cells(tr, tb, 0)[1])
	require.NoError(t, Check(tr, tb))

	empty, err := DeleteColumns(tr, tb, 0, 1)
	require.NoError(t, err)
	assert.False(t, empty)
	assert.Equal(t, []float64{300, 400}, tr.Get(tb).Grid)
	assert.Equal(t, []int{1, 1}, spans(tr, tb, 0))
	assert.Equal(t, []int{1, 1}, spans(tr, tb, 1))

	_, err = DeleteColumns(tr, tb, 1, 2)
	assert.ErrorIs(t, err, ErrBadGrid)

	empty, err = DeleteColumns(tr, tb, 0, 1)
	require.NoError(t, err)
	assert.True(t, empty)
	assert.Empty(t, Rows(tr, tb), "rows without cells are deleted")
}

func TestInsertCells(t *testing.T) {
	tr, tb := newTable(t, 1, 100, 200)
	row := Rows(tr, tb)[0]
	tr.Delete(cells(tr, tb, 0)[1])

	added, err := InsertCells(tr, row, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, added[0], cells(tr, tb, 0)[1])

	_, err = InsertCells(tr, row, 0, 1)
	assert.ErrorIs(t, err, tree.ErrStructure, "the row would cover three columns")

	_, err = InsertCells(tr, row, 7, 1)
	assert.ErrorIs(t, err, tree.ErrOutOfRange)
}

func TestDeleteCells(t *testing.T) {
	tr, tb := newTable(t, 2, 100, 200, 300)
	row := Rows(tr, tb)[0]
	first, last := cells(tr, tb, 0)[0], cells(tr, tb, 0)[2]

	require.NoError(t, DeleteCells(tr, row, 1, 1))
	assert.Equal(t, []int{2, 1}, spans(tr, tb, 0), "the cell before takes the columns")
	assert.NoError(t, Check(tr, tb))

	require.NoError(t, DeleteCells(tr, row, 0, 0))
	assert.Equal(t, []tree.ID{last}, cells(tr, tb, 0))
	assert.Nil(t, tr.Get(first))
	assert.Equal(t, []int{3}, spans(tr, tb, 0), "at the start of the row the cell after takes them")
	assert.NoError(t, Check(tr, tb))

	assert.ErrorIs(t, DeleteCells(tr, row, 1, 1), tree.ErrOutOfRange)

	require.NoError(t, DeleteCells(tr, row, 0, 0))
	assert.Len(t, Rows(tr, tb), 1, "a row without cells is deleted")
	assert.NoError(t, Check(tr, tb))
}

func TestDeleteRows(t *testing.T) {
	tr, tb := newTable(t, 4, 100)
	keep := Rows(tr, tb)[3]

	require.NoError(t, DeleteRows(tr, tb, 0, 2))
	assert.Equal(t, []tree.ID{keep}, Rows(tr, tb))
	assert.ErrorIs(t, DeleteRows(tr, tb, 0, 1), tree.ErrOutOfRange)
}

func TestSetGrid(t *testing.T) {
	tr, tb := newTable(t, 1, 100, 200)
	require.NoError(t, SetGrid(tr, tb, []float64{50, 250}))
	assert.Equal(t, []float64{50, 250}, tr.Get(tb).Grid)
	assert.ErrorIs(t, SetGrid(tr, tb, []float64{300}), tree.ErrStructure)

	bare, tb2 := newTable(t, 0)
	require.NoError(t, SetGrid(bare, tb2, []float64{1, 2, 3}))
	assert.Len(t, bare.Get(tb2).Grid, 3)
}

func TestGridValue(t *testing.T) {
	g, err := GridValue([]any{1000, 2500.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{1000, 2500.5}, g)

	_, err = GridValue([]any{"wide"})
	assert.ErrorIs(t, err, ErrBadGrid)
	_, err = GridValue("wide")
	assert.ErrorIs(t, err, ErrBadGrid)

	assert.Equal(t, []any{1000.0, 2500.5}, GridJSON(g))
}
