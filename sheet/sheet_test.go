package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimasry/go-docops/tree"
)

var small = Limits{Rows: 8, Cols: 4}

func newSheet() (*tree.Tree, tree.ID) {
	tr := tree.New()
	sh := tr.New(tree.KindSheet)
	tr.Append(tr.Root(), sh.ID)
	return tr, sh.ID
}

func counts(tr *tree.Tree, ids []tree.ID) []int {
	var out []int
	for _, id := range ids {
		out = append(out, tr.Get(id).Count())
	}
	return out
}

func TestLimits_Check(t *testing.T) {
	assert.NoError(t, small.Check(Range{Col0: 0, Row0: 0, Col1: 3, Row1: 7}))
	assert.ErrorIs(t, small.Check(Range{Col1: 4}), ErrLimit)
	assert.ErrorIs(t, small.Check(Range{Row1: 8}), ErrLimit)
	assert.ErrorIs(t, small.Check(Range{Col0: 2, Col1: 1}), ErrLimit)
	assert.ErrorIs(t, small.Check(Range{Row0: -1}), ErrLimit)
	assert.Equal(t, "[1,2]..[3,4]", Range{1, 2, 3, 4}.String())
}

func TestRowsAndCells(t *testing.T) {
	tr, sh := newSheet()

	rs := Rows(tr, sh, 2, 4)
	require.Len(t, rs, 1)
	assert.Equal(t, 3, tr.Get(rs[0]).Count())
	assert.Equal(t, []int{2, 3}, counts(tr, tr.Children(sh)))

	cs := Cells(tr, rs[0], 1, 1)
	require.Len(t, cs, 1)
	assert.Equal(t, []int{1, 1}, counts(tr, tr.Get(rs[0]).Children))

	t.Run("runs are not expanded", func(t *testing.T) {
		calls := 0
		err := Each(tr, sh, Range{Col0: 0, Row0: 0, Col1: 1, Row1: 1}, func(row, cell tree.ID) error {
			calls++
			assert.Equal(t, 2, tr.Get(row).Count())
			assert.Equal(t, 2, tr.Get(cell).Count())
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("split runs keep their content", func(t *testing.T) {
		row := Rows(tr, sh, 0, 0)[0]
		cell := Cells(tr, row, 0, 0)[0]
		tr.Mut(cell).Value = "x"

		assert.Equal(t, []int{1, 1, 3}, counts(tr, tr.Children(sh)))
		next := tr.Children(sh)[1]
		require.Len(t, tr.Get(next).Children, 1)
		assert.Nil(t, tr.Get(tr.Get(next).Children[0]).Value)
	})
}

func TestInsertRows(t *testing.T) {
	tr, sh := newSheet()
	Rows(tr, sh, 0, 4)

	require.NoError(t, InsertRows(tr, sh, 3, 2, small))
	assert.Equal(t, []int{3, 2, 2}, counts(tr, tr.Children(sh)))

	require.NoError(t, InsertRows(tr, sh, 0, 3, small))
	assert.Equal(t, small.Rows, Count(tr, tr.Children(sh)), "rows pushed past the limit are dropped")
	assert.Equal(t, []int{3, 3, 2}, counts(tr, tr.Children(sh)))

	assert.ErrorIs(t, InsertRows(tr, sh, small.Rows, 1, small), ErrLimit)
	assert.ErrorIs(t, InsertRows(tr, sh, 0, 0, small), ErrLimit)
}

func TestDeleteRows(t *testing.T) {
	tr, sh := newSheet()
	Rows(tr, sh, 0, 7)

	require.NoError(t, DeleteRows(tr, sh, 1, 6, small))
	assert.Equal(t, 2, Count(tr, tr.Children(sh)))

	require.NoError(t, DeleteRows(tr, sh, 5, 7, small), "rows past the end are ignored")
	assert.Equal(t, 2, Count(tr, tr.Children(sh)))

	assert.ErrorIs(t, DeleteRows(tr, sh, 0, 100, small), ErrLimit)
}

func TestColumns(t *testing.T) {
	tr, sh := newSheet()
	row := Rows(tr, sh, 0, 0)[0]
	Cells(tr, row, 0, 2)

	t.Run("insert", func(t *testing.T) {
		require.NoError(t, InsertColumns(tr, sh, 1, 2, small))
		assert.Equal(t, []int{1, 2, 1}, counts(tr, tr.Get(row).Children), "trimmed to the column limit")
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, DeleteColumns(tr, sh, 0, 1, small))
		assert.Equal(t, 2, Count(tr, tr.Get(row).Children))
	})

	t.Run("descriptors", func(t *testing.T) {
		idx := Columns(tr, sh, 1, 2)
		require.Equal(t, []int{1}, idx)
		tr.Mut(sh).Columns[1].StyleID = "co1"
		assert.Len(t, tr.Get(sh).Columns, 2)

		require.NoError(t, InsertColumns(tr, sh, 1, 1, small))
		cols := tr.Get(sh).Columns
		require.Len(t, cols, 3)
		assert.Empty(t, cols[1].StyleID)
		assert.Equal(t, "co1", cols[2].StyleID)
		assert.Equal(t, 2, cols[2].Repeat)

		require.NoError(t, DeleteColumns(tr, sh, 1, 1, small))
		cols = tr.Get(sh).Columns
		require.Len(t, cols, 2)
		assert.Equal(t, "co1", cols[1].StyleID)
	})
}

func TestCompact(t *testing.T) {
	tr, sh := newSheet()
	for r := range 3 {
		row := Rows(tr, sh, r, r)[0]
		if r == 2 {
			continue
		}
		cell := Cells(tr, row, 0, 1)[0]
		tr.Mut(cell).Value = 1.0
		Cells(tr, row, 2, 2)
	}
	Columns(tr, sh, 0, 3)
	idx := Columns(tr, sh, 1, 1)[0]
	tr.Mut(sh).Columns[idx].StyleID = "co1"

	Compact(tr, sh)

	rows := tr.Children(sh)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, tr.Get(rows[0]).Count())
	kids := tr.Get(rows[0]).Children
	require.Len(t, kids, 1)
	assert.Equal(t, 2, tr.Get(kids[0]).Count())
	assert.Equal(t, 1.0, tr.Get(kids[0]).Value)

	cols := tr.Get(sh).Columns
	require.Len(t, cols, 2)
	assert.Equal(t, "co1", cols[1].StyleID)
}

func TestSameCell(t *testing.T) {
	a := &tree.Component{Kind: tree.KindCell, Value: 2.0, Formula: "=1+1"}
	b := &tree.Component{Kind: tree.KindCell, Value: 2.0, Formula: "=1+1", Repeat: 4}
	assert.True(t, SameCell(a, b))

	b.StyleID = "ce1"
	assert.False(t, SameCell(a, b))
	assert.False(t, IsEmptyCell(a))
	assert.True(t, IsEmptyCell(&tree.Component{Kind: tree.KindCell}))
}
