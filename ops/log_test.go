package ops

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimasry/go-docops/tree"
)

func load(t *testing.T, src string) []Operation {
	t.Helper()
	log, err := LoadLog(strings.NewReader(src))
	require.NoError(t, err)
	return log
}

func TestLoadLog(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		log := load(t, `[
			// comments and trailing commas are fine
			{name: "insertParagraph", start: 0},
			{name: "insertText", start: [0, 0], text: "hi", osn: 4},
		]`)
		require.Len(t, log, 2)
		assert.Equal(t, tree.Path{0}, log[0].Start)
		assert.Equal(t, "hi", log[1].Text)
		require.NotNil(t, log[1].OSN)
		assert.Equal(t, 4, *log[1].OSN)
	})

	t.Run("object", func(t *testing.T) {
		log := load(t, `{operations: [{name: "noOp"}]}`)
		assert.Equal(t, []Operation{{Name: NoOp}}, log)
	})

	t.Run("object without operations", func(t *testing.T) {
		_, err := LoadLog(strings.NewReader(`{ops: []}`))
		assert.ErrorContains(t, err, "operations")
	})

	t.Run("bad syntax", func(t *testing.T) {
		_, err := LoadLog(strings.NewReader(`[{name: }]`))
		assert.Error(t, err)

		_, err = LoadLog(strings.NewReader(`[{name: 'noOp'}]`))
		assert.Error(t, err, "strings need double quotes")
	})
}

func TestParseLog(t *testing.T) {
	log, err := ParseLog([]byte(`[{"name": "setCellContents", "sheet": 0, "start": [1, 2], "contents": [[{"value": 3}, {"value": null, "repeat": 2}]]}]`))
	require.NoError(t, err)
	require.Len(t, log, 1)

	op := log[0]
	assert.True(t, op.SheetOp())
	require.Len(t, op.Contents, 1)
	assert.True(t, op.Contents[0][0].Value.IsSet())
	assert.True(t, op.Contents[0][1].Value.IsClear())
	assert.Equal(t, 2, op.Contents[0][1].Count())
	assert.Equal(t, 1, op.Contents[0][0].Count())

	_, err = ParseLog([]byte(`[{name: "noOp"}]`))
	assert.Error(t, err, "strict JSON only")
}

func TestOperation(t *testing.T) {
	op := Operation{Name: InsertText, Start: tree.Path{0, 3}, OSN: Ptr(7)}
	assert.Equal(t, "insertText start=[0 3] osn=7", op.String())
	assert.False(t, op.IsRange())
	assert.Equal(t, 1, op.Length())
	assert.True(t, op.Patch().IsZero())

	op.OPL = 3
	assert.Equal(t, 3, op.Length())
}

func TestCanonicalize(t *testing.T) {
	log := load(t, `[
		{name: "insertParagraph", start: [0], osn: 0},
		{name: "insertText", start: [0, 0], text: "ab", osn: 1},
		{name: "insertText", start: [0, 2], text: "cd", osn: 2},
		{name: "insertText", start: [0, 4], text: "e", attrs: {character: {bold: true}}, osn: 3},
		{name: "noOp", osn: 4},
		{name: "setAttributes", start: [0, 0], end: [0, 1], attrs: {}, osn: 5},
		{name: "insertText", start: [0, 5], text: "f", osn: 6},
		{name: "insertText", start: [0, 6], text: "g", osn: 9},
	]`)

	got := Canonicalize(log)
	require.Len(t, got, 6)
	for _, op := range got {
		assert.Nil(t, op.OSN)
	}
	assert.Equal(t, "abcd", got[1].Text)
	assert.Equal(t, "e", got[2].Text, "different attributes")
	assert.Equal(t, SetAttributes, got[3].Name)
	assert.Nil(t, got[3].Attrs)
	assert.Equal(t, "f", got[4].Text)
	assert.Equal(t, "g", got[5].Text, "sequence numbers are not contiguous")

	require.NotNil(t, log[1].OSN, "the input is not modified")
	assert.Equal(t, "ab", log[1].Text)
}

func TestEquivalent(t *testing.T) {
	split := load(t, `[
		{name: "insertParagraph", start: [0]},
		{name: "insertText", start: [0, 0], text: "hé"},
		{name: "insertText", start: [0, 2], text: "llo"},
	]`)
	whole := load(t, `[
		{start: [0], name: "insertParagraph", osn: 12},
		{name: "insertText", text: "héllo", start: [0, 0]},
	]`)
	other := load(t, `[
		{name: "insertParagraph", start: [0]},
		{name: "insertText", start: [0, 0], text: "hallo"},
	]`)

	assert.True(t, Equivalent(split, whole))
	assert.Empty(t, Diff(split, whole))
	assert.False(t, Equivalent(whole, other))
	assert.Contains(t, Diff(whole, other), "hallo")

	a, err := Fingerprint(split)
	require.NoError(t, err)
	b, err := Fingerprint(whole)
	require.NoError(t, err)
	c, err := Fingerprint(other)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
