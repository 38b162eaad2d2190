package style

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimasry/go-docops/attrs"
	"github.com/alimasry/go-docops/tree"
)

type refMap map[string]int

func (m refMap) StyleRefs(id string) int { return m[id] }

// headings builds a default paragraph style and a two-level heading chain.
func headings(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Insert(Sheet{
		ID: "Standard", Family: attrs.Paragraph, Default: true,
		Attrs: attrs.Map{
			attrs.Paragraph: {"alignment": "left", "indent": 0},
			attrs.Character: {"font": "Serif"},
		},
	}))
	require.NoError(t, r.Insert(Sheet{
		ID: "Heading", Family: attrs.Paragraph,
		Attrs: attrs.Map{
			attrs.Paragraph: {"alignment": "center"},
			attrs.Character: {"bold": true},
		},
	}))
	require.NoError(t, r.Insert(Sheet{
		ID: "Heading2", Family: attrs.Paragraph, Parent: "Heading",
		Attrs: attrs.Map{attrs.Character: {"size": 14}},
	}))
	return r
}

func TestRegistry_Insert(t *testing.T) {
	r := headings(t)

	assert.ErrorIs(t, r.Insert(Sheet{ID: "Heading", Family: attrs.Paragraph}), ErrDuplicate)
	assert.ErrorIs(t, r.Insert(Sheet{ID: "H3", Family: attrs.Paragraph, Parent: "Missing"}), ErrDangling)
	assert.ErrorIs(t, r.Insert(Sheet{ID: "Emphasis", Family: attrs.Character, Parent: "Heading"}), ErrFamily)
	assert.Error(t, r.Insert(Sheet{}))

	var se *StyleError
	err := r.Insert(Sheet{ID: "H3", Family: attrs.Paragraph, Parent: "Missing"})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Missing", se.ID)

	assert.Equal(t, "Standard", r.Default(attrs.Paragraph))
	assert.Empty(t, r.Default(attrs.Character))
}

func TestRegistry_Resolve(t *testing.T) {
	r := headings(t)

	got, err := r.Resolve(attrs.Paragraph, "Heading2")
	require.NoError(t, err)
	assert.True(t, got.Equal(attrs.Map{
		attrs.Paragraph: {"alignment": "center", "indent": 0},
		attrs.Character: {"font": "Serif", "bold": true, "size": 14},
	}), "%v", got)

	got, err = r.Resolve(attrs.Paragraph, "")
	require.NoError(t, err)
	assert.Equal(t, "left", got.String(attrs.Paragraph, "alignment"))

	_, err = r.Resolve(attrs.Paragraph, "Missing")
	assert.ErrorIs(t, err, ErrDangling)
}

func TestRegistry_Change(t *testing.T) {
	r := headings(t)

	err := r.Change("Heading", attrs.Patch{StyleID: attrs.Set("Heading2")}, "")
	assert.ErrorIs(t, err, ErrCyclic)

	var p attrs.Patch
	p.SetValue(attrs.Character, "bold", attrs.Clear())
	p.StyleID = attrs.Set("Standard")
	require.NoError(t, r.Change("Heading", p, "Heading 1"))

	s, _ := r.Get("Heading")
	assert.Equal(t, "Heading 1", s.Name)
	assert.Equal(t, "Standard", s.Parent)
	_, ok := s.Attrs.Get(attrs.Character, "bold")
	assert.False(t, ok)

	require.NoError(t, r.Change("Heading", attrs.Patch{StyleID: attrs.Clear()}, ""))
	s, _ = r.Get("Heading")
	assert.Empty(t, s.Parent)

	assert.ErrorIs(t, r.Change("Missing", attrs.Patch{}, ""), ErrDangling)
}

func TestRegistry_Delete(t *testing.T) {
	r := headings(t)

	require.NoError(t, r.Delete("Heading"))
	s, ok := r.Get("Heading2")
	require.True(t, ok)
	assert.Empty(t, s.Parent, "children move to the deleted style's parent")

	require.NoError(t, r.Delete("Standard"))
	assert.Empty(t, r.Default(attrs.Paragraph))
	assert.ErrorIs(t, r.Delete("Standard"), ErrDangling)
	assert.Len(t, r.Sheets(), 1)
}

func TestRegistry_Named(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Insert(Sheet{ID: "Body", Family: attrs.Paragraph}))
	require.NoError(t, r.Insert(Sheet{ID: "Base", Family: attrs.Paragraph}))
	_, err := r.InsertAutomatic(attrs.Paragraph, "Body", attrs.Map{attrs.Paragraph: {"indent": 1}})
	require.NoError(t, err)
	require.NoError(t, r.Change("Body", attrs.Patch{StyleID: attrs.Set("Base")}, ""))

	var ids []string
	for _, s := range r.Named() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"Base", "Body"}, ids)
	assert.Len(t, r.Sheets(), 3)
}

func TestRegistry_AutomaticStyles(t *testing.T) {
	r := headings(t)

	p1, err := r.InsertAutomatic(attrs.Paragraph, "Heading2", attrs.Map{attrs.Character: {"italic": true}})
	require.NoError(t, err)
	p2, err := r.InsertAutomatic(attrs.Paragraph, p1, attrs.Map{attrs.Character: {"size": 10}})
	require.NoError(t, err)
	assert.Equal(t, "P1", p1)
	assert.Equal(t, "P2", p2)
	assert.True(t, r.IsAutomatic(p1))
	assert.False(t, r.IsAutomatic("Heading2"))

	t.Run("split", func(t *testing.T) {
		named, direct, err := r.Split(p2)
		require.NoError(t, err)
		assert.Equal(t, "Heading2", named)
		assert.True(t, direct.Equal(attrs.Map{attrs.Character: {"italic": true, "size": 10}}), "%v", direct)
	})

	t.Run("intern reuses", func(t *testing.T) {
		id, err := r.Intern(attrs.Paragraph, "Heading2", attrs.Map{attrs.Character: {"italic": true}})
		require.NoError(t, err)
		assert.Equal(t, p1, id)

		id, err = r.Intern(attrs.Paragraph, "Heading", attrs.Map{attrs.Character: {"italic": true}})
		require.NoError(t, err)
		assert.Equal(t, "P3", id)
	})

	t.Run("shared styles are copied on write", func(t *testing.T) {
		var p attrs.Patch
		p.SetValue(attrs.Character, "italic", attrs.Set(false))

		id, err := r.SetAttributes(p1, p, refMap{p1: 2})
		require.NoError(t, err)
		assert.Equal(t, "P4", id)
		orig, _ := r.Get(p1)
		assert.Equal(t, true, orig.Attrs[attrs.Character]["italic"])
		cp, _ := r.Get(id)
		assert.Equal(t, false, cp.Attrs[attrs.Character]["italic"])
		assert.Equal(t, "Heading2", cp.Parent)

		id, err = r.SetAttributes(p1, p, refMap{p1: 1})
		require.NoError(t, err)
		assert.Equal(t, p1, id)
		assert.Equal(t, false, orig.Attrs[attrs.Character]["italic"])
	})

	t.Run("reparent", func(t *testing.T) {
		id, err := r.Reparent(p1, "Heading", refMap{p1: 1})
		require.NoError(t, err)
		assert.Equal(t, p1, id)

		_, err = r.Reparent(p1, "Missing", nil)
		assert.ErrorIs(t, err, ErrDangling)
	})

	t.Run("prune", func(t *testing.T) {
		// P1 survives as the parent of P2
		n := r.Prune(refMap{p2: 1})
		assert.Equal(t, 2, n)
		assert.True(t, r.Has(p1))
		assert.False(t, r.Has("P3"))
		assert.False(t, r.Has("P4"))
	})
}

func TestRegistry_Clone(t *testing.T) {
	r := headings(t)
	r.InsertFont(Font{Name: "Serif"})
	r.InsertFont(Font{Name: "Arial", Attrs: attrs.Map{"font": {"family": "swiss"}}})

	cp := r.Clone()
	var p attrs.Patch
	p.SetValue(attrs.Character, "size", attrs.Set(20))
	require.NoError(t, cp.Change("Heading2", p, ""))
	require.NoError(t, cp.Delete("Standard"))

	s, _ := r.Get("Heading2")
	assert.Equal(t, 14, s.Attrs[attrs.Character]["size"])
	assert.Equal(t, "Standard", r.Default(attrs.Paragraph))

	fonts := r.Fonts()
	require.Len(t, fonts, 2)
	assert.Equal(t, "Arial", fonts[0].Name)
	assert.Equal(t, "Serif", fonts[1].Name)
	assert.Len(t, cp.Fonts(), 2)
}

func TestRegistry_Effective(t *testing.T) {
	r := headings(t)
	tr := tree.New()

	para := tr.New(tree.KindHeading)
	para.StyleID = "Heading2"
	para.Inline = attrs.Map{attrs.Paragraph: {"indent": 5}}
	tr.Append(tr.Root(), para.ID)

	run := tr.New(tree.KindTextRun)
	run.Text = "Title"
	run.Inline = attrs.Map{attrs.Character: {"size": 12}}
	tr.Append(para.ID, run.ID)

	got, err := r.Effective(tr, run.ID)
	require.NoError(t, err)
	assert.True(t, got.Equal(attrs.Map{
		attrs.Paragraph: {"alignment": "center", "indent": 5},
		attrs.Character: {"font": "Serif", "bold": true, "size": 12},
	}), "%v", got)

	named, direct, err := r.Direct(para)
	require.NoError(t, err)
	assert.Equal(t, "Heading2", named)
	assert.True(t, direct.Equal(attrs.Map{attrs.Paragraph: {"indent": 5}}))

	para.StyleID = "Missing"
	_, err = r.Effective(tr, run.ID)
	assert.ErrorIs(t, err, ErrDangling)
}

func TestFamilyOf(t *testing.T) {
	assert.Equal(t, attrs.Paragraph, FamilyOf(tree.KindHeading))
	assert.Equal(t, attrs.Character, FamilyOf(tree.KindTab))
	assert.Equal(t, attrs.Cell, FamilyOf(tree.KindCell))
	assert.Equal(t, attrs.Family(""), FamilyOf(tree.KindList))
}
