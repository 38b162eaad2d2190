package style

import (
	"github.com/alimasry/go-docops/attrs"
	"github.com/alimasry/go-docops/tree"
)

// FamilyOf returns the style family of a component kind.
func FamilyOf(k tree.Kind) attrs.Family {
	switch k {
	case tree.KindParagraph, tree.KindHeading:
		return attrs.Paragraph
	case tree.KindTextRun, tree.KindTab, tree.KindHardBreak, tree.KindField, tree.KindBookmark:
		return attrs.Character
	case tree.KindTable:
		return attrs.Table
	case tree.KindRow:
		return attrs.Row
	case tree.KindCell:
		return attrs.Cell
	case tree.KindDrawing:
		return attrs.Drawing
	case tree.KindSheet:
		return attrs.Sheet
	}
	return ""
}

// Effective resolves the attributes in force on a component: the default
// style of its family, its style chain, then its inline attributes. Inline
// content first inherits everything its paragraph resolves to.
func (r *Registry) Effective(t *tree.Tree, id tree.ID) (attrs.Map, error) {
	c := t.Get(id)
	base := attrs.Map{}
	if p := t.Get(c.Parent); p != nil && p.Kind.IsParagraph() {
		var err error
		if base, err = r.Effective(t, p.ID); err != nil {
			return nil, err
		}
	}
	own, err := r.Resolve(FamilyOf(c.Kind), c.StyleID)
	if err != nil {
		return nil, err
	}
	return base.Merge(own).Merge(c.Inline), nil
}

// Direct splits the formatting of a component into its named style and the
// direct attributes held by automatic styles and inline overrides.
func (r *Registry) Direct(c *tree.Component) (named string, direct attrs.Map, err error) {
	direct = attrs.Map{}
	if c.StyleID != "" {
		if named, direct, err = r.Split(c.StyleID); err != nil {
			return "", nil, err
		}
	}
	return named, direct.Merge(c.Inline), nil
}
