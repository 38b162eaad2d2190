package engine

import (
	"github.com/alimasry/go-docops/attrs"
	"github.com/alimasry/go-docops/list"
	"github.com/alimasry/go-docops/ops"
	"github.com/alimasry/go-docops/style"
	"github.com/alimasry/go-docops/tree"
)

func (d *Document) insertStyleSheet(op *ops.Operation) error {
	if op.StyleID == "" {
		return missing("styleId")
	}
	if op.Type == "" {
		return missing("type")
	}
	p := op.Patch()
	parent := op.Parent
	if s, ok := p.StyleID.String(); ok && parent == "" {
		parent = s
	}
	return d.styles.Insert(style.Sheet{
		ID:         op.StyleID,
		Family:     attrs.Family(op.Type),
		Name:       op.StyleName,
		Parent:     parent,
		Attrs:      attrs.Map{}.Patch(p.WithoutStyle()),
		Hidden:     op.Hidden,
		Default:    op.Default,
		UIPriority: op.UIPriority,
	})
}

func (d *Document) changeStyleSheet(op *ops.Operation) error {
	if op.StyleID == "" {
		return missing("styleId")
	}
	p := op.Patch()
	if op.Parent != "" {
		p.StyleID = attrs.Set(op.Parent)
	}
	if err := d.styles.Change(op.StyleID, p, op.StyleName); err != nil {
		return err
	}
	return d.refreshParagraphs()
}

// deleteStyleSheet removes a style; components using it fall back to its
// parent.
func (d *Document) deleteStyleSheet(op *ops.Operation) error {
	if op.StyleID == "" {
		return missing("styleId")
	}
	s, ok := d.styles.Get(op.StyleID)
	if !ok {
		return &style.StyleError{ID: op.StyleID, Err: style.ErrDangling}
	}
	parent := s.Parent
	d.tree.Walk(d.tree.Root(), func(c *tree.Component) bool {
		if c.StyleID == op.StyleID {
			d.tree.Mut(c.ID).StyleID = parent
		}
		for i, col := range c.Columns {
			if col.StyleID == op.StyleID {
				d.tree.Mut(c.ID).Columns[i].StyleID = parent
			}
		}
		return true
	})
	if err := d.styles.Delete(op.StyleID); err != nil {
		return err
	}
	return d.refreshParagraphs()
}

// refreshParagraphs re-derives headings and list grouping after a style
// change that may have altered inherited paragraph attributes.
func (d *Document) refreshParagraphs() error {
	var paras []tree.ID
	d.tree.Walk(d.tree.Root(), func(c *tree.Component) bool {
		if c.Kind.IsParagraph() {
			paras = append(paras, c.ID)
		}
		return true
	})
	for _, id := range paras {
		if err := d.paragraphChanged(id); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) insertListStyle(op *ops.Operation) error {
	if op.ListStyleID == "" {
		return missing("listStyleId")
	}
	def := list.Definition{ID: op.ListStyleID}
	if op.ListDefinition != nil {
		def.Levels = op.ListDefinition.Levels
	}
	return d.lists.Insert(def)
}

// deleteListStyle removes a list style nothing refers to any more.
func (d *Document) deleteListStyle(op *ops.Operation) error {
	if op.ListStyleID == "" {
		return missing("listStyleId")
	}
	for _, s := range d.styles.Sheets() {
		if s.Attrs.String(attrs.Paragraph, "listStyleId") == op.ListStyleID {
			return invalid("list style %q is used by style %q", op.ListStyleID, s.ID)
		}
	}
	var err error
	d.tree.Walk(d.tree.Root(), func(c *tree.Component) bool {
		if err != nil || !c.Kind.IsParagraph() {
			return err == nil
		}
		var eff attrs.Map
		if eff, err = d.styles.Effective(d.tree, c.ID); err != nil {
			return false
		}
		if eff.String(attrs.Paragraph, "listStyleId") == op.ListStyleID {
			err = invalid("list style %q is used by paragraph %v", op.ListStyleID, d.tree.PathOf(c.ID))
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	return d.lists.Delete(op.ListStyleID)
}

func (d *Document) insertFontDescription(op *ops.Operation) error {
	if op.FontName == "" {
		return missing("fontName")
	}
	d.styles.InsertFont(style.Font{Name: op.FontName, Attrs: attrs.Map{}.Patch(op.Patch().WithoutStyle())})
	return nil
}
