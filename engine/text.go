package engine

import (
	"slices"

	"github.com/alimasry/go-docops/attrs"
	"github.com/alimasry/go-docops/ops"
	"github.com/alimasry/go-docops/table"
	"github.com/alimasry/go-docops/tree"
)

func (d *Document) insertParagraph(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	pos, err := d.tree.Locate(op.Start)
	if err != nil {
		return err
	}
	if err := d.blockContainer(op.Start, pos); err != nil {
		return err
	}
	para := d.tree.New(tree.KindParagraph)
	if err := d.patchComponent(para.ID, op.Patch()); err != nil {
		return err
	}
	if err := d.retag(para.ID); err != nil {
		return err
	}
	if _, err := d.listOf(para); err != nil {
		return err
	}
	d.structure().InsertBlock(pos.Parent, pos.Index, para.ID)
	return nil
}

func (d *Document) splitParagraph(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	pos, err := d.locateText(op.Start)
	if err != nil {
		return err
	}
	para := d.tree.Get(pos.Parent)
	idx := d.boundary(para.ID, pos.Index)

	next := d.tree.New(para.Kind)
	next.StyleID = para.StyleID
	next.Inline = para.Inline.Clone()
	for _, ch := range slices.Clone(d.tree.Get(para.ID).Children[idx:]) {
		d.tree.Detach(ch)
		d.tree.Append(next.ID, ch)
	}

	// an empty half keeps the formatting of the text next to the split so typing
	// continues in it
	if onlyEmptyRuns(d.tree, next.ID) {
		if tpl := d.lastRun(para.ID); tpl != nil {
			d.placeholder(next.ID, tpl)
		}
	}
	if d.tree.TextLen(para.ID) == 0 {
		if tpl := d.firstRun(next.ID); tpl != nil {
			d.placeholder(para.ID, tpl)
		}
	}
	d.tidyRuns(para.ID)
	d.tidyRuns(next.ID)

	container := d.tree.Container(para.ID)
	logical := slices.Index(d.tree.Children(container), para.ID)
	d.structure().InsertBlock(container, logical+1, next.ID)
	return nil
}

func (d *Document) mergeParagraph(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	para, err := d.tree.ResolveKind(op.Start, tree.KindParagraph, tree.KindHeading)
	if err != nil {
		return err
	}
	container := d.tree.Container(para.ID)
	kids := d.tree.Children(container)
	i := slices.Index(kids, para.ID)
	if i+1 >= len(kids) {
		return invalid("no paragraph follows %v", op.Start)
	}
	next := d.tree.Get(kids[i+1])
	if !next.Kind.IsParagraph() {
		return invalid("%v is followed by a %s", op.Start, next.Kind)
	}
	d.joinParagraphs(para.ID, next.ID)
	return nil
}

// joinParagraphs appends the content of next to para and removes next.
func (d *Document) joinParagraphs(para, next tree.ID) {
	if d.tree.TextLen(next) > 0 {
		d.dropEmptyRuns(para)
	}
	for _, ch := range slices.Clone(d.tree.Get(next).Children) {
		d.tree.Detach(ch)
		d.tree.Append(para, ch)
	}
	d.structure().RemoveBlock(next)
	d.tidyRuns(para)
}

func (d *Document) insertText(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	pos, err := d.locateText(op.Start)
	if err != nil {
		return err
	}
	if op.Text == "" {
		return nil
	}
	para := pos.Parent
	idx := d.boundary(para, pos.Index)
	kids := d.tree.Get(para).Children

	// an empty formatted run at the insertion point wins over the text before it
	var tpl *tree.Component
	switch {
	case idx > 0 && isEmptyRun(d.tree.Get(kids[idx-1])):
		tpl = d.tree.Get(kids[idx-1])
	case idx < len(kids) && isEmptyRun(d.tree.Get(kids[idx])):
		tpl = d.tree.Get(kids[idx])
	case idx > 0 && d.tree.Get(kids[idx-1]).Kind == tree.KindTextRun:
		tpl = d.tree.Get(kids[idx-1])
	}

	patch := op.Patch()
	if tpl != nil && patch.IsZero() {
		run := d.tree.Mut(tpl.ID)
		if len(kids) > idx && kids[idx] == tpl.ID {
			run.Text = op.Text + run.Text
		} else {
			run.Text += op.Text
		}
		d.tidyRuns(para)
		return nil
	}

	run := d.tree.New(tree.KindTextRun)
	run.Text = op.Text
	if tpl != nil {
		run.StyleID, run.Inline = tpl.StyleID, tpl.Inline.Clone()
	}
	d.tree.Insert(para, idx, run.ID)
	if err := d.patchComponent(run.ID, patch); err != nil {
		return err
	}
	d.tidyRuns(para)
	return nil
}

// insertInline inserts a component one character wide.
func (d *Document) insertInline(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	pos, err := d.locateText(op.Start)
	if err != nil {
		return err
	}
	var c *tree.Component
	switch op.Name {
	case ops.InsertTab:
		c = d.tree.New(tree.KindTab)
	case ops.InsertHardBreak:
		c = d.tree.New(tree.KindHardBreak)
		c.Name = op.Type
	case ops.InsertField:
		if op.Type == "" {
			return missing("type")
		}
		c = d.tree.New(tree.KindField)
		c.Name, c.Text = op.Type, op.Representation
	case ops.InsertBookmark:
		if op.ID == "" {
			return missing("id")
		}
		c = d.tree.New(tree.KindBookmark)
		c.Name, c.Text = op.ID, op.AnchorName
	case ops.InsertDrawing:
		c = d.tree.New(tree.KindDrawing)
		c.Name = op.Type
	}
	idx := d.boundary(pos.Parent, pos.Index)
	d.tree.Insert(pos.Parent, idx, c.ID)
	if err := d.patchComponent(c.ID, op.Patch()); err != nil {
		return err
	}
	d.tidyRuns(pos.Parent)
	return nil
}

func (d *Document) delete(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	pos, err := d.tree.Locate(op.Start)
	if err != nil {
		return err
	}
	if pos.Text {
		end := pos
		if op.End != nil {
			if end, err = d.locateText(op.End); err != nil {
				return err
			}
		}
		return d.deleteText(pos, end)
	}
	ids, err := d.siblingRange(op.Start, op.End)
	if err != nil {
		return err
	}
	return d.deleteComponents(ids)
}

// deleteText removes the inclusive character range start..end, merging the
// end paragraphs when the range spans several.
func (d *Document) deleteText(start, end tree.Position) error {
	if start.Parent == end.Parent {
		if end.Index < start.Index || end.Index >= d.tree.TextLen(start.Parent) {
			return invalid("delete characters %d..%d of %d", start.Index, end.Index, d.tree.TextLen(start.Parent))
		}
		d.deleteChars(start.Parent, start.Index, end.Index+1)
		return nil
	}
	first, last, between, err := d.paragraphSpan(start.Parent, end.Parent)
	if err != nil {
		return err
	}
	if end.Index >= d.tree.TextLen(last) {
		return invalid("delete up to character %d of %d", end.Index, d.tree.TextLen(last))
	}
	d.deleteChars(first, start.Index, d.tree.TextLen(first))
	d.deleteChars(last, 0, end.Index+1)
	for _, id := range between {
		d.structure().RemoveBlock(id)
	}
	d.joinParagraphs(first, last)
	return nil
}

// paragraphSpan returns the blocks strictly between two paragraphs of the same
// container.
func (d *Document) paragraphSpan(a, b tree.ID) (first, last tree.ID, between []tree.ID, err error) {
	container := d.tree.Container(a)
	if d.tree.Container(b) != container {
		return 0, 0, nil, invalid("range spans paragraphs of different containers")
	}
	kids := d.tree.Children(container)
	i, j := slices.Index(kids, a), slices.Index(kids, b)
	if j < i {
		return 0, 0, nil, invalid("range end precedes its start")
	}
	return a, b, slices.Clone(kids[i+1 : j]), nil
}

// deleteChars removes characters from..to (exclusive) of a paragraph. A
// paragraph left empty keeps the formatting of its first removed run.
func (d *Document) deleteChars(para tree.ID, from, to int) {
	if from >= to {
		return
	}
	first := d.boundary(para, from)
	last := d.boundary(para, to)
	doomed := slices.Clone(d.tree.Get(para).Children[first:last])
	var tpl *tree.Component
	for _, id := range doomed {
		if c := d.tree.Get(id); c.Kind == tree.KindTextRun && tpl == nil {
			tpl = &tree.Component{StyleID: c.StyleID, Inline: c.Inline.Clone()}
		}
		d.tree.Delete(id)
	}
	if d.tree.TextLen(para) == 0 {
		if len(d.tree.Get(para).Children) == 0 && tpl != nil {
			d.placeholder(para, tpl)
		}
	}
	d.tidyRuns(para)
}

// deleteComponents removes whole sibling components.
func (d *Document) deleteComponents(ids []tree.ID) error {
	if len(ids) > 0 && d.tree.Get(ids[0]).Kind == tree.KindCell {
		from := d.tree.IndexOf(ids[0])
		return table.DeleteCells(d.tree, d.tree.Get(ids[0]).Parent, from, from+len(ids)-1)
	}
	for _, id := range ids {
		c := d.tree.Get(id)
		parent := d.tree.Get(d.tree.Container(id))
		switch {
		case c.Kind == tree.KindRow:
			d.tree.Delete(id)
		case parent.Kind == tree.KindDocument || parent.Kind == tree.KindCell || parent.Kind == tree.KindDrawing:
			d.structure().RemoveBlock(id)
		default:
			return invalid("cannot delete %s inside %s", c.Kind, parent.Kind)
		}
	}
	return nil
}

// siblingRange resolves start..end (inclusive, same parent) to components.
func (d *Document) siblingRange(start, end tree.Path) ([]tree.ID, error) {
	first, err := d.tree.Resolve(start)
	if err != nil {
		return nil, err
	}
	if end == nil {
		return []tree.ID{first}, nil
	}
	if !start.SameParent(end) {
		return nil, invalid("range %v..%v crosses parents", start, end)
	}
	if _, err := d.tree.Resolve(end); err != nil {
		return nil, err
	}
	if end.Last() < start.Last() {
		return nil, invalid("range %v..%v is reversed", start, end)
	}
	kids := d.tree.Children(d.tree.Container(first))
	return slices.Clone(kids[start.Last() : end.Last()+1]), nil
}

func (d *Document) move(op *ops.Operation) error {
	if err := requireStart(op); err != nil {
		return err
	}
	if len(op.To) == 0 {
		return missing("to")
	}
	pos, err := d.tree.Locate(op.Start)
	if err != nil {
		return err
	}
	if pos.Text {
		return d.moveInline(pos, op)
	}
	ids, err := d.siblingRange(op.Start, op.End)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := d.tree.Clonable(id); err != nil {
			return err
		}
		c := d.tree.Get(id)
		if c.Kind == tree.KindRow || c.Kind == tree.KindCell {
			return invalid("cannot move a %s", c.Kind)
		}
	}
	for _, id := range ids {
		d.structure().Unlink(id)
	}
	to, err := d.tree.Locate(op.To)
	if err != nil {
		return err
	}
	if err := d.blockContainer(op.To, to); err != nil {
		return err
	}
	for i, id := range ids {
		d.structure().InsertBlock(to.Parent, to.Index+i, id)
	}
	return nil
}

// moveInline relocates a drawing or other inline component; the target is
// resolved after the component left its old position.
func (d *Document) moveInline(pos tree.Position, op *ops.Operation) error {
	if pos.Node == 0 {
		return invalid("only inline components move, %v is text", op.Start)
	}
	if err := d.tree.Clonable(pos.Node); err != nil {
		return err
	}
	d.tree.Detach(pos.Node)
	d.tidyRuns(pos.Parent)
	to, err := d.locateText(op.To)
	if err != nil {
		return err
	}
	d.tree.Insert(to.Parent, d.boundary(to.Parent, to.Index), pos.Node)
	d.tidyRuns(to.Parent)
	return nil
}

// boundary splits the text run at a character offset so the offset starts a
// child, and returns that child's index.
func (d *Document) boundary(para tree.ID, off int) int {
	idx, inner := d.tree.InlineAt(para, off)
	if inner == 0 {
		return idx
	}
	run := d.tree.Get(d.tree.Get(para).Children[idx])
	r := []rune(run.Text)
	tail := d.tree.New(tree.KindTextRun)
	tail.StyleID, tail.Inline, tail.Text = run.StyleID, run.Inline.Clone(), string(r[inner:])
	d.tree.Mut(run.ID).Text = string(r[:inner])
	d.tree.Insert(para, idx+1, tail.ID)
	return idx + 1
}

func isEmptyRun(c *tree.Component) bool { return c.Kind == tree.KindTextRun && c.Text == "" }

func onlyEmptyRuns(t *tree.Tree, para tree.ID) bool {
	for _, ch := range t.Get(para).Children {
		if !isEmptyRun(t.Get(ch)) {
			return false
		}
	}
	return true
}

func isFormatted(c *tree.Component) bool { return c.StyleID != "" || !c.Inline.IsEmpty() }

// placeholder gives an empty paragraph an empty run formatted like tpl.
func (d *Document) placeholder(para tree.ID, tpl *tree.Component) {
	if !isFormatted(tpl) {
		return
	}
	for _, ch := range slices.Clone(d.tree.Get(para).Children) {
		d.tree.Delete(ch)
	}
	run := d.tree.New(tree.KindTextRun)
	run.StyleID, run.Inline = tpl.StyleID, tpl.Inline.Clone()
	d.tree.Append(para, run.ID)
}

func (d *Document) lastRun(para tree.ID) *tree.Component {
	kids := d.tree.Get(para).Children
	for i := len(kids) - 1; i >= 0; i-- {
		if c := d.tree.Get(kids[i]); c.Kind == tree.KindTextRun {
			return c
		}
	}
	return nil
}

func (d *Document) firstRun(para tree.ID) *tree.Component {
	for _, ch := range d.tree.Get(para).Children {
		if c := d.tree.Get(ch); c.Kind == tree.KindTextRun {
			return c
		}
	}
	return nil
}

// tidyRuns drops empty runs and merges adjacent runs formatted alike. An empty
// paragraph keeps a single formatted placeholder; otherwise a formatted empty
// run at the end survives so text typed there picks up its formatting.
func (d *Document) tidyRuns(para tree.ID) {
	if onlyEmptyRuns(d.tree, para) {
		kids := d.tree.Get(para).Children
		for i := len(kids) - 1; i >= 0; i-- {
			if i > 0 || !isFormatted(d.tree.Get(kids[i])) {
				d.tree.Delete(kids[i])
			}
			kids = d.tree.Get(para).Children
		}
		return
	}
	tail := d.formattedTail(para)
	for _, ch := range slices.Clone(d.tree.Get(para).Children) {
		if ch != tail && isEmptyRun(d.tree.Get(ch)) {
			d.tree.Delete(ch)
		}
	}
	kids := d.tree.Get(para).Children
	for i := 1; i < len(kids); {
		prev, cur := d.tree.Get(kids[i-1]), d.tree.Get(kids[i])
		if prev.Kind == tree.KindTextRun && cur.Kind == tree.KindTextRun &&
			prev.StyleID == cur.StyleID && prev.Inline.Equal(cur.Inline) {
			d.tree.Mut(prev.ID).Text += cur.Text
			d.tree.Delete(cur.ID)
			kids = d.tree.Get(para).Children
			continue
		}
		i++
	}
}

// formattedTail returns the last child of para when it is an empty formatted
// run, zero otherwise.
func (d *Document) formattedTail(para tree.ID) tree.ID {
	kids := d.tree.Get(para).Children
	if len(kids) == 0 {
		return 0
	}
	if c := d.tree.Get(kids[len(kids)-1]); isEmptyRun(c) && isFormatted(c) {
		return c.ID
	}
	return 0
}

func (d *Document) dropEmptyRuns(para tree.ID) {
	for _, ch := range slices.Clone(d.tree.Get(para).Children) {
		if isEmptyRun(d.tree.Get(ch)) {
			d.tree.Delete(ch)
		}
	}
}

// retag turns a paragraph into a heading and back as its outline level says.
func (d *Document) retag(id tree.ID) error {
	c := d.tree.Get(id)
	if !c.Kind.IsParagraph() {
		return nil
	}
	eff, err := d.styles.Effective(d.tree, id)
	if err != nil {
		return err
	}
	kind := tree.KindParagraph
	if lvl, ok := attrs.Int(eff[attrs.Paragraph]["outlineLevel"]); ok && lvl > 0 {
		kind = tree.KindHeading
	}
	if c.Kind != kind {
		d.tree.Mut(id).Kind = kind
	}
	return nil
}
