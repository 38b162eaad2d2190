package tree

import (
	"fmt"
	"slices"
)

// Tree owns every component of one document.
//
// Components returned by Get must be treated as read-only; call Mut before
// changing one so the active transaction can restore it.
type Tree struct {
	nodes map[ID]*Component
	root  ID
	next  ID

	// before-images of components touched by the open transaction; a nil image
	// marks a component created inside it
	journal map[ID]*Component
	nextAt  ID
}

// New returns a tree holding an empty document root.
func New() *Tree {
	t := &Tree{nodes: make(map[ID]*Component)}
	t.root = t.New(KindDocument).ID
	return t
}

// Root returns the document root.
func (t *Tree) Root() ID { return t.root }

// Len returns the number of live components.
func (t *Tree) Len() int { return len(t.nodes) }

// Get returns a component or nil.
func (t *Tree) Get(id ID) *Component { return t.nodes[id] }

// Mut returns a component prepared for mutation.
func (t *Tree) Mut(id ID) *Component {
	c := t.nodes[id]
	if c == nil {
		panic(fmt.Sprintf("tree: mutate unknown component %d", id))
	}
	if t.journal != nil {
		if _, seen := t.journal[id]; !seen {
			t.journal[id] = c.clone()
		}
	}
	return c
}

// New creates a detached component.
func (t *Tree) New(kind Kind) *Component {
	t.next++
	c := &Component{ID: t.next, Kind: kind}
	t.nodes[c.ID] = c
	if t.journal != nil {
		t.journal[c.ID] = nil
	}
	return c
}

// Begin opens a transaction. Transactions do not nest.
func (t *Tree) Begin() {
	if t.journal != nil {
		panic("tree: transaction already open")
	}
	t.journal = make(map[ID]*Component)
	t.nextAt = t.next
}

// InTransaction reports whether a transaction is open.
func (t *Tree) InTransaction() bool { return t.journal != nil }

// Commit keeps every change made since Begin.
func (t *Tree) Commit() {
	t.journal = nil
}

// Rollback restores the tree to its state at Begin.
func (t *Tree) Rollback() {
	for id, before := range t.journal {
		if before == nil {
			delete(t.nodes, id)
			continue
		}
		t.nodes[id] = before
	}
	t.next = t.nextAt
	t.journal = nil
}

// IndexOf returns the physical index of id among its parent's children.
func (t *Tree) IndexOf(id ID) int {
	c := t.nodes[id]
	if c == nil || c.Parent == 0 {
		return -1
	}
	return slices.Index(t.nodes[c.Parent].Children, id)
}

// Insert attaches child to parent at a physical index; index == len appends.
func (t *Tree) Insert(parent ID, index int, child ID) {
	p := t.Mut(parent)
	if index < 0 || index > len(p.Children) {
		panic(fmt.Sprintf("tree: insert %d into %d at %d of %d", child, parent, index, len(p.Children)))
	}
	p.Children = slices.Insert(p.Children, index, child)
	t.Mut(child).Parent = parent
}

// Append attaches child as the last child of parent.
func (t *Tree) Append(parent, child ID) {
	t.Insert(parent, len(t.nodes[parent].Children), child)
}

// Detach unlinks id from its parent and returns its former index.
func (t *Tree) Detach(id ID) int {
	c := t.nodes[id]
	if c == nil || c.Parent == 0 {
		return -1
	}
	idx := t.IndexOf(id)
	p := t.Mut(c.Parent)
	p.Children = slices.Delete(p.Children, idx, idx+1)
	t.Mut(id).Parent = 0
	return idx
}

// Delete detaches id and drops its subtree from the arena.
func (t *Tree) Delete(id ID) {
	t.Detach(id)
	t.drop(id)
}

func (t *Tree) drop(id ID) {
	c := t.nodes[id]
	if c == nil {
		return
	}
	for _, ch := range c.Children {
		t.drop(ch)
	}
	if t.journal != nil {
		if _, seen := t.journal[id]; !seen {
			t.journal[id] = c.clone()
		}
	}
	delete(t.nodes, id)
}

// Replace swaps old for repl at the same position. old stays in the arena,
// detached.
func (t *Tree) Replace(old, repl ID) {
	c := t.nodes[old]
	parent := c.Parent
	idx := t.Detach(old)
	t.Insert(parent, idx, repl)
}

// Walk visits id and its descendants in document order until fn returns false.
func (t *Tree) Walk(id ID, fn func(*Component) bool) bool {
	c := t.nodes[id]
	if c == nil {
		return true
	}
	if !fn(c) {
		return false
	}
	for _, ch := range c.Children {
		if !t.Walk(ch, fn) {
			return false
		}
	}
	return true
}

// Clonable reports whether the subtree at id holds only clonable content.
func (t *Tree) Clonable(id ID) error {
	var bad *Component
	t.Walk(id, func(c *Component) bool {
		if c.Kind == KindForeign && (c.Blob == nil || !c.Blob.Clonable) {
			bad = c
			return false
		}
		return true
	})
	if bad != nil {
		name := ""
		if bad.Blob != nil {
			name = bad.Blob.Name
		}
		return fmt.Errorf("component %d (%s): %w", bad.ID, name, ErrUnclonable)
	}
	return nil
}

// Clone deep-copies the subtree at id into a detached subtree.
func (t *Tree) Clone(id ID) (ID, error) {
	if err := t.Clonable(id); err != nil {
		return 0, err
	}
	return t.cloneTree(id), nil
}

func (t *Tree) cloneTree(id ID) ID {
	src := t.nodes[id]
	cp := t.New(src.Kind)
	newID := cp.ID
	*cp = *src.clone()
	cp.ID = newID
	cp.Parent = 0
	cp.Children = nil
	for _, ch := range src.Children {
		t.Append(newID, t.cloneTree(ch))
	}
	return newID
}

// StyleRefs counts the components referencing a style sheet.
func (t *Tree) StyleRefs(styleID string) int {
	n := 0
	for _, c := range t.nodes {
		if c.StyleID == styleID {
			n++
		}
		for _, col := range c.Columns {
			if col.StyleID == styleID {
				n++
			}
		}
	}
	return n
}

// Ancestor returns the nearest ancestor of id with one of kinds.
func (t *Tree) Ancestor(id ID, kinds ...Kind) *Component {
	for c := t.nodes[id]; c != nil && c.Parent != 0; {
		c = t.nodes[c.Parent]
		if slices.Contains(kinds, c.Kind) {
			return c
		}
	}
	return nil
}
