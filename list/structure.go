package list

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/alimasry/go-docops/tree"
)

// Membership is the list a paragraph belongs to. The zero value is NotInList.
type Membership struct {
	StyleID string
	Level   int
}

// InList reports whether m names a list.
func (m Membership) InList() bool { return m.StyleID != "" }

func (m Membership) String() string {
	if !m.InList() {
		return "not in list"
	}
	return fmt.Sprintf("%s/%d", m.StyleID, m.Level)
}

// MembershipFunc derives the membership a block asks for from its attributes.
type MembershipFunc func(c *tree.Component) Membership

// Structure keeps list paragraphs grouped into List/ListItem wrappers: every
// maximal run of adjacent paragraphs with the same membership sits in exactly
// one List, one paragraph per ListItem.
type Structure struct {
	T  *tree.Tree
	Of MembershipFunc
}

// current returns the membership of the wrapper holding block.
func (s *Structure) current(block tree.ID) Membership {
	if l := s.wrapper(block); l != nil {
		return Membership{StyleID: l.ListStyleID, Level: l.ListLevel}
	}
	return Membership{}
}

func (s *Structure) wrapper(block tree.ID) *tree.Component {
	item := s.T.Get(s.T.Get(block).Parent)
	if item == nil || item.Kind != tree.KindListItem {
		return nil
	}
	return s.T.Get(item.Parent)
}

func (s *Structure) listOf(id tree.ID) (Membership, bool) {
	c := s.T.Get(id)
	if c == nil || c.Kind != tree.KindList {
		return Membership{}, false
	}
	return Membership{StyleID: c.ListStyleID, Level: c.ListLevel}, true
}

// InsertBlock places a detached block at a logical index of container,
// splitting a wrapper it lands inside, then attaches it to a list when its
// attributes ask for one.
func (s *Structure) InsertBlock(container tree.ID, index int, block tree.ID) {
	kids := s.T.Children(container)
	if index >= len(kids) {
		s.T.Append(container, block)
	} else {
		ref := kids[index]
		if l := s.wrapper(ref); l != nil {
			item := s.T.Get(ref).Parent
			pos := s.T.IndexOf(item)
			at := s.T.IndexOf(l.ID)
			if pos > 0 {
				s.splitAfter(l.ID, pos-1)
				at++
			}
			s.T.Insert(container, at, block)
		} else {
			s.T.Insert(container, s.T.IndexOf(ref), block)
		}
	}
	if s.Of(s.T.Get(block)).InList() {
		s.attach(block)
	}
}

// splitAfter moves the items after position pos of list into a new wrapper
// right behind it.
func (s *Structure) splitAfter(list tree.ID, pos int) {
	l := s.T.Get(list)
	if pos >= len(l.Children)-1 {
		return
	}
	tail := s.T.New(tree.KindList)
	tail.ListStyleID, tail.ListLevel = l.ListStyleID, l.ListLevel
	s.T.Insert(l.Parent, s.T.IndexOf(list)+1, tail.ID)
	for len(s.T.Get(list).Children) > pos+1 {
		item := s.T.Get(list).Children[pos+1]
		s.T.Detach(item)
		s.T.Append(tail.ID, item)
	}
}

// attach wraps a container-level block, joining an adjacent wrapper of the
// same membership and merging the wrappers on both sides when it bridges them.
func (s *Structure) attach(block tree.ID) {
	m := s.Of(s.T.Get(block))
	container := s.T.Get(block).Parent
	idx := s.T.IndexOf(block)
	kids := s.T.Get(container).Children

	var prev, next tree.ID
	if idx > 0 {
		if pm, ok := s.listOf(kids[idx-1]); ok && pm == m {
			prev = kids[idx-1]
		}
	}
	if idx+1 < len(kids) {
		if nm, ok := s.listOf(kids[idx+1]); ok && nm == m {
			next = kids[idx+1]
		}
	}

	item := s.T.New(tree.KindListItem)
	s.T.Detach(block)
	s.T.Append(item.ID, block)

	switch {
	case prev != 0:
		s.T.Append(prev, item.ID)
		if next != 0 {
			s.merge(prev, next)
		}
	case next != 0:
		s.T.Insert(next, 0, item.ID)
	default:
		l := s.T.New(tree.KindList)
		l.ListStyleID, l.ListLevel = m.StyleID, m.Level
		s.T.Insert(container, idx, l.ID)
		s.T.Append(l.ID, item.ID)
	}
}

// merge moves every item of next into prev and drops next.
func (s *Structure) merge(prev, next tree.ID) {
	for len(s.T.Get(next).Children) > 0 {
		item := s.T.Get(next).Children[0]
		s.T.Detach(item)
		s.T.Append(prev, item)
	}
	s.T.Delete(next)
}

// detach unwraps a block, leaving it at container level where its item was.
// The wrapper is split around the gap and dropped when it becomes empty.
func (s *Structure) detach(block tree.ID) {
	l := s.wrapper(block)
	if l == nil {
		return
	}
	list := l.ID
	item := s.T.Get(block).Parent
	pos := s.T.IndexOf(item)
	s.splitAfter(list, pos)
	container := s.T.Get(list).Parent
	s.T.Detach(block)
	s.T.Delete(item)
	at := s.T.IndexOf(list) + 1
	if len(s.T.Get(list).Children) == 0 {
		at--
		s.T.Delete(list)
	}
	s.T.Insert(container, at, block)
}

// SetMembership moves a block to the list its attributes now ask for.
func (s *Structure) SetMembership(block tree.ID) {
	want := s.Of(s.T.Get(block))
	wrapped := s.wrapper(block) != nil
	if wrapped && s.current(block) == want {
		return
	}
	if !wrapped && !want.InList() {
		return
	}
	container := s.T.Container(block)
	if wrapped {
		s.detach(block)
	}
	if want.InList() {
		s.attach(block)
	}
	s.Normalize(container)
}

// Unlink detaches a block from the tree, keeping the wrappers around the gap
// consistent. The block stays in the arena.
func (s *Structure) Unlink(block tree.ID) {
	container := s.T.Container(block)
	s.detach(block)
	s.T.Detach(block)
	s.Normalize(container)
}

// RemoveBlock unlinks a block and drops its subtree.
func (s *Structure) RemoveBlock(block tree.ID) {
	s.Unlink(block)
	s.T.Delete(block)
}

// Normalize drops empty wrappers of container and merges adjacent wrappers of
// the same membership.
func (s *Structure) Normalize(container tree.ID) {
	c := s.T.Get(container)
	for i := 0; i < len(c.Children); {
		id := c.Children[i]
		m, ok := s.listOf(id)
		if !ok {
			i++
			continue
		}
		if len(s.T.Get(id).Children) == 0 {
			s.T.Delete(id)
			c = s.T.Get(container)
			continue
		}
		if i+1 < len(c.Children) {
			if nm, ok := s.listOf(c.Children[i+1]); ok && nm == m {
				s.merge(id, c.Children[i+1])
				c = s.T.Get(container)
				continue
			}
		}
		i++
	}
}

// Check verifies the grouping of every container below root.
func (s *Structure) Check(root tree.ID) error {
	var errs error
	s.T.Walk(root, func(c *tree.Component) bool {
		switch c.Kind {
		case tree.KindList:
			if len(c.Children) == 0 {
				errs = multierr.Append(errs, tree.Structuref(c, "empty list wrapper"))
			}
			if next := s.nextSibling(c.ID); next != nil && next.Kind == tree.KindList &&
				next.ListStyleID == c.ListStyleID && next.ListLevel == c.ListLevel {
				errs = multierr.Append(errs, tree.Structuref(c, "adjacent list wrappers share %s/%d", c.ListStyleID, c.ListLevel))
			}
		case tree.KindListItem:
			if len(c.Children) != 1 {
				errs = multierr.Append(errs, tree.Structuref(c, "list item holds %d blocks", len(c.Children)))
			}
		case tree.KindParagraph, tree.KindHeading:
			want, got := s.Of(c), s.current(c.ID)
			if want != got {
				errs = multierr.Append(errs, tree.Structuref(c, "wrapped as %s, attributes say %s", got, want))
			}
		}
		return true
	})
	return errs
}

func (s *Structure) nextSibling(id tree.ID) *tree.Component {
	c := s.T.Get(id)
	p := s.T.Get(c.Parent)
	if p == nil {
		return nil
	}
	i := s.T.IndexOf(id)
	if i+1 < len(p.Children) {
		return s.T.Get(p.Children[i+1])
	}
	return nil
}
