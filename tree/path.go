package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Path locates a component by sibling indices from the root. When the parent of
// the last index is a paragraph, the last index is a character offset.
type Path []int

// Parent returns p without its last index.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return slices.Clone(p[:len(p)-1])
}

// Last returns the last index of p.
func (p Path) Last() int {
	if len(p) == 0 {
		return -1
	}
	return p[len(p)-1]
}

// With returns p extended by more indices.
func (p Path) With(more ...int) Path {
	out := make(Path, 0, len(p)+len(more))
	out = append(out, p...)
	return append(out, more...)
}

// WithLast returns p with its last index replaced.
func (p Path) WithLast(i int) Path {
	out := slices.Clone(p)
	out[len(out)-1] = i
	return out
}

// SameParent reports whether p and o differ only in their last index.
func (p Path) SameParent(o Path) bool {
	return len(p) == len(o) && len(p) > 0 && slices.Equal(p[:len(p)-1], o[:len(o)-1])
}

func (p Path) String() string { return fmt.Sprint([]int(p)) }

// UnmarshalJSON accepts an array or a bare index.
func (p *Path) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}
	if len(data) > 0 && data[0] != '[' {
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("path: %w", err)
		}
		*p = Path{n}
		return nil
	}
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return fmt.Errorf("path: %w", err)
	}
	*p = ints
	return nil
}

// Position is a resolved path.
type Position struct {
	// Parent is the container the last index addresses into.
	Parent ID
	// Index is the logical child index, or the character offset when Text.
	Index int
	// Node is the component at Index; zero at an insertion point past the end
	// or inside a text run.
	Node ID
	// Text marks positions inside a paragraph.
	Text bool
}

// Children returns the logical children of id: list wrappers are flattened so
// they never show up in paths. Paragraph content is addressed by offsets and
// has no logical children here.
func (t *Tree) Children(id ID) []ID {
	c := t.nodes[id]
	if c == nil {
		return nil
	}
	switch {
	case c.Kind.IsParagraph():
		return nil
	case c.Kind.holdsBlocks():
		var out []ID
		t.flatten(c, &out)
		return out
	case c.Kind == KindSheet:
		out := make([]ID, 0, len(c.Children))
		for _, ch := range c.Children {
			if t.nodes[ch].Kind == KindRow {
				out = append(out, ch)
			}
		}
		return out
	}
	return c.Children
}

func (t *Tree) flatten(c *Component, out *[]ID) {
	for _, ch := range c.Children {
		cc := t.nodes[ch]
		if cc.Kind.IsWrapper() {
			t.flatten(cc, out)
			continue
		}
		*out = append(*out, ch)
	}
}

// Container returns the nearest ancestor of id that is not a list wrapper.
func (t *Tree) Container(id ID) ID {
	c := t.nodes[id]
	for c != nil && c.Parent != 0 {
		p := t.nodes[c.Parent]
		if !p.Kind.IsWrapper() {
			return p.ID
		}
		c = p
	}
	return 0
}

// Locate resolves p to a position. The last index may equal the child count
// (or the text length) to address an insertion point.
func (t *Tree) Locate(p Path) (Position, error) {
	if len(p) == 0 {
		return Position{}, &PathError{Path: p, Err: ErrOutOfRange, Msg: "empty path"}
	}
	cur := t.root
	for depth, idx := range p {
		c := t.nodes[cur]
		last := depth == len(p)-1
		if idx < 0 {
			return Position{}, outOfRange(p, depth, idx, 0)
		}
		if c.Kind.IsParagraph() {
			n := t.TextLen(cur)
			if idx > n || (!last && idx == n) {
				return Position{}, outOfRange(p, depth, idx, n)
			}
			ci, inner := t.InlineAt(cur, idx)
			var node ID
			if ci < len(c.Children) && inner == 0 && t.nodes[c.Children[ci]].Kind != KindTextRun {
				node = c.Children[ci]
			}
			if last {
				return Position{Parent: cur, Index: idx, Node: node, Text: true}, nil
			}
			if node == 0 || t.nodes[node].Kind != KindDrawing {
				return Position{}, mismatch(p, depth, KindTextRun, "children")
			}
			cur = node
			continue
		}
		if !t.composite(c.Kind) {
			return Position{}, mismatch(p, depth, c.Kind, "children")
		}
		kids := t.Children(cur)
		if idx > len(kids) || (!last && idx == len(kids)) {
			return Position{}, outOfRange(p, depth, idx, len(kids))
		}
		if last {
			var node ID
			if idx < len(kids) {
				node = kids[idx]
			}
			return Position{Parent: cur, Index: idx, Node: node}, nil
		}
		cur = kids[idx]
	}
	return Position{}, &PathError{Path: p, Err: ErrOutOfRange, Msg: "unreachable"}
}

func (t *Tree) composite(k Kind) bool {
	switch k {
	case KindDocument, KindTable, KindRow, KindCell, KindSheet, KindDrawing, KindList, KindListItem:
		return true
	}
	return false
}

// Resolve resolves p to an existing component.
func (t *Tree) Resolve(p Path) (ID, error) {
	pos, err := t.Locate(p)
	if err != nil {
		return 0, err
	}
	if pos.Node == 0 {
		if pos.Text {
			return 0, &PathError{Path: p, Depth: len(p) - 1, Err: ErrTypeMismatch, Msg: "character position, not a component"}
		}
		return 0, outOfRange(p, len(p)-1, pos.Index, pos.Index)
	}
	return pos.Node, nil
}

// ResolveKind resolves p and checks the component kind.
func (t *Tree) ResolveKind(p Path, kinds ...Kind) (*Component, error) {
	id, err := t.Resolve(p)
	if err != nil {
		return nil, err
	}
	c := t.nodes[id]
	if !slices.Contains(kinds, c.Kind) {
		return nil, &PathError{Path: p, Depth: len(p) - 1, Err: ErrTypeMismatch,
			Msg: fmt.Sprintf("found %s, want %v", c.Kind, kinds)}
	}
	return c, nil
}

// PathOf computes the current path of id.
func (t *Tree) PathOf(id ID) Path {
	var rev Path
	for cur := id; cur != t.root; {
		c := t.nodes[cur]
		if c == nil || c.Parent == 0 {
			return nil
		}
		parent := t.Container(cur)
		pc := t.nodes[parent]
		if pc.Kind.IsParagraph() {
			rev = append(rev, t.OffsetOf(cur))
		} else {
			rev = append(rev, slices.Index(t.Children(parent), cur))
		}
		cur = parent
	}
	slices.Reverse(rev)
	return rev
}

// TextLen returns the number of character positions of a paragraph.
func (t *Tree) TextLen(para ID) int {
	n := 0
	for _, ch := range t.nodes[para].Children {
		n += t.nodes[ch].Width()
	}
	return n
}

// InlineAt maps a character offset to the index of the inline child holding it
// and the offset inside that child. At the end of the text it returns the
// child count.
func (t *Tree) InlineAt(para ID, off int) (index, inner int) {
	pos := 0
	kids := t.nodes[para].Children
	for i, ch := range kids {
		w := t.nodes[ch].Width()
		if w > 0 && off < pos+w {
			return i, off - pos
		}
		pos += w
	}
	return len(kids), 0
}

// OffsetOf returns the character offset of an inline component.
func (t *Tree) OffsetOf(id ID) int {
	c := t.nodes[id]
	pos := 0
	for _, ch := range t.nodes[c.Parent].Children {
		if ch == id {
			return pos
		}
		pos += t.nodes[ch].Width()
	}
	return -1
}

// PlainText returns the characters of a paragraph; inline components show as
// U+FFFC.
func (t *Tree) PlainText(para ID) string {
	var b []rune
	for _, ch := range t.nodes[para].Children {
		c := t.nodes[ch]
		if c.Kind == KindTextRun {
			b = append(b, []rune(c.Text)...)
			continue
		}
		b = append(b, '￼')
	}
	return string(b)
}
