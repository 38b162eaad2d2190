// Package style owns the style sheets of one document: named styles with their
// parent chains, per-family default styles, automatic styles produced by direct
// formatting, and font descriptions.
package style

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/alimasry/go-docops/attrs"
)

// Style errors
var (
	// ErrDangling indicates a reference to a style that does not exist.
	ErrDangling = errors.New("dangling style reference")

	// ErrCyclic indicates a parent chain that loops.
	ErrCyclic = errors.New("cyclic style parent chain")

	// ErrDuplicate indicates a style id inserted twice.
	ErrDuplicate = errors.New("duplicate style id")

	// ErrFamily indicates a parent of another family.
	ErrFamily = errors.New("style family mismatch")
)

// StyleError carries the style id a registry failure is about.
type StyleError struct {
	ID  string
	Err error
}

func (e *StyleError) Error() string { return fmt.Sprintf("style %q: %v", e.ID, e.Err) }
func (e *StyleError) Unwrap() error { return e.Err }

// Sheet is one style sheet.
type Sheet struct {
	ID         string
	Family     attrs.Family
	Name       string
	Parent     string
	Attrs      attrs.Map
	Automatic  bool
	Hidden     bool
	Default    bool
	UIPriority int
}

func (s *Sheet) clone() *Sheet {
	cp := *s
	cp.Attrs = s.Attrs.Clone()
	return &cp
}

// Font is a font description.
type Font struct {
	Name  string
	Attrs attrs.Map
}

// RefCounter counts the components that reference a style.
type RefCounter interface {
	StyleRefs(id string) int
}

// Registry holds the style sheets of a document.
type Registry struct {
	sheets   map[string]*Sheet
	order    []string
	defaults map[attrs.Family]string
	fonts    map[string]Font
	autoSeq  map[attrs.Family]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sheets:   make(map[string]*Sheet),
		defaults: make(map[attrs.Family]string),
		fonts:    make(map[string]Font),
		autoSeq:  make(map[attrs.Family]int),
	}
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	cp := &Registry{
		sheets:   make(map[string]*Sheet, len(r.sheets)),
		order:    slices.Clone(r.order),
		defaults: maps.Clone(r.defaults),
		fonts:    make(map[string]Font, len(r.fonts)),
		autoSeq:  maps.Clone(r.autoSeq),
	}
	for id, s := range r.sheets {
		cp.sheets[id] = s.clone()
	}
	for n, f := range r.fonts {
		cp.fonts[n] = Font{Name: f.Name, Attrs: f.Attrs.Clone()}
	}
	return cp
}

// Get returns a style sheet.
func (r *Registry) Get(id string) (*Sheet, bool) {
	s, ok := r.sheets[id]
	return s, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.sheets[id]
	return ok
}

// IsAutomatic reports whether id is an automatic style.
func (r *Registry) IsAutomatic(id string) bool {
	s, ok := r.sheets[id]
	return ok && s.Automatic
}

// Default returns the default style of a family.
func (r *Registry) Default(f attrs.Family) string { return r.defaults[f] }

// Insert registers a style sheet.
func (r *Registry) Insert(s Sheet) error {
	if s.ID == "" {
		return &StyleError{ID: s.ID, Err: errors.New("empty style id")}
	}
	if _, ok := r.sheets[s.ID]; ok {
		return &StyleError{ID: s.ID, Err: ErrDuplicate}
	}
	if err := r.checkParent(s.ID, s.Family, s.Parent); err != nil {
		return err
	}
	cp := s
	cp.Attrs = s.Attrs.Clone()
	if cp.Attrs == nil {
		cp.Attrs = attrs.Map{}
	}
	r.sheets[s.ID] = &cp
	r.order = append(r.order, s.ID)
	if s.Default {
		r.defaults[s.Family] = s.ID
	}
	return nil
}

func (r *Registry) checkParent(id string, family attrs.Family, parent string) error {
	if parent == "" {
		return nil
	}
	p, ok := r.sheets[parent]
	if !ok {
		return &StyleError{ID: parent, Err: ErrDangling}
	}
	if p.Family != family {
		return &StyleError{ID: parent, Err: fmt.Errorf("%w: parent is %s, style is %s", ErrFamily, p.Family, family)}
	}
	for cur := p; cur != nil; cur = r.sheets[cur.Parent] {
		if cur.ID == id {
			return &StyleError{ID: id, Err: ErrCyclic}
		}
		if cur.Parent == "" {
			break
		}
	}
	return nil
}

// Change patches a named style in place; every referent sees the change.
func (r *Registry) Change(id string, patch attrs.Patch, name string) error {
	s, ok := r.sheets[id]
	if !ok {
		return &StyleError{ID: id, Err: ErrDangling}
	}
	if parent, ok := patch.StyleID.String(); ok {
		if err := r.checkParent(id, s.Family, parent); err != nil {
			return err
		}
		s.Parent = parent
	} else if patch.StyleID.IsClear() {
		s.Parent = ""
	}
	s.Attrs = s.Attrs.Patch(patch)
	if name != "" {
		s.Name = name
	}
	return nil
}

// Delete removes a style; its children are reparented to its parent. Callers
// repoint referencing components first.
func (r *Registry) Delete(id string) error {
	s, ok := r.sheets[id]
	if !ok {
		return &StyleError{ID: id, Err: ErrDangling}
	}
	for _, other := range r.sheets {
		if other.Parent == id {
			other.Parent = s.Parent
		}
	}
	if r.defaults[s.Family] == id {
		delete(r.defaults, s.Family)
	}
	delete(r.sheets, id)
	r.order = slices.DeleteFunc(r.order, func(o string) bool { return o == id })
	return nil
}

// Sheets returns every style in insertion order.
func (r *Registry) Sheets() []*Sheet {
	out := make([]*Sheet, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sheets[id])
	}
	return out
}

// Named returns the non-automatic styles, parents before children, otherwise
// in insertion order.
func (r *Registry) Named() []*Sheet {
	var out []*Sheet
	done := make(map[string]bool)
	var visit func(s *Sheet)
	visit = func(s *Sheet) {
		if done[s.ID] {
			return
		}
		done[s.ID] = true
		if p, ok := r.sheets[s.Parent]; ok {
			visit(p)
		}
		out = append(out, s)
	}
	for _, id := range r.order {
		if s := r.sheets[id]; !s.Automatic {
			visit(s)
		}
	}
	return out
}

// Chain returns the styles from id up to the root of its parent chain.
func (r *Registry) Chain(id string) ([]*Sheet, error) {
	var chain []*Sheet
	seen := make(map[string]bool)
	for cur := id; cur != ""; {
		s, ok := r.sheets[cur]
		if !ok {
			return nil, &StyleError{ID: cur, Err: ErrDangling}
		}
		if seen[cur] {
			return nil, &StyleError{ID: cur, Err: ErrCyclic}
		}
		seen[cur] = true
		chain = append(chain, s)
		cur = s.Parent
	}
	return chain, nil
}

// Resolve returns the attributes a style contributes, including its ancestors
// and the default style of family. An empty id yields the family default.
func (r *Registry) Resolve(f attrs.Family, id string) (attrs.Map, error) {
	out := attrs.Map{}
	if def := r.defaults[f]; def != "" && def != id {
		base, err := r.Chain(def)
		if err != nil {
			return nil, err
		}
		out = mergeChain(out, base)
	}
	if id == "" {
		return out, nil
	}
	chain, err := r.Chain(id)
	if err != nil {
		return nil, err
	}
	return mergeChain(out, chain), nil
}

func mergeChain(out attrs.Map, chain []*Sheet) attrs.Map {
	for i := len(chain) - 1; i >= 0; i-- {
		out = out.Merge(chain[i].Attrs)
	}
	return out
}

// Split separates a style reference into its named part and the direct
// formatting held by automatic styles on top of it.
func (r *Registry) Split(id string) (named string, direct attrs.Map, err error) {
	chain, err := r.Chain(id)
	if err != nil {
		return "", nil, err
	}
	direct = attrs.Map{}
	i := 0
	for ; i < len(chain) && chain[i].Automatic; i++ {
	}
	for j := i - 1; j >= 0; j-- {
		direct = direct.Merge(chain[j].Attrs)
	}
	if i < len(chain) {
		named = chain[i].ID
	}
	return named, direct, nil
}

var autoPrefix = map[attrs.Family]string{
	attrs.Paragraph: "P",
	attrs.Character: "T",
	attrs.Table:     "ta",
	attrs.Row:       "ro",
	attrs.Column:    "co",
	attrs.Cell:      "ce",
	attrs.Drawing:   "gr",
	attrs.Sheet:     "sh",
}

func (r *Registry) nextAutoID(f attrs.Family) string {
	prefix := autoPrefix[f]
	if prefix == "" {
		prefix = "A"
	}
	for {
		r.autoSeq[f]++
		id := prefix + strconv.Itoa(r.autoSeq[f])
		if _, taken := r.sheets[id]; !taken {
			return id
		}
	}
}

// InsertAutomatic registers a new automatic style and returns its id.
func (r *Registry) InsertAutomatic(f attrs.Family, parent string, a attrs.Map) (string, error) {
	id := r.nextAutoID(f)
	err := r.Insert(Sheet{ID: id, Family: f, Parent: parent, Attrs: a, Automatic: true})
	return id, err
}

// Intern returns an automatic style with exactly these attributes and parent,
// creating one when none exists.
func (r *Registry) Intern(f attrs.Family, parent string, a attrs.Map) (string, error) {
	for _, id := range r.order {
		s := r.sheets[id]
		if s.Automatic && s.Family == f && s.Parent == parent && s.Attrs.Equal(a) {
			return id, nil
		}
	}
	return r.InsertAutomatic(f, parent, a)
}

// SetAttributes patches the style a component references and returns the id
// the component must reference afterwards. An automatic style shared by other
// components is cloned first so they keep their formatting.
func (r *Registry) SetAttributes(id string, patch attrs.Patch, refs RefCounter) (string, error) {
	s, ok := r.sheets[id]
	if !ok {
		return "", &StyleError{ID: id, Err: ErrDangling}
	}
	target, err := r.writable(s, refs)
	if err != nil {
		return "", err
	}
	target.Attrs = target.Attrs.Patch(patch)
	return target.ID, nil
}

// Reparent moves the style a component references under a new named parent,
// cloning a shared automatic style first.
func (r *Registry) Reparent(id, parent string, refs RefCounter) (string, error) {
	s, ok := r.sheets[id]
	if !ok {
		return "", &StyleError{ID: id, Err: ErrDangling}
	}
	if err := r.checkParent(id, s.Family, parent); err != nil {
		return "", err
	}
	target, err := r.writable(s, refs)
	if err != nil {
		return "", err
	}
	target.Parent = parent
	return target.ID, nil
}

func (r *Registry) writable(s *Sheet, refs RefCounter) (*Sheet, error) {
	if !s.Automatic || refs == nil || refs.StyleRefs(s.ID) <= 1 {
		return s, nil
	}
	id, err := r.InsertAutomatic(s.Family, s.Parent, s.Attrs)
	if err != nil {
		return nil, err
	}
	return r.sheets[id], nil
}

// Prune drops automatic styles nothing references any more.
func (r *Registry) Prune(refs RefCounter) int {
	var dead []string
	for _, id := range r.order {
		s := r.sheets[id]
		if !s.Automatic || refs.StyleRefs(id) > 0 {
			continue
		}
		child := false
		for _, other := range r.sheets {
			if other.Parent == id {
				child = true
				break
			}
		}
		if !child {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		_ = r.Delete(id)
	}
	return len(dead)
}

// InsertFont registers or replaces a font description.
func (r *Registry) InsertFont(f Font) {
	f.Attrs = f.Attrs.Clone()
	r.fonts[f.Name] = f
}

// Fonts returns the font descriptions sorted by name.
func (r *Registry) Fonts() []Font {
	names := slices.Sorted(maps.Keys(r.fonts))
	out := make([]Font, 0, len(names))
	for _, n := range names {
		out = append(out, r.fonts[n])
	}
	return out
}
