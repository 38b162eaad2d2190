// Package engine applies operation logs to a document: one component tree with
// its style and list registries, mutated one atomic operation at a time.
package engine

import (
	"fmt"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"

	"github.com/alimasry/go-docops/attrs"
	"github.com/alimasry/go-docops/extract"
	"github.com/alimasry/go-docops/list"
	"github.com/alimasry/go-docops/ops"
	"github.com/alimasry/go-docops/sheet"
	"github.com/alimasry/go-docops/style"
	"github.com/alimasry/go-docops/table"
	"github.com/alimasry/go-docops/tree"
)

// Document is one editing session's document. It is not safe for concurrent
// use; the owner serialises operations.
type Document struct {
	tree   *tree.Tree
	styles *style.Registry
	lists  *list.Registry

	policy list.Policy
	limits sheet.Limits
	log    logr.Logger

	// next expected operation sequence number
	next int
}

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger operations are traced to.
func WithLogger(l logr.Logger) Option {
	return func(d *Document) { d.log = l.WithName("engine") }
}

// WithListPolicy selects how paragraphs join lists.
func WithListPolicy(p list.Policy) Option {
	return func(d *Document) { d.policy = p }
}

// WithSheetLimits bounds spreadsheet sheets.
func WithSheetLimits(l sheet.Limits) Option {
	return func(d *Document) { d.limits = l }
}

// New returns an empty document.
func New(opts ...Option) *Document {
	d := &Document{
		tree:   tree.New(),
		styles: style.NewRegistry(),
		lists:  list.NewRegistry(),
		policy: list.PolicyInline,
		limits: sheet.DefaultLimits,
		log:    logr.Discard(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Load builds a document by replaying a log.
func Load(log []ops.Operation, opts ...Option) (*Document, error) {
	d := New(opts...)
	if _, err := d.Replay(log); err != nil {
		return nil, err
	}
	return d, nil
}

// Restore rebuilds a document from a snapshot log and continues sequence
// numbering at next, the value NextOSN reported when the snapshot was taken.
// Operations recorded after the snapshot replay on top of it.
func Restore(snapshot []ops.Operation, next int, opts ...Option) (*Document, error) {
	d := New(opts...)
	for i := range snapshot {
		op := snapshot[i]
		op.OSN = nil
		if err := d.transact(func() error { return d.applyOne(i, &op) }); err != nil {
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
	}
	d.next = next
	return d, nil
}

// Tree returns the component tree. Loaders hydrate documents through it.
func (d *Document) Tree() *tree.Tree { return d.tree }

// Styles returns the style registry.
func (d *Document) Styles() *style.Registry { return d.styles }

// Lists returns the list style registry.
func (d *Document) Lists() *list.Registry { return d.lists }

// NextOSN returns the sequence number the next operation is stamped with.
func (d *Document) NextOSN() int { return d.next }

// Apply applies one operation atomically.
func (d *Document) Apply(op ops.Operation) error {
	return d.transact(func() error { return d.applyOne(0, &op) })
}

// ApplyAll applies a batch as one transaction: either every operation applies
// or the document is left untouched. Operations without a sequence number are
// stamped in place.
func (d *Document) ApplyAll(batch []ops.Operation) error {
	return d.transact(func() error {
		for i := range batch {
			if err := d.applyOne(i, &batch[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Replay applies a log operation by operation and stops at the first failure,
// keeping everything applied before it. It returns the number applied.
func (d *Document) Replay(log []ops.Operation) (int, error) {
	for i := range log {
		err := d.transact(func() error { return d.applyOne(i, &log[i]) })
		if err != nil {
			return i, err
		}
	}
	return len(log), nil
}

func (d *Document) transact(fn func() error) error {
	styles, lists, next := d.styles.Clone(), d.lists.Clone(), d.next
	d.tree.Begin()
	if err := fn(); err != nil {
		d.tree.Rollback()
		d.styles, d.lists, d.next = styles, lists, next
		return err
	}
	d.tree.Commit()
	return nil
}

// Extract returns an operation log that rebuilds the document from scratch.
func (d *Document) Extract() ([]ops.Operation, error) {
	return extract.Operations(d.tree, d.styles, d.lists)
}

// Validate checks every structural invariant: exact table grids, list
// grouping and resolvable style references.
func (d *Document) Validate() error {
	errs := d.structure().Check(d.tree.Root())
	d.tree.Walk(d.tree.Root(), func(c *tree.Component) bool {
		if c.Kind == tree.KindTable {
			errs = multierr.Append(errs, table.Check(d.tree, c.ID))
		}
		if c.StyleID != "" {
			if _, err := d.styles.Chain(c.StyleID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s %d: %w", c.Kind, c.ID, err))
			}
		}
		if _, err := d.listOf(c); err != nil {
			errs = multierr.Append(errs, err)
		}
		return true
	})
	return errs
}

// InternStyles moves the inline formatting of every component into shared
// automatic styles, the way a serializer writes direct formatting, and drops
// automatic styles nothing references.
func (d *Document) InternStyles() error {
	var ids []tree.ID
	d.tree.Walk(d.tree.Root(), func(c *tree.Component) bool {
		if style.FamilyOf(c.Kind) != "" && !c.Inline.Without(attrs.Cell, table.SpanKey).IsEmpty() {
			ids = append(ids, c.ID)
		}
		return true
	})
	return d.transact(func() error {
		for _, id := range ids {
			c := d.tree.Get(id)
			named, direct, err := d.styles.Direct(c)
			if err != nil {
				return err
			}
			span := c.Inline[attrs.Cell][table.SpanKey]
			auto, err := d.styles.Intern(style.FamilyOf(c.Kind), named, direct.Without(attrs.Cell, table.SpanKey))
			if err != nil {
				return err
			}
			m := d.tree.Mut(id)
			m.StyleID, m.Inline = auto, nil
			if span != nil {
				m.Inline = attrs.Map{attrs.Cell: {table.SpanKey: span}}
			}
		}
		n := d.styles.Prune(d.tree)
		d.log.V(1).Info("interned styles", "components", len(ids), "pruned", n)
		return nil
	})
}

// Label is the rendered list label of one paragraph.
type Label struct {
	Path  tree.Path
	Label string
}

// ListLabels numbers every list paragraph in document order.
func (d *Document) ListLabels() []Label {
	counter := d.lists.NewCounter()
	var out []Label
	d.tree.Walk(d.tree.Root(), func(c *tree.Component) bool {
		if !c.Kind.IsParagraph() {
			return true
		}
		m := d.membership(c)
		if !m.InList() {
			return true
		}
		_, direct, err := d.styles.Direct(c)
		if err != nil {
			d.log.V(1).Info("list restart ignored", "id", c.ID, "err", err.Error())
		}
		restart, _ := attrs.Int(direct[attrs.Paragraph]["listStartValue"])
		out = append(out, Label{Path: d.tree.PathOf(c.ID), Label: counter.Next(m.StyleID, m.Level, restart)})
		return true
	})
	return out
}

func (d *Document) structure() *list.Structure {
	return &list.Structure{T: d.tree, Of: d.membership}
}

// membership is the grouping callback of the list structure. Paragraphs are
// checked with listOf before they are grouped, so a failure here means the
// document was built around the engine.
func (d *Document) membership(c *tree.Component) list.Membership {
	m, err := d.listOf(c)
	if err != nil {
		d.log.V(1).Info("paragraph left out of lists", "id", c.ID, "err", err.Error())
		return list.Membership{}
	}
	return m
}

// listOf derives the list a paragraph asks for under the document policy.
func (d *Document) listOf(c *tree.Component) (list.Membership, error) {
	if !c.Kind.IsParagraph() {
		return list.Membership{}, nil
	}
	var a attrs.Map
	var err error
	if d.policy == list.PolicyInherit {
		a, err = d.styles.Effective(d.tree, c.ID)
	} else {
		_, a, err = d.styles.Direct(c)
	}
	if err != nil {
		return list.Membership{}, err
	}
	id := a.String(attrs.Paragraph, "listStyleId")
	if id == "" {
		return list.Membership{}, nil
	}
	if _, ok := d.lists.Get(id); !ok {
		return list.Membership{}, fmt.Errorf("%s %d: list style %q: %w", c.Kind, c.ID, id, list.ErrUnknown)
	}
	level, _ := attrs.Int(a[attrs.Paragraph]["listLevel"])
	return list.Membership{StyleID: id, Level: max(0, min(level, list.Levels-1))}, nil
}

// paragraphChanged re-derives the heading kind and list grouping of a
// paragraph whose attributes may have changed.
func (d *Document) paragraphChanged(id tree.ID) error {
	if err := d.retag(id); err != nil {
		return err
	}
	if _, err := d.listOf(d.tree.Get(id)); err != nil {
		return err
	}
	d.structure().SetMembership(id)
	return nil
}
