// Package list owns list-style definitions, the numbering state of lists across
// a document, and the grouping of list paragraphs into list wrappers.
package list

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/alimasry/go-docops/attrs"
)

// Levels is the number of levels of a list definition.
const Levels = 9

// Number formats.
const (
	FormatDecimal     = "decimal"
	FormatUpperRoman  = "upperRoman"
	FormatLowerRoman  = "lowerRoman"
	FormatUpperLetter = "upperLetter"
	FormatLowerLetter = "lowerLetter"
	FormatBullet      = "bullet"
	FormatNone        = "none"
)

// Registry errors
var (
	ErrDuplicate = errors.New("duplicate list style")
	ErrUnknown   = errors.New("unknown list style")
)

// Level is one level of a list definition, kept as the attribute object the
// operation carried so it round-trips unchanged. Accessors fill defaults.
type Level map[string]any

func (l Level) str(key, def string) string {
	if s, ok := l[key].(string); ok {
		return s
	}
	return def
}

func (l Level) num(key string, def float64) float64 {
	if f, ok := attrs.Float(l[key]); ok {
		return f
	}
	return def
}

// NumberFormat defaults to decimal.
func (l Level) NumberFormat() string { return l.str("numberFormat", FormatDecimal) }

// LevelText is the label template; %N stands for the counter of level N.
func (l Level) LevelText(level int) string {
	return l.str("levelText", "%"+strconv.Itoa(level+1)+".")
}

func (l Level) IndentLeft(level int) float64 { return l.num("indentLeft", float64(level+1)*1270) }
func (l Level) IndentFirstLine() float64    { return l.num("indentFirstLine", -635) }
func (l Level) StartValue() int             { return int(l.num("listStartValue", 1)) }
func (l Level) TextAlign() string           { return l.str("textAlign", "left") }

// Definition is a list style with its nine levels.
type Definition struct {
	ID     string
	Levels [Levels]Level
}

func (d *Definition) clone() *Definition {
	cp := &Definition{ID: d.ID}
	for i, l := range d.Levels {
		if l != nil {
			cp.Levels[i] = maps.Clone(l)
		}
	}
	return cp
}

// Level returns level i, never nil.
func (d *Definition) Level(i int) Level {
	if i < 0 || i >= Levels || d.Levels[i] == nil {
		return Level{}
	}
	return d.Levels[i]
}

func levelKey(i int) string { return "listLevel" + strconv.Itoa(i) }

func (d Definition) MarshalJSON() ([]byte, error) {
	out := make(map[string]Level)
	for i, l := range d.Levels {
		if l != nil {
			out[levelKey(i)] = l
		}
	}
	return json.Marshal(out)
}

func (d *Definition) UnmarshalJSON(data []byte) error {
	var raw map[string]Level
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("list definition: %w", err)
	}
	for key, l := range raw {
		i := -1
		for n := range Levels {
			if key == levelKey(n) {
				i = n
			}
		}
		if i < 0 {
			return fmt.Errorf("list definition: unknown key %q", key)
		}
		if l == nil {
			l = Level{}
		}
		d.Levels[i] = l
	}
	return nil
}

// Registry holds the list styles of a document.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	cp := &Registry{defs: make(map[string]*Definition, len(r.defs)), order: slices.Clone(r.order)}
	for id, d := range r.defs {
		cp.defs[id] = d.clone()
	}
	return cp
}

// Insert registers a list style.
func (r *Registry) Insert(d Definition) error {
	if d.ID == "" {
		return fmt.Errorf("list style: empty id")
	}
	if _, ok := r.defs[d.ID]; ok {
		return fmt.Errorf("list style %q: %w", d.ID, ErrDuplicate)
	}
	r.defs[d.ID] = d.clone()
	r.order = append(r.order, d.ID)
	return nil
}

// Delete removes a list style.
func (r *Registry) Delete(id string) error {
	if _, ok := r.defs[id]; !ok {
		return fmt.Errorf("list style %q: %w", id, ErrUnknown)
	}
	delete(r.defs, id)
	r.order = slices.DeleteFunc(r.order, func(o string) bool { return o == id })
	return nil
}

// Get returns a list style.
func (r *Registry) Get(id string) (*Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// Definitions returns every list style in insertion order.
func (r *Registry) Definitions() []*Definition {
	out := make([]*Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.defs[id])
	}
	return out
}
