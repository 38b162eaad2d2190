package attrs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Family scopes attribute keys, mirroring the style families of the document
// format.
type Family string

const (
	Paragraph Family = "paragraph"
	Character Family = "character"
	Table     Family = "table"
	Row       Family = "row"
	Cell      Family = "cell"
	Column    Family = "column"
	Drawing   Family = "drawing"
	Sheet     Family = "sheet"
	Page      Family = "page"
	List      Family = "list"
)

// StyleKey is the top-level patch key naming a style sheet.
const StyleKey = "styleId"

// Map is a resolved, family-scoped attribute set. Values are JSON values.
type Map map[Family]map[string]any

// Clone returns a deep copy of m.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for f, kv := range m {
		out[f] = cloneFamily(kv)
	}
	return out
}

func cloneFamily(kv map[string]any) map[string]any {
	out := make(map[string]any, len(kv))
	for k, v := range kv {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneFamily(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneAny(e)
		}
		return out
	}
	return v
}

// IsEmpty reports whether m holds no attribute.
func (m Map) IsEmpty() bool {
	for _, kv := range m {
		if len(kv) > 0 {
			return false
		}
	}
	return true
}

// Get returns one attribute.
func (m Map) Get(f Family, key string) (any, bool) {
	v, ok := m[f][key]
	return v, ok
}

// String returns one string attribute, or "".
func (m Map) String(f Family, key string) string {
	s, _ := m[f][key].(string)
	return s
}

// Set assigns one attribute in place.
func (m Map) Set(f Family, key string, v any) {
	kv := m[f]
	if kv == nil {
		kv = make(map[string]any)
		m[f] = kv
	}
	kv[key] = v
}

// Delete removes one attribute in place.
func (m Map) Delete(f Family, key string) {
	kv, ok := m[f]
	if !ok {
		return
	}
	delete(kv, key)
	if len(kv) == 0 {
		delete(m, f)
	}
}

// Merge returns m overlaid with over; keys of over win.
func (m Map) Merge(over Map) Map {
	out := m.Clone()
	if out == nil {
		out = make(Map)
	}
	for f, kv := range over {
		for k, v := range kv {
			out.Set(f, k, cloneAny(v))
		}
	}
	return out
}

// Patch returns a copy of m with p applied. The style key of p is ignored;
// styles are handled by the caller.
func (m Map) Patch(p Patch) Map {
	out := m.Clone()
	if out == nil {
		out = make(Map)
	}
	for f := range p.cleared {
		delete(out, f)
	}
	for f, kv := range p.Families {
		for k, v := range kv {
			switch {
			case v.IsSet():
				out.Set(f, k, cloneAny(v.Get()))
			case v.IsClear():
				out.Delete(f, k)
			}
		}
	}
	return out.compact()
}

// Select returns the subset of m restricted to families.
func (m Map) Select(families ...Family) Map {
	out := make(Map)
	for _, f := range families {
		if kv, ok := m[f]; ok && len(kv) > 0 {
			out[f] = cloneFamily(kv)
		}
	}
	return out
}

// Without returns a copy of m minus the named keys of family f.
func (m Map) Without(f Family, keys ...string) Map {
	out := m.Clone()
	for _, k := range keys {
		out.Delete(f, k)
	}
	return out
}

// Equal compares two maps, treating empty and nil as equal.
func (m Map) Equal(o Map) bool {
	return reflect.DeepEqual(normalize(m.plain()), normalize(o.plain()))
}

func (m Map) plain() map[string]any {
	out := make(map[string]any)
	for f, kv := range m {
		if len(kv) == 0 {
			continue
		}
		fam := make(map[string]any, len(kv))
		maps.Copy(fam, kv)
		out[string(f)] = fam
	}
	return out
}

func (m Map) compact() Map {
	for f, kv := range m {
		if len(kv) == 0 {
			delete(m, f)
		}
	}
	return m
}

// Families returns the family names of m in sorted order.
func (m Map) Families() []Family {
	fs := slices.Collect(maps.Keys(m))
	slices.Sort(fs)
	return fs
}

// ToPatch converts m into a patch assigning every attribute.
func (m Map) ToPatch() Patch {
	var p Patch
	for f, kv := range m {
		for k, v := range kv {
			p.SetValue(f, k, Set(cloneAny(v)))
		}
	}
	return p
}

func (m Map) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.plain())
}

// Patch is a partial attribute update as carried by operations.
type Patch struct {
	StyleID  Value
	Families map[Family]map[string]Value

	// families cleared as a whole by a JSON null
	cleared map[Family]bool
}

// NewPatch builds a patch from a resolved map.
func NewPatch(m Map) Patch { return m.ToPatch() }

// IsZero reports whether p changes nothing.
func (p Patch) IsZero() bool {
	if !p.StyleID.IsZero() || len(p.cleared) > 0 {
		return false
	}
	for _, kv := range p.Families {
		if len(kv) > 0 {
			return false
		}
	}
	return true
}

// SetValue records one attribute change.
func (p *Patch) SetValue(f Family, key string, v Value) {
	if p.Families == nil {
		p.Families = make(map[Family]map[string]Value)
	}
	kv := p.Families[f]
	if kv == nil {
		kv = make(map[string]Value)
		p.Families[f] = kv
	}
	kv[key] = v
}

// ClearFamily records that every attribute of f is removed.
func (p *Patch) ClearFamily(f Family) {
	if p.cleared == nil {
		p.cleared = make(map[Family]bool)
	}
	p.cleared[f] = true
}

// ClearsFamily reports whether f is cleared as a whole.
func (p Patch) ClearsFamily(f Family) bool { return p.cleared[f] }

// Value returns the change recorded for one attribute.
func (p Patch) Value(f Family, key string) Value {
	if v, ok := p.Families[f][key]; ok {
		return v
	}
	if p.cleared[f] {
		return Clear()
	}
	return Value{}
}

// Has reports whether p touches family f at all.
func (p Patch) Has(f Family) bool {
	return len(p.Families[f]) > 0 || p.cleared[f]
}

// Only returns the part of p that touches families. The style key is dropped.
func (p Patch) Only(families ...Family) Patch {
	var out Patch
	for _, f := range families {
		for k, v := range p.Families[f] {
			out.SetValue(f, k, v)
		}
		if p.cleared[f] {
			out.ClearFamily(f)
		}
	}
	return out
}

// Without returns p minus the named keys of family f.
func (p Patch) Without(f Family, keys ...string) Patch {
	out := p.Clone()
	for _, k := range keys {
		delete(out.Families[f], k)
	}
	if len(out.Families[f]) == 0 {
		delete(out.Families, f)
	}
	return out
}

// Drop returns p minus every change to families. The style key is kept.
func (p Patch) Drop(families ...Family) Patch {
	out := p.Clone()
	for _, f := range families {
		delete(out.Families, f)
		delete(out.cleared, f)
	}
	return out
}

// WithoutStyle returns p without its style key.
func (p Patch) WithoutStyle() Patch {
	out := p.Clone()
	out.StyleID = Value{}
	return out
}

// Clone returns a copy of p.
func (p Patch) Clone() Patch {
	out := Patch{StyleID: p.StyleID}
	for f, kv := range p.Families {
		for k, v := range kv {
			out.SetValue(f, k, Value{state: v.state, v: cloneAny(v.v)})
		}
	}
	for f := range p.cleared {
		out.ClearFamily(f)
	}
	return out
}

// Equal compares two patches.
func (p Patch) Equal(o Patch) bool {
	a, _ := json.Marshal(p)
	b, _ := json.Marshal(o)
	return bytes.Equal(a, b)
}

func (p Patch) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	if !p.StyleID.IsZero() {
		out[StyleKey] = p.StyleID
	}
	for f := range p.cleared {
		out[string(f)] = nil
	}
	for f, kv := range p.Families {
		if len(kv) == 0 {
			continue
		}
		fam := make(map[string]Value, len(kv))
		maps.Copy(fam, kv)
		out[string(f)] = fam
	}
	return json.Marshal(out)
}

func (p *Patch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("attrs: %w", err)
	}
	*p = Patch{}
	for key, msg := range raw {
		if key == StyleKey {
			if err := json.Unmarshal(msg, &p.StyleID); err != nil {
				return fmt.Errorf("attrs: styleId: %w", err)
			}
			continue
		}
		f := Family(key)
		if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
			p.ClearFamily(f)
			continue
		}
		var kv map[string]Value
		if err := json.Unmarshal(msg, &kv); err != nil {
			return fmt.Errorf("attrs: family %q must be an object: %w", key, err)
		}
		for k, v := range kv {
			p.SetValue(f, k, v)
		}
		if p.Families[f] == nil {
			// an empty object still names the family
			p.Families = initFamilies(p.Families)
			p.Families[f] = map[string]Value{}
		}
	}
	return nil
}

func initFamilies(m map[Family]map[string]Value) map[Family]map[string]Value {
	if m == nil {
		return make(map[Family]map[string]Value)
	}
	return m
}
