package list

import (
	"strconv"
	"strings"
)

// Counter numbers list paragraphs in document order. It keeps, per list
// style, the last value used on every level so numbering continues across
// interruptions of the list.
type Counter struct {
	reg  *Registry
	last map[string]*levels
}

// levels tracks use separately from the value since a list may start at zero.
type levels struct {
	vals [Levels]int
	used [Levels]bool
}

// NewCounter starts numbering from scratch.
func (r *Registry) NewCounter() *Counter {
	return &Counter{reg: r, last: make(map[string]*levels)}
}

// Next advances the counter of (styleID, level) and returns the rendered
// label. restart, when positive, sets the value instead of advancing.
func (c *Counter) Next(styleID string, level, restart int) string {
	def, ok := c.reg.Get(styleID)
	if !ok {
		return ""
	}
	level = max(0, min(level, Levels-1))
	lv := c.last[styleID]
	if lv == nil {
		lv = new(levels)
		c.last[styleID] = lv
	}
	switch {
	case restart > 0:
		lv.vals[level] = restart
	case !lv.used[level]:
		lv.vals[level] = def.Level(level).StartValue()
	default:
		lv.vals[level]++
	}
	lv.used[level] = true
	for deeper := level + 1; deeper < Levels; deeper++ {
		lv.vals[deeper], lv.used[deeper] = 0, false
	}
	return render(def, level, lv)
}

// Last returns the last value used on every level of a list style; zero for
// a level not used since it was last reset.
func (c *Counter) Last(styleID string) [Levels]int {
	if lv := c.last[styleID]; lv != nil {
		return lv.vals
	}
	return [Levels]int{}
}

func render(def *Definition, level int, lv *levels) string {
	l := def.Level(level)
	if l.NumberFormat() == FormatBullet {
		return l.str("levelText", "•")
	}
	tpl := l.LevelText(level)
	var b strings.Builder
	for i := 0; i < len(tpl); i++ {
		ch := tpl[i]
		if ch == '%' && i+1 < len(tpl) && tpl[i+1] >= '1' && tpl[i+1] <= '9' {
			n := int(tpl[i+1] - '1')
			v := lv.vals[n]
			if !lv.used[n] {
				v = def.Level(n).StartValue()
			}
			b.WriteString(Format(def.Level(n).NumberFormat(), v))
			i++
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// Format renders one counter value.
func Format(format string, v int) string {
	switch format {
	case FormatUpperRoman:
		return roman(v)
	case FormatLowerRoman:
		return strings.ToLower(roman(v))
	case FormatUpperLetter:
		return letters(v)
	case FormatLowerLetter:
		return strings.ToLower(letters(v))
	case FormatNone, FormatBullet:
		return ""
	}
	return strconv.Itoa(v)
}

var romanTable = []struct {
	v int
	s string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"}, {100, "C"}, {90, "XC"},
	{50, "L"}, {40, "XL"}, {10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

func roman(v int) string {
	if v <= 0 {
		return strconv.Itoa(v)
	}
	var b strings.Builder
	for _, r := range romanTable {
		for v >= r.v {
			b.WriteString(r.s)
			v -= r.v
		}
	}
	return b.String()
}

// letters renders A..Z, AA..ZZ, AAA.. the way office suites number lists.
func letters(v int) string {
	if v <= 0 {
		return strconv.Itoa(v)
	}
	ch := byte('A' + (v-1)%26)
	return strings.Repeat(string(ch), (v-1)/26+1)
}
