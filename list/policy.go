package list

import "fmt"

// Policy decides which attributes put a paragraph into a list.
type Policy string

const (
	// PolicyInline honours only the listStyleId a paragraph carries itself,
	// directly or through its automatic style. A list style reached through the
	// paragraph's named style leaves it out of any list.
	PolicyInline Policy = "inline"

	// PolicyInherit also honours a listStyleId inherited from the paragraph's
	// named style chain.
	PolicyInherit Policy = "inherit"
)

// ParsePolicy converts a configuration value; empty selects PolicyInline.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyInline:
		return PolicyInline, nil
	case PolicyInherit:
		return PolicyInherit, nil
	}
	return "", fmt.Errorf("unknown list policy %q", s)
}
