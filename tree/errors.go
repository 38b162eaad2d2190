package tree

import (
	"errors"
	"fmt"
)

// Addressing errors
var (
	// ErrOutOfRange indicates that a path index exceeds the sibling count.
	ErrOutOfRange = errors.New("path index out of range")

	// ErrTypeMismatch indicates that a path descends into a component that cannot
	// hold the addressed children.
	ErrTypeMismatch = errors.New("path component type mismatch")
)

// Structure errors
var (
	// ErrStructure indicates a grid or list invariant violation detected after a
	// mutation.
	ErrStructure = errors.New("structure invariant violated")

	// ErrUnclonable indicates foreign content that cannot be duplicated.
	ErrUnclonable = errors.New("foreign content cannot be cloned")
)

// PathError is returned when a path does not resolve.
type PathError struct {
	Path  Path
	Depth int
	Err   error // ErrOutOfRange or ErrTypeMismatch
	Msg   string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path %v at depth %d: %v: %s", e.Path, e.Depth, e.Err, e.Msg)
}

func (e *PathError) Unwrap() error { return e.Err }

func outOfRange(p Path, depth, index, count int) error {
	return &PathError{Path: p, Depth: depth, Err: ErrOutOfRange,
		Msg: fmt.Sprintf("index %d, %d available", index, count)}
}

func mismatch(p Path, depth int, got Kind, want string) error {
	return &PathError{Path: p, Depth: depth, Err: ErrTypeMismatch,
		Msg: fmt.Sprintf("%s cannot hold %s", got, want)}
}

// StructureError reports a broken table grid or list grouping.
type StructureError struct {
	Component ID
	Kind      Kind
	Reason    string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Kind, e.Component, e.Reason)
}

func (e *StructureError) Unwrap() error { return ErrStructure }

// Structuref builds a StructureError for c.
func Structuref(c *Component, format string, args ...any) error {
	return &StructureError{Component: c.ID, Kind: c.Kind, Reason: fmt.Sprintf(format, args...)}
}
