package engine

import (
	"errors"
	"fmt"

	"github.com/alimasry/go-docops/list"
	"github.com/alimasry/go-docops/sheet"
	"github.com/alimasry/go-docops/style"
	"github.com/alimasry/go-docops/tree"
)

// Operation failure kinds. Every error returned by Apply is an *OpError whose
// Kind is one of these.
var (
	ErrInvalidPath       = errors.New("invalid path")
	ErrUnknownStyle      = errors.New("unknown style reference")
	ErrUnclonableForeign = errors.New("unclonable foreign content")
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrMissingField      = errors.New("missing field")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrOutOfOrder        = errors.New("operation out of order")
)

var kinds = []error{
	ErrInvalidPath, ErrUnknownStyle, ErrUnclonableForeign, ErrUnknownOperation,
	ErrMissingField, ErrInvalidOperation, ErrOutOfOrder,
}

// OpError reports the operation that failed and why. errors.Is matches both
// its Kind and the underlying cause.
type OpError struct {
	Op    string
	OSN   *int
	Index int // position in the applied batch
	Kind  error
	Err   error
}

func (e *OpError) Error() string {
	osn := "-"
	if e.OSN != nil {
		osn = fmt.Sprint(*e.OSN)
	}
	return fmt.Sprintf("operation %d (%s, osn %s): %v: %v", e.Index, e.Op, osn, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error { return []error{e.Kind, e.Err} }

// classify picks the kind of a handler failure.
func classify(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	var pe *tree.PathError
	switch {
	case errors.As(err, &pe):
		return ErrInvalidPath
	case errors.Is(err, style.ErrDangling), errors.Is(err, list.ErrUnknown):
		return ErrUnknownStyle
	case errors.Is(err, tree.ErrUnclonable):
		return ErrUnclonableForeign
	case errors.Is(err, sheet.ErrLimit):
		return ErrInvalidPath
	}
	return ErrInvalidOperation
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}
