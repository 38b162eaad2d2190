package ops

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// ParseLog decodes a strict JSON array of operations.
func ParseLog(data []byte) ([]Operation, error) {
	var log []Operation
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("parse operation log: %w", err)
	}
	return log, nil
}

// LoadLog decodes an operation log written by hand: JSON5 syntax, either a bare
// array or an object holding it under "operations".
func LoadLog(r io.Reader) ([]Operation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read operation log: %w", err)
	}
	var raw any
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse operation log: %w", err)
	}
	if obj, ok := raw.(map[string]any); ok {
		inner, ok := obj["operations"]
		if !ok {
			return nil, fmt.Errorf("parse operation log: object without \"operations\"")
		}
		raw = inner
	}
	strict, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse operation log: %w", err)
	}
	return ParseLog(strict)
}

// LoadFile reads an operation log from disk.
func LoadFile(path string) ([]Operation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	log, err := LoadLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return log, nil
}

// Canonicalize returns the canonical form of a log: sequence numbers dropped,
// no-ops dropped, empty attribute sets dropped, and adjacent insertText
// operations that continue each other merged into one.
func Canonicalize(log []Operation) []Operation {
	out := make([]Operation, 0, len(log))
	for i := range log {
		op := log[i]
		if op.Name == NoOp {
			continue
		}
		if op.Attrs != nil && op.Attrs.IsZero() {
			op.Attrs = nil
		}
		if n := len(out); n > 0 && continues(&log[i-1], &out[n-1], &op) {
			out[n-1].Text += op.Text
			continue
		}
		op.OSN, op.OPL = nil, 0
		out = append(out, op)
	}
	return out
}

// continues reports whether op appends text directly behind prev. orig is the
// uncanonicalized predecessor, which still carries its sequence numbers.
func continues(orig, prev, op *Operation) bool {
	if prev.Name != InsertText || op.Name != InsertText || orig.Name != InsertText {
		return false
	}
	if !prev.Start.SameParent(op.Start) {
		return false
	}
	if op.Start.Last() != prev.Start.Last()+utf8.RuneCountInString(prev.Text) {
		return false
	}
	if !prev.Patch().Equal(op.Patch()) {
		return false
	}
	if orig.OSN != nil && op.OSN != nil && *op.OSN != *orig.OSN+orig.Length() {
		return false
	}
	return true
}

// canonicalJSON renders the canonical form of a log as generic JSON values, so
// key order and numeric types never matter.
func canonicalJSON(log []Operation) ([]any, error) {
	data, err := json.Marshal(Canonicalize(log))
	if err != nil {
		return nil, err
	}
	var out []any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Equivalent reports whether two logs have the same canonical form.
func Equivalent(a, b []Operation) bool {
	return Diff(a, b) == ""
}

// Diff describes how the canonical forms of two logs differ; empty when they
// are equivalent.
func Diff(a, b []Operation) string {
	ca, err := canonicalJSON(a)
	if err != nil {
		return fmt.Sprintf("encode first log: %v", err)
	}
	cb, err := canonicalJSON(b)
	if err != nil {
		return fmt.Sprintf("encode second log: %v", err)
	}
	return cmp.Diff(ca, cb)
}

// Fingerprint hashes the canonical form of a log. Equivalent logs share a
// fingerprint.
func Fingerprint(log []Operation) (uint64, error) {
	data, err := json.Marshal(Canonicalize(log))
	if err != nil {
		return 0, fmt.Errorf("fingerprint: %w", err)
	}
	return xxhash.Sum64(data), nil
}
