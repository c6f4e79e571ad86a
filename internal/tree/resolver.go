package tree

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// Location is a resolved path: the container holding the terminal value and
// the terminal segment. Container is a map[string]any or a []any. Reads and
// writes go through the JSONPath expression of the path, applied to the root.
type Location struct {
	Container any
	Key       Segment

	root any
	expr jp.Expr
}

// Expr converts p into a JSONPath expression of child and nth fragments.
func (p Path) Expr() jp.Expr {
	var x jp.Expr
	for _, seg := range p {
		if seg.IsIndex() {
			x = x.N(seg.Index())
			continue
		}
		x = x.C(seg.Key())
	}
	return x
}

// Resolve walks path through root. Every segment before the last must exist
// with the matching kind, and the last segment must match the kind of its
// container. The terminal value itself may be absent; see Location.Value.
func Resolve(root any, path Path) (*Location, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrPathNotFound)
	}
	if path[0].IsIndex() {
		return nil, fmt.Errorf("%w: path must start with a field name", ErrPathNotFound)
	}

	node := root
	for i, seg := range path[:len(path)-1] {
		child, ok := step(node, seg)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path[:i+1])
		}
		node = child
	}

	last := path.Last()
	switch node.(type) {
	case map[string]any:
		if last.IsIndex() {
			return nil, fmt.Errorf("%w: %s: index into a record", ErrPathNotFound, path)
		}
	case []any:
		if !last.IsIndex() {
			return nil, fmt.Errorf("%w: %s: field of an array", ErrPathNotFound, path)
		}
	default:
		return nil, fmt.Errorf("%w: %s: %s is a scalar", ErrPathNotFound, path, path.Parent())
	}
	return &Location{Container: node, Key: last, root: root, expr: path.Expr()}, nil
}

// step checks that seg exists in node with the right kind and returns the child.
func step(node any, seg Segment) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		if seg.IsIndex() {
			return nil, false
		}
		child, ok := n[seg.Key()]
		return child, ok
	case []any:
		if !seg.IsIndex() || seg.Index() < 0 || seg.Index() >= len(n) {
			return nil, false
		}
		return n[seg.Index()], true
	}
	return nil, false
}

// Value returns the terminal value and whether it exists.
func (l *Location) Value() (any, bool) {
	if l.IsArray() && l.Key.Index() >= len(l.Container.([]any)) {
		return nil, false
	}
	got := l.expr.Get(l.root)
	if len(got) == 0 {
		return nil, false
	}
	return got[0], true
}

// IsArray reports whether the container is an array.
func (l *Location) IsArray() bool {
	_, ok := l.Container.([]any)
	return ok
}

// Set overwrites the terminal value. For arrays the index must be in range.
func (l *Location) Set(v any) error {
	if l.IsArray() {
		if _, ok := l.Value(); !ok {
			return fmt.Errorf("%w: index %d out of range", ErrPathNotFound, l.Key.Index())
		}
	}
	return l.expr.SetOne(l.root, v)
}

// Remove splices the terminal element out of an array container, shifting
// every later sibling down by one. It returns the removed element.
func (l *Location) Remove() (any, bool) {
	if !l.IsArray() {
		return nil, false
	}
	removed, ok := l.Value()
	if !ok {
		return nil, false
	}
	if _, err := l.expr.RemoveOne(l.root); err != nil {
		return nil, false
	}
	return removed, true
}

// ValueAt resolves path against the JSON shape of doc and returns the value
// found there.
func ValueAt(doc any, path Path) (any, error) {
	root, err := toTree(doc)
	if err != nil {
		return nil, err
	}
	loc, err := Resolve(root, path)
	if err != nil {
		return nil, err
	}
	v, ok := loc.Value()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	return v, nil
}
