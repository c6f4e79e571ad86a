package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a Path: either a field name or an array index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

func Key(k string) Segment { return Segment{key: k} }

func Index(i int) Segment { return Segment{index: i, isIndex: true} }

func (s Segment) IsIndex() bool { return s.isIndex }

func (s Segment) Key() string { return s.key }

func (s Segment) Index() int { return s.index }

func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

func (s Segment) MarshalJSON() ([]byte, error) {
	if s.isIndex {
		return []byte(strconv.Itoa(s.index)), nil
	}
	return json.Marshal(s.key)
}

// UnmarshalJSON accepts a JSON string or a non-negative JSON integer.
func (s *Segment) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var k string
		if err := json.Unmarshal(data, &k); err != nil {
			return err
		}
		*s = Key(k)
		return nil
	}
	i, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("path segment %s is neither a string nor an integer", data)
	}
	if i < 0 {
		return fmt.Errorf("path segment %d is negative", i)
	}
	*s = Index(i)
	return nil
}

// Path addresses a node by position. Paths are not stable across deletes.
type Path []Segment

// P builds a Path from strings and ints. It panics on any other type and is
// meant for literals.
func P(parts ...any) Path {
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case string:
			p = append(p, Key(v))
		case int:
			p = append(p, Index(v))
		default:
			panic(fmt.Sprintf("tree.P: unsupported segment %T", part))
		}
	}
	return p
}

// ParsePath reads a dotted path such as "restaurants.0.menus.1.name". Parts
// made only of digits are indices.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}
	if strings.HasPrefix(s, "[") {
		var p Path
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", s, err)
		}
		return p, nil
	}
	parts := strings.Split(s, ".")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("invalid path %q: empty segment", s)
		}
		if i, err := strconv.Atoi(part); err == nil {
			if i < 0 {
				return nil, fmt.Errorf("invalid path %q: negative index", s)
			}
			p = append(p, Index(i))
			continue
		}
		p = append(p, Key(part))
	}
	return p, nil
}

func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if s.isIndex {
			fmt.Fprintf(&b, "[%d]", s.index)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.key)
	}
	return b.String()
}

func (p Path) Last() Segment { return p[len(p)-1] }

func (p Path) Parent() Path { return p[:len(p)-1] }

// Child returns a copy of p extended by segs.
func (p Path) Child(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}
