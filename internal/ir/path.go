package ir

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned (wrapped) when an identifier string is not a
// dot-delimited sequence of positive integers.
var ErrInvalidPath = errors.New("invalid identifier format")

// Path is a message position in the flow forest, e.g. 1.2.3.
//
// Segments are positive integers. The path encodes both ancestry (every
// proper prefix is an ancestor) and sibling order (the last segment).
// A Path is treated as immutable: every method that "changes" a path
// returns a fresh copy and never aliases the receiver's backing array.
type Path []int

// ParsePath parses a dotted identifier such as "1.2.10".
//
// Rejected inputs: empty string, empty segments ("1..2", "1."), signs,
// non-digits, leading zeros ("1.02") and zero segments.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrInvalidPath)
	}

	parts := strings.Split(s, ".")
	p := make(Path, len(parts))
	for i, part := range parts {
		n, err := parseSegment(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q segment %d: %v", ErrInvalidPath, s, i+1, err)
		}
		p[i] = n
	}
	return p, nil
}

// MustParsePath is ParsePath for literals in tests and fixtures.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func parseSegment(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty segment")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, errors.New("leading zero")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New("segment must be positive")
	}
	return n, nil
}

// String formats the path in dotted form.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(seg))
	}
	return b.String()
}

// Depth returns the number of segments.
func (p Path) Depth() int {
	return len(p)
}

// Last returns the final segment (the sibling ordinal), or 0 for an empty path.
func (p Path) Last() int {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1]
}

// Prefix returns every segment except the last (the parent path).
func (p Path) Prefix() Path {
	if len(p) == 0 {
		return Path{}
	}
	return p.clone()[:len(p)-1]
}

// Segment returns the segment at zero-based index i.
func (p Path) Segment(i int) int {
	return p[i]
}

// WithSegment returns a copy with the segment at zero-based index i set to v.
// Trailing segments are preserved verbatim.
func (p Path) WithSegment(i, v int) Path {
	out := p.clone()
	out[i] = v
	return out
}

// WithLastReplaced returns a copy with the final segment set to v.
func (p Path) WithLastReplaced(v int) Path {
	return p.WithSegment(len(p)-1, v)
}

// Child returns a copy extended by one segment.
func (p Path) Child(v int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = v
	return out
}

// IsDescendantOrSelf reports whether ancestor is a prefix of p (or equal to it).
func (p Path) IsDescendantOrSelf(ancestor Path) bool {
	if len(ancestor) > len(p) {
		return false
	}
	for i, seg := range ancestor {
		if p[i] != seg {
			return false
		}
	}
	return true
}

// IsDescendantOf reports whether p lies strictly below ancestor.
func (p Path) IsDescendantOf(ancestor Path) bool {
	return len(p) > len(ancestor) && p.IsDescendantOrSelf(ancestor)
}

// Equal reports segment-wise equality.
func (p Path) Equal(o Path) bool {
	return len(p) == len(o) && p.IsDescendantOrSelf(o)
}

// Compare orders paths segment by segment as integers, so 1.2.9 sorts
// before 1.2.10. A proper prefix sorts before its extensions.
func (p Path) Compare(o Path) int {
	n := min(len(p), len(o))
	for i := 0; i < n; i++ {
		switch {
		case p[i] < o[i]:
			return -1
		case p[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(p) < len(o):
		return -1
	case len(p) > len(o):
		return 1
	}
	return 0
}

// MarshalText implements encoding.TextMarshaler (JSON and YAML use the dotted form).
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(data []byte) error {
	parsed, err := ParsePath(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Path) clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}
