package ir

import (
	"fmt"
	"strconv"
)

// RootSegment is the first segment of every message identifier.
const RootSegment = 1

// FlowID is the ordinal of a top-level flow. Its canonical text form is the
// decimal integer, which is how it is persisted and how it appears as the
// second identifier segment.
type FlowID int

// ParseFlowID parses a flow identifier given as a numeric string.
func ParseFlowID(s string) (FlowID, error) {
	n, err := parseSegment(s)
	if err != nil {
		return 0, fmt.Errorf("%w: flow id %q: %v", ErrInvalidPath, s, err)
	}
	return FlowID(n), nil
}

// String returns the canonical decimal form.
func (f FlowID) String() string {
	return strconv.Itoa(int(f))
}

// Valid reports whether f is a usable flow ordinal.
func (f FlowID) Valid() bool {
	return f > 0
}

// RootPath returns the identifier of the flow's root message (1.<flow>).
func RootPath(f FlowID) Path {
	return Path{RootSegment, int(f)}
}

// FlowOf returns the flow ordinal encoded in p's second segment, or 0 when
// p is too short to carry one.
func FlowOf(p Path) FlowID {
	if len(p) < 2 {
		return 0
	}
	return FlowID(p[1])
}

// ValidateMessagePath checks the structural invariants of an identifier
// living in flow f: at least two segments, the root marker first, and the
// flow ordinal second.
func ValidateMessagePath(f FlowID, p Path) error {
	if len(p) < 2 {
		return fmt.Errorf("%w: %q must have at least two segments", ErrInvalidPath, p.String())
	}
	if p[0] != RootSegment {
		return fmt.Errorf("%w: %q must start with %d", ErrInvalidPath, p.String(), RootSegment)
	}
	if FlowOf(p) != f {
		return fmt.Errorf("%w: %q does not belong to flow %s", ErrInvalidPath, p.String(), f)
	}
	return nil
}
