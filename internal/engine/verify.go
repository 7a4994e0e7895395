package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/flowtree/internal/ir"
)

// ViolationKind names a broken tree invariant.
type ViolationKind string

const (
	// ViolationRootMarker: the first segment is not 1.
	ViolationRootMarker ViolationKind = "root_marker"

	// ViolationFlowMismatch: flowId differs from the second segment.
	ViolationFlowMismatch ViolationKind = "flow_mismatch"

	// ViolationDuplicate: two messages share an identifier.
	ViolationDuplicate ViolationKind = "duplicate"

	// ViolationGap: a parent's children are not numbered 1..k.
	ViolationGap ViolationKind = "gap"
)

// Violation is one invariant failure found by Verify.
type Violation struct {
	Kind       ViolationKind `json:"kind"`
	FlowID     ir.FlowID     `json:"flowId"`
	Identifier string        `json:"identifier"`
	Detail     string        `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s flow=%s %s: %s", v.Kind, v.FlowID, v.Identifier, v.Detail)
}

// Verify checks every committed message against the tree invariants and
// returns the violations found, in identifier order.
//
// Sibling contiguity is checked below flow roots only. Flow ordinals
// themselves may legitimately have gaps after DeleteMessagesByFlow.
func (e *Engine) Verify(ctx context.Context) ([]Violation, error) {
	msgs, err := e.ListMessages(ctx)
	if err != nil {
		return nil, err
	}
	return CheckInvariants(msgs), nil
}

// CheckInvariants is Verify over an in-memory message set.
func CheckInvariants(msgs []ir.Message) []Violation {
	sorted := slices.Clone(msgs)
	ir.SortMessages(sorted)

	violations := []Violation{}
	add := func(kind ViolationKind, m ir.Message, format string, args ...any) {
		violations = append(violations, Violation{
			Kind:       kind,
			FlowID:     m.FlowID,
			Identifier: m.Identifier.String(),
			Detail:     fmt.Sprintf(format, args...),
		})
	}

	type parentKey struct {
		flow   ir.FlowID
		parent string
	}
	children := map[parentKey][]int{}
	var parents []parentKey

	for i, m := range sorted {
		if m.Identifier.Depth() == 0 || m.Identifier.Segment(0) != ir.RootSegment {
			add(ViolationRootMarker, m, "first segment must be %d", ir.RootSegment)
		}
		if ir.FlowOf(m.Identifier) != m.FlowID {
			add(ViolationFlowMismatch, m, "second segment is %d", ir.FlowOf(m.Identifier))
		}
		if i > 0 && sorted[i-1].Identifier.Equal(m.Identifier) {
			add(ViolationDuplicate, m, "shared by %s and %s", sorted[i-1].ID, m.ID)
		}
		if m.Identifier.Depth() >= 3 {
			key := parentKey{flow: m.FlowID, parent: m.Identifier.Prefix().String()}
			if _, seen := children[key]; !seen {
				parents = append(parents, key)
			}
			children[key] = append(children[key], m.Identifier.Last())
		}
	}

	for _, key := range parents {
		ordinals := slices.Compact(children[key])
		for want, got := range ordinals {
			if got != want+1 {
				violations = append(violations, Violation{
					Kind:       ViolationGap,
					FlowID:     key.flow,
					Identifier: key.parent,
					Detail:     fmt.Sprintf("children %v are not numbered 1..%d", ordinals, len(ordinals)),
				})
				break
			}
		}
	}
	return violations
}
