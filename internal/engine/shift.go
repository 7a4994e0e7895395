package engine

import (
	"context"

	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/queryir"
	"github.com/roach88/flowtree/internal/store"
)

// flowSegment is the zero-based index of the flow ordinal in a path.
const flowSegment = 1

// shiftSiblings moves the run of parent's children whose ordinal
// satisfies "ordinal mode pivot" by delta, together with their subtrees.
//
// Only the segment directly below parent changes; every trailing segment
// is kept verbatim. The candidate set is read once by UpdateMany and each
// rewrite derives from the document's own prior path, so chained
// collisions (1.2.2 -> 1.2.3 while 1.2.3 -> 1.2.4) cannot compound.
func shiftSiblings(ctx context.Context, tx store.Tx, flow ir.FlowID, parent ir.Path, pivot, delta int, mode queryir.CompareOp) (int, error) {
	idx := parent.Depth()
	return tx.UpdateMany(ctx, queryir.Siblings(flow, parent, mode, pivot), func(m ir.Message) ir.Message {
		m.Identifier = m.Identifier.WithSegment(idx, m.Identifier.Segment(idx)+delta)
		return m
	})
}

// shiftFlows is shiftSiblings at the registry level: every flow whose
// ordinal satisfies "ordinal mode pivot" moves by delta, and flowId is
// rewritten along with the second path segment.
func shiftFlows(ctx context.Context, tx store.Tx, pivot, delta int, mode queryir.CompareOp) (int, error) {
	pred := queryir.SegmentCompare{Index: flowSegment, Op: mode, Value: pivot}
	return tx.UpdateMany(ctx, pred, func(m ir.Message) ir.Message {
		m.Identifier = m.Identifier.WithSegment(flowSegment, m.Identifier.Segment(flowSegment)+delta)
		m.FlowID = ir.FlowOf(m.Identifier)
		return m
	})
}

// relabelFlow moves every message of from into to. Trailing segments are
// untouched.
func relabelFlow(ctx context.Context, tx store.Tx, from, to ir.FlowID) (int, error) {
	return tx.UpdateMany(ctx, queryir.FlowEquals{Flow: from}, func(m ir.Message) ir.Message {
		m.Identifier = m.Identifier.WithSegment(flowSegment, int(to))
		m.FlowID = to
		return m
	})
}

// sentinelFlow returns a flow ordinal no message uses, by flowId or by
// path. It is only stable while the registry lock is held.
func sentinelFlow(ctx context.Context, tx store.Tx) (ir.FlowID, error) {
	msgs, err := tx.Find(ctx, nil)
	if err != nil {
		return 0, err
	}
	highest := ir.FlowID(0)
	for _, m := range msgs {
		highest = max(highest, m.FlowID, ir.FlowOf(m.Identifier))
	}
	return highest + 1, nil
}
