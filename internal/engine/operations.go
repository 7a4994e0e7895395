package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/flowtree/internal/flowlog"
	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/lock"
	"github.com/roach88/flowtree/internal/queryir"
	"github.com/roach88/flowtree/internal/store"
)

// Operation names, used as metric and log labels.
const (
	OpInsertMessage        = "insert_message"
	OpInsertMainFlow       = "insert_main_flow"
	OpDeleteMessage        = "delete_message"
	OpDeleteMessagesByFlow = "delete_messages_by_flow"
	OpDeleteMainFlow       = "delete_main_flow"
	OpExchangeFlows        = "exchange_flows"
	OpUpdateMessage        = "update_message"
)

// FlowResult reports the outcome of a flow-level operation.
//
// Precondition failures (the flow exists, the flow is missing) are
// reported here with Success=false and a nil error. Only persistence and
// lock failures are returned as errors.
type FlowResult struct {
	Success bool   `json:"success"`
	Code    Code   `json:"code,omitempty"`
	Message string `json:"message"`
}

// MessageUpdate is the replacement data for UpdateMessage.
type MessageUpdate struct {
	// Identifier is the new path. Nil keeps the current one.
	Identifier ir.Path

	// Content replaces the payload. Nil keeps the current one.
	Content *ir.Content
}

// checkPath validates identifier against flow before any lock is taken.
func checkPath(flow ir.FlowID, identifier ir.Path) error {
	if !flow.Valid() {
		return invalidIdentifier(flow, identifier.String(), fmt.Errorf("%w: flow id must be positive", ir.ErrInvalidPath))
	}
	if err := ir.ValidateMessagePath(flow, identifier); err != nil {
		return invalidIdentifier(flow, identifier.String(), err)
	}
	return nil
}

func checkFlow(flow ir.FlowID) error {
	if !flow.Valid() {
		return invalidIdentifier(flow, "", fmt.Errorf("%w: flow id must be positive", ir.ErrInvalidPath))
	}
	return nil
}

func inFlow(flow ir.FlowID, identifier ir.Path) queryir.Predicate {
	return queryir.All(queryir.FlowEquals{Flow: flow}, queryir.IdentifierEquals{Path: identifier})
}

// InsertMessage creates a message at identifier, first shifting the
// sibling at that position and every later sibling (with their subtrees)
// up by one.
//
// Identifiers of depth 2 or less are flow roots and are rejected with
// ROOT_FLOW_INSERT_NOT_ALLOWED; use InsertMainFlow.
func (e *Engine) InsertMessage(ctx context.Context, flow ir.FlowID, identifier ir.Path, content ir.Content) (ir.Message, error) {
	if identifier.Depth() <= 2 {
		return ir.Message{}, &Error{
			Code:       CodeRootFlowInsert,
			Message:    "cannot insert into a main flow position; use insertMainFlow",
			FlowID:     flow,
			Identifier: identifier.String(),
		}
	}
	if err := checkPath(flow, identifier); err != nil {
		return ir.Message{}, err
	}

	msg := ir.Message{
		ID:         e.ids.Generate(),
		FlowID:     flow,
		Identifier: identifier,
		Content:    content,
	}

	_, err := e.mutate(ctx, OpInsertMessage, lock.FlowScope(flow), func(ctx context.Context, tx store.Tx) (int, error) {
		n, err := shiftSiblings(ctx, tx, flow, identifier.Prefix(), identifier.Last(), +1, queryir.OpGte)
		if err != nil {
			return 0, err
		}
		return n, tx.InsertOne(ctx, msg)
	})
	if err != nil {
		return ir.Message{}, err
	}
	return msg, nil
}

// InsertMainFlow creates the root message 1.<flow>, first shifting every
// flow with an ordinal at or above flow up by one.
func (e *Engine) InsertMainFlow(ctx context.Context, flow ir.FlowID, content ir.Content) (FlowResult, error) {
	if err := checkFlow(flow); err != nil {
		return FlowResult{}, err
	}

	root := ir.Message{
		ID:         e.ids.Generate(),
		FlowID:     flow,
		Identifier: ir.RootPath(flow),
		Content:    content,
	}

	_, err := e.mutate(ctx, OpInsertMainFlow, lock.RegistryScope(), func(ctx context.Context, tx store.Tx) (int, error) {
		existing, err := tx.Count(ctx, queryir.FlowEquals{Flow: flow})
		if err != nil {
			return 0, err
		}
		if existing > 0 {
			return 0, &Error{
				Code:    CodeFlowAlreadyExists,
				Message: fmt.Sprintf("main flow %s already exists", root.Identifier),
				FlowID:  flow,
			}
		}

		n, err := shiftFlows(ctx, tx, int(flow), +1, queryir.OpGte)
		if err != nil {
			return 0, err
		}
		return n, tx.InsertOne(ctx, root)
	})
	if res, ok := flowResult(err); ok {
		return res, nil
	}
	if err != nil {
		return FlowResult{}, err
	}
	return FlowResult{Success: true, Message: fmt.Sprintf("main flow %s created", root.Identifier)}, nil
}

// DeleteMessage removes the message at identifier, then shifts every later
// sibling (with their subtrees) down by one to close the gap. A missing
// target is not an error.
//
// Deleting a flow root (depth 2) removes that row only; descendants stay.
// Use DeleteMessagesByFlow or DeleteMainFlow to remove a whole flow.
func (e *Engine) DeleteMessage(ctx context.Context, flow ir.FlowID, identifier ir.Path) (string, error) {
	if err := checkPath(flow, identifier); err != nil {
		return "", err
	}

	scope := lock.FlowScope(flow)
	if identifier.Depth() <= 2 {
		scope = lock.RegistryScope()
	}

	_, err := e.mutate(ctx, OpDeleteMessage, scope, func(ctx context.Context, tx store.Tx) (int, error) {
		removed, err := tx.DeleteOne(ctx, inFlow(flow, identifier))
		if err != nil {
			return 0, err
		}
		if removed == 0 {
			e.logger.Debug("delete target not found", flowlog.FlowID(flow), flowlog.Identifier(identifier))
		}
		return shiftSiblings(ctx, tx, flow, identifier.Prefix(), identifier.Last(), -1, queryir.OpGt)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Message %s deleted and identifiers updated", identifier), nil
}

// DeleteMessagesByFlow removes every message carrying flow. Nothing is
// renumbered, neither inside the flow nor across flows.
func (e *Engine) DeleteMessagesByFlow(ctx context.Context, flow ir.FlowID) (int, error) {
	if err := checkFlow(flow); err != nil {
		return 0, err
	}

	var removed int
	_, err := e.mutate(ctx, OpDeleteMessagesByFlow, lock.FlowScope(flow), func(ctx context.Context, tx store.Tx) (int, error) {
		n, err := tx.DeleteMany(ctx, queryir.FlowEquals{Flow: flow})
		removed = n
		return 0, err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// DeleteMainFlow removes a whole flow and shifts every later flow down by
// one, keeping flow ordinals gapless.
func (e *Engine) DeleteMainFlow(ctx context.Context, flow ir.FlowID) (FlowResult, error) {
	if err := checkFlow(flow); err != nil {
		return FlowResult{}, err
	}

	var removed int
	_, err := e.mutate(ctx, OpDeleteMainFlow, lock.RegistryScope(), func(ctx context.Context, tx store.Tx) (int, error) {
		n, err := tx.DeleteMany(ctx, queryir.FlowEquals{Flow: flow})
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, &Error{
				Code:    CodeFlowNotFound,
				Message: fmt.Sprintf("main flow %s does not exist", ir.RootPath(flow)),
				FlowID:  flow,
			}
		}
		removed = n
		return shiftFlows(ctx, tx, int(flow), -1, queryir.OpGt)
	})
	if res, ok := flowResult(err); ok {
		return res, nil
	}
	if err != nil {
		return FlowResult{}, err
	}
	return FlowResult{
		Success: true,
		Message: fmt.Sprintf("main flow %s deleted (%d messages)", ir.RootPath(flow), removed),
	}, nil
}

// ExchangeFlows swaps the positions of flows a and b. Every message of a
// takes b's ordinal and vice versa; trailing sub-paths are preserved.
//
// The swap routes through a sentinel ordinal that no message uses, so the
// two key spaces never collide. The registry lock is held throughout, so
// no other operation can observe the sentinel.
func (e *Engine) ExchangeFlows(ctx context.Context, a, b ir.FlowID) (FlowResult, error) {
	if err := checkFlow(a); err != nil {
		return FlowResult{}, err
	}
	if err := checkFlow(b); err != nil {
		return FlowResult{}, err
	}
	if a == b {
		return FlowResult{
			Code:    CodeInvalidIdentifier,
			Message: fmt.Sprintf("cannot exchange flow %s with itself", a),
		}, nil
	}

	_, err := e.mutate(ctx, OpExchangeFlows, lock.RegistryScope(), func(ctx context.Context, tx store.Tx) (int, error) {
		countA, err := tx.Count(ctx, queryir.FlowEquals{Flow: a})
		if err != nil {
			return 0, err
		}
		countB, err := tx.Count(ctx, queryir.FlowEquals{Flow: b})
		if err != nil {
			return 0, err
		}
		if countA == 0 || countB == 0 {
			return 0, &Error{Code: CodeFlowNotFound, Message: "one or both flows do not exist"}
		}

		sentinel, err := sentinelFlow(ctx, tx)
		if err != nil {
			return 0, err
		}

		steps := [][2]ir.FlowID{{a, sentinel}, {b, a}, {sentinel, b}}
		total := 0
		for _, step := range steps {
			n, err := relabelFlow(ctx, tx, step[0], step[1])
			if err != nil {
				return 0, err
			}
			total += n
		}
		// The sentinel pass moves a's messages twice.
		return total - countA, nil
	})
	if res, ok := flowResult(err); ok {
		return res, nil
	}
	if err != nil {
		return FlowResult{}, err
	}
	return FlowResult{Success: true, Message: fmt.Sprintf("flows %s and %s exchanged", a, b)}, nil
}

// UpdateMessage rewrites the message at old with upd.
//
// The new identifier must share old's parent, else the update fails with
// CROSS_PARENT_MOVE_NOT_ALLOWED. An unchanged identifier is a content-only
// update. A changed one rewrites the target, then increments every other
// direct child of the parent whose ordinal is at or above old's. The
// target's own descendants keep their paths, and the increment is +1 for
// moves in either direction. A missing target is not an error.
func (e *Engine) UpdateMessage(ctx context.Context, flow ir.FlowID, old ir.Path, upd MessageUpdate) error {
	if err := checkPath(flow, old); err != nil {
		return err
	}
	next := upd.Identifier
	if next == nil {
		next = old
	}
	if !next.Prefix().Equal(old.Prefix()) {
		return &Error{
			Code:       CodeCrossParentMove,
			Message:    fmt.Sprintf("cannot move %s to %s: messages can only be renamed within the same parent", old, next),
			FlowID:     flow,
			Identifier: old.String(),
		}
	}
	if err := checkPath(flow, next); err != nil {
		return err
	}

	_, err := e.mutate(ctx, OpUpdateMessage, lock.FlowScope(flow), func(ctx context.Context, tx store.Tx) (int, error) {
		target, ok, err := tx.FindOne(ctx, inFlow(flow, old))
		if err != nil {
			return 0, err
		}
		if !ok {
			e.logger.Debug("update target not found", flowlog.FlowID(flow), flowlog.Identifier(old))
			return 0, nil
		}

		_, err = tx.UpdateMany(ctx, queryir.IDEquals{ID: target.ID}, func(m ir.Message) ir.Message {
			m.Identifier = next
			if upd.Content != nil {
				m.Content = *upd.Content
			}
			return m
		})
		if err != nil || next.Equal(old) {
			return 0, err
		}

		parent := old.Prefix()
		idx := parent.Depth()
		later := queryir.All(
			queryir.FlowEquals{Flow: flow},
			queryir.Under{Prefix: parent},
			queryir.DepthEquals{Depth: old.Depth()},
			queryir.SegmentCompare{Index: idx, Op: queryir.OpGte, Value: old.Last()},
			queryir.Not{Predicate: queryir.IDEquals{ID: target.ID}},
		)
		return tx.UpdateMany(ctx, later, func(m ir.Message) ir.Message {
			m.Identifier = m.Identifier.WithLastReplaced(m.Identifier.Last() + 1)
			return m
		})
	})
	return err
}

// flowResult converts a precondition *Error into a failed FlowResult.
func flowResult(err error) (FlowResult, bool) {
	switch CodeOf(err) {
	case CodeFlowAlreadyExists, CodeFlowNotFound:
		var e *Error
		errors.As(err, &e)
		return FlowResult{Code: e.Code, Message: e.Message}, true
	}
	return FlowResult{}, false
}
