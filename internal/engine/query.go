package engine

import (
	"context"

	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/queryir"
	"github.com/roach88/flowtree/internal/store"
)

// FlowSummary describes one flow present in the store.
type FlowSummary struct {
	Flow     ir.FlowID   `json:"flowId"`
	Root     *ir.Message `json:"root,omitempty"`
	Messages int         `json:"messages"`
}

// ListMessages returns every message in identifier order.
func (e *Engine) ListMessages(ctx context.Context) ([]ir.Message, error) {
	var out []ir.Message
	err := e.read(ctx, "list_messages", func(ctx context.Context, tx store.Tx) error {
		msgs, err := tx.Find(ctx, nil)
		out = msgs
		return err
	})
	return out, err
}

// ListFlowMessages returns the messages of one flow in identifier order.
func (e *Engine) ListFlowMessages(ctx context.Context, flow ir.FlowID) ([]ir.Message, error) {
	if err := checkFlow(flow); err != nil {
		return nil, err
	}
	var out []ir.Message
	err := e.read(ctx, "list_flow_messages", func(ctx context.Context, tx store.Tx) error {
		msgs, err := tx.Find(ctx, queryir.FlowEquals{Flow: flow})
		out = msgs
		return err
	})
	return out, err
}

// GetMessage returns the message at identifier in flow.
func (e *Engine) GetMessage(ctx context.Context, flow ir.FlowID, identifier ir.Path) (ir.Message, bool, error) {
	if err := checkPath(flow, identifier); err != nil {
		return ir.Message{}, false, err
	}
	var (
		msg   ir.Message
		found bool
	)
	err := e.read(ctx, "get_message", func(ctx context.Context, tx store.Tx) error {
		var err error
		msg, found, err = tx.FindOne(ctx, inFlow(flow, identifier))
		return err
	})
	return msg, found, err
}

// ListFlows summarizes every flow, ordered by flow ordinal.
func (e *Engine) ListFlows(ctx context.Context) ([]FlowSummary, error) {
	msgs, err := e.ListMessages(ctx)
	if err != nil {
		return nil, err
	}

	out := []FlowSummary{}
	for _, m := range msgs {
		if len(out) == 0 || out[len(out)-1].Flow != m.FlowID {
			out = append(out, FlowSummary{Flow: m.FlowID})
		}
		cur := &out[len(out)-1]
		cur.Messages++
		if m.Identifier.Depth() == 2 {
			root := m
			cur.Root = &root
		}
	}
	return out, nil
}
