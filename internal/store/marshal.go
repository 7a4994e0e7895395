package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/flowtree/internal/ir"
)

// row is the column form of a message.
type row struct {
	ID         string
	FlowID     string
	Identifier string
	Segments   string
	Depth      int
	Content    string
}

// toRow converts a message to its column form, validating the
// structural invariants every persisted row must satisfy.
func toRow(msg ir.Message) (row, error) {
	if msg.ID == "" {
		return row{}, fmt.Errorf("marshal message: empty id")
	}
	if err := ir.ValidateMessagePath(msg.FlowID, msg.Identifier); err != nil {
		return row{}, fmt.Errorf("marshal message %s: %w", msg.ID, err)
	}

	segments, err := json.Marshal([]int(msg.Identifier))
	if err != nil {
		return row{}, fmt.Errorf("marshal segments: %w", err)
	}
	content, err := msg.Content.Canonical()
	if err != nil {
		return row{}, fmt.Errorf("marshal content: %w", err)
	}

	return row{
		ID:         msg.ID,
		FlowID:     msg.FlowID.String(),
		Identifier: msg.Identifier.String(),
		Segments:   string(segments),
		Depth:      msg.Identifier.Depth(),
		Content:    content,
	}, nil
}

// fromColumns rebuilds a message from the columns every SELECT returns.
func fromColumns(id, flowID, identifier, content string) (ir.Message, error) {
	flow, err := ir.ParseFlowID(flowID)
	if err != nil {
		return ir.Message{}, fmt.Errorf("unmarshal message %s: %w", id, err)
	}
	path, err := ir.ParsePath(identifier)
	if err != nil {
		return ir.Message{}, fmt.Errorf("unmarshal message %s: %w", id, err)
	}
	c, err := ir.ParseContent([]byte(content))
	if err != nil {
		return ir.Message{}, fmt.Errorf("unmarshal message %s content: %w", id, err)
	}
	return ir.Message{ID: id, FlowID: flow, Identifier: path, Content: c}, nil
}

// EncodeRecord serializes a message for key-value backends.
func EncodeRecord(msg ir.Message) ([]byte, error) {
	if _, err := toRow(msg); err != nil {
		return nil, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", msg.ID, err)
	}
	return data, nil
}

// DecodeRecord parses a record written by EncodeRecord.
func DecodeRecord(data []byte) (ir.Message, error) {
	var msg ir.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return ir.Message{}, fmt.Errorf("decode record: %w", err)
	}
	return msg, nil
}

// ApplyTransform runs fn and checks that document identity survived.
func ApplyTransform(fn Transform, msg ir.Message) (ir.Message, error) {
	out := fn(msg)
	if out.ID != msg.ID {
		return ir.Message{}, fmt.Errorf("%w: %s -> %s", ErrIDChanged, msg.ID, out.ID)
	}
	return out, nil
}
