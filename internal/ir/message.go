package ir

import (
	"encoding/json"
	"slices"
)

// Content is the opaque payload of a message. The engine never interprets
// it; it only carries it between the caller and the store.
type Content struct {
	v Value
}

// NewTextContent wraps a plain string payload.
func NewTextContent(s string) Content {
	return Content{v: Text(s)}
}

// NewContent wraps an arbitrary value.
func NewContent(v Value) Content {
	return Content{v: v}
}

// ParseContent decodes a JSON document into Content.
func ParseContent(data []byte) (Content, error) {
	v, err := DecodeValue(data)
	if err != nil {
		return Content{}, err
	}
	return Content{v: v}, nil
}

// Value returns the wrapped value (Null for the zero Content).
func (c Content) Value() Value {
	if c.v == nil {
		return Null{}
	}
	return c.v
}

// Text returns the payload as a string when it is one.
func (c Content) Text() (string, bool) {
	t, ok := c.v.(Text)
	return string(t), ok
}

// Canonical returns the canonical JSON encoding used for persistence.
func (c Content) Canonical() (string, error) {
	b, err := MarshalCanonical(c.Value())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// String renders text payloads verbatim and anything else as canonical JSON.
func (c Content) String() string {
	if s, ok := c.Text(); ok {
		return s
	}
	s, err := c.Canonical()
	if err != nil {
		return "<invalid content>"
	}
	return s
}

// Equal compares canonical encodings.
func (c Content) Equal(o Content) bool {
	a, errA := c.Canonical()
	b, errB := o.Canonical()
	return errA == nil && errB == nil && a == b
}

// MarshalJSON implements json.Marshaler.
func (c Content) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(c.Value())
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Content) UnmarshalJSON(data []byte) error {
	parsed, err := ParseContent(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Message is the only persisted entity: one node of a flow tree.
type Message struct {
	// ID is the document identity used to address a row during batched
	// rewrites. It never takes part in ordering.
	ID string `json:"id"`

	// FlowID groups every message of one top-level flow and always equals
	// the second segment of Identifier.
	FlowID FlowID `json:"flowId"`

	// Identifier is the positional path, e.g. 1.2.3.
	Identifier Path `json:"identifier"`

	Content Content `json:"content"`
}

// messageJSON carries FlowID as a string, matching the persisted form.
type messageJSON struct {
	ID         string  `json:"id"`
	FlowID     string  `json:"flowId"`
	Identifier Path    `json:"identifier"`
	Content    Content `json:"content"`
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		ID:         m.ID,
		FlowID:     m.FlowID.String(),
		Identifier: m.Identifier,
		Content:    m.Content,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	flow, err := ParseFlowID(raw.FlowID)
	if err != nil {
		return err
	}
	*m = Message{ID: raw.ID, FlowID: flow, Identifier: raw.Identifier, Content: raw.Content}
	return nil
}

// SortMessages orders messages by identifier, then by ID as a tiebreaker.
func SortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, CompareMessages)
}

// CompareMessages is the ordering used by SortMessages.
func CompareMessages(a, b Message) int {
	if c := a.Identifier.Compare(b.Identifier); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
