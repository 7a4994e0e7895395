package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_Text(t *testing.T) {
	c := NewTextContent("hola")

	s, ok := c.Text()
	assert.True(t, ok)
	assert.Equal(t, "hola", s)
	assert.Equal(t, "hola", c.String())

	canonical, err := c.Canonical()
	require.NoError(t, err)
	assert.Equal(t, `"hola"`, canonical)
}

func TestContent_Structured(t *testing.T) {
	c, err := ParseContent([]byte(`{ "b": 1, "a": [true, null] }`))
	require.NoError(t, err)

	_, ok := c.Text()
	assert.False(t, ok)
	assert.Equal(t, `{"a":[true,null],"b":1}`, c.String())
}

func TestContent_ZeroIsNull(t *testing.T) {
	var c Content
	assert.Equal(t, Null{}, c.Value())
	assert.Equal(t, "null", c.String())
}

func TestContent_Equal(t *testing.T) {
	a, err := ParseContent([]byte(`{"x":1,"y":2}`))
	require.NoError(t, err)
	b, err := ParseContent([]byte(`{"y":2,"x":1}`))
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(NewTextContent("x")))
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	m := Message{
		ID:         "m-1",
		FlowID:     2,
		Identifier: MustParsePath("1.2.3"),
		Content:    NewTextContent("X"),
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"m-1","flowId":"2","identifier":"1.2.3","content":"X"}`, string(data))

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m.ID, decoded.ID)
	assert.Equal(t, m.FlowID, decoded.FlowID)
	assert.Equal(t, m.Identifier, decoded.Identifier)
	assert.True(t, m.Content.Equal(decoded.Content))
}

func TestMessage_UnmarshalRejectsBadFlow(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"id":"a","flowId":"zero","identifier":"1.2","content":"x"}`), &m)
	assert.Error(t, err)
}

func TestSortMessages(t *testing.T) {
	msgs := []Message{
		{ID: "c", Identifier: MustParsePath("1.2.10")},
		{ID: "b", Identifier: MustParsePath("1.2.9")},
		{ID: "a", Identifier: MustParsePath("1.2.9")},
		{ID: "d", Identifier: MustParsePath("1.2")},
	}

	SortMessages(msgs)

	var ids []string
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids)
}
