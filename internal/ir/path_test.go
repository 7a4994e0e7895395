package ir

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath_Valid(t *testing.T) {
	tests := []struct {
		input    string
		expected Path
	}{
		{"1", Path{1}},
		{"1.2", Path{1, 2}},
		{"1.2.3", Path{1, 2, 3}},
		{"1.2.10", Path{1, 2, 10}},
		{"1.99.100.7", Path{1, 99, 100, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePath(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
			assert.Equal(t, tt.input, p.String())
		})
	}
}

func TestParsePath_Invalid(t *testing.T) {
	inputs := []string{"", ".", "1.", ".1", "1..2", "1.a", "1.-2", "1.+2", "1.0", "1.02", "1.2 ", " 1.2", "1,2"}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ParsePath(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPath))
		})
	}
}

func TestPath_PrefixAndLast(t *testing.T) {
	p := MustParsePath("1.2.3")

	assert.Equal(t, Path{1, 2}, p.Prefix())
	assert.Equal(t, 3, p.Last())
	assert.Equal(t, 3, p.Depth())

	// Prefix must not alias the receiver
	pre := p.Prefix()
	pre[0] = 9
	assert.Equal(t, Path{1, 2, 3}, p)
}

func TestPath_EmptyEdges(t *testing.T) {
	var p Path
	assert.Equal(t, 0, p.Last())
	assert.Equal(t, Path{}, p.Prefix())
	assert.Equal(t, "", p.String())
}

func TestPath_WithSegmentPreservesSuffix(t *testing.T) {
	p := MustParsePath("1.2.3.4.5")

	shifted := p.WithSegment(2, 4)
	assert.Equal(t, "1.2.4.4.5", shifted.String())
	assert.Equal(t, "1.2.3.4.5", p.String(), "receiver unchanged")

	assert.Equal(t, "1.2.3.4.9", p.WithLastReplaced(9).String())
	assert.Equal(t, "1.2.3.4.5.1", p.Child(1).String())
}

func TestPath_IsDescendantOrSelf(t *testing.T) {
	tests := []struct {
		candidate string
		ancestor  string
		self      bool
		strict    bool
	}{
		{"1.2.3", "1.2", true, true},
		{"1.2", "1.2", true, false},
		{"1.2.3.4", "1.2", true, true},
		{"1.20.3", "1.2", false, false},
		{"1.2", "1.2.3", false, false},
		{"1.3.1", "1.2", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.candidate+"_under_"+tt.ancestor, func(t *testing.T) {
			c := MustParsePath(tt.candidate)
			a := MustParsePath(tt.ancestor)
			assert.Equal(t, tt.self, c.IsDescendantOrSelf(a))
			assert.Equal(t, tt.strict, c.IsDescendantOf(a))
		})
	}
}

func TestPath_CompareIsNumeric(t *testing.T) {
	assert.Equal(t, -1, MustParsePath("1.2.9").Compare(MustParsePath("1.2.10")))
	assert.Equal(t, 1, MustParsePath("1.10").Compare(MustParsePath("1.9.5")))
	assert.Equal(t, -1, MustParsePath("1.2").Compare(MustParsePath("1.2.1")))
	assert.Equal(t, 0, MustParsePath("1.2.3").Compare(MustParsePath("1.2.3")))

	paths := []Path{
		MustParsePath("1.2.10"),
		MustParsePath("1.2"),
		MustParsePath("1.2.9.1"),
		MustParsePath("1.10"),
		MustParsePath("1.2.9"),
	}
	slices.SortFunc(paths, Path.Compare)

	var got []string
	for _, p := range paths {
		got = append(got, p.String())
	}
	assert.Equal(t, []string{"1.2", "1.2.9", "1.2.9.1", "1.2.10", "1.10"}, got)
}

func TestPath_JSONUsesDottedForm(t *testing.T) {
	data, err := json.Marshal(struct {
		ID Path `json:"id"`
	}{ID: MustParsePath("1.4.2")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1.4.2"}`, string(data))

	var decoded struct {
		ID Path `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Path{1, 4, 2}, decoded.ID)

	err = json.Unmarshal([]byte(`{"id":"1..2"}`), &decoded)
	assert.Error(t, err)
}

func TestParseFlowID(t *testing.T) {
	f, err := ParseFlowID("12")
	require.NoError(t, err)
	assert.Equal(t, FlowID(12), f)
	assert.Equal(t, "12", f.String())

	for _, bad := range []string{"", "0", "-1", "1.2", "x", "01"} {
		_, err := ParseFlowID(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateMessagePath(t *testing.T) {
	assert.NoError(t, ValidateMessagePath(2, MustParsePath("1.2")))
	assert.NoError(t, ValidateMessagePath(2, MustParsePath("1.2.5.1")))

	assert.ErrorIs(t, ValidateMessagePath(2, MustParsePath("1")), ErrInvalidPath)
	assert.ErrorIs(t, ValidateMessagePath(2, MustParsePath("2.2.1")), ErrInvalidPath)
	assert.ErrorIs(t, ValidateMessagePath(2, MustParsePath("1.3.1")), ErrInvalidPath)
}

func TestRootPathAndFlowOf(t *testing.T) {
	assert.Equal(t, "1.7", RootPath(7).String())
	assert.Equal(t, FlowID(7), FlowOf(MustParsePath("1.7.3")))
	assert.Equal(t, FlowID(0), FlowOf(MustParsePath("1")))
}
