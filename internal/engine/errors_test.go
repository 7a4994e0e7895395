package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/ir"
)

func TestError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"full", &Error{Code: CodeRootFlowInsert, Message: "nope", FlowID: 3, Identifier: "1.3"}, "ROOT_FLOW_INSERT_NOT_ALLOWED: nope (flow=3, identifier=1.3)"},
		{"flow only", &Error{Code: CodeFlowNotFound, Message: "missing", FlowID: 2}, "FLOW_NOT_FOUND: missing (flow=2)"},
		{"identifier only", &Error{Code: CodeInvalidIdentifier, Message: "bad", Identifier: "x"}, "INVALID_IDENTIFIER_FORMAT: bad (identifier=x)"},
		{"cause as message", &Error{Code: CodePersistence, Err: errors.New("disk")}, "PERSISTENCE_FAILURE: disk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsMatchesCode(t *testing.T) {
	cause := errors.New("constraint")
	err := fmt.Errorf("wrapped: %w", persistenceFailure(OpInsertMessage, 1, cause))

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrFlowNotFound)
	assert.True(t, IsCode(err, CodePersistence))
	assert.Equal(t, CodePersistence, CodeOf(err))

	assert.Equal(t, Code(""), CodeOf(cause))
	assert.False(t, IsCode(nil, CodePersistence))
}

func TestParseIdentifier(t *testing.T) {
	p, err := ParseIdentifier("1.2.10")
	require.NoError(t, err)
	assert.Equal(t, ir.Path{1, 2, 10}, p)

	for _, bad := range []string{"", "1..2", "1.a", "1.-2", "1.2."} {
		_, err := ParseIdentifier(bad)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, bad)
		assert.ErrorIs(t, err, ir.ErrInvalidPath, bad)
	}
}

func TestParseFlow(t *testing.T) {
	f, err := ParseFlow("12")
	require.NoError(t, err)
	assert.Equal(t, ir.FlowID(12), f)

	_, err = ParseFlow("x")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}
