package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/ir"
)

func msg(id, path string) ir.Message {
	p := ir.MustParsePath(path)
	return ir.Message{ID: id, FlowID: ir.FlowOf(p), Identifier: p}
}

func TestEval(t *testing.T) {
	m := msg("a", "1.2.10.4")

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"nil matches", nil, true},
		{"empty and matches", And{}, true},
		{"flow", FlowEquals{Flow: 2}, true},
		{"other flow", FlowEquals{Flow: 3}, false},
		{"identifier", IdentifierEquals{Path: ir.MustParsePath("1.2.10.4")}, true},
		{"id", IDEquals{ID: "a"}, true},
		{"under", Under{Prefix: ir.MustParsePath("1.2.10")}, true},
		{"under is strict", Under{Prefix: ir.MustParsePath("1.2.10.4")}, false},
		{"under include self", Under{Prefix: ir.MustParsePath("1.2.10.4"), IncludeSelf: true}, true},
		{"under is segment aware", Under{Prefix: ir.MustParsePath("1.2.1")}, false},
		{"depth", DepthEquals{Depth: 4}, true},
		{"segment numeric", SegmentCompare{Index: 2, Op: OpGte, Value: 9}, true},
		{"segment too shallow", SegmentCompare{Index: 4, Op: OpGte, Value: 0}, false},
		{"regex", Matches{Pattern: `^1\.2\.`}, true},
		{"not", Not{Predicate: DepthEquals{Depth: 4}}, false},
		{"and short circuits", And{Predicates: []Predicate{FlowEquals{Flow: 9}, Matches{Pattern: "("}}}, false},
		{"pointer", &FlowEquals{Flow: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.pred, m)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalBadPattern(t *testing.T) {
	_, err := Eval(Matches{Pattern: "("}, msg("a", "1.1"))
	assert.Error(t, err)
}

func TestSiblingsCandidateSet(t *testing.T) {
	msgs := []ir.Message{
		msg("a", "1.2.1"),
		msg("b", "1.2.2"),
		msg("c", "1.2.2.1"),
		msg("d", "1.2.3"),
		msg("e", "1.2.10"),
		msg("f", "1.3.2"),
		msg("g", "1.2"),
	}

	got, err := Filter(Siblings(2, ir.MustParsePath("1.2"), OpGte, 2), msgs)
	require.NoError(t, err)

	var ids []string
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"b", "c", "d", "e"}, ids)
}
