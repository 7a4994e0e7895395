package queryir

import (
	"fmt"

	"github.com/roach88/flowtree/internal/ir"
)

// Predicate is a filter condition over persisted messages.
//
// This is a sealed interface - only types in this package implement it.
// Backends switch over the concrete types exhaustively: the SQL backend
// compiles them to WHERE fragments, in-process backends call Eval.
type Predicate interface {
	predicateNode()
}

// CompareOp is the operator of a SegmentCompare predicate.
type CompareOp string

const (
	OpEq  CompareOp = "="
	OpGt  CompareOp = ">"
	OpGte CompareOp = ">="
	OpLt  CompareOp = "<"
	OpLte CompareOp = "<="
)

// Valid reports whether op is one of the supported operators.
func (op CompareOp) Valid() bool {
	switch op {
	case OpEq, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Apply evaluates "a op b".
func (op CompareOp) Apply(a, b int) bool {
	switch op {
	case OpEq:
		return a == b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	}
	return false
}

// FlowEquals matches messages whose flowId equals Flow.
//
// SQL:
//
//	flow_id = ?
type FlowEquals struct {
	Flow ir.FlowID
}

func (FlowEquals) predicateNode() {}

// IdentifierEquals matches the message at exactly Path.
type IdentifierEquals struct {
	Path ir.Path
}

func (IdentifierEquals) predicateNode() {}

// IDEquals matches a single document by identity.
type IDEquals struct {
	ID string
}

func (IDEquals) predicateNode() {}

// Under matches messages strictly below Prefix (Prefix.x, Prefix.x.y, ...).
// With IncludeSelf, the message at Prefix itself matches too.
//
// SQL:
//
//	identifier LIKE 'prefix.%'   [OR identifier = 'prefix']
type Under struct {
	Prefix      ir.Path
	IncludeSelf bool
}

func (Under) predicateNode() {}

// DepthEquals matches messages whose identifier has exactly Depth segments.
type DepthEquals struct {
	Depth int
}

func (DepthEquals) predicateNode() {}

// SegmentCompare compares the integer segment at zero-based Index with
// Value. Messages too shallow to have that segment never match.
//
// SQL:
//
//	CAST(json_extract(segments, '$[i]') AS INTEGER) >= ?
type SegmentCompare struct {
	Index int
	Op    CompareOp
	Value int
}

func (SegmentCompare) predicateNode() {}

// Matches tests the identifier string against a regular expression
// (Go RE2 syntax, unanchored unless the pattern anchors itself).
type Matches struct {
	Pattern string
}

func (Matches) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// And is a conjunction. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// All builds an And from its arguments, dropping nils.
func All(preds ...Predicate) And {
	out := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			out = append(out, p)
		}
	}
	return And{Predicates: out}
}

// Siblings selects the run of messages in flow whose segment directly
// below parent satisfies "segment op pivot", together with their
// entire subtrees. This is the candidate set of a sibling shift.
func Siblings(flow ir.FlowID, parent ir.Path, op CompareOp, pivot int) And {
	return All(
		FlowEquals{Flow: flow},
		Under{Prefix: parent},
		SegmentCompare{Index: parent.Depth(), Op: op, Value: pivot},
	)
}

// String renders a predicate for logs and error messages.
func String(p Predicate) string {
	switch pred := p.(type) {
	case nil:
		return "true"
	case FlowEquals:
		return fmt.Sprintf("flowId = %s", pred.Flow)
	case IdentifierEquals:
		return fmt.Sprintf("identifier = %s", pred.Path)
	case IDEquals:
		return fmt.Sprintf("id = %s", pred.ID)
	case Under:
		if pred.IncludeSelf {
			return fmt.Sprintf("identifier under-or-self %s", pred.Prefix)
		}
		return fmt.Sprintf("identifier under %s", pred.Prefix)
	case DepthEquals:
		return fmt.Sprintf("depth = %d", pred.Depth)
	case SegmentCompare:
		return fmt.Sprintf("segment[%d] %s %d", pred.Index, pred.Op, pred.Value)
	case Matches:
		return fmt.Sprintf("identifier ~ /%s/", pred.Pattern)
	case Not:
		return fmt.Sprintf("NOT (%s)", String(pred.Predicate))
	case And:
		if len(pred.Predicates) == 0 {
			return "true"
		}
		s := ""
		for i, sub := range pred.Predicates {
			if i > 0 {
				s += " AND "
			}
			s += String(sub)
		}
		return s
	default:
		return fmt.Sprintf("<%T>", p)
	}
}
