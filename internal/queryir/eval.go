package queryir

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/roach88/flowtree/internal/ir"
)

var patternCache sync.Map // string -> *regexp.Regexp

// CompilePattern compiles (and caches) a Matches pattern.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	patternCache.Store(pattern, re)
	return re, nil
}

// Eval reports whether msg satisfies p. A nil predicate matches everything.
//
// Eval is used by the in-process backends; it must agree with the SQL
// compilation in internal/querysql for every predicate type.
func Eval(p Predicate, msg ir.Message) (bool, error) {
	switch pred := p.(type) {
	case nil:
		return true, nil
	case FlowEquals:
		return msg.FlowID == pred.Flow, nil
	case *FlowEquals:
		return Eval(*pred, msg)
	case IdentifierEquals:
		return msg.Identifier.Equal(pred.Path), nil
	case *IdentifierEquals:
		return Eval(*pred, msg)
	case IDEquals:
		return msg.ID == pred.ID, nil
	case *IDEquals:
		return Eval(*pred, msg)
	case Under:
		if pred.IncludeSelf {
			return msg.Identifier.IsDescendantOrSelf(pred.Prefix), nil
		}
		return msg.Identifier.IsDescendantOf(pred.Prefix), nil
	case *Under:
		return Eval(*pred, msg)
	case DepthEquals:
		return msg.Identifier.Depth() == pred.Depth, nil
	case *DepthEquals:
		return Eval(*pred, msg)
	case SegmentCompare:
		if pred.Index < 0 || pred.Index >= msg.Identifier.Depth() {
			return false, nil
		}
		return pred.Op.Apply(msg.Identifier.Segment(pred.Index), pred.Value), nil
	case *SegmentCompare:
		return Eval(*pred, msg)
	case Matches:
		re, err := CompilePattern(pred.Pattern)
		if err != nil {
			return false, err
		}
		return re.MatchString(msg.Identifier.String()), nil
	case *Matches:
		return Eval(*pred, msg)
	case Not:
		ok, err := Eval(pred.Predicate, msg)
		return !ok, err
	case *Not:
		return Eval(*pred, msg)
	case And:
		for _, sub := range pred.Predicates {
			ok, err := Eval(sub, msg)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case *And:
		return Eval(*pred, msg)
	default:
		return false, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// Filter returns the messages that satisfy p, preserving input order.
func Filter(p Predicate, msgs []ir.Message) ([]ir.Message, error) {
	out := make([]ir.Message, 0, len(msgs))
	for _, m := range msgs {
		ok, err := Eval(p, m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}
