package queryir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPredicate is wrapped by every error returned from Validate.
var ErrInvalidPredicate = errors.New("invalid predicate")

// ValidationResult lists the structural problems found in a predicate.
type ValidationResult struct {
	// Problems is empty when the predicate is well-formed.
	Problems []string
}

// OK reports whether no problems were found.
func (r ValidationResult) OK() bool {
	return len(r.Problems) == 0
}

// Err folds the problems into a single error, or nil.
func (r ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidPredicate, strings.Join(r.Problems, "; "))
}

// Validate checks a predicate tree before it reaches a backend.
//
// Checks:
//  1. SegmentCompare has a non-negative index and a known operator
//  2. DepthEquals depth is positive
//  3. Matches patterns compile
//  4. Not and And children are non-nil
//
// A nil root is valid and means "match everything".
func Validate(p Predicate) ValidationResult {
	v := &validator{problems: []string{}}
	if p != nil {
		v.validate(p, "$")
	}
	return ValidationResult{Problems: v.problems}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validate(p Predicate, at string) {
	switch pred := p.(type) {
	case nil:
		v.addProblem("%s: nil predicate", at)
	case FlowEquals, IdentifierEquals, IDEquals, Under:
		// always well-formed
	case *FlowEquals, *IdentifierEquals, *IDEquals, *Under:
	case DepthEquals:
		if pred.Depth < 1 {
			v.addProblem("%s: depth must be positive, got %d", at, pred.Depth)
		}
	case *DepthEquals:
		v.validate(*pred, at)
	case SegmentCompare:
		if pred.Index < 0 {
			v.addProblem("%s: segment index must be non-negative, got %d", at, pred.Index)
		}
		if !pred.Op.Valid() {
			v.addProblem("%s: unknown operator %q", at, pred.Op)
		}
	case *SegmentCompare:
		v.validate(*pred, at)
	case Matches:
		if _, err := CompilePattern(pred.Pattern); err != nil {
			v.addProblem("%s: %v", at, err)
		}
	case *Matches:
		v.validate(*pred, at)
	case Not:
		v.validate(pred.Predicate, at+".not")
	case *Not:
		v.validate(*pred, at)
	case And:
		for i, sub := range pred.Predicates {
			v.validate(sub, fmt.Sprintf("%s.and[%d]", at, i))
		}
	case *And:
		v.validate(*pred, at)
	default:
		v.addProblem("%s: unknown predicate type %T", at, p)
	}
}
