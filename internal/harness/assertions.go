package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/flowtree/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Final    []ir.Message // Final tree for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFinal tree:\n")
	for _, m := range e.Final {
		fmt.Fprintf(&buf, "  %s %s (%s)\n", m.Identifier, m.Content, m.ID)
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against the final tree and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result.Final, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %s", i, err.Error()))
		}
	}
	return errs
}

func evaluateAssertion(final []ir.Message, a Assertion) error {
	switch a.Type {
	case AssertMessageAt:
		return assertMessageAt(final, a)
	case AssertAbsent:
		return assertAbsent(final, a)
	case AssertFlowCount:
		return assertFlowCount(final, a)
	case AssertTotal:
		if len(final) != *a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d messages", *a.Count),
				Actual:   fmt.Sprintf("%d messages", len(final)),
				Final:    final,
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

func findAt(final []ir.Message, identifier string) []ir.Message {
	var out []ir.Message
	for _, m := range final {
		if m.Identifier.String() == identifier {
			out = append(out, m)
		}
	}
	return out
}

// assertMessageAt checks that exactly one message sits at the identifier,
// optionally with the given content and id.
func assertMessageAt(final []ir.Message, a Assertion) error {
	found := findAt(final, a.Identifier)
	if len(found) != 1 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("one message at %s", a.Identifier),
			Actual:   fmt.Sprintf("%d messages", len(found)),
			Final:    final,
		}
	}
	msg := found[0]

	if a.Content != nil {
		want, err := toContent(a.Content)
		if err != nil {
			return err
		}
		if !msg.Content.Equal(want) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("content %s at %s", want, a.Identifier),
				Actual:   fmt.Sprintf("content %s", msg.Content),
				Final:    final,
			}
		}
	}

	if a.ID != "" && msg.ID != a.ID {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("id %s at %s", a.ID, a.Identifier),
			Actual:   fmt.Sprintf("id %s", msg.ID),
			Final:    final,
		}
	}
	return nil
}

func assertAbsent(final []ir.Message, a Assertion) error {
	if found := findAt(final, a.Identifier); len(found) > 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("no message at %s", a.Identifier),
			Actual:   fmt.Sprintf("%d messages", len(found)),
			Final:    final,
		}
	}
	return nil
}

func assertFlowCount(final []ir.Message, a Assertion) error {
	flow, err := ir.ParseFlowID(a.Flow)
	if err != nil {
		return err
	}
	n := 0
	for _, m := range final {
		if m.FlowID == flow {
			n++
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d messages in flow %s", *a.Count, flow),
			Actual:   fmt.Sprintf("%d messages", n),
			Final:    final,
		}
	}
	return nil
}
