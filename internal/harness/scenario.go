package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flowtree/internal/engine"
)

// Scenario defines a message-tree test scenario.
// A scenario seeds a store, applies engine operations in order and checks
// each outcome, the tree invariants and the final tree.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed lists messages loaded verbatim before the first step.
	// Nothing is renumbered while seeding.
	Seed []SeedMessage `yaml:"seed,omitempty"`

	// Steps are the operations under test.
	Steps []Step `yaml:"steps"`

	// Expect is the final tree as "identifier=content" lines in path order.
	// If empty, the final tree is not compared.
	Expect []string `yaml:"expect,omitempty"`

	// Assertions validate individual messages of the final tree.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// SkipVerify disables the invariant check after each step. Only for
	// scenarios that pin behavior which leaves duplicates or gaps.
	SkipVerify bool `yaml:"skip_verify,omitempty"`
}

// SeedMessage is one message loaded before the steps run.
type SeedMessage struct {
	// ID defaults to seed-01, seed-02, ... in list order.
	ID string `yaml:"id,omitempty"`

	Identifier string `yaml:"identifier"`

	// Content is any YAML value; it is stored as JSON.
	Content any `yaml:"content"`
}

// Step is one engine operation.
type Step struct {
	// Op is the operation name (insert_message, exchange_flows, ...).
	Op string `yaml:"op"`

	// Flow is the flow argument. Kept as text so malformed ids can be tested.
	Flow string `yaml:"flow,omitempty"`

	// Identifier is the target path.
	Identifier string `yaml:"identifier,omitempty"`

	// NewIdentifier is the rename target of update_message.
	NewIdentifier string `yaml:"new_identifier,omitempty"`

	// Content is the payload of inserts and updates.
	Content any `yaml:"content,omitempty"`

	// FlowA and FlowB are the exchange_flows arguments.
	FlowA string `yaml:"flow_a,omitempty"`
	FlowB string `yaml:"flow_b,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step must succeed.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect specifies the expected outcome of a step.
type StepExpect struct {
	// Code is the expected engine error code, or the failure code of a
	// FlowResult. Empty means success.
	Code string `yaml:"code,omitempty"`

	// Count is the expected removed count of delete_messages_by_flow.
	Count *int `yaml:"count,omitempty"`

	// Message is the expected confirmation or FlowResult message.
	Message string `yaml:"message,omitempty"`
}

// Assertion validates one aspect of the final tree.
type Assertion struct {
	// Type specifies the assertion type:
	// - "message_at": a message exists at Identifier (with Content / ID if given)
	// - "absent": no message exists at Identifier
	// - "flow_count": flow Flow holds exactly Count messages
	// - "total": the store holds exactly Count messages
	Type string `yaml:"type"`

	Identifier string `yaml:"identifier,omitempty"`
	Content    any    `yaml:"content,omitempty"`
	ID         string `yaml:"id,omitempty"`
	Flow       string `yaml:"flow,omitempty"`
	Count      *int   `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertMessageAt = "message_at"
	AssertAbsent    = "absent"
	AssertFlowCount = "flow_count"
	AssertTotal     = "total"
)

// Operation names accepted in Step.Op.
var knownOps = []string{
	engine.OpInsertMessage,
	engine.OpInsertMainFlow,
	engine.OpDeleteMessage,
	engine.OpDeleteMessagesByFlow,
	engine.OpDeleteMainFlow,
	engine.OpExchangeFlows,
	engine.OpUpdateMessage,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns every .yaml/.yml file under dir whose base name
// matches filter (a filepath.Match glob; empty matches all), sorted.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	slices.Sort(files)
	return files, err
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, m := range s.Seed {
		if m.Identifier == "" {
			return fmt.Errorf("seed[%d]: identifier is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	if step.Op == "" {
		return fmt.Errorf("steps[%d]: op is required", index)
	}
	if !slices.Contains(knownOps, step.Op) {
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	switch step.Op {
	case engine.OpExchangeFlows:
		if step.FlowA == "" || step.FlowB == "" {
			return fmt.Errorf("steps[%d]: flow_a and flow_b are required for %s", index, step.Op)
		}
	case engine.OpInsertMainFlow, engine.OpDeleteMainFlow, engine.OpDeleteMessagesByFlow:
		if step.Flow == "" {
			return fmt.Errorf("steps[%d]: flow is required for %s", index, step.Op)
		}
	default:
		if step.Flow == "" || step.Identifier == "" {
			return fmt.Errorf("steps[%d]: flow and identifier are required for %s", index, step.Op)
		}
	}

	if step.Expect != nil && step.Expect.Count != nil && step.Op != engine.OpDeleteMessagesByFlow {
		return fmt.Errorf("steps[%d].expect: count only applies to %s", index, engine.OpDeleteMessagesByFlow)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertMessageAt, AssertAbsent:
		if a.Identifier == "" {
			return fmt.Errorf("assertions[%d]: identifier is required for %s", index, a.Type)
		}
	case AssertFlowCount:
		if a.Flow == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: flow and count are required for flow_count", index)
		}
	case AssertTotal:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for total", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
