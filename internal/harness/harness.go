package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/flowtree/internal/engine"
	"github.com/roach88/flowtree/internal/flowlog"
	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/store"
	"github.com/roach88/flowtree/internal/store/memstore"
	"github.com/roach88/flowtree/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a fresh in-memory store with sequential ids.
type Harness struct {
	store  *memstore.Store
	engine *engine.Engine
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory store for isolation.
// Sequential document ids make the trace reproducible.
//
// Execution flow:
// 1. Create fresh in-memory store and engine
// 2. Load seed messages verbatim
// 3. Execute steps, checking each outcome and the tree invariants
// 4. Capture the final tree and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st := memstore.New()
	defer st.Close()

	h := &Harness{
		store: st,
		engine: engine.New(st,
			engine.WithIDGenerator(testutil.NewSequentialIDs("msg")),
			engine.WithLogger(flowlog.Discard()),
		),
		logger: flowlog.Discard(),
	}

	if err := h.seed(ctx, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to load seed: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		event, err := h.execute(ctx, i+1, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
		result.Trace = append(result.Trace, event)

		for _, msg := range compareOutcome(event, step.Expect) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i+1, step.Op, msg))
		}

		if scenario.SkipVerify {
			continue
		}
		violations, err := h.engine.Verify(ctx)
		if err != nil {
			return nil, fmt.Errorf("step %d: verify: %w", i+1, err)
		}
		for _, v := range violations {
			result.AddError(fmt.Sprintf("step %d (%s): invariant violated: %s", i+1, step.Op, v))
		}
	}

	final, err := h.engine.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final tree: %w", err)
	}
	result.Final = final

	if len(scenario.Expect) > 0 {
		if got := result.Lines(); !slices.Equal(got, scenario.Expect) {
			result.AddError(fmt.Sprintf("final tree mismatch:\n  expected: %s\n  actual:   %s",
				strings.Join(scenario.Expect, ", "), strings.Join(got, ", ")))
		}
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// seed inserts the seed messages in one transaction, bypassing the engine.
func (h *Harness) seed(ctx context.Context, seed []SeedMessage) error {
	msgs := make([]ir.Message, len(seed))
	for i, s := range seed {
		path, err := ir.ParsePath(s.Identifier)
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
		content, err := toContent(s.Content)
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
		id := s.ID
		if id == "" {
			id = fmt.Sprintf("seed-%02d", i+1)
		}
		msgs[i] = ir.Message{ID: id, FlowID: ir.FlowOf(path), Identifier: path, Content: content}
	}

	return h.store.WithTx(ctx, func(tx store.Tx) error {
		for _, m := range msgs {
			if err := tx.InsertOne(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// execute runs one step. Engine errors become the event outcome; only
// harness failures (bad content) are returned.
func (h *Harness) execute(ctx context.Context, n int, step Step) (TraceEvent, error) {
	event := TraceEvent{Step: n, Op: step.Op, Args: stepArgs(step), Outcome: OutcomeOK}

	var content ir.Content
	if step.Content != nil {
		c, err := toContent(step.Content)
		if err != nil {
			return event, err
		}
		content = c
	}

	var err error
	switch step.Op {
	case engine.OpInsertMessage:
		var msg ir.Message
		msg, err = withIdentifier(step.Flow, step.Identifier, func(flow ir.FlowID, path ir.Path) (ir.Message, error) {
			return h.engine.InsertMessage(ctx, flow, path, content)
		})
		event.ID = msg.ID

	case engine.OpDeleteMessage:
		event.Message, err = withIdentifier(step.Flow, step.Identifier, func(flow ir.FlowID, path ir.Path) (string, error) {
			return h.engine.DeleteMessage(ctx, flow, path)
		})

	case engine.OpUpdateMessage:
		_, err = withIdentifier(step.Flow, step.Identifier, func(flow ir.FlowID, path ir.Path) (struct{}, error) {
			upd := engine.MessageUpdate{}
			if step.NewIdentifier != "" {
				next, err := engine.ParseIdentifier(step.NewIdentifier)
				if err != nil {
					return struct{}{}, err
				}
				upd.Identifier = next
			}
			if step.Content != nil {
				upd.Content = &content
			}
			return struct{}{}, h.engine.UpdateMessage(ctx, flow, path, upd)
		})

	case engine.OpDeleteMessagesByFlow:
		var flow ir.FlowID
		if flow, err = engine.ParseFlow(step.Flow); err == nil {
			var removed int
			if removed, err = h.engine.DeleteMessagesByFlow(ctx, flow); err == nil {
				event.Count = &removed
			}
		}

	case engine.OpInsertMainFlow:
		var flow ir.FlowID
		if flow, err = engine.ParseFlow(step.Flow); err == nil {
			var res engine.FlowResult
			res, err = h.engine.InsertMainFlow(ctx, flow, content)
			recordFlowResult(&event, res)
		}

	case engine.OpDeleteMainFlow:
		var flow ir.FlowID
		if flow, err = engine.ParseFlow(step.Flow); err == nil {
			var res engine.FlowResult
			res, err = h.engine.DeleteMainFlow(ctx, flow)
			recordFlowResult(&event, res)
		}

	case engine.OpExchangeFlows:
		a, errA := engine.ParseFlow(step.FlowA)
		b, errB := engine.ParseFlow(step.FlowB)
		switch {
		case errA != nil:
			err = errA
		case errB != nil:
			err = errB
		default:
			var res engine.FlowResult
			res, err = h.engine.ExchangeFlows(ctx, a, b)
			recordFlowResult(&event, res)
		}

	default:
		return event, fmt.Errorf("unknown op %q", step.Op)
	}

	if err != nil {
		code := engine.CodeOf(err)
		if code == "" || code == engine.CodePersistence {
			return event, err
		}
		event.Outcome = string(code)
		event.Message = ""
	}

	h.logger.Debug("step executed", flowlog.Op(step.Op), slog.String("outcome", event.Outcome))
	return event, nil
}

func withIdentifier[T any](flowText, pathText string, fn func(ir.FlowID, ir.Path) (T, error)) (T, error) {
	var zero T
	flow, err := engine.ParseFlow(flowText)
	if err != nil {
		return zero, err
	}
	path, err := engine.ParseIdentifier(pathText)
	if err != nil {
		return zero, err
	}
	return fn(flow, path)
}

func recordFlowResult(event *TraceEvent, res engine.FlowResult) {
	event.Message = res.Message
	if !res.Success && res.Code != "" {
		event.Outcome = string(res.Code)
	}
}

// compareOutcome checks event against expect. A nil expect requires success.
func compareOutcome(event TraceEvent, expect *StepExpect) []string {
	want := StepExpect{}
	if expect != nil {
		want = *expect
	}

	var errs []string
	wantOutcome := OutcomeOK
	if want.Code != "" {
		wantOutcome = want.Code
	}
	if event.Outcome != wantOutcome {
		errs = append(errs, fmt.Sprintf("expected outcome %s, got %s", wantOutcome, event.Outcome))
	}
	if want.Message != "" && event.Message != want.Message {
		errs = append(errs, fmt.Sprintf("expected message %q, got %q", want.Message, event.Message))
	}
	if want.Count != nil {
		switch {
		case event.Count == nil:
			errs = append(errs, fmt.Sprintf("expected count %d, got none", *want.Count))
		case *event.Count != *want.Count:
			errs = append(errs, fmt.Sprintf("expected count %d, got %d", *want.Count, *event.Count))
		}
	}
	return errs
}

// stepArgs records the arguments a step was given, omitting empty ones.
func stepArgs(step Step) map[string]any {
	args := map[string]any{}
	set := func(k string, v string) {
		if v != "" {
			args[k] = v
		}
	}
	set("flow", step.Flow)
	set("identifier", step.Identifier)
	set("new_identifier", step.NewIdentifier)
	set("flow_a", step.FlowA)
	set("flow_b", step.FlowB)
	if step.Content != nil {
		args["content"] = step.Content
	}
	return args
}

// toContent converts a decoded YAML value into message content.
func toContent(v any) (ir.Content, error) {
	val, err := ir.FromAny(v)
	if err != nil {
		return ir.Content{}, fmt.Errorf("content: %w", err)
	}
	return ir.NewContent(val), nil
}
