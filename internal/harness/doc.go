// Package harness provides scenario-driven conformance testing for the
// flowtree engine.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: insert_shifts_siblings
//	description: "What this scenario validates"
//	seed:
//	  - identifier: "1.1"
//	    content: A
//	  - identifier: "1.1.1"
//	    content: B
//	steps:
//	  - op: insert_message
//	    flow: "1"
//	    identifier: "1.1.1"
//	    content: X
//	  - op: delete_main_flow
//	    flow: "7"
//	    expect:
//	      code: FLOW_NOT_FOUND
//	expect:
//	  - 1.1=A
//	  - 1.1.1=X
//	  - 1.1.2=B
//	assertions:
//	  - type: message_at
//	    identifier: "1.1.2"
//	    id: seed-02
//
// Seed messages are written straight to the store. Steps go through the
// engine; a step without expect must succeed. After every step the tree
// invariants are checked unless skip_verify is set.
//
// # Assertion Types
//
//   - message_at: exactly one message at identifier, optionally with content and id
//   - absent: no message at identifier
//   - flow_count: flow holds exactly count messages
//   - total: the store holds exactly count messages
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory store and an engine that
// assigns ids msg-0001, msg-0002, ... so snapshots are byte-identical
// across runs and can be compared with golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/insert.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
