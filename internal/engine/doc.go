// Package engine implements the flowtree message-tree operations.
//
// A flow is a tree of messages rooted at 1.<flow>. Identifiers encode
// both ancestry and sibling order, so every mutation renumbers part of
// the tree to keep each parent's children numbered 1..k:
//
//	InsertMessage(2, 1.2.2)   1.2.2 -> 1.2.3, 1.2.3 -> 1.2.4, then insert
//	DeleteMessage(2, 1.2.2)   delete, then 1.2.3 -> 1.2.2
//	InsertMainFlow(2)         flows >= 2 move up one, then insert 1.2
//	ExchangeFlows(2, 3)       2 -> sentinel, 3 -> 2, sentinel -> 3
//
// SHIFTS:
//
// A shift selects a run of siblings and their whole subtrees and rewrites
// one segment of each path by a fixed delta, keeping every trailing
// segment verbatim. The match set is read once and each rewrite depends
// only on the document's own prior path (store.Tx.UpdateMany).
//
// ATOMICITY:
//
// Each operation runs as one store transaction under one lock lease
// (internal/lock). Validation errors are returned before either is taken.
// A failure anywhere rolls back the whole operation, so no partial
// renumbering is ever committed.
//
// ERRORS:
//
// Message operations return *Error. Flow operations (InsertMainFlow,
// DeleteMainFlow, ExchangeFlows) report precondition failures in a
// FlowResult and return an error only for persistence failures.
package engine
