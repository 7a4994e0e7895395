// Package store defines the persistence contract for flow messages and
// its SQLite implementation.
//
// The contract is deliberately small: a Backend runs callbacks inside a
// transaction, and a Tx offers predicate-driven find, insert, bulk update
// and delete. Predicates come from internal/queryir. Two further backends
// live in subpackages (memstore, pebblestore); all three pass the shared
// conformance suite in storetest.
//
// # Ordering
//
// Find results are ordered by identifier (segment-wise, as integers) and
// then by document ID. SQL emits ORDER BY id for a deterministic base
// order and the path order is applied in Go.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - REGEXP: registered per connection for queryir.Matches
//
// Content is stored as canonical JSON (see internal/ir/canonical.go).
package store
