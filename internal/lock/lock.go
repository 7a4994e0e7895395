// Package lock serializes engine mutations.
//
// A mutation touching a single flow locks that flow only, so unrelated
// flows proceed in parallel. Mutations that renumber flows themselves
// (insert or delete a main flow, exchange) lock the registry, which
// excludes every flow-scoped holder.
//
// Two implementations are provided: Local for a single process and Redis
// for engines sharing one database across processes.
package lock

import (
	"context"
	"errors"
	"slices"

	"github.com/roach88/flowtree/internal/ir"
)

// ErrTimeout is returned when a lease cannot be obtained before the
// locker's wait budget or the context runs out.
var ErrTimeout = errors.New("lock wait timed out")

// Scope names what a mutation needs exclusive access to.
type Scope struct {
	// Flows lists the flows the mutation reads and writes.
	Flows []ir.FlowID

	// Registry requests exclusive access to the set of flows itself.
	// A registry scope ignores Flows.
	Registry bool
}

// FlowScope locks the given flows.
func FlowScope(flows ...ir.FlowID) Scope {
	return Scope{Flows: flows}
}

// RegistryScope locks the whole flow registry.
func RegistryScope() Scope {
	return Scope{Registry: true}
}

// sortedFlows returns the distinct flows in ascending order. Acquiring in
// a fixed order keeps multi-flow holders from deadlocking.
func (s Scope) sortedFlows() []ir.FlowID {
	out := slices.Clone(s.Flows)
	slices.Sort(out)
	return slices.Compact(out)
}

// Release ends a lease. It is safe to call once.
type Release func() error

// Locker grants leases over scopes.
type Locker interface {
	Acquire(ctx context.Context, scope Scope) (Release, error)
}
