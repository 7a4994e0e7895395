// Package queryir defines the predicate IR used to select persisted
// messages.
//
// The engine never talks to a storage driver in its own query language.
// Every read, bulk update and bulk delete is expressed as a Predicate
// tree and handed to a store backend, which either compiles it (see
// internal/querysql) or evaluates it in-process with Eval.
//
//	[engine shift/delete] -> [Predicate] -> [querysql -> SQLite]
//	                                     -> [Eval -> memstore, pebblestore]
//
// SEALED INTERFACES:
//
// Predicate is sealed using the marker method pattern. Only types in this
// package can implement it, so backends can switch exhaustively.
//
// The sibling-shift candidate set is the one shape every backend must
// get right:
//
//	Siblings(flow, parent, OpGte, k)
//	  == flowId = flow AND identifier under parent AND segment[depth(parent)] >= k
//
// Segment comparisons are integer comparisons. Identifiers are never
// compared as strings.
package queryir
