// Package clusterlin implements the cluster linearization engine at the
// heart of a transaction-relay mempool: given a DAG of parent->child
// transaction dependencies where each transaction carries a (fee, size)
// pair, it produces a topologically valid total order that is optimal,
// or very nearly so, with respect to the convexified feerate diagram.
//
// The package is organized leaves-first:
//
//   - DepGraph stores a cluster's per-transaction feerate and transitively
//     closed ancestor/descendant sets, and exposes closure-preserving
//     mutation.
//   - ChunkLinearization computes a linearization's chunks: maximal
//     feerate-monotone prefixes.
//   - SpanningForestState is the iterative optimizer: it maintains a set
//     of "active" dependencies approximating the optimal chunking and
//     drives it through Load/MakeTopological/Optimize/Minimize/Emit.
//   - Linearize orchestrates a single end-to-end call against an
//     iteration budget.
//   - PostLinearize cheaply improves an existing linearization in place.
//
// The engine is strictly single-threaded and is a pure function of its
// inputs (graph, seed, budget, optional prior linearization, fallback
// order); see spec.md §5. There is no persistence, no network transport,
// and no cryptographic validation at this layer -- those are mempool- and
// node-layer concerns built on top of this package.
package clusterlin
