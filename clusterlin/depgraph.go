package clusterlin

import (
	"sort"
	"unsafe"

	"github.com/btcsuite/btcclusterlin/bitset"
	"github.com/btcsuite/btcclusterlin/feefrac"
)

// Index identifies a transaction's position within a DepGraph, in
// [0, PositionRange()). Positions may become "holes" after removal and
// are reused by later AddTransaction calls.
type Index = uint32

// depEntry holds everything DepGraph tracks per transaction position:
// its own feerate, and the transitive closures of its ancestors and
// descendants (both of which include the transaction itself).
type depEntry[S bitset.Set[S]] struct {
	feerate     feefrac.FeeFrac
	ancestors   S
	descendants S
}

// DepGraph holds a transaction cluster's preprocessed dependency data:
// per-transaction feerate, and transitively-closed ancestor/descendant
// sets. It is read-only during linearization; all mutation happens
// through AddTransaction/AddDependencies/RemoveTransactions, which
// preserve the closure invariants spec.md §3 lists:
//
//  1. ancestors_i ∩ descendants_i = {i} for every live i (acyclicity).
//  2. Holes (removed positions) carry stale data, ignored until reused.
//  3. Every public mutation preserves (1) and the closure property.
//
// S selects the bitset capacity (bitset.Set32/64/128/256); pick the
// smallest one that fits the cluster being linearized.
type DepGraph[S bitset.Set[S]] struct {
	entries []depEntry[S]
	used    S
}

// New returns an empty DepGraph of capacity S.
func New[S bitset.Set[S]]() *DepGraph[S] {
	return &DepGraph[S]{}
}

// Positions returns the set of transaction positions currently in use.
func (g *DepGraph[S]) Positions() S { return g.used }

// PositionRange returns one past the largest position ever assigned and
// not yet trimmed; every element of Positions() lies in
// [0, PositionRange()).
func (g *DepGraph[S]) PositionRange() Index { return Index(len(g.entries)) }

// TxCount returns the number of live transactions.
func (g *DepGraph[S]) TxCount() int { return g.used.Count() }

// FeeRate returns the feerate of transaction i.
func (g *DepGraph[S]) FeeRate(i Index) feefrac.FeeFrac { return g.entries[i].feerate }

// SetFeeRate sets the feerate of transaction i directly, bypassing
// AddTransaction. Used by callers (e.g. RBF fee bumps) that need to
// adjust a live transaction's feerate without touching its position or
// dependencies.
func (g *DepGraph[S]) SetFeeRate(i Index, fr feefrac.FeeFrac) { g.entries[i].feerate = fr }

// Ancestors returns the transitively-closed set of ancestors of i,
// including i itself.
func (g *DepGraph[S]) Ancestors(i Index) S { return g.entries[i].ancestors }

// Descendants returns the transitively-closed set of descendants of i,
// including i itself.
func (g *DepGraph[S]) Descendants(i Index) S { return g.entries[i].descendants }

// AddTransaction adds a new, initially unconnected transaction with the
// given feerate at the lowest available position, and returns its index.
// Amortized O(1).
func (g *DepGraph[S]) AddTransaction(fr feefrac.FeeFrac) Index {
	var zero S
	capacity := zero.Capacity()
	available := bitset.Fill[S](capacity).Difference(g.used)
	assertInvariant(available.Any(), "no free position left (capacity %d exhausted)", capacity)
	newIdx := Index(available.First())
	entry := depEntry[S]{
		feerate:     fr,
		ancestors:   bitset.Singleton[S](int(newIdx)),
		descendants: bitset.Singleton[S](int(newIdx)),
	}
	if int(newIdx) == len(g.entries) {
		g.entries = append(g.entries, entry)
	} else {
		g.entries[newIdx] = entry
	}
	g.used = g.used.Set(int(newIdx))
	return newIdx
}

// RemoveTransactions removes del from the graph. Removed positions no
// longer appear in Positions(), trailing unused entries are trimmed, and
// the deleted positions are masked out of every surviving transaction's
// ancestor/descendant closures.
//
// Deliberately, if an intermediate parent is removed while a grandparent
// remains, the grandparent stays an ancestor of the grandchild: DepGraph
// tracks closure, not edges, and RemoveTransactions never recomputes
// closures from scratch (spec.md §9, open question 2).
func (g *DepGraph[S]) RemoveTransactions(del S) {
	g.used = g.used.Difference(del)
	for len(g.entries) > 0 && !g.used.Has(len(g.entries)-1) {
		g.entries = g.entries[:len(g.entries)-1]
	}
	for i := range g.entries {
		g.entries[i].ancestors = g.entries[i].ancestors.Intersect(g.used)
		g.entries[i].descendants = g.entries[i].descendants.Intersect(g.used)
	}
}

// AddDependencies adds parents as (additional) ancestors of child,
// updating every affected transaction's ancestor/descendant closure.
// child must already be live, and parents must be a subset of the live
// positions. O(TxCount()).
func (g *DepGraph[S]) AddDependencies(parents S, child Index) {
	assertInvariant(g.used.Has(int(child)), "AddDependencies: child %d is not live", child)
	assertInvariant(parents.IsSubsetOf(g.used), "AddDependencies: parents not all live")

	childAncestors := g.entries[child].ancestors
	var parAnc S
	for par := range parents.Difference(childAncestors).All() {
		parAnc = parAnc.Union(g.entries[par].ancestors)
	}
	parAnc = parAnc.Difference(childAncestors)
	if parAnc.None() {
		return
	}
	childDescendants := g.entries[child].descendants
	for anc := range parAnc.All() {
		g.entries[anc].descendants = g.entries[anc].descendants.Union(childDescendants)
	}
	for desc := range childDescendants.All() {
		g.entries[desc].ancestors = g.entries[desc].ancestors.Union(parAnc)
	}
}

// Remap rebuilds g under a position remapping: mapping[i] gives the
// position in the returned DepGraph for position i in g, for every i in
// g.Positions(); positionRange must equal one past the largest mapped
// position in use, or 0 if g is empty. The value of mapping[i] is
// ignored for positions not in g.Positions(). Used to compact a cluster
// (close holes left by removed transactions) or to merge one cluster's
// positions into another's free space. O(TxCount()^2).
func (g *DepGraph[S]) Remap(mapping []Index, positionRange Index) *DepGraph[S] {
	assertInvariant(Index(len(mapping)) == g.PositionRange(),
		"Remap: mapping length %d does not match PositionRange %d", len(mapping), g.PositionRange())

	out := &DepGraph[S]{entries: make([]depEntry[S], positionRange)}
	for i := range g.used.All() {
		newIdx := mapping[i]
		assertInvariant(newIdx < positionRange, "Remap: mapped position %d out of range %d", newIdx, positionRange)
		out.entries[newIdx] = depEntry[S]{
			feerate:     g.entries[i].feerate,
			ancestors:   bitset.Singleton[S](int(newIdx)),
			descendants: bitset.Singleton[S](int(newIdx)),
		}
		out.used = out.used.Set(int(newIdx))
	}
	for i := range g.used.All() {
		var parents S
		for j := range g.GetReducedParents(Index(i)).All() {
			parents = parents.Set(int(mapping[j]))
		}
		out.AddDependencies(parents, mapping[i])
	}
	return out
}

// AbsorbDisjoint copies every transaction of other into g at the same
// positions, growing g's position range if needed. other's used
// positions must be disjoint from g's; callers arrange this by building
// other via Remap into free slots of g first (clusterpool's cluster
// merge does exactly this). O(other.TxCount()).
func (g *DepGraph[S]) AbsorbDisjoint(other *DepGraph[S]) {
	assertInvariant(g.used.Intersect(other.used).None(), "AbsorbDisjoint: position spaces overlap")
	if len(other.entries) > len(g.entries) {
		grown := make([]depEntry[S], len(other.entries))
		copy(grown, g.entries)
		g.entries = grown
	}
	for i := range other.used.All() {
		g.entries[i] = other.entries[i]
	}
	g.used = g.used.Union(other.used)
}

// GetReducedParents computes the minimal subset of i's parents whose
// ancestors together equal all of i's ancestors (DepGraph does not store
// direct edges; this infers them from the closures). O(Ancestors(i)).
func (g *DepGraph[S]) GetReducedParents(i Index) S {
	parents := g.entries[i].ancestors.Reset(int(i))
	for parent := range allSnapshot(parents) {
		if !parents.Has(parent) {
			continue
		}
		parents = parents.Difference(g.entries[parent].ancestors)
		parents = parents.Set(parent)
	}
	return parents
}

// GetReducedChildren computes the minimal subset of i's children whose
// descendants together equal all of i's descendants. O(Descendants(i)).
func (g *DepGraph[S]) GetReducedChildren(i Index) S {
	children := g.entries[i].descendants.Reset(int(i))
	for child := range allSnapshot(children) {
		if !children.Has(child) {
			continue
		}
		children = children.Difference(g.entries[child].descendants)
		children = children.Set(child)
	}
	return children
}

// allSnapshot materializes a bitset's elements up front, so that a loop
// over them can keep mutating the original set (GetReducedParents and
// GetReducedChildren both narrow `parents`/`children` while iterating an
// initial snapshot of it, which a live iter.Seq over the mutating
// variable itself could not do safely).
func allSnapshot[S bitset.Set[S]](s S) []int {
	out := make([]int, 0, s.Count())
	for i := range s.All() {
		out = append(out, i)
	}
	return out
}

// SetFeeRateSum returns the aggregate feerate of every transaction in
// elems. O(elems.Count()).
func (g *DepGraph[S]) SetFeeRateSum(elems S) feefrac.FeeFrac {
	var ret feefrac.FeeFrac
	for i := range elems.All() {
		ret = ret.Add(g.entries[i].feerate)
	}
	return ret
}

// GetConnectedComponent returns the connected component of tx within the
// subset todo: two transactions are connected if both are in todo and
// one is an ancestor of the other in the whole graph (not just within
// todo), transitively. tx must be a member of todo. O(result.Count()).
func (g *DepGraph[S]) GetConnectedComponent(todo S, tx Index) S {
	assertInvariant(todo.Has(int(tx)), "GetConnectedComponent: tx %d not in todo", tx)
	assertInvariant(todo.IsSubsetOf(g.used), "GetConnectedComponent: todo not a subset of used")

	toAdd := bitset.Singleton[S](int(tx))
	var ret S
	for {
		old := ret
		for add := range toAdd.All() {
			ret = ret.Union(g.entries[add].descendants)
			ret = ret.Union(g.entries[add].ancestors)
		}
		ret = ret.Intersect(todo)
		toAdd = ret.Difference(old)
		if toAdd.None() {
			break
		}
	}
	return ret
}

// FindConnectedComponent returns the connected component containing the
// first transaction of todo, or the empty set if todo is empty.
func (g *DepGraph[S]) FindConnectedComponent(todo S) S {
	if todo.None() {
		return todo
	}
	return g.GetConnectedComponent(todo, Index(todo.First()))
}

// IsConnected reports whether subset is a single connected component.
func (g *DepGraph[S]) IsConnected(subset S) bool {
	return g.FindConnectedComponent(subset) == subset
}

// IsConnectedGraph reports whether the entire graph is one connected
// component.
func (g *DepGraph[S]) IsConnectedGraph() bool { return g.IsConnected(g.used) }

// AppendTopo appends every element of sel to list in a topologically
// valid order (ancestor count ascending, then position ascending) and
// returns the extended slice. Since i being an ancestor of j implies
// strictly fewer ancestors (in an acyclic graph, i != j), this ordering
// is always topological. O(sel.Count() * log(sel.Count())).
func (g *DepGraph[S]) AppendTopo(list []Index, sel S) []Index {
	start := len(list)
	for i := range sel.All() {
		list = append(list, Index(i))
	}
	tail := list[start:]
	sort.Slice(tail, func(a, b int) bool {
		ia, ib := tail[a], tail[b]
		ca, cb := g.entries[ia].ancestors.Count(), g.entries[ib].ancestors.Count()
		if ca != cb {
			return ca < cb
		}
		return ia < ib
	})
	return list
}

// IsAcyclic reports whether every live transaction's ancestor and
// descendant closures intersect in exactly itself.
func (g *DepGraph[S]) IsAcyclic() bool {
	for i := range g.used.All() {
		want := bitset.Singleton[S](i)
		if g.entries[i].ancestors.Intersect(g.entries[i].descendants) != want {
			return false
		}
	}
	return true
}

// CountDependencies returns the total number of reduced parent edges
// across the whole graph.
func (g *DepGraph[S]) CountDependencies() int {
	total := 0
	for i := range g.used.All() {
		total += g.GetReducedParents(Index(i)).Count()
	}
	return total
}

// EstimatedMemoryUsage estimates the graph's heap footprint, in the same
// spirit as the teacher's mempool/memusage.go: a coarse, allocation-aware
// accounting used for mempool memory bookkeeping rather than a precise
// measurement.
func (g *DepGraph[S]) EstimatedMemoryUsage() uintptr {
	var zeroEntry depEntry[S]
	return uintptr(cap(g.entries)) * unsafe.Sizeof(zeroEntry)
}
