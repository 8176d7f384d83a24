package clusterlin

import (
	"github.com/btcsuite/btcclusterlin/bitset"
	"github.com/btcsuite/btcclusterlin/feefrac"
	"github.com/btcsuite/btcclusterlin/internal/insecurerand"
	"github.com/btcsuite/btcclusterlin/internal/queue"
)

// invalidSetIdx marks the absence of a chunk/dependency-top set index.
const invalidSetIdx = -1

// txData holds the per-transaction bookkeeping the spanning-forest
// algorithm needs in addition to what DepGraph already stores.
type txData[S bitset.Set[S]] struct {
	// depTopIdx[c], for c an active child (activeChildren.Has(c)), is the
	// set index of that dependency's top set.
	depTopIdx []int
	parents   S
	children  S
	// activeChildren is the subset of children reachable through an
	// active (currently merged-in) dependency.
	activeChildren S
	chunkIdx       int
}

// nonminimalEntry is one entry of the minimization work queue: a chunk, a
// pivot transaction within it, and direction/stage flags.
type nonminimalEntry struct {
	chunkIdx int
	pivotIdx Index
	// flags bit 0: currently moving the pivot down rather than up.
	// flags bit 1: already tried the other direction once (second stage).
	flags uint8
}

// SpanningForestState is the iterative linearization optimizer described in
// spec.md §4.5. At every point in time, each (reduced) dependency is marked
// active or inactive; the set of active dependencies is the state. Two
// transactions are in the same chunk iff they are connected through active
// dependencies, ignoring direction. The algorithm proceeds by toggling
// dependencies between active and inactive to improve the chunking, while
// maintaining the acyclic invariant (every chunk's active dependencies form
// a tree) at all times -- giving the type its name.
type SpanningForestState[S bitset.Set[S]] struct {
	rng insecurerand.Context

	transactionIdxs S
	// chunkIdxs is the set of set-indexes that currently denote chunks
	// (as opposed to a dependency's top set).
	chunkIdxs S
	// suboptimalIdxs mirrors suboptimalChunks' contents as a set, so
	// membership can be tested/toggled in O(1).
	suboptimalIdxs S

	txData  []txData[S]
	setInfo []SetInfo[S]
	// reachableUp/reachableDown hold, per chunk set index, the
	// out-of-chunk transactions reachable upwards (ancestor side) and
	// downwards (descendant side).
	reachableUp   []S
	reachableDown []S

	suboptimalChunks *queue.Deque[int]
	nonminimalChunks *queue.Deque[nonminimalEntry]

	cost uint64

	depgraph *DepGraph[S]
}

// NewSpanningForestState constructs a spanning forest for g, with every
// transaction initially in its own singleton chunk (not yet topological).
func NewSpanningForestState[S bitset.Set[S]](g *DepGraph[S], seed uint64) *SpanningForestState[S] {
	sfs := &SpanningForestState[S]{
		rng:              insecurerand.New(seed),
		depgraph:         g,
		suboptimalChunks: queue.NewDeque[int](),
		nonminimalChunks: queue.NewDeque[nonminimalEntry](),
	}
	sfs.transactionIdxs = g.Positions()
	numTransactions := sfs.transactionIdxs.Count()
	sfs.txData = make([]txData[S], g.PositionRange())
	sfs.setInfo = make([]SetInfo[S], numTransactions)
	sfs.reachableUp = make([]S, numTransactions)
	sfs.reachableDown = make([]S, numTransactions)

	var zero S
	capacity := zero.Capacity()
	numChunks := 0
	for txIdx := range sfs.transactionIdxs.All() {
		td := &sfs.txData[txIdx]
		td.parents = g.GetReducedParents(Index(txIdx))
		td.depTopIdx = make([]int, capacity)
		for parentIdx := range td.parents.All() {
			sfs.txData[parentIdx].children = sfs.txData[parentIdx].children.Set(txIdx)
		}
		td.chunkIdx = numChunks
		sfs.setInfo[numChunks] = NewSetInfoTx(g, Index(txIdx))
		numChunks++
	}
	for chunkIdx := 0; chunkIdx < numTransactions; chunkIdx++ {
		tx := sfs.setInfo[chunkIdx].Transactions.First()
		sfs.reachableUp[chunkIdx] = sfs.txData[tx].parents
		sfs.reachableDown[chunkIdx] = sfs.txData[tx].children
	}
	assertInvariant(numChunks == numTransactions, "spanning forest: chunk count mismatch")
	sfs.chunkIdxs = bitset.Fill[S](numChunks)
	return sfs
}

// GetCost returns the number of transaction-updates spent on
// activations/deactivations so far, the unit spec.md's iteration budget is
// denominated in.
func (s *SpanningForestState[S]) GetCost() uint64 { return s.cost }

func (s *SpanningForestState[S]) pickRandomTx(txIdxs S) Index {
	assertInvariant(txIdxs.Any(), "pickRandomTx: empty set")
	pos := s.rng.IntN(txIdxs.Count())
	for tx := range txIdxs.All() {
		if pos == 0 {
			return Index(tx)
		}
		pos--
	}
	assertInvariant(false, "pickRandomTx: ran out of elements")
	return 0
}

// activate makes the inactive dependency from child to parent (which must
// not already be in the same chunk) active, merging their chunks. Returns
// the merged chunk's set index.
func (s *SpanningForestState[S]) activate(parentIdx, childIdx Index) int {
	parentData := &s.txData[parentIdx]
	childData := &s.txData[childIdx]
	assertInvariant(parentData.children.Has(int(childIdx)), "activate: not a child relationship")
	assertInvariant(!parentData.activeChildren.Has(int(childIdx)), "activate: already active")

	parentChunkIdx := parentData.chunkIdx
	childChunkIdx := childData.chunkIdx
	assertInvariant(parentChunkIdx != childChunkIdx, "activate: already same chunk")
	assertInvariant(s.chunkIdxs.Has(parentChunkIdx), "activate: parent chunk invalid")
	assertInvariant(s.chunkIdxs.Has(childChunkIdx), "activate: child chunk invalid")

	topInfo := s.setInfo[parentChunkIdx]
	bottomInfo := s.setInfo[childChunkIdx]

	for txIdx := range topInfo.Transactions.All() {
		td := &s.txData[txIdx]
		td.chunkIdx = childChunkIdx
		for depChildIdx := range td.activeChildren.All() {
			depTopIdx := td.depTopIdx[depChildIdx]
			if s.setInfo[depTopIdx].Transactions.Has(int(parentIdx)) {
				s.setInfo[depTopIdx] = s.setInfo[depTopIdx].Union(bottomInfo)
			}
		}
	}
	for txIdx := range bottomInfo.Transactions.All() {
		td := &s.txData[txIdx]
		for depChildIdx := range td.activeChildren.All() {
			depTopIdx := td.depTopIdx[depChildIdx]
			if s.setInfo[depTopIdx].Transactions.Has(int(childIdx)) {
				s.setInfo[depTopIdx] = s.setInfo[depTopIdx].Union(topInfo)
			}
		}
	}
	bottomInfo = bottomInfo.Union(topInfo)
	s.cost += uint64(bottomInfo.Transactions.Count())
	s.setInfo[childChunkIdx] = bottomInfo

	s.reachableUp[childChunkIdx] = s.reachableUp[childChunkIdx].Union(s.reachableUp[parentChunkIdx]).Difference(bottomInfo.Transactions)
	s.reachableDown[childChunkIdx] = s.reachableDown[childChunkIdx].Union(s.reachableDown[parentChunkIdx]).Difference(bottomInfo.Transactions)

	parentData.depTopIdx[childIdx] = parentChunkIdx
	parentData.activeChildren = parentData.activeChildren.Set(int(childIdx))
	s.chunkIdxs = s.chunkIdxs.Reset(parentChunkIdx)
	return childChunkIdx
}

// deactivate makes a specified active dependency inactive, splitting its
// chunk in two. Returns the resulting parent (top) and child (bottom)
// chunk set indexes.
func (s *SpanningForestState[S]) deactivate(parentIdx, childIdx Index) (int, int) {
	parentData := &s.txData[parentIdx]
	assertInvariant(parentData.children.Has(int(childIdx)), "deactivate: not a child relationship")
	assertInvariant(parentData.activeChildren.Has(int(childIdx)), "deactivate: not active")

	parentChunkIdx := parentData.depTopIdx[childIdx]
	childChunkIdx := parentData.chunkIdx
	assertInvariant(parentChunkIdx != childChunkIdx, "deactivate: same chunk")
	assertInvariant(s.chunkIdxs.Has(childChunkIdx), "deactivate: child chunk invalid")
	assertInvariant(!s.chunkIdxs.Has(parentChunkIdx), "deactivate: parent idx is already a chunk")

	topInfo := s.setInfo[parentChunkIdx]
	bottomInfo := s.setInfo[childChunkIdx]

	parentData.activeChildren = parentData.activeChildren.Reset(int(childIdx))
	s.chunkIdxs = s.chunkIdxs.Set(parentChunkIdx)
	s.cost += uint64(bottomInfo.Transactions.Count())
	bottomInfo = bottomInfo.Difference(topInfo)

	var topParents, topChildren S
	for txIdx := range topInfo.Transactions.All() {
		td := &s.txData[txIdx]
		td.chunkIdx = parentChunkIdx
		topParents = topParents.Union(td.parents)
		topChildren = topChildren.Union(td.children)
		for depChildIdx := range td.activeChildren.All() {
			depTopIdx := td.depTopIdx[depChildIdx]
			if s.setInfo[depTopIdx].Transactions.Has(int(parentIdx)) {
				s.setInfo[depTopIdx] = s.setInfo[depTopIdx].Difference(bottomInfo)
			}
		}
	}
	var bottomParents, bottomChildren S
	for txIdx := range bottomInfo.Transactions.All() {
		td := &s.txData[txIdx]
		bottomParents = bottomParents.Union(td.parents)
		bottomChildren = bottomChildren.Union(td.children)
		for depChildIdx := range td.activeChildren.All() {
			depTopIdx := td.depTopIdx[depChildIdx]
			if s.setInfo[depTopIdx].Transactions.Has(int(childIdx)) {
				s.setInfo[depTopIdx] = s.setInfo[depTopIdx].Difference(topInfo)
			}
		}
	}
	s.setInfo[childChunkIdx] = bottomInfo
	s.reachableUp[parentChunkIdx] = topParents.Difference(topInfo.Transactions)
	s.reachableDown[parentChunkIdx] = topChildren.Difference(topInfo.Transactions)
	s.reachableUp[childChunkIdx] = bottomParents.Difference(bottomInfo.Transactions)
	s.reachableDown[childChunkIdx] = bottomChildren.Difference(bottomInfo.Transactions)

	return parentChunkIdx, childChunkIdx
}

// mergeChunks activates a uniformly random dependency from bottomIdx to
// topIdx (which must exist), and returns the merged chunk's index.
func (s *SpanningForestState[S]) mergeChunks(topIdx, bottomIdx int) int {
	assertInvariant(s.chunkIdxs.Has(topIdx), "mergeChunks: top not a chunk")
	assertInvariant(s.chunkIdxs.Has(bottomIdx), "mergeChunks: bottom not a chunk")
	topChunk := s.setInfo[topIdx]
	bottomChunk := s.setInfo[bottomIdx]

	numDeps := 0
	for txIdx := range topChunk.Transactions.All() {
		td := &s.txData[txIdx]
		numDeps += td.children.Intersect(bottomChunk.Transactions).Count()
	}
	assertInvariant(numDeps > 0, "mergeChunks: no dependency between chunks")
	pick := s.rng.IntN(numDeps)
	for txIdx := range topChunk.Transactions.All() {
		td := &s.txData[txIdx]
		intersect := td.children.Intersect(bottomChunk.Transactions)
		count := intersect.Count()
		if pick < count {
			for childIdx := range intersect.All() {
				if pick == 0 {
					return s.activate(Index(txIdx), Index(childIdx))
				}
				pick--
			}
			assertInvariant(false, "mergeChunks: pick exhausted without match")
		}
		pick -= count
	}
	assertInvariant(false, "mergeChunks: no candidate found")
	return invalidSetIdx
}

func (s *SpanningForestState[S]) mergeChunksDirected(downward bool, chunkIdx, mergeChunkIdx int) int {
	if downward {
		return s.mergeChunks(chunkIdx, mergeChunkIdx)
	}
	return s.mergeChunks(mergeChunkIdx, chunkIdx)
}

// pickMergeCandidate finds the chunk to merge chunkIdx with: the
// lowest-feerate reachable-upward chunk (downward=false), or the
// highest-feerate reachable-downward chunk (downward=true), with ties
// broken uniformly at random. Returns invalidSetIdx if there is none.
func (s *SpanningForestState[S]) pickMergeCandidate(downward bool, chunkIdx int) int {
	assertInvariant(s.chunkIdxs.Has(chunkIdx), "pickMergeCandidate: not a chunk")
	chunkInfo := s.setInfo[chunkIdx]

	bestFeerate := chunkInfo.FeeRate
	bestIdx := invalidSetIdx
	var bestTiebreak uint64

	var todo S
	if downward {
		todo = s.reachableDown[chunkIdx]
	} else {
		todo = s.reachableUp[chunkIdx]
	}
	steps := 0
	for todo.Any() {
		steps++
		reachedChunkIdx := s.txData[todo.First()].chunkIdx
		reachedInfo := s.setInfo[reachedChunkIdx]
		todo = todo.Difference(reachedInfo.Transactions)

		var cmp int
		if downward {
			cmp = feefrac.Compare(bestFeerate, reachedInfo.FeeRate)
		} else {
			cmp = feefrac.Compare(reachedInfo.FeeRate, bestFeerate)
		}
		if cmp > 0 {
			continue
		}
		tiebreak := s.rng.Uint64()
		if cmp < 0 || tiebreak >= bestTiebreak {
			bestFeerate = reachedInfo.FeeRate
			bestIdx = reachedChunkIdx
			bestTiebreak = tiebreak
		}
	}
	assertInvariant(steps <= len(s.setInfo), "pickMergeCandidate: too many steps")
	return bestIdx
}

func (s *SpanningForestState[S]) mergeStep(downward bool, chunkIdx int) int {
	mergeChunkIdx := s.pickMergeCandidate(downward, chunkIdx)
	if mergeChunkIdx == invalidSetIdx {
		return invalidSetIdx
	}
	merged := s.mergeChunksDirected(downward, chunkIdx, mergeChunkIdx)
	assertInvariant(merged != invalidSetIdx, "mergeStep: merge produced invalid index")
	return merged
}

func (s *SpanningForestState[S]) mergeSequence(downward bool, chunkIdx int) {
	assertInvariant(s.chunkIdxs.Has(chunkIdx), "mergeSequence: not a chunk")
	for {
		merged := s.mergeStep(downward, chunkIdx)
		if merged == invalidSetIdx {
			break
		}
		chunkIdx = merged
	}
	s.pushSuboptimal(chunkIdx)
}

func (s *SpanningForestState[S]) pushSuboptimal(chunkIdx int) {
	if !s.suboptimalIdxs.Has(chunkIdx) {
		s.suboptimalIdxs = s.suboptimalIdxs.Set(chunkIdx)
		s.suboptimalChunks.PushBack(chunkIdx)
	}
}

// improve deactivates the (parentIdx, childIdx) dependency, splitting its
// chunk, then re-merges the two halves to restore topology using merge
// sequences (or a direct self-merge, when the split sides still depend on
// each other through a different path).
func (s *SpanningForestState[S]) improve(parentIdx, childIdx Index) {
	parentChunkIdx, childChunkIdx := s.deactivate(parentIdx, childIdx)

	parentReachable := s.reachableUp[parentChunkIdx]
	childChunkTxn := s.setInfo[childChunkIdx].Transactions
	if parentReachable.Overlaps(childChunkTxn) {
		merged := s.mergeChunks(childChunkIdx, parentChunkIdx)
		s.pushSuboptimal(merged)
	} else {
		s.mergeSequence(false, parentChunkIdx)
		s.mergeSequence(true, childChunkIdx)
	}
}

func (s *SpanningForestState[S]) pickChunkToOptimize() int {
	for !s.suboptimalChunks.Empty() {
		chunkIdx, _ := s.suboptimalChunks.PopFront()
		assertInvariant(s.suboptimalIdxs.Has(chunkIdx), "pickChunkToOptimize: not marked suboptimal")
		s.suboptimalIdxs = s.suboptimalIdxs.Reset(chunkIdx)
		if s.chunkIdxs.Has(chunkIdx) {
			return chunkIdx
		}
	}
	return invalidSetIdx
}

// pickDependencyToSplit finds a uniformly random active dependency within
// chunkIdx whose top set has strictly higher feerate than the chunk, or
// (invalidIndex, invalidIndex) if none exists.
func (s *SpanningForestState[S]) pickDependencyToSplit(chunkIdx int) (Index, Index) {
	assertInvariant(s.chunkIdxs.Has(chunkIdx), "pickDependencyToSplit: not a chunk")
	chunkInfo := s.setInfo[chunkIdx]

	const invalidIndex = ^Index(0)
	candidateParent, candidateChild := invalidIndex, invalidIndex
	var candidateTiebreak uint64

	for txIdx := range chunkInfo.Transactions.All() {
		td := &s.txData[txIdx]
		for childIdx := range td.activeChildren.All() {
			depTop := s.setInfo[td.depTopIdx[childIdx]]
			if feefrac.Compare(depTop.FeeRate, chunkInfo.FeeRate) <= 0 {
				continue
			}
			tiebreak := s.rng.Uint64()
			if tiebreak < candidateTiebreak {
				continue
			}
			candidateParent, candidateChild = Index(txIdx), Index(childIdx)
			candidateTiebreak = tiebreak
		}
	}
	return candidateParent, candidateChild
}

// LoadLinearization seeds the forest from an existing linearization by
// upward-merging each transaction's singleton chunk in turn. Must be called
// immediately after NewSpanningForestState. If old_linearization is valid,
// the result is already topological; otherwise MakeTopological must still
// be called.
func (s *SpanningForestState[S]) LoadLinearization(oldLinearization []Index) {
	for _, txIdx := range oldLinearization {
		chunkIdx := s.txData[txIdx].chunkIdx
		for {
			next := s.mergeStep(false, chunkIdx)
			if next == invalidSetIdx {
				break
			}
			chunkIdx = next
		}
	}
}

// MakeTopological activates dependencies (merging chunks) until the state
// is topological (no inactive dependency between chunks with an
// equal-or-higher-feerate child than parent).
func (s *SpanningForestState[S]) MakeTopological() {
	assertInvariant(s.suboptimalChunks.Empty(), "MakeTopological: queue not empty")

	initDir := s.rng.Bool()
	var mergedChunks S

	s.suboptimalIdxs = s.chunkIdxs
	for chunkIdx := range s.chunkIdxs.All() {
		s.suboptimalChunks.PushBack(chunkIdx)
		j := s.rng.IntN(s.suboptimalChunks.Len())
		if j != s.suboptimalChunks.Len()-1 {
			s.suboptimalChunks.Swap(j, s.suboptimalChunks.Len()-1)
		}
	}

	for !s.suboptimalChunks.Empty() {
		chunkIdx, _ := s.suboptimalChunks.PopFront()
		assertInvariant(s.suboptimalIdxs.Has(chunkIdx), "MakeTopological: not marked suboptimal")
		s.suboptimalIdxs = s.suboptimalIdxs.Reset(chunkIdx)
		if !s.chunkIdxs.Has(chunkIdx) {
			continue
		}
		var direction int
		if mergedChunks.Has(chunkIdx) {
			direction = 3
		} else if initDir {
			direction = 2
		} else {
			direction = 1
		}
		flip := s.rng.Bool()
		for i := 0; i < 2; i++ {
			up := (i == 0) == flip
			if up {
				if direction&1 == 0 {
					continue
				}
				resultUp := s.mergeStep(false, chunkIdx)
				if resultUp != invalidSetIdx {
					s.pushSuboptimal(resultUp)
					mergedChunks = mergedChunks.Set(resultUp)
					break
				}
			} else {
				if direction&2 == 0 {
					continue
				}
				resultDown := s.mergeStep(true, chunkIdx)
				if resultDown != invalidSetIdx {
					s.pushSuboptimal(resultDown)
					mergedChunks = mergedChunks.Set(resultDown)
					break
				}
			}
		}
	}
}

// StartOptimizing initializes the optimization queue. The state must
// already be topological.
func (s *SpanningForestState[S]) StartOptimizing() {
	assertInvariant(s.suboptimalChunks.Empty(), "StartOptimizing: queue not empty")
	s.suboptimalIdxs = s.chunkIdxs
	for chunkIdx := range s.chunkIdxs.All() {
		s.suboptimalChunks.PushBack(chunkIdx)
		j := s.rng.IntN(s.suboptimalChunks.Len())
		if j != s.suboptimalChunks.Len()-1 {
			s.suboptimalChunks.Swap(j, s.suboptimalChunks.Len()-1)
		}
	}
}

// OptimizeStep performs one improvement step. It returns false once the
// state is optimal (no active dependency has a strictly higher-feerate top
// than bottom).
func (s *SpanningForestState[S]) OptimizeStep() bool {
	chunkIdx := s.pickChunkToOptimize()
	if chunkIdx == invalidSetIdx {
		return false
	}
	parentIdx, childIdx := s.pickDependencyToSplit(chunkIdx)
	if parentIdx == ^Index(0) {
		return !s.suboptimalChunks.Empty()
	}
	s.improve(parentIdx, childIdx)
	return true
}

// StartMinimizing initializes the minimization queue. Can only be called
// once the state is known to be optimal; OptimizeStep must not be called
// again afterward.
func (s *SpanningForestState[S]) StartMinimizing() {
	s.nonminimalChunks = queue.NewDeque[nonminimalEntry](s.transactionIdxs.Count())
	for chunkIdx := range s.chunkIdxs.All() {
		pivot := s.pickRandomTx(s.setInfo[chunkIdx].Transactions)
		var flags uint8
		if s.rng.Bool() {
			flags = 1
		}
		s.nonminimalChunks.PushBack(nonminimalEntry{chunkIdx: chunkIdx, pivotIdx: pivot, flags: flags})
		j := s.rng.IntN(s.nonminimalChunks.Len())
		if j != s.nonminimalChunks.Len()-1 {
			s.nonminimalChunks.Swap(j, s.nonminimalChunks.Len()-1)
		}
	}
}

// MinimizeStep attempts to split one chunk further into equal-feerate
// components with no mutual dependency. Returns false once every chunk is
// minimal.
func (s *SpanningForestState[S]) MinimizeStep() bool {
	if s.nonminimalChunks.Empty() {
		return false
	}
	entry, _ := s.nonminimalChunks.PopFront()
	chunkIdx, pivotIdx, flags := entry.chunkIdx, entry.pivotIdx, entry.flags
	chunkInfo := s.setInfo[chunkIdx]
	movePivotDown := flags&1 != 0
	secondStage := flags&2 != 0

	const invalidIndex = ^Index(0)
	candidateParent, candidateChild := invalidIndex, invalidIndex
	var candidateTiebreak uint64
	haveAny := false

	for txIdx := range chunkInfo.Transactions.All() {
		td := &s.txData[txIdx]
		for childIdx := range td.activeChildren.All() {
			depTop := s.setInfo[td.depTopIdx[childIdx]]
			if feefrac.Less(depTop.FeeRate, chunkInfo.FeeRate) {
				continue
			}
			haveAny = true
			if movePivotDown == depTop.Transactions.Has(int(pivotIdx)) {
				continue
			}
			tiebreak := s.rng.Uint64() | 1
			if tiebreak > candidateTiebreak {
				candidateTiebreak = tiebreak
				candidateParent, candidateChild = Index(txIdx), Index(childIdx)
			}
		}
	}
	if !haveAny {
		return true
	}
	if candidateTiebreak == 0 {
		flags ^= 3
		if !secondStage {
			s.nonminimalChunks.PushBack(nonminimalEntry{chunkIdx: chunkIdx, pivotIdx: pivotIdx, flags: flags})
		}
		return true
	}

	parentChunkIdx, childChunkIdx := s.deactivate(candidateParent, candidateChild)
	parentReachable := s.reachableUp[parentChunkIdx]
	childChunkTxn := s.setInfo[childChunkIdx].Transactions
	if parentReachable.Overlaps(childChunkTxn) {
		merged := s.mergeChunks(childChunkIdx, parentChunkIdx)
		s.nonminimalChunks.PushBack(nonminimalEntry{chunkIdx: merged, pivotIdx: pivotIdx, flags: flags})
		return true
	}

	if movePivotDown {
		parentPivot := s.pickRandomTx(s.setInfo[parentChunkIdx].Transactions)
		var parentFlags uint8
		if s.rng.Bool() {
			parentFlags = 1
		}
		s.nonminimalChunks.PushBack(nonminimalEntry{chunkIdx: parentChunkIdx, pivotIdx: parentPivot, flags: parentFlags})
		s.nonminimalChunks.PushBack(nonminimalEntry{chunkIdx: childChunkIdx, pivotIdx: pivotIdx, flags: flags})
	} else {
		childPivot := s.pickRandomTx(s.setInfo[childChunkIdx].Transactions)
		var childFlags uint8
		if s.rng.Bool() {
			childFlags = 1
		}
		s.nonminimalChunks.PushBack(nonminimalEntry{chunkIdx: parentChunkIdx, pivotIdx: pivotIdx, flags: flags})
		s.nonminimalChunks.PushBack(nonminimalEntry{chunkIdx: childChunkIdx, pivotIdx: childPivot, flags: childFlags})
	}
	if s.rng.Bool() {
		s.nonminimalChunks.Swap(s.nonminimalChunks.Len()-1, s.nonminimalChunks.Len()-2)
	}
	return true
}

// readyChunk is one entry of GetLinearization's chunk-ready heap: a set
// index paired with its maximum element by fallback order, used purely for
// the chunk-level tiebreak.
type readyChunk struct {
	chunkIdx int
	maxElem  Index
}

// GetLinearization builds a topologically valid linearization from the
// current forest state, which must itself be topological. fallbackOrder
// imposes a strong total order on Index values, used to break every
// remaining tie; it is required to return a nonzero result for any two
// distinct indexes, and 0 only when equal.
//
// Chunks are emitted from highest to lowest feerate (ties broken by
// smaller chunk size, then by the chunk's own maximum element under
// fallbackOrder); transactions within a chunk are emitted the same way.
func (s *SpanningForestState[S]) GetLinearization(fallbackOrder func(a, b Index) int) []Index {
	ret := make([]Index, 0, len(s.setInfo))

	chunkDeps := make([]int, len(s.setInfo))
	txDeps := make([]int, len(s.txData))
	for chlIdx := range s.transactionIdxs.All() {
		chlData := &s.txData[chlIdx]
		txDeps[chlIdx] = chlData.parents.Count()
		chlChunkIdx := chlData.chunkIdx
		chlChunkInfo := s.setInfo[chlChunkIdx]
		chunkDeps[chlChunkIdx] += chlData.parents.Difference(chlChunkInfo.Transactions).Count()
	}

	maxFallback := func(chunkIdx int) Index {
		chunk := s.setInfo[chunkIdx].Transactions
		best := Index(chunk.First())
		for elem := range chunk.All() {
			if fallbackOrder(Index(elem), best) > 0 {
				best = Index(elem)
			}
		}
		return best
	}

	// Both comparators return true when a should be popped (and thus
	// emitted) before b: higher feerate first, then smaller size, then
	// lower under fallbackOrder (a chunk's maximum element, or the
	// transaction itself) -- the priority order spec.md
	// §4.6 describes for chunks and for transactions within a chunk.
	chunkLess := func(a, b readyChunk) bool {
		if a.chunkIdx == b.chunkIdx {
			return false
		}
		af, bf := s.setInfo[a.chunkIdx].FeeRate, s.setInfo[b.chunkIdx].FeeRate
		if cmp := feefrac.Compare(af, bf); cmp != 0 {
			return cmp > 0
		}
		if af.Size != bf.Size {
			return af.Size < bf.Size
		}
		return fallbackOrder(a.maxElem, b.maxElem) < 0
	}
	txLess := func(a, b Index) bool {
		if a == b {
			return false
		}
		af, bf := s.depgraph.FeeRate(a), s.depgraph.FeeRate(b)
		if cmp := feefrac.Compare(af, bf); cmp != 0 {
			return cmp > 0
		}
		if af.Size != bf.Size {
			return af.Size < bf.Size
		}
		return fallbackOrder(a, b) < 0
	}

	readyChunks := queue.NewPriorityQueue(chunkLess)
	for chunkIdx := range s.chunkIdxs.All() {
		if chunkDeps[chunkIdx] == 0 {
			readyChunks.Push(readyChunk{chunkIdx: chunkIdx, maxElem: maxFallback(chunkIdx)})
		}
	}

	for !readyChunks.Empty() {
		rc, _ := readyChunks.Pop()
		chunkIdx := rc.chunkIdx
		assertInvariant(chunkDeps[chunkIdx] == 0, "GetLinearization: chunk not ready")
		chunkTxn := s.setInfo[chunkIdx].Transactions

		readyTx := queue.NewPriorityQueue(txLess)
		for txIdx := range chunkTxn.All() {
			if txDeps[txIdx] == 0 {
				readyTx.Push(Index(txIdx))
			}
		}
		assertInvariant(!readyTx.Empty(), "GetLinearization: chunk has no ready transaction")

		for !readyTx.Empty() {
			txIdx, _ := readyTx.Pop()
			ret = append(ret, txIdx)
			td := &s.txData[txIdx]
			for chlIdx := range td.children.All() {
				chlData := &s.txData[chlIdx]
				assertInvariant(txDeps[chlIdx] > 0, "GetLinearization: tx dep underflow")
				txDeps[chlIdx]--
				if txDeps[chlIdx] == 0 && chunkTxn.Has(chlIdx) {
					readyTx.Push(Index(chlIdx))
				}
				if chlData.chunkIdx != chunkIdx {
					assertInvariant(chunkDeps[chlData.chunkIdx] > 0, "GetLinearization: chunk dep underflow")
					chunkDeps[chlData.chunkIdx]--
					if chunkDeps[chlData.chunkIdx] == 0 {
						readyChunks.Push(readyChunk{chunkIdx: chlData.chunkIdx, maxElem: maxFallback(chlData.chunkIdx)})
					}
				}
			}
		}
	}
	assertInvariant(len(ret) == len(s.setInfo), "GetLinearization: did not emit every transaction")
	return ret
}

// Diagram returns the chunk feerates of the current state, sorted from
// highest to lowest. Test-only: used to compare the quality of
// intermediate states against a known-optimal reference diagram.
func (s *SpanningForestState[S]) Diagram() []feefrac.FeeFrac {
	ret := make([]feefrac.FeeFrac, 0, s.chunkIdxs.Count())
	for chunkIdx := range s.chunkIdxs.All() {
		ret = append(ret, s.setInfo[chunkIdx].FeeRate)
	}
	for i := 1; i < len(ret); i++ {
		for j := i; j > 0 && feefrac.Greater(ret[j], ret[j-1]); j-- {
			ret[j], ret[j-1] = ret[j-1], ret[j]
		}
	}
	return ret
}
