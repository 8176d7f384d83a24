//go:build clusterlin_sanitycheck

package clusterlin

// SanityCheck verifies the forest's internal consistency from scratch: it
// checks that each transaction lies in its own chunk's set, recomputes
// each transaction's parent and child sets from the other transactions'
// and compares them against the stored ones, and checks that every chunk
// holds exactly one active dependency fewer than it has transactions
// (acyclicity). It panics on the first violation. The reachable sets and
// dependency top sets are not checked.
//
// It is O(n^2) or worse and is built only under the clusterlin_sanitycheck
// tag, the way the original implementation gates its own SanityCheck
// behind a fuzzing/testing-only build configuration.
func (s *SpanningForestState[S]) SanityCheck() {
	for txIdx := range s.transactionIdxs.All() {
		td := &s.txData[txIdx]
		chunkInfo := s.setInfo[td.chunkIdx]
		assertInvariant(chunkInfo.Transactions.Has(txIdx), "SanityCheck: tx not in its own chunk set")
		assertInvariant(s.chunkIdxs.Has(td.chunkIdx), "SanityCheck: tx chunk_idx is not a chunk")

		var gotParents, gotChildren S
		for other := range s.transactionIdxs.All() {
			if other == txIdx {
				continue
			}
			od := &s.txData[other]
			if od.children.Has(txIdx) {
				gotParents = gotParents.Set(other)
			}
			if od.parents.Has(txIdx) {
				gotChildren = gotChildren.Set(other)
			}
		}
		assertInvariant(gotParents == td.parents, "SanityCheck: parents mismatch for tx %d", txIdx)
		assertInvariant(gotChildren == td.children, "SanityCheck: children mismatch for tx %d", txIdx)
	}

	// Every chunk's active-dependency count must equal (size - 1): the
	// acyclicity invariant spec.md §4.5 requires at all times.
	sizeByChunk := map[int]int{}
	edgesByChunk := map[int]int{}
	for chunkIdx := range s.chunkIdxs.All() {
		sizeByChunk[chunkIdx] = s.setInfo[chunkIdx].Transactions.Count()
	}
	for txIdx := range s.transactionIdxs.All() {
		td := &s.txData[txIdx]
		for childIdx := range td.activeChildren.All() {
			chunkIdx := s.txData[childIdx].chunkIdx
			edgesByChunk[chunkIdx]++
		}
	}
	for chunkIdx, size := range sizeByChunk {
		assertInvariant(edgesByChunk[chunkIdx] == size-1,
			"SanityCheck: chunk %d has %d active edges, want %d", chunkIdx, edgesByChunk[chunkIdx], size-1)
	}
}
