package clusterlin

import (
	"github.com/btcsuite/btcclusterlin/bitset"
	"github.com/btcsuite/btcclusterlin/feefrac"
)

// postEntry is one node of PostLinearize's doubly-organized linked lists:
// a singly-linked list of transactions within a group (pointing from tail
// to head via prevTx), themselves chained into a singly-linked circular
// list of groups (via prevGroup). Entry index i+1 describes transaction i;
// entry index 0 is the sentinel marking the start/end of the group list.
type postEntry[S bitset.Set[S]] struct {
	prevTx    Index
	firstTx   Index
	prevGroup Index
	group     S
	deps      S
	feerate   feefrac.FeeFrac
}

const (
	postSentinel Index = 0
	noPrevTx     Index = 0
)

// PostLinearize cheaply improves an existing linearization in place,
// without needing the full SpanningForestState machinery. It performs two
// passes -- one backward, one forward -- each of which merges or swaps
// adjacent groups of transactions to eliminate local feerate inversions.
//
// Guarantees (spec.md §4.7): the resulting chunks are connected; if every
// transaction has at most one child, or at most one parent, the result is
// optimal; and moving a leaf transaction to the end of a linearization
// (optionally raising its fee) and then postlinearizing never produces a
// worse result than the original.
func PostLinearize[S bitset.Set[S]](g *DepGraph[S], linearization []Index) {
	entries := make([]postEntry[S], g.PositionRange()+1)

	for pass := 0; pass < 2; pass++ {
		rev := pass%2 == 0
		entries[postSentinel].prevGroup = postSentinel

		for i := 0; i < len(linearization); i++ {
			var idx Index
			if rev {
				idx = linearization[len(linearization)-1-i]
			} else {
				idx = linearization[i]
			}
			curGroup := idx + 1
			entries[curGroup].group = bitset.Singleton[S](int(idx))
			if rev {
				entries[curGroup].deps = g.Descendants(idx)
			} else {
				entries[curGroup].deps = g.Ancestors(idx)
			}
			fr := g.FeeRate(idx)
			if rev {
				fr = feefrac.New(-fr.Fee, fr.Size)
			}
			entries[curGroup].feerate = fr
			entries[curGroup].prevTx = noPrevTx
			entries[curGroup].firstTx = curGroup
			entries[curGroup].prevGroup = entries[postSentinel].prevGroup
			entries[postSentinel].prevGroup = curGroup

			nextGroup := postSentinel
			prevGroup := entries[curGroup].prevGroup
			for feefrac.Greater(entries[curGroup].feerate, entries[prevGroup].feerate) {
				if entries[curGroup].deps.Overlaps(entries[prevGroup].group) {
					entries[curGroup].group = entries[curGroup].group.Union(entries[prevGroup].group)
					entries[curGroup].deps = entries[curGroup].deps.Union(entries[prevGroup].deps)
					entries[curGroup].feerate = entries[curGroup].feerate.Add(entries[prevGroup].feerate)
					entries[entries[curGroup].firstTx].prevTx = prevGroup
					entries[curGroup].firstTx = entries[prevGroup].firstTx
					prevGroup = entries[prevGroup].prevGroup
					entries[curGroup].prevGroup = prevGroup
				} else {
					preprevGroup := entries[prevGroup].prevGroup
					entries[nextGroup].prevGroup = prevGroup
					entries[prevGroup].prevGroup = curGroup
					entries[curGroup].prevGroup = preprevGroup
					nextGroup = prevGroup
					prevGroup = preprevGroup
				}
			}
		}

		curGroup := entries[postSentinel].prevGroup
		done := 0
		for curGroup != postSentinel {
			curTx := curGroup
			if rev {
				for {
					linearization[done] = curTx - 1
					done++
					curTx = entries[curTx].prevTx
					if curTx == noPrevTx {
						break
					}
				}
			} else {
				for {
					done++
					linearization[len(linearization)-done] = curTx - 1
					curTx = entries[curTx].prevTx
					if curTx == noPrevTx {
						break
					}
				}
			}
			curGroup = entries[curGroup].prevGroup
		}
		assertInvariant(done == len(linearization), "PostLinearize: pass did not cover every transaction")
	}
}
