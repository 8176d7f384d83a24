package clusterlin

import (
	"github.com/btcsuite/btcclusterlin/bitset"
	"github.com/btcsuite/btcclusterlin/feefrac"
)

// SetInfo pairs a set of transactions with their aggregate feerate.
type SetInfo[S bitset.Set[S]] struct {
	Transactions S
	FeeRate      feefrac.FeeFrac
}

// NewSetInfoTx returns the SetInfo of a single transaction in g.
func NewSetInfoTx[S bitset.Set[S]](g *DepGraph[S], pos Index) SetInfo[S] {
	return SetInfo[S]{
		Transactions: bitset.Singleton[S](int(pos)),
		FeeRate:      g.FeeRate(pos),
	}
}

// NewSetInfo returns the SetInfo of a set of transactions in g.
func NewSetInfo[S bitset.Set[S]](g *DepGraph[S], txn S) SetInfo[S] {
	return SetInfo[S]{Transactions: txn, FeeRate: g.SetFeeRateSum(txn)}
}

// Add returns si with pos (which must not already be a member) added.
func (si SetInfo[S]) Add(g *DepGraph[S], pos Index) SetInfo[S] {
	assertInvariant(!si.Transactions.Has(int(pos)), "SetInfo.Add: %d already a member", pos)
	return SetInfo[S]{
		Transactions: si.Transactions.Set(int(pos)),
		FeeRate:      si.FeeRate.Add(g.FeeRate(pos)),
	}
}

// Union returns si with other's transactions merged in. The two sets must
// not overlap.
func (si SetInfo[S]) Union(other SetInfo[S]) SetInfo[S] {
	assertInvariant(!si.Transactions.Overlaps(other.Transactions), "SetInfo.Union: sets overlap")
	return SetInfo[S]{
		Transactions: si.Transactions.Union(other.Transactions),
		FeeRate:      si.FeeRate.Add(other.FeeRate),
	}
}

// Difference returns si with other's transactions removed. other must be a
// subset of si.
func (si SetInfo[S]) Difference(other SetInfo[S]) SetInfo[S] {
	assertInvariant(other.Transactions.IsSubsetOf(si.Transactions), "SetInfo.Difference: not a subset")
	return SetInfo[S]{
		Transactions: si.Transactions.Difference(other.Transactions),
		FeeRate:      si.FeeRate.Sub(other.FeeRate),
	}
}

// ChunkLinearizationInfo computes the chunking of linearization as a slice
// of SetInfo, one per chunk, from highest to lowest emission order (i.e. in
// the order the transactions appear in linearization). A chunk is a maximal
// run of the linearization whose feerate never decreases when read as a
// prefix sum from the back: equivalently, repeatedly absorb the previous
// chunk into the new one for as long as the new one has strictly higher
// feerate.
func ChunkLinearizationInfo[S bitset.Set[S]](g *DepGraph[S], linearization []Index) []SetInfo[S] {
	var ret []SetInfo[S]
	for _, i := range linearization {
		newChunk := NewSetInfoTx(g, i)
		for len(ret) > 0 && feefrac.Greater(newChunk.FeeRate, ret[len(ret)-1].FeeRate) {
			newChunk = newChunk.Union(ret[len(ret)-1])
			ret = ret[:len(ret)-1]
		}
		ret = append(ret, newChunk)
	}
	return ret
}

// ChunkLinearization is identical to ChunkLinearizationInfo, but returns
// only the chunk feerates, not the corresponding transaction sets.
func ChunkLinearization[S bitset.Set[S]](g *DepGraph[S], linearization []Index) []feefrac.FeeFrac {
	var ret []feefrac.FeeFrac
	for _, i := range linearization {
		newChunk := g.FeeRate(i)
		for len(ret) > 0 && feefrac.Greater(newChunk, ret[len(ret)-1]) {
			newChunk = newChunk.Add(ret[len(ret)-1])
			ret = ret[:len(ret)-1]
		}
		ret = append(ret, newChunk)
	}
	return ret
}

// CompareDiagrams reports whether diagram a dominates diagram b: whether
// a's partial sums of chunk feerates, read from the front, are never
// below b's at any prefix length. This is the "chunk feerate diagram"
// comparison spec.md's monotone-improvement properties rely on
// (PostLinearize and Linearize-with-a-prior never produce a worse
// diagram than their input); it is intended for tests and
// property-checking, not hot-path use.
func CompareDiagrams(a, b []feefrac.FeeFrac) bool {
	var sumA, sumB feefrac.FeeFrac
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if i < len(a) {
			sumA = sumA.Add(a[i])
		}
		if i < len(b) {
			sumB = sumB.Add(b[i])
		}
		if feefrac.Less(sumA, sumB) {
			return false
		}
	}
	return true
}
