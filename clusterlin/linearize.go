package clusterlin

import "github.com/btcsuite/btcclusterlin/bitset"

// LinearizeResult is the outcome of a Linearize call: the produced
// linearization, whether it is known to be optimal (in the convexified
// feerate-diagram sense), and the iteration cost spent producing it.
type LinearizeResult struct {
	Linearization []Index
	Optimal       bool
	Cost          uint64
}

// Linearize computes a linearization for g, spending at most maxIterations
// units of SpanningForestState cost. fallbackOrder must impose a strong
// total order on Index values, used to break every remaining tie once
// feerate comparisons are exhausted.
//
// If oldLinearization is non-empty, it seeds the search (the result is
// never worse than it); isTopological should be true iff the caller
// already knows oldLinearization is a valid topological order for g, to
// skip the redundant MakeTopological pass.
//
// Optimal is true only when StartMinimizing's queue drained within budget;
// it is never set after an OptimizeStep-only pass, since a chunking can be
// optimal in the convexified sense while individual chunks still have
// room to split into minimal equal-feerate parts (spec.md §9).
func Linearize[S bitset.Set[S]](
	g *DepGraph[S],
	maxIterations uint64,
	rngSeed uint64,
	fallbackOrder func(a, b Index) int,
	oldLinearization []Index,
	isTopological bool,
) LinearizeResult {
	forest := NewSpanningForestState(g, rngSeed)
	if len(oldLinearization) > 0 {
		forest.LoadLinearization(oldLinearization)
		if !isTopological {
			forest.MakeTopological()
		}
	} else {
		forest.MakeTopological()
	}

	if forest.GetCost() < maxIterations {
		forest.StartOptimizing()
		for forest.GetCost() < maxIterations {
			if !forest.OptimizeStep() {
				break
			}
		}
	}

	optimal := false
	if forest.GetCost() < maxIterations {
		forest.StartMinimizing()
		for forest.GetCost() < maxIterations {
			if !forest.MinimizeStep() {
				optimal = true
				break
			}
		}
	}

	result := LinearizeResult{
		Linearization: forest.GetLinearization(fallbackOrder),
		Optimal:       optimal,
		Cost:          forest.GetCost(),
	}
	log.Debugf("linearized %d-tx cluster: cost=%d optimal=%v", g.TxCount(), result.Cost, result.Optimal)
	return result
}
