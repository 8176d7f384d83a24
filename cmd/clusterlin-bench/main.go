// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command clusterlin-bench generates random transaction clusters and
// reports how close clusterlin.Linearize gets to an optimal linearization
// within a fixed iteration budget, the way btcd's addblock and similar
// cmd/ tools drive a library package from a small flags-parsed CLI.
package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btcclusterlin/bitset"
	"github.com/btcsuite/btcclusterlin/clusterlin"
	"github.com/btcsuite/btcclusterlin/feefrac"
	"github.com/btcsuite/btcclusterlin/internal/insecurerand"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.SanityCheck {
		benchLog.Warn("--sanitycheck has no effect: clusterlin-bench does not " +
			"run the invariant check")
	}

	rng := insecurerand.New(cfg.Seed)

	var (
		totalOptimal int
		totalCost    uint64
		worstRatio   feefrac.FeeFrac
	)

	for i := 0; i < cfg.Clusters; i++ {
		g, fallback := generateCluster(&rng, cfg.ClusterSize)
		res := clusterlin.Linearize(g, cfg.MaxIterations, rng.Uint64(), fallback, nil, false)
		totalCost += res.Cost
		if res.Optimal {
			totalOptimal++
		}

		diagram := clusterlin.ChunkLinearization(g, res.Linearization)
		if len(diagram) > 0 && feefrac.Greater(diagram[0], worstRatio) {
			worstRatio = diagram[0]
		}

		if cfg.Verbose {
			benchLog.Infof("cluster %d: %d txs, cost=%d, optimal=%v, chunks=%d",
				i, g.TxCount(), res.Cost, res.Optimal, len(diagram))
		}
	}

	fmt.Printf("clusters:         %d\n", cfg.Clusters)
	fmt.Printf("cluster size:     %d\n", cfg.ClusterSize)
	fmt.Printf("optimal:          %d/%d\n", totalOptimal, cfg.Clusters)
	fmt.Printf("total cost:       %d\n", totalCost)
	fmt.Printf("avg cost/cluster: %.2f\n", float64(totalCost)/float64(cfg.Clusters))
	fmt.Printf("best chunk rate:  %d/%d\n", worstRatio.Fee, worstRatio.Size)
	return nil
}

// generateCluster builds a random DepGraph of n transactions with random
// feerates, in which each transaction after the first gets a random earlier
// parent with probability 1/2 (so the graph is not necessarily connected),
// plus a fallback order
// matching the transactions' insertion order -- the same randomized
// construction the original implementation's fuzz harness uses to exercise
// SpanningForestState across many shapes.
func generateCluster(rng *insecurerand.Context, n int) (*clusterlin.DepGraph[bitset.Set64], func(a, b clusterlin.Index) int) {
	g := clusterlin.New[bitset.Set64]()
	var txs []clusterlin.Index
	for i := 0; i < n; i++ {
		fee := int64(rng.Uint64()%1000) + 1
		size := int64(rng.Uint64()%100) + 1
		txs = append(txs, g.AddTransaction(feefrac.New(fee, size)))
	}
	for i := 1; i < len(txs); i++ {
		// Each transaction may depend on a uniformly random earlier one,
		// keeping the graph acyclic by construction.
		if rng.Uint64()%2 == 0 {
			parent := txs[rng.Uint64()%uint64(i)]
			g.AddDependencies(bitset.Singleton[bitset.Set64](int(parent)), txs[i])
		}
	}
	return g, func(a, b clusterlin.Index) int {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
}
