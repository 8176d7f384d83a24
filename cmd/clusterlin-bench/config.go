// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultClusters     = 100
	defaultClusterSize  = 32
	defaultMaxIterations = 1 << 16
	defaultSeed          = 1
)

// config defines the command-line options clusterlin-bench accepts.
//
// See loadConfig for details on the parsing process.
type config struct {
	Clusters       int    `short:"c" long:"clusters" description:"Number of random clusters to generate and linearize"`
	ClusterSize    int    `short:"n" long:"clustersize" description:"Number of transactions per generated cluster"`
	MaxIterations  uint64 `short:"i" long:"iterations" description:"Per-cluster iteration budget passed to Linearize"`
	Seed           uint64 `short:"s" long:"seed" description:"RNG seed, used as given (0 is an ordinary seed, not derived from the time)"`
	SanityCheck    bool   `long:"sanitycheck" description:"Accepted but has no effect: the tool does not run the invariant check"`
	Verbose        bool   `short:"v" long:"verbose" description:"Print per-cluster cost and optimality"`
}

// loadConfig parses command-line flags into a config, applying defaults for
// anything left unset, the way btcd's loadConfig seeds a default config
// struct before handing it to the flags parser.
func loadConfig() (*config, error) {
	cfg := config{
		Clusters:      defaultClusters,
		ClusterSize:   defaultClusterSize,
		MaxIterations: defaultMaxIterations,
		Seed:          defaultSeed,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	if cfg.Clusters <= 0 {
		return nil, fmt.Errorf("--clusters must be positive, got %d", cfg.Clusters)
	}
	if cfg.ClusterSize <= 0 {
		return nil, fmt.Errorf("--clustersize must be positive, got %d", cfg.ClusterSize)
	}
	return &cfg, nil
}
