// Package clusterpool adapts the clusterlin engine to mempool
// transactions identified by chainhash.Hash, closing the gap between
// clusterlin's index-based DepGraph and the wire/btcutil transactions a
// real mempool holds.
//
// Grounded on github.com/btcsuite/btcd/mempool/txgraph's Graph wrapper
// (chainhash-identified transactions mapped onto an internal index
// space) and on mempool/package.go's TRUC/1-parent-1-child package
// classification, re-expressed here as Classify/ClassifyCluster.
package clusterpool

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/btcsuite/btcclusterlin/bitset"
	"github.com/btcsuite/btcclusterlin/clusterlin"
	"github.com/btcsuite/btcclusterlin/feefrac"
)

// Errors returned by Pool's mutating operations. The core clusterlin
// engine panics on precondition violations (spec.md §7); this adapter
// layer is the boundary where programmer errors about an unknown
// identity become recoverable errors instead, since lookups are driven
// by untrusted network input.
var (
	// ErrUnknownTx is returned when a wtxid passed to a Pool method does
	// not correspond to a tracked transaction.
	ErrUnknownTx = errors.New("clusterpool: unknown transaction")
	// ErrAlreadyTracked is returned by AddTransaction for a wtxid already
	// in the pool.
	ErrAlreadyTracked = errors.New("clusterpool: transaction already tracked")
	// ErrClusterFull is returned when a merge would grow a cluster past
	// Config.ClusterCapacity.
	ErrClusterFull = errors.New("clusterpool: cluster capacity exceeded")
	// ErrPackageShape is returned when AddPackage's transactions do not
	// match an accepted shape (see Config.RequireOneParentOneChild).
	ErrPackageShape = errors.New("clusterpool: package does not match an accepted shape")
)

// Config controls a Pool's admission policy and iteration budget, in the
// same shape as mempool.Config / txgraph.Config.
type Config struct {
	// ClusterCapacity bounds the number of live transactions a single
	// connected cluster may contain.
	ClusterCapacity int
	// MaxLinearizeIterations bounds the cost Linearize may spend per
	// call, the same unit SpanningForestState.GetCost returns.
	MaxLinearizeIterations uint64
	// RequireOneParentOneChild restricts AddPackage to accept only
	// packages shaped ShapeOneParentOneChild or ShapeSingleton, mirroring mempool's
	// TRUC package-relay policy.
	RequireOneParentOneChild bool
}

// DefaultConfig returns the Config most tests use.
func DefaultConfig() Config {
	return Config{
		ClusterCapacity:          64,
		MaxLinearizeIterations:   1 << 20,
		RequireOneParentOneChild: false,
	}
}

// entry tracks one transaction's mapping between its wtxid and its
// position in the cluster's DepGraph.
type entry struct {
	wtxid   chainhash.Hash
	pos     clusterlin.Index
	cluster *cluster
}

// cluster is one connected component: its own DepGraph, the positions
// currently assigned within it, and a cached linearization.
type cluster struct {
	graph         *clusterlin.DepGraph[bitset.Set64]
	posToTx       map[clusterlin.Index]chainhash.Hash
	linearization []clusterlin.Index
	dirty         bool
}

// Pool tracks mempool clusters keyed by wtxid, exposing linearization as
// a hash-identified operation instead of clusterlin's raw index-based
// one.
type Pool struct {
	cfg    Config
	byTxid map[chainhash.Hash]*entry
}

// New constructs an empty Pool.
func New(cfg Config) *Pool {
	return &Pool{cfg: cfg, byTxid: make(map[chainhash.Hash]*entry)}
}

// AddTransaction adds tx to the pool as its own singleton cluster, using
// its segwit wtxid (WitnessHash) as identity and fee/MsgTx.SerializeSize
// as the FeeFrac pair -- the same (fee, size) basis
// mempool/txgraph.graph.go uses for node weight. Use AddDependency
// afterward to connect it to the rest of its cluster.
func (p *Pool) AddTransaction(tx *btcutil.Tx, fee int64) error {
	wtxid := *tx.WitnessHash()
	if _, ok := p.byTxid[wtxid]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyTracked, wtxid)
	}
	size := int64(tx.MsgTx().SerializeSize())
	c := &cluster{
		graph:   clusterlin.New[bitset.Set64](),
		posToTx: make(map[clusterlin.Index]chainhash.Hash, 1),
		dirty:   true,
	}
	pos := c.graph.AddTransaction(feefrac.New(fee, size))
	c.posToTx[pos] = wtxid
	p.byTxid[wtxid] = &entry{wtxid: wtxid, pos: pos, cluster: c}
	return nil
}

// AddDependency records that child depends on parent. If the two
// transactions are in different clusters, those clusters are merged
// first. Returns ErrUnknownTx if either wtxid is untracked, or
// ErrClusterFull if merging would exceed Config.ClusterCapacity.
func (p *Pool) AddDependency(parent, child chainhash.Hash) error {
	pe, ok := p.byTxid[parent]
	if !ok {
		return fmt.Errorf("%w: parent %s", ErrUnknownTx, parent)
	}
	ce, ok := p.byTxid[child]
	if !ok {
		return fmt.Errorf("%w: child %s", ErrUnknownTx, child)
	}
	if pe.cluster != ce.cluster {
		if err := p.mergeClusters(pe.cluster, ce.cluster); err != nil {
			return err
		}
		pe = p.byTxid[parent]
		ce = p.byTxid[child]
	}
	ce.cluster.graph.AddDependencies(bitset.Singleton[bitset.Set64](int(pe.pos)), ce.pos)
	ce.cluster.dirty = true
	return nil
}

// mergeClusters merges b's transactions into a's DepGraph and repoints
// every entry that belonged to b. b is first remapped (DepGraph.Remap)
// into a's free positions, which also recomputes its internal
// ancestor/descendant closures under the new numbering in one pass;
// the remapped graph is then spliced into a (DepGraph.AbsorbDisjoint).
func (p *Pool) mergeClusters(a, b *cluster) error {
	if a.graph.TxCount()+b.graph.TxCount() > p.cfg.ClusterCapacity {
		return fmt.Errorf("%w: merge would hold %d transactions (cap %d)",
			ErrClusterFull, a.graph.TxCount()+b.graph.TxCount(), p.cfg.ClusterCapacity)
	}

	var zero bitset.Set64
	free := bitset.Fill[bitset.Set64](zero.Capacity()).Difference(a.graph.Positions())
	mapping := make([]clusterlin.Index, b.graph.PositionRange())
	var positionRange clusterlin.Index
	for oldPos := range b.posToTx {
		newPos := clusterlin.Index(free.First())
		free = free.Reset(int(newPos))
		mapping[oldPos] = newPos
		if newPos+1 > positionRange {
			positionRange = newPos + 1
		}
	}
	shifted := b.graph.Remap(mapping, positionRange)
	a.graph.AbsorbDisjoint(shifted)

	for oldPos, wtxid := range b.posToTx {
		newPos := mapping[oldPos]
		a.posToTx[newPos] = wtxid
		p.byTxid[wtxid].pos = newPos
		p.byTxid[wtxid].cluster = a
	}
	a.dirty = true
	return nil
}

// Linearize returns the current best linearization of wtxid's cluster, as
// an ordered slice of wtxids from first-to-broadcast to last. The
// tie-break PRNG is seeded deterministically from an xxhash digest of the
// cluster's wtxid set, so repeated calls for the same unmodified cluster
// reproduce the same tie-breaks without the caller needing to track a
// seed itself.
func (p *Pool) Linearize(wtxid chainhash.Hash) ([]chainhash.Hash, error) {
	e, ok := p.byTxid[wtxid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTx, wtxid)
	}
	c := e.cluster
	if c.dirty {
		seed := deriveSeed(c)
		res := clusterlin.Linearize(c.graph, p.cfg.MaxLinearizeIterations, seed, fallbackOrder(c), c.linearization, false)
		c.linearization = res.Linearization
		c.dirty = false
	}
	out := make([]chainhash.Hash, len(c.linearization))
	for i, pos := range c.linearization {
		out[i] = c.posToTx[pos]
	}
	return out, nil
}

// fallbackOrder returns a strong total order over c's positions, ordering
// by the byte-wise comparison of each transaction's wtxid -- the
// "mempool's own txid or wtxid hash" comparator spec.md names as the
// typical fallback_order instantiation.
func fallbackOrder(c *cluster) func(a, b clusterlin.Index) int {
	return func(a, b clusterlin.Index) int {
		return compareHash(c.posToTx[a], c.posToTx[b])
	}
}

func compareHash(a, b chainhash.Hash) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// deriveSeed computes a deterministic PRNG seed from the xxhash digest of
// every wtxid currently in c, sorted first so the seed does not depend on
// map iteration order.
func deriveSeed(c *cluster) uint64 {
	hashes := make([]chainhash.Hash, 0, len(c.posToTx))
	for _, h := range c.posToTx {
		hashes = append(hashes, h)
	}
	for i := 1; i < len(hashes); i++ {
		for j := i; j > 0 && compareHash(hashes[j-1], hashes[j]) > 0; j-- {
			hashes[j-1], hashes[j] = hashes[j], hashes[j-1]
		}
	}
	digest := xxhash.New()
	for _, h := range hashes {
		_, _ = digest.Write(h[:])
	}
	return digest.Sum64()
}

// ClusterSize returns the number of live transactions in wtxid's cluster.
func (p *Pool) ClusterSize(wtxid chainhash.Hash) (int, error) {
	e, ok := p.byTxid[wtxid]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTx, wtxid)
	}
	return e.cluster.graph.TxCount(), nil
}
