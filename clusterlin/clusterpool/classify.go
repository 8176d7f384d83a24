package clusterpool

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/btcsuite/btcclusterlin/clusterlin"
)

// PackageShape describes the dependency shape of a just-submitted package
// of unconfirmed transactions, the unit mempool.AddPackage evaluates in
// one go rather than transaction-by-transaction.
type PackageShape int

const (
	// ShapeUnknown is returned for an empty package.
	ShapeUnknown PackageShape = iota
	// ShapeSingleton is a package with exactly one transaction and no
	// unconfirmed parents.
	ShapeSingleton
	// ShapeOneParentOneChild is the standard TRUC package-relay shape:
	// exactly one unconfirmed parent with exactly one unconfirmed child
	// spending one of its outputs.
	ShapeOneParentOneChild
	// ShapeGeneral is any other shape (multiple parents, multiple
	// children, or a chain deeper than two).
	ShapeGeneral
)

// PackageTx is the minimal description AddPackage and Classify need for a
// single transaction being submitted as part of a package: the
// transaction itself, its fee, and the wtxids of its unconfirmed parents
// within the same package.
type PackageTx struct {
	Tx      *btcutil.Tx
	Fee     int64
	Parents []chainhash.Hash
}

// Classify determines the submission shape of a candidate package, the
// same check mempool's package relay policy runs before admitting a
// 1-parent-1-child or individual transaction (mirroring the accept-path
// gate in mempool/package.go's TRUC validation).
func Classify(txs []PackageTx) PackageShape {
	switch len(txs) {
	case 0:
		return ShapeUnknown
	case 1:
		if len(txs[0].Parents) == 0 {
			return ShapeSingleton
		}
		return ShapeGeneral
	case 2:
		parent, child := txs[0], txs[1]
		if len(parent.Parents) != 0 {
			return ShapeGeneral
		}
		parentWtxid := *parent.Tx.WitnessHash()
		if len(child.Parents) != 1 || child.Parents[0] != parentWtxid {
			return ShapeGeneral
		}
		return ShapeOneParentOneChild
	default:
		return ShapeGeneral
	}
}

// AddPackage admits every transaction in txs as a single unit: each is
// added via AddTransaction and AddDependency is called for every declared
// parent edge. If Config.RequireOneParentOneChild is set, packages that
// are not exactly ShapeOneParentOneChild or ShapeSingleton are rejected
// with ErrPackageShape before any transaction is admitted.
func (p *Pool) AddPackage(txs []PackageTx) error {
	if p.cfg.RequireOneParentOneChild {
		switch Classify(txs) {
		case ShapeSingleton, ShapeOneParentOneChild:
		default:
			return ErrPackageShape
		}
	}
	for _, tx := range txs {
		if err := p.AddTransaction(tx.Tx, tx.Fee); err != nil {
			return err
		}
	}
	for _, tx := range txs {
		child := *tx.Tx.WitnessHash()
		for _, parent := range tx.Parents {
			if err := p.AddDependency(parent, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClusterClass tags an already-linearized cluster's dependency shape, the
// way mempool/txgraph's package_analyzer.go and standard_analyzer.go
// recognize TRUC and 1-parent-1-child packages after the fact so the
// caller knows whether the package-relay fast path applies.
type ClusterClass int

const (
	// ClassGeneral is any cluster that is not recognized as a narrower
	// class below.
	ClassGeneral ClusterClass = iota
	// Class1P1C is a cluster of exactly two transactions, one the sole
	// parent of the other.
	Class1P1C
	// ClassTRUC is a cluster whose root transaction has no unconfirmed
	// ancestors, no more than one child, and (if present) that child has
	// no further unconfirmed descendants -- the topology-restricted
	// "TRUC" policy recognizes as eligible for relaxed relay rules.
	ClassTRUC
)

// ClassifyCluster tags wtxid's cluster after it has been linearized. It
// does not itself linearize; call Linearize first if that has not
// already happened since the last mutation.
func (p *Pool) ClassifyCluster(wtxid chainhash.Hash) (ClusterClass, error) {
	e, ok := p.byTxid[wtxid]
	if !ok {
		return ClassGeneral, fmt.Errorf("%w: %s", ErrUnknownTx, wtxid)
	}
	g := e.cluster.graph
	switch g.TxCount() {
	case 1:
		return ClassTRUC, nil
	case 2:
		return Class1P1C, nil
	}

	var root clusterlin.Index
	foundRoot := false
	for pos := range e.cluster.posToTx {
		if g.Ancestors(pos).Count() == 1 {
			if foundRoot {
				return ClassGeneral, nil
			}
			root, foundRoot = pos, true
		}
	}
	if !foundRoot {
		return ClassGeneral, nil
	}
	children := g.Descendants(root).Count() - 1
	if children <= 1 {
		return ClassTRUC, nil
	}
	return ClassGeneral, nil
}
