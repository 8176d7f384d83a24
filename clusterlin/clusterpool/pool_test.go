package clusterpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// makeTx builds a minimal, uniquely-identified transaction: nonce
// distinguishes it from every other transaction made by this test file by
// varying the single txout's value, the same trick txgraph's own test
// helpers use to avoid constructing full signed transactions.
func makeTx(t *testing.T, nonce int64) *btcutil.Tx {
	t.Helper()
	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: uint32(nonce)}, nil, nil))
	msgTx.AddTxOut(wire.NewTxOut(nonce, nil))
	return btcutil.NewTx(msgTx)
}

func wtxidOf(tx *btcutil.Tx) chainhash.Hash {
	return *tx.WitnessHash()
}

func TestPoolLinearizeSimpleChain(t *testing.T) {
	p := New(DefaultConfig())
	txA, txB, txC := makeTx(t, 1), makeTx(t, 2), makeTx(t, 3)
	a, b, c := wtxidOf(txA), wtxidOf(txB), wtxidOf(txC)

	require.NoError(t, p.AddTransaction(txA, 10))
	require.NoError(t, p.AddTransaction(txB, 1))
	require.NoError(t, p.AddTransaction(txC, 1))
	require.NoError(t, p.AddDependency(a, b))
	require.NoError(t, p.AddDependency(b, c))

	order, err := p.Linearize(a)
	require.NoError(t, err)
	require.Equal(t, []chainhash.Hash{a, b, c}, order)

	size, err := p.ClusterSize(a)
	require.NoError(t, err)
	require.Equal(t, 3, size)
}

func TestPoolAddDependencyMergesClusters(t *testing.T) {
	p := New(DefaultConfig())
	txA, txB := makeTx(t, 1), makeTx(t, 2)
	a, b := wtxidOf(txA), wtxidOf(txB)
	require.NoError(t, p.AddTransaction(txA, 1))
	require.NoError(t, p.AddTransaction(txB, 1))

	sizeA, _ := p.ClusterSize(a)
	sizeB, _ := p.ClusterSize(b)
	require.Equal(t, 1, sizeA)
	require.Equal(t, 1, sizeB)

	require.NoError(t, p.AddDependency(a, b))
	sizeA, _ = p.ClusterSize(a)
	sizeB, _ = p.ClusterSize(b)
	require.Equal(t, 2, sizeA)
	require.Equal(t, 2, sizeB)
}

func TestPoolUnknownTx(t *testing.T) {
	p := New(DefaultConfig())
	txA, txB := makeTx(t, 1), makeTx(t, 2)
	a, b := wtxidOf(txA), wtxidOf(txB)
	require.NoError(t, p.AddTransaction(txA, 1))

	err := p.AddDependency(a, b)
	require.ErrorIs(t, err, ErrUnknownTx)

	_, err = p.Linearize(b)
	require.ErrorIs(t, err, ErrUnknownTx)
}

func TestPoolAlreadyTracked(t *testing.T) {
	p := New(DefaultConfig())
	tx := makeTx(t, 1)
	require.NoError(t, p.AddTransaction(tx, 1))
	err := p.AddTransaction(tx, 1)
	require.ErrorIs(t, err, ErrAlreadyTracked)
}

func TestPoolClusterCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClusterCapacity = 2
	p := New(cfg)
	txA, txB, txC := makeTx(t, 1), makeTx(t, 2), makeTx(t, 3)
	a, b, c := wtxidOf(txA), wtxidOf(txB), wtxidOf(txC)
	require.NoError(t, p.AddTransaction(txA, 1))
	require.NoError(t, p.AddTransaction(txB, 1))
	require.NoError(t, p.AddTransaction(txC, 1))
	require.NoError(t, p.AddDependency(a, b))

	err := p.AddDependency(b, c)
	require.ErrorIs(t, err, ErrClusterFull)
}

func TestPoolDeterministicAcrossInstances(t *testing.T) {
	build := func() (*Pool, []chainhash.Hash) {
		p := New(DefaultConfig())
		var wtxids []chainhash.Hash
		for i := 0; i < 8; i++ {
			tx := makeTx(t, int64(i+1))
			require.NoError(t, p.AddTransaction(tx, int64(i%3+1)))
			wtxids = append(wtxids, wtxidOf(tx))
		}
		for i := 1; i < len(wtxids); i++ {
			require.NoError(t, p.AddDependency(wtxids[i-1], wtxids[i]))
		}
		return p, wtxids
	}

	p1, w1 := build()
	p2, w2 := build()
	require.Equal(t, w1, w2)
	order1, err := p1.Linearize(w1[0])
	require.NoError(t, err)
	order2, err := p2.Linearize(w2[0])
	require.NoError(t, err)
	require.Equal(t, order1, order2)
}

func TestClassify(t *testing.T) {
	txA, txB, txC := makeTx(t, 1), makeTx(t, 2), makeTx(t, 3)
	a := wtxidOf(txA)

	require.Equal(t, ShapeUnknown, Classify(nil))
	require.Equal(t, ShapeSingleton, Classify([]PackageTx{{Tx: txA}}))
	require.Equal(t, ShapeGeneral, Classify([]PackageTx{{Tx: txA, Parents: []chainhash.Hash{a}}}))
	require.Equal(t, ShapeOneParentOneChild, Classify([]PackageTx{
		{Tx: txA},
		{Tx: txB, Parents: []chainhash.Hash{a}},
	}))
	require.Equal(t, ShapeGeneral, Classify([]PackageTx{
		{Tx: txA},
		{Tx: txB, Parents: []chainhash.Hash{a}},
		{Tx: txC, Parents: []chainhash.Hash{a}},
	}))
}

func TestAddPackageRejectsShapeWhenConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireOneParentOneChild = true
	p := New(cfg)
	txA, txB, txC := makeTx(t, 1), makeTx(t, 2), makeTx(t, 3)
	a := wtxidOf(txA)

	err := p.AddPackage([]PackageTx{
		{Tx: txA, Fee: 1},
		{Tx: txB, Fee: 1, Parents: []chainhash.Hash{a}},
		{Tx: txC, Fee: 1, Parents: []chainhash.Hash{a}},
	})
	require.ErrorIs(t, err, ErrPackageShape)
}

func TestAddPackageAcceptsOneParentOneChild(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireOneParentOneChild = true
	p := New(cfg)
	txA, txB := makeTx(t, 1), makeTx(t, 2)
	a, b := wtxidOf(txA), wtxidOf(txB)

	err := p.AddPackage([]PackageTx{
		{Tx: txA, Fee: 10},
		{Tx: txB, Fee: 1, Parents: []chainhash.Hash{a}},
	})
	require.NoError(t, err)

	order, err := p.Linearize(a)
	require.NoError(t, err)
	require.Equal(t, []chainhash.Hash{a, b}, order)
}

func TestClassifyCluster(t *testing.T) {
	p := New(DefaultConfig())
	txA, txB, txC := makeTx(t, 1), makeTx(t, 2), makeTx(t, 3)
	a, b := wtxidOf(txA), wtxidOf(txB)

	require.NoError(t, p.AddTransaction(txA, 10))
	class, err := p.ClassifyCluster(a)
	require.NoError(t, err)
	require.Equal(t, ClassTRUC, class)

	require.NoError(t, p.AddTransaction(txB, 1))
	require.NoError(t, p.AddDependency(a, b))
	class, err = p.ClassifyCluster(a)
	require.NoError(t, err)
	require.Equal(t, Class1P1C, class)

	require.NoError(t, p.AddTransaction(txC, 1))
	require.NoError(t, p.AddDependency(a, wtxidOf(txC)))
	class, err = p.ClassifyCluster(a)
	require.NoError(t, err)
	require.Equal(t, ClassGeneral, class)
}
