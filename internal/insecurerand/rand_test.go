package insecurerand

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSameSeedSameSequence(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := New(1)
	b := New(2)
	require.NotEqual(t, a.Uint64(), b.Uint64())
}

func TestIntNInRange(t *testing.T) {
	c := New(7)
	for i := 0; i < 1000; i++ {
		v := c.IntN(13)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 13)
	}
}

func TestZeroSeedDoesNotDegenerate(t *testing.T) {
	c := New(0)
	first := c.Uint64()
	second := c.Uint64()
	require.NotEqual(t, first, second)
}
