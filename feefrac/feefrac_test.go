package feefrac

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareBasic(t *testing.T) {
	a := New(10, 1)
	b := New(1, 1)
	require.True(t, Greater(a, b))
	require.True(t, Less(b, a))
	require.Equal(t, 0, Compare(a, a))
}

func TestCompareEqualFeerateDifferentSize(t *testing.T) {
	a := New(2, 2)
	b := New(1, 1)
	require.Equal(t, 0, Compare(a, b))
}

func TestEmptyNeverHigherOrLower(t *testing.T) {
	empty := FeeFrac{}
	nonEmpty := New(5, 1)
	require.Equal(t, 0, Compare(empty, nonEmpty))
	require.Equal(t, 0, Compare(nonEmpty, empty))
	require.Equal(t, 0, Compare(empty, empty))
	require.False(t, Greater(empty, nonEmpty))
	require.False(t, Less(empty, nonEmpty))
}

func TestAddSub(t *testing.T) {
	a := New(10, 3)
	b := New(2, 1)
	sum := a.Add(b)
	require.Equal(t, New(12, 4), sum)
	require.Equal(t, a, sum.Sub(b))
}

func TestCompareNoOverflowAtMempoolExtremes(t *testing.T) {
	// Fee near int64 max, size near the spec's ~10^6 upper bound: the
	// naive fee*size product overflows an int64/uint64 accumulator many
	// times over, which is exactly what the widened multiply must survive.
	big := New(math.MaxInt64/2, 1_000_000)
	small := New(1, 1_000_000)
	require.True(t, Greater(big, small))
	require.True(t, Less(small, big))
}

func TestCompareNegativeFee(t *testing.T) {
	// PostLinearize negates fee during backward passes; Compare must
	// still order sign-magnitude correctly.
	neg := New(-10, 2)
	pos := New(1, 2)
	require.True(t, Less(neg, pos))
	require.True(t, Greater(pos, neg))

	moreNeg := New(-20, 2)
	require.True(t, Less(moreNeg, neg))
}
