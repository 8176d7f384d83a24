package bitset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// collect drains an iter.Seq[int] into a slice, for easy assertions.
func collect(seq func(yield func(int) bool)) []int {
	var out []int
	for i := range seq {
		out = append(out, i)
	}
	return out
}

func TestSet64Basics(t *testing.T) {
	var s Set64
	require.True(t, s.None())
	require.False(t, s.Any())

	s = s.Set(0).Set(3).Set(63)
	require.Equal(t, 3, s.Count())
	require.True(t, s.Has(3))
	require.False(t, s.Has(4))
	require.Equal(t, 0, s.First())
	require.Equal(t, 63, s.Last())
	require.Equal(t, []int{0, 3, 63}, collect(s.All()))

	s2 := s.Reset(3)
	require.Equal(t, []int{0, 63}, collect(s2.All()))
	require.True(t, s2.IsSubsetOf(s))
	require.False(t, s.IsSubsetOf(s2))
	require.True(t, s.Overlaps(s2))

	diff := s.Difference(s2)
	require.Equal(t, []int{3}, collect(diff.All()))

	union := s2.Union(Singleton[Set64](3))
	require.Equal(t, s, union)
}

func TestSet64Fill(t *testing.T) {
	require.Equal(t, 0, Fill[Set64](0).Count())
	require.Equal(t, 5, Fill[Set64](5).Count())
	require.Equal(t, []int{0, 1, 2, 3, 4}, collect(Fill[Set64](5).All()))
	require.Equal(t, 64, Fill[Set64](64).Count())
	require.Equal(t, ^Set64(0), Fill[Set64](64))
}

func TestSet128CrossesWordBoundary(t *testing.T) {
	var s Set128
	s = s.Set(0).Set(63).Set(64).Set(127)
	require.Equal(t, 4, s.Count())
	require.Equal(t, 0, s.First())
	require.Equal(t, 127, s.Last())
	require.Equal(t, []int{0, 63, 64, 127}, collect(s.All()))

	filled := Fill[Set128](70)
	require.Equal(t, 70, filled.Count())
	require.True(t, filled.Has(69))
	require.False(t, filled.Has(70))
}

func TestSet256CrossesMultipleWords(t *testing.T) {
	s := Singleton[Set256](0)
	for _, i := range []int{1, 65, 130, 255} {
		s = s.Set(i)
	}
	require.Equal(t, 5, s.Count())
	require.Equal(t, 255, s.Last())

	other := Singleton[Set256](130)
	require.True(t, s.Overlaps(other))
	require.True(t, other.IsSubsetOf(s))

	full := Fill[Set256](256)
	require.Equal(t, 256, full.Count())
	require.True(t, full.Any())
}

func TestSingletonEquality(t *testing.T) {
	a := Singleton[Set64](5)
	b := Singleton[Set64](5)
	require.Equal(t, a, b)
	require.True(t, a == b)
}
