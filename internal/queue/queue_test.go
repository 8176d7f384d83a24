package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDequeFIFOAndSwap(t *testing.T) {
	d := NewDeque[int]()
	d.PushBack(1)
	d.PushBack(2)
	d.PushBack(3)
	require.Equal(t, 3, d.Len())
	require.Equal(t, 3, d.Back())

	d.Swap(0, 2)
	require.Equal(t, 3, d.At(0))
	require.Equal(t, 1, d.At(2))

	v, ok := d.PopFront()
	require.True(t, ok)
	require.Equal(t, 3, v)
	require.Equal(t, 2, d.Len())
}

func TestDequeEmpty(t *testing.T) {
	d := NewDeque[int]()
	require.True(t, d.Empty())
	_, ok := d.PopFront()
	require.False(t, ok)
}

func TestPriorityQueueMaxOrder(t *testing.T) {
	pq := NewPriorityQueue(func(a, b int) bool { return a > b })
	for _, v := range []int{3, 1, 4, 1, 5, 9, 2, 6} {
		pq.Push(v)
	}
	var out []int
	for {
		v, ok := pq.Pop()
		if !ok {
			break
		}
		out = append(out, v)
	}
	require.Equal(t, []int{9, 6, 5, 4, 3, 2, 1, 1}, out)
}
