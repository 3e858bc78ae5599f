package encoding

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntSetStrictlyIncreasing(t *testing.T) {
	s := NewIntSet()
	for _, v := range []int64{5, 1, 9, -3, 100000, 40000000000} {
		s.Add(v)
	}
	members := s.Members()
	for i := 1; i < len(members); i++ {
		assert.Less(t, members[i-1], members[i])
	}
	assert.Equal(t, Width64, s.Width(), "64-bit value should force a width upgrade")
}

func TestIntSetByteSizeMatchesWidthUpgrade(t *testing.T) {
	s := NewIntSet()
	s.Add(1)
	s.Add(2)
	require.Equal(t, Width16, s.Width())
	before := s.ByteSize()
	s.Add(1 << 20) // forces 32-bit width
	assert.Equal(t, Width32, s.Width())
	assert.Equal(t, 8+3*int(Width32), s.ByteSize())
	assert.NotEqual(t, before, s.ByteSize())
}

func TestListpackPushPopOrder(t *testing.T) {
	lp := NewListpack()
	lp.PushBack("a")
	lp.PushBack("b")
	lp.PushFront("z")
	assert.Equal(t, []string{"z", "a", "b"}, lp.All())

	v, ok := lp.PopBack()
	require.True(t, ok)
	assert.Equal(t, "b", v)

	v, ok = lp.PopFront()
	require.True(t, ok)
	assert.Equal(t, "z", v)
}

func TestListpackRemoveValueDirectional(t *testing.T) {
	lp := NewListpack()
	for _, v := range []string{"a", "b", "a", "c", "a"} {
		lp.PushBack(v)
	}
	n := lp.RemoveValue("a", 2)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"b", "c", "a"}, lp.All())
}

func TestQuicklistSpillsToNewNodeAtCap(t *testing.T) {
	q := NewQuicklist(4, 1) // 4 elements per node
	for i := 0; i < 10; i++ {
		q.PushBack(fmt.Sprintf("v%d", i))
	}
	assert.Equal(t, 10, q.Len())
	assert.GreaterOrEqual(t, q.nodes.Len(), 3)

	for i := 0; i < 10; i++ {
		v, ok := q.At(i)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("v%d", i), v)
	}
}

func TestQuicklistCompressionRoundTrips(t *testing.T) {
	q := NewQuicklist(2, 1)
	for i := 0; i < 20; i++ {
		q.PushBack(fmt.Sprintf("elem-%d-with-some-payload", i))
	}
	assert.Equal(t, 20, q.Len())
	all := q.All()
	for i, v := range all {
		assert.Equal(t, fmt.Sprintf("elem-%d-with-some-payload", i), v)
	}
}

func TestSkipListDictParity(t *testing.T) {
	z := NewSkipList()
	z.Insert("a", 1)
	z.Insert("b", 2)
	z.Insert("c", 3)
	z.Insert("b", 5) // reposition

	assert.Equal(t, 3, z.Len())
	sc, ok := z.Score("b")
	require.True(t, ok)
	assert.Equal(t, 5.0, sc)

	all := z.All()
	assert.Equal(t, []ZMember{{"a", 1}, {"c", 3}, {"b", 5}}, all)
}

func TestSkipListRangeByRankAndScore(t *testing.T) {
	z := NewSkipList()
	for i, m := range []string{"a", "b", "c", "d"} {
		z.Insert(m, float64(i+1))
	}
	got := z.RangeByRank(1, 2)
	assert.Equal(t, []ZMember{{"b", 2}, {"c", 3}}, got)

	byScore := z.RangeByScore(2, 3, false, false)
	assert.Equal(t, []ZMember{{"b", 2}, {"c", 3}}, byScore)
}

func TestSkipListRemove(t *testing.T) {
	z := NewSkipList()
	z.Insert("a", 1)
	z.Insert("b", 2)
	require.True(t, z.Remove("a"))
	assert.False(t, z.Remove("a"))
	assert.Equal(t, 1, z.Len())
	_, ok := z.Score("a")
	assert.False(t, ok)
}
