package value

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHashEncodingUpgrade fills a hash to its listpack entry cap, then
// checks that the next HSET crosses the threshold and converts the hash
// to hashtable encoding.
func TestHashEncodingUpgrade(t *testing.T) {
	th := DefaultThresholds
	h := NewHash()
	for i := 0; i < 128; i++ {
		added := h.HashSet(fmt.Sprintf("f%d", i), fmt.Sprintf("v%d", i), th)
		require.True(t, added)
	}
	assert.Equal(t, EncListpack, h.Encoding)

	h.HashSet("f128", "v128", th)
	assert.Equal(t, EncHashtable, h.Encoding)
	assert.Equal(t, 129, h.HashLen())

	val, ok := h.HashGet("f0")
	require.True(t, ok)
	assert.Equal(t, "v0", val)
}

func TestListEncodingUpgradeByValueSize(t *testing.T) {
	th := DefaultThresholds
	l := NewList()
	l.ListPushBack("short", th)
	assert.Equal(t, EncListpack, l.Encoding)

	big := make([]byte, th.ListMaxListpackValue+1)
	l.ListPushBack(string(big), th)
	assert.Equal(t, EncQuicklist, l.Encoding)
	assert.Equal(t, 2, l.ListLen())
}

func TestListPushPopRangeRoundTrip(t *testing.T) {
	th := DefaultThresholds
	l := NewList()
	l.ListPushFront("a", th)
	l.ListPushFront("b", th)
	l.ListPushFront("c", th)
	assert.Equal(t, []string{"c", "b", "a"}, l.ListRange(0, -1))
}

func TestSetIntsetUpgradesOnNonInteger(t *testing.T) {
	th := DefaultThresholds
	s := NewSet()
	s.SetAdd("1", th)
	s.SetAdd("2", th)
	assert.Equal(t, EncIntset, s.Encoding)

	s.SetAdd("hello", th)
	assert.Equal(t, EncListpack, s.Encoding)
	assert.True(t, s.SetIsMember("1"))
	assert.True(t, s.SetIsMember("hello"))
}

func TestSetAddDuplicateIsNoop(t *testing.T) {
	th := DefaultThresholds
	s := NewSet()
	assert.True(t, s.SetAdd("1", th))
	assert.False(t, s.SetAdd("1", th))
	assert.Equal(t, 1, s.SetCard())
}

func TestZSetRoundTrip(t *testing.T) {
	th := DefaultThresholds
	z := NewZSet()
	z.ZAdd("a", 1, th)
	z.ZAdd("b", 2, th)
	z.ZAdd("c", 3, th)
	z.ZAdd("d", 4, th)

	got := z.ZRangeByScore(2, 3, false, false)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Member)
	assert.Equal(t, "c", got[1].Member)

	all := z.ZRange(0, -1)
	require.Len(t, all, 4)
	assert.Equal(t, "a", all[0].Member)
	assert.Equal(t, "d", all[3].Member)
}

func TestZSetEncodingUpgrade(t *testing.T) {
	th := DefaultThresholds
	z := NewZSet()
	for i := 0; i < th.ZSetMaxListpackEntries+1; i++ {
		z.ZAdd(fmt.Sprintf("m%d", i), float64(i), th)
	}
	assert.Equal(t, EncSkiplist, z.Encoding)
	assert.Equal(t, th.ZSetMaxListpackEntries+1, z.ZCard())
}

func TestStringEncodingTag(t *testing.T) {
	assert.Equal(t, EncInt, NewString("12345").Encoding)
	assert.Equal(t, EncEmbstr, NewString("hello").Encoding)
	big := make([]byte, 100)
	assert.Equal(t, EncRaw, NewString(string(big)).Encoding)
}
