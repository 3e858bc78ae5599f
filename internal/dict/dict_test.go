package dict

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertLookupRemove(t *testing.T) {
	d := New(42)

	require.NoError(t, d.Insert("a", 1))
	require.ErrorIs(t, d.Insert("a", 2), ErrKeyExists)

	v, ok := d.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = d.Lookup("missing")
	assert.False(t, ok)

	old, ok := d.Remove("a")
	require.True(t, ok)
	assert.Equal(t, 1, old)

	_, ok = d.Lookup("a")
	assert.False(t, ok)
}

func TestReplaceReportsNewness(t *testing.T) {
	d := New(1)
	assert.True(t, d.Replace("k", "v1"))
	assert.False(t, d.Replace("k", "v2"))

	v, _ := d.Lookup("k")
	assert.Equal(t, "v2", v)
}

// TestRehashTerminates checks that after many insertions and no deletions,
// used equals the number of reachable entries, and rehashing eventually
// completes (Len never lies about the content).
func TestRehashTerminates(t *testing.T) {
	d := New(7)
	const n = 5000
	for i := 0; i < n; i++ {
		d.Replace(fmt.Sprintf("key-%d", i), i)
	}
	// drive any remaining rehash work the way the command loop's cron would.
	for i := 0; i < 10_000 && d.isRehashing(); i++ {
		d.RehashTick(100)
	}
	assert.False(t, d.isRehashing())
	assert.Equal(t, n, d.Len())

	for i := 0; i < n; i++ {
		v, ok := d.Lookup(fmt.Sprintf("key-%d", i))
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}

// TestScanVisitsEveryEntry checks that scanning a dict that is not
// mutated during the scan yields every entry at least once.
func TestScanVisitsEveryEntry(t *testing.T) {
	d := New(3)
	const n = 237
	want := map[string]bool{}
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("k%d", i)
		d.Replace(k, i)
		want[k] = false
	}

	var cursor uint64
	for {
		var batch []Entry
		cursor, batch = d.Scan(cursor, 16)
		for _, e := range batch {
			want[e.Key] = true
		}
		if cursor == 0 {
			break
		}
	}

	for k, seen := range want {
		assert.True(t, seen, "key %s never visited by scan", k)
	}
}

// TestScanDuringRehashNeverLosesEntries exercises the subtle bucket-split
// case where scanning while a resize is actively in progress must never
// drop a preexisting key, though duplicates are tolerated.
func TestScanDuringRehashNeverLosesEntries(t *testing.T) {
	d := New(9)
	const n = 1500
	want := map[string]bool{}
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("rehash-key-%d", i)
		d.Replace(k, i)
		want[k] = false
	}
	require.True(t, d.isRehashing(), "expected the growth from n inserts to still be rehashing")

	var cursor uint64
	for {
		var batch []Entry
		cursor, batch = d.Scan(cursor, 8)
		for _, e := range batch {
			want[e.Key] = true
		}
		// keep nudging rehash forward like the cron would, interleaved with scanning.
		d.RehashTick(1)
		if cursor == 0 {
			break
		}
	}

	for k, seen := range want {
		assert.True(t, seen, "key %s lost during scan-under-rehash", k)
	}
}

func TestSafeIteratorPausesRehash(t *testing.T) {
	d := New(5)
	for i := 0; i < 100; i++ {
		d.Replace(fmt.Sprintf("x%d", i), i)
	}
	require.True(t, d.isRehashing())

	it := d.IterSafe()
	before := d.rehashIdx
	// lookups would normally drive rehashStep; with a safe iterator alive
	// they must not.
	d.Lookup("x0")
	d.Lookup("x1")
	assert.Equal(t, before, d.rehashIdx)

	count := 0
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 100, count)
	it.Release()
}

func TestSampleBounded(t *testing.T) {
	d := New(1)
	for i := 0; i < 50; i++ {
		d.Replace(fmt.Sprintf("s%d", i), i)
	}
	s := d.Sample(10)
	assert.Len(t, s, 10)
	s = d.Sample(1000)
	assert.Len(t, s, 50)
}
