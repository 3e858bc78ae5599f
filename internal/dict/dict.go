// Package dict implements the chained, incrementally-rehashing hash table
// that underlies every keyspace and expiration table in the store.
package dict

import (
	"errors"
	"math/bits"
	"math/rand"

	"github.com/zeebo/xxh3"
)

// Sentinel errors returned by Dict operations.
var (
	ErrKeyExists  = errors.New("dict: key exists")
	ErrOutOfSpace = errors.New("dict: allocation failed")
)

const (
	// InitialSize is the smallest table capacity; also the shrink floor.
	InitialSize = 4
	// ForceResizeRatio forces a grow even when resizing has been disabled.
	ForceResizeRatio = 5
	// emptyVisitFactor bounds a single rehash step's scan of empty buckets.
	emptyVisitFactor = 10
)

// entry is one link in a bucket chain. The dict owns the key buffer.
type entry struct {
	key   string
	value any
	next  *entry
}

type table struct {
	buckets []*entry
	mask    uint64
	used    int
}

func newTable(size int) *table {
	return &table{buckets: make([]*entry, size), mask: uint64(size - 1)}
}

// Dict is a separately-chained hash table with power-of-two sizing and
// incremental rehashing driven opportunistically by callers. It is not
// internally synchronized: callers (the single-threaded command loop, or a
// caller holding their own lock) are responsible for serializing access.
type Dict struct {
	ht         [2]*table
	rehashIdx  int // -1 when not rehashing; otherwise the next old bucket to migrate
	seed       uint64
	resizable  bool // disabled while a COW-sensitive child is active
	safeIters  int  // count of live safe iterators; pauses opportunistic rehash
	fingerprint uint64
}

// New creates an empty Dict keyed with the given seed. The seed should be
// generated once at process startup (see internal/store) so that hostile
// inputs cannot force worst-case collision chains across restarts.
func New(seed uint64) *Dict {
	return &Dict{
		ht:        [2]*table{newTable(InitialSize), nil},
		rehashIdx: -1,
		seed:      seed,
		resizable: true,
	}
}

func (d *Dict) hash(key string) uint64 {
	return xxh3.HashStringSeed(key, d.seed)
}

// Len returns the number of live entries across both tables.
func (d *Dict) Len() int {
	n := d.ht[0].used
	if d.isRehashing() {
		n += d.ht[1].used
	}
	return n
}

func (d *Dict) isRehashing() bool { return d.rehashIdx != -1 }

// SetResizable toggles whether opportunistic/automatic resizing may start.
// A forced resize (load factor above ForceResizeRatio) still proceeds even
// when disabled, to avoid an unbounded chain on a frozen table.
func (d *Dict) SetResizable(v bool) { d.resizable = v }

// rehashStep performs one incremental rehash step: migrate the content of
// the next non-empty old bucket into the new table. It visits at most
// emptyVisitFactor*N empty buckets before giving up for this call.
func (d *Dict) rehashStep() {
	if !d.isRehashing() || d.safeIters > 0 {
		return
	}
	old := d.ht[0]
	visits := 0
	limit := emptyVisitFactor * len(old.buckets)
	for old.buckets[d.rehashIdx] == nil {
		d.rehashIdx++
		visits++
		if d.rehashIdx >= len(old.buckets) {
			d.finishRehash()
			return
		}
		if visits >= limit {
			return
		}
	}

	e := old.buckets[d.rehashIdx]
	old.buckets[d.rehashIdx] = nil
	for e != nil {
		next := e.next
		idx := d.hash(e.key) & d.ht[1].mask
		e.next = d.ht[1].buckets[idx]
		d.ht[1].buckets[idx] = e
		d.ht[1].used++
		old.used--
		e = next
	}
	d.rehashIdx++
	if d.rehashIdx >= len(old.buckets) {
		d.finishRehash()
	}
}

func (d *Dict) finishRehash() {
	d.ht[0] = d.ht[1]
	d.ht[1] = nil
	d.rehashIdx = -1
}

// RehashTick performs up to steps incremental rehash steps; used by the
// command loop's periodic cron.
func (d *Dict) RehashTick(steps int) {
	for i := 0; i < steps && d.isRehashing(); i++ {
		d.rehashStep()
	}
}

func nextPow2(n int) int {
	if n <= InitialSize {
		return InitialSize
	}
	return 1 << bits.Len(uint(n-1))
}

func (d *Dict) maybeResize() {
	used := d.ht[0].used
	size := len(d.ht[0].buckets)
	if d.isRehashing() {
		return
	}
	if used < InitialSize && size > InitialSize {
		d.startResize(InitialSize)
		return
	}
	loadFactor := float64(used) / float64(size)
	if loadFactor >= float64(ForceResizeRatio) {
		d.startResize(nextPow2(2 * used))
		return
	}
	if !d.resizable {
		return
	}
	if loadFactor >= 1.0 {
		d.startResize(nextPow2(2 * used))
	}
}

func (d *Dict) startResize(newSize int) {
	d.ht[1] = newTable(newSize)
	d.rehashIdx = 0
}

// Insert adds a new key. It returns ErrKeyExists if the key is already
// present.
func (d *Dict) Insert(key string, value any) error {
	if _, ok := d.Lookup(key); ok {
		return ErrKeyExists
	}
	d.rehashStep()
	d.insertInto(key, value)
	return nil
}

// Replace inserts or overwrites key, returning true if the key was new.
func (d *Dict) Replace(key string, value any) (isNew bool) {
	d.rehashStep()
	if e := d.find(key); e != nil {
		e.value = value
		d.fingerprint++
		return false
	}
	d.insertInto(key, value)
	return true
}

func (d *Dict) insertInto(key string, value any) {
	d.maybeResize()
	ht := d.ht[0]
	if d.isRehashing() {
		ht = d.ht[1]
	}
	idx := d.hash(key) & ht.mask
	ht.buckets[idx] = &entry{key: key, value: value, next: ht.buckets[idx]}
	ht.used++
	d.fingerprint++
}

func (d *Dict) find(key string) *entry {
	for i := 0; i < 2; i++ {
		ht := d.ht[i]
		if ht == nil || ht.used == 0 {
			if i == 0 {
				continue
			}
			break
		}
		idx := d.hash(key) & ht.mask
		for e := ht.buckets[idx]; e != nil; e = e.next {
			if e.key == key {
				return e
			}
		}
		if !d.isRehashing() {
			break
		}
	}
	return nil
}

// Lookup returns the value stored for key, performing one opportunistic
// rehash step first.
func (d *Dict) Lookup(key string) (any, bool) {
	d.rehashStep()
	if e := d.find(key); e != nil {
		return e.value, true
	}
	return nil, false
}

// PeekLookup is like Lookup but never drives rehashing; used by read-only
// callers that must not mutate table state mid-iteration (safe-iterator
// consumers).
func (d *Dict) PeekLookup(key string) (any, bool) {
	if e := d.find(key); e != nil {
		return e.value, true
	}
	return nil, false
}

// Remove unlinks key and returns its value for caller-controlled disposal.
func (d *Dict) Remove(key string) (any, bool) {
	d.rehashStep()
	for i := 0; i < 2; i++ {
		ht := d.ht[i]
		if ht == nil || ht.used == 0 {
			if i == 0 {
				continue
			}
			break
		}
		idx := d.hash(key) & ht.mask
		var prev *entry
		for e := ht.buckets[idx]; e != nil; e = e.next {
			if e.key == key {
				if prev == nil {
					ht.buckets[idx] = e.next
				} else {
					prev.next = e.next
				}
				ht.used--
				d.fingerprint++
				return e.value, true
			}
			prev = e
		}
		if !d.isRehashing() {
			break
		}
	}
	return nil, false
}

// Entry is a (key, value) pair yielded by iteration and scanning.
type Entry struct {
	Key   string
	Value any
}

// IterUnsafe returns every live entry. Cheap, but undefined if the dict
// mutates while the slice is being consumed by the caller.
func (d *Dict) IterUnsafe() []Entry {
	out := make([]Entry, 0, d.Len())
	for i := 0; i < 2; i++ {
		ht := d.ht[i]
		if ht == nil {
			continue
		}
		for _, head := range ht.buckets {
			for e := head; e != nil; e = e.next {
				out = append(out, Entry{e.key, e.value})
			}
		}
		if !d.isRehashing() {
			break
		}
	}
	return out
}

// SafeIterator is a forward iterator that pins opportunistic rehashing for
// its lifetime; correct under concurrent mutation of the dict it iterates.
type SafeIterator struct {
	d        *Dict
	tableIdx int
	bucket   int
	cur      *entry
	released bool
}

// IterSafe begins a safe iteration. Release must be called when done.
func (d *Dict) IterSafe() *SafeIterator {
	d.safeIters++
	return &SafeIterator{d: d, tableIdx: 0}
}

// Next advances the iterator, returning false once exhausted.
func (it *SafeIterator) Next() (Entry, bool) {
	for {
		if it.cur != nil {
			e := it.cur
			it.cur = it.cur.next
			return Entry{e.key, e.value}, true
		}
		ht := it.d.ht[it.tableIdx]
		if ht == nil {
			return Entry{}, false
		}
		if it.bucket >= len(ht.buckets) {
			it.tableIdx++
			it.bucket = 0
			if it.tableIdx > 1 || !it.d.isRehashing() {
				return Entry{}, false
			}
			continue
		}
		it.cur = ht.buckets[it.bucket]
		it.bucket++
	}
}

// Release ends the safe iteration, allowing opportunistic rehash to resume.
func (it *SafeIterator) Release() {
	if it.released {
		return
	}
	it.released = true
	it.d.safeIters--
}

// RandomEntry returns a uniformly random existing entry.
func (d *Dict) RandomEntry() (Entry, bool) {
	if d.Len() == 0 {
		return Entry{}, false
	}
	for tries := 0; tries < 1000; tries++ {
		ht := d.ht[0]
		if d.isRehashing() && rand.Intn(2) == 1 {
			ht = d.ht[1]
		}
		if ht == nil || ht.used == 0 {
			continue
		}
		idx := rand.Intn(len(ht.buckets))
		if e := ht.buckets[idx]; e != nil {
			// walk a random offset into the chain for better chain fairness
			n := 0
			for p := e; p != nil; p = p.next {
				n++
			}
			skip := rand.Intn(n)
			p := e
			for i := 0; i < skip; i++ {
				p = p.next
			}
			return Entry{p.key, p.value}, true
		}
	}
	// fall back to a linear scan if we got very unlucky
	all := d.IterUnsafe()
	if len(all) == 0 {
		return Entry{}, false
	}
	return all[rand.Intn(len(all))], true
}

// Sample returns up to n distinct entries chosen uniformly at random by
// copying every entry and shuffling the copy; the eviction engine and the
// active expiration sweep draw their candidates from it.
func (d *Dict) Sample(n int) []Entry {
	all := d.IterUnsafe()
	if len(all) <= n {
		return all
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:n]
}
