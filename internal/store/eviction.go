package store

import (
	"errors"
	"sort"

	"github.com/keydcore/keyd/internal/value"
)

// ErrOutOfMemory is returned by MaybeEvict when the configured policy
// cannot free enough memory to satisfy the cap.
var ErrOutOfMemory = errors.New("store: out of memory")

// EvictionPolicy selects which keys are eviction candidates and how their
// goodness-to-evict is ranked.
type EvictionPolicy int

const (
	EvictNone EvictionPolicy = iota
	EvictRandomVolatile
	EvictRandomAll
	EvictTTLVolatile
	EvictLRUVolatile
	EvictLRUAll
	EvictLFUVolatile
	EvictLFUAll
)

func (p EvictionPolicy) volatileOnly() bool {
	switch p {
	case EvictRandomVolatile, EvictTTLVolatile, EvictLRUVolatile, EvictLFUVolatile:
		return true
	default:
		return false
	}
}

// EvictionEngine reclaims memory by evicting keys chosen per Policy once
// MemoryUsed() exceeds MemoryCap. It maintains a small candidate pool
// across rounds rather than re-ranking the whole keyspace every time.
type EvictionEngine struct {
	Policy        EvictionPolicy
	PoolSize      int // candidate pool capacity, default 16
	SamplePerRound int // keys sampled into the pool each round, default 5

	MemoryUsed func() int64
	MemoryCap  int64

	// OnEvict, when set, is notified after each key is actually evicted.
	OnEvict func(dbID int, key string)

	pool []evictionCandidate
}

type evictionCandidate struct {
	dbID     int
	key      string
	goodness float64 // higher = more worth evicting
}

// NewEvictionEngine builds an engine with stated defaults.
func NewEvictionEngine(policy EvictionPolicy, memoryUsed func() int64, memoryCap int64) *EvictionEngine {
	return &EvictionEngine{
		Policy:         policy,
		PoolSize:       16,
		SamplePerRound: 5,
		MemoryUsed:     memoryUsed,
		MemoryCap:      memoryCap,
	}
}

// MaybeEvict is called before executing any memory-using command. It
// evicts until usage is back under the cap or the policy runs
// out of candidates, in which case it returns ErrOutOfMemory so the
// triggering command can fail.
func (e *EvictionEngine) MaybeEvict(dbs []*Database, lruClockNow uint32, lfuRand func() float64, nowMS int64) error {
	if e.Policy == EvictNone {
		if e.MemoryUsed() > e.MemoryCap {
			return ErrOutOfMemory
		}
		return nil
	}
	for e.MemoryUsed() > e.MemoryCap {
		e.refillPool(dbs, lruClockNow, nowMS)
		if len(e.pool) == 0 {
			return ErrOutOfMemory
		}
		e.evictBest(dbs)
	}
	return nil
}

// refillPool samples SamplePerRound keys from each database and merges
// any better-than-worst candidates into the pool, keeping it at PoolSize
// and sorted best-to-evict-first.
func (e *EvictionEngine) refillPool(dbs []*Database, lruClockNow uint32, nowMS int64) {
	for _, db := range dbs {
		for _, c := range e.sampleCandidates(db, lruClockNow, nowMS) {
			e.offer(c)
		}
	}
}

func (e *EvictionEngine) sampleCandidates(db *Database, lruClockNow uint32, nowMS int64) []evictionCandidate {
	var pool []evictionCandidate
	if e.Policy.volatileOnly() {
		for _, entry := range db.sampleExpiringKeys(e.SamplePerRound) {
			v, ok := db.Peek(entry.Key, nowMS)
			if !ok {
				continue
			}
			pool = append(pool, evictionCandidate{db.id, entry.Key, e.goodness(v, entry.Value.(int64), lruClockNow)})
		}
		return pool
	}
	for _, entry := range db.keyspace.Sample(e.SamplePerRound) {
		v := entry.Value.(*value.Value)
		expMS, _ := db.ExpirationOf(entry.Key)
		pool = append(pool, evictionCandidate{db.id, entry.Key, e.goodness(v, expMS, lruClockNow)})
	}
	return pool
}

// goodness scores a candidate higher the more worth evicting it is, per
// the policy's dimension (idle time for LRU, low frequency for LFU,
// soonest TTL for TTL-based, and the same flat score for every candidate
// otherwise).
func (e *EvictionEngine) goodness(v *value.Value, expirationMS int64, lruClockNow uint32) float64 {
	switch e.Policy {
	case EvictLRUVolatile, EvictLRUAll:
		return float64(lruClockNow - v.Access.LRUClock)
	case EvictLFUVolatile, EvictLFUAll:
		return 255.0 - float64(v.Access.LFUCounter)
	case EvictTTLVolatile:
		if expirationMS == 0 {
			return 0
		}
		return 1.0 / float64(1+expirationMS)
	default: // random variants: every candidate is equally good
		return 1.0
	}
}

// offer inserts c into the pool if it is better than the pool's current
// worst entry (or the pool has room), keeping the pool sorted descending
// by goodness so evictBest can always take element 0.
func (e *EvictionEngine) offer(c evictionCandidate) {
	if len(e.pool) < e.PoolSize {
		e.pool = append(e.pool, c)
		sort.Slice(e.pool, func(i, j int) bool { return e.pool[i].goodness > e.pool[j].goodness })
		return
	}
	worst := e.pool[len(e.pool)-1]
	if c.goodness <= worst.goodness {
		return
	}
	e.pool[len(e.pool)-1] = c
	sort.Slice(e.pool, func(i, j int) bool { return e.pool[i].goodness > e.pool[j].goodness })
}

func (e *EvictionEngine) evictBest(dbs []*Database) {
	if len(e.pool) == 0 {
		return
	}
	best := e.pool[0]
	e.pool = e.pool[1:]
	for _, db := range dbs {
		if db.id == best.dbID {
			if _, ok := db.Delete(best.key); ok && e.OnEvict != nil {
				e.OnEvict(db.id, best.key)
			}
			return
		}
	}
}
