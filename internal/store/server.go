package store

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/keydcore/keyd/internal/value"
)

// Server is the single owned root: every database, the shared
// hash seed, the coarse LRU clock, and the engines that run off the
// periodic cron tick. Nothing outside the command loop goroutine should
// call its mutating methods concurrently (single-mutator model).
// Mu is not locked anywhere in this repository; internal/server
// serializes every access with its own command lock.
type Server struct {
	Mu sync.RWMutex

	Databases []*Database
	Role      Role

	Thresholds value.Thresholds
	HashSeed   uint64

	Expiration *ExpirationEngine
	Eviction   *EvictionEngine

	Stats *Stats

	lruClock   uint32 // refreshed once per tick; coarse recency stamp
	startedAt  time.Time
	lfuDecayMS int64

	log *zap.Logger

	// OnCommandApplied, when set, is called after every keyspace mutation
	// with the database index and a canonical re-issuable command form,
	// wiring the write journal without this package needing to
	// import it.
	OnCommandApplied func(dbID int, canonicalArgs []string)
}

// NewServer builds a Server with numDBs databases, all sharing seed (a
// random seed is generated if zero, anti-collision note).
func NewServer(numDBs int, seed uint64, evictionPolicy EvictionPolicy, maxMemoryBytes int64, thresholds value.Thresholds, memoryUsed func() int64, log *zap.Logger) *Server {
	if numDBs <= 0 {
		numDBs = 16
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if memoryUsed == nil {
		memoryUsed = func() int64 { return 0 }
	}

	s := &Server{
		Databases:  make([]*Database, numDBs),
		Thresholds: thresholds,
		HashSeed:   seed,
		Expiration: NewExpirationEngine(),
		Eviction:   NewEvictionEngine(evictionPolicy, memoryUsed, maxMemoryBytes),
		Stats:      NewStats(),
		startedAt:  time.Now(),
		log:        log.Named("store"),
	}
	dbLog := log.Named("database")
	for i := range s.Databases {
		db := NewDatabase(i, seed, dbLog)
		db.onModified = s.handleModified
		db.onExpired = s.handleExpired
		s.Databases[i] = db
	}
	s.Eviction.OnEvict = s.handleEvicted
	s.log.Info("server initialized", zap.Int("databases", numDBs), zap.Uint64("hash_seed", seed))
	return s
}

func (s *Server) handleEvicted(dbID int, key string) {
	s.Stats.Evictions.Inc()
	if s.OnCommandApplied != nil {
		s.OnCommandApplied(dbID, []string{"DEL", key})
	}
}

func (s *Server) handleModified(dbID int, key string) {
	s.Databases[dbID].SignalKeyReady(key)
}

func (s *Server) handleExpired(dbID int, key string) {
	s.Stats.ExpiredKeys.Inc()
	if s.OnCommandApplied != nil {
		s.OnCommandApplied(dbID, []string{"DEL", key})
	}
}

// SetRole propagates primary/replica role to every database (lazy
// expiration behaves differently on a replica).
func (s *Server) SetRole(r Role) {
	s.Role = r
	for _, db := range s.Databases {
		db.SetRole(r)
	}
}

// NowMS reads the wall clock in milliseconds on every call; it is not
// cached per tick. The command loop reads it once per command and passes
// that value to every Database call the command makes.
func (s *Server) NowMS() int64 { return time.Now().UnixMilli() }

// Tick advances the coarse LRU clock, runs the bounded expiration sweep,
// and drives each database's opportunistic rehash. Called once per cron
// period from the command loop ("cron maintenance" timer).
func (s *Server) Tick(rehashStepsPerDB int) SweepResult {
	s.lruClock++
	for _, db := range s.Databases {
		db.keyspace.RehashTick(rehashStepsPerDB)
		db.expires.RehashTick(rehashStepsPerDB)
	}
	return s.Expiration.Tick(s.Databases, s.NowMS(), func() int64 { return time.Now().UnixNano() })
}

// LRUClock returns the current coarse recency stamp, used when touching a
// Value's access metadata on read.
func (s *Server) LRUClock() uint32 { return s.lruClock }

// LFURand is the decay/increment source TouchLFU needs; a package-level
// rand.Float64 is adequate since LFU decay only needs statistical, not
// cryptographic, randomness.
func LFURand() float64 { return rand.Float64() }

// CheckMemory runs the eviction engine before a memory-using command.
func (s *Server) CheckMemory() error {
	if s.Eviction.MemoryCap <= 0 {
		return nil
	}
	return s.Eviction.MaybeEvict(s.Databases, s.lruClock, LFURand, s.NowMS())
}

// Uptime reports how long this Server has been running.
func (s *Server) Uptime() time.Duration { return time.Since(s.startedAt) }
