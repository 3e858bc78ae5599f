package store

// ExpirationEngine drives the active expiration sweep: round-robin over
// databases, sampling the expiration Dict and
// deleting whatever has passed, repeating fast while the expired ratio
// stays high and backing off once it drops.
type ExpirationEngine struct {
	SampleSize      int     // K, keys sampled per round
	RepeatThreshold float64 // repeat immediately when expired-ratio exceeds this
	FastBudgetNS    int64   // per-tick CPU budget, fast cycle
	SlowBudgetNS    int64   // per-tick CPU budget, slow cycle (effort 10)
	Effort          int     // 1..10, scales the budget linearly between Fast/Slow

	next int // round-robin cursor across databases
}

// NewExpirationEngine builds an engine with the defaults  calls
// out: sample 20, repeat past 25% hit rate, 1ms fast / 25ms slow budget.
func NewExpirationEngine() *ExpirationEngine {
	return &ExpirationEngine{
		SampleSize:      20,
		RepeatThreshold: 0.25,
		FastBudgetNS:    1_000_000,
		SlowBudgetNS:    25_000_000,
		Effort:          1,
	}
}

func (e *ExpirationEngine) budgetNS() int64 {
	if e.Effort <= 1 {
		return e.FastBudgetNS
	}
	if e.Effort >= 10 {
		return e.SlowBudgetNS
	}
	span := e.SlowBudgetNS - e.FastBudgetNS
	return e.FastBudgetNS + span*int64(e.Effort-1)/9
}

// SweepResult reports what one Tick call did, mostly for INFO/stats.
type SweepResult struct {
	Scanned int
	Expired int
}

// nower lets tests substitute a deterministic clock; production wiring
// passes time.Now().UnixNano.
type nower func() int64

// Tick runs bounded sweeps across dbs starting from the round-robin
// cursor, honoring the CPU budget. Each deletion flows through the
// Database's own onExpired hook (wired by the server root) so the caller
// can propagate a synthetic DEL to the journal, last
// paragraph.
func (e *ExpirationEngine) Tick(dbs []*Database, nowMS int64, nowNS nower) SweepResult {
	if len(dbs) == 0 {
		return SweepResult{}
	}
	deadline := nowNS() + e.budgetNS()
	var total SweepResult

	for {
		if nowNS() >= deadline {
			return total
		}
		db := dbs[e.next%len(dbs)]

		scanned, expired := e.sweepOnce(db, nowMS)
		total.Scanned += scanned
		total.Expired += expired

		if scanned == 0 {
			e.next++
			continue
		}
		ratio := float64(expired) / float64(scanned)
		if ratio <= e.RepeatThreshold {
			// this database looked clean enough; move to the next one next tick
			e.next++
			return total
		}
		// ratio stayed high: keep hammering this same database, budget permitting
	}
}

func (e *ExpirationEngine) sweepOnce(db *Database, nowMS int64) (scanned, expired int) {
	sample := db.sampleExpiringKeys(e.SampleSize)
	scanned = len(sample)
	for _, entry := range sample {
		expMS := entry.Value.(int64)
		if nowMS <= expMS {
			continue
		}
		db.deleteExpired(entry.Key)
		expired++
	}
	return scanned, expired
}
