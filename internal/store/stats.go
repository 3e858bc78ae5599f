package store

import "github.com/prometheus/client_golang/prometheus"

// Stats tracks runtime operational counters: hits, misses, evictions,
// expired keys and applied write commands. They are prometheus counters
// instead of plain uint64 fields; INFO does not read them and no /metrics
// endpoint serves them.
type Stats struct {
	Hits        prometheus.Counter
	Misses      prometheus.Counter
	Evictions   prometheus.Counter
	ExpiredKeys prometheus.Counter
	Commands    prometheus.Counter
}

// NewStats builds a fresh, unregistered counter set. Callers that want
// these exported register Collectors() against their own registry
// (cmd/keyd-server registers none) so package store stays
// agnostic of whether a registry exists at all, which keeps it usable in
// tests without pulling in the default global registry's side effects.
func NewStats() *Stats {
	return &Stats{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keyd_keyspace_hits_total",
			Help: "Number of successful key lookups.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keyd_keyspace_misses_total",
			Help: "Number of key lookups that found nothing.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keyd_evicted_keys_total",
			Help: "Number of keys evicted under memory pressure.",
		}),
		ExpiredKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keyd_expired_keys_total",
			Help: "Number of keys removed by lazy or active expiration.",
		}),
		Commands: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keyd_commands_processed_total",
			Help: "Number of write commands applied without an error reply.",
		}),
	}
}

// Collectors returns every counter for registration against a
// prometheus.Registerer.
func (s *Stats) Collectors() []prometheus.Collector {
	return []prometheus.Collector{s.Hits, s.Misses, s.Evictions, s.ExpiredKeys, s.Commands}
}
