// Package config collects every tunable the server root needs into one
// struct, built through the functional-options pattern rather than a
// constructor with a long positional parameter list.
package config

import (
	"time"

	"go.uber.org/zap"

	"github.com/keydcore/keyd/internal/journal"
	"github.com/keydcore/keyd/internal/store"
	"github.com/keydcore/keyd/internal/value"
)

// Config holds every knob the server root (internal/store.Server) reads
// at startup. Zero-value Config is not usable; always build one through
// New.
type Config struct {
	ListenAddr string
	Databases  int

	MaxMemoryBytes int64
	EvictionPolicy store.EvictionPolicy
	Thresholds     value.Thresholds

	HashSeed uint64 // 0 means "generate one at startup"

	JournalPath       string
	JournalFsync      FsyncPolicy
	JournalRewriteMin int64 // minimum journal growth, bytes; nothing reads it and no rewrite runs automatically

	ExpireEffort int // 1..10
	TickInterval time.Duration

	Logger *zap.Logger
}

// FsyncPolicy selects the write journal's durability/throughput tradeoff.
type FsyncPolicy int

const (
	FsyncNever FsyncPolicy = iota
	FsyncEverySecond
	FsyncAlways
)

// JournalFsyncPolicy translates the config-layer enum into the one
// internal/journal actually consumes, keeping that package ignorant of
// internal/config (only this direction of import is allowed).
func (f FsyncPolicy) JournalFsyncPolicy() journal.FsyncPolicy {
	switch f {
	case FsyncAlways:
		return journal.FsyncAlways
	case FsyncNever:
		return journal.FsyncNever
	default:
		return journal.FsyncEverySecond
	}
}

// Option mutates a Config under construction.
type Option func(*Config)

// New builds a Config with the stated defaults, then applies opts in
// order so later options win over earlier ones.
func New(opts ...Option) *Config {
	c := &Config{
		ListenAddr:     "127.0.0.1:6790",
		Databases:      16,
		MaxMemoryBytes: 0, // 0 = unbounded, matching EvictNone
		EvictionPolicy: store.EvictNone,
		Thresholds:     value.DefaultThresholds,
		JournalPath:    "",
		JournalFsync:   FsyncEverySecond,
		ExpireEffort:   1,
		TickInterval:   100 * time.Millisecond, // 10 Hz
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

func WithListenAddr(addr string) Option {
	return func(c *Config) { c.ListenAddr = addr }
}

func WithDatabases(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Databases = n
		}
	}
}

func WithMaxMemory(bytes int64) Option {
	return func(c *Config) { c.MaxMemoryBytes = bytes }
}

func WithEvictionPolicy(p store.EvictionPolicy) Option {
	return func(c *Config) { c.EvictionPolicy = p }
}

func WithThresholds(t value.Thresholds) Option {
	return func(c *Config) { c.Thresholds = t }
}

func WithHashSeed(seed uint64) Option {
	return func(c *Config) { c.HashSeed = seed }
}

func WithJournal(path string, fsync FsyncPolicy) Option {
	return func(c *Config) {
		c.JournalPath = path
		c.JournalFsync = fsync
	}
}

func WithExpireEffort(effort int) Option {
	return func(c *Config) {
		if effort < 1 {
			effort = 1
		}
		if effort > 10 {
			effort = 10
		}
		c.ExpireEffort = effort
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(c *Config) { c.TickInterval = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
