// Command keyd-server runs the keyd in-memory keyspace behind a RESP2
// listener: flags select the listen address, database count, eviction
// policy, memory cap, and write-journal durability policy, then
// keyd-server wires internal/config, internal/store, internal/journal,
// internal/command, and internal/server together and blocks serving
// connections until an interrupt signal arrives.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/keydcore/keyd/internal/command"
	"github.com/keydcore/keyd/internal/config"
	"github.com/keydcore/keyd/internal/journal"
	"github.com/keydcore/keyd/internal/server"
	"github.com/keydcore/keyd/internal/store"
	"github.com/keydcore/keyd/internal/value"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6790", "RESP2 listen address")
	databases := flag.Int("databases", 16, "number of selectable databases")
	maxMemory := flag.String("maxmemory", "0", "memory cap (e.g. 256mb); used memory is always reported as 0, so no cap triggers eviction or OOM")
	evictionPolicy := flag.String("eviction-policy", "noeviction", "noeviction|allkeys-random|volatile-random|volatile-ttl|allkeys-lru|volatile-lru|allkeys-lfu|volatile-lfu")
	journalPath := flag.String("journal", "", "write-journal path; empty disables journaling")
	journalFsync := flag.String("journal-fsync", "everysec", "never|everysec|always")
	expireEffort := flag.Int("expire-effort", 1, "active expiration effort, 1-10")
	tickInterval := flag.Duration("tick", 100*time.Millisecond, "cron tick interval")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	log, err := buildLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "keyd-server: logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	memBytes, err := humanize.ParseBytes(*maxMemory)
	if err != nil {
		log.Fatal("invalid -maxmemory", zap.Error(err))
	}

	policy, err := parseEvictionPolicy(*evictionPolicy)
	if err != nil {
		log.Fatal("invalid -eviction-policy", zap.Error(err))
	}

	fsync, err := parseFsyncPolicy(*journalFsync)
	if err != nil {
		log.Fatal("invalid -journal-fsync", zap.Error(err))
	}

	cfg := config.New(
		config.WithListenAddr(*addr),
		config.WithDatabases(*databases),
		config.WithMaxMemory(int64(memBytes)),
		config.WithEvictionPolicy(policy),
		config.WithThresholds(value.DefaultThresholds),
		config.WithJournal(*journalPath, fsync),
		config.WithExpireEffort(*expireEffort),
		config.WithTickInterval(*tickInterval),
		config.WithLogger(log),
	)

	if err := run(cfg); err != nil {
		log.Fatal("keyd-server exited", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	log := cfg.Logger

	memoryUsed := func() int64 { return 0 } // TODO: wire to a real accounting pass once Value tracks its own size
	st := store.NewServer(cfg.Databases, cfg.HashSeed, cfg.EvictionPolicy, cfg.MaxMemoryBytes, cfg.Thresholds, memoryUsed, log)
	st.Expiration.Effort = cfg.ExpireEffort

	disp := command.NewDispatcher(st)

	var jr *journal.Journal
	if cfg.JournalPath != "" {
		var err error
		jr, err = journal.Open(cfg.JournalPath, cfg.JournalFsync.JournalFsyncPolicy(), log)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
	}

	srv := server.New(cfg, st, disp, jr)
	if cfg.JournalPath != "" {
		if err := srv.LoadJournal(cfg.JournalPath); err != nil {
			return fmt.Errorf("replay journal: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(cfg.ListenAddr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("keyd-server listening", zap.String("addr", cfg.ListenAddr), zap.Int("databases", cfg.Databases))

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		return srv.Shutdown()
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}

func parseEvictionPolicy(s string) (store.EvictionPolicy, error) {
	switch s {
	case "noeviction":
		return store.EvictNone, nil
	case "allkeys-random":
		return store.EvictRandomAll, nil
	case "volatile-random":
		return store.EvictRandomVolatile, nil
	case "volatile-ttl":
		return store.EvictTTLVolatile, nil
	case "allkeys-lru":
		return store.EvictLRUAll, nil
	case "volatile-lru":
		return store.EvictLRUVolatile, nil
	case "allkeys-lfu":
		return store.EvictLFUAll, nil
	case "volatile-lfu":
		return store.EvictLFUVolatile, nil
	default:
		return 0, errors.New("unknown eviction policy " + s)
	}
}

func parseFsyncPolicy(s string) (config.FsyncPolicy, error) {
	switch s {
	case "never":
		return config.FsyncNever, nil
	case "everysec":
		return config.FsyncEverySecond, nil
	case "always":
		return config.FsyncAlways, nil
	default:
		return 0, errors.New("unknown journal fsync policy " + s)
	}
}
