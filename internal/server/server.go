// Package server wires the RESP2 wire protocol (github.com/tidwall/redcon)
// onto the command dispatcher and keyspace root: accepting connections,
// tokenizing pipelined commands, running each one under the single
// serializing lock the store package's concurrency model requires, and
// translating command.Reply values back into RESP2 bytes.
package server

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/redcon"
	"go.uber.org/zap"

	"github.com/keydcore/keyd/internal/command"
	"github.com/keydcore/keyd/internal/config"
	"github.com/keydcore/keyd/internal/journal"
	"github.com/keydcore/keyd/internal/store"
)

// Server owns the listener, the command loop's serializing lock, and the
// live client registry. Only one command runs at a time across every
// connection, mirroring the single-threaded command loop the keyspace
// package assumes.
type Server struct {
	cfg        *config.Config
	store      *store.Server
	dispatcher *command.Dispatcher
	journal    *journal.Journal
	log        *zap.Logger

	cmdMu sync.Mutex

	clientsMu sync.Mutex
	clients   map[uint64]*command.Client
	nextID    uint64

	lastJournalDB int

	redconSrv *redcon.Server
	stopTick  chan struct{}
	tickDone  chan struct{}
}

// New builds a Server around an already-constructed keyspace root and
// dispatcher. journ may be nil, disabling write-journal propagation.
func New(cfg *config.Config, st *store.Server, disp *command.Dispatcher, journ *journal.Journal) *Server {
	s := &Server{
		cfg:           cfg,
		store:         st,
		dispatcher:    disp,
		journal:       journ,
		log:           cfg.Logger,
		clients:       make(map[uint64]*command.Client),
		lastJournalDB: -1,
	}
	if journ != nil {
		st.OnCommandApplied = s.appendToJournal
	}
	return s
}

// appendToJournal emits a SELECT before any command whose database differs
// from the last one written, keeping the journal replayable without a
// per-database log file.
func (s *Server) appendToJournal(dbID int, args []string) {
	if dbID != s.lastJournalDB {
		if err := s.journal.Append([]string{"SELECT", strconv.Itoa(dbID)}); err != nil {
			s.log.Warn("journal select append failed", zap.Error(err))
		}
		s.lastJournalDB = dbID
	}
	if err := s.journal.Append(args); err != nil {
		s.log.Warn("journal append failed", zap.Error(err))
	}
}

// LoadJournal replays path against the dispatcher before the listener
// starts accepting connections, reconstructing the keyspace.
func (s *Server) LoadJournal(path string) error {
	client := command.NewClient(0)
	ctx := &command.Context{Server: s.store, Client: client}
	applied := s.store.OnCommandApplied
	s.store.OnCommandApplied = nil
	defer func() { s.store.OnCommandApplied = applied }()
	return journal.Replay(path, true, func(args []string) error {
		ctx.NowMS = s.store.NowMS()
		s.dispatcher.Execute(ctx, args)
		return nil
	})
}

// ListenAndServe blocks serving RESP2 connections at addr until Shutdown
// is called.
func (s *Server) ListenAndServe(addr string) error {
	s.stopTick = make(chan struct{})
	s.tickDone = make(chan struct{})
	go s.cronLoop()

	s.redconSrv = redcon.NewServerNetwork("tcp", addr, s.handleCommand, s.onAccept, s.onClosed)
	return s.redconSrv.ListenAndServe()
}

// Shutdown stops the cron loop, closes the listener, and (if a journal is
// attached) flushes it.
func (s *Server) Shutdown() error {
	if s.redconSrv != nil {
		s.redconSrv.Close()
	}
	close(s.stopTick)
	<-s.tickDone
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

func (s *Server) cronLoop() {
	defer close(s.tickDone)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	const rehashStepsPerDB = 1
	for {
		select {
		case <-ticker.C:
			s.cmdMu.Lock()
			s.store.Expiration.Effort = s.cfg.ExpireEffort
			result := s.store.Tick(rehashStepsPerDB)
			s.wakeReadyClientsLocked()
			s.cmdMu.Unlock()
			if result.Scanned > 0 {
				s.log.Debug("expiration sweep",
					zap.Int("scanned", result.Scanned),
					zap.Int("expired", result.Expired))
			}
		case <-s.stopTick:
			return
		}
	}
}

// wakeReadyClientsLocked drains every database's ready-keys list and
// notifies blocked clients, one waiter per newly-ready key.
// Callers must already hold cmdMu.
func (s *Server) wakeReadyClientsLocked() {
	for _, db := range s.store.Databases {
		for _, key := range db.DrainReady() {
			if bc, ok := db.PopWaiter(key); ok {
				close(bc.Notify)
			}
		}
	}
}

func (s *Server) onAccept(conn redcon.Conn) bool {
	id := atomic.AddUint64(&s.nextID, 1)
	c := command.NewClient(id)
	conn.SetContext(c)
	s.clientsMu.Lock()
	s.clients[id] = c
	s.clientsMu.Unlock()
	return true
}

func (s *Server) onClosed(conn redcon.Conn, err error) {
	c, ok := conn.Context().(*command.Client)
	if !ok {
		return
	}
	s.clientsMu.Lock()
	delete(s.clients, c.ID)
	s.clientsMu.Unlock()
}

func (s *Server) handleCommand(conn redcon.Conn, cmd redcon.Command) {
	c, ok := conn.Context().(*command.Client)
	if !ok {
		conn.WriteError("ERR client has no session state")
		return
	}
	args := make([]string, len(cmd.Args))
	for i, a := range cmd.Args {
		args[i] = string(a)
	}

	s.cmdMu.Lock()
	ctx := &command.Context{Server: s.store, Client: c, NowMS: s.store.NowMS()}
	reply := s.dispatcher.Execute(ctx, args)
	s.wakeReadyClientsLocked()
	s.cmdMu.Unlock()

	if reply.Kind == command.ReplyBlock {
		s.parkClient(conn, c, reply)
		return
	}
	writeReply(conn, reply)
}

// parkClient detaches the connection and waits off the command loop for a
// key to become ready or the deadline to pass, then re-dispatches the
// original blocking command exactly once.
func (s *Server) parkClient(conn redcon.Conn, c *command.Client, reply command.Reply) {
	detached := conn.Detach()
	notify := make(chan struct{})
	c.Blocked = &store.BlockedClient{ID: c.ID, Notify: notify}

	s.cmdMu.Lock()
	db := s.store.Databases[c.DB]
	db.BlockClient(c.Blocked, reply.BlockKeys)
	s.cmdMu.Unlock()

	go func() {
		defer detached.Close()
		if reply.BlockDeadlineMS == 0 {
			<-notify
		} else {
			wait := time.Duration(reply.BlockDeadlineMS-s.store.NowMS()) * time.Millisecond
			if wait < 0 {
				wait = 0
			}
			select {
			case <-notify:
			case <-time.After(wait):
			}
		}

		s.cmdMu.Lock()
		db.UnblockClient(c.Blocked, reply.BlockKeys)
		c.Blocked = nil
		ctx := &command.Context{Server: s.store, Client: c, NowMS: s.store.NowMS()}
		final := s.dispatcher.Execute(ctx, reply.BlockRetry)
		s.cmdMu.Unlock()

		if final.Kind == command.ReplyBlock {
			final = command.NullArray()
		}
		writeReply(detached, final)
		detached.Flush()
	}()
}
