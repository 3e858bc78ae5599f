package command

import (
	"strings"

	"github.com/keydcore/keyd/internal/store"
)

// Handler executes one command against ctx and returns its reply.
type Handler func(ctx *Context, args []string) Reply

// spec describes a handler's arity and whether it mutates the keyspace
// (gating role checks and journal propagation).
type spec struct {
	handler Handler
	minArgs int // including the command name itself
	write   bool
	admin   bool // never queued by MULTI, never gated by readonly/OOM checks
}

// Dispatcher owns the command table and the server it dispatches against.
type Dispatcher struct {
	Server *store.Server
	table  map[string]spec
}

// NewDispatcher builds a Dispatcher with every handler registered.
func NewDispatcher(srv *store.Server) *Dispatcher {
	d := &Dispatcher{Server: srv, table: make(map[string]spec)}
	d.registerKeyspace()
	d.registerStrings()
	d.registerLists()
	d.registerHashes()
	d.registerSets()
	d.registerZSets()
	d.registerTransactions()
	d.registerAdmin()
	d.registerBlocking()
	return d
}

func (d *Dispatcher) register(name string, minArgs int, write bool, h Handler) {
	d.table[name] = spec{handler: h, minArgs: minArgs, write: write}
}

func (d *Dispatcher) registerAdminCmd(name string, minArgs int, h Handler) {
	d.table[name] = spec{handler: h, minArgs: minArgs, admin: true}
}

// Context is everything a handler needs to run: the frozen "now" for this
// tick (atomicity requirement), the dispatcher, and the client.
type Context struct {
	Server     *store.Server
	Client     *Client
	Dispatcher *Dispatcher
	NowMS      int64
}

func (c *Context) DB() *store.Database { return c.Server.Databases[c.Client.DB] }

// Execute runs one already-tokenized command. Transaction queuing and
// role/OOM gating happen here so every entry point (the normal command
// path and EXEC's replay) shares one policy; WATCHed keys are checked by
// cmdExec, not here.
func (d *Dispatcher) Execute(ctx *Context, args []string) Reply {
	if len(args) == 0 {
		return ErrReply(newErr("ERR", "empty command"))
	}
	ctx.Dispatcher = d
	name := strings.ToUpper(args[0])
	sp, ok := d.table[name]
	if !ok {
		if ctx.Client.InMulti {
			ctx.Client.QueueError = true
		}
		return ErrReply(errUnknownCommand(name, args[1:]))
	}
	if len(args) < sp.minArgs {
		if ctx.Client.InMulti {
			ctx.Client.QueueError = true
		}
		return ErrReply(errWrongArgs(strings.ToLower(name)))
	}

	if ctx.Client.InMulti && !sp.admin && name != "EXEC" && name != "DISCARD" && name != "MULTI" && name != "WATCH" {
		ctx.Client.Enqueue(name, args)
		return Status("QUEUED")
	}

	if sp.write {
		if d.Server.Role == store.RoleReplica {
			return ErrReply(errReadonly())
		}
		if err := d.Server.CheckMemory(); err != nil {
			return ErrReply(errOOM())
		}
	}

	reply := sp.handler(ctx, args)

	if sp.write && reply.Kind != ReplyError {
		d.Server.Stats.Commands.Inc()
		if d.Server.OnCommandApplied != nil {
			d.Server.OnCommandApplied(ctx.Client.DB, args)
		}
	}
	return reply
}
