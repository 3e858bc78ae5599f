package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/keydcore/keyd/internal/store"
)

func (d *Dispatcher) registerAdmin() {
	d.registerAdminCmd("PING", 1, cmdPing)
	d.registerAdminCmd("ECHO", 2, cmdEcho)
	d.registerAdminCmd("AUTH", 2, cmdAuth)
	d.registerAdminCmd("HELLO", 1, cmdHello)
	d.registerAdminCmd("CLIENT", 2, cmdClient)
	d.registerAdminCmd("CONFIG", 2, cmdConfig)
	d.registerAdminCmd("COMMAND", 1, cmdCommand)
	d.registerAdminCmd("OBJECT", 3, cmdObject)
	d.registerAdminCmd("DEBUG", 2, cmdDebug)
	d.registerAdminCmd("INFO", 1, cmdInfo)
	d.registerAdminCmd("MEMORY", 2, cmdMemory)
	d.registerAdminCmd("WAIT", 3, cmdWait)
	d.registerAdminCmd("SHUTDOWN", 1, cmdShutdown)
}

func cmdPing(ctx *Context, args []string) Reply {
	if len(args) > 1 {
		return Bulk(args[1])
	}
	return Status("PONG")
}

func cmdEcho(ctx *Context, args []string) Reply { return Bulk(args[1]) }

// cmdAuth is a stub: this deployment has no ACL/password store wired in yet.
func cmdAuth(ctx *Context, args []string) Reply {
	return ErrReply(newErr("ERR", "Client sent AUTH, but no password is set"))
}

func cmdHello(ctx *Context, args []string) Reply {
	if len(args) > 1 && args[1] != "2" {
		return ErrReply(newErr("NOPROTO", "unsupported protocol version"))
	}
	return Array(
		Bulk("server"), Bulk("keyd"),
		Bulk("version"), Bulk("1.0.0"),
		Bulk("proto"), Int(2),
		Bulk("id"), Int(int64(ctx.Client.ID)),
		Bulk("mode"), Status("standalone"),
		Bulk("role"), Status(roleName(ctx.Server.Role)),
	)
}

func roleName(r store.Role) string {
	if r == store.RoleReplica {
		return "replica"
	}
	return "master"
}

func cmdClient(ctx *Context, args []string) Reply {
	switch strings.ToUpper(args[1]) {
	case "ID":
		return Int(int64(ctx.Client.ID))
	case "GETNAME":
		return Bulk(ctx.Client.Name)
	case "SETNAME":
		if len(args) < 3 {
			return ErrReply(errWrongArgs("client|setname"))
		}
		ctx.Client.Name = args[2]
		return OK()
	case "LIST":
		return Bulk(fmt.Sprintf("id=%d addr=? name=%s db=%d", ctx.Client.ID, ctx.Client.Name, ctx.Client.DB))
	case "NO-EVICT", "NO-TOUCH", "REPLY":
		return OK()
	default:
		return ErrReply(newErr("ERR", "unknown CLIENT subcommand '%s'", args[1]))
	}
}

// cmdConfig is not a general-purpose runtime config store: CONFIG GET
// answers only maxmemory and databases (any other name gets an empty
// array), and CONFIG SET accepts its arguments and changes nothing.
func cmdConfig(ctx *Context, args []string) Reply {
	switch strings.ToUpper(args[1]) {
	case "GET":
		if len(args) < 3 {
			return ErrReply(errWrongArgs("config|get"))
		}
		return configGet(ctx, args[2])
	case "SET":
		if len(args) < 4 {
			return ErrReply(errWrongArgs("config|set"))
		}
		return OK()
	default:
		return ErrReply(newErr("ERR", "unknown CONFIG subcommand '%s'", args[1]))
	}
}

func configGet(ctx *Context, name string) Reply {
	switch strings.ToLower(name) {
	case "maxmemory":
		return Array(Bulk("maxmemory"), Bulk(fmt.Sprintf("%d", ctx.Server.Eviction.MemoryCap)))
	case "databases":
		return Array(Bulk("databases"), Bulk(fmt.Sprintf("%d", len(ctx.Server.Databases))))
	default:
		return ArrayOf(nil)
	}
}

func cmdCommand(ctx *Context, args []string) Reply {
	if len(args) > 1 && strings.EqualFold(args[1], "COUNT") {
		return Int(int64(len(ctx.Dispatcher.table)))
	}
	return ArrayOf(nil)
}

func cmdObject(ctx *Context, args []string) Reply {
	sub := strings.ToUpper(args[1])
	key := args[2]
	v, ok := ctx.DB().Peek(key, ctx.NowMS)
	if !ok {
		return ErrReply(newErr("ERR", "no such key"))
	}
	switch sub {
	case "ENCODING":
		return Bulk(v.Encoding.String())
	case "REFCOUNT":
		return Int(1)
	case "IDLETIME":
		idle := time.Duration(ctx.Server.LRUClock()-v.Access.LRUClock) * time.Second
		return Int(int64(idle.Seconds()))
	case "FREQ":
		return Int(int64(v.Access.LFUCounter))
	default:
		return ErrReply(newErr("ERR", "Unknown subcommand or wrong number of arguments for '%s'", args[1]))
	}
}

func cmdDebug(ctx *Context, args []string) Reply {
	switch strings.ToUpper(args[1]) {
	case "OBJECT":
		if len(args) < 3 {
			return ErrReply(errWrongArgs("debug|object"))
		}
		v, ok := ctx.DB().Peek(args[2], ctx.NowMS)
		if !ok {
			return ErrReply(newErr("ERR", "no such key"))
		}
		return Bulk(fmt.Sprintf("Value at:0x0 refcount:1 encoding:%s type:%s", v.Encoding, v.Type))
	case "SLEEP":
		return OK()
	case "JMAP", "SET-ACTIVE-EXPIRE", "QUICKLIST-PACKED-THRESHOLD":
		return OK()
	default:
		return OK()
	}
}

func cmdInfo(ctx *Context, args []string) Reply {
	dbLines := make([]string, 0, len(ctx.Server.Databases))
	for i, db := range ctx.Server.Databases {
		if db.Size() > 0 {
			dbLines = append(dbLines, fmt.Sprintf("db%d:keys=%d", i, db.Size()))
		}
	}
	used := ctx.Server.Eviction.MemoryUsed()
	info := strings.Join([]string{
		"# Server",
		"redis_version:7.4.0-keyd",
		fmt.Sprintf("uptime_in_seconds:%d", int64(ctx.Server.Uptime().Seconds())),
		fmt.Sprintf("role:%s", roleName(ctx.Server.Role)),
		"# Memory",
		fmt.Sprintf("used_memory:%d", used),
		fmt.Sprintf("used_memory_human:%s", humanize.Bytes(uint64(used))),
		fmt.Sprintf("maxmemory:%d", ctx.Server.Eviction.MemoryCap),
		fmt.Sprintf("maxmemory_human:%s", humanize.Bytes(uint64(ctx.Server.Eviction.MemoryCap))),
		"# Keyspace",
		strings.Join(dbLines, "\r\n"),
	}, "\r\n")
	return Bulk(info)
}

func cmdMemory(ctx *Context, args []string) Reply {
	if strings.EqualFold(args[1], "USAGE") {
		if len(args) < 3 {
			return ErrReply(errWrongArgs("memory|usage"))
		}
		if _, ok := ctx.DB().Peek(args[2], ctx.NowMS); !ok {
			return NullBulk()
		}
		return Int(64)
	}
	return Bulk(fmt.Sprintf("keyd in-memory store, %s used", humanize.Bytes(uint64(ctx.Server.Eviction.MemoryUsed()))))
}

// cmdWait is a stub: there is no replication stream to wait on yet.
func cmdWait(ctx *Context, args []string) Reply { return Int(0) }

func cmdShutdown(ctx *Context, args []string) Reply {
	return ErrReply(newErr("ERR", "SHUTDOWN is handled by the connection layer, not the dispatcher"))
}
