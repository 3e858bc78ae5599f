package command

import (
	"strconv"
	"strings"

	"github.com/keydcore/keyd/internal/store"
	"github.com/keydcore/keyd/internal/value"
)

func (d *Dispatcher) registerKeyspace() {
	d.register("GET", 2, false, cmdGet)
	d.register("SET", 3, true, cmdSet)
	d.register("DEL", 2, true, cmdDel)
	d.register("UNLINK", 2, true, cmdDel)
	d.register("EXISTS", 2, false, cmdExists)
	d.register("TYPE", 2, false, cmdType)
	d.register("RENAME", 3, true, cmdRename)
	d.register("RENAMENX", 3, true, cmdRenameNX)
	d.register("EXPIRE", 3, true, cmdExpire)
	d.register("PEXPIRE", 3, true, cmdPExpire)
	d.register("EXPIREAT", 3, true, cmdExpireAt)
	d.register("PEXPIREAT", 3, true, cmdPExpireAt)
	d.register("PERSIST", 2, true, cmdPersist)
	d.register("TTL", 2, false, cmdTTL)
	d.register("PTTL", 2, false, cmdPTTL)
	d.register("KEYS", 2, false, cmdKeys)
	d.register("SCAN", 2, false, cmdScan)
	d.register("DBSIZE", 1, false, cmdDBSize)
	d.register("RANDOMKEY", 1, false, cmdRandomKey)
	d.register("FLUSHDB", 1, true, cmdFlushDB)
	d.register("FLUSHALL", 1, true, cmdFlushAll)
	d.register("SELECT", 2, false, cmdSelect)
	d.register("SWAPDB", 3, true, cmdSwapDB)
	d.register("MOVE", 3, true, cmdMove)
}

func cmdGet(ctx *Context, args []string) Reply {
	v, ok := ctx.DB().Get(args[1], store.IntentRead, ctx.NowMS)
	if !ok {
		ctx.Server.Stats.Misses.Inc()
		return NullBulk()
	}
	ctx.Server.Stats.Hits.Inc()
	if v.Type != value.TypeString {
		return ErrReply(errWrongType())
	}
	v.TouchLRU(ctx.Server.LRUClock())
	return Bulk(v.Str)
}

func cmdSet(ctx *Context, args []string) Reply {
	key, val := args[1], args[2]
	var exMS int64
	var hasEX, keepTTL, nx, xx bool

	for i := 3; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "EX":
			i++
			if i >= len(args) {
				return ErrReply(errSyntax())
			}
			n, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				return ErrReply(errNotInt())
			}
			exMS = ctx.NowMS + n*1000
			hasEX = true
		case "PX":
			i++
			if i >= len(args) {
				return ErrReply(errSyntax())
			}
			n, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				return ErrReply(errNotInt())
			}
			exMS = ctx.NowMS + n
			hasEX = true
		case "KEEPTTL":
			keepTTL = true
		case "NX":
			nx = true
		case "XX":
			xx = true
		default:
			return ErrReply(errSyntax())
		}
	}

	_, exists := ctx.DB().Get(key, store.IntentWrite, ctx.NowMS)
	if nx && exists {
		return NullBulk()
	}
	if xx && !exists {
		return NullBulk()
	}

	ctx.DB().Set(key, value.NewString(val), keepTTL)
	if hasEX {
		ctx.DB().SetExpiration(key, exMS)
	}
	return OK()
}

func cmdDel(ctx *Context, args []string) Reply {
	n := int64(0)
	for _, k := range args[1:] {
		if _, ok := ctx.DB().Delete(k); ok {
			n++
		}
	}
	return Int(n)
}

func cmdExists(ctx *Context, args []string) Reply {
	return Int(int64(ctx.DB().Exists(args[1:], ctx.NowMS)))
}

func cmdType(ctx *Context, args []string) Reply {
	v, ok := ctx.DB().Get(args[1], store.IntentRead, ctx.NowMS)
	if !ok {
		return Status("none")
	}
	return Status(v.Type.String())
}

func cmdRename(ctx *Context, args []string) Reply {
	if !ctx.DB().Rename(args[1], args[2], true, ctx.NowMS) {
		return ErrReply(newErr("ERR", "no such key"))
	}
	return OK()
}

func cmdRenameNX(ctx *Context, args []string) Reply {
	if !ctx.DB().Rename(args[1], args[2], false, ctx.NowMS) {
		return Int(0)
	}
	return Int(1)
}

func parseExpireArg(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func cmdExpire(ctx *Context, args []string) Reply {
	n, err := parseExpireArg(args[2])
	if err != nil {
		return ErrReply(errNotInt())
	}
	return expireAt(ctx, args[1], ctx.NowMS+n*1000)
}

func cmdPExpire(ctx *Context, args []string) Reply {
	n, err := parseExpireArg(args[2])
	if err != nil {
		return ErrReply(errNotInt())
	}
	return expireAt(ctx, args[1], ctx.NowMS+n)
}

func cmdExpireAt(ctx *Context, args []string) Reply {
	n, err := parseExpireArg(args[2])
	if err != nil {
		return ErrReply(errNotInt())
	}
	return expireAt(ctx, args[1], n*1000)
}

func cmdPExpireAt(ctx *Context, args []string) Reply {
	n, err := parseExpireArg(args[2])
	if err != nil {
		return ErrReply(errNotInt())
	}
	return expireAt(ctx, args[1], n)
}

// expireAt implements "EXPIRE k 0 is equivalent to DEL k".
func expireAt(ctx *Context, key string, absMS int64) Reply {
	if absMS <= ctx.NowMS {
		if _, ok := ctx.DB().Delete(key); ok {
			return Int(1)
		}
		return Int(0)
	}
	if ctx.DB().SetExpiration(key, absMS) {
		return Int(1)
	}
	return Int(0)
}

func cmdPersist(ctx *Context, args []string) Reply {
	return Bool(ctx.DB().ClearExpiration(args[1]))
}

func cmdTTL(ctx *Context, args []string) Reply {
	return ttlReply(ctx, args[1], time_Second)
}

func cmdPTTL(ctx *Context, args []string) Reply {
	return ttlReply(ctx, args[1], 1)
}

const time_Second = 1000

func ttlReply(ctx *Context, key string, unitMS int64) Reply {
	if _, ok := ctx.DB().Get(key, store.IntentRead, ctx.NowMS); !ok {
		return Int(-2)
	}
	exp, ok := ctx.DB().ExpirationOf(key)
	if !ok {
		return Int(-1)
	}
	remaining := exp - ctx.NowMS
	if remaining < 0 {
		remaining = 0
	}
	return Int(remaining / unitMS)
}

func cmdKeys(ctx *Context, args []string) Reply {
	pattern := args[1]
	var matched []string
	cursor := uint64(0)
	for {
		res := ctx.DB().Scan(cursor, 1000, pattern, 0, false, ctx.NowMS)
		matched = append(matched, res.Keys...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}
	return BulkStrings(matched)
}

func cmdScan(ctx *Context, args []string) Reply {
	cursor, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return ErrReply(newErr("ERR", "invalid cursor"))
	}
	pattern := ""
	count := 10
	var typeFilter value.Type
	hasType := false
	for i := 2; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "MATCH":
			i++
			if i >= len(args) {
				return ErrReply(errSyntax())
			}
			pattern = args[i]
		case "COUNT":
			i++
			if i >= len(args) {
				return ErrReply(errSyntax())
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return ErrReply(errNotInt())
			}
			count = n
		case "TYPE":
			i++
			if i >= len(args) {
				return ErrReply(errSyntax())
			}
			hasType = true
			typeFilter = parseTypeName(args[i])
		default:
			return ErrReply(errSyntax())
		}
	}
	res := ctx.DB().Scan(cursor, count, pattern, typeFilter, hasType, ctx.NowMS)
	return Array(Bulk(strconv.FormatUint(res.Cursor, 10)), BulkStrings(res.Keys))
}

func parseTypeName(s string) value.Type {
	switch strings.ToLower(s) {
	case "list":
		return value.TypeList
	case "hash":
		return value.TypeHash
	case "set":
		return value.TypeSet
	case "zset":
		return value.TypeZSet
	default:
		return value.TypeString
	}
}

func cmdDBSize(ctx *Context, args []string) Reply {
	return Int(int64(ctx.DB().Size()))
}

func cmdRandomKey(ctx *Context, args []string) Reply {
	k, ok := ctx.DB().RandomKey(ctx.NowMS)
	if !ok {
		return NullBulk()
	}
	return Bulk(k)
}

func cmdFlushDB(ctx *Context, args []string) Reply {
	ctx.DB().Flush(ctx.Server.HashSeed)
	return OK()
}

func cmdFlushAll(ctx *Context, args []string) Reply {
	for _, db := range ctx.Server.Databases {
		db.Flush(ctx.Server.HashSeed)
	}
	return OK()
}

func cmdSelect(ctx *Context, args []string) Reply {
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 || n >= len(ctx.Server.Databases) {
		return ErrReply(newErr("ERR", "DB index is out of range"))
	}
	ctx.Client.DB = n
	return OK()
}

func cmdSwapDB(ctx *Context, args []string) Reply {
	i, err1 := strconv.Atoi(args[1])
	j, err2 := strconv.Atoi(args[2])
	dbs := ctx.Server.Databases
	if err1 != nil || err2 != nil || i < 0 || j < 0 || i >= len(dbs) || j >= len(dbs) {
		return ErrReply(newErr("ERR", "DB index is out of range"))
	}
	dbs[i], dbs[j] = dbs[j], dbs[i]
	dbs[i].ResetID(i)
	dbs[j].ResetID(j)
	return OK()
}

func cmdMove(ctx *Context, args []string) Reply {
	n, err := strconv.Atoi(args[2])
	if err != nil || n < 0 || n >= len(ctx.Server.Databases) {
		return ErrReply(newErr("ERR", "DB index is out of range"))
	}
	if n == ctx.Client.DB {
		return ErrReply(newErr("ERR", "source and destination objects are the same"))
	}
	src, dst := ctx.DB(), ctx.Server.Databases[n]
	v, ok := src.Get(args[1], store.IntentWrite, ctx.NowMS)
	if !ok {
		return Int(0)
	}
	if _, exists := dst.Get(args[1], store.IntentRead, ctx.NowMS); exists {
		return Int(0)
	}
	exp, hadExp := src.ExpirationOf(args[1])
	src.Delete(args[1])
	dst.Set(args[1], v, false)
	if hadExp {
		dst.SetExpiration(args[1], exp)
	}
	return Int(1)
}
