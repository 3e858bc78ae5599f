package command

import (
	"strconv"

	"github.com/keydcore/keyd/internal/store"
	"github.com/keydcore/keyd/internal/value"
)

func (d *Dispatcher) registerHashes() {
	d.register("HSET", 4, true, cmdHSet)
	d.register("HSETNX", 4, true, cmdHSetNX)
	d.register("HGET", 3, false, cmdHGet)
	d.register("HMGET", 3, false, cmdHMGet)
	d.register("HDEL", 3, true, cmdHDel)
	d.register("HLEN", 2, false, cmdHLen)
	d.register("HSTRLEN", 3, false, cmdHStrlen)
	d.register("HEXISTS", 3, false, cmdHExists)
	d.register("HKEYS", 2, false, cmdHKeys)
	d.register("HVALS", 2, false, cmdHVals)
	d.register("HGETALL", 2, false, cmdHGetAll)
	d.register("HSCAN", 3, false, cmdHScan)
	d.register("HINCRBY", 4, true, cmdHIncrBy)
	d.register("HINCRBYFLOAT", 4, true, cmdHIncrByFloat)
}

func getHashOrNil(ctx *Context, key string) (*value.Value, bool, *CmdError) {
	v, ok := ctx.DB().Get(key, store.IntentWrite, ctx.NowMS)
	if !ok {
		return nil, false, nil
	}
	if v.Type != value.TypeHash {
		return nil, false, errWrongType()
	}
	return v, true, nil
}

func getHashOrCreate(ctx *Context, key string) (*value.Value, *CmdError) {
	v, ok, err := getHashOrNil(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		v = value.NewHash()
		ctx.DB().Set(key, v, false)
	}
	return v, nil
}

func cmdHSet(ctx *Context, args []string) Reply {
	if (len(args)-2)%2 != 0 {
		return ErrReply(errWrongArgs("hset"))
	}
	v, err := getHashOrCreate(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	added := int64(0)
	for i := 2; i < len(args); i += 2 {
		if v.HashSet(args[i], args[i+1], ctx.Server.Thresholds) {
			added++
		}
	}
	ctx.DB().SignalKeyModified(args[1])
	return Int(added)
}

func cmdHSetNX(ctx *Context, args []string) Reply {
	v, err := getHashOrCreate(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if _, exists := v.HashGet(args[2]); exists {
		return Int(0)
	}
	v.HashSet(args[2], args[3], ctx.Server.Thresholds)
	ctx.DB().SignalKeyModified(args[1])
	return Int(1)
}

func cmdHGet(ctx *Context, args []string) Reply {
	v, ok, err := getHashOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return NullBulk()
	}
	s, found := v.HashGet(args[2])
	if !found {
		return NullBulk()
	}
	return Bulk(s)
}

func cmdHMGet(ctx *Context, args []string) Reply {
	v, ok, err := getHashOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	out := make([]Reply, 0, len(args)-2)
	for _, f := range args[2:] {
		if !ok {
			out = append(out, NullBulk())
			continue
		}
		s, found := v.HashGet(f)
		if !found {
			out = append(out, NullBulk())
			continue
		}
		out = append(out, Bulk(s))
	}
	return ArrayOf(out)
}

func cmdHDel(ctx *Context, args []string) Reply {
	v, ok, err := getHashOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	removed := int64(0)
	for _, f := range args[2:] {
		if v.HashDel(f) {
			removed++
		}
	}
	if v.HashLen() == 0 {
		ctx.DB().Delete(args[1])
	} else if removed > 0 {
		ctx.DB().SignalKeyModified(args[1])
	}
	return Int(removed)
}

func cmdHLen(ctx *Context, args []string) Reply {
	v, ok, err := getHashOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	return Int(int64(v.HashLen()))
}

func cmdHStrlen(ctx *Context, args []string) Reply {
	v, ok, err := getHashOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	s, found := v.HashGet(args[2])
	if !found {
		return Int(0)
	}
	return Int(int64(len(s)))
}

func cmdHExists(ctx *Context, args []string) Reply {
	v, ok, err := getHashOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	_, found := v.HashGet(args[2])
	return Bool(found)
}

func cmdHKeys(ctx *Context, args []string) Reply {
	v, ok, err := getHashOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return ArrayOf(nil)
	}
	return BulkStrings(v.HashFields())
}

func cmdHVals(ctx *Context, args []string) Reply {
	v, ok, err := getHashOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return ArrayOf(nil)
	}
	return BulkStrings(v.HashValues())
}

func cmdHGetAll(ctx *Context, args []string) Reply {
	v, ok, err := getHashOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return ArrayOf(nil)
	}
	return BulkStrings(v.HashAll())
}

func cmdHScan(ctx *Context, args []string) Reply {
	v, ok, err := getHashOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Array(Bulk("0"), ArrayOf(nil))
	}
	return Array(Bulk("0"), BulkStrings(v.HashAll()))
}

func cmdHIncrBy(ctx *Context, args []string) Reply {
	delta, derr := strconv.ParseInt(args[3], 10, 64)
	if derr != nil {
		return ErrReply(errNotInt())
	}
	v, err := getHashOrCreate(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	cur, found := v.HashGet(args[2])
	n := int64(0)
	if found {
		parsed, perr := strconv.ParseInt(cur, 10, 64)
		if perr != nil {
			return ErrReply(errNotInt())
		}
		n = parsed
	}
	n += delta
	v.HashSet(args[2], strconv.FormatInt(n, 10), ctx.Server.Thresholds)
	ctx.DB().SignalKeyModified(args[1])
	return Int(n)
}

func cmdHIncrByFloat(ctx *Context, args []string) Reply {
	delta, derr := strconv.ParseFloat(args[3], 64)
	if derr != nil {
		return ErrReply(errNotFloat())
	}
	v, err := getHashOrCreate(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	cur, found := v.HashGet(args[2])
	f := 0.0
	if found {
		parsed, perr := strconv.ParseFloat(cur, 64)
		if perr != nil {
			return ErrReply(errNotFloat())
		}
		f = parsed
	}
	f += delta
	s := strconv.FormatFloat(f, 'g', -1, 64)
	v.HashSet(args[2], s, ctx.Server.Thresholds)
	ctx.DB().SignalKeyModified(args[1])
	return Bulk(s)
}
