package command

import (
	"strconv"
	"strings"

	"github.com/keydcore/keyd/internal/store"
	"github.com/keydcore/keyd/internal/value"
)

func (d *Dispatcher) registerLists() {
	d.register("LPUSH", 3, true, cmdLPush)
	d.register("RPUSH", 3, true, cmdRPush)
	d.register("LPUSHX", 3, true, cmdLPushX)
	d.register("RPUSHX", 3, true, cmdRPushX)
	d.register("LPOP", 2, true, cmdLPop)
	d.register("RPOP", 2, true, cmdRPop)
	d.register("LLEN", 2, false, cmdLLen)
	d.register("LINDEX", 3, false, cmdLIndex)
	d.register("LSET", 4, true, cmdLSet)
	d.register("LRANGE", 4, false, cmdLRange)
	d.register("LTRIM", 4, true, cmdLTrim)
	d.register("LREM", 4, true, cmdLRem)
	d.register("LINSERT", 5, true, cmdLInsert)
	d.register("LPOS", 3, false, cmdLPos)
	d.register("RPOPLPUSH", 3, true, cmdRPopLPush)
}

func getListOrCreate(ctx *Context, key string) (*value.Value, *CmdError) {
	v, ok := ctx.DB().Get(key, store.IntentWrite, ctx.NowMS)
	if !ok {
		v = value.NewList()
		ctx.DB().Set(key, v, false)
		return v, nil
	}
	if v.Type != value.TypeList {
		return nil, errWrongType()
	}
	return v, nil
}

func getListOrNil(ctx *Context, key string) (*value.Value, bool, *CmdError) {
	v, ok := ctx.DB().Get(key, store.IntentWrite, ctx.NowMS)
	if !ok {
		return nil, false, nil
	}
	if v.Type != value.TypeList {
		return nil, false, errWrongType()
	}
	return v, true, nil
}

func pushMany(ctx *Context, key string, values []string, front bool, requireExisting bool) Reply {
	var v *value.Value
	if requireExisting {
		existing, ok, err := getListOrNil(ctx, key)
		if err != nil {
			return ErrReply(err)
		}
		if !ok {
			return Int(0)
		}
		v = existing
	} else {
		created, err := getListOrCreate(ctx, key)
		if err != nil {
			return ErrReply(err)
		}
		v = created
	}
	for _, s := range values {
		if front {
			v.ListPushFront(s, ctx.Server.Thresholds)
		} else {
			v.ListPushBack(s, ctx.Server.Thresholds)
		}
	}
	ctx.DB().SignalKeyModified(key)
	return Int(int64(v.ListLen()))
}

func cmdLPush(ctx *Context, args []string) Reply  { return pushMany(ctx, args[1], args[2:], true, false) }
func cmdRPush(ctx *Context, args []string) Reply  { return pushMany(ctx, args[1], args[2:], false, false) }
func cmdLPushX(ctx *Context, args []string) Reply { return pushMany(ctx, args[1], args[2:], true, true) }
func cmdRPushX(ctx *Context, args []string) Reply { return pushMany(ctx, args[1], args[2:], false, true) }

func popOne(ctx *Context, key string, front bool) Reply {
	v, ok, err := getListOrNil(ctx, key)
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return NullBulk()
	}
	var s string
	var popped bool
	if front {
		s, popped = v.ListPopFront()
	} else {
		s, popped = v.ListPopBack()
	}
	if !popped {
		return NullBulk()
	}
	if v.ListLen() == 0 {
		ctx.DB().Delete(key)
	} else {
		ctx.DB().SignalKeyModified(key)
	}
	return Bulk(s)
}

func cmdLPop(ctx *Context, args []string) Reply { return popOne(ctx, args[1], true) }
func cmdRPop(ctx *Context, args []string) Reply { return popOne(ctx, args[1], false) }

func cmdLLen(ctx *Context, args []string) Reply {
	v, ok, err := getListOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	return Int(int64(v.ListLen()))
}

func cmdLIndex(ctx *Context, args []string) Reply {
	v, ok, err := getListOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return NullBulk()
	}
	idx, ierr := strconv.Atoi(args[2])
	if ierr != nil {
		return ErrReply(errNotInt())
	}
	s, found := v.ListIndex(idx)
	if !found {
		return NullBulk()
	}
	return Bulk(s)
}

func cmdLSet(ctx *Context, args []string) Reply {
	v, ok, err := getListOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return ErrReply(newErr("ERR", "no such key"))
	}
	idx, ierr := strconv.Atoi(args[2])
	if ierr != nil {
		return ErrReply(errNotInt())
	}
	if !v.ListSet(idx, args[3], ctx.Server.Thresholds) {
		return ErrReply(newErr("ERR", "index out of range"))
	}
	ctx.DB().SignalKeyModified(args[1])
	return OK()
}

func cmdLRange(ctx *Context, args []string) Reply {
	v, ok, err := getListOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return ArrayOf(nil)
	}
	start, e1 := strconv.Atoi(args[2])
	stop, e2 := strconv.Atoi(args[3])
	if e1 != nil || e2 != nil {
		return ErrReply(errNotInt())
	}
	return BulkStrings(v.ListRange(start, stop))
}

func cmdLTrim(ctx *Context, args []string) Reply {
	v, ok, err := getListOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return OK()
	}
	start, e1 := strconv.Atoi(args[2])
	stop, e2 := strconv.Atoi(args[3])
	if e1 != nil || e2 != nil {
		return ErrReply(errNotInt())
	}
	v.ListTrim(start, stop)
	if v.ListLen() == 0 {
		ctx.DB().Delete(args[1])
	} else {
		ctx.DB().SignalKeyModified(args[1])
	}
	return OK()
}

func cmdLRem(ctx *Context, args []string) Reply {
	v, ok, err := getListOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	count, cerr := strconv.Atoi(args[2])
	if cerr != nil {
		return ErrReply(errNotInt())
	}
	removed := v.ListRemove(args[3], count)
	if v.ListLen() == 0 {
		ctx.DB().Delete(args[1])
	} else if removed > 0 {
		ctx.DB().SignalKeyModified(args[1])
	}
	return Int(int64(removed))
}

func cmdLInsert(ctx *Context, args []string) Reply {
	v, ok, err := getListOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	var before bool
	switch strings.ToUpper(args[2]) {
	case "BEFORE":
		before = true
	case "AFTER":
		before = false
	default:
		return ErrReply(errSyntax())
	}
	if !v.ListInsert(args[3], args[4], before, ctx.Server.Thresholds) {
		return Int(-1)
	}
	ctx.DB().SignalKeyModified(args[1])
	return Int(int64(v.ListLen()))
}

func cmdLPos(ctx *Context, args []string) Reply {
	v, ok, err := getListOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return NullBulk()
	}
	all := v.ListRange(0, -1)
	for i, s := range all {
		if s == args[2] {
			return Int(int64(i))
		}
	}
	return NullBulk()
}

func cmdRPopLPush(ctx *Context, args []string) Reply {
	src, ok, err := getListOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return NullBulk()
	}
	s, popped := src.ListPopBack()
	if !popped {
		return NullBulk()
	}
	if src.ListLen() == 0 {
		ctx.DB().Delete(args[1])
	} else {
		ctx.DB().SignalKeyModified(args[1])
	}
	dst, derr := getListOrCreate(ctx, args[2])
	if derr != nil {
		return ErrReply(derr)
	}
	dst.ListPushFront(s, ctx.Server.Thresholds)
	ctx.DB().SignalKeyModified(args[2])
	return Bulk(s)
}
