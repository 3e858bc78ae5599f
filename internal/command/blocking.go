package command

import "strconv"

// Blocking handlers never actually block the command loop:
// they either satisfy themselves immediately against the current keyspace,
// or return a ReplyBlock telling internal/server which keys to park the
// client on and what to re-run once one of them gains data.

func (d *Dispatcher) registerBlocking() {
	d.register("BLPOP", 3, true, cmdBLPop)
	d.register("BRPOP", 3, true, cmdBRPop)
	d.register("BRPOPLPUSH", 4, true, cmdBRPopLPush)
	d.register("BZPOPMIN", 3, true, cmdBZPopMin)
	d.register("BZPOPMAX", 3, true, cmdBZPopMax)
}

func parseBlockTimeout(ctx *Context, s string) (int64, *CmdError) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs < 0 {
		return 0, newErr("ERR", "timeout is not a float or out of range")
	}
	if secs == 0 {
		return 0, nil
	}
	return ctx.NowMS + int64(secs*1000), nil
}

func bListPopHelper(ctx *Context, args []string, front bool) Reply {
	keys := args[1 : len(args)-1]
	deadline, terr := parseBlockTimeout(ctx, args[len(args)-1])
	if terr != nil {
		return ErrReply(terr)
	}
	for _, key := range keys {
		v, ok, err := getListOrNil(ctx, key)
		if err != nil {
			return ErrReply(err)
		}
		if !ok {
			continue
		}
		var s string
		var popped bool
		if front {
			s, popped = v.ListPopFront()
		} else {
			s, popped = v.ListPopBack()
		}
		if !popped {
			continue
		}
		if v.ListLen() == 0 {
			ctx.DB().Delete(key)
		} else {
			ctx.DB().SignalKeyModified(key)
		}
		return Array(Bulk(key), Bulk(s))
	}
	return Block(keys, deadline, args)
}

func cmdBLPop(ctx *Context, args []string) Reply { return bListPopHelper(ctx, args, true) }
func cmdBRPop(ctx *Context, args []string) Reply { return bListPopHelper(ctx, args, false) }

func cmdBRPopLPush(ctx *Context, args []string) Reply {
	deadline, terr := parseBlockTimeout(ctx, args[3])
	if terr != nil {
		return ErrReply(terr)
	}
	src, ok, err := getListOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Block([]string{args[1]}, deadline, args)
	}
	s, popped := src.ListPopBack()
	if !popped {
		return Block([]string{args[1]}, deadline, args)
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

func bZSetPopHelper(ctx *Context, args []string, fromMax bool) Reply {
	keys := args[1 : len(args)-1]
	deadline, terr := parseBlockTimeout(ctx, args[len(args)-1])
	if terr != nil {
		return ErrReply(terr)
	}
	for _, key := range keys {
		v, ok, err := getZSetOrNil(ctx, key)
		if err != nil {
			return ErrReply(err)
		}
		if !ok || v.ZCard() == 0 {
			continue
		}
		all := v.ZRange(0, -1)
		m := all[0]
		if fromMax {
			m = all[len(all)-1]
		}
		v.ZRem(m.Member)
		if v.ZCard() == 0 {
			ctx.DB().Delete(key)
		} else {
			ctx.DB().SignalKeyModified(key)
		}
		return Array(Bulk(key), Bulk(m.Member), Double(m.Score))
	}
	return Block(keys, deadline, args)
}

func cmdBZPopMin(ctx *Context, args []string) Reply { return bZSetPopHelper(ctx, args, false) }
func cmdBZPopMax(ctx *Context, args []string) Reply { return bZSetPopHelper(ctx, args, true) }
