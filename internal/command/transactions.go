package command

func (d *Dispatcher) registerTransactions() {
	d.register("MULTI", 1, false, cmdMulti)
	d.register("EXEC", 1, false, cmdExec)
	d.register("DISCARD", 1, false, cmdDiscard)
	d.register("WATCH", 2, false, cmdWatch)
	d.register("UNWATCH", 1, false, cmdUnwatch)
}

func cmdMulti(ctx *Context, args []string) Reply {
	if ctx.Client.InMulti {
		return ErrReply(newErr("ERR", "MULTI calls can not be nested"))
	}
	ctx.Client.BeginMulti()
	return OK()
}

func cmdDiscard(ctx *Context, args []string) Reply {
	if !ctx.Client.InMulti {
		return ErrReply(newErr("ERR", "DISCARD without MULTI"))
	}
	ctx.Client.ResetTransaction()
	return OK()
}

func cmdWatch(ctx *Context, args []string) Reply {
	if ctx.Client.InMulti {
		return ErrReply(errWatchInsideMulti())
	}
	for _, key := range args[1:] {
		ctx.Client.Watch(ctx.Client.DB, key, ctx.DB().KeyEpoch(key))
	}
	return OK()
}

func cmdUnwatch(ctx *Context, args []string) Reply {
	ctx.Client.Unwatch()
	return OK()
}

// cmdExec replays the queued commands in order, aborting without running
// any of them if a queuing-time error or a watched-key write made the
// transaction dirty.
func cmdExec(ctx *Context, args []string) Reply {
	if !ctx.Client.InMulti {
		return ErrReply(newErr("ERR", "EXEC without MULTI"))
	}
	if ctx.Client.QueueError {
		ctx.Client.ResetTransaction()
		return ErrReply(errExecAbort())
	}
	ctx.Client.CheckWatches(func(db int, key string) uint64 {
		return ctx.Server.Databases[db].KeyEpoch(key)
	})
	if ctx.Client.DirtyCAS {
		ctx.Client.ResetTransaction()
		return NullArray()
	}

	queue := ctx.Client.Queue
	ctx.Client.ResetTransaction()

	out := make([]Reply, 0, len(queue))
	for _, q := range queue {
		out = append(out, ctx.Dispatcher.Execute(ctx, q.Args))
	}
	return ArrayOf(out)
}
