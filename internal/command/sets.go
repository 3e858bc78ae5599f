package command

import (
	"math/rand"

	"github.com/keydcore/keyd/internal/store"
	"github.com/keydcore/keyd/internal/value"
)

func (d *Dispatcher) registerSets() {
	d.register("SADD", 3, true, cmdSAdd)
	d.register("SREM", 3, true, cmdSRem)
	d.register("SISMEMBER", 3, false, cmdSIsMember)
	d.register("SCARD", 2, false, cmdSCard)
	d.register("SMOVE", 4, true, cmdSMove)
	d.register("SPOP", 2, true, cmdSPop)
	d.register("SRANDMEMBER", 2, false, cmdSRandMember)
	d.register("SINTER", 2, false, cmdSInter)
	d.register("SINTERSTORE", 3, true, cmdSInterStore)
	d.register("SUNION", 2, false, cmdSUnion)
	d.register("SUNIONSTORE", 3, true, cmdSUnionStore)
	d.register("SDIFF", 2, false, cmdSDiff)
	d.register("SDIFFSTORE", 3, true, cmdSDiffStore)
	d.register("SSCAN", 3, false, cmdSScan)
}

func getSetOrNil(ctx *Context, key string) (*value.Value, bool, *CmdError) {
	v, ok := ctx.DB().Get(key, store.IntentWrite, ctx.NowMS)
	if !ok {
		return nil, false, nil
	}
	if v.Type != value.TypeSet {
		return nil, false, errWrongType()
	}
	return v, true, nil
}

func getSetOrCreate(ctx *Context, key string) (*value.Value, *CmdError) {
	v, ok, err := getSetOrNil(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		v = value.NewSet()
		ctx.DB().Set(key, v, false)
	}
	return v, nil
}

func cmdSAdd(ctx *Context, args []string) Reply {
	v, err := getSetOrCreate(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	added := int64(0)
	for _, m := range args[2:] {
		if v.SetAdd(m, ctx.Server.Thresholds) {
			added++
		}
	}
	if added > 0 {
		ctx.DB().SignalKeyModified(args[1])
	}
	return Int(added)
}

func cmdSRem(ctx *Context, args []string) Reply {
	v, ok, err := getSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	removed := int64(0)
	for _, m := range args[2:] {
		if v.SetRemove(m) {
			removed++
		}
	}
	if v.SetCard() == 0 {
		ctx.DB().Delete(args[1])
	} else if removed > 0 {
		ctx.DB().SignalKeyModified(args[1])
	}
	return Int(removed)
}

func cmdSIsMember(ctx *Context, args []string) Reply {
	v, ok, err := getSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	return Bool(v.SetIsMember(args[2]))
}

func cmdSCard(ctx *Context, args []string) Reply {
	v, ok, err := getSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	return Int(int64(v.SetCard()))
}

func cmdSMove(ctx *Context, args []string) Reply {
	src, ok, err := getSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok || !src.SetIsMember(args[3]) {
		return Int(0)
	}
	dst, derr := getSetOrCreate(ctx, args[2])
	if derr != nil {
		return ErrReply(derr)
	}
	src.SetRemove(args[3])
	dst.SetAdd(args[3], ctx.Server.Thresholds)
	if src.SetCard() == 0 {
		ctx.DB().Delete(args[1])
	} else {
		ctx.DB().SignalKeyModified(args[1])
	}
	ctx.DB().SignalKeyModified(args[2])
	return Int(1)
}

func cmdSPop(ctx *Context, args []string) Reply {
	v, ok, err := getSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return NullBulk()
	}
	m, found := v.SetRandomMember(rand.Intn)
	if !found {
		return NullBulk()
	}
	v.SetRemove(m)
	if v.SetCard() == 0 {
		ctx.DB().Delete(args[1])
	} else {
		ctx.DB().SignalKeyModified(args[1])
	}
	return Bulk(m)
}

func cmdSRandMember(ctx *Context, args []string) Reply {
	v, ok, err := getSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return NullBulk()
	}
	m, found := v.SetRandomMember(rand.Intn)
	if !found {
		return NullBulk()
	}
	return Bulk(m)
}

func setOp(ctx *Context, keys []string, op func(a, b map[string]struct{}) map[string]struct{}) (map[string]struct{}, *CmdError) {
	var acc map[string]struct{}
	for i, k := range keys {
		v, ok, err := getSetOrNil(ctx, k)
		if err != nil {
			return nil, err
		}
		members := map[string]struct{}{}
		if ok {
			for _, m := range v.SetMembers() {
				members[m] = struct{}{}
			}
		}
		if i == 0 {
			acc = members
			continue
		}
		acc = op(acc, members)
	}
	return acc, nil
}

func interOp(a, b map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for m := range a {
		if _, ok := b[m]; ok {
			out[m] = struct{}{}
		}
	}
	return out
}

func unionOp(a, b map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for m := range a {
		out[m] = struct{}{}
	}
	for m := range b {
		out[m] = struct{}{}
	}
	return out
}

func diffOp(a, b map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for m := range a {
		if _, ok := b[m]; !ok {
			out[m] = struct{}{}
		}
	}
	return out
}

func setToSlice(s map[string]struct{}) []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	return out
}

func cmdSInter(ctx *Context, args []string) Reply {
	res, err := setOp(ctx, args[1:], interOp)
	if err != nil {
		return ErrReply(err)
	}
	return BulkStrings(setToSlice(res))
}

func cmdSUnion(ctx *Context, args []string) Reply {
	res, err := setOp(ctx, args[1:], unionOp)
	if err != nil {
		return ErrReply(err)
	}
	return BulkStrings(setToSlice(res))
}

func cmdSDiff(ctx *Context, args []string) Reply {
	res, err := setOp(ctx, args[1:], diffOp)
	if err != nil {
		return ErrReply(err)
	}
	return BulkStrings(setToSlice(res))
}

func storeSetResult(ctx *Context, dest string, members []string) Reply {
	if len(members) == 0 {
		ctx.DB().Delete(dest)
		return Int(0)
	}
	v := value.NewSet()
	for _, m := range members {
		v.SetAdd(m, ctx.Server.Thresholds)
	}
	ctx.DB().Set(dest, v, false)
	return Int(int64(len(members)))
}

func cmdSInterStore(ctx *Context, args []string) Reply {
	res, err := setOp(ctx, args[2:], interOp)
	if err != nil {
		return ErrReply(err)
	}
	return storeSetResult(ctx, args[1], setToSlice(res))
}

func cmdSUnionStore(ctx *Context, args []string) Reply {
	res, err := setOp(ctx, args[2:], unionOp)
	if err != nil {
		return ErrReply(err)
	}
	return storeSetResult(ctx, args[1], setToSlice(res))
}

func cmdSDiffStore(ctx *Context, args []string) Reply {
	res, err := setOp(ctx, args[2:], diffOp)
	if err != nil {
		return ErrReply(err)
	}
	return storeSetResult(ctx, args[1], setToSlice(res))
}

func cmdSScan(ctx *Context, args []string) Reply {
	v, ok, err := getSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Array(Bulk("0"), ArrayOf(nil))
	}
	return Array(Bulk("0"), BulkStrings(v.SetMembers()))
}
