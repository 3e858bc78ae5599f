package command

import (
	"math"
	"strconv"
	"strings"

	"github.com/keydcore/keyd/internal/store"
	"github.com/keydcore/keyd/internal/value"
)

func (d *Dispatcher) registerZSets() {
	d.register("ZADD", 4, true, cmdZAdd)
	d.register("ZREM", 3, true, cmdZRem)
	d.register("ZSCORE", 3, false, cmdZScore)
	d.register("ZRANK", 3, false, cmdZRank)
	d.register("ZREVRANK", 3, false, cmdZRevRank)
	d.register("ZCARD", 2, false, cmdZCard)
	d.register("ZCOUNT", 4, false, cmdZCount)
	d.register("ZRANGE", 4, false, cmdZRange)
	d.register("ZREVRANGE", 4, false, cmdZRevRange)
	d.register("ZRANGEBYSCORE", 4, false, cmdZRangeByScore)
	d.register("ZLEXCOUNT", 4, false, cmdZLexCount)
	d.register("ZRANGEBYLEX", 4, false, cmdZRangeByLex)
	d.register("ZREMRANGEBYLEX", 4, true, cmdZRemRangeByLex)
	d.register("ZREMRANGEBYRANK", 4, true, cmdZRemRangeByRank)
	d.register("ZREMRANGEBYSCORE", 4, true, cmdZRemRangeByScore)
	d.register("ZPOPMIN", 2, true, cmdZPopMin)
	d.register("ZPOPMAX", 2, true, cmdZPopMax)
	d.register("ZSCAN", 3, false, cmdZScan)
	d.register("ZINCRBY", 4, true, cmdZIncrBy)
	d.register("ZUNIONSTORE", 4, true, cmdZUnionStore)
	d.register("ZINTERSTORE", 4, true, cmdZInterStore)
}

func getZSetOrNil(ctx *Context, key string) (*value.Value, bool, *CmdError) {
	v, ok := ctx.DB().Get(key, store.IntentWrite, ctx.NowMS)
	if !ok {
		return nil, false, nil
	}
	if v.Type != value.TypeZSet {
		return nil, false, errWrongType()
	}
	return v, true, nil
}

func getZSetOrCreate(ctx *Context, key string) (*value.Value, *CmdError) {
	v, ok, err := getZSetOrNil(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		v = value.NewZSet()
		ctx.DB().Set(key, v, false)
	}
	return v, nil
}

// cmdZAdd supports the NX|XX|CH|INCR flags.
func cmdZAdd(ctx *Context, args []string) Reply {
	i := 2
	var nx, xx, ch, incr bool
	for i < len(args) {
		switch strings.ToUpper(args[i]) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "CH":
			ch = true
		case "INCR":
			incr = true
		default:
			goto pairs
		}
		i++
	}
pairs:
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return ErrReply(errWrongArgs("zadd"))
	}
	v, err := getZSetOrCreate(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}

	added, changed := int64(0), int64(0)
	var lastScore float64
	for p := 0; p < len(rest); p += 2 {
		score, serr := strconv.ParseFloat(rest[p], 64)
		if serr != nil {
			return ErrReply(errNotFloat())
		}
		member := rest[p+1]
		_, exists := v.ZScore(member)
		if nx && exists {
			continue
		}
		if xx && !exists {
			continue
		}
		if incr {
			if exists {
				cur, _ := v.ZScore(member)
				score += cur
			}
		}
		wasAdded, wasChanged := v.ZAdd(member, score, ctx.Server.Thresholds)
		if wasAdded {
			added++
		}
		if wasChanged {
			changed++
		}
		lastScore = score
	}
	ctx.DB().SignalKeyModified(args[1])
	if incr {
		return Double(lastScore)
	}
	if ch {
		return Int(changed)
	}
	return Int(added)
}

func cmdZRem(ctx *Context, args []string) Reply {
	v, ok, err := getZSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	removed := int64(0)
	for _, m := range args[2:] {
		if v.ZRem(m) {
			removed++
		}
	}
	if v.ZCard() == 0 {
		ctx.DB().Delete(args[1])
	} else if removed > 0 {
		ctx.DB().SignalKeyModified(args[1])
	}
	return Int(removed)
}

func cmdZScore(ctx *Context, args []string) Reply {
	v, ok, err := getZSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return NullBulk()
	}
	s, found := v.ZScore(args[2])
	if !found {
		return NullBulk()
	}
	return Double(s)
}

func zRankHelper(ctx *Context, key, member string, reverse bool) Reply {
	v, ok, err := getZSetOrNil(ctx, key)
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return NullBulk()
	}
	rank, found := v.ZRank(member)
	if !found {
		return NullBulk()
	}
	if reverse {
		rank = v.ZCard() - 1 - rank
	}
	return Int(int64(rank))
}

func cmdZRank(ctx *Context, args []string) Reply    { return zRankHelper(ctx, args[1], args[2], false) }
func cmdZRevRank(ctx *Context, args []string) Reply { return zRankHelper(ctx, args[1], args[2], true) }

func cmdZCard(ctx *Context, args []string) Reply {
	v, ok, err := getZSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	return Int(int64(v.ZCard()))
}

func cmdZCount(ctx *Context, args []string) Reply {
	v, ok, err := getZSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	min, max, minExcl, maxExcl, perr := parseScoreRange(args[2], args[3])
	if perr != nil {
		return ErrReply(perr)
	}
	return Int(int64(len(v.ZRangeByScore(min, max, minExcl, maxExcl))))
}

func parseScoreRange(minArg, maxArg string) (min, max float64, minExcl, maxExcl bool, err *CmdError) {
	minStr, maxStr := minArg, maxArg
	if strings.HasPrefix(minStr, "(") {
		minExcl = true
		minStr = minStr[1:]
	}
	if strings.HasPrefix(maxStr, "(") {
		maxExcl = true
		maxStr = maxStr[1:]
	}
	var perr1, perr2 error
	min, perr1 = parseScoreBound(minStr)
	max, perr2 = parseScoreBound(maxStr)
	if perr1 != nil || perr2 != nil {
		return 0, 0, false, false, errNotFloat()
	}
	return min, max, minExcl, maxExcl, nil
}

func parseScoreBound(s string) (float64, error) {
	switch s {
	case "-inf":
		return math.Inf(-1), nil
	case "+inf", "inf":
		return math.Inf(1), nil
	default:
		return strconv.ParseFloat(s, 64)
	}
}

func membersToReply(ms []value.ZMemberScore, withScores bool) Reply {
	if !withScores {
		out := make([]string, len(ms))
		for i, m := range ms {
			out[i] = m.Member
		}
		return BulkStrings(out)
	}
	out := make([]Reply, 0, len(ms)*2)
	for _, m := range ms {
		out = append(out, Bulk(m.Member), Double(m.Score))
	}
	return ArrayOf(out)
}

func hasWithScores(args []string) bool {
	for _, a := range args {
		if strings.EqualFold(a, "WITHSCORES") {
			return true
		}
	}
	return false
}

func cmdZRange(ctx *Context, args []string) Reply { return zRangeHelper(ctx, args, false) }
func cmdZRevRange(ctx *Context, args []string) Reply { return zRangeHelper(ctx, args, true) }

func zRangeHelper(ctx *Context, args []string, reverse bool) Reply {
	v, ok, err := getZSetOrNil(ctx, args[1])
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
	if reverse {
		n := v.ZCard()
		if start < 0 {
			start += n
		}
		if stop < 0 {
			stop += n
		}
		start, stop = n-1-stop, n-1-start
		if start < 0 {
			start = 0
		}
		if stop < 0 {
			return ArrayOf(nil)
		}
	}
	ms := v.ZRange(start, stop)
	if reverse {
		for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
			ms[i], ms[j] = ms[j], ms[i]
		}
	}
	return membersToReply(ms, hasWithScores(args[4:]))
}

func cmdZRangeByScore(ctx *Context, args []string) Reply {
	v, ok, err := getZSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return ArrayOf(nil)
	}
	min, max, minExcl, maxExcl, perr := parseScoreRange(args[2], args[3])
	if perr != nil {
		return ErrReply(perr)
	}
	ms := v.ZRangeByScore(min, max, minExcl, maxExcl)
	return membersToReply(ms, hasWithScores(args[4:]))
}

func parseLexRange(minArg, maxArg string) (min, max value.ZLexBound, err *CmdError) {
	min, ok1 := value.ParseLexBound(minArg)
	max, ok2 := value.ParseLexBound(maxArg)
	if !ok1 || !ok2 {
		return value.ZLexBound{}, value.ZLexBound{}, newErr("ERR", "min or max not valid string range item")
	}
	return min, max, nil
}

func cmdZLexCount(ctx *Context, args []string) Reply {
	v, ok, err := getZSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	min, max, perr := parseLexRange(args[2], args[3])
	if perr != nil {
		return ErrReply(perr)
	}
	return Int(int64(len(v.ZRangeByLex(min, max))))
}

func cmdZRangeByLex(ctx *Context, args []string) Reply {
	v, ok, err := getZSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return ArrayOf(nil)
	}
	min, max, perr := parseLexRange(args[2], args[3])
	if perr != nil {
		return ErrReply(perr)
	}
	ms := v.ZRangeByLex(min, max)
	if offset, count, ok := parseLexLimit(args[4:]); ok {
		ms = applyLimit(ms, offset, count)
	}
	return membersToReply(ms, false)
}

// parseLexLimit looks for a trailing "LIMIT offset count" clause, the only
// option ZRANGEBYLEX accepts.
func parseLexLimit(rest []string) (offset, count int, ok bool) {
	if len(rest) != 3 || !strings.EqualFold(rest[0], "LIMIT") {
		return 0, 0, false
	}
	offset, e1 := strconv.Atoi(rest[1])
	count, e2 := strconv.Atoi(rest[2])
	if e1 != nil || e2 != nil {
		return 0, 0, false
	}
	return offset, count, true
}

func applyLimit(ms []value.ZMemberScore, offset, count int) []value.ZMemberScore {
	if offset < 0 || offset >= len(ms) {
		return nil
	}
	ms = ms[offset:]
	if count >= 0 && count < len(ms) {
		ms = ms[:count]
	}
	return ms
}

func cmdZRemRangeByLex(ctx *Context, args []string) Reply {
	v, ok, err := getZSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	min, max, perr := parseLexRange(args[2], args[3])
	if perr != nil {
		return ErrReply(perr)
	}
	ms := v.ZRangeByLex(min, max)
	for _, m := range ms {
		v.ZRem(m.Member)
	}
	if v.ZCard() == 0 {
		ctx.DB().Delete(args[1])
	} else if len(ms) > 0 {
		ctx.DB().SignalKeyModified(args[1])
	}
	return Int(int64(len(ms)))
}

func cmdZRemRangeByRank(ctx *Context, args []string) Reply {
	v, ok, err := getZSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	start, e1 := strconv.Atoi(args[2])
	stop, e2 := strconv.Atoi(args[3])
	if e1 != nil || e2 != nil {
		return ErrReply(errNotInt())
	}
	ms := v.ZRange(start, stop)
	for _, m := range ms {
		v.ZRem(m.Member)
	}
	if v.ZCard() == 0 {
		ctx.DB().Delete(args[1])
	} else if len(ms) > 0 {
		ctx.DB().SignalKeyModified(args[1])
	}
	return Int(int64(len(ms)))
}

func cmdZRemRangeByScore(ctx *Context, args []string) Reply {
	v, ok, err := getZSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Int(0)
	}
	min, max, minExcl, maxExcl, perr := parseScoreRange(args[2], args[3])
	if perr != nil {
		return ErrReply(perr)
	}
	ms := v.ZRangeByScore(min, max, minExcl, maxExcl)
	for _, m := range ms {
		v.ZRem(m.Member)
	}
	if v.ZCard() == 0 {
		ctx.DB().Delete(args[1])
	} else if len(ms) > 0 {
		ctx.DB().SignalKeyModified(args[1])
	}
	return Int(int64(len(ms)))
}

func zPopHelper(ctx *Context, key string, fromMax bool) Reply {
	v, ok, err := getZSetOrNil(ctx, key)
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return ArrayOf(nil)
	}
	all := v.ZRange(0, -1)
	if len(all) == 0 {
		return ArrayOf(nil)
	}
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
	return Array(Bulk(m.Member), Double(m.Score))
}

func cmdZPopMin(ctx *Context, args []string) Reply { return zPopHelper(ctx, args[1], false) }
func cmdZPopMax(ctx *Context, args []string) Reply { return zPopHelper(ctx, args[1], true) }

func cmdZScan(ctx *Context, args []string) Reply {
	v, ok, err := getZSetOrNil(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	if !ok {
		return Array(Bulk("0"), ArrayOf(nil))
	}
	return Array(Bulk("0"), membersToReply(v.ZRange(0, -1), true))
}

func cmdZIncrBy(ctx *Context, args []string) Reply {
	delta, derr := strconv.ParseFloat(args[2], 64)
	if derr != nil {
		return ErrReply(errNotFloat())
	}
	v, err := getZSetOrCreate(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	cur, _ := v.ZScore(args[3])
	newScore := cur + delta
	v.ZAdd(args[3], newScore, ctx.Server.Thresholds)
	ctx.DB().SignalKeyModified(args[1])
	return Double(newScore)
}

func zStoreHelper(ctx *Context, dest string, keys []string, combine func(a, b map[string]float64) map[string]float64) Reply {
	var acc map[string]float64
	for i, k := range keys {
		v, ok, err := getZSetOrNil(ctx, k)
		if err != nil {
			return ErrReply(err)
		}
		cur := map[string]float64{}
		if ok {
			for _, m := range v.ZRange(0, -1) {
				cur[m.Member] = m.Score
			}
		}
		if i == 0 {
			acc = cur
			continue
		}
		acc = combine(acc, cur)
	}
	out := value.NewZSet()
	for m, s := range acc {
		out.ZAdd(m, s, ctx.Server.Thresholds)
	}
	if out.ZCard() == 0 {
		ctx.DB().Delete(dest)
	} else {
		ctx.DB().Set(dest, out, false)
	}
	return Int(int64(out.ZCard()))
}

func zUnion(a, b map[string]float64) map[string]float64 {
	out := map[string]float64{}
	for m, s := range a {
		out[m] = s
	}
	for m, s := range b {
		out[m] += s
	}
	return out
}

func zInter(a, b map[string]float64) map[string]float64 {
	out := map[string]float64{}
	for m, s := range a {
		if bs, ok := b[m]; ok {
			out[m] = s + bs
		}
	}
	return out
}

func cmdZUnionStore(ctx *Context, args []string) Reply {
	n, err := strconv.Atoi(args[2])
	if err != nil || n <= 0 || len(args) < 3+n {
		return ErrReply(errSyntax())
	}
	return zStoreHelper(ctx, args[1], args[3:3+n], zUnion)
}

func cmdZInterStore(ctx *Context, args []string) Reply {
	n, err := strconv.Atoi(args[2])
	if err != nil || n <= 0 || len(args) < 3+n {
		return ErrReply(errSyntax())
	}
	return zStoreHelper(ctx, args[1], args[3:3+n], zInter)
}
