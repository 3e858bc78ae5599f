package value

import (
	"strconv"

	"github.com/keydcore/keyd/internal/encoding"
)

// maybeUpgradeZSet converts a listpack-encoded sorted set into the
// skiplist+dict pair once entry count or element size crosses threshold.
func (v *Value) maybeUpgradeZSet(t Thresholds) {
	if v.Encoding != EncListpack {
		return
	}
	if v.LP.Len()/2 > t.ZSetMaxListpackEntries || v.LP.MaxElementSize() > t.ZSetMaxListpackValue {
		zs := encoding.NewSkipList()
		all := v.LP.All()
		for i := 0; i+1 < len(all); i += 2 {
			score, _ := strconv.ParseFloat(all[i+1], 64)
			zs.Insert(all[i], score)
		}
		v.ZS = zs
		v.LP = nil
		v.Encoding = EncSkiplist
	}
}

// ZAdd inserts or updates member's score. Returns (added, changed).
func (v *Value) ZAdd(member string, score float64, t Thresholds) (added, changed bool) {
	if v.Encoding == EncSkiplist {
		before, existed := v.ZS.Score(member)
		v.ZS.Insert(member, score)
		return !existed, !existed || before != score
	}
	all := v.LP.All()
	for i := 0; i+1 < len(all); i += 2 {
		if all[i] == member {
			old, _ := strconv.ParseFloat(all[i+1], 64)
			v.LP.Set(i+1, formatScore(score))
			v.maybeUpgradeZSet(t)
			return false, old != score
		}
	}
	v.LP.PushBack(member)
	v.LP.PushBack(formatScore(score))
	v.maybeUpgradeZSet(t)
	return true, true
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (v *Value) ZScore(member string) (float64, bool) {
	if v.Encoding == EncSkiplist {
		return v.ZS.Score(member)
	}
	all := v.LP.All()
	for i := 0; i+1 < len(all); i += 2 {
		if all[i] == member {
			f, _ := strconv.ParseFloat(all[i+1], 64)
			return f, true
		}
	}
	return 0, false
}

func (v *Value) ZRem(member string) bool {
	if v.Encoding == EncSkiplist {
		return v.ZS.Remove(member)
	}
	all := v.LP.All()
	for i := 0; i+1 < len(all); i += 2 {
		if all[i] == member {
			rebuilt := buildListpack(append(append([]string{}, all[:i]...), all[i+2:]...))
			v.LP = rebuilt
			return true
		}
	}
	return false
}

func (v *Value) ZCard() int {
	if v.Encoding == EncSkiplist {
		return v.ZS.Len()
	}
	return v.LP.Len() / 2
}

// ZMemberScore mirrors encoding.ZMember so command handlers don't need to
// import the encoding package directly.
type ZMemberScore struct {
	Member string
	Score  float64
}

func (v *Value) zsetAsSorted() []ZMemberScore {
	if v.Encoding == EncSkiplist {
		all := v.ZS.All()
		out := make([]ZMemberScore, len(all))
		for i, m := range all {
			out[i] = ZMemberScore{m.Member, m.Score}
		}
		return out
	}
	all := v.LP.All()
	out := make([]ZMemberScore, 0, len(all)/2)
	for i := 0; i+1 < len(all); i += 2 {
		f, _ := strconv.ParseFloat(all[i+1], 64)
		out = append(out, ZMemberScore{all[i], f})
	}
	sortZMembers(out)
	return out
}

func sortZMembers(out []ZMemberScore) {
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			if less(out[j-1].Score, out[j-1].Member, out[j].Score, out[j].Member) {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
}

func less(score1 float64, member1 string, score2 float64, member2 string) bool {
	if score1 != score2 {
		return score1 < score2
	}
	return member1 < member2
}

func (v *Value) ZRange(start, stop int) []ZMemberScore {
	if v.Encoding == EncSkiplist {
		all := v.ZS.RangeByRank(start, stop)
		out := make([]ZMemberScore, len(all))
		for i, m := range all {
			out[i] = ZMemberScore{m.Member, m.Score}
		}
		return out
	}
	all := v.zsetAsSorted()
	n := len(all)
	start, stop = clampRange(start, stop, n)
	if start > stop || n == 0 {
		return nil
	}
	return append([]ZMemberScore(nil), all[start:stop+1]...)
}

func (v *Value) ZRangeByScore(min, max float64, minExclusive, maxExclusive bool) []ZMemberScore {
	if v.Encoding == EncSkiplist {
		all := v.ZS.RangeByScore(min, max, minExclusive, maxExclusive)
		out := make([]ZMemberScore, len(all))
		for i, m := range all {
			out[i] = ZMemberScore{m.Member, m.Score}
		}
		return out
	}
	var out []ZMemberScore
	for _, m := range v.zsetAsSorted() {
		if scoreBelow(m.Score, min, minExclusive) {
			continue
		}
		if !scoreWithinMax(m.Score, max, maxExclusive) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func scoreBelow(score, min float64, exclusive bool) bool {
	if exclusive {
		return score <= min
	}
	return score < min
}

func scoreWithinMax(score, max float64, exclusive bool) bool {
	if exclusive {
		return score < max
	}
	return score <= max
}

// ZLexBound mirrors encoding.LexBound so command handlers parsing
// ZRANGEBYLEX-style endpoints don't need to import internal/encoding
// directly.
type ZLexBound = encoding.LexBound

// ParseLexBound parses a ZRANGEBYLEX-style endpoint: "-" and "+" select
// the unbounded ends, a "[" prefix is inclusive, a "(" prefix is
// exclusive.
func ParseLexBound(s string) (ZLexBound, bool) {
	switch {
	case s == "-":
		return ZLexBound{NegInfinity: true}, true
	case s == "+":
		return ZLexBound{PosInfinity: true}, true
	case len(s) > 0 && s[0] == '[':
		return ZLexBound{Value: s[1:], Inclusive: true}, true
	case len(s) > 0 && s[0] == '(':
		return ZLexBound{Value: s[1:], Inclusive: false}, true
	default:
		return ZLexBound{}, false
	}
}

// ZRangeByLex returns members within [min,max] in (score, member) order,
// which is lexicographic member order (per Redis's own ZRANGEBYLEX
// contract) only when every member shares the same score.
func (v *Value) ZRangeByLex(min, max ZLexBound) []ZMemberScore {
	if v.Encoding == EncSkiplist {
		all := v.ZS.RangeByLex(min, max)
		out := make([]ZMemberScore, len(all))
		for i, m := range all {
			out[i] = ZMemberScore{m.Member, m.Score}
		}
		return out
	}
	var out []ZMemberScore
	for _, m := range v.zsetAsSorted() {
		if min.Below(m.Member) || max.Above(m.Member) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (v *Value) ZRank(member string) (int, bool) {
	all := v.zsetAsSorted()
	for i, m := range all {
		if m.Member == member {
			return i, true
		}
	}
	return 0, false
}
