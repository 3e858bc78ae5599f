package command

import (
	"strconv"
	"strings"

	"github.com/keydcore/keyd/internal/store"
	"github.com/keydcore/keyd/internal/value"
)

func (d *Dispatcher) registerStrings() {
	d.register("APPEND", 3, true, cmdAppend)
	d.register("GETSET", 3, true, cmdGetSet)
	d.register("MGET", 2, false, cmdMGet)
	d.register("MSET", 3, true, cmdMSet)
	d.register("MSETNX", 3, true, cmdMSetNX)
	d.register("INCR", 2, true, cmdIncr)
	d.register("DECR", 2, true, cmdDecr)
	d.register("INCRBY", 3, true, cmdIncrBy)
	d.register("DECRBY", 3, true, cmdDecrBy)
	d.register("INCRBYFLOAT", 3, true, cmdIncrByFloat)
	d.register("STRLEN", 2, false, cmdStrlen)
	d.register("GETRANGE", 4, false, cmdGetRange)
	d.register("SETRANGE", 4, true, cmdSetRange)
	d.register("GETBIT", 3, false, cmdGetBit)
	d.register("SETBIT", 4, true, cmdSetBit)
	d.register("BITCOUNT", 2, false, cmdBitCount)
	d.register("BITPOS", 3, false, cmdBitPos)
	d.register("BITOP", 4, true, cmdBitOp)
}

func getStringOrEmpty(ctx *Context, key string) (*value.Value, string, bool, *CmdError) {
	v, ok := ctx.DB().Get(key, store.IntentWrite, ctx.NowMS)
	if !ok {
		return nil, "", false, nil
	}
	if v.Type != value.TypeString {
		return nil, "", false, errWrongType()
	}
	return v, v.Str, true, nil
}

func cmdAppend(ctx *Context, args []string) Reply {
	_, cur, existed, err := getStringOrEmpty(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	newVal := cur + args[2]
	ctx.DB().Set(args[1], value.NewString(newVal), true)
	if !existed {
		ctx.DB().ClearExpiration(args[1])
	}
	return Int(int64(len(newVal)))
}

func cmdGetSet(ctx *Context, args []string) Reply {
	_, cur, existed, err := getStringOrEmpty(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	ctx.DB().Set(args[1], value.NewString(args[2]), false)
	if !existed {
		return NullBulk()
	}
	return Bulk(cur)
}

func cmdMGet(ctx *Context, args []string) Reply {
	out := make([]Reply, 0, len(args)-1)
	for _, k := range args[1:] {
		v, ok := ctx.DB().Get(k, store.IntentRead, ctx.NowMS)
		if !ok || v.Type != value.TypeString {
			out = append(out, NullBulk())
			continue
		}
		out = append(out, Bulk(v.Str))
	}
	return ArrayOf(out)
}

func cmdMSet(ctx *Context, args []string) Reply {
	if (len(args)-1)%2 != 0 {
		return ErrReply(errWrongArgs("mset"))
	}
	for i := 1; i < len(args); i += 2 {
		ctx.DB().Set(args[i], value.NewString(args[i+1]), false)
	}
	return OK()
}

func cmdMSetNX(ctx *Context, args []string) Reply {
	if (len(args)-1)%2 != 0 {
		return ErrReply(errWrongArgs("msetnx"))
	}
	for i := 1; i < len(args); i += 2 {
		if _, ok := ctx.DB().Get(args[i], store.IntentRead, ctx.NowMS); ok {
			return Int(0)
		}
	}
	for i := 1; i < len(args); i += 2 {
		ctx.DB().Set(args[i], value.NewString(args[i+1]), false)
	}
	return Int(1)
}

func incrByHelper(ctx *Context, key string, delta int64) Reply {
	_, cur, existed, err := getStringOrEmpty(ctx, key)
	if err != nil {
		return ErrReply(err)
	}
	n := int64(0)
	if existed {
		parsed, perr := strconv.ParseInt(cur, 10, 64)
		if perr != nil {
			return ErrReply(errNotInt())
		}
		n = parsed
	}
	n += delta
	ctx.DB().Set(key, value.NewString(strconv.FormatInt(n, 10)), true)
	return Int(n)
}

func cmdIncr(ctx *Context, args []string) Reply   { return incrByHelper(ctx, args[1], 1) }
func cmdDecr(ctx *Context, args []string) Reply   { return incrByHelper(ctx, args[1], -1) }

func cmdIncrBy(ctx *Context, args []string) Reply {
	n, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return ErrReply(errNotInt())
	}
	return incrByHelper(ctx, args[1], n)
}

func cmdDecrBy(ctx *Context, args []string) Reply {
	n, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return ErrReply(errNotInt())
	}
	return incrByHelper(ctx, args[1], -n)
}

func cmdIncrByFloat(ctx *Context, args []string) Reply {
	delta, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return ErrReply(errNotFloat())
	}
	_, cur, existed, cerr := getStringOrEmpty(ctx, args[1])
	if cerr != nil {
		return ErrReply(cerr)
	}
	f := 0.0
	if existed {
		parsed, perr := strconv.ParseFloat(cur, 64)
		if perr != nil {
			return ErrReply(errNotFloat())
		}
		f = parsed
	}
	f += delta
	s := strconv.FormatFloat(f, 'g', -1, 64)
	ctx.DB().Set(args[1], value.NewString(s), true)
	return Bulk(s)
}

func cmdStrlen(ctx *Context, args []string) Reply {
	_, cur, _, err := getStringOrEmpty(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	return Int(int64(len(cur)))
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		i = 0
	}
	if i > n {
		i = n
	}
	return i
}

func cmdGetRange(ctx *Context, args []string) Reply {
	_, cur, _, err := getStringOrEmpty(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	start, e1 := strconv.Atoi(args[2])
	stop, e2 := strconv.Atoi(args[3])
	if e1 != nil || e2 != nil {
		return ErrReply(errNotInt())
	}
	n := len(cur)
	if n == 0 {
		return Bulk("")
	}
	start = clampIndex(start, n)
	stopIdx := stop
	if stopIdx < 0 {
		stopIdx += n
	}
	stopIdx++
	if stopIdx > n {
		stopIdx = n
	}
	if start >= stopIdx {
		return Bulk("")
	}
	return Bulk(cur[start:stopIdx])
}

func cmdSetRange(ctx *Context, args []string) Reply {
	offset, err := strconv.Atoi(args[2])
	if err != nil || offset < 0 {
		return ErrReply(newErr("ERR", "offset is out of range"))
	}
	_, cur, _, verr := getStringOrEmpty(ctx, args[1])
	if verr != nil {
		return ErrReply(verr)
	}
	patch := args[3]
	buf := []byte(cur)
	need := offset + len(patch)
	if need > len(buf) {
		grown := make([]byte, need)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:], patch)
	ctx.DB().Set(args[1], value.NewString(string(buf)), true)
	return Int(int64(len(buf)))
}

func cmdGetBit(ctx *Context, args []string) Reply {
	_, cur, _, err := getStringOrEmpty(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	pos, perr := strconv.Atoi(args[2])
	if perr != nil || pos < 0 {
		return ErrReply(newErr("ERR", "bit offset is not an integer or out of range"))
	}
	byteIdx, bitIdx := pos/8, 7-pos%8
	if byteIdx >= len(cur) {
		return Int(0)
	}
	return Int(int64((cur[byteIdx] >> bitIdx) & 1))
}

func cmdSetBit(ctx *Context, args []string) Reply {
	pos, perr := strconv.Atoi(args[2])
	bit, berr := strconv.Atoi(args[3])
	if perr != nil || pos < 0 || berr != nil || (bit != 0 && bit != 1) {
		return ErrReply(newErr("ERR", "bit is not an integer or out of range"))
	}
	_, cur, _, err := getStringOrEmpty(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	buf := []byte(cur)
	byteIdx, bitIdx := pos/8, 7-pos%8
	if byteIdx >= len(buf) {
		grown := make([]byte, byteIdx+1)
		copy(grown, buf)
		buf = grown
	}
	old := (buf[byteIdx] >> bitIdx) & 1
	if bit == 1 {
		buf[byteIdx] |= 1 << bitIdx
	} else {
		buf[byteIdx] &^= 1 << bitIdx
	}
	ctx.DB().Set(args[1], value.NewString(string(buf)), true)
	return Int(int64(old))
}

func cmdBitCount(ctx *Context, args []string) Reply {
	_, cur, _, err := getStringOrEmpty(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	start, stop := 0, len(cur)-1
	if len(args) >= 4 {
		s, e1 := strconv.Atoi(args[2])
		e, e2 := strconv.Atoi(args[3])
		if e1 != nil || e2 != nil {
			return ErrReply(errNotInt())
		}
		start, stop = s, e
	}
	n := len(cur)
	if n == 0 {
		return Int(0)
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	count := int64(0)
	for i := start; i <= stop && i < n; i++ {
		b := cur[i]
		for b != 0 {
			count += int64(b & 1)
			b >>= 1
		}
	}
	return Int(count)
}

func cmdBitPos(ctx *Context, args []string) Reply {
	_, cur, _, err := getStringOrEmpty(ctx, args[1])
	if err != nil {
		return ErrReply(err)
	}
	want, werr := strconv.Atoi(args[2])
	if werr != nil || (want != 0 && want != 1) {
		return ErrReply(errNotInt())
	}
	for i, b := range []byte(cur) {
		for bit := 7; bit >= 0; bit-- {
			v := int((b >> uint(bit)) & 1)
			if v == want {
				return Int(int64(i*8 + (7 - bit)))
			}
		}
	}
	return Int(-1)
}

// cmdBitOp computes a bitwise AND/OR/XOR/NOT across one or more source
// strings and stores the result at destkey. NOT takes exactly one source
// key; the others take one or more. Shorter sources are treated as
// zero-padded up to the longest source's length.
func cmdBitOp(ctx *Context, args []string) Reply {
	op := strings.ToUpper(args[1])
	dest := args[2]
	srcKeys := args[3:]
	if op == "NOT" && len(srcKeys) != 1 {
		return ErrReply(newErr("ERR", "BITOP NOT must be called with a single source key"))
	}

	srcs := make([][]byte, len(srcKeys))
	maxLen := 0
	for i, k := range srcKeys {
		_, cur, _, err := getStringOrEmpty(ctx, k)
		if err != nil {
			return ErrReply(err)
		}
		srcs[i] = []byte(cur)
		if len(srcs[i]) > maxLen {
			maxLen = len(srcs[i])
		}
	}

	out := make([]byte, maxLen)
	switch op {
	case "AND":
		for i := range out {
			out[i] = 0xFF
			for _, s := range srcs {
				out[i] &= byteAt(s, i)
			}
		}
	case "OR":
		for i := range out {
			for _, s := range srcs {
				out[i] |= byteAt(s, i)
			}
		}
	case "XOR":
		for i := range out {
			for _, s := range srcs {
				out[i] ^= byteAt(s, i)
			}
		}
	case "NOT":
		for i := range out {
			out[i] = ^byteAt(srcs[0], i)
		}
	default:
		return ErrReply(errSyntax())
	}

	if maxLen == 0 {
		ctx.DB().Delete(dest)
		return Int(0)
	}
	ctx.DB().Set(dest, value.NewString(string(out)), false)
	return Int(int64(maxLen))
}

func byteAt(b []byte, i int) byte {
	if i >= len(b) {
		return 0
	}
	return b[i]
}
