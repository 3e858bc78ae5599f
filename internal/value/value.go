// Package value implements the tagged-union Value type: a sum type over
// {String, List, Hash, Set, SortedSet}, each carrying a current physical
// encoding that transparently upgrades as
// size/content thresholds are crossed, plus access-recency metadata used
// by the eviction engine.
package value

import (
	"strconv"
	"time"

	"github.com/keydcore/keyd/internal/encoding"
)

// Type is one of the five supported value kinds.
type Type int

const (
	TypeString Type = iota
	TypeList
	TypeHash
	TypeSet
	TypeZSet
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeHash:
		return "hash"
	case TypeSet:
		return "set"
	case TypeZSet:
		return "zset"
	default:
		return "unknown"
	}
}

// Encoding names the physical representation currently backing a Value.
type Encoding int

const (
	EncRaw Encoding = iota
	EncInt
	EncEmbstr
	EncIntset
	EncListpack
	EncQuicklist
	EncHashtable
	EncSkiplist
)

func (e Encoding) String() string {
	switch e {
	case EncRaw:
		return "raw"
	case EncInt:
		return "int"
	case EncEmbstr:
		return "embstr"
	case EncIntset:
		return "intset"
	case EncListpack:
		return "packed-bytelist"
	case EncQuicklist:
		return "quicklist"
	case EncHashtable:
		return "hashtable"
	case EncSkiplist:
		return "skiplist"
	default:
		return "unknown"
	}
}

// Thresholds configures the size/content limits that trigger one-way
// encoding upgrades.
type Thresholds struct {
	ListMaxListpackEntries int
	ListMaxListpackValue   int
	HashMaxListpackEntries int
	HashMaxListpackValue   int
	SetMaxIntsetEntries    int
	SetMaxListpackEntries  int
	SetMaxListpackValue    int
	ZSetMaxListpackEntries int
	ZSetMaxListpackValue   int
	QuicklistNodeSize      encoding.NodeSizeLimit
	QuicklistCompressDepth int
}

// DefaultThresholds mirrors Redis's own upstream defaults: a 128-entry,
// 64-byte listpack ceiling before a type upgrades to its hashtable or
// skiplist representation.
var DefaultThresholds = Thresholds{
	ListMaxListpackEntries: 128,
	ListMaxListpackValue:   64,
	HashMaxListpackEntries: 128,
	HashMaxListpackValue:   64,
	SetMaxIntsetEntries:    512,
	SetMaxListpackEntries:  128,
	SetMaxListpackValue:    64,
	ZSetMaxListpackEntries: 128,
	ZSetMaxListpackValue:   64,
	QuicklistNodeSize:      encoding.SizeCap8K,
	QuicklistCompressDepth: 1,
}

// AccessMode selects how AccessMeta is interpreted.
type AccessMode int

const (
	AccessLRU AccessMode = iota
	AccessLFU
)

// AccessMeta packs either a coarse LRU clock stamp or an LFU counter plus
// decay timestamp into 24 bits' worth of information. We keep it
// as two plain fields rather than literally bit-packing an integer, since
// nothing in this codebase ever serializes it to the wire.
type AccessMeta struct {
	LRUClock   uint32 // coarse ticks since server start, LRU mode
	LFUCounter uint8  // logarithmic counter, LFU mode
	LFUDecayAt uint32 // minute of last decay, LFU mode
}

// Value is the tagged union backing every keyspace entry. Exactly one of
// the payload fields is meaningful, selected by Type/Encoding.
type Value struct {
	Type     Type
	Encoding Encoding
	Access   AccessMeta
	RefCount int32

	Str string

	// List encodings: EncListpack -> LP, EncQuicklist -> QL.
	LP *encoding.Listpack
	QL *encoding.Quicklist

	// Hash encodings: EncListpack -> LP (alternating field/value), EncHashtable -> HT.
	HT map[string]string

	// Set encodings: EncIntset -> IS, EncListpack -> LP, EncHashtable -> SetHT.
	IS    *encoding.IntSet
	SetHT map[string]struct{}

	// SortedSet encodings: EncListpack -> LP (alternating member/score), EncSkiplist -> ZS.
	ZS *encoding.SkipList
}

// NewString builds a string value, choosing EncInt for values that parse
// as a small integer (shared-singleton optimization is
// approximated here by just tagging the encoding; no shared singleton
// table exists and RefCount is never set).
func NewString(s string) *Value {
	v := &Value{Type: TypeString, Str: s}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) <= 20 {
		v.Encoding = EncInt
	} else if len(s) <= 44 {
		v.Encoding = EncEmbstr
	} else {
		v.Encoding = EncRaw
	}
	return v
}

// NewList builds an empty list value starting in the compact encoding.
func NewList() *Value {
	return &Value{Type: TypeList, Encoding: EncListpack, LP: encoding.NewListpack()}
}

// NewHash builds an empty hash value starting in the compact encoding.
func NewHash() *Value {
	return &Value{Type: TypeHash, Encoding: EncListpack, LP: encoding.NewListpack()}
}

// NewSet builds an empty set value starting in the intset encoding, the
// narrowest representation.
func NewSet() *Value {
	return &Value{Type: TypeSet, Encoding: EncIntset, IS: encoding.NewIntSet()}
}

// NewZSet builds an empty sorted-set value starting in the compact
// encoding.
func NewZSet() *Value {
	return &Value{Type: TypeZSet, Encoding: EncListpack, LP: encoding.NewListpack()}
}

// TouchLRU refreshes the coarse recency stamp. Suppressed by callers while
// a COW-sensitive child is active.
func (v *Value) TouchLRU(clock uint32) { v.Access.LRUClock = clock }

// TouchLFU decays then increments the logarithmic counter.
// decayPeriodMinutes and rnd let callers control the process deterministically in tests.
func (v *Value) TouchLFU(nowMinutes uint32, decayPeriodMinutes uint32, rnd func() float64) {
	const lfuInitVal = 5
	if v.Access.LFUCounter == 0 {
		v.Access.LFUCounter = lfuInitVal
		v.Access.LFUDecayAt = nowMinutes
		return
	}
	if decayPeriodMinutes > 0 {
		elapsed := nowMinutes - v.Access.LFUDecayAt
		periods := elapsed / decayPeriodMinutes
		if periods > 0 {
			if uint32(v.Access.LFUCounter) > periods {
				v.Access.LFUCounter -= uint8(periods)
			} else {
				v.Access.LFUCounter = 0
			}
			v.Access.LFUDecayAt = nowMinutes
		}
	}
	if v.Access.LFUCounter >= 255 {
		return
	}
	const lfuFactor = 10
	const base = lfuInitVal
	p := 1.0 / (float64(int(v.Access.LFUCounter)-base)*lfuFactor + 1)
	if p < 0 {
		p = 1
	}
	if rnd() < p {
		v.Access.LFUCounter++
	}
}

// IdleSeconds converts the coarse LRU clock into an OBJECT IDLETIME style
// duration given the current clock value.
func IdleSeconds(nowClock, stamp uint32, clockResolution time.Duration) time.Duration {
	delta := nowClock - stamp
	return time.Duration(delta) * clockResolution
}
