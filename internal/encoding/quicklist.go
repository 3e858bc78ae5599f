package encoding

import (
	"container/list"

	"github.com/golang/snappy"
)

// NodeSizeLimit configures a quicklist node's capacity. A positive value
// caps the element count; a negative value selects a byte-size cap from
// {4K,8K,16K,32K,64K} the way  describes.
type NodeSizeLimit int

const (
	SizeCap4K  NodeSizeLimit = -1
	SizeCap8K  NodeSizeLimit = -2
	SizeCap16K NodeSizeLimit = -3
	SizeCap32K NodeSizeLimit = -4
	SizeCap64K NodeSizeLimit = -5
)

func (c NodeSizeLimit) byteCap() int {
	switch c {
	case SizeCap4K:
		return 4 << 10
	case SizeCap8K:
		return 8 << 10
	case SizeCap16K:
		return 16 << 10
	case SizeCap32K:
		return 32 << 10
	case SizeCap64K:
		return 64 << 10
	default:
		return 0
	}
}

// qlNode is one quicklist node: either a live *Listpack or, once
// compressed, a snappy-compressed blob plus the element count needed for
// Len() without decompressing.
type qlNode struct {
	lp         *Listpack // nil when compressed
	compressed []byte
	count      int
}

func (n *qlNode) len() int {
	if n.lp != nil {
		return n.lp.Len()
	}
	return n.count
}

func (n *qlNode) decompress() *Listpack {
	if n.lp != nil {
		return n.lp
	}
	raw, err := snappy.Decode(nil, n.compressed)
	if err != nil {
		// corruption here is a process-fatal condition upstream; at this
		// layer we fail soft to an empty node rather than panic.
		return NewListpack()
	}
	lp := NewListpack()
	for _, s := range splitFrames(raw) {
		lp.PushBack(s)
	}
	n.lp = lp
	n.compressed = nil
	return lp
}

func (n *qlNode) compress() {
	if n.lp == nil {
		return
	}
	raw := joinFrames(n.lp.All())
	n.compressed = snappy.Encode(nil, raw)
	n.count = n.lp.Len()
	n.lp = nil
}

// Quicklist is a doubly linked list of listpack nodes, used
// once a list value outgrows a single listpack. The CompressDepth nodes
// closest to each end are kept uncompressed for O(1) push/pop; interior
// nodes may be snappy-compressed to save memory.
type Quicklist struct {
	nodes         *list.List // of *qlNode
	nodeSizeLimit NodeSizeLimit
	compressDepth int
	length        int
}

// NewQuicklist creates an empty quicklist with the given per-node size cap
// and end-compression depth.
func NewQuicklist(sizeLimit NodeSizeLimit, compressDepth int) *Quicklist {
	return &Quicklist{nodes: list.New(), nodeSizeLimit: sizeLimit, compressDepth: compressDepth}
}

// Len returns the total element count across all nodes.
func (q *Quicklist) Len() int { return q.length }

func (q *Quicklist) nodeIsFull(n *qlNode) bool {
	if q.nodeSizeLimit > 0 {
		return n.len() >= int(q.nodeSizeLimit)
	}
	return n.lp != nil && n.lp.ByteSize() >= q.nodeSizeLimit.byteCap()
}

// PushFront/PushBack push a value onto the list, amortized O(1). A new
// node is allocated when the current end node is full; the existing node
// is left untouched.
func (q *Quicklist) PushFront(v string) {
	front := q.nodes.Front()
	if front == nil || q.nodeIsFull(front.Value.(*qlNode)) {
		n := &qlNode{lp: NewListpack()}
		n.lp.PushFront(v)
		q.nodes.PushFront(n)
	} else {
		front.Value.(*qlNode).decompress().PushFront(v)
	}
	q.length++
	q.recompressEnds()
}

func (q *Quicklist) PushBack(v string) {
	back := q.nodes.Back()
	if back == nil || q.nodeIsFull(back.Value.(*qlNode)) {
		n := &qlNode{lp: NewListpack()}
		n.lp.PushBack(v)
		q.nodes.PushBack(n)
	} else {
		back.Value.(*qlNode).decompress().PushBack(v)
	}
	q.length++
	q.recompressEnds()
}

func (q *Quicklist) PopFront() (string, bool) {
	e := q.nodes.Front()
	if e == nil {
		return "", false
	}
	n := e.Value.(*qlNode).decompress()
	v, ok := n.PopFront()
	if !ok {
		return "", false
	}
	q.length--
	if n.Len() == 0 {
		q.nodes.Remove(e)
	}
	q.recompressEnds()
	return v, true
}

func (q *Quicklist) PopBack() (string, bool) {
	e := q.nodes.Back()
	if e == nil {
		return "", false
	}
	n := e.Value.(*qlNode).decompress()
	v, ok := n.PopBack()
	if !ok {
		return "", false
	}
	q.length--
	if n.Len() == 0 {
		q.nodes.Remove(e)
	}
	q.recompressEnds()
	return v, true
}

// recompressEnds keeps only the CompressDepth nodes from each end
// uncompressed, compressing everything deeper.
func (q *Quicklist) recompressEnds() {
	if q.compressDepth <= 0 {
		return
	}
	total := q.nodes.Len()
	i := 0
	for e := q.nodes.Front(); e != nil; e = e.Next() {
		n := e.Value.(*qlNode)
		fromFront := i
		fromBack := total - 1 - i
		if fromFront < q.compressDepth || fromBack < q.compressDepth {
			n.decompress()
		} else {
			n.compress()
		}
		i++
	}
}

// At walks nodes until the cumulative count covers index i. Supports negative indices.
func (q *Quicklist) At(i int) (string, bool) {
	if i < 0 {
		i += q.length
	}
	if i < 0 || i >= q.length {
		return "", false
	}
	offset := 0
	for e := q.nodes.Front(); e != nil; e = e.Next() {
		n := e.Value.(*qlNode)
		l := n.len()
		if i < offset+l {
			return n.decompress().At(i - offset)
		}
		offset += l
	}
	return "", false
}

// All materializes every element, decompressing as needed. Used by LRANGE
// over a full quicklist and by conversions.
func (q *Quicklist) All() []string {
	out := make([]string, 0, q.length)
	for e := q.nodes.Front(); e != nil; e = e.Next() {
		n := e.Value.(*qlNode)
		out = append(out, n.decompress().All()...)
	}
	return out
}

// splitFrames/joinFrames use a length-prefixed framing so that compressed
// blobs round-trip strings containing arbitrary bytes.
func joinFrames(elems []string) []byte {
	var out []byte
	for _, e := range elems {
		out = append(out, encodeVarint(uint64(len(e)))...)
		out = append(out, e...)
	}
	return out
}

func splitFrames(raw []byte) []string {
	var out []string
	for len(raw) > 0 {
		n, adv := decodeVarint(raw)
		raw = raw[adv:]
		out = append(out, string(raw[:n]))
		raw = raw[n:]
	}
	return out
}

func encodeVarint(v uint64) []byte {
	var buf []byte
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func decodeVarint(b []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, c := range b {
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	return v, len(b)
}
