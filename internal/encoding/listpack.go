package encoding

import "strconv"

// Listpack is the packed byte-list encoding used for small lists, hashes,
// and sorted sets. The real on-disk/in-memory format packs a
// header (total_bytes, tail_offset, element_count) followed by elements
// that each carry a previous-element length field (for O(1) backward
// traversal) and an encoding tag (short/long string, small/medium/large
// int). This implementation keeps that accounting — ByteSize reports what
// the packed representation would cost, which is what threshold decisions
// are made against — while storing elements as a Go slice rather than a
// single raw buffer, since nothing outside this package ever reads the
// bytes directly.
type Listpack struct {
	elems []string
	bytes int // running total_bytes, mirroring the packed header field
}

// NewListpack returns an empty listpack.
func NewListpack() *Listpack {
	return &Listpack{bytes: listpackHeaderSize + 1} // +1 terminator byte
}

const listpackHeaderSize = 11 // total_bytes(4) + tail_offset(4) + element_count(2) + pad

// elementCost returns the packed size of a single element: prev-length
// field + encoding tag + payload.
func elementCost(s string) int {
	prevLen := 1 // back-reference from the *next* element; approximated as 1 until proven otherwise
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return prevLen + intTagCost(n)
	}
	tag := 1
	if len(s) >= 64 {
		tag = 5 // "long string" tag carries a 4-byte length
	}
	return prevLen + tag + len(s)
}

func intTagCost(n int64) int {
	switch {
	case n >= 0 && n < 1<<7:
		return 1 // small int, tag doubles as payload
	case n >= -1<<15 && n < 1<<15:
		return 3
	case n >= -1<<31 && n < 1<<31:
		return 5
	default:
		return 9
	}
}

// Len returns the element count.
func (lp *Listpack) Len() int { return len(lp.elems) }

// ByteSize returns the packed-representation size used for threshold
// comparisons.
func (lp *Listpack) ByteSize() int { return lp.bytes }

// MaxElementSize returns the byte length of the single largest element,
// used to trigger an encoding upgrade when any element exceeds the
// type-specific threshold.
func (lp *Listpack) MaxElementSize() int {
	max := 0
	for _, e := range lp.elems {
		if len(e) > max {
			max = len(e)
		}
	}
	return max
}

// PushFront prepends by copying the element slice (O(n)); PushBack appends
// in O(1) amortized time.
func (lp *Listpack) PushFront(v string) {
	lp.elems = append([]string{v}, lp.elems...)
	lp.bytes += elementCost(v)
}

func (lp *Listpack) PushBack(v string) {
	lp.elems = append(lp.elems, v)
	lp.bytes += elementCost(v)
}

// PopFront/PopBack remove and return an end element.
func (lp *Listpack) PopFront() (string, bool) {
	if len(lp.elems) == 0 {
		return "", false
	}
	v := lp.elems[0]
	lp.elems = lp.elems[1:]
	lp.bytes -= elementCost(v)
	return v, true
}

func (lp *Listpack) PopBack() (string, bool) {
	n := len(lp.elems)
	if n == 0 {
		return "", false
	}
	v := lp.elems[n-1]
	lp.elems = lp.elems[:n-1]
	lp.bytes -= elementCost(v)
	return v, true
}

// At returns the element at index i (supports negative indices from the
// tail, as Redis list commands do).
func (lp *Listpack) At(i int) (string, bool) {
	i = lp.normalize(i)
	if i < 0 || i >= len(lp.elems) {
		return "", false
	}
	return lp.elems[i], true
}

func (lp *Listpack) normalize(i int) int {
	if i < 0 {
		i += len(lp.elems)
	}
	return i
}

// Set overwrites the element at index i.
func (lp *Listpack) Set(i int, v string) bool {
	i = lp.normalize(i)
	if i < 0 || i >= len(lp.elems) {
		return false
	}
	lp.bytes += elementCost(v) - elementCost(lp.elems[i])
	lp.elems[i] = v
	return true
}

// InsertBefore/InsertAfter splice v relative to index i. A cascading
// update of neighboring prev-length fields is implicit in the real
// format when a backlink's width must change; here it shows up simply as
// the recomputed running byte total.
func (lp *Listpack) InsertBefore(i int, v string) bool {
	i = lp.normalize(i)
	if i < 0 || i > len(lp.elems) {
		return false
	}
	lp.elems = append(lp.elems, "")
	copy(lp.elems[i+1:], lp.elems[i:])
	lp.elems[i] = v
	lp.bytes += elementCost(v)
	return true
}

// RemoveAt deletes the element at index i.
func (lp *Listpack) RemoveAt(i int) (string, bool) {
	i = lp.normalize(i)
	if i < 0 || i >= len(lp.elems) {
		return "", false
	}
	v := lp.elems[i]
	lp.elems = append(lp.elems[:i], lp.elems[i+1:]...)
	lp.bytes -= elementCost(v)
	return v, true
}

// Slice returns elements [start,stop] inclusive, Redis LRANGE-style, with
// negative indices counting from the tail.
func (lp *Listpack) Slice(start, stop int) []string {
	n := len(lp.elems)
	start, stop = clampRange(start, stop, n)
	if start > stop {
		return nil
	}
	out := make([]string, stop-start+1)
	copy(out, lp.elems[start:stop+1])
	return out
}

func clampRange(start, stop, n int) (int, int) {
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
	return start, stop
}

// All returns every element in order; callers must not mutate the result.
func (lp *Listpack) All() []string { return lp.elems }

// Trim keeps only elements [start,stop].
func (lp *Listpack) Trim(start, stop int) {
	n := len(lp.elems)
	start, stop = clampRange(start, stop, n)
	if start > stop {
		lp.elems = nil
		lp.bytes = listpackHeaderSize + 1
		return
	}
	kept := append([]string(nil), lp.elems[start:stop+1]...)
	lp.elems = kept
	total := listpackHeaderSize + 1
	for _, e := range kept {
		total += elementCost(e)
	}
	lp.bytes = total
}

// RemoveValue deletes up to count occurrences of v. count>0 scans head to
// tail, count<0 scans tail to head, count==0 removes every occurrence.
// Returns the number removed.
func (lp *Listpack) RemoveValue(v string, count int) int {
	removed := 0
	if count >= 0 {
		limit := count
		out := lp.elems[:0:0]
		for _, e := range lp.elems {
			if e == v && (limit == 0 || removed < limit) {
				removed++
				lp.bytes -= elementCost(e)
				continue
			}
			out = append(out, e)
		}
		lp.elems = out
		return removed
	}
	limit := -count
	out := make([]string, 0, len(lp.elems))
	for i := len(lp.elems) - 1; i >= 0; i-- {
		e := lp.elems[i]
		if e == v && removed < limit {
			removed++
			lp.bytes -= elementCost(e)
			continue
		}
		out = append(out, e)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	lp.elems = out
	return removed
}
