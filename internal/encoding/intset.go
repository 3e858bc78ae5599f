// Package encoding implements the compact, self-upgrading physical
// representations backing string/list/hash/set/sorted-set values: a
// packed integer set, a packed byte-list ("listpack"), a
// quicklist of compressed listpack nodes, and a skiplist+dict pair for
// sorted sets. Every encoding upgrades one-way; downgrades are never
// performed.
package encoding

import "sort"

// IntWidth is the element width of a packed IntSet.
type IntWidth int

const (
	Width16 IntWidth = 2
	Width32 IntWidth = 4
	Width64 IntWidth = 8
)

// IntSet is a sorted array of fixed-width integers, auto-upgrading its
// width the first time an inserted value no longer fits.
// Lookup is O(log n) binary search; the array is always strictly
// increasing.
type IntSet struct {
	width  IntWidth
	values []int64
}

// NewIntSet returns an empty 16-bit-wide IntSet, the narrowest encoding.
func NewIntSet() *IntSet {
	return &IntSet{width: Width16}
}

func widthFor(v int64) IntWidth {
	switch {
	case v >= -1<<15 && v < 1<<15:
		return Width16
	case v >= -1<<31 && v < 1<<31:
		return Width32
	default:
		return Width64
	}
}

// Len returns the number of members.
func (s *IntSet) Len() int { return len(s.values) }

// Width reports the current element width, in bytes.
func (s *IntSet) Width() IntWidth { return s.width }

func (s *IntSet) search(v int64) (idx int, found bool) {
	idx = sort.Search(len(s.values), func(i int) bool { return s.values[i] >= v })
	found = idx < len(s.values) && s.values[idx] == v
	return
}

// Contains reports whether v is a member.
func (s *IntSet) Contains(v int64) bool {
	_, found := s.search(v)
	return found
}

// Add inserts v, upgrading the element width first if v does not fit in
// the current width. Returns true if v was newly inserted.
func (s *IntSet) Add(v int64) bool {
	if need := widthFor(v); need > s.width {
		s.width = need // rewrite is implicit: s.values is logical, not packed in memory here
	}
	idx, found := s.search(v)
	if found {
		return false
	}
	s.values = append(s.values, 0)
	copy(s.values[idx+1:], s.values[idx:])
	s.values[idx] = v
	return true
}

// Remove deletes v if present, returning whether it was a member.
func (s *IntSet) Remove(v int64) bool {
	idx, found := s.search(v)
	if !found {
		return false
	}
	s.values = append(s.values[:idx], s.values[idx+1:]...)
	return true
}

// Members returns the sorted backing slice; callers must not mutate it.
func (s *IntSet) Members() []int64 { return s.values }

// ByteSize returns the size an encoder would need to pack this set:
// count*width plus a small fixed header, matching boundary
// behavior ("size equals count × new_width + header").
func (s *IntSet) ByteSize() int {
	const header = 8 // encoding + length fields
	return header + len(s.values)*int(s.width)
}

// RandomMember returns a uniformly random member, used by SRANDMEMBER /
// eviction sampling when a set is still intset-encoded.
func (s *IntSet) RandomMember(rnd func(n int) int) (int64, bool) {
	if len(s.values) == 0 {
		return 0, false
	}
	return s.values[rnd(len(s.values))], true
}
