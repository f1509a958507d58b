// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package radixheap

import (
	"github.com/nekitakamenev/fsais/internal/ioutil"
)

const digitBits = 8
const digitCount = 1 << digitBits
const digitMask = digitCount - 1

// Heap is an external-memory monotone priority queue: the smallest
// key ever pushed after the last ExtractMin must be at least that
// extraction's key. Keys are split into 8-bit digits (a fixed digit
// width; see DESIGN.md for the trade against configurable widths);
// bucket (level, digit) holds every live item whose key agrees with
// lowerBound on every digit above level and disagrees at level with
// value digit. The bottom level (level 0) additionally reserves the
// bucket matching lowerBound's own low digit for items exactly equal
// to the current minimum.
type Heap[K, V Item] struct {
	levels     int
	lowerBound K
	sz         int
	buckets    [][digitCount]*emQueue[K, V]
	pool       *ramPool[K, V]
	base       ioutil.Basename
	counters   *ioutil.Counters
}

// New creates a heap whose keys never exceed maxKey, rooted at
// lowerBound 0, with its spill files named under base. Each RAM
// head/tail buffer holds ramQueueItems items, which together with the
// bucket count fixes the heap's resident footprint.
func New[K, V Item](maxKey K, base ioutil.Basename, counters *ioutil.Counters, ramQueueItems int) *Heap[K, V] {
	levels := bitWidthDigits(uint64(maxKey))
	h := &Heap[K, V]{
		levels:   levels,
		buckets:  make([][digitCount]*emQueue[K, V], levels),
		base:     base,
		counters: counters,
	}
	// Every bucket permanently owns a head and a tail RAM queue; size
	// the shared pool to cover that plus a small amount of transient
	// slack for refill-from-disk operations.
	total := levels * digitCount
	h.pool = newRAMPool[K, V](2*total+4, ramQueueItems)
	return h
}

func bitWidthDigits(bound uint64) int {
	n := 0
	for bound > 0 {
		n++
		bound >>= digitBits
	}
	if n == 0 {
		n = 1
	}
	return n
}

func (h *Heap[K, V]) bucketFor(k K) (level, digit int) {
	if k == h.lowerBound {
		return 0, int(k) & digitMask
	}
	diff := uint64(k) ^ uint64(h.lowerBound)
	level = 0
	for lvl := h.levels - 1; lvl >= 0; lvl-- {
		if (diff>>(uint(lvl)*digitBits))&digitMask != 0 {
			level = lvl
			break
		}
	}
	digit = int(uint64(k)>>(uint(level)*digitBits)) & digitMask
	return level, digit
}

func (h *Heap[K, V]) queueAt(level, digit int) *emQueue[K, V] {
	if h.buckets[level][digit] == nil {
		h.buckets[level][digit] = newEMQueue[K, V](h.pool, h.base, h.counters)
	}
	return h.buckets[level][digit]
}

// Push inserts (k, v). k must be ≥ the heap's current lower bound;
// violating this is a fatal invariant error, not a silent clamp.
func (h *Heap[K, V]) Push(k K, v V) error {
	if uint64(k) < uint64(h.lowerBound) {
		return ioutil.Fatalf(ioutil.ErrInvariant, "radixheap", "push key %d below lower_bound %d", uint64(k), uint64(h.lowerBound))
	}
	level, digit := h.bucketFor(k)
	if err := h.queueAt(level, digit).push(k, v); err != nil {
		return err
	}
	h.sz++
	return nil
}

// ensureBottom makes the bottom bucket current, redistributing if
// the previous bottom has drained, and returns it. After it succeeds
// the heap's true minimum key equals lowerBound.
func (h *Heap[K, V]) ensureBottom() (*emQueue[K, V], error) {
	bottom := h.buckets[0][int(h.lowerBound)&digitMask]
	if bottom == nil || bottom.empty() {
		if err := h.redistribute(); err != nil {
			return nil, err
		}
		bottom = h.buckets[0][int(h.lowerBound)&digitMask]
	}
	if bottom == nil || bottom.empty() {
		return nil, ioutil.Fatalf(ioutil.ErrInvariant, "radixheap", "no current item while heap reports size %d", h.sz)
	}
	return bottom, nil
}

// ExtractMin removes and returns the least-keyed item, advancing
// lower_bound to the new minimum.
func (h *Heap[K, V]) ExtractMin() (K, V, error) {
	var zeroK K
	var zeroV V
	if h.sz == 0 {
		return zeroK, zeroV, ioutil.Fatalf(ioutil.ErrInvariant, "radixheap", "extract_min on empty heap")
	}
	bottom, err := h.ensureBottom()
	if err != nil {
		return zeroK, zeroV, err
	}
	it, ok, err := bottom.pop()
	if err != nil {
		return zeroK, zeroV, err
	}
	if !ok {
		return zeroK, zeroV, ioutil.Fatalf(ioutil.ErrInvariant, "radixheap", "extract_min found no item after redistribution")
	}
	h.sz--
	return it.key, it.val, nil
}

// MinKey reports the heap's current minimum key without removing it,
// ok=false on an empty heap. Redistribution may run to make the
// bottom bucket current, so lower_bound advances to the reported
// minimum; callers must not push a smaller key afterwards.
func (h *Heap[K, V]) MinKey() (K, bool, error) {
	var zero K
	if h.sz == 0 {
		return zero, false, nil
	}
	if _, err := h.ensureBottom(); err != nil {
		return zero, false, err
	}
	return h.lowerBound, true, nil
}

// redistribute implements the classic radix-heap step: locate the
// smallest non-empty bucket, make its minimum key the new
// lower_bound, and re-bucket every item it holds.
func (h *Heap[K, V]) redistribute() error {
	for level := 0; level < h.levels; level++ {
		for digit := 0; digit < digitCount; digit++ {
			q := h.buckets[level][digit]
			if q == nil || q.empty() {
				continue
			}
			items, err := q.drain()
			if err != nil {
				return err
			}
			if err := q.close(); err != nil {
				return err
			}
			h.buckets[level][digit] = nil
			newMin := items[0].key
			for _, it := range items[1:] {
				if uint64(it.key) < uint64(newMin) {
					newMin = it.key
				}
			}
			h.lowerBound = newMin
			for _, it := range items {
				lvl, dig := h.bucketFor(it.key)
				if err := h.queueAt(lvl, dig).push(it.key, it.val); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return ioutil.Fatalf(ioutil.ErrInvariant, "radixheap", "redistribute found no non-empty bucket while heap reports size %d", h.sz)
}

// MinCompare reports whether the heap's current minimum key is ≤ k;
// false on an empty heap.
func (h *Heap[K, V]) MinCompare(k K) bool {
	mk, ok, err := h.MinKey()
	return err == nil && ok && uint64(mk) <= uint64(k)
}

// Size returns the number of live items.
func (h *Heap[K, V]) Size() int { return h.sz }

// Empty reports whether the heap holds no items.
func (h *Heap[K, V]) Empty() bool { return h.sz == 0 }

// IOVolume returns the total bytes moved to/from disk so far.
func (h *Heap[K, V]) IOVolume() int64 {
	if h.counters == nil {
		return 0
	}
	return h.counters.Total()
}

// Close releases every bucket's resources (RAM queues back to the
// pool, any open spill files closed).
func (h *Heap[K, V]) Close() error {
	for level := range h.buckets {
		for digit := range h.buckets[level] {
			q := h.buckets[level][digit]
			if q == nil {
				continue
			}
			if err := q.close(); err != nil {
				return err
			}
			h.buckets[level][digit] = nil
		}
	}
	return nil
}
