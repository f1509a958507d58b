// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package induce

import (
	"github.com/nekitakamenev/fsais/internal/ioutil"
	"github.com/nekitakamenev/fsais/internal/radixheap"
	"github.com/nekitakamenev/fsais/internal/stream"
)

const passBufItems = 1 << 13
const partMaxBytes = 1 << 20
const passRAMQueueItems = 1 << 10

// inducedStreams describes the on-disk output of one induction sweep:
// a multi-part position stream plus a count stream of (symbol, n)
// pairs, one pair per non-empty bucket in emission order.
type inducedStreams struct {
	tag       string
	parts     int
	countPath string
	items     int64
}

// The sweeps encode (character, phase) into the heap key as
// 2*char + phase, so that every event the scan must handle in order
// is itself a heap item and the extraction sequence alone drives the
// whole sweep. Phase 0 items are the sweep's own induced positions,
// phase 1 items the per-character events that must follow them (star
// seeds in the L sweep, the L-bucket replay sentinel in the S sweep).
// The point of the encoding is monotonicity by construction: every
// push's key provably equals or exceeds the key just extracted, so
// the monotone heap's lower bound can never overtake the scan. A
// driver that instead peeked the heap to decide between it and an
// outside event source would let redistribution advance the lower
// bound past characters it still has to push for.
const phaseBits = 1

func itemKey(c uint32) uint64  { return uint64(c) << phaseBits }
func eventKey(c uint32) uint64 { return uint64(c)<<phaseBits | 1 }

// runInduceL is the left-to-right induction sweep shared by the
// substring and suffix levels: characters ascending, each bucket's
// L-type items drained in FIFO order (reproducing the SA scan order)
// before the bucket's star seeds fire. Each drained item pos emits
// itself and pushes pos-1 when pos-1 is L-type; that type is decided
// locally and exactly: T[pos-1] > T[pos] means L, equality inherits
// pos's own type, which here is always L. A star seed's predecessor
// is L by definition (and checked), so seeds always push.
//
// Seeds are pushed up front with phase-1 keys; their within-character
// order is their slice order, which only breaks ties between
// identical substrings at the substring level but must be the true
// suffix order at the suffix level (the caller passes the recursion's
// result there).
//
// When minusStarTag is non-empty, every emitted position whose
// predecessor is S-type (a minus-star position, same local rule) is
// additionally written to its own multi-part stream; the emission
// order restricted to those positions is their sorted substring
// order, which is what the minus-star naming pass consumes.
func runInduceL(access *textAccessor, g Global, seeds []int64, tag, minusStarTag string, counters *ioutil.Counters) (inducedStreams, inducedStreams, error) {
	none := inducedStreams{}
	maxSym := uint32(g.AlphabetBound - 1)
	h := radixheap.New[uint64, uint64](eventKey(maxSym), g.Base, counters, passRAMQueueItems)
	defer h.Close()

	lw, err := stream.NewMultiPartWriter[uint64](g.Base, tag, partMaxBytes, passBufItems, counters)
	if err != nil {
		return none, none, err
	}
	countPath := string(g.Base) + "." + tag + "_count"
	cw, err := stream.NewForwardWriter[uint64](countPath, passBufItems, counters)
	if err != nil {
		lw.Close()
		return none, none, err
	}
	var mw *stream.MultiPartWriter[uint64]
	if minusStarTag != "" {
		mw, err = stream.NewMultiPartWriter[uint64](g.Base, minusStarTag, partMaxBytes, passBufItems, counters)
		if err != nil {
			lw.Close()
			cw.Close()
			return none, none, err
		}
	}
	closeAll := func() {
		lw.Close()
		cw.Close()
		if mw != nil {
			mw.Close()
		}
	}

	l := inducedStreams{tag: tag, countPath: countPath}
	mstar := inducedStreams{tag: minusStarTag}

	run := func() error {
		// Position N-1 is always L-type against the sentinel; it is
		// the sweep's one unconditional item. The star seeds follow
		// their bucket's drained items via the phase-1 key.
		if g.TextLen > 0 {
			c, err := access.At(g.TextLen - 1)
			if err != nil {
				return err
			}
			if err := h.Push(itemKey(uint32(c)), uint64(g.TextLen-1)); err != nil {
				return err
			}
		}
		for _, s := range seeds {
			if s == 0 {
				return ioutil.Fatalf(ioutil.ErrInvariant, "induce", "position 0 cannot be a star position")
			}
			c, err := access.At(s)
			if err != nil {
				return err
			}
			if err := h.Push(eventKey(uint32(c)), uint64(s)); err != nil {
				return err
			}
		}

		curSet := false
		var curChar uint32
		var bucketN uint64
		flush := func() error {
			if !curSet || bucketN == 0 {
				return nil
			}
			if err := cw.Write(uint64(curChar)); err != nil {
				return err
			}
			if err := cw.Write(bucketN); err != nil {
				return err
			}
			l.items += int64(bucketN)
			bucketN = 0
			return nil
		}

		for !h.Empty() {
			key, v, err := h.ExtractMin()
			if err != nil {
				return err
			}
			c := uint32(key >> phaseBits)
			if !curSet || c != curChar {
				if err := flush(); err != nil {
					return err
				}
				curChar, curSet = c, true
			}
			if key&1 == 1 {
				// Star seed: S-type, not emitted here; its L
				// predecessor is induced.
				s := int64(v)
				pc, err := access.At(s - 1)
				if err != nil {
					return err
				}
				if uint32(pc) <= c {
					return ioutil.Fatalf(ioutil.ErrInvariant, "induce", "star position %d has a non-L predecessor", s)
				}
				if err := h.Push(itemKey(uint32(pc)), uint64(s-1)); err != nil {
					return err
				}
				continue
			}
			pos := int64(v)
			if err := lw.Write(uint64(pos)); err != nil {
				return err
			}
			bucketN++
			if pos > 0 {
				pc, err := access.At(pos - 1)
				if err != nil {
					return err
				}
				switch {
				case uint32(pc) >= c:
					// L predecessor (greater, or equal inheriting
					// this item's own L type): induce it.
					if err := h.Push(itemKey(uint32(pc)), uint64(pos-1)); err != nil {
						return err
					}
				case mw != nil:
					// S predecessor makes pos a minus-star position.
					if err := mw.Write(uint64(pos)); err != nil {
						return err
					}
					mstar.items++
				}
			}
		}
		return flush()
	}
	if err := run(); err != nil {
		closeAll()
		return none, none, err
	}

	if err := lw.Close(); err != nil {
		return none, none, err
	}
	if err := cw.Close(); err != nil {
		return none, none, err
	}
	l.parts = lw.PartsCount()
	if mw != nil {
		if err := mw.Close(); err != nil {
			return none, none, err
		}
		mstar.parts = mw.PartsCount()
	}
	return l, mstar, nil
}

// runInduceS is the right-to-left sweep that mirrors runInduceL:
// characters descending, realized on the ascending-only radix heap by
// reversing each character (maxSymbol - c) inside the same
// (character, phase) key encoding. Within one character the heap's
// S-type items drain first (arriving in reverse of their final order,
// exactly as a right-to-left scan visits them); the phase-1 event is
// the replay of that character's L items, in reverse, off the L
// sweep's output. Each processed position pushes pos-1 whenever it is
// S-type (T[pos-1] < T[pos], or equal inheriting an S item's own
// type).
//
// The L replay is driven by one sentinel item per non-empty L bucket,
// carrying the bucket's length as its value; sentinels are pushed
// lazily, one count-stream pair ahead, so the resident state stays a
// single pair no matter how many buckets the alphabet has. The
// multi-part backward reader deletes l's parts as the replay drains
// them, and l's count stream is removed here once consumed.
//
// The emitted stream holds the S-type positions in emission order,
// the exact reverse of their final ascending order. With emitAll set,
// each character's L items are re-emitted after its S items, making
// the whole stream the exact reverse of the final suffix array; the
// suffix level uses this to produce its output with one backward
// read.
func runInduceS(access *textAccessor, g Global, l inducedStreams, tag string, emitAll bool, counters *ioutil.Counters) (inducedStreams, error) {
	none := inducedStreams{}
	maxSym := uint32(g.AlphabetBound - 1)
	rev := func(c uint32) uint32 { return maxSym - c }

	h := radixheap.New[uint64, uint64](eventKey(maxSym), g.Base, counters, passRAMQueueItems)
	defer h.Close()

	lr, err := stream.NewMultiPartBackwardReader[uint64](g.Base, l.tag, l.parts, passBufItems, counters)
	if err != nil {
		return none, err
	}
	defer lr.Close()
	lc, err := stream.NewBackwardReader[uint64](l.countPath, passBufItems, counters)
	if err != nil {
		return none, err
	}
	defer lc.Close()

	sw, err := stream.NewMultiPartWriter[uint64](g.Base, tag, partMaxBytes, passBufItems, counters)
	if err != nil {
		return none, err
	}
	countPath := string(g.Base) + "." + tag + "_count"
	cw, err := stream.NewForwardWriter[uint64](countPath, passBufItems, counters)
	if err != nil {
		sw.Close()
		return none, err
	}

	out := inducedStreams{tag: tag, countPath: countPath}

	// nextSentinel pushes the sentinel for the next L bucket, read one
	// count pair ahead; backward over the pair stream, each pair
	// arrives count first, then symbol. Bucket symbols arrive strictly
	// descending, so each sentinel's key exceeds the previous one's.
	nextSentinel := func() error {
		n, ok, err := lc.Read()
		if err != nil || !ok {
			return err
		}
		symv, ok, err := lc.Read()
		if err != nil {
			return err
		}
		if !ok {
			return ioutil.Fatalf(ioutil.ErrInvariant, "induce", "count stream %s holds an odd number of words", l.countPath)
		}
		return h.Push(eventKey(rev(uint32(symv))), n)
	}

	run := func() error {
		if err := nextSentinel(); err != nil {
			return err
		}

		curSet := false
		var curChar uint32
		var bucketN uint64
		flush := func() error {
			if !curSet || bucketN == 0 {
				return nil
			}
			if err := cw.Write(uint64(curChar)); err != nil {
				return err
			}
			if err := cw.Write(bucketN); err != nil {
				return err
			}
			out.items += int64(bucketN)
			bucketN = 0
			return nil
		}

		for !h.Empty() {
			key, v, err := h.ExtractMin()
			if err != nil {
				return err
			}
			c := maxSym - uint32(key>>phaseBits)
			if !curSet || c != curChar {
				if err := flush(); err != nil {
					return err
				}
				curChar, curSet = c, true
			}
			if key&1 == 1 {
				// L-bucket replay: v items of character c, in reverse.
				for i := uint64(0); i < v; i++ {
					lv, ok, err := lr.Read()
					if err != nil {
						return err
					}
					if !ok {
						return ioutil.Fatalf(ioutil.ErrInvariant, "induce", "stream %s ended before its count stream", l.tag)
					}
					pos := int64(lv)
					if emitAll {
						if err := sw.Write(uint64(pos)); err != nil {
							return err
						}
						bucketN++
					}
					if pos > 0 {
						pc, err := access.At(pos - 1)
						if err != nil {
							return err
						}
						if uint32(pc) < c {
							if err := h.Push(itemKey(rev(uint32(pc))), uint64(pos-1)); err != nil {
								return err
							}
						}
					}
				}
				if err := nextSentinel(); err != nil {
					return err
				}
				continue
			}
			pos := int64(v)
			if err := sw.Write(uint64(pos)); err != nil {
				return err
			}
			bucketN++
			if pos > 0 {
				pc, err := access.At(pos - 1)
				if err != nil {
					return err
				}
				if uint32(pc) <= c {
					// S predecessor (smaller, or equal inheriting this
					// item's own S type): induce it.
					if err := h.Push(itemKey(rev(uint32(pc))), uint64(pos-1)); err != nil {
						return err
					}
				}
			}
		}
		return flush()
	}
	if err := run(); err != nil {
		sw.Close()
		cw.Close()
		return none, err
	}

	if err := sw.Close(); err != nil {
		cw.Close()
		return none, err
	}
	if err := cw.Close(); err != nil {
		return none, err
	}
	out.parts = sw.PartsCount()
	if err := lc.Close(); err != nil {
		return none, err
	}
	if err := ioutil.Remove(l.countPath); err != nil {
		return none, err
	}
	return out, nil
}
