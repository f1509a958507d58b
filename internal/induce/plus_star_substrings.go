// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package induce

import (
	"github.com/nekitakamenev/fsais/internal/block"
	"github.com/nekitakamenev/fsais/internal/ioutil"
	"github.com/nekitakamenev/fsais/internal/stream"
)

// InducePlusStarSubstrings is Pass A: it sorts and names every
// plus-star (LMS) substring, then resolves the order of the plus-star
// suffixes themselves. The substring order comes from a full
// substring-level induction (runInduceL then runInduceS, seeded with
// the LMS positions in any within-bucket order, which is exactly what
// induced sorting needs to order LMS substrings); naming then only
// has to test adjacent substrings for equality. When two substrings
// share a name the substring order cannot decide their suffix order,
// so the pass recurses: the reduced string of names, one per LMS
// position in text order, is handed to block.SortSuffixes, and the
// resulting permutation is mapped back onto the positions. With all
// names distinct the reduced suffix array is the identity permutation
// of the names and no recursion is needed.
//
// The named order is persisted as a multi-part position stream plus a
// diff bit stream, and the name-in-text-order table the recursion
// consumes is rebuilt by reading both back in reverse; the backward
// readers delete the parts as they drain.
func InducePlusStarSubstrings(g Global, counters *ioutil.Counters, lmsPos []int64) (PlusStars, error) {
	none := PlusStars{}
	access, err := newTextAccessor(g.TextPath, g.TextLen, passBufItems, 64, counters)
	if err != nil {
		return none, err
	}
	defer access.Close()

	// Seed order within a character only breaks ties between identical
	// substrings at this level, so text order serves as-is.
	l, mstar, err := runInduceL(access, g, lmsPos, "sub_minus_pos", "sub_minus_star_pos", counters)
	if err != nil {
		return none, err
	}
	s, err := runInduceS(access, g, l, "sub_plus_pos", false, counters)
	if err != nil {
		return none, err
	}

	m, maxName, posParts, diffPath, err := nameStarOrder(access, g, lmsPos, s, counters)
	if err != nil {
		return none, err
	}
	if m != len(lmsPos) {
		return none, ioutil.Fatalf(ioutil.ErrInvariant, "induce", "substring induction produced %d plus-star positions, expected %d", m, len(lmsPos))
	}

	nameOf, err := namesInTextOrder(g, lmsPos, m, maxName, posParts, diffPath, counters)
	if err != nil {
		return none, err
	}

	sorted := make([]int64, m)
	if int(maxName) == m {
		// Every name distinct: the reduced suffix array is trivial and
		// the substring order already is the suffix order.
		for i, nm := range nameOf {
			sorted[nm-1] = lmsPos[i]
		}
	} else {
		reduced := make([]int32, m)
		copy(reduced, nameOf)
		sa := block.SortSuffixes(reduced)
		for k, ri := range sa {
			sorted[k] = lmsPos[ri]
		}
	}
	return PlusStars{SortedLMS: sorted, MaxName: maxName, MinusStars: mstar}, nil
}

// nameStarOrder walks the substring-level S output backward (which
// yields every S-type position in ascending substring order, the
// multi-part backward reader deleting parts as it goes), filters the
// LMS positions out of it, and persists their order as output_pos
// (multi-part) plus output_diff (one bit per position marking a
// naming boundary against the previous one). Returns the LMS count,
// the number of distinct names, and where the persisted order lives.
func nameStarOrder(access *textAccessor, g Global, lmsPos []int64, s inducedStreams, counters *ioutil.Counters) (int, int32, int, string, error) {
	sr, err := stream.NewMultiPartBackwardReader[uint64](g.Base, s.tag, s.parts, passBufItems, counters)
	if err != nil {
		return 0, 0, 0, "", err
	}
	defer sr.Close()

	posW, err := stream.NewMultiPartWriter[uint64](g.Base, "plus_star_pos", partMaxBytes, passBufItems, counters)
	if err != nil {
		return 0, 0, 0, "", err
	}
	diffPath := string(g.Base) + ".plus_star_diff"
	diffW, err := stream.NewBitWriter(diffPath, passBufItems, counters)
	if err != nil {
		posW.Close()
		return 0, 0, 0, "", err
	}

	m := 0
	var maxName int32
	havePrev := false
	var prevPos int64
	walk := func() error {
		for {
			v, ok, err := sr.Read()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			pos := int64(v)
			if _, isLMS := lmsRank(lmsPos, pos); !isLMS {
				continue
			}
			diff := true
			if havePrev {
				eq, err := equalStarSubstrings(access, lmsPos, g.TextLen, prevPos, pos)
				if err != nil {
					return err
				}
				diff = !eq
			}
			if diff {
				maxName++
			}
			if err := posW.Write(uint64(pos)); err != nil {
				return err
			}
			bit := uint64(0)
			if diff {
				bit = 1
			}
			if err := diffW.WriteBit(bit); err != nil {
				return err
			}
			m++
			prevPos = pos
			havePrev = true
		}
	}
	err = walk()
	if cerr := posW.Close(); err == nil {
		err = cerr
	}
	if cerr := diffW.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, 0, 0, "", err
	}
	if rerr := ioutil.Remove(s.countPath); rerr != nil {
		return 0, 0, 0, "", rerr
	}
	return m, maxName, posW.PartsCount(), diffPath, nil
}

// namesInTextOrder rebuilds, from the persisted output_pos and
// output_diff streams read in reverse, the name of each LMS position
// indexed by its text-order rank: walking the order backward, the
// current name drops by one each time the diff bit marks a boundary.
func namesInTextOrder(g Global, lmsPos []int64, m int, maxName int32, posParts int, diffPath string, counters *ioutil.Counters) ([]int32, error) {
	nameOf := make([]int32, m)
	pr, err := stream.NewMultiPartBackwardReader[uint64](g.Base, "plus_star_pos", posParts, passBufItems, counters)
	if err != nil {
		return nil, err
	}
	defer pr.Close()
	br, err := stream.NewBackwardBitReader(diffPath, passBufItems, counters)
	if err != nil {
		return nil, err
	}
	defer br.Close()

	name := maxName
	for i := m - 1; i >= 0; i-- {
		v, ok, err := pr.Read()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ioutil.Fatalf(ioutil.ErrInvariant, "induce", "plus-star position stream truncated at rank %d", i)
		}
		bit, ok, err := br.ReadBit()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ioutil.Fatalf(ioutil.ErrInvariant, "induce", "plus-star diff stream truncated at rank %d", i)
		}
		idx, isLMS := lmsRank(lmsPos, int64(v))
		if !isLMS {
			return nil, ioutil.Fatalf(ioutil.ErrInvariant, "induce", "position %d in the plus-star stream is not a star position", v)
		}
		nameOf[idx] = name
		if bit != 0 {
			name--
		}
	}
	if err := ioutil.Remove(diffPath); err != nil {
		return nil, err
	}
	return nameOf, nil
}
