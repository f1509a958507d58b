// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package induce

import (
	"sort"

	"github.com/nekitakamenev/fsais/internal/ioutil"
	"github.com/nekitakamenev/fsais/internal/stream"
)

// collectStars reads every block's position and type streams back off
// disk and returns the global plus-star (LMS) positions in text order
// plus the total minus-star count. Each block's observed minus-star
// count is cross-checked against the count the block inducer reported
// in its metadata, so a block whose persisted streams disagree with
// its bookkeeping fails loudly here instead of corrupting the passes.
//
// The returned position list is resident: one entry per LMS position,
// at most half the text length (see DESIGN.md on the resident
// structures this driver accepts).
func collectStars(g Global, counters *ioutil.Counters) ([]int64, int64, error) {
	var lms []int64
	var minusTotal int64
	for bi, b := range g.Blocks {
		pr, err := stream.NewMultiStreamReader[uint32]([]string{b.PlusPosPath, b.MinusPosPath}, passBufItems, counters)
		if err != nil {
			return nil, 0, err
		}
		pt, err := stream.NewBitReader(b.PlusTypePath, passBufItems, counters)
		if err != nil {
			pr.Close()
			return nil, 0, err
		}
		mt, err := stream.NewBitReader(b.MinusTypePath, passBufItems, counters)
		if err != nil {
			pr.Close()
			pt.Close()
			return nil, 0, err
		}

		scan := func() error {
			for {
				p, ok, err := pr.ReadFrom(0)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				bit, ok, err := pt.ReadBit()
				if err != nil {
					return err
				}
				if !ok {
					return ioutil.Fatalf(ioutil.ErrInvariant, "induce", "block %d plus type stream shorter than its position stream", bi)
				}
				if bit != 0 {
					lms = append(lms, b.Base+int64(p))
				}
			}
			var blockMinus int64
			for {
				_, ok, err := pr.ReadFrom(1)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				bit, ok, err := mt.ReadBit()
				if err != nil {
					return err
				}
				if !ok {
					return ioutil.Fatalf(ioutil.ErrInvariant, "induce", "block %d minus type stream shorter than its position stream", bi)
				}
				if bit != 0 {
					blockMinus++
				}
			}
			if blockMinus != int64(b.MinusStarCount) {
				return ioutil.Fatalf(ioutil.ErrInvariant, "induce", "block %d streams hold %d minus-star positions, metadata says %d", bi, blockMinus, b.MinusStarCount)
			}
			minusTotal += blockMinus
			return nil
		}
		err = scan()
		pr.Close()
		pt.Close()
		mt.Close()
		if err != nil {
			return nil, 0, err
		}
	}
	sort.Slice(lms, func(i, j int) bool { return lms[i] < lms[j] })
	return lms, minusTotal, nil
}

// lmsRank binary-searches pos in the ascending LMS position list,
// returning its index and whether it is an LMS position at all.
func lmsRank(lmsPos []int64, pos int64) (int, bool) {
	i := sort.Search(len(lmsPos), func(k int) bool { return lmsPos[k] >= pos })
	return i, i < len(lmsPos) && lmsPos[i] == pos
}

// starSubstringLen is the extent of the star substring at p: up to
// and including the next LMS position, or through the implicit
// sentinel slot when no LMS position follows. The sentinel slot makes
// the text's final star substring unequal to every interior one (the
// accessor reads the slot as the reserved symbol 0, below any real
// symbol).
func starSubstringLen(lmsPos []int64, textLen, p int64) int64 {
	i := sort.Search(len(lmsPos), func(k int) bool { return lmsPos[k] > p })
	if i < len(lmsPos) {
		return lmsPos[i] - p + 1
	}
	return textLen - p + 1
}

// equalStarSubstrings reports whether the star substrings at a and b
// are identical: equal extents and equal symbols. This is the only
// content comparison in the whole driver, it is bounded by the
// substring extents, and it never has to order the two (ordering
// comes from the induction sweeps).
func equalStarSubstrings(access *textAccessor, lmsPos []int64, textLen, a, b int64) (bool, error) {
	la := starSubstringLen(lmsPos, textLen, a)
	lb := starSubstringLen(lmsPos, textLen, b)
	if la != lb {
		return false, nil
	}
	for k := int64(0); k < la; k++ {
		va, err := access.At(a + k)
		if err != nil {
			return false, err
		}
		vb, err := access.At(b + k)
		if err != nil {
			return false, err
		}
		if va != vb {
			return false, nil
		}
	}
	return true, nil
}
