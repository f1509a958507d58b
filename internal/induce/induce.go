// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package induce

import "github.com/nekitakamenev/fsais/internal/ioutil"

// Result is the small, resident-sized summary Induce returns once the
// full suffix order has been streamed to emit: the star counts and
// naming summary Pass A/B derived, and for each block the number of
// emitted suffix positions that fall inside it (nothing compares this
// with internal/block's BlockCountTarget; see DESIGN.md).
type Result struct {
	PlusStarCount  int
	MinusStarCount int
	MaxStarName    int32
	BlockCount     []int64
}

// Induce runs the three-pass induction driver over g: Pass A sorts
// and names the plus-star substrings and recurses on the reduced name
// string where names collide, Pass B names the minus-star substrings
// off the same substring induction, and Pass C places every suffix,
// star and non-star alike, in final order, handing each one to emit
// as it is discovered rather than collecting the whole order
// resident. Before any pass runs, the per-block streams are read back
// and each block's minus-star count is cross-checked against the block
// metadata, so minus-star counts agree between the block inducer's
// view and this driver's.
func Induce(g Global, counters *ioutil.Counters, emit func(globalPos int64) error) (Result, error) {
	lmsPos, minusTotal, err := collectStars(g, counters)
	if err != nil {
		return Result{}, err
	}

	plus, err := InducePlusStarSubstrings(g, counters, lmsPos)
	if err != nil {
		return Result{}, err
	}
	maxName, minusCount, err := InduceMinusStarSubstrings(g, counters, plus.MaxName, lmsPos, plus.MinusStars)
	if err != nil {
		return Result{}, err
	}
	if minusCount != minusTotal {
		return Result{}, ioutil.Fatalf(ioutil.ErrInvariant, "induce", "substring induction found %d minus-star positions, blocks emitted %d", minusCount, minusTotal)
	}

	blockCount := make([]int64, len(g.Blocks))
	rangeOf := func(pos int64) int {
		lo, hi := 0, len(g.Blocks)-1
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if g.Blocks[mid].Base <= pos {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		return lo
	}
	counted := func(pos int64) error {
		if len(g.Blocks) > 0 {
			blockCount[rangeOf(pos)]++
		}
		return emit(pos)
	}

	if err := InduceMinusAndPlusSuffixes(g, counters, plus.SortedLMS, counted); err != nil {
		return Result{}, err
	}

	return Result{
		PlusStarCount:  len(lmsPos),
		MinusStarCount: int(minusCount),
		MaxStarName:    maxName,
		BlockCount:     blockCount,
	}, nil
}
