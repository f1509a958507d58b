// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package block

import "github.com/nekitakamenev/fsais/internal/ioutil"

// Process is the in-memory block inducer: it classifies every
// position of in.Text, resolves LMS boundaries, sorts the block's
// suffixes (extended by one lookahead symbol) with leafSAIS, and
// splits the resulting order into the per-block streams.
//
// A position at block-local offset 0 never carries a preceding symbol
// within this block; when offset 0 is not a star, its PlusSymbols or
// MinusSymbols entry is a placeholder 0 (the true predecessor lives in
// the previous block). The induction passes take predecessor symbols
// from the text itself and never read the symbol streams, so nothing
// replaces the placeholder; see DESIGN.md.
func Process(in Input) (Output, error) {
	n := len(in.Text)
	if n == 0 {
		return Output{}, ioutil.Fatalf(ioutil.ErrInvariant, "block", "process called on an empty block")
	}

	boundary := in.NextFirstSymbol
	boundaryIsS := in.NextFirstType
	if !in.HasNext {
		boundary = 0
		boundaryIsS = false
	}
	aug := make([]int32, n+1)
	copy(aug, in.Text)
	aug[n] = boundary

	isS, isPlusStar, isMinusStar := classify(aug, boundaryIsS)
	if in.HasPrev {
		isPlusStar[0] = isS[0] && !in.PrevLastType
		isMinusStar[0] = !isS[0] && in.PrevLastType
	}
	localSA := leafSAIS(aug)

	out := Output{FirstPositionType: isS[0]}
	for _, pos := range localSA {
		if int(pos) == n {
			continue // the appended boundary slot, not part of this block
		}
		p := int(pos)
		if isS[p] {
			out.PlusPos = append(out.PlusPos, int32(p))
			out.PlusType = append(out.PlusType, isPlusStar[p])
			if !isPlusStar[p] {
				out.PlusSymbols = append(out.PlusSymbols, precedingSymbol(in.Text, p))
			}
		} else {
			out.MinusPos = append(out.MinusPos, int32(p))
			out.MinusType = append(out.MinusType, isMinusStar[p])
			if isMinusStar[p] {
				out.MinusStarCount++
			} else {
				out.MinusSymbols = append(out.MinusSymbols, precedingSymbol(in.Text, p))
			}
		}
		if p == 0 {
			out.BlockCountTarget = len(out.PlusPos) + len(out.MinusPos) - 1
		}
	}
	out.GlobalMinusStarBase = in.NextBlockMinusStarRank - int64(out.MinusStarCount)
	return out, nil
}

// ClassifyCounts runs the same backward S/L classification Process
// uses, but skips the leaf sort entirely: it exists for Build's
// backward stitching sweep (see DESIGN.md), which needs every block's
// own boundary types and minus-star count before any block can be
// fully Process-ed, and doing that with the full leaf sort up front
// would double the expensive half of the work instead of the cheap
// half.
//
// minusStarCount covers offsets 1..n-1 only: whether offset 0 is a
// star depends on the previous block's last position, which the
// backward sweep has not resolved yet when this block is visited.
// The caller applies that correction in its forward pass, from
// lastPositionType of the preceding block.
func ClassifyCounts(text []Symbol, nextFirstSymbol Symbol, nextFirstType, hasNext bool) (firstPositionType, lastPositionType bool, minusStarCount int, err error) {
	n := len(text)
	if n == 0 {
		return false, false, 0, ioutil.Fatalf(ioutil.ErrInvariant, "block", "classify counts called on an empty block")
	}
	boundary := nextFirstSymbol
	boundaryIsS := nextFirstType
	if !hasNext {
		boundary = 0
		boundaryIsS = false
	}
	aug := make([]int32, n+1)
	copy(aug, text)
	aug[n] = boundary
	isS, _, isMinusStar := classify(aug, boundaryIsS)
	for i := 1; i < n; i++ {
		if isMinusStar[i] {
			minusStarCount++
		}
	}
	return isS[0], isS[n-1], minusStarCount, nil
}

// precedingSymbol returns T[p-1], or the placeholder 0 for p == 0 (see
// Process's doc comment).
func precedingSymbol(text []Symbol, p int) Symbol {
	if p == 0 {
		return 0
	}
	return text[p-1]
}
