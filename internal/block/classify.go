// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package block

// classify computes, for every position of aug (a block's text with
// one boundary symbol appended at aug[len(aug)-1]), its S/L type
// (isS[i] true means S-type/plus) and which positions are "star"
// positions in either direction: isPlusStar marks the classic
// LMS positions (S-type, preceded by L), and isMinusStar marks their
// mirror image (L-type, preceded by S), the flag the minus_type
// stream carries.
// This is the standard SA-IS backward-scan rule: position i is
// S-type when T[i] < T[i+1], or T[i] == T[i+1] and i+1 is S-type.
// The appended boundary symbol plays the role of T[i+1] for the
// block's real last position, which is exactly why Process appends
// it before calling this function instead of treating the block as a
// self-contained string.
//
// Position len(aug)-1 (the boundary slot) carries boundaryIsS as its
// type rather than a hardcoded L, so a value tie between the block's
// last real symbol and the boundary symbol resolves correctly against
// the true type of the next block's first position. Process's caller
// (Build's backward classification sweep, see DESIGN.md) resolves
// every block's boundary type before any block is fully processed,
// so by the time classify runs for block b the true type of block
// b+1's first position is already known; only the very last block of
// the text has no successor and passes boundaryIsS=false (the true
// end-of-text sentinel is always L-type).
func classify(aug []Symbol, boundaryIsS bool) (isS, isPlusStar, isMinusStar []bool) {
	n := len(aug)
	isS = make([]bool, n)
	isPlusStar = make([]bool, n)
	isMinusStar = make([]bool, n)
	if n == 0 {
		return isS, isPlusStar, isMinusStar
	}
	isS[n-1] = boundaryIsS
	for i := n - 2; i >= 0; i-- {
		switch {
		case aug[i] < aug[i+1]:
			isS[i] = true
		case aug[i] > aug[i+1]:
			isS[i] = false
		default:
			isS[i] = isS[i+1]
		}
	}
	for i := 1; i < n; i++ {
		isPlusStar[i] = isS[i] && !isS[i-1]
		isMinusStar[i] = !isS[i] && isS[i-1]
	}
	return isS, isPlusStar, isMinusStar
}
