// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package block implements the in-memory per-block SA-IS
// preprocessing: given one RAM-resident text block and one symbol of
// lookahead into the next block, it classifies every position as
// S-type (plus) or L-type (minus), determines which are LMS ("star")
// positions, sorts them via induced sorting, and emits the per-block
// streams the induction driver consumes.
//
// The block-local ordering itself is obtained by running the SA-IS
// solver in leafsort.go on the block plus one lookahead symbol,
// rather than maintaining a separate inline classify/induce/name
// path; see DESIGN.md for why that trade was made.
package block

// Symbol is a block-local alphabet value. The leaf solver operates on
// int32 text, so block symbols are required to fit in the
// non-negative int32 range with 0 reserved as the boundary/sentinel
// value; the solver's backward scan relies on a zero-valued "virtual
// next character" at its start.
type Symbol = int32

// Input is one block's worth of work for Process.
type Input struct {
	// Text is T[bB..(b+1)B), block-local offsets 0..len(Text)-1.
	Text []Symbol
	// NextFirstSymbol is the first symbol of block b+1, used to
	// resolve the type of this block's final position. Ignored when
	// HasNext is false.
	NextFirstSymbol Symbol
	// NextFirstType is the true S/L type (true = S) of block b+1's
	// first position, resolved by Build's backward classification
	// sweep before any block is fully Process-ed (see DESIGN.md).
	// Ignored when HasNext is false, where the true end-of-text
	// sentinel is always L-type.
	NextFirstType bool
	// NextBlockMinusStarRank is the global rank of the leftmost
	// minus-star position in block b+1 among all minus-star
	// positions, i.e. the count of minus-star positions in every block
	// up to and including this one. Build's backward sweep computes
	// every block's minus-star count first, then a forward prefix sum
	// turns those into this per-block rank before Process ever runs
	// (see DESIGN.md). Process uses it for every block, the last one
	// included, to derive Output.GlobalMinusStarBase.
	NextBlockMinusStarRank int64
	// HasNext is false only for the last block of the text, where the
	// true end-of-text sentinel (smaller than every real symbol, value
	// 0 by this package's convention) takes the place of
	// NextFirstSymbol.
	HasNext bool
	// PrevLastType is the S/L type (true = S) of the final position of
	// block b-1. A block's own backward classification cannot decide
	// whether its offset 0 is a star position (that needs the type of
	// the position before it, which lives in the previous block), so
	// Process corrects the offset-0 star flags from this field.
	// Ignored when HasPrev is false; block 0's offset 0 is the text's
	// position 0, which is never a star.
	PrevLastType bool
	// HasPrev is false only for block 0.
	HasPrev bool
}

// Output holds the per-block streams plus the
// block-boundary stitching metadata the induction driver needs to
// place a block's minus-star run in the global order without
// touching any other block's data.
type Output struct {
	PlusPos      []int32
	PlusType     []bool
	PlusSymbols  []Symbol
	MinusPos     []int32
	MinusType    []bool
	MinusSymbols []Symbol
	// BlockCountTarget is the ordinal position, in the block-local
	// induced order, at which offset 0 of the block appears.
	BlockCountTarget int
	// FirstPositionType is the S/L type of this block's own offset 0,
	// handed backward (in text order) to block b-1 as its
	// NextFirstType during Build's classification sweep.
	FirstPositionType bool
	// MinusStarCount is the number of minus-star (LMS, L-type)
	// positions in this block.
	MinusStarCount int
	// GlobalMinusStarBase is the global rank of this block's own
	// leftmost minus-star position, derived from
	// Input.NextBlockMinusStarRank minus this block's own
	// MinusStarCount, for the last block as for every other.
	GlobalMinusStarBase int64
}
