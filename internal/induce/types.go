// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package induce is the external-memory induction driver: given the
// per-block streams internal/block produces, it stitches block
// boundaries back together and places every suffix in global order,
// using internal/radixheap as the ordering engine and
// internal/stream's multi-part, multi-stream, and bit-stream variants
// as the on-disk carriers of the three passes (see DESIGN.md for how
// the three pass files below divide the work).
package induce

import "github.com/nekitakamenev/fsais/internal/ioutil"

// BlockMeta is one block's placement and bookkeeping, plus the paths
// of the six per-block streams internal/block.Output was split into
// and Build persisted to disk rather than keeping
// resident. It never holds a block's Output in RAM: every pass opens
// its own readers over these paths and discards them once a block's
// contribution is drained.
type BlockMeta struct {
	Base int64 // global offset of this block's position 0
	Len  int

	PlusPosPath     string
	PlusTypePath    string
	PlusSymbolsPath string

	MinusPosPath     string
	MinusTypePath    string
	MinusSymbolsPath string

	BlockCountTarget  int
	FirstPositionType bool
	MinusStarCount    int
	GlobalMinusStarBase int64
}

// Global is the full input to the induction driver: where the
// original text lives (read through textAccessor's bounded page cache,
// never loaded whole), its length and alphabet bound, and every
// block's metadata and stream paths.
type Global struct {
	TextPath      string
	TextLen       int64
	AlphabetBound uint64
	Blocks        []BlockMeta
	Base          ioutil.Basename
}
