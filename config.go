// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package fsais builds a suffix array for a text too large to sort in
// RAM, using the external-memory SA-IS family of algorithms: the text
// is partitioned into RAM-sized blocks (internal/block), and block
// boundaries are stitched back into one global order by an
// induction driver (internal/induce) backed by an external-memory
// radix heap (internal/radixheap) and an asynchronous typed-stream
// I/O layer (internal/stream).
package fsais

import (
	"math"

	"github.com/nekitakamenev/fsais/internal/ioutil"
)

// Config holds every knob Build needs: the RAM budget that bounds
// block size, the text's alphabet, where to stage tempfiles, and how
// much to report back.
type Config struct {
	// BlockSize is the number of symbols held resident per block: the
	// RAM budget expressed directly in symbol count rather than bytes,
	// since the block inducer's cost is symbol-count-bound, not
	// byte-bound.
	BlockSize int
	// AlphabetBound is one past the largest symbol value the text may
	// contain; symbol 0 is reserved as the sentinel (internal/block's
	// convention), so real symbols occupy [1, AlphabetBound).
	AlphabetBound uint64
	// Basename roots every tempfile this build spills (internal/radixheap,
	// internal/stream multi-part writers).
	Basename ioutil.Basename
	// Listener receives progress events; nil is valid and silences
	// reporting entirely.
	Listener ioutil.Listener
	// UseVarintPositions enables delta/varint-encoded output position
	// streams (see DESIGN.md, supplemented feature from original_source/'s
	// async_vbyte_stream_reader) instead of fixed-width positions, worth
	// it once the block count makes most deltas small.
	UseVarintPositions bool
	// MaxParallelBlocks bounds how many blocks internal/block.Process
	// runs concurrently via golang.org/x/sync/errgroup. Block
	// preprocessing takes one block plus one symbol of lookahead as
	// input and touches nothing shared, so it parallelizes cleanly
	// even though the induction passes that follow stay
	// single-threaded. 0 or 1 runs blocks sequentially.
	MaxParallelBlocks int
}

// Validate bails out before any work starts on bad parameters:
// configuration errors are checked once, up front, never mid-pass.
func (c Config) Validate() error {
	if c.BlockSize <= 0 {
		return ioutil.Fatalf(ioutil.ErrConfig, "fsais", "block size must be positive, got %d", c.BlockSize)
	}
	if c.AlphabetBound < 2 {
		return ioutil.Fatalf(ioutil.ErrConfig, "fsais", "alphabet bound must be at least 2 (symbol 0 reserved), got %d", c.AlphabetBound)
	}
	if c.Basename == "" {
		return ioutil.Fatalf(ioutil.ErrConfig, "fsais", "basename must not be empty")
	}
	// block.Symbol is int32: every real symbol must fit its
	// non-negative range.
	if c.AlphabetBound-1 > math.MaxInt32 {
		return ioutil.Fatalf(ioutil.ErrTypeCapacity, "fsais", "alphabet bound %d does not fit int32 symbols", c.AlphabetBound)
	}
	return nil
}
