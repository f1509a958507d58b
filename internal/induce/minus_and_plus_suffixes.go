// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package induce

import (
	"github.com/nekitakamenev/fsais/internal/ioutil"
	"github.com/nekitakamenev/fsais/internal/stream"
)

// InduceMinusAndPlusSuffixes is Pass C: the suffix-level pair of
// induction sweeps. Where the substring-level sweeps could seed the
// LMS positions in any within-bucket order, here the seeds are the
// recursion's fully-sorted LMS suffixes (already grouped by head
// character, being sorted), which is all induced sorting needs to
// place every remaining suffix exactly. The second sweep re-emits the
// first sweep's items interleaved with its own, so its output stream
// is the exact reverse of the final suffix array; one backward read
// hands every position to emit in final order.
func InduceMinusAndPlusSuffixes(g Global, counters *ioutil.Counters, sortedLMS []int64, emit func(globalPos int64) error) error {
	access, err := newTextAccessor(g.TextPath, g.TextLen, passBufItems, 64, counters)
	if err != nil {
		return err
	}
	defer access.Close()

	l, _, err := runInduceL(access, g, sortedLMS, "suf_minus_pos", "", counters)
	if err != nil {
		return err
	}
	all, err := runInduceS(access, g, l, "suf_all_pos", true, counters)
	if err != nil {
		return err
	}

	r, err := stream.NewMultiPartBackwardReader[uint64](g.Base, all.tag, all.parts, passBufItems, counters)
	if err != nil {
		return err
	}
	defer r.Close()

	var n int64
	for {
		v, ok, err := r.Read()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := emit(int64(v)); err != nil {
			return err
		}
		n++
	}
	if n != g.TextLen {
		return ioutil.Fatalf(ioutil.ErrInvariant, "induce", "final sweep emitted %d positions for a text of length %d", n, g.TextLen)
	}
	return ioutil.Remove(all.countPath)
}
