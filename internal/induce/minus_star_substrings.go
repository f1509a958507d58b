// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package induce

import (
	"github.com/nekitakamenev/fsais/internal/ioutil"
	"github.com/nekitakamenev/fsais/internal/stream"
)

// InduceMinusStarSubstrings is Pass B: it names the minus-star
// substrings off the stream Pass A's substring induction already
// emitted in sorted order, assigning names disjoint from the
// plus-star namespace by starting past plusMaxName. A minus-star
// substring runs from its position through the next plus-star
// position (or the sentinel), so adjacent-equality is bounded the
// same way Pass A's naming is; reading the stream in reverse (the
// backward reader deletes its parts) counts the same distinct names
// the forward order would.
//
// The final suffix placement does not consume these names (the
// recursion over plus-star names fixes every tie), so the pass
// returns the naming summary rather than persisting another stream.
func InduceMinusStarSubstrings(g Global, counters *ioutil.Counters, plusMaxName int32, lmsPos []int64, minus inducedStreams) (int32, int64, error) {
	access, err := newTextAccessor(g.TextPath, g.TextLen, passBufItems, 64, counters)
	if err != nil {
		return 0, 0, err
	}
	defer access.Close()

	r, err := stream.NewMultiPartBackwardReader[uint64](g.Base, minus.tag, minus.parts, passBufItems, counters)
	if err != nil {
		return 0, 0, err
	}
	defer r.Close()

	var count int64
	var distinct int32
	havePrev := false
	var prevPos int64
	for {
		v, ok, err := r.Read()
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			break
		}
		pos := int64(v)
		diff := true
		if havePrev {
			// A minus-star substring has the same extent rule as a
			// plus-star one: through the next star position after it.
			eq, err := equalStarSubstrings(access, lmsPos, g.TextLen, pos, prevPos)
			if err != nil {
				return 0, 0, err
			}
			diff = !eq
		}
		if diff {
			distinct++
		}
		count++
		prevPos = pos
		havePrev = true
	}
	return plusMaxName + distinct, count, nil
}
