// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package block

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/bits"
	"slices"
)

// SortSuffixes returns the suffix array of text, a self-contained
// int32 string over an arbitrary alphabet, treating the end of the
// array as followed by a sentinel smaller than every symbol. The
// induction driver calls it on the reduced name string when
// star-substring names collide, so the recursion that resolves those
// ties runs through the same solver the per-block preprocessing uses.
func SortSuffixes(text []int32) []int32 {
	return leafSAIS(text)
}

// leafSAIS constructs a suffix array for a self-contained int32 string
// using SA-IS. It has exactly two callers: Process, once per block on
// the block's text with one boundary symbol appended, and
// SortSuffixes, on the reduced name string (at most half the text
// length) when the induction driver recurses. Neither ever hands it
// the whole text (see DESIGN.md).
func leafSAIS(text []int32) []int32 {
	if len(text) == 0 {
		return []int32{}
	} else if len(text) == 1 {
		return []int32{0}
	}
	return _leafSAIS(text, nil, nil, 0)
}

func _leafSAIS(text, sa, data []int32, srcAlphaSize int32) []int32 {
	var (
		minChar, maxChar int32 = text[0], text[0]
		l, r, numLMS     int32
		S                bool
	)
	for i := len(text) - 1; i >= 0; i-- {
		l, r = text[i], l
		if l < minChar {
			minChar = l
		}
		if l > maxChar {
			maxChar = l
		}
		if l < r {
			S = true
		} else if l > r && S {
			S = false
			numLMS++
		}
	}
	currAlphaSize := maxChar - minChar + 1
	if sa == nil {
		srcAlphaSize = currAlphaSize
		sa = make([]int32, len(text))
	}
	if currAlphaSize > 256 || currAlphaSize > srcAlphaSize {
		return leafInduceSortArb(text, sa, data, numLMS)
	}
	return leafInduceSort(text, sa, data, minChar, numLMS, srcAlphaSize, currAlphaSize)
}

func leafInduceSort(text, sa, data []int32, minChar, numLMS, srcAlphaSize, currAlphaSize int32) []int32 {
	if data == nil || len(data) < int(srcAlphaSize)*2 {
		data = make([]int32, srcAlphaSize*2)
	}
	var summary []int32
	freq := data[:currAlphaSize]
	buckets := data[srcAlphaSize : srcAlphaSize+currAlphaSize]
	frequency(text, freq, minChar)

	insertLMS(text, sa, freq, buckets, minChar)
	if numLMS > 1 {
		induceSubL(text, sa, freq, buckets, minChar)
		induceSubS(text, sa, freq, buckets, minChar)
		summary = sa[len(sa)-int(numLMS):]
		maxName := summarise(text, sa, summary, numLMS)

		summarySA := sa[:numLMS]
		if maxName < numLMS {
			_leafSAIS(summary, summarySA, data, srcAlphaSize)
			unmap(text, sa, summarySA, summary)
		} else {
			copy(summarySA, summary)
			clear(sa[numLMS:])
		}
		expand(text, sa, summarySA, freq, buckets, minChar)
	}
	induceL(text, sa, freq, buckets, minChar)
	induceS(text, sa, freq, buckets, minChar)
	return sa
}

func unmap(text, sa, summarySA, LMS []int32) {
	var (
		j    int32 = int32(len(LMS))
		l, r int32
		S    bool
	)
	for i := len(text) - 1; i >= 0; i-- {
		l, r = text[i], l
		if l < r {
			S = true
		} else if l > r && S {
			S = false
			j--
			LMS[j] = int32(i) + 1
		}
	}
	for i := 0; i < len(LMS); i++ {
		j = summarySA[i]
		sa[i] = LMS[j]
		LMS[j] = 0
	}
}

func expand(text, sa, summarySA, freq, bucket []int32, minChar int32) {
	frequency(text, freq, minChar)
	bucketEnd(freq, bucket)
	var lmsIdx, b, j int32
	for i := len(summarySA) - 1; i >= 0; i-- {
		lmsIdx = summarySA[i]
		summarySA[i] = 0
		j = text[lmsIdx] - minChar
		b = bucket[j]
		sa[b] = lmsIdx
		bucket[j] = b - 1
	}
}

func frequency(text, freq []int32, minChar int32) {
	clear(freq)
	for _, v := range text {
		freq[v-minChar]++
	}
}

func bucketStart(freq, bucket []int32) {
	var offset int32
	for i, n := range freq {
		if n > 0 {
			bucket[i] = offset
			offset += n
		}
	}
}

func bucketEnd(freq, bucket []int32) {
	var offset int32
	for i, n := range freq {
		if n > 0 {
			offset += n
			bucket[i] = offset - 1
		}
	}
}

func insertLMS(text, sa, freq, bucket []int32, minChar int32) {
	bucketEnd(freq, bucket)
	var (
		l, r, i, j, b, lastLMS int32
		numLMS                 int
		S                      bool
	)
	for i = int32(len(text) - 1); i >= 0; i-- {
		l, r = text[i], l
		if l < r {
			S = true
		} else if l > r && S {
			S = false
			j = r - minChar
			b = bucket[j]
			bucket[j] = b - 1
			sa[b] = i + 1
			lastLMS = b
			numLMS++
		}
	}
	if numLMS > 1 {
		sa[lastLMS] = 0
	}
}

func induceSubL(text, sa, freq, bucket []int32, minChar int32) {
	bucketStart(freq, bucket)
	var (
		k, j     int32 = int32(len(text) - 1), 0
		l, r     int32 = text[k-1], text[k]
		lastChar int32 = text[len(text)-1]
		b        int32 = bucket[lastChar-minChar]
	)
	if l < r {
		k = -k
	}
	bucket[lastChar-minChar] = b + 1
	sa[b] = int32(k)

	for i := 0; i < len(sa); i++ {
		if sa[i] == 0 {
			continue
		}
		j = sa[i]
		if j < 0 {
			sa[i] = -j
			continue
		}
		sa[i] = 0
		k = j - 1
		l, r = text[k-1], text[k]
		if l < r {
			k = -k
		}
		b = bucket[r-minChar]
		bucket[r-minChar] = b + 1
		sa[b] = k
	}
}

func induceSubS(text, sa, freq, bucket []int32, minChar int32) {
	bucketEnd(freq, bucket)
	var (
		j, b, l, r, k int32
		top           = len(sa)
	)
	for i := len(sa) - 1; i >= 0; i-- {
		j = sa[i]
		if j == 0 {
			continue
		}
		sa[i] = 0
		if j < 0 {
			top--
			sa[top] = -j
			continue
		}
		k = j - 1
		l, r = text[k-1], text[k]
		if l > r {
			k = -k
		}
		b = bucket[r-minChar]
		bucket[r-minChar] = b - 1
		sa[b] = k
	}
}

func induceL(text, sa, freq, bucket []int32, minChar int32) {
	bucketStart(freq, bucket)
	var (
		k, j     int32 = int32(len(text) - 1), 0
		l, r     int32 = text[k-1], text[k]
		lastChar int32 = text[len(text)-1]
		b        int32 = bucket[lastChar-minChar]
	)
	if l < r {
		k = -k
	}
	bucket[lastChar-minChar] = b + 1
	sa[b] = int32(k)

	for i := 0; i < len(sa); i++ {
		j = sa[i]
		if j <= 0 {
			continue
		}
		k = j - 1
		r = text[k]
		if k > 0 {
			if l = text[k-1]; l < r {
				k = -k
			}
		}
		b = bucket[r-minChar]
		bucket[r-minChar] = b + 1
		sa[b] = k
	}
}

func induceS(text, sa, freq, bucket []int32, minChar int32) {
	bucketEnd(freq, bucket)
	var j, l, r, k, b int32
	for i := len(sa) - 1; i >= 0; i-- {
		j = sa[i]
		if j >= 0 {
			continue
		}
		j = -j
		sa[i] = j
		k = j - 1
		r = text[k]
		if k > 0 {
			if l = text[k-1]; l <= r {
				k = -k
			}
		}
		b = bucket[r-minChar]
		bucket[r-minChar] = b - 1
		sa[b] = k
	}
}

func lengthLMS(text, sa []int32) {
	var (
		l, r int32
		prev int32 = int32(len(text)) - 1
		S    bool
	)
	for i := len(text) - 1; i >= 0; i-- {
		l, r = text[i], l
		if l < r {
			S = true
		} else if l > r && S {
			S = false
			sa[(i+1)/2] = prev - int32(i)
			prev = int32(i)
		}
	}
}

func equalLMS(text []int32, l, r, lLen, rLen int32) bool {
	if lLen != rLen {
		return false
	}
	for lLen > 0 {
		if text[l] != text[r] {
			return false
		}
		l++
		r++
		lLen--
	}
	return true
}

func summarise(text, sa, summary []int32, numLMS int32) int32 {
	lengthLMS(text, sa)
	var (
		name, maxName int32 = 1, 1
		posLMS              = summary
		prev, curr    int32 = sa[posLMS[0]], 0
		prevLen       int32 = sa[posLMS[0]/2]
	)
	sa[posLMS[0]/2] = name
	for i := 1; i < len(posLMS); i++ {
		prev = posLMS[i-1]
		curr = posLMS[i]
		if !equalLMS(text, prev, curr, prevLen, sa[curr/2]) {
			name++
			maxName++
		}
		prevLen = sa[curr/2]
		sa[curr/2] = name
	}
	if maxName >= numLMS {
		return maxName
	}
	var j int
	for i := 0; i < len(sa)/2; i++ {
		curr := sa[i]
		if curr <= 0 {
			continue
		}
		sa[i], summary[j] = 0, curr
		j++
	}
	return maxName
}

// leafBucket tracks a (start, end, size) window for one character when
// the alphabet is too large or too irregular for a dense freq/bucket
// array, as with blocks drawn from a wide alphabet such as a name
// stream from a previous recursion level.
type leafBucket struct {
	start, end, size int32
}

func linearCount(text, tmp []int32) uint64 {
	n := len(text)
	totalBits := uint64(n * 32)

	var buf [4]byte
	h := fnv.New64a()

	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[:], uint32(text[i]))
		h.Reset()
		h.Write(buf[:])
		x := h.Sum64()
		bitIndex := x % totalBits
		slot := bitIndex / 32
		bit := uint32(bitIndex % 32)
		tmp[slot] |= int32(1 << bit)
	}

	zeroBits := 0
	for i := 0; i < n; i++ {
		val := uint32(tmp[i])
		zeroBits += bits.OnesCount32(^val)
		tmp[i] = 0
	}

	if zeroBits == 0 {
		return totalBits
	}
	estimate := -float64(totalBits) * math.Log(float64(zeroBits)/float64(totalBits))
	return uint64(estimate + 0.5)
}

func makeBucketsMap(sa, text []int32) (map[int32]leafBucket, int32) {
	lc := int(linearCount(text, sa))
	sz := lc + int(float32(lc)*0.1)
	bucketsMap := make(map[int32]leafBucket, sz)
	var alphaSize int32
	for i := 0; i < len(text); i++ {
		curr := text[i]
		bkt, exists := bucketsMap[curr]
		if !exists {
			sa[alphaSize] = curr
			alphaSize++
		}
		bkt.size++
		bucketsMap[curr] = bkt
	}
	alphabet := sa[:alphaSize]
	slices.Sort(alphabet)
	var (
		offset, n int32
		curr      leafBucket
	)
	for i := 0; i < len(alphabet); i++ {
		n, alphabet[i] = alphabet[i], 0
		curr = bucketsMap[n]
		curr.start = offset
		offset += curr.size
		curr.end = offset - 1
		bucketsMap[n] = curr
	}
	return bucketsMap, alphaSize
}

func leafInduceSortArb(text, sa, data []int32, numLMS int32) []int32 {
	bucketsMap, alphaSize := makeBucketsMap(sa, text)
	var summary []int32

	insertLMSArb(text, sa, bucketsMap)
	if numLMS > 1 {
		induceSubLArb(text, sa, bucketsMap)
		induceSubSArb(text, sa, bucketsMap)
		summary = sa[len(sa)-int(numLMS):]
		maxName := summarise(text, sa, summary, numLMS)

		summarySA := sa[:numLMS]
		if maxName < numLMS {
			_leafSAIS(summary, summarySA, data, alphaSize)
			unmap(text, sa, summarySA, summary)
		} else {
			copy(summarySA, summary)
			clear(sa[numLMS:])
		}
		expandArb(text, sa, summarySA, bucketsMap)
	}
	induceLArb(text, sa, bucketsMap)
	induceSArb(text, sa, bucketsMap)
	return sa
}

func bucketStartArb(buckets map[int32]leafBucket) {
	for ch, b := range buckets {
		b.start = b.end - b.size + 1
		buckets[ch] = b
	}
}

func bucketEndArb(buckets map[int32]leafBucket) {
	for ch, b := range buckets {
		b.end = b.start + b.size - 1
		buckets[ch] = b
	}
}

func expandArb(text, sa, summarySA []int32, buckets map[int32]leafBucket) {
	var (
		b         leafBucket
		lmsIdx, j int32
	)
	for i := len(summarySA) - 1; i >= 0; i-- {
		lmsIdx = summarySA[i]
		summarySA[i] = 0
		j = text[lmsIdx]
		b = buckets[j]
		sa[b.end] = lmsIdx
		b.end--
		buckets[j] = b
	}
	bucketEndArb(buckets)
}

func insertLMSArb(text, sa []int32, buckets map[int32]leafBucket) {
	var (
		b                leafBucket
		l, r, i, lastLMS int32
		numLMS           int
		S                bool
	)
	for i = int32(len(text) - 1); i >= 0; i-- {
		l, r = text[i], l
		if l < r {
			S = true
		} else if l > r && S {
			S = false
			b = buckets[r]
			sa[b.end] = i + 1
			lastLMS = b.end
			numLMS++
			b.end--
			buckets[r] = b
		}
	}
	if numLMS > 1 {
		sa[lastLMS] = 0
	}
	bucketEndArb(buckets)
}

func induceSubLArb(text, sa []int32, buckets map[int32]leafBucket) {
	var (
		k, j     int32      = int32(len(text) - 1), 0
		l, r     int32      = text[k-1], text[k]
		lastChar int32      = text[len(text)-1]
		b        leafBucket = buckets[lastChar]
	)
	if l < r {
		k = -k
	}
	sa[b.start] = int32(k)
	if b.size > 1 {
		b.start++
		buckets[lastChar] = b
	}

	for i := 0; i < len(sa); i++ {
		if sa[i] == 0 {
			continue
		}
		j = sa[i]
		if j < 0 {
			sa[i] = -j
			continue
		}
		sa[i] = 0
		k = j - 1
		l, r = text[k-1], text[k]
		if l < r {
			k = -k
		}
		b = buckets[r]
		sa[b.start] = k
		b.start++
		buckets[r] = b
	}
	bucketStartArb(buckets)
}

func induceSubSArb(text, sa []int32, buckets map[int32]leafBucket) {
	var (
		b          leafBucket
		j, l, r, k int32
		top        = len(sa)
	)
	for i := len(sa) - 1; i >= 0; i-- {
		j = sa[i]
		if j == 0 {
			continue
		}
		sa[i] = 0
		if j < 0 {
			top--
			sa[top] = -j
			continue
		}
		k = j - 1
		l, r = text[k-1], text[k]
		if l > r {
			k = -k
		}
		b = buckets[r]
		sa[b.end] = k
		b.end--
		buckets[r] = b
	}
	bucketEndArb(buckets)
}

func induceLArb(text, sa []int32, buckets map[int32]leafBucket) {
	var (
		k, j     int32      = int32(len(text) - 1), 0
		l, r     int32      = text[k-1], text[k]
		lastChar int32      = text[len(text)-1]
		b        leafBucket = buckets[lastChar]
	)
	if l < r {
		k = -k
	}
	sa[b.start] = int32(k)
	b.start++
	buckets[lastChar] = b

	for i := 0; i < len(sa); i++ {
		j = sa[i]
		if j <= 0 {
			continue
		}
		k = j - 1
		r = text[k]
		if k > 0 {
			if l = text[k-1]; l < r {
				k = -k
			}
		}
		b = buckets[r]
		sa[b.start] = k
		b.start++
		buckets[r] = b
	}
	bucketStartArb(buckets)
}

func induceSArb(text, sa []int32, buckets map[int32]leafBucket) {
	for i := len(sa) - 1; i >= 0; i-- {
		j := sa[i]
		if j >= 0 {
			continue
		}
		j = -j
		sa[i] = j
		k := j - 1
		r := text[k]
		if k > 0 {
			if l := text[k-1]; l <= r {
				k = -k
			}
		}
		b := buckets[r]
		sa[b.end] = k
		b.end--
		buckets[r] = b
	}
	bucketEndArb(buckets)
}
