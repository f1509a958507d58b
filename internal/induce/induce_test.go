package induce

import (
	"fmt"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekitakamenev/fsais/internal/block"
	"github.com/nekitakamenev/fsais/internal/ioutil"
	"github.com/nekitakamenev/fsais/internal/stream"
)

// naiveSuffixOrder sorts the text's suffixes the obvious way, as an
// oracle for the full three-pass driver.
func naiveSuffixOrder(text []uint32) []int64 {
	idx := make([]int64, len(text))
	for i := range idx {
		idx[i] = int64(i)
	}
	sort.Slice(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		for int(i) < len(text) && int(j) < len(text) {
			if text[i] != text[j] {
				return text[i] < text[j]
			}
			i++
			j++
		}
		return int(i) >= len(text) && int(j) < len(text)
	})
	return idx
}

func writeUint32File(t *testing.T, path string, vals []int32) {
	t.Helper()
	w, err := stream.NewForwardWriter[uint32](path, 0, nil)
	require.NoError(t, err)
	for _, v := range vals {
		require.NoError(t, w.Write(uint32(v)))
	}
	require.NoError(t, w.Close())
}

func writeBitFile(t *testing.T, path string, vals []bool) {
	t.Helper()
	w, err := stream.NewBitWriter(path, 0, nil)
	require.NoError(t, err)
	for _, v := range vals {
		bit := uint64(0)
		if v {
			bit = 1
		}
		require.NoError(t, w.WriteBit(bit))
	}
	require.NoError(t, w.Close())
}

// buildGlobal mirrors what the top-level driver does before handing
// off to Induce: the backward classification sweep that resolves every
// block's boundary inputs, the forward offset-0 star correction and
// prefix sum, then block.Process per block with its streams persisted
// to disk.
func buildGlobal(t *testing.T, dir string, text []uint32, blockSize int) Global {
	t.Helper()
	textPath := filepath.Join(dir, "text.bin")
	tw, err := stream.NewForwardWriter[uint32](textPath, 0, nil)
	require.NoError(t, err)
	for _, v := range text {
		require.NoError(t, tw.Write(v))
	}
	require.NoError(t, tw.Close())

	nBlocks := (len(text) + blockSize - 1) / blockSize
	window := func(b int) []block.Symbol {
		base := b * blockSize
		end := base + blockSize
		if end > len(text) {
			end = len(text)
		}
		out := make([]block.Symbol, end-base)
		for i := range out {
			out[i] = block.Symbol(text[base+i])
		}
		return out
	}

	firstType := make([]bool, nBlocks)
	lastType := make([]bool, nBlocks)
	minusStarCount := make([]int, nBlocks)
	for b := nBlocks - 1; b >= 0; b-- {
		w := window(b)
		hasNext := (b+1)*blockSize < len(text)
		var nextSym block.Symbol
		var nextType bool
		if hasNext {
			nextSym = block.Symbol(text[(b+1)*blockSize])
			nextType = firstType[b+1]
		}
		ft, lt, msc, err := block.ClassifyCounts(w, nextSym, nextType, hasNext)
		require.NoError(t, err)
		firstType[b] = ft
		lastType[b] = lt
		minusStarCount[b] = msc
	}
	for b := 1; b < nBlocks; b++ {
		if !firstType[b] && lastType[b-1] {
			minusStarCount[b]++
		}
	}
	minusStarBase := make([]int64, nBlocks+1)
	for b := 0; b < nBlocks; b++ {
		minusStarBase[b+1] = minusStarBase[b] + int64(minusStarCount[b])
	}

	var maxSym uint32
	for _, v := range text {
		if v > maxSym {
			maxSym = v
		}
	}

	blocks := make([]BlockMeta, nBlocks)
	for b := 0; b < nBlocks; b++ {
		w := window(b)
		in := block.Input{Text: w, NextBlockMinusStarRank: minusStarBase[b+1]}
		if (b+1)*blockSize < len(text) {
			in.HasNext = true
			in.NextFirstSymbol = block.Symbol(text[(b+1)*blockSize])
			in.NextFirstType = firstType[b+1]
		}
		if b > 0 {
			in.HasPrev = true
			in.PrevLastType = lastType[b-1]
		}
		out, err := block.Process(in)
		require.NoError(t, err)

		path := func(tag string) string {
			return filepath.Join(dir, fmt.Sprintf("block%d.%s", b, tag))
		}
		writeUint32File(t, path("plus_pos"), out.PlusPos)
		writeBitFile(t, path("plus_type"), out.PlusType)
		writeUint32File(t, path("plus_symbols"), out.PlusSymbols)
		writeUint32File(t, path("minus_pos"), out.MinusPos)
		writeBitFile(t, path("minus_type"), out.MinusType)
		writeUint32File(t, path("minus_symbols"), out.MinusSymbols)

		blocks[b] = BlockMeta{
			Base:                int64(b * blockSize),
			Len:                 len(w),
			PlusPosPath:         path("plus_pos"),
			PlusTypePath:        path("plus_type"),
			PlusSymbolsPath:     path("plus_symbols"),
			MinusPosPath:        path("minus_pos"),
			MinusTypePath:       path("minus_type"),
			MinusSymbolsPath:    path("minus_symbols"),
			BlockCountTarget:    out.BlockCountTarget,
			FirstPositionType:   out.FirstPositionType,
			MinusStarCount:      out.MinusStarCount,
			GlobalMinusStarBase: out.GlobalMinusStarBase,
		}
	}

	return Global{
		TextPath:      textPath,
		TextLen:       int64(len(text)),
		AlphabetBound: uint64(maxSym) + 1,
		Blocks:        blocks,
		Base:          ioutil.Basename(filepath.Join(dir, "tmp", "pass")),
	}
}

func runInduce(t *testing.T, text []uint32, blockSize int) (Result, []int64) {
	t.Helper()
	g := buildGlobal(t, t.TempDir(), text, blockSize)
	var got []int64
	res, err := Induce(g, &ioutil.Counters{}, func(pos int64) error {
		got = append(got, pos)
		return nil
	})
	require.NoError(t, err)
	return res, got
}

func TestInduceOrdersSuffixes(t *testing.T) {
	cases := []struct {
		name      string
		text      []uint32
		blockSize int
		want      []int64
	}{
		// "banana" (a=1 b=2 n=3).
		{"banana", []uint32{2, 1, 3, 1, 3, 1}, 3, []int64{5, 3, 1, 0, 4, 2}},
		// "mississippi" with alphabetical symbol ranks (i=1 m=2 p=3 s=4).
		{"mississippi", []uint32{2, 1, 4, 4, 1, 4, 4, 1, 3, 3, 1}, 4, []int64{10, 7, 4, 1, 0, 9, 8, 6, 3, 5, 2}},
		// A run of one repeated symbol: suffixes order purely by length.
		{"aaaaaaaa", []uint32{1, 1, 1, 1, 1, 1, 1, 1}, 3, []int64{7, 6, 5, 4, 3, 2, 1, 0}},
		// "abracadabra" (a=1 b=2 c=3 d=4 r=5).
		{"abracadabra", []uint32{1, 2, 5, 1, 3, 1, 4, 1, 2, 5, 1}, 4, []int64{10, 7, 0, 3, 5, 8, 1, 4, 6, 9, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, got := runInduce(t, tc.text, tc.blockSize)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, naiveSuffixOrder(tc.text), got)
		})
	}
}

func TestInduceSingleBlockMatchesMultiBlock(t *testing.T) {
	text := []uint32{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9, 3}
	_, single := runInduce(t, text, len(text))
	_, multi := runInduce(t, text, 5)
	assert.Equal(t, single, multi)
	assert.Equal(t, naiveSuffixOrder(text), multi)
}

func TestInduceLongRunOrdersExactly(t *testing.T) {
	// A run far longer than any fixed comparison window: two suffixes
	// inside the run agree for thousands of symbols before the run's
	// end decides their order. Induced sorting never compares
	// substrings, so the length of the run must not matter.
	text := make([]uint32, 0, 10010)
	for i := 0; i < 10000; i++ {
		text = append(text, 2)
	}
	text = append(text, 3, 1, 2, 2, 1, 3)
	_, got := runInduce(t, text, 512)
	assert.Equal(t, naiveSuffixOrder(text), got)
}

func TestInduceLongPeriodOrdersExactly(t *testing.T) {
	// Periodic text whose period exceeds any fixed window: suffixes one
	// period apart diverge only at the trailing partial copy.
	pattern := make([]uint32, 4500)
	for i := range pattern {
		pattern[i] = uint32(1 + (i*i+i/3)%3)
	}
	var text []uint32
	for k := 0; k < 3; k++ {
		text = append(text, pattern...)
	}
	text = append(text, pattern[:257]...)
	_, got := runInduce(t, text, 2048)
	assert.Equal(t, naiveSuffixOrder(text), got)
}

func TestInduceRepeatedSubstringsForceRecursion(t *testing.T) {
	// "abab...ab": every interior 'a' is an LMS position and every LMS
	// substring but the last spells the same "aba" (the last one runs
	// into the sentinel), so naming collapses to two names and the
	// reduced string must be solved recursively.
	text := make([]uint32, 0, 6000)
	for i := 0; i < 3000; i++ {
		text = append(text, 1, 2)
	}
	res, got := runInduce(t, text, 700)
	assert.Equal(t, naiveSuffixOrder(text), got)
	assert.Greater(t, res.PlusStarCount, 1)
	assert.Less(t, int(res.MaxStarName), res.PlusStarCount,
		"identical star substrings must share a name, forcing the recursion")
}

func TestInducePlusStarOrderIsExactSuffixOrder(t *testing.T) {
	text := []uint32{2, 1, 3, 1, 3, 1, 2, 1, 3, 1, 2}
	g := buildGlobal(t, t.TempDir(), text, 4)
	lmsPos, _, err := collectStars(g, &ioutil.Counters{})
	require.NoError(t, err)
	require.NotEmpty(t, lmsPos)

	plus, err := InducePlusStarSubstrings(g, &ioutil.Counters{}, lmsPos)
	require.NoError(t, err)
	require.Len(t, plus.SortedLMS, len(lmsPos))

	// The pass must deliver the star positions in their true suffix
	// order, recursion included.
	want := append([]int64(nil), lmsPos...)
	order := naiveSuffixOrder(text)
	rank := make(map[int64]int, len(order))
	for r, p := range order {
		rank[p] = r
	}
	sort.Slice(want, func(i, j int) bool { return rank[want[i]] < rank[want[j]] })
	assert.Equal(t, want, plus.SortedLMS)
	assert.LessOrEqual(t, int(plus.MaxName), len(lmsPos))
}

func TestInduceBlockCountSumsToTextLength(t *testing.T) {
	text := []uint32{1, 2, 3, 3, 2, 3, 3, 2, 4, 4, 2}
	res, got := runInduce(t, text, 4)
	require.Len(t, got, len(text))
	var sum int64
	for _, c := range res.BlockCount {
		sum += c
	}
	assert.EqualValues(t, len(text), sum)
	// Every block with at least one position must have been counted.
	for b, c := range res.BlockCount {
		assert.Greater(t, c, int64(0), "block %d never extracted", b)
	}
}

func TestInduceEmitErrorStopsThePass(t *testing.T) {
	text := []uint32{1, 2, 3, 3, 2, 3, 3, 2, 4, 4, 2}
	g := buildGlobal(t, t.TempDir(), text, 4)
	wantErr := fmt.Errorf("sink full")
	calls := 0
	_, err := Induce(g, &ioutil.Counters{}, func(int64) error {
		calls++
		if calls == 3 {
			return wantErr
		}
		return nil
	})
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls)
}

func TestStarSubstringExtents(t *testing.T) {
	// lmsPos over a 10-symbol text: interior substrings run through
	// the next star inclusive, the final one through the sentinel slot.
	lmsPos := []int64{2, 5, 8}
	assert.EqualValues(t, 4, starSubstringLen(lmsPos, 10, 2))
	assert.EqualValues(t, 4, starSubstringLen(lmsPos, 10, 5))
	assert.EqualValues(t, 3, starSubstringLen(lmsPos, 10, 8))
	// A minus-star between two plus-stars extends to the next plus-star.
	assert.EqualValues(t, 3, starSubstringLen(lmsPos, 10, 3))
}

func TestTextAccessorBoundedPages(t *testing.T) {
	dir := t.TempDir()
	text := make([]uint32, 1000)
	for i := range text {
		text[i] = uint32(i%7 + 1)
	}
	path := filepath.Join(dir, "text.bin")
	w, err := stream.NewForwardWriter[uint32](path, 0, nil)
	require.NoError(t, err)
	for _, v := range text {
		require.NoError(t, w.Write(v))
	}
	require.NoError(t, w.Close())

	// Tiny pages and a cache of 2 forces constant eviction; every
	// value must still come back right.
	a, err := newTextAccessor(path, int64(len(text)), 16, 2, nil)
	require.NoError(t, err)
	defer a.Close()

	for _, pos := range []int64{999, 0, 500, 17, 998, 1, 400} {
		v, err := a.At(pos)
		require.NoError(t, err)
		assert.EqualValues(t, text[pos], v, "position %d", pos)
	}
	// Past-the-end positions read as the implicit sentinel.
	v, err := a.At(int64(len(text)))
	require.NoError(t, err)
	assert.EqualValues(t, 0, v)
}
