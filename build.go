// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package fsais

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/nekitakamenev/fsais/internal/block"
	"github.com/nekitakamenev/fsais/internal/induce"
	"github.com/nekitakamenev/fsais/internal/ioutil"
	"github.com/nekitakamenev/fsais/internal/stream"
)

const bufItems = 1 << 15

// Build constructs the suffix array of the text at textPath, writing
// it to saPath as a raw typed stream, and returns the raw I/O volume
// and shape of the run.
//
// Build never holds the text resident; its footprint is set by the
// block size, not the text length. It runs in two bounded sweeps:
// classifyBoundaries walks the text backward one block at a time to
// resolve every block's own boundary type and minus-star count (the
// block-stitching inputs have a backward dependency chain: block b
// needs block b+1's answer before it can resolve its own), then a
// trivial prefix sum over those per-block counts turns them into the
// global minus-star ranks internal/block.Process needs; only then does
// processBlocks run internal/block.Process per block, this time
// forward and in parallel, persisting each block's seven streams to
// disk immediately rather than collecting them in a resident slice.
// internal/induce then drives the three EM passes over those on-disk
// streams and hands Build back one suffix position at a time through
// emit, so the final order is never resident as one giant slice either.
func Build(ctx context.Context, textPath, saPath string, cfg Config) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	if _, err := cfg.Basename.Dir(); err != nil {
		return Stats{}, err
	}

	counters := &ioutil.Counters{}
	textLen, err := textLength(textPath)
	if err != nil {
		return Stats{}, err
	}
	if textLen == 0 {
		return Stats{}, ioutil.Fatalf(ioutil.ErrInvariant, "fsais", "text %s is empty", textPath)
	}

	nBlocks := (textLen + cfg.BlockSize - 1) / cfg.BlockSize
	firstPositionType, lastPositionType, minusStarCount, err := classifyBoundaries(ctx, textPath, textLen, nBlocks, cfg, counters)
	if err != nil {
		return Stats{}, err
	}

	// The backward sweep cannot judge a block's offset 0 (that star
	// decision needs the previous block's last position); settle it
	// here, forward, now that every block's boundary types are known.
	for b := 1; b < nBlocks; b++ {
		if !firstPositionType[b] && lastPositionType[b-1] {
			minusStarCount[b]++
		}
	}

	minusStarBase := make([]int64, nBlocks+1)
	for b := 0; b < nBlocks; b++ {
		minusStarBase[b+1] = minusStarBase[b] + int64(minusStarCount[b])
	}

	blocks, err := processBlocks(ctx, textPath, textLen, nBlocks, firstPositionType, lastPositionType, minusStarBase, cfg, counters)
	if err != nil {
		return Stats{}, err
	}

	g := induce.Global{
		TextPath:      textPath,
		TextLen:       int64(textLen),
		AlphabetBound: cfg.AlphabetBound,
		Blocks:        blocks,
		Base:          cfg.Basename,
	}

	ioutil.Notify(cfg.Listener, ioutil.Event{Kind: ioutil.EventPassStart, Component: "induce", N: int64(nBlocks)})
	sink, err := newSAWriter(saPath, int64(textLen), cfg.UseVarintPositions, counters)
	if err != nil {
		return Stats{}, err
	}
	result, err := induce.Induce(g, counters, func(pos int64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return sink.write(pos)
	})
	if closeErr := sink.close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Stats{}, err
	}
	ioutil.Notify(cfg.Listener, ioutil.Event{Kind: ioutil.EventPassEnd, Component: "induce", N: int64(textLen)})

	return Stats{
		BytesRead:    counters.BytesRead,
		BytesWritten: counters.BytesWritten,
		Blocks:       nBlocks,
		TextLen:      textLen,
		StarCount:    result.PlusStarCount + result.MinusStarCount,
		MaxStarName:  result.MaxStarName,
	}, nil
}

// textLength returns the number of uint32 symbols in the text file
// without reading its contents.
func textLength(path string) (int, error) {
	size, err := ioutil.Size("fsais", path)
	if err != nil {
		return 0, err
	}
	if size%4 != 0 {
		return 0, ioutil.Fatalf(ioutil.ErrInvariant, "fsais", "text file %s size %d is not a multiple of 4 bytes", path, size)
	}
	return int(size / 4), nil
}

// classifyBoundaries walks the text backward one block at a time via
// stream.BackwardReader, computing each block's own boundary S/L type
// and minus-star count without ever running the expensive leaf sort
// (internal/block.ClassifyCounts): exactly the cheap half of
// internal/block's work, done once up front so the expensive half
// (processBlocks) never has to run twice or wait on a circular
// dependency between forward-accumulated and backward-resolved
// inputs.
func classifyBoundaries(ctx context.Context, textPath string, textLen, nBlocks int, cfg Config, counters *ioutil.Counters) ([]bool, []bool, []int, error) {
	br, err := stream.NewBackwardReader[uint32](textPath, bufItems, counters)
	if err != nil {
		return nil, nil, nil, err
	}
	defer br.Close()

	firstPositionType := make([]bool, nBlocks)
	lastPositionType := make([]bool, nBlocks)
	minusStarCount := make([]int, nBlocks)
	nextFirstSymbol := block.Symbol(0)
	nextFirstType := false
	buf := make([]block.Symbol, cfg.BlockSize)

	for b := nBlocks - 1; b >= 0; b-- {
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, err
		}
		base := b * cfg.BlockSize
		end := base + cfg.BlockSize
		if end > textLen {
			end = textLen
		}
		length := end - base
		window := buf[:length]
		for i := length - 1; i >= 0; i-- {
			v, ok, err := br.Read()
			if err != nil {
				return nil, nil, nil, err
			}
			if !ok {
				return nil, nil, nil, ioutil.Fatalf(ioutil.ErrInvariant, "fsais", "text %s ended early during backward classification", textPath)
			}
			window[i] = block.Symbol(v)
		}
		hasNext := end < textLen
		fpt, lpt, msc, err := block.ClassifyCounts(window, nextFirstSymbol, nextFirstType, hasNext)
		if err != nil {
			return nil, nil, nil, err
		}
		firstPositionType[b] = fpt
		lastPositionType[b] = lpt
		minusStarCount[b] = msc
		nextFirstSymbol = window[0]
		nextFirstType = fpt
	}
	return firstPositionType, lastPositionType, minusStarCount, nil
}

// processBlocks runs internal/block.Process forward over every block,
// in parallel (blocks are independent once classifyBoundaries has
// resolved every boundary input), reading each block's own text window
// directly off disk via ReadAt rather than slicing a resident buffer,
// and persisting the seven per-block streams immediately instead of
// collecting block.Output values in RAM.
func processBlocks(ctx context.Context, textPath string, textLen, nBlocks int, firstPositionType, lastPositionType []bool, minusStarBase []int64, cfg Config, counters *ioutil.Counters) ([]induce.BlockMeta, error) {
	f, err := ioutil.OpenRead("fsais", textPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	blocks := make([]induce.BlockMeta, nBlocks)
	g, gctx := errgroup.WithContext(ctx)
	limit := cfg.MaxParallelBlocks
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i := 0; i < nBlocks; i++ {
		i := i
		base := i * cfg.BlockSize
		end := base + cfg.BlockSize
		if end > textLen {
			end = textLen
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := readSymbolsAt(f, base, end-base)
			if err != nil {
				return err
			}
			in := block.Input{Text: text}
			if end < textLen {
				in.HasNext = true
				next, err := readSymbolsAt(f, end, 1)
				if err != nil {
					return err
				}
				in.NextFirstSymbol = next[0]
				in.NextFirstType = firstPositionType[i+1]
			}
			if i > 0 {
				in.HasPrev = true
				in.PrevLastType = lastPositionType[i-1]
			}
			in.NextBlockMinusStarRank = minusStarBase[i+1]

			out, err := block.Process(in)
			if err != nil {
				return err
			}
			meta, err := persistBlock(cfg.Basename, i, int64(base), end-base, out, counters)
			if err != nil {
				return err
			}
			blocks[i] = meta
			ioutil.Notify(cfg.Listener, ioutil.Event{Kind: ioutil.EventBlockDone, Component: "block", N: int64(i)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}

// readSymbolsAt reads count uint32 symbols starting at text-offset
// base via ReadAt, safe for concurrent callers sharing one *os.File.
func readSymbolsAt(f *os.File, base, count int) ([]block.Symbol, error) {
	raw := make([]byte, count*4)
	if _, err := f.ReadAt(raw, int64(base)*4); err != nil {
		return nil, ioutil.NewIOError("fsais", "random-access text read", err)
	}
	out := make([]block.Symbol, count)
	for i := range out {
		out[i] = block.Symbol(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// persistBlock writes out's six per-block streams to disk under
// deterministic paths derived from base and the block index, and
// returns the metadata internal/induce needs to reopen them. The
// plus/minus pairs of positions and of preceding symbols each share
// one MultiStreamWriter, and each type-flag stream has its own
// BitWriter, so a block's six files are produced by four background
// writers instead of six.
func persistBlock(base ioutil.Basename, idx int, globalBase int64, length int, out block.Output, counters *ioutil.Counters) (induce.BlockMeta, error) {
	path := func(tag string) string {
		return fmt.Sprintf("%s.block%d.%s", string(base), idx, tag)
	}
	plusPosPath, minusPosPath := path("plus_pos"), path("minus_pos")
	plusTypePath, minusTypePath := path("plus_type"), path("minus_type")
	plusSymbolsPath, minusSymbolsPath := path("plus_symbols"), path("minus_symbols")

	if err := writePositionPair(plusPosPath, minusPosPath, out.PlusPos, out.MinusPos, counters); err != nil {
		return induce.BlockMeta{}, err
	}
	if err := writeTypeBits(plusTypePath, out.PlusType, counters); err != nil {
		return induce.BlockMeta{}, err
	}
	if err := writeTypeBits(minusTypePath, out.MinusType, counters); err != nil {
		return induce.BlockMeta{}, err
	}
	if err := writePositionPair(plusSymbolsPath, minusSymbolsPath, out.PlusSymbols, out.MinusSymbols, counters); err != nil {
		return induce.BlockMeta{}, err
	}
	return induce.BlockMeta{
		Base:                globalBase,
		Len:                 length,
		PlusPosPath:         plusPosPath,
		PlusTypePath:        plusTypePath,
		PlusSymbolsPath:     plusSymbolsPath,
		MinusPosPath:        minusPosPath,
		MinusTypePath:       minusTypePath,
		MinusSymbolsPath:    minusSymbolsPath,
		BlockCountTarget:    out.BlockCountTarget,
		FirstPositionType:   out.FirstPositionType,
		MinusStarCount:      out.MinusStarCount,
		GlobalMinusStarBase: out.GlobalMinusStarBase,
	}, nil
}

// writePositionPair writes plus and minus int32 slices (block-local
// positions or preceding symbols, both represented as block.Symbol) to
// their own files through one MultiStreamWriter, sub-stream 0 for plus
// and 1 for minus.
func writePositionPair(plusPath, minusPath string, plus, minus []int32, counters *ioutil.Counters) error {
	w, err := stream.NewMultiStreamWriter[uint32]([]string{plusPath, minusPath}, 0, counters)
	if err != nil {
		return err
	}
	for _, v := range plus {
		if err := w.WriteTo(0, uint32(v)); err != nil {
			w.Close()
			return err
		}
	}
	for _, v := range minus {
		if err := w.WriteTo(1, uint32(v)); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// writeTypeBits writes a star-marking type flag slice as a packed bit
// stream, one bit per position of the corresponding position stream.
func writeTypeBits(path string, vals []bool, counters *ioutil.Counters) error {
	w, err := stream.NewBitWriter(path, 0, counters)
	if err != nil {
		return err
	}
	for _, v := range vals {
		bit := uint64(0)
		if v {
			bit = 1
		}
		if err := w.WriteBit(bit); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// saWriter streams the final suffix order straight to saPath, in
// either fixed-width or delta/varint form, so Build never needs the
// order resident as one []int64 the size of the text. The output
// width is selected here, once, not re-checked per item.
type saWriter struct {
	varint   bool
	vw       *stream.VarintWriter
	fw32     *stream.ForwardWriter[uint32]
	fw64     *stream.ForwardWriter[uint64]
	width    ioutil.Width
	prevZero int64
}

func newSAWriter(path string, n int64, varint bool, counters *ioutil.Counters) (*saWriter, error) {
	if varint {
		vw, err := stream.NewVarintWriter(path, bufItems, counters)
		if err != nil {
			return nil, err
		}
		return &saWriter{varint: true, vw: vw}, nil
	}
	width := ioutil.SelectWidth(uint64(n))
	s := &saWriter{width: width}
	var err error
	switch width {
	case ioutil.Width32:
		s.fw32, err = stream.NewForwardWriter[uint32](path, bufItems, counters)
	default:
		s.fw64, err = stream.NewForwardWriter[uint64](path, bufItems, counters)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *saWriter) write(pos int64) error {
	if s.varint {
		delta := pos - s.prevZero
		s.prevZero = pos
		return s.vw.WriteUvarint(zigzag(delta))
	}
	if s.width == ioutil.Width32 {
		return s.fw32.Write(uint32(pos))
	}
	return s.fw64.Write(uint64(pos))
}

func (s *saWriter) close() error {
	if s.varint {
		return s.vw.Close()
	}
	if s.width == ioutil.Width32 {
		return s.fw32.Close()
	}
	return s.fw64.Close()
}

// zigzag maps a signed delta to an unsigned value so VarintWriter's
// unsigned LEB128 encoding stays compact for negative deltas too.
func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}
