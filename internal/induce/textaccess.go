// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package induce

import (
	"os"

	"github.com/nekitakamenev/fsais/internal/block"
	"github.com/nekitakamenev/fsais/internal/ioutil"
)

// textAccessor gives the induction passes random, bounded-RAM access
// into the original text file: head-character reads during the
// sweeps, and the star-substring equality checks during naming, never
// require the whole text resident. It caches a small number of
// fixed-size pages, evicting the least-recently-used one; its
// footprint is independent of both text length and block size.
type textAccessor struct {
	f         *os.File
	textLen   int64
	pageItems int64
	maxPages  int
	pages     map[int64][]block.Symbol
	lru       []int64 // most-recently-used last
	counters  *ioutil.Counters
}

// newTextAccessor opens path (a raw uint32-per-symbol stream) for
// random reads.
func newTextAccessor(path string, textLen int64, pageItems, maxPages int, counters *ioutil.Counters) (*textAccessor, error) {
	f, err := ioutil.OpenRead("induce", path)
	if err != nil {
		return nil, err
	}
	if pageItems <= 0 {
		pageItems = 4096
	}
	if maxPages <= 0 {
		maxPages = 64
	}
	return &textAccessor{
		f:         f,
		textLen:   textLen,
		pageItems: int64(pageItems),
		maxPages:  maxPages,
		pages:     make(map[int64][]block.Symbol, maxPages),
		counters:  counters,
	}, nil
}

// At returns T[pos], or 0 (the reserved sentinel symbol) for pos >=
// textLen, the standard suffix-array convention that every suffix is
// implicitly followed by a symbol smaller than any real one.
func (a *textAccessor) At(pos int64) (block.Symbol, error) {
	if pos < 0 || pos >= a.textLen {
		return 0, nil
	}
	pageIdx := pos / a.pageItems
	page, ok := a.pages[pageIdx]
	if !ok {
		var err error
		page, err = a.loadPage(pageIdx)
		if err != nil {
			return 0, err
		}
	}
	a.touch(pageIdx)
	return page[pos-pageIdx*a.pageItems], nil
}

func (a *textAccessor) loadPage(pageIdx int64) ([]block.Symbol, error) {
	start := pageIdx * a.pageItems
	count := a.pageItems
	if start+count > a.textLen {
		count = a.textLen - start
	}
	raw := make([]byte, count*4)
	n, err := a.f.ReadAt(raw, start*4)
	if err != nil && int64(n) != int64(len(raw)) {
		return nil, ioutil.NewIOError("induce", "random-access text read", err)
	}
	if a.counters != nil {
		a.counters.AddRead(int64(n))
	}
	page := make([]block.Symbol, count)
	for i := range page {
		page[i] = block.Symbol(uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24)
	}
	if len(a.pages) >= a.maxPages {
		a.evictOne()
	}
	a.pages[pageIdx] = page
	return page, nil
}

func (a *textAccessor) touch(pageIdx int64) {
	for i, p := range a.lru {
		if p == pageIdx {
			a.lru = append(a.lru[:i], a.lru[i+1:]...)
			break
		}
	}
	a.lru = append(a.lru, pageIdx)
}

func (a *textAccessor) evictOne() {
	if len(a.lru) == 0 {
		return
	}
	oldest := a.lru[0]
	a.lru = a.lru[1:]
	delete(a.pages, oldest)
}

func (a *textAccessor) Close() error {
	return a.f.Close()
}
