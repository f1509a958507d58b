// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package stream

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/nekitakamenev/fsais/internal/ioutil"
)

// BitWriter packs 64 bits into each underlying little-endian 64-bit
// word and, on Close, appends a trailing word giving the number of
// bits used in the last data word, so a reader can reconstruct the
// exact bit count. It is built directly on ForwardWriter[uint64]
// rather than duplicating its buffering.
type BitWriter struct {
	fw    *ForwardWriter[uint64]
	cur   uint64
	nbits uint
}

// NewBitWriter opens a bit stream for writing.
func NewBitWriter(path string, bufItems int, counters *ioutil.Counters) (*BitWriter, error) {
	fw, err := NewForwardWriter[uint64](path, bufItems, counters)
	if err != nil {
		return nil, err
	}
	return &BitWriter{fw: fw}, nil
}

// WriteBit appends a single bit (only its low bit is used).
func (w *BitWriter) WriteBit(bit uint64) error {
	w.cur |= (bit & 1) << w.nbits
	w.nbits++
	if w.nbits == 64 {
		if err := w.fw.Write(w.cur); err != nil {
			return err
		}
		w.cur, w.nbits = 0, 0
	}
	return nil
}

// WriteBits appends the low count bits of value, least-significant
// bit first.
func (w *BitWriter) WriteBits(value uint64, count uint) error {
	for i := uint(0); i < count; i++ {
		if err := w.WriteBit((value >> i) & 1); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the final partial word, appends the trailing bit-count
// word, and closes the underlying stream.
func (w *BitWriter) Close() error {
	lastCount := w.nbits
	if w.nbits > 0 {
		if err := w.fw.Write(w.cur); err != nil {
			return err
		}
	} else {
		lastCount = 64
	}
	if err := w.fw.Write(uint64(lastCount)); err != nil {
		return err
	}
	return w.fw.Close()
}

// BitReader is the forward reading counterpart of BitWriter.
type BitReader struct {
	fr           *ForwardReader[uint64]
	dataWords    int64
	wordsRead    int64
	lastWordBits uint
	cur          uint64
	nbits        uint
}

// NewBitReader opens a bit stream for forward reading.
func NewBitReader(path string, bufItems int, counters *ioutil.Counters) (*BitReader, error) {
	size, err := ioutil.Size(component, path)
	if err != nil {
		return nil, err
	}
	totalWords := size / 8
	r := &BitReader{}
	if totalWords == 0 {
		return r, nil
	}
	lastWordBits, err := readTrailingWord(path, size)
	if err != nil {
		return nil, err
	}
	fr, err := NewForwardReader[uint64](path, bufItems, counters)
	if err != nil {
		return nil, err
	}
	r.fr = fr
	r.dataWords = totalWords - 1
	r.lastWordBits = uint(lastWordBits)
	return r, nil
}

func readTrailingWord(path string, size int64) (uint64, error) {
	f, err := ioutil.OpenRead(component, path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var buf [8]byte
	if _, err := f.ReadAt(buf[:], size-8); err != nil {
		return 0, ioutil.NewIOError(component, "read trailing bit-count word", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadBit returns the next bit, ok=false once exhausted.
func (r *BitReader) ReadBit() (uint64, bool, error) {
	for r.nbits == 0 {
		if r.fr == nil || r.wordsRead >= r.dataWords {
			return 0, false, nil
		}
		v, ok, err := r.fr.Read()
		if err != nil || !ok {
			return 0, false, err
		}
		r.cur = v
		r.wordsRead++
		if r.wordsRead == r.dataWords {
			r.nbits = r.lastWordBits
		} else {
			r.nbits = 64
		}
	}
	bit := r.cur & 1
	r.cur >>= 1
	r.nbits--
	return bit, true, nil
}

// Close closes the underlying stream.
func (r *BitReader) Close() error {
	if r.fr == nil {
		return nil
	}
	return r.fr.Close()
}

// BackwardBitReader reads the trailing bit-count word first, then
// consumes the bit stream from its high end toward its low end,
// yielding the reverse of the written bit sequence.
type BackwardBitReader struct {
	f            *os.File
	bufItems     int
	dataWords    int64
	lastWordBits uint
	full         chan []uint64
	stop         chan struct{}
	done         chan struct{}

	mu       sync.Mutex
	err      error
	counters *ioutil.Counters
	closed   bool

	active      []uint64
	wordPos     int
	curWord     uint64
	curBitsLeft uint
	firstWord   bool
	empty       bool
}

// NewBackwardBitReader opens a bit stream for backward reading.
func NewBackwardBitReader(path string, bufItems int, counters *ioutil.Counters) (*BackwardBitReader, error) {
	if bufItems <= 0 {
		bufItems = defaultBufItems
	}
	size, err := ioutil.Size(component, path)
	if err != nil {
		return nil, err
	}
	totalWords := size / 8
	r := &BackwardBitReader{bufItems: bufItems, counters: counters, firstWord: true}
	if totalWords == 0 {
		r.empty = true
		return r, nil
	}
	lastWordBits, err := readTrailingWord(path, size)
	if err != nil {
		return nil, err
	}
	f, err := ioutil.OpenRead(component, path)
	if err != nil {
		return nil, err
	}
	r.f = f
	r.dataWords = totalWords - 1
	r.lastWordBits = uint(lastWordBits)
	r.full = make(chan []uint64, 1)
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.run()
	return r, nil
}

func (r *BackwardBitReader) run() {
	defer close(r.done)
	raw := make([]byte, r.bufItems*8)
	nextEnd := r.dataWords
	for nextEnd > 0 {
		start := nextEnd - int64(r.bufItems)
		if start < 0 {
			start = 0
		}
		count := int(nextEnd - start)
		window := raw[:count*8]
		n, err := r.f.ReadAt(window, start*8)
		if err != nil && n != len(window) {
			r.setErr(ioutil.NewIOError(component, "backward bit read", err))
			return
		}
		if r.counters != nil {
			r.counters.AddRead(int64(n))
		}
		buf := make([]uint64, count)
		for i := 0; i < count; i++ {
			buf[i] = binary.LittleEndian.Uint64(window[i*8:])
		}
		select {
		case r.full <- buf:
		case <-r.stop:
			return
		}
		nextEnd = start
	}
	select {
	case r.full <- nil:
	case <-r.stop:
	}
}

func (r *BackwardBitReader) setErr(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

func (r *BackwardBitReader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// ReadBit returns the next bit walking backward from the end of the
// logical bit stream.
func (r *BackwardBitReader) ReadBit() (uint64, bool, error) {
	if r.empty {
		return 0, false, nil
	}
	if err := r.Err(); err != nil {
		return 0, false, err
	}
	for r.curBitsLeft == 0 {
		for r.wordPos < 0 || r.wordPos >= len(r.active) {
			buf := <-r.full
			if buf == nil {
				return 0, false, r.Err()
			}
			r.active = buf
			r.wordPos = len(buf) - 1
		}
		r.curWord = r.active[r.wordPos]
		r.wordPos--
		if r.firstWord {
			r.curBitsLeft = r.lastWordBits
			r.firstWord = false
		} else {
			r.curBitsLeft = 64
		}
	}
	bit := (r.curWord >> (r.curBitsLeft - 1)) & 1
	r.curBitsLeft--
	return bit, true, nil
}

// Close stops the background goroutine and closes the file.
func (r *BackwardBitReader) Close() error {
	if r.closed || r.f == nil {
		r.closed = true
		return r.Err()
	}
	r.closed = true
	close(r.stop)
	<-r.done
	if err := r.f.Close(); err != nil {
		r.setErr(ioutil.NewIOError(component, "close "+r.f.Name(), err))
	}
	return r.Err()
}
