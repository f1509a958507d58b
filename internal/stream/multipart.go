// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package stream

import (
	"io"
	"os"
	"sync"

	"github.com/nekitakamenev/fsais/internal/ioutil"
)

// MultiPartWriter caps each physical file at maxBytes and rolls over
// to a new part when the cap is hit. No file is created until the
// first item is written.
type MultiPartWriter[T Item] struct {
	codec     itemCodec[T]
	base      ioutil.Basename
	streamTag string
	maxBytes  int64
	bufItems  int

	active []T
	full   chan []T
	empty  chan []T
	done   chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	err      error
	parts    int
	counters *ioutil.Counters
	closed   bool
}

// NewMultiPartWriter creates a multi-part writer under base tagged
// streamTag, rolling parts at maxBytes.
func NewMultiPartWriter[T Item](base ioutil.Basename, streamTag string, maxBytes int64, bufItems int, counters *ioutil.Counters) (*MultiPartWriter[T], error) {
	if bufItems <= 0 {
		bufItems = defaultBufItems
	}
	if _, err := base.Dir(); err != nil {
		return nil, err
	}
	w := &MultiPartWriter[T]{
		codec:     codecFor[T](),
		base:      base,
		streamTag: streamTag,
		maxBytes:  maxBytes,
		bufItems:  bufItems,
		active:    make([]T, 0, bufItems),
		full:      make(chan []T, 1),
		empty:     make(chan []T, 1),
		done:      make(chan struct{}),
		counters:  counters,
	}
	w.empty <- make([]T, 0, bufItems)
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *MultiPartWriter[T]) run() {
	defer w.wg.Done()
	defer close(w.done)
	var cur *os.File
	var curBytes int64
	finalize := func() {
		if cur != nil {
			if err := cur.Close(); err != nil {
				w.setErr(ioutil.NewIOError(component, "close part file", err))
			}
			w.mu.Lock()
			w.parts++
			w.mu.Unlock()
			cur = nil
			curBytes = 0
		}
	}
	raw := make([]byte, 0, w.bufItems*w.codec.size)
	for buf := range w.full {
		if len(buf) > 0 {
			raw = raw[:0]
			var tmp [8]byte
			for _, v := range buf {
				w.codec.put(tmp[:w.codec.size], v)
				raw = append(raw, tmp[:w.codec.size]...)
			}
			for len(raw) > 0 {
				if cur == nil {
					path := w.base.PartName(w.streamTag, func() int {
						w.mu.Lock()
						defer w.mu.Unlock()
						return w.parts
					}())
					f, err := ioutil.CreateWrite(component, path)
					if err != nil {
						w.setErr(err)
						break
					}
					cur = f
					curBytes = 0
				}
				room := w.maxBytes - curBytes
				chunk := raw
				if int64(len(chunk)) > room {
					chunk = chunk[:room]
				}
				n, err := cur.Write(chunk)
				if w.counters != nil {
					w.counters.AddWritten(int64(n))
				}
				if err != nil {
					w.setErr(ioutil.NewIOError(component, "write part", err))
				}
				curBytes += int64(n)
				raw = raw[n:]
				if curBytes >= w.maxBytes {
					finalize()
				}
			}
		}
		select {
		case w.empty <- buf[:0]:
		default:
		}
	}
	finalize()
}

func (w *MultiPartWriter[T]) setErr(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *MultiPartWriter[T]) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Write appends a single item.
func (w *MultiPartWriter[T]) Write(v T) error {
	if err := w.Err(); err != nil {
		return err
	}
	w.active = append(w.active, v)
	if len(w.active) == cap(w.active) {
		w.full <- w.active
		w.active = <-w.empty
	}
	return nil
}

// Close flushes remaining items, finalizes the last part, and reports
// any late error.
func (w *MultiPartWriter[T]) Close() error {
	if w.closed {
		return w.Err()
	}
	w.closed = true
	if len(w.active) > 0 {
		w.full <- w.active
		w.active = nil
	}
	close(w.full)
	<-w.done
	return w.Err()
}

// PartsCount reports the number of physical part files produced,
// valid after Close. Downstream readers need it to know how many
// parts to open.
func (w *MultiPartWriter[T]) PartsCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.parts
}

// MultiPartBackwardReader consumes the parts of a multi-part stream in
// reverse part order, and within each part from its last item to its
// first, deleting each part file as it is fully drained.
type MultiPartBackwardReader[T Item] struct {
	codec     itemCodec[T]
	base      ioutil.Basename
	streamTag string
	bufItems  int

	full chan []T
	stop chan struct{}
	done chan struct{}

	mu       sync.Mutex
	err      error
	counters *ioutil.Counters
	closed   bool

	active []T
	pos    int
	eof    bool
}

// NewMultiPartBackwardReader opens a multi-part backward reader over
// partsCount existing parts.
func NewMultiPartBackwardReader[T Item](base ioutil.Basename, streamTag string, partsCount, bufItems int, counters *ioutil.Counters) (*MultiPartBackwardReader[T], error) {
	if bufItems <= 0 {
		bufItems = defaultBufItems
	}
	r := &MultiPartBackwardReader[T]{
		codec:     codecFor[T](),
		base:      base,
		streamTag: streamTag,
		bufItems:  bufItems,
		full:      make(chan []T, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		counters:  counters,
	}
	go r.run(partsCount)
	return r, nil
}

func (r *MultiPartBackwardReader[T]) run(partsCount int) {
	defer close(r.done)
	itemSize := r.codec.size
	raw := make([]byte, r.bufItems*itemSize)
	for part := partsCount - 1; part >= 0; part-- {
		path := r.base.PartName(r.streamTag, part)
		f, err := ioutil.OpenRead(component, path)
		if err != nil {
			r.setErr(err)
			return
		}
		size, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			r.setErr(ioutil.NewIOError(component, "seek "+path, err))
			f.Close()
			return
		}
		nextEnd := size / int64(itemSize)
		for nextEnd > 0 {
			start := nextEnd - int64(r.bufItems)
			if start < 0 {
				start = 0
			}
			count := int(nextEnd - start)
			window := raw[:count*itemSize]
			n, err := f.ReadAt(window, start*int64(itemSize))
			if err != nil && n != len(window) {
				r.setErr(ioutil.NewIOError(component, "read part "+path, err))
				f.Close()
				return
			}
			if r.counters != nil {
				r.counters.AddRead(int64(n))
			}
			buf := make([]T, count)
			for i := 0; i < count; i++ {
				buf[i] = r.codec.get(window[i*itemSize:])
			}
			select {
			case r.full <- buf:
			case <-r.stop:
				f.Close()
				return
			}
			nextEnd = start
		}
		f.Close()
		if err := ioutil.Remove(path); err != nil {
			r.setErr(err)
			return
		}
	}
	select {
	case r.full <- nil:
	case <-r.stop:
	}
}

func (r *MultiPartBackwardReader[T]) setErr(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

func (r *MultiPartBackwardReader[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Read returns the next item in overall-reverse order across all
// parts.
func (r *MultiPartBackwardReader[T]) Read() (T, bool, error) {
	var zero T
	if err := r.Err(); err != nil {
		return zero, false, err
	}
	for r.pos < 0 || r.pos >= len(r.active) {
		if r.eof {
			return zero, false, nil
		}
		buf := <-r.full
		if buf == nil {
			r.eof = true
			return zero, false, r.Err()
		}
		r.active = buf
		r.pos = len(buf) - 1
	}
	v := r.active[r.pos]
	r.pos--
	return v, true, nil
}

// Close stops the background goroutine early (used when the caller
// does not drain the stream to completion).
func (r *MultiPartBackwardReader[T]) Close() error {
	if r.closed {
		return r.Err()
	}
	r.closed = true
	close(r.stop)
	<-r.done
	return r.Err()
}
