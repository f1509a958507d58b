// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package stream

import (
	"io"
	"os"
	"sync"

	"github.com/nekitakamenev/fsais/internal/ioutil"
)

// BackwardReader reads a typed stream from its last item to its
// first, the access pattern the EM induction passes need when
// consuming a position/symbol stream in reverse text order. It keeps
// the same one-goroutine,
// double-buffer shape as ForwardReader, only walking the file
// backwards one buffer-window at a time.
type BackwardReader[T Item] struct {
	codec      itemCodec[T]
	f          *os.File
	itemSize   int
	bufItems   int
	active     []T
	pos        int // next item to deliver, counting down from len(active)-1
	full       chan []T
	empty      chan []T
	eof        bool
	mu         sync.Mutex
	err        error
	counters   *ioutil.Counters
	closed     bool
	stop       chan struct{}
	done       chan struct{}
}

// NewBackwardReader opens path for backward reading.
func NewBackwardReader[T Item](path string, bufItems int, counters *ioutil.Counters) (*BackwardReader[T], error) {
	if bufItems <= 0 {
		bufItems = defaultBufItems
	}
	f, err := ioutil.OpenRead(component, path)
	if err != nil {
		return nil, err
	}
	codec := codecFor[T]()
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, ioutil.NewIOError(component, "seek end of "+path, err)
	}
	totalItems := size / int64(codec.size)
	r := &BackwardReader[T]{
		codec:    codec,
		f:        f,
		itemSize: codec.size,
		bufItems: bufItems,
		full:     make(chan []T, 1),
		empty:    make(chan []T, 2),
		counters: counters,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	r.empty <- make([]T, bufItems)
	r.empty <- make([]T, bufItems)
	go r.run(totalItems)
	return r, nil
}

func (r *BackwardReader[T]) run(nextEnd int64) {
	defer close(r.done)
	raw := make([]byte, r.bufItems*r.itemSize)
	for nextEnd > 0 {
		var buf []T
		select {
		case buf = <-r.empty:
		case <-r.stop:
			return
		}
		start := nextEnd - int64(r.bufItems)
		if start < 0 {
			start = 0
		}
		count := int(nextEnd - start)
		window := raw[:count*r.itemSize]
		n, err := r.f.ReadAt(window, start*int64(r.itemSize))
		if err != nil && n != len(window) {
			r.setErr(ioutil.NewIOError(component, "backward read", err))
			return
		}
		if r.counters != nil {
			r.counters.AddRead(int64(n))
		}
		buf = buf[:count]
		for i := 0; i < count; i++ {
			buf[i] = r.codec.get(window[i*r.itemSize:])
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

func (r *BackwardReader[T]) setErr(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

func (r *BackwardReader[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Read returns the next item walking backwards from the end of the
// stream, ok=false once the first item on disk has been delivered.
func (r *BackwardReader[T]) Read() (T, bool, error) {
	var zero T
	if err := r.Err(); err != nil {
		return zero, false, err
	}
	for r.pos < 0 || r.pos >= len(r.active) {
		if r.eof {
			return zero, false, nil
		}
		buf, ok := <-r.full
		if !ok || buf == nil {
			r.eof = true
			return zero, false, r.Err()
		}
		if len(r.active) > 0 {
			select {
			case r.empty <- r.active[:cap(r.active)]:
			default:
			}
		}
		r.active = buf
		r.pos = len(buf) - 1
	}
	v := r.active[r.pos]
	r.pos--
	return v, true, nil
}

// Close stops the background goroutine and closes the file.
func (r *BackwardReader[T]) Close() error {
	if r.closed {
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
