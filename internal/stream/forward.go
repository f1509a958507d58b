// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package stream

import (
	"io"
	"os"
	"sync"

	"github.com/nekitakamenev/fsais/internal/ioutil"
)

// ForwardWriter is a sequential typed stream writer: one background
// goroutine, two same-sized item buffers (one active, one passive),
// and a pair of bounded channels acting as the empty-buffer and
// full-buffer queues.
//
// Write is lock-free from the caller's perspective while the active
// buffer has room; buffer turnover blocks only if the background
// goroutine has not yet drained the previous full buffer.
type ForwardWriter[T Item] struct {
	codec    itemCodec[T]
	f        *os.File
	active   []T
	full     chan []T
	empty    chan []T
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	err      error
	counters *ioutil.Counters
	closed   bool
}

// NewForwardWriter creates a writer over path with the given
// per-buffer item capacity (0 selects defaultBufItems).
func NewForwardWriter[T Item](path string, bufItems int, counters *ioutil.Counters) (*ForwardWriter[T], error) {
	if bufItems <= 0 {
		bufItems = defaultBufItems
	}
	f, err := ioutil.CreateWrite(component, path)
	if err != nil {
		return nil, err
	}
	w := &ForwardWriter[T]{
		codec:    codecFor[T](),
		f:        f,
		active:   make([]T, 0, bufItems),
		full:     make(chan []T, 1),
		empty:    make(chan []T, 1),
		done:     make(chan struct{}),
		counters: counters,
	}
	w.empty <- make([]T, 0, bufItems)
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *ForwardWriter[T]) run() {
	defer w.wg.Done()
	raw := make([]byte, 0, cap(w.active)*w.codec.size)
	for buf := range w.full {
		if len(buf) > 0 {
			raw = raw[:0]
			for _, v := range buf {
				var tmp [8]byte
				w.codec.put(tmp[:w.codec.size], v)
				raw = append(raw, tmp[:w.codec.size]...)
			}
			n, err := w.f.Write(raw)
			if w.counters != nil {
				w.counters.AddWritten(int64(n))
			}
			if err != nil {
				w.setErr(ioutil.NewIOError(component, "write "+w.f.Name(), err))
			}
		}
		select {
		case w.empty <- buf[:0]:
		default:
		}
	}
	close(w.done)
}

func (w *ForwardWriter[T]) setErr(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *ForwardWriter[T]) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Write appends a single item to the stream.
func (w *ForwardWriter[T]) Write(v T) error {
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

// Close flushes any buffered items, stops the background goroutine,
// and closes the underlying file, surfacing any write error the
// background goroutine hit after the offending Write returned.
func (w *ForwardWriter[T]) Close() error {
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
	if err := w.f.Close(); err != nil {
		w.setErr(ioutil.NewIOError(component, "close "+w.f.Name(), err))
	}
	return w.Err()
}

// ForwardReader is the reading counterpart of ForwardWriter: a
// background goroutine fills buffers ahead of the caller; Read
// blocks only when the caller has outrun the background fill.
type ForwardReader[T Item] struct {
	codec    itemCodec[T]
	f        *os.File
	active   []T
	pos      int
	full     chan []T
	empty    chan []T
	eof      bool
	mu       sync.Mutex
	err      error
	counters *ioutil.Counters
	closed   bool
	stop     chan struct{}
	done     chan struct{}
}

// NewForwardReader opens path for sequential forward reading.
func NewForwardReader[T Item](path string, bufItems int, counters *ioutil.Counters) (*ForwardReader[T], error) {
	if bufItems <= 0 {
		bufItems = defaultBufItems
	}
	f, err := ioutil.OpenRead(component, path)
	if err != nil {
		return nil, err
	}
	r := &ForwardReader[T]{
		codec:    codecFor[T](),
		f:        f,
		full:     make(chan []T, 1),
		empty:    make(chan []T, 2),
		counters: counters,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	r.empty <- make([]T, bufItems)
	r.empty <- make([]T, bufItems)
	go r.run(bufItems)
	return r, nil
}

func (r *ForwardReader[T]) run(bufItems int) {
	defer close(r.done)
	raw := make([]byte, bufItems*r.codec.size)
	for {
		var buf []T
		select {
		case buf = <-r.empty:
		case <-r.stop:
			return
		}
		raw = raw[:cap(raw)]
		n, err := io.ReadFull(r.f, raw)
		if n > 0 {
			if r.counters != nil {
				r.counters.AddRead(int64(n))
			}
			full := n / r.codec.size
			buf = buf[:full]
			for i := 0; i < full; i++ {
				buf[i] = r.codec.get(raw[i*r.codec.size:])
			}
		} else {
			buf = buf[:0]
		}
		select {
		case r.full <- buf:
		case <-r.stop:
			return
		}
		if err != nil {
			// Short or empty read: end of stream. Anything other
			// than EOF/UnexpectedEOF is a real I/O failure.
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				r.setErr(ioutil.NewIOError(component, "read "+r.f.Name(), err))
			}
			close(r.full)
			return
		}
	}
}

func (r *ForwardReader[T]) setErr(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

func (r *ForwardReader[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Read returns the next item, ok=false once the stream is exhausted.
func (r *ForwardReader[T]) Read() (T, bool, error) {
	var zero T
	if err := r.Err(); err != nil {
		return zero, false, err
	}
	for r.pos >= len(r.active) {
		if r.eof {
			return zero, false, nil
		}
		buf, ok := <-r.full
		if !ok {
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
		r.pos = 0
		if len(buf) == 0 {
			r.eof = true
			return zero, false, r.Err()
		}
	}
	v := r.active[r.pos]
	r.pos++
	return v, true, nil
}

// Close stops the background goroutine and closes the file, in that
// order: signal, join, close.
func (r *ForwardReader[T]) Close() error {
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
