// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package stream

import (
	"io"
	"os"
	"sync"

	"github.com/nekitakamenev/fsais/internal/ioutil"
)

// msJob is one pending flush request for a MultiStreamWriter: the
// index of the logical sub-stream and the buffer to drain to it.
type msJob[T Item] struct {
	idx int
	buf []T
}

// MultiStreamWriter exposes N logical sub-streams, each with its own
// active buffer, sharing one background I/O goroutine and a single
// request queue. Build uses this to write a block's plus/minus pair
// of positions, and its plus/minus pair of symbols, each pair through
// one background writer instead of two; the type flags go through
// BitWriter instead.
type MultiStreamWriter[T Item] struct {
	codec     itemCodec[T]
	files     []*os.File
	active    [][]T
	bufItems  int
	jobs      chan msJob[T]
	emptyPool chan []T
	wg        sync.WaitGroup
	mu        sync.Mutex
	err       error
	counters  *ioutil.Counters
	closed    bool
}

// NewMultiStreamWriter opens one file per path and starts the shared
// background writer.
func NewMultiStreamWriter[T Item](paths []string, bufItems int, counters *ioutil.Counters) (*MultiStreamWriter[T], error) {
	if bufItems <= 0 {
		bufItems = defaultBufItems
	}
	files := make([]*os.File, len(paths))
	for i, p := range paths {
		f, err := ioutil.CreateWrite(component, p)
		if err != nil {
			for _, opened := range files[:i] {
				if opened != nil {
					opened.Close()
				}
			}
			return nil, err
		}
		files[i] = f
	}
	w := &MultiStreamWriter[T]{
		codec:     codecFor[T](),
		files:     files,
		active:    make([][]T, len(paths)),
		bufItems:  bufItems,
		jobs:      make(chan msJob[T], len(paths)),
		emptyPool: make(chan []T, len(paths)+1),
		counters:  counters,
	}
	for i := range w.active {
		w.active[i] = make([]T, 0, bufItems)
	}
	for i := 0; i < len(paths)+1; i++ {
		w.emptyPool <- make([]T, 0, bufItems)
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *MultiStreamWriter[T]) run() {
	defer w.wg.Done()
	raw := make([]byte, 0, w.bufItems*w.codec.size)
	for job := range w.jobs {
		if len(job.buf) > 0 {
			raw = raw[:0]
			var tmp [8]byte
			for _, v := range job.buf {
				w.codec.put(tmp[:w.codec.size], v)
				raw = append(raw, tmp[:w.codec.size]...)
			}
			n, err := w.files[job.idx].Write(raw)
			if w.counters != nil {
				w.counters.AddWritten(int64(n))
			}
			if err != nil {
				w.setErr(ioutil.NewIOError(component, "multistream write", err))
			}
		}
		select {
		case w.emptyPool <- job.buf[:0]:
		default:
		}
	}
}

func (w *MultiStreamWriter[T]) setErr(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *MultiStreamWriter[T]) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// WriteTo appends v to the i-th logical sub-stream.
func (w *MultiStreamWriter[T]) WriteTo(i int, v T) error {
	if err := w.Err(); err != nil {
		return err
	}
	w.active[i] = append(w.active[i], v)
	if len(w.active[i]) == cap(w.active[i]) {
		w.jobs <- msJob[T]{idx: i, buf: w.active[i]}
		w.active[i] = <-w.emptyPool
	}
	return nil
}

// Close flushes every sub-stream's active buffer and closes all files.
func (w *MultiStreamWriter[T]) Close() error {
	if w.closed {
		return w.Err()
	}
	w.closed = true
	for i, buf := range w.active {
		if len(buf) > 0 {
			w.jobs <- msJob[T]{idx: i, buf: buf}
		}
	}
	close(w.jobs)
	w.wg.Wait()
	for _, f := range w.files {
		if err := f.Close(); err != nil {
			w.setErr(ioutil.NewIOError(component, "close "+f.Name(), err))
		}
	}
	return w.Err()
}

// MultiStreamReader is the reading counterpart: N logical sub-streams
// sharing one background I/O thread and a single request queue.
type MultiStreamReader[T Item] struct {
	codec    itemCodec[T]
	files    []*os.File
	bufItems int
	active   [][]T
	pos      []int
	eof      []bool
	reqs     chan int
	results  []chan []T
	mu       sync.Mutex
	err      error
	counters *ioutil.Counters
	closed   bool
	stop     chan struct{}
	done     chan struct{}
}

// NewMultiStreamReader opens one file per path and starts the shared
// background reader.
func NewMultiStreamReader[T Item](paths []string, bufItems int, counters *ioutil.Counters) (*MultiStreamReader[T], error) {
	if bufItems <= 0 {
		bufItems = defaultBufItems
	}
	n := len(paths)
	files := make([]*os.File, n)
	for i, p := range paths {
		f, err := ioutil.OpenRead(component, p)
		if err != nil {
			for _, opened := range files[:i] {
				if opened != nil {
					opened.Close()
				}
			}
			return nil, err
		}
		files[i] = f
	}
	r := &MultiStreamReader[T]{
		codec:    codecFor[T](),
		files:    files,
		bufItems: bufItems,
		active:   make([][]T, n),
		pos:      make([]int, n),
		eof:      make([]bool, n),
		reqs:     make(chan int, n),
		results:  make([]chan []T, n),
		counters: counters,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for i := range r.results {
		r.results[i] = make(chan []T, 1)
	}
	go r.run()
	return r, nil
}

func (r *MultiStreamReader[T]) run() {
	defer close(r.done)
	raw := make([]byte, r.bufItems*r.codec.size)
	for {
		var idx int
		select {
		case idx = <-r.reqs:
		case <-r.stop:
			return
		}
		n, err := io.ReadFull(r.files[idx], raw)
		var buf []T
		if n > 0 {
			if r.counters != nil {
				r.counters.AddRead(int64(n))
			}
			full := n / r.codec.size
			buf = make([]T, full)
			for i := 0; i < full; i++ {
				buf[i] = r.codec.get(raw[i*r.codec.size:])
			}
		}
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			r.setErr(ioutil.NewIOError(component, "multistream read", err))
		}
		select {
		case r.results[idx] <- buf:
		case <-r.stop:
			return
		}
	}
}

func (r *MultiStreamReader[T]) setErr(err error) {
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

func (r *MultiStreamReader[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// ReadFrom returns the next item of the i-th logical sub-stream.
func (r *MultiStreamReader[T]) ReadFrom(i int) (T, bool, error) {
	var zero T
	if err := r.Err(); err != nil {
		return zero, false, err
	}
	for r.pos[i] >= len(r.active[i]) {
		if r.eof[i] {
			return zero, false, nil
		}
		r.reqs <- i
		buf := <-r.results[i]
		r.active[i] = buf
		r.pos[i] = 0
		if len(buf) == 0 {
			r.eof[i] = true
			return zero, false, r.Err()
		}
	}
	v := r.active[i][r.pos[i]]
	r.pos[i]++
	return v, true, nil
}

// Close stops the background goroutine and closes every file.
func (r *MultiStreamReader[T]) Close() error {
	if r.closed {
		return r.Err()
	}
	r.closed = true
	close(r.stop)
	<-r.done
	for _, f := range r.files {
		if err := f.Close(); err != nil {
			r.setErr(ioutil.NewIOError(component, "close "+f.Name(), err))
		}
	}
	return r.Err()
}
