// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package radixheap

import (
	"github.com/nekitakamenev/fsais/internal/ioutil"
	"github.com/nekitakamenev/fsais/internal/stream"
)

// Item is any fixed-width unsigned integer a heap key or value can
// carry. Values are themselves bounded unsigned integers, typically a
// packed block-id/flag-bit word or a packed block-id/name pair.
type Item interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// spillSeg is one on-disk batch of a bucket's overflow, drained
// strictly after every earlier segment and before the RAM tail.
type spillSeg struct {
	keyPath, valPath string
	count            int64
}

// emQueue is one bucket's FIFO: a small RAM head queue, a small RAM
// tail queue, and a chain of on-disk spill segments for whatever does
// not fit in either. Overflow policy: when the tail fills, an empty
// head with no disk content behind it takes the tail's items,
// bypassing the disk entirely; otherwise the tail is spilled and
// reused empty. Spills never append to a segment that a reader is
// draining: the writer always sits on the newest segment and the
// reader on the oldest, so pushes and pops may interleave freely.
type emQueue[K, V Item] struct {
	pool *ramPool[K, V]

	head    []item[K, V]
	headPos int
	tail    []item[K, V]

	base     ioutil.Basename
	counters *ioutil.Counters

	segs      []spillSeg
	keyWriter *stream.ForwardWriter[K]
	valWriter *stream.ForwardWriter[V]
	keyReader *stream.ForwardReader[K]
	valReader *stream.ForwardReader[V]
	readLeft  int64
	diskCount int64
}

func newEMQueue[K, V Item](pool *ramPool[K, V], base ioutil.Basename, counters *ioutil.Counters) *emQueue[K, V] {
	return &emQueue[K, V]{
		pool:     pool,
		head:     pool.take(),
		tail:     pool.take(),
		base:     base,
		counters: counters,
	}
}

func (q *emQueue[K, V]) empty() bool {
	return q.headPos >= len(q.head) && len(q.tail) == 0 && q.diskCount == 0
}

func (q *emQueue[K, V]) push(k K, v V) error {
	if len(q.tail) == cap(q.tail) {
		if q.headPos >= len(q.head) && q.diskCount == 0 {
			q.head, q.tail = q.tail, q.head[:0]
			q.headPos = 0
		} else {
			if err := q.spill(); err != nil {
				return err
			}
			q.tail = q.tail[:0]
		}
	}
	q.tail = append(q.tail, item[K, V]{key: k, val: v})
	return nil
}

// spill moves the full tail onto disk. The write side always targets
// the newest segment; a new one is opened whenever the previous
// writer was closed to let the read side drain it.
func (q *emQueue[K, V]) spill() error {
	if q.keyWriter == nil {
		name, err := q.base.TempName()
		if err != nil {
			return err
		}
		seg := spillSeg{keyPath: name + ".key", valPath: name + ".val"}
		kw, err := stream.NewForwardWriter[K](seg.keyPath, 0, q.counters)
		if err != nil {
			return err
		}
		vw, err := stream.NewForwardWriter[V](seg.valPath, 0, q.counters)
		if err != nil {
			kw.Close()
			return err
		}
		q.segs = append(q.segs, seg)
		q.keyWriter, q.valWriter = kw, vw
	}
	for _, it := range q.tail {
		if err := q.keyWriter.Write(it.key); err != nil {
			return err
		}
		if err := q.valWriter.Write(it.val); err != nil {
			return err
		}
	}
	q.segs[len(q.segs)-1].count += int64(len(q.tail))
	q.diskCount += int64(len(q.tail))
	return nil
}

func (q *emQueue[K, V]) closeWriters() error {
	if q.keyWriter != nil {
		if err := q.keyWriter.Close(); err != nil {
			return err
		}
		q.keyWriter = nil
	}
	if q.valWriter != nil {
		if err := q.valWriter.Close(); err != nil {
			return err
		}
		q.valWriter = nil
	}
	return nil
}

// openReaders prepares the oldest segment for draining. If the writer
// still holds that segment (there is only one), it is closed first so
// the readers see a complete file.
func (q *emQueue[K, V]) openReaders() error {
	if q.keyReader != nil {
		return nil
	}
	if len(q.segs) == 1 {
		if err := q.closeWriters(); err != nil {
			return err
		}
	}
	seg := q.segs[0]
	kr, err := stream.NewForwardReader[K](seg.keyPath, 0, q.counters)
	if err != nil {
		return err
	}
	vr, err := stream.NewForwardReader[V](seg.valPath, 0, q.counters)
	if err != nil {
		kr.Close()
		return err
	}
	q.keyReader, q.valReader = kr, vr
	q.readLeft = seg.count
	return nil
}

func (q *emQueue[K, V]) refillFromDisk() error {
	if err := q.openReaders(); err != nil {
		return err
	}
	buf := q.pool.take()
	for len(buf) < cap(buf) && q.readLeft > 0 {
		k, ok, err := q.keyReader.Read()
		if err != nil {
			return err
		}
		if !ok {
			return ioutil.Fatalf(ioutil.ErrInvariant, "radixheap", "spill segment ended %d items early", q.readLeft)
		}
		v, ok, err := q.valReader.Read()
		if err != nil {
			return err
		}
		if !ok {
			return ioutil.Fatalf(ioutil.ErrInvariant, "radixheap", "spill value segment ended %d items early", q.readLeft)
		}
		buf = append(buf, item[K, V]{key: k, val: v})
		q.readLeft--
		q.diskCount--
	}
	q.pool.put(q.head[:0])
	q.head, q.headPos = buf, 0
	if q.readLeft == 0 {
		seg := q.segs[0]
		q.segs = q.segs[1:]
		if err := q.keyReader.Close(); err != nil {
			return err
		}
		if err := q.valReader.Close(); err != nil {
			return err
		}
		q.keyReader, q.valReader = nil, nil
		if err := ioutil.Remove(seg.keyPath); err != nil {
			return err
		}
		if err := ioutil.Remove(seg.valPath); err != nil {
			return err
		}
	}
	return nil
}

func (q *emQueue[K, V]) pop() (item[K, V], bool, error) {
	if q.headPos >= len(q.head) {
		switch {
		case q.diskCount > 0:
			if err := q.refillFromDisk(); err != nil {
				return item[K, V]{}, false, err
			}
		case len(q.tail) > 0:
			q.pool.put(q.head[:0])
			q.head, q.tail = q.tail, q.pool.take()
			q.headPos = 0
		default:
			return item[K, V]{}, false, nil
		}
	}
	if q.headPos >= len(q.head) {
		return item[K, V]{}, false, nil
	}
	it := q.head[q.headPos]
	q.headPos++
	return it, true, nil
}

// drain empties the entire bucket in FIFO order, used during
// redistribution.
func (q *emQueue[K, V]) drain() ([]item[K, V], error) {
	var all []item[K, V]
	for {
		it, ok, err := q.pop()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		all = append(all, it)
	}
	return all, nil
}

func (q *emQueue[K, V]) close() error {
	if err := q.closeWriters(); err != nil {
		return err
	}
	if q.keyReader != nil {
		q.keyReader.Close()
		q.valReader.Close()
		q.keyReader, q.valReader = nil, nil
	}
	for _, seg := range q.segs {
		ioutil.Remove(seg.keyPath)
		ioutil.Remove(seg.valPath)
	}
	q.segs = nil
	q.pool.put(q.head[:0])
	q.pool.put(q.tail[:0])
	return nil
}
