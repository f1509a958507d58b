// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package stream

import (
	"io"

	"github.com/nekitakamenev/fsais/internal/ioutil"
)

// VarintWriter writes a stream of LEB128-style variable-length
// unsigned integers, generalizing encoding/binary's Put/Uvarint
// helpers into the same background-goroutine stream shape as the rest
// of this package. Used when position deltas are small enough that
// varint encoding beats a fixed-width stream.
type VarintWriter struct {
	fw *ForwardWriter[uint8]
}

// NewVarintWriter opens a varint stream for writing.
func NewVarintWriter(path string, bufItems int, counters *ioutil.Counters) (*VarintWriter, error) {
	fw, err := NewForwardWriter[uint8](path, bufItems, counters)
	if err != nil {
		return nil, err
	}
	return &VarintWriter{fw: fw}, nil
}

// WriteUvarint appends v.
func (w *VarintWriter) WriteUvarint(v uint64) error {
	for v >= 0x80 {
		if err := w.fw.Write(uint8(v) | 0x80); err != nil {
			return err
		}
		v >>= 7
	}
	return w.fw.Write(uint8(v))
}

// Close flushes and closes the underlying stream.
func (w *VarintWriter) Close() error { return w.fw.Close() }

// VarintReader is the reading counterpart of VarintWriter.
type VarintReader struct {
	fr *ForwardReader[uint8]
}

// NewVarintReader opens a varint stream for reading.
func NewVarintReader(path string, bufItems int, counters *ioutil.Counters) (*VarintReader, error) {
	fr, err := NewForwardReader[uint8](path, bufItems, counters)
	if err != nil {
		return nil, err
	}
	return &VarintReader{fr: fr}, nil
}

// ReadUvarint returns the next value, ok=false at end of stream.
func (r *VarintReader) ReadUvarint() (uint64, bool, error) {
	var x uint64
	var s uint
	for i := 0; ; i++ {
		b, ok, err := r.fr.Read()
		if err != nil {
			return 0, false, err
		}
		if !ok {
			if i == 0 {
				return 0, false, nil
			}
			return 0, false, ioutil.NewIOError(component, "truncated varint", io.ErrUnexpectedEOF)
		}
		if b < 0x80 {
			return x | uint64(b)<<s, true, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
}

// Close closes the underlying stream.
func (r *VarintReader) Close() error { return r.fr.Close() }
