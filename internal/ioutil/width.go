// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package ioutil

import "math"

// Width is an integer storage width used for a raw typed stream: a
// sequence of fixed-width little-endian unsigned integers with no
// header.
type Width int

const (
	Width8  Width = 1
	Width16 Width = 2
	Width32 Width = 4
	Width64 Width = 8
)

// Bytes returns the number of bytes a single item of this width
// occupies on disk.
func (w Width) Bytes() int { return int(w) }

// Max returns the largest value representable in this width.
func (w Width) Max() uint64 {
	switch w {
	case Width8:
		return math.MaxUint8
	case Width16:
		return math.MaxUint16
	case Width32:
		return math.MaxUint32
	default:
		return math.MaxUint64
	}
}

// SelectWidth picks the narrowest supported width able to hold every
// value up to bound, choosing between Width32 and Width64 only.
//
// Build calls it once, with the text length, to pick the output
// suffix array's width and carries the result through, rather than
// re-deriving it per item. No other stream's width is chosen here.
func SelectWidth(bound uint64) Width {
	switch {
	case bound <= Width32.Max():
		return Width32
	default:
		return Width64
	}
}

// CheckCapacity verifies that a chosen width can represent every
// value up to bound, returning a fatal, component-identified error
// otherwise.
func CheckCapacity(component string, w Width, bound uint64) error {
	if bound > w.Max() {
		return Fatalf(ErrTypeCapacity, component, "width %d bytes cannot hold bound %d (max %d)", w.Bytes(), bound, w.Max())
	}
	return nil
}

// BitWidth returns the number of bits needed to represent values in
// [0, bound] (at least 1).
func BitWidth(bound uint64) uint {
	var n uint
	for bound > 0 {
		n++
		bound >>= 1
	}
	if n == 0 {
		n = 1
	}
	return n
}
