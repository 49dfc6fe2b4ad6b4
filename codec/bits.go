// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package codec

import (
	"errors"
	"math/bits"
)

// ErrCorruptedStream signals that a bit stream ended prematurely or contained
// an invalid length prefix. It indicates corrupted or truncated input, not a
// recoverable condition.
var ErrCorruptedStream = errors.New("corrupted delta stream")

// bitWriter assembles a bit stream, MSB-first within each byte.
type bitWriter struct {
	data []byte
	used int // number of bits written
}

// writeBits appends the low n bits of value, most significant first.
func (w *bitWriter) writeBits(value uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.used%8 == 0 {
			w.data = append(w.data, 0)
		}
		if value&(1<<i) != 0 {
			w.data[w.used/8] |= 0x80 >> (w.used % 8)
		}
		w.used++
	}
}

// writeGamma appends the Elias gamma code of value, which must be >= 1: the
// number of bits of value minus one as a run of zeros, followed by the bits
// of value starting with its leading one.
func (w *bitWriter) writeGamma(value uint64) {
	n := bits.Len64(value)
	w.writeBits(0, n-1)
	w.writeBits(value, n)
}

// writeStream appends the first n bits of another bit stream.
func (w *bitWriter) writeStream(data []byte, n int) {
	for i := 0; i < n; i++ {
		bit := uint64(0)
		if data[i/8]&(0x80>>(i%8)) != 0 {
			bit = 1
		}
		w.writeBits(bit, 1)
	}
}

// bytes returns the accumulated stream, zero-padded to a byte boundary.
func (w *bitWriter) bytes() []byte {
	return w.data
}

// bitReader consumes a bit stream produced by bitWriter.
type bitReader struct {
	data []byte
	pos  int // number of bits consumed
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

// readBits consumes n bits and returns them right-aligned.
func (r *bitReader) readBits(n int) (uint64, error) {
	if r.pos+n > len(r.data)*8 {
		return 0, ErrCorruptedStream
	}
	var res uint64
	for range n {
		res <<= 1
		if r.data[r.pos/8]&(0x80>>(r.pos%8)) != 0 {
			res |= 1
		}
		r.pos++
	}
	return res, nil
}

// readGamma consumes one Elias gamma code and returns the encoded value.
func (r *bitReader) readGamma() (uint64, error) {
	zeros := 0
	for {
		bit, err := r.readBits(1)
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		zeros++
		if zeros >= 64 {
			return 0, ErrCorruptedStream
		}
	}
	rest, err := r.readBits(zeros)
	if err != nil {
		return 0, err
	}
	return 1<<zeros | rest, nil
}
