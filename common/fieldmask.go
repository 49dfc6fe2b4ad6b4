// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import "math/bits"

// MaxOrdinals is the number of field ordinals a single schema may use. It is
// fixed by the width of the FieldMask.
const MaxOrdinals = 256

// FieldMask is a bitmap over field ordinals. A set bit marks a field that
// changed in a delta, or, for aggregated tree nodes, a field that changed in
// any descendant delta.
type FieldMask [MaxOrdinals / 64]uint64

// Get returns true if the bit for the given ordinal is set.
func (m *FieldMask) Get(ordinal byte) bool {
	return (m[ordinal/64] & (1 << (ordinal % 64))) != 0
}

// Set sets the bit for the given ordinal.
func (m *FieldMask) Set(ordinal byte) {
	m[ordinal/64] |= 1 << (ordinal % 64)
}

// Or merges the other mask into this one.
func (m *FieldMask) Or(other FieldMask) {
	m[0] |= other[0]
	m[1] |= other[1]
	m[2] |= other[2]
	m[3] |= other[3]
}

// Any returns true if any bit is set.
func (m *FieldMask) Any() bool {
	return m[0]|m[1]|m[2]|m[3] != 0
}

// PopCount returns the number of set bits.
func (m *FieldMask) PopCount() int {
	count := 0
	for _, v := range m {
		count += bits.OnesCount64(v)
	}
	return count
}

// Ordinals returns the set ordinals in ascending order.
func (m *FieldMask) Ordinals() []byte {
	res := make([]byte, 0, m.PopCount())
	for word := range m {
		w := m[word]
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			res = append(res, byte(word*64+bit))
			w &= w - 1
		}
	}
	return res
}

// FieldMaskFromBytes parses the canonical 32-byte serialization produced by
// Bytes. Short input is treated as zero-padded.
func FieldMaskFromBytes(data []byte) FieldMask {
	var m FieldMask
	for i, b := range data {
		if i >= 32 {
			break
		}
		m[i/8] |= uint64(b) << (8 * (i % 8))
	}
	return m
}

// Bytes returns the canonical 32-byte serialization of the mask, used as
// digest input. Word order is little-endian, byte order within a word is
// little-endian, so that bit i of the mask is bit i%8 of byte i/8.
func (m *FieldMask) Bytes() []byte {
	res := make([]byte, 32)
	for word := range m {
		v := m[word]
		for i := range 8 {
			res[word*8+i] = byte(v >> (8 * i))
		}
	}
	return res
}
