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

import (
	"encoding/binary"

	"golang.org/x/exp/constraints"
)

// Serializer converts values of a fixed-size type to and from their canonical
// byte representation. It is used to compose database keys.
type Serializer[T any] interface {
	// ToBytes returns the canonical byte representation of the value.
	ToBytes(T) []byte
	// CopyBytes writes the canonical byte representation into the given slice.
	CopyBytes(T, []byte)
	// FromBytes parses a value from its canonical byte representation.
	FromBytes([]byte) T
	// Size returns the fixed byte length of the representation.
	Size() int
}

// OrderedUintSerializer serializes unsigned integers big-endian, so that the
// lexicographic order of the serialized form matches the numeric order. This
// property is required for range scans over database keys.
type OrderedUintSerializer[T constraints.Unsigned] struct{}

func (OrderedUintSerializer[T]) ToBytes(value T) []byte {
	res := make([]byte, 8)
	binary.BigEndian.PutUint64(res, uint64(value))
	return res
}

func (OrderedUintSerializer[T]) CopyBytes(value T, out []byte) {
	binary.BigEndian.PutUint64(out, uint64(value))
}

func (OrderedUintSerializer[T]) FromBytes(data []byte) T {
	return T(binary.BigEndian.Uint64(data))
}

func (OrderedUintSerializer[T]) Size() int {
	return 8
}

// RecordIDSerializer serializes record identifiers as their raw 16 bytes.
type RecordIDSerializer struct{}

func (RecordIDSerializer) ToBytes(id RecordID) []byte {
	res := make([]byte, RecordIDSize)
	copy(res, id[:])
	return res
}

func (RecordIDSerializer) CopyBytes(id RecordID, out []byte) {
	copy(out, id[:])
}

func (RecordIDSerializer) FromBytes(data []byte) RecordID {
	var id RecordID
	copy(id[:], data)
	return id
}

func (RecordIDSerializer) Size() int {
	return RecordIDSize
}
