// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package schema

import (
	"bytes"
	"slices"

	"github.com/0xsoniclabs/deltacurate/common"
)

// Value is the value of a single record field. Numeric kinds and booleans are
// stored in the 64-bit payload, byte fields in the blob. The applicable
// accessor is determined by the field's declared Kind.
type Value struct {
	num  uint64
	blob []byte
}

// IntValue wraps a signed integer value.
func IntValue(v int64) Value {
	return Value{num: uint64(v)}
}

// UintValue wraps an unsigned integer value.
func UintValue(v uint64) Value {
	return Value{num: v}
}

// BoolValue wraps a boolean value.
func BoolValue(v bool) Value {
	if v {
		return Value{num: 1}
	}
	return Value{}
}

// BytesValue wraps a byte string value. The input is copied.
func BytesValue(v []byte) Value {
	return Value{blob: slices.Clone(v)}
}

func (v Value) Int() int64 {
	return int64(v.num)
}

func (v Value) Uint() uint64 {
	return v.num
}

func (v Value) Bool() bool {
	return v.num != 0
}

// Bytes returns the byte string payload. The returned slice must not be
// modified.
func (v Value) Bytes() []byte {
	return v.blob
}

// Bits returns the raw 64-bit payload, independent of kind. Deltas between
// numeric values are computed on this representation.
func (v Value) Bits() uint64 {
	return v.num
}

// Equal compares two values of the given kind.
func (v Value) Equal(other Value, kind Kind) bool {
	if kind == KindBytes {
		return bytes.Equal(v.blob, other.blob)
	}
	return v.num == other.num
}

// Record is a mapping from field ordinals to typed values, together with the
// identity and sequence number of the tracked entity. Fields that were never
// set hold the zero value of their kind.
type Record struct {
	ID       common.RecordID
	Sequence uint64
	values   map[byte]Value
}

// NewRecord creates an empty record for the given entity and sequence number.
func NewRecord(id common.RecordID, sequence uint64) *Record {
	return &Record{ID: id, Sequence: sequence, values: map[byte]Value{}}
}

// Get returns the value of the field with the given ordinal, or the zero
// value if the field was never set.
func (r *Record) Get(ordinal byte) Value {
	return r.values[ordinal]
}

// Set assigns the value of the field with the given ordinal.
func (r *Record) Set(ordinal byte, value Value) *Record {
	r.values[ordinal] = value
	return r
}

// Has reports whether the field with the given ordinal was explicitly set.
func (r *Record) Has(ordinal byte) bool {
	_, ok := r.values[ordinal]
	return ok
}

// Ordinals returns the ordinals of all explicitly set fields in ascending
// order.
func (r *Record) Ordinals() []byte {
	res := make([]byte, 0, len(r.values))
	for ordinal := range r.values {
		res = append(res, ordinal)
	}
	slices.Sort(res)
	return res
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	res := &Record{ID: r.ID, Sequence: r.Sequence, values: make(map[byte]Value, len(r.values))}
	for ordinal, value := range r.values {
		if value.blob != nil {
			value.blob = slices.Clone(value.blob)
		}
		res.values[ordinal] = value
	}
	return res
}

// Equal reports whether two records carry identical field values under the
// given schema. Identity and sequence numbers are not compared.
func (r *Record) Equal(other *Record, s *Schema) bool {
	for _, f := range s.Fields() {
		if !r.Get(f.Ordinal).Equal(other.Get(f.Ordinal), f.Kind) {
			return false
		}
	}
	return true
}
