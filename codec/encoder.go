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
	"fmt"
	"math/bits"

	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/0xsoniclabs/deltacurate/schema"
)

// ErrWidthOverflow signals that a field's delta or current value does not fit
// the field's declared bit width. For a delta overflow between two in-width
// values the caller recovers by forcing a snapshot for the affected record and
// retrying the encode once; an out-of-width value is rejected outright. Data
// is never truncated.
var ErrWidthOverflow = errors.New("value exceeds field width")

// maxPackedBits caps the packed width of a single delta. Deltas of 64-bit
// fields whose zig-zag form needs all 64 bits fall back to a snapshot.
const maxPackedBits = 63

// DeltaEntry is the field-level difference between two consecutive records of
// the same entity. The mask marks the ordinals of changed fields; the payload
// holds one packed value per set bit, in ascending ordinal order.
type DeltaEntry struct {
	RecordID common.RecordID
	Sequence uint64
	EpochID  uint64

	// Mask marks the field ordinals whose value changed.
	Mask common.FieldMask

	// Packed is the payload bit stream: one self-delimiting packed delta or
	// replacement value per set mask bit. PackedBits is its length in bits.
	Packed     []byte
	PackedBits int

	// WidthClasses lists the gamma width class of every packed numeric
	// delta, in payload order. It is derived state used for statistical
	// fingerprinting and is not part of the wire format.
	WidthClasses []uint8
}

// NumDeltas returns the number of packed payloads, which by construction
// equals the number of set mask bits.
func (e *DeltaEntry) NumDeltas() int {
	return e.Mask.PopCount()
}

// Encode computes the delta entry turning prev into cur. It is a pure
// function of its inputs. A nil prev treats every field of cur as changed
// relative to the zero value. Fields with a zero delta are omitted entirely.
//
// Encode fails with schema.ErrSchemaMismatch if either record carries
// ordinals unknown to the schema, or if cur does not carry every ordinal
// prev carries. It fails with ErrWidthOverflow if a numeric delta does not
// fit the field's declared width.
func Encode(s *schema.Schema, prev *schema.Record, cur *schema.Record) (DeltaEntry, error) {
	if err := checkOrdinals(s, prev, cur); err != nil {
		return DeltaEntry{}, err
	}

	entry := DeltaEntry{RecordID: cur.ID, Sequence: cur.Sequence}
	w := bitWriter{}

	for _, f := range s.Fields() {
		curValue := cur.Get(f.Ordinal)
		prevValue := schema.Value{}
		if prev != nil {
			prevValue = prev.Get(f.Ordinal)
		}

		switch f.Kind {
		case schema.KindInt, schema.KindUint:
			// The snapshot encoding stores exactly BitWidth bits per value, so
			// an out-of-width running value could never round-trip losslessly.
			if !fitsWidth(curValue, f) {
				return DeltaEntry{}, fmt.Errorf(
					"%w: record %s seq %d field %q value does not fit %d bits",
					ErrWidthOverflow, cur.ID, cur.Sequence, f.Name, f.BitWidth)
			}
			delta := int64(curValue.Bits() - prevValue.Bits())
			if delta == 0 {
				continue
			}
			zz := zigzag(delta)
			if bits.Len64(zz) > min(int(f.BitWidth), maxPackedBits) {
				return DeltaEntry{}, fmt.Errorf(
					"%w: record %s seq %d field %q delta %d",
					ErrWidthOverflow, cur.ID, cur.Sequence, f.Name, delta)
			}
			entry.Mask.Set(f.Ordinal)
			entry.WidthClasses = append(entry.WidthClasses, widthClass(delta))
			w.writeGamma(zz + 1)
		case schema.KindBool:
			if curValue.Bool() == prevValue.Bool() {
				continue
			}
			entry.Mask.Set(f.Ordinal)
			bit := uint64(0)
			if curValue.Bool() {
				bit = 1
			}
			w.writeBits(bit, 1)
		case schema.KindBytes:
			if curValue.Equal(prevValue, schema.KindBytes) {
				continue
			}
			entry.Mask.Set(f.Ordinal)
			replacement := curValue.Bytes()
			w.writeGamma(uint64(len(replacement)) + 1)
			for _, b := range replacement {
				w.writeBits(uint64(b), 8)
			}
		}
	}

	entry.Packed = w.bytes()
	entry.PackedBits = w.used
	return entry, nil
}

// fitsWidth reports whether a numeric value is representable in the field's
// declared bit width, signed for Int (two's complement) and unsigned for Uint.
func fitsWidth(v schema.Value, f schema.FieldSpec) bool {
	if f.Kind == schema.KindInt {
		return bits.Len64(zigzag(v.Int())) <= int(f.BitWidth)
	}
	return bits.Len64(v.Uint()) <= int(f.BitWidth)
}

// checkOrdinals enforces the additive evolution contract on the two records.
func checkOrdinals(s *schema.Schema, prev *schema.Record, cur *schema.Record) error {
	for _, ordinal := range cur.Ordinals() {
		if _, ok := s.Field(ordinal); !ok {
			return fmt.Errorf("%w: record %s seq %d carries unknown ordinal %d",
				schema.ErrSchemaMismatch, cur.ID, cur.Sequence, ordinal)
		}
	}
	if prev == nil {
		return nil
	}
	for _, ordinal := range prev.Ordinals() {
		if _, ok := s.Field(ordinal); !ok {
			return fmt.Errorf("%w: record %s seq %d carries unknown ordinal %d",
				schema.ErrSchemaMismatch, prev.ID, prev.Sequence, ordinal)
		}
		if !cur.Has(ordinal) {
			return fmt.Errorf("%w: record %s seq %d dropped ordinal %d",
				schema.ErrSchemaMismatch, cur.ID, cur.Sequence, ordinal)
		}
	}
	return nil
}
