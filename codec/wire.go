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

// The persisted layout of a delta entry is
//
//	[epoch_id: uvarint][record_id: 16 bytes][sequence: uvarint][body]
//
// where the body is a single bit stream, MSB-first within bytes:
//
//	gamma(popcount+1)
//	for each set ordinal, ascending: gamma(gap+1), gap to the previous
//	    ordinal (the first gap counts from ordinal -1)
//	for each set ordinal, ascending: the packed payload of the field
//
// Snapshots are persisted as
//
//	[epoch_id: uvarint][record_id: 16 bytes][sequence: uvarint][values]
//
// with every schema field in ordinal order: numeric fields as their raw
// declared bit width, booleans as one bit, byte fields as gamma(len+1)
// followed by the raw bytes.
//
// Elias gamma is the self-delimiting length prefix chosen for this format;
// interoperability depends on this choice being fixed.

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/0xsoniclabs/deltacurate/schema"
)

// EncodeDelta serializes a delta entry into its persisted layout.
func EncodeDelta(entry DeltaEntry) []byte {
	res := binary.AppendUvarint(nil, entry.EpochID)
	res = append(res, entry.RecordID[:]...)
	res = binary.AppendUvarint(res, entry.Sequence)

	w := bitWriter{}
	ordinals := entry.Mask.Ordinals()
	w.writeGamma(uint64(len(ordinals)) + 1)
	prev := -1
	for _, ordinal := range ordinals {
		w.writeGamma(uint64(int(ordinal) - prev))
		prev = int(ordinal)
	}
	w.writeStream(entry.Packed, entry.PackedBits)
	return append(res, w.bytes()...)
}

// DecodeDelta parses a delta entry from its persisted layout. The schema is
// required to delimit the per-field payloads.
func DecodeDelta(s *schema.Schema, data []byte) (DeltaEntry, error) {
	var entry DeltaEntry
	rest, err := decodeHeader(data, &entry.EpochID, &entry.RecordID, &entry.Sequence)
	if err != nil {
		return DeltaEntry{}, err
	}

	r := newBitReader(rest)
	count, err := r.readGamma()
	if err != nil {
		return DeltaEntry{}, err
	}
	count--
	if count > common.MaxOrdinals {
		return DeltaEntry{}, ErrCorruptedStream
	}
	prev := -1
	ordinals := make([]byte, 0, count)
	for range count {
		gap, err := r.readGamma()
		if err != nil {
			return DeltaEntry{}, err
		}
		ordinal := prev + int(gap)
		if ordinal >= common.MaxOrdinals {
			return DeltaEntry{}, ErrCorruptedStream
		}
		entry.Mask.Set(byte(ordinal))
		ordinals = append(ordinals, byte(ordinal))
		prev = ordinal
	}

	// Re-pack the payload section so the entry's Packed stream starts at
	// bit zero, and recover the width classes along the way.
	w := bitWriter{}
	for _, ordinal := range ordinals {
		f, ok := s.Field(ordinal)
		if !ok {
			return DeltaEntry{}, fmt.Errorf("%w: persisted delta names unknown ordinal %d",
				schema.ErrSchemaMismatch, ordinal)
		}
		switch f.Kind {
		case schema.KindInt, schema.KindUint:
			biased, err := r.readGamma()
			if err != nil {
				return DeltaEntry{}, err
			}
			entry.WidthClasses = append(entry.WidthClasses, uint8(bits.Len64(biased)))
			w.writeGamma(biased)
		case schema.KindBool:
			bit, err := r.readBits(1)
			if err != nil {
				return DeltaEntry{}, err
			}
			w.writeBits(bit, 1)
		case schema.KindBytes:
			biased, err := r.readGamma()
			if err != nil {
				return DeltaEntry{}, err
			}
			w.writeGamma(biased)
			for range biased - 1 {
				b, err := r.readBits(8)
				if err != nil {
					return DeltaEntry{}, err
				}
				w.writeBits(b, 8)
			}
		}
	}
	entry.Packed = w.bytes()
	entry.PackedBits = w.used
	return entry, nil
}

// EncodeSnapshot serializes a full record as the replay base of an epoch.
func EncodeSnapshot(s *schema.Schema, record *schema.Record, epochID uint64) []byte {
	res := binary.AppendUvarint(nil, epochID)
	res = append(res, record.ID[:]...)
	res = binary.AppendUvarint(res, record.Sequence)

	w := bitWriter{}
	for _, f := range s.Fields() {
		value := record.Get(f.Ordinal)
		switch f.Kind {
		case schema.KindInt, schema.KindUint:
			w.writeBits(value.Bits(), int(f.BitWidth))
		case schema.KindBool:
			bit := uint64(0)
			if value.Bool() {
				bit = 1
			}
			w.writeBits(bit, 1)
		case schema.KindBytes:
			blob := value.Bytes()
			w.writeGamma(uint64(len(blob)) + 1)
			for _, b := range blob {
				w.writeBits(uint64(b), 8)
			}
		}
	}
	return append(res, w.bytes()...)
}

// DecodeSnapshot parses a persisted snapshot back into a full record.
func DecodeSnapshot(s *schema.Schema, data []byte) (*schema.Record, uint64, error) {
	var epochID, sequence uint64
	var id common.RecordID
	rest, err := decodeHeader(data, &epochID, &id, &sequence)
	if err != nil {
		return nil, 0, err
	}

	record := schema.NewRecord(id, sequence)
	r := newBitReader(rest)
	for _, f := range s.Fields() {
		switch f.Kind {
		case schema.KindInt, schema.KindUint:
			v, err := r.readBits(int(f.BitWidth))
			if err != nil {
				return nil, 0, err
			}
			if f.Kind == schema.KindInt {
				// sign-extend from the declared width
				shift := 64 - int(f.BitWidth)
				record.Set(f.Ordinal, schema.IntValue(int64(v<<shift)>>shift))
			} else {
				record.Set(f.Ordinal, schema.UintValue(v))
			}
		case schema.KindBool:
			bit, err := r.readBits(1)
			if err != nil {
				return nil, 0, err
			}
			record.Set(f.Ordinal, schema.BoolValue(bit != 0))
		case schema.KindBytes:
			biased, err := r.readGamma()
			if err != nil {
				return nil, 0, err
			}
			blob := make([]byte, biased-1)
			for i := range blob {
				b, err := r.readBits(8)
				if err != nil {
					return nil, 0, err
				}
				blob[i] = byte(b)
			}
			record.Set(f.Ordinal, schema.BytesValue(blob))
		}
	}
	return record, epochID, nil
}

func decodeHeader(data []byte, epochID *uint64, id *common.RecordID, sequence *uint64) ([]byte, error) {
	var n int
	*epochID, n = binary.Uvarint(data)
	if n <= 0 {
		return nil, ErrCorruptedStream
	}
	data = data[n:]
	if len(data) < common.RecordIDSize {
		return nil, ErrCorruptedStream
	}
	copy(id[:], data[:common.RecordIDSize])
	data = data[common.RecordIDSize:]
	*sequence, n = binary.Uvarint(data)
	if n <= 0 {
		return nil, ErrCorruptedStream
	}
	return data[n:], nil
}
