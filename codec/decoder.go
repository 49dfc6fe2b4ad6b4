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
	"fmt"

	"github.com/0xsoniclabs/deltacurate/schema"
)

// Apply replays one delta entry on top of a base record and returns the
// resulting record. The base is not modified. Only fields present in the
// entry's mask are updated; all other fields keep the base's value.
func Apply(s *schema.Schema, base *schema.Record, entry DeltaEntry) (*schema.Record, error) {
	res := base.Clone()
	res.ID = entry.RecordID
	res.Sequence = entry.Sequence

	r := newBitReader(entry.Packed)
	for _, ordinal := range entry.Mask.Ordinals() {
		f, ok := s.Field(ordinal)
		if !ok {
			return nil, fmt.Errorf("%w: delta for record %s seq %d names unknown ordinal %d",
				schema.ErrSchemaMismatch, entry.RecordID, entry.Sequence, ordinal)
		}
		switch f.Kind {
		case schema.KindInt, schema.KindUint:
			biased, err := r.readGamma()
			if err != nil {
				return nil, err
			}
			delta := unzigzag(biased - 1)
			res.Set(ordinal, schema.UintValue(base.Get(ordinal).Bits()+uint64(delta)))
		case schema.KindBool:
			bit, err := r.readBits(1)
			if err != nil {
				return nil, err
			}
			res.Set(ordinal, schema.BoolValue(bit != 0))
		case schema.KindBytes:
			biased, err := r.readGamma()
			if err != nil {
				return nil, err
			}
			length := biased - 1
			replacement := make([]byte, length)
			for i := range replacement {
				b, err := r.readBits(8)
				if err != nil {
					return nil, err
				}
				replacement[i] = byte(b)
			}
			res.Set(ordinal, schema.BytesValue(replacement))
		}
	}
	return res, nil
}
