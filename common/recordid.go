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
	"fmt"

	"github.com/google/uuid"
)

// RecordIDSize is the byte length of a record identifier on the wire.
const RecordIDSize = 16

// RecordID identifies the logical entity whose change history is tracked.
// It is a fixed 16-byte value, wide enough to hold a UUID.
type RecordID [RecordIDSize]byte

// NewRecordID creates a fresh random record identifier.
func NewRecordID() RecordID {
	return RecordID(uuid.New())
}

// RecordIDFromBytes converts a byte slice into a RecordID. The input must be
// exactly RecordIDSize bytes long.
func RecordIDFromBytes(data []byte) (RecordID, error) {
	var id RecordID
	if len(data) != RecordIDSize {
		return id, fmt.Errorf("invalid record id length %d, want %d", len(data), RecordIDSize)
	}
	copy(id[:], data)
	return id, nil
}

// ParseRecordID parses the canonical UUID text form of a record identifier.
func ParseRecordID(s string) (RecordID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RecordID{}, err
	}
	return RecordID(u), nil
}

func (id RecordID) String() string {
	return uuid.UUID(id).String()
}
