// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"github.com/0xsoniclabs/deltacurate/backend"
	"github.com/0xsoniclabs/deltacurate/common"
)

const IdSize = 16
const SequenceSize = 8

// DbKey addresses one entry of one record within a table space. The
// big-endian sequence suffix makes the natural LevelDB key order equal the
// sequence order of each record's stream.
type DbKey [1 + IdSize + SequenceSize]byte

func (k *DbKey) SetTableKey(table backend.TableSpace, id common.RecordID) {
	k[0] = byte(table)
	common.RecordIDSerializer{}.CopyBytes(id, k[1:1+IdSize])
}

func (k *DbKey) SetSequence(sequence uint64) {
	common.OrderedUintSerializer[uint64]{}.CopyBytes(sequence, k[1+IdSize:])
}

func (k *DbKey) SetMaxSequence() {
	for i := 1 + IdSize; i < len(k); i++ {
		k[i] = 0xFF
	}
}

func (k *DbKey) Sequence() uint64 {
	return common.OrderedUintSerializer[uint64]{}.FromBytes(k[1+IdSize:])
}

func (k *DbKey) CopyFrom(source *DbKey) {
	copy(k[:], source[:])
}

func (k *DbKey) ToBytes() []byte {
	return k[:]
}
