// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package commit

import (
	"github.com/0xsoniclabs/deltacurate/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// EpochCommitment is the durable artifact published when an epoch closes.
// It is small and append-only; proofs verify against its root digest, and
// the leaf count fixes the tree shape verifiers recompute.
type EpochCommitment struct {
	EpochID    uint64
	RootDigest common.Hash
	LeafCount  uint64
}

// MarshalBinary serializes the commitment for publication using RLP.
func (c EpochCommitment) MarshalBinary() ([]byte, error) {
	return rlp.EncodeToBytes(&c)
}

// UnmarshalBinary parses a published commitment.
func (c *EpochCommitment) UnmarshalBinary(data []byte) error {
	return rlp.DecodeBytes(data, c)
}
